package ledger

import (
	"github.com/google/uuid"

	"eco-ledger/chain"
	"eco-ledger/database"
	"eco-ledger/database/models"
)

// SubmitResult references the report and the chain state that recorded it.
type SubmitResult struct {
	ReportID      string `json:"report_id"`
	TransactionID string `json:"transaction_id"`
	BlockNumber   uint64 `json:"block_number"`
	BlockHash     string `json:"block_hash"`
	PayloadHash   string `json:"payload_hash"`
	Timestamp     string `json:"timestamp"`
}

type submissionRecord struct {
	ProjectID        string                      `json:"project_id"`
	VerificationData *models.VerificationPayload `json:"verification_data"`
	Action           string                      `json:"action"`
}

// Submit records an externally computed verification payload as an immutable
// report tied to a new confirmed transaction.
func (l *Ledger) Submit(ngoID, projectID string, payload *models.VerificationPayload) (*SubmitResult, error) {
	if ngoID == "" {
		return nil, validationErrorf("ngo_id must be present")
	}
	if projectID == "" {
		return nil, validationErrorf("project_id must be present")
	}
	if payload == nil {
		return nil, validationErrorf("verification_data must be present")
	}
	if err := payload.Validate(); err != nil {
		return nil, validationErrorf("verification_data: %v", err)
	}

	payloadJSON, err := chain.CanonicalJSON(payload)
	if err != nil {
		return nil, validationErrorf("verification_data not serializable: %v", err)
	}
	payloadHash, err := chain.Hash(payload)
	if err != nil {
		return nil, validationErrorf("verification_data not hashable: %v", err)
	}

	var result SubmitResult
	err = l.db.AppendCommit(func(txn *database.Txn, latest *models.Block) (*models.Block, *models.Transaction, error) {
		txRow, err := newTransactionRow(models.TxTypeVerificationSubmission, ngoID, ptr(SystemEntity), &submissionRecord{
			ProjectID:        projectID,
			VerificationData: payload,
			Action:           "submit_verification_report",
		})
		if err != nil {
			return nil, nil, err
		}
		if err := txn.InsertTransaction(txRow); err != nil {
			return nil, nil, err
		}

		report := &models.VerificationReport{
			ReportID:         uuid.NewString(),
			NgoID:            ngoID,
			ProjectID:        projectID,
			VerificationData: string(payloadJSON),
			DataHash:         payloadHash,
			FinalScore:       payload.FinalScore,
			CarbonCredits:    payload.CarbonCredits,
			TransactionID:    txRow.TransactionID,
			Status:           models.ReportStatusSubmitted,
			CreatedAt:        txRow.Timestamp,
		}
		if err := txn.InsertReport(report); err != nil {
			return nil, nil, err
		}

		block := nextBlock(latest, txRow)
		result = SubmitResult{
			ReportID:      report.ReportID,
			TransactionID: txRow.TransactionID,
			BlockNumber:   block.BlockNumber,
			BlockHash:     block.BlockHash,
			PayloadHash:   payloadHash,
			Timestamp:     block.Timestamp,
		}
		return block, txRow, nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Infof("Verification report submitted: [%s] by [%s], block [%d]", projectID, ngoID, result.BlockNumber)

	return &result, nil
}

func ptr[T any](v T) *T {
	return &v
}

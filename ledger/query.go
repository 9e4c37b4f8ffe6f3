package ledger

import (
	"errors"

	"github.com/goccy/go-json"
	"gorm.io/gorm"

	"eco-ledger/database"
	"eco-ledger/database/models"
)

// ReportDetail is a report joined with the transaction and block that
// recorded it, payload deserialized.
type ReportDetail struct {
	ReportID      string                      `json:"report_id"`
	NgoID         string                      `json:"ngo_id"`
	ProjectID     string                      `json:"project_id"`
	Payload       *models.VerificationPayload `json:"verification_data"`
	PayloadHash   string                      `json:"payload_hash"`
	FinalScore    float64                     `json:"final_score"`
	CarbonCredits float64                     `json:"carbon_credits"`
	TransactionID string                      `json:"transaction_id"`
	BlockNumber   *uint64                     `json:"block_number"`
	BlockHash     string                      `json:"block_hash"`
	Status        string                      `json:"status"`
	CreatedAt     string                      `json:"created_at"`
}

func (l *Ledger) GetReport(reportID string) (*ReportDetail, error) {
	report, found, err := l.db.FindReportByID(reportID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrReportNotFound
	}

	var payload models.VerificationPayload
	if err := json.Unmarshal([]byte(report.VerificationData), &payload); err != nil {
		return nil, err
	}

	detail := &ReportDetail{
		ReportID:      report.ReportID,
		NgoID:         report.NgoID,
		ProjectID:     report.ProjectID,
		Payload:       &payload,
		PayloadHash:   report.DataHash,
		FinalScore:    report.FinalScore,
		CarbonCredits: report.CarbonCredits,
		TransactionID: report.TransactionID,
		Status:        report.Status,
		CreatedAt:     report.CreatedAt,
	}

	tx, found, err := l.db.FindTransactionByID(report.TransactionID)
	if err != nil {
		return nil, err
	}
	if found && tx.BlockNumber != nil {
		detail.BlockNumber = tx.BlockNumber
		block, blockFound, err := l.db.FindBlockByNumber(*tx.BlockNumber)
		if err != nil {
			return nil, err
		}
		if blockFound {
			detail.BlockHash = block.BlockHash
		}
	}

	return detail, nil
}

// SetReportStatus records the external admin decision on a report. The
// decision itself is made outside the ledger.
func (l *Ledger) SetReportStatus(reportID, status string) error {
	switch status {
	case models.ReportStatusApproved, models.ReportStatusRejected, models.ReportStatusSubmitted:
	default:
		return validationErrorf("unknown report status %q", status)
	}

	err := l.db.UpdateReportStatus(reportID, status)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrReportNotFound
	}
	return err
}

// ListCredits returns credits filtered by owner and status. Status defaults
// to active, matching the trading view of the marketplace.
func (l *Ledger) ListCredits(ownerID, status string, limit int) ([]*models.CarbonCredit, error) {
	if status == "" {
		status = models.CreditStatusActive
	}
	if limit <= 0 {
		limit = 50
	}
	return l.db.ListCreditsByOwnerAndStatus(ownerID, status, limit)
}

// CreditDetail is a credit joined with every transfer recorded against it.
type CreditDetail struct {
	Credit    *models.CarbonCredit     `json:"credit"`
	Transfers []*models.CreditTransfer `json:"transfer_history"`
}

// GetCredit returns one credit, active or drained, with its transfer history.
func (l *Ledger) GetCredit(creditID string) (*CreditDetail, error) {
	credit, found, err := l.db.FindCreditByID(creditID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrCreditNotFound
	}

	transfers, err := l.db.ListTransfersForCredit(creditID)
	if err != nil {
		return nil, err
	}

	return &CreditDetail{Credit: credit, Transfers: transfers}, nil
}

// HistoryEntry is one confirmed transaction involving an organization, with
// its payload deserialized.
type HistoryEntry struct {
	TransactionID string  `json:"transaction_id"`
	BlockNumber   *uint64 `json:"block_number"`
	BlockHash     string  `json:"block_hash"`
	TxType        string  `json:"tx_type"`
	FromEntity    string  `json:"from_entity"`
	ToEntity      *string `json:"to_entity"`
	Data          any     `json:"data"`
	DataHash      string  `json:"data_hash"`
	Timestamp     string  `json:"timestamp"`
	Status        string  `json:"status"`
}

// OrganizationHistory returns every transaction where the organization is
// source or destination, ordered by time.
func (l *Ledger) OrganizationHistory(orgID string) ([]*HistoryEntry, error) {
	if orgID == "" {
		return nil, validationErrorf("org_id must be present")
	}

	txs, err := l.db.ListTransactionsForEntity(orgID)
	if err != nil {
		return nil, err
	}

	blockHashes := make(map[uint64]string)
	entries := make([]*HistoryEntry, 0, len(txs))
	for _, tx := range txs {
		entry := &HistoryEntry{
			TransactionID: tx.TransactionID,
			BlockNumber:   tx.BlockNumber,
			TxType:        tx.TxType,
			FromEntity:    tx.FromEntity,
			ToEntity:      tx.ToEntity,
			DataHash:      tx.DataHash,
			Timestamp:     tx.Timestamp,
			Status:        tx.Status,
		}

		if err := json.Unmarshal([]byte(tx.Data), &entry.Data); err != nil {
			return nil, err
		}

		if tx.BlockNumber != nil {
			hash, ok := blockHashes[*tx.BlockNumber]
			if !ok {
				block, found, err := l.db.FindBlockByNumber(*tx.BlockNumber)
				if err != nil {
					return nil, err
				}
				if found {
					hash = block.BlockHash
					blockHashes[*tx.BlockNumber] = hash
				}
			}
			entry.BlockHash = hash
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

func (l *Ledger) GetChainStats() (*database.ChainStats, error) {
	return l.db.GetChainStats()
}

func (l *Ledger) RecentBlocks(n int) ([]*models.Block, error) {
	if n <= 0 {
		n = 10
	}
	return l.db.ListRecentBlocks(n)
}

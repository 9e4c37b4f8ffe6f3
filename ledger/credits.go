package ledger

import (
	"fmt"

	"eco-ledger/database"
	"eco-ledger/database/models"
)

// amountEpsilon absorbs float rounding when deciding a credit is drained.
const amountEpsilon = 1e-9

// IssueResult references the minted credit and the chain state recording it.
type IssueResult struct {
	CreditID      string  `json:"credit_id"`
	TransactionID string  `json:"transaction_id"`
	BlockNumber   uint64  `json:"block_number"`
	BlockHash     string  `json:"block_hash"`
	Amount        float64 `json:"credits_issued"`
	Owner         string  `json:"owner"`
	IssuedAt      string  `json:"issuance_date"`
}

type issuanceRecord struct {
	CreditID     string   `json:"credit_id"`
	ReportID     string   `json:"report_id"`
	ProjectID    string   `json:"project_id"`
	Amount       float64  `json:"credits_amount"`
	PricePerUnit *float64 `json:"price_per_credit"`
	Action       string   `json:"action"`
}

// Issue converts an existing verification report into a credit balance owned
// by the submitting NGO.
func (l *Ledger) Issue(ngoID, reportID string, amount float64, pricePerUnit *float64) (*IssueResult, error) {
	if ngoID == "" {
		return nil, validationErrorf("ngo_id must be present")
	}
	if reportID == "" {
		return nil, validationErrorf("report_id must be present")
	}
	if amount <= 0 {
		return nil, validationErrorf("credits_amount must be positive")
	}
	if pricePerUnit != nil && *pricePerUnit < 0 {
		return nil, validationErrorf("price_per_credit must be non-negative")
	}

	var result IssueResult
	err := l.db.AppendCommit(func(txn *database.Txn, latest *models.Block) (*models.Block, *models.Transaction, error) {
		report, found, err := txn.FindReportByID(reportID)
		if err != nil {
			return nil, nil, err
		}
		if !found {
			return nil, nil, ErrReportNotFound
		}

		creditID := fmt.Sprintf("ECC-%s-%s", report.ProjectID, shortID())

		txRow, err := newTransactionRow(models.TxTypeCreditIssuance, SystemEntity, &ngoID, &issuanceRecord{
			CreditID:     creditID,
			ReportID:     reportID,
			ProjectID:    report.ProjectID,
			Amount:       amount,
			PricePerUnit: pricePerUnit,
			Action:       "issue_carbon_credits",
		})
		if err != nil {
			return nil, nil, err
		}
		if err := txn.InsertTransaction(txRow); err != nil {
			return nil, nil, err
		}

		credit := &models.CarbonCredit{
			CreditID:      creditID,
			NgoID:         ngoID,
			OwnerID:       ngoID,
			ProjectID:     report.ProjectID,
			Amount:        amount,
			PricePerUnit:  pricePerUnit,
			ReportID:      reportID,
			TransactionID: txRow.TransactionID,
			Status:        models.CreditStatusActive,
			IssuedAt:      txRow.Timestamp,
		}
		if pricePerUnit != nil {
			credit.MarketValue = ptr(amount * *pricePerUnit)
		}
		if err := txn.InsertCredit(credit); err != nil {
			return nil, nil, err
		}

		block := nextBlock(latest, txRow)
		result = IssueResult{
			CreditID:      creditID,
			TransactionID: txRow.TransactionID,
			BlockNumber:   block.BlockNumber,
			BlockHash:     block.BlockHash,
			Amount:        amount,
			Owner:         ngoID,
			IssuedAt:      txRow.Timestamp,
		}
		return block, txRow, nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Infof("Carbon credits issued: [%.2f] credits to [%s], block [%d]", amount, ngoID, result.BlockNumber)

	return &result, nil
}

// TransferResult references both sides of a completed transfer.
type TransferResult struct {
	TransferID    string   `json:"transfer_id"`
	CreditID      string   `json:"credit_id"`
	NewCreditID   string   `json:"new_credit_id"`
	TransactionID string   `json:"transaction_id"`
	BlockNumber   uint64   `json:"block_number"`
	BlockHash     string   `json:"block_hash"`
	FromOwner     string   `json:"from_owner"`
	ToOwner       string   `json:"to_owner"`
	Amount        float64  `json:"credits_transferred"`
	Price         *float64 `json:"transfer_price"`
	TransferredAt string   `json:"transfer_date"`
}

type transferRecord struct {
	TransferID string   `json:"transfer_id"`
	CreditID   string   `json:"credit_id"`
	Amount     float64  `json:"credits_amount"`
	Price      *float64 `json:"transfer_price"`
	Action     string   `json:"action"`
}

// Transfer moves credit units between owners. A partial transfer splits the
// credit: the source keeps the remainder under its current owner and a new
// active credit for the transferred amount is minted for the receiver. A
// drained source credit becomes transferred.
func (l *Ledger) Transfer(creditID, fromOwner, toOwner string, amount *float64, price *float64) (*TransferResult, error) {
	if creditID == "" {
		return nil, validationErrorf("credit_id must be present")
	}
	if fromOwner == "" {
		return nil, validationErrorf("from_owner must be present")
	}
	if toOwner == "" {
		return nil, validationErrorf("to_owner must be present")
	}
	if amount != nil && *amount <= 0 {
		return nil, validationErrorf("credits_amount must be positive")
	}
	if price != nil && *price < 0 {
		return nil, validationErrorf("transfer_price must be non-negative")
	}

	var result TransferResult
	err := l.db.AppendCommit(func(txn *database.Txn, latest *models.Block) (*models.Block, *models.Transaction, error) {
		credit, found, err := txn.FindCreditByID(creditID)
		if err != nil {
			return nil, nil, err
		}
		if !found || credit.Status != models.CreditStatusActive {
			return nil, nil, ErrCreditNotFound
		}
		if credit.OwnerID != fromOwner {
			return nil, nil, ErrOwnershipMismatch
		}

		transferAmount := credit.Amount
		if amount != nil {
			transferAmount = *amount
		}
		if transferAmount > credit.Amount {
			return nil, nil, ErrInsufficientBalance
		}

		transferID := "TXF-" + shortID()

		txRow, err := newTransactionRow(models.TxTypeCreditTransfer, fromOwner, &toOwner, &transferRecord{
			TransferID: transferID,
			CreditID:   creditID,
			Amount:     transferAmount,
			Price:      price,
			Action:     "transfer_carbon_credits",
		})
		if err != nil {
			return nil, nil, err
		}
		if err := txn.InsertTransaction(txRow); err != nil {
			return nil, nil, err
		}

		credit.Amount -= transferAmount
		if credit.Amount <= amountEpsilon {
			credit.Amount = 0
			credit.Status = models.CreditStatusTransferred
			credit.TransferredAt = ptr(txRow.Timestamp)
		}
		if err := txn.SaveCredit(credit); err != nil {
			return nil, nil, err
		}

		newCredit := &models.CarbonCredit{
			CreditID:      fmt.Sprintf("ECC-%s-%s", credit.ProjectID, shortID()),
			NgoID:         credit.NgoID,
			OwnerID:       toOwner,
			ProjectID:     credit.ProjectID,
			Amount:        transferAmount,
			PricePerUnit:  price,
			ReportID:      credit.ReportID,
			TransactionID: txRow.TransactionID,
			Status:        models.CreditStatusActive,
			IssuedAt:      txRow.Timestamp,
		}
		if price != nil {
			newCredit.MarketValue = ptr(transferAmount * *price)
		}
		if err := txn.InsertCredit(newCredit); err != nil {
			return nil, nil, err
		}

		transfer := &models.CreditTransfer{
			TransferID:    transferID,
			CreditID:      creditID,
			NewCreditID:   ptr(newCredit.CreditID),
			FromOwner:     fromOwner,
			ToOwner:       toOwner,
			Amount:        transferAmount,
			Price:         price,
			TransactionID: txRow.TransactionID,
			Status:        models.TransferStatusCompleted,
			TransferredAt: txRow.Timestamp,
		}
		if err := txn.InsertTransfer(transfer); err != nil {
			return nil, nil, err
		}

		block := nextBlock(latest, txRow)
		result = TransferResult{
			TransferID:    transferID,
			CreditID:      creditID,
			NewCreditID:   newCredit.CreditID,
			TransactionID: txRow.TransactionID,
			BlockNumber:   block.BlockNumber,
			BlockHash:     block.BlockHash,
			FromOwner:     fromOwner,
			ToOwner:       toOwner,
			Amount:        transferAmount,
			Price:         price,
			TransferredAt: txRow.Timestamp,
		}
		return block, txRow, nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Infof("Carbon credits transferred: [%.2f] from [%s] to [%s], block [%d]",
		result.Amount, fromOwner, toOwner, result.BlockNumber)

	return &result, nil
}

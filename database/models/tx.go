package models

const (
	TxTypeVerificationSubmission = "verification_submission"
	TxTypeCreditIssuance         = "credit_issuance"
	TxTypeCreditTransfer         = "credit_transfer"
)

const (
	TxStatusPending   = "pending"
	TxStatusConfirmed = "confirmed"
)

// Transaction is a single state-changing operation recorded in the ledger.
// BlockNumber is nil while pending and set exactly once on confirmation.
type Transaction struct {
	TransactionID string  `gorm:"primaryKey;size:36" json:"transaction_id"`
	BlockNumber   *uint64 `gorm:"index" json:"block_number"`
	TxType        string  `gorm:"size:32;index" json:"tx_type"`
	FromEntity    string  `gorm:"size:64;index" json:"from_entity"`
	ToEntity      *string `gorm:"size:64;index" json:"to_entity"`
	Data          string  `json:"data"`
	DataHash      string  `gorm:"size:64" json:"data_hash"`
	Timestamp     string  `gorm:"index" json:"timestamp"`
	Status        string  `gorm:"size:16" json:"status"`
}

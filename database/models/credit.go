package models

const (
	CreditStatusActive      = "active"
	CreditStatusTransferred = "transferred"
)

const TransferStatusCompleted = "completed"

// CarbonCredit is a tradeable balance of restoration-impact units, traceable
// to the verification report it was issued against. Amount only decreases;
// a drained credit is marked transferred.
type CarbonCredit struct {
	CreditID      string   `gorm:"primaryKey;size:64" json:"credit_id"`
	NgoID         string   `gorm:"size:64;index" json:"ngo_id"`
	OwnerID       string   `gorm:"size:64;index" json:"owner_id"`
	ProjectID     string   `gorm:"size:64" json:"project_id"`
	Amount        float64  `json:"amount"`
	PricePerUnit  *float64 `json:"price_per_unit"`
	MarketValue   *float64 `json:"market_value"`
	ReportID      string   `gorm:"size:36;index" json:"report_id"`
	TransactionID string   `gorm:"size:36" json:"transaction_id"`
	Status        string   `gorm:"size:16;index" json:"status"`
	IssuedAt      string   `json:"issued_at"`
	TransferredAt *string  `json:"transferred_at"`
}

// CreditTransfer records one completed movement of credit units between
// owners. NewCreditID references the credit minted for the receiver.
type CreditTransfer struct {
	TransferID    string   `gorm:"primaryKey;size:64" json:"transfer_id"`
	CreditID      string   `gorm:"size:64;index" json:"credit_id"`
	NewCreditID   *string  `gorm:"size:64" json:"new_credit_id"`
	FromOwner     string   `gorm:"size:64;index" json:"from_owner"`
	ToOwner       string   `gorm:"size:64;index" json:"to_owner"`
	Amount        float64  `json:"amount"`
	Price         *float64 `json:"price"`
	TransactionID string   `gorm:"size:36" json:"transaction_id"`
	Status        string   `gorm:"size:16" json:"status"`
	TransferredAt string   `json:"transferred_at"`
}

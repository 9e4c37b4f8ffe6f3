package models

const (
	ReportStatusSubmitted = "submitted"
	ReportStatusApproved  = "approved"
	ReportStatusRejected  = "rejected"
)

// VerificationReport is the immutable record of an externally computed score
// payload for a project submission. Only Status may change after creation,
// by an admin decision outside the ledger core.
type VerificationReport struct {
	ReportID         string  `gorm:"primaryKey;size:36" json:"report_id"`
	NgoID            string  `gorm:"size:64;index" json:"ngo_id"`
	ProjectID        string  `gorm:"size:64;index" json:"project_id"`
	VerificationData string  `json:"verification_data"`
	DataHash         string  `gorm:"size:64" json:"data_hash"`
	FinalScore       float64 `json:"final_score"`
	CarbonCredits    float64 `json:"carbon_credits"`
	TransactionID    string  `gorm:"size:36;index" json:"transaction_id"`
	Status           string  `gorm:"size:16" json:"status"`
	CreatedAt        string  `json:"created_at"`
}

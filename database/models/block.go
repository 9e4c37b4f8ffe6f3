package models

// Block is one link of the hash chain. Block numbers are assigned by the
// store, start at 0 for genesis and grow without gaps.
type Block struct {
	BlockNumber      uint64 `gorm:"primaryKey;autoIncrement:false" json:"block_number"`
	BlockHash        string `gorm:"size:64;uniqueIndex" json:"block_hash"`
	PreviousHash     string `gorm:"size:64" json:"previous_hash"`
	Timestamp        string `json:"timestamp"`
	MerkleRoot       string `gorm:"size:64" json:"merkle_root"`
	TransactionCount int    `json:"transaction_count"`
}

// Package ledger implements the verification and carbon-credit core: the
// sole commit path onto the hash chain, the verification registry, credit
// issuance and transfer, and the read-only audit surface.
package ledger

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"eco-ledger/chain"
	"eco-ledger/database"
	"eco-ledger/database/models"
)

// SystemEntity is the destination of verification submissions and the source
// of credit issuances.
const SystemEntity = "ecoledger_system"

type Ledger struct {
	db     *database.LedgerDB
	logger *zap.SugaredLogger
}

func New(db *database.LedgerDB) *Ledger {
	return &Ledger{
		db:     db,
		logger: zap.S().Named("[ledger]"),
	}
}

// newTransactionRow builds a pending transaction carrying the canonical JSON
// form of payload and its content hash.
func newTransactionRow(txType, fromEntity string, toEntity *string, payload any) (*models.Transaction, error) {
	data, err := chain.CanonicalJSON(payload)
	if err != nil {
		return nil, validationErrorf("payload not serializable: %v", err)
	}
	dataHash, err := chain.Hash(payload)
	if err != nil {
		return nil, validationErrorf("payload not hashable: %v", err)
	}

	return &models.Transaction{
		TransactionID: uuid.NewString(),
		TxType:        txType,
		FromEntity:    fromEntity,
		ToEntity:      toEntity,
		Data:          string(data),
		DataHash:      dataHash,
		Timestamp:     timestampNow(),
		Status:        models.TxStatusPending,
	}, nil
}

// nextBlock links a new block holding exactly one transaction. One commit is
// one block; there is no batching.
func nextBlock(latest *models.Block, txRow *models.Transaction) *models.Block {
	blockNumber := latest.BlockNumber + 1
	merkleRoot := chain.MerkleRoot([]string{txRow.DataHash})
	timestamp := timestampNow()

	return &models.Block{
		BlockNumber:      blockNumber,
		BlockHash:        chain.LinkBlock(blockNumber, latest.BlockHash, merkleRoot, timestamp),
		PreviousHash:     latest.BlockHash,
		Timestamp:        timestamp,
		MerkleRoot:       merkleRoot,
		TransactionCount: 1,
	}
}

func timestampNow() string {
	return time.Now().UTC().Format(chain.TimestampLayout)
}

func shortID() string {
	return strings.Split(uuid.NewString(), "-")[0]
}

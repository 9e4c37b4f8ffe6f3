package ledger

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"eco-ledger/chain"
	"eco-ledger/database/models"
	"eco-ledger/utils"
)

// AuditResult summarizes one integrity pass over the whole chain.
type AuditResult struct {
	BlocksChecked       int64 `json:"blocks_checked"`
	TransactionsChecked int64 `json:"transactions_checked"`
}

// VerifyChain re-derives every link of the hash chain from stored state:
// block numbering and previous-hash linkage, block hashes, merkle roots,
// transaction counts and payload hashes. It is read-only and stops at the
// first inconsistency.
func (l *Ledger) VerifyChain() (*AuditResult, error) {
	var (
		result   AuditResult
		previous *models.Block
		progress = utils.NewProgress(10 * time.Second)
	)

	err := l.db.TraverseBlocks(500, func(block *models.Block) error {
		if previous == nil {
			if block.BlockNumber != 0 {
				return fmt.Errorf("chain starts at block [%d], expected genesis", block.BlockNumber)
			}
			if block.PreviousHash != chain.GenesisPreviousHash {
				return fmt.Errorf("genesis previous hash is [%s], expected [%s]", block.PreviousHash, chain.GenesisPreviousHash)
			}
		} else {
			if block.BlockNumber != previous.BlockNumber+1 {
				return fmt.Errorf("block [%d] follows block [%d], chain has a gap", block.BlockNumber, previous.BlockNumber)
			}
			if block.PreviousHash != previous.BlockHash {
				return fmt.Errorf("block [%d] previous hash does not match block [%d]", block.BlockNumber, previous.BlockNumber)
			}

			recomputed := chain.LinkBlock(block.BlockNumber, block.PreviousHash, block.MerkleRoot, block.Timestamp)
			if recomputed != block.BlockHash {
				return fmt.Errorf("block [%d] hash does not recompute from stored fields", block.BlockNumber)
			}
		}

		txs, err := l.db.TransactionsForBlock(block.BlockNumber)
		if err != nil {
			return err
		}
		if len(txs) != block.TransactionCount {
			return fmt.Errorf("block [%d] holds [%d] transactions, header says [%d]", block.BlockNumber, len(txs), block.TransactionCount)
		}

		txHashes := make([]string, 0, len(txs))
		for _, tx := range txs {
			if tx.Status != models.TxStatusConfirmed {
				return fmt.Errorf("transaction [%s] in block [%d] is not confirmed", tx.TransactionID, block.BlockNumber)
			}

			var payload any
			if err := json.Unmarshal([]byte(tx.Data), &payload); err != nil {
				return fmt.Errorf("transaction [%s] payload does not parse: %w", tx.TransactionID, err)
			}
			freshHash, err := chain.Hash(payload)
			if err != nil {
				return err
			}
			if freshHash != tx.DataHash {
				return fmt.Errorf("transaction [%s] payload hash mismatch, data was tampered", tx.TransactionID)
			}

			txHashes = append(txHashes, tx.DataHash)
			result.TransactionsChecked++
		}

		if len(txHashes) > 0 && chain.MerkleRoot(txHashes) != block.MerkleRoot {
			return fmt.Errorf("block [%d] merkle root does not recompute", block.BlockNumber)
		}

		previous = &models.Block{
			BlockNumber: block.BlockNumber,
			BlockHash:   block.BlockHash,
		}
		result.BlocksChecked++

		if line, due := progress.Step(1); due {
			l.logger.Infof("Chain audit in progress, %s", line)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Infof("Chain audit complete, %s", progress.Summary())

	return &result, nil
}

package database

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"eco-ledger/chain"
	"eco-ledger/config"
	"eco-ledger/database/models"
)

var (
	// ErrDuplicateBlock is returned when a block number or hash is appended twice.
	ErrDuplicateBlock = errors.New("block already exists")

	// ErrConflict is returned on any other uniqueness violation. Safe to retry
	// with a fresh id.
	ErrConflict = errors.New("record already exists")
)

// StorageError wraps a backend I/O failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// LedgerDB owns all durable ledger state: blocks, transactions, verification
// reports, carbon credits and credit transfers. Chain appends are serialized
// by an internal lock; that lock is part of the store's contract, AppendCommit
// is the only write path.
type LedgerDB struct {
	db     *gorm.DB
	logger *zap.SugaredLogger

	// chainLock serializes the whole read-latest-then-append sequence.
	chainLock sync.Mutex
}

func New(cfg *config.DBConfig) *LedgerDB {
	var dialector gorm.Dialector
	switch cfg.Engine {
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s)/%s?charset=utf8mb4&parseTime=True&loc=Local", cfg.User, cfg.Password, cfg.Host, cfg.DB)
		dialector = mysql.Open(dsn)
	default:
		dialector = sqlite.Open(cfg.Path)
	}

	db, dbErr := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 logger.Discard,
	})
	if dbErr != nil {
		panic(dbErr)
	}

	dbErr = db.AutoMigrate(&models.Block{})
	if dbErr != nil {
		panic(dbErr)
	}

	dbErr = db.AutoMigrate(&models.Transaction{})
	if dbErr != nil {
		panic(dbErr)
	}

	dbErr = db.AutoMigrate(&models.VerificationReport{})
	if dbErr != nil {
		panic(dbErr)
	}

	dbErr = db.AutoMigrate(&models.CarbonCredit{})
	if dbErr != nil {
		panic(dbErr)
	}

	dbErr = db.AutoMigrate(&models.CreditTransfer{})
	if dbErr != nil {
		panic(dbErr)
	}

	ledgerDB := &LedgerDB{
		db:     db,
		logger: zap.S().Named("[db]"),
	}

	ledgerDB.initGenesis()

	return ledgerDB
}

// initGenesis creates block 0 on a fresh store. No other operation is
// accepted before it exists.
func (db *LedgerDB) initGenesis() {
	var count int64
	if err := db.db.Model(&models.Block{}).Count(&count).Error; err != nil {
		panic(err)
	}
	if count > 0 {
		return
	}

	timestamp := time.Now().UTC().Format(chain.TimestampLayout)
	genesisHash, err := chain.Hash(map[string]any{
		"type":      "genesis",
		"message":   "EcoLedger Genesis Block - Carbon Credit Verification System",
		"timestamp": timestamp,
	})
	if err != nil {
		panic(err)
	}

	genesis := &models.Block{
		BlockNumber:      0,
		BlockHash:        genesisHash,
		PreviousHash:     chain.GenesisPreviousHash,
		Timestamp:        timestamp,
		MerkleRoot:       chain.GenesisMerkleRoot,
		TransactionCount: 0,
	}
	if err := db.db.Create(genesis).Error; err != nil {
		panic(err)
	}

	db.logger.Infof("Genesis block created with hash [%s]", genesisHash)
}

func (db *LedgerDB) Close() {
	underDB, _ := db.db.DB()
	_ = underDB.Close()
}

func (db *LedgerDB) Report() {
	stats, err := db.GetChainStats()
	if err != nil {
		db.logger.Errorf("Status report failed: [%s]", err.Error())
		return
	}
	db.logger.Infof("Status report, blocks [%s], transactions [%s], reports [%s]",
		humanize.Comma(stats.BlockCount), humanize.Comma(stats.TransactionCount), humanize.Comma(stats.ReportCount))
}

// Txn is a handle on the store inside one atomic chain append. Everything
// done through it becomes visible together with the new block, or not at all.
type Txn struct {
	db *gorm.DB
}

// AppendCommit runs fn under the chain lock inside a single database
// transaction. fn observes the latest block, mutates domain state through the
// handle and returns the new block and the transaction it confirms. The block
// is persisted first, then the transaction is marked confirmed with its block
// number, so a confirmed transaction is never visible without its block.
func (db *LedgerDB) AppendCommit(fn func(txn *Txn, latest *models.Block) (*models.Block, *models.Transaction, error)) error {
	db.chainLock.Lock()
	defer db.chainLock.Unlock()

	return db.db.Transaction(func(gtx *gorm.DB) error {
		var latest models.Block
		if err := gtx.Order("block_number DESC").Limit(1).Take(&latest).Error; err != nil {
			return &StorageError{Op: "read latest block", Err: err}
		}

		block, txRow, err := fn(&Txn{db: gtx}, &latest)
		if err != nil {
			return err
		}

		if err := gtx.Create(block).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateBlock
			}
			return &StorageError{Op: "append block", Err: err}
		}

		res := gtx.Model(&models.Transaction{}).
			Where("transaction_id = ?", txRow.TransactionID).
			Updates(map[string]any{"block_number": block.BlockNumber, "status": models.TxStatusConfirmed})
		if res.Error != nil {
			return &StorageError{Op: "confirm transaction", Err: res.Error}
		}
		txRow.BlockNumber = &block.BlockNumber
		txRow.Status = models.TxStatusConfirmed

		return nil
	})
}

func (txn *Txn) InsertTransaction(tx *models.Transaction) error {
	if err := txn.db.Create(tx).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrConflict
		}
		return &StorageError{Op: "insert transaction", Err: err}
	}
	return nil
}

func (txn *Txn) InsertReport(report *models.VerificationReport) error {
	if err := txn.db.Create(report).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrConflict
		}
		return &StorageError{Op: "insert report", Err: err}
	}
	return nil
}

func (txn *Txn) InsertCredit(credit *models.CarbonCredit) error {
	if err := txn.db.Create(credit).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrConflict
		}
		return &StorageError{Op: "insert credit", Err: err}
	}
	return nil
}

func (txn *Txn) InsertTransfer(transfer *models.CreditTransfer) error {
	if err := txn.db.Create(transfer).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrConflict
		}
		return &StorageError{Op: "insert transfer", Err: err}
	}
	return nil
}

func (txn *Txn) SaveCredit(credit *models.CarbonCredit) error {
	if err := txn.db.Save(credit).Error; err != nil {
		return &StorageError{Op: "update credit", Err: err}
	}
	return nil
}

func (txn *Txn) FindCreditByID(creditID string) (*models.CarbonCredit, bool, error) {
	var credit models.CarbonCredit
	err := txn.db.Where("credit_id = ?", creditID).Take(&credit).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &StorageError{Op: "find credit", Err: err}
	}
	return &credit, true, nil
}

func (txn *Txn) FindReportByID(reportID string) (*models.VerificationReport, bool, error) {
	var report models.VerificationReport
	err := txn.db.Where("report_id = ?", reportID).Take(&report).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &StorageError{Op: "find report", Err: err}
	}
	return &report, true, nil
}

func (db *LedgerDB) LatestBlock() (*models.Block, error) {
	var block models.Block
	err := db.db.Order("block_number DESC").Limit(1).Take(&block).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &StorageError{Op: "read latest block", Err: err}
	}
	return &block, nil
}

func (db *LedgerDB) FindBlockByNumber(number uint64) (*models.Block, bool, error) {
	var block models.Block
	err := db.db.Where("block_number = ?", number).Take(&block).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &StorageError{Op: "find block", Err: err}
	}
	return &block, true, nil
}

func (db *LedgerDB) ListRecentBlocks(n int) ([]*models.Block, error) {
	var blocks []*models.Block
	if err := db.db.Order("block_number DESC").Limit(n).Find(&blocks).Error; err != nil {
		return nil, &StorageError{Op: "list recent blocks", Err: err}
	}
	return blocks, nil
}

// TraverseBlocks walks the chain in ascending block order, batchSize rows at
// a time. Used by the integrity audit.
func (db *LedgerDB) TraverseBlocks(batchSize int, handler func(*models.Block) error) error {
	var (
		blocks  []*models.Block
		stopped error
	)
	result := db.db.Order("block_number ASC").FindInBatches(&blocks, batchSize, func(_ *gorm.DB, _ int) error {
		for _, block := range blocks {
			if err := handler(block); err != nil {
				stopped = err
				return err
			}
		}
		return nil
	})
	if stopped != nil {
		return stopped
	}
	if result.Error != nil {
		return &StorageError{Op: "traverse blocks", Err: result.Error}
	}
	return nil
}

func (db *LedgerDB) TransactionsForBlock(blockNumber uint64) ([]*models.Transaction, error) {
	var txs []*models.Transaction
	if err := db.db.Where("block_number = ?", blockNumber).Order("timestamp ASC").Find(&txs).Error; err != nil {
		return nil, &StorageError{Op: "list block transactions", Err: err}
	}
	return txs, nil
}

func (db *LedgerDB) FindTransactionByID(txID string) (*models.Transaction, bool, error) {
	var tx models.Transaction
	err := db.db.Where("transaction_id = ?", txID).Take(&tx).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &StorageError{Op: "find transaction", Err: err}
	}
	return &tx, true, nil
}

func (db *LedgerDB) FindReportByID(reportID string) (*models.VerificationReport, bool, error) {
	return (&Txn{db: db.db}).FindReportByID(reportID)
}

func (db *LedgerDB) FindCreditByID(creditID string) (*models.CarbonCredit, bool, error) {
	return (&Txn{db: db.db}).FindCreditByID(creditID)
}

func (db *LedgerDB) UpdateReportStatus(reportID, status string) error {
	res := db.db.Model(&models.VerificationReport{}).
		Where("report_id = ?", reportID).
		Update("status", status)
	if res.Error != nil {
		return &StorageError{Op: "update report status", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (db *LedgerDB) ListCreditsByOwnerAndStatus(ownerID, status string, limit int) ([]*models.CarbonCredit, error) {
	query := db.db.Model(&models.CarbonCredit{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if ownerID != "" {
		query = query.Where("owner_id = ?", ownerID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var credits []*models.CarbonCredit
	if err := query.Order("issued_at DESC").Find(&credits).Error; err != nil {
		return nil, &StorageError{Op: "list credits", Err: err}
	}
	return credits, nil
}

func (db *LedgerDB) ListTransfersForCredit(creditID string) ([]*models.CreditTransfer, error) {
	var transfers []*models.CreditTransfer
	if err := db.db.Where("credit_id = ?", creditID).Order("transferred_at ASC").Find(&transfers).Error; err != nil {
		return nil, &StorageError{Op: "list transfers", Err: err}
	}
	return transfers, nil
}

// ListTransactionsForEntity returns every transaction where the entity is
// source or destination. Block numbers give a strict total order over
// confirmed transactions, one per block, so they are the sort key.
func (db *LedgerDB) ListTransactionsForEntity(entityID string) ([]*models.Transaction, error) {
	var txs []*models.Transaction
	err := db.db.Where("from_entity = ? OR to_entity = ?", entityID, entityID).
		Order("block_number ASC").
		Find(&txs).Error
	if err != nil {
		return nil, &StorageError{Op: "list entity transactions", Err: err}
	}
	return txs, nil
}

type CreditAggregate struct {
	Count       int64   `json:"count"`
	TotalAmount float64 `json:"total_amount"`
}

type ChainStats struct {
	BlockCount         int64           `json:"blocks"`
	TransactionCount   int64           `json:"transactions"`
	ReportCount        int64           `json:"verification_reports"`
	AvailableCredits   CreditAggregate `json:"available_credits"`
	TransferredCredits CreditAggregate `json:"transferred_credits"`
}

func (db *LedgerDB) GetChainStats() (*ChainStats, error) {
	var stats ChainStats

	if err := db.db.Model(&models.Block{}).Count(&stats.BlockCount).Error; err != nil {
		return nil, &StorageError{Op: "count blocks", Err: err}
	}
	if err := db.db.Model(&models.Transaction{}).Where("status = ?", models.TxStatusConfirmed).Count(&stats.TransactionCount).Error; err != nil {
		return nil, &StorageError{Op: "count transactions", Err: err}
	}
	if err := db.db.Model(&models.VerificationReport{}).Count(&stats.ReportCount).Error; err != nil {
		return nil, &StorageError{Op: "count reports", Err: err}
	}

	err := db.db.Model(&models.CarbonCredit{}).
		Select("COUNT(*) as count, COALESCE(SUM(amount), 0) as total_amount").
		Where("status = ?", models.CreditStatusActive).
		Take(&stats.AvailableCredits).Error
	if err != nil {
		return nil, &StorageError{Op: "aggregate credits", Err: err}
	}

	// Drained source credits keep a zero balance, so the transferred total is
	// the sum of completed transfer records, not of credit rows.
	err = db.db.Model(&models.CreditTransfer{}).
		Select("COUNT(*) as count, COALESCE(SUM(amount), 0) as total_amount").
		Take(&stats.TransferredCredits).Error
	if err != nil {
		return nil, &StorageError{Op: "aggregate transfers", Err: err}
	}

	return &stats, nil
}

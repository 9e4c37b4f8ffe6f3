package ledger

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"eco-ledger/chain"
	"eco-ledger/config"
	"eco-ledger/database"
	"eco-ledger/database/models"
)

type testStore struct {
	db   *database.LedgerDB
	path string
}

func newTestStore(t *testing.T) *testStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	db := database.New(&config.DBConfig{Engine: "sqlite", Path: path})
	t.Cleanup(db.Close)
	return &testStore{db: db, path: path}
}

func newTestLedger(t *testing.T) (*Ledger, *testStore) {
	store := newTestStore(t)
	return New(store.db), store
}

func testPayload() *models.VerificationPayload {
	return &models.VerificationPayload{
		FinalScore:    0.87,
		CO2AbsorbedKg: 1250.5,
		CarbonCredits: 12.5,
		TreeCount:     340,
		ComponentScores: map[string]float64{
			"canopy_density": 0.91,
			"species_mix":    0.82,
		},
	}
}

func TestSubmitThenQueryRoundTrip(t *testing.T) {
	l, _ := newTestLedger(t)

	payload := testPayload()
	res, err := l.Submit("ngo-green", "proj-amazon", payload)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.BlockNumber)
	assert.NotEmpty(t, res.ReportID)

	detail, err := l.GetReport(res.ReportID)
	require.NoError(t, err)
	assert.Equal(t, "ngo-green", detail.NgoID)
	assert.Equal(t, "proj-amazon", detail.ProjectID)
	assert.Equal(t, models.ReportStatusSubmitted, detail.Status)
	assert.Equal(t, payload.FinalScore, detail.FinalScore)
	assert.Equal(t, payload.CarbonCredits, detail.CarbonCredits)
	require.NotNil(t, detail.BlockNumber)
	assert.Equal(t, res.BlockNumber, *detail.BlockNumber)
	assert.Equal(t, res.BlockHash, detail.BlockHash)

	require.NotNil(t, detail.Payload)
	assert.Equal(t, payload.TreeCount, detail.Payload.TreeCount)
	assert.Equal(t, payload.ComponentScores, detail.Payload.ComponentScores)

	// The stored hash must recompute from the payload as returned.
	fresh, err := chain.Hash(detail.Payload)
	require.NoError(t, err)
	assert.Equal(t, res.PayloadHash, fresh)
	assert.Equal(t, detail.PayloadHash, fresh)
}

func TestSubmitRejectsInvalidPayload(t *testing.T) {
	l, _ := newTestLedger(t)

	payload := testPayload()
	payload.FinalScore = 1.5

	_, err := l.Submit("ngo-green", "proj-amazon", payload)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = l.Submit("", "proj-amazon", testPayload())
	require.ErrorAs(t, err, &verr)
}

func TestGetReportNotFound(t *testing.T) {
	l, _ := newTestLedger(t)

	_, err := l.GetReport("no-such-report")
	require.ErrorIs(t, err, ErrReportNotFound)
}

func TestSetReportStatus(t *testing.T) {
	l, _ := newTestLedger(t)

	res, err := l.Submit("ngo-green", "proj-amazon", testPayload())
	require.NoError(t, err)

	require.NoError(t, l.SetReportStatus(res.ReportID, models.ReportStatusApproved))

	detail, err := l.GetReport(res.ReportID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusApproved, detail.Status)

	var verr *ValidationError
	require.ErrorAs(t, l.SetReportStatus(res.ReportID, "bogus"), &verr)
	require.ErrorIs(t, l.SetReportStatus("no-such-report", models.ReportStatusRejected), ErrReportNotFound)
}

func TestIssueMintsActiveCredit(t *testing.T) {
	l, _ := newTestLedger(t)

	sub, err := l.Submit("ngo-green", "proj-amazon", testPayload())
	require.NoError(t, err)

	price := 4.2
	res, err := l.Issue("ngo-green", sub.ReportID, 10, &price)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), res.BlockNumber)
	assert.Equal(t, "ngo-green", res.Owner)

	credits, err := l.ListCredits("ngo-green", "", 0)
	require.NoError(t, err)
	require.Len(t, credits, 1)
	assert.Equal(t, res.CreditID, credits[0].CreditID)
	assert.Equal(t, 10.0, credits[0].Amount)
	assert.Equal(t, models.CreditStatusActive, credits[0].Status)
	require.NotNil(t, credits[0].MarketValue)
	assert.InDelta(t, 42.0, *credits[0].MarketValue, 1e-9)
}

func TestIssueUnknownReport(t *testing.T) {
	l, store := newTestLedger(t)

	_, err := l.Issue("ngo-green", "no-such-report", 10, nil)
	require.ErrorIs(t, err, ErrReportNotFound)

	// The rejected issuance must not have grown the chain.
	latest, err := store.db.LatestBlock()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), latest.BlockNumber)
}

func issueCredit(t *testing.T, l *Ledger, owner string, amount float64) *IssueResult {
	t.Helper()
	sub, err := l.Submit(owner, "proj-amazon", testPayload())
	require.NoError(t, err)
	res, err := l.Issue(owner, sub.ReportID, amount, nil)
	require.NoError(t, err)
	return res
}

func TestTransferOwnershipMismatch(t *testing.T) {
	l, store := newTestLedger(t)

	issued := issueCredit(t, l, "ngo-green", 10)
	before, err := store.db.LatestBlock()
	require.NoError(t, err)

	_, err = l.Transfer(issued.CreditID, "ngo-impostor", "buyer-1", nil, nil)
	require.ErrorIs(t, err, ErrOwnershipMismatch)

	// No chain growth and no balance change.
	after, err := store.db.LatestBlock()
	require.NoError(t, err)
	assert.Equal(t, before.BlockNumber, after.BlockNumber)

	credits, err := l.ListCredits("ngo-green", "", 0)
	require.NoError(t, err)
	require.Len(t, credits, 1)
	assert.Equal(t, 10.0, credits[0].Amount)
}

func TestTransferInsufficientBalance(t *testing.T) {
	l, _ := newTestLedger(t)

	issued := issueCredit(t, l, "ngo-green", 10)

	amount := 10.5
	_, err := l.Transfer(issued.CreditID, "ngo-green", "buyer-1", &amount, nil)
	require.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestTransferUnknownCredit(t *testing.T) {
	l, _ := newTestLedger(t)

	_, err := l.Transfer("ECC-none", "ngo-green", "buyer-1", nil, nil)
	require.ErrorIs(t, err, ErrCreditNotFound)
}

func TestPartialTransferSplitsCredit(t *testing.T) {
	l, _ := newTestLedger(t)

	issued := issueCredit(t, l, "ngo-green", 10)

	amount := 4.0
	price := 3.0
	res, err := l.Transfer(issued.CreditID, "ngo-green", "buyer-1", &amount, &price)
	require.NoError(t, err)
	assert.Equal(t, 4.0, res.Amount)
	assert.NotEmpty(t, res.NewCreditID)
	assert.NotEqual(t, issued.CreditID, res.NewCreditID)

	// Source keeps the remainder under the original owner.
	sellerCredits, err := l.ListCredits("ngo-green", "", 0)
	require.NoError(t, err)
	require.Len(t, sellerCredits, 1)
	assert.Equal(t, issued.CreditID, sellerCredits[0].CreditID)
	assert.InDelta(t, 6.0, sellerCredits[0].Amount, 1e-9)
	assert.Equal(t, models.CreditStatusActive, sellerCredits[0].Status)

	// Receiver holds a new active credit for the transferred amount.
	buyerCredits, err := l.ListCredits("buyer-1", "", 0)
	require.NoError(t, err)
	require.Len(t, buyerCredits, 1)
	assert.Equal(t, res.NewCreditID, buyerCredits[0].CreditID)
	assert.InDelta(t, 4.0, buyerCredits[0].Amount, 1e-9)
	require.NotNil(t, buyerCredits[0].MarketValue)
	assert.InDelta(t, 12.0, *buyerCredits[0].MarketValue, 1e-9)
}

func TestFullTransferDrainsCredit(t *testing.T) {
	l, _ := newTestLedger(t)

	issued := issueCredit(t, l, "ngo-green", 10)

	res, err := l.Transfer(issued.CreditID, "ngo-green", "buyer-1", nil, nil)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, res.Amount, 1e-9)

	active, err := l.ListCredits("ngo-green", "", 0)
	require.NoError(t, err)
	assert.Len(t, active, 0)

	drained, err := l.ListCredits("ngo-green", models.CreditStatusTransferred, 0)
	require.NoError(t, err)
	require.Len(t, drained, 1)
	assert.Equal(t, 0.0, drained[0].Amount)
	require.NotNil(t, drained[0].TransferredAt)

	// A drained credit cannot be transferred again.
	_, err = l.Transfer(issued.CreditID, "ngo-green", "buyer-2", nil, nil)
	require.ErrorIs(t, err, ErrCreditNotFound)
}

func TestGetCreditIncludesTransferHistory(t *testing.T) {
	l, _ := newTestLedger(t)

	issued := issueCredit(t, l, "ngo-green", 10)

	amount := 4.0
	transferred, err := l.Transfer(issued.CreditID, "ngo-green", "buyer-1", &amount, nil)
	require.NoError(t, err)

	detail, err := l.GetCredit(issued.CreditID)
	require.NoError(t, err)
	require.NotNil(t, detail.Credit)
	assert.Equal(t, issued.CreditID, detail.Credit.CreditID)
	assert.InDelta(t, 6.0, detail.Credit.Amount, 1e-9)
	require.Len(t, detail.Transfers, 1)
	assert.Equal(t, transferred.TransferID, detail.Transfers[0].TransferID)
	require.NotNil(t, detail.Transfers[0].NewCreditID)
	assert.Equal(t, transferred.NewCreditID, *detail.Transfers[0].NewCreditID)

	// The minted credit has no outgoing transfers yet.
	minted, err := l.GetCredit(transferred.NewCreditID)
	require.NoError(t, err)
	assert.Len(t, minted.Transfers, 0)

	_, err = l.GetCredit("ECC-none")
	require.ErrorIs(t, err, ErrCreditNotFound)
}

func TestOrganizationHistory(t *testing.T) {
	l, _ := newTestLedger(t)

	issued := issueCredit(t, l, "ngo-green", 10)
	_, err := l.Transfer(issued.CreditID, "ngo-green", "buyer-1", nil, nil)
	require.NoError(t, err)

	entries, err := l.OrganizationHistory("ngo-green")
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, models.TxTypeVerificationSubmission, entries[0].TxType)
	assert.Equal(t, models.TxTypeCreditIssuance, entries[1].TxType)
	assert.Equal(t, models.TxTypeCreditTransfer, entries[2].TxType)
	for _, entry := range entries {
		assert.Equal(t, models.TxStatusConfirmed, entry.Status)
		assert.NotEmpty(t, entry.BlockHash)
		assert.NotNil(t, entry.Data)
	}

	buyerEntries, err := l.OrganizationHistory("buyer-1")
	require.NoError(t, err)
	require.Len(t, buyerEntries, 1)
	assert.Equal(t, models.TxTypeCreditTransfer, buyerEntries[0].TxType)

	none, err := l.OrganizationHistory("nobody")
	require.NoError(t, err)
	assert.Len(t, none, 0)
}

func TestChainStats(t *testing.T) {
	l, _ := newTestLedger(t)

	issued := issueCredit(t, l, "ngo-green", 10)
	amount := 4.0
	_, err := l.Transfer(issued.CreditID, "ngo-green", "buyer-1", &amount, nil)
	require.NoError(t, err)

	stats, err := l.GetChainStats()
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.BlockCount)
	assert.Equal(t, int64(3), stats.TransactionCount)
	assert.Equal(t, int64(1), stats.ReportCount)
	assert.Equal(t, int64(2), stats.AvailableCredits.Count)
	assert.InDelta(t, 10.0, stats.AvailableCredits.TotalAmount, 1e-9)
	assert.Equal(t, int64(1), stats.TransferredCredits.Count)
	assert.InDelta(t, 4.0, stats.TransferredCredits.TotalAmount, 1e-9)
}

func TestVerifyChainOnHealthyChain(t *testing.T) {
	l, _ := newTestLedger(t)

	issued := issueCredit(t, l, "ngo-green", 10)
	_, err := l.Transfer(issued.CreditID, "ngo-green", "buyer-1", nil, nil)
	require.NoError(t, err)

	res, err := l.VerifyChain()
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.BlocksChecked)
	assert.Equal(t, int64(3), res.TransactionsChecked)
}

func TestVerifyChainDetectsTamperedPayload(t *testing.T) {
	l, store := newTestLedger(t)

	sub, err := l.Submit("ngo-green", "proj-amazon", testPayload())
	require.NoError(t, err)

	// Rewrite the stored payload behind the store's back.
	raw, err := gorm.Open(sqlite.Open(store.path), &gorm.Config{})
	require.NoError(t, err)
	err = raw.Exec("UPDATE transactions SET data = ? WHERE transaction_id = ?",
		`{"action":"submit_verification_report","project_id":"proj-amazon","verification_data":{"carbon_credits":9999,"co2_absorbed_kg":1250.5,"final_score":0.87,"per_component_scores":{},"tree_count":340}}`,
		sub.TransactionID).Error
	require.NoError(t, err)

	_, err = l.VerifyChain()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tampered")
}

func TestConcurrentSubmitsStayContiguous(t *testing.T) {
	l, store := newTestLedger(t)

	const n = 20
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = l.Submit("ngo-green", "proj-amazon", testPayload())
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	latest, err := store.db.LatestBlock()
	require.NoError(t, err)
	assert.Equal(t, uint64(n), latest.BlockNumber)

	res, err := l.VerifyChain()
	require.NoError(t, err)
	assert.Equal(t, int64(n+1), res.BlocksChecked)
	assert.Equal(t, int64(n), res.TransactionsChecked)
}

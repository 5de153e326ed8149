package storage

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"loanledger/native/collateral"
	"loanledger/native/debt"
	"loanledger/native/installments"
	"loanledger/native/model"
)

func TestMemDB(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	_, err := db.Get([]byte("missing"))
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.Put([]byte("k"), []byte("v")))
	got, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), got)

	ok, err := db.Has([]byte("k"))
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, db.Delete([]byte("k")))
	ok, err = db.Has([]byte("k"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemDBCopiesValues(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	buf := []byte{0x01}
	require.NoError(t, db.Put([]byte("k"), buf))
	// Mutating the caller's buffer must not reach the stored value.
	buf[0] = 0x02
	got, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte{0x01}, got)
}

func TestDebtStoreRoundTrip(t *testing.T) {
	store := NewDebtStore(NewMemDB())

	id := common.HexToHash("0xa1")
	got, err := store.GetDebt(id)
	require.NoError(t, err)
	require.Nil(t, got, "unknown id must resolve to nil, not an error")

	record := &debt.Debt{
		ID:      id,
		Creator: common.HexToAddress("0x42"),
		Balance: big.NewInt(990),
		Fee:     big.NewInt(10),
		Error:   true,
		Model:   "installments",
		Oracle:  "fx",
	}
	require.NoError(t, store.PutDebt(record))

	got, err = store.GetDebt(id)
	require.NoError(t, err)
	require.Equal(t, record, got)
}

func TestDebtStoreNonce(t *testing.T) {
	store := NewDebtStore(NewMemDB())
	for want := uint64(0); want < 5; want++ {
		got, err := store.NextNonce()
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestLoanStoreRoundTrip(t *testing.T) {
	store := NewLoanStore(NewMemDB())

	id := common.HexToHash("0xb2")
	got, err := store.GetLoan(id)
	require.NoError(t, err)
	require.Nil(t, got)

	loan := &installments.Loan{
		ID: id,
		Config: installments.Config{
			Cuota:        big.NewInt(110),
			InterestRate: installments.ToInterestRate(240),
			Installments: 10,
			Duration:     2_592_000,
			TimeUnit:     1,
		},
		State: installments.State{
			Status:      model.StatusOngoing,
			Clock:       5_184_000,
			Paid:        big.NewInt(100),
			PaidBase:    big.NewInt(56),
			Interest:    big.NewInt(44),
			LastPayment: 5_184_000,
			LentTime:    1_000_000,
		},
	}
	require.NoError(t, store.PutLoan(loan))

	got, err = store.GetLoan(id)
	require.NoError(t, err)
	require.Equal(t, loan, got)
}

func TestEntryStoreRoundTrip(t *testing.T) {
	store := NewEntryStore(NewMemDB())

	got, err := store.GetEntry(3)
	require.NoError(t, err)
	require.Nil(t, got)

	entry := &collateral.Entry{
		ID:               3,
		DebtID:           common.HexToHash("0xc3"),
		Token:            "COL",
		Oracle:           "fx",
		Amount:           big.NewInt(1000),
		LiquidationRatio: big.NewInt(4724464025),
		BalanceRatio:     big.NewInt(6442450944),
	}
	require.NoError(t, store.PutEntry(entry))

	got, err = store.GetEntry(3)
	require.NoError(t, err)
	require.Equal(t, entry, got)

	for want := uint64(0); want < 3; want++ {
		id, err := store.NextEntryID()
		require.NoError(t, err)
		require.Equal(t, want, id)
	}
}

func TestEntryStoreAuctionMapping(t *testing.T) {
	store := NewEntryStore(NewMemDB())

	_, ok, err := store.AuctionForEntry(7)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.SetAuction(7, 100))

	// Both directions must survive the write of the opposite one, and later
	// mappings must not disturb earlier ones.
	require.NoError(t, store.SetAuction(8, 101))

	entryID, ok, err := store.EntryForAuction(100)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(7), entryID)

	auctionID, ok, err := store.AuctionForEntry(7)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(100), auctionID)

	entryID, ok, err = store.EntryForAuction(101)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(8), entryID)

	require.NoError(t, store.ClearAuction(7, 100))
	_, ok, err = store.AuctionForEntry(7)
	require.NoError(t, err)
	require.False(t, ok)
	_, ok, err = store.EntryForAuction(100)
	require.NoError(t, err)
	require.False(t, ok)
}

// The typed stores satisfy the engines' persistence requirements end to end:
// an engine wired to a store behaves like one wired to an in-test mock.
func TestStoresDriveInstallmentEngine(t *testing.T) {
	store := NewLoanStore(NewMemDB())
	engine := installments.NewEngine()
	engine.SetState(store)
	now := int64(1_000_000)
	engine.SetNowFunc(func() int64 { return now })

	data, err := installments.EncodeConfig(installments.Config{
		Cuota:        big.NewInt(110),
		InterestRate: installments.ToInterestRate(240),
		Installments: 10,
		Duration:     2_592_000,
		TimeUnit:     1,
	})
	require.NoError(t, err)

	id := common.HexToHash("0x99")
	require.NoError(t, engine.Create(id, data))

	now += 2 * 2_592_000
	closing, err := engine.GetClosingObligation(id)
	require.NoError(t, err)
	require.Equal(t, int64(1144), closing.Int64())

	absorbed, err := engine.AddPaid(id, big.NewInt(1144))
	require.NoError(t, err)
	require.Equal(t, int64(1144), absorbed.Int64())

	status, err := engine.GetStatus(id)
	require.NoError(t, err)
	require.Equal(t, model.StatusPaid, status)
}

package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"loanledger/native/collateral"
	"loanledger/native/debt"
	"loanledger/native/installments"
	"loanledger/native/model"
)

// Key layout. Records are RLP-encoded under a short module prefix; counters
// live next to their records.
const (
	debtPrefix        = "debt/"
	debtNonceKey      = "debt/nonce"
	loanPrefix        = "loan/"
	entryPrefix       = "col/"
	entrySeqKey       = "col/seq"
	auctionPrefix     = "col/auction/"
	entryAuctionIndex = "col/auction/entry/"
)

func uint64Key(prefix string, n uint64) []byte {
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], n)
	return key
}

func hashKey(prefix string, h common.Hash) []byte {
	key := make([]byte, len(prefix)+common.HashLength)
	copy(key, prefix)
	copy(key[len(prefix):], h[:])
	return key
}

// nextCounter reads, increments and persists a uint64 sequence, returning
// the value before the increment.
func nextCounter(db Database, key []byte) (uint64, error) {
	var current uint64
	raw, err := db.Get(key)
	switch {
	case err == nil:
		if len(raw) != 8 {
			return 0, fmt.Errorf("storage: corrupt counter at %q", key)
		}
		current = binary.BigEndian.Uint64(raw)
	case errors.Is(err, ErrNotFound):
		current = 0
	default:
		return 0, err
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, current+1)
	if err := db.Put(key, buf); err != nil {
		return 0, err
	}
	return current, nil
}

// DebtStore persists debt ledger records.
type DebtStore struct {
	mu sync.Mutex
	db Database
}

func NewDebtStore(db Database) *DebtStore {
	return &DebtStore{db: db}
}

// GetDebt returns the stored record or nil when the id is unknown.
func (s *DebtStore) GetDebt(id common.Hash) (*debt.Debt, error) {
	raw, err := s.db.Get(hashKey(debtPrefix, id))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	record := new(debt.Debt)
	if err := rlp.DecodeBytes(raw, record); err != nil {
		return nil, fmt.Errorf("storage: decode debt %s: %w", id.Hex(), err)
	}
	return record, nil
}

func (s *DebtStore) PutDebt(record *debt.Debt) error {
	raw, err := rlp.EncodeToBytes(record.Clone())
	if err != nil {
		return fmt.Errorf("storage: encode debt %s: %w", record.ID.Hex(), err)
	}
	return s.db.Put(hashKey(debtPrefix, record.ID), raw)
}

// NextNonce hands out the monotonically increasing creation nonce.
func (s *DebtStore) NextNonce() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return nextCounter(s.db, []byte(debtNonceKey))
}

// wireLoan flattens the loan for RLP, which has no signed integer support.
type wireLoan struct {
	ID           common.Hash
	Cuota        *big.Int
	InterestRate *big.Int
	Installments uint64
	Duration     uint64
	TimeUnit     uint64
	Status       uint8
	Clock        uint64
	Paid         *big.Int
	PaidBase     *big.Int
	Interest     *big.Int
	LastPayment  uint64
	LentTime     uint64
}

// LoanStore persists installment loan records.
type LoanStore struct {
	db Database
}

func NewLoanStore(db Database) *LoanStore {
	return &LoanStore{db: db}
}

// GetLoan returns the stored loan or nil when the id is unknown.
func (s *LoanStore) GetLoan(id common.Hash) (*installments.Loan, error) {
	raw, err := s.db.Get(hashKey(loanPrefix, id))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	wire := new(wireLoan)
	if err := rlp.DecodeBytes(raw, wire); err != nil {
		return nil, fmt.Errorf("storage: decode loan %s: %w", id.Hex(), err)
	}
	return &installments.Loan{
		ID: wire.ID,
		Config: installments.Config{
			Cuota:        wire.Cuota,
			InterestRate: wire.InterestRate,
			Installments: wire.Installments,
			Duration:     wire.Duration,
			TimeUnit:     wire.TimeUnit,
		},
		State: installments.State{
			Status:      model.Status(wire.Status),
			Clock:       wire.Clock,
			Paid:        wire.Paid,
			PaidBase:    wire.PaidBase,
			Interest:    wire.Interest,
			LastPayment: wire.LastPayment,
			LentTime:    int64(wire.LentTime),
		},
	}, nil
}

func (s *LoanStore) PutLoan(loan *installments.Loan) error {
	clone := loan.Clone()
	wire := &wireLoan{
		ID:           clone.ID,
		Cuota:        clone.Config.Cuota,
		InterestRate: clone.Config.InterestRate,
		Installments: clone.Config.Installments,
		Duration:     clone.Config.Duration,
		TimeUnit:     clone.Config.TimeUnit,
		Status:       uint8(clone.State.Status),
		Clock:        clone.State.Clock,
		Paid:         clone.State.Paid,
		PaidBase:     clone.State.PaidBase,
		Interest:     clone.State.Interest,
		LastPayment:  clone.State.LastPayment,
		LentTime:     uint64(clone.State.LentTime),
	}
	raw, err := rlp.EncodeToBytes(wire)
	if err != nil {
		return fmt.Errorf("storage: encode loan %s: %w", loan.ID.Hex(), err)
	}
	return s.db.Put(hashKey(loanPrefix, loan.ID), raw)
}

// EntryStore persists collateral entries plus the bidirectional mapping
// between entries and their open auctions.
type EntryStore struct {
	mu sync.Mutex
	db Database
}

func NewEntryStore(db Database) *EntryStore {
	return &EntryStore{db: db}
}

// GetEntry returns the stored entry or nil when the id is unknown.
func (s *EntryStore) GetEntry(entryID uint64) (*collateral.Entry, error) {
	raw, err := s.db.Get(uint64Key(entryPrefix, entryID))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	entry := new(collateral.Entry)
	if err := rlp.DecodeBytes(raw, entry); err != nil {
		return nil, fmt.Errorf("storage: decode entry %d: %w", entryID, err)
	}
	return entry, nil
}

func (s *EntryStore) PutEntry(entry *collateral.Entry) error {
	raw, err := rlp.EncodeToBytes(entry.Clone())
	if err != nil {
		return fmt.Errorf("storage: encode entry %d: %w", entry.ID, err)
	}
	return s.db.Put(uint64Key(entryPrefix, entry.ID), raw)
}

// NextEntryID hands out the monotonically increasing entry sequence.
func (s *EntryStore) NextEntryID() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return nextCounter(s.db, []byte(entrySeqKey))
}

// SetAuction records an open auction in both lookup directions. Each value
// gets its own buffer; the backend may hold on to the slice it was given.
func (s *EntryStore) SetAuction(entryID, auctionID uint64) error {
	entryVal := make([]byte, 8)
	binary.BigEndian.PutUint64(entryVal, entryID)
	if err := s.db.Put(uint64Key(auctionPrefix, auctionID), entryVal); err != nil {
		return err
	}
	auctionVal := make([]byte, 8)
	binary.BigEndian.PutUint64(auctionVal, auctionID)
	return s.db.Put(uint64Key(entryAuctionIndex, entryID), auctionVal)
}

// EntryForAuction resolves an auction back to its entry.
func (s *EntryStore) EntryForAuction(auctionID uint64) (uint64, bool, error) {
	raw, err := s.db.Get(uint64Key(auctionPrefix, auctionID))
	if errors.Is(err, ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if len(raw) != 8 {
		return 0, false, fmt.Errorf("storage: corrupt auction index %d", auctionID)
	}
	return binary.BigEndian.Uint64(raw), true, nil
}

// AuctionForEntry reports the entry's open auction, if any.
func (s *EntryStore) AuctionForEntry(entryID uint64) (uint64, bool, error) {
	raw, err := s.db.Get(uint64Key(entryAuctionIndex, entryID))
	if errors.Is(err, ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if len(raw) != 8 {
		return 0, false, fmt.Errorf("storage: corrupt entry auction index %d", entryID)
	}
	return binary.BigEndian.Uint64(raw), true, nil
}

// ClearAuction removes both directions of a settled auction mapping.
func (s *EntryStore) ClearAuction(entryID, auctionID uint64) error {
	if err := s.db.Delete(uint64Key(auctionPrefix, auctionID)); err != nil {
		return err
	}
	return s.db.Delete(uint64Key(entryAuctionIndex, entryID))
}

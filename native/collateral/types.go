package collateral

import (
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"loanledger/core/types"
	"loanledger/native/model"
)

// Entry is one collateralization opened against a debt. Several entries may
// reference the same debt; each tracks its own asset, amount and thresholds.
type Entry struct {
	ID     uint64
	DebtID common.Hash
	// Token names the collateral asset registered with the engine.
	Token string
	// Oracle optionally names the FX feed converting the collateral asset
	// into base units; empty means the asset already is base-denominated.
	Oracle string
	// Amount is the collateral currently held by the engine for this entry.
	Amount *big.Int
	// LiquidationRatio is the Base-scaled collateral/debt ratio at or below
	// which liquidation triggers.
	LiquidationRatio *big.Int
	// BalanceRatio is the Base-scaled target a liquidation sale restores.
	BalanceRatio *big.Int
}

// Clone returns a deep copy so callers can mutate before persisting.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	clone := *e
	if e.Amount != nil {
		clone.Amount = new(big.Int).Set(e.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	if e.LiquidationRatio != nil {
		clone.LiquidationRatio = new(big.Int).Set(e.LiquidationRatio)
	}
	if e.BalanceRatio != nil {
		clone.BalanceRatio = new(big.Int).Set(e.BalanceRatio)
	}
	return &clone
}

// Token is the fungible-asset capability collateral moves through.
type Token interface {
	Transfer(from, to common.Address, amount *big.Int) error
	TransferFrom(spender, from, to common.Address, amount *big.Int) error
}

// DebtLedger is the slice of the debt engine the collateral engine consumes:
// obligation queries to price liquidations and Pay to settle proceeds.
type DebtLedger interface {
	GetStatus(id common.Hash) (model.Status, error)
	GetObligation(id common.Hash, timestamp int64) (*big.Int, bool, error)
	GetClosingObligation(id common.Hash) (*big.Int, error)
	Pay(id common.Hash, amount *big.Int, origin common.Address, oracleData []byte) (*big.Int, *big.Int, error)
}

// AuctionHouse receives claimed collateral and later reports settlement back
// through Engine.AuctionClosed.
type AuctionHouse interface {
	Create(entryID uint64, token string, amountToSell *big.Int, debtID common.Hash, minimumReceived *big.Int) (uint64, error)
}

// EntryRegistry is the ownership capability for collateral entries.
type EntryRegistry interface {
	Register(entryID uint64, owner common.Address) error
	OwnerOf(entryID uint64) (common.Address, error)
	IsApprovedOrOwner(who common.Address, entryID uint64) bool
}

// OwnershipAdapter bridges the hash-keyed core ownership ledger to the
// integer-keyed entry registry.
type OwnershipAdapter struct {
	Ledger *types.OwnershipLedger
}

func entryKey(entryID uint64) common.Hash {
	var key common.Hash
	binary.BigEndian.PutUint64(key[24:], entryID)
	return key
}

// Register implements EntryRegistry.
func (a OwnershipAdapter) Register(entryID uint64, owner common.Address) error {
	return a.Ledger.Register(entryKey(entryID), owner)
}

// OwnerOf implements EntryRegistry.
func (a OwnershipAdapter) OwnerOf(entryID uint64) (common.Address, error) {
	return a.Ledger.OwnerOf(entryKey(entryID))
}

// IsApprovedOrOwner implements EntryRegistry.
func (a OwnershipAdapter) IsApprovedOrOwner(who common.Address, entryID uint64) bool {
	return a.Ledger.IsApprovedOrOwner(who, entryKey(entryID))
}

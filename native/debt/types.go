package debt

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Debt is the per-loan ledger record. Balance and Fee only ever grow through
// payments and shrink through withdrawals; the record itself is never deleted
// so historical queries keep resolving after settlement.
type Debt struct {
	ID      common.Hash
	Creator common.Address
	// Balance is the withdrawable amount accrued from payments, in the
	// engine's settlement token, bounded by the 128-bit ceiling.
	Balance *big.Int
	// Fee is the cumulative loan-currency fee already charged against this
	// debt. The live engine rate, not this record, decides future charges.
	Fee *big.Int
	// Error is the sticky flag raised when the bound model misbehaves. It is
	// recomputed, not reset: the next clean interaction clears it.
	Error bool
	// Model and Oracle name the registered collaborators this debt binds to.
	Model  string
	Oracle string
}

// Clone returns a deep copy so callers can mutate before persisting.
func (d *Debt) Clone() *Debt {
	if d == nil {
		return nil
	}
	clone := *d
	if d.Balance != nil {
		clone.Balance = new(big.Int).Set(d.Balance)
	} else {
		clone.Balance = big.NewInt(0)
	}
	if d.Fee != nil {
		clone.Fee = new(big.Int).Set(d.Fee)
	} else {
		clone.Fee = big.NewInt(0)
	}
	return &clone
}

// Token is the fungible-asset capability the engine settles through. Any
// error aborts the calling operation as a failed transfer.
type Token interface {
	Transfer(from, to common.Address, amount *big.Int) error
	TransferFrom(spender, from, to common.Address, amount *big.Int) error
}

// Registry is the ownership capability consulted for withdrawals. The engine
// never embeds ERC-721-style bookkeeping of its own.
type Registry interface {
	Register(id common.Hash, owner common.Address) error
	IsApprovedOrOwner(who common.Address, id common.Hash) bool
}

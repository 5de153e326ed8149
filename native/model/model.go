package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Status describes the lifecycle position of a debt as reported by its model.
type Status uint8

const (
	StatusOngoing Status = iota + 1
	StatusPaid
	// StatusError is never stored by a model; the debt ledger reports it when
	// the bound model misbehaves or its sticky error flag is set.
	StatusError
)

// Valid reports whether the status value is within the supported range.
func (s Status) Valid() bool {
	switch s {
	case StatusOngoing, StatusPaid, StatusError:
		return true
	default:
		return false
	}
}

func (s Status) String() string {
	switch s {
	case StatusOngoing:
		return "ongoing"
	case StatusPaid:
		return "paid"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Model is the amortization capability a debt delegates to. Implementations
// own the schedule arithmetic; the debt ledger only relies on this contract
// and shields itself from panicking or inconsistent implementations.
type Model interface {
	// Create registers a new loan under the given identifier. The payload is
	// an RLP-encoded, model-specific configuration.
	Create(id common.Hash, data []byte) error

	// AddPaid applies a payment and returns the portion actually absorbed,
	// which must never exceed the requested amount.
	AddPaid(id common.Hash, amount *big.Int) (*big.Int, error)

	// GetStatus reports the loan status, advancing any lazy internal clock.
	GetStatus(id common.Hash) (Status, error)

	// Run advances the model's internal state without a payment. The boolean
	// reports whether stored state changed.
	Run(id common.Hash) (bool, error)

	// GetClosingObligation returns the amount that settles the loan in full
	// at the present time.
	GetClosingObligation(id common.Hash) (*big.Int, error)

	// GetObligation returns the amount due at the given unix timestamp. The
	// boolean is false when the value is an estimate that advancing the clock
	// would still change.
	GetObligation(id common.Hash, timestamp int64) (*big.Int, bool, error)
}

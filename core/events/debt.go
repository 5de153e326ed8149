package events

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"loanledger/core/types"
)

const (
	// TypeDebtCreated marks the registration of a new debt record.
	TypeDebtCreated = "debt.created"
	// TypeDebtPaid marks an accepted payment against a debt.
	TypeDebtPaid = "debt.paid"
	// TypeDebtWithdrawn marks funds leaving a debt balance.
	TypeDebtWithdrawn = "debt.withdrawn"
	// TypeDebtModelError marks a soft model failure that set the sticky flag.
	TypeDebtModelError = "debt.model_error"
)

// DebtCreated records the birth of a debt record bound to a model.
type DebtCreated struct {
	ID      common.Hash
	Owner   common.Address
	Creator common.Address
	Model   string
	Oracle  string
}

// EventType satisfies the events.Event interface.
func (DebtCreated) EventType() string { return TypeDebtCreated }

// Event converts the structured payload into a broadcastable event.
func (e DebtCreated) Event() *types.Event {
	attrs := map[string]string{
		"id":      e.ID.Hex(),
		"owner":   e.Owner.Hex(),
		"creator": e.Creator.Hex(),
		"model":   e.Model,
	}
	if e.Oracle != "" {
		attrs["oracle"] = e.Oracle
	}
	return &types.Event{Type: TypeDebtCreated, Attributes: attrs}
}

// DebtPaid records the settled outcome of a pay or payToken call.
type DebtPaid struct {
	ID        common.Hash
	Origin    common.Address
	Requested *big.Int
	Paid      *big.Int
	PaidToken *big.Int
	Fee       *big.Int
}

// EventType satisfies the events.Event interface.
func (DebtPaid) EventType() string { return TypeDebtPaid }

// Event converts the structured payload into a broadcastable event.
func (e DebtPaid) Event() *types.Event {
	return &types.Event{Type: TypeDebtPaid, Attributes: map[string]string{
		"id":        e.ID.Hex(),
		"origin":    e.Origin.Hex(),
		"requested": bigString(e.Requested),
		"paid":      bigString(e.Paid),
		"paidToken": bigString(e.PaidToken),
		"fee":       bigString(e.Fee),
	}}
}

// DebtWithdrawn records a balance withdrawal to an external address.
type DebtWithdrawn struct {
	ID     common.Hash
	To     common.Address
	Amount *big.Int
}

// EventType satisfies the events.Event interface.
func (DebtWithdrawn) EventType() string { return TypeDebtWithdrawn }

// Event converts the structured payload into a broadcastable event.
func (e DebtWithdrawn) Event() *types.Event {
	return &types.Event{Type: TypeDebtWithdrawn, Attributes: map[string]string{
		"id":     e.ID.Hex(),
		"to":     e.To.Hex(),
		"amount": bigString(e.Amount),
	}}
}

// DebtModelError records a fail-soft model invocation.
type DebtModelError struct {
	ID        common.Hash
	Operation string
}

// EventType satisfies the events.Event interface.
func (DebtModelError) EventType() string { return TypeDebtModelError }

// Event converts the structured payload into a broadcastable event.
func (e DebtModelError) Event() *types.Event {
	return &types.Event{Type: TypeDebtModelError, Attributes: map[string]string{
		"id":        e.ID.Hex(),
		"operation": e.Operation,
	}}
}

func bigString(v *big.Int) string {
	if v == nil {
		return strconv.Itoa(0)
	}
	return v.String()
}

package types

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrAlreadyRegistered = errors.New("ownership: id already registered")
	ErrUnknownID         = errors.New("ownership: unknown id")
)

// OwnershipLedger is a minimal ERC-721-style registry keyed by 32-byte ids.
// The accounting engines never embed ownership bookkeeping; they query this
// registry (or any equivalent) through their own narrow interfaces.
type OwnershipLedger struct {
	mu        sync.RWMutex
	owners    map[common.Hash]common.Address
	approved  map[common.Hash]common.Address
	operators map[common.Address]map[common.Address]bool
}

// NewOwnershipLedger constructs an empty registry.
func NewOwnershipLedger() *OwnershipLedger {
	return &OwnershipLedger{
		owners:    make(map[common.Hash]common.Address),
		approved:  make(map[common.Hash]common.Address),
		operators: make(map[common.Address]map[common.Address]bool),
	}
}

// Register assigns the initial owner of an id. Each id is minted exactly once.
func (o *OwnershipLedger) Register(id common.Hash, owner common.Address) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.owners[id]; ok {
		return ErrAlreadyRegistered
	}
	o.owners[id] = owner
	return nil
}

// OwnerOf returns the current owner of the id.
func (o *OwnershipLedger) OwnerOf(id common.Hash) (common.Address, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	owner, ok := o.owners[id]
	if !ok {
		return common.Address{}, ErrUnknownID
	}
	return owner, nil
}

// Transfer reassigns ownership and clears any single-id approval.
func (o *OwnershipLedger) Transfer(id common.Hash, to common.Address) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.owners[id]; !ok {
		return ErrUnknownID
	}
	o.owners[id] = to
	delete(o.approved, id)
	return nil
}

// Approve grants a single-id approval.
func (o *OwnershipLedger) Approve(id common.Hash, spender common.Address) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.owners[id]; !ok {
		return ErrUnknownID
	}
	o.approved[id] = spender
	return nil
}

// SetApprovalForAll grants or revokes a blanket operator approval.
func (o *OwnershipLedger) SetApprovalForAll(owner, operator common.Address, approved bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	ops, ok := o.operators[owner]
	if !ok {
		ops = make(map[common.Address]bool)
		o.operators[owner] = ops
	}
	ops[operator] = approved
}

// IsApprovedForAll reports whether operator holds a blanket approval.
func (o *OwnershipLedger) IsApprovedForAll(owner, operator common.Address) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.operators[owner][operator]
}

// IsApprovedOrOwner reports whether who may act on the id: the owner, the
// single-id approved spender, or a blanket operator.
func (o *OwnershipLedger) IsApprovedOrOwner(who common.Address, id common.Hash) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	owner, ok := o.owners[id]
	if !ok {
		return false
	}
	if owner == who {
		return true
	}
	if o.approved[id] == who {
		return true
	}
	return o.operators[owner][who]
}

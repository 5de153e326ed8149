package types

import (
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInsufficientBalance   = errors.New("token: insufficient balance")
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
	ErrNegativeAmount        = errors.New("token: amount must not be negative")
)

// TokenLedger is an in-process fungible asset: balances plus allowances with
// ERC-20 transfer semantics. The ledger engines only consume the Token
// interface carved out of it, so a remote asset can be substituted without
// touching the engines.
type TokenLedger struct {
	mu         sync.RWMutex
	symbol     string
	balances   map[common.Address]*big.Int
	allowances map[common.Address]map[common.Address]*big.Int
}

// NewTokenLedger constructs an empty ledger for the given asset symbol.
func NewTokenLedger(symbol string) *TokenLedger {
	return &TokenLedger{
		symbol:     symbol,
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[common.Address]map[common.Address]*big.Int),
	}
}

// Symbol returns the asset ticker the ledger was created with.
func (t *TokenLedger) Symbol() string { return t.symbol }

// Mint credits freshly issued units to the recipient.
func (t *TokenLedger) Mint(to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.credit(to, amount)
	return nil
}

// BalanceOf reports the balance held by the address.
func (t *TokenLedger) BalanceOf(addr common.Address) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if bal, ok := t.balances[addr]; ok {
		return new(big.Int).Set(bal)
	}
	return big.NewInt(0)
}

// Transfer moves amount from the caller to the recipient.
func (t *TokenLedger) Transfer(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.debit(from, amount); err != nil {
		return err
	}
	t.credit(to, amount)
	return nil
}

// Approve authorises the spender to move up to amount on behalf of owner.
func (t *TokenLedger) Approve(owner, spender common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	byOwner, ok := t.allowances[owner]
	if !ok {
		byOwner = make(map[common.Address]*big.Int)
		t.allowances[owner] = byOwner
	}
	byOwner[spender] = new(big.Int).Set(amount)
	return nil
}

// Allowance reports the remaining spend granted by owner to spender.
func (t *TokenLedger) Allowance(owner, spender common.Address) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if byOwner, ok := t.allowances[owner]; ok {
		if amt, ok := byOwner[spender]; ok {
			return new(big.Int).Set(amt)
		}
	}
	return big.NewInt(0)
}

// TransferFrom moves amount from the owner to the recipient, consuming the
// spender's allowance.
func (t *TokenLedger) TransferFrom(spender, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	byOwner := t.allowances[from]
	granted, ok := byOwner[spender]
	if !ok || granted.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	if err := t.debit(from, amount); err != nil {
		return err
	}
	byOwner[spender] = new(big.Int).Sub(granted, amount)
	t.credit(to, amount)
	return nil
}

func (t *TokenLedger) credit(addr common.Address, amount *big.Int) {
	if bal, ok := t.balances[addr]; ok {
		t.balances[addr] = new(big.Int).Add(bal, amount)
		return
	}
	t.balances[addr] = new(big.Int).Set(amount)
}

func (t *TokenLedger) debit(addr common.Address, amount *big.Int) error {
	bal, ok := t.balances[addr]
	if !ok || bal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	t.balances[addr] = new(big.Int).Sub(bal, amount)
	return nil
}

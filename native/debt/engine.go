package debt

import (
	"encoding/binary"
	"errors"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"loanledger/core/events"
	nativecommon "loanledger/native/common"
	"loanledger/native/fixedpoint"
	"loanledger/native/model"
	"loanledger/native/oracle"
	"loanledger/observability"
)

var (
	errNilState            = errors.New("debt engine: state not configured")
	ErrDebtNotFound        = errors.New("debt engine: debt not found")
	ErrDebtExists          = errors.New("debt engine: debt already exists")
	ErrModelNotFound       = errors.New("debt engine: model not registered")
	ErrOracleNotFound      = errors.New("debt engine: oracle not registered")
	ErrCreatingDebt        = errors.New("debt engine: model rejected creation")
	ErrUnauthorized        = errors.New("debt engine: caller not owner or approved")
	ErrZeroAddress         = errors.New("debt engine: destination is the zero address")
	ErrInsufficientBalance = errors.New("debt engine: withdrawal exceeds balance")
	ErrTransferFailed      = errors.New("debt engine: token transfer failed")
	ErrBatchLength         = errors.New("debt engine: batch array length mismatch")
	ErrFeeAboveCap         = errors.New("debt engine: fee above cap")
	ErrInvalidAmount       = errors.New("debt engine: amount must not be negative")
	ErrModelFailure        = errors.New("debt engine: model failed to answer")
)

// MaxFeeBps caps the protocol fee at 1% of every absorbed payment.
const MaxFeeBps = 100

var feeDenominator = big.NewInt(10_000)

const moduleName = "debt"

type engineState interface {
	GetDebt(id common.Hash) (*Debt, error)
	PutDebt(debt *Debt) error
	NextNonce() (uint64, error)
}

// Engine is the debt/payment ledger. It owns balances and fee routing while
// delegating amortization to pluggable models and rate conversion to
// registered oracles. Every public operation runs as one critical section so
// interleaved callers never observe a half-applied payment.
type Engine struct {
	mu         sync.Mutex
	state      engineState
	token      Token
	registry   Registry
	moduleAddr common.Address
	burner     common.Address
	feeBps     uint64
	models     map[string]model.Model
	oracles    map[string]oracle.RateOracle
	emitter    events.Emitter
	pauses     nativecommon.PauseView
}

// NewEngine constructs a debt engine settling through the given token. The
// module address doubles as the ledger identity salted into every debt id, so
// two engine instances never mint colliding identifiers.
func NewEngine(moduleAddr, burner common.Address, token Token, registry Registry) *Engine {
	return &Engine{
		moduleAddr: moduleAddr,
		burner:     burner,
		token:      token,
		registry:   registry,
		models:     make(map[string]model.Model),
		oracles:    make(map[string]oracle.RateOracle),
		emitter:    events.NoopEmitter{},
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetPauses installs the administrative pause view.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetFee updates the live protocol fee. The rate read at payment time is
// authoritative; per-debt records only accumulate what was already charged.
func (e *Engine) SetFee(bps uint64) error {
	if bps > MaxFeeBps {
		return ErrFeeAboveCap
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.feeBps = bps
	return nil
}

// Fee returns the live protocol fee in basis points.
func (e *Engine) Fee() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.feeBps
}

// RegisterModel makes an amortization model available under the given name.
func (e *Engine) RegisterModel(name string, m model.Model) {
	if name == "" || m == nil {
		return
	}
	e.models[name] = m
}

// RegisterOracle makes a rate oracle available under the given name.
func (e *Engine) RegisterOracle(name string, o oracle.RateOracle) {
	if name == "" || o == nil {
		return
	}
	e.oracles[name] = o
}

func (e *Engine) emit(ev events.Event) {
	if e.emitter != nil {
		e.emitter.Emit(ev)
	}
}

// Create registers a debt under a sequential-nonce identifier. The model must
// accept the loan or the whole operation fails with no state change.
func (e *Engine) Create(creator, owner common.Address, modelName, oracleName string, data []byte) (common.Hash, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return common.Hash{}, errNilState
	}
	nonce, err := e.state.NextNonce()
	if err != nil {
		return common.Hash{}, err
	}
	var nonceBytes [8]byte
	binary.BigEndian.PutUint64(nonceBytes[:], nonce)
	id := ethcrypto.Keccak256Hash(e.moduleAddr.Bytes(), creator.Bytes(), nonceBytes[:])
	return e.createDebt(id, creator, owner, modelName, oracleName, data)
}

// Create2 registers a debt under an identifier derived from the creator, an
// explicit salt, and the model payload.
func (e *Engine) Create2(creator, owner common.Address, modelName, oracleName string, salt *big.Int, data []byte) (common.Hash, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return common.Hash{}, errNilState
	}
	id := ethcrypto.Keccak256Hash(e.moduleAddr.Bytes(), creator.Bytes(), saltBytes(salt), data)
	return e.createDebt(id, creator, owner, modelName, oracleName, data)
}

// Create3 registers a debt under an identifier derived from the creator and
// salt alone, letting callers precompute ids independent of the payload.
func (e *Engine) Create3(creator, owner common.Address, modelName, oracleName string, salt *big.Int, data []byte) (common.Hash, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return common.Hash{}, errNilState
	}
	id := ethcrypto.Keccak256Hash(e.moduleAddr.Bytes(), creator.Bytes(), saltBytes(salt))
	return e.createDebt(id, creator, owner, modelName, oracleName, data)
}

func saltBytes(salt *big.Int) []byte {
	if salt == nil {
		return make([]byte, 32)
	}
	return common.BigToHash(salt).Bytes()
}

func (e *Engine) createDebt(id common.Hash, creator, owner common.Address, modelName, oracleName string, data []byte) (common.Hash, error) {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return common.Hash{}, err
	}
	m, ok := e.models[modelName]
	if !ok {
		return common.Hash{}, ErrModelNotFound
	}
	if oracleName != "" {
		if _, ok := e.oracles[oracleName]; !ok {
			return common.Hash{}, ErrOracleNotFound
		}
	}
	if existing, err := e.state.GetDebt(id); err != nil {
		return common.Hash{}, err
	} else if existing != nil {
		return common.Hash{}, ErrDebtExists
	}
	if !e.safeCreate(m, id, data) {
		return common.Hash{}, ErrCreatingDebt
	}
	if err := e.registry.Register(id, owner); err != nil {
		return common.Hash{}, err
	}
	debt := &Debt{
		ID:      id,
		Creator: creator,
		Balance: big.NewInt(0),
		Fee:     big.NewInt(0),
		Model:   modelName,
		Oracle:  oracleName,
	}
	if err := e.state.PutDebt(debt); err != nil {
		return common.Hash{}, err
	}
	e.emit(events.DebtCreated{ID: id, Owner: owner, Creator: creator, Model: modelName, Oracle: oracleName})
	return id, nil
}

// Pay settles up to amount loan-currency units against the debt. The payer is
// charged the token equivalent rounded up; the model decides how much is
// actually absorbed, and a misbehaving model degrades to a zero-effect
// payment with the sticky error flag raised instead of failing the call.
func (e *Engine) Pay(id common.Hash, amount *big.Int, origin common.Address, oracleData []byte) (*big.Int, *big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, nil, err
	}
	debt, err := e.loadDebt(id)
	if err != nil {
		return nil, nil, err
	}
	sample, err := e.readSample(debt, oracleData)
	if err != nil {
		return nil, nil, err
	}
	paid, paidToken, err := e.applyPayment(debt, amount, origin, sample)
	if err != nil {
		return nil, nil, err
	}
	observability.Debt().RecordPayment("amount")
	return paid, paidToken, nil
}

// PayToken settles a payment bounded by the tokens the payer offers. The
// offered tokens convert to a loan-currency request rounding down, so the
// payer is never asked to absorb more debt than their tokens justify.
func (e *Engine) PayToken(id common.Hash, tokensOffered *big.Int, origin common.Address, oracleData []byte) (*big.Int, *big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, nil, err
	}
	debt, err := e.loadDebt(id)
	if err != nil {
		return nil, nil, err
	}
	sample, err := e.readSample(debt, oracleData)
	if err != nil {
		return nil, nil, err
	}
	requested, err := requestFromTokens(tokensOffered, sample)
	if err != nil {
		return nil, nil, err
	}
	paid, paidToken, err := e.applyPayment(debt, requested, origin, sample)
	if err != nil {
		return nil, nil, err
	}
	observability.Debt().RecordPayment("token")
	return paid, paidToken, nil
}

// PayBatch applies one oracle reading to a list of payments from one payer.
// A missing id is a hard precondition failure before any effect; a model
// error on one entry degrades that entry alone and the batch continues.
func (e *Engine) PayBatch(ids []common.Hash, amounts []*big.Int, origin common.Address, oracleName string, oracleData []byte) ([]*big.Int, []*big.Int, error) {
	return e.payBatch(ids, amounts, origin, oracleName, oracleData, false)
}

// PayTokenBatch is PayBatch with per-entry amounts denominated in payer
// tokens instead of loan currency.
func (e *Engine) PayTokenBatch(ids []common.Hash, tokenAmounts []*big.Int, origin common.Address, oracleName string, oracleData []byte) ([]*big.Int, []*big.Int, error) {
	return e.payBatch(ids, tokenAmounts, origin, oracleName, oracleData, true)
}

func (e *Engine) payBatch(ids []common.Hash, amounts []*big.Int, origin common.Address, oracleName string, oracleData []byte, tokenDenominated bool) ([]*big.Int, []*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, nil, err
	}
	if len(ids) != len(amounts) {
		return nil, nil, ErrBatchLength
	}

	var sample *oracle.Sample
	if oracleName != "" {
		o, ok := e.oracles[oracleName]
		if !ok {
			return nil, nil, ErrOracleNotFound
		}
		s, err := o.ReadSample(oracleData)
		if err != nil {
			return nil, nil, err
		}
		sample = &s
	}

	// Existence is all-or-nothing: resolve every id before the first effect.
	for _, id := range ids {
		if _, err := e.loadDebt(id); err != nil {
			return nil, nil, err
		}
	}

	paidOut := make([]*big.Int, len(ids))
	tokensOut := make([]*big.Int, len(ids))
	direction := "amount"
	if tokenDenominated {
		direction = "token"
	}
	for i, id := range ids {
		// Reloaded per entry so a repeated id settles against fresh state.
		debt, err := e.loadDebt(id)
		if err != nil {
			return nil, nil, err
		}
		requested := amounts[i]
		if tokenDenominated {
			converted, err := requestFromTokens(requested, sample)
			if err != nil {
				return nil, nil, err
			}
			requested = converted
		}
		paid, paidToken, err := e.applyPayment(debt, requested, origin, sample)
		if err != nil {
			return nil, nil, err
		}
		observability.Debt().RecordPayment(direction)
		paidOut[i] = paid
		tokensOut[i] = paidToken
	}
	return paidOut, tokensOut, nil
}

func requestFromTokens(tokens *big.Int, sample *oracle.Sample) (*big.Int, error) {
	if tokens == nil || tokens.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	if sample == nil {
		return new(big.Int).Set(tokens), nil
	}
	return oracle.BaseFromTokens(tokens, *sample, fixedpoint.RoundDown)
}

// applyPayment runs the shared settlement path. Funds are pulled for the full
// request first so a model failure can refund everything pulled, leaving the
// payer whole while the sticky flag records the fault.
func (e *Engine) applyPayment(debt *Debt, requested *big.Int, origin common.Address, sample *oracle.Sample) (*big.Int, *big.Int, error) {
	if requested == nil || requested.Sign() < 0 {
		return nil, nil, ErrInvalidAmount
	}
	m, ok := e.models[debt.Model]
	if !ok {
		return nil, nil, ErrModelNotFound
	}

	charged, err := e.tokensFor(requested, sample, fixedpoint.RoundUp)
	if err != nil {
		return nil, nil, err
	}
	// Reject balances that could cross the 128-bit ceiling before moving a
	// single token, so hard aborts never strand partial transfers.
	if _, err := fixedpoint.AddUint128(debt.Balance, charged); err != nil {
		return nil, nil, err
	}
	if charged.Sign() > 0 {
		if err := e.token.TransferFrom(e.moduleAddr, origin, e.moduleAddr, charged); err != nil {
			return nil, nil, errors.Join(ErrTransferFailed, err)
		}
	}

	paid, ok := e.safeAddPaid(m, debt.ID, requested)
	if !ok {
		if charged.Sign() > 0 {
			if err := e.token.Transfer(e.moduleAddr, origin, charged); err != nil {
				return nil, nil, errors.Join(ErrTransferFailed, err)
			}
		}
		debt.Error = true
		if err := e.state.PutDebt(debt); err != nil {
			return nil, nil, err
		}
		observability.Debt().RecordModelError("addPaid")
		slog.Warn("debt model failed to absorb payment", "id", debt.ID.Hex(), "model", debt.Model)
		e.emit(events.DebtModelError{ID: debt.ID, Operation: "addPaid"})
		return big.NewInt(0), big.NewInt(0), nil
	}

	paidToken, err := e.tokensFor(paid, sample, fixedpoint.RoundUp)
	if err != nil {
		return nil, nil, err
	}
	if refund := new(big.Int).Sub(charged, paidToken); refund.Sign() > 0 {
		if err := e.token.Transfer(e.moduleAddr, origin, refund); err != nil {
			return nil, nil, errors.Join(ErrTransferFailed, err)
		}
	}

	// Fee is assessed on the absorbed loan-currency amount at the live rate,
	// then converted through the same sample as the payment itself. The token
	// leg rounds down so the burner, not the balance, absorbs the dust.
	fee := new(big.Int).Mul(paid, new(big.Int).SetUint64(e.feeBps))
	fee.Quo(fee, feeDenominator)
	feeToken, err := e.tokensFor(fee, sample, fixedpoint.RoundDown)
	if err != nil {
		return nil, nil, err
	}
	if feeToken.Sign() > 0 {
		if err := e.token.Transfer(e.moduleAddr, e.burner, feeToken); err != nil {
			return nil, nil, errors.Join(ErrTransferFailed, err)
		}
	}

	credit := new(big.Int).Sub(paidToken, feeToken)
	newBalance, err := fixedpoint.AddUint128(debt.Balance, credit)
	if err != nil {
		return nil, nil, err
	}
	debt.Balance = newBalance
	debt.Fee = new(big.Int).Add(debt.Fee, fee)
	debt.Error = false
	if err := e.state.PutDebt(debt); err != nil {
		return nil, nil, err
	}
	e.emit(events.DebtPaid{ID: debt.ID, Origin: origin, Requested: requested, Paid: paid, PaidToken: paidToken, Fee: fee})
	return paid, paidToken, nil
}

func (e *Engine) tokensFor(amount *big.Int, sample *oracle.Sample, round fixedpoint.Rounding) (*big.Int, error) {
	if sample == nil {
		return new(big.Int).Set(amount), nil
	}
	return oracle.TokensFromBase(amount, *sample, round)
}

func (e *Engine) readSample(debt *Debt, oracleData []byte) (*oracle.Sample, error) {
	if debt.Oracle == "" {
		return nil, nil
	}
	o, ok := e.oracles[debt.Oracle]
	if !ok {
		return nil, ErrOracleNotFound
	}
	sample, err := o.ReadSample(oracleData)
	if err != nil {
		return nil, err
	}
	return &sample, nil
}

// Withdraw moves the full balance to the destination. Withdrawing a zero
// balance is an idempotent no-op, not an error.
func (e *Engine) Withdraw(id common.Hash, caller common.Address, to common.Address) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	debt, err := e.authorizedDebt(id, caller, to)
	if err != nil {
		return nil, err
	}
	amount := new(big.Int).Set(debt.Balance)
	if amount.Sign() == 0 {
		return big.NewInt(0), nil
	}
	return e.settleWithdrawal(debt, to, amount)
}

// WithdrawPartial moves the requested amount, failing hard when it exceeds
// the balance.
func (e *Engine) WithdrawPartial(id common.Hash, caller common.Address, to common.Address, amount *big.Int) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if amount == nil || amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	debt, err := e.authorizedDebt(id, caller, to)
	if err != nil {
		return nil, err
	}
	if amount.Cmp(debt.Balance) > 0 {
		return nil, ErrInsufficientBalance
	}
	if amount.Sign() == 0 {
		return big.NewInt(0), nil
	}
	return e.settleWithdrawal(debt, to, new(big.Int).Set(amount))
}

// WithdrawBatch drains every listed debt into one transfer. Authorization is
// checked per id and any failure aborts the whole batch before funds move.
func (e *Engine) WithdrawBatch(ids []common.Hash, caller common.Address, to common.Address) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if to == (common.Address{}) {
		return nil, ErrZeroAddress
	}
	debts := make([]*Debt, len(ids))
	for i, id := range ids {
		debt, err := e.loadDebt(id)
		if err != nil {
			return nil, err
		}
		if !e.registry.IsApprovedOrOwner(caller, id) {
			return nil, ErrUnauthorized
		}
		debts[i] = debt
	}
	total := big.NewInt(0)
	for _, debt := range debts {
		if debt.Balance.Sign() == 0 {
			continue
		}
		total.Add(total, debt.Balance)
		amount := new(big.Int).Set(debt.Balance)
		debt.Balance = big.NewInt(0)
		if err := e.state.PutDebt(debt); err != nil {
			return nil, err
		}
		e.emit(events.DebtWithdrawn{ID: debt.ID, To: to, Amount: amount})
	}
	if total.Sign() > 0 {
		if err := e.token.Transfer(e.moduleAddr, to, total); err != nil {
			return nil, errors.Join(ErrTransferFailed, err)
		}
		observability.Debt().RecordWithdrawal()
	}
	return total, nil
}

func (e *Engine) authorizedDebt(id common.Hash, caller, to common.Address) (*Debt, error) {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if to == (common.Address{}) {
		return nil, ErrZeroAddress
	}
	debt, err := e.loadDebt(id)
	if err != nil {
		return nil, err
	}
	if !e.registry.IsApprovedOrOwner(caller, id) {
		return nil, ErrUnauthorized
	}
	return debt, nil
}

func (e *Engine) settleWithdrawal(debt *Debt, to common.Address, amount *big.Int) (*big.Int, error) {
	debt.Balance = new(big.Int).Sub(debt.Balance, amount)
	if err := e.state.PutDebt(debt); err != nil {
		return nil, err
	}
	if err := e.token.Transfer(e.moduleAddr, to, amount); err != nil {
		return nil, errors.Join(ErrTransferFailed, err)
	}
	observability.Debt().RecordWithdrawal()
	e.emit(events.DebtWithdrawn{ID: debt.ID, To: to, Amount: amount})
	return amount, nil
}

// Run advances the debt's model without a payment, curing or raising the
// sticky error flag according to the outcome.
func (e *Engine) Run(id common.Hash) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return false, err
	}
	debt, err := e.loadDebt(id)
	if err != nil {
		return false, err
	}
	m, ok := e.models[debt.Model]
	if !ok {
		return false, ErrModelNotFound
	}
	changed, ok := e.safeRun(m, id)
	if !ok {
		debt.Error = true
		if err := e.state.PutDebt(debt); err != nil {
			return false, err
		}
		observability.Debt().RecordModelError("run")
		e.emit(events.DebtModelError{ID: id, Operation: "run"})
		return false, nil
	}
	if debt.Error {
		debt.Error = false
		if err := e.state.PutDebt(debt); err != nil {
			return false, err
		}
	}
	return changed, nil
}

// GetStatus reports the debt status; a raised sticky flag or a failing model
// query yields StatusError without aborting the caller.
func (e *Engine) GetStatus(id common.Hash) (model.Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	debt, err := e.loadDebt(id)
	if err != nil {
		return 0, err
	}
	if debt.Error {
		return model.StatusError, nil
	}
	m, ok := e.models[debt.Model]
	if !ok {
		return 0, ErrModelNotFound
	}
	status, ok := e.safeGetStatus(m, id)
	if !ok {
		if err := e.flagModelError(debt, "getStatus"); err != nil {
			return 0, err
		}
		return model.StatusError, nil
	}
	return status, nil
}

// GetClosingObligation returns the loan-currency amount settling the debt in
// full right now, as reported by its model. A failing model raises the sticky
// flag and the query returns ErrModelFailure instead of unwinding the caller.
func (e *Engine) GetClosingObligation(id common.Hash) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	debt, err := e.loadDebt(id)
	if err != nil {
		return nil, err
	}
	m, ok := e.models[debt.Model]
	if !ok {
		return nil, ErrModelNotFound
	}
	amount, ok := e.safeGetClosingObligation(m, id)
	if !ok {
		if err := e.flagModelError(debt, "getClosingObligation"); err != nil {
			return nil, err
		}
		return nil, ErrModelFailure
	}
	return amount, nil
}

// GetObligation returns the amount due at the timestamp and whether the value
// is exact for it.
func (e *Engine) GetObligation(id common.Hash, timestamp int64) (*big.Int, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	debt, err := e.loadDebt(id)
	if err != nil {
		return nil, false, err
	}
	m, ok := e.models[debt.Model]
	if !ok {
		return nil, false, ErrModelNotFound
	}
	amount, exact, ok := e.safeGetObligation(m, id, timestamp)
	if !ok {
		if err := e.flagModelError(debt, "getObligation"); err != nil {
			return nil, false, err
		}
		return nil, false, ErrModelFailure
	}
	return amount, exact, nil
}

func (e *Engine) flagModelError(debt *Debt, operation string) error {
	debt.Error = true
	if err := e.state.PutDebt(debt); err != nil {
		return err
	}
	observability.Debt().RecordModelError(operation)
	e.emit(events.DebtModelError{ID: debt.ID, Operation: operation})
	return nil
}

// Balance reports the withdrawable funds for the debt.
func (e *Engine) Balance(id common.Hash) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	debt, err := e.loadDebt(id)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(debt.Balance), nil
}

// ChargedFee reports the cumulative fee charged against the debt.
func (e *Engine) ChargedFee(id common.Hash) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	debt, err := e.loadDebt(id)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(debt.Fee), nil
}

func (e *Engine) loadDebt(id common.Hash) (*Debt, error) {
	if e.state == nil {
		return nil, errNilState
	}
	debt, err := e.state.GetDebt(id)
	if err != nil {
		return nil, err
	}
	if debt == nil {
		return nil, ErrDebtNotFound
	}
	return debt.Clone(), nil
}

// safeCreate shields the ledger from a panicking model at creation time.
// Unlike the payment path the failure stays hard: nothing was registered yet.
func (e *Engine) safeCreate(m model.Model, id common.Hash, data []byte) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return m.Create(id, data) == nil
}

// safeAddPaid converts every way a model can misbehave into a single Failed
// outcome: an error, a panic, a nil result, or claiming to absorb more than
// requested.
func (e *Engine) safeAddPaid(m model.Model, id common.Hash, amount *big.Int) (paid *big.Int, ok bool) {
	defer func() {
		if recover() != nil {
			paid, ok = nil, false
		}
	}()
	res, err := m.AddPaid(id, new(big.Int).Set(amount))
	if err != nil || res == nil || res.Sign() < 0 || res.Cmp(amount) > 0 {
		return nil, false
	}
	return res, true
}

func (e *Engine) safeRun(m model.Model, id common.Hash) (changed, ok bool) {
	defer func() {
		if recover() != nil {
			changed, ok = false, false
		}
	}()
	res, err := m.Run(id)
	if err != nil {
		return false, false
	}
	return res, true
}

func (e *Engine) safeGetStatus(m model.Model, id common.Hash) (status model.Status, ok bool) {
	defer func() {
		if recover() != nil {
			status, ok = 0, false
		}
	}()
	res, err := m.GetStatus(id)
	if err != nil || !res.Valid() {
		return 0, false
	}
	return res, true
}

func (e *Engine) safeGetClosingObligation(m model.Model, id common.Hash) (amount *big.Int, ok bool) {
	defer func() {
		if recover() != nil {
			amount, ok = nil, false
		}
	}()
	res, err := m.GetClosingObligation(id)
	if err != nil || res == nil || res.Sign() < 0 {
		return nil, false
	}
	return res, true
}

func (e *Engine) safeGetObligation(m model.Model, id common.Hash, timestamp int64) (amount *big.Int, exact, ok bool) {
	defer func() {
		if recover() != nil {
			amount, exact, ok = nil, false, false
		}
	}()
	res, ex, err := m.GetObligation(id, timestamp)
	if err != nil || res == nil || res.Sign() < 0 {
		return nil, false, false
	}
	return res, ex, true
}

package collateral

import (
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"loanledger/core/events"
	nativecommon "loanledger/native/common"
	"loanledger/native/fixedpoint"
	"loanledger/native/model"
	"loanledger/native/oracle"
	"loanledger/observability"
)

var (
	errNilState               = errors.New("collateral engine: state not configured")
	errNilAuctionHouse        = errors.New("collateral engine: auction house not configured")
	ErrEntryNotFound          = errors.New("collateral engine: entry not found")
	ErrTokenNotFound          = errors.New("collateral engine: token not registered")
	ErrOracleNotFound         = errors.New("collateral engine: oracle not registered")
	ErrInvalidRatios          = errors.New("collateral engine: ratios out of range")
	ErrInvalidAmount          = errors.New("collateral engine: amount must not be negative")
	ErrUnauthorized           = errors.New("collateral engine: caller not owner or approved")
	ErrUnauthorizedAuction    = errors.New("collateral engine: caller is not the auction house")
	ErrZeroAddress            = errors.New("collateral engine: destination is the zero address")
	ErrAuctionExists          = errors.New("collateral engine: auction already open for entry")
	ErrEntryInAuction         = errors.New("collateral engine: entry locked by open auction")
	ErrCannotClaim            = errors.New("collateral engine: debt neither past due nor under-collateralized")
	ErrInsufficientCollateral = errors.New("collateral engine: withdrawal exceeds allowed amount")
	ErrDebtNotErrored         = errors.New("collateral engine: debt not in error status")
)

const moduleName = "collateral"

// Liquidation sales target the obligation plus a 5% penalty buffer.
var (
	penaltyNumerator   = big.NewInt(105)
	penaltyDenominator = big.NewInt(100)
)

type engineState interface {
	GetEntry(entryID uint64) (*Entry, error)
	PutEntry(entry *Entry) error
	NextEntryID() (uint64, error)
	SetAuction(entryID, auctionID uint64) error
	EntryForAuction(auctionID uint64) (uint64, bool, error)
	AuctionForEntry(entryID uint64) (uint64, bool, error)
	ClearAuction(entryID, auctionID uint64) error
}

// Engine maintains over-collateralization for debts and drives the
// liquidation flow: claim hands assets to the auction house, AuctionClosed
// settles proceeds against the debt through the debt ledger.
type Engine struct {
	mu          sync.Mutex
	state       engineState
	debts       DebtLedger
	auctions    AuctionHouse
	auctionAddr common.Address
	registry    EntryRegistry
	moduleAddr  common.Address
	baseToken   Token
	tokens      map[string]Token
	oracles     map[string]oracle.RateOracle
	emitter     events.Emitter
	pauses      nativecommon.PauseView
	nowFn       func() int64
}

// NewEngine constructs a collateral engine. The base token is the debt
// ledger's settlement currency, used to refund auction excess to owners.
func NewEngine(moduleAddr common.Address, debts DebtLedger, baseToken Token, registry EntryRegistry) *Engine {
	return &Engine{
		moduleAddr: moduleAddr,
		debts:      debts,
		baseToken:  baseToken,
		registry:   registry,
		tokens:     make(map[string]Token),
		oracles:    make(map[string]oracle.RateOracle),
		emitter:    events.NoopEmitter{},
		nowFn:      func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetAuctionHouse installs the auction collaborator and the address its
// settlement callbacks must originate from.
func (e *Engine) SetAuctionHouse(house AuctionHouse, addr common.Address) {
	e.auctions = house
	e.auctionAddr = addr
}

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

// SetNowFunc overrides the time source. Primarily intended for tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// RegisterToken makes a collateral asset available under the given name.
func (e *Engine) RegisterToken(name string, t Token) {
	if name == "" || t == nil {
		return
	}
	e.tokens[name] = t
}

// RegisterOracle makes an FX feed available under the given name.
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

// Create opens a collateral entry against an existing debt, pulling the
// initial deposit from the owner. The liquidation ratio must cover the debt
// at least once over and sit strictly below the balance ratio.
func (e *Engine) Create(owner common.Address, debtID common.Hash, tokenName, oracleName string, amount, liquidationRatio, balanceRatio *big.Int) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return 0, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return 0, err
	}
	if amount == nil || amount.Sign() < 0 {
		return 0, ErrInvalidAmount
	}
	if liquidationRatio == nil || balanceRatio == nil ||
		liquidationRatio.Cmp(fixedpoint.BaseInt) < 0 ||
		liquidationRatio.Cmp(balanceRatio) >= 0 {
		return 0, ErrInvalidRatios
	}
	token, ok := e.tokens[tokenName]
	if !ok {
		return 0, ErrTokenNotFound
	}
	if oracleName != "" {
		if _, ok := e.oracles[oracleName]; !ok {
			return 0, ErrOracleNotFound
		}
	}
	if _, err := e.debts.GetStatus(debtID); err != nil {
		return 0, err
	}

	if amount.Sign() > 0 {
		if err := token.TransferFrom(e.moduleAddr, owner, e.moduleAddr, amount); err != nil {
			return 0, err
		}
	}
	entryID, err := e.state.NextEntryID()
	if err != nil {
		return 0, err
	}
	if err := e.registry.Register(entryID, owner); err != nil {
		return 0, err
	}
	entry := &Entry{
		ID:               entryID,
		DebtID:           debtID,
		Token:            tokenName,
		Oracle:           oracleName,
		Amount:           new(big.Int).Set(amount),
		LiquidationRatio: new(big.Int).Set(liquidationRatio),
		BalanceRatio:     new(big.Int).Set(balanceRatio),
	}
	if err := e.state.PutEntry(entry); err != nil {
		return 0, err
	}
	e.emit(events.CollateralCreated{
		EntryID:          entryID,
		DebtID:           debtID,
		Owner:            owner,
		Amount:           amount,
		LiquidationRatio: liquidationRatio,
		BalanceRatio:     balanceRatio,
	})
	return entryID, nil
}

// Deposit tops up an entry. Anyone may deposit on anyone's behalf.
func (e *Engine) Deposit(entryID uint64, from common.Address, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	entry, err := e.loadEntry(entryID)
	if err != nil {
		return err
	}
	token := e.tokens[entry.Token]
	if token == nil {
		return ErrTokenNotFound
	}
	if err := token.TransferFrom(e.moduleAddr, from, e.moduleAddr, amount); err != nil {
		return err
	}
	entry.Amount = new(big.Int).Add(entry.Amount, amount)
	return e.state.PutEntry(entry)
}

// Withdraw releases collateral to the destination as long as the remaining
// position stays at or above the balance ratio. Liquidation-eligible entries
// release nothing.
func (e *Engine) Withdraw(entryID uint64, caller, to common.Address, amount *big.Int, oracleData []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	entry, err := e.loadEntry(entryID)
	if err != nil {
		return err
	}
	if !e.registry.IsApprovedOrOwner(caller, entryID) {
		return ErrUnauthorized
	}
	if _, open, err := e.state.AuctionForEntry(entryID); err != nil {
		return err
	} else if open {
		return ErrEntryInAuction
	}

	sample, err := e.entrySample(entry, oracleData)
	if err != nil {
		return err
	}
	debtBase, err := e.debts.GetClosingObligation(entry.DebtID)
	if err != nil {
		return err
	}
	amountBase, err := e.toBase(entry.Amount, sample)
	if err != nil {
		return err
	}
	headroomBase := CanWithdraw(amountBase, debtBase, entry.LiquidationRatio, entry.BalanceRatio)
	headroom, err := e.fromBase(headroomBase, sample)
	if err != nil {
		return err
	}
	if headroom.Cmp(entry.Amount) > 0 {
		headroom = new(big.Int).Set(entry.Amount)
	}
	if amount.Cmp(headroom) > 0 {
		return ErrInsufficientCollateral
	}

	token := e.tokens[entry.Token]
	if token == nil {
		return ErrTokenNotFound
	}
	entry.Amount = new(big.Int).Sub(entry.Amount, amount)
	if err := e.state.PutEntry(entry); err != nil {
		return err
	}
	return token.Transfer(e.moduleAddr, to, amount)
}

// CanClaim reports whether the entry is claimable: the debt is past due or
// the position sits at or below the liquidation threshold.
func (e *Engine) CanClaim(entryID uint64, oracleData []byte) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry, err := e.loadEntry(entryID)
	if err != nil {
		return false, err
	}
	claimable, _, _, err := e.evaluateClaim(entry, oracleData)
	return claimable, err
}

// Claim hands collateral to the auction house when the debt is past due or
// under-collateralized. The sale targets the closing obligation plus the 5%
// penalty buffer, capped at the collateral held.
func (e *Engine) Claim(entryID uint64, oracleData []byte) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return 0, err
	}
	if e.auctions == nil || e.auctionAddr == (common.Address{}) {
		return 0, errNilAuctionHouse
	}
	entry, err := e.loadEntry(entryID)
	if err != nil {
		return 0, err
	}
	if _, open, err := e.state.AuctionForEntry(entryID); err != nil {
		return 0, err
	} else if open {
		return 0, ErrAuctionExists
	}

	claimable, required, sample, err := e.evaluateClaim(entry, oracleData)
	if err != nil {
		return 0, err
	}
	if !claimable {
		return 0, ErrCannotClaim
	}

	requiredCollateral, err := e.fromBase(required, sample)
	if err != nil {
		return 0, err
	}
	sell := requiredCollateral
	if sell.Cmp(entry.Amount) > 0 {
		sell = new(big.Int).Set(entry.Amount)
	}

	token := e.tokens[entry.Token]
	if token == nil {
		return 0, ErrTokenNotFound
	}
	if err := token.Transfer(e.moduleAddr, e.auctionAddr, sell); err != nil {
		return 0, err
	}
	auctionID, err := e.auctions.Create(entryID, entry.Token, sell, entry.DebtID, required)
	if err != nil {
		return 0, err
	}
	if err := e.state.SetAuction(entryID, auctionID); err != nil {
		return 0, err
	}
	entry.Amount = new(big.Int).Sub(entry.Amount, sell)
	if err := e.state.PutEntry(entry); err != nil {
		return 0, err
	}
	observability.Collateral().RecordClaim()
	e.emit(events.CollateralClaimed{
		EntryID:   entryID,
		DebtID:    entry.DebtID,
		AuctionID: auctionID,
		Sold:      sell,
		Required:  required,
	})
	return auctionID, nil
}

// AuctionClosed settles auction proceeds: the debt is paid down through the
// debt ledger, unsold collateral returns to the entry, and any excess over
// the obligation goes straight to the entry owner.
func (e *Engine) AuctionClosed(caller common.Address, auctionID uint64, leftover, received *big.Int, oracleData []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.auctionAddr {
		return ErrUnauthorizedAuction
	}
	if leftover == nil || leftover.Sign() < 0 || received == nil || received.Sign() < 0 {
		return ErrInvalidAmount
	}
	entryID, ok, err := e.state.EntryForAuction(auctionID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrEntryNotFound
	}
	entry, err := e.loadEntry(entryID)
	if err != nil {
		return err
	}

	obligation, err := e.debts.GetClosingObligation(entry.DebtID)
	if err != nil {
		return err
	}
	toPay := new(big.Int).Set(received)
	if toPay.Cmp(obligation) > 0 {
		toPay.Set(obligation)
	}
	paid := big.NewInt(0)
	if toPay.Sign() > 0 {
		paid, _, err = e.debts.Pay(entry.DebtID, toPay, e.moduleAddr, oracleData)
		if err != nil {
			return err
		}
	}
	refund := new(big.Int).Sub(received, paid)
	if refund.Sign() > 0 {
		owner, err := e.registry.OwnerOf(entryID)
		if err != nil {
			return err
		}
		if err := e.baseToken.Transfer(e.moduleAddr, owner, refund); err != nil {
			return err
		}
	}

	entry.Amount = new(big.Int).Add(entry.Amount, leftover)
	if err := e.state.PutEntry(entry); err != nil {
		return err
	}
	if err := e.state.ClearAuction(entryID, auctionID); err != nil {
		return err
	}
	observability.Collateral().RecordAuctionClosed()
	e.emit(events.AuctionClosed{
		EntryID:  entryID,
		DebtID:   entry.DebtID,
		Received: received,
		Paid:     paid,
		Leftover: leftover,
		Refunded: refund,
	})
	return nil
}

// Redeem is the owner's emergency exit: when the debt sits in error status
// the full remaining collateral transfers out and the entry zeroes.
func (e *Engine) Redeem(entryID uint64, caller, to common.Address) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if to == (common.Address{}) {
		return nil, ErrZeroAddress
	}
	entry, err := e.loadEntry(entryID)
	if err != nil {
		return nil, err
	}
	if !e.registry.IsApprovedOrOwner(caller, entryID) {
		return nil, ErrUnauthorized
	}
	status, err := e.debts.GetStatus(entry.DebtID)
	if err != nil {
		return nil, err
	}
	if status != model.StatusError {
		return nil, ErrDebtNotErrored
	}
	token := e.tokens[entry.Token]
	if token == nil {
		return nil, ErrTokenNotFound
	}
	amount := new(big.Int).Set(entry.Amount)
	entry.Amount = big.NewInt(0)
	if err := e.state.PutEntry(entry); err != nil {
		return nil, err
	}
	if amount.Sign() > 0 {
		if err := token.Transfer(e.moduleAddr, to, amount); err != nil {
			return nil, err
		}
	}
	observability.Collateral().RecordRedeem()
	e.emit(events.CollateralRedeemed{EntryID: entryID, To: to, Amount: amount})
	return amount, nil
}

// evaluateClaim decides claimability and the base-denominated sale target.
func (e *Engine) evaluateClaim(entry *Entry, oracleData []byte) (bool, *big.Int, *oracle.Sample, error) {
	sample, err := e.entrySample(entry, oracleData)
	if err != nil {
		return false, nil, nil, err
	}
	obligationNow, _, err := e.debts.GetObligation(entry.DebtID, e.nowFn())
	if err != nil {
		return false, nil, nil, err
	}
	closing, err := e.debts.GetClosingObligation(entry.DebtID)
	if err != nil {
		return false, nil, nil, err
	}
	amountBase, err := e.toBase(entry.Amount, sample)
	if err != nil {
		return false, nil, nil, err
	}

	pastDue := obligationNow.Sign() > 0
	underwater := InLiquidation(amountBase, closing, entry.LiquidationRatio)
	if !pastDue && !underwater {
		return false, nil, sample, nil
	}

	required, err := fixedpoint.MulDiv(closing, penaltyNumerator, penaltyDenominator, fixedpoint.RoundUp)
	if err != nil {
		return false, nil, nil, err
	}
	return true, required, sample, nil
}

func (e *Engine) entrySample(entry *Entry, oracleData []byte) (*oracle.Sample, error) {
	if entry.Oracle == "" {
		return nil, nil
	}
	o, ok := e.oracles[entry.Oracle]
	if !ok {
		return nil, ErrOracleNotFound
	}
	sample, err := o.ReadSample(oracleData)
	if err != nil {
		return nil, err
	}
	return &sample, nil
}

// toBase values collateral in base units, rounding down so collateral is
// never over-counted.
func (e *Engine) toBase(amount *big.Int, sample *oracle.Sample) (*big.Int, error) {
	if sample == nil {
		return new(big.Int).Set(amount), nil
	}
	return oracle.BaseFromTokens(amount, *sample, fixedpoint.RoundDown)
}

// fromBase converts a base-denominated requirement back into collateral
// units, rounding up so sales always cover the target.
func (e *Engine) fromBase(amountBase *big.Int, sample *oracle.Sample) (*big.Int, error) {
	if sample == nil {
		return new(big.Int).Set(amountBase), nil
	}
	return oracle.TokensFromBase(amountBase, *sample, fixedpoint.RoundUp)
}

func (e *Engine) loadEntry(entryID uint64) (*Entry, error) {
	if e.state == nil {
		return nil, errNilState
	}
	entry, err := e.state.GetEntry(entryID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrEntryNotFound
	}
	return entry.Clone(), nil
}

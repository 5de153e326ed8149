package installments

import (
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"loanledger/native/model"
)

var (
	errNilState      = errors.New("installments engine: state not configured")
	ErrLoanNotFound  = errors.New("installments engine: loan not found")
	ErrLoanExists    = errors.New("installments engine: loan already exists")
	ErrFutureClock   = errors.New("installments engine: clock target in the future")
	ErrClockNegative = errors.New("installments engine: clock target before lent time")
	ErrClockBehind   = errors.New("installments engine: clock target behind current clock")
)

// Loan pairs the immutable schedule with the running state for one debt id.
type Loan struct {
	ID     common.Hash
	Config Config
	State  State
}

// Clone returns a deep copy so callers can mutate freely before persisting.
func (l *Loan) Clone() *Loan {
	if l == nil {
		return nil
	}
	return &Loan{ID: l.ID, Config: l.Config.Clone(), State: l.State.Clone()}
}

type engineState interface {
	GetLoan(id common.Hash) (*Loan, error)
	PutLoan(loan *Loan) error
}

// Engine is the clocked installment model. It satisfies the model.Model
// capability consumed by the debt ledger while owning only schedule
// arithmetic; balances and token movement stay with the ledger.
type Engine struct {
	mu    sync.Mutex
	state engineState
	nowFn func() int64
}

// NewEngine constructs an installment engine backed by wall-clock time.
func NewEngine() *Engine {
	return &Engine{nowFn: func() int64 { return time.Now().Unix() }}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetNowFunc overrides the time source. Primarily intended for tests to
// provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) now() int64 { return e.nowFn() }

var _ model.Model = (*Engine)(nil)

// Create registers a loan for the id. The payload is an RLP-encoded Config;
// the clock starts at one duration, the first installment's due point.
func (e *Engine) Create(id common.Hash, data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return errNilState
	}
	cfg, err := DecodeConfig(data)
	if err != nil {
		return err
	}
	if existing, err := e.state.GetLoan(id); err != nil {
		return err
	} else if existing != nil {
		return ErrLoanExists
	}
	loan := &Loan{
		ID:     id,
		Config: cfg,
		State: State{
			Status:   model.StatusOngoing,
			Clock:    cfg.Duration,
			Paid:     big.NewInt(0),
			PaidBase: big.NewInt(0),
			Interest: big.NewInt(0),
			LentTime: e.now(),
		},
	}
	return e.state.PutLoan(loan)
}

// AddPaid advances the clock to now and applies the payment, interest first,
// the remainder against base debt. The absorbed amount is returned; paying a
// settled loan absorbs nothing and is not an error.
func (e *Engine) AddPaid(id common.Hash, amount *big.Int) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	loan, err := e.loadLoan(id)
	if err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() < 0 {
		return nil, errors.New("installments engine: negative payment")
	}

	loan.State = e.advanceToNow(loan)
	if loan.State.Status == model.StatusPaid {
		if err := e.state.PutLoan(loan); err != nil {
			return nil, err
		}
		return big.NewInt(0), nil
	}

	available := ClosingObligation(loan.Config, loan.State)
	real := new(big.Int).Set(amount)
	if real.Cmp(available) > 0 {
		real.Set(available)
	}

	// Interest not yet covered by past payments settles before principal so
	// PaidBase keeps overdue interest from compounding on covered cuotas.
	settled := new(big.Int).Sub(loan.State.Paid, loan.State.PaidBase)
	pendingInterest := new(big.Int).Sub(loan.State.Interest, settled)
	if pendingInterest.Sign() < 0 {
		pendingInterest.SetInt64(0)
	}
	toInterest := new(big.Int).Set(real)
	if toInterest.Cmp(pendingInterest) > 0 {
		toInterest.Set(pendingInterest)
	}
	toBase := new(big.Int).Sub(real, toInterest)

	loan.State.Paid = new(big.Int).Add(loan.State.Paid, real)
	loan.State.PaidBase = new(big.Int).Add(loan.State.PaidBase, toBase)
	loan.State.LastPayment = loan.State.Clock

	total := new(big.Int).Add(loan.Config.Total(), loan.State.Interest)
	if loan.State.Paid.Cmp(total) >= 0 {
		loan.State.Status = model.StatusPaid
	}
	if err := e.state.PutLoan(loan); err != nil {
		return nil, err
	}
	return real, nil
}

// Run advances the clock without a payment, realizing accrued interest in
// stored state. The boolean reports whether anything changed.
func (e *Engine) Run(id common.Hash) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	loan, err := e.loadLoan(id)
	if err != nil {
		return false, err
	}
	next := e.advanceToNow(loan)
	if next.Clock == loan.State.Clock && next.Interest.Cmp(loan.State.Interest) == 0 {
		return false, nil
	}
	loan.State = next
	if err := e.state.PutLoan(loan); err != nil {
		return false, err
	}
	return true, nil
}

// GetStatus reports the loan status, lazily advancing the clock first.
func (e *Engine) GetStatus(id common.Hash) (model.Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	loan, err := e.loadLoan(id)
	if err != nil {
		return 0, err
	}
	next := e.advanceToNow(loan)
	if next.Clock != loan.State.Clock {
		loan.State = next
		if err := e.state.PutLoan(loan); err != nil {
			return 0, err
		}
	}
	return loan.State.Status, nil
}

// GetClosingObligation returns the amount settling the loan in full now.
func (e *Engine) GetClosingObligation(id common.Hash) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	loan, err := e.loadLoan(id)
	if err != nil {
		return nil, err
	}
	return ClosingObligation(loan.Config, e.advanceToNow(loan)), nil
}

// GetObligation returns the amount due at the given timestamp. The boolean is
// false when the queried time sits beyond the stored clock and reaching it
// would realize additional interest, i.e. the figure is a lower bound.
func (e *Engine) GetObligation(id common.Hash, timestamp int64) (*big.Int, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	loan, err := e.loadLoan(id)
	if err != nil {
		return nil, false, err
	}
	if loan.State.Status == model.StatusPaid {
		return big.NewInt(0), true, nil
	}

	var target uint64
	if timestamp > loan.State.LentTime {
		target = uint64(timestamp - loan.State.LentTime)
	}

	sim := loan.State
	exact := true
	if target > loan.State.Clock {
		sim = Advance(loan.Config, loan.State, target)
		exact = sim.Interest.Cmp(loan.State.Interest) == 0
	}

	due := loan.Config.BaseDebt(target)
	due.Add(due, sim.Interest)
	due.Sub(due, sim.Paid)
	if due.Sign() < 0 {
		due.SetInt64(0)
	}
	return due, exact, nil
}

// FixClock administratively advances a loan's clock to the given timestamp.
// The target may be neither in the future, nor before the lent time, nor
// behind where lazy advancement already placed the clock.
func (e *Engine) FixClock(id common.Hash, timestamp int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	loan, err := e.loadLoan(id)
	if err != nil {
		return err
	}
	if timestamp > e.now() {
		return ErrFutureClock
	}
	if timestamp < loan.State.LentTime {
		return ErrClockNegative
	}
	target := uint64(timestamp - loan.State.LentTime)
	if target < loan.State.Clock {
		return ErrClockBehind
	}
	loan.State = Advance(loan.Config, loan.State, target)
	return e.state.PutLoan(loan)
}

func (e *Engine) loadLoan(id common.Hash) (*Loan, error) {
	if e.state == nil {
		return nil, errNilState
	}
	loan, err := e.state.GetLoan(id)
	if err != nil {
		return nil, err
	}
	if loan == nil {
		return nil, ErrLoanNotFound
	}
	return loan.Clone(), nil
}

func (e *Engine) advanceToNow(loan *Loan) State {
	now := e.now()
	if now <= loan.State.LentTime {
		return loan.State
	}
	return Advance(loan.Config, loan.State, uint64(now-loan.State.LentTime))
}

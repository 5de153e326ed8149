package installments

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"loanledger/native/model"
)

var (
	ErrInvalidCuota        = errors.New("installments: cuota must be positive")
	ErrInvalidInstallments = errors.New("installments: installments must be positive")
	ErrInvalidDuration     = errors.New("installments: duration must be positive")
	ErrInvalidTimeUnit     = errors.New("installments: time unit out of range")
	ErrInvalidRate         = errors.New("installments: interest rate too low for time unit")
)

// interestBase scales the punitive interest formula; together with the
// inverse-encoded rate it keeps accrual in integer arithmetic.
var interestBase = big.NewInt(100_000)

// secondsPerYear is the 360-day banking year used by the rate encoding.
const secondsPerYear = 360 * 86_400

// Config is the immutable amortization schedule of one loan.
type Config struct {
	// Cuota is the fixed amount due per installment.
	Cuota *big.Int
	// InterestRate is the inverse-scaled punitive rate: dividing elapsed
	// seconds by it yields interest. See ToInterestRate.
	InterestRate *big.Int
	// Installments is the number of cuotas in the schedule.
	Installments uint64
	// Duration is the length of one installment in seconds.
	Duration uint64
	// TimeUnit is the accrual granularity; elapsed time below a whole
	// multiple contributes no interest.
	TimeUnit uint64
}

// State is the mutable side of a loan.
type State struct {
	Status model.Status
	// Clock counts virtual seconds since lending, advanced in discrete steps.
	Clock uint64
	// Paid is the cumulative amount absorbed.
	Paid *big.Int
	// PaidBase is the portion of Paid attributed to base installment debt.
	PaidBase *big.Int
	// Interest is the cumulative punitive interest accrued.
	Interest *big.Int
	// LastPayment is the clock value when the last payment landed.
	LastPayment uint64
	// LentTime is the unix timestamp the loan started.
	LentTime int64
}

// ToInterestRate encodes an annual punitive percentage into the inverse rate
// the accrual formula divides by.
func ToInterestRate(annualPercent uint64) *big.Int {
	rate := new(big.Int).Mul(big.NewInt(10_000_000), big.NewInt(secondsPerYear))
	return rate.Quo(rate, new(big.Int).SetUint64(annualPercent))
}

// Validate checks the configuration invariants. A rate so low that a whole
// time unit accrues zero interest is rejected up front; otherwise the advance
// loop could stall forever without progress.
func (c Config) Validate() error {
	if c.Cuota == nil || c.Cuota.Sign() <= 0 {
		return ErrInvalidCuota
	}
	if c.Installments == 0 {
		return ErrInvalidInstallments
	}
	if c.Duration == 0 {
		return ErrInvalidDuration
	}
	if c.TimeUnit == 0 || c.TimeUnit > c.Duration {
		return ErrInvalidTimeUnit
	}
	if c.InterestRate == nil || c.rateUnit().Sign() <= 0 {
		return ErrInvalidRate
	}
	return nil
}

func (c Config) rateUnit() *big.Int {
	if c.InterestRate == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Quo(c.InterestRate, new(big.Int).SetUint64(c.TimeUnit))
}

// Clone returns a deep copy of the config.
func (c Config) Clone() Config {
	clone := c
	if c.Cuota != nil {
		clone.Cuota = new(big.Int).Set(c.Cuota)
	}
	if c.InterestRate != nil {
		clone.InterestRate = new(big.Int).Set(c.InterestRate)
	}
	return clone
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	clone := s
	clone.Paid = cloneOrZero(s.Paid)
	clone.PaidBase = cloneOrZero(s.PaidBase)
	clone.Interest = cloneOrZero(s.Interest)
	return clone
}

func cloneOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// BaseDebt returns the principal due once the clock reached c: one cuota per
// completed installment, capped at the schedule length.
func (c Config) BaseDebt(clock uint64) *big.Int {
	completed := clock / c.Duration
	if completed > c.Installments {
		completed = c.Installments
	}
	return new(big.Int).Mul(c.Cuota, new(big.Int).SetUint64(completed))
}

// Total is the principal owed over the whole schedule.
func (c Config) Total() *big.Int {
	return new(big.Int).Mul(c.Cuota, new(big.Int).SetUint64(c.Installments))
}

// Advance moves a copy of the state's clock up to targetClock, compounding
// punitive interest on overdue base debt. The loop either crosses a whole
// installment boundary or proves that the remaining gap accrues no interest,
// so progress is strict and termination is guaranteed no matter how far the
// loan fell behind.
func Advance(cfg Config, st State, targetClock uint64) State {
	next := st.Clone()
	for next.Clock < targetClock {
		remaining := targetClock - next.Clock
		boundary := cfg.Duration - next.Clock%cfg.Duration

		delta := remaining
		completed := false
		if boundary <= remaining && next.Clock/cfg.Duration < cfg.Installments {
			delta = boundary
			completed = true
		}

		running := new(big.Int).Sub(cfg.BaseDebt(next.Clock+delta), next.PaidBase)
		if running.Sign() < 0 {
			running.SetInt64(0)
		}
		accrued := interestFor(cfg, delta, running)

		if !completed && accrued.Sign() == 0 {
			// Sub-granular tail with no boundary to cross: nothing left to
			// realize this pass.
			break
		}
		next.Clock += delta
		next.Interest = new(big.Int).Add(next.Interest, accrued)
	}
	return next
}

// interestFor computes the punitive interest for delta elapsed seconds over
// the outstanding base debt. Both the elapsed time and the rate are truncated
// to whole time units first, so sub-unit gaps are ignored, not carried over.
func interestFor(cfg Config, delta uint64, runningDebt *big.Int) *big.Int {
	units := delta / cfg.TimeUnit
	if units == 0 || runningDebt.Sign() == 0 {
		return big.NewInt(0)
	}
	accrued := new(big.Int).SetUint64(units)
	accrued.Mul(accrued, interestBase)
	accrued.Mul(accrued, runningDebt)
	return accrued.Quo(accrued, cfg.rateUnit())
}

// ClosingObligation is the amount that settles the loan in full given its
// advanced state: all cuotas plus accrued interest, less what was paid.
func ClosingObligation(cfg Config, st State) *big.Int {
	owed := cfg.Total()
	owed.Add(owed, st.Interest)
	owed.Sub(owed, st.Paid)
	if owed.Sign() < 0 {
		owed.SetInt64(0)
	}
	return owed
}

type wireConfig struct {
	Cuota        *big.Int
	InterestRate *big.Int
	Installments uint64
	Duration     uint64
	TimeUnit     uint64
}

// EncodeConfig renders a config into the opaque payload accepted by the model
// at debt creation time.
func EncodeConfig(cfg Config) ([]byte, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return rlp.EncodeToBytes(wireConfig{
		Cuota:        cfg.Cuota,
		InterestRate: cfg.InterestRate,
		Installments: cfg.Installments,
		Duration:     cfg.Duration,
		TimeUnit:     cfg.TimeUnit,
	})
}

// DecodeConfig parses and validates an encoded config payload.
func DecodeConfig(data []byte) (Config, error) {
	var wire wireConfig
	if err := rlp.DecodeBytes(data, &wire); err != nil {
		return Config{}, err
	}
	cfg := Config{
		Cuota:        wire.Cuota,
		InterestRate: wire.InterestRate,
		Installments: wire.Installments,
		Duration:     wire.Duration,
		TimeUnit:     wire.TimeUnit,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

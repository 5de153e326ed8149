package installments

import (
	"errors"
	"math/big"
	"testing"

	"loanledger/native/model"
)

const day = uint64(86_400)

// testConfig is the canonical schedule used across the package tests: ten
// monthly cuotas of 110 with a 240% annual punitive rate accruing per second.
func testConfig() Config {
	return Config{
		Cuota:        big.NewInt(110),
		InterestRate: ToInterestRate(240),
		Installments: 10,
		Duration:     30 * day,
		TimeUnit:     1,
	}
}

func TestToInterestRate(t *testing.T) {
	// 10,000,000 * 360 * 86,400 / 240
	want := big.NewInt(1_296_000_000_000)
	if got := ToInterestRate(240); got.Cmp(want) != 0 {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := testConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	cases := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"zero cuota", func(c *Config) { c.Cuota = big.NewInt(0) }, ErrInvalidCuota},
		{"nil cuota", func(c *Config) { c.Cuota = nil }, ErrInvalidCuota},
		{"zero installments", func(c *Config) { c.Installments = 0 }, ErrInvalidInstallments},
		{"zero duration", func(c *Config) { c.Duration = 0 }, ErrInvalidDuration},
		{"zero time unit", func(c *Config) { c.TimeUnit = 0 }, ErrInvalidTimeUnit},
		{"time unit above duration", func(c *Config) { c.TimeUnit = c.Duration + 1 }, ErrInvalidTimeUnit},
		{"rate below granularity", func(c *Config) {
			c.InterestRate = big.NewInt(10)
			c.TimeUnit = 100
		}, ErrInvalidRate},
	}
	for _, tc := range cases {
		cfg := testConfig()
		tc.mutate(&cfg)
		if err := cfg.Validate(); !errors.Is(err, tc.want) {
			t.Fatalf("%s: got %v want %v", tc.name, err, tc.want)
		}
	}
}

func TestBaseDebt(t *testing.T) {
	cfg := testConfig()
	cases := []struct {
		clock uint64
		want  int64
	}{
		{0, 0},
		{cfg.Duration - 1, 0},
		{cfg.Duration, 110},
		{2*cfg.Duration + 5, 220},
		{10 * cfg.Duration, 1100},
		{25 * cfg.Duration, 1100}, // capped at the schedule length
	}
	for _, tc := range cases {
		if got := cfg.BaseDebt(tc.clock); got.Int64() != tc.want {
			t.Fatalf("clock %d: got %s want %d", tc.clock, got, tc.want)
		}
	}
	if got := cfg.Total(); got.Int64() != 1100 {
		t.Fatalf("total: got %s want 1100", got)
	}
}

func newState(cfg Config) State {
	return State{
		Status:   model.StatusOngoing,
		Clock:    cfg.Duration,
		Paid:     big.NewInt(0),
		PaidBase: big.NewInt(0),
		Interest: big.NewInt(0),
	}
}

func TestAdvanceAccruesInterest(t *testing.T) {
	cfg := testConfig()
	st := newState(cfg)

	// One full overdue period on two cuotas.
	// 240% annual on 220 for 30/360 of a year is exactly 44.
	next := Advance(cfg, st, 2*cfg.Duration)
	if next.Clock != 2*cfg.Duration {
		t.Fatalf("clock: got %d want %d", next.Clock, 2*cfg.Duration)
	}
	if next.Interest.Int64() != 44 {
		t.Fatalf("interest: got %s want 44", next.Interest)
	}
	// The input state must stay untouched.
	if st.Interest.Sign() != 0 || st.Clock != cfg.Duration {
		t.Fatal("Advance mutated its input state")
	}
}

func TestAdvancePartialPayments(t *testing.T) {
	cfg := testConfig()
	st := newState(cfg)
	// Two cuotas already paid against principal: no overdue debt remains in
	// the second period, so the same advance accrues nothing.
	st.Paid = big.NewInt(220)
	st.PaidBase = big.NewInt(220)

	next := Advance(cfg, st, 2*cfg.Duration)
	if next.Interest.Sign() != 0 {
		t.Fatalf("covered debt accrued interest: %s", next.Interest)
	}
}

func TestAdvanceSubUnitGap(t *testing.T) {
	cfg := testConfig()
	cfg.TimeUnit = day
	st := newState(cfg)

	// A gap below one time unit with no installment boundary inside it must
	// leave the state untouched rather than spinning.
	next := Advance(cfg, st, cfg.Duration+day-1)
	if next.Clock != st.Clock {
		t.Fatalf("clock moved across sub-unit gap: %d", next.Clock)
	}
	if next.Interest.Sign() != 0 {
		t.Fatalf("sub-unit gap accrued interest: %s", next.Interest)
	}
}

func TestAdvancePastScheduleEnd(t *testing.T) {
	cfg := testConfig()
	st := newState(cfg)

	// Five periods past settlement of the full schedule: interest keeps
	// accruing on the whole outstanding principal and the loop terminates.
	target := (cfg.Installments + 5) * cfg.Duration
	next := Advance(cfg, st, target)
	if next.Clock != target {
		t.Fatalf("clock: got %d want %d", next.Clock, target)
	}
	if next.Interest.Sign() <= 0 {
		t.Fatal("no interest accrued past schedule end")
	}
	// Advancing further still strictly grows interest.
	further := Advance(cfg, next, target+cfg.Duration)
	if further.Interest.Cmp(next.Interest) <= 0 {
		t.Fatal("interest stopped accruing on outstanding principal")
	}
}

func TestClosingObligation(t *testing.T) {
	cfg := testConfig()
	st := newState(cfg)
	if got := ClosingObligation(cfg, st); got.Int64() != 1100 {
		t.Fatalf("fresh loan: got %s want 1100", got)
	}
	st.Interest = big.NewInt(44)
	st.Paid = big.NewInt(200)
	if got := ClosingObligation(cfg, st); got.Int64() != 944 {
		t.Fatalf("partially paid: got %s want 944", got)
	}
	st.Paid = big.NewInt(5000)
	if got := ClosingObligation(cfg, st); got.Sign() != 0 {
		t.Fatalf("overpaid loan must owe zero, got %s", got)
	}
}

func TestEncodeDecodeConfig(t *testing.T) {
	cfg := testConfig()
	data, err := EncodeConfig(cfg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeConfig(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Cuota.Cmp(cfg.Cuota) != 0 || got.InterestRate.Cmp(cfg.InterestRate) != 0 ||
		got.Installments != cfg.Installments || got.Duration != cfg.Duration || got.TimeUnit != cfg.TimeUnit {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	bad := cfg
	bad.Cuota = big.NewInt(0)
	if _, err := EncodeConfig(bad); !errors.Is(err, ErrInvalidCuota) {
		t.Fatalf("invalid config encoded: %v", err)
	}
	if _, err := DecodeConfig([]byte{0x01, 0x02}); err == nil {
		t.Fatal("garbage payload decoded")
	}
}

package installments

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"loanledger/native/model"
)

type mockState struct {
	loans  map[common.Hash]*Loan
	getErr error
	putErr error
	puts   int
}

func newMockState() *mockState {
	return &mockState{loans: make(map[common.Hash]*Loan)}
}

func (m *mockState) GetLoan(id common.Hash) (*Loan, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.loans[id], nil
}

func (m *mockState) PutLoan(loan *Loan) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.puts++
	m.loans[loan.ID] = loan.Clone()
	return nil
}

func newTestEngine(t *testing.T, lentTime int64) (*Engine, *mockState, *int64, common.Hash) {
	t.Helper()
	state := newMockState()
	engine := NewEngine()
	engine.SetState(state)
	now := lentTime
	engine.SetNowFunc(func() int64 { return now })

	id := common.HexToHash("0x01")
	data, err := EncodeConfig(testConfig())
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := engine.Create(id, data); err != nil {
		t.Fatalf("create: %v", err)
	}
	return engine, state, &now, id
}

func TestEngineCreate(t *testing.T) {
	engine, state, _, id := newTestEngine(t, 1_000_000)

	loan := state.loans[id]
	if loan == nil {
		t.Fatal("loan not persisted")
	}
	if loan.State.Status != model.StatusOngoing {
		t.Fatalf("status: got %v want ongoing", loan.State.Status)
	}
	if loan.State.Clock != loan.Config.Duration {
		t.Fatalf("clock starts at %d, want one duration %d", loan.State.Clock, loan.Config.Duration)
	}
	if loan.State.LentTime != 1_000_000 {
		t.Fatalf("lent time: got %d", loan.State.LentTime)
	}

	data, _ := EncodeConfig(testConfig())
	if err := engine.Create(id, data); !errors.Is(err, ErrLoanExists) {
		t.Fatalf("duplicate create: got %v", err)
	}
	if err := engine.Create(common.HexToHash("0x02"), []byte{0x01}); err == nil {
		t.Fatal("garbage config accepted")
	}
}

func TestEngineObligationSchedule(t *testing.T) {
	cfg := testConfig()
	engine, _, now, id := newTestEngine(t, 1_000_000)

	// Nothing is due at lending time.
	due, exact, err := engine.GetObligation(id, 1_000_000)
	if err != nil {
		t.Fatalf("obligation at lent time: %v", err)
	}
	if due.Sign() != 0 || !exact {
		t.Fatalf("at lent time: due %s exact %v, want 0 exact", due, exact)
	}

	// The first cuota falls due exactly one duration in.
	due, exact, err = engine.GetObligation(id, 1_000_000+int64(cfg.Duration))
	if err != nil {
		t.Fatalf("obligation at first due point: %v", err)
	}
	if due.Int64() != 110 || !exact {
		t.Fatalf("first due point: due %s exact %v, want 110 exact", due, exact)
	}

	// Querying a future point that would realize interest is flagged inexact.
	due, exact, err = engine.GetObligation(id, 1_000_000+int64(2*cfg.Duration))
	if err != nil {
		t.Fatalf("future obligation: %v", err)
	}
	if due.Int64() != 220+44 {
		t.Fatalf("two periods out: due %s want 264", due)
	}
	if exact {
		t.Fatal("interest-realizing projection reported as exact")
	}

	// Two overdue periods: full schedule plus 44 interest settles the loan.
	*now = 1_000_000 + int64(2*cfg.Duration)
	closing, err := engine.GetClosingObligation(id)
	if err != nil {
		t.Fatalf("closing obligation: %v", err)
	}
	if closing.Int64() != 1144 {
		t.Fatalf("closing: got %s want 1144", closing)
	}
}

func TestEngineAddPaidInterestFirst(t *testing.T) {
	cfg := testConfig()
	engine, state, now, id := newTestEngine(t, 1_000_000)
	*now = 1_000_000 + int64(2*cfg.Duration)

	absorbed, err := engine.AddPaid(id, big.NewInt(100))
	if err != nil {
		t.Fatalf("add paid: %v", err)
	}
	if absorbed.Int64() != 100 {
		t.Fatalf("absorbed %s want 100", absorbed)
	}
	st := state.loans[id].State
	if st.Paid.Int64() != 100 {
		t.Fatalf("paid: got %s", st.Paid)
	}
	// 44 of accrued interest settles before principal.
	if st.PaidBase.Int64() != 56 {
		t.Fatalf("paid base: got %s want 56", st.PaidBase)
	}
	if st.LastPayment != 2*cfg.Duration {
		t.Fatalf("last payment clock: got %d", st.LastPayment)
	}
	if st.Status != model.StatusOngoing {
		t.Fatalf("status: got %v", st.Status)
	}
}

func TestEngineAddPaidSettlement(t *testing.T) {
	cfg := testConfig()
	engine, state, now, id := newTestEngine(t, 1_000_000)
	*now = 1_000_000 + int64(2*cfg.Duration)

	// Overpaying absorbs only the closing obligation.
	absorbed, err := engine.AddPaid(id, big.NewInt(5_000))
	if err != nil {
		t.Fatalf("add paid: %v", err)
	}
	if absorbed.Int64() != 1144 {
		t.Fatalf("absorbed %s want 1144", absorbed)
	}
	if got := state.loans[id].State.Status; got != model.StatusPaid {
		t.Fatalf("status after settlement: %v", got)
	}

	// Settled loans absorb nothing, without error.
	absorbed, err = engine.AddPaid(id, big.NewInt(50))
	if err != nil {
		t.Fatalf("add paid on settled loan: %v", err)
	}
	if absorbed.Sign() != 0 {
		t.Fatalf("settled loan absorbed %s", absorbed)
	}

	due, exact, err := engine.GetObligation(id, *now+int64(cfg.Duration))
	if err != nil {
		t.Fatalf("obligation on settled loan: %v", err)
	}
	if due.Sign() != 0 || !exact {
		t.Fatalf("settled loan: due %s exact %v", due, exact)
	}
}

func TestEngineAddPaidRejectsNegative(t *testing.T) {
	engine, _, _, id := newTestEngine(t, 1_000_000)
	if _, err := engine.AddPaid(id, big.NewInt(-1)); err == nil {
		t.Fatal("negative payment accepted")
	}
	if _, err := engine.AddPaid(common.HexToHash("0xff"), big.NewInt(1)); !errors.Is(err, ErrLoanNotFound) {
		t.Fatalf("unknown loan: got %v", err)
	}
}

func TestEngineRun(t *testing.T) {
	cfg := testConfig()
	engine, state, now, id := newTestEngine(t, 1_000_000)

	// No time has passed beyond the stored clock.
	changed, err := engine.Run(id)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if changed {
		t.Fatal("run reported change with nothing to realize")
	}

	*now = 1_000_000 + int64(2*cfg.Duration)
	changed, err = engine.Run(id)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !changed {
		t.Fatal("run did not realize overdue interest")
	}
	st := state.loans[id].State
	if st.Clock != 2*cfg.Duration || st.Interest.Int64() != 44 {
		t.Fatalf("state after run: clock %d interest %s", st.Clock, st.Interest)
	}

	// A second run at the same instant is a no-op.
	changed, err = engine.Run(id)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if changed {
		t.Fatal("idempotent run reported change")
	}
}

func TestEngineFixClock(t *testing.T) {
	cfg := testConfig()
	engine, state, now, id := newTestEngine(t, 1_000_000)
	*now = 1_000_000 + int64(3*cfg.Duration)

	if err := engine.FixClock(id, *now+1); !errors.Is(err, ErrFutureClock) {
		t.Fatalf("future target: got %v", err)
	}
	if err := engine.FixClock(id, 999_999); !errors.Is(err, ErrClockNegative) {
		t.Fatalf("target before lent time: got %v", err)
	}

	if err := engine.FixClock(id, 1_000_000+int64(2*cfg.Duration)); err != nil {
		t.Fatalf("fix clock: %v", err)
	}
	st := state.loans[id].State
	if st.Clock != 2*cfg.Duration {
		t.Fatalf("clock: got %d want %d", st.Clock, 2*cfg.Duration)
	}
	if st.Interest.Int64() != 44 {
		t.Fatalf("interest: got %s want 44", st.Interest)
	}

	// The clock never moves backwards, even administratively.
	if err := engine.FixClock(id, 1_000_000+int64(cfg.Duration)); !errors.Is(err, ErrClockBehind) {
		t.Fatalf("backwards target: got %v", err)
	}
}

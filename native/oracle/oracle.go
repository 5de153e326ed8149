package oracle

import (
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"

	"loanledger/native/fixedpoint"
)

var (
	// ErrInvalidRate marks a sample with a zero numerator or denominator.
	// Callers treat it as a hard failure, never a saturating rate.
	ErrInvalidRate = errors.New("oracle: invalid rate sample")
	// ErrNoSample indicates the oracle has no rate loaded for the request.
	ErrNoSample = errors.New("oracle: no sample available")
)

// Sample expresses an exchange rate: Tokens units of the payment currency are
// worth Equivalent units of the loan (base) currency.
type Sample struct {
	Tokens     *big.Int
	Equivalent *big.Int
}

// Validate enforces that both legs of the rate are strictly positive.
func (s Sample) Validate() error {
	if s.Tokens == nil || s.Tokens.Sign() <= 0 {
		return ErrInvalidRate
	}
	if s.Equivalent == nil || s.Equivalent.Sign() <= 0 {
		return ErrInvalidRate
	}
	return nil
}

// Clone returns a deep copy so callers can hold the sample across mutations.
func (s Sample) Clone() Sample {
	clone := Sample{}
	if s.Tokens != nil {
		clone.Tokens = new(big.Int).Set(s.Tokens)
	}
	if s.Equivalent != nil {
		clone.Equivalent = new(big.Int).Set(s.Equivalent)
	}
	return clone
}

// RateOracle resolves opaque rate data into a validated sample. The ledger
// engines never interpret the payload themselves.
type RateOracle interface {
	ReadSample(data []byte) (Sample, error)
}

type wireSample struct {
	Tokens     *big.Int
	Equivalent *big.Int
}

// DecodeSample parses an RLP-encoded (tokens, equivalent) pair and validates
// both legs.
func DecodeSample(data []byte) (Sample, error) {
	var wire wireSample
	if err := rlp.DecodeBytes(data, &wire); err != nil {
		return Sample{}, ErrInvalidRate
	}
	sample := Sample{Tokens: wire.Tokens, Equivalent: wire.Equivalent}
	if err := sample.Validate(); err != nil {
		return Sample{}, err
	}
	return sample, nil
}

// EncodeSample renders a sample into the wire form accepted by DecodeSample.
func EncodeSample(sample Sample) ([]byte, error) {
	if err := sample.Validate(); err != nil {
		return nil, err
	}
	return rlp.EncodeToBytes(wireSample{Tokens: sample.Tokens, Equivalent: sample.Equivalent})
}

// TokensFromBase converts a loan-currency amount into payment-currency tokens.
// The rounding direction is chosen per call site: charging a payer rounds up,
// scaling a refund rounds down. The two conversion directions are deliberately
// independent; they are not inverses once rounding applies.
func TokensFromBase(amount *big.Int, sample Sample, round fixedpoint.Rounding) (*big.Int, error) {
	if err := sample.Validate(); err != nil {
		return nil, err
	}
	return fixedpoint.MulDiv(amount, sample.Tokens, sample.Equivalent, round)
}

// BaseFromTokens converts payment-currency tokens into the loan-currency
// amount they justify. Crediting debt from tokens supplied rounds down so the
// payer is never over-credited.
func BaseFromTokens(tokens *big.Int, sample Sample, round fixedpoint.Rounding) (*big.Int, error) {
	if err := sample.Validate(); err != nil {
		return nil, err
	}
	return fixedpoint.MulDiv(tokens, sample.Equivalent, sample.Tokens, round)
}

// FeedOracle is an in-memory RateOracle fed by an operator or test harness.
// When the request carries an inline payload it is decoded directly, so the
// feed doubles as the pass-through adapter for self-describing rate data.
type FeedOracle struct {
	mu     sync.RWMutex
	sample *Sample
}

// NewFeedOracle constructs an empty feed.
func NewFeedOracle() *FeedOracle {
	return &FeedOracle{}
}

// SetSample loads the rate returned for payload-less reads.
func (f *FeedOracle) SetSample(sample Sample) error {
	if err := sample.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := sample.Clone()
	f.sample = &clone
	return nil
}

// ReadSample implements RateOracle.
func (f *FeedOracle) ReadSample(data []byte) (Sample, error) {
	if len(data) > 0 {
		return DecodeSample(data)
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.sample == nil {
		return Sample{}, ErrNoSample
	}
	return f.sample.Clone(), nil
}

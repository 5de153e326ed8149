package fixedpoint

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

// Base is the fixed-point unit representing 100%. All ratio parameters across
// the ledger (liquidation ratio, balance ratio, oracle conversions) are scaled
// by this constant so comparisons stay in integer arithmetic.
const Base = uint64(1) << 32

var (
	ErrDivisionByZero = errors.New("fixedpoint: division by zero")
	ErrNegativeValue  = errors.New("fixedpoint: negative value")
	ErrOverflow       = errors.New("fixedpoint: uint128 overflow")

	// BaseInt is Base as a big integer for call sites composing larger
	// expressions.
	BaseInt = new(big.Int).SetUint64(Base)

	maxUint128 = func() *big.Int {
		max := new(big.Int).Lsh(big.NewInt(1), 128)
		return max.Sub(max, big.NewInt(1))
	}()
)

// Rounding selects the direction fractional results are settled towards. The
// system-wide policy is to round in favour of the debt owner: token amounts
// charged round up, amounts credited round down. Every call site picks its
// direction explicitly.
type Rounding uint8

const (
	RoundDown Rounding = iota
	RoundUp
)

// MulDiv computes a*b/den with the requested rounding. The intermediate
// product runs through uint256 so two full uint128 operands never overflow. A
// zero denominator is a hard error, never a saturating result.
func MulDiv(a, b, den *big.Int, round Rounding) (*big.Int, error) {
	if a == nil || b == nil || den == nil {
		return nil, ErrNegativeValue
	}
	if a.Sign() < 0 || b.Sign() < 0 || den.Sign() < 0 {
		return nil, ErrNegativeValue
	}
	if den.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	ua, overflow := uint256.FromBig(a)
	if !overflow {
		if ub, over := uint256.FromBig(b); !over {
			if ud, over := uint256.FromBig(den); !over {
				if prod, carry := new(uint256.Int).MulOverflow(ua, ub); !carry {
					quot := new(uint256.Int).Div(prod, ud)
					if round == RoundUp {
						rem := new(uint256.Int).Mod(prod, ud)
						if !rem.IsZero() {
							quot.AddUint64(quot, 1)
						}
					}
					return quot.ToBig(), nil
				}
			}
		}
	}
	// Operands beyond 256 bits fall back to big.Int, same rounding rules.
	prod := new(big.Int).Mul(a, b)
	quot, rem := new(big.Int).QuoRem(prod, den, new(big.Int))
	if round == RoundUp && rem.Sign() != 0 {
		quot.Add(quot, big.NewInt(1))
	}
	return quot, nil
}

// DivCeil divides a by den rounding any fractional remainder up.
func DivCeil(a, den *big.Int) (*big.Int, error) {
	return MulDiv(a, big.NewInt(1), den, RoundUp)
}

// EncodePercent converts a whole percentage into a Base-scaled ratio, e.g.
// EncodePercent(150) yields the encoding of 1.5x.
func EncodePercent(percent uint64) *big.Int {
	v := new(big.Int).SetUint64(percent)
	v.Mul(v, BaseInt)
	return v.Quo(v, big.NewInt(100))
}

// ApplyRatio scales amount by a Base-encoded ratio.
func ApplyRatio(amount, ratio *big.Int, round Rounding) (*big.Int, error) {
	return MulDiv(amount, ratio, BaseInt, round)
}

// CheckUint128 verifies the value fits the 128-bit balance ceiling. Callers
// treat the failure as a hard overflow rather than wrapping.
func CheckUint128(v *big.Int) error {
	if v == nil || v.Sign() < 0 {
		return ErrNegativeValue
	}
	if v.Cmp(maxUint128) > 0 {
		return ErrOverflow
	}
	return nil
}

// AddUint128 returns a+b, failing when the sum crosses the 128-bit ceiling.
func AddUint128(a, b *big.Int) (*big.Int, error) {
	if a == nil || b == nil || a.Sign() < 0 || b.Sign() < 0 {
		return nil, ErrNegativeValue
	}
	sum := new(big.Int).Add(a, b)
	if err := CheckUint128(sum); err != nil {
		return nil, err
	}
	return sum, nil
}

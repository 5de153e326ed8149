package collateral

import (
	"math/big"

	"loanledger/native/fixedpoint"
)

// Ratio returns the Base-scaled collateral/debt ratio. A zero debt has no
// liquidation risk, reported through ok=false rather than an infinite value.
func Ratio(amountBase, debtBase *big.Int) (*big.Int, bool) {
	if debtBase == nil || debtBase.Sign() == 0 {
		return nil, false
	}
	ratio, err := fixedpoint.MulDiv(amountBase, fixedpoint.BaseInt, debtBase, fixedpoint.RoundDown)
	if err != nil {
		return nil, false
	}
	return ratio, true
}

// InLiquidation reports whether the position is at or below the liquidation
// threshold. The boundary is inclusive: a ratio exactly equal to the
// threshold is already liquidatable.
func InLiquidation(amountBase, debtBase, liquidationRatio *big.Int) bool {
	ratio, ok := Ratio(amountBase, debtBase)
	if !ok {
		return false
	}
	return ratio.Cmp(liquidationRatio) <= 0
}

// RequiredBalance returns the base-denominated collateral that must be sold
// and applied to the debt so the remaining position meets the balance ratio:
// the x solving (amount-x)/(debt-x) = balanceRatio. Positions not yet in
// liquidation owe nothing; the result is capped at the collateral held.
func RequiredBalance(amountBase, debtBase, liquidationRatio, balanceRatio *big.Int) *big.Int {
	if !InLiquidation(amountBase, debtBase, liquidationRatio) {
		return big.NewInt(0)
	}
	num := new(big.Int).Mul(balanceRatio, debtBase)
	num.Sub(num, new(big.Int).Mul(fixedpoint.BaseInt, amountBase))
	if num.Sign() <= 0 {
		return big.NewInt(0)
	}
	den := new(big.Int).Sub(balanceRatio, fixedpoint.BaseInt)
	required, err := fixedpoint.MulDiv(num, big.NewInt(1), den, fixedpoint.RoundUp)
	if err != nil {
		return big.NewInt(0)
	}
	if required.Cmp(amountBase) > 0 {
		return new(big.Int).Set(amountBase)
	}
	return required
}

// CanWithdraw returns the largest base-denominated amount removable while the
// position stays at or above the balance ratio. Once liquidation-eligible
// nothing may leave; with no debt everything may.
func CanWithdraw(amountBase, debtBase, liquidationRatio, balanceRatio *big.Int) *big.Int {
	if debtBase == nil || debtBase.Sign() == 0 {
		return new(big.Int).Set(amountBase)
	}
	if InLiquidation(amountBase, debtBase, liquidationRatio) {
		return big.NewInt(0)
	}
	floor, err := fixedpoint.MulDiv(balanceRatio, debtBase, fixedpoint.BaseInt, fixedpoint.RoundUp)
	if err != nil {
		return big.NewInt(0)
	}
	headroom := new(big.Int).Sub(amountBase, floor)
	if headroom.Sign() < 0 {
		return big.NewInt(0)
	}
	return headroom
}

package vault

import "math/big"

// accruedInterest computes elapsed * rate * principal at the given time.
// Time before the loan's start accrues nothing.
func accruedInterest(loan *Loan, now int64) *big.Int {
	if loan == nil || loan.Amount == nil || loan.InterestRate == nil {
		return big.NewInt(0)
	}
	elapsed := now - loan.Start
	if elapsed < 0 {
		elapsed = 0
	}
	accrued := new(big.Int).Mul(big.NewInt(elapsed), loan.InterestRate)
	return accrued.Mul(accrued, loan.Amount)
}

// interestCeiling computes principal * schedule, the pre-agreed bound on
// accrued interest.
func interestCeiling(loan *Loan) *big.Int {
	if loan == nil || loan.Amount == nil || loan.Schedule == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Mul(loan.Amount, loan.Schedule)
}

// liquidatable reports whether accrued interest has reached the ceiling. The
// loan is healthy while ceiling > accrued; liquidatable is the negation. A
// loan with no outstanding principal has nothing to liquidate: both sides of
// the comparison collapse to zero, so the guard keeps a fully repaid
// borrower's collateral out of auction.
func liquidatable(loan *Loan, now int64) bool {
	if loan == nil || loan.Amount == nil || loan.Amount.Sign() <= 0 {
		return false
	}
	return accruedInterest(loan, now).Cmp(interestCeiling(loan)) >= 0
}

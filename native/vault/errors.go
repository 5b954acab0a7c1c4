package vault

import "errors"

// Every failure rejects the whole operation with no partial effect. The
// sentinels below form the caller-visible taxonomy; operations wrap them
// with context where useful.
var (
	errNilState = errors.New("vault engine: state not configured")

	// ErrVaultExists rejects registering a catalog digest a second time.
	ErrVaultExists = errors.New("vault engine: vault already initialised")
	// ErrVaultNotFound rejects operations on an uninitialised vault.
	ErrVaultNotFound = errors.New("vault engine: vault not initialised")
	// ErrVaultExpired rejects deposits and commitments after expiration.
	ErrVaultExpired = errors.New("vault engine: vault expired")

	// ErrInvalidAmount rejects nil, zero, or negative amounts.
	ErrInvalidAmount = errors.New("vault engine: amount must be positive")
	// ErrAmountAboveMax rejects a drawdown above the approved maximum.
	ErrAmountAboveMax = errors.New("vault engine: amount exceeds approved maximum")
	// ErrInsufficientLiquidity rejects a drawdown or redemption above the
	// vault's undeployed balance.
	ErrInsufficientLiquidity = errors.New("vault engine: amount exceeds vault balance")
	// ErrRepayExceedsDebt rejects repaying more than the outstanding principal.
	ErrRepayExceedsDebt = errors.New("vault engine: repayment exceeds outstanding principal")

	// ErrLoanNotFound rejects addressing a loan index that does not exist.
	ErrLoanNotFound = errors.New("vault engine: loan not found")
	// ErrLoanLiquidated rejects operations on a loan already handed to auction.
	ErrLoanLiquidated = errors.New("vault engine: loan already liquidated")
	// ErrNotLiquidatable rejects liquidation while accrued interest is below
	// the agreed ceiling.
	ErrNotLiquidatable = errors.New("vault engine: loan is not liquidatable")

	// ErrProofRejected rejects a loan commitment whose terms are not provably
	// in the vault's catalog.
	ErrProofRejected = errors.New("vault engine: catalog inclusion proof rejected")
	// ErrCollateralOwnership rejects a commitment by an address that does not
	// hold the collateral, or that would still hold it after transfer.
	ErrCollateralOwnership = errors.New("vault engine: collateral ownership check failed")

	// ErrNotDelegated rejects a redemption by a spender the owner has not
	// approved.
	ErrNotDelegated = errors.New("vault engine: caller not approved for owner's shares")
)

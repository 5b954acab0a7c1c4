package vault

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"bondvault/core/types"
	"bondvault/crypto"
)

const (
	EventTypeVaultCreated   = "vault.created"
	EventTypeVaultLent      = "vault.lent"
	EventTypeVaultRedeemed  = "vault.redeemed"
	EventTypeLoanCreated    = "loan.created"
	EventTypeLoanRepaid     = "loan.repaid"
	EventTypeLoanLiquidated = "loan.liquidated"
)

// NewVaultCreatedEvent returns the canonical payload for a newly registered
// vault.
func NewVaultCreatedEvent(digest [32]byte, v *Vault) *types.Event {
	attrs := map[string]string{
		"catalogDigest": hex.EncodeToString(digest[:]),
	}
	if v != nil {
		attrs["appraiser"] = v.Appraiser.String()
		attrs["expiration"] = strconv.FormatInt(v.Expiration, 10)
	}
	return &types.Event{Type: EventTypeVaultCreated, Attributes: attrs}
}

// NewVaultLentEvent returns the payload emitted when a lender deposits
// reserve into the vault.
func NewVaultLentEvent(digest [32]byte, lender crypto.Address, amount *big.Int) *types.Event {
	return &types.Event{Type: EventTypeVaultLent, Attributes: map[string]string{
		"catalogDigest": hex.EncodeToString(digest[:]),
		"lender":        lender.String(),
		"amount":        bigString(amount),
	}}
}

// NewVaultRedeemedEvent returns the payload emitted when shares are burned
// against the vault's undeployed balance.
func NewVaultRedeemedEvent(digest [32]byte, owner crypto.Address, amount *big.Int) *types.Event {
	return &types.Event{Type: EventTypeVaultRedeemed, Attributes: map[string]string{
		"catalogDigest": hex.EncodeToString(digest[:]),
		"owner":         owner.String(),
		"amount":        bigString(amount),
	}}
}

// NewLoanCreatedEvent returns the canonical payload for a funded loan
// commitment.
func NewLoanCreatedEvent(digest, collateralID [32]byte, borrower crypto.Address, amount *big.Int) *types.Event {
	return &types.Event{Type: EventTypeLoanCreated, Attributes: map[string]string{
		"catalogDigest": hex.EncodeToString(digest[:]),
		"collateralId":  hex.EncodeToString(collateralID[:]),
		"borrower":      borrower.String(),
		"amount":        bigString(amount),
	}}
}

// NewLoanRepaidEvent returns the payload emitted when outstanding principal
// is paid down.
func NewLoanRepaidEvent(digest [32]byte, borrower crypto.Address, index uint64, amount, outstanding *big.Int) *types.Event {
	return &types.Event{Type: EventTypeLoanRepaid, Attributes: map[string]string{
		"catalogDigest": hex.EncodeToString(digest[:]),
		"borrower":      borrower.String(),
		"loanIndex":     strconv.FormatUint(index, 10),
		"amount":        bigString(amount),
		"outstanding":   bigString(outstanding),
	}}
}

// NewLoanLiquidatedEvent returns the payload that hands the loan and its
// collateral to the external auction process.
func NewLoanLiquidatedEvent(digest [32]byte, borrower crypto.Address, index uint64, loan *Loan) *types.Event {
	attrs := map[string]string{
		"catalogDigest": hex.EncodeToString(digest[:]),
		"borrower":      borrower.String(),
		"loanIndex":     strconv.FormatUint(index, 10),
	}
	if loan != nil {
		attrs["collateralId"] = hex.EncodeToString(loan.CollateralID[:])
		attrs["outstanding"] = bigString(loan.Amount)
	}
	return &types.Event{Type: EventTypeLoanLiquidated, Attributes: attrs}
}

type vaultEvent struct {
	evt *types.Event
}

func (e vaultEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

// Event exposes the underlying typed payload to subscribers.
func (e vaultEvent) Event() *types.Event { return e.evt }

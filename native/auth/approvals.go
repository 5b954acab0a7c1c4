package auth

import (
	"errors"

	"bondvault/crypto"
)

var errNilShares = errors.New("operator approval: share ledger not configured")

// DelegationSetter is the share-ledger capability operator approval writes
// through. The approval logic never touches any other ledger surface.
type DelegationSetter interface {
	SetDelegation(owner, spender crypto.Address, approved bool) error
}

// Approvals toggles a spender's authority over an owner's shares, gated by a
// signed, deadline-bounded, nonce-protected message from the owner.
type Approvals struct {
	authority *Authority
	shares    DelegationSetter
}

// NewApprovals wires the approval flow to the signature authority and the
// share ledger.
func NewApprovals(authority *Authority, shares DelegationSetter) *Approvals {
	return &Approvals{authority: authority, shares: shares}
}

// Approve verifies the owner's signature over (owner, spender, approved,
// nonce, deadline) and, on success, records the delegation. The embedded
// nonce is the owner's current operator-approval counter; the hash is
// rebuilt from it under the authority's lock so concurrent submissions of
// the same signed message cannot both consume it.
func (ap *Approvals) Approve(owner, spender crypto.Address, approved bool, deadline int64, sig []byte) error {
	if ap == nil || ap.shares == nil {
		return errNilShares
	}
	hashAt := func(nonce uint64) [32]byte {
		return OperatorApprovalHash(owner, spender, approved, nonce, deadline)
	}
	if err := ap.authority.VerifyCurrent(PurposeOperatorApproval, owner, hashAt, deadline, sig); err != nil {
		return err
	}
	return ap.shares.SetDelegation(owner, spender, approved)
}

package vault

import (
	"errors"
	"math/big"
	"testing"

	"bondvault/crypto"
	"bondvault/native/auth"
	"bondvault/native/token"
)

func TestLendMintsSharesAndTracksSupply(t *testing.T) {
	env := newTestEnv(t)
	key, appraiser := genKey(t)
	digest := collateralID(0x10)
	lender := makeAddress(0x01)

	env.createVault(t, key, appraiser, digest, env.now+1000)
	env.fund(t, lender, 1500)

	if err := env.engine.Lend(lender, digest, big.NewInt(1000)); err != nil {
		t.Fatalf("lend: %v", err)
	}
	checkVault(t, env, digest, 1000, 1000)

	shares, err := env.ledger.BalanceOf(lender, digest)
	if err != nil {
		t.Fatalf("share balance: %v", err)
	}
	if shares.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("shares: got %s want 1000", shares)
	}
	if bal := env.reserveBalance(t, lender); bal.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("lender reserve: got %s want 500", bal)
	}
	if bal := env.reserveBalance(t, env.custody); bal.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("custody reserve: got %s want 1000", bal)
	}
}

func TestLendRejectsUnknownAndExpiredVault(t *testing.T) {
	env := newTestEnv(t)
	key, appraiser := genKey(t)
	digest := collateralID(0x11)
	lender := makeAddress(0x02)
	env.fund(t, lender, 1000)

	if err := env.engine.Lend(lender, digest, big.NewInt(100)); !errors.Is(err, ErrVaultNotFound) {
		t.Fatalf("expected unknown vault rejection, got %v", err)
	}

	env.createVault(t, key, appraiser, digest, 100)
	env.now = 100
	if err := env.engine.Lend(lender, digest, big.NewInt(100)); !errors.Is(err, ErrVaultExpired) {
		t.Fatalf("expected expired vault rejection, got %v", err)
	}
	if bal := env.reserveBalance(t, lender); bal.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("failed lend must not move reserve: got %s", bal)
	}
}

func TestLendRejectsUnfundedLender(t *testing.T) {
	env := newTestEnv(t)
	key, appraiser := genKey(t)
	digest := collateralID(0x12)
	lender := makeAddress(0x03)

	env.createVault(t, key, appraiser, digest, env.now+1000)
	err := env.engine.Lend(lender, digest, big.NewInt(100))
	if !errors.Is(err, token.ErrInsufficientBalance) {
		t.Fatalf("expected pull failure, got %v", err)
	}
	checkVault(t, env, digest, 0, 0)
}

func TestRedeemBurnsSharesAgainstBalance(t *testing.T) {
	env := newTestEnv(t)
	key, appraiser := genKey(t)
	digest := collateralID(0x13)
	lender := makeAddress(0x04)

	env.createVault(t, key, appraiser, digest, env.now+1000)
	env.fund(t, lender, 1000)
	if err := env.engine.Lend(lender, digest, big.NewInt(1000)); err != nil {
		t.Fatalf("lend: %v", err)
	}

	if err := env.engine.Redeem(lender, lender, digest, big.NewInt(400)); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	checkVault(t, env, digest, 600, 600)
	shares, err := env.ledger.BalanceOf(lender, digest)
	if err != nil {
		t.Fatalf("share balance: %v", err)
	}
	if shares.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("shares after redeem: got %s want 600", shares)
	}
	if bal := env.reserveBalance(t, lender); bal.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("lender reserve after redeem: got %s want 400", bal)
	}
}

func TestRedeemByApprovedOperator(t *testing.T) {
	env := newTestEnv(t)
	key, appraiser := genKey(t)
	digest := collateralID(0x14)
	ownerKey, owner := genKey(t)
	operator := makeAddress(0x05)

	env.createVault(t, key, appraiser, digest, env.now+1000)
	env.fund(t, owner, 500)
	if err := env.engine.Lend(owner, digest, big.NewInt(500)); err != nil {
		t.Fatalf("lend: %v", err)
	}

	// Without delegation the operator is rejected.
	if err := env.engine.Redeem(operator, owner, digest, big.NewInt(100)); !errors.Is(err, ErrNotDelegated) {
		t.Fatalf("expected delegation rejection, got %v", err)
	}

	approvals := auth.NewApprovals(env.authority, env.ledger)
	deadline := env.now + 100
	nonce, err := env.authority.Nonce(owner, auth.PurposeOperatorApproval)
	if err != nil {
		t.Fatalf("nonce: %v", err)
	}
	structHash := auth.OperatorApprovalHash(owner, operator, true, nonce, deadline)
	domainDigest := env.authority.Domain().Digest(structHash)
	sig, err := ownerKey.Sign(domainDigest[:])
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := approvals.Approve(owner, operator, true, deadline, sig); err != nil {
		t.Fatalf("approve operator: %v", err)
	}

	if err := env.engine.Redeem(operator, owner, digest, big.NewInt(100)); err != nil {
		t.Fatalf("delegated redeem: %v", err)
	}
	checkVault(t, env, digest, 400, 400)
	// Proceeds go to the share owner, not the operator.
	if bal := env.reserveBalance(t, owner); bal.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("owner reserve: got %s want 100", bal)
	}
}

func TestRedeemRejectsBeyondUndeployedBalance(t *testing.T) {
	env := newTestEnv(t)
	key, appraiser := genKey(t)
	lender := makeAddress(0x06)
	borrowerKey, borrower := genKey(t)
	_ = borrowerKey

	terms := LoanTerms{
		CollateralID: collateralID(0xa0),
		MaxAmount:    big.NewInt(500),
		InterestRate: big.NewInt(1),
		Start:        0,
		End:          10_000,
		Schedule:     big.NewInt(2),
	}
	digest, proofs := buildCatalog(t, []LoanTerms{terms})

	env.createVault(t, key, appraiser, digest, env.now+1000)
	env.fund(t, lender, 1000)
	if err := env.engine.Lend(lender, digest, big.NewInt(1000)); err != nil {
		t.Fatalf("lend: %v", err)
	}
	if err := env.ledger.Register(terms.CollateralID, borrower); err != nil {
		t.Fatalf("register collateral: %v", err)
	}
	if err := env.engine.CommitToLoan(borrower, digest, terms, big.NewInt(400), proofs[0]); err != nil {
		t.Fatalf("commit: %v", err)
	}

	// 600 undeployed; the lender still holds 1000 shares but can only
	// reclaim what is not out on loan.
	if err := env.engine.Redeem(lender, lender, digest, big.NewInt(700)); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected liquidity rejection, got %v", err)
	}
	checkVault(t, env, digest, 1000, 600)
}

var errShareLedgerOffline = errors.New("share ledger offline")

// mintFailShares fails every mint, standing in for a share ledger whose
// backing store errors mid-operation.
type mintFailShares struct{}

func (mintFailShares) Mint(crypto.Address, [32]byte, *big.Int) error { return errShareLedgerOffline }
func (mintFailShares) Burn(crypto.Address, [32]byte, *big.Int) error { return nil }
func (mintFailShares) BalanceOf(crypto.Address, [32]byte) (*big.Int, error) {
	return big.NewInt(0), nil
}
func (mintFailShares) Delegated(crypto.Address, crypto.Address) (bool, error) { return false, nil }

func TestLendShareLedgerFailureLeavesVaultUnwritten(t *testing.T) {
	env := newTestEnv(t)
	key, appraiser := genKey(t)
	digest := collateralID(0x15)
	lender := makeAddress(0x07)

	env.createVault(t, key, appraiser, digest, env.now+1000)
	env.fund(t, lender, 1000)

	broken := NewEngine(env.authority, env.ledger, env.ledger, mintFailShares{})
	broken.SetState(env.state)
	broken.SetNowFunc(func() int64 { return env.now })

	if err := broken.Lend(lender, digest, big.NewInt(500)); !errors.Is(err, errShareLedgerOffline) {
		t.Fatalf("expected share ledger failure, got %v", err)
	}
	// The vault record is written only after every ledger call has succeeded,
	// so a collaborator failure leaves supply and balance untouched.
	checkVault(t, env, digest, 0, 0)
}

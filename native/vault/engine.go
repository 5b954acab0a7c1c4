package vault

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"bondvault/core/events"
	"bondvault/core/types"
	"bondvault/crypto"
	"bondvault/merkle"
	"bondvault/native/auth"
)

// engineState is the persistence surface the engine writes vault and loan
// records through. Loans are addressed as (digest, borrower, index); the
// index is stable and records are append-only.
type engineState interface {
	VaultGet(digest [32]byte) (*Vault, bool, error)
	VaultPut(digest [32]byte, v *Vault) error
	LoanGet(digest [32]byte, borrower crypto.Address, index uint64) (*Loan, bool, error)
	LoanAppend(digest [32]byte, borrower crypto.Address, loan *Loan) (uint64, error)
	LoanUpdate(digest [32]byte, borrower crypto.Address, index uint64, loan *Loan) error
	Loans(digest [32]byte, borrower crypto.Address) ([]*Loan, error)
}

// ReserveMover is the reserve-asset transfer capability. Pull must report
// failure distinctly so the engine can abort before touching its accounting.
type ReserveMover interface {
	Pull(from crypto.Address, amount *big.Int) error
	Push(to crypto.Address, amount *big.Int) error
}

// CollateralCustody is the single-asset custody capability for posted
// collateral.
type CollateralCustody interface {
	OwnerOf(id [32]byte) (crypto.Address, error)
	MoveIn(from crypto.Address, id [32]byte) error
	Custody() crypto.Address
}

// ShareLedger is the narrow share-token capability the engine consumes.
type ShareLedger interface {
	Mint(account crypto.Address, class [32]byte, amount *big.Int) error
	Burn(account crypto.Address, class [32]byte, amount *big.Int) error
	BalanceOf(account crypto.Address, class [32]byte) (*big.Int, error)
	Delegated(owner, spender crypto.Address) (bool, error)
}

// Engine is the vault/loan state machine. Every public operation is atomic:
// all preconditions are checked before any mutation, and the mutex serialises
// callers so check-then-mutate sequences cannot interleave.
type Engine struct {
	mu         sync.Mutex
	state      engineState
	authority  *auth.Authority
	reserve    ReserveMover
	collateral CollateralCustody
	shares     ShareLedger
	emitter    events.Emitter
	nowFn      func() int64
}

// NewEngine constructs a vault engine bound to the signature authority and
// the external ledger capabilities.
func NewEngine(authority *auth.Authority, reserve ReserveMover, collateral CollateralCustody, shares ShareLedger) *Engine {
	return &Engine{
		authority:  authority,
		reserve:    reserve,
		collateral: collateral,
		shares:     shares,
		emitter:    events.NoopEmitter{},
		nowFn:      func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily
// intended for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(vaultEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (e *Engine) loadVault(digest [32]byte) (*Vault, error) {
	v, ok, err := e.state.VaultGet(digest)
	if err != nil {
		return nil, err
	}
	if !ok || v == nil || v.Appraiser.IsZero() {
		return nil, ErrVaultNotFound
	}
	if v.TotalSupply == nil {
		v.TotalSupply = big.NewInt(0)
	}
	if v.Balance == nil {
		v.Balance = big.NewInt(0)
	}
	return v, nil
}

// CreateVault registers a bond vault for the catalog digest, gated by the
// appraiser's signed, deadline-bounded, nonce-protected message. A digest
// registers at most once: creation is rejected when the vault is already
// initialised, never when it is fresh.
func (e *Engine) CreateVault(appraiser crypto.Address, catalogDigest [32]byte, expiration, deadline int64, sig []byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok, err := e.state.VaultGet(catalogDigest); err != nil {
		return err
	} else if ok {
		return ErrVaultExists
	}

	hashAt := func(nonce uint64) [32]byte {
		return auth.VaultCreationHash(appraiser, catalogDigest, expiration, nonce, deadline)
	}
	if err := e.authority.VerifyCurrent(auth.PurposeVaultCreation, appraiser, hashAt, deadline, sig); err != nil {
		return err
	}

	v := &Vault{
		Appraiser:   appraiser,
		TotalSupply: big.NewInt(0),
		Balance:     big.NewInt(0),
		Expiration:  expiration,
	}
	if err := e.state.VaultPut(catalogDigest, v); err != nil {
		return err
	}
	e.emit(NewVaultCreatedEvent(catalogDigest, v))
	return nil
}

// Lend deposits amount of the reserve asset into the vault and mints the
// lender an equal number of shares of the vault's class.
func (e *Engine) Lend(lender crypto.Address, catalogDigest [32]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := checkAmount(amount); err != nil {
		return err
	}
	v, err := e.loadVault(catalogDigest)
	if err != nil {
		return err
	}
	if e.now() >= v.Expiration {
		return ErrVaultExpired
	}

	// Ledger movements go first; the vault record is written only once every
	// collaborator has succeeded.
	if err := e.reserve.Pull(lender, amount); err != nil {
		return err
	}
	if err := e.shares.Mint(lender, catalogDigest, amount); err != nil {
		return err
	}
	v.TotalSupply = new(big.Int).Add(v.TotalSupply, amount)
	v.Balance = new(big.Int).Add(v.Balance, amount)
	if err := e.state.VaultPut(catalogDigest, v); err != nil {
		return err
	}
	e.emit(NewVaultLentEvent(catalogDigest, lender, amount))
	return nil
}

// Redeem burns amount of the owner's shares 1:1 against the vault's
// undeployed balance and pays the reserve back to the owner. The caller must
// be the owner or a spender the owner has delegated via operator approval.
func (e *Engine) Redeem(caller, owner crypto.Address, catalogDigest [32]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := checkAmount(amount); err != nil {
		return err
	}
	if !caller.Equal(owner) {
		approved, err := e.shares.Delegated(owner, caller)
		if err != nil {
			return err
		}
		if !approved {
			return ErrNotDelegated
		}
	}
	v, err := e.loadVault(catalogDigest)
	if err != nil {
		return err
	}
	if v.Balance.Cmp(amount) < 0 {
		return ErrInsufficientLiquidity
	}
	held, err := e.shares.BalanceOf(owner, catalogDigest)
	if err != nil {
		return err
	}
	if held.Cmp(amount) < 0 {
		return fmt.Errorf("%w: share balance %s", ErrInsufficientLiquidity, held)
	}

	if err := e.shares.Burn(owner, catalogDigest, amount); err != nil {
		return err
	}
	if err := e.reserve.Push(owner, amount); err != nil {
		return err
	}
	v.TotalSupply = new(big.Int).Sub(v.TotalSupply, amount)
	v.Balance = new(big.Int).Sub(v.Balance, amount)
	if err := e.state.VaultPut(catalogDigest, v); err != nil {
		return err
	}
	e.emit(NewVaultRedeemedEvent(catalogDigest, owner, amount))
	return nil
}

// CommitToLoan draws amount against posted collateral, provided the exact
// term tuple is a member of the vault's appraiser-approved catalog. On
// success the collateral moves into protocol custody and the reserve is paid
// out to the borrower.
func (e *Engine) CommitToLoan(borrower crypto.Address, catalogDigest [32]byte, terms LoanTerms, amount *big.Int, proof [][]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	v, err := e.loadVault(catalogDigest)
	if err != nil {
		return err
	}
	if e.now() >= v.Expiration {
		return ErrVaultExpired
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	if terms.MaxAmount == nil || amount.Cmp(terms.MaxAmount) > 0 {
		return ErrAmountAboveMax
	}
	if v.Balance.Cmp(amount) < 0 {
		return ErrInsufficientLiquidity
	}

	owner, err := e.collateral.OwnerOf(terms.CollateralID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCollateralOwnership, err)
	}
	if !owner.Equal(borrower) {
		return fmt.Errorf("%w: collateral held by %s", ErrCollateralOwnership, owner)
	}
	// The transfer hands custody to the protocol; a borrower who would still
	// be the owner-of-record afterwards cannot post this collateral.
	if borrower.Equal(e.collateral.Custody()) {
		return fmt.Errorf("%w: borrower would remain owner after transfer", ErrCollateralOwnership)
	}

	leaf := terms.LeafHash()
	if err := merkle.Verify(catalogDigest, leaf, proof); err != nil {
		return fmt.Errorf("%w: %v", ErrProofRejected, err)
	}

	loan := &Loan{
		CollateralID: terms.CollateralID,
		Amount:       new(big.Int).Set(amount),
		InterestRate: new(big.Int).Set(terms.InterestRate),
		Start:        terms.Start,
		End:          terms.End,
		LienPosition: terms.LienPosition,
		Schedule:     new(big.Int).Set(terms.Schedule),
	}
	if err := e.collateral.MoveIn(borrower, terms.CollateralID); err != nil {
		return err
	}
	if err := e.reserve.Push(borrower, amount); err != nil {
		return err
	}
	if _, err := e.state.LoanAppend(catalogDigest, borrower, loan); err != nil {
		return err
	}
	v.Balance = new(big.Int).Sub(v.Balance, amount)
	if err := e.state.VaultPut(catalogDigest, v); err != nil {
		return err
	}
	e.emit(NewLoanCreatedEvent(catalogDigest, terms.CollateralID, borrower, amount))
	return nil
}

// Repay pulls amount of the reserve from the payer and pays down the loan at
// loanIndex within the borrower's list. Overpayment is rejected and leaves
// the loan untouched. Repaid reserve returns to the vault's undeployed
// balance.
func (e *Engine) Repay(payer crypto.Address, catalogDigest [32]byte, borrower crypto.Address, loanIndex uint64, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := checkAmount(amount); err != nil {
		return err
	}
	v, err := e.loadVault(catalogDigest)
	if err != nil {
		return err
	}
	loan, ok, err := e.state.LoanGet(catalogDigest, borrower, loanIndex)
	if err != nil {
		return err
	}
	if !ok || loan == nil {
		return ErrLoanNotFound
	}
	if loan.Liquidated {
		return ErrLoanLiquidated
	}
	if loan.Amount == nil || loan.Amount.Cmp(amount) < 0 {
		return ErrRepayExceedsDebt
	}

	if err := e.reserve.Pull(payer, amount); err != nil {
		return err
	}
	loan.Amount = new(big.Int).Sub(loan.Amount, amount)
	if err := e.state.LoanUpdate(catalogDigest, borrower, loanIndex, loan); err != nil {
		return err
	}
	v.Balance = new(big.Int).Add(v.Balance, amount)
	if err := e.state.VaultPut(catalogDigest, v); err != nil {
		return err
	}
	e.emit(NewLoanRepaidEvent(catalogDigest, borrower, loanIndex, amount, loan.Amount))
	return nil
}

// IsLiquidatable reports whether the loan's accrued interest has reached the
// agreed ceiling. Pure read; no state is mutated.
func (e *Engine) IsLiquidatable(catalogDigest [32]byte, borrower crypto.Address, loanIndex uint64) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.loadVault(catalogDigest); err != nil {
		return false, err
	}
	loan, ok, err := e.state.LoanGet(catalogDigest, borrower, loanIndex)
	if err != nil {
		return false, err
	}
	if !ok || loan == nil {
		return false, ErrLoanNotFound
	}
	return liquidatable(loan, e.now()), nil
}

// Liquidate authorises the hand-off of an unhealthy loan and its collateral
// to the external auction process. The loan record is retained with its
// terminal marker set; no funds move here.
func (e *Engine) Liquidate(catalogDigest [32]byte, borrower crypto.Address, loanIndex uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.loadVault(catalogDigest); err != nil {
		return err
	}
	loan, ok, err := e.state.LoanGet(catalogDigest, borrower, loanIndex)
	if err != nil {
		return err
	}
	if !ok || loan == nil {
		return ErrLoanNotFound
	}
	if loan.Liquidated {
		return ErrLoanLiquidated
	}
	if !liquidatable(loan, e.now()) {
		return ErrNotLiquidatable
	}

	loan.Liquidated = true
	if err := e.state.LoanUpdate(catalogDigest, borrower, loanIndex, loan); err != nil {
		return err
	}
	e.emit(NewLoanLiquidatedEvent(catalogDigest, borrower, loanIndex, loan))
	return nil
}

// Vault returns a copy of the vault record for the catalog digest.
func (e *Engine) Vault(catalogDigest [32]byte) (*Vault, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	v, err := e.loadVault(catalogDigest)
	if err != nil {
		return nil, err
	}
	return v.Clone(), nil
}

// Loans returns copies of the borrower's loans against the vault in creation
// order.
func (e *Engine) Loans(catalogDigest [32]byte, borrower crypto.Address) ([]*Loan, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.loadVault(catalogDigest); err != nil {
		return nil, err
	}
	loans, err := e.state.Loans(catalogDigest, borrower)
	if err != nil {
		return nil, err
	}
	out := make([]*Loan, len(loans))
	for i, loan := range loans {
		out[i] = loan.Clone()
	}
	return out, nil
}

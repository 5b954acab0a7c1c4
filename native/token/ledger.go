// Package token provides the narrow fungible/collateral ledger capabilities
// the vault core consumes: reserve-asset transfers, per-class share balances
// with operator delegation, and single-asset collateral custody. The core
// depends only on the small interfaces below, never on a token standard's
// full surface.
package token

import (
	"errors"
	"fmt"
	"math/big"

	"bondvault/crypto"
)

var (
	errNilState = errors.New("token ledger: state not configured")
	// ErrInvalidAmount rejects nil, zero, or negative transfer amounts.
	ErrInvalidAmount = errors.New("token ledger: amount must be positive")
	// ErrInsufficientBalance signals a debit larger than the funded balance.
	ErrInsufficientBalance = errors.New("token ledger: insufficient balance")
	// ErrCollateralUnknown signals custody operations on an unregistered asset.
	ErrCollateralUnknown = errors.New("token ledger: collateral not registered")
	// ErrNotCollateralOwner signals a custody transfer by a non-owner.
	ErrNotCollateralOwner = errors.New("token ledger: sender does not hold collateral")
)

// State is the persistence surface the ledger requires. The production
// implementation lives in the state package; tests supply in-memory fakes.
type State interface {
	Balance(addr crypto.Address) (*big.Int, error)
	SetBalance(addr crypto.Address, amount *big.Int) error
	ShareBalance(class [32]byte, addr crypto.Address) (*big.Int, error)
	SetShareBalance(class [32]byte, addr crypto.Address, amount *big.Int) error
	Delegation(owner, spender crypto.Address) (bool, error)
	SetDelegation(owner, spender crypto.Address, approved bool) error
	CollateralOwner(id [32]byte) (crypto.Address, bool, error)
	SetCollateralOwner(id [32]byte, owner crypto.Address) error
}

// Ledger implements reserve transfers, share accounting, and collateral
// custody over a State. The custody address is the protocol treasury that
// holds pulled reserve and moved-in collateral.
type Ledger struct {
	state   State
	custody crypto.Address
}

// NewLedger constructs a ledger whose protocol-side funds and collateral are
// held by the custody address.
func NewLedger(custody crypto.Address) *Ledger {
	return &Ledger{custody: custody}
}

// SetState wires the ledger to its persistence layer.
func (l *Ledger) SetState(state State) { l.state = state }

// Custody returns the protocol treasury address.
func (l *Ledger) Custody() crypto.Address { return l.custody }

func (l *Ledger) ready() error {
	if l == nil || l.state == nil {
		return errNilState
	}
	return nil
}

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (l *Ledger) balance(addr crypto.Address) (*big.Int, error) {
	bal, err := l.state.Balance(addr)
	if err != nil {
		return nil, err
	}
	if bal == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(bal), nil
}

func (l *Ledger) transfer(from, to crypto.Address, amount *big.Int) error {
	fromBal, err := l.balance(from)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	toBal, err := l.balance(to)
	if err != nil {
		return err
	}
	if err := l.state.SetBalance(from, fromBal.Sub(fromBal, amount)); err != nil {
		return err
	}
	return l.state.SetBalance(to, toBal.Add(toBal, amount))
}

// Pull moves amount of the reserve asset from the holder into protocol
// custody. The caller's accounting must not be applied when Pull fails.
func (l *Ledger) Pull(from crypto.Address, amount *big.Int) error {
	if err := l.ready(); err != nil {
		return err
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	return l.transfer(from, l.custody, amount)
}

// Push pays amount of the reserve asset out of protocol custody.
func (l *Ledger) Push(to crypto.Address, amount *big.Int) error {
	if err := l.ready(); err != nil {
		return err
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	return l.transfer(l.custody, to, amount)
}

// Credit funds a holder's reserve balance directly. It exists for genesis
// provisioning and tests; protocol flows only move existing balances.
func (l *Ledger) Credit(addr crypto.Address, amount *big.Int) error {
	if err := l.ready(); err != nil {
		return err
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	bal, err := l.balance(addr)
	if err != nil {
		return err
	}
	return l.state.SetBalance(addr, bal.Add(bal, amount))
}

// ReserveBalance reports a holder's reserve-asset balance.
func (l *Ledger) ReserveBalance(addr crypto.Address) (*big.Int, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	return l.balance(addr)
}

// --- Shares ---

// Mint issues amount shares of the vault class to account.
func (l *Ledger) Mint(account crypto.Address, class [32]byte, amount *big.Int) error {
	if err := l.ready(); err != nil {
		return err
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	bal, err := l.shareBalance(class, account)
	if err != nil {
		return err
	}
	return l.state.SetShareBalance(class, account, bal.Add(bal, amount))
}

// Burn retires amount shares of the vault class held by account.
func (l *Ledger) Burn(account crypto.Address, class [32]byte, amount *big.Int) error {
	if err := l.ready(); err != nil {
		return err
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	bal, err := l.shareBalance(class, account)
	if err != nil {
		return err
	}
	if bal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	return l.state.SetShareBalance(class, account, bal.Sub(bal, amount))
}

// BalanceOf reports the share balance account holds in the vault class.
func (l *Ledger) BalanceOf(account crypto.Address, class [32]byte) (*big.Int, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	return l.shareBalance(class, account)
}

func (l *Ledger) shareBalance(class [32]byte, addr crypto.Address) (*big.Int, error) {
	bal, err := l.state.ShareBalance(class, addr)
	if err != nil {
		return nil, err
	}
	if bal == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(bal), nil
}

// SetDelegation records whether spender may move owner's shares.
func (l *Ledger) SetDelegation(owner, spender crypto.Address, approved bool) error {
	if err := l.ready(); err != nil {
		return err
	}
	return l.state.SetDelegation(owner, spender, approved)
}

// Delegated reports whether spender is approved to move owner's shares.
func (l *Ledger) Delegated(owner, spender crypto.Address) (bool, error) {
	if err := l.ready(); err != nil {
		return false, err
	}
	return l.state.Delegation(owner, spender)
}

// --- Collateral ---

// Register records the initial owner of a collateral asset. Registration is
// an out-of-band provisioning step; the core only moves registered assets.
func (l *Ledger) Register(id [32]byte, owner crypto.Address) error {
	if err := l.ready(); err != nil {
		return err
	}
	return l.state.SetCollateralOwner(id, owner)
}

// OwnerOf reports the current owner-of-record for the collateral asset.
func (l *Ledger) OwnerOf(id [32]byte) (crypto.Address, error) {
	if err := l.ready(); err != nil {
		return crypto.Address{}, err
	}
	owner, ok, err := l.state.CollateralOwner(id)
	if err != nil {
		return crypto.Address{}, err
	}
	if !ok {
		return crypto.Address{}, ErrCollateralUnknown
	}
	return owner, nil
}

// MoveIn transfers custody of the collateral asset from its holder to the
// protocol. The transfer fails unless from is the current owner-of-record.
func (l *Ledger) MoveIn(from crypto.Address, id [32]byte) error {
	if err := l.ready(); err != nil {
		return err
	}
	owner, err := l.OwnerOf(id)
	if err != nil {
		return err
	}
	if !owner.Equal(from) {
		return fmt.Errorf("%w: owner is %s", ErrNotCollateralOwner, owner)
	}
	return l.state.SetCollateralOwner(id, l.custody)
}

// Package state persists the protocol's vaults, loans, nonces, and ledger
// balances in a key-value store. It implements the narrow state interfaces
// the engine, the signature authority, and the token ledger consume.
package state

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"bondvault/crypto"
	"bondvault/native/auth"
	"bondvault/native/vault"
	"bondvault/storage"
)

// Manager reads and writes protocol records over a storage.Database. Loan
// records live in a flat arena keyed by a global sequence number; the
// per-(vault, borrower) index list maps stable loan indices to arena slots.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func (m *Manager) get(key []byte) ([]byte, bool, error) {
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (m *Manager) putRLP(key []byte, record interface{}) error {
	encoded, err := rlp.EncodeToBytes(record)
	if err != nil {
		return err
	}
	return m.db.Put(key, encoded)
}

// --- Vaults ---

type storedVault struct {
	Appraiser   []byte
	TotalSupply *big.Int
	Balance     *big.Int
	Expiration  uint64
}

func (m *Manager) VaultGet(digest [32]byte) (*vault.Vault, bool, error) {
	data, ok, err := m.get(vaultKey(digest))
	if err != nil || !ok {
		return nil, false, err
	}
	stored := new(storedVault)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false, fmt.Errorf("state: decode vault: %w", err)
	}
	if len(stored.Appraiser) != crypto.AddressLength {
		return nil, false, fmt.Errorf("state: corrupt appraiser address")
	}
	return &vault.Vault{
		Appraiser:   crypto.NewAddress(crypto.BondPrefix, stored.Appraiser),
		TotalSupply: stored.TotalSupply,
		Balance:     stored.Balance,
		Expiration:  int64(stored.Expiration),
	}, true, nil
}

func (m *Manager) VaultPut(digest [32]byte, v *vault.Vault) error {
	if v == nil {
		return fmt.Errorf("state: nil vault")
	}
	return m.putRLP(vaultKey(digest), &storedVault{
		Appraiser:   v.Appraiser.Bytes(),
		TotalSupply: v.TotalSupply,
		Balance:     v.Balance,
		Expiration:  uint64(v.Expiration),
	})
}

// --- Loans ---

type storedLoan struct {
	CollateralID []byte
	Amount       *big.Int
	InterestRate *big.Int
	Start        uint64
	End          uint64
	LienPosition uint64
	Schedule     *big.Int
	Liquidated   bool
}

func (m *Manager) loanIndexList(digest [32]byte, borrower crypto.Address) ([]uint64, error) {
	data, ok, err := m.get(loanIndexKey(digest, borrower))
	if err != nil || !ok {
		return nil, err
	}
	var list []uint64
	if err := rlp.DecodeBytes(data, &list); err != nil {
		return nil, fmt.Errorf("state: decode loan index: %w", err)
	}
	return list, nil
}

func (m *Manager) loanRecord(seq uint64) (*vault.Loan, error) {
	data, ok, err := m.get(loanRecordKey(seq))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("state: dangling loan slot %d", seq)
	}
	stored := new(storedLoan)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, fmt.Errorf("state: decode loan: %w", err)
	}
	loan := &vault.Loan{
		Amount:       stored.Amount,
		InterestRate: stored.InterestRate,
		Start:        int64(stored.Start),
		End:          int64(stored.End),
		LienPosition: stored.LienPosition,
		Schedule:     stored.Schedule,
		Liquidated:   stored.Liquidated,
	}
	copy(loan.CollateralID[:], stored.CollateralID)
	return loan, nil
}

func (m *Manager) writeLoan(seq uint64, loan *vault.Loan) error {
	return m.putRLP(loanRecordKey(seq), &storedLoan{
		CollateralID: loan.CollateralID[:],
		Amount:       loan.Amount,
		InterestRate: loan.InterestRate,
		Start:        uint64(loan.Start),
		End:          uint64(loan.End),
		LienPosition: loan.LienPosition,
		Schedule:     loan.Schedule,
		Liquidated:   loan.Liquidated,
	})
}

func (m *Manager) nextLoanSeq() (uint64, error) {
	data, ok, err := m.get(loanSeqKey)
	if err != nil {
		return 0, err
	}
	var seq uint64
	if ok {
		if err := rlp.DecodeBytes(data, &seq); err != nil {
			return 0, fmt.Errorf("state: decode loan sequence: %w", err)
		}
	}
	if err := m.putRLP(loanSeqKey, seq+1); err != nil {
		return 0, err
	}
	return seq, nil
}

func (m *Manager) LoanGet(digest [32]byte, borrower crypto.Address, index uint64) (*vault.Loan, bool, error) {
	list, err := m.loanIndexList(digest, borrower)
	if err != nil {
		return nil, false, err
	}
	if index >= uint64(len(list)) {
		return nil, false, nil
	}
	loan, err := m.loanRecord(list[index])
	if err != nil {
		return nil, false, err
	}
	return loan, true, nil
}

func (m *Manager) LoanAppend(digest [32]byte, borrower crypto.Address, loan *vault.Loan) (uint64, error) {
	if loan == nil {
		return 0, fmt.Errorf("state: nil loan")
	}
	seq, err := m.nextLoanSeq()
	if err != nil {
		return 0, err
	}
	if err := m.writeLoan(seq, loan); err != nil {
		return 0, err
	}
	list, err := m.loanIndexList(digest, borrower)
	if err != nil {
		return 0, err
	}
	list = append(list, seq)
	if err := m.putRLP(loanIndexKey(digest, borrower), list); err != nil {
		return 0, err
	}
	return uint64(len(list) - 1), nil
}

func (m *Manager) LoanUpdate(digest [32]byte, borrower crypto.Address, index uint64, loan *vault.Loan) error {
	if loan == nil {
		return fmt.Errorf("state: nil loan")
	}
	list, err := m.loanIndexList(digest, borrower)
	if err != nil {
		return err
	}
	if index >= uint64(len(list)) {
		return fmt.Errorf("state: loan index %d out of range", index)
	}
	return m.writeLoan(list[index], loan)
}

func (m *Manager) Loans(digest [32]byte, borrower crypto.Address) ([]*vault.Loan, error) {
	list, err := m.loanIndexList(digest, borrower)
	if err != nil {
		return nil, err
	}
	loans := make([]*vault.Loan, len(list))
	for i, seq := range list {
		loan, err := m.loanRecord(seq)
		if err != nil {
			return nil, err
		}
		loans[i] = loan
	}
	return loans, nil
}

// --- Nonces ---

func (m *Manager) Nonce(signer crypto.Address, purpose auth.Purpose) (uint64, error) {
	data, ok, err := m.get(nonceKey(signer, purpose))
	if err != nil || !ok {
		return 0, err
	}
	var nonce uint64
	if err := rlp.DecodeBytes(data, &nonce); err != nil {
		return 0, fmt.Errorf("state: decode nonce: %w", err)
	}
	return nonce, nil
}

func (m *Manager) SetNonce(signer crypto.Address, purpose auth.Purpose, nonce uint64) error {
	return m.putRLP(nonceKey(signer, purpose), nonce)
}

// --- Token ledger ---

func (m *Manager) bigInt(key []byte) (*big.Int, error) {
	data, ok, err := m.get(key)
	if err != nil || !ok {
		return nil, err
	}
	value := new(big.Int)
	if err := rlp.DecodeBytes(data, value); err != nil {
		return nil, fmt.Errorf("state: decode amount: %w", err)
	}
	return value, nil
}

func (m *Manager) Balance(addr crypto.Address) (*big.Int, error) {
	return m.bigInt(balanceKey(addr))
}

func (m *Manager) SetBalance(addr crypto.Address, amount *big.Int) error {
	return m.putRLP(balanceKey(addr), amount)
}

func (m *Manager) ShareBalance(class [32]byte, addr crypto.Address) (*big.Int, error) {
	return m.bigInt(shareKey(class, addr))
}

func (m *Manager) SetShareBalance(class [32]byte, addr crypto.Address, amount *big.Int) error {
	return m.putRLP(shareKey(class, addr), amount)
}

func (m *Manager) Delegation(owner, spender crypto.Address) (bool, error) {
	data, ok, err := m.get(delegationKey(owner, spender))
	if err != nil || !ok {
		return false, err
	}
	var approved bool
	if err := rlp.DecodeBytes(data, &approved); err != nil {
		return false, fmt.Errorf("state: decode delegation: %w", err)
	}
	return approved, nil
}

func (m *Manager) SetDelegation(owner, spender crypto.Address, approved bool) error {
	return m.putRLP(delegationKey(owner, spender), approved)
}

func (m *Manager) CollateralOwner(id [32]byte) (crypto.Address, bool, error) {
	data, ok, err := m.get(collateralKey(id))
	if err != nil || !ok {
		return crypto.Address{}, false, err
	}
	var raw []byte
	if err := rlp.DecodeBytes(data, &raw); err != nil {
		return crypto.Address{}, false, fmt.Errorf("state: decode collateral owner: %w", err)
	}
	if len(raw) != crypto.AddressLength {
		return crypto.Address{}, false, fmt.Errorf("state: corrupt collateral owner")
	}
	return crypto.NewAddress(crypto.BondPrefix, raw), true, nil
}

func (m *Manager) SetCollateralOwner(id [32]byte, owner crypto.Address) error {
	return m.putRLP(collateralKey(id), owner.Bytes())
}

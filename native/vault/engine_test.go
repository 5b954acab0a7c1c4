package vault

import (
	"encoding/hex"
	"math/big"
	"testing"

	"bondvault/core/events"
	"bondvault/crypto"
	"bondvault/merkle"
	"bondvault/native/auth"
	"bondvault/native/token"
)

type mockEngineState struct {
	vaults map[[32]byte]*Vault
	loans  map[string][]*Loan
}

func newMockEngineState() *mockEngineState {
	return &mockEngineState{
		vaults: make(map[[32]byte]*Vault),
		loans:  make(map[string][]*Loan),
	}
}

func (m *mockEngineState) loanKey(digest [32]byte, borrower crypto.Address) string {
	return hex.EncodeToString(digest[:]) + "/" + string(borrower.Bytes())
}

func (m *mockEngineState) VaultGet(digest [32]byte) (*Vault, bool, error) {
	v, ok := m.vaults[digest]
	if !ok {
		return nil, false, nil
	}
	return v.Clone(), true, nil
}

func (m *mockEngineState) VaultPut(digest [32]byte, v *Vault) error {
	m.vaults[digest] = v.Clone()
	return nil
}

func (m *mockEngineState) LoanGet(digest [32]byte, borrower crypto.Address, index uint64) (*Loan, bool, error) {
	loans := m.loans[m.loanKey(digest, borrower)]
	if index >= uint64(len(loans)) {
		return nil, false, nil
	}
	return loans[index].Clone(), true, nil
}

func (m *mockEngineState) LoanAppend(digest [32]byte, borrower crypto.Address, loan *Loan) (uint64, error) {
	key := m.loanKey(digest, borrower)
	m.loans[key] = append(m.loans[key], loan.Clone())
	return uint64(len(m.loans[key]) - 1), nil
}

func (m *mockEngineState) LoanUpdate(digest [32]byte, borrower crypto.Address, index uint64, loan *Loan) error {
	key := m.loanKey(digest, borrower)
	if index >= uint64(len(m.loans[key])) {
		return ErrLoanNotFound
	}
	m.loans[key][index] = loan.Clone()
	return nil
}

func (m *mockEngineState) Loans(digest [32]byte, borrower crypto.Address) ([]*Loan, error) {
	loans := m.loans[m.loanKey(digest, borrower)]
	out := make([]*Loan, len(loans))
	for i, loan := range loans {
		out[i] = loan.Clone()
	}
	return out, nil
}

type mockTokenState struct {
	balances    map[string]*big.Int
	shares      map[string]*big.Int
	delegations map[string]bool
	collateral  map[[32]byte]crypto.Address
}

func newMockTokenState() *mockTokenState {
	return &mockTokenState{
		balances:    make(map[string]*big.Int),
		shares:      make(map[string]*big.Int),
		delegations: make(map[string]bool),
		collateral:  make(map[[32]byte]crypto.Address),
	}
}

func (m *mockTokenState) Balance(addr crypto.Address) (*big.Int, error) {
	return m.balances[string(addr.Bytes())], nil
}

func (m *mockTokenState) SetBalance(addr crypto.Address, amount *big.Int) error {
	m.balances[string(addr.Bytes())] = new(big.Int).Set(amount)
	return nil
}

func (m *mockTokenState) shareKey(class [32]byte, addr crypto.Address) string {
	return hex.EncodeToString(class[:]) + "/" + string(addr.Bytes())
}

func (m *mockTokenState) ShareBalance(class [32]byte, addr crypto.Address) (*big.Int, error) {
	return m.shares[m.shareKey(class, addr)], nil
}

func (m *mockTokenState) SetShareBalance(class [32]byte, addr crypto.Address, amount *big.Int) error {
	m.shares[m.shareKey(class, addr)] = new(big.Int).Set(amount)
	return nil
}

func (m *mockTokenState) Delegation(owner, spender crypto.Address) (bool, error) {
	return m.delegations[string(owner.Bytes())+"/"+string(spender.Bytes())], nil
}

func (m *mockTokenState) SetDelegation(owner, spender crypto.Address, approved bool) error {
	m.delegations[string(owner.Bytes())+"/"+string(spender.Bytes())] = approved
	return nil
}

func (m *mockTokenState) CollateralOwner(id [32]byte) (crypto.Address, bool, error) {
	owner, ok := m.collateral[id]
	return owner, ok, nil
}

func (m *mockTokenState) SetCollateralOwner(id [32]byte, owner crypto.Address) error {
	m.collateral[id] = owner
	return nil
}

type mockNonceState struct {
	nonces map[string]uint64
}

func newMockNonceState() *mockNonceState {
	return &mockNonceState{nonces: make(map[string]uint64)}
}

func (m *mockNonceState) Nonce(signer crypto.Address, purpose auth.Purpose) (uint64, error) {
	return m.nonces[string(signer.Bytes())+"/"+string(purpose)], nil
}

func (m *mockNonceState) SetNonce(signer crypto.Address, purpose auth.Purpose, nonce uint64) error {
	m.nonces[string(signer.Bytes())+"/"+string(purpose)] = nonce
	return nil
}

// testEnv wires the engine to a real token ledger over in-memory state, a
// signature authority with mock nonces, and an event log.
type testEnv struct {
	engine     *Engine
	authority  *auth.Authority
	ledger     *token.Ledger
	state      *mockEngineState
	tokenState *mockTokenState
	log        *events.Log
	custody    crypto.Address
	now        int64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	custodyBytes := make([]byte, crypto.AddressLength)
	custodyBytes[0] = 0xcc
	custody := crypto.NewAddress(crypto.BondPrefix, custodyBytes)

	deploymentBytes := make([]byte, crypto.AddressLength)
	deploymentBytes[0] = 0xdd
	deployment := crypto.NewAddress(crypto.BondPrefix, deploymentBytes)

	domain, err := auth.NewDomain("bondvault", "1", 1, deployment)
	if err != nil {
		t.Fatalf("new domain: %v", err)
	}
	authority := auth.NewAuthority(domain)
	authority.SetState(newMockNonceState())

	ledger := token.NewLedger(custody)
	tokenState := newMockTokenState()
	ledger.SetState(tokenState)

	env := &testEnv{
		authority:  authority,
		ledger:     ledger,
		state:      newMockEngineState(),
		tokenState: tokenState,
		log:        events.NewLog(),
		custody:    custody,
	}
	authority.SetNowFunc(func() int64 { return env.now })

	engine := NewEngine(authority, ledger, ledger, ledger)
	engine.SetState(env.state)
	engine.SetEmitter(env.log)
	engine.SetNowFunc(func() int64 { return env.now })
	env.engine = engine
	return env
}

func genKey(t *testing.T) (*crypto.PrivateKey, crypto.Address) {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key, key.PubKey().Address()
}

func makeAddress(suffix byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	raw[crypto.AddressLength-1] = suffix
	return crypto.NewAddress(crypto.BondPrefix, raw)
}

func collateralID(suffix byte) [32]byte {
	var id [32]byte
	id[31] = suffix
	return id
}

// signCreate produces an appraiser signature over the vault-creation message
// with the appraiser's current nonce embedded.
func (env *testEnv) signCreate(t *testing.T, key *crypto.PrivateKey, appraiser crypto.Address, digest [32]byte, expiration, deadline int64) []byte {
	t.Helper()
	nonce, err := env.authority.Nonce(appraiser, auth.PurposeVaultCreation)
	if err != nil {
		t.Fatalf("nonce: %v", err)
	}
	structHash := auth.VaultCreationHash(appraiser, digest, expiration, nonce, deadline)
	domainDigest := env.authority.Domain().Digest(structHash)
	sig, err := key.Sign(domainDigest[:])
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return sig
}

func (env *testEnv) createVault(t *testing.T, key *crypto.PrivateKey, appraiser crypto.Address, digest [32]byte, expiration int64) {
	t.Helper()
	deadline := env.now + 100
	sig := env.signCreate(t, key, appraiser, digest, expiration, deadline)
	if err := env.engine.CreateVault(appraiser, digest, expiration, deadline, sig); err != nil {
		t.Fatalf("create vault: %v", err)
	}
}

func (env *testEnv) fund(t *testing.T, addr crypto.Address, amount int64) {
	t.Helper()
	if err := env.ledger.Credit(addr, big.NewInt(amount)); err != nil {
		t.Fatalf("fund %s: %v", addr, err)
	}
}

func (env *testEnv) reserveBalance(t *testing.T, addr crypto.Address) *big.Int {
	t.Helper()
	bal, err := env.ledger.ReserveBalance(addr)
	if err != nil {
		t.Fatalf("reserve balance: %v", err)
	}
	return bal
}

// catalog builds a term catalog, returning its digest and a proof per term.
func buildCatalog(t *testing.T, terms []LoanTerms) ([32]byte, [][][]byte) {
	t.Helper()
	leaves := make([][merkle.HashSize]byte, len(terms))
	for i, term := range terms {
		leaves[i] = term.LeafHash()
	}
	tree, err := merkle.NewTree(leaves)
	if err != nil {
		t.Fatalf("build catalog tree: %v", err)
	}
	proofs := make([][][]byte, len(terms))
	for i := range terms {
		proof, err := tree.Proof(i)
		if err != nil {
			t.Fatalf("catalog proof %d: %v", i, err)
		}
		proofs[i] = proof
	}
	return tree.Root(), proofs
}

func checkVault(t *testing.T, env *testEnv, digest [32]byte, totalSupply, balance int64) {
	t.Helper()
	v, err := env.engine.Vault(digest)
	if err != nil {
		t.Fatalf("vault: %v", err)
	}
	if v.TotalSupply.Cmp(big.NewInt(totalSupply)) != 0 {
		t.Fatalf("total supply: got %s want %d", v.TotalSupply, totalSupply)
	}
	if v.Balance.Cmp(big.NewInt(balance)) != 0 {
		t.Fatalf("balance: got %s want %d", v.Balance, balance)
	}
	if v.Balance.Cmp(v.TotalSupply) > 0 {
		t.Fatalf("invariant violated: balance %s exceeds total supply %s", v.Balance, v.TotalSupply)
	}
}

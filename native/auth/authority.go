package auth

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"bondvault/crypto"
)

var (
	errNilState = errors.New("signature authority: state not configured")
	// ErrZeroSigner rejects verification against the zero address.
	ErrZeroSigner = errors.New("signature authority: signer address is zero")
	// ErrDeadlineExpired rejects a message whose deadline has passed.
	ErrDeadlineExpired = errors.New("signature authority: deadline expired")
	// ErrInvalidSignature rejects signatures the recovery primitive cannot parse.
	ErrInvalidSignature = errors.New("signature authority: malformed signature")
	// ErrSignerMismatch rejects signatures recovered to a different address.
	ErrSignerMismatch = errors.New("signature authority: recovered signer mismatch")
)

// NonceState persists the per-(signer, purpose) monotone counters.
type NonceState interface {
	Nonce(signer crypto.Address, purpose Purpose) (uint64, error)
	SetNonce(signer crypto.Address, purpose Purpose, nonce uint64) error
}

// Authority verifies domain-bound, nonce-protected signatures. A signed
// message embeds the signer's current nonce; the counter advances only when
// the recovered signer matches, so a forged attempt cannot burn the
// legitimate signer's nonce. The mutex serialises every nonce read against
// its increment, keeping each signed message single-use under concurrent
// submission.
type Authority struct {
	mu     sync.Mutex
	domain *Domain
	state  NonceState
	nowFn  func() int64
}

// NewAuthority constructs an authority for the deployment's signing domain.
func NewAuthority(domain *Domain) *Authority {
	return &Authority{
		domain: domain,
		nowFn:  func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the authority to the nonce persistence layer.
func (a *Authority) SetState(state NonceState) { a.state = state }

// SetNowFunc overrides the time source. Primarily intended for tests.
func (a *Authority) SetNowFunc(now func() int64) {
	if now == nil {
		a.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	a.nowFn = now
}

// Domain returns the signing domain the authority binds signatures to.
func (a *Authority) Domain() *Domain { return a.domain }

// Nonce reports the signer's current counter for the purpose. This is the
// value a fresh message must embed in its struct hash.
func (a *Authority) Nonce(signer crypto.Address, purpose Purpose) (uint64, error) {
	if a == nil || a.state == nil {
		return 0, errNilState
	}
	return a.state.Nonce(signer, purpose)
}

// Verify checks a domain-bound signature over structHash. On success the
// signer's nonce for the purpose is advanced by one; every failure leaves
// the counter untouched. The struct hash must already embed the nonce value
// current at verification time, which is what makes each signed message
// single-use — callers that read the nonce outside any lock of their own
// must use VerifyCurrent instead.
func (a *Authority) Verify(purpose Purpose, signer crypto.Address, structHash [32]byte, deadline int64, sig []byte) error {
	if a == nil || a.state == nil {
		return errNilState
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.verifyLocked(purpose, signer, structHash, deadline, sig)
}

// VerifyCurrent rebuilds the struct hash from the signer's live nonce and
// verifies it while holding the authority's lock. Two concurrent copies of
// one signed message therefore cannot both pass: the first advances the
// nonce, the second rebuilds a hash the signature no longer covers.
func (a *Authority) VerifyCurrent(purpose Purpose, signer crypto.Address, hashAt func(nonce uint64) [32]byte, deadline int64, sig []byte) error {
	if a == nil || a.state == nil {
		return errNilState
	}
	if signer.IsZero() {
		return ErrZeroSigner
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	nonce, err := a.state.Nonce(signer, purpose)
	if err != nil {
		return err
	}
	return a.verifyLocked(purpose, signer, hashAt(nonce), deadline, sig)
}

func (a *Authority) verifyLocked(purpose Purpose, signer crypto.Address, structHash [32]byte, deadline int64, sig []byte) error {
	if signer.IsZero() {
		return ErrZeroSigner
	}
	if a.nowFn() >= deadline {
		return ErrDeadlineExpired
	}
	if len(sig) != 65 {
		return fmt.Errorf("%w: %d bytes", ErrInvalidSignature, len(sig))
	}

	digest := a.domain.Digest(structHash)
	pubKey, err := ethcrypto.SigToPub(digest[:], sig)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	recovered := ethcrypto.PubkeyToAddress(*pubKey).Bytes()
	if !bytes.Equal(recovered, signer.Bytes()) {
		return ErrSignerMismatch
	}

	nonce, err := a.state.Nonce(signer, purpose)
	if err != nil {
		return err
	}
	return a.state.SetNonce(signer, purpose, nonce+1)
}

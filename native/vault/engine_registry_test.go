package vault

import (
	"errors"
	"testing"

	"bondvault/crypto"
	"bondvault/native/auth"
)

func TestCreateVaultRegistersOnce(t *testing.T) {
	env := newTestEnv(t)
	key, appraiser := genKey(t)
	digest := collateralID(0x01)

	env.createVault(t, key, appraiser, digest, 1000)

	v, err := env.engine.Vault(digest)
	if err != nil {
		t.Fatalf("vault: %v", err)
	}
	if !v.Appraiser.Equal(appraiser) {
		t.Fatalf("appraiser: got %s want %s", v.Appraiser, appraiser)
	}
	if v.Expiration != 1000 {
		t.Fatalf("expiration: got %d want 1000", v.Expiration)
	}
	checkVault(t, env, digest, 0, 0)

	evts := env.log.Events()
	if len(evts) != 1 || evts[0].EventType() != EventTypeVaultCreated {
		t.Fatalf("expected a single vault.created event, got %v", evts)
	}

	// The same catalog digest can never be re-registered, even with a fresh
	// valid signature.
	sig := env.signCreate(t, key, appraiser, digest, 2000, env.now+100)
	if err := env.engine.CreateVault(appraiser, digest, 2000, env.now+100, sig); !errors.Is(err, ErrVaultExists) {
		t.Fatalf("expected ErrVaultExists, got %v", err)
	}
	if v, err := env.engine.Vault(digest); err != nil || v.Expiration != 1000 {
		t.Fatalf("failed re-registration must leave the vault untouched: %v %v", v, err)
	}
}

func TestCreateVaultRejectsForgedSignature(t *testing.T) {
	env := newTestEnv(t)
	_, appraiser := genKey(t)
	forger, _ := genKey(t)
	digest := collateralID(0x02)

	sig := env.signCreate(t, forger, appraiser, digest, 1000, env.now+100)
	if err := env.engine.CreateVault(appraiser, digest, 1000, env.now+100, sig); !errors.Is(err, auth.ErrSignerMismatch) {
		t.Fatalf("expected signer mismatch, got %v", err)
	}
	if _, err := env.engine.Vault(digest); !errors.Is(err, ErrVaultNotFound) {
		t.Fatalf("forged creation must not register the vault, got %v", err)
	}
	// The appraiser's nonce must survive the forged attempt.
	nonce, err := env.authority.Nonce(appraiser, auth.PurposeVaultCreation)
	if err != nil {
		t.Fatalf("nonce: %v", err)
	}
	if nonce != 0 {
		t.Fatalf("forged attempt consumed nonce: got %d", nonce)
	}
}

func TestCreateVaultRejectsExpiredDeadline(t *testing.T) {
	env := newTestEnv(t)
	key, appraiser := genKey(t)
	digest := collateralID(0x03)
	env.now = 50

	sig := env.signCreate(t, key, appraiser, digest, 1000, 50)
	if err := env.engine.CreateVault(appraiser, digest, 1000, 50, sig); !errors.Is(err, auth.ErrDeadlineExpired) {
		t.Fatalf("expected deadline rejection, got %v", err)
	}
}

func TestCreateVaultRejectsZeroAppraiser(t *testing.T) {
	env := newTestEnv(t)
	key, _ := genKey(t)
	digest := collateralID(0x04)

	sig := env.signCreate(t, key, crypto.ZeroAddress(), digest, 1000, env.now+100)
	if err := env.engine.CreateVault(crypto.ZeroAddress(), digest, 1000, env.now+100, sig); !errors.Is(err, auth.ErrZeroSigner) {
		t.Fatalf("expected zero signer rejection, got %v", err)
	}
}

func TestCreateVaultSignatureNotReplayable(t *testing.T) {
	env := newTestEnv(t)
	key, appraiser := genKey(t)
	first := collateralID(0x05)
	second := collateralID(0x06)

	env.createVault(t, key, appraiser, first, 1000)

	// A stale signature minted for the consumed nonce cannot author another
	// vault, and neither can the original bytes re-author the first digest.
	stale := auth.VaultCreationHash(appraiser, second, 1000, 0, env.now+100)
	domainDigest := env.authority.Domain().Digest(stale)
	sig, err := key.Sign(domainDigest[:])
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := env.engine.CreateVault(appraiser, second, 1000, env.now+100, sig); !errors.Is(err, auth.ErrSignerMismatch) {
		t.Fatalf("expected stale-nonce rejection, got %v", err)
	}
}

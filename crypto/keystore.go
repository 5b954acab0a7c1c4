package crypto

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/accounts/keystore"
)

// SaveKey encrypts the private key into an Ethereum v3 keystore file at path.
// Parent directories are created with 0700 permissions when missing and the
// resulting file is readable by the owner only.
func SaveKey(path string, key *PrivateKey, passphrase string) error {
	if key == nil {
		return errors.New("keystore: nil private key")
	}
	if path == "" {
		return errors.New("keystore: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	// The go-ethereum keystore only writes into a managed directory, so
	// import into a scratch dir and move the produced file into place.
	scratch, err := os.MkdirTemp(filepath.Dir(path), "keystore-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(scratch)

	ks := keystore.NewKeyStore(scratch, keystore.StandardScryptN, keystore.StandardScryptP)
	if _, err := ks.ImportECDSA(key.PrivateKey, passphrase); err != nil {
		return fmt.Errorf("keystore: import key: %w", err)
	}

	entries, err := os.ReadDir(scratch)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return errors.New("keystore: no file produced")
	}

	produced := filepath.Join(scratch, entries[0].Name())
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.Rename(produced, path); err != nil {
		return err
	}
	return os.Chmod(path, 0o600)
}

// LoadKey decrypts an Ethereum v3 keystore file with the supplied passphrase.
func LoadKey(path, passphrase string) (*PrivateKey, error) {
	if path == "" {
		return nil, errors.New("keystore: empty path")
	}
	keyJSON, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	decrypted, err := keystore.DecryptKey(keyJSON, passphrase)
	if err != nil {
		return nil, fmt.Errorf("keystore: decrypt: %w", err)
	}
	return &PrivateKey{PrivateKey: decrypted.PrivateKey}, nil
}

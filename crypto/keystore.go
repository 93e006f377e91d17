package crypto

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/accounts/keystore"
)

// SaveToKeystore encrypts the key with the passphrase and writes it to path as
// an Ethereum v3 keystore file. The write is staged in a temporary directory so
// an interrupted save never leaves a partial file at the destination.
func SaveToKeystore(path string, key *PrivateKey, passphrase string) error {
	switch {
	case key == nil:
		return errors.New("crypto: nil private key")
	case path == "":
		return errors.New("crypto: keystore path required")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("crypto: create keystore dir: %w", err)
	}
	staging, err := os.MkdirTemp(dir, "keystore-")
	if err != nil {
		return fmt.Errorf("crypto: stage keystore: %w", err)
	}
	defer os.RemoveAll(staging)

	ks := keystore.NewKeyStore(staging, keystore.StandardScryptN, keystore.StandardScryptP)
	if _, err := ks.ImportECDSA(key.PrivateKey, passphrase); err != nil {
		return fmt.Errorf("crypto: encrypt key: %w", err)
	}
	entries, err := os.ReadDir(staging)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return errors.New("crypto: keystore import produced no file")
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.Rename(filepath.Join(staging, entries[0].Name()), path); err != nil {
		return fmt.Errorf("crypto: place keystore: %w", err)
	}
	return os.Chmod(path, 0o600)
}

// LoadFromKeystore reads and decrypts an Ethereum v3 keystore file.
func LoadFromKeystore(path, passphrase string) (*PrivateKey, error) {
	if path == "" {
		return nil, errors.New("crypto: keystore path required")
	}
	encoded, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	decrypted, err := keystore.DecryptKey(encoded, passphrase)
	if err != nil {
		return nil, fmt.Errorf("crypto: decrypt keystore: %w", err)
	}
	return &PrivateKey{PrivateKey: decrypted.PrivateKey}, nil
}

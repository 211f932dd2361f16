// Package crypt provides transparent file encryption for uploads, keyed by
// a single process-wide age identity persisted on disk. The key file is
// created lazily on the first encrypt and never rotated automatically.
package crypt

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
)

// EncryptedPrefix marks a staging file whose bytes are ciphertext. The
// prefix participates in the stored display name and is stripped when
// recovering the original name.
const EncryptedPrefix = "encrypted_"

// ErrKeyMissing means decryption was requested but the key file is gone,
// so the data is unrecoverable.
var ErrKeyMissing = errors.New("crypt: encryption key not found")

type Vault struct {
	keyPath string
}

func NewVault(keyPath string) *Vault {
	return &Vault{keyPath: keyPath}
}

// identity loads the persisted key, generating and persisting one when
// create is set and the file does not exist yet.
func (v *Vault) identity(create bool) (*age.X25519Identity, error) {
	raw, err := os.ReadFile(v.keyPath)
	if os.IsNotExist(err) {
		if !create {
			return nil, ErrKeyMissing
		}
		identity, genErr := age.GenerateX25519Identity()
		if genErr != nil {
			return nil, fmt.Errorf("generating encryption key: %w", genErr)
		}
		if writeErr := os.WriteFile(v.keyPath, []byte(identity.String()), 0o600); writeErr != nil {
			return nil, fmt.Errorf("persisting encryption key: %w", writeErr)
		}
		return identity, nil
	}
	if err != nil {
		return nil, err
	}
	return age.ParseX25519Identity(strings.TrimSpace(string(raw)))
}

// EncryptFile encrypts path into a sibling file named with EncryptedPrefix,
// removes the plaintext, and returns the new path.
func (v *Vault) EncryptFile(path string) (string, error) {
	identity, err := v.identity(true)
	if err != nil {
		return "", err
	}

	plaintext, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	var ciphertext bytes.Buffer
	w, err := age.Encrypt(&ciphertext, identity.Recipient())
	if err != nil {
		return "", fmt.Errorf("creating encryptor: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalizing encryption: %w", err)
	}

	dir, base := filepath.Dir(path), filepath.Base(path)
	encryptedPath := filepath.Join(dir, EncryptedPrefix+base)
	if err := os.WriteFile(encryptedPath, ciphertext.Bytes(), 0o600); err != nil {
		return "", err
	}
	_ = os.Remove(path)
	return encryptedPath, nil
}

// DecryptFile rewrites path in place with the decrypted bytes. Fails with
// ErrKeyMissing when the key file is absent; the key is never created here.
func (v *Vault) DecryptFile(path string) error {
	identity, err := v.identity(false)
	if err != nil {
		return err
	}

	ciphertext, err := os.Open(path)
	if err != nil {
		return err
	}

	r, err := age.Decrypt(ciphertext, identity)
	if err != nil {
		ciphertext.Close()
		return fmt.Errorf("decrypting %s: %w", filepath.Base(path), err)
	}
	plaintext, err := io.ReadAll(r)
	ciphertext.Close()
	if err != nil {
		return err
	}

	return os.WriteFile(path, plaintext, 0o600)
}

// OriginalName strips the encryption marker from a stored display name.
func OriginalName(name string) string {
	return strings.TrimPrefix(name, EncryptedPrefix)
}

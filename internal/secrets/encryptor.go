// Package secrets encrypts credentials at rest with age. The remote
// backend token lives here rather than in the plain-text config file.
package secrets

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
)

// AgeEncryptor wraps a single X25519 identity.
type AgeEncryptor struct {
	identity  *age.X25519Identity
	recipient *age.X25519Recipient
}

// NewEncryptor creates an encryptor from a parsed identity.
func NewEncryptor(id *age.X25519Identity) *AgeEncryptor {
	return &AgeEncryptor{identity: id, recipient: id.Recipient()}
}

// LoadIdentity reads an X25519 identity from a key file. Lines starting
// with '#' are comments, matching age-keygen output.
func LoadIdentity(path string) (*AgeEncryptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read identity file: %w", err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		id, err := age.ParseX25519Identity(line)
		if err != nil {
			return nil, fmt.Errorf("parse identity: %w", err)
		}
		return NewEncryptor(id), nil
	}
	return nil, fmt.Errorf("no identity found in %s", path)
}

// GenerateIdentity creates a fresh X25519 identity and writes it to
// path with owner-only permissions. Fails if the file already exists.
func GenerateIdentity(path string) (*AgeEncryptor, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("identity file %s already exists", path)
	}
	id, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generate identity: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create key directory: %w", err)
	}
	content := fmt.Sprintf("# public key: %s\n%s\n", id.Recipient(), id)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return nil, fmt.Errorf("write identity file: %w", err)
	}
	return NewEncryptor(id), nil
}

// PublicKey returns the recipient string for the identity.
func (e *AgeEncryptor) PublicKey() string {
	return e.recipient.String()
}

// Encrypt seals plaintext to the encryptor's recipient.
func (e *AgeEncryptor) Encrypt(plaintext []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, e.recipient)
	if err != nil {
		return nil, fmt.Errorf("init encrypt: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalize encrypt: %w", err)
	}
	return buf.Bytes(), nil
}

// Decrypt opens a ciphertext sealed to the identity.
func (e *AgeEncryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	r, err := age.Decrypt(bytes.NewReader(ciphertext), e.identity)
	if err != nil {
		return nil, fmt.Errorf("init decrypt: %w", err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}

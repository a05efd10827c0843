package secrets

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tidewater/toolroute/internal/store"
)

// KeyRemoteToken is the vault key under which the remote backend
// bearer token is stored.
const KeyRemoteToken = "remote_token"

// Vault is an encrypted key/value file. The whole map is decrypted on
// read and re-encrypted on write; vault contents are small.
type Vault struct {
	mu        sync.Mutex
	path      string
	encryptor *AgeEncryptor
}

// NewVault creates a vault backed by the file at path.
func NewVault(path string, enc *AgeEncryptor) *Vault {
	return &Vault{path: path, encryptor: enc}
}

// Put encrypts and stores a secret under key.
func (v *Vault) Put(key string, plaintext []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	secrets, err := v.load()
	if err != nil {
		return err
	}
	secrets[key] = string(plaintext)
	return v.save(secrets)
}

// Get decrypts and returns the secret stored under key.
func (v *Vault) Get(key string) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	secrets, err := v.load()
	if err != nil {
		return nil, err
	}
	val, ok := secrets[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return []byte(val), nil
}

// List returns all secret key names (no values).
func (v *Vault) List() ([]string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	secrets, err := v.load()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(secrets))
	for k := range secrets {
		keys = append(keys, k)
	}
	return keys, nil
}

// Delete removes the secret stored under key.
func (v *Vault) Delete(key string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	secrets, err := v.load()
	if err != nil {
		return err
	}
	if _, ok := secrets[key]; !ok {
		return store.ErrNotFound
	}
	delete(secrets, key)
	return v.save(secrets)
}

// TokenSource returns a function that reads the remote token on each
// call, so a rotated token takes effect without a restart. A missing
// token yields the empty string.
func (v *Vault) TokenSource() func() string {
	return func() string {
		tok, err := v.Get(KeyRemoteToken)
		if err != nil {
			return ""
		}
		return string(tok)
	}
}

func (v *Vault) load() (map[string]string, error) {
	data, err := os.ReadFile(v.path)
	if os.IsNotExist(err) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read vault: %w", err)
	}
	if len(data) == 0 {
		return make(map[string]string), nil
	}

	plaintext, err := v.encryptor.Decrypt(data)
	if err != nil {
		return nil, fmt.Errorf("decrypt vault: %w", err)
	}
	var secrets map[string]string
	if err := json.Unmarshal(plaintext, &secrets); err != nil {
		return nil, fmt.Errorf("unmarshal vault: %w", err)
	}
	return secrets, nil
}

func (v *Vault) save(secrets map[string]string) error {
	plaintext, err := json.Marshal(secrets)
	if err != nil {
		return fmt.Errorf("marshal vault: %w", err)
	}
	encrypted, err := v.encryptor.Encrypt(plaintext)
	if err != nil {
		return fmt.Errorf("encrypt vault: %w", err)
	}

	// Write-then-rename so a crash never leaves a truncated vault.
	tmp := v.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(v.path), 0o700); err != nil {
		return fmt.Errorf("create vault directory: %w", err)
	}
	if err := os.WriteFile(tmp, encrypted, 0o600); err != nil {
		return fmt.Errorf("write vault: %w", err)
	}
	if err := os.Rename(tmp, v.path); err != nil {
		return fmt.Errorf("replace vault: %w", err)
	}
	return nil
}

package infra

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/eliteGoblin/focusd/screen_guard/internal/domain"
)

const (
	journalKeyName = "journal.key"
	journalKeySize = 32 // SQLCipher raw key
)

// FileKeyProvider keeps the journal key hex-encoded in a 0600 file next to
// the journal database.
type FileKeyProvider struct {
	path string
}

// NewFileKeyProvider creates a provider for the key in dataDir.
func NewFileKeyProvider(dataDir string) *FileKeyProvider {
	return &FileKeyProvider{path: filepath.Join(dataDir, journalKeyName)}
}

// Path returns the key file path.
func (p *FileKeyProvider) Path() string {
	return p.path
}

// GetKey reads the key. A key file readable by other users is rejected.
func (p *FileKeyProvider) GetKey() ([]byte, error) {
	info, err := os.Stat(p.path)
	if err != nil {
		return nil, fmt.Errorf("journal key: %w", err)
	}
	if perm := info.Mode().Perm(); perm&0077 != 0 {
		return nil, fmt.Errorf("journal key %s is accessible by other users (mode %04o)", p.path, perm)
	}

	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("journal key: %w", err)
	}
	key, err := hex.DecodeString(string(bytes.TrimSpace(data)))
	if err != nil {
		return nil, fmt.Errorf("journal key is not hex: %w", err)
	}
	if len(key) != journalKeySize {
		return nil, fmt.Errorf("invalid key size: got %d, want %d", len(key), journalKeySize)
	}
	return key, nil
}

// StoreKey writes a new key file. It never replaces an existing key: doing
// so would make the journal unreadable. Returns an error wrapping
// os.ErrExist if the file is already there.
func (p *FileKeyProvider) StoreKey(key []byte) error {
	if len(key) != journalKeySize {
		return fmt.Errorf("invalid key size: got %d, want %d", len(key), journalKeySize)
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0700); err != nil {
		return fmt.Errorf("create key directory: %w", err)
	}

	// Written to a temp file and hard-linked into place so readers never
	// see a partial key and an existing key is never replaced.
	tmp, err := os.CreateTemp(filepath.Dir(p.path), journalKeyName+".*")
	if err != nil {
		return fmt.Errorf("create journal key: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("create journal key: %w", err)
	}
	if _, err := tmp.WriteString(hex.EncodeToString(key) + "\n"); err != nil {
		tmp.Close()
		return fmt.Errorf("write journal key: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write journal key: %w", err)
	}
	if err := os.Link(tmp.Name(), p.path); err != nil {
		return fmt.Errorf("store journal key: %w", err)
	}
	return nil
}

// KeyExists reports whether the key file exists.
func (p *FileKeyProvider) KeyExists() bool {
	_, err := os.Stat(p.path)
	return err == nil
}

// GenerateKey returns a random journal key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, journalKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return key, nil
}

// EnsureKey returns the stored key, creating one on first use. When two
// processes race, the loser reads the winner's key.
func EnsureKey(provider domain.KeyProvider) ([]byte, error) {
	if provider.KeyExists() {
		return provider.GetKey()
	}
	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	if err := provider.StoreKey(key); err != nil {
		if errors.Is(err, os.ErrExist) {
			return provider.GetKey()
		}
		return nil, err
	}
	return key, nil
}

var _ domain.KeyProvider = (*FileKeyProvider)(nil)

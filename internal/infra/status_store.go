package infra

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/eliteGoblin/focusd/screen_guard/internal/domain"
)

// FileStatusStore implements domain.StatusStore using a JSON file.
// Writes go through a lock file and an atomic rename so the status
// command never reads a torn snapshot.
type FileStatusStore struct {
	path string
}

// NewFileStatusStore creates a status store at path.
func NewFileStatusStore(path string) *FileStatusStore {
	return &FileStatusStore{path: path}
}

// Path returns the snapshot file path.
func (s *FileStatusStore) Path() string {
	return s.path
}

// Save writes the snapshot, stamping UpdatedAt when unset.
func (s *FileStatusStore) Save(snapshot domain.StatusSnapshot) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create status directory: %w", err)
	}

	lockFile, err := os.OpenFile(s.path+".lock", os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	defer lockFile.Close()

	if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() { _ = syscall.Flock(int(lockFile.Fd()), syscall.LOCK_UN) }()

	if snapshot.UpdatedAt == 0 {
		snapshot.UpdatedAt = time.Now().Unix()
	}
	return s.atomicWrite(&snapshot)
}

// Load returns the stored snapshot, or nil when none was written yet.
func (s *FileStatusStore) Load() (*domain.StatusSnapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var snapshot domain.StatusSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("corrupt status file %s: %w", s.path, err)
	}
	return &snapshot, nil
}

// Clear removes the snapshot file. A missing file is not an error.
func (s *FileStatusStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// atomicWrite writes the snapshot to a temp file and renames it into place.
func (s *FileStatusStore) atomicWrite(snapshot *domain.StatusSnapshot) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}

	// Unique per process so two writers never share a temp file
	tmpPath := fmt.Sprintf("%s.%d.tmp", s.path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// Ensure FileStatusStore implements domain.StatusStore.
var _ domain.StatusStore = (*FileStatusStore)(nil)

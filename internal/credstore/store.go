// Package credstore persists the session's credential pair and cached
// identity across process restarts. The on-disk blob keeps the stable key
// names the backend contract uses (accessToken, refreshToken, user,
// userType) so a stored session survives client upgrades.
package credstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"shelterlink/internal/domain"
)

// Snapshot is the persisted shape of a session. The zero value means
// "no stored session".
type Snapshot struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	User         *domain.User `json:"user"`
	UserType     domain.Role  `json:"userType"`
}

// Valid reports whether the snapshot is complete enough to trust: both
// credentials, an identity with an ID, and a canonical role.
func (s *Snapshot) Valid() bool {
	if s == nil || s.AccessToken == "" || s.RefreshToken == "" {
		return false
	}
	if s.User == nil || s.User.ID == "" || s.User.Email == "" {
		return false
	}
	return s.UserType.Valid()
}

// Store abstracts credential persistence so tests can substitute an
// in-memory implementation.
type Store interface {
	// Load returns the stored snapshot, (nil, nil) when nothing is stored,
	// or domain.ErrPersistenceCorrupt when the blob fails shape validation.
	Load() (*Snapshot, error)
	// Save writes the snapshot atomically: the previous blob stays intact
	// if the write fails partway.
	Save(*Snapshot) error
	// Clear removes the stored snapshot. Clearing an empty store is a no-op.
	Clear() error
}

// FileStore keeps the snapshot in a single file, optionally sealed with a
// passphrase-derived key.
type FileStore struct {
	path   string
	sealer *Sealer
}

// NewFileStore creates a store at path. A non-empty passphrase enables
// sealing at rest.
func NewFileStore(path, passphrase string) *FileStore {
	fs := &FileStore{path: path}
	if passphrase != "" {
		fs.sealer = NewSealer(passphrase)
	}
	return fs
}

func (f *FileStore) Load() (*Snapshot, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credential file: %w", err)
	}

	if len(data) == 0 {
		return nil, nil
	}

	if IsSealed(data) {
		if f.sealer == nil {
			return nil, fmt.Errorf("%w: sealed blob but no passphrase configured", domain.ErrPersistenceCorrupt)
		}
		data, err = f.sealer.Open(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrPersistenceCorrupt, err)
		}
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistenceCorrupt, err)
	}

	if !snap.Valid() {
		return nil, fmt.Errorf("%w: incomplete snapshot", domain.ErrPersistenceCorrupt)
	}

	return &snap, nil
}

func (f *FileStore) Save(snap *Snapshot) error {
	if snap == nil || !snap.Valid() {
		return fmt.Errorf("refusing to persist incomplete snapshot")
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if f.sealer != nil {
		data, err = f.sealer.Seal(data)
		if err != nil {
			return fmt.Errorf("failed to seal snapshot: %w", err)
		}
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create credential dir: %w", err)
	}

	// Write-then-rename keeps the previous blob intact on a partial write.
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set credential file mode: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write credential file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close credential file: %w", err)
	}

	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("failed to commit credential file: %w", err)
	}
	return nil
}

func (f *FileStore) Clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove credential file: %w", err)
	}
	return nil
}

package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/strdr1/telegram-bot-api-sub001/internal/domain"
)

// FileStore keeps one JSON document per snapshot kind inside a directory.
// Writes go to a temp file first and are renamed into place.
type FileStore struct {
	dir   string
	files map[domain.SnapshotKind]string
	mu    sync.Mutex
}

// NewFileStore creates a store. Empty file names fall back to the defaults.
func NewFileStore(dir, deliveryFile, fullFile string) *FileStore {
	if deliveryFile == "" {
		deliveryFile = "menu_cache.json"
	}
	if fullFile == "" {
		fullFile = "all_menus_cache.json"
	}
	return &FileStore{
		dir: dir,
		files: map[domain.SnapshotKind]string{
			domain.SnapshotDelivery: deliveryFile,
			domain.SnapshotFull:     fullFile,
		},
	}
}

// Path returns the file backing a snapshot kind.
func (s *FileStore) Path(kind domain.SnapshotKind) string {
	return filepath.Join(s.dir, s.files[kind])
}

// Load reads a persisted snapshot. Missing files yield ErrSnapshotNotFound,
// unreadable or corrupt files ErrPersistenceFailure.
func (s *FileStore) Load(kind domain.SnapshotKind) (*domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.Path(kind))
	if errors.Is(err, os.ErrNotExist) {
		return nil, domain.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrPersistenceFailure, kind, err)
	}

	return Decode(data)
}

// Decode parses a snapshot document and canonicalizes its menu keys.
func Decode(data []byte) (*domain.Snapshot, error) {
	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", domain.ErrPersistenceFailure, err)
	}

	menus := make(map[domain.ID]*domain.Menu, len(snap.Menus))
	for key, menu := range snap.Menus {
		if menu == nil {
			continue
		}
		id := domain.NewID(string(key))
		if menu.ID == "" {
			menu.ID = id
		}
		menus[id] = menu
	}
	snap.Menus = menus
	return &snap, nil
}

// Save writes the snapshot atomically.
func (s *FileStore) Save(kind domain.SnapshotKind, snapshot *domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("%w: create dir: %v", domain.ErrPersistenceFailure, err)
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode: %v", domain.ErrPersistenceFailure, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("%w: temp file: %v", domain.ErrPersistenceFailure, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write: %v", domain.ErrPersistenceFailure, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close: %v", domain.ErrPersistenceFailure, err)
	}
	if err := os.Rename(tmp.Name(), s.Path(kind)); err != nil {
		return fmt.Errorf("%w: rename: %v", domain.ErrPersistenceFailure, err)
	}

	log.Printf("[STORE] Saved %s snapshot (%d menus) to %s", kind, len(snapshot.Menus), s.Path(kind))
	return nil
}

// Remove deletes the persisted snapshot. A missing file is not an error.
func (s *FileStore) Remove(kind domain.SnapshotKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.Path(kind))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: remove %s: %v", domain.ErrPersistenceFailure, kind, err)
	}
	return nil
}

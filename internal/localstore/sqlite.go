package localstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the production Store over the finance sqlite file. It
// holds a lazily opened handle used only for WAL checkpoints; the finance
// app itself owns its own connections.
type SQLiteStore struct {
	path       string
	backupsDir string

	mu sync.Mutex
	db *sql.DB
}

func NewSQLiteStore(path, backupsDir string) *SQLiteStore {
	return &SQLiteStore{path: path, backupsDir: backupsDir}
}

func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) handle() (*sql.DB, error) {
	if s.db != nil {
		return s.db, nil
	}
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	s.db = db
	return db, nil
}

func (s *SQLiteStore) ForceCheckpoint(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		// Nothing to settle yet.
		return nil
	}

	db, err := s.handle()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("wal checkpoint: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ReadBytes(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read local store: %w", err)
	}
	return data, nil
}

func (s *SQLiteStore) Replace(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Release our handle before touching the file.
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return fmt.Errorf("close local store handle: %w", err)
		}
		s.db = nil
	}

	tmp := s.path + ".incoming"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write incoming store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("swap local store: %w", err)
	}

	// Stale side files from the previous store would resurface pre-pull
	// state on next open.
	for _, side := range []string{s.path + "-wal", s.path + "-shm"} {
		if err := os.Remove(side); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove side file %s: %w", side, err)
		}
	}
	return nil
}

func (s *SQLiteStore) CreateBackup(ctx context.Context) (string, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read local store for backup: %w", err)
	}

	if err := os.MkdirAll(s.backupsDir, 0o700); err != nil {
		return "", fmt.Errorf("create backups dir: %w", err)
	}

	name := fmt.Sprintf("%s-%s-%s.bak",
		strings.TrimSuffix(filepath.Base(s.path), filepath.Ext(s.path)),
		time.Now().UTC().Format("20060102T150405Z"),
		uuid.NewString()[:8])
	dest := filepath.Join(s.backupsDir, name)

	if err := os.WriteFile(dest, data, 0o600); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}
	return dest, nil
}

func (s *SQLiteStore) PruneBackups(ctx context.Context, keep int) error {
	if keep <= 0 {
		return nil
	}

	entries, err := os.ReadDir(s.backupsDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("list backups: %w", err)
	}

	var backups []os.DirEntry
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".bak") {
			backups = append(backups, e)
		}
	}
	if len(backups) <= keep {
		return nil
	}

	// Timestamped names sort chronologically.
	sort.Slice(backups, func(i, j int) bool { return backups[i].Name() < backups[j].Name() })

	for _, e := range backups[:len(backups)-keep] {
		if err := os.Remove(filepath.Join(s.backupsDir, e.Name())); err != nil {
			return fmt.Errorf("prune backup %s: %w", e.Name(), err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

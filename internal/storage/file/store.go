// Package file keeps the ledger in memory and writes the whole snapshot to a
// JSON file after every mutation.
package file

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/sheikh-saqib/bread-credit-ledger/internal/codec"
	interfaces "github.com/sheikh-saqib/bread-credit-ledger/internal/interfaces"
	"github.com/sheikh-saqib/bread-credit-ledger/internal/models"
	"github.com/sheikh-saqib/bread-credit-ledger/internal/seed"
	"github.com/sheikh-saqib/bread-credit-ledger/internal/storage/memory"
)

// SnapshotStore is a memory store whose commit hook persists to a file.
type SnapshotStore struct {
	*memory.MemoryLedgerStore
	path string
}

// Open restores the snapshot at path. A missing, unreadable or inconsistent
// snapshot is never an error: the store starts from the seed dataset instead.
func Open(path string, logger *zap.Logger) *SnapshotStore {
	logger = logger.With(zap.String("component", "file-store"), zap.String("path", path))

	snap, err := Load(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Info("no snapshot found, starting from seed data")
		snap = seed.Default()
	case err != nil:
		logger.Warn("snapshot unreadable, starting from seed data", zap.Error(err))
		snap = seed.Default()
	}

	s := &SnapshotStore{path: path}
	s.MemoryLedgerStore = memory.NewMemoryLedgerStore(snap, s.persist)
	return s
}

// Load reads the snapshot file at path and validates it the same way a
// snapshot import does. Order totals are recomputed.
func Load(path string) (models.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.Snapshot{}, err
	}
	defer f.Close()

	snap, err := codec.DecodeSnapshot(f)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	return snap, nil
}

// persist writes snap to a temporary file in the same directory and renames
// it over the snapshot, so readers never observe a half-written file.
func (s *SnapshotStore) persist(snap models.Snapshot) error {
	var buf bytes.Buffer
	if err := codec.WriteSnapshotJSON(&buf, snap); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Path returns the snapshot file location.
func (s *SnapshotStore) Path() string { return s.path }

var _ interfaces.LedgerStore = (*SnapshotStore)(nil)

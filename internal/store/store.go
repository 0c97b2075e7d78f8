// internal/store/store.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/lpvault/internal/curve"
	"github.com/rovshanmuradov/lpvault/internal/token"
	"github.com/rovshanmuradov/lpvault/internal/vault"
)

// SchemaVersion is bumped whenever Snapshot changes incompatibly.
const SchemaVersion = 1

// Snapshot is the complete persisted state: the funding asset ledger and both
// engines' counters and token ledgers.
type Snapshot struct {
	Version int         `json:"version"`
	SavedAt time.Time   `json:"saved_at"`
	Stable  token.State `json:"stable"`
	Vault   vault.State `json:"vault"`
	Curve   curve.State `json:"curve"`
}

// Store reads and atomically replaces a JSON snapshot file.
type Store struct {
	path       string
	maxElapsed time.Duration
	logger     *zap.Logger
}

// New creates a store for path. maxElapsed bounds the retries of one Save.
func New(path string, maxElapsed time.Duration, logger *zap.Logger) *Store {
	return &Store{path: path, maxElapsed: maxElapsed, logger: logger.Named("store")}
}

// Path returns the snapshot location.
func (s *Store) Path() string { return s.path }

// Load returns the stored snapshot, or nil when no file exists yet.
func (s *Store) Load() (*Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Debug("No snapshot yet", zap.String("path", s.path))
			return nil, nil
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", s.path, err)
	}
	if snap.Version != SchemaVersion {
		return nil, fmt.Errorf("snapshot %s has version %d, expected %d", s.path, snap.Version, SchemaVersion)
	}
	return &snap, nil
}

// Save writes snap to a temporary file and renames it over the snapshot, so
// readers never see a partial file. Transient I/O errors are retried.
func (s *Store) Save(ctx context.Context, snap *Snapshot) error {
	snap.Version = SchemaVersion
	snap.SavedAt = time.Now().UTC()
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	op := func() (struct{}, error) {
		return struct{}{}, s.writeAtomic(data)
	}
	opts := []backoff.RetryOption{
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.logger.Warn("Snapshot write failed, retrying",
				zap.String("path", s.path),
				zap.Duration("backoff", next),
				zap.Error(err))
		}),
	}
	if s.maxElapsed > 0 {
		opts = append(opts, backoff.WithMaxElapsedTime(s.maxElapsed))
	} else {
		opts = append(opts, backoff.WithMaxTries(1))
	}

	if _, err := backoff.Retry(ctx, op, opts...); err != nil {
		return fmt.Errorf("save snapshot %s: %w", s.path, err)
	}
	s.logger.Debug("Snapshot saved", zap.String("path", s.path), zap.Int("bytes", len(data)))
	return nil
}

func (s *Store) writeAtomic(data []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return backoff.Permanent(fmt.Errorf("create directory: %w", err))
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, s.path)
}

// internal/journal/journal.go
package journal

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"cosmossdk.io/math"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/lpvault/internal/events"
)

// Header is the first row of every new journal file.
var Header = []string{
	"timestamp", "event", "account", "stable", "units",
	"total_assets", "total_shares", "managed_assets",
	"total_issued", "reserve", "price",
}

// Journal appends one CSV row per committed engine event. Rows are buffered
// and flushed periodically and on Close.
type Journal struct {
	mu      sync.Mutex
	writer  *csv.Writer
	file    *os.File
	ticker  *time.Ticker
	done    chan struct{}
	stopped chan struct{}
	logger  *zap.Logger
	path    string

	// Stats
	records uint64
	flushes uint64
}

// Open opens (or creates) the journal at path in append mode.
func Open(path string, flushInterval time.Duration, logger *zap.Logger) (*Journal, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if flushInterval <= 0 {
		flushInterval = time.Second
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat journal: %w", err)
	}

	j := &Journal{
		writer:  csv.NewWriter(file),
		file:    file,
		ticker:  time.NewTicker(flushInterval),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		logger:  logger.Named("journal"),
		path:    path,
	}

	if stat.Size() == 0 {
		if err := j.writer.Write(Header); err != nil {
			j.ticker.Stop()
			file.Close()
			return nil, fmt.Errorf("failed to write journal header: %w", err)
		}
		j.writer.Flush()
	}

	go j.periodicFlush()
	return j, nil
}

// Attach records every event published on bus.
func (j *Journal) Attach(bus *events.Bus) events.Subscription {
	return bus.SubscribeFunc(events.Any, func(_ context.Context, e events.Event) error {
		return j.Record(e)
	})
}

// Record appends the row for e. Unknown event kinds are ignored.
func (j *Journal) Record(e events.Event) error {
	row, ok := Row(e)
	if !ok {
		return nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.writer.Write(row); err != nil {
		return fmt.Errorf("failed to write journal row: %w", err)
	}
	j.records++
	return nil
}

// Row maps an event onto the journal columns.
func Row(e events.Event) ([]string, bool) {
	ts := e.Timestamp().UTC().Format(time.RFC3339Nano)
	kind := string(e.Type())

	switch ev := e.(type) {
	case *events.DepositEvent:
		return vaultRow(ts, kind, string(ev.Receiver), ev.Assets, ev.Shares, ev.After), true
	case *events.RedeemEvent:
		return vaultRow(ts, kind, string(ev.Owner), ev.Assets, ev.Shares, ev.After), true
	case *events.FundsMovedEvent:
		return vaultRow(ts, kind, string(ev.Operator), ev.Amount, math.Int{}, ev.After), true
	case *events.PnLReportedEvent:
		return vaultRow(ts, kind, string(ev.Operator), ev.Delta, math.Int{}, ev.After), true
	case *events.TradeEvent:
		return []string{
			ts, kind, string(ev.Trader), str(ev.Stable), str(ev.Tokens),
			"", "", "",
			str(ev.After.TotalIssued), str(ev.After.ReserveBalance), str(ev.After.Price),
		}, true
	default:
		return nil, false
	}
}

func vaultRow(ts, kind, account string, stable, units math.Int, after events.VaultSnapshot) []string {
	return []string{
		ts, kind, account, str(stable), str(units),
		str(after.TotalAssets), str(after.TotalShares), str(after.ManagedAssets),
		"", "", "",
	}
}

func str(v math.Int) string {
	if v.IsNil() {
		return ""
	}
	return v.String()
}

// Flush forces buffered rows to disk.
func (j *Journal) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.flushLocked()
}

func (j *Journal) flushLocked() error {
	j.writer.Flush()
	if err := j.writer.Error(); err != nil {
		return fmt.Errorf("journal writer error: %w", err)
	}
	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync journal: %w", err)
	}
	j.flushes++
	return nil
}

func (j *Journal) periodicFlush() {
	defer close(j.stopped)
	for {
		select {
		case <-j.ticker.C:
			if err := j.Flush(); err != nil {
				j.logger.Error("Periodic journal flush failed",
					zap.String("file", j.path),
					zap.Error(err))
			}
		case <-j.done:
			return
		}
	}
}

// Close stops the flusher, writes what is buffered and closes the file.
func (j *Journal) Close() error {
	close(j.done)
	j.ticker.Stop()
	<-j.stopped

	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.flushLocked(); err != nil {
		j.file.Close()
		return err
	}
	if err := j.file.Close(); err != nil {
		return fmt.Errorf("failed to close journal: %w", err)
	}

	j.logger.Debug("Journal closed",
		zap.String("file", j.path),
		zap.Uint64("records", j.records),
		zap.Uint64("flushes", j.flushes))
	return nil
}

// Stats returns rows written and flushes performed.
func (j *Journal) Stats() (records, flushes uint64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.records, j.flushes
}

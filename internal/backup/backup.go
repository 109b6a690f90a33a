// Package backup takes periodic consistent snapshots of the sqlite database
// into a local directory with retention-based pruning. Deployments on the
// hosted Postgres service skip this entirely; backups are the service's job
// there.
package backup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Snapshotter is the slice of the store backups need.
type Snapshotter interface {
	Backup(ctx context.Context, destPath string) error
}

// Runner takes snapshots into a directory and prunes old ones.
type Runner struct {
	store     Snapshotter
	dir       string
	retention int // snapshots to keep; 0 = keep all

	mu sync.Mutex // one backup at a time (scheduled + on-demand)
}

// NewRunner creates a backup runner writing into dir.
func NewRunner(store Snapshotter, dir string, retention int) (*Runner, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}
	return &Runner{store: store, dir: dir, retention: retention}, nil
}

const snapshotPrefix = "locomotion-"

// RunOnce takes one snapshot and prunes beyond retention. Safe to call
// concurrently with the scheduler.
func (r *Runner) RunOnce(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := snapshotPrefix + time.Now().UTC().Format("20060102T150405Z") + ".db"
	dest := filepath.Join(r.dir, name)
	if err := r.store.Backup(ctx, dest); err != nil {
		return fmt.Errorf("snapshot to %s: %w", dest, err)
	}
	slog.Info("database snapshot written", "path", dest)

	pruned, err := r.prune()
	if err != nil {
		return err
	}
	if pruned > 0 {
		slog.Info("old snapshots pruned", "count", pruned)
	}
	return nil
}

// prune deletes the oldest snapshots beyond the retention count. The
// timestamped names sort lexically in chronological order.
func (r *Runner) prune() (int, error) {
	if r.retention <= 0 {
		return 0, nil
	}
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return 0, fmt.Errorf("read backup dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), snapshotPrefix) {
			names = append(names, e.Name())
		}
	}
	if len(names) <= r.retention {
		return 0, nil
	}
	sort.Strings(names)

	deleted := 0
	for _, name := range names[:len(names)-r.retention] {
		if err := os.Remove(filepath.Join(r.dir, name)); err != nil {
			return deleted, fmt.Errorf("prune snapshot %s: %w", name, err)
		}
		deleted++
	}
	return deleted, nil
}

// Schedule runs RunOnce every interval until Stop. Returns a stop func that
// halts the ticker and waits for any in-progress run to finish.
func (r *Runner) Schedule(interval time.Duration) (stop func()) {
	if interval <= 0 {
		return func() {}
	}
	stopCh := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := r.RunOnce(context.Background()); err != nil {
					slog.Error("scheduled backup failed", "error", err)
				}
			case <-stopCh:
				return
			}
		}
	}()
	return func() {
		close(stopCh)
		<-done
	}
}

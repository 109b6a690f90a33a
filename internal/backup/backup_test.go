package backup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type fakeSnapshotter struct{ calls int }

func (f *fakeSnapshotter) Backup(_ context.Context, destPath string) error {
	f.calls++
	return os.WriteFile(destPath, []byte("snapshot"), 0o644)
}

func snapshots(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestRunOncePrunesBeyondRetention(t *testing.T) {
	dir := t.TempDir()
	snap := &fakeSnapshotter{}
	r, err := NewRunner(snap, dir, 2)
	if err != nil {
		t.Fatal(err)
	}

	// Pre-seed older snapshots; names sort chronologically.
	for _, name := range []string{
		snapshotPrefix + "20240101T000000Z.db",
		snapshotPrefix + "20240102T000000Z.db",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("old"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if err := r.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	got := snapshots(t, dir)
	if len(got) != 2 {
		t.Fatalf("want 2 snapshots after prune, got %v", got)
	}
	// The oldest one must be the casualty.
	for _, name := range got {
		if name == snapshotPrefix+"20240101T000000Z.db" {
			t.Fatalf("oldest snapshot survived prune: %v", got)
		}
	}
}

func TestRunOnceKeepsAllWithZeroRetention(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRunner(&fakeSnapshotter{}, dir, 0)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := r.RunOnce(context.Background()); err != nil {
			t.Fatal(err)
		}
		time.Sleep(1100 * time.Millisecond) // distinct second-granularity names
	}
	if got := snapshots(t, dir); len(got) != 2 {
		t.Fatalf("want 2 snapshots, got %v", got)
	}
}

func TestIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep me"), 0o644); err != nil {
		t.Fatal(err)
	}
	r, err := NewRunner(&fakeSnapshotter{}, dir, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "notes.txt")); err != nil {
		t.Fatalf("foreign file was pruned: %v", err)
	}
}

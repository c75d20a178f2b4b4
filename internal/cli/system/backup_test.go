package system

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/julianstephens/habitsync/internal/frequency"
	"github.com/julianstephens/habitsync/internal/models"
	"github.com/julianstephens/habitsync/internal/remote"
	"github.com/julianstephens/habitsync/internal/storage"
	"github.com/julianstephens/habitsync/internal/storage/sqlite"
)

// addOffline queues a habit creation in the store at dbPath and closes it.
func addOffline(t *testing.T, dbPath, title string) int {
	t.Helper()
	ctx, _ := setupTestContext(t, sqlite.NewStore(dbPath), remote.Disconnected{})
	if err := ctx.Load(); err != nil {
		t.Fatal(err)
	}
	if _, err := ctx.Engine.CreateHabit(ctx.Context(), models.HabitInput{Title: title, Frequency: frequency.Daily}); err != nil {
		t.Fatal(err)
	}
	pending := ctx.Engine.GetPendingSyncCount()
	if err := ctx.Close(); err != nil {
		t.Fatal(err)
	}
	return pending
}

func pendingIn(t *testing.T, dbPath string) int {
	t.Helper()
	ctx, _ := setupTestContext(t, sqlite.NewStore(dbPath), remote.Disconnected{})
	if err := ctx.Load(); err != nil {
		t.Fatal(err)
	}
	return ctx.Engine.GetPendingSyncCount()
}

func TestBackupCmd_CreateListRestore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "habitsync.db")
	ctx, out := setupTestContext(t, sqlite.NewStore(dbPath), remote.Disconnected{})
	if err := (&InitCmd{}).Run(ctx); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	if n := addOffline(t, dbPath, "Read"); n != 1 {
		t.Fatalf("pending = %d, want 1", n)
	}

	out.Reset()
	if err := (&BackupCreateCmd{Keep: 5}).Run(ctx); err != nil {
		t.Fatalf("backup create failed: %v", err)
	}
	if !strings.Contains(out.String(), "Created backup: ") {
		t.Errorf("unexpected create output: %q", out.String())
	}
	created := strings.TrimSpace(strings.TrimPrefix(out.String(), "Created backup: "))
	created = created[:strings.Index(created, " (")]

	if n := addOffline(t, dbPath, "Stretch"); n != 2 {
		t.Fatalf("pending = %d, want 2", n)
	}

	out.Reset()
	if err := (&BackupListCmd{}).Run(ctx); err != nil {
		t.Fatalf("backup list failed: %v", err)
	}
	if !strings.Contains(out.String(), filepath.Base(created)) {
		t.Errorf("list output %q does not mention %s", out.String(), filepath.Base(created))
	}

	out.Reset()
	if err := (&BackupRestoreCmd{Backup: filepath.Base(created), Yes: true}).Run(ctx); err != nil {
		t.Fatalf("backup restore failed: %v", err)
	}
	if !strings.Contains(out.String(), "Saved current store as: ") || !strings.Contains(out.String(), "Restored local store from: ") {
		t.Errorf("unexpected restore output: %q", out.String())
	}

	if n := pendingIn(t, dbPath); n != 1 {
		t.Errorf("pending after restore = %d, want 1", n)
	}
}

func TestBackupCmd_ListEmpty(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "habitsync.db")
	ctx, out := setupTestContext(t, sqlite.NewStore(dbPath), remote.Disconnected{})

	if err := (&BackupListCmd{}).Run(ctx); err != nil {
		t.Fatalf("backup list failed: %v", err)
	}
	if !strings.Contains(out.String(), "No backups found.") {
		t.Errorf("unexpected output: %q", out.String())
	}
}

func TestBackupCmd_RequiresSQLite(t *testing.T) {
	ctx, _ := setupTestContext(t, storage.NewMemory(), remote.Disconnected{})

	err := (&BackupCreateCmd{}).Run(ctx)
	if err == nil || !strings.Contains(err.Error(), "SQLite") {
		t.Errorf("backup on a memory store = %v, want an unsupported-store error", err)
	}
}

func TestBackupCmd_RestoreMissing(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "habitsync.db")
	ctx, _ := setupTestContext(t, sqlite.NewStore(dbPath), remote.Disconnected{})

	err := (&BackupRestoreCmd{Backup: "habitsync-20260101-000000.db", Yes: true}).Run(ctx)
	if err == nil || !strings.Contains(err.Error(), "backup not found") {
		t.Errorf("restore of a missing snapshot = %v", err)
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{3 << 20, "3.0 MB"},
	}
	for _, tt := range tests {
		if got := formatSize(tt.n); got != tt.want {
			t.Errorf("formatSize(%d) = %s, want %s", tt.n, got, tt.want)
		}
	}
}

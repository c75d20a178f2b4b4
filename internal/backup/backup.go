// Package backup snapshots the SQLite local store. A snapshot carries the
// cached habits and the pending change queue, so restoring one also restores
// unsynced work.
package backup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/julianstephens/habitsync/internal/logger"
)

const (
	// DefaultKeep is how many snapshots survive rotation
	DefaultKeep = 14
	DirName     = "backups"
	FilePrefix  = "habitsync-"
	FileSuffix  = ".db"

	stampLayout = "20060102-150405"
)

// ErrNoDatabase is returned when the store file has not been created yet
var ErrNoDatabase = errors.New("local store does not exist, run 'habitsync init' first")

// Info describes one snapshot on disk
type Info struct {
	Path      string
	Timestamp time.Time
	Size      int64

	seq int
}

// Name is the snapshot's file name
func (i Info) Name() string { return filepath.Base(i.Path) }

type Option func(*Manager)

// WithKeep overrides the number of snapshots kept by rotation.
func WithKeep(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.keep = n
		}
	}
}

// WithDir stores snapshots somewhere other than <store dir>/backups.
func WithDir(dir string) Option {
	return func(m *Manager) { m.dir = dir }
}

// WithClock replaces time.Now for snapshot names.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager creates, lists, rotates and restores snapshots of one database file
type Manager struct {
	dbPath string
	dir    string
	keep   int
	now    func() time.Time
}

func NewManager(dbPath string, opts ...Option) *Manager {
	m := &Manager{
		dbPath: dbPath,
		dir:    filepath.Join(filepath.Dir(dbPath), DirName),
		keep:   DefaultKeep,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Dir() string { return m.dir }

// Create writes a new snapshot and rotates old ones.
func (m *Manager) Create(ctx context.Context) (Info, error) {
	info, err := m.create(ctx)
	if err != nil {
		return Info{}, err
	}
	if err := m.rotate(); err != nil {
		logger.Warn("Failed to rotate old backups", "dir", m.dir, "error", err)
	}
	return info, nil
}

func (m *Manager) create(ctx context.Context) (Info, error) {
	if _, err := os.Stat(m.dbPath); os.IsNotExist(err) {
		return Info{}, ErrNoDatabase
	}
	if err := os.MkdirAll(m.dir, 0700); err != nil {
		return Info{}, fmt.Errorf("failed to create backup directory: %w", err)
	}

	path, err := m.nextPath()
	if err != nil {
		return Info{}, err
	}
	if err := m.snapshot(ctx, path); err != nil {
		return Info{}, fmt.Errorf("failed to back up database: %w", err)
	}

	st, err := os.Stat(path)
	if err != nil {
		return Info{}, err
	}
	info, _ := parseName(path)
	info.Size = st.Size()
	logger.Debug("Created backup", "path", path, "size", info.Size)
	return info, nil
}

// nextPath picks a file name that does not exist yet; snapshots taken within
// the same second get a numeric suffix.
func (m *Manager) nextPath() (string, error) {
	stamp := m.now().UTC().Format(stampLayout)
	for n := 0; n < 100; n++ {
		name := FilePrefix + stamp + FileSuffix
		if n > 0 {
			name = fmt.Sprintf("%s%s-%d%s", FilePrefix, stamp, n, FileSuffix)
		}
		path := filepath.Join(m.dir, name)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path, nil
		}
	}
	return "", fmt.Errorf("failed to generate a unique backup name in %s", m.dir)
}

func (m *Manager) snapshot(ctx context.Context, dest string) error {
	db, err := sql.Open("sqlite", m.dbPath+"?mode=ro")
	if err != nil {
		return err
	}
	defer db.Close()

	if err := verify(ctx, db); err != nil {
		return fmt.Errorf("source database appears to be corrupted: %w", err)
	}
	_, err = db.ExecContext(ctx, "VACUUM INTO ?", dest)
	return err
}

// List returns the snapshots in the backup directory, newest first.
func (m *Manager) List() ([]Info, error) {
	entries, err := os.ReadDir(m.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var out []Info
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, ok := parseName(filepath.Join(m.dir, e.Name()))
		if !ok {
			continue
		}
		st, err := e.Info()
		if err != nil {
			continue
		}
		info.Size = st.Size()
		out = append(out, info)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].seq > out[j].seq
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

// parseName reads the timestamp out of habitsync-YYYYMMDD-HHMMSS[-N].db.
func parseName(path string) (Info, bool) {
	name := filepath.Base(path)
	if !strings.HasPrefix(name, FilePrefix) || !strings.HasSuffix(name, FileSuffix) {
		return Info{}, false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, FilePrefix), FileSuffix)
	seq := 0
	if len(stamp) > len(stampLayout) {
		suffix := stamp[len(stampLayout):]
		if !strings.HasPrefix(suffix, "-") {
			return Info{}, false
		}
		n, err := strconv.Atoi(suffix[1:])
		if err != nil || n < 1 {
			return Info{}, false
		}
		seq = n
		stamp = stamp[:len(stampLayout)]
	}
	ts, err := time.Parse(stampLayout, stamp)
	if err != nil {
		return Info{}, false
	}
	return Info{Path: path, Timestamp: ts, seq: seq}, true
}

func (m *Manager) rotate() error {
	backups, err := m.List()
	if err != nil {
		return err
	}
	for i := m.keep; i < len(backups); i++ {
		if err := os.Remove(backups[i].Path); err != nil {
			return fmt.Errorf("failed to remove old backup %s: %w", backups[i].Name(), err)
		}
	}
	return nil
}

// Resolve accepts a snapshot path or a bare file name inside the backup
// directory.
func (m *Manager) Resolve(ref string) string {
	if strings.ContainsRune(ref, os.PathSeparator) {
		return ref
	}
	return filepath.Join(m.dir, ref)
}

// Restore replaces the database with the snapshot at path. The current
// database is snapshotted first and that snapshot is returned. The store must
// not be open while restoring.
func (m *Manager) Restore(ctx context.Context, path string) (Info, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Info{}, fmt.Errorf("backup file does not exist: %s", path)
	}
	if err := verifyFile(ctx, path); err != nil {
		return Info{}, fmt.Errorf("backup file is corrupted or invalid: %w", err)
	}

	var safety Info
	if _, err := os.Stat(m.dbPath); err == nil {
		// No rotation here, or the snapshot being restored could be removed.
		safety, err = m.create(ctx)
		if err != nil {
			return Info{}, fmt.Errorf("failed to back up current database before restore: %w", err)
		}
	}

	tmp := m.dbPath + ".restore.tmp"
	if err := copyFile(path, tmp); err != nil {
		return Info{}, fmt.Errorf("failed to copy backup file: %w", err)
	}
	if err := os.Rename(tmp, m.dbPath); err != nil {
		if rmErr := os.Remove(tmp); rmErr != nil {
			logger.Warn("Failed to remove temporary restore file", "path", tmp, "error", rmErr)
		}
		return Info{}, fmt.Errorf("failed to restore database: %w", err)
	}
	// Stale WAL files would be replayed over the restored database.
	for _, ext := range []string{"-wal", "-shm"} {
		_ = os.Remove(m.dbPath + ext)
	}
	logger.Info("Restored local store", "from", path, "safety_backup", safety.Path)
	return safety, nil
}

func verifyFile(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return err
	}
	defer db.Close()
	return verify(ctx, db)
}

func verify(ctx context.Context, db *sql.DB) error {
	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA quick_check").Scan(&result); err != nil {
		return err
	}
	if result != "ok" {
		return fmt.Errorf("integrity check: %s", result)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

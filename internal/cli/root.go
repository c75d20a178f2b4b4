package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/julianstephens/habitsync/internal/keyring"
	"github.com/julianstephens/habitsync/internal/logger"
	"github.com/julianstephens/habitsync/internal/metrics"
	"github.com/julianstephens/habitsync/internal/models"
	"github.com/julianstephens/habitsync/internal/remote"
	"github.com/julianstephens/habitsync/internal/remote/memory"
	"github.com/julianstephens/habitsync/internal/remote/postgres"
	"github.com/julianstephens/habitsync/internal/storage"
	"github.com/julianstephens/habitsync/internal/storage/redis"
	"github.com/julianstephens/habitsync/internal/storage/sqlite"
	"github.com/julianstephens/habitsync/internal/syncer"
	"github.com/julianstephens/habitsync/internal/utils"
)

// Config is the resolved set of global flags
type Config struct {
	Store       string
	Remote      string
	Profile     string
	User        string
	Timezone    string
	Timeout     time.Duration
	MaxRetries  int
	SyncRate    float64
	MetricsFile string
}

// lifecycle is implemented by remotes that hold connections
type lifecycle interface {
	Init(ctx context.Context) error
	Load(ctx context.Context) error
	Close() error
}

type Context struct {
	Ctx     context.Context
	Config  Config
	Store   storage.Provider
	Remote  remote.Service
	Engine  *syncer.Engine
	Metrics *metrics.Metrics
	Out     io.Writer

	// RemoteConfigured is false when the engine runs without a remote
	RemoteConfigured bool

	loaded bool
}

// NewContext selects the local store and the remote from cfg without
// connecting to either.
func NewContext(cfg Config) (*Context, error) {
	store, err := OpenStore(cfg.Store)
	if err != nil {
		return nil, err
	}

	// Passwords are only tolerated in the encrypted keyring
	if cfg.Remote != "" && cfg.Remote != "memory" {
		if _, err := postgres.ValidateConnString(cfg.Remote); errors.Is(err, postgres.ErrEmbeddedCredentials) {
			return nil, fmt.Errorf("%w; store it with 'habitsync keyring set' or use .pgpass instead", err)
		}
	}

	connStr, err := keyring.ResolveConnectionString(cfg.Remote, cfg.Profile)
	if err != nil {
		return nil, err
	}
	svc, err := OpenRemote(connStr)
	if err != nil {
		return nil, err
	}

	_, disconnected := svc.(remote.Disconnected)
	return &Context{
		Ctx:              context.Background(),
		Config:           cfg,
		Store:            store,
		Remote:           svc,
		Metrics:          metrics.New(),
		Out:              os.Stdout,
		RemoteConfigured: !disconnected,
	}, nil
}

// OpenStore maps a --store value to a provider: "memory", a redis:// URL or
// a SQLite file path.
func OpenStore(target string) (storage.Provider, error) {
	switch {
	case target == "memory":
		return storage.NewMemory(), nil
	case strings.HasPrefix(target, "redis://"), strings.HasPrefix(target, "rediss://"):
		return redis.NewStore(target)
	case strings.TrimSpace(target) == "":
		return nil, errors.New("no local store configured")
	default:
		return sqlite.NewStore(ExpandHome(target)), nil
	}
}

// OpenRemote maps a connection string to a remote service. An empty string
// means no remote.
func OpenRemote(connStr string) (remote.Service, error) {
	switch connStr {
	case "":
		return remote.Disconnected{}, nil
	case "memory":
		return memory.New(), nil
	}
	if _, err := postgres.ValidateConnString(connStr); err != nil && !errors.Is(err, postgres.ErrEmbeddedCredentials) {
		return nil, err
	}
	return postgres.New(connStr), nil
}

// ExpandHome replaces a leading ~ with the user's home directory
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// Context returns the command's context.Context
func (c *Context) Context() context.Context {
	if c.Ctx == nil {
		return context.Background()
	}
	return c.Ctx
}

// Load opens the local store, connects the remote and opens the sync engine.
// A remote that cannot be reached is replaced by a disconnected one so that
// the command still works against the local queue.
func (c *Context) Load(opts ...syncer.Option) error {
	if c.loaded {
		return nil
	}
	ctx := c.Context()

	if err := c.Store.Load(ctx); err != nil {
		return err
	}

	if lc, ok := c.Remote.(lifecycle); ok {
		if err := lc.Load(ctx); err != nil {
			logger.Warn("Remote unavailable, working offline", "error", err)
			_ = lc.Close()
			c.Remote = remote.Disconnected{}
		}
	}

	loc, err := utils.LoadLocation(c.Config.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Config.Timezone, err)
	}

	engineOpts := []syncer.Option{
		syncer.WithLocation(loc),
		syncer.WithMetrics(c.Metrics),
		syncer.WithLogger(logger.Component("syncer")),
		syncer.WithDropHandler(c.PrintDropped),
	}
	if c.Config.Timeout > 0 {
		engineOpts = append(engineOpts, syncer.WithCallTimeout(c.Config.Timeout))
	}
	if c.Config.MaxRetries > 0 {
		engineOpts = append(engineOpts, syncer.WithMaxRetries(c.Config.MaxRetries))
	}
	if c.Config.SyncRate != 0 {
		engineOpts = append(engineOpts, syncer.WithRateLimit(c.Config.SyncRate))
	}
	engineOpts = append(engineOpts, opts...)

	c.Engine = syncer.New(c.Config.User, c.Remote, c.Store, engineOpts...)
	if err := c.Engine.Open(ctx); err != nil {
		return err
	}
	c.loaded = true
	return nil
}

// PrintDropped lists changes the engine gave up on
func (c *Context) PrintDropped(se *syncer.SyncError) {
	c.Println(OfflineStyle.Render(fmt.Sprintf("%d change(s) could not be synced:", len(se.Failures))))
	for _, f := range se.Failures {
		c.Printf("  dropped %s of %s: %v\n", f.Kind, f.HabitID, f.Err)
	}
}

// InitRemote creates or migrates the remote schema. It reports false when
// the remote has nothing to initialize.
func (c *Context) InitRemote() (bool, error) {
	lc, ok := c.Remote.(lifecycle)
	if !ok {
		return false, nil
	}
	if err := lc.Init(c.Context()); err != nil {
		return true, fmt.Errorf("failed to initialize remote: %w", err)
	}
	return true, nil
}

// Close writes the metrics file when configured and releases connections
func (c *Context) Close() error {
	var errs []error
	if c.Config.MetricsFile != "" && c.Metrics != nil {
		if err := c.Metrics.WriteFile(ExpandHome(c.Config.MetricsFile)); err != nil {
			errs = append(errs, fmt.Errorf("failed to write metrics: %w", err))
		}
	}
	if lc, ok := c.Remote.(lifecycle); ok {
		errs = append(errs, lc.Close())
	}
	if c.Store != nil {
		errs = append(errs, c.Store.Close())
	}
	return errors.Join(errs...)
}

// Location returns the configured timezone, falling back to local time
func (c *Context) Location() *time.Location {
	loc, err := utils.LoadLocation(c.Config.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// ParseDay parses a YYYY-MM-DD flag in the configured timezone. An empty
// value yields the zero time, which the engine reads as today.
func (c *Context) ParseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	day, err := utils.ParseDateInLocation(s, c.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date format: %s (expected YYYY-MM-DD)", s)
	}
	// Noon keeps the calendar date stable across DST shifts.
	return day.Add(12 * time.Hour), nil
}

// ResolveHabit finds a habit by id, unique id prefix or title (case-insensitive)
func (c *Context) ResolveHabit(ref string) (models.HabitWithCompletions, error) {
	habits, err := c.Engine.GetHabitsWithCompletions(c.Context())
	if err != nil {
		return models.HabitWithCompletions{}, err
	}

	ref = strings.TrimSpace(ref)
	var byTitle, byPrefix []models.HabitWithCompletions
	for _, h := range habits {
		if h.ID == ref {
			return h, nil
		}
		if strings.EqualFold(h.Title, ref) {
			byTitle = append(byTitle, h)
		}
		if len(ref) >= 4 && strings.HasPrefix(h.ID, ref) {
			byPrefix = append(byPrefix, h)
		}
	}

	for _, matches := range [][]models.HabitWithCompletions{byTitle, byPrefix} {
		switch len(matches) {
		case 0:
			continue
		case 1:
			return matches[0], nil
		default:
			ids := make([]string, 0, len(matches))
			for _, h := range matches {
				ids = append(ids, h.ID)
			}
			return models.HabitWithCompletions{}, fmt.Errorf("%q matches several habits, use an id: %s", ref, strings.Join(ids, ", "))
		}
	}
	return models.HabitWithCompletions{}, fmt.Errorf("%w: %q", syncer.ErrHabitNotFound, ref)
}

// Printf writes to the command output
func (c *Context) Printf(format string, args ...interface{}) {
	out := c.Out
	if out == nil {
		out = os.Stdout
	}
	fmt.Fprintf(out, format, args...)
}

// Println writes a line to the command output
func (c *Context) Println(args ...interface{}) {
	out := c.Out
	if out == nil {
		out = os.Stdout
	}
	fmt.Fprintln(out, args...)
}

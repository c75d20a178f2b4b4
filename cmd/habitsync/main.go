package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/habitsync/internal/cli"
	"github.com/julianstephens/habitsync/internal/cli/habits"
	"github.com/julianstephens/habitsync/internal/cli/system"
	"github.com/julianstephens/habitsync/internal/constants"
	apperrors "github.com/julianstephens/habitsync/internal/errors"
	"github.com/julianstephens/habitsync/internal/logger"
)

var CLI struct {
	Version     kong.VersionFlag
	ConfigDir   string        `help:"Directory for logs and the default store." type:"path" default:"${config_dir}" env:"HABITSYNC_CONFIG_DIR"`
	Store       string        `help:"Local store: a SQLite file path, a redis:// URL, or 'memory'." default:"${store}" env:"HABITSYNC_STORE"`
	Remote      string        `help:"PostgreSQL connection string of the remote service. Credentials must NOT be embedded; use the OS keyring, .pgpass or environment variables instead. Falls back to the keyring when empty." env:"HABITSYNC_DB_CONNECTION"`
	Profile     string        `help:"Keyring profile holding the connection string." env:"HABITSYNC_PROFILE"`
	User        string        `help:"User whose habits are managed." default:"local" env:"HABITSYNC_USER"`
	Timezone    string        `help:"Timezone used for calendar days (IANA name)." default:"Local" env:"HABITSYNC_TIMEZONE"`
	Timeout     time.Duration `help:"Timeout of each remote call." default:"${timeout}"`
	MaxRetries  int           `help:"Attempts before a failing change is dropped." default:"${max_retries}"`
	SyncRate    float64       `help:"Replayed changes per second (0 for unlimited)." default:"${sync_rate}"`
	Debug       bool          `help:"Log debug output to stderr." env:"HABITSYNC_DEBUG"`
	MetricsFile string        `help:"Write Prometheus metrics to this file on exit." type:"path"`

	Init    system.InitCmd    `cmd:"" help:"Initialize local storage and the remote schema."`
	Habit   habits.HabitCmd   `cmd:"" help:"Manage habits."`
	Today   habits.TodayCmd   `cmd:"" help:"Show today's habits." default:"1"`
	Sync    system.SyncCmd    `cmd:"" help:"Send pending changes to the remote."`
	Status  system.StatusCmd  `cmd:"" help:"Show connection status and pending changes."`
	Watch   system.WatchCmd   `cmd:"" help:"Stay connected and sync as changes happen."`
	Backup  system.BackupCmd  `cmd:"" help:"Snapshot and restore the local SQLite store."`
	Keyring system.KeyringCmd `cmd:"" help:"Manage the remote connection string in the OS keyring."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name(constants.AppName),
		kong.Description("Habit tracker that keeps working offline"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version":     constants.Version,
			"config_dir":  constants.DefaultConfigDir,
			"store":       constants.DefaultStorePath,
			"timeout":     constants.DefaultCallTimeout.String(),
			"max_retries": fmt.Sprint(constants.DefaultMaxRetries),
			"sync_rate":   fmt.Sprint(constants.DefaultSyncRatePerSec),
		},
	)

	if err := logger.Init(logger.Config{Debug: CLI.Debug, ConfigDir: CLI.ConfigDir}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logger: %v\n", err)
	}

	cfg := cli.Config{
		Store:       CLI.Store,
		Remote:      CLI.Remote,
		Profile:     CLI.Profile,
		User:        CLI.User,
		Timezone:    CLI.Timezone,
		Timeout:     CLI.Timeout,
		MaxRetries:  CLI.MaxRetries,
		SyncRate:    CLI.SyncRate,
		MetricsFile: CLI.MetricsFile,
	}
	appCtx, err := cli.NewContext(cfg)
	if err != nil {
		apperrors.Fatal(err)
	}
	appCtx.Ctx = context.Background()

	runErr := ctx.Run(appCtx)
	closeErr := appCtx.Close()
	if runErr != nil {
		apperrors.Fatal(runErr)
	}
	if closeErr != nil {
		logger.Warn("Failed to release resources", "error", closeErr)
	}
}

package system

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/habitsync/internal/backup"
	"github.com/julianstephens/habitsync/internal/cli"
	"github.com/julianstephens/habitsync/internal/storage/sqlite"
)

type BackupCmd struct {
	Create  BackupCreateCmd  `cmd:"" help:"Snapshot the local store, including unsynced changes."`
	List    BackupListCmd    `cmd:"" help:"List local store snapshots."`
	Restore BackupRestoreCmd `cmd:"" help:"Replace the local store with a snapshot."`
}

// backupManager only supports file-backed stores; the store is never opened
// here so a restore can swap the file underneath.
func backupManager(ctx *cli.Context, keep int) (*backup.Manager, error) {
	store, ok := ctx.Store.(*sqlite.Store)
	if !ok {
		return nil, fmt.Errorf("backups are only supported for the SQLite store, not %s", ctx.Store.GetConfigPath())
	}
	return backup.NewManager(store.GetConfigPath(), backup.WithKeep(keep)), nil
}

type BackupCreateCmd struct {
	Keep int `help:"Number of snapshots to keep." default:"14"`
}

func (c *BackupCreateCmd) Run(ctx *cli.Context) error {
	mgr, err := backupManager(ctx, c.Keep)
	if err != nil {
		return err
	}
	info, err := mgr.Create(ctx.Context())
	if err != nil {
		return err
	}
	ctx.Printf("Created backup: %s (%s)\n", info.Path, formatSize(info.Size))
	return nil
}

type BackupListCmd struct{}

func (c *BackupListCmd) Run(ctx *cli.Context) error {
	mgr, err := backupManager(ctx, 0)
	if err != nil {
		return err
	}
	backups, err := mgr.List()
	if err != nil {
		return err
	}
	if len(backups) == 0 {
		ctx.Println("No backups found.")
		return nil
	}

	ctx.Println(cli.HeaderStyle.Render(fmt.Sprintf("Backups in %s", mgr.Dir())))
	for _, b := range backups {
		ctx.Printf("  %s  %s  %s\n",
			b.Name(),
			cli.MutedStyle.Render(b.Timestamp.Local().Format("2006-01-02 15:04:05")),
			formatSize(b.Size))
	}
	return nil
}

type BackupRestoreCmd struct {
	Backup string `arg:"" help:"Snapshot file name or path."`
	Yes    bool   `short:"y" help:"Skip confirmation."`
}

func (c *BackupRestoreCmd) Run(ctx *cli.Context) error {
	mgr, err := backupManager(ctx, 0)
	if err != nil {
		return err
	}
	path := mgr.Resolve(c.Backup)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("backup not found: %s", c.Backup)
	}

	if !c.Yes {
		confirmed := false
		err := huh.NewConfirm().
			Title(fmt.Sprintf("Restore %s?", c.Backup)).
			Description("Changes made since this snapshot, synced or not, will be replaced.").
			Affirmative("Restore").
			Negative("Cancel").
			Value(&confirmed).
			Run()
		if err != nil {
			return err
		}
		if !confirmed {
			ctx.Println("Restore cancelled.")
			return nil
		}
	}

	safety, err := mgr.Restore(ctx.Context(), path)
	if err != nil {
		return err
	}
	if safety.Path != "" {
		ctx.Printf("Saved current store as: %s\n", safety.Name())
	}
	ctx.Printf("Restored local store from: %s\n", path)
	return nil
}

func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

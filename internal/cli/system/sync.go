package system

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/julianstephens/habitsync/internal/cli"
	"github.com/julianstephens/habitsync/internal/models"
	"github.com/julianstephens/habitsync/internal/stats"
	"github.com/julianstephens/habitsync/internal/syncer"
)

type SyncCmd struct{}

func (c *SyncCmd) Run(ctx *cli.Context) error {
	if err := ctx.Load(); err != nil {
		return err
	}

	res, err := ctx.Engine.SyncPendingChanges(ctx.Context())
	if res.Offline {
		ctx.Println(cli.FormatStatus(ctx.Engine.GetConnectionStatus(), res.Remaining))
		ctx.Println("Remote is offline; changes stay queued.")
		return nil
	}

	ctx.Printf("Synced: %d acknowledged, %d requeued, %d deferred, %d dropped\n",
		res.Acknowledged, res.Requeued, res.Deferred, res.Dropped)
	ctx.Println(cli.FormatStatus(ctx.Engine.GetConnectionStatus(), ctx.Engine.GetPendingSyncCount()))

	var syncErr *syncer.SyncError
	if errors.As(err, &syncErr) {
		ctx.PrintDropped(syncErr)
		return fmt.Errorf("%d change(s) could not be synced", len(syncErr.Failures))
	}
	return err
}

type StatusCmd struct{}

func (c *StatusCmd) Run(ctx *cli.Context) error {
	if err := ctx.Load(); err != nil {
		return err
	}
	ctx.Printf("Store:  %s\n", ctx.Store.GetConfigPath())
	if !ctx.RemoteConfigured {
		ctx.Println("Remote: not configured")
	}
	ctx.Println(cli.FormatStatus(ctx.Engine.GetConnectionStatus(), ctx.Engine.GetPendingSyncCount()))
	return nil
}

type WatchCmd struct{}

func (c *WatchCmd) Run(ctx *cli.Context) error {
	onRefresh := func(habits []models.HabitWithCompletions) {
		s := stats.Summarize(habits)
		ctx.Printf("%s %d/%d done today · %s\n",
			cli.MutedStyle.Render("refreshed"), s.CompletedToday, s.DueToday,
			cli.FormatStatus(ctx.Engine.GetConnectionStatus(), ctx.Engine.GetPendingSyncCount()))
	}
	if err := ctx.Load(syncer.WithRefreshHandler(onRefresh)); err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(ctx.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctx.Println(cli.FormatStatus(ctx.Engine.GetConnectionStatus(), ctx.Engine.GetPendingSyncCount()))
	ctx.Println(cli.MutedStyle.Render("Watching for changes, press Ctrl+C to stop."))

	if err := ctx.Engine.Run(runCtx); err != nil && runCtx.Err() == nil {
		return err
	}
	ctx.Println("Stopped.")
	return nil
}

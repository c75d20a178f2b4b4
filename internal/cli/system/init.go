package system

import (
	"github.com/julianstephens/habitsync/internal/cli"
)

type InitCmd struct {
	LocalOnly bool `help:"Only initialize the local store, even when a remote is configured."`
}

func (c *InitCmd) Run(ctx *cli.Context) error {
	if err := ctx.Store.Init(ctx.Context()); err != nil {
		return err
	}
	ctx.Printf("Initialized habitsync storage at: %s\n", ctx.Store.GetConfigPath())

	if c.LocalOnly {
		return nil
	}
	initialized, err := ctx.InitRemote()
	if err != nil {
		return err
	}
	if initialized {
		ctx.Println("Initialized remote schema")
	}
	return nil
}

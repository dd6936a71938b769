package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/colonyops/kvstore/internal/sweep"
	"github.com/urfave/cli/v3"
)

type ClearCmd struct {
	flags *Flags
	every time.Duration
}

// NewClearCmd creates the clear and cleanup commands.
func NewClearCmd(flags *Flags) *ClearCmd {
	return &ClearCmd{flags: flags}
}

// Register adds the clear and cleanup commands to the application.
func (cmd *ClearCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands,
		&cli.Command{
			Name:      "clear",
			Usage:     "Remove every entry",
			UsageText: "kvstore clear",
			Action:    cmd.runClear,
		},
		&cli.Command{
			Name:      "cleanup",
			Usage:     "Remove expired entries",
			UsageText: "kvstore cleanup [--every DURATION]",
			Description: `Rewrites the store without its expired entries and prints the size
before and after.

With --every, keeps running and sweeps on that interval until interrupted.`,
			Flags: []cli.Flag{
				&cli.DurationFlag{
					Name:        "every",
					Usage:       "repeat the cleanup on this interval",
					Destination: &cmd.every,
				},
			},
			Action: cmd.runCleanUp,
		},
	)

	return app
}

func (cmd *ClearCmd) runClear(ctx context.Context, c *cli.Command) error {
	if !cmd.flags.Store.Clear(commandContext(ctx, c)) {
		return operationFailed("clear", "")
	}
	return nil
}

func (cmd *ClearCmd) runCleanUp(ctx context.Context, c *cli.Command) error {
	ctx = commandContext(ctx, c)

	if err := cmd.cleanUpOnce(ctx, c); err != nil {
		return err
	}
	if cmd.every <= 0 {
		return nil
	}

	sweep.Start(ctx, cmd.flags.Store, cmd.every, func(ok bool) {
		if ok {
			cmd.printSize(ctx, c)
		}
	})
	return nil
}

func (cmd *ClearCmd) cleanUpOnce(ctx context.Context, c *cli.Command) error {
	before, _ := cmd.flags.Store.Size(ctx)
	if !cmd.flags.Store.CleanUp(ctx) {
		return operationFailed("cleanup", "")
	}

	after, err := cmd.flags.Store.Size(ctx)
	if err != nil {
		return fmt.Errorf("stat store: %w", err)
	}

	_, err = fmt.Fprintf(c.Root().Writer, "%d -> %d bytes\n", before, after)
	return err
}

func (cmd *ClearCmd) printSize(ctx context.Context, c *cli.Command) {
	size, err := cmd.flags.Store.Size(ctx)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(c.Root().Writer, "%s %d bytes\n", time.Now().Format(time.TimeOnly), size)
}

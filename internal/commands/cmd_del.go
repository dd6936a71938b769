package commands

import (
	"context"

	"github.com/urfave/cli/v3"
)

type DelCmd struct {
	flags *Flags
}

// NewDelCmd creates a new del command.
func NewDelCmd(flags *Flags) *DelCmd {
	return &DelCmd{flags: flags}
}

// Register adds the del command to the application.
func (cmd *DelCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "del",
		Aliases:   []string{"delete", "rm"},
		Usage:     "Remove a key",
		UsageText: "kvstore del <key>",
		Action:    cmd.run,
	})

	return app
}

func (cmd *DelCmd) run(ctx context.Context, c *cli.Command) error {
	ctx = commandContext(ctx, c)

	if err := requireArgs(c, 1, 1); err != nil {
		return err
	}
	key := c.Args().First()

	ok, err := cmd.flags.Store.Delete(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return operationFailed("del", key)
	}
	return nil
}

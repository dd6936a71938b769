package commands

import (
	"context"

	"github.com/colonyops/kvstore/pkg/iojson"
	"github.com/urfave/cli/v3"
)

type HasCmd struct {
	flags *Flags
}

// NewHasCmd creates a new has command.
func NewHasCmd(flags *Flags) *HasCmd {
	return &HasCmd{flags: flags}
}

// Register adds the has command to the application.
func (cmd *HasCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "has",
		Usage:     "Report whether a key is present",
		UsageText: "kvstore has <key>",
		Description: `Prints true or false. Expiry is not checked: an expired entry is
present until it is read, deleted or cleaned up.`,
		Action: cmd.run,
	})

	return app
}

func (cmd *HasCmd) run(ctx context.Context, c *cli.Command) error {
	ctx = commandContext(ctx, c)

	if err := requireArgs(c, 1, 1); err != nil {
		return err
	}

	ok, err := cmd.flags.Store.Has(ctx, c.Args().First())
	if err != nil {
		return err
	}

	return iojson.WriteWith(c.Root().Writer, c.Root().ErrWriter, ok)
}

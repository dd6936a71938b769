package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/colonyops/kvstore/pkg/iojson"
	"github.com/urfave/cli/v3"
)

type GetCmd struct {
	flags *Flags
	raw   bool
}

// NewGetCmd creates a new get command.
func NewGetCmd(flags *Flags) *GetCmd {
	return &GetCmd{flags: flags}
}

// Register adds the get command to the application.
func (cmd *GetCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "get",
		Usage:     "Print the value stored under a key",
		UsageText: "kvstore get <key> [--raw]",
		Description: `Prints the value as JSON. Missing and expired keys exit non-zero;
an expired entry is removed from the store when read.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "raw",
				Aliases:     []string{"r"},
				Usage:       "print string values without JSON quoting",
				Destination: &cmd.raw,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *GetCmd) run(ctx context.Context, c *cli.Command) error {
	ctx = commandContext(ctx, c)

	if err := requireArgs(c, 1, 1); err != nil {
		return err
	}
	key := c.Args().First()

	value, ok, err := cmd.flags.Store.Get(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return operationFailed("get", key)
	}

	if cmd.raw {
		var s string
		if json.Unmarshal(value, &s) == nil {
			_, err := fmt.Fprintln(c.Root().Writer, s)
			return err
		}
	}

	return iojson.WriteWith(c.Root().Writer, c.Root().ErrWriter, value)
}

package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

type PathCmd struct {
	flags *Flags
}

// NewPathCmd creates a new path command.
func NewPathCmd(flags *Flags) *PathCmd {
	return &PathCmd{flags: flags}
}

// Register adds the path command to the application.
func (cmd *PathCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "path",
		Usage:     "Print the resolved store document path",
		UsageText: "kvstore path",
		Action: func(ctx context.Context, c *cli.Command) error {
			_, err := fmt.Fprintln(c.Root().Writer, cmd.flags.Store.Path())
			return err
		},
	})

	return app
}

package commands

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/colonyops/kvstore/pkg/iojson"
	"github.com/urfave/cli/v3"
)

type SetCmd struct {
	flags *Flags

	ttl   time.Duration
	input iojson.FileReader[json.RawMessage]
}

// NewSetCmd creates a new set command.
func NewSetCmd(flags *Flags) *SetCmd {
	return &SetCmd{flags: flags}
}

// Register adds the set command to the application.
func (cmd *SetCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "set",
		Usage:     "Store a value under a new key",
		UsageText: "kvstore set <key> [value] [--ttl DURATION] [-f FILE]",
		Description: `Stores a value under a key that does not exist yet.

The value can be provided as:
- A command-line argument. JSON objects, arrays and quoted strings are
  stored as JSON; anything else is stored as a plain string.
- From a JSON file with -f/--file
- From stdin if no argument is provided

Values must be strings, objects or arrays. Keys are 1 to 32 characters.

Examples:
  kvstore set greeting hello
  kvstore set user:1 '{"name":"ada"}'
  kvstore set session abc --ttl 30m
  cat payload.json | kvstore set payload`,
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:        "ttl",
				Usage:       "expire the entry after this duration (e.g. 90s, 30m, 24h)",
				Destination: &cmd.ttl,
			},
			cmd.input.Flag(),
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *SetCmd) run(ctx context.Context, c *cli.Command) error {
	ctx = commandContext(ctx, c)

	if err := requireArgs(c, 1, 2); err != nil {
		return err
	}
	key := c.Args().Get(0)

	value, err := cmd.readValue(c)
	if err != nil {
		return err
	}

	var ok bool
	if c.IsSet("ttl") {
		ok, err = cmd.flags.Store.SetTTL(ctx, key, value, cmd.ttl)
	} else {
		ok, err = cmd.flags.Store.Set(ctx, key, value)
	}
	if err != nil {
		return err
	}
	if !ok {
		return operationFailed("set", key)
	}

	return nil
}

func (cmd *SetCmd) readValue(c *cli.Command) (any, error) {
	if c.Args().Len() == 2 {
		if cmd.input.IsSet() {
			return nil, errors.New("provide a value argument or --file, not both")
		}
		return parseValue(c.Args().Get(1)), nil
	}

	raw, err := cmd.input.Read()
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// parseValue keeps JSON objects, arrays and strings as JSON and treats any
// other argument as a literal string.
func parseValue(arg string) any {
	trimmed := strings.TrimSpace(arg)
	if trimmed == "" {
		return arg
	}

	switch trimmed[0] {
	case '{', '[', '"':
		if json.Valid([]byte(trimmed)) {
			return json.RawMessage(trimmed)
		}
	}
	return arg
}

package commands

import (
	"context"
	"fmt"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/colonyops/kvstore/pkg/iojson"
	"github.com/colonyops/kvstore/pkg/kvstore"
	"github.com/urfave/cli/v3"
)

type AllCmd struct {
	flags *Flags

	match string
	keys  bool
}

// NewAllCmd creates a new all command.
func NewAllCmd(flags *Flags) *AllCmd {
	return &AllCmd{flags: flags}
}

// Register adds the all command to the application.
func (cmd *AllCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "all",
		Aliases:   []string{"ls"},
		Usage:     "Print the whole store",
		UsageText: "kvstore all [--match GLOB] [--keys]",
		Description: `Prints the stored document, including expired entries and their
expiresIn timestamps.

Glob patterns follow doublestar syntax and are matched against keys:
  kvstore all --match 'user:*'
  kvstore all --match '{cache,session}:*' --keys`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "match",
				Aliases:     []string{"m"},
				Usage:       "only include keys matching the glob",
				Destination: &cmd.match,
			},
			&cli.BoolFlag{
				Name:        "keys",
				Aliases:     []string{"k"},
				Usage:       "print only the sorted key names",
				Destination: &cmd.keys,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *AllCmd) run(ctx context.Context, c *cli.Command) error {
	ctx = commandContext(ctx, c)

	if cmd.match != "" && !doublestar.ValidatePattern(cmd.match) {
		return fmt.Errorf("invalid --match pattern %q", cmd.match)
	}

	doc, ok := cmd.flags.Store.All(ctx)
	if !ok {
		return operationFailed("all", "")
	}

	doc = filterDocument(doc, cmd.match)

	if cmd.keys {
		return iojson.WriteWith(c.Root().Writer, c.Root().ErrWriter, sortedKeys(doc))
	}
	return iojson.WriteWith(c.Root().Writer, c.Root().ErrWriter, doc)
}

// filterDocument returns the entries whose keys match pattern. An empty
// pattern matches everything. The pattern must already be valid.
func filterDocument(doc kvstore.Document, pattern string) kvstore.Document {
	if pattern == "" {
		return doc
	}

	out := make(kvstore.Document, len(doc))
	for key, raw := range doc {
		if matchKey(pattern, key) {
			out[key] = raw
		}
	}
	return out
}

func matchKey(pattern, key string) bool {
	if pattern == "" {
		return true
	}
	ok, _ := doublestar.Match(pattern, key)
	return ok
}

func sortedKeys(doc kvstore.Document) []string {
	keys := make([]string, 0, len(doc))
	for key := range doc {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

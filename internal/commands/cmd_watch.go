package commands

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/colonyops/kvstore/internal/core/logging"
	"github.com/colonyops/kvstore/internal/store/jsonfile"
	"github.com/colonyops/kvstore/pkg/iojson"
	"github.com/colonyops/kvstore/pkg/kvstore"
	"github.com/urfave/cli/v3"
)

// Change is printed by the watch command for each settled change to the
// document.
type Change struct {
	Timestamp time.Time `json:"timestamp"`
	Removed   bool      `json:"removed,omitempty"`
	Added     []string  `json:"added,omitempty"`
	Updated   []string  `json:"updated,omitempty"`
	Deleted   []string  `json:"deleted,omitempty"`
}

// Empty reports whether the change touched no keys and the document still
// exists.
func (ch Change) Empty() bool {
	return !ch.Removed && len(ch.Added) == 0 && len(ch.Updated) == 0 && len(ch.Deleted) == 0
}

type WatchCmd struct {
	flags *Flags
	match string
}

// NewWatchCmd creates a new watch command.
func NewWatchCmd(flags *Flags) *WatchCmd {
	return &WatchCmd{flags: flags}
}

// Register adds the watch command to the application.
func (cmd *WatchCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "watch",
		Usage:     "Stream key changes as the store file is modified",
		UsageText: "kvstore watch [--match GLOB]",
		Description: `Watches the store document and prints one JSON line per change,
listing added, updated and deleted keys. Writes from any process are seen.
Runs until interrupted.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "match",
				Aliases:     []string{"m"},
				Usage:       "only report keys matching the glob",
				Destination: &cmd.match,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *WatchCmd) run(ctx context.Context, c *cli.Command) error {
	ctx = commandContext(ctx, c)

	if cmd.match != "" && !doublestar.ValidatePattern(cmd.match) {
		return fmt.Errorf("invalid --match pattern %q", cmd.match)
	}

	store := cmd.flags.Store
	logger := logging.Component("watch")

	watcher, err := jsonfile.NewDocumentWatcher(store.Path())
	if err != nil {
		return fmt.Errorf("watch store: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	events, err := watcher.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watch store: %w", err)
	}

	prev, ok := store.All(ctx)
	if !ok {
		prev = kvstore.Document{}
	}

	logger.Debug().Ctx(ctx).Str("path", store.Path()).Msg("watching store")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}

			next := kvstore.Document{}
			if !event.Removed {
				doc, ok := store.All(ctx)
				if !ok {
					// mid-write or corrupt; the next event will catch up
					continue
				}
				next = doc
			}

			change := diffDocuments(prev, next, cmd.match)
			change.Timestamp = event.Timestamp
			change.Removed = event.Removed
			prev = next

			if change.Empty() {
				continue
			}
			if err := iojson.WriteLine(c.Root().Writer, change); err != nil {
				return err
			}
		}
	}
}

// diffDocuments compares two snapshots by raw entry bytes, restricted to keys
// matching pattern. Key lists are sorted.
func diffDocuments(prev, next kvstore.Document, pattern string) Change {
	var ch Change

	for key, raw := range next {
		if !matchKey(pattern, key) {
			continue
		}
		old, ok := prev[key]
		switch {
		case !ok:
			ch.Added = append(ch.Added, key)
		case !bytes.Equal(old, raw):
			ch.Updated = append(ch.Updated, key)
		}
	}

	for key := range prev {
		if !matchKey(pattern, key) {
			continue
		}
		if _, ok := next[key]; !ok {
			ch.Deleted = append(ch.Deleted, key)
		}
	}

	slices.Sort(ch.Added)
	slices.Sort(ch.Updated)
	slices.Sort(ch.Deleted)
	return ch
}

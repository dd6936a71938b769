package commands

import (
	"context"
	"fmt"

	"github.com/colonyops/kvstore/internal/core/config"
	"github.com/colonyops/kvstore/internal/core/logging"
	"github.com/colonyops/kvstore/pkg/kvstore"
	"github.com/urfave/cli/v3"
)

type Flags struct {
	LogLevel   string
	LogFile    string
	ConfigPath string
	StorePath  string

	// Config is loaded in the Before hook and available to all commands
	Config *config.Config

	// Store is opened in the Before hook from Config and StorePath
	Store *kvstore.Store
}

// StoreConfig returns the store configuration for the loaded config, with
// the --store flag taking precedence over the config file location.
func (f *Flags) StoreConfig() kvstore.Config {
	cfg := f.Config
	if cfg == nil {
		d := config.DefaultConfig()
		cfg = &d
	}

	sc := cfg.StoreConfig()
	if f.StorePath != "" {
		sc.Location = f.StorePath
	}
	return sc
}

// commandContext tags ctx with the running command so log events emitted
// through it carry a "command" field.
func commandContext(ctx context.Context, c *cli.Command) context.Context {
	return logging.WithCommand(ctx, c.Name)
}

// operationFailed is returned when the store reports an operational failure.
// The cause has already been logged by the store.
func operationFailed(op, key string) error {
	if key == "" {
		return cli.Exit(fmt.Sprintf("%s failed, see the log for details", op), 1)
	}
	return cli.Exit(fmt.Sprintf("%s %q failed, see the log for details", op, key), 1)
}

// requireArgs checks the positional argument count.
func requireArgs(c *cli.Command, lo, hi int) error {
	n := c.Args().Len()
	if n < lo || n > hi {
		return fmt.Errorf("usage: %s", c.UsageText)
	}
	return nil
}

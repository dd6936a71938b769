package commands

import (
	"github.com/colonyops/kvstore/internal/core/config"
	"github.com/urfave/cli/v3"
)

// NewApp builds the root command with the global flags bound to flags and
// every subcommand registered. Callers add the Before and After hooks.
func NewApp(flags *Flags, version string) *cli.Command {
	app := &cli.Command{
		Name:      "kvstore",
		Usage:     "Persistent key-value store backed by a single JSON file",
		UsageText: "kvstore [global options] command [command options]",
		Description: `kvstore keeps string, object and array values in one JSON document,
optionally expiring them after a TTL.

The document defaults to ~/kvstore/store.json. Pass --store with a path
ending in .json to use that file, or a directory to use
<dir>/kvstore/store.json.`,
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("KVSTORE_LOG_LEVEL"),
				Value:       "warn",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (defaults to stderr)",
				Sources:     cli.EnvVars("KVSTORE_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("KVSTORE_CONFIG"),
				Value:       config.DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "store",
				Aliases:     []string{"s"},
				Usage:       "store location, a .json file or a directory (overrides config)",
				Sources:     cli.EnvVars("KVSTORE_STORE"),
				Destination: &flags.StorePath,
			},
		},
	}

	app = NewSetCmd(flags).Register(app)
	app = NewGetCmd(flags).Register(app)
	app = NewDelCmd(flags).Register(app)
	app = NewHasCmd(flags).Register(app)
	app = NewAllCmd(flags).Register(app)
	app = NewClearCmd(flags).Register(app)
	app = NewWatchCmd(flags).Register(app)
	app = NewPathCmd(flags).Register(app)
	app = NewConfigValidateCmd(flags).Register(app)

	return app
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/kvstore/internal/commands"
	"github.com/colonyops/kvstore/internal/core/config"
	"github.com/colonyops/kvstore/internal/core/logging"
	"github.com/colonyops/kvstore/pkg/iojson"
	"github.com/colonyops/kvstore/pkg/kvstore"
	"github.com/colonyops/kvstore/pkg/logutils"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	// When installed via `go install module@version`, init() populates
	// these from runtime/debug.BuildInfo instead.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	v, c, d := version, commit, date

	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if mv := info.Main.Version; mv != "" && mv != "(devel)" {
				v = mv
			}
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					c = s.Value
				case "vcs.time":
					d = s.Value
				}
			}
		}
	}

	short := c
	if len(c) > 7 {
		short = c[:7]
	}

	return fmt.Sprintf("%s (%s) %s", v, short, d)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var logCloser func()

	flags := &commands.Flags{}

	app := commands.NewApp(flags, build())

	app.Before = func(ctx context.Context, c *cli.Command) (context.Context, error) {
		logger, closer, err := logutils.New(flags.LogLevel, flags.LogFile)
		if err != nil {
			return ctx, fmt.Errorf("setup logger: %w", err)
		}
		log.Logger = logger
		logCloser = closer

		cfg, err := config.Load(flags.ConfigPath)
		if err != nil {
			return ctx, fmt.Errorf("load config: %w", err)
		}
		flags.Config = cfg

		storeLogger := logging.Component("kvstore")
		sc := flags.StoreConfig()
		sc.Logger = &storeLogger

		store, err := kvstore.Open(sc)
		if err != nil {
			return ctx, fmt.Errorf("open store: %w", err)
		}
		flags.Store = store

		return ctx, nil
	}
	app.After = func(ctx context.Context, c *cli.Command) error {
		if logCloser != nil {
			logCloser()
		}
		return nil
	}

	exitCode := 0
	if runErr := app.Run(ctx, os.Args); runErr != nil {
		exitCode = 1
		var verr *kvstore.ValidationError
		var cfgErr *kvstore.ConfigError
		var capErr *kvstore.CapacityError
		switch {
		case errors.As(runErr, &verr):
			_ = iojson.WriteError(verr.Error(), map[string]any{"field": verr.Field})
		case errors.As(runErr, &cfgErr), errors.As(runErr, &capErr):
			_ = iojson.WriteError(runErr.Error(), nil)
		default:
			fmt.Fprintln(os.Stderr, runErr.Error())
		}
	}

	stop()
	os.Exit(exitCode)
}

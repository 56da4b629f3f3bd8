// Package cli implements the threadline command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tOgg1/threadline/internal/config"
	"github.com/tOgg1/threadline/internal/events"
	"github.com/tOgg1/threadline/internal/logging"
	"github.com/tOgg1/threadline/internal/platform"
	"github.com/tOgg1/threadline/internal/store"
	"github.com/tOgg1/threadline/internal/thread"
)

// PlatformFactory builds the remote binding for a platform config.
type PlatformFactory func(cfg config.PlatformConfig, token string) (thread.Platform, error)

type app struct {
	out    io.Writer
	errOut io.Writer

	configFile string
	jsonOutput bool
	logLevel   string
	logFormat  string
	noColor    bool

	cfg         *config.Config
	newPlatform PlatformFactory
}

func newApp(out, errOut io.Writer) *app {
	return &app{
		out:         out,
		errOut:      errOut,
		newPlatform: platform.New,
	}
}

// Execute runs the root command against os.Args.
func Execute(ctx context.Context, version string) error {
	return newRootCmd(version, newApp(os.Stdout, os.Stderr)).ExecuteContext(ctx)
}

func newRootCmd(version string, a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "threadline",
		Short:         "Reconstruct conversation threads around a post",
		Long:          "threadline walks a post's ancestors and pages its replies into a two-tier thread view.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.loadConfig(); err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			logger := logging.Component("cli").With().Str("command", cmd.Name()).Logger()
			cmd.SetContext(logging.WithContext(ctx, logger))
			return nil
		},
	}
	cmd.SetOut(a.out)
	cmd.SetErr(a.errOut)

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (default ~/.config/threadline/config.yaml)")
	flags.BoolVar(&a.jsonOutput, "json", false, "output JSON")
	flags.StringVar(&a.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	flags.StringVar(&a.logFormat, "log-format", "", "log format override (console, json)")
	flags.BoolVar(&a.noColor, "no-color", false, "disable styled output")

	cmd.AddCommand(
		newThreadCmd(a),
		newImportCmd(a),
		newDeleteCmd(a),
		newRestoreCmd(a),
		newShowPostCmd(a),
	)
	return cmd
}

func (a *app) loadConfig() error {
	loader := config.NewLoader()
	if a.configFile != "" {
		loader.SetConfigFile(a.configFile)
	}
	if a.logLevel != "" {
		loader.Set("logging.level", a.logLevel)
	}
	if a.logFormat != "" {
		loader.Set("logging.format", a.logFormat)
	}

	cfg, err := loader.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg

	logging.Init(logging.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		Output:       a.errOut,
		EnableCaller: cfg.Logging.EnableCaller,
		File:         cfg.Logging.File,
	})
	if used := loader.ConfigFileUsed(); used != "" {
		logging.Debug().Str("file", used).Msg("config loaded")
	}
	return nil
}

// openStore opens and migrates the configured database. Deletion changes are
// published on publisher when it is non-nil.
func (a *app) openStore(ctx context.Context, publisher events.Publisher) (*store.SQLiteStore, error) {
	if err := a.cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	var opts []store.Option
	if publisher != nil {
		opts = append(opts, store.WithPublisher(publisher))
	}
	st, err := store.OpenSQLite(a.cfg.DatabasePath(), a.cfg.Database.BusyTimeoutMs, opts...)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return st, nil
}

func (a *app) platform() (thread.Platform, error) {
	p, err := a.newPlatform(a.cfg.Platform, a.cfg.PlatformToken())
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errors.New("no platform configured")
	}
	return p, nil
}

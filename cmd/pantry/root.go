package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"pantry/internal/config"
	"pantry/internal/core"
	"pantry/internal/docstore"
	"pantry/internal/notify"
)

// RootOptions holds global flags and the state resolved from them before any
// subcommand runs.
type RootOptions struct {
	ConfigPath string
	LogLevel   string

	Config config.Config
	Logger *zap.Logger
}

// NewRootCommand creates the pantry root command with all subcommands.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "pantry",
		Short: "Pantry inventory manager",
		Long: `pantry tracks pantry items in a document store.

Adding an existing item merges quantities and averages weights, removing
decrements the quantity by one and the listing groups items by category.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.resolve()
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if opts.Logger != nil {
				_ = opts.Logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level override (debug, info, warn, error)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewUpdateCommand(opts))
	cmd.AddCommand(NewRemoveCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

func (o *RootOptions) resolve() error {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return err
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	lvl, err := cfg.LogLevel()
	if err != nil {
		return err
	}
	logger, err := newLogger(lvl)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	o.Config = cfg
	o.Logger = logger
	return nil
}

func newLogger(lvl zapcore.Level) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}

// openService opens the configured store and builds a service around it.
// The returned cleanup closes the notifier, the store and the trace file.
func (o *RootOptions) openService(ctx context.Context, extra ...core.Option) (*core.Service, func() error, error) {
	store, err := docstore.Open(ctx, o.Config.Docstore)
	if err != nil {
		return nil, nil, fmt.Errorf("open docstore: %w", err)
	}
	closers := []func() error{store.Close}
	cleanup := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}

	opts := []core.Option{
		core.WithLogger(o.Logger),
		core.WithCollection(o.Config.Docstore.Collection),
	}
	if path := o.Config.Trace.File; path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			_ = cleanup()
			return nil, nil, fmt.Errorf("open trace file: %w", err)
		}
		closers = append(closers, f.Close)
		opts = append(opts, core.WithTracer(core.NewLogTracer(f)))
	}
	if o.Config.NATS.URL != "" {
		pub, err := notify.Connect(o.Config.NATS.URL, o.Config.NATS.Subject)
		if err != nil {
			_ = cleanup()
			return nil, nil, fmt.Errorf("connect nats: %w", err)
		}
		o.Logger.Info("publishing changes", zap.String("subject", pub.Subject()))
		closers = append(closers, pub.Close)
		opts = append(opts, core.WithNotifier(pub))
	}
	opts = append(opts, extra...)
	return core.NewService(store, opts...), cleanup, nil
}

package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/crimson-sun/sentiment/internal/config"
	"github.com/crimson-sun/sentiment/internal/logging"
)

// app is the state shared by every subcommand.
type app struct {
	v          *viper.Viper
	configPath string
	cfg        *config.Config
	logger     *zap.Logger

	// flag name -> config key, per command
	bindings map[*cobra.Command]map[string]string
}

func newRootCommand() *cobra.Command {
	a := &app{
		v:        config.New(),
		logger:   zap.NewNop(),
		bindings: make(map[*cobra.Command]map[string]string),
	}

	rootCmd := &cobra.Command{
		Use:   "sentiment",
		Short: "Train and serve a binary sentiment classifier",
		Long: `sentiment trains a bag-of-words logistic regression on labeled review
texts, reports its held-out quality, and serves Positive/Negative
predictions over HTTP.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) { _ = a.logger.Sync() },
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (yaml or json)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "json", "log format: json or console")
	a.bind(rootCmd, "log-level", "log.level")
	a.bind(rootCmd, "log-format", "log.format")

	rootCmd.AddCommand(newTrainCommand(a))
	rootCmd.AddCommand(newServeCommand(a))
	rootCmd.AddCommand(newPredictCommand(a))
	return rootCmd
}

// bind maps a flag of cmd onto a config key. Bindings are applied to viper
// only for the command that runs, so several commands may bind the same key.
func (a *app) bind(cmd *cobra.Command, flag, key string) {
	if a.bindings[cmd] == nil {
		a.bindings[cmd] = make(map[string]string)
	}
	a.bindings[cmd][flag] = key
}

// setup binds the running command's flags, loads and validates the
// configuration, and builds the logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	for c := cmd; c != nil; c = c.Parent() {
		for flag, key := range a.bindings[c] {
			f := cmd.Flags().Lookup(flag)
			if f == nil {
				continue
			}
			if err := a.v.BindPFlag(key, f); err != nil {
				return errors.Wrapf(err, "bind --%s", flag)
			}
		}
	}

	cfg, err := config.Load(a.v, a.configPath)
	if err != nil {
		return err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return errors.Wrap(multierr.Combine(errs...), "invalid configuration")
	}
	a.cfg = cfg
	a.logger = logging.New(logging.ParseLevel(cfg.Log.Level), cfg.Log.Format)
	return nil
}

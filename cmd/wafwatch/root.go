package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Wikid82/wafwatch/internal/config"
	"github.com/Wikid82/wafwatch/internal/logger"
	"github.com/Wikid82/wafwatch/internal/models"
	"github.com/Wikid82/wafwatch/internal/services"
	"github.com/Wikid82/wafwatch/internal/version"
)

type rootOptions struct {
	cfgFile string
	v       *viper.Viper
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{v: viper.New()}
	cmd := &cobra.Command{
		Use:           "wafwatch",
		Short:         "AWS WAF log monitor and IP blacklist manager",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (yaml, json, toml or env)")
	cmd.CompletionOptions.DisableDefaultCmd = true

	cmd.AddCommand(newRunCmd(opts), newServeCmd(opts), newVersionCmd())
	return cmd
}

// load reads the optional config file and builds the configuration and logger.
func (o *rootOptions) load() (config.Config, *logrus.Logger, error) {
	if o.cfgFile != "" {
		o.v.SetConfigFile(o.cfgFile)
		if err := o.v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return config.Config{}, nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}
	cfg, err := config.Load(o.v)
	if err != nil {
		return config.Config{}, nil, err
	}
	log := logger.New(logger.Options{Debug: cfg.Debug, File: cfg.LogFile}, os.Stdout)
	return cfg, log, nil
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one monitoring run and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := services.ParseMode(mode)
			if err != nil {
				return err
			}
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			rec, err := a.runner.Run(ctx, m)
			if err != nil {
				return err
			}
			if rec.Status != models.RunStatusSuccess {
				log.WithField("status", rec.Status).Warn("run finished with errors")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(services.ModeAuto), "run mode: auto, hourly or daily")
	return cmd
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run on a schedule and expose the status API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Serve(ctx)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", version.Name, version.Full())
		},
	}
}

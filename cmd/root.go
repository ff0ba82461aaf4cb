package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zdunecki/matchfund/pkg/api"
	"github.com/zdunecki/matchfund/pkg/campaign"
	"github.com/zdunecki/matchfund/pkg/cli"
	"github.com/zdunecki/matchfund/pkg/config"
	"github.com/zdunecki/matchfund/pkg/flows"
	"github.com/zdunecki/matchfund/pkg/logging"
)

var (
	// Global flags
	configFile string
	logLevel   string
	logDev     bool
)

var rootCmd = &cobra.Command{
	Use:   "matchfund",
	Short: "Corporate donation matching: onboarding, applications and campaigns",
	Long: `A CLI for the donation matching platform. Walk through company onboarding,
company and nonprofit applications and matching campaign creation as step-by-step
wizards, browse the dashboards, or serve the wizards to the browser frontend.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logDev, "log-dev", false, "Human readable log output")
}

// Execute runs the CLI. Without arguments it opens the interactive picker.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(os.Args) == 1 {
		return runPicker(ctx)
	}
	return rootCmd.ExecuteContext(ctx)
}

// app is everything a command needs, built from config and flags.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	client *api.Client
}

func setup() (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	cfg = cfg.WithLog(logLevel, logDev)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	client, err := api.New(cfg.API, api.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, client: client}, nil
}

func (a *app) deps() flows.Deps {
	return flows.Deps{
		API:      a.client,
		Launcher: campaign.NewLauncher(a.client, a.logger),
		Logger:   a.logger,
	}
}

func (a *app) close() {
	_ = a.logger.Sync()
}

func runPicker(ctx context.Context) error {
	choice, err := cli.PickFlow(flows.Names())
	switch {
	case errors.Is(err, cli.ErrCancelled):
		return nil
	case errors.Is(err, cli.ErrStartServer):
		return runServe(ctx, false)
	case err != nil:
		return err
	}
	return runFlow(ctx, choice)
}

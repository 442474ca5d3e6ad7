package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/nerrad567/homytech-sync/internal/infrastructure/config"
)

// defaultConfigPath is used when neither --config nor HOMYSYNC_CONFIG is set.
const defaultConfigPath = "configs/config.yaml"

// options holds the persistent flags shared by every command.
type options struct {
	configPath string
	jsonOutput bool
}

// newRootCmd builds the command tree. Without a subcommand it runs the daemon.
func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "homysync",
		Short: "Keep a live local copy of HomyTech device state",
		Long: `HomySync loads the HomyTech device snapshot, follows the alert, light,
door and clothesline push channels, and serves the reconciled state
locally over HTTP, WebSocket, MQTT and InfluxDB.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd.Context(), opts)
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default $HOMYSYNC_CONFIG or "+defaultConfigPath+")")
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")

	root.AddCommand(
		newRunCmd(opts),
		newStateCmd(opts),
		newLogsCmd(opts),
		newUsageCmd(opts),
		newToggleCmd(opts),
		newServiceCmd(opts),
	)
	return root
}

func newRunCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the sync daemon until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd.Context(), opts)
		},
	}
}

// path returns the config path: --config, then HOMYSYNC_CONFIG, then the default.
func (o *options) path() string {
	if o.configPath != "" {
		return o.configPath
	}
	if path := os.Getenv("HOMYSYNC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// loadConfig reads the configuration. A missing default file falls back to
// defaults plus environment overrides; an explicitly named file must exist.
func (o *options) loadConfig() (*config.Config, error) {
	path := o.path()
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if path == defaultConfigPath && errors.Is(err, fs.ErrNotExist) {
		return config.LoadDefaults()
	}
	return nil, fmt.Errorf("loading config %s: %w", path, err)
}

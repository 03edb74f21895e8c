// Package cli implements the myrai-care commands.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gmsas95/myrai-care/internal/app"
	"github.com/gmsas95/myrai-care/internal/config"
	"github.com/gmsas95/myrai-care/internal/logging"
)

// Version is set at build time
var Version = "dev"

type rootFlags struct {
	configPath string
	dataDir    string
}

// NewRootCommand builds the command tree
func NewRootCommand(version string) *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "myrai-care",
		Short:         "Health companion with guarded actions",
		Long:          "Myrai Care keeps track of medications, check-ins and reminders through conversation. Every write goes through guardrails and, when it matters, your confirmation.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file (default: <data>/myrai-care.yaml)")
	root.PersistentFlags().StringVarP(&flags.dataDir, "data", "d", "", "Data directory (default: $XDG_DATA_HOME/myrai-care)")

	root.AddCommand(
		newServeCommand(flags, version),
		newChatCommand(flags, version),
		newCapabilitiesCommand(),
		newConfigCommand(flags),
		newVersionCommand(version),
	)
	return root
}

// Execute runs the root command
func Execute() error {
	root := NewRootCommand(Version)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(root.ErrOrStderr(), "error: %v\n", err)
		return err
	}
	return nil
}

func (f *rootFlags) load() (*config.Config, error) {
	if err := config.LoadEnvFiles(); err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return config.Load(f.configPath, f.dataDir)
}

func (f *rootFlags) openApp(version string, opts app.Options) (*app.App, *zap.Logger, error) {
	cfg, err := f.load()
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	a, err := app.New(cfg, logger, version, opts)
	if err != nil {
		logger.Sync()
		return nil, nil, err
	}
	return a, logger, nil
}

func newVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Myrai Care version %s\n", version)
		},
	}
}

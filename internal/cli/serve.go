package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gmsas95/myrai-care/internal/app"
)

func newServeCommand(flags *rootFlags, version string) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, logger, err := flags.openApp(version, app.Options{Offline: offline})
			if err != nil {
				return err
			}
			defer logger.Sync()
			defer func() {
				if err := a.Close(); err != nil {
					logger.Error("Close failed", zap.Error(err))
				}
			}()

			logger.Info("Starting Myrai Care", zap.String("version", version))
			return a.RunServer(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "Answer with the echo completer instead of an LLM provider")
	return cmd
}

package cli

import (
	"errors"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/gmsas95/myrai-care/internal/app"
	"github.com/gmsas95/myrai-care/internal/store"
)

func newChatCommand(flags *rootFlags, version string) *cobra.Command {
	var (
		message string
		userID  string
		offline bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to Myrai from the terminal",
		Long:  "Without -m, chat starts an interactive session on a terminal. Piped input is sent as a single message.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			interactive := message == "" && isTerminal(in)
			if message == "" && !interactive {
				b, err := io.ReadAll(in)
				if err != nil {
					return err
				}
				message = strings.TrimSpace(string(b))
				if message == "" {
					return errors.New("no message given: use -m or pipe text on stdin")
				}
			}

			a, logger, err := flags.openApp(version, app.Options{Offline: offline})
			if err != nil {
				return err
			}
			defer logger.Sync()
			defer a.Close()

			out := cmd.OutOrStdout()
			if interactive {
				return a.Interactive(cmd.Context(), in, out, userID)
			}
			return a.OneShot(cmd.Context(), out, userID, message)
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "Send one message and exit")
	cmd.Flags().StringVarP(&userID, "user", "u", store.DefaultUserID, "User to chat as")
	cmd.Flags().BoolVar(&offline, "offline", false, "Answer with the echo completer instead of an LLM provider")
	return cmd
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

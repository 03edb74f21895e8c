package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gmsas95/myrai-care/internal/config"
)

func newConfigCommand(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			b, err := yaml.Marshal(masked(cfg))
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(b))
			return nil
		},
	})
	return cmd
}

// masked copies cfg with provider keys hidden
func masked(cfg *config.Config) config.Config {
	out := *cfg
	out.LLM.Providers = make(map[string]config.Provider, len(cfg.LLM.Providers))
	for name, p := range cfg.LLM.Providers {
		p.APIKey = maskKey(p.APIKey)
		out.LLM.Providers[name] = p
	}
	return out
}

func maskKey(key string) string {
	switch {
	case key == "":
		return ""
	case len(key) <= 8:
		return "****"
	default:
		return key[:4] + "****" + key[len(key)-4:]
	}
}

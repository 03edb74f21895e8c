package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gmsas95/myrai-care/internal/capability"
)

func newCapabilitiesCommand() *cobra.Command {
	var (
		category string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:     "capabilities",
		Aliases: []string{"caps"},
		Short:   "List the actions Myrai can propose",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := capability.NewDefaultRegistry()
			defs := reg.All()
			if category != "" {
				defs = reg.ByCategory(capability.Category(category))
			}

			out := cmd.OutOrStdout()
			if asJSON {
				b, err := json.MarshalIndent(defs, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(b))
				return nil
			}

			if len(defs) == 0 {
				fmt.Fprintf(out, "No capabilities in category %q\n", category)
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCATEGORY\tSENSITIVITY\tCONFIRM\tDESCRIPTION")
			for _, d := range defs {
				confirm := "no"
				if d.RequiresConfirmation {
					confirm = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", d.ID, d.Category, d.Sensitivity, confirm, d.Description)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Only list one category")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

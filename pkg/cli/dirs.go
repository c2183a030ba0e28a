package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDirsCommand(a *app) *cobra.Command {
	var locations bool

	cmd := &cobra.Command{
		Use:   "dirs",
		Short: "Print the expanded plugin search roots",
		Long: `Print the search roots in effect, with "default" expanded to the standard
plugin directories. With --locations the package locations each spec would load
from are printed as well.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := a.newSession()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, dir := range session.Directories() {
				fmt.Fprintln(out, dir)
			}
			if !locations {
				return nil
			}

			for _, spec := range session.Specs() {
				fmt.Fprintf(out, "\n%s:\n", spec.PackagePath)
				locs := session.Locations(spec.PackagePath)
				if len(locs) == 0 {
					fmt.Fprintln(out, "  (none)")
				}
				for _, loc := range locs {
					fmt.Fprintf(out, "  %s\n", loc)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&locations, "locations", false, "Also print per-spec package locations")
	return cmd
}

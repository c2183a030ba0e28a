package cli

import (
	"fmt"

	"github.com/platinummonkey/plugweave/pkg/plugins"
	"github.com/spf13/cobra"
)

func newPackCommand(a *app) *cobra.Command {
	var skipValidate bool

	cmd := &cobra.Command{
		Use:   "pack <plugin-tree> <archive.zip>",
		Short: "Package a plugin tree as a zip search root",
		Long: `Package a directory containing a plugweave_plugins namespace into a zip
archive that can be used directly as a search root. The tree is validated first
unless --skip-validate is given.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !skipValidate {
				results := plugins.ValidateTree(args[0], a.cfg.Namespace, a.cfg.CapabilitySpecs())
				printValidation(cmd.ErrOrStderr(), args[0], results)
				if plugins.HasErrors(results) {
					return fmt.Errorf("%s has validation errors", args[0])
				}
			}

			path, err := plugins.PackArchive(args[0], args[1])
			if err != nil {
				return err
			}
			a.log.WithField("archive", path).Info("Plugin archive written")
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipValidate, "skip-validate", false, "Do not validate the tree before packing")
	return cmd
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInspectCommand(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "inspect <package> <class>",
		Short: "Show one class with its attributes and override lineage",
		Example: `  plugweave inspect extractor GenericIE
  plugweave inspect extractor GenericIE -o json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutput(output, OutputJSON, OutputYAML); err != nil {
				return err
			}

			session, err := a.loadedSession(cmd.Context())
			if err != nil {
				return err
			}
			spec, ok := session.Spec(args[0])
			if !ok {
				return fmt.Errorf("unknown spec %q", args[0])
			}
			class, ok := spec.FullRegistry.Get(args[1])
			if !ok {
				return fmt.Errorf("class %q is not registered for %s", args[1], spec.PackagePath)
			}

			if output == OutputJSON {
				return writeJSON(cmd.OutOrStdout(), class.Info())
			}
			return writeYAML(cmd.OutOrStdout(), class.Info())
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", OutputYAML, "Output format (yaml, json)")
	return cmd
}

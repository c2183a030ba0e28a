package cli

import (
	"fmt"

	"github.com/platinummonkey/plugweave/pkg/plugins"
	"github.com/spf13/cobra"
)

type listedClass struct {
	Spec              string `json:"spec" yaml:"spec"`
	plugins.ClassInfo `yaml:",inline"`
}

func newListCommand(a *app) *cobra.Command {
	var (
		full   bool
		output string
	)

	cmd := &cobra.Command{
		Use:   "list [package...]",
		Short: "Load plugins and list the registered classes",
		Long: `Load every configured capability spec (or only the named ones) and list
the plugin classes that were harvested. With --full the complete registry is
listed, including built-in classes composed by override plugins.`,
		Example: `  # List plugin extractors from an explicit root
  plugweave list --root ./plugins extractor

  # Full registry as JSON
  plugweave list --full -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutput(output, OutputTable, OutputJSON, OutputYAML); err != nil {
				return err
			}

			session, err := a.loadedSession(cmd.Context())
			if err != nil {
				return err
			}
			specs, err := specsFor(session, args)
			if err != nil {
				return err
			}

			var rows []listedClass
			for _, spec := range specs {
				registry := spec.PluginRegistry
				if full {
					registry = spec.FullRegistry
				}
				for _, c := range registry.List() {
					rows = append(rows, listedClass{Spec: spec.PackagePath, ClassInfo: c.Info()})
				}
			}

			out := cmd.OutOrStdout()
			switch output {
			case OutputJSON:
				if rows == nil {
					rows = []listedClass{}
				}
				return writeJSON(out, rows)
			case OutputYAML:
				return writeYAML(out, rows)
			}

			if len(rows) == 0 {
				fmt.Fprintln(out, "No plugin classes found.")
				return nil
			}
			tw := newTable(out, "SPEC", "CLASS", "LINEAGE", "MODULE", "PATCHES")
			for _, r := range rows {
				module := r.Module
				if module == "" {
					module = "(built-in)"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", r.Spec, r.Name, r.LineageName, module, len(r.Patches))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "List the full registry instead of plugin classes only")
	cmd.Flags().StringVarP(&output, "output", "o", OutputTable, "Output format (table, json, yaml)")
	return cmd
}

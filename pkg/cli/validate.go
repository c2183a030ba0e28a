package cli

import (
	"context"
	"fmt"
	"io"
	"runtime"

	"github.com/platinummonkey/plugweave/pkg/async"
	"github.com/platinummonkey/plugweave/pkg/plugins"
	"github.com/spf13/cobra"
)

func newValidateCommand(a *app) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate [root...]",
		Short: "Check plugin trees without loading them",
		Long: `Decode every module below each root (a directory or zip archive) and report
problems: undecodable modules, classes that would be filtered out by name, exports
that match nothing, and overrides of unknown targets. Roots default to the
configured search roots.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			roots := args
			if len(roots) == 0 {
				session, err := a.newSession()
				if err != nil {
					return err
				}
				roots = session.Directories()
			}
			if len(roots) == 0 {
				return fmt.Errorf("no search roots to validate")
			}

			indexes := make([]int, len(roots))
			for i := range indexes {
				indexes[i] = i
			}
			results := make([][]plugins.ValidationError, len(roots))
			errs := async.Batch(cmd.Context(), indexes, runtime.GOMAXPROCS(0), func(_ context.Context, i int) error {
				results[i] = plugins.ValidateTree(roots[i], a.cfg.Namespace, a.cfg.CapabilitySpecs())
				return nil
			})

			failed := 0
			out := cmd.OutOrStdout()
			for i, root := range roots {
				if errs[i] != nil {
					fmt.Fprintf(out, "%s: %v\n", root, errs[i])
					failed++
					continue
				}
				printValidation(out, root, results[i])
				if plugins.HasErrors(results[i]) || (strict && len(results[i]) > 0) {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d roots failed validation", failed, len(roots))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Treat warnings as failures")
	return cmd
}

func printValidation(w io.Writer, root string, results []plugins.ValidationError) {
	if len(results) == 0 {
		fmt.Fprintf(w, "%s: ok\n", root)
		return
	}
	fmt.Fprintf(w, "%s:\n", root)
	for _, r := range results {
		field := ""
		if r.Field != "" {
			field = " [" + r.Field + "]"
		}
		fmt.Fprintf(w, "  %-7s %s%s: %s\n", r.Severity, r.Path, field, r.Message)
	}
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/apictl/pkg/template"
)

func newTemplateCommand(_ *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Generate files from a CSV and a text template",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "render CSVFILE TEMPLATE OUTDIR",
		Short: "Write one file per CSV row",
		Long: `Substitute every data row of CSVFILE into TEMPLATE and write the result to
OUTDIR/row.<n>.out. The CSV header names the keys; the template refers to them
as $key or ${key}, and $$ is a literal dollar sign. OUTDIR must exist.`,
		Args: usageArgs(cobra.ExactArgs(3)),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := template.Render(args[0], args[1], args[2])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, p := range paths {
				fmt.Fprintln(out, p)
			}
			return nil
		},
	})
	return cmd
}

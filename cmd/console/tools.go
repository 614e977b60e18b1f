package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/scanops/console/internal/infrastructure/catalog"
	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the scanning tools known to the console",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		tools, err := catalog.Load(cfg.Catalog.Path)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tMODULE\tTARGET\tPREVIEW\tSTART")
		for _, t := range tools.List() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.Name, t.Module, t.TargetParam, t.PreviewPath, t.StartPath)
		}
		return w.Flush()
	},
}

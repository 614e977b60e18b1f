package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/scanops/console/internal/container"
	"github.com/scanops/console/internal/infrastructure/db"
	"github.com/spf13/cobra"
)

var (
	historyWorkspace string
	historyLimit     int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List finished tasks from the task journal",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		defer log.Sync()

		database, err := container.OpenDatabase(cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close(database)

		records, err := db.NewTaskJournalRepository(database, log).List(cmd.Context(), historyWorkspace, historyLimit)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TASK\tWORKSPACE\tNAME\tSTATUS\tPROGRESS\tTARGET\tSTARTED")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d%%\t%s\t%s\n",
				r.TaskID, r.WorkspaceID, r.Name, r.Status, r.Progress, r.Target, r.StartTime.Format("2006-01-02 15:04:05"))
		}
		return w.Flush()
	},
}

func init() {
	historyCmd.Flags().StringVarP(&historyWorkspace, "workspace", "w", "", "only show tasks of this workspace")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum number of tasks")
}

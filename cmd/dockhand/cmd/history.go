package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dockhand/dockhand/internal/api"
	"github.com/dockhand/dockhand/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show recorded deployment runs",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		history, err := store.Open(ctx)
		if err != nil {
			return fmt.Errorf("could not open run history: %w", err)
		}
		defer history.Close()

		if len(args) == 1 {
			record, err := history.GetDeployment(ctx, args[0])
			if err != nil {
				return err
			}
			printRun(record)
			return nil
		}

		records, err := history.ListDeployments(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tAPP\tHOST\tBRANCH\tSTATUS\tSTARTED")
		for _, record := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				record.ID, record.AppName, record.RemoteHost, record.Branch,
				record.Status, record.StartedAt.Format(time.RFC3339))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
}

func printRun(d *api.Deployment) {
	fmt.Printf("ID:       %s\n", d.ID)
	fmt.Printf("App:      %s\n", d.AppName)
	fmt.Printf("Repo:     %s\n", d.RepoURL)
	fmt.Printf("Branch:   %s\n", d.Branch)
	fmt.Printf("Host:     %s\n", d.RemoteHost)
	fmt.Printf("Port:     %d\n", d.AppPort)
	fmt.Printf("Commit:   %s\n", d.Commit)
	fmt.Printf("Status:   %s\n", d.Status)
	fmt.Printf("Log:      %s\n", d.LogPath)
	fmt.Printf("Started:  %s\n", d.StartedAt.Format(time.RFC3339))
	if !d.FinishedAt.IsZero() {
		fmt.Printf("Finished: %s\n", d.FinishedAt.Format(time.RFC3339))
	}
	if d.Error != "" {
		fmt.Printf("Error:    %s\n", d.Error)
	}
}

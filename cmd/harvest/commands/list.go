package commands

import (
	"os"

	"eventharvest-backend/lib/eventstore"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var listOutput *string

func init() {
	listOutput = listCmd.Flags().String("output", "output", "Directory the events were scraped into.")
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Prints the scraped events known to the local archive.",
	Run: func(cmd *cobra.Command, args []string) {
		store, err := eventstore.Open(*listOutput)
		if err != nil {
			fatal("failed to open event store", err)
		}
		defer store.Close()

		entries, err := store.List(cmd.Context())
		if err != nil {
			fatal("failed to list events", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Date", "ID", "Name", "Attendees", "Cancelled", "Document"})
		for _, e := range entries {
			t.AppendRow(table.Row{e.Date, e.ID, e.Name, e.AttendeeCount, e.Cancelled, e.Path})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}

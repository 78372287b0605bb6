// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/pdiddy/digitize/internal/ledger"
)

var historyCmd = &cobra.Command{
	Use:   "history [item]",
	Short: "Show the recorded operations for the collection or one item",
	Long: `History lists the operations recorded in the collection's run ledger,
oldest first. Give an item identifier to see only that item.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if _, err := os.Stat(ledger.Path(a.project.CollectionDir())); err != nil {
		fmt.Fprintln(out, "No history recorded.")
		return nil
	}

	led, err := ledger.Open(a.project.CollectionDir())
	if err != nil {
		return err
	}
	defer led.Close()

	var itemID string
	if len(args) == 1 {
		itemID = args[0]
	}
	entries, err := led.History(cmd.Context(), itemID)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return encodeJSON(out, entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No history recorded.")
		return nil
	}

	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = []string{
			shortRunID(e.RunID),
			e.ItemID,
			e.Operation,
			string(e.Outcome),
			humanize.Time(e.StartedAt),
			e.Duration().Round(100 * time.Millisecond).String(),
			e.Message,
		}
	}
	fmt.Fprintln(out, renderTable(out,
		[]string{"Run", "Item", "Operation", "Outcome", "Started", "Took", "Message"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))
	fmt.Fprintf(out, "\n%d entries\n", len(entries))
	return nil
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	historyCmd.Flags().Bool("json", false, "output as JSON")
	rootCmd.AddCommand(historyCmd)
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/disiqueira/gotree/v3"
	"github.com/spf13/cobra"

	"github.com/pdiddy/digitize/internal/item"
	"github.com/pdiddy/digitize/internal/project"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create the collection and item directories",
	Long: `Setup creates <base-dir>/<collection_id> and, for every item in the
metadata CSV, <item>/preservation and <item>/access. Item directories that
already exist are left untouched, so setup can be re-run after new rows are
added to the CSV.`,
	Args: cobra.NoArgs,
	RunE: runSetup,
}

func runSetup(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	res, err := a.project.Setup()
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), setupTree(a.project, res))
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d created, %d already present\n", len(res.Created), len(res.Existing))
	return nil
}

// setupTree renders the collection with each item marked created or existing.
func setupTree(p *project.Project, res project.SetupResult) string {
	created := make(map[string]bool, len(res.Created))
	for _, id := range res.Created {
		created[id] = true
	}

	root := gotree.New(fmt.Sprintf("%s (%s)", p.CollectionID(), res.CollectionDir))
	for _, id := range p.Catalog().Identifiers() {
		if !created[id] {
			root.Add(id + " (exists)")
			continue
		}
		node := root.Add(id + " (created)")
		node.Add(item.PreservationDir)
		node.Add(item.AccessDir)
	}
	return root.Print()
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/digitize/internal/item"
)

var statusCmd = &cobra.Command{
	Use:   "status [items...]",
	Short: "Show scan, derivative, and PDF counts per item",
	Long: `Status inspects each item directory without changing anything and
reports how many scans and derivatives it holds, whether the PDF exists, and
which pipeline stage the item has reached.`,
	RunE: runStatus,
}

var verifyCmd = &cobra.Command{
	Use:   "verify [items...]",
	Short: "Check that items are complete",
	Long: `Verify checks that every scan has a derivative and that the item's PDF
exists with one page per scan. It exits with an error when any item is
incomplete.`,
	RunE: runVerify,
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	items, err := a.project.ItemsFor(args)
	if err != nil {
		return err
	}

	statuses := make([]item.Status, 0, len(items))
	for _, it := range items {
		st, err := it.Status(a.cfg.Pipeline)
		if err != nil {
			return fmt.Errorf("status of %s: %w", it.Identifier(), err)
		}
		statuses = append(statuses, st)
	}

	if handled, err := writeStructured(cmd, statuses); handled {
		return err
	}

	rows := make([][]string, len(statuses))
	for i, st := range statuses {
		rows[i] = []string{
			st.Identifier,
			yesNo(st.Exists),
			strconv.Itoa(st.Scans),
			strconv.Itoa(st.Derivatives),
			yesNo(st.PDF),
			st.StageName,
		}
	}
	out := cmd.OutOrStdout()
	kind := strings.ToUpper(a.cfg.Pipeline.Kind.String())
	fmt.Fprintln(out, renderTable(out,
		[]string{"Item", "Exists", "Scans", kind + "s", "PDF", "Stage"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
	))
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	items, err := a.project.ItemsFor(args)
	if err != nil {
		return err
	}

	results := make([]item.Completeness, 0, len(items))
	incomplete := 0
	for _, it := range items {
		c, err := it.CheckComplete(a.cfg.Pipeline)
		if err != nil {
			return fmt.Errorf("verifying %s: %w", it.Identifier(), err)
		}
		if !c.Complete {
			incomplete++
		}
		results = append(results, c)
	}

	if handled, err := writeStructured(cmd, results); handled {
		if err != nil {
			return err
		}
	} else {
		rows := make([][]string, len(results))
		for i, c := range results {
			rows[i] = []string{
				c.Identifier,
				yesNo(c.Complete),
				strconv.Itoa(c.Scans),
				strconv.Itoa(c.Derivatives),
				strconv.Itoa(c.Pages),
				strings.Join(c.Problems, "; "),
			}
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, renderTable(out,
			[]string{"Item", "Complete", "Scans", "Derivatives", "Pages", "Problems"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
		))
	}

	if incomplete > 0 {
		return fmt.Errorf("%d of %d item(s) incomplete", incomplete, len(results))
	}
	return nil
}

// writeStructured writes v as JSON or YAML when the matching flag is set.
// It reports whether it handled the output.
func writeStructured(cmd *cobra.Command, v any) (bool, error) {
	asJSON, _ := cmd.Flags().GetBool("json")
	asYAML, _ := cmd.Flags().GetBool("yaml")
	switch {
	case asJSON:
		return true, encodeJSON(cmd.OutOrStdout(), v)
	case asYAML:
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, err
		}
		return true, enc.Close()
	default:
		return false, nil
	}
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func init() {
	for _, c := range []*cobra.Command{statusCmd, verifyCmd} {
		c.Flags().Bool("json", false, "output as JSON")
		c.Flags().Bool("yaml", false, "output as YAML")
		c.MarkFlagsMutuallyExclusive("json", "yaml")
	}

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(verifyCmd)
}

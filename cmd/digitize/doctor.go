// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/digitize/internal/toolchain"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that the external tools are installed",
	Long: `Doctor resolves every external tool the pipeline uses (OpenJPEG,
ImageMagick, img2pdf, Ghostscript, OCRmyPDF, rsync) and reports where each was
found. Tool paths can be overridden under tools: in digitize.yaml.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	statuses := toolchain.Detect(cfg.Tools).Statuses()

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		if err := encodeJSON(out, statuses); err != nil {
			return err
		}
	} else {
		rows := make([][]string, len(statuses))
		for i, s := range statuses {
			found := s.Path
			if !s.Available {
				found = s.Detail
			}
			rows[i] = []string{s.Command, yesNo(s.Available), s.Description, found}
		}
		fmt.Fprintln(out, renderTable(out, []string{"Tool", "OK", "Used for", "Path"}, rows, nil))
	}

	var missing []string
	for _, s := range statuses {
		if !s.Available {
			missing = append(missing, s.Command)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %d of %d tools not found: %v", toolchain.ErrMissingDependency, len(missing), len(statuses), missing)
	}
	return nil
}

func init() {
	doctorCmd.Flags().Bool("json", false, "output as JSON")
	rootCmd.AddCommand(doctorCmd)
}

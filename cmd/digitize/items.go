// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/digitize/internal/ledger"
	"github.com/pdiddy/digitize/internal/toolchain"
	"github.com/pdiddy/digitize/internal/workflow"
	"github.com/pdiddy/digitize/pkg/types"
)

var renameCmd = &cobra.Command{
	Use:   "rename [items...]",
	Short: "Rename preservation scans to <item>_<NNN>.tif",
	Long: `Rename validates the TIFFs in each item's preservation directory and
renames them to <item_identifier>_<NNN>.tif. Scans must already be numbered
1..N (001.tif, 002.tif, ...). Items whose scans are already correctly named
are skipped. With no arguments every catalogued item is processed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOperations(cmd, args, workflow.OpRename)
	},
}

var derivativesCmd = &cobra.Command{
	Use:   "derivatives [items...]",
	Short: "Create access images and a searchable PDF for each item",
	Long: `Derivatives converts each item's preservation TIFFs to JP2 or JPG access
images under access/<jp2|jpg>/, then assembles them into a single compressed,
OCR'd PDF at access/<item>_001.pdf. Images and the PDF are only created when
missing. Sources with an alpha channel are rejected before any conversion.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOperations(cmd, args, workflow.OpDerivatives)
	},
}

var copyCmd = &cobra.Command{
	Use:   "copy [items...]",
	Short: "Copy item directories to the remote mirror",
	Long: `Copy mirrors each item directory into <remote-root>/<collection_id> with
rsync. Files that exist only on the remote side are kept.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOperations(cmd, args, workflow.OpCopy)
	},
}

var processCmd = &cobra.Command{
	Use:   "process [items...]",
	Short: "Rename, create derivatives, and optionally copy each item",
	Long: `Process runs rename and derivatives for each item in turn, then copy when
--copy is given. An item that fails one step is not attempted in later
steps; the batch continues with the next item.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ops := []workflow.Operation{workflow.OpRename, workflow.OpDerivatives}
		if doCopy, _ := cmd.Flags().GetBool("copy"); doCopy {
			ops = append(ops, workflow.OpCopy)
		}
		return runOperations(cmd, args, ops...)
	},
}

// runOperations runs ops over the selected items under the collection lock,
// recording each outcome in the ledger.
func runOperations(cmd *cobra.Command, ids []string, ops ...workflow.Operation) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	if err := a.requireCollection(); err != nil {
		return err
	}
	if err := preflight(a, ops); err != nil {
		return err
	}

	items, err := a.project.ItemsFor(ids)
	if err != nil {
		return err
	}

	lock, err := workflow.AcquireLock(a.project.CollectionDir())
	if err != nil {
		return err
	}
	defer lock.Release()

	led, err := ledger.Open(a.project.CollectionDir())
	if err != nil {
		return err
	}
	defer led.Close()

	a.logger.Info("starting run", "run_id", led.RunID(), "items", len(items), "operations", fmt.Sprint(ops))

	runner := workflow.NewRunner(workflow.Options{
		Pipeline: a.cfg.Pipeline,
		Recorder: led,
		Logger:   a.logger,
	})
	res, err := runner.Run(cmd.Context(), items, ops, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if res.HasFailures() {
		return fmt.Errorf("%d of %d operation(s) failed", res.Failed, res.Total())
	}
	return nil
}

// preflight fails before any item is touched when copy is requested without
// a remote root, or when rsync is missing. Derivative tools are checked per
// item, against the stages that item still needs.
func preflight(a *app, ops []workflow.Operation) error {
	for _, op := range ops {
		if op != workflow.OpCopy {
			continue
		}
		if a.project.RemoteDir() == "" {
			return fmt.Errorf("%w: cannot copy files: no remote scans dir defined (set --remote-root)", types.ErrConfig)
		}
		if err := a.tools.Require(toolchain.Rsync); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	processCmd.Flags().Bool("copy", false, "copy each item to the remote mirror after its derivatives are created")

	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(derivativesCmd)
	rootCmd.AddCommand(copyCmd)
	rootCmd.AddCommand(processCmd)
}

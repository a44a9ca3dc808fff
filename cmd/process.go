package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dbasik/dbasik/internal/extract"
	"github.com/dbasik/dbasik/internal/model"
	"github.com/dbasik/dbasik/internal/store"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Extract one populated template into a return",
	Long:  "Reads a populated xlsx/xlsm template through a datamap and replaces the return's items with the extracted values. With --dry-run the values are only printed.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		returnID, _ := cmd.Flags().GetString("return")
		ref, _ := cmd.Flags().GetString("datamap")
		path, _ := cmd.Flags().GetString("file")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		useTypes := cfg.Extract.UseDatamapTypes
		if cmd.Flags().Changed("use-datamap-types") {
			useTypes, _ = cmd.Flags().GetBool("use-datamap-types")
		}

		if returnID == "" && !dryRun {
			return eris.New("process: --return is required unless --dry-run is set")
		}

		records, err := processWorkbook(ctx, st, processRequest{
			ReturnID:        returnID,
			Datamap:         ref,
			Path:            path,
			UseDatamapTypes: useTypes,
			DryRun:          dryRun,
		})
		if err != nil {
			return err
		}

		items := make([]model.ReturnItem, len(records))
		for i, r := range records {
			items[i] = r.ReturnItem(returnID)
		}
		formatItems(os.Stdout, items)
		if dryRun {
			fmt.Fprintf(os.Stderr, "Dry run: %d values extracted, nothing saved.\n", len(items))
		}
		return nil
	},
}

// processRequest describes one workbook to extract.
type processRequest struct {
	ReturnID        string
	Datamap         string // id or name
	Path            string
	UseDatamapTypes bool
	DryRun          bool
}

// processWorkbook resolves the datamap and return of req and runs the
// extractor. Items are written to st unless req.DryRun is set.
func processWorkbook(ctx context.Context, st store.Store, req processRequest) ([]extract.Record, error) {
	dm, err := store.FindDatamap(ctx, st, req.Datamap)
	if err != nil {
		return nil, eris.Wrap(err, "process: datamap")
	}

	var sink extract.Sink
	if !req.DryRun {
		if _, err := st.GetReturn(ctx, req.ReturnID); err != nil {
			return nil, eris.Wrap(err, "process: return")
		}
		sink = st
	}

	log := zap.L().With(
		zap.String("return_id", req.ReturnID),
		zap.String("datamap", dm.Name),
	)
	return extract.ProcessFile(ctx, req.Path, dm, extract.Options{
		Mode:     extract.ModeFor(req.UseDatamapTypes),
		ReturnID: req.ReturnID,
		Logger:   log,
	}, sink)
}

func init() {
	processCmd.Flags().String("return", "", "return id to store the values against")
	processCmd.Flags().String("datamap", "", "datamap id or name (required)")
	processCmd.Flags().String("file", "", "path to the populated template (required)")
	processCmd.Flags().Bool("use-datamap-types", false, "use the datamap's declared types instead of inferring them (default from config)")
	processCmd.Flags().Bool("dry-run", false, "extract and validate without saving")
	_ = processCmd.MarkFlagRequired("datamap")
	_ = processCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(processCmd)
}

package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dbasik/dbasik/internal/store"
	"github.com/dbasik/dbasik/internal/workbook"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Extract every template in a directory",
	Long:  "Processes each xlsx/xlsm file in --dir as the return of the project named after the file, creating projects and returns as needed.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		dir, _ := cmd.Flags().GetString("dir")
		ref, _ := cmd.Flags().GetString("datamap")
		tier, _ := cmd.Flags().GetString("tier")
		q, err := quarterFromFlags(cmd)
		if err != nil {
			return err
		}
		useTypes := cfg.Extract.UseDatamapTypes
		if cmd.Flags().Changed("use-datamap-types") {
			useTypes, _ = cmd.Flags().GetBool("use-datamap-types")
		}

		// Resolve once so a bad reference fails before any file is read.
		dm, err := store.FindDatamap(ctx, st, ref)
		if err != nil {
			return eris.Wrap(err, "batch: datamap")
		}

		paths, err := listWorkbooks(dir)
		if err != nil {
			return err
		}

		res, err := processBatch(ctx, paths, cfg.Extract.MaxConcurrency, func(ctx context.Context, path string) (int, error) {
			ret, err := ensureReturn(ctx, st, projectName(path), tier, q)
			if err != nil {
				return 0, err
			}
			records, err := processWorkbook(ctx, st, processRequest{
				ReturnID:        ret.ID,
				Datamap:         dm.ID,
				Path:            path,
				UseDatamapTypes: useTypes,
			})
			return len(records), err
		})
		if err != nil {
			return err
		}
		if res.Failed > 0 {
			return eris.Errorf("batch: %d of %d workbooks failed", res.Failed, res.Failed+res.Succeeded)
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().String("dir", "", "directory of populated templates (required)")
	batchCmd.Flags().String("datamap", "", "datamap id or name (required)")
	batchCmd.Flags().String("tier", "", "tier id for newly created projects")
	batchCmd.Flags().Bool("use-datamap-types", false, "use the datamap's declared types instead of inferring them (default from config)")
	addQuarterFlags(batchCmd)
	_ = batchCmd.MarkFlagRequired("dir")
	_ = batchCmd.MarkFlagRequired("datamap")
	rootCmd.AddCommand(batchCmd)
}

// listWorkbooks returns the xlsx/xlsm files directly inside dir, sorted.
// Office lock files (~$name.xlsx) are skipped.
func listWorkbooks(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "batch: read dir %s", dir)
	}
	var paths []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, "~$") || !workbook.HasAllowedExtension(name) {
			continue
		}
		paths = append(paths, filepath.Join(dir, name))
	}
	sort.Strings(paths)
	return paths, nil
}

// projectName derives a project name from a workbook path.
func projectName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
}

// workbookFunc processes one workbook and reports how many items it produced.
type workbookFunc func(ctx context.Context, path string) (int, error)

type batchResult struct {
	Succeeded int64
	Failed    int64
	Items     int64
}

// processBatch runs process over paths with at most concurrency in flight.
// A failing workbook is logged and counted; it does not stop the others.
func processBatch(ctx context.Context, paths []string, concurrency int, process workbookFunc) (batchResult, error) {
	if len(paths) == 0 {
		zap.L().Info("no workbooks found")
		return batchResult{}, nil
	}
	if concurrency < 1 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("workbooks", len(paths)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed, items atomic.Int64

	for _, path := range paths {
		g.Go(func() error {
			log := zap.L().With(zap.String("file", filepath.Base(path)))

			n, err := process(gctx, path)
			if err != nil {
				failed.Add(1)
				log.Error("workbook failed", zap.Error(err))
				return nil // don't abort batch on individual failure
			}

			succeeded.Add(1)
			items.Add(int64(n))
			log.Info("workbook processed", zap.Int("items", n))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return batchResult{}, eris.Wrap(err, "batch processing")
	}

	res := batchResult{Succeeded: succeeded.Load(), Failed: failed.Load(), Items: items.Load()}
	zap.L().Info("batch complete",
		zap.Int64("succeeded", res.Succeeded),
		zap.Int64("failed", res.Failed),
		zap.Int64("items", res.Items),
	)
	return res, nil
}

package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/dbasik/dbasik/internal/model"
)

// formatDatamapsList writes a tabular list of datamaps to out.
func formatDatamapsList(out io.Writer, dms []model.Datamap) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tTIER\tACTIVE")
	for _, dm := range dms {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", dm.ID, dm.Name, orDash(dm.TierID), dm.Active)
	}
	_ = w.Flush()
}

// formatDatamapLines writes the lines of one datamap in schema order.
func formatDatamapLines(out io.Writer, dm *model.Datamap) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "KEY\tSHEET\tCELL\tTYPE")
	for _, l := range dm.Lines {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", l.Key, l.Sheet, l.CellRef, orDash(string(l.DataType)))
	}
	_ = w.Flush()
}

// formatReturnsList writes a tabular list of returns to out.
func formatReturnsList(out io.Writer, returns []model.Return) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tPROJECT\tQUARTER\tCREATED")
	for _, r := range returns {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, r.ProjectID, r.Quarter, r.CreatedAt.Format("2006-01-02 15:04"))
	}
	_ = w.Flush()
}

// formatItems writes extracted items to out, one per row.
func formatItems(out io.Writer, items []model.ReturnItem) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SHEET\tCELL\tKEY\tVALUE")
	for _, it := range items {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", it.Sheet, it.CellRef, it.Key, formatValue(it.Value()))
	}
	_ = w.Flush()
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "-"
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		return x.Format("2006-01-02")
	default:
		return fmt.Sprint(x)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/dbasik/dbasik/internal/model"
	"github.com/dbasik/dbasik/internal/store"
)

var returnCmd = &cobra.Command{
	Use:   "return",
	Short: "Manage quarterly returns",
}

// -- return create --

var returnCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a return for a project and quarter",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		project, _ := cmd.Flags().GetString("project")
		tier, _ := cmd.Flags().GetString("tier")
		q, err := quarterFromFlags(cmd)
		if err != nil {
			return err
		}

		ret, err := ensureReturn(ctx, st, project, tier, q)
		if err != nil {
			return eris.Wrap(err, "return create")
		}
		fmt.Fprintln(os.Stdout, ret.ID)
		return nil
	},
}

// -- return list --

var returnListCmd = &cobra.Command{
	Use:   "list",
	Short: "List returns",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		project, _ := cmd.Flags().GetString("project")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := model.ReturnFilter{Limit: limit}
		if project != "" {
			p, err := st.GetProjectByName(ctx, project)
			if err != nil {
				return eris.Wrap(err, "return list")
			}
			filter.ProjectID = p.ID
		}

		returns, err := st.ListReturns(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "return list")
		}
		if len(returns) == 0 {
			fmt.Fprintln(os.Stderr, "No returns found.")
			return nil
		}
		formatReturnsList(os.Stdout, returns)
		return nil
	},
}

// -- return show --

var returnShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a return and its extracted items",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		id, _ := cmd.Flags().GetString("return")
		asJSON, _ := cmd.Flags().GetBool("json")

		ret, err := st.GetReturn(ctx, id)
		if err != nil {
			return eris.Wrap(err, "return show")
		}
		items, err := st.ListReturnItems(ctx, ret.ID)
		if err != nil {
			return eris.Wrap(err, "return show")
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				*model.Return
				Items []model.ReturnItem `json:"items"`
			}{ret, items})
		}

		fmt.Fprintf(os.Stdout, "Return %s  %s  %d items\n\n", ret.ID, ret.Quarter, len(items))
		formatItems(os.Stdout, items)
		return nil
	},
}

func init() {
	returnCreateCmd.Flags().String("project", "", "project name, created if missing (required)")
	returnCreateCmd.Flags().String("tier", "", "tier id for a new project")
	addQuarterFlags(returnCreateCmd)
	_ = returnCreateCmd.MarkFlagRequired("project")

	returnListCmd.Flags().String("project", "", "filter by project name")
	returnListCmd.Flags().Int("limit", 50, "max number of returns to display")

	returnShowCmd.Flags().String("return", "", "return id (required)")
	returnShowCmd.Flags().Bool("json", false, "print as JSON")
	_ = returnShowCmd.MarkFlagRequired("return")

	returnCmd.AddCommand(returnCreateCmd)
	returnCmd.AddCommand(returnListCmd)
	returnCmd.AddCommand(returnShowCmd)
	rootCmd.AddCommand(returnCmd)
}

func addQuarterFlags(cmd *cobra.Command) {
	cmd.Flags().Int("year", 0, "financial year the quarter belongs to, e.g. 2018 for FY2018/19 (required)")
	cmd.Flags().Int("quarter", 0, "quarter 1-4, Q1 starting in April (required)")
	_ = cmd.MarkFlagRequired("year")
	_ = cmd.MarkFlagRequired("quarter")
}

func quarterFromFlags(cmd *cobra.Command) (model.Quarter, error) {
	year, _ := cmd.Flags().GetInt("year")
	quarter, _ := cmd.Flags().GetInt("quarter")
	return model.NewQuarter(year, quarter)
}

// ensureReturn finds or creates the project named project and its return for
// q. Existing rows are reused.
func ensureReturn(ctx context.Context, st store.Store, project, tierID string, q model.Quarter) (*model.Return, error) {
	p, err := st.GetProjectByName(ctx, project)
	if errors.Is(err, store.ErrNotFound) {
		p, err = st.CreateProject(ctx, project, tierID)
	}
	if err != nil {
		return nil, err
	}

	existing, err := st.ListReturns(ctx, model.ReturnFilter{ProjectID: p.ID, Limit: 1000})
	if err != nil {
		return nil, err
	}
	for i := range existing {
		if existing[i].Quarter == q {
			return &existing[i], nil
		}
	}
	return st.CreateReturn(ctx, p.ID, q)
}

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/dbasik/dbasik/internal/datamap"
	"github.com/dbasik/dbasik/internal/store"
)

var datamapCmd = &cobra.Command{
	Use:   "datamap",
	Short: "Manage datamaps",
	Long:  "Commands for creating datamaps, importing their lines from CSV, Excel or YAML files, and inspecting them.",
}

// -- datamap create --

var datamapCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an empty datamap",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		name, _ := cmd.Flags().GetString("name")
		tier, _ := cmd.Flags().GetString("tier")

		dm, err := st.CreateDatamap(ctx, name, tier)
		if err != nil {
			return eris.Wrap(err, "datamap create")
		}
		fmt.Fprintln(os.Stdout, dm.ID)
		return nil
	},
}

// -- datamap import --

var datamapImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import datamap lines from a CSV, xlsx/xlsm, YAML or JSON file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ref, _ := cmd.Flags().GetString("datamap")
		path, _ := cmd.Flags().GetString("file")
		replace, _ := cmd.Flags().GetBool("replace")
		create, _ := cmd.Flags().GetBool("create")

		lines, err := datamap.ReadFile(path)
		if err != nil {
			return err
		}

		dm, err := store.FindDatamap(ctx, st, ref)
		if errors.Is(err, store.ErrNotFound) && create {
			dm, err = st.CreateDatamap(ctx, ref, "")
		}
		if err != nil {
			return eris.Wrap(err, "datamap import")
		}

		n, err := datamap.Import(ctx, st, dm.ID, lines, replace)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Imported %d lines into %s.\n", n, dm.Name)
		return nil
	},
}

// -- datamap list --

var datamapListCmd = &cobra.Command{
	Use:   "list",
	Short: "List datamaps",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		dms, err := st.ListDatamaps(ctx)
		if err != nil {
			return eris.Wrap(err, "datamap list")
		}
		if len(dms) == 0 {
			fmt.Fprintln(os.Stderr, "No datamaps found.")
			return nil
		}
		formatDatamapsList(os.Stdout, dms)
		return nil
	},
}

// -- datamap show --

var datamapShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a datamap and its lines",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ref, _ := cmd.Flags().GetString("datamap")
		asYAML, _ := cmd.Flags().GetBool("yaml")
		asJSON, _ := cmd.Flags().GetBool("json")

		dm, err := store.FindDatamap(ctx, st, ref)
		if err != nil {
			return eris.Wrap(err, "datamap show")
		}

		switch {
		case asYAML:
			return datamap.WriteYAML(os.Stdout, dm)
		case asJSON:
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(dm)
		}
		fmt.Fprintf(os.Stdout, "%s (%d lines)\n\n", dm.Name, len(dm.Lines))
		formatDatamapLines(os.Stdout, dm)
		return nil
	},
}

func init() {
	datamapCreateCmd.Flags().String("name", "", "datamap name (required)")
	datamapCreateCmd.Flags().String("tier", "", "tier id")
	_ = datamapCreateCmd.MarkFlagRequired("name")

	datamapImportCmd.Flags().String("datamap", "", "datamap id or name (required)")
	datamapImportCmd.Flags().String("file", "", "path to the datamap file (required)")
	datamapImportCmd.Flags().Bool("replace", false, "replace all existing lines")
	datamapImportCmd.Flags().Bool("create", false, "create the datamap if it does not exist")
	_ = datamapImportCmd.MarkFlagRequired("datamap")
	_ = datamapImportCmd.MarkFlagRequired("file")

	datamapShowCmd.Flags().String("datamap", "", "datamap id or name (required)")
	datamapShowCmd.Flags().Bool("yaml", false, "print as YAML")
	datamapShowCmd.Flags().Bool("json", false, "print as JSON")
	_ = datamapShowCmd.MarkFlagRequired("datamap")

	datamapCmd.AddCommand(datamapCreateCmd)
	datamapCmd.AddCommand(datamapImportCmd)
	datamapCmd.AddCommand(datamapListCmd)
	datamapCmd.AddCommand(datamapShowCmd)
	rootCmd.AddCommand(datamapCmd)
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dbasik/dbasik/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "dbasik",
	Short: "Datamap-driven extraction of project return templates",
	Long:  "Maintains datamaps, reads populated xlsx/xlsm return templates through them and stores the typed values against each project's quarterly return.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TalkingHeadsJed/texasmotels/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "texasmotels",
	Short: "Business website resolution pipeline",
	Long:  "Resolves official websites for business records from CSV/XLSX permit exports via structured place lookup with web-search fallback, backed by a persistent resolution cache.",
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

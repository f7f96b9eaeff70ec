package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/TalkingHeadsJed/texasmotels/internal/model"
	"github.com/TalkingHeadsJed/texasmotels/internal/normalize"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the resolution cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print entry counts by outcome",
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck

		stats, err := store.Stats(cmd.Context())
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	},
}

var cacheResetYes bool

var cacheResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every cached resolution (destructive)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !cacheResetYes {
			return eris.New("cache reset is destructive; rerun with --yes to confirm")
		}
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck

		if err := store.Reset(cmd.Context()); err != nil {
			return err
		}
		cmd.Println("cache reset")
		return nil
	},
}

var (
	invalidateName    string
	invalidateAddress string
	invalidateCity    string
)

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate",
	Short: "Remove one entry so the record re-resolves on the next run",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck

		fp := ""
		if len(args) == 1 {
			fp = args[0]
		} else if invalidateName != "" {
			fp = normalize.Fingerprint(model.Record{
				Name:    invalidateName,
				Address: invalidateAddress,
				City:    invalidateCity,
			})
		} else {
			return eris.New("pass a fingerprint argument or --name/--address/--city")
		}

		if err := store.Invalidate(cmd.Context(), fp); err != nil {
			return err
		}
		cmd.Printf("invalidated %s\n", fp)
		return nil
	},
}

func init() {
	cacheResetCmd.Flags().BoolVar(&cacheResetYes, "yes", false, "confirm the destructive reset")
	cacheInvalidateCmd.Flags().StringVar(&invalidateName, "name", "", "record name")
	cacheInvalidateCmd.Flags().StringVar(&invalidateAddress, "address", "", "record address")
	cacheInvalidateCmd.Flags().StringVar(&invalidateCity, "city", "", "record city")

	cacheCmd.AddCommand(cacheStatsCmd, cacheResetCmd, cacheInvalidateCmd)
	rootCmd.AddCommand(cacheCmd)
}

package main

import (
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TalkingHeadsJed/texasmotels/internal/recordio"
	"github.com/TalkingHeadsJed/texasmotels/internal/runner"
)

var (
	resolveInput       string
	resolveOutput      string
	resolveLimit       int
	resolveConcurrency int
	resolveResume      bool
	resolvePermits     []string
	resolveIndependent bool
	resolveConfidence  float64
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve official websites for a CSV/XLSX of business records",
	Long: `Reads business records, resolves each one's official website via
structured place lookup with web-search fallback, and writes the input rows
back out with result columns appended.

Already-resolved records are served from the cache with no network calls, so
an interrupted run can simply be rerun.

Examples:
  # Full run
  texasmotels resolve --input permits.csv --output resolved.csv

  # Only independent properties, first 100 rows
  texasmotels resolve --input permits.xlsx --output resolved.csv --independent-only --limit 100

  # Continue after an interruption
  texasmotels resolve --input permits.csv --output resolved.csv --resume`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		file, err := recordio.Read(resolveInput, columnOverrides())
		if err != nil {
			return eris.Wrap(err, "resolve: read input")
		}
		zap.L().Info("parsed input",
			zap.String("path", resolveInput),
			zap.Int("rows", len(file.Records)),
		)

		if resolveConfidence > 0 {
			cfg.Resolve.Confidence = resolveConfidence
		}

		store, err := openStore(ctx)
		if err != nil {
			return eris.Wrap(err, "resolve: open cache")
		}
		defer store.Close() //nolint:errcheck

		orch, err := buildOrchestrator(store)
		if err != nil {
			return err
		}

		w, err := recordio.NewWriter(resolveOutput, file.Header, cfg.Resolve.FlushEvery)
		if err != nil {
			return eris.Wrap(err, "resolve: open output")
		}
		defer w.Close() //nolint:errcheck

		concurrency := resolveConcurrency
		if concurrency <= 0 {
			concurrency = cfg.Resolve.Concurrency
		}

		var permitSet map[string]bool
		if len(resolvePermits) > 0 {
			permitSet = make(map[string]bool, len(resolvePermits))
			for _, p := range resolvePermits {
				permitSet[strings.TrimSpace(p)] = true
			}
		}

		run := runner.New(orch, store, runner.Config{
			Concurrency:     concurrency,
			Limit:           resolveLimit,
			PermitFilter:    permitSet,
			IndependentOnly: resolveIndependent,
			Resume:          resolveResume,
			InputPath:       resolveInput,
		})

		summary, err := run.Run(ctx, file, w)
		if err != nil {
			return eris.Wrap(err, "resolve: run")
		}

		cmd.Printf("processed %d rows: %d businesses found, %d errored, %d served from cache\n",
			summary.Total, summary.Resolved, summary.Errors, summary.CacheHits)
		return nil
	},
}

func init() {
	resolveCmd.Flags().StringVar(&resolveInput, "input", "", "input CSV or XLSX file (required)")
	resolveCmd.Flags().StringVar(&resolveOutput, "output", "resolved.csv", "output CSV file")
	resolveCmd.Flags().IntVar(&resolveLimit, "limit", 0, "max rows to process (0 = all)")
	resolveCmd.Flags().IntVar(&resolveConcurrency, "concurrency", 0, "worker pool size (default from config)")
	resolveCmd.Flags().BoolVar(&resolveResume, "resume", false, "reuse prior results from the cache")
	resolveCmd.Flags().StringSliceVar(&resolvePermits, "permit-filter", nil, "only process rows with these permit values")
	resolveCmd.Flags().BoolVar(&resolveIndependent, "independent-only", false, "skip rows whose name matches a national chain")
	resolveCmd.Flags().Float64Var(&resolveConfidence, "confidence", 0, "match acceptance threshold (default from config)")
	_ = resolveCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(resolveCmd)
}

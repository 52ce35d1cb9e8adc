package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ppiankov/clinsum/internal/worker"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	outputDir    string
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <dir>",
	Short: "Summarize every note in a directory in parallel",
	Long: `Batch summarizes a directory of notes concurrently:
- Read every .txt/.html/.htm note in the directory (not recursive)
- Send each note to the backend exactly once, rate limited per backend host
- Write <name>.json (and <name>.pdf with --pdf) for each note

Example:
  clinsum batch ./notes
  clinsum batch ./notes --workers 8 --rps 2 --output-dir ./summaries
  clinsum batch ./notes --pdf --deadline 30m`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().Int("workers", 0, "number of concurrent workers")
	batchCmd.Flags().Float64("rps", 0, "backend requests per second (0 = unlimited)")
	batchCmd.Flags().Bool("pdf", false, "also export each summary as PDF")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "", "output directory (default: next to each note)")
	batchCmd.Flags().DurationVar(&batchTimeout, "deadline", 30*time.Minute, "total timeout for batch processing")

	_ = viper.BindPFlag("batch.workers", batchCmd.Flags().Lookup("workers"))
	_ = viper.BindPFlag("batch.requests_per_second", batchCmd.Flags().Lookup("rps"))
	_ = viper.BindPFlag("batch.write_pdf", batchCmd.Flags().Lookup("pdf"))
}

func runBatch(cmd *cobra.Command, args []string) error {
	dir := args[0]
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	client := newClient(cfg)

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  clinsum Batch Processing\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Notes dir:    %s\n", dir)
	modelName := cfg.LLM.Model
	if modelName == "" {
		modelName = "(provider default)"
	}
	fmt.Fprintf(os.Stderr, "  Backend:      %s/%s\n", client.ProviderName(), modelName)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", cfg.Batch.Workers)
	fmt.Fprintf(os.Stderr, "  Rate:         %.2f req/s\n", cfg.Batch.RequestsPerSecond)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	processor := worker.NewBatchProcessor(client, worker.Options{
		Workers:           cfg.Batch.Workers,
		RequestsPerSecond: cfg.Batch.RequestsPerSecond,
		Burst:             cfg.Batch.BurstSize,
		Endpoint:          client.Endpoint(),
		OutDir:            outputDir,
		WritePDF:          cfg.Batch.WritePDF,
		Scale:             cfg.Export.Scale,
	})

	results, err := processor.ProcessDir(ctx, dir)
	if err != nil && results == nil {
		return fmt.Errorf("process dir: %w", err)
	}

	successCount := 0
	failureCount := 0
	emergencyCount := 0

	for _, result := range results {
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Path, result.Error)
			continue
		}

		successCount++
		flag := ""
		if result.Summary.IsEmergency {
			emergencyCount++
			flag = "  ⚠️  " + result.Summary.EmergencyReason
		}
		fmt.Fprintf(os.Stderr, "✓ %s → %s%s\n", result.Path, result.JSONPath, flag)
	}

	// Summary
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:       %d notes\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:     %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:    %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Emergencies: %d\n", emergencyCount)
	fmt.Fprintf(os.Stderr, "\n")

	if err != nil {
		return fmt.Errorf("batch interrupted: %w", err)
	}
	return nil
}

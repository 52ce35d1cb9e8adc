package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ppiankov/clinsum/internal/export"
	"github.com/ppiankov/clinsum/internal/extract"
	"github.com/ppiankov/clinsum/internal/render"
	"github.com/ppiankov/clinsum/internal/session"
	"github.com/ppiankov/clinsum/internal/worker"
	"github.com/spf13/cobra"
)

var (
	summaryOutput string
	pdfOutput     string
	totalTimeout  time.Duration
)

// summarizeCmd represents the summarize command
var summarizeCmd = &cobra.Command{
	Use:   "summarize [note-file]",
	Short: "Summarize one clinical note",
	Long: `Summarize reads one note (a .txt or .html file, or stdin when no file
or "-" is given), sends it to the configured backend once and prints the
structured summary as JSON.

Example:
  clinsum summarize note.txt
  clinsum summarize note.txt --pdf clinical-summary.pdf
  cat note.txt | clinsum summarize --provider ollama --model llama3.1`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSummarize,
}

func init() {
	rootCmd.AddCommand(summarizeCmd)

	summarizeCmd.Flags().StringVarP(&summaryOutput, "output", "o", "", "write the JSON summary to this file instead of stdout")
	summarizeCmd.Flags().StringVar(&pdfOutput, "pdf", "", "also export the summary as a PDF to this path")
	summarizeCmd.Flags().DurationVar(&totalTimeout, "deadline", 0, "overall deadline for the request (0 = none)")
}

func readNoteArg(args []string, stdin io.Reader) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	return extract.ReadNote(args[0])
}

func runSummarize(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	note, err := readNoteArg(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	ctx := context.Background()
	if totalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, totalTimeout)
		defer cancel()
	}

	ctrl := session.NewController(newClient(cfg))
	ctrl.SetNote(note)

	fmt.Fprintf(os.Stderr, "⚙️  Analyzing clinical note...\n")
	st, err := ctrl.RequestSummary(ctx)
	if err != nil {
		return err
	}
	if st.Phase != session.Succeeded {
		return errors.New(st.Err)
	}

	if st.Summary.IsEmergency {
		fmt.Fprintf(os.Stderr, "%s: %s\n", render.EmergencyTitle, st.Summary.EmergencyReason)
	}

	if summaryOutput != "" {
		if err := worker.WriteSummaryJSON(summaryOutput, st.Summary); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ Summary written: %s\n", summaryOutput)
	} else {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(st.Summary); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}

	if pdfOutput != "" {
		exporter := export.NewExporter(cfg.Export.Scale)
		if err := exporter.ExportFile(ctx, render.BuildSummary(st.Summary), pdfOutput); err != nil {
			return fmt.Errorf("%s: %w", render.ExportErrorTitle, err)
		}
		fmt.Fprintf(os.Stderr, "✓ PDF written: %s\n", pdfOutput)
	}

	return nil
}

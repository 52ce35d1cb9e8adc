package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/ppiankov/clinsum/internal/web"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web front-end",
	Long: `Serve the single-user summarizer page:
- Paste a note and summarize it
- Review the structured summary with emergency flag and codes
- Export the summary as a one-page PDF (clinical-summary.pdf)

Also serves /api/state, /api/summarize, /healthz, /readyz and /metrics.

Example:
  clinsum serve
  clinsum serve --addr 0.0.0.0:8080 --provider openai --model gpt-4o-mini`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default 127.0.0.1:8080)")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := web.NewServer(cfg, newClient(cfg))
	return server.Run(ctx)
}

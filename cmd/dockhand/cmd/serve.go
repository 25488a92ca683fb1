package cmd

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/dockhand/dockhand/internal/history"
	"github.com/dockhand/dockhand/internal/store"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the deployment run history over HTTP",
	Long: `Starts a read-only HTTP API over the run-history store, so the
recorded runs can be inspected from a browser or scripted against.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

		s, err := store.Open(context.Background())
		if err != nil {
			return err
		}
		defer s.Close()

		handler := history.NewHandler(s, logger)

		logger.Info("Starting history server", "addr", serveAddr)
		return http.ListenAndServe(serveAddr, handler.Router())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
}

package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/emotion-stream/internal/config"
	"github.com/kozaktomas/emotion-stream/internal/inference"
	"github.com/kozaktomas/emotion-stream/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Emotion Stream web server.

Endpoints:
  /game-ws                                   single-face JSON results (game mode)
  /ws-client                                 annotated JPEG frames (stream mode)
  /api/v1/emotion_classification/analyze     bulk analysis of one uploaded image
  /api/v1/emotion_classification/predict     whole-image classification
  /api/v1/emotion_classification/detect      face detection only`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
	serveCmd.Flags().Int("workers", 0, "Concurrent inference calls across all sessions (overrides INFERENCE_WORKERS)")
}

// applyServeFlags lets explicitly set flags win over the environment.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("port") {
		cfg.Web.Port = mustGetInt(cmd, "port")
	}
	if cmd.Flags().Changed("host") {
		cfg.Web.Host = mustGetString(cmd, "host")
	}
	if cmd.Flags().Changed("workers") {
		cfg.Inference.Workers = mustGetInt(cmd, "workers")
	}
}

// newFactory wires the sidecar adapters behind one shared inference pool.
func newFactory(cfg *config.Config) *inference.HTTPFactory {
	pool := inference.NewPool(cfg.Inference.Workers)
	client := &http.Client{Timeout: cfg.Inference.RequestTimeout}
	return inference.NewHTTPFactory(cfg.Model, client, pool)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	applyServeFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return err
	}

	fmt.Printf("Detector sidecar:   %s\n", cfg.Model.DetectorURL)
	fmt.Printf("Classifier sidecar: %s (%s on %s)\n", cfg.Model.ClassifierURL, cfg.Model.Name, cfg.Model.Device)
	fmt.Printf("Game mode: batch %d, padding %d | Stream mode: batch %d, padding %d\n",
		cfg.Game.BatchSize, cfg.Game.Padding, cfg.Stream.BatchSize, cfg.Stream.Padding)

	server := web.NewServer(cfg, newFactory(cfg))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Emotion Stream on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}

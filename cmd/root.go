package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "emotion-stream",
	Short: "Real-time facial emotion recognition over WebSocket",
	Long: `Emotion Stream detects faces in live video frames, classifies their emotion
in small micro-batches and streams the result back to the client.

Face detection and emotion classification run on external model sidecars
configured with MODEL_DETECTOR_URL and MODEL_CLASSIFIER_URL.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

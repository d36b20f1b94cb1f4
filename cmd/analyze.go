package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kozaktomas/emotion-stream/internal/config"
	"github.com/kozaktomas/emotion-stream/internal/constants"
	"github.com/kozaktomas/emotion-stream/internal/frame"
	"github.com/kozaktomas/emotion-stream/internal/inference"
	"github.com/kozaktomas/emotion-stream/internal/pipeline"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <image>...",
	Short: "Detect faces in image files and classify their emotions",
	Long: `Run the bulk analysis on local image files and print the results as JSON.
Every detected face is classified on its own; there is no batching across faces.

Examples:
  # Analyze a few photos
  emotion-stream analyze team.jpg selfie.png

  # Classify whole images without face detection
  emotion-stream analyze --predict crops/*.png

  # Use more parallel requests and a larger crop margin
  emotion-stream analyze --concurrency 8 --padding 40 photos/*.jpg`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().Int("concurrency", constants.DefaultConcurrency, "Number of images analyzed in parallel")
	analyzeCmd.Flags().Int("padding", -1, "Crop margin in pixels around each face (-1 = ANALYZE_PADDING)")
	analyzeCmd.Flags().Bool("predict", false, "Classify each whole image instead of detecting faces")
	analyzeCmd.Flags().Bool("quiet", false, "Hide the progress bar")
}

// fileResult is the JSON output for one input file.
type fileResult struct {
	File    string                    `json:"file"`
	Analyze *pipeline.AnalyzeResponse `json:"analyze,omitempty"`
	Predict *pipeline.PredictResponse `json:"predict,omitempty"`
	Error   string                    `json:"error,omitempty"`
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	concurrency := mustGetInt(cmd, "concurrency")
	padding := mustGetInt(cmd, "padding")
	predict := mustGetBool(cmd, "predict")
	quiet := mustGetBool(cmd, "quiet")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if padding < 0 {
		padding = cfg.Analyze.Padding
	}
	factory := newFactory(cfg)

	bar := progressbar.NewOptions(len(args),
		progressbar.OptionSetDescription("Analyzing images"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetVisibility(!quiet),
	)

	results, err := analyzeFiles(cmd.Context(), factory, cfg, args, padding, concurrency, predict, func() { bar.Add(1) })
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("writing results: %w", err)
	}

	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(results))
	}
	return nil
}

// analyzeFiles runs every path through analyzeFile with at most concurrency
// files in flight and calls done after each one. Files not yet started when
// ctx is cancelled are skipped and the context error is returned.
func analyzeFiles(ctx context.Context, factory inference.Factory, cfg *config.Config, paths []string, padding, concurrency int, predict bool, done func()) ([]fileResult, error) {
	results := make([]fileResult, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))

	for i, path := range paths {
		g.Go(func() error {
			defer done()
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = analyzeFile(ctx, factory, cfg, path, padding, predict)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analysis interrupted: %w", err)
	}
	return results, nil
}

// analyzeFile runs one image through its own model pair. Failures are reported
// in the result so one bad file does not stop the rest.
func analyzeFile(ctx context.Context, factory inference.Factory, cfg *config.Config, path string, padding int, predict bool) fileResult {
	res := fileResult{File: filepath.Clean(path)}

	data, err := os.ReadFile(path)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	img, err := frame.DecodeImage(data, cfg.Inference.MaxImageSide)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	models := factory.NewModels()
	if predict {
		res.Predict, err = pipeline.Predict(ctx, models.Classifier, img, cfg.Model.Name)
	} else {
		res.Analyze, err = pipeline.Analyze(ctx, models.Detector, models.Classifier, img, padding, cfg.Model.Name)
	}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

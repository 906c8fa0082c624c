// Package classify implements the command that classifies a single image
// from the command line.
package classify

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lesionscan/lesionscan/internal/classifier"
	"github.com/lesionscan/lesionscan/internal/classifier/tflite"
	"github.com/lesionscan/lesionscan/internal/conf"
	"github.com/lesionscan/lesionscan/internal/imaging"
	"github.com/lesionscan/lesionscan/internal/logger"
)

// GetLogger returns the classify command logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("classify")
}

// Command creates the classify command.
func Command() *cobra.Command {
	var modelPath string

	cmd := &cobra.Command{
		Use:   "classify <image>",
		Short: "Classify a single image file",
		Long:  "Run the lesion model on an image file and print the predicted class and class probabilities.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := conf.GetSettings()
			if modelPath == "" {
				modelPath = settings.Classifier.ModelPath
			}

			predictor, err := tflite.Load(modelPath, settings.Classifier.Threads)
			if err != nil {
				return err
			}
			clf, err := classifier.New(predictor, classifier.WithCacheTTL(0))
			if err != nil {
				_ = predictor.Close()
				return err
			}
			defer closeWithLog(GetLogger(), "classifier", clf.Close)

			normalizer := imaging.Normalizer{MaxPixels: settings.Imaging.MaxPixels}
			return classifyFile(cmd.Context(), cmd.OutOrStdout(), clf, normalizer, args[0])
		},
	}

	cmd.Flags().StringVar(&modelPath, "model", "", "Path to the TensorFlow Lite model (default: classifier.modelpath)")

	return cmd
}

// imageClassifier is the subset of *classifier.Classifier used here.
type imageClassifier interface {
	Classify(ctx context.Context, tensor *imaging.Tensor) (classifier.Result, error)
}

// classifyFile reads path, classifies it and writes a report to w.
func classifyFile(ctx context.Context, w io.Writer, clf imageClassifier, normalizer imaging.Normalizer, path string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading image: %w", err)
	}

	tensor, err := normalizer.Normalize(raw)
	if err != nil {
		return err
	}

	result, err := clf.Classify(ctx, tensor)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Prediction: %s (%s)\n\n", result.Description, result.Code)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tLABEL\tPROBABILITY")
	for i, p := range result.Probabilities {
		label := classifier.LabelFor(i)
		fmt.Fprintf(tw, "%s\t%s\t%.1f%%\n", label.Code, label.Description, p*100)
	}
	return tw.Flush()
}

// closeWithLog runs closeFn and logs a failure instead of dropping it.
func closeWithLog(log logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		log.Warn("failed to close "+name, logger.Error(err))
	}
}

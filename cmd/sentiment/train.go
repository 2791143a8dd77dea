package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/crimson-sun/sentiment/internal/training"
)

func newTrainCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train, evaluate and save a model",
		Long: `Loads the labeled data file, holds out a test fraction, fits the model,
prints Accuracy/AUC/F1 on the held-out part together with example
predictions, and saves the model artifact when --out is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := training.Run(cmd.Context(), a.cfg, a.logger, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			a.logger.Info("training run complete",
				zap.Float64("accuracy", res.Metrics.Accuracy),
				zap.String("artifact", res.ArtifactPath),
				zap.Duration("duration", res.Duration),
			)
			return nil
		},
	}

	f := cmd.Flags()
	f.String("data", "", "labeled data file")
	f.String("label-column", "", `label position: "first" or "last"`)
	f.String("delimiter", "", "field delimiter (default tab)")
	f.Float64("test-fraction", 0, "fraction held out for evaluation (default 0.2)")
	f.Uint64("seed", 0, "split seed (default 1)")
	f.String("out", "", "write the model artifact here")
	a.bind(cmd, "data", "data.path")
	a.bind(cmd, "label-column", "data.label_column")
	a.bind(cmd, "delimiter", "data.delimiter")
	a.bind(cmd, "test-fraction", "training.test_fraction")
	a.bind(cmd, "seed", "training.seed")
	a.bind(cmd, "out", "model.path")
	return cmd
}

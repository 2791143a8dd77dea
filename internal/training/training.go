// Package training runs the offline pipeline: load the labeled file, split
// it, fit the model, evaluate on the held-out part, demonstrate single and
// batch prediction, and optionally save the artifact for serving.
package training

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/crimson-sun/sentiment/internal/config"
	"github.com/crimson-sun/sentiment/internal/dataset"
	"github.com/crimson-sun/sentiment/internal/engine"
	"github.com/crimson-sun/sentiment/internal/engine/classifier"
	"github.com/crimson-sun/sentiment/internal/engine/featurizer"
	"github.com/crimson-sun/sentiment/internal/model"
	"github.com/crimson-sun/sentiment/internal/output"
	"github.com/crimson-sun/sentiment/internal/output/stdout"
)

// Texts used to demonstrate the fitted model.
var (
	SingleDemo = "this was an extremely bad steak"
	BatchDemo  = []string{"This was a horrible meal", "I love this spaghetti."}
)

const rule = "==============="

// Result is what one training run produced.
type Result struct {
	Model        *engine.Model
	Fit          classifier.FitInfo
	Metrics      model.Metrics
	TrainSize    int
	TestSize     int
	Single       model.Prediction
	Batch        []model.Prediction
	ArtifactPath string // empty when no artifact was saved
	Duration     time.Duration
}

// Options derives engine training options from configuration.
func Options(cfg config.TrainingConfig) engine.Options {
	return engine.Options{
		Featurizer: featurizer.Options{MinCount: cfg.MinCount, MaxFeatures: cfg.MaxFeatures},
		Classifier: classifier.Options{L2: cfg.L2, MaxIterations: cfg.MaxIterations},
	}
}

// Run executes the pipeline. The human-readable report goes to report;
// structured progress goes to logger. Every failure aborts the run.
func Run(ctx context.Context, cfg *config.Config, logger *zap.Logger, report io.Writer) (*Result, error) {
	labelCol, err := dataset.ParseLabelColumn(cfg.Data.LabelColumn)
	if err != nil {
		return nil, err
	}
	examples, err := dataset.LoadFile(cfg.Data.Path, dataset.Options{
		Delimiter:   cfg.Data.Delimiter,
		LabelColumn: labelCol,
	})
	if err != nil {
		return nil, errors.Wrap(err, "load dataset")
	}
	logger.Info("dataset loaded", zap.String("path", cfg.Data.Path), zap.Int("records", len(examples)))

	return RunExamples(ctx, examples, cfg, logger, report)
}

// RunExamples is Run on examples already in memory.
func RunExamples(ctx context.Context, examples []model.Example, cfg *config.Config, logger *zap.Logger, report io.Writer) (*Result, error) {
	start := time.Now()

	train, test, err := dataset.Split(examples, cfg.Training.TestFraction, cfg.Training.Seed)
	if err != nil {
		return nil, errors.Wrap(err, "split dataset")
	}
	logger.Info("dataset split",
		zap.Int("train", len(train)),
		zap.Int("test", len(test)),
		zap.Float64("test_fraction", cfg.Training.TestFraction),
		zap.Uint64("seed", cfg.Training.Seed),
	)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fmt.Fprintf(report, "%s Create and Train the Model %s\n", rule, rule)
	logger.Info("training started")
	trainStart := time.Now()
	m, fit, err := engine.Train(train, Options(cfg.Training))
	if err != nil {
		return nil, errors.Wrap(err, "train model")
	}
	logger.Info("training finished",
		zap.Duration("duration", time.Since(trainStart)),
		zap.Int("features", m.Dim()),
		zap.Int("iterations", fit.Iterations),
		zap.Float64("loss", fit.Loss),
		zap.String("status", fit.Status),
	)
	fmt.Fprintf(report, "%s End of training %s\n\n", rule, rule)

	res := &Result{Model: m, Fit: fit, TrainSize: len(train), TestSize: len(test)}

	met, err := m.Evaluate(test)
	if err != nil {
		return nil, errors.Wrap(err, "evaluate model")
	}
	res.Metrics = met
	writeMetrics(report, met)

	demo := stdout.New(report, stdout.Report, true)
	name := cfg.Model.Name

	res.Single = m.Predict(model.Input{Text: SingleDemo})
	fmt.Fprintf(report, "\n%s Prediction Test of model with a single sample and test dataset %s\n\n", rule, rule)
	if err := demo.Write(ctx, output.NewRecord(name, "", res.Single)); err != nil {
		return nil, err
	}
	fmt.Fprintf(report, "%s End of Predictions %s\n\n", rule, rule)

	ins := make([]model.Input, len(BatchDemo))
	for i, t := range BatchDemo {
		ins[i] = model.Input{Text: t}
	}
	res.Batch = m.PredictBatch(ins)
	fmt.Fprintf(report, "%s Prediction Test of loaded model with multiple samples %s\n", rule, rule)
	for _, p := range res.Batch {
		if err := demo.Write(ctx, output.NewRecord(name, "", p)); err != nil {
			return nil, err
		}
	}
	fmt.Fprintf(report, "%s End of predictions %s\n", rule, rule)

	if cfg.Model.Path == "" {
		logger.Warn("no model path configured, artifact not saved; serving will have no model to load")
	} else {
		if err := m.SaveFile(cfg.Model.Path); err != nil {
			return nil, errors.Wrap(err, "save model")
		}
		res.ArtifactPath = cfg.Model.Path
		logger.Info("model saved", zap.String("path", cfg.Model.Path), zap.String("model", name))
	}

	res.Duration = time.Since(start)
	return res, nil
}

func writeMetrics(w io.Writer, m model.Metrics) {
	fmt.Fprintf(w, "%s Evaluating Model accuracy with Test data %s\n\n", rule, rule)
	fmt.Fprintln(w, "Model quality metrics evaluation")
	fmt.Fprintln(w, "--------------------------------")
	fmt.Fprintf(w, "Accuracy: %s\n", percent(m.Accuracy))
	fmt.Fprintf(w, "Auc: %s\n", percent(m.AUC))
	fmt.Fprintf(w, "F1Score: %s\n", percent(m.F1))
	fmt.Fprintf(w, "%s End of model evaluation %s\n", rule, rule)
}

// percent formats a [0,1] ratio with two decimals, e.g. 0.8312 → "83.12%".
func percent(x float64) string {
	return fmt.Sprintf("%.2f%%", x*100)
}

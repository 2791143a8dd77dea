package main

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/crimson-sun/sentiment/internal/client"
	"github.com/crimson-sun/sentiment/internal/output/stdout"
	"github.com/crimson-sun/sentiment/internal/pipeline"
	"github.com/crimson-sun/sentiment/internal/pool"
)

type predictFlags struct {
	input       string
	server      string
	format      string
	includeText bool
}

func newPredictCommand(a *app) *cobra.Command {
	var pf predictFlags
	cmd := &cobra.Command{
		Use:   "predict [text...]",
		Short: "Classify texts with a saved model or a running server",
		Long: `Classifies each argument, or each line of --input ("-" for stdin), and
prints one result per text in input order. With --server the texts are
sent to a running "sentiment serve" instead of a local artifact.`,
		Example: `  sentiment predict --model model.gz "I love this spaghetti."
  sentiment predict --model model.gz --input reviews.txt --format json
  sentiment predict --server http://localhost:8080 "This was a horrible meal"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPredict(cmd, a, pf, args)
		},
	}

	f := cmd.Flags()
	f.String("model", "", "model artifact produced by train")
	f.StringVar(&pf.input, "input", "", `read one text per line from this file ("-" for stdin)`)
	f.StringVar(&pf.server, "server", "", "classify through the server at this base URL")
	f.StringVar(&pf.format, "format", "report", "output format: report, json or pretty")
	f.BoolVar(&pf.includeText, "include-text", true, "include the text in json output")
	a.bind(cmd, "model", "model.path")
	return cmd
}

func runPredict(cmd *cobra.Command, a *app, pf predictFlags, args []string) error {
	if (len(args) == 0) == (pf.input == "") {
		return errors.New("give texts either as arguments or with --input")
	}
	format, err := stdout.ParseFormat(pf.format)
	if err != nil {
		return err
	}

	var pred pipeline.Predictor
	if pf.server != "" {
		pred = client.New(pf.server)
	} else {
		if a.cfg.Model.Path == "" {
			return errors.New("no model artifact: set --model, model.path or --server")
		}
		p, err := pool.New(pool.WithSize(a.cfg.Pool.Size), pool.WithLogger(a.logger))
		if err != nil {
			return err
		}
		defer p.Close()
		if err := p.Register(cmd.Context(), a.cfg.Model.Name, a.cfg.Model.Path); err != nil {
			return errors.Wrap(err, "load model")
		}
		pred = p
	}

	out := stdout.New(cmd.OutOrStdout(), format, pf.includeText)
	pl := pipeline.New(pred, a.cfg.Model.Name, out, pipeline.WithLogger(a.logger))
	defer pl.Close()

	var n int
	if pf.input != "" {
		var r io.Reader = cmd.InOrStdin()
		if pf.input != "-" {
			f, err := os.Open(pf.input)
			if err != nil {
				return errors.Wrap(err, "open input")
			}
			defer f.Close()
			r = f
		}
		n, err = pl.Score(cmd.Context(), r)
	} else {
		n, err = pl.ScoreTexts(cmd.Context(), args)
	}
	a.logger.Debug("predictions written", zap.Int("count", n))
	return err
}

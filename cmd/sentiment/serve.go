package main

import (
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/crimson-sun/sentiment/internal/pool"
	"github.com/crimson-sun/sentiment/internal/server"
	"github.com/crimson-sun/sentiment/internal/server/metrics"
)

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve predictions over HTTP",
		Long: `Loads the model artifact and answers POST /api/predict with "Positive"
or "Negative". The server does not start without a loadable model.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, a)
		},
	}

	f := cmd.Flags()
	f.String("model", "", "model artifact produced by train")
	f.String("addr", "", "listen address (default :8080)")
	f.Int("pool-size", 0, "concurrent predictions (default GOMAXPROCS)")
	f.Bool("watch", false, "reload the model when the artifact file changes")
	f.String("audit-path", "", "append served predictions to this NDJSON file")
	f.String("audit-webhook", "", "POST served predictions in batches to this URL")
	a.bind(cmd, "model", "model.path")
	a.bind(cmd, "addr", "server.addr")
	a.bind(cmd, "pool-size", "pool.size")
	a.bind(cmd, "watch", "pool.watch")
	a.bind(cmd, "audit-path", "audit.path")
	a.bind(cmd, "audit-webhook", "audit.webhook_url")
	return cmd
}

func runServe(cmd *cobra.Command, a *app) error {
	cfg, logger := a.cfg, a.logger
	if cfg.Model.Path == "" {
		return errors.New("no model artifact: set --model or model.path")
	}
	gin.SetMode(cfg.Server.Mode)

	m := metrics.New()
	p, err := pool.New(
		pool.WithSize(cfg.Pool.Size),
		pool.WithWatch(cfg.Pool.Watch),
		pool.WithLogger(logger),
		pool.WithReloadHook(m.ObserveReload),
	)
	if err != nil {
		return err
	}
	defer p.Close()

	ctx := cmd.Context()
	if err := p.Register(ctx, cfg.Model.Name, cfg.Model.Path); err != nil {
		return errors.Wrap(err, "load model")
	}
	logger.Info("model loaded",
		zap.String("model", cfg.Model.Name),
		zap.String("path", cfg.Model.Path),
		zap.Int("pool_size", p.Size()),
	)

	audit, err := server.NewAudit(cfg.Audit, logger)
	if err != nil {
		return errors.Wrap(err, "audit")
	}
	if audit != nil {
		defer func() {
			if err := audit.Close(); err != nil {
				logger.Warn("audit close failed", zap.Error(err))
			}
		}()
	}

	router := server.Setup(server.Deps{
		Predictor:     p,
		ModelName:     cfg.Model.Name,
		MaxTextLength: cfg.Server.MaxTextLength,
		Audit:         audit,
		Metrics:       m,
		Logger:        logger,
	})
	srv := server.New(cfg.Server.Addr, router, cfg.Server.ShutdownTimeout, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx) })
	if cfg.Pool.Watch {
		g.Go(func() error {
			if err := p.Watch(ctx); err != nil && ctx.Err() == nil {
				return errors.Wrap(err, "watch")
			}
			return nil
		})
	}
	return g.Wait()
}

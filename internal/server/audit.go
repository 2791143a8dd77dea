package server

import (
	"go.uber.org/zap"

	"github.com/crimson-sun/sentiment/internal/config"
	"github.com/crimson-sun/sentiment/internal/output"
	"github.com/crimson-sun/sentiment/internal/output/async"
	"github.com/crimson-sun/sentiment/internal/output/file"
	"github.com/crimson-sun/sentiment/internal/output/multi"
	"github.com/crimson-sun/sentiment/internal/output/webhook"
)

// NewAudit builds the audit sink described by cfg, or returns nil when no
// sink is configured. Sinks sit behind an async buffer that drops records
// when full.
func NewAudit(cfg config.AuditConfig, logger *zap.Logger) (output.Output, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var sinks []output.Output
	if cfg.Path != "" {
		f, err := file.New(cfg.Path,
			file.WithMaxSize(cfg.MaxSize),
			file.WithIncludeText(cfg.IncludeText),
		)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, f)
	}
	if cfg.WebhookURL != "" {
		sinks = append(sinks, webhook.New(cfg.WebhookURL,
			webhook.WithToken(cfg.WebhookToken),
			webhook.WithBatchSize(cfg.BatchSize),
			webhook.WithFlushInterval(cfg.FlushInterval),
			webhook.WithIncludeText(cfg.IncludeText),
			webhook.WithLogger(logger),
		))
	}

	var inner output.Output = sinks[0]
	if len(sinks) > 1 {
		inner = multi.New(sinks...)
	}
	logger.Info("audit enabled",
		zap.String("path", cfg.Path),
		zap.Bool("webhook", cfg.WebhookURL != ""),
		zap.Bool("include_text", cfg.IncludeText),
	)
	return async.New(inner,
		async.WithBufferSize(cfg.BufferSize),
		async.WithLogger(logger),
		async.WithDropOnFull(),
	), nil
}

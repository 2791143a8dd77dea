package sentiment

import "go.uber.org/zap"

type options struct {
	modelPath string
	poolSize  int
	logger    *zap.Logger
}

// Option configures a Sentiment instance.
type Option func(*options)

// WithModelPath sets the model artifact to load. Required.
func WithModelPath(path string) Option {
	return func(o *options) {
		o.modelPath = path
	}
}

// WithPoolSize sets how many predictions may run at once.
// Default: GOMAXPROCS.
func WithPoolSize(n int) Option {
	return func(o *options) {
		o.poolSize = n
	}
}

// WithLogger sets the logger. Default: no logging.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func defaultOptions() options {
	return options{logger: zap.NewNop()}
}

package config

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. SENTIMENT_SERVER_ADDR.
const EnvPrefix = "SENTIMENT"

// Config holds all sentiment configuration.
type Config struct {
	Data     DataConfig     `mapstructure:"data"`
	Training TrainingConfig `mapstructure:"training"`
	Model    ModelConfig    `mapstructure:"model"`
	Server   ServerConfig   `mapstructure:"server"`
	Pool     PoolConfig     `mapstructure:"pool"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Log      LogConfig      `mapstructure:"log"`
}

// DataConfig describes the labeled input file.
type DataConfig struct {
	Path        string `mapstructure:"path"`
	Delimiter   string `mapstructure:"delimiter"`
	LabelColumn string `mapstructure:"label_column"` // "first" or "last"
}

// TrainingConfig holds split and solver settings.
type TrainingConfig struct {
	TestFraction  float64 `mapstructure:"test_fraction"`
	Seed          uint64  `mapstructure:"seed"`
	L2            float64 `mapstructure:"l2"`
	MaxIterations int     `mapstructure:"max_iterations"`
	MinCount      int     `mapstructure:"min_count"`
	MaxFeatures   int     `mapstructure:"max_features"`
}

// ModelConfig names the artifact shared by training and serving.
type ModelConfig struct {
	Name string `mapstructure:"name"`
	Path string `mapstructure:"path"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	Mode            string        `mapstructure:"mode"` // gin mode: debug, release, test
	MaxTextLength   int           `mapstructure:"max_text_length"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// PoolConfig controls the prediction engine pool.
type PoolConfig struct {
	Size  int  `mapstructure:"size"`
	Watch bool `mapstructure:"watch"` // reload the artifact when the file changes
}

// AuditConfig controls where served predictions are recorded. Both sinks
// are optional; with neither set nothing is recorded.
type AuditConfig struct {
	Path          string        `mapstructure:"path"`     // NDJSON file
	MaxSize       int64         `mapstructure:"max_size"` // rotation threshold in bytes, 0 = never
	WebhookURL    string        `mapstructure:"webhook_url"`
	WebhookToken  string        `mapstructure:"webhook_token"`
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	BufferSize    int           `mapstructure:"buffer_size"`
	IncludeText   bool          `mapstructure:"include_text"`
}

// Enabled reports whether any audit sink is configured.
func (a AuditConfig) Enabled() bool {
	return a.Path != "" || a.WebhookURL != ""
}

// LogConfig controls logger construction.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
}

var defaults = map[string]any{
	"data.path":               "data/yelp_labelled.txt",
	"data.delimiter":          "\t",
	"data.label_column":       "first",
	"training.test_fraction":  0.2,
	"training.seed":           1,
	"training.l2":             1e-3,
	"training.max_iterations": 200,
	"training.min_count":      1,
	"training.max_features":   100000,
	"model.name":              "SentimentAnalysisModel",
	"model.path":              "",
	"server.addr":             ":8080",
	"server.mode":             "release",
	"server.max_text_length":  10000,
	"server.shutdown_timeout": "15s",
	"pool.size":               0, // 0 = GOMAXPROCS
	"pool.watch":              false,
	"audit.path":              "",
	"audit.max_size":          0,
	"audit.webhook_url":       "",
	"audit.webhook_token":     "",
	"audit.batch_size":        50,
	"audit.flush_interval":    "5s",
	"audit.buffer_size":       1024,
	"audit.include_text":      false,
	"log.level":               "info",
	"log.format":              "json",
}

// New returns a viper instance with defaults and environment binding applied.
// Callers may bind command-line flags onto it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads an optional config file into v and decodes the result.
// An empty path means defaults, environment and bound flags only.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, errors.Wrap(err, "config file")
		}
		ext := strings.TrimPrefix(filepath.Ext(path), ".")
		v.SetConfigFile(path)
		if ext != "" {
			v.SetConfigType(ext)
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "parse config file %s", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	return cfg, nil
}

// Validate reports every invalid setting rather than stopping at the first.
func (c *Config) Validate() []error {
	errs := make([]error, 0)
	if c.Data.Delimiter == "" {
		errs = append(errs, errors.New("data.delimiter must not be empty"))
	}
	switch c.Data.LabelColumn {
	case "first", "last":
	default:
		errs = append(errs, errors.Errorf("data.label_column must be \"first\" or \"last\", got %q", c.Data.LabelColumn))
	}
	if c.Training.TestFraction <= 0 || c.Training.TestFraction >= 1 {
		errs = append(errs, errors.Errorf("training.test_fraction must be in (0,1), got %v", c.Training.TestFraction))
	}
	if c.Training.L2 < 0 {
		errs = append(errs, errors.Errorf("training.l2 must be >= 0, got %v", c.Training.L2))
	}
	if c.Training.MaxIterations <= 0 {
		errs = append(errs, errors.Errorf("training.max_iterations must be > 0, got %d", c.Training.MaxIterations))
	}
	if c.Model.Name == "" {
		errs = append(errs, errors.New("model.name must not be empty"))
	}
	if c.Server.MaxTextLength <= 0 {
		errs = append(errs, errors.Errorf("server.max_text_length must be > 0, got %d", c.Server.MaxTextLength))
	}
	if c.Pool.Size < 0 {
		errs = append(errs, errors.Errorf("pool.size must be >= 0, got %d", c.Pool.Size))
	}
	if c.Audit.MaxSize < 0 {
		errs = append(errs, errors.Errorf("audit.max_size must be >= 0, got %d", c.Audit.MaxSize))
	}
	if c.Audit.WebhookURL != "" {
		if u, err := url.Parse(c.Audit.WebhookURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, errors.Errorf("audit.webhook_url is not an absolute URL: %q", c.Audit.WebhookURL))
		}
		if c.Audit.BatchSize <= 0 {
			errs = append(errs, errors.Errorf("audit.batch_size must be > 0, got %d", c.Audit.BatchSize))
		}
	}
	if c.Audit.Enabled() && c.Audit.BufferSize <= 0 {
		errs = append(errs, errors.Errorf("audit.buffer_size must be > 0, got %d", c.Audit.BufferSize))
	}
	return errs
}

// Package config loads chatfang settings from defaults, an optional YAML
// file, a .env file and CHATFANG_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/chatfang/pkg/report"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "CHATFANG"

// Sentinel validation errors.
var (
	ErrMissingSource      = errors.New("config: source_dir is required")
	ErrInvalidWorkers     = errors.New("config: engine.workers must not be negative")
	ErrInvalidFormat      = errors.New("config: unknown report format")
	ErrInvalidTopWords    = errors.New("config: top word counts must be positive")
	ErrInvalidConcurrency = errors.New("config: attachments.concurrency must be positive")
	ErrInvalidRate        = errors.New("config: attachments.rate_per_second must not be negative")
	ErrInvalidMaxSize     = errors.New("config: attachments.max_size is not a valid size")
	ErrInvalidLogFormat   = errors.New("config: logging.format must be text or json")
)

// Config holds every setting of a run.
type Config struct {
	SourceDir     string              `mapstructure:"source_dir"`
	ExportDir     string              `mapstructure:"export_dir"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Report        ReportConfig        `mapstructure:"report"`
	Attachments   AttachmentsConfig   `mapstructure:"attachments"`
	Engine        EngineConfig        `mapstructure:"engine"`
}

// EngineConfig configures the aggregation engine.
type EngineConfig struct {
	// Workers is the shard count; 0 means one per CPU.
	Workers int `mapstructure:"workers"`
}

// ReportConfig configures the exporters.
type ReportConfig struct {
	Formats        []string `mapstructure:"formats"`
	TopWords       int      `mapstructure:"top_words"`
	ServerTopWords int      `mapstructure:"server_top_words"`
	Anonymize      bool     `mapstructure:"anonymize"`
}

// AttachmentsConfig configures the attachment downloader.
type AttachmentsConfig struct {
	Dir           string        `mapstructure:"dir"`
	MaxSize       string        `mapstructure:"max_size"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Concurrency   int           `mapstructure:"concurrency"`
	Enabled       bool          `mapstructure:"enabled"`
}

// MaxSizeBytes parses MaxSize ("25MB", "1GiB"). An empty value means no cap.
func (a AttachmentsConfig) MaxSizeBytes() (uint64, error) {
	if strings.TrimSpace(a.MaxSize) == "" {
		return 0, nil
	}

	n, err := humanize.ParseBytes(a.MaxSize)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidMaxSize, a.MaxSize, err)
	}

	return n, nil
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ObservabilityConfig configures tracing and metrics export.
type ObservabilityConfig struct {
	OTLPEndpoint    string `mapstructure:"otlp_endpoint"`
	OTLPHeaders     string `mapstructure:"otlp_headers"`
	MetricsTextfile string `mapstructure:"metrics_textfile"`
	Environment     string `mapstructure:"environment"`
	OTLPInsecure    bool   `mapstructure:"otlp_insecure"`
}

// New returns a viper instance with defaults and environment binding set,
// ready for flags to be bound before Load.
func New() *viper.Viper {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source_dir", "")
	v.SetDefault("export_dir", "")

	v.SetDefault("engine.workers", 0)

	v.SetDefault("report.formats", report.FormatNames(report.DefaultFormats))
	v.SetDefault("report.top_words", report.DefaultTopWords)
	v.SetDefault("report.server_top_words", report.DefaultServerTopWords)
	v.SetDefault("report.anonymize", false)

	v.SetDefault("attachments.enabled", false)
	v.SetDefault("attachments.dir", "attachments")
	v.SetDefault("attachments.concurrency", 4)
	v.SetDefault("attachments.rate_per_second", 5.0)
	v.SetDefault("attachments.timeout", "30s")
	v.SetDefault("attachments.max_size", "25MB")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("observability.otlp_endpoint", "")
	v.SetDefault("observability.otlp_headers", "")
	v.SetDefault("observability.otlp_insecure", false)
	v.SetDefault("observability.metrics_textfile", "")
	v.SetDefault("observability.environment", "")
}

// LoadDotEnv loads path into the process environment without overriding
// variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}

	return nil
}

// Load reads the optional config file into v and returns the validated
// configuration. With configPath empty, chatfang.yaml is searched in the
// working directory, ./config and $HOME/.config/chatfang; not finding one is
// fine. An explicit path must exist.
func Load(v *viper.Viper, configPath string) (*Config, error) {
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("chatfang")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")

		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "chatfang"))
		}
	}

	readErr := v.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("read config file: %w", readErr)
		}
	}

	var cfg Config

	err := v.Unmarshal(&cfg)
	if err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.resolve()

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// resolve fills the settings that default relative to others.
func (c *Config) resolve() {
	if c.ExportDir == "" {
		c.ExportDir = c.SourceDir
	}

	if c.Attachments.Dir != "" && !filepath.IsAbs(c.Attachments.Dir) {
		c.Attachments.Dir = filepath.Join(c.ExportDir, c.Attachments.Dir)
	}

	for i, f := range c.Report.Formats {
		c.Report.Formats[i] = strings.ToLower(strings.TrimSpace(f))
	}
}

// Validate checks every setting and reports the first violation.
func (c *Config) Validate() error {
	if c.SourceDir == "" {
		return ErrMissingSource
	}

	if c.Engine.Workers < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Engine.Workers)
	}

	_, err := report.ParseFormats(c.Report.Formats)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}

	if c.Report.TopWords <= 0 || c.Report.ServerTopWords <= 0 {
		return fmt.Errorf("%w: top_words=%d server_top_words=%d",
			ErrInvalidTopWords, c.Report.TopWords, c.Report.ServerTopWords)
	}

	if c.Attachments.Concurrency <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidConcurrency, c.Attachments.Concurrency)
	}

	if c.Attachments.RatePerSecond < 0 {
		return fmt.Errorf("%w: %g", ErrInvalidRate, c.Attachments.RatePerSecond)
	}

	_, err = c.Attachments.MaxSizeBytes()
	if err != nil {
		return err
	}

	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Logging.Format)
	}

	return nil
}

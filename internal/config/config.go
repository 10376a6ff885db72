package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/KaramelBytes/surveylens/internal/utils"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	// Data source: a published CSV export URL, or a local file for offline use.
	SourceURL  string `mapstructure:"source_url" yaml:"source_url"`
	SourceFile string `mapstructure:"source_file" yaml:"source_file"`
	TTLSeconds int    `mapstructure:"ttl_seconds" yaml:"ttl_seconds"`

	// Survey layout
	IdentifierColumn  string   `mapstructure:"identifier_column" yaml:"identifier_column"`
	ClassifierColumn  string   `mapstructure:"classifier_column" yaml:"classifier_column"`
	ScaleQuestions    []string `mapstructure:"scale_questions" yaml:"scale_questions"`
	CategoryQuestions []string `mapstructure:"category_questions" yaml:"category_questions"`
	ScaleMax          int      `mapstructure:"scale_max" yaml:"scale_max"`
	HistogramMaxBins  int      `mapstructure:"histogram_max_bins" yaml:"histogram_max_bins"`

	// Export parsing. Sheet only applies to XLSX workbooks.
	CSVDelimiter     string `mapstructure:"csv_delimiter" yaml:"csv_delimiter"`
	DecimalSeparator string `mapstructure:"decimal_separator" yaml:"decimal_separator"`
	Sheet            string `mapstructure:"sheet" yaml:"sheet"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	// Web dashboard
	ListenAddr         string   `mapstructure:"listen_addr" yaml:"listen_addr"`
	AllowedOrigins     []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	RateLimitPerMinute int      `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`
	RawViewEnabled     bool     `mapstructure:"raw_view_enabled" yaml:"raw_view_enabled"`
	Title              string   `mapstructure:"title" yaml:"title"`

	// Logging
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
	LogFile  string `mapstructure:"log_file" yaml:"log_file"`
}

// Defaults mirror the sleep survey the dashboard was first built for.
var (
	defaultScaleQuestions = []string{
		"A quel point ton sommeil est-il réparateur ?",
		"Quelle est la qualité de ton sommeil ?",
	}
	defaultCategoryQuestions = []string{
		"As tu des écrans dans ta chambre (smartphone compris) ?",
		"Scénario – \"22 h 30\"",
		"Regardes-tu ton téléphone dès le réveil ?",
	}
)

func setDefaults(v *viper.Viper) {
	// every key needs a default for AutomaticEnv to reach it through Unmarshal
	v.SetDefault("source_url", "")
	v.SetDefault("source_file", "")
	v.SetDefault("ttl_seconds", 300)
	v.SetDefault("identifier_column", "Choisis ton code secret")
	v.SetDefault("classifier_column", "Tu es :")
	v.SetDefault("scale_questions", defaultScaleQuestions)
	v.SetDefault("category_questions", defaultCategoryQuestions)
	v.SetDefault("scale_max", 10)
	v.SetDefault("histogram_max_bins", 10)
	v.SetDefault("csv_delimiter", ",")
	v.SetDefault("decimal_separator", ".")
	v.SetDefault("sheet", "")
	// HTTP/retry defaults
	v.SetDefault("http_timeout_sec", 30)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	// Web defaults
	v.SetDefault("listen_addr", ":8501")
	v.SetDefault("allowed_origins", []string{})
	v.SetDefault("rate_limit_per_minute", 60)
	v.SetDefault("raw_view_enabled", true)
	v.SetDefault("title", "Your sleep, compared")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
}

// DefaultPath returns ~/.surveylens/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".surveylens", "config.yaml"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.surveylens/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := utils.SafeWriteFile(path, b); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (applied by the caller) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("SURVEYLENS")
	v.AutomaticEnv()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(filepath.Dir(p))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		// a missing file is fine; a broken one is not
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}

// ValidationError lists every problem found by Validate.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid config: " + strings.Join(e.Problems, "; ")
}

// Validate checks the settings the dashboard cannot run without.
func (c *Global) Validate() error {
	var p []string
	if c.SourceURL == "" && c.SourceFile == "" {
		p = append(p, "source_url or source_file is required")
	}
	if strings.TrimSpace(c.IdentifierColumn) == "" {
		p = append(p, "identifier_column is required")
	}
	if strings.TrimSpace(c.ClassifierColumn) == "" {
		p = append(p, "classifier_column is required")
	}
	if c.TTLSeconds <= 0 {
		p = append(p, "ttl_seconds must be positive")
	}
	if c.ScaleMax <= 0 {
		p = append(p, "scale_max must be positive")
	}
	if c.HistogramMaxBins <= 0 {
		p = append(p, "histogram_max_bins must be positive")
	}
	if c.CSVDelimiter != "" && utf8.RuneCountInString(c.CSVDelimiter) != 1 {
		p = append(p, "csv_delimiter must be a single character")
	}
	if c.DecimalSeparator != "" && c.DecimalSeparator != "." && c.DecimalSeparator != "," {
		p = append(p, "decimal_separator must be '.' or ','")
	}
	if c.RateLimitPerMinute < 0 {
		p = append(p, "rate_limit_per_minute cannot be negative")
	}
	if len(p) > 0 {
		return &ValidationError{Problems: p}
	}
	return nil
}

// TTL returns the cache lifetime of a loaded dataset.
func (c *Global) TTL() time.Duration { return time.Duration(c.TTLSeconds) * time.Second }

// HTTPTimeout returns the per-request timeout of the CSV fetch.
func (c *Global) HTTPTimeout() time.Duration { return time.Duration(c.HTTPTimeoutSec) * time.Second }

// Delimiter returns the CSV field separator, defaulting to ','.
func (c *Global) Delimiter() rune {
	r, _ := utf8.DecodeRuneInString(c.CSVDelimiter)
	if r == utf8.RuneError {
		return ','
	}
	return r
}

// Decimal returns the decimal separator, defaulting to '.'.
func (c *Global) Decimal() rune {
	if c.DecimalSeparator == "," {
		return ','
	}
	return '.'
}

// Questions returns every configured question in display order: scale first.
func (c *Global) Questions() []string {
	out := make([]string, 0, len(c.ScaleQuestions)+len(c.CategoryQuestions))
	out = append(out, c.ScaleQuestions...)
	return append(out, c.CategoryQuestions...)
}

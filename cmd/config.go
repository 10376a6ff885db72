package cmd

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	cfgpkg "github.com/KaramelBytes/surveylens/internal/config"
	"github.com/KaramelBytes/surveylens/internal/utils"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set SurveyLens configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if cfg == nil {
			fmt.Fprintln(out, "No config loaded")
			return nil
		}
		if cfg.SourceURL != "" {
			fmt.Fprintf(out, "source_url: %s\n", utils.Truncate(cfg.SourceURL, 80))
		}
		if cfg.SourceFile != "" {
			fmt.Fprintf(out, "source_file: %s\n", cfg.SourceFile)
		}
		fmt.Fprintf(out, "ttl_seconds: %d\n", cfg.TTLSeconds)
		fmt.Fprintf(out, "identifier_column: %s\n", cfg.IdentifierColumn)
		fmt.Fprintf(out, "classifier_column: %s\n", cfg.ClassifierColumn)
		fmt.Fprintf(out, "scale_questions: %s\n", strings.Join(cfg.ScaleQuestions, listSep))
		fmt.Fprintf(out, "category_questions: %s\n", strings.Join(cfg.CategoryQuestions, listSep))
		fmt.Fprintf(out, "scale_max: %d\n", cfg.ScaleMax)
		fmt.Fprintf(out, "histogram_max_bins: %d\n", cfg.HistogramMaxBins)
		fmt.Fprintf(out, "csv_delimiter: %q\n", cfg.CSVDelimiter)
		fmt.Fprintf(out, "decimal_separator: %q\n", cfg.DecimalSeparator)
		if cfg.Sheet != "" {
			fmt.Fprintf(out, "sheet: %s\n", cfg.Sheet)
		}
		fmt.Fprintf(out, "http_timeout_sec: %d\n", cfg.HTTPTimeoutSec)
		fmt.Fprintf(out, "retry_max_attempts: %d\n", cfg.RetryMaxAttempts)
		fmt.Fprintf(out, "retry_base_delay_ms: %d\n", cfg.RetryBaseDelayMs)
		fmt.Fprintf(out, "retry_max_delay_ms: %d\n", cfg.RetryMaxDelayMs)
		fmt.Fprintf(out, "listen_addr: %s\n", cfg.ListenAddr)
		if len(cfg.AllowedOrigins) > 0 {
			fmt.Fprintf(out, "allowed_origins: %s\n", strings.Join(cfg.AllowedOrigins, ","))
		}
		fmt.Fprintf(out, "rate_limit_per_minute: %d\n", cfg.RateLimitPerMinute)
		fmt.Fprintf(out, "raw_view_enabled: %t\n", cfg.RawViewEnabled)
		fmt.Fprintf(out, "title: %s\n", cfg.Title)
		fmt.Fprintf(out, "log_level: %s\n", cfg.LogLevel)
		if cfg.LogFile != "" {
			fmt.Fprintf(out, "log_file: %s\n", cfg.LogFile)
		}
		return nil
	},
}

// listSep separates questions in `config set` values; question texts often contain commas.
const listSep = ";"

type setter func(c *cfgpkg.Global, val string) error

func intSetter(key string, dst func(c *cfgpkg.Global) *int, min int) setter {
	return func(c *cfgpkg.Global, val string) error {
		i, err := strconv.Atoi(val)
		if err != nil || i < min {
			return fmt.Errorf("invalid int for %s: %v (minimum %d)", key, val, min)
		}
		*dst(c) = i
		return nil
	}
}

func stringSetter(dst func(c *cfgpkg.Global) *string) setter {
	return func(c *cfgpkg.Global, val string) error {
		*dst(c) = val
		return nil
	}
}

func listSetter(dst func(c *cfgpkg.Global) *[]string, sep string) setter {
	return func(c *cfgpkg.Global, val string) error {
		var items []string
		for _, s := range strings.Split(val, sep) {
			if s = strings.TrimSpace(s); s != "" {
				items = append(items, s)
			}
		}
		*dst(c) = items
		return nil
	}
}

var configSetters = map[string]setter{
	"source_url":            stringSetter(func(c *cfgpkg.Global) *string { return &c.SourceURL }),
	"source_file":           stringSetter(func(c *cfgpkg.Global) *string { return &c.SourceFile }),
	"ttl_seconds":           intSetter("ttl_seconds", func(c *cfgpkg.Global) *int { return &c.TTLSeconds }, 1),
	"identifier_column":     stringSetter(func(c *cfgpkg.Global) *string { return &c.IdentifierColumn }),
	"classifier_column":     stringSetter(func(c *cfgpkg.Global) *string { return &c.ClassifierColumn }),
	"scale_questions":       listSetter(func(c *cfgpkg.Global) *[]string { return &c.ScaleQuestions }, listSep),
	"category_questions":    listSetter(func(c *cfgpkg.Global) *[]string { return &c.CategoryQuestions }, listSep),
	"scale_max":             intSetter("scale_max", func(c *cfgpkg.Global) *int { return &c.ScaleMax }, 1),
	"histogram_max_bins":    intSetter("histogram_max_bins", func(c *cfgpkg.Global) *int { return &c.HistogramMaxBins }, 1),
	"http_timeout_sec":      intSetter("http_timeout_sec", func(c *cfgpkg.Global) *int { return &c.HTTPTimeoutSec }, 1),
	"retry_max_attempts":    intSetter("retry_max_attempts", func(c *cfgpkg.Global) *int { return &c.RetryMaxAttempts }, 1),
	"retry_base_delay_ms":   intSetter("retry_base_delay_ms", func(c *cfgpkg.Global) *int { return &c.RetryBaseDelayMs }, 0),
	"retry_max_delay_ms":    intSetter("retry_max_delay_ms", func(c *cfgpkg.Global) *int { return &c.RetryMaxDelayMs }, 0),
	"listen_addr":           stringSetter(func(c *cfgpkg.Global) *string { return &c.ListenAddr }),
	"allowed_origins":       listSetter(func(c *cfgpkg.Global) *[]string { return &c.AllowedOrigins }, ","),
	"rate_limit_per_minute": intSetter("rate_limit_per_minute", func(c *cfgpkg.Global) *int { return &c.RateLimitPerMinute }, 0),
	"title":                 stringSetter(func(c *cfgpkg.Global) *string { return &c.Title }),
	"log_file":              stringSetter(func(c *cfgpkg.Global) *string { return &c.LogFile }),
	"sheet":                 stringSetter(func(c *cfgpkg.Global) *string { return &c.Sheet }),
	"csv_delimiter": func(c *cfgpkg.Global, val string) error {
		if val == `\t` || val == "tab" {
			val = "\t"
		}
		if len([]rune(val)) != 1 {
			return fmt.Errorf("invalid csv_delimiter: %q (use a single character)", val)
		}
		c.CSVDelimiter = val
		return nil
	},
	"decimal_separator": func(c *cfgpkg.Global, val string) error {
		if val != "." && val != "," {
			return fmt.Errorf("invalid decimal_separator: %q (use . or ,)", val)
		}
		c.DecimalSeparator = val
		return nil
	},
	"raw_view_enabled": func(c *cfgpkg.Global, val string) error {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid bool for raw_view_enabled: %v", val)
		}
		c.RawViewEnabled = b
		return nil
	},
	"log_level": func(c *cfgpkg.Global, val string) error {
		switch strings.ToLower(val) {
		case "debug", "info", "warn", "error":
			c.LogLevel = strings.ToLower(val)
			return nil
		default:
			return fmt.Errorf("invalid log_level: %s (use debug, info, warn or error)", val)
		}
	},
}

func configKeys() []string {
	keys := make([]string, 0, len(configSetters))
	for k := range configSetters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Long: "Set a config value and save to disk. Question lists are separated by '" + listSep +
		"', allowed_origins by ','.",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		set, ok := configSetters[key]
		if !ok {
			return fmt.Errorf("unknown key: %s (known: %s)", key, strings.Join(configKeys(), ", "))
		}
		if err := set(cfg, val); err != nil {
			return err
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

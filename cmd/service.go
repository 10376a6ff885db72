package cmd

import (
	"fmt"
	"time"

	cfgpkg "github.com/KaramelBytes/surveylens/internal/config"
	"github.com/KaramelBytes/surveylens/internal/dashboard"
	"github.com/KaramelBytes/surveylens/internal/loader"
	"github.com/KaramelBytes/surveylens/internal/metrics"
	"github.com/KaramelBytes/surveylens/internal/report"
	"github.com/KaramelBytes/surveylens/internal/web"
)

// sourceFor picks the data source: an explicit file wins, then source_file,
// then source_url.
func sourceFor(c *cfgpkg.Global, file string) (loader.Source, error) {
	switch {
	case file != "":
		return loader.FileSource{Path: file}, nil
	case c.SourceFile != "":
		return loader.FileSource{Path: c.SourceFile}, nil
	case c.SourceURL != "":
		return loader.NewHTTPSourceWithRetry(
			c.SourceURL,
			c.HTTPTimeout(),
			c.RetryMaxAttempts,
			time.Duration(c.RetryBaseDelayMs)*time.Millisecond,
			time.Duration(c.RetryMaxDelayMs)*time.Millisecond,
		), nil
	default:
		return nil, fmt.Errorf("no data source configured: set source_url or source_file, or pass --source")
	}
}

func layoutFor(c *cfgpkg.Global) report.Layout {
	return report.Layout{
		IdentifierColumn:  c.IdentifierColumn,
		ClassifierColumn:  c.ClassifierColumn,
		ScaleQuestions:    append([]string(nil), c.ScaleQuestions...),
		CategoryQuestions: append([]string(nil), c.CategoryQuestions...),
		ScaleMax:          c.ScaleMax,
		HistogramMaxBins:  c.HistogramMaxBins,
	}
}

func webOptions(c *cfgpkg.Global) web.Options {
	return web.Options{
		Title:              c.Title,
		RawViewEnabled:     c.RawViewEnabled,
		AllowedOrigins:     c.AllowedOrigins,
		RateLimitPerMinute: c.RateLimitPerMinute,
	}
}

// newService validates c and builds the cached dashboard service over its source.
// m may be nil.
func newService(c *cfgpkg.Global, file string, m *metrics.Metrics) (*dashboard.Service, error) {
	if file != "" {
		cc := *c
		cc.SourceURL, cc.SourceFile = "", file
		c = &cc
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	src, err := sourceFor(c, file)
	if err != nil {
		return nil, err
	}
	l := loader.New(src)
	l.Options.Delimiter = c.Delimiter()
	l.Options.DecimalSeparator = c.Decimal()
	l.Options.Sheet = c.Sheet
	l.Log = logger
	return dashboard.New(l, layoutFor(c), dashboard.Options{
		TTL:     c.TTL(),
		Log:     logger,
		Metrics: m,
	}), nil
}

// Package loader fetches the survey export and turns it into a dataset.Table.
package loader

import (
	"context"
	"fmt"
	"time"

	"github.com/KaramelBytes/surveylens/internal/dataset"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Loader reads a Source and parses it as CSV or XLSX.
type Loader struct {
	Source  Source
	Options dataset.Options
	Log     *zap.Logger
	// Now stamps LoadedAt; defaults to time.Now.
	Now func() time.Time
}

// New returns a loader with default CSV options and a no-op logger.
func New(src Source) *Loader {
	return &Loader{Source: src, Options: dataset.DefaultOptions(), Log: zap.NewNop()}
}

// Load fetches and parses the export. On any failure, including an export
// without data rows, it returns an empty table and a *LoadError; it never
// returns a nil table.
func (l *Loader) Load(ctx context.Context) (*dataset.Table, error) {
	log := l.Log
	if log == nil {
		log = zap.NewNop()
	}
	if l.Source == nil {
		return dataset.Empty(), &LoadError{Err: fmt.Errorf("no source configured")}
	}
	name := l.Source.Name()
	start := time.Now()
	raw, err := l.Source.Fetch(ctx)
	if err != nil {
		log.Warn("dataset fetch failed", zap.String("source", name), zap.Error(err))
		return dataset.Empty(), &LoadError{Source: name, Err: err}
	}
	t, err := dataset.Read(raw, l.Options)
	if err != nil {
		log.Warn("dataset parse failed", zap.String("source", name), zap.Error(err))
		return dataset.Empty(), &LoadError{Source: name, Err: fmt.Errorf("parse export: %w", err)}
	}
	if t.IsEmpty() {
		// an empty or header-only export cannot answer any lookup
		log.Warn("dataset is empty", zap.String("source", name), zap.Int("bytes", len(raw)))
		return dataset.Empty(), &LoadError{Source: name, Err: ErrNoResponses}
	}
	now := time.Now
	if l.Now != nil {
		now = l.Now
	}
	t.ID = uuid.NewString()
	t.LoadedAt = now()
	log.Info("dataset loaded",
		zap.String("source", name),
		zap.String("snapshot", t.ID),
		zap.Int("rows", t.Len()),
		zap.Int("columns", len(t.Columns())),
		zap.Int("bytes", len(raw)),
		zap.Duration("took", time.Since(start)),
	)
	return t, nil
}

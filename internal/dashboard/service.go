// Package dashboard ties the cached dataset to report building. Both the web
// handlers and the CLI go through a Service.
package dashboard

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/KaramelBytes/surveylens/internal/cache"
	"github.com/KaramelBytes/surveylens/internal/dataset"
	"github.com/KaramelBytes/surveylens/internal/loader"
	"github.com/KaramelBytes/surveylens/internal/logging"
	"github.com/KaramelBytes/surveylens/internal/metrics"
	"github.com/KaramelBytes/surveylens/internal/report"
	"github.com/KaramelBytes/surveylens/internal/survey"
	"go.uber.org/zap"
)

// Loader produces a fresh table. *loader.Loader satisfies it.
type Loader interface {
	Load(ctx context.Context) (*dataset.Table, error)
}

// Options configures a Service. Zero values are usable.
type Options struct {
	TTL     time.Duration
	Clock   cache.Clock
	Log     *zap.Logger
	Metrics *metrics.Metrics
}

// Service serves reports from a TTL-cached dataset.
type Service struct {
	data    *cache.TTL[*dataset.Table]
	layout  atomic.Pointer[report.Layout]
	log     *zap.Logger
	metrics *metrics.Metrics
}

// New builds a Service around src. The first load happens on first use.
func New(src Loader, layout report.Layout, opt Options) *Service {
	s := &Service{log: opt.Log, metrics: opt.Metrics}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	ttl := opt.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	s.data = cache.NewTTL(ttl, func(ctx context.Context) (*dataset.Table, error) {
		t, err := src.Load(ctx)
		if err == nil && t.IsEmpty() {
			t, err = dataset.Empty(), &loader.LoadError{Err: loader.ErrNoResponses}
		}
		if s.metrics != nil {
			s.metrics.Load(t.Len(), err)
		}
		return t, err
	}, opt.Clock)
	if s.metrics != nil {
		s.metrics.ObserveCache(s.data.Stats)
	}
	s.SetLayout(layout)
	return s
}

// SetLayout swaps the question layout; in-flight requests keep the old one.
func (s *Service) SetLayout(l report.Layout) {
	l.ScaleQuestions = append([]string(nil), l.ScaleQuestions...)
	l.CategoryQuestions = append([]string(nil), l.CategoryQuestions...)
	s.layout.Store(&l)
}

// Layout returns the current layout.
func (s *Service) Layout() report.Layout { return *s.layout.Load() }

// Table returns the cached dataset, loading it when stale. On failure the
// table is empty and err matches loader.ErrLoadFailure. A load without data
// rows counts as a failure and is not cached.
func (s *Service) Table(ctx context.Context) (*dataset.Table, error) {
	t, err := s.data.Get(ctx)
	if t == nil {
		t = dataset.Empty()
	}
	return t, err
}

// Refresh drops the cached dataset so the next request reloads it.
func (s *Service) Refresh() {
	s.data.Invalidate()
	s.log.Info("dataset cache invalidated")
}

// CacheStats reports cache counters.
func (s *Service) CacheStats() cache.Stats { return s.data.Stats() }

// Lookup builds the report for the respondent whose code is key. A load
// failure is returned before any lookup is attempted.
func (s *Service) Lookup(ctx context.Context, key string) (*report.Report, error) {
	t, err := s.Table(ctx)
	if err != nil {
		s.recordLookup("load_failure")
		return nil, err
	}
	b := report.Builder{Layout: s.Layout()}
	r, err := b.Build(t, key)
	switch {
	case err == nil:
		s.recordLookup("found")
		s.log.Debug("respondent resolved", logging.Code(key), zap.Int("row", r.RowIndex), zap.String("snapshot", t.ID))
	case errors.Is(err, survey.ErrEmptyKey):
		s.recordLookup("empty")
	case errors.Is(err, survey.ErrNotFound):
		s.recordLookup("not_found")
		s.log.Info("respondent not found", logging.Code(key), zap.String("snapshot", t.ID))
	default:
		s.recordLookup("error")
		s.log.Error("lookup failed", logging.Code(key), zap.Error(err))
	}
	return r, err
}

func (s *Service) recordLookup(outcome string) {
	if s.metrics != nil {
		s.metrics.Lookup(outcome)
	}
}

// Summary is the population view that needs no secret code.
type Summary struct {
	SnapshotID string                  `json:"snapshot_id"`
	LoadedAt   time.Time               `json:"loaded_at"`
	ExpiresAt  time.Time               `json:"expires_at"`
	Overview   survey.Overview         `json:"overview"`
	Columns    []dataset.ColumnProfile `json:"columns"`
}

// Summary returns global statistics and column profiles. The identifier
// column is never profiled.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	t, err := s.Table(ctx)
	if err != nil {
		return nil, err
	}
	l := s.Layout()
	ov, err := survey.OverviewOf(t, l.ClassifierColumn, l.QuestionCount())
	if err != nil {
		return nil, err
	}
	exp, _ := s.data.ExpiresAt()
	return &Summary{
		SnapshotID: t.ID,
		LoadedAt:   t.LoadedAt,
		ExpiresAt:  exp,
		Overview:   ov,
		Columns:    dataset.Profile(t.Without(l.IdentifierColumn)),
	}, nil
}

// Anonymized returns the dataset without the identifier column.
func (s *Service) Anonymized(ctx context.Context) (*dataset.Table, error) {
	t, err := s.Table(ctx)
	if err != nil {
		return t, err
	}
	return t.Without(s.Layout().IdentifierColumn), nil
}

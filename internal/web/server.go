// Package web serves the dashboard page and its JSON API.
package web

import (
	"net/http"
	"time"

	"github.com/KaramelBytes/surveylens/internal/dashboard"
	"github.com/KaramelBytes/surveylens/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Options are the presentation settings taken from config.
type Options struct {
	Title              string
	RawViewEnabled     bool
	AllowedOrigins     []string
	RateLimitPerMinute int
}

// Server holds the handlers' dependencies.
type Server struct {
	svc     *dashboard.Service
	log     *zap.Logger
	metrics *metrics.Metrics
	opt     Options
	limiter *RateLimiter
}

// NewServer wires a Server. m may be nil, in which case /metrics is not mounted.
func NewServer(svc *dashboard.Service, log *zap.Logger, m *metrics.Metrics, opt Options) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if opt.Title == "" {
		opt.Title = "Survey results"
	}
	return &Server{
		svc:     svc,
		log:     log,
		metrics: m,
		opt:     opt,
		limiter: NewRateLimiter(opt.RateLimitPerMinute),
	}
}

// Router builds the chi router with middleware and every route.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(s.limiter.Middleware)
		r.Get("/", s.handlePage)
		r.Post("/", s.handlePage)
	})

	r.Route("/api", func(r chi.Router) {
		// cors treats an empty origin list as "allow all"; keep the API same-origin instead
		if len(s.opt.AllowedOrigins) > 0 {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins: s.opt.AllowedOrigins,
				AllowedMethods: []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
				ExposedHeaders: []string{"X-Request-Id"},
				MaxAge:         300,
			}))
		}
		r.With(s.limiter.Middleware).Post("/lookup", s.handleLookup)
		r.Get("/summary", s.handleSummary)
		r.Get("/data", s.handleData)
	})
	return r
}

// accessLog logs one line per request. The query string is left out because
// it can carry a secret code.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			s.log.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("remote", r.RemoteAddr),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("OK"))
}

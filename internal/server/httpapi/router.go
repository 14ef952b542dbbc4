// Package httpapi serves the REST mirror of the Timekeeper API together with health and metrics endpoints.
package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/and161185/timekeeper/internal/service"
)

// Pinger reports backing store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of the HTTP API.
type Deps struct {
	Projects service.ProjectService
	Sessions service.SessionService
	Settings service.SettingService
	// Auth enables bearer authentication on /api when set.
	Auth Authenticator
	// DB is checked by /health when set.
	DB       Pinger
	Registry *prometheus.Registry
	Log      *zap.Logger
}

// New builds the router.
func New(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Registry == nil {
		d.Registry = prometheus.NewRegistry()
	}
	h := &handler{projects: d.Projects, sessions: d.Sessions, settings: d.Settings, log: d.Log}
	m := newMetrics(d.Registry)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLog(d.Log))
	r.Use(m.middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if d.DB != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := d.DB.Ping(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		if d.Auth != nil {
			r.Use(bearerAuth(d.Auth))
		}

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", h.listProjects)
			r.Post("/", h.createProject)
			r.Get("/{id}", h.getProject)
			r.Put("/{id}", h.updateProject)
			r.Delete("/{id}", h.deleteProject)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", h.listSessions)
			r.Post("/", h.createSession)
			r.Get("/active", h.listActive)
			r.Post("/active", h.upsertActive)
			r.Post("/active/{id}/complete", h.completeActive)
			r.Get("/project/{projectId}", h.listByProject)
			r.Get("/{id}", h.getSession)
			r.Put("/{id}", h.updateSession)
			r.Delete("/{id}", h.deleteSession)
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", h.getSettings)
			r.Get("/{key}", h.getSetting)
			r.Put("/{key}", h.putSetting)
		})
	})
	return r
}

type metrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "timekeeper",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Handled HTTP requests by route pattern, method and status.",
		}, []string{"route", "method", "status"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "timekeeper",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP handling latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

func (m *metrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.latency.WithLabelValues(route).Observe(time.Since(start).Seconds())
		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
	})
}

func requestLog(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("http",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("dur", time.Since(start)),
				zap.String("request_id", chimiddleware.GetReqID(r.Context())),
			)
		})
	}
}

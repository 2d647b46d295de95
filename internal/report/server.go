// Package report serves the latest probe results as an HTML status page. It
// runs detached from the scheduler loop; its failures are forwarded through
// an error channel instead of crashing the process from a goroutine.
package report

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/pagewatch/pagewatch/internal/metrics"
	"github.com/pagewatch/pagewatch/internal/probe"
)

// ReportPath is where the status table lives; every other path 404s with a
// link back here.
const ReportPath = "/"

// ProbeData is the read-only slice of the engine the server needs: the
// immutable page list and a snapshot accessor for the result table. Handlers
// must never mutate either.
type ProbeData interface {
	Pages() []probe.CompiledPage
	Results() []*probe.Result
}

type Server struct {
	Logger  *zap.Logger
	Data    ProbeData
	Metrics *metrics.Metrics

	httpServer *http.Server
}

func NewServer(logger *zap.Logger, data ProbeData, m *metrics.Metrics) *Server {
	return &Server{Logger: logger, Data: data, Metrics: m}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.AllowAll().Handler)
	r.Use(RateLimit(20, 40))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics.Handler())
	}

	r.Get(ReportPath, s.handleReport)
	r.Head(ReportPath, s.handleReport)
	r.NotFound(s.handleNotFound)

	return r
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	// net/http drops the body for HEAD requests, so one handler serves both.
	if err := renderReport(w, s.Data.Pages(), s.Data.Results(), time.Now().UTC()); err != nil {
		s.Logger.Warn("report_render_failed", zap.Error(err))
	}
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	if err := renderError404(w, ReportPath); err != nil {
		s.Logger.Warn("error_page_render_failed", zap.Error(err))
	}
}

// Start binds the listener and serves in a background goroutine. Any serve
// failure — the port being taken, insufficient privilege to bind it — is
// sent on errs for the scheduler loop to surface and act on.
func (s *Server) Start(port int, errs chan<- error) {
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.Router(),
	}

	s.Logger.Info("report_server_listen", zap.Int("port", port))
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()
}

// Shutdown drains in-flight requests during process exit.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

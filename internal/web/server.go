package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/ppiankov/clinsum/internal/cache"
	"github.com/ppiankov/clinsum/internal/export"
	"github.com/ppiankov/clinsum/internal/llm"
	"github.com/ppiankov/clinsum/internal/logger"
	"github.com/ppiankov/clinsum/internal/metrics"
	"github.com/ppiankov/clinsum/internal/model"
	"github.com/ppiankov/clinsum/internal/session"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Backend is the summarization client as the server needs it
type Backend interface {
	session.Summarizer
	ProviderName() string
	Endpoint() string
	Provider() (llm.Provider, error)
}

// Server is the single-user web front-end: one session, one exporter
type Server struct {
	cfg      model.ServerConfig
	filename string

	backend  Backend
	session  *session.Controller
	exporter *export.Exporter
	probes   *cache.ProbeCache
	router   *mux.Router

	// background summaries started from the form outlive their request
	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer wires the session, exporter and routes for cfg
func NewServer(cfg *model.Config, backend Backend) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		cfg:      cfg.Server,
		filename: cfg.Export.Filename,
		backend:  backend,
		session:  session.NewController(backend),
		exporter: export.NewExporter(cfg.Export.Scale),
		probes:   cache.NewProbeCache(cfg.Server.ProbeTTL),
		ctx:      ctx,
		cancel:   cancel,
	}
	if s.filename == "" {
		s.filename = export.Filename
	}

	s.session.Subscribe(func(st session.State) {
		logger.WithFields(logrus.Fields{
			"phase":      st.Phase.String(),
			"attempt_id": st.AttemptID,
		}).Debug("Session state changed")
	})

	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()
	router.Use(Logging)
	router.Use(Recovery)

	router.HandleFunc("/", s.handlePage).Methods("GET")
	router.HandleFunc("/summarize", s.handleSummarizeForm).Methods("POST")
	router.HandleFunc("/export.pdf", s.handleExport).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/state", s.handleState).Methods("GET")
	api.HandleFunc("/summarize", s.handleSummarizeAPI).Methods("POST")

	router.HandleFunc("/healthz", healthCheck).Methods("GET")
	router.HandleFunc("/readyz", s.handleReady).Methods("GET")
	router.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})).Methods("GET")

	return router
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Session exposes the server's session controller
func (s *Server) Session() *session.Controller {
	return s.session
}

// Run serves on the configured address until ctx is cancelled, then shuts
// down gracefully within the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"addr":     s.cfg.Addr,
			"provider": s.backend.ProviderName(),
		}).Info("clinsum server started")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		s.cancel()
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Log.Info("Shutting down clinsum server...")

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := server.Shutdown(shutdownCtx)
	s.cancel()
	if err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
		return err
	}

	logger.Log.Info("clinsum server stopped")
	return nil
}

// Close abandons any summary still running in the background
func (s *Server) Close() {
	s.cancel()
}

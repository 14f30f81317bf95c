package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-resty/resty/v2"

	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/config"
	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/events"
	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/metrics"
	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/research"
	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/store"
)

type Server struct {
	store     store.Store
	broker    Broker
	workflows WorkflowService
	pipelines PipelineFactory
	cfg       config.Config
	probe     *resty.Client
	logger    *slog.Logger
	local     sync.WaitGroup
}

type Broker interface {
	Publish(event events.Event) int
	Subscribe(ctx context.Context, runID string) <-chan events.Event
}

type WorkflowService interface {
	StartResearch(ctx context.Context, runID string, cfg research.PipelineConfig) error
	CancelResearch(ctx context.Context, runID string) error
}

type Researcher interface {
	Run(ctx context.Context, cfg research.PipelineConfig) (*research.PipelineResult, error)
}

// PipelineFactory builds a pipeline that sends its progress to reporter.
// reporter may be nil.
type PipelineFactory func(reporter research.Reporter) Researcher

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer wires the HTTP surface. workflows may be nil, in which case
// asynchronous runs execute in-process.
func NewServer(store store.Store, broker Broker, workflows WorkflowService, pipelines PipelineFactory, cfg config.Config, opts ...Option) *Server {
	s := &Server{
		store:     store,
		broker:    broker,
		workflows: workflows,
		pipelines: pipelines,
		cfg:       cfg,
		probe:     resty.New().SetTimeout(5 * time.Second),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(quietRequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Post("/research", s.research)
	r.Post("/runs", s.createRun)
	r.Get("/runs", s.listRuns)
	r.Get("/runs/{id}", s.getRun)
	r.Delete("/runs/{id}", s.deleteRun)
	r.Post("/runs/{id}/cancel", s.cancelRun)
	r.Post("/runs/{id}/events", s.ingestEvent)
	r.Get("/runs/{id}/events", s.streamEvents)
	r.Get("/health", s.health)
	r.Get("/ready", s.ready)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	return r
}

func quietRequestLogger(next http.Handler) http.Handler {
	logged := middleware.Logger(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shouldSuppressRequestLog(r.Method, r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		logged.ServeHTTP(w, r)
	})
}

func shouldSuppressRequestLog(method string, path string) bool {
	cleanPath := strings.TrimSpace(path)
	if strings.HasSuffix(cleanPath, "/events") {
		return method == http.MethodPost || method == http.MethodGet
	}
	if method == http.MethodGet {
		switch cleanPath {
		case "/health", "/ready", "/metrics":
			return true
		}
	}
	return method == http.MethodOptions
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSONStatus(w, map[string]string{"status": "ok"}, http.StatusOK)
}

type subsystemStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type readinessResponse struct {
	Status     string                     `json:"status"`
	Subsystems map[string]subsystemStatus `json:"subsystems"`
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	subsystems := map[string]subsystemStatus{}
	overall := http.StatusOK

	if err := s.store.Ping(ctx); err != nil {
		subsystems["store"] = subsystemStatus{Status: "error", Error: err.Error()}
		overall = http.StatusServiceUnavailable
	} else {
		subsystems["store"] = subsystemStatus{Status: "ok"}
	}

	dataAPI := strings.TrimRight(strings.TrimSpace(s.cfg.DataAPIURL), "/")
	if dataAPI == "" {
		subsystems["data_api"] = subsystemStatus{Status: "skipped"}
	} else {
		status, err := s.probeHTTP(ctx, dataAPI+"/ready")
		if err == nil && status == http.StatusNotFound {
			status, err = s.probeHTTP(ctx, dataAPI+"/health")
		}
		switch {
		case err != nil:
			subsystems["data_api"] = subsystemStatus{Status: "error", Error: err.Error()}
			overall = http.StatusServiceUnavailable
		case status < 200 || status >= 300:
			subsystems["data_api"] = subsystemStatus{Status: "error", Error: fmt.Sprintf("health status %d", status)}
			overall = http.StatusServiceUnavailable
		default:
			subsystems["data_api"] = subsystemStatus{Status: "ok"}
		}
	}

	status := "ok"
	if overall != http.StatusOK {
		status = "degraded"
	}
	writeJSONStatus(w, readinessResponse{Status: status, Subsystems: subsystems}, overall)
}

func (s *Server) probeHTTP(ctx context.Context, url string) (int, error) {
	resp, err := s.probe.R().SetContext(ctx).Get(url)
	if err != nil {
		return 0, err
	}
	return resp.StatusCode(), nil
}

func writeJSONStatus(w http.ResponseWriter, value any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, message string, statusCode int) {
	writeJSONStatus(w, map[string]string{"error": message}, statusCode)
}

// writePipelineError maps configuration errors to 400 and every other
// pipeline failure to 502, keeping the original message.
func writePipelineError(w http.ResponseWriter, err error) {
	var cfgErr research.ConfigError
	if errors.As(err, &cfgErr) {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeError(w, err.Error(), http.StatusBadGateway)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Last-Event-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) Start(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.Background())
	}()
	err := server.ListenAndServe()
	s.local.Wait()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Wait blocks until in-process runs have finished.
func (s *Server) Wait() {
	s.local.Wait()
}

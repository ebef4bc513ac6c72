package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// RouteRegistrar is implemented by components that register routes with
// the gateway's router.
type RouteRegistrar interface {
	RegisterRoutes(r chi.Router)
}

// Config contains the gateway server's configuration.
type Config struct {
	// ListenAddr is the address and port the HTTP server listens on.
	ListenAddr string

	// EnablePprof mounts the pprof debugging API when true.
	EnablePprof bool

	// DrainDuration is how long to stay up after being marked not
	// ready, so load balancers can observe the change.
	DrainDuration time.Duration

	// ReadTimeout and WriteTimeout bound request reading and response
	// writing respectively.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	Log *zap.Logger
}

// Server is the HTTP gateway exposing the directory to non-CLI clients.
type Server struct {
	cfg     *Config
	log     *zap.Logger
	isReady atomic.Bool
	srv     *http.Server
}

// New creates a gateway server and registers the given route registrars.
func New(cfg *Config, routeRegistrars ...RouteRegistrar) *Server {
	srv := &Server{
		cfg: cfg,
		log: cfg.Log,
	}
	srv.srv = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv.createRouter(routeRegistrars),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	srv.isReady.Store(true)
	return srv
}

func (s *Server) createRouter(routeRegistrars []RouteRegistrar) http.Handler {
	mux := chi.NewRouter()

	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(middleware.Recoverer)

	for _, registrar := range routeRegistrars {
		registrar.RegisterRoutes(mux)
	}

	mux.Get("/livez", s.handleLivenessCheck)
	mux.Get("/readyz", s.handleReadinessCheck)
	mux.Get("/drain", s.handleDrain)
	mux.Get("/undrain", s.handleUndrain)

	if s.cfg.EnablePprof {
		s.log.Info("pprof API enabled")
		mux.Mount("/debug", middleware.Profiler())
	}

	return mux
}

func (s *Server) handleLivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"alive"}`))
}

func (s *Server) handleReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if !s.isReady.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"not ready"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

func (s *Server) handleDrain(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !s.isReady.Swap(false) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"already draining"}`))
		return
	}
	s.log.Info("gateway marked as not ready")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"draining"}`))
}

func (s *Server) handleUndrain(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.isReady.Swap(true) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"already ready"}`))
		return
	}
	s.log.Info("gateway marked as ready")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

// RunInBackground starts the HTTP server in its own goroutine.
func (s *Server) RunInBackground() {
	go func() {
		s.log.Info("starting gateway", zap.String("listen_addr", s.cfg.ListenAddr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("gateway server failed", zap.Error(err))
		}
	}()
}

// Shutdown drains the server, then stops it gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.isReady.Swap(false) && s.cfg.DrainDuration > 0 {
		s.log.Info("draining before shutdown", zap.Duration("drain", s.cfg.DrainDuration))
		select {
		case <-time.After(s.cfg.DrainDuration):
		case <-ctx.Done():
		}
	}
	if err := s.srv.Shutdown(ctx); err != nil {
		return err
	}
	s.log.Info("gateway stopped")
	return nil
}

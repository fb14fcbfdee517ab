package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/screenlink/internal/config"
	"github.com/rickgao/screenlink/internal/relay"
	"github.com/rickgao/screenlink/internal/session"
	"github.com/rickgao/screenlink/internal/version"
)

// Server hosts the relay's WebSocket endpoints.
type Server struct {
	cfg      config.ServerConfig
	registry *relay.Registry
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// New creates a Server around a Registry.
func New(cfg config.ServerConfig, registry *relay.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:      cfg,
		registry: registry,
		logger:   logger,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:    1024,
		WriteBufferSize:   1024,
		EnableCompression: cfg.EnableCompression,
		CheckOrigin:       s.checkOrigin,
	}

	return s
}

// Handler returns the complete HTTP handler, middleware included.
func (s *Server) Handler() http.Handler {
	router := httprouter.New()
	router.GET("/ws/player", s.player)
	router.GET("/ws/controller", s.controller)
	router.GET("/health", s.health)

	return s.withRequestID(s.withCORS(router))
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("listening", "addr", addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// player upgrades a player connection and runs its session.
func (s *Server) player(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	logger := s.requestLogger(r)
	logger.Info("player route called")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("failed to upgrade player connection", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(s.cfg.ReadLimit)

	session.NewPlayer(conn, s.registry, s.cfg.WriteTimeout, logger).Run()
}

// controller upgrades a controller connection and runs its session. Both
// query parameters are required; the secret is accepted but never validated.
func (s *Server) controller(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	logger := s.requestLogger(r)

	query := r.URL.Query()
	device := query.Get("device")
	secret := query.Get("secret")
	if device == "" {
		logger.Error("missing device query parameter")
		http.Error(w, "device query parameter is required", http.StatusBadRequest)
		return
	}
	if secret == "" {
		logger.Error("missing secret query parameter")
		http.Error(w, "secret query parameter is required", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("failed to upgrade controller connection", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(s.cfg.ReadLimit)

	session.NewController(conn, s.registry, device, s.cfg.WriteTimeout, logger).Run()
}

// health reports process liveness and the registered device count.
func (s *Server) health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"devices": s.registry.Len(),
		"version": version.Version,
	})
}

// checkOrigin allows any origin when no allowlist is configured, otherwise
// requires an exact match.
func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

// requestLogger attaches the propagated request id to the base logger.
func (s *Server) requestLogger(r *http.Request) *slog.Logger {
	if id := r.Header.Get(requestIDHeader); id != "" {
		return s.logger.With("request_id", id)
	}
	return s.logger
}

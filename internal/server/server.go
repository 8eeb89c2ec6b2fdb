// Package server exposes the HTTP surface: admin task triggers, metrics,
// and the public read endpoints backed by storage and the cache.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/pprof"
	"strings"
	"sync"
	"time"

	"github.com/cameronopotter/cameron-personal-site-sub001/internal/cache"
	"github.com/cameronopotter/cameron-personal-site-sub001/internal/stats"
	"github.com/cameronopotter/cameron-personal-site-sub001/internal/storage"
	"github.com/cameronopotter/cameron-personal-site-sub001/internal/tasks"
	logx "github.com/cameronopotter/cameron-personal-site-sub001/pkg/logx"
)

// Config controls the HTTP server.
//
// Security:
//   - Prefer binding to localhost (default).
//   - If binding to a non-loopback address, set Token.
type Config struct {
	Enabled bool
	Addr    string
	Token   string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Debug mounts /debug/pprof on the same listener.
	Debug bool
}

// Server serves the site API. Start and Stop are safe to call once each;
// Addr reports the bound address after Start.
type Server struct {
	mu  sync.Mutex
	cfg Config
	log logx.Logger

	manager *tasks.Manager
	stats   *stats.Collector
	store   storage.Store
	cache   *cache.Cache

	ln  net.Listener
	srv *http.Server
}

func New(cfg Config, manager *tasks.Manager, collector *stats.Collector, store storage.Store, c *cache.Cache, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Server{
		cfg:     cfg,
		log:     log,
		manager: manager,
		stats:   collector,
		store:   store,
		cache:   c,
	}
}

// Start binds the listener and serves in the background. Returns nil
// without listening when the server is disabled.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cfg.Enabled {
		s.log.Info("http server disabled")
		return nil
	}
	if s.srv != nil {
		return nil
	}

	addr := strings.TrimSpace(s.cfg.Addr)
	if addr == "" {
		addr = "127.0.0.1:8080"
	}

	// Refuse accidental public exposure of the admin surface.
	if s.cfg.Token == "" && !isLoopbackAddr(addr) {
		return errors.New("server: non-loopback addr requires a token")
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:      s.routes(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}
	s.ln = ln
	s.srv = srv

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server stopped with error", logx.Err(err))
		}
	}()

	s.log.Info("http server started",
		logx.String("addr", ln.Addr().String()),
		logx.Bool("token_set", s.cfg.Token != ""),
	)
	return nil
}

// Addr reports the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Stop drains in-flight requests until ctx expires.
func (s *Server) Stop(ctx context.Context) {
	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	s.ln = nil
	s.mu.Unlock()

	if srv == nil {
		return
	}
	if err := srv.Shutdown(ctx); err != nil {
		_ = srv.Close()
	}
	s.log.Info("http server stopped")
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("GET /garden/plants", s.handlePlants)
	mux.HandleFunc("GET /weather/current", s.handleWeather)
	mux.HandleFunc("GET /projects", s.handleProjects)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	auth := func(h http.HandlerFunc) http.HandlerFunc { return s.withAuth(h) }
	mux.HandleFunc("GET /admin/tasks", auth(s.handleTaskList))
	mux.HandleFunc("GET /admin/tasks/{name}", auth(s.handleTaskStatus))
	mux.HandleFunc("POST /admin/tasks/{name}/trigger", auth(s.handleTaskTrigger))

	if s.cfg.Debug {
		mux.HandleFunc("/debug/pprof/", auth(pprof.Index))
		mux.HandleFunc("/debug/pprof/cmdline", auth(pprof.Cmdline))
		mux.HandleFunc("/debug/pprof/profile", auth(pprof.Profile))
		mux.HandleFunc("/debug/pprof/symbol", auth(pprof.Symbol))
		mux.HandleFunc("/debug/pprof/trace", auth(pprof.Trace))
	}

	return mux
}

func (s *Server) withAuth(h http.HandlerFunc) http.HandlerFunc {
	tok := strings.TrimSpace(s.cfg.Token)
	if tok == "" {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		const p = "Bearer "
		if ah := r.Header.Get("Authorization"); strings.HasPrefix(ah, p) &&
			strings.TrimSpace(strings.TrimPrefix(ah, p)) == tok {
			h(w, r)
			return
		}
		w.Header().Set("WWW-Authenticate", "Bearer")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}
}

func isLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	h = strings.TrimSpace(h)
	if h == "" {
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}

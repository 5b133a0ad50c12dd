package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/km-arc/go-component/framework/container"
	gohttp "github.com/km-arc/go-component/framework/http"
	"github.com/km-arc/go-component/framework/routing"
)

// Inspector is the read side of the lifecycle the server reports on.
// *container.Orchestrator satisfies it.
type Inspector interface {
	States() []container.ComponentState
	Running() bool
}

// Server exposes composition and lifecycle state over HTTP. It is a
// component itself: Start binds the listener, Stop drains it.
//
//	GET /healthz           200 once every component started, 503 otherwise
//	GET /components        every component with its state and dependencies
//	GET /components/{id}   a single component
//	GET /plan              the start order
//	GET /metrics           Prometheus exposition (when a handler is given)
type Server struct {
	addr     string
	repo     *container.Repository
	inspect  Inspector
	logger   *slog.Logger
	router   *routing.Router
	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
}

// New wires the routes. metrics may be nil.
func New(addr string, repo *container.Repository, inspect Inspector, metrics http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		addr:    addr,
		repo:    repo,
		inspect: inspect,
		logger:  logger.With(slog.String("component", "admin")),
	}

	r := routing.New(s.logger)
	r.Get("/healthz", s.healthz)
	r.Prefix("/components", func(r *routing.Router) {
		r.Get("/", s.components)
		r.Get("/*", s.component)
	})
	r.Get("/plan", s.plan)
	if metrics != nil {
		r.Handle("/metrics", metrics)
	}
	s.router = r
	return s
}

// Handler returns the routes without a listener.
func (s *Server) Handler() http.Handler { return s.router }

// Start binds the listen address and serves in the background. A bind
// failure is returned so the lifecycle can roll back.
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("admin: listen on %s: %w", s.addr, err)
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.mu.Lock()
	s.srv, s.listener = srv, ln
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("admin server stopped", slog.Any("error", err))
		}
	}()
	s.logger.Info("admin server listening", slog.String("addr", ln.Addr().String()))
	return nil
}

// Stop gracefully shuts the server down within ctx.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Addr returns the bound address once started, else the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ── Handlers ─────────────────────────────────────────────────────────────────

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	res := gohttp.NewResponse(w)
	if !s.inspect.Running() {
		res.ServiceUnavailable("not running")
		return
	}
	res.JSON(http.StatusOK, map[string]any{
		"status":         "running",
		"composition_id": s.repo.ID(),
	})
}

func (s *Server) components(w http.ResponseWriter, _ *http.Request) {
	gohttp.NewResponse(w).Success(s.inspect.States())
}

// component matches the rest of the path since type ids contain slashes.
func (s *Server) component(w http.ResponseWriter, r *http.Request) {
	res := gohttp.NewResponse(w)
	id := container.TypeID(routing.Param(r, "*"))

	for _, st := range s.inspect.States() {
		if st.TypeID == id {
			res.Success(st)
			return
		}
	}
	res.NotFound(fmt.Sprintf("component [%s] is not registered", id))
}

func (s *Server) plan(w http.ResponseWriter, _ *http.Request) {
	res := gohttp.NewResponse(w)
	if !s.repo.Composed() {
		res.ServiceUnavailable("not composed")
		return
	}
	plan := s.repo.Plan()
	if plan == nil {
		plan = container.Plan{}
	}
	res.Success(plan)
}

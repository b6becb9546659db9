package internalhttp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/lomoval/otus-golang/tasks_calendar_sync/internal/app"
	"github.com/lomoval/otus-golang/tasks_calendar_sync/internal/auth"
	log "github.com/sirupsen/logrus"
)

const readHeaderTimeout = 10 * time.Second

type Config struct {
	Host string
	Port int
}

// Authenticator verifies bearer tokens of API callers.
type Authenticator interface {
	Verify(token string) (*auth.Claims, error)
}

type Server struct {
	srv  *http.Server
	addr string
	app  *app.App
	auth Authenticator
}

func NewServer(config Config, app *app.App, authenticator Authenticator) (*Server, error) {
	s := &Server{
		addr: net.JoinHostPort(config.Host, strconv.Itoa(config.Port)),
		app:  app,
		auth: authenticator,
	}
	handler, err := s.routes()
	if err != nil {
		return nil, err
	}
	s.srv = &http.Server{
		Addr:              s.addr,
		Handler:           loggingMiddleware(handler),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s, nil
}

// Handler returns the complete request handler, middlewares included.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

func (s *Server) routes() (http.Handler, error) {
	mux := runtime.NewServeMux(runtime.WithRoutingErrorHandler(routingErrorHandler))

	routes := []struct {
		method  string
		pattern string
		handler runtime.HandlerFunc
	}{
		{http.MethodGet, "/health", s.health},
		{http.MethodGet, "/tasks", s.authenticated(s.listTasks)},
		{http.MethodPost, "/tasks", s.authenticated(s.createTask)},
		{http.MethodGet, "/tasks/{id}", s.authenticated(s.getTask)},
		{http.MethodPut, "/tasks/{id}", s.authenticated(s.updateTask)},
		{http.MethodDelete, "/tasks/{id}", s.authenticated(s.removeTask)},
	}
	for _, r := range routes {
		if err := mux.HandlePath(r.method, r.pattern, r.handler); err != nil {
			return nil, fmt.Errorf("failed to register %s %s: %w", r.method, r.pattern, err)
		}
	}
	return mux, nil
}

func (s *Server) Start(_ context.Context) error {
	log.Printf("starting http server on %s", s.addr)
	err := s.srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func routingErrorHandler(
	_ context.Context, _ *runtime.ServeMux, _ runtime.Marshaler, w http.ResponseWriter, _ *http.Request, status int,
) {
	writeError(w, status, http.StatusText(status))
}

func getIP(req *http.Request) (string, error) {
	ip, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return "", fmt.Errorf("userip: %q is not IP:port", req.RemoteAddr)
	}

	if parsed := net.ParseIP(ip); parsed == nil {
		return "", fmt.Errorf("userip: %q is not IP:port", req.RemoteAddr)
	}
	return ip, nil
}

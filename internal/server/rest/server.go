// Package rest is the HTTP transport of the auth service. It binds
// requests, calls AuthService and maps its error taxonomy to status codes.
package rest

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/gin-gonic/gin"
)

const (
	ServiceName     = "auth-service"
	shutdownTimeout = 5 * time.Second
)

// AuthAPI is the part of AuthService the handlers call.
type AuthAPI interface {
	Register(ctx context.Context, creds models.UserCredentials) (*models.Token, error)
	Authenticate(ctx context.Context, creds models.UserCredentials, bearerHeader string) (*models.Token, error)
	CheckToken(ctx context.Context, bearerHeader string) error
	Verify(ctx context.Context, username string, image []byte)
}

// ReadinessChecker reports whether the message broker is reachable.
type ReadinessChecker interface {
	Check(ctx context.Context) bool
}

type HTTPServer struct {
	address string
	engine  *gin.Engine
	svc     AuthAPI
	probe   ReadinessChecker
	metrics metrics.Client
	logger  logging.Logger
}

func NewHTTPServer(address string, l logging.Logger, svc AuthAPI, probe ReadinessChecker, mc metrics.Client) *HTTPServer {
	if mc == nil {
		mc = metrics.NoneClient{}
	}

	s := &HTTPServer{
		address: address,
		engine:  gin.New(),
		svc:     svc,
		probe:   probe,
		metrics: mc,
		logger:  l.With("module", "http_server"),
	}
	s.routes()
	return s
}

func (s *HTTPServer) routes() {
	s.engine.Use(gin.Recovery(), requestID(), s.requestLogger(), s.requestMetrics())

	auth := s.engine.Group("/", s.authMetrics())
	auth.POST("/register", s.register)
	auth.POST("/login", s.login)

	s.engine.POST("/check_token", s.checkToken)
	s.engine.POST("/verify", s.verify)

	healthz := s.engine.Group("/healthz")
	healthz.GET("/up", s.up)
	healthz.GET("/ready", s.readyMetrics(), s.ready)
}

// Handler exposes the router, mainly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {

	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "error stopping HTTP server", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

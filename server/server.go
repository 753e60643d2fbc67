package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/hrygo/skillgate/internal/profile"
	"github.com/hrygo/skillgate/plugin/ai/agent"
	apiv1 "github.com/hrygo/skillgate/server/router/api/v1"
	"github.com/hrygo/skillgate/store"
)

const (
	sweepInterval      = time.Minute
	limiterIdleTimeout = 10 * time.Minute
	shutdownTimeout    = 10 * time.Second
)

type Server struct {
	Profile *profile.Profile
	Store   *store.Store
	Agent   *agent.Agent

	echoServer        *echo.Echo
	apiV1Service      *apiv1.APIV1Service
	runnerCancelFuncs []context.CancelFunc
}

func NewServer(ctx context.Context, profile *profile.Profile, store *store.Store, a *agent.Agent) (*Server, error) {
	s := &Server{
		Profile: profile,
		Store:   store,
		Agent:   a,
	}

	echoServer := echo.New()
	echoServer.Debug = profile.IsDev()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.Use(middleware.Recover())
	echoServer.Use(requestLogger())
	s.echoServer = echoServer

	// Register healthz endpoint.
	echoServer.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "Service ready.")
	})

	s.apiV1Service = apiv1.NewAPIV1Service(profile, a)
	s.apiV1Service.RegisterRoutes(echoServer)

	if n, err := a.LoadSemanticCache(ctx, store); err != nil {
		slog.Warn("failed to restore semantic cache", "error", err)
	} else if n > 0 {
		slog.Info("semantic cache warm start", "entries", n)
	}
	return s, nil
}

// Handler exposes the router for in-process use.
func (s *Server) Handler() http.Handler {
	return s.echoServer
}

// Addr returns the bound address once Start has returned.
func (s *Server) Addr() net.Addr {
	return s.echoServer.ListenerAddr()
}

func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrap(err, "failed to listen")
	}
	s.echoServer.Listener = listener

	go func() {
		if err := s.echoServer.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start echo server", "error", err)
		}
	}()
	s.StartBackgroundRunners(ctx)
	return nil
}

func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	slog.Info("server shutting down")

	for _, cancelFunc := range s.runnerCancelFuncs {
		if cancelFunc != nil {
			cancelFunc()
		}
	}

	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", slog.String("error", err.Error()))
	}

	if _, err := s.Agent.SaveSemanticCache(ctx, s.Store); err != nil {
		slog.Error("failed to save semantic cache", slog.String("error", err.Error()))
	}
	s.Agent.LogStats()
	s.Agent.Close()

	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close database", slog.String("error", err.Error()))
	}

	slog.Info("skillgate stopped properly")
}

// StartBackgroundRunners expires idle sessions and forgets idle API clients
// until ctx is done or the server shuts down.
func (s *Server) StartBackgroundRunners(ctx context.Context) {
	runnerCtx, cancel := context.WithCancel(ctx)
	s.runnerCancelFuncs = append(s.runnerCancelFuncs, cancel)

	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runnerCtx.Done():
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
}

func (s *Server) sweep() {
	if s.Profile.SessionIdleTimeout > 0 {
		if n := s.Agent.ExpireSessions(s.Profile.SessionIdleTimeout); n > 0 {
			slog.Info("expired idle sessions", "count", n)
		}
	}
	s.apiV1Service.Limiter().Cleanup(limiterIdleTimeout)
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"remote_ip", v.RemoteIP,
			}
			if v.Error != nil {
				slog.Warn("http request failed", append(attrs, "error", v.Error.Error())...)
				return nil
			}
			slog.Debug("http request", attrs...)
			return nil
		},
	})
}

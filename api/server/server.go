// Package server is the read-only operator surface of the vault: status,
// health probes and node metrics over HTTP. It never exposes record
// contents.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/Tripp808/iyacare-app-sub001/core/vault"
)

// StatusSource is the part of the vault the server reads.
type StatusSource interface {
	Status() vault.Status
	VerifyAuditChain() error
}

type Options struct {
	ListenAddr string
	// DataDir is checked for free space.
	DataDir string
	// MinFreeBytes below which the node reports not ready.
	MinFreeBytes uint64
	// JWTSecret, when set, guards /status with an HS256 bearer token.
	JWTSecret   string
	TLSCertFile string
	TLSKeyFile  string
	Logger      zerolog.Logger
}

type Server struct {
	vault     StatusSource
	opts      Options
	echo      *echo.Echo
	logger    zerolog.Logger
	startTime time.Time
}

func NewServer(v StatusSource, opts Options) *Server {
	if opts.DataDir == "" {
		opts.DataDir = "."
	}
	s := &Server{
		vault:     v,
		opts:      opts,
		logger:    opts.Logger.With().Str("component", "api").Logger(),
		startTime: time.Now(),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(requestLogger(s.logger))

	e.GET("/health/liveness", s.HandleLiveness)
	e.GET("/health/readiness", s.HandleReadiness)
	e.GET("/nodehealth", s.HandleNodeHealth)
	e.GET("/status", s.HandleStatus, s.requireJWT)
	s.echo = e
	return s
}

// Handler exposes the routes, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.opts.ListenAddr).Bool("tls", s.opts.TLSCertFile != "").Msg("api server listening")
	var err error
	if s.opts.TLSCertFile != "" {
		err = s.echo.StartTLS(s.opts.ListenAddr, s.opts.TLSCertFile, s.opts.TLSKeyFile)
	} else {
		err = s.echo.Start(s.opts.ListenAddr)
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// requireJWT checks for an HS256 token in Authorization: Bearer.
func (s *Server) requireJWT(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.opts.JWTSecret == "" {
			return next(c)
		}
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		if !strings.HasPrefix(header, "Bearer ") {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
		}
		token, err := jwt.Parse(strings.TrimPrefix(header, "Bearer "), func(t *jwt.Token) (any, error) {
			return []byte(s.opts.JWTSecret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			s.logger.Warn().Err(err).Str("remote_ip", c.RealIP()).Msg("rejected status request")
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
		}
		return next(c)
	}
}

func requestLogger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			evt := logger.Debug()
			if err != nil {
				evt = logger.Warn().Err(err)
			}
			evt.Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Int("status", c.Response().Status).
				Dur("latency", time.Since(start)).
				Msg("request")
			return nil
		}
	}
}

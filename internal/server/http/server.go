// Package httpserver exposes the account service as a JSON HTTP API for the
// web registration page.
package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/and161185/oxy-accounts/internal/errs"
	"github.com/and161185/oxy-accounts/internal/service"
)

// Pinger reports backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the echo application serving /api.
type Server struct {
	e        *echo.Echo
	accounts service.AccountService
	health   Pinger
	log      *zap.Logger
}

// New builds the echo app. health may be nil.
func New(accounts service.AccountService, health Pinger, log *zap.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &requestValidator{v: validator.New(validator.WithRequiredStructEnabled())}
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("4K"))
	e.Use(requestLogger(log))

	s := &Server{e: e, accounts: accounts, health: health, log: log}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.e.GET("/healthz", s.healthz)

	api := s.e.Group("/api")
	api.POST("/register", s.register)
	api.POST("/login", s.login)
	api.POST("/password", s.changePassword)
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.e }

// Start listens on addr until Shutdown.
func (s *Server) Start(addr string) error {
	if err := s.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }

type registerRequest struct {
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginRequest struct {
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type changePasswordRequest struct {
	Name        string `json:"name" validate:"required"`
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

type accountView struct {
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
}

func (s *Server) register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return failure(c, http.StatusBadRequest, "INVALID_INPUT", "malformed request body")
	}
	if err := c.Validate(&req); err != nil {
		return failure(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	}
	id, err := s.accounts.Register(c.Request().Context(), req.Name, req.Password)
	if err != nil {
		return s.fail(c, err)
	}
	return success(c, http.StatusCreated, accountView{AccountID: id, Name: req.Name}, "account created")
}

func (s *Server) login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return failure(c, http.StatusBadRequest, "INVALID_INPUT", "malformed request body")
	}
	if err := c.Validate(&req); err != nil {
		return failure(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	}
	a, err := s.accounts.Login(c.Request().Context(), req.Name, req.Password)
	if err != nil {
		return s.fail(c, err)
	}
	return success(c, http.StatusOK, accountView{AccountID: a.ID.String(), Name: a.Name}, "logged in")
}

func (s *Server) changePassword(c echo.Context) error {
	var req changePasswordRequest
	if err := c.Bind(&req); err != nil {
		return failure(c, http.StatusBadRequest, "INVALID_INPUT", "malformed request body")
	}
	if err := c.Validate(&req); err != nil {
		return failure(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	}
	if err := s.accounts.ChangePassword(c.Request().Context(), req.Name, req.OldPassword, req.NewPassword); err != nil {
		return s.fail(c, err)
	}
	return success(c, http.StatusOK, nil, "password changed")
}

func (s *Server) healthz(c echo.Context) error {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			s.log.Warn("health check failed", zap.Error(err))
			return failure(c, http.StatusServiceUnavailable, "UNHEALTHY", "")
		}
	}
	return success(c, http.StatusOK, nil, "ok")
}

// statusClientClosedRequest is the nginx convention for a client that gave up.
const statusClientClosedRequest = 499

func (s *Server) fail(c echo.Context, err error) error {
	switch {
	case errors.Is(err, errs.ErrInvalidInput):
		return failure(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, errs.ErrAlreadyExists):
		return failure(c, http.StatusConflict, "ACCOUNT_EXISTS", "")
	case errors.Is(err, errs.ErrUnauthorized):
		return failure(c, http.StatusUnauthorized, "BAD_CREDENTIALS", "")
	case errors.Is(err, errs.ErrUnsupportedAlgorithm):
		return failure(c, http.StatusConflict, "PASSWORD_RESET_REQUIRED", "")
	case errors.Is(err, errs.ErrVersionConflict):
		return failure(c, http.StatusConflict, "CONCURRENT_UPDATE", "")
	case errors.Is(err, context.DeadlineExceeded):
		return failure(c, http.StatusServiceUnavailable, "TIMEOUT", "")
	case errors.Is(err, context.Canceled):
		s.log.Warn("request canceled", zap.String("path", c.Path()), zap.Error(err))
		return failure(c, statusClientClosedRequest, "CANCELED", "")
	default:
		s.log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
		return failure(c, http.StatusInternalServerError, "INTERNAL", "")
	}
}

// requestLogger logs one line per request, without bodies.
func requestLogger(log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			code := c.Response().Status
			lvl := zapcore.InfoLevel
			switch {
			case code >= 500:
				lvl = zapcore.ErrorLevel
			case code >= 400:
				lvl = zapcore.WarnLevel
			}
			log.Log(lvl, "http",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.Int("status", code),
				zap.Duration("dur", time.Since(start)),
				zap.String("remote", c.RealIP()),
			)
			return nil
		}
	}
}

type requestValidator struct{ v *validator.Validate }

func (rv *requestValidator) Validate(i any) error { return rv.v.Struct(i) }

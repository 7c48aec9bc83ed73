package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Spok95/tutorbook/internal/ctxutil"
	"github.com/Spok95/tutorbook/internal/db"
	"github.com/Spok95/tutorbook/internal/metrics"
	"github.com/Spok95/tutorbook/internal/models"
	"github.com/Spok95/tutorbook/internal/session"
)

const (
	headerAPIKey    = "apikey"
	headerSupervise = "X-Supervise-Teacher"
	contextSession  = "session"
)

// requestLog пишет каждый запрос в zap и в метрики.
func (s *Server) requestLog(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		t0 := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		req, res := c.Request(), c.Response()
		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		d := time.Since(t0)
		metrics.ObserveRequest(req.Method, route, strconv.Itoa(res.Status), d)

		fields := []zap.Field{
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Int("status", res.Status),
			zap.Duration("latency", d),
		}
		if uid, ok := ctxutil.UserID(req.Context()); ok {
			fields = append(fields, zap.String("user_id", uid.String()))
		}
		s.log.Debug("request", fields...)
		return nil
	}
}

func (s *Server) requireAPIKey(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		got := c.Request().Header.Get(headerAPIKey)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.opts.APIKey)) != 1 {
			return errBadAPIKey
		}
		return next(c)
	}
}

// authenticate проверяет Bearer-токен и строит сессию запроса.
func (s *Server) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw, ok := strings.CutPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			return errUnauthorized
		}
		claims, err := s.opts.Tokens.Parse(strings.TrimSpace(raw))
		if err != nil {
			return err
		}
		uid, _ := claims.UserID()

		var supervise *uuid.UUID
		if h := c.Request().Header.Get(headerSupervise); h != "" {
			id, err := uuid.Parse(h)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid "+headerSupervise+" header")
			}
			supervise = &id
		}

		ctx := ctxutil.WithUserID(c.Request().Context(), uid)
		c.SetRequest(c.Request().WithContext(ctx))

		lookup := func(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
			return db.GetProfile(ctx, s.opts.DB, id)
		}
		c.Set(contextSession, session.Resolve(ctx, lookup, uid, supervise, s.log))
		return next(c)
	}
}

func (s *Server) requireApproved(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !currentSession(c).Approved() {
			return errNotApproved
		}
		return next(c)
	}
}

func (s *Server) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !currentSession(c).IsAdmin() {
			return errForbidden
		}
		return next(c)
	}
}

func currentSession(c echo.Context) session.Session {
	sess, _ := c.Get(contextSession).(session.Session)
	return sess
}

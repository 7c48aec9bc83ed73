// Package api — HTTP-интерфейс к данным: echo, JWT, проверка apikey и сессия на каждый запрос.
package api

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/Spok95/tutorbook/internal/auth"
	"github.com/Spok95/tutorbook/internal/db"
	"github.com/Spok95/tutorbook/internal/metrics"
)

type Options struct {
	Addr   string
	APIKey string
	DB     *sql.DB
	Tokens *auth.Tokens
	Log    *zap.Logger
	Loc    *time.Location
	Now    func() time.Time
}

type Server struct {
	opts Options
	app  *echo.Echo
	log  *zap.Logger
}

func New(opts Options) *Server {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.Loc == nil {
		opts.Loc = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Server{opts: opts, app: echo.New(), log: opts.Log}
	s.setup()
	return s
}

func (s *Server) setup() {
	s.app.HideBanner = true
	s.app.HidePort = true
	s.app.Validator = &requestValidator{v: validator.New(validator.WithRequiredStructEnabled())}
	s.app.HTTPErrorHandler = s.handleError

	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{DisablePrintStack: true}))
	s.app.Use(s.requestLog)

	s.app.GET("/healthz", s.healthz)
	s.app.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	v1 := s.app.Group("/v1", s.requireAPIKey)
	v1.POST("/auth/signup", s.signup)
	v1.POST("/auth/login", s.login)

	authed := v1.Group("", s.authenticate)
	authed.GET("/me", s.me)
	authed.GET("/me/preferences", s.getPreferences)
	authed.PUT("/me/preferences", s.putPreferences)
	authed.POST("/rpc/redeem_activation_code", s.redeemActivationCode)
	authed.POST("/rpc/is_admin", s.isAdmin)
	authed.PATCH("/profiles/:id", s.patchProfile)

	admin := authed.Group("", s.requireAdmin)
	admin.GET("/profiles", s.listProfiles)
	admin.GET("/activation-codes", s.listActivationCodes)
	admin.POST("/activation-codes", s.createActivationCodes)
	admin.DELETE("/activation-codes/:id", s.deleteActivationCode)
	admin.POST("/broadcasts", s.createBroadcast)

	data := authed.Group("", s.requireApproved)
	data.GET("/broadcasts", s.listBroadcasts)

	data.GET("/students", s.listStudents)
	data.POST("/students", s.createStudent)
	data.GET("/students/:id", s.getStudent)
	data.PATCH("/students/:id", s.patchStudent)
	data.DELETE("/students/:id", s.deleteStudent)
	data.GET("/students/:id/summary", s.getSummary)
	data.GET("/summaries", s.listSummaries)
	data.GET("/reports/summary.xlsx", s.summaryReport)

	data.GET("/lessons", s.listLessons)
	data.POST("/lessons", s.createLesson)
	data.PATCH("/lessons/:id", s.patchLesson)
	data.DELETE("/lessons/:id", s.deleteLesson)

	data.GET("/payments", s.listPayments)
	data.POST("/payments", s.createPayment)
	data.PATCH("/payments/:id", s.patchPayment)
	data.DELETE("/payments/:id", s.deletePayment)

	data.GET("/schedules", s.listSchedule)
	data.POST("/schedules", s.createScheduleEntry)
	data.PATCH("/schedules/:id", s.patchScheduleEntry)
	data.DELETE("/schedules/:id", s.deleteScheduleEntry)

	data.GET("/academic-records", s.listRecords)
	data.POST("/academic-records", s.createRecord)
	data.PATCH("/academic-records/:id", s.patchRecord)
	data.DELETE("/academic-records/:id", s.deleteRecord)
}

// Start запускает сервер в фоне и останавливает его при отмене ctx.
func (s *Server) Start(ctx context.Context) {
	go func() {
		if err := s.app.Start(s.opts.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server stopped", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = s.app.Shutdown(shCtx)
	}()
	s.log.Info("http server started", zap.String("addr", s.opts.Addr))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.app.ServeHTTP(w, r)
}

func (s *Server) healthz(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 800*time.Millisecond)
	defer cancel()
	if err := db.Ping(ctx, s.opts.DB); err != nil {
		return c.String(http.StatusServiceUnavailable, "db not ok: "+err.Error())
	}
	return c.String(http.StatusOK, "ok")
}

func (s *Server) now() time.Time { return s.opts.Now().In(s.opts.Loc) }

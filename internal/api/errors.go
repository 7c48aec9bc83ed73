package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Spok95/tutorbook/internal/auth"
	"github.com/Spok95/tutorbook/internal/authz"
	"github.com/Spok95/tutorbook/internal/db"
	"github.com/Spok95/tutorbook/internal/metrics"
	"github.com/Spok95/tutorbook/internal/models"
	"github.com/Spok95/tutorbook/internal/observability"
)

var (
	errUnauthorized = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errBadAPIKey    = echo.NewHTTPError(http.StatusUnauthorized, "invalid api key")
	errNotApproved  = echo.NewHTTPError(http.StatusForbidden, "profile is not approved: redeem an activation code")
	errForbidden    = echo.NewHTTPError(http.StatusForbidden, "permission denied")
)

type requestValidator struct {
	v *validator.Validate
}

func (rv *requestValidator) Validate(i any) error {
	return rv.v.Struct(i)
}

// bind — разбор JSON-тела и проверка тегов validate.
func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return err
	}
	return c.Validate(dst)
}

// handleError переводит ошибки слоёв в HTTP-ответ {"error": ...}.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var (
		code    = http.StatusInternalServerError
		message any
		httpErr *echo.HTTPError
		fldErrs validator.ValidationErrors
		valErr  *models.ValidationError
	)
	switch {
	case errors.As(err, &httpErr):
		code = httpErr.Code
		message = fmt.Sprint(httpErr.Message)
	case errors.As(err, &fldErrs):
		fields := make(map[string]string, len(fldErrs))
		for _, fe := range fldErrs {
			fields[fe.Field()] = fe.Tag()
		}
		code = http.StatusBadRequest
		message = fields
	case errors.As(err, &valErr):
		code = http.StatusBadRequest
		message = valErr.Error()
	case errors.Is(err, db.ErrNotFound), errors.Is(err, db.ErrProfileNotFound):
		code = http.StatusNotFound
		message = "not found"
	case errors.Is(err, authz.ErrForbidden):
		code = http.StatusForbidden
		message = "permission denied"
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrBadPassword):
		code = http.StatusUnauthorized
		message = err.Error()
	case errors.Is(err, db.ErrCodeNotFoundOrUsed), errors.Is(err, db.ErrEmailTaken):
		code = http.StatusConflict
		message = err.Error()
	default:
		message = http.StatusText(http.StatusInternalServerError)
		metrics.HandlerErrors.Inc()
		s.log.Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("route", c.Path()),
			zap.Error(err),
		)
		observability.CaptureErrCtx(c.Request().Context(), err)
	}

	body := echo.Map{"error": message}
	if fields, ok := message.(map[string]string); ok {
		body = echo.Map{"error": "validation failed", "fields": fields}
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, body)
	}
	if err != nil {
		s.log.Warn("write error response", zap.Error(err))
	}
}

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Spok95/tutorbook/internal/auth"
	"github.com/Spok95/tutorbook/internal/authz"
	"github.com/Spok95/tutorbook/internal/db"
	"github.com/Spok95/tutorbook/internal/models"
	"github.com/Spok95/tutorbook/internal/session"
)

type signupRequest struct {
	Email    string  `json:"email" validate:"required,email,max=254"`
	Password string  `json:"password" validate:"required,min=8,max=72"`
	FullName string  `json:"full_name" validate:"required,max=200"`
	Phone    *string `json:"phone" validate:"omitempty,max=32"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Profile   *models.Profile `json:"profile,omitempty"`
}

// signup — новый преподаватель, не подтверждён до погашения кода.
func (s *Server) signup(c echo.Context) error {
	var req signupRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	p, err := db.CreateAccount(ctx, s.opts.DB, req.Email, hash, req.FullName, req.Phone, models.Teacher, false)
	if err != nil {
		return err
	}
	token, exp, err := s.opts.Tokens.Issue(p.ID, p.Email)
	if err != nil {
		return err
	}
	s.log.Info("teacher signed up", zap.String("user_id", p.ID.String()))
	return c.JSON(http.StatusCreated, tokenResponse{Token: token, ExpiresAt: exp, Profile: p})
}

func (s *Server) login(c echo.Context) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	id, hash, err := db.FindCredentials(ctx, s.opts.DB, req.Email)
	if errors.Is(err, db.ErrNotFound) {
		return auth.ErrBadPassword
	}
	if err != nil {
		return err
	}
	if err := auth.CheckPassword(hash, req.Password); err != nil {
		return err
	}
	token, exp, err := s.opts.Tokens.Issue(id, req.Email)
	if err != nil {
		return err
	}
	// профиль для ответа не обязателен: сессия всё равно строится на каждом запросе
	p, err := db.GetProfile(ctx, s.opts.DB, id)
	if err != nil {
		s.log.Warn("profile lookup after login", zap.String("user_id", id.String()), zap.Error(err))
		p = nil
	}
	return c.JSON(http.StatusOK, tokenResponse{Token: token, ExpiresAt: exp, Profile: p})
}

type meResponse struct {
	session.Session
	IsAdmin  bool `json:"is_admin"`
	Approved bool `json:"approved"`
}

func (s *Server) me(c echo.Context) error {
	sess := currentSession(c)
	return c.JSON(http.StatusOK, meResponse{Session: sess, IsAdmin: sess.IsAdmin(), Approved: sess.Approved()})
}

func (s *Server) getPreferences(c echo.Context) error {
	p, err := db.GetPreferences(c.Request().Context(), s.opts.DB, currentSession(c).UserID, s.now())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

type preferencesRequest struct {
	AcademicYear string `json:"academic_year" validate:"required"`
	Semester     string `json:"semester" validate:"required,oneof=first second summer"`
}

func (s *Server) putPreferences(c echo.Context) error {
	var req preferencesRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	p, err := db.SavePreferences(c.Request().Context(), s.opts.DB, models.Preferences{
		ProfileID:    currentSession(c).UserID,
		AcademicYear: req.AcademicYear,
		Semester:     models.Semester(req.Semester),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

type redeemRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

func (s *Server) redeemActivationCode(c echo.Context) error {
	var req redeemRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	sess := currentSession(c)
	if err := db.RedeemActivationCode(c.Request().Context(), s.opts.DB, sess.UserID, req.Code); err != nil {
		return err
	}
	s.log.Info("activation code redeemed", zap.String("user_id", sess.UserID.String()))
	return c.JSON(http.StatusOK, echo.Map{"redeemed": true})
}

type isAdminRequest struct {
	UserID *uuid.UUID `json:"user_id"`
}

func (s *Server) isAdmin(c echo.Context) error {
	var req isAdminRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	id := currentSession(c).UserID
	if req.UserID != nil {
		id = *req.UserID
	}
	return c.JSON(http.StatusOK, echo.Map{"is_admin": authz.IsAdmin(c.Request().Context(), s.opts.DB, id)})
}

func (s *Server) listProfiles(c echo.Context) error {
	role := models.Role(c.QueryParam("role"))
	if role != "" && !role.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown role")
	}
	list, err := db.ListProfiles(c.Request().Context(), s.opts.DB, currentSession(c).Scope(), role)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

type profilePatchRequest struct {
	FullName   *string `json:"full_name" validate:"omitempty,min=1,max=200"`
	Phone      *string `json:"phone" validate:"omitempty,max=32"`
	IsApproved *bool   `json:"is_approved"`
}

func (s *Server) patchProfile(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req profilePatchRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	p, err := db.UpdateProfile(c.Request().Context(), s.opts.DB, currentSession(c).Scope(), id, db.ProfilePatch{
		FullName:   req.FullName,
		Phone:      req.Phone,
		IsApproved: req.IsApproved,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Spok95/tutorbook/internal/db"
	"github.com/Spok95/tutorbook/internal/models"
)

func (s *Server) listActivationCodes(c echo.Context) error {
	unused, err := queryBool(c, "unused")
	if err != nil {
		return err
	}
	list, err := db.ListActivationCodes(c.Request().Context(), s.opts.DB, currentSession(c).Scope(), unused != nil && *unused)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

// codesRequest — либо конкретный код, либо количество случайных.
type codesRequest struct {
	Code  string `json:"code" validate:"omitempty,alphanum,max=32"`
	Count int    `json:"count" validate:"omitempty,min=1,max=100"`
}

func (s *Server) createActivationCodes(c echo.Context) error {
	var req codesRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, sc := c.Request().Context(), currentSession(c).Scope()
	if req.Code != "" {
		code, err := db.CreateActivationCode(ctx, s.opts.DB, sc, req.Code)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusCreated, []models.ActivationCode{*code})
	}
	if req.Count == 0 {
		req.Count = 1
	}
	codes, err := db.GenerateActivationCodes(ctx, s.opts.DB, sc, req.Count)
	if err != nil {
		return err
	}
	s.log.Info("activation codes generated", zap.Int("count", len(codes)), zap.String("by", sc.UserID.String()))
	return c.JSON(http.StatusCreated, codes)
}

func (s *Server) deleteActivationCode(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := db.DeleteActivationCode(c.Request().Context(), s.opts.DB, currentSession(c).Scope(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type broadcastRequest struct {
	Title    string `json:"title" validate:"required,max=200"`
	Body     string `json:"body" validate:"required,max=4000"`
	Audience string `json:"audience" validate:"omitempty,oneof=teachers parents all"`
}

func (s *Server) createBroadcast(c echo.Context) error {
	var req broadcastRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	b, err := db.CreateBroadcast(c.Request().Context(), s.opts.DB, currentSession(c).Scope(), models.Broadcast{
		Title:    req.Title,
		Body:     req.Body,
		Audience: models.Audience(req.Audience),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, b)
}

func (s *Server) listBroadcasts(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	list, err := db.ListBroadcasts(c.Request().Context(), s.opts.DB, currentSession(c).Scope(), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

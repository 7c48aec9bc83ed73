package api

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Spok95/tutorbook/internal/billing"
	"github.com/Spok95/tutorbook/internal/db"
	"github.com/Spok95/tutorbook/internal/export"
	"github.com/Spok95/tutorbook/internal/models"
)

type studentRequest struct {
	TeacherID    *uuid.UUID     `json:"teacher_id"`
	Name         *string        `json:"name" validate:"omitempty,min=1,max=200"`
	Grade        *string        `json:"grade" validate:"omitempty,max=50"`
	AgreedAmount *float64       `json:"agreed_amount" validate:"omitempty,gte=0"`
	IsHourly     *bool          `json:"is_hourly"`
	PricePerHour *float64       `json:"price_per_hour" validate:"omitempty,gte=0"`
	AcademicYear *string        `json:"academic_year"`
	Semester     *string        `json:"semester" validate:"omitempty,oneof=first second summer"`
	Phones       []models.Phone `json:"phones" validate:"omitempty,max=10"`
	Notes        *string        `json:"notes" validate:"omitempty,max=2000"`
	IsCompleted  *bool          `json:"is_completed"`
}

// apply переносит заданные поля запроса на ученика; окончательная проверка — Student.Validate.
func (r studentRequest) apply(st *models.Student) {
	if r.TeacherID != nil {
		st.TeacherID = *r.TeacherID
	}
	if r.Name != nil {
		st.Name = *r.Name
	}
	if r.Grade != nil {
		st.Grade = *r.Grade
	}
	if r.AgreedAmount != nil {
		st.AgreedAmount = r.AgreedAmount
	}
	if r.IsHourly != nil {
		st.IsHourly = *r.IsHourly
	}
	if r.PricePerHour != nil {
		st.PricePerHour = r.PricePerHour
	}
	if r.AcademicYear != nil {
		st.AcademicYear = *r.AcademicYear
	}
	if r.Semester != nil {
		st.Semester = models.Semester(*r.Semester)
	}
	if r.Phones != nil {
		st.Phones = r.Phones
	}
	if r.Notes != nil {
		st.Notes = *r.Notes
	}
	if r.IsCompleted != nil {
		st.IsCompleted = *r.IsCompleted
	}
}

func (s *Server) listStudents(c echo.Context) error {
	f, err := studentFilter(c)
	if err != nil {
		return err
	}
	list, err := db.ListStudents(c.Request().Context(), s.opts.DB, currentSession(c).Scope(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

// createStudent — без указанного периода ученик попадает в текущий выбор пользователя.
func (s *Server) createStudent(c echo.Context) error {
	var req studentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	sess := currentSession(c)

	var st models.Student
	if req.AcademicYear == nil || req.Semester == nil {
		prefs, err := db.GetPreferences(ctx, s.opts.DB, sess.UserID, s.now())
		if err != nil {
			return err
		}
		st.AcademicYear, st.Semester = prefs.AcademicYear, prefs.Semester
	}
	req.apply(&st)

	out, err := db.CreateStudent(ctx, s.opts.DB, sess.Scope(), st)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, out)
}

func (s *Server) getStudent(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	st, err := db.GetStudent(c.Request().Context(), s.opts.DB, currentSession(c).Scope(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}

func (s *Server) patchStudent(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req studentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	sc := currentSession(c).Scope()

	st, err := db.GetStudent(ctx, s.opts.DB, sc, id)
	if err != nil {
		return err
	}
	req.apply(st)
	out, err := db.UpdateStudent(ctx, s.opts.DB, sc, *st)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) deleteStudent(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := db.DeleteStudent(c.Request().Context(), s.opts.DB, currentSession(c).Scope(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) getSummary(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	sum, err := db.GetSummary(c.Request().Context(), s.opts.DB, currentSession(c).Scope(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sum)
}

type summariesResponse struct {
	Period   models.Period           `json:"period"`
	Students []models.StudentSummary `json:"students"`
	Totals   billing.Totals          `json:"totals"`
}

// periodSummaries — строки представления за выбранный период;
// без academic_year/semester в запросе берётся сохранённый выбор пользователя.
func (s *Server) periodSummaries(c echo.Context) (summariesResponse, error) {
	var resp summariesResponse
	f, err := studentFilter(c)
	if err != nil {
		return resp, err
	}
	ctx := c.Request().Context()
	sess := currentSession(c)
	if f.AcademicYear == "" || f.Semester == "" {
		prefs, err := db.GetPreferences(ctx, s.opts.DB, sess.UserID, s.now())
		if err != nil {
			return resp, err
		}
		if f.AcademicYear == "" {
			f.AcademicYear = prefs.AcademicYear
		}
		if f.Semester == "" {
			f.Semester = prefs.Semester
		}
	}
	rows, err := db.ListSummaries(ctx, s.opts.DB, sess.Scope(), f)
	if err != nil {
		return resp, err
	}
	resp.Period = models.Period{AcademicYear: f.AcademicYear, Semester: f.Semester}
	resp.Students = rows
	resp.Totals = billing.Summarize(rows)
	return resp, nil
}

func (s *Server) listSummaries(c echo.Context) error {
	resp, err := s.periodSummaries(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) summaryReport(c echo.Context) error {
	resp, err := s.periodSummaries(c)
	if err != nil {
		return err
	}
	data, err := export.SummaryReport(resp.Period, resp.Students, resp.Totals)
	if err != nil {
		return err
	}
	name := export.ReportFilename(resp.Period)
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="summary.xlsx"; filename*=UTF-8''%s`, url.PathEscape(name)))
	return c.Blob(http.StatusOK, export.XLSXContentType, data)
}

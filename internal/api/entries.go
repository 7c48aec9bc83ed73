package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Spok95/tutorbook/internal/db"
	"github.com/Spok95/tutorbook/internal/models"
)

// Уроки, оплаты, расписание и оценки. Владелец строки всегда совпадает с владельцем ученика.

type lessonRequest struct {
	StudentID  *uuid.UUID   `json:"student_id"`
	LessonDate *models.Date `json:"lesson_date"`
	Hours      *float64     `json:"hours" validate:"omitempty,gt=0,lte=24"`
	Notes      *string      `json:"notes" validate:"omitempty,max=2000"`
}

func (r lessonRequest) apply(l *models.Lesson) {
	if r.StudentID != nil {
		l.StudentID = *r.StudentID
	}
	if r.LessonDate != nil {
		l.LessonDate = *r.LessonDate
	}
	if r.Hours != nil {
		l.Hours = *r.Hours
	}
	if r.Notes != nil {
		l.Notes = *r.Notes
	}
}

func (s *Server) listLessons(c echo.Context) error {
	f, err := rangeFilter(c)
	if err != nil {
		return err
	}
	list, err := db.ListLessons(c.Request().Context(), s.opts.DB, currentSession(c).Scope(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) createLesson(c echo.Context) error {
	var req lessonRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	l := models.Lesson{LessonDate: models.DateOf(s.now())}
	req.apply(&l)
	out, err := db.CreateLesson(c.Request().Context(), s.opts.DB, currentSession(c).Scope(), l)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, out)
}

func (s *Server) patchLesson(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req lessonRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, sc := c.Request().Context(), currentSession(c).Scope()
	l, err := db.GetLesson(ctx, s.opts.DB, sc, id)
	if err != nil {
		return err
	}
	req.apply(l)
	out, err := db.UpdateLesson(ctx, s.opts.DB, sc, *l)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) deleteLesson(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := db.DeleteLesson(c.Request().Context(), s.opts.DB, currentSession(c).Scope(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type paymentRequest struct {
	StudentID     *uuid.UUID   `json:"student_id"`
	Amount        *float64     `json:"amount" validate:"omitempty,gt=0"`
	PaymentDate   *models.Date `json:"payment_date"`
	PaymentMethod *string      `json:"payment_method" validate:"omitempty,oneof=cash transfer card other"`
	IsFinal       *bool        `json:"is_final"`
	Notes         *string      `json:"notes" validate:"omitempty,max=2000"`
}

func (r paymentRequest) apply(p *models.Payment) {
	if r.StudentID != nil {
		p.StudentID = *r.StudentID
	}
	if r.Amount != nil {
		p.Amount = *r.Amount
	}
	if r.PaymentDate != nil {
		p.PaymentDate = *r.PaymentDate
	}
	if r.PaymentMethod != nil {
		p.PaymentMethod = models.PaymentMethod(*r.PaymentMethod)
	}
	if r.IsFinal != nil {
		p.IsFinal = *r.IsFinal
	}
	if r.Notes != nil {
		p.Notes = *r.Notes
	}
}

func (s *Server) listPayments(c echo.Context) error {
	f, err := rangeFilter(c)
	if err != nil {
		return err
	}
	list, err := db.ListPayments(c.Request().Context(), s.opts.DB, currentSession(c).Scope(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) createPayment(c echo.Context) error {
	var req paymentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	p := models.Payment{PaymentDate: models.DateOf(s.now())}
	req.apply(&p)
	out, err := db.CreatePayment(c.Request().Context(), s.opts.DB, currentSession(c).Scope(), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, out)
}

func (s *Server) patchPayment(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req paymentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, sc := c.Request().Context(), currentSession(c).Scope()
	p, err := db.GetPayment(ctx, s.opts.DB, sc, id)
	if err != nil {
		return err
	}
	req.apply(p)
	out, err := db.UpdatePayment(ctx, s.opts.DB, sc, *p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) deletePayment(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := db.DeletePayment(c.Request().Context(), s.opts.DB, currentSession(c).Scope(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type scheduleRequest struct {
	StudentID     *uuid.UUID `json:"student_id"`
	DayOfWeek     *int       `json:"day_of_week" validate:"omitempty,min=0,max=6"`
	StartTime     *string    `json:"start_time"`
	DurationHours *float64   `json:"duration_hours" validate:"omitempty,gt=0,lte=12"`
}

func (r scheduleRequest) apply(e *models.ScheduleEntry) {
	if r.StudentID != nil {
		e.StudentID = *r.StudentID
	}
	if r.DayOfWeek != nil {
		e.DayOfWeek = *r.DayOfWeek
	}
	if r.StartTime != nil {
		e.StartTime = *r.StartTime
	}
	if r.DurationHours != nil {
		e.DurationHours = *r.DurationHours
	}
}

func (s *Server) listSchedule(c echo.Context) error {
	var f db.ScheduleFilter
	var err error
	if f.StudentID, err = queryUUID(c, "student_id"); err != nil {
		return err
	}
	if f.DayOfWeek, err = queryInt(c, "day_of_week"); err != nil {
		return err
	}
	list, err := db.ListSchedule(c.Request().Context(), s.opts.DB, currentSession(c).Scope(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) createScheduleEntry(c echo.Context) error {
	var req scheduleRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	e := models.ScheduleEntry{DurationHours: 1}
	req.apply(&e)
	out, err := db.CreateScheduleEntry(c.Request().Context(), s.opts.DB, currentSession(c).Scope(), e)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, out)
}

func (s *Server) patchScheduleEntry(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req scheduleRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, sc := c.Request().Context(), currentSession(c).Scope()
	e, err := db.GetScheduleEntry(ctx, s.opts.DB, sc, id)
	if err != nil {
		return err
	}
	req.apply(e)
	out, err := db.UpdateScheduleEntry(ctx, s.opts.DB, sc, *e)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) deleteScheduleEntry(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := db.DeleteScheduleEntry(c.Request().Context(), s.opts.DB, currentSession(c).Scope(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type recordRequest struct {
	StudentID    *uuid.UUID   `json:"student_id"`
	AcademicYear *string      `json:"academic_year"`
	Semester     *string      `json:"semester" validate:"omitempty,oneof=first second summer"`
	Subject      *string      `json:"subject" validate:"omitempty,min=1,max=200"`
	Score        *float64     `json:"score"`
	Notes        *string      `json:"notes" validate:"omitempty,max=2000"`
	RecordedAt   *models.Date `json:"recorded_at"`
}

func (r recordRequest) apply(rec *models.AcademicRecord) {
	if r.StudentID != nil {
		rec.StudentID = *r.StudentID
	}
	if r.AcademicYear != nil {
		rec.AcademicYear = *r.AcademicYear
	}
	if r.Semester != nil {
		rec.Semester = models.Semester(*r.Semester)
	}
	if r.Subject != nil {
		rec.Subject = *r.Subject
	}
	if r.Score != nil {
		rec.Score = r.Score
	}
	if r.Notes != nil {
		rec.Notes = *r.Notes
	}
	if r.RecordedAt != nil {
		rec.RecordedAt = *r.RecordedAt
	}
}

func (s *Server) listRecords(c echo.Context) error {
	var f db.RecordFilter
	var err error
	if f.StudentID, err = queryUUID(c, "student_id"); err != nil {
		return err
	}
	f.AcademicYear = c.QueryParam("academic_year")
	if f.Semester, err = querySemester(c); err != nil {
		return err
	}
	list, err := db.ListRecords(c.Request().Context(), s.opts.DB, currentSession(c).Scope(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

// createRecord — без периода оценка относится к периоду ученика.
func (s *Server) createRecord(c echo.Context) error {
	var req recordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, sc := c.Request().Context(), currentSession(c).Scope()
	var rec models.AcademicRecord
	if req.StudentID != nil && (req.AcademicYear == nil || req.Semester == nil) {
		st, err := db.GetStudent(ctx, s.opts.DB, sc, *req.StudentID)
		if err != nil {
			return err
		}
		rec.AcademicYear, rec.Semester = st.AcademicYear, st.Semester
	}
	req.apply(&rec)
	out, err := db.CreateRecord(ctx, s.opts.DB, sc, rec)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, out)
}

func (s *Server) patchRecord(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req recordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, sc := c.Request().Context(), currentSession(c).Scope()
	rec, err := db.GetRecord(ctx, s.opts.DB, sc, id)
	if err != nil {
		return err
	}
	req.apply(rec)
	out, err := db.UpdateRecord(ctx, s.opts.DB, sc, *rec)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) deleteRecord(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := db.DeleteRecord(c.Request().Context(), s.opts.DB, currentSession(c).Scope(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Spok95/tutorbook/internal/db"
	"github.com/Spok95/tutorbook/internal/models"
)

func pathID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func queryUUID(c echo.Context, name string) (uuid.NullUUID, error) {
	v := c.QueryParam(name)
	if v == "" {
		return uuid.NullUUID{}, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return uuid.NullUUID{}, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return uuid.NullUUID{UUID: id, Valid: true}, nil
}

func queryDate(c echo.Context, name string) (*models.Date, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	d, err := models.ParseDate(v)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, name+": "+err.Error())
	}
	return &d, nil
}

func queryBool(c echo.Context, name string) (*bool, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return &b, nil
}

func queryInt(c echo.Context, name string) (*int, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return &n, nil
}

func querySemester(c echo.Context) (models.Semester, error) {
	v := c.QueryParam("semester")
	if v == "" {
		return "", nil
	}
	sem, err := models.ParseSemester(v)
	if err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return sem, nil
}

func studentFilter(c echo.Context) (db.StudentFilter, error) {
	var f db.StudentFilter
	var err error
	f.AcademicYear = c.QueryParam("academic_year")
	if f.AcademicYear != "" {
		if _, err := models.ParseAcademicYear(f.AcademicYear); err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	if f.Semester, err = querySemester(c); err != nil {
		return f, err
	}
	if f.Completed, err = queryBool(c, "completed"); err != nil {
		return f, err
	}
	f.Search = c.QueryParam("q")
	return f, nil
}

func rangeFilter(c echo.Context) (db.RangeFilter, error) {
	var f db.RangeFilter
	var err error
	if f.StudentID, err = queryUUID(c, "student_id"); err != nil {
		return f, err
	}
	if f.From, err = queryDate(c, "from"); err != nil {
		return f, err
	}
	if f.To, err = queryDate(c, "to"); err != nil {
		return f, err
	}
	return f, nil
}

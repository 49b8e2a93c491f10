package echoapi

import (
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/trezcool/classboard/core"
	"github.com/trezcool/classboard/core/session"
)

const (
	currentCourse = "current"
	monthLayout   = "2006-01"
)

// boolQuery reads a boolean query param; anything unparsable is false.
func boolQuery(ctx echo.Context, name string) bool {
	b, _ := strconv.ParseBool(ctx.QueryParam(name))
	return b
}

// courseParam resolves the :courseID path param; "current" means the selected course.
func courseParam(ctx echo.Context, s session.Session) (string, error) {
	id := core.CleanString(ctx.Param("courseID"))
	if id == currentCourse {
		if s.CourseID == "" {
			return "", session.ErrNoCourse
		}
		return s.CourseID, nil
	}
	return id, nil
}

type dateParam struct {
	Date string `json:"date" validate:"required,datekey"`
}

func bindDate(ctx echo.Context, validate *validator.Validate) (string, error) {
	p := dateParam{Date: core.CleanString(ctx.Param("date"))}
	if err := validate.Struct(p); err != nil {
		return "", err
	}
	return p.Date, nil
}

type monthQuery struct {
	Month string `json:"month" validate:"omitempty,datetime=2006-01"`
}

// bindMonth reads ?month=YYYY-MM, defaulting to the current month.
func bindMonth(ctx echo.Context, validate *validator.Validate) (int, time.Month, error) {
	q := monthQuery{Month: core.CleanString(ctx.QueryParam("month"))}
	if err := validate.Struct(q); err != nil {
		return 0, 0, err
	}
	if q.Month == "" {
		now := time.Now().UTC()
		return now.Year(), now.Month(), nil
	}
	t, _ := time.Parse(monthLayout, q.Month)
	return t.Year(), t.Month(), nil
}

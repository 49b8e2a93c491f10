package echoapi

import (
	"bytes"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/classboard/core"
	"github.com/trezcool/classboard/core/attendance"
	"github.com/trezcool/classboard/core/reminder"
	"github.com/trezcool/classboard/core/session"
)

type attendanceApi struct {
	svc       *session.Service
	reminders *reminder.Service
	validate  *validator.Validate
}

func registerAttendanceAPI(g *echo.Group, s *Server, auth []echo.MiddlewareFunc) {
	api := attendanceApi{svc: s.SessionSvc, reminders: s.ReminderSvc, validate: s.Validate}

	ag := g.Group("/courses/:courseID/attendance", auth...)
	ag.GET("", api.overview)
	ag.GET("/calendar", api.calendar)

	dg := ag.Group("/:date")
	dg.GET("", api.retrieve)
	dg.POST("", api.create)
	dg.DELETE("", api.destroy)
	dg.POST("/publish", api.publish)
	dg.PUT("/students/:studentID", api.toggle)
	dg.POST("/select-all", api.selectAll)
	dg.POST("/unselect-all", api.unselectAll)
	dg.POST("/save", api.save)
	dg.GET("/export", api.export)
	dg.POST("/email", api.email)
}

// reconciler returns the session, course id and attendance Reconciler of the request.
func (api *attendanceApi) reconciler(ctx echo.Context) (session.Session, string, *attendance.Reconciler, error) {
	sess, err := contextSession(ctx)
	if err != nil {
		return session.Session{}, "", nil, err
	}
	courseID, err := courseParam(ctx, sess)
	if err != nil {
		return session.Session{}, "", nil, err
	}
	rec, err := api.svc.Attendance(ctx.Request().Context(), sess, courseID)
	if err != nil {
		return session.Session{}, "", nil, errors.Wrap(err, "loading attendance")
	}
	return sess, courseID, rec, nil
}

func (api *attendanceApi) dated(ctx echo.Context) (string, *attendance.Reconciler, error) {
	date, err := bindDate(ctx, api.validate)
	if err != nil {
		return "", nil, err
	}
	_, _, rec, err := api.reconciler(ctx)
	return date, rec, err
}

func dayView(r *attendance.Reconciler, date string) DayResponse {
	resp := DayResponse{
		Date:     date,
		Students: r.Students(date),
		Stats:    r.Stats(date),
		Pending:  r.IsPending(date),
	}
	if rec, ok := r.Record(date); ok {
		resp.Record = &rec
	}
	return resp
}

// Handlers

func (api *attendanceApi) overview(ctx echo.Context) error {
	_, _, rec, err := api.reconciler(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, OverviewResponse{
		Records:            rec.Records(),
		Pending:            rec.Pending(),
		Calendar:           rec.Calendar(),
		DaysWithAttendance: rec.DaysWithAttendance(),
	})
}

func (api *attendanceApi) calendar(ctx echo.Context) error {
	year, month, err := bindMonth(ctx, api.validate)
	if err != nil {
		return err
	}
	_, _, rec, err := api.reconciler(ctx)
	if err != nil {
		return err
	}

	days := make(map[string]attendance.Stats)
	for date, stats := range rec.Calendar() {
		if t, err := core.ParseDateKey(date); err == nil && t.Year() == year && t.Month() == month {
			days[date] = stats
		}
	}
	return ctx.JSON(http.StatusOK, CalendarResponse{
		Month:   formatMonth(year, month),
		Days:    days,
		Average: rec.MonthlyAverage(year, month),
	})
}

func (api *attendanceApi) retrieve(ctx echo.Context) error {
	date, rec, err := api.dated(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, dayView(rec, date))
}

func (api *attendanceApi) create(ctx echo.Context) error {
	date, rec, err := api.dated(ctx)
	if err != nil {
		return err
	}
	c := ctx.Request().Context()
	if boolQuery(ctx, "publish") {
		_, err = rec.CreateAndPublish(c, date)
	} else {
		_, err = rec.CreateRecord(c, date)
	}
	if err != nil {
		return errors.Wrap(err, "creating attendance record")
	}
	return ctx.JSON(http.StatusCreated, dayView(rec, date))
}

func (api *attendanceApi) publish(ctx echo.Context) error {
	date, rec, err := api.dated(ctx)
	if err != nil {
		return err
	}
	if _, err = rec.Publish(ctx.Request().Context(), date); err != nil {
		return errors.Wrap(err, "publishing attendance record")
	}
	return ctx.JSON(http.StatusOK, dayView(rec, date))
}

func (api *attendanceApi) toggle(ctx echo.Context) error {
	date, rec, err := api.dated(ctx)
	if err != nil {
		return err
	}

	var data ToggleRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ToggleRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	if err = rec.Toggle(ctx.Request().Context(), date, ctx.Param("studentID"), data.Status); err != nil {
		return errors.Wrap(err, "toggling attendance")
	}
	return ctx.JSON(http.StatusOK, dayView(rec, date))
}

func (api *attendanceApi) selectAll(ctx echo.Context) error {
	date, rec, err := api.dated(ctx)
	if err != nil {
		return err
	}
	if err = rec.SelectAll(ctx.Request().Context(), date); err != nil {
		return errors.Wrap(err, "selecting all students")
	}
	return ctx.JSON(http.StatusOK, dayView(rec, date))
}

func (api *attendanceApi) unselectAll(ctx echo.Context) error {
	date, rec, err := api.dated(ctx)
	if err != nil {
		return err
	}
	if err = rec.UnselectAll(ctx.Request().Context(), date); err != nil {
		return errors.Wrap(err, "unselecting all students")
	}
	return ctx.JSON(http.StatusOK, dayView(rec, date))
}

func (api *attendanceApi) save(ctx echo.Context) error {
	date, rec, err := api.dated(ctx)
	if err != nil {
		return err
	}
	res, err := rec.Save(ctx.Request().Context(), date)
	if err != nil {
		return errors.Wrap(err, "saving attendance")
	}
	return ctx.JSON(http.StatusOK, SaveResponse{SaveResult: res, Day: dayView(rec, date)})
}

func (api *attendanceApi) destroy(ctx echo.Context) error {
	date, rec, err := api.dated(ctx)
	if err != nil {
		return err
	}
	if err = rec.Delete(ctx.Request().Context(), date); err != nil {
		return errors.Wrap(err, "deleting attendance record")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *attendanceApi) export(ctx echo.Context) error {
	date, err := bindDate(ctx, api.validate)
	if err != nil {
		return err
	}
	sess, courseID, rec, err := api.reconciler(ctx)
	if err != nil {
		return err
	}
	record, ok := rec.Record(date)
	if !ok {
		return attendance.ErrNoRecord
	}

	name := attendance.DefaultCohortName
	if snap, err := api.svc.Snapshot(ctx.Request().Context(), sess, courseID, false); err == nil && snap.Course.Name != "" {
		name = snap.Course.DisplayName()
	}

	var buf bytes.Buffer
	if err = attendance.WriteCSV(&buf, name, record); err != nil {
		return errors.Wrap(err, "writing attendance csv")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+attendance.CSVFilename(date)+`"`)
	return ctx.Blob(http.StatusOK, attendance.CSVContentType, buf.Bytes())
}

func (api *attendanceApi) email(ctx echo.Context) error {
	date, err := bindDate(ctx, api.validate)
	if err != nil {
		return err
	}
	sess, courseID, rec, err := api.reconciler(ctx)
	if err != nil {
		return err
	}
	record, ok := rec.Record(date)
	if !ok {
		return attendance.ErrNoRecord
	}
	snap, err := api.svc.Snapshot(ctx.Request().Context(), sess, courseID, false)
	if err != nil {
		return errors.Wrap(err, "loading course")
	}

	err = api.reminders.SendAttendance(ctx.Request().Context(), sess.Teacher, snap.Course, record)
	if errors.Cause(err) == reminder.ErrNoTeacherEmail {
		return core.NewValidationError(err)
	} else if err != nil {
		return errors.Wrap(err, "emailing attendance")
	}
	return ctx.NoContent(http.StatusAccepted)
}

type (
	DayResponse struct {
		Date     string             `json:"date"`
		Record   *attendance.Record `json:"record"`
		Students []attendance.Entry `json:"students"`
		Stats    attendance.Stats   `json:"stats"`
		Pending  bool               `json:"pending"`
	}

	OverviewResponse struct {
		Records            []attendance.Record         `json:"records"`
		Pending            []string                    `json:"pending"`
		Calendar           map[string]attendance.Stats `json:"calendar"`
		DaysWithAttendance int                         `json:"days_with_attendance"`
	}

	CalendarResponse struct {
		Month   string                      `json:"month"`
		Days    map[string]attendance.Stats `json:"days"`
		Average int                         `json:"average"`
	}

	SaveResponse struct {
		attendance.SaveResult
		Day DayResponse `json:"day"`
	}

	ToggleRequest struct {
		Status attendance.Status `json:"status" validate:"required,attendance_status"`
	}
)

func (tr *ToggleRequest) Validate(validate *validator.Validate) error {
	tr.Status = attendance.Status(core.CleanString(string(tr.Status), true /* lower */))
	return validate.Struct(tr)
}

func formatMonth(year int, month time.Month) string {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Format(monthLayout)
}

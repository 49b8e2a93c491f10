package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/classboard/core/classroom"
	"github.com/trezcool/classboard/core/grading"
	"github.com/trezcool/classboard/core/reminder"
	"github.com/trezcool/classboard/core/session"
)

type gradesApi struct {
	svc       *session.Service
	reminders *reminder.Service
}

func registerGradesAPI(g *echo.Group, s *Server, auth []echo.MiddlewareFunc) {
	api := gradesApi{svc: s.SessionSvc, reminders: s.ReminderSvc}

	cg := g.Group("/courses", auth...)
	cg.GET("", api.listCourses)
	cg.GET("/:courseID/dashboard", api.dashboard)
	cg.GET("/:courseID/grades", api.report)
	cg.GET("/:courseID/grades/:assignmentID", api.assignment)
	cg.POST("/:courseID/grades/:assignmentID/reminders", api.sendReminders)
}

// Handlers

func (api *gradesApi) listCourses(ctx echo.Context) error {
	sess, err := contextSession(ctx)
	if err != nil {
		return err
	}
	courses, err := api.svc.Courses(ctx.Request().Context(), sess)
	if err != nil {
		return errors.Wrap(err, "listing courses")
	}
	resp := make([]CourseResponse, 0, len(courses))
	for _, c := range courses {
		resp = append(resp, CourseResponse{Course: c, DisplayName: c.DisplayName(), Selected: c.ID == sess.CourseID})
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *gradesApi) dashboard(ctx echo.Context) error {
	sess, courseID, err := api.course(ctx)
	if err != nil {
		return err
	}
	dash, err := api.svc.Dashboard(ctx.Request().Context(), sess, courseID)
	if err != nil {
		return errors.Wrap(err, "building dashboard")
	}
	return ctx.JSON(http.StatusOK, dash)
}

func (api *gradesApi) report(ctx echo.Context) error {
	sess, courseID, err := api.course(ctx)
	if err != nil {
		return err
	}
	report, err := api.svc.Report(ctx.Request().Context(), sess, courseID, boolQuery(ctx, "refresh"))
	if err != nil {
		return errors.Wrap(err, "building grade report")
	}
	return ctx.JSON(http.StatusOK, report)
}

func (api *gradesApi) assignment(ctx echo.Context) error {
	_, stat, err := api.assignmentStat(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, stat)
}

func (api *gradesApi) sendReminders(ctx echo.Context) error {
	course, stat, err := api.assignmentStat(ctx)
	if err != nil {
		return err
	}
	sess, _ := contextSession(ctx)

	res, err := api.reminders.Send(ctx.Request().Context(), sess.Teacher, course, stat)
	if err != nil {
		return errors.Wrap(err, "sending reminders")
	}
	return ctx.JSON(http.StatusAccepted, res)
}

func (api *gradesApi) course(ctx echo.Context) (session.Session, string, error) {
	sess, err := contextSession(ctx)
	if err != nil {
		return session.Session{}, "", err
	}
	courseID, err := courseParam(ctx, sess)
	return sess, courseID, err
}

// assignmentStat returns the course and the stat of the :assignmentID param.
func (api *gradesApi) assignmentStat(ctx echo.Context) (classroom.Course, grading.AssignmentStat, error) {
	sess, courseID, err := api.course(ctx)
	if err != nil {
		return classroom.Course{}, grading.AssignmentStat{}, err
	}
	c := ctx.Request().Context()
	snap, err := api.svc.Snapshot(c, sess, courseID, false)
	if err != nil {
		return classroom.Course{}, grading.AssignmentStat{}, errors.Wrap(err, "loading course")
	}
	report, err := api.svc.Report(c, sess, courseID, false)
	if err != nil {
		return classroom.Course{}, grading.AssignmentStat{}, errors.Wrap(err, "building grade report")
	}
	stat, ok := report.Assignment(ctx.Param("assignmentID"))
	if !ok {
		return classroom.Course{}, grading.AssignmentStat{}, errHttpNotFound
	}
	return snap.Course, stat, nil
}

type CourseResponse struct {
	classroom.Course
	DisplayName string `json:"display_name"`
	Selected    bool   `json:"selected"`
}

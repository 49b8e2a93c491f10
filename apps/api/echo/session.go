package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/classboard/core"
	"github.com/trezcool/classboard/core/session"
)

type sessionApi struct {
	conf     *core.Config
	svc      *session.Service
	validate *validator.Validate
}

func registerSessionAPI(g *echo.Group, s *Server, auth []echo.MiddlewareFunc) {
	api := sessionApi{conf: s.Conf, svc: s.SessionSvc, validate: s.Validate}

	sg := g.Group("/session")

	// un-authed endpoints
	sg.POST("", api.create)

	// authed endpoints
	sg.GET("", api.retrieve, auth...)
	sg.DELETE("", api.destroy, auth...)
	sg.PUT("/course", api.selectCourse, auth...)
}

// Handlers

func (api *sessionApi) create(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sess, err := api.svc.Create(ctx.Request().Context(), data.AccessToken)
	if err != nil {
		return errors.Wrap(err, "creating session")
	}
	token, err := GenerateToken(api.conf, NewClaims(api.conf, sess))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	return ctx.JSON(http.StatusCreated, LoginResponse{Token: token, Session: sess})
}

func (api *sessionApi) retrieve(ctx echo.Context) error {
	sess, err := contextSession(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *sessionApi) destroy(ctx echo.Context) error {
	sess, err := contextSession(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), sess.ID); err != nil {
		return errors.Wrap(err, "deleting session")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *sessionApi) selectCourse(ctx echo.Context) error {
	sess, err := contextSession(ctx)
	if err != nil {
		return err
	}

	var data SelectCourseRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SelectCourseRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	sess, err = api.svc.SelectCourse(ctx.Request().Context(), sess, data.CourseID)
	if err != nil {
		return errors.Wrap(err, "selecting course")
	}
	return ctx.JSON(http.StatusOK, sess)
}

type (
	LoginRequest struct {
		AccessToken string `json:"access_token" validate:"required"`
	}

	LoginResponse struct {
		Token   string          `json:"token"`
		Session session.Session `json:"session"`
	}

	SelectCourseRequest struct {
		CourseID string `json:"course_id" validate:"required"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.AccessToken = core.CleanString(lr.AccessToken)
	return validate.Struct(lr)
}

func (sr *SelectCourseRequest) Validate(validate *validator.Validate) error {
	sr.CourseID = core.CleanString(sr.CourseID)
	return validate.Struct(sr)
}

package echoapi

import (
	"net/http"
	"net/url"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/classboard/core"
	"github.com/trezcool/classboard/core/attendance"
	"github.com/trezcool/classboard/core/classroom"
	"github.com/trezcool/classboard/core/session"
	"github.com/trezcool/classboard/services/eventapi"
)

var (
	errUnauthorized = echo.NewHTTPError(http.StatusUnauthorized, "session not authenticated")
	errHttpNotFound = echo.NewHTTPError(http.StatusNotFound, "not found")
)

type partialSaveResponse struct {
	Error   string   `json:"error"`
	Op      string   `json:"op"`
	Applied []string `json:"applied"`
	Failed  []string `json:"failed"`
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		var partial *attendance.PartialSaveError
		if errors.As(err, &partial) {
			code = http.StatusBadGateway
			message = partialSaveResponse{Error: partial.Error(), Op: partial.Op, Applied: partial.Applied, Failed: partial.Failed}
			logger.Warn("partial attendance save", err, contextTeacher(ctx))
			send(ctx, code, message)
			return
		}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		case *eventapi.Error:
			code = http.StatusBadGateway
			message = origErr.Message
			logger.Warn("attendance backend error", err, contextTeacher(ctx))
		case *url.Error:
			code = http.StatusBadGateway
			message = http.StatusText(code)
			logger.Error("upstream unreachable", err, contextTeacher(ctx))
		default:
			code, message = statusOf(origErr)
			if code == http.StatusInternalServerError { // any other error is a server error
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg
				logger.Error(msg, errors.Wrap(err, msg), contextTeacher(ctx))

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		}
		send(ctx, code, message)
	}
}

// statusOf maps domain sentinel errors to HTTP statuses.
func statusOf(err error) (int, interface{}) {
	switch err {
	case session.ErrNotFound, session.ErrExpired, classroom.ErrUnauthorized:
		return http.StatusUnauthorized, err.Error()
	case session.ErrNoCourse:
		return http.StatusBadRequest, err.Error()
	case session.ErrCourseNotFound, classroom.ErrNotFound, attendance.ErrNoRecord, attendance.ErrUnknownStudent:
		return http.StatusNotFound, err.Error()
	case attendance.ErrRecordExists, attendance.ErrNotSynced, attendance.ErrStale, classroom.ErrStale:
		return http.StatusConflict, err.Error()
	default:
		return http.StatusInternalServerError, nil
	}
}

func send(ctx echo.Context, code int, message interface{}) {
	if m, ok := message.(string); ok {
		message = echo.Map{"error": m}
	}
	if ctx.Response().Committed {
		return
	}
	var err error
	if ctx.Request().Method == http.MethodHead { // Issue #608
		err = ctx.NoContent(code)
	} else {
		err = ctx.JSON(code, message)
	}
	if err != nil {
		ctx.Echo().Logger.Error(err)
	}
}

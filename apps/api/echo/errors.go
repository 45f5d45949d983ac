package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/aizadzidi/tasmik-windsurf-sub000/core"
	"github.com/aizadzidi/tasmik-windsurf-sub000/core/exam"
	"github.com/aizadzidi/tasmik-windsurf-sub000/core/exam/session"
)

var (
	errUnauthorized        = echo.NewHTTPError(http.StatusUnauthorized, "teacher not authenticated")
	errHttpForbidden       = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errSessionNotFound     = echo.NewHTTPError(http.StatusNotFound, "session not found")
	errHttpExamNotFound    = echo.NewHTTPError(http.StatusNotFound, "exam not found")
	errHttpStudentNotFound = echo.NewHTTPError(http.StatusNotFound, "student not in roster")
	errHttpSessionGone     = echo.NewHTTPError(http.StatusGone, "session closed")
)

// sessionHTTPError translates the sentinel errors of the grading core, nil when `err` is not one of them.
func sessionHTTPError(err error) *echo.HTTPError {
	switch errors.Cause(err) {
	case exam.ErrNotFound:
		return errHttpExamNotFound
	case session.ErrUnknownStudent:
		return errHttpStudentNotFound
	case session.ErrClosed:
		return errHttpSessionGone
	case session.ErrNoSelection, session.ErrNotReady, session.ErrStaleFetch:
		return echo.NewHTTPError(http.StatusConflict, errors.Cause(err).Error())
	}
	return nil
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		if herr := sessionHTTPError(err); herr != nil {
			err = herr
		}

		switch {
		case exam.IsFetchError(err):
			code = http.StatusBadGateway
			message = echo.Map{"error": err.Error(), "retry": true}
			logger.Warn("fetch failed", err, contextIdentity(ctx))
		case exam.IsSaveError(err):
			code = http.StatusServiceUnavailable
			message = echo.Map{"error": err.Error(), "retry": true}
			logger.Warn("save failed", err, contextIdentity(ctx))
		default:
			code, message = classify(err, ctx, logger, translator, signalShutdown)
		}

		if ctx.Echo().Debug {
			if _, ok := message.(echo.Map); !ok {
				message = err.Error()
			}
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

func classify(err error, ctx echo.Context, logger core.Logger, translator ut.Translator, signalShutdown func()) (int, interface{}) {
	switch origErr := errors.Cause(err).(type) {
	case *echo.HTTPError:
		if origErr == middleware.ErrJWTMissing {
			return http.StatusUnauthorized, origErr.Message
		}
		if origErr.Internal != nil {
			if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
				origErr = herr
			}
		}
		return origErr.Code, origErr.Message
	case validator.ValidationErrors:
		fldErrs := make(map[string]string, len(origErr))
		for _, vErr := range origErr {
			fldErrs[vErr.Field()] = vErr.Translate(translator)
		}
		return http.StatusBadRequest, fldErrs
	case *core.ValidationError:
		if origErr.Fields != nil {
			fldErrs := make(map[string]string, len(origErr.Fields))
			for _, fErr := range origErr.Fields {
				fldErrs[fErr.Field] = fErr.Error
			}
			return http.StatusBadRequest, fldErrs
		}
		return http.StatusBadRequest, origErr.Error()
	}

	// any other error is a server error
	msg := http.StatusText(http.StatusInternalServerError)
	logger.Error(msg, errors.Wrap(err, msg), contextIdentity(ctx))

	// shutting down...
	if core.IsShutdown(err) {
		signalShutdown()
	}
	return http.StatusInternalServerError, msg
}

func contextIdentity(ctx echo.Context) core.Identity {
	if claims, err := getContextClaims(ctx); err == nil {
		return claims.Identity()
	}
	return core.Identity{}
}

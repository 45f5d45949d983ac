package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/aizadzidi/tasmik-windsurf-sub000/core/exam"
	"github.com/aizadzidi/tasmik-windsurf-sub000/core/exam/session"
)

type gradingApi struct {
	sessions *sessionRegistry
	resolver *exam.RosterResolver
	validate *validator.Validate
}

func registerGradingAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	sessions *sessionRegistry,
	resolver *exam.RosterResolver,
	validate *validator.Validate,
) {
	api := gradingApi{
		sessions: sessions,
		resolver: resolver,
		validate: validate,
	}

	sg := g.Group("/sessions", jwt)
	sg.POST("", api.open)

	// session endpoints
	dg := sg.Group("/:id")
	dg.PUT("/selection", api.selectGrid)
	dg.POST("/refresh", api.refresh)
	dg.GET("/rows", api.rows)
	dg.PATCH("/cells", api.editCell)
	dg.POST("/paste", api.paste)
	dg.POST("/save", api.save)
	dg.GET("/status", api.status)
	dg.GET("/completion", api.completion)
	dg.GET("/summary", api.summary)
	dg.DELETE("", api.close)

	eg := g.Group("/exams", jwt, adminMiddleware())
	eg.GET("/:id/roster", api.roster)
}

// Handlers

func (api *gradingApi) open(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	id, _ := api.sessions.open(claims.Subject)
	return ctx.JSON(http.StatusCreated, OpenSessionResponse{ID: id})
}

func (api *gradingApi) selectGrid(ctx echo.Context) error {
	sess, err := api.contextSession(ctx)
	if err != nil {
		return err
	}
	var data SelectionRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SelectionRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	if err = sess.Select(ctx.Request().Context(), data.Key()); err != nil {
		return errors.Wrap(err, "selecting grid")
	}
	return api.sendRows(ctx, sess)
}

func (api *gradingApi) refresh(ctx echo.Context) error {
	sess, err := api.contextSession(ctx)
	if err != nil {
		return err
	}
	if err = sess.Refresh(ctx.Request().Context()); err != nil {
		return errors.Wrap(err, "refreshing grid")
	}
	return api.sendRows(ctx, sess)
}

func (api *gradingApi) rows(ctx echo.Context) error {
	sess, err := api.contextSession(ctx)
	if err != nil {
		return err
	}
	return api.sendRows(ctx, sess)
}

func (api *gradingApi) editCell(ctx echo.Context) error {
	sess, err := api.contextSession(ctx)
	if err != nil {
		return err
	}
	var data CellEditRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CellEditRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	field, err := session.ParseField(data.Field)
	if err != nil {
		return errors.Wrap(err, "parsing field")
	}

	if err = sess.EditCell(data.StudentID, field, data.Value); err != nil {
		return errors.Wrap(err, "editing cell")
	}
	rows, err := sess.Rows()
	if err != nil {
		return errors.Wrap(err, "reading rows")
	}
	for _, row := range rows {
		if row.StudentID == data.StudentID {
			return ctx.JSON(http.StatusOK, row)
		}
	}
	return errHttpStudentNotFound
}

func (api *gradingApi) paste(ctx echo.Context) error {
	sess, err := api.contextSession(ctx)
	if err != nil {
		return err
	}
	var data PasteRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasteRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	n, err := sess.PasteColumn(data.Start, data.Column)
	if err != nil {
		return errors.Wrap(err, "pasting column")
	}
	rows, err := sess.Rows()
	if err != nil {
		return errors.Wrap(err, "reading rows")
	}
	return ctx.JSON(http.StatusOK, PasteResponse{Changed: n, Rows: rows})
}

func (api *gradingApi) save(ctx echo.Context) error {
	sess, err := api.contextSession(ctx)
	if err != nil {
		return err
	}
	if err = sess.SaveNow(ctx.Request().Context()); err != nil {
		return errors.Wrap(err, "saving grid")
	}
	return ctx.JSON(http.StatusOK, sess.Status())
}

func (api *gradingApi) status(ctx echo.Context) error {
	sess, err := api.contextSession(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sess.Status())
}

func (api *gradingApi) completion(ctx echo.Context) error {
	sess, err := api.contextSession(ctx)
	if err != nil {
		return err
	}
	summary, err := sess.Completion()
	if err != nil {
		return errors.Wrap(err, "tracking completion")
	}
	return ctx.JSON(http.StatusOK, summary.Rounded())
}

func (api *gradingApi) summary(ctx echo.Context) error {
	sess, err := api.contextSession(ctx)
	if err != nil {
		return err
	}
	summary, err := sess.Weighted()
	if err != nil {
		return errors.Wrap(err, "computing weighted averages")
	}
	return ctx.JSON(http.StatusOK, summary.Rounded())
}

func (api *gradingApi) close(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if err = api.sessions.close(ctx.Request().Context(), ctx.Param("id"), claims.Subject); err != nil {
		return errors.Wrap(err, "closing session")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *gradingApi) roster(ctx echo.Context) error {
	class := ctx.QueryParam("class")
	if class == "" {
		class = exam.AllClasses
	}
	roster, err := api.resolver.Resolve(ctx.Request().Context(), ctx.Param("id"), class)
	if err != nil {
		return errors.Wrap(err, "resolving roster")
	}
	return ctx.JSON(http.StatusOK, roster)
}

// contextSession returns the session of the `:id` path param, owned by the authenticated teacher.
func (api *gradingApi) contextSession(ctx echo.Context) (*session.Session, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "getting context claims")
	}
	return api.sessions.get(ctx.Param("id"), claims.Subject)
}

func (api *gradingApi) sendRows(ctx echo.Context, sess *session.Session) error {
	rows, err := sess.Rows()
	if err != nil {
		return errors.Wrap(err, "reading rows")
	}
	return ctx.JSON(http.StatusOK, rows)
}

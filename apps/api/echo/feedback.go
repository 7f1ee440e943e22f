package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/minerva/core/course"
	"github.com/trezcool/minerva/core/user"
)

type feedbackApi struct {
	svc      course.ServiceInterface
	usrSvc   user.ServiceInterface
	validate *validator.Validate
}

func registerFeedbackAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := feedbackApi{svc: deps.CourseSvc, usrSvc: deps.UserSvc, validate: deps.Validate}

	g.GET("/contents/:id/comments", api.queryComments, jwt)

	cg := g.Group("/comments", jwt)
	cg.POST("", api.createComment)
	cg.GET("/:id", api.retrieveComment)
	cg.PUT("/:id", api.updateComment)
	cg.DELETE("/:id", api.destroyComment)
	cg.GET("/:id/replies", api.queryReplies)

	ig := g.Group("/interactions", jwt)
	ig.GET("", api.queryInteractions)
	ig.POST("", api.createInteraction)
	ig.GET("/:id", api.retrieveInteraction)
	ig.PUT("/:id", api.updateInteraction)
	ig.DELETE("/:id", api.destroyInteraction)
}

// Comments

func (api *feedbackApi) queryComments(ctx echo.Context) error {
	cmts, err := api.svc.QueryComments(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying comments")
	}
	if cmts == nil {
		cmts = []course.Comment{}
	}
	return ctx.JSON(http.StatusOK, cmts)
}

func (api *feedbackApi) queryReplies(ctx echo.Context) error {
	cmts, err := api.svc.QueryReplies(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying replies")
	}
	if cmts == nil {
		cmts = []course.Comment{}
	}
	return ctx.JSON(http.StatusOK, cmts)
}

func (api *feedbackApi) createComment(ctx echo.Context) error {
	var data course.NewComment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewComment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	author, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	cmt, err := api.svc.CreateComment(ctx.Request().Context(), author, data)
	if err != nil {
		return errors.Wrap(err, "creating comment")
	}
	return ctx.JSON(http.StatusCreated, cmt)
}

func (api *feedbackApi) retrieveComment(ctx echo.Context) error {
	cmt, err := api.svc.GetComment(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding comment by ID")
	}
	return ctx.JSON(http.StatusOK, cmt)
}

func (api *feedbackApi) updateComment(ctx echo.Context) error {
	var data course.UpdateComment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateComment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	cmt, err := api.svc.UpdateComment(ctx.Request().Context(), claims.Subject, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating comment")
	}
	return ctx.JSON(http.StatusOK, cmt)
}

func (api *feedbackApi) destroyComment(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteComment(ctx.Request().Context(), claims.Subject, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting comment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Interactions

// queryInteractions lists the interactions with a content. Students only see their own.
func (api *feedbackApi) queryInteractions(ctx echo.Context) error {
	var query InteractionQuery
	if err := ctx.Bind(&query); err != nil {
		return ctx.JSON(http.StatusOK, []course.Interaction{})
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	filter := course.InteractionFilter{ContentID: query.ContentID, UserID: query.UserID}
	if !claims.IsStaff() {
		filter.UserID = claims.Subject
	}

	itrs, err := api.svc.QueryInteractions(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying interactions")
	}
	if itrs == nil {
		itrs = []course.Interaction{}
	}
	return ctx.JSON(http.StatusOK, itrs)
}

func (api *feedbackApi) createInteraction(ctx echo.Context) error {
	var data course.NewInteraction
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewInteraction")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	itr, err := api.svc.CreateInteraction(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "creating interaction")
	}
	return ctx.JSON(http.StatusCreated, itr)
}

func (api *feedbackApi) retrieveInteraction(ctx echo.Context) error {
	itr, err := api.svc.GetInteraction(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding interaction by ID")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if itr.UserID != claims.Subject && !claims.IsStaff() {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, itr)
}

func (api *feedbackApi) updateInteraction(ctx echo.Context) error {
	var data course.UpdateInteraction
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateInteraction")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	itr, err := api.svc.UpdateInteraction(ctx.Request().Context(), claims.Subject, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating interaction")
	}
	return ctx.JSON(http.StatusOK, itr)
}

func (api *feedbackApi) destroyInteraction(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteInteraction(ctx.Request().Context(), claims.Subject, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting interaction")
	}
	return ctx.NoContent(http.StatusNoContent)
}

type InteractionQuery struct {
	ContentID string `query:"content"`
	UserID    string `query:"user"`
}

package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/minerva/core/course"
	"github.com/trezcool/minerva/core/user"
)

type catalogApi struct {
	svc      course.ServiceInterface
	validate *validator.Validate
}

func registerCatalogAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := catalogApi{svc: deps.CourseSvc, validate: deps.Validate}
	adminOnly := roleMiddleware(user.RoleAdmin)

	for path, kind := range map[string]course.CategoryKind{
		"/course-categories":  course.CourseCategories,
		"/content-categories": course.ContentCategories,
	} {
		cg := g.Group(path, jwt)
		cg.GET("", api.queryCategories(kind))
		cg.POST("", api.createCategory(kind), adminOnly)
		cg.GET("/:id", api.retrieveCategory(kind))
		cg.PUT("/:id", api.updateCategory(kind), adminOnly)
		cg.DELETE("/:id", api.destroyCategory(kind), adminOnly)
	}

	ig := g.Group("/institutions", jwt)
	ig.GET("", api.queryInstitutions)
	ig.POST("", api.createInstitution, adminOnly)
	ig.GET("/:id", api.retrieveInstitution)
	ig.PUT("/:id", api.updateInstitution, adminOnly)
	ig.DELETE("/:id", api.destroyInstitution, adminOnly)
}

// Categories

func (api *catalogApi) queryCategories(kind course.CategoryKind) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		cats, err := api.svc.QueryCategories(ctx.Request().Context(), kind)
		if err != nil {
			return errors.Wrap(err, "querying categories")
		}
		if cats == nil {
			cats = []course.Category{}
		}
		return ctx.JSON(http.StatusOK, cats)
	}
}

func (api *catalogApi) createCategory(kind course.CategoryKind) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		var data course.NewCategory
		if err := ctx.Bind(&data); err != nil {
			return errors.Wrap(err, "binding to NewCategory")
		}
		if err := data.Validate(api.validate); err != nil {
			return err
		}

		cat, err := api.svc.CreateCategory(ctx.Request().Context(), kind, data)
		if err != nil {
			return errors.Wrap(err, "creating category")
		}
		return ctx.JSON(http.StatusCreated, cat)
	}
}

func (api *catalogApi) retrieveCategory(kind course.CategoryKind) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		cat, err := api.svc.GetCategory(ctx.Request().Context(), kind, ctx.Param("id"))
		if err != nil {
			return errors.Wrap(err, "finding category by ID")
		}
		return ctx.JSON(http.StatusOK, cat)
	}
}

func (api *catalogApi) updateCategory(kind course.CategoryKind) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		var data course.NewCategory
		if err := ctx.Bind(&data); err != nil {
			return errors.Wrap(err, "binding to NewCategory")
		}
		if err := data.Validate(api.validate); err != nil {
			return err
		}

		cat, err := api.svc.UpdateCategory(ctx.Request().Context(), kind, ctx.Param("id"), data)
		if err != nil {
			return errors.Wrap(err, "updating category")
		}
		return ctx.JSON(http.StatusOK, cat)
	}
}

func (api *catalogApi) destroyCategory(kind course.CategoryKind) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if err := api.svc.DeleteCategory(ctx.Request().Context(), kind, ctx.Param("id")); err != nil {
			return errors.Wrap(err, "deleting category")
		}
		return ctx.NoContent(http.StatusNoContent)
	}
}

// Institutions

func (api *catalogApi) queryInstitutions(ctx echo.Context) error {
	insts, err := api.svc.QueryInstitutions(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying institutions")
	}
	if insts == nil {
		insts = []course.Institution{}
	}
	return ctx.JSON(http.StatusOK, insts)
}

func (api *catalogApi) createInstitution(ctx echo.Context) error {
	var data course.NewInstitution
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewInstitution")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	inst, err := api.svc.CreateInstitution(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating institution")
	}
	return ctx.JSON(http.StatusCreated, inst)
}

func (api *catalogApi) retrieveInstitution(ctx echo.Context) error {
	inst, err := api.svc.GetInstitution(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding institution by ID")
	}
	return ctx.JSON(http.StatusOK, inst)
}

func (api *catalogApi) updateInstitution(ctx echo.Context) error {
	var data course.NewInstitution
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewInstitution")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	inst, err := api.svc.UpdateInstitution(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating institution")
	}
	return ctx.JSON(http.StatusOK, inst)
}

func (api *catalogApi) destroyInstitution(ctx echo.Context) error {
	if err := api.svc.DeleteInstitution(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting institution")
	}
	return ctx.NoContent(http.StatusNoContent)
}

package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/minerva/core/course"
	"github.com/trezcool/minerva/core/user"
)

type courseApi struct {
	svc      course.ServiceInterface
	validate *validator.Validate
}

func registerCourseAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := courseApi{svc: deps.CourseSvc, validate: deps.Validate}
	staffOnly := roleMiddleware(user.RoleTeacher, user.RoleAdmin)
	adminOnly := roleMiddleware(user.RoleAdmin)

	cg := g.Group("/courses", jwt)
	cg.GET("", api.queryCourses)
	cg.POST("", api.createCourse, staffOnly)
	cg.GET("/alias/:alias", api.retrieveCourseByAlias)
	cg.GET("/:id", api.retrieveCourse)
	cg.PUT("/:id", api.updateCourse, staffOnly)
	cg.DELETE("/:id", api.destroyCourse, adminOnly)
	cg.GET("/:id/modules", api.queryModules)
	cg.POST("/:id/repair", api.repairCourse, adminOnly)

	mg := g.Group("/modules", jwt)
	mg.POST("", api.createModule, staffOnly)
	mg.GET("/:id", api.retrieveModule)
	mg.PUT("/:id", api.updateModule, staffOnly)
	mg.DELETE("/:id", api.destroyModule, staffOnly)
	mg.GET("/:id/contents", api.queryContents)

	ctg := g.Group("/contents", jwt)
	ctg.POST("", api.createContent, staffOnly)
	ctg.GET("/:id", api.retrieveContent)
	ctg.PUT("/:id", api.updateContent, staffOnly)
	ctg.DELETE("/:id", api.destroyContent, staffOnly)
}

// Courses

func (api *courseApi) queryCourses(ctx echo.Context) error {
	filter := new(course.CourseFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []course.Course{})
	}
	filter.Clean()

	// students only see active courses
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if !claims.IsStaff() {
		active := true
		filter.Active = &active
	}

	ordering := new(Ordering)
	if err := ordering.Bind(ctx, course.CourseOrderingFields); err != nil {
		return err
	}

	courses, err := api.svc.QueryCourses(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) createCourse(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	c, err := api.svc.CreateCourse(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *courseApi) retrieveCourse(ctx echo.Context) error {
	c, err := api.svc.GetCourse(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding course by ID")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) retrieveCourseByAlias(ctx echo.Context) error {
	c, err := api.svc.GetCourseByAlias(ctx.Request().Context(), ctx.Param("alias"))
	if err != nil {
		return errors.Wrap(err, "finding course by alias")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) updateCourse(ctx echo.Context) error {
	orig, err := api.svc.GetCourse(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding course by ID")
	}

	var data course.UpdateCourse
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	if err = data.Validate(ctx.Request().Context(), orig, api.validate, api.svc); err != nil {
		return err
	}

	c, err := api.svc.UpdateCourse(ctx.Request().Context(), orig.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) destroyCourse(ctx echo.Context) error {
	if err := api.svc.DeleteCourse(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) repairCourse(ctx echo.Context) error {
	report, err := api.svc.Repair(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "repairing course")
	}
	return ctx.JSON(http.StatusOK, report)
}

// Modules

func (api *courseApi) queryModules(ctx echo.Context) error {
	mods, err := api.svc.QueryModules(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying modules")
	}
	if mods == nil {
		mods = []course.Module{}
	}
	return ctx.JSON(http.StatusOK, mods)
}

func (api *courseApi) createModule(ctx echo.Context) error {
	var data course.NewModule
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewModule")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	mod, err := api.svc.CreateModule(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating module")
	}
	return ctx.JSON(http.StatusCreated, mod)
}

func (api *courseApi) retrieveModule(ctx echo.Context) error {
	mod, err := api.svc.GetModule(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding module by ID")
	}
	return ctx.JSON(http.StatusOK, mod)
}

func (api *courseApi) updateModule(ctx echo.Context) error {
	var data course.UpdateModule
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateModule")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	mod, err := api.svc.UpdateModule(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating module")
	}
	return ctx.JSON(http.StatusOK, mod)
}

func (api *courseApi) destroyModule(ctx echo.Context) error {
	if err := api.svc.DeleteModule(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting module")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Contents

func (api *courseApi) queryContents(ctx echo.Context) error {
	cnts, err := api.svc.QueryContents(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying contents")
	}
	if cnts == nil {
		cnts = []course.Content{}
	}
	return ctx.JSON(http.StatusOK, cnts)
}

func (api *courseApi) createContent(ctx echo.Context) error {
	var data course.NewContent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewContent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	cnt, err := api.svc.CreateContent(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating content")
	}
	return ctx.JSON(http.StatusCreated, cnt)
}

func (api *courseApi) retrieveContent(ctx echo.Context) error {
	cnt, err := api.svc.GetContent(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding content by ID")
	}
	return ctx.JSON(http.StatusOK, cnt)
}

func (api *courseApi) updateContent(ctx echo.Context) error {
	var data course.UpdateContent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateContent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	cnt, err := api.svc.UpdateContent(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating content")
	}
	return ctx.JSON(http.StatusOK, cnt)
}

func (api *courseApi) destroyContent(ctx echo.Context) error {
	if err := api.svc.DeleteContent(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting content")
	}
	return ctx.NoContent(http.StatusNoContent)
}

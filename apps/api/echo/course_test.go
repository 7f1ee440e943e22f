package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/minerva/core/course"
	"github.com/trezcool/minerva/core/user"
	"github.com/trezcool/minerva/testutil"
)

func Test_courseApi_courses(t *testing.T) {
	app := newTestApp(t)
	admin := app.createUser(t, "admin", user.RoleAdmin)
	teacher := app.createUser(t, "teacher", user.RoleTeacher)
	student := app.createUser(t, "student", user.RoleStudent)

	t.Run("students cannot create courses", func(t *testing.T) {
		rec := app.do(t, http.MethodPost, "/v1/courses", app.token(t, student), course.NewCourse{Name: "Go", Alias: "go"})
		requireStatus(t, rec, http.StatusForbidden)
	})

	var golang course.Course
	t.Run("created", func(t *testing.T) {
		rec := app.do(t, http.MethodPost, "/v1/courses", app.token(t, teacher), course.NewCourse{
			Name: "  Go Programming ", Alias: "GO-101", Description: "Learn Go.",
		})
		requireStatus(t, rec, http.StatusCreated)
		decode(t, rec, &golang)
		assert.Equal(t, "Go Programming", golang.Name)
		assert.Equal(t, "go-101", golang.Alias)
		assert.True(t, golang.Active)
		assert.Zero(t, golang.ModuleCount)
	})

	t.Run("invalid alias", func(t *testing.T) {
		rec := app.do(t, http.MethodPost, "/v1/courses", app.token(t, teacher), course.NewCourse{Name: "Rust", Alias: "rust lang"})
		requireStatus(t, rec, http.StatusBadRequest)
		var fields map[string]string
		decode(t, rec, &fields)
		assert.Contains(t, fields, "alias")
	})

	t.Run("duplicate alias", func(t *testing.T) {
		rec := app.do(t, http.MethodPost, "/v1/courses", app.token(t, teacher), course.NewCourse{Name: "Golang", Alias: "go-101"})
		requireStatus(t, rec, http.StatusBadRequest)
		var fields map[string]string
		decode(t, rec, &fields)
		assert.Equal(t, course.ErrCourseAliasExists.Error(), fields["alias"])
	})

	inactive := false
	rec := app.do(t, http.MethodPost, "/v1/courses", app.token(t, teacher), course.NewCourse{Name: "Draft", Alias: "draft", Active: &inactive})
	requireStatus(t, rec, http.StatusCreated)

	t.Run("students only see active courses", func(t *testing.T) {
		var courses []course.Course
		rec := app.do(t, http.MethodGet, "/v1/courses", app.token(t, student), nil)
		requireStatus(t, rec, http.StatusOK)
		decode(t, rec, &courses)
		require.Len(t, courses, 1)
		assert.Equal(t, golang.ID, courses[0].ID)

		rec = app.do(t, http.MethodGet, "/v1/courses?ordering=name", app.token(t, teacher), nil)
		requireStatus(t, rec, http.StatusOK)
		decode(t, rec, &courses)
		require.Len(t, courses, 2)
		assert.Equal(t, "Draft", courses[0].Name)

		rec = app.do(t, http.MethodGet, "/v1/courses?ordering=name,bogus", app.token(t, teacher), nil)
		requireStatus(t, rec, http.StatusBadRequest)
	})

	t.Run("retrieve", func(t *testing.T) {
		var c course.Course
		rec := app.do(t, http.MethodGet, "/v1/courses/alias/GO-101", app.token(t, student), nil)
		requireStatus(t, rec, http.StatusOK)
		decode(t, rec, &c)
		assert.Equal(t, golang.ID, c.ID)

		rec = app.do(t, http.MethodGet, "/v1/courses/"+testutil.PDFCategoryID, app.token(t, student), nil)
		requireStatus(t, rec, http.StatusNotFound)
		assert.Equal(t, course.ErrCourseNotFound.Error(), errorOf(t, rec))
	})

	t.Run("update", func(t *testing.T) {
		desc := "Learn Go, the fun way."
		rec := app.do(t, http.MethodPut, "/v1/courses/"+golang.ID, app.token(t, teacher), course.UpdateCourse{Description: &desc})
		requireStatus(t, rec, http.StatusOK)
		var c course.Course
		decode(t, rec, &c)
		assert.Equal(t, golang.Name, c.Name)
		assert.Equal(t, desc, c.Description)
	})

	t.Run("only admins delete courses", func(t *testing.T) {
		rec := app.do(t, http.MethodDelete, "/v1/courses/"+golang.ID, app.token(t, teacher), nil)
		requireStatus(t, rec, http.StatusForbidden)
		rec = app.do(t, http.MethodDelete, "/v1/courses/"+golang.ID, app.token(t, admin), nil)
		requireStatus(t, rec, http.StatusNoContent)
		rec = app.do(t, http.MethodGet, "/v1/courses/"+golang.ID, app.token(t, admin), nil)
		requireStatus(t, rec, http.StatusNotFound)
	})
}

func Test_courseApi_modules(t *testing.T) {
	app := newTestApp(t)
	admin := app.createUser(t, "admin", user.RoleAdmin)
	teacher := app.createUser(t, "teacher", user.RoleTeacher)
	token := app.token(t, teacher)
	c := testutil.CreateCourse(t, app.courseSvc, "Go", "go")

	orders := func(t *testing.T) []int {
		rec := app.do(t, http.MethodGet, "/v1/courses/"+c.ID+"/modules", token, nil)
		requireStatus(t, rec, http.StatusOK)
		var mods []course.Module
		decode(t, rec, &mods)
		res := make([]int, 0, len(mods))
		for _, m := range mods {
			res = append(res, m.Order)
		}
		return res
	}

	mods := make([]course.Module, 0, 3)
	for _, name := range []string{"Basics", "Types", "Concurrency"} {
		rec := app.do(t, http.MethodPost, "/v1/modules", token, course.NewModule{CourseID: c.ID, Name: name})
		requireStatus(t, rec, http.StatusCreated)
		var mod course.Module
		decode(t, rec, &mod)
		mods = append(mods, mod)
	}
	assert.Equal(t, []int{1, 2, 3}, orders(t))

	t.Run("missing name", func(t *testing.T) {
		rec := app.do(t, http.MethodPost, "/v1/modules", token, course.NewModule{CourseID: c.ID})
		requireStatus(t, rec, http.StatusBadRequest)
		var fields map[string]string
		decode(t, rec, &fields)
		assert.Equal(t, "this field is required", fields["name"])
	})

	t.Run("order taken", func(t *testing.T) {
		rec := app.do(t, http.MethodPost, "/v1/modules", token, course.NewModule{CourseID: c.ID, Name: "Dup", Order: 2})
		requireStatus(t, rec, http.StatusConflict)
		assert.Equal(t, []int{1, 2, 3}, orders(t))
	})

	t.Run("unknown course", func(t *testing.T) {
		rec := app.do(t, http.MethodPost, "/v1/modules", token, course.NewModule{CourseID: testutil.PDFCategoryID, Name: "Lost"})
		requireStatus(t, rec, http.StatusBadRequest)
		var fields map[string]string
		decode(t, rec, &fields)
		assert.Contains(t, fields, "course_id")
	})

	t.Run("update keeps the order", func(t *testing.T) {
		rec := app.do(t, http.MethodPut, "/v1/modules/"+mods[1].ID, token, course.UpdateModule{Name: "Types & Values"})
		requireStatus(t, rec, http.StatusOK)
		var mod course.Module
		decode(t, rec, &mod)
		assert.Equal(t, "Types & Values", mod.Name)
		assert.Equal(t, 2, mod.Order)
	})

	t.Run("delete compacts", func(t *testing.T) {
		rec := app.do(t, http.MethodDelete, "/v1/modules/"+mods[0].ID, token, nil)
		requireStatus(t, rec, http.StatusNoContent)
		assert.Equal(t, []int{1, 2}, orders(t))

		rec = app.do(t, http.MethodGet, "/v1/modules/"+mods[2].ID, token, nil)
		requireStatus(t, rec, http.StatusOK)
		var mod course.Module
		decode(t, rec, &mod)
		assert.Equal(t, 2, mod.Order)

		var got course.Course
		rec = app.do(t, http.MethodGet, "/v1/courses/"+c.ID, token, nil)
		requireStatus(t, rec, http.StatusOK)
		decode(t, rec, &got)
		assert.Equal(t, 2, got.ModuleCount)
	})

	t.Run("repair", func(t *testing.T) {
		rec := app.do(t, http.MethodPost, "/v1/courses/"+c.ID+"/repair", token, nil)
		requireStatus(t, rec, http.StatusForbidden)

		rec = app.do(t, http.MethodPost, "/v1/courses/"+c.ID+"/repair", app.token(t, admin), nil)
		requireStatus(t, rec, http.StatusOK)
		var report course.RepairReport
		decode(t, rec, &report)
		assert.Equal(t, course.RepairReport{Courses: 1, Moved: 0}, report)
	})
}

func Test_courseApi_contents(t *testing.T) {
	app := newTestApp(t)
	teacher := app.createUser(t, "teacher", user.RoleTeacher)
	student := app.createUser(t, "student", user.RoleStudent)
	token := app.token(t, teacher)
	c := testutil.CreateCourse(t, app.courseSvc, "Go", "go")
	mod := testutil.CreateModules(t, app.courseSvc, c.ID, 1)[0]

	t.Run("students cannot create contents", func(t *testing.T) {
		rec := app.do(t, http.MethodPost, "/v1/contents", app.token(t, student),
			testutil.NewContentOf(mod.ID, testutil.PDFCategoryID, "intro"))
		requireStatus(t, rec, http.StatusForbidden)
	})

	var pdf, quiz course.Content
	rec := app.do(t, http.MethodPost, "/v1/contents", token, testutil.NewContentOf(mod.ID, testutil.PDFCategoryID, "intro"))
	requireStatus(t, rec, http.StatusCreated)
	decode(t, rec, &pdf)
	assert.Equal(t, "pdf", pdf.CategoryName)
	assert.Equal(t, 1, pdf.Order)

	rec = app.do(t, http.MethodPost, "/v1/contents", token, testutil.NewContentOf(mod.ID, testutil.QuizCategoryID, "quiz"))
	requireStatus(t, rec, http.StatusCreated)
	decode(t, rec, &quiz)
	assert.Equal(t, 2, quiz.Order)

	t.Run("invalid payload", func(t *testing.T) {
		nc := testutil.NewContentOf(mod.ID, testutil.VideoCategoryID, "clip")
		nc.Body = "not a url"
		rec := app.do(t, http.MethodPost, "/v1/contents", token, nc)
		requireStatus(t, rec, http.StatusBadRequest)
	})

	t.Run("listing", func(t *testing.T) {
		rec := app.do(t, http.MethodGet, "/v1/modules/"+mod.ID+"/contents", app.token(t, student), nil)
		requireStatus(t, rec, http.StatusOK)
		var cnts []course.Content
		decode(t, rec, &cnts)
		require.Len(t, cnts, 2)
		assert.Equal(t, []string{pdf.ID, quiz.ID}, []string{cnts[0].ID, cnts[1].ID})

		var m course.Module
		rec = app.do(t, http.MethodGet, "/v1/modules/"+mod.ID, token, nil)
		requireStatus(t, rec, http.StatusOK)
		decode(t, rec, &m)
		assert.Equal(t, 1, m.InstructionalItemCount)
		assert.Equal(t, 1, m.AssessmentItemCount)
	})

	t.Run("update", func(t *testing.T) {
		name := "Introduction"
		rec := app.do(t, http.MethodPut, "/v1/contents/"+pdf.ID, token, course.UpdateContent{Name: name})
		requireStatus(t, rec, http.StatusOK)
		var cnt course.Content
		decode(t, rec, &cnt)
		assert.Equal(t, name, cnt.Name)
		assert.Equal(t, 1, cnt.Order)
	})

	t.Run("delete compacts", func(t *testing.T) {
		rec := app.do(t, http.MethodDelete, "/v1/contents/"+pdf.ID, token, nil)
		requireStatus(t, rec, http.StatusNoContent)

		var cnt course.Content
		rec = app.do(t, http.MethodGet, "/v1/contents/"+quiz.ID, token, nil)
		requireStatus(t, rec, http.StatusOK)
		decode(t, rec, &cnt)
		assert.Equal(t, 1, cnt.Order)

		rec = app.do(t, http.MethodGet, "/v1/contents/"+pdf.ID, token, nil)
		requireStatus(t, rec, http.StatusNotFound)
	})
}

func Test_catalogApi(t *testing.T) {
	app := newTestApp(t)
	admin := app.createUser(t, "admin", user.RoleAdmin)
	teacher := app.createUser(t, "teacher", user.RoleTeacher)

	t.Run("content categories are seeded", func(t *testing.T) {
		rec := app.do(t, http.MethodGet, "/v1/content-categories", app.token(t, teacher), nil)
		requireStatus(t, rec, http.StatusOK)
		var cats []course.Category
		decode(t, rec, &cats)
		names := make([]string, 0, len(cats))
		for _, cat := range cats {
			names = append(names, cat.Name)
		}
		assert.Subset(t, names, []string{"pdf", "video", "multiple-choice-quiz", "code-exercise"})
	})

	t.Run("only admins manage categories", func(t *testing.T) {
		rec := app.do(t, http.MethodPost, "/v1/course-categories", app.token(t, teacher), course.NewCategory{Name: "Science"})
		requireStatus(t, rec, http.StatusForbidden)
	})

	var science course.Category
	t.Run("course categories", func(t *testing.T) {
		rec := app.do(t, http.MethodPost, "/v1/course-categories", app.token(t, admin), course.NewCategory{Name: "Science"})
		requireStatus(t, rec, http.StatusCreated)
		decode(t, rec, &science)
		assert.Equal(t, "science", science.Name)

		rec = app.do(t, http.MethodPost, "/v1/course-categories", app.token(t, admin), course.NewCategory{Name: "SCIENCE"})
		requireStatus(t, rec, http.StatusConflict)

		// a course category is not a content category
		rec = app.do(t, http.MethodGet, "/v1/content-categories/"+science.ID, app.token(t, teacher), nil)
		requireStatus(t, rec, http.StatusNotFound)
	})

	t.Run("content categories in use", func(t *testing.T) {
		c := testutil.CreateCourse(t, app.courseSvc, "Go", "go")
		mod := testutil.CreateModules(t, app.courseSvc, c.ID, 1)[0]
		testutil.CreateContent(t, app.courseSvc, mod.ID, testutil.PDFCategoryID, "intro")

		rec := app.do(t, http.MethodDelete, "/v1/content-categories/"+testutil.PDFCategoryID, app.token(t, admin), nil)
		requireStatus(t, rec, http.StatusConflict)
		assert.Equal(t, course.ErrCategoryInUse.Error(), errorOf(t, rec))
	})

	t.Run("institutions", func(t *testing.T) {
		rec := app.do(t, http.MethodPost, "/v1/institutions", app.token(t, admin), course.NewInstitution{Name: "MIT", URL: "not a url"})
		requireStatus(t, rec, http.StatusBadRequest)

		rec = app.do(t, http.MethodPost, "/v1/institutions", app.token(t, admin), course.NewInstitution{Name: "MIT", URL: "https://mit.edu"})
		requireStatus(t, rec, http.StatusCreated)
		var inst course.Institution
		decode(t, rec, &inst)

		rec = app.do(t, http.MethodGet, "/v1/institutions", app.token(t, teacher), nil)
		requireStatus(t, rec, http.StatusOK)
		var insts []course.Institution
		decode(t, rec, &insts)
		assert.Equal(t, []course.Institution{inst}, insts)

		rec = app.do(t, http.MethodDelete, "/v1/institutions/"+inst.ID, app.token(t, admin), nil)
		requireStatus(t, rec, http.StatusNoContent)
	})
}

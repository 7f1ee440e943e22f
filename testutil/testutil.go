// Package testutil holds the fixtures shared by the tests of the storage, API and admin packages.
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/minerva/core"
	"github.com/trezcool/minerva/core/course"
	"github.com/trezcool/minerva/core/user"
	logsvc "github.com/trezcool/minerva/services/logger"
	"github.com/trezcool/minerva/storage/database"
)

// Content category IDs seeded by the migrations.
const (
	PDFCategoryID          = "6b1f3d1e-8a5c-4a43-9a0e-0c1f1d1a0001"
	VideoCategoryID        = "6b1f3d1e-8a5c-4a43-9a0e-0c1f1d1a0002"
	QuizCategoryID         = "6b1f3d1e-8a5c-4a43-9a0e-0c1f1d1a0003"
	CodeExerciseCategoryID = "6b1f3d1e-8a5c-4a43-9a0e-0c1f1d1a0004"
)

// NewLogger returns a silent logger. Rollbar stays disabled in test mode.
func NewLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
}

// PrepareDB opens a private in-memory sqlite database with all migrations applied.
// It is closed when the test ends.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := database.SQLiteDSN(fmt.Sprintf("testdb_%s", uuid.NewString()), "mode=memory", "cache=shared")
	db, err := database.OpenSQLite(dsn)
	if err != nil {
		t.Fatalf("PrepareDB() failed opening database: %v", err)
	}
	if err = database.Migrate(db); err != nil {
		_ = db.Close()
		t.Fatalf("PrepareDB() failed migrating database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	role string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		ID:        uuid.NewString(),
		Name:      name,
		Username:  null.NewString(uname, uname != ""),
		Email:     email,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateCourse(t *testing.T, svc course.ServiceInterface, name, alias string) course.Course {
	t.Helper()

	c, err := svc.CreateCourse(context.Background(), course.NewCourse{Name: name, Alias: alias})
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return c
}

// CreateModules appends n modules to a course.
func CreateModules(t *testing.T, svc course.ServiceInterface, courseID string, n int) []course.Module {
	t.Helper()

	mods := make([]course.Module, 0, n)
	for i := 0; i < n; i++ {
		mod, err := svc.CreateModule(context.Background(), course.NewModule{CourseID: courseID, Name: fmt.Sprintf("Module %d", i+1)})
		if err != nil {
			t.Fatalf("CreateModules() failed: %v", err)
		}
		mods = append(mods, mod)
	}
	return mods
}

// NewContentOf returns a valid NewContent of the given category, appended to moduleID.
func NewContentOf(moduleID, categoryID, name string) course.NewContent {
	nc := course.NewContent{ModuleID: moduleID, CategoryID: categoryID, Name: name, Body: "https://example.com/" + name}
	switch categoryID {
	case CodeExerciseCategoryID:
		nc.Metadata = json.RawMessage(`{"languages": ["go", "python"]}`)
	default:
		nc.Metadata = json.RawMessage(`10`)
	}
	return nc
}

func CreateContent(t *testing.T, svc course.ServiceInterface, moduleID, categoryID, name string) course.Content {
	t.Helper()

	cnt, err := svc.CreateContent(context.Background(), NewContentOf(moduleID, categoryID, name))
	if err != nil {
		t.Fatalf("CreateContent() failed: %v", err)
	}
	return cnt
}

package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/minerva/core"
	"github.com/trezcool/minerva/core/course"
)

const (
	modulesTable           = "modules"
	contentsTable          = "contents"
	contentCategoriesTable = "content_categories"
)

var (
	moduleColumns = []string{
		"id", "course_id", "name", "description", "order_index",
		"instructional_item_count", "assessment_item_count", "created_at", "updated_at",
	}

	contentColumns = []string{
		"c.id", "c.module_id", "m.course_id", "c.category_id", "cc.name AS category_name", "c.name", "c.description",
		"c.order_index", "c.review_count", "c.comment_count", "c.rating", "c.metadata", "c.body",
		"c.created_at", "c.updated_at",
	}
)

type moduleRow struct {
	ID                     string    `db:"id"`
	CourseID               string    `db:"course_id"`
	Name                   string    `db:"name"`
	Description            string    `db:"description"`
	Order                  int       `db:"order_index"`
	InstructionalItemCount int       `db:"instructional_item_count"`
	AssessmentItemCount    int       `db:"assessment_item_count"`
	CreatedAt              time.Time `db:"created_at"`
	UpdatedAt              time.Time `db:"updated_at"`
}

type contentRow struct {
	ID           string      `db:"id"`
	ModuleID     string      `db:"module_id"`
	CourseID     string      `db:"course_id"`
	CategoryID   string      `db:"category_id"`
	CategoryName string      `db:"category_name"`
	Name         string      `db:"name"`
	Description  string      `db:"description"`
	Order        int         `db:"order_index"`
	ReviewCount  int         `db:"review_count"`
	CommentCount int         `db:"comment_count"`
	Rating       float64     `db:"rating"`
	Metadata     null.String `db:"metadata"`
	Body         string      `db:"body"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
}

// Modules

func (repo courseRepository) fromModuleRow(r moduleRow) course.Module {
	return course.Module{
		ID:                     r.ID,
		CourseID:               r.CourseID,
		Name:                   r.Name,
		Description:            r.Description,
		Order:                  r.Order,
		InstructionalItemCount: r.InstructionalItemCount,
		AssessmentItemCount:    r.AssessmentItemCount,
		CreatedAt:              r.CreatedAt.UTC(),
		UpdatedAt:              r.UpdatedAt.UTC(),
	}
}

func (repo courseRepository) CreateModule(ctx context.Context, m course.Module, exec ...core.DBExecutor) (course.Module, error) {
	exe := repo.getExec(exec)
	q := builder(exe).Insert(modulesTable).SetMap(map[string]interface{}{
		"id":          m.ID,
		"course_id":   m.CourseID,
		"name":        m.Name,
		"description": m.Description,
		"order_index": m.Order,
		"created_at":  m.CreatedAt.UTC(),
		"updated_at":  m.UpdatedAt.UTC(),
	})
	if _, err := execute(ctx, exe, q); err != nil {
		return course.Module{}, trapUniqueErr(err, course.ErrOrderTaken, "inserting module")
	}
	return m, nil
}

func (repo courseRepository) QueryModules(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]course.Module, error) {
	exe := repo.getExec(exec)
	q := builder(exe).Select(moduleColumns...).From(modulesTable).Where(sq.Eq{"course_id": courseID}).OrderBy("order_index ASC")

	var rows []moduleRow
	if err := selectAll(ctx, exe, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying modules")
	}
	mods := make([]course.Module, 0, len(rows))
	for _, r := range rows {
		mods = append(mods, repo.fromModuleRow(r))
	}
	return mods, nil
}

func (repo courseRepository) GetModule(ctx context.Context, id string, exec ...core.DBExecutor) (course.Module, error) {
	if !isUUID(id) {
		return course.Module{}, course.ErrModuleNotFound
	}
	exe := repo.getExec(exec)
	var row moduleRow
	if err := getOne(ctx, exe, &row, builder(exe).Select(moduleColumns...).From(modulesTable).Where(sq.Eq{"id": id})); err != nil {
		return course.Module{}, trapNoRowsErr(err, course.ErrModuleNotFound, "finding module")
	}
	return repo.fromModuleRow(row), nil
}

func (repo courseRepository) UpdateModule(ctx context.Context, m course.Module, exec ...core.DBExecutor) (course.Module, error) {
	exe := repo.getExec(exec)
	q := builder(exe).Update(modulesTable).
		Set("name", m.Name).
		Set("description", m.Description).
		Set("updated_at", m.UpdatedAt.UTC()).
		Where(sq.Eq{"id": m.ID})
	n, err := execute(ctx, exe, q)
	if err != nil {
		return course.Module{}, errors.Wrap(err, "updating module")
	}
	if n == 0 {
		return course.Module{}, course.ErrModuleNotFound
	}
	return m, nil
}

func (repo courseRepository) DeleteModule(ctx context.Context, id string, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	n, err := execute(ctx, exe, builder(exe).Delete(modulesTable).Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting module")
	}
	if n == 0 {
		return course.ErrModuleNotFound
	}
	return nil
}

// Contents

func (repo courseRepository) fromContentRow(r contentRow) course.Content {
	cnt := course.Content{
		ID:           r.ID,
		ModuleID:     r.ModuleID,
		CourseID:     r.CourseID,
		CategoryID:   r.CategoryID,
		CategoryName: r.CategoryName,
		Name:         r.Name,
		Description:  r.Description,
		Order:        r.Order,
		ReviewCount:  r.ReviewCount,
		CommentCount: r.CommentCount,
		Rating:       r.Rating,
		Body:         r.Body,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
	if r.Metadata.Valid {
		cnt.Metadata = json.RawMessage(r.Metadata.String)
	}
	return cnt
}

func metadataValue(meta json.RawMessage) null.String {
	if len(meta) == 0 || string(meta) == "null" {
		return null.String{}
	}
	return null.StringFrom(string(meta))
}

func (repo courseRepository) selectContents(exe core.DBExecutor) sq.SelectBuilder {
	return builder(exe).
		Select(contentColumns...).
		From(contentsTable + " c").
		Join(modulesTable + " m ON m.id = c.module_id").
		Join(contentCategoriesTable + " cc ON cc.id = c.category_id")
}

func (repo courseRepository) CreateContent(ctx context.Context, c course.Content, exec ...core.DBExecutor) (course.Content, error) {
	exe := repo.getExec(exec)
	q := builder(exe).Insert(contentsTable).SetMap(map[string]interface{}{
		"id":          c.ID,
		"module_id":   c.ModuleID,
		"category_id": c.CategoryID,
		"name":        c.Name,
		"description": c.Description,
		"order_index": c.Order,
		"metadata":    metadataValue(c.Metadata),
		"body":        c.Body,
		"created_at":  c.CreatedAt.UTC(),
		"updated_at":  c.UpdatedAt.UTC(),
	})
	if _, err := execute(ctx, exe, q); err != nil {
		return course.Content{}, trapUniqueErr(err, course.ErrOrderTaken, "inserting content")
	}
	return c, nil
}

func (repo courseRepository) QueryContents(ctx context.Context, moduleID string, exec ...core.DBExecutor) ([]course.Content, error) {
	exe := repo.getExec(exec)
	q := repo.selectContents(exe).Where(sq.Eq{"c.module_id": moduleID}).OrderBy("c.order_index ASC")

	var rows []contentRow
	if err := selectAll(ctx, exe, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying contents")
	}
	cnts := make([]course.Content, 0, len(rows))
	for _, r := range rows {
		cnts = append(cnts, repo.fromContentRow(r))
	}
	return cnts, nil
}

func (repo courseRepository) GetContent(ctx context.Context, id string, exec ...core.DBExecutor) (course.Content, error) {
	if !isUUID(id) {
		return course.Content{}, course.ErrContentNotFound
	}
	exe := repo.getExec(exec)
	var row contentRow
	if err := getOne(ctx, exe, &row, repo.selectContents(exe).Where(sq.Eq{"c.id": id})); err != nil {
		return course.Content{}, trapNoRowsErr(err, course.ErrContentNotFound, "finding content")
	}
	return repo.fromContentRow(row), nil
}

func (repo courseRepository) UpdateContent(ctx context.Context, c course.Content, exec ...core.DBExecutor) (course.Content, error) {
	exe := repo.getExec(exec)
	q := builder(exe).Update(contentsTable).
		SetMap(map[string]interface{}{
			"category_id": c.CategoryID,
			"name":        c.Name,
			"description": c.Description,
			"metadata":    metadataValue(c.Metadata),
			"body":        c.Body,
			"updated_at":  c.UpdatedAt.UTC(),
		}).
		Where(sq.Eq{"id": c.ID})
	n, err := execute(ctx, exe, q)
	if err != nil {
		return course.Content{}, errors.Wrap(err, "updating content")
	}
	if n == 0 {
		return course.Content{}, course.ErrContentNotFound
	}
	return c, nil
}

func (repo courseRepository) DeleteContent(ctx context.Context, id string, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	n, err := execute(ctx, exe, builder(exe).Delete(contentsTable).Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting content")
	}
	if n == 0 {
		return course.ErrContentNotFound
	}
	return nil
}

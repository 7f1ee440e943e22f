package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/minerva/core"
	"github.com/trezcool/minerva/core/aggregate"
	"github.com/trezcool/minerva/core/course"
	"github.com/trezcool/minerva/core/ordering"
)

const (
	coursesTable      = "courses"
	institutionsTable = "institutions"
)

var (
	categoryTables = map[course.CategoryKind]string{
		course.CourseCategories:  "course_categories",
		course.ContentCategories: "content_categories",
	}

	courseColumns = []string{
		"id", "category_id", "institution_id", "name", "alias", "active", "description",
		"module_count", "assessment_item_count", "review_count", "comment_count", "rating",
		"created_at", "updated_at",
	}

	courseOrderings = map[string]string{
		"name":         "name",
		"alias":        "alias",
		"created_at":   "created_at",
		"updated_at":   "updated_at",
		"rating":       "rating",
		"review_count": "review_count",
		"module_count": "module_count",
	}

	institutionColumns = []string{"id", "name", "description", "url", "image", "icon"}
)

type courseRow struct {
	ID                  string      `db:"id"`
	CategoryID          null.String `db:"category_id"`
	InstitutionID       null.String `db:"institution_id"`
	Name                string      `db:"name"`
	Alias               string      `db:"alias"`
	Active              bool        `db:"active"`
	Description         string      `db:"description"`
	ModuleCount         int         `db:"module_count"`
	AssessmentItemCount int         `db:"assessment_item_count"`
	ReviewCount         int         `db:"review_count"`
	CommentCount        int         `db:"comment_count"`
	Rating              float64     `db:"rating"`
	CreatedAt           time.Time   `db:"created_at"`
	UpdatedAt           time.Time   `db:"updated_at"`
}

// editable returns the columns a course update may write.
func (r courseRow) editable() map[string]interface{} {
	return map[string]interface{}{
		"category_id":    r.CategoryID,
		"institution_id": r.InstitutionID,
		"name":           r.Name,
		"alias":          r.Alias,
		"active":         r.Active,
		"description":    r.Description,
		"updated_at":     r.UpdatedAt,
	}
}

type institutionRow struct {
	ID          string `db:"id"`
	Name        string `db:"name"`
	Description string `db:"description"`
	URL         string `db:"url"`
	Image       string `db:"image"`
	Icon        string `db:"icon"`
}

type courseRepository struct {
	baseRepository
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(exec core.DBExecutor) *courseRepository {
	return &courseRepository{baseRepository{exec: exec}}
}

func (repo courseRepository) ModuleSequence(exec core.DBExecutor) ordering.Collection {
	return newModuleSequence(repo.getExec([]core.DBExecutor{exec}))
}

func (repo courseRepository) ContentSequence(exec core.DBExecutor) ordering.Collection {
	return newContentSequence(repo.getExec([]core.DBExecutor{exec}))
}

func (repo courseRepository) Aggregates(exec core.DBExecutor) aggregate.Store {
	return newAggregateStore(repo.getExec([]core.DBExecutor{exec}))
}

// Categories

func categoryTable(kind course.CategoryKind) (string, error) {
	table, ok := categoryTables[kind]
	if !ok {
		return "", errors.Errorf("unknown category kind %q", kind)
	}
	return table, nil
}

func (repo courseRepository) CreateCategory(ctx context.Context, kind course.CategoryKind, cat course.Category, exec ...core.DBExecutor) (course.Category, error) {
	table, err := categoryTable(kind)
	if err != nil {
		return course.Category{}, err
	}
	exe := repo.getExec(exec)
	q := builder(exe).Insert(table).Columns("id", "name").Values(cat.ID, cat.Name)
	if _, err = execute(ctx, exe, q); err != nil {
		return course.Category{}, trapUniqueErr(err, course.ErrCategoryExists, "inserting category")
	}
	return cat, nil
}

func (repo courseRepository) QueryCategories(ctx context.Context, kind course.CategoryKind, exec ...core.DBExecutor) ([]course.Category, error) {
	table, err := categoryTable(kind)
	if err != nil {
		return nil, err
	}
	exe := repo.getExec(exec)
	cats := make([]course.Category, 0)
	if err = selectAll(ctx, exe, &cats, builder(exe).Select("id", "name").From(table).OrderBy("name ASC")); err != nil {
		return nil, errors.Wrap(err, "querying categories")
	}
	return cats, nil
}

func (repo courseRepository) GetCategory(ctx context.Context, kind course.CategoryKind, id string, exec ...core.DBExecutor) (course.Category, error) {
	table, err := categoryTable(kind)
	if err != nil {
		return course.Category{}, err
	}
	if !isUUID(id) {
		return course.Category{}, course.ErrCategoryNotFound
	}
	exe := repo.getExec(exec)
	var cat course.Category
	if err = getOne(ctx, exe, &cat, builder(exe).Select("id", "name").From(table).Where(sq.Eq{"id": id})); err != nil {
		return course.Category{}, trapNoRowsErr(err, course.ErrCategoryNotFound, "finding category")
	}
	return cat, nil
}

func (repo courseRepository) UpdateCategory(ctx context.Context, kind course.CategoryKind, cat course.Category, exec ...core.DBExecutor) (course.Category, error) {
	table, err := categoryTable(kind)
	if err != nil {
		return course.Category{}, err
	}
	exe := repo.getExec(exec)
	n, err := execute(ctx, exe, builder(exe).Update(table).Set("name", cat.Name).Where(sq.Eq{"id": cat.ID}))
	if err != nil {
		return course.Category{}, trapUniqueErr(err, course.ErrCategoryExists, "updating category")
	}
	if n == 0 {
		return course.Category{}, course.ErrCategoryNotFound
	}
	return cat, nil
}

func (repo courseRepository) DeleteCategory(ctx context.Context, kind course.CategoryKind, id string, exec ...core.DBExecutor) error {
	table, err := categoryTable(kind)
	if err != nil {
		return err
	}
	exe := repo.getExec(exec)
	if _, err = execute(ctx, exe, builder(exe).Delete(table).Where(sq.Eq{"id": id})); err != nil {
		if isForeignKeyErr(err) {
			return core.NewConflictError(course.ErrCategoryInUse)
		}
		return errors.Wrap(err, "deleting category")
	}
	return nil
}

func (repo courseRepository) CountContentsInCategory(ctx context.Context, categoryID string, exec ...core.DBExecutor) (int, error) {
	exe := repo.getExec(exec)
	var n int
	q := builder(exe).Select("COUNT(*)").From(contentsTable).Where(sq.Eq{"category_id": categoryID})
	if err := getOne(ctx, exe, &n, q); err != nil {
		return 0, errors.Wrap(err, "counting contents")
	}
	return n, nil
}

// Institutions

func (repo courseRepository) CreateInstitution(ctx context.Context, inst course.Institution, exec ...core.DBExecutor) (course.Institution, error) {
	exe := repo.getExec(exec)
	q := builder(exe).Insert(institutionsTable).
		Columns(institutionColumns...).
		Values(inst.ID, inst.Name, inst.Description, inst.URL, inst.Image, inst.Icon)
	if _, err := execute(ctx, exe, q); err != nil {
		return course.Institution{}, errors.Wrap(err, "inserting institution")
	}
	return inst, nil
}

func (repo courseRepository) QueryInstitutions(ctx context.Context, exec ...core.DBExecutor) ([]course.Institution, error) {
	exe := repo.getExec(exec)
	var rows []institutionRow
	if err := selectAll(ctx, exe, &rows, builder(exe).Select(institutionColumns...).From(institutionsTable).OrderBy("name ASC")); err != nil {
		return nil, errors.Wrap(err, "querying institutions")
	}
	insts := make([]course.Institution, 0, len(rows))
	for _, r := range rows {
		insts = append(insts, course.Institution(r))
	}
	return insts, nil
}

func (repo courseRepository) GetInstitution(ctx context.Context, id string, exec ...core.DBExecutor) (course.Institution, error) {
	if !isUUID(id) {
		return course.Institution{}, course.ErrInstitutionNotFound
	}
	exe := repo.getExec(exec)
	var row institutionRow
	if err := getOne(ctx, exe, &row, builder(exe).Select(institutionColumns...).From(institutionsTable).Where(sq.Eq{"id": id})); err != nil {
		return course.Institution{}, trapNoRowsErr(err, course.ErrInstitutionNotFound, "finding institution")
	}
	return course.Institution(row), nil
}

func (repo courseRepository) UpdateInstitution(ctx context.Context, inst course.Institution, exec ...core.DBExecutor) (course.Institution, error) {
	exe := repo.getExec(exec)
	q := builder(exe).Update(institutionsTable).
		SetMap(map[string]interface{}{
			"name":        inst.Name,
			"description": inst.Description,
			"url":         inst.URL,
			"image":       inst.Image,
			"icon":        inst.Icon,
		}).
		Where(sq.Eq{"id": inst.ID})
	n, err := execute(ctx, exe, q)
	if err != nil {
		return course.Institution{}, errors.Wrap(err, "updating institution")
	}
	if n == 0 {
		return course.Institution{}, course.ErrInstitutionNotFound
	}
	return inst, nil
}

func (repo courseRepository) DeleteInstitution(ctx context.Context, id string, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	if _, err := execute(ctx, exe, builder(exe).Delete(institutionsTable).Where(sq.Eq{"id": id})); err != nil {
		return errors.Wrap(err, "deleting institution")
	}
	return nil
}

// Courses

func (repo courseRepository) toCourseRow(c course.Course) courseRow {
	return courseRow{
		ID:                  c.ID,
		CategoryID:          c.CategoryID,
		InstitutionID:       c.InstitutionID,
		Name:                c.Name,
		Alias:               c.Alias,
		Active:              c.Active,
		Description:         c.Description,
		ModuleCount:         c.ModuleCount,
		AssessmentItemCount: c.AssessmentItemCount,
		ReviewCount:         c.ReviewCount,
		CommentCount:        c.CommentCount,
		Rating:              c.Rating,
		CreatedAt:           c.CreatedAt.UTC(),
		UpdatedAt:           c.UpdatedAt.UTC(),
	}
}

func (repo courseRepository) fromCourseRow(r courseRow) course.Course {
	return course.Course{
		ID:                  r.ID,
		CategoryID:          r.CategoryID,
		InstitutionID:       r.InstitutionID,
		Name:                r.Name,
		Alias:               r.Alias,
		Active:              r.Active,
		Description:         r.Description,
		ModuleCount:         r.ModuleCount,
		AssessmentItemCount: r.AssessmentItemCount,
		ReviewCount:         r.ReviewCount,
		CommentCount:        r.CommentCount,
		Rating:              r.Rating,
		CreatedAt:           r.CreatedAt.UTC(),
		UpdatedAt:           r.UpdatedAt.UTC(),
	}
}

func (repo courseRepository) CheckCourseUniqueness(ctx context.Context, name, alias string, excludedCourses []course.Course, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	q := builder(exe).
		Select("name", "alias").
		From(coursesTable).
		Where(sq.Or{sq.Eq{"name": name}, sq.Eq{"alias": alias}})
	if len(excludedCourses) > 0 {
		ids := make([]string, 0, len(excludedCourses))
		for _, c := range excludedCourses {
			ids = append(ids, c.ID)
		}
		q = q.Where(sq.NotEq{"id": ids})
	}

	var rows []struct {
		Name  string `db:"name"`
		Alias string `db:"alias"`
	}
	if err := selectAll(ctx, exe, &rows, q); err != nil {
		return errors.Wrap(err, "checking course uniqueness")
	}
	for _, r := range rows {
		if r.Name == name {
			return course.ErrCourseNameExists
		}
		if r.Alias == alias {
			return course.ErrCourseAliasExists
		}
	}
	return nil
}

func (repo courseRepository) CreateCourse(ctx context.Context, c course.Course, exec ...core.DBExecutor) (course.Course, error) {
	exe := repo.getExec(exec)
	row := repo.toCourseRow(c)
	values := row.editable()
	values["id"] = row.ID
	values["created_at"] = row.CreatedAt
	if _, err := execute(ctx, exe, builder(exe).Insert(coursesTable).SetMap(values)); err != nil {
		return course.Course{}, trapUniqueErr(err, course.ErrCourseExists, "inserting course")
	}
	return repo.fromCourseRow(row), nil
}

func (repo courseRepository) QueryCourses(ctx context.Context, filter *course.CourseFilter, orderings []core.DBOrdering, exec ...core.DBExecutor) ([]course.Course, error) {
	exe := repo.getExec(exec)
	q := builder(exe).Select(courseColumns...).From(coursesTable)

	if filter != nil {
		if filter.Search != "" {
			val := likePattern(filter.Search)
			q = q.Where(sq.Or{
				sq.Like{"LOWER(name)": val},
				sq.Like{"LOWER(alias)": val},
				sq.Like{"LOWER(description)": val},
			})
		}
		if filter.CategoryID != "" {
			q = q.Where(sq.Eq{"category_id": filter.CategoryID})
		}
		if filter.InstitutionID != "" {
			q = q.Where(sq.Eq{"institution_id": filter.InstitutionID})
		}
		if filter.Active != nil {
			q = q.Where(sq.Eq{"active": *filter.Active})
		}
	}
	q = q.OrderBy(orderBy(orderings, courseOrderings, "name ASC")...)

	var rows []courseRow
	if err := selectAll(ctx, exe, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, r := range rows {
		courses = append(courses, repo.fromCourseRow(r))
	}
	return courses, nil
}

func (repo courseRepository) getCourse(ctx context.Context, where sq.Sqlizer, exec []core.DBExecutor) (course.Course, error) {
	exe := repo.getExec(exec)
	var row courseRow
	if err := getOne(ctx, exe, &row, builder(exe).Select(courseColumns...).From(coursesTable).Where(where)); err != nil {
		return course.Course{}, trapNoRowsErr(err, course.ErrCourseNotFound, "finding course")
	}
	return repo.fromCourseRow(row), nil
}

func (repo courseRepository) GetCourse(ctx context.Context, id string, exec ...core.DBExecutor) (course.Course, error) {
	if !isUUID(id) {
		return course.Course{}, course.ErrCourseNotFound
	}
	return repo.getCourse(ctx, sq.Eq{"id": id}, exec)
}

func (repo courseRepository) GetCourseByAlias(ctx context.Context, alias string, exec ...core.DBExecutor) (course.Course, error) {
	return repo.getCourse(ctx, sq.Eq{"alias": alias}, exec)
}

func (repo courseRepository) UpdateCourse(ctx context.Context, c course.Course, exec ...core.DBExecutor) (course.Course, error) {
	exe := repo.getExec(exec)
	row := repo.toCourseRow(c)
	n, err := execute(ctx, exe, builder(exe).Update(coursesTable).SetMap(row.editable()).Where(sq.Eq{"id": c.ID}))
	if err != nil {
		return course.Course{}, trapUniqueErr(err, course.ErrCourseExists, "updating course")
	}
	if n == 0 {
		return course.Course{}, course.ErrCourseNotFound
	}
	return repo.GetCourse(ctx, c.ID, exe)
}

func (repo courseRepository) DeleteCourse(ctx context.Context, id string, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	if _, err := execute(ctx, exe, builder(exe).Delete(coursesTable).Where(sq.Eq{"id": id})); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return nil
}

func (repo courseRepository) LockCourse(ctx context.Context, id string, exec core.DBExecutor) error {
	return lockRow(ctx, repo.getExec([]core.DBExecutor{exec}), coursesTable, id)
}

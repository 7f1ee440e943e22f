package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/minerva/core"
	"github.com/trezcool/minerva/core/aggregate"
)

const (
	// feedback of one content
	contentReviewsSQL  = "(SELECT COUNT(*) FROM content_interactions WHERE content_id = ?) AS reviews"
	contentCommentsSQL = "(SELECT COUNT(*) FROM content_comments WHERE content_id = ?) AS comments"
	contentRatingSQL   = "(SELECT AVG(rating) FROM content_interactions WHERE content_id = ?) AS rating_avg"

	// feedback of all the contents of one course
	courseContentsSQL = "SELECT c.id FROM contents c JOIN modules m ON m.id = c.module_id WHERE m.course_id = ?"
	courseReviewsSQL  = "(SELECT COUNT(*) FROM content_interactions WHERE content_id IN (" + courseContentsSQL + ")) AS reviews"
	courseCommentsSQL = "(SELECT COUNT(*) FROM content_comments WHERE content_id IN (" + courseContentsSQL + ")) AS comments"
	courseRatingSQL   = "(SELECT AVG(rating) FROM content_interactions WHERE content_id IN (" + courseContentsSQL + ")) AS rating_avg"
)

type tallyRow struct {
	Reviews   int          `db:"reviews"`
	Comments  int          `db:"comments"`
	RatingAvg null.Float64 `db:"rating_avg"`
}

// aggregateStore reads and writes derived counters with the executor of the current unit of work.
type aggregateStore struct {
	exec core.DBExecutor
}

var _ aggregate.Store = (*aggregateStore)(nil)

func newAggregateStore(exec core.DBExecutor) *aggregateStore {
	return &aggregateStore{exec: exec}
}

func (s *aggregateStore) count(ctx context.Context, q sq.Sqlizer, msg string) (int, error) {
	var n int
	if err := getOne(ctx, s.exec, &n, q); err != nil {
		return 0, errors.Wrap(err, msg)
	}
	return n, nil
}

func (s *aggregateStore) update(ctx context.Context, q sq.UpdateBuilder, msg string) error {
	if _, err := execute(ctx, s.exec, q); err != nil {
		return errors.Wrap(err, msg)
	}
	return nil
}

func (s *aggregateStore) CountModules(ctx context.Context, courseID string) (int, error) {
	q := builder(s.exec).Select("COUNT(*)").From(modulesTable).Where(sq.Eq{"course_id": courseID})
	return s.count(ctx, q, "counting modules")
}

func (s *aggregateStore) CountContentsByKind(ctx context.Context, moduleID string, kinds []string) (int, error) {
	q := builder(s.exec).
		Select("COUNT(*)").
		From(contentsTable + " c").
		Join(contentCategoriesTable + " cc ON cc.id = c.category_id").
		Where(sq.Eq{"c.module_id": moduleID, "cc.name": kinds})
	return s.count(ctx, q, "counting contents")
}

func (s *aggregateStore) SumModuleAssessments(ctx context.Context, courseID string) (int, error) {
	q := builder(s.exec).
		Select("COALESCE(SUM(assessment_item_count), 0)").
		From(modulesTable).
		Where(sq.Eq{"course_id": courseID})
	return s.count(ctx, q, "summing module assessments")
}

func (s *aggregateStore) tally(ctx context.Context, q sq.Sqlizer) (aggregate.Tally, error) {
	var row tallyRow
	if err := getOne(ctx, s.exec, &row, q); err != nil {
		return aggregate.Tally{}, errors.Wrap(err, "tallying feedback")
	}
	return aggregate.Tally(row), nil
}

func (s *aggregateStore) ContentTally(ctx context.Context, contentID string) (aggregate.Tally, error) {
	q := builder(s.exec).
		Select().
		Column(contentReviewsSQL, contentID).
		Column(contentCommentsSQL, contentID).
		Column(contentRatingSQL, contentID)
	return s.tally(ctx, q)
}

func (s *aggregateStore) CourseTally(ctx context.Context, courseID string) (aggregate.Tally, error) {
	q := builder(s.exec).
		Select().
		Column(courseReviewsSQL, courseID).
		Column(courseCommentsSQL, courseID).
		Column(courseRatingSQL, courseID)
	return s.tally(ctx, q)
}

func (s *aggregateStore) SetModuleCount(ctx context.Context, courseID string, n int) error {
	q := builder(s.exec).Update(coursesTable).Set("module_count", n).Where(sq.Eq{"id": courseID})
	return s.update(ctx, q, "setting module count")
}

func (s *aggregateStore) SetModuleItemCounts(ctx context.Context, moduleID string, instructional, assessment int) error {
	q := builder(s.exec).Update(modulesTable).
		Set("instructional_item_count", instructional).
		Set("assessment_item_count", assessment).
		Where(sq.Eq{"id": moduleID})
	return s.update(ctx, q, "setting module item counts")
}

func (s *aggregateStore) SetCourseAssessmentCount(ctx context.Context, courseID string, n int) error {
	q := builder(s.exec).Update(coursesTable).Set("assessment_item_count", n).Where(sq.Eq{"id": courseID})
	return s.update(ctx, q, "setting course assessment count")
}

func (s *aggregateStore) SetContentFeedback(ctx context.Context, contentID string, fb aggregate.Feedback) error {
	q := builder(s.exec).Update(contentsTable).
		Set("review_count", fb.Reviews).
		Set("comment_count", fb.Comments).
		Set("rating", fb.Rating).
		Where(sq.Eq{"id": contentID})
	return s.update(ctx, q, "setting content feedback")
}

func (s *aggregateStore) SetCourseFeedback(ctx context.Context, courseID string, fb aggregate.Feedback) error {
	q := builder(s.exec).Update(coursesTable).
		Set("review_count", fb.Reviews).
		Set("comment_count", fb.Comments).
		Set("rating", fb.Rating).
		Where(sq.Eq{"id": courseID})
	return s.update(ctx, q, "setting course feedback")
}

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
)

const (
	commentsTable     = "content_comments"
	interactionsTable = "content_interactions"
)

var (
	commentColumns     = []string{"id", "user_id", "content_id", "parent_id", "body", "created_at", "updated_at"}
	interactionColumns = []string{"id", "user_id", "content_id", "completed", "rating", "created_at", "updated_at"}
)

type commentRow struct {
	ID        string      `db:"id"`
	UserID    string      `db:"user_id"`
	ContentID string      `db:"content_id"`
	ParentID  null.String `db:"parent_id"`
	Body      string      `db:"body"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
}

type interactionRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	ContentID string    `db:"content_id"`
	Completed bool      `db:"completed"`
	Rating    null.Int  `db:"rating"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Comments

func (repo courseRepository) fromCommentRow(r commentRow) course.Comment {
	return course.Comment{
		ID:        r.ID,
		UserID:    r.UserID,
		ContentID: r.ContentID,
		ParentID:  r.ParentID,
		Body:      r.Body,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func (repo courseRepository) CreateComment(ctx context.Context, c course.Comment, exec ...core.DBExecutor) (course.Comment, error) {
	exe := repo.getExec(exec)
	q := builder(exe).Insert(commentsTable).
		Columns(commentColumns...).
		Values(c.ID, c.UserID, c.ContentID, c.ParentID, c.Body, c.CreatedAt.UTC(), c.UpdatedAt.UTC())
	if _, err := execute(ctx, exe, q); err != nil {
		return course.Comment{}, errors.Wrap(err, "inserting comment")
	}
	return c, nil
}

func (repo courseRepository) QueryComments(ctx context.Context, filter course.CommentFilter, exec ...core.DBExecutor) ([]course.Comment, error) {
	exe := repo.getExec(exec)
	q := builder(exe).Select(commentColumns...).From(commentsTable)
	if filter.ContentID != "" {
		q = q.Where(sq.Eq{"content_id": filter.ContentID})
	}
	if filter.ParentID != "" {
		q = q.Where(sq.Eq{"parent_id": filter.ParentID})
	}
	if len(filter.UserIDs) > 0 {
		q = q.Where(sq.Eq{"user_id": filter.UserIDs})
	}
	q = q.OrderBy("created_at ASC", "id ASC")

	var rows []commentRow
	if err := selectAll(ctx, exe, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying comments")
	}
	cmts := make([]course.Comment, 0, len(rows))
	for _, r := range rows {
		cmts = append(cmts, repo.fromCommentRow(r))
	}
	return cmts, nil
}

func (repo courseRepository) GetComment(ctx context.Context, id string, exec ...core.DBExecutor) (course.Comment, error) {
	if !isUUID(id) {
		return course.Comment{}, course.ErrCommentNotFound
	}
	exe := repo.getExec(exec)
	var row commentRow
	if err := getOne(ctx, exe, &row, builder(exe).Select(commentColumns...).From(commentsTable).Where(sq.Eq{"id": id})); err != nil {
		return course.Comment{}, trapNoRowsErr(err, course.ErrCommentNotFound, "finding comment")
	}
	return repo.fromCommentRow(row), nil
}

func (repo courseRepository) UpdateComment(ctx context.Context, c course.Comment, exec ...core.DBExecutor) (course.Comment, error) {
	exe := repo.getExec(exec)
	q := builder(exe).Update(commentsTable).
		Set("body", c.Body).
		Set("updated_at", c.UpdatedAt.UTC()).
		Where(sq.Eq{"id": c.ID})
	n, err := execute(ctx, exe, q)
	if err != nil {
		return course.Comment{}, errors.Wrap(err, "updating comment")
	}
	if n == 0 {
		return course.Comment{}, course.ErrCommentNotFound
	}
	return c, nil
}

func (repo courseRepository) DeleteComment(ctx context.Context, id string, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	n, err := execute(ctx, exe, builder(exe).Delete(commentsTable).Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting comment")
	}
	if n == 0 {
		return course.ErrCommentNotFound
	}
	return nil
}

// Interactions

func (repo courseRepository) CreateInteraction(ctx context.Context, i course.Interaction, exec ...core.DBExecutor) (course.Interaction, error) {
	exe := repo.getExec(exec)
	q := builder(exe).Insert(interactionsTable).
		Columns(interactionColumns...).
		Values(i.ID, i.UserID, i.ContentID, i.Completed, i.Rating, i.CreatedAt.UTC(), i.UpdatedAt.UTC())
	if _, err := execute(ctx, exe, q); err != nil {
		return course.Interaction{}, trapUniqueErr(err, course.ErrInteractionExists, "inserting interaction")
	}
	return i, nil
}

func (repo courseRepository) QueryInteractions(ctx context.Context, filter course.InteractionFilter, exec ...core.DBExecutor) ([]course.Interaction, error) {
	exe := repo.getExec(exec)
	q := builder(exe).Select(interactionColumns...).From(interactionsTable)
	if filter.ContentID != "" {
		q = q.Where(sq.Eq{"content_id": filter.ContentID})
	}
	if filter.UserID != "" {
		q = q.Where(sq.Eq{"user_id": filter.UserID})
	}
	q = q.OrderBy("created_at ASC", "id ASC")

	var rows []interactionRow
	if err := selectAll(ctx, exe, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying interactions")
	}
	itrs := make([]course.Interaction, 0, len(rows))
	for _, r := range rows {
		itrs = append(itrs, course.Interaction(r))
	}
	return itrs, nil
}

func (repo courseRepository) GetInteraction(ctx context.Context, id string, exec ...core.DBExecutor) (course.Interaction, error) {
	if !isUUID(id) {
		return course.Interaction{}, course.ErrInteractionNotFound
	}
	exe := repo.getExec(exec)
	var row interactionRow
	if err := getOne(ctx, exe, &row, builder(exe).Select(interactionColumns...).From(interactionsTable).Where(sq.Eq{"id": id})); err != nil {
		return course.Interaction{}, trapNoRowsErr(err, course.ErrInteractionNotFound, "finding interaction")
	}
	return course.Interaction(row), nil
}

func (repo courseRepository) UpdateInteraction(ctx context.Context, i course.Interaction, exec ...core.DBExecutor) (course.Interaction, error) {
	exe := repo.getExec(exec)
	q := builder(exe).Update(interactionsTable).
		Set("completed", i.Completed).
		Set("rating", i.Rating).
		Set("updated_at", i.UpdatedAt.UTC()).
		Where(sq.Eq{"id": i.ID})
	n, err := execute(ctx, exe, q)
	if err != nil {
		return course.Interaction{}, errors.Wrap(err, "updating interaction")
	}
	if n == 0 {
		return course.Interaction{}, course.ErrInteractionNotFound
	}
	return i, nil
}

func (repo courseRepository) DeleteInteraction(ctx context.Context, id string, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	n, err := execute(ctx, exe, builder(exe).Delete(interactionsTable).Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting interaction")
	}
	if n == 0 {
		return course.ErrInteractionNotFound
	}
	return nil
}

// Users' feedback

func (repo courseRepository) FeedbackTargets(ctx context.Context, userIDs []string, exec ...core.DBExecutor) ([]aggregate.Target, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	exe := repo.getExec(exec)

	commented := sq.Select("content_id").From(commentsTable).Where(sq.Eq{"user_id": userIDs})
	interacted := sq.Select("content_id").From(interactionsTable).Where(sq.Eq{"user_id": userIDs})
	q := builder(exe).Select("c.id AS content_id", "c.module_id", "m.course_id").
		From(contentsTable + " c").
		Join(modulesTable + " m ON m.id = c.module_id").
		Where(sq.Or{sq.Expr("c.id IN (?)", commented), sq.Expr("c.id IN (?)", interacted)}).
		OrderBy("m.course_id ASC", "c.id ASC")

	var rows []struct {
		ContentID string `db:"content_id"`
		ModuleID  string `db:"module_id"`
		CourseID  string `db:"course_id"`
	}
	if err := selectAll(ctx, exe, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying feedback targets")
	}
	targets := make([]aggregate.Target, 0, len(rows))
	for _, r := range rows {
		targets = append(targets, aggregate.Target{CourseID: r.CourseID, ModuleID: r.ModuleID, ContentID: r.ContentID})
	}
	return targets, nil
}

func (repo courseRepository) DeleteUserFeedback(ctx context.Context, userIDs []string, exec ...core.DBExecutor) error {
	if len(userIDs) == 0 {
		return nil
	}
	exe := repo.getExec(exec)
	if _, err := execute(ctx, exe, builder(exe).Delete(commentsTable).Where(sq.Eq{"user_id": userIDs})); err != nil {
		return errors.Wrap(err, "deleting comments")
	}
	if _, err := execute(ctx, exe, builder(exe).Delete(interactionsTable).Where(sq.Eq{"user_id": userIDs})); err != nil {
		return errors.Wrap(err, "deleting interactions")
	}
	return nil
}

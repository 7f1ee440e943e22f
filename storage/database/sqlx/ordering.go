package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/trezcool/minerva/core"
	"github.com/trezcool/minerva/core/course"
	"github.com/trezcool/minerva/core/ordering"
)

// sequence is the ordering.Collection of the rows of childTable, grouped by their parentColumn.
type sequence struct {
	exec         core.DBExecutor
	parentTable  string
	childTable   string
	parentColumn string
	conflictErr  error
}

var _ ordering.Collection = (*sequence)(nil)

func newModuleSequence(exec core.DBExecutor) *sequence {
	return &sequence{
		exec:         exec,
		parentTable:  coursesTable,
		childTable:   modulesTable,
		parentColumn: "course_id",
		conflictErr:  course.ErrOrderTaken,
	}
}

func newContentSequence(exec core.DBExecutor) *sequence {
	return &sequence{
		exec:         exec,
		parentTable:  modulesTable,
		childTable:   contentsTable,
		parentColumn: "module_id",
		conflictErr:  course.ErrOrderTaken,
	}
}

func (s *sequence) Lock(ctx context.Context, parentID string) error {
	return lockRow(ctx, s.exec, s.parentTable, parentID)
}

func (s *sequence) MaxOrder(ctx context.Context, parentID string) (int, error) {
	var maxOrder int
	q := builder(s.exec).
		Select("COALESCE(MAX(order_index), 0)").
		From(s.childTable).
		Where(sq.Eq{s.parentColumn: parentID})
	if err := getOne(ctx, s.exec, &maxOrder, q); err != nil {
		return 0, errors.Wrapf(err, "getting max order of %s", s.childTable)
	}
	return maxOrder, nil
}

func (s *sequence) Siblings(ctx context.Context, parentID string) ([]ordering.Sibling, error) {
	var rows []struct {
		ID    string `db:"id"`
		Order int    `db:"order_index"`
	}
	q := builder(s.exec).
		Select("id", "order_index").
		From(s.childTable).
		Where(sq.Eq{s.parentColumn: parentID}).
		OrderBy("order_index ASC")
	if err := selectAll(ctx, s.exec, &rows, q); err != nil {
		return nil, errors.Wrapf(err, "listing %s", s.childTable)
	}
	siblings := make([]ordering.Sibling, 0, len(rows))
	for _, r := range rows {
		siblings = append(siblings, ordering.Sibling{ID: r.ID, Order: r.Order})
	}
	return siblings, nil
}

func (s *sequence) SetOrder(ctx context.Context, id string, order int) error {
	q := builder(s.exec).Update(s.childTable).Set("order_index", order).Where(sq.Eq{"id": id})
	if _, err := execute(ctx, s.exec, q); err != nil {
		return trapUniqueErr(err, s.conflictErr, "setting order")
	}
	return nil
}

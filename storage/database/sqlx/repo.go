// Package sqlxrepos implements the core repositories with sqlx and squirrel,
// on both postgres and sqlite.
package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/strmangle"

	"github.com/trezcool/minerva/core"
	"github.com/trezcool/minerva/core/ordering"
	"github.com/trezcool/minerva/storage/database"
)

type baseRepository struct {
	exec core.DBExecutor
}

func (repo baseRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

// builder returns a statement builder using the placeholders of exec's driver.
func builder(exec core.DBExecutor) sq.StatementBuilderType {
	if sqlx.BindType(exec.DriverName()) == sqlx.DOLLAR {
		return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}

func isPostgres(exec core.DBExecutor) bool {
	return exec.DriverName() == database.EnginePostgres
}

func getOne(ctx context.Context, exec core.DBExecutor, dest interface{}, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return exec.GetContext(ctx, dest, query, args...)
}

func selectAll(ctx context.Context, exec core.DBExecutor, dest interface{}, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return exec.SelectContext(ctx, dest, query, args...)
}

// execute runs b and returns the number of affected rows.
func execute(ctx context.Context, exec core.DBExecutor, b sq.Sqlizer) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	res, err := exec.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// trapNoRowsErr maps "no rows" errors to notFound
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// trapUniqueErr maps unique constraint violations to a conflict on conflictErr
func trapUniqueErr(err error, conflictErr error, msg string) error {
	if database.IsUniqueViolation(err) {
		return core.NewConflictError(conflictErr)
	}
	return errors.Wrap(err, msg)
}

// isUUID reports whether id can be a primary key: lookups of malformed IDs are known misses.
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// orderBy returns the ORDER BY clauses of the orderings whose field is in columns (field: column).
// Unknown fields are ignored; fallback is used when nothing is left.
func orderBy(orderings []core.DBOrdering, columns map[string]string, fallback ...string) []string {
	clauses := make([]string, 0, len(orderings))
	for _, ord := range orderings {
		col, ok := columns[strings.ToLower(ord.Field)]
		if !ok {
			continue
		}
		clauses = append(clauses, core.DBOrdering{
			Field:     strmangle.IdentQuote('"', '"', col),
			Ascending: ord.Ascending,
		}.String())
	}
	if len(clauses) == 0 {
		return fallback
	}
	return clauses
}

func likePattern(search string) string {
	return "%" + strings.ToLower(search) + "%"
}

// forUpdate locks the selected rows until the end of the transaction. sqlite locks the whole database
// on write instead, and the single connection serializes writers anyway.
func forUpdate(exec core.DBExecutor, b sq.SelectBuilder) sq.SelectBuilder {
	if isPostgres(exec) {
		return b.Suffix("FOR UPDATE")
	}
	return b
}

func isForeignKeyErr(err error) bool {
	return database.IsForeignKeyViolation(err)
}

// lockRow locks the row of table with the given id until the end of the transaction.
// Returns ordering.ErrParentNotFound when there is no such row.
func lockRow(ctx context.Context, exec core.DBExecutor, table, id string) error {
	if !isUUID(id) {
		return ordering.ErrParentNotFound
	}
	var found string
	q := forUpdate(exec, builder(exec).Select("id").From(table).Where(sq.Eq{"id": id}))
	if err := getOne(ctx, exec, &found, q); err != nil {
		return trapNoRowsErr(err, ordering.ErrParentNotFound, "locking "+table)
	}
	return nil
}

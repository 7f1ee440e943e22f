package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/minerva/core"
	"github.com/trezcool/minerva/core/user"
)

const usersTable = "users"

var (
	userColumns = []string{
		"id", "email", "username", "name", "given_name", "family_name", "picture", "locale",
		"google_id", "role", "is_active", "password_hash", "created_at", "updated_at", "last_login",
	}

	userOrderings = map[string]string{
		"name":       "name",
		"username":   "username",
		"email":      "email",
		"role":       "role",
		"is_active":  "is_active",
		"created_at": "created_at",
		"updated_at": "updated_at",
		"last_login": "last_login",
	}
)

type userRow struct {
	ID           string      `db:"id"`
	Email        string      `db:"email"`
	Username     null.String `db:"username"`
	Name         string      `db:"name"`
	GivenName    string      `db:"given_name"`
	FamilyName   string      `db:"family_name"`
	Picture      string      `db:"picture"`
	Locale       string      `db:"locale"`
	GoogleID     null.String `db:"google_id"`
	Role         string      `db:"role"`
	IsActive     bool        `db:"is_active"`
	PasswordHash null.String `db:"password_hash"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
	LastLogin    null.Time   `db:"last_login"`
}

func (r userRow) values() map[string]interface{} {
	return map[string]interface{}{
		"id":            r.ID,
		"email":         r.Email,
		"username":      r.Username,
		"name":          r.Name,
		"given_name":    r.GivenName,
		"family_name":   r.FamilyName,
		"picture":       r.Picture,
		"locale":        r.Locale,
		"google_id":     r.GoogleID,
		"role":          r.Role,
		"is_active":     r.IsActive,
		"password_hash": r.PasswordHash,
		"created_at":    r.CreatedAt,
		"updated_at":    r.UpdatedAt,
		"last_login":    r.LastLogin,
	}
}

type userRepository struct {
	baseRepository
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{baseRepository{exec: exec}}
}

func (repo userRepository) toRow(usr user.User) userRow {
	lastLogin := usr.LastLogin
	if lastLogin.Valid {
		lastLogin.Time = lastLogin.Time.UTC()
	}
	return userRow{
		ID:           usr.ID,
		Email:        usr.Email,
		Username:     usr.Username,
		Name:         usr.Name,
		GivenName:    usr.GivenName,
		FamilyName:   usr.FamilyName,
		Picture:      usr.Picture,
		Locale:       usr.Locale,
		GoogleID:     usr.GoogleID,
		Role:         usr.Role,
		IsActive:     usr.IsActive,
		PasswordHash: null.NewString(string(usr.PasswordHash), len(usr.PasswordHash) > 0),
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    lastLogin,
	}
}

func (repo userRepository) fromRow(r userRow) user.User {
	usr := user.User{
		ID:         r.ID,
		Email:      r.Email,
		Username:   r.Username,
		Name:       r.Name,
		GivenName:  r.GivenName,
		FamilyName: r.FamilyName,
		Picture:    r.Picture,
		Locale:     r.Locale,
		GoogleID:   r.GoogleID,
		Role:       r.Role,
		IsActive:   r.IsActive,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
		LastLogin:  r.LastLogin,
	}
	if r.PasswordHash.Valid {
		usr.PasswordHash = []byte(r.PasswordHash.String)
	}
	if usr.LastLogin.Valid {
		usr.LastLogin.Time = usr.LastLogin.Time.UTC()
	}
	return usr
}

func (repo userRepository) fromRows(rows []userRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, repo.fromRow(r))
	}
	return users
}

func (repo userRepository) CheckUniqueness(ctx context.Context, username, email string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	q := builder(exe).
		Select("username", "email").
		From(usersTable).
		Where(sq.Or{sq.Eq{"username": username}, sq.Eq{"email": email}})
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		q = q.Where(sq.NotEq{"id": ids})
	}

	var rows []struct {
		Username null.String `db:"username"`
		Email    string      `db:"email"`
	}
	if err := selectAll(ctx, exe, &rows, q); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, r := range rows {
		if username != "" && r.Username.String == username {
			return user.ErrUsernameExists
		}
		if r.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	exe := repo.getExec(exec)
	row := repo.toRow(usr)
	if _, err := execute(ctx, exe, builder(exe).Insert(usersTable).SetMap(row.values())); err != nil {
		return user.User{}, trapUniqueErr(err, user.ErrUserExists, "inserting user")
	}
	return repo.fromRow(row), nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	var where sq.Sqlizer
	switch {
	case filter.ID != "":
		if !isUUID(filter.ID) {
			return user.User{}, user.ErrNotFound
		}
		where = sq.Eq{"id": filter.ID}
	case filter.Email != "":
		where = sq.Eq{"email": filter.Email}
	case filter.GoogleID != "":
		where = sq.Eq{"google_id": filter.GoogleID}
	case filter.UsernameOrEmail != "":
		where = sq.Or{sq.Eq{"username": filter.UsernameOrEmail}, sq.Eq{"email": filter.UsernameOrEmail}}
	default:
		return user.User{}, user.ErrNotFound
	}

	exe := repo.getExec(exec)
	var row userRow
	if err := getOne(ctx, exe, &row, builder(exe).Select(userColumns...).From(usersTable).Where(where).Limit(1)); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user")
	}
	return repo.fromRow(row), nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, orderings []core.DBOrdering, exec ...core.DBExecutor) ([]user.User, error) {
	exe := repo.getExec(exec)
	q := builder(exe).Select(userColumns...).From(usersTable)

	if filter != nil {
		// users with Name, Username or Email matching the search keyword
		if filter.Search != "" {
			val := likePattern(filter.Search)
			q = q.Where(sq.Or{
				sq.Like{"LOWER(name)": val},
				sq.Like{"LOWER(username)": val},
				sq.Like{"LOWER(email)": val},
			})
		}
		if len(filter.Roles) > 0 {
			q = q.Where(sq.Eq{"role": filter.Roles})
		}
		if filter.IsActive != nil {
			q = q.Where(sq.Eq{"is_active": *filter.IsActive})
		}
		if !filter.CreatedFrom.IsZero() {
			q = q.Where(sq.GtOrEq{"created_at": filter.CreatedFrom.UTC()})
		}
		if !filter.CreatedTo.IsZero() {
			q = q.Where(sq.LtOrEq{"created_at": filter.CreatedTo.UTC()})
		}
	}
	q = q.OrderBy(orderBy(orderings, userOrderings, "created_at ASC")...)

	var rows []userRow
	if err := selectAll(ctx, exe, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return repo.fromRows(rows), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	exe := repo.getExec(exec)
	row := repo.toRow(usr)
	values := row.values()
	delete(values, "id")
	delete(values, "created_at")

	n, err := execute(ctx, exe, builder(exe).Update(usersTable).SetMap(values).Where(sq.Eq{"id": usr.ID}))
	if err != nil {
		return user.User{}, trapUniqueErr(err, user.ErrUserExists, "updating user")
	}
	if n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.fromRow(row), nil
}

func (repo userRepository) DeleteUsers(ctx context.Context, ids []string, exec ...core.DBExecutor) error {
	if len(ids) == 0 {
		return nil
	}
	exe := repo.getExec(exec)
	if _, err := execute(ctx, exe, builder(exe).Delete(usersTable).Where(sq.Eq{"id": ids})); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}

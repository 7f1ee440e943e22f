package sqlxrepos_test

import (
	"context"
	"testing"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/minerva/core"
	"github.com/trezcool/minerva/core/user"
	sqlxrepos "github.com/trezcool/minerva/storage/database/sqlx"
	"github.com/trezcool/minerva/testutil"
)

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	db := testutil.PrepareDB(t)
	repo := sqlxrepos.NewUserRepository(db)

	now := time.Now().UTC()
	admin := testutil.CreateUser(t, repo, "Admin", "admin", "admin@example.com", "", user.RoleAdmin, true, now.Add(-48*time.Hour))
	teacher := testutil.CreateUser(t, repo, "Grace Hopper", "grace", "grace@example.com", "", user.RoleTeacher, true, now.Add(-24*time.Hour))
	student := testutil.CreateUser(t, repo, "Alan Turing", "alan", "alan@example.com", "", user.RoleStudent, false, now)

	t.Run("get", func(t *testing.T) {
		got, err := repo.GetUser(ctx, user.GetFilter{ID: teacher.ID})
		require.NoError(t, err)
		assert.Equal(t, teacher.Email, got.Email)

		got, err = repo.GetUser(ctx, user.GetFilter{UsernameOrEmail: "alan"})
		require.NoError(t, err)
		assert.Equal(t, student.ID, got.ID)

		got, err = repo.GetUser(ctx, user.GetFilter{UsernameOrEmail: "admin@example.com"})
		require.NoError(t, err)
		assert.Equal(t, admin.ID, got.ID)

		_, err = repo.GetUser(ctx, user.GetFilter{ID: "not-a-uuid"})
		assert.Equal(t, user.ErrNotFound, pkgerrors.Cause(err))
	})

	t.Run("uniqueness", func(t *testing.T) {
		assert.Equal(t, user.ErrUsernameExists, repo.CheckUniqueness(ctx, "grace", "new@example.com", nil))
		assert.Equal(t, user.ErrEmailExists, repo.CheckUniqueness(ctx, "newbie", "grace@example.com", nil))
		assert.NoError(t, repo.CheckUniqueness(ctx, "grace", "grace@example.com", []user.User{teacher}))

		dup := teacher
		dup.ID = "9b2f0b4e-0f6f-4a6b-8c55-0d0f3e9d1a11"
		_, err := repo.CreateUser(ctx, dup)
		require.Error(t, err)
		assert.True(t, core.IsConflict(err))
	})

	t.Run("query", func(t *testing.T) {
		active := true
		tests := []struct {
			name    string
			filter  *user.QueryFilter
			ords    []core.DBOrdering
			wantIDs []string
		}{
			{name: "all", wantIDs: []string{admin.ID, teacher.ID, student.ID}},
			{name: "search", filter: &user.QueryFilter{Search: "TURING"}, wantIDs: []string{student.ID}},
			{name: "roles", filter: &user.QueryFilter{Roles: []string{user.RoleAdmin, user.RoleTeacher}}, wantIDs: []string{admin.ID, teacher.ID}},
			{name: "active", filter: &user.QueryFilter{IsActive: &active}, wantIDs: []string{admin.ID, teacher.ID}},
			{name: "created from", filter: &user.QueryFilter{CreatedFrom: now.Add(-time.Hour)}, wantIDs: []string{student.ID}},
			{
				name:    "ordered by name",
				ords:    []core.DBOrdering{{Field: "name", Ascending: false}},
				wantIDs: []string{teacher.ID, student.ID, admin.ID},
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				usrs, err := repo.QueryUsers(ctx, tt.filter, tt.ords)
				require.NoError(t, err)
				ids := make([]string, 0, len(usrs))
				for _, u := range usrs {
					ids = append(ids, u.ID)
				}
				assert.Equal(t, tt.wantIDs, ids)
			})
		}
	})

	t.Run("update", func(t *testing.T) {
		usr := student
		usr.Name = "Alan M. Turing"
		usr.GoogleID = null.StringFrom("google-123")
		usr.IsActive = true
		_, err := repo.UpdateUser(ctx, usr)
		require.NoError(t, err)

		got, err := repo.GetUser(ctx, user.GetFilter{GoogleID: "google-123"})
		require.NoError(t, err)
		assert.Equal(t, "Alan M. Turing", got.Name)
		assert.True(t, got.IsActive)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.DeleteUsers(ctx, []string{admin.ID, student.ID}))
		usrs, err := repo.QueryUsers(ctx, nil, nil)
		require.NoError(t, err)
		require.Len(t, usrs, 1)
		assert.Equal(t, teacher.ID, usrs[0].ID)
	})
}

package sqlxrepos

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/minerva/core"
	"github.com/trezcool/minerva/core/course"
	"github.com/trezcool/minerva/core/user"
)

func TestOrderingColumns(t *testing.T) {
	tests := []struct {
		name    string
		fields  []string
		columns map[string]string
	}{
		{name: "users", fields: user.OrderingFields, columns: userOrderings},
		{name: "courses", fields: course.CourseOrderingFields, columns: courseOrderings},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys := make([]string, 0, len(tt.columns))
			for k := range tt.columns {
				keys = append(keys, k)
			}
			assert.ElementsMatch(t, tt.fields, keys)
		})
	}
}

func TestOrderBy(t *testing.T) {
	cols := map[string]string{"name": "name", "created_at": "created_at"}

	assert.Equal(t, []string{`"name" DESC`, `"created_at" ASC`}, orderBy([]core.DBOrdering{
		{Field: "name"}, {Field: "created_at", Ascending: true},
	}, cols, "id ASC"))
	assert.Equal(t, []string{"id ASC"}, orderBy(nil, cols, "id ASC"))
	assert.Equal(t, []string{"id ASC"}, orderBy([]core.DBOrdering{{Field: "unknown"}}, cols, "id ASC"))
}

package echoapi

import (
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/minerva/core"
)

var (
	orderingParam = "ordering"

	errUnknownOrdering = errors.New("unknown ordering field")
)

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind parses `?ordering=name,-created_at` into Orderings. Fields are lowercased and must be one of fields;
// an unknown field is a validation error on "ordering".
func (ord *Ordering) Bind(ctx echo.Context, fields []string) error {
	val := strings.TrimSpace(ctx.QueryParam(orderingParam))
	if val == "" {
		return nil
	}

	allowed := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		allowed[f] = struct{}{}
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.ToLower(strings.TrimSpace(field))
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		if _, ok := allowed[field]; !ok {
			return core.NewValidationError(errUnknownOrdering, core.FieldError{
				Field: orderingParam,
				Error: fmt.Sprintf("unknown field %q; allowed: %s", field, strings.Join(fields, ", ")),
			})
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
	return nil
}

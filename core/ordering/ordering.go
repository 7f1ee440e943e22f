// Package ordering keeps the children of an ordered collection (modules of a course, contents of a module)
// numbered as a dense 1-based sequence: {1, 2, ..., n} with no gaps and no duplicates.
//
// New children are appended after the last sibling, and survivors are re-sequenced after a deletion.
// Every operation must run inside the unit of work that performs the primary mutation,
// after Collection.Lock was called for the parent: Lock serializes writers per parent.
package ordering

import (
	"context"
	"errors"

	pkgerrors "github.com/pkg/errors"
)

var (
	ErrParentNotFound = errors.New("parent not found")
	ErrInvalidOrder   = errors.New("order must be a positive integer")
)

// Sibling is a child of an ordered collection.
type Sibling struct {
	ID    string
	Order int
}

// Collection gives access to the children of one kind of parent.
type Collection interface {
	// Lock serializes ordering work on the parent until the end of the unit of work.
	// Returns ErrParentNotFound when the parent does not exist.
	Lock(ctx context.Context, parentID string) error
	// MaxOrder returns the highest order among the children of parentID; 0 if there are none.
	MaxOrder(ctx context.Context, parentID string) (int, error)
	// Siblings returns the children of parentID sorted by ascending order.
	Siblings(ctx context.Context, parentID string) ([]Sibling, error)
	SetOrder(ctx context.Context, id string, order int) error
}

// Next returns the order a new child of parentID gets when appended: MAX(order) + 1, 1 when there are no siblings.
func Next(ctx context.Context, c Collection, parentID string) (int, error) {
	last, err := c.MaxOrder(ctx, parentID)
	if err != nil {
		return 0, pkgerrors.Wrap(err, "getting max order")
	}
	return last + 1, nil
}

// Assign returns the order of a new child of parentID.
// requested == 0 means unset: the child is appended. Any positive value is kept as is,
// a collision with an existing sibling is then rejected by the storage uniqueness constraint.
func Assign(ctx context.Context, c Collection, parentID string, requested int) (int, error) {
	switch {
	case requested < 0:
		return 0, ErrInvalidOrder
	case requested > 0:
		return requested, nil
	}
	return Next(ctx, c, parentID)
}

// Plan returns the siblings whose order must change for siblings (sorted by ascending order) to become
// dense, with their new order. Relative order is preserved. An already dense sequence yields no change.
func Plan(siblings []Sibling) []Sibling {
	var changes []Sibling
	for i, s := range siblings {
		if want := i + 1; s.Order != want {
			changes = append(changes, Sibling{ID: s.ID, Order: want})
		}
	}
	return changes
}

// Compact re-sequences the children of parentID to {1, ..., n} and returns how many of them moved.
// Changes are written one by one in ascending order: every target order is already free when written,
// so a (parent, order) uniqueness constraint never fires mid-way.
func Compact(ctx context.Context, c Collection, parentID string) (int, error) {
	siblings, err := c.Siblings(ctx, parentID)
	if err != nil {
		return 0, pkgerrors.Wrap(err, "listing siblings")
	}
	changes := Plan(siblings)
	for _, s := range changes {
		if err = c.SetOrder(ctx, s.ID, s.Order); err != nil {
			return 0, pkgerrors.Wrapf(err, "setting order of %s", s.ID)
		}
	}
	return len(changes), nil
}

// IsDense reports whether siblings (sorted by ascending order) are numbered {1, ..., n}.
func IsDense(siblings []Sibling) bool {
	return len(Plan(siblings)) == 0
}

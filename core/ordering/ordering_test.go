package ordering

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memCollection is an in-memory Collection enforcing a (parent, order) uniqueness constraint.
type memCollection struct {
	parents map[string]bool
	items   map[string]*memItem
	writes  int
	failOn  string
}

type memItem struct {
	parent string
	order  int
}

func newMemCollection(parents ...string) *memCollection {
	c := &memCollection{parents: make(map[string]bool), items: make(map[string]*memItem)}
	for _, p := range parents {
		c.parents[p] = true
	}
	return c
}

var errDuplicateOrder = errors.New("duplicate order")

func (c *memCollection) insert(id, parent string, order int) error {
	for _, it := range c.items {
		if it.parent == parent && it.order == order {
			return errDuplicateOrder
		}
	}
	c.items[id] = &memItem{parent: parent, order: order}
	return nil
}

// create runs the create-child operation: assign then insert.
func (c *memCollection) create(t *testing.T, id, parent string) int {
	order, err := Assign(context.Background(), c, parent, 0)
	require.NoError(t, err)
	require.NoError(t, c.insert(id, parent, order))
	return order
}

// remove runs the delete-child operation: delete then compact.
func (c *memCollection) remove(t *testing.T, id string) {
	parent := c.items[id].parent
	delete(c.items, id)
	_, err := Compact(context.Background(), c, parent)
	require.NoError(t, err)
}

func (c *memCollection) orders(parent string) map[string]int {
	res := make(map[string]int)
	for id, it := range c.items {
		if it.parent == parent {
			res[id] = it.order
		}
	}
	return res
}

func (c *memCollection) Lock(_ context.Context, parentID string) error {
	if !c.parents[parentID] {
		return ErrParentNotFound
	}
	return nil
}

func (c *memCollection) MaxOrder(_ context.Context, parentID string) (int, error) {
	var last int
	for _, it := range c.items {
		if it.parent == parentID && it.order > last {
			last = it.order
		}
	}
	return last, nil
}

func (c *memCollection) Siblings(_ context.Context, parentID string) ([]Sibling, error) {
	var sibs []Sibling
	for id, it := range c.items {
		if it.parent == parentID {
			sibs = append(sibs, Sibling{ID: id, Order: it.order})
		}
	}
	sort.Slice(sibs, func(i, j int) bool { return sibs[i].Order < sibs[j].Order })
	return sibs, nil
}

func (c *memCollection) SetOrder(_ context.Context, id string, order int) error {
	if id == c.failOn {
		return errors.New("boom")
	}
	it := c.items[id]
	for otherID, other := range c.items {
		if otherID != id && other.parent == it.parent && other.order == order {
			return errDuplicateOrder
		}
	}
	it.order = order
	c.writes++
	return nil
}

func TestNext(t *testing.T) {
	c := newMemCollection("p", "q", "r")
	require.NoError(t, c.insert("a", "p", 1))
	require.NoError(t, c.insert("b", "p", 5))
	require.NoError(t, c.insert("c", "q", 9))

	tests := []struct {
		name   string
		parent string
		want   int
	}{
		{name: "after the highest order", parent: "p", want: 6},
		{name: "single child", parent: "q", want: 10},
		{name: "no children", parent: "r", want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Next(context.Background(), c, tt.parent)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAssign(t *testing.T) {
	ctx := context.Background()
	c := newMemCollection("p")

	order, err := Assign(ctx, c, "p", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, order, "first child starts at 1")

	require.NoError(t, c.insert("a", "p", order))
	order, err = Assign(ctx, c, "p", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, order)

	order, err = Assign(ctx, c, "p", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, order, "explicit order is kept")

	_, err = Assign(ctx, c, "p", -1)
	assert.Equal(t, ErrInvalidOrder, err)
}

func TestCreateIsDense(t *testing.T) {
	for _, n := range []int{1, 2, 5, 16, 40} {
		t.Run(strconv.Itoa(n), func(t *testing.T) {
			c := newMemCollection("p", "q")
			for i := 0; i < n; i++ {
				c.create(t, "p"+strconv.Itoa(i), "p")
				c.create(t, "q"+strconv.Itoa(i), "q")
			}
			sibs, _ := c.Siblings(context.Background(), "p")
			assert.Len(t, sibs, n)
			assert.True(t, IsDense(sibs))
		})
	}
}

func TestCompact(t *testing.T) {
	ctx := context.Background()

	t.Run("delete any one child", func(t *testing.T) {
		const n = 6
		for del := 0; del < n; del++ {
			c := newMemCollection("p")
			ids := make([]string, n)
			for i := range ids {
				ids[i] = "m" + strconv.Itoa(i)
				c.create(t, ids[i], "p")
			}
			c.remove(t, ids[del])

			sibs, _ := c.Siblings(ctx, "p")
			require.True(t, IsDense(sibs))
			survivors := append(append([]string{}, ids[:del]...), ids[del+1:]...)
			for i, s := range sibs {
				assert.Equal(t, survivors[i], s.ID, "relative order of survivors is preserved")
			}
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		c := newMemCollection("p")
		for i := 0; i < 4; i++ {
			c.create(t, strconv.Itoa(i), "p")
		}
		before := c.orders("p")
		moved, err := Compact(ctx, c, "p")
		require.NoError(t, err)
		assert.Zero(t, moved)
		assert.Zero(t, c.writes)
		assert.Equal(t, before, c.orders("p"))
	})

	t.Run("several gaps", func(t *testing.T) {
		c := newMemCollection("p")
		require.NoError(t, c.insert("a", "p", 2))
		require.NoError(t, c.insert("b", "p", 5))
		require.NoError(t, c.insert("c", "p", 6))
		require.NoError(t, c.insert("d", "p", 9))

		moved, err := Compact(ctx, c, "p")
		require.NoError(t, err)
		assert.Equal(t, 4, moved)
		assert.Equal(t, map[string]int{"a": 1, "b": 2, "c": 3, "d": 4}, c.orders("p"))
	})

	t.Run("other parents untouched", func(t *testing.T) {
		c := newMemCollection("p", "q")
		c.create(t, "p1", "p")
		c.create(t, "p2", "p")
		c.create(t, "q1", "q")
		c.create(t, "q2", "q")
		c.remove(t, "p1")
		assert.Equal(t, map[string]int{"q1": 1, "q2": 2}, c.orders("q"))
		assert.Equal(t, map[string]int{"p2": 1}, c.orders("p"))
	})

	t.Run("write failure", func(t *testing.T) {
		c := newMemCollection("p")
		require.NoError(t, c.insert("a", "p", 3))
		c.failOn = "a"
		_, err := Compact(ctx, c, "p")
		assert.Error(t, err)
	})
}

func TestScenarioModules(t *testing.T) {
	c := newMemCollection("course")
	assert.Equal(t, 1, c.create(t, "A", "course"))
	assert.Equal(t, 2, c.create(t, "B", "course"))
	assert.Equal(t, 3, c.create(t, "C", "course"))

	c.remove(t, "B")
	assert.Equal(t, map[string]int{"A": 1, "C": 2}, c.orders("course"))

	assert.Equal(t, 3, c.create(t, "D", "course"))
}

func TestPlan(t *testing.T) {
	tests := []struct {
		name     string
		siblings []Sibling
		want     []Sibling
	}{
		{name: "empty"},
		{name: "dense", siblings: []Sibling{{"a", 1}, {"b", 2}}},
		{name: "gap at start", siblings: []Sibling{{"a", 2}, {"b", 3}}, want: []Sibling{{"a", 1}, {"b", 2}}},
		{name: "gap in middle", siblings: []Sibling{{"a", 1}, {"b", 3}, {"c", 4}}, want: []Sibling{{"b", 2}, {"c", 3}}},
		{name: "duplicates", siblings: []Sibling{{"a", 1}, {"b", 1}, {"c", 2}}, want: []Sibling{{"b", 2}, {"c", 3}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Plan(tt.siblings))
			assert.Equal(t, len(tt.want) == 0, IsDense(tt.siblings))
		})
	}
}

package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/quickgrade/core"
)

func catalogIDs(c *Catalog) []int {
	ids := make([]int, 0, c.Len())
	for _, item := range c.Items() {
		ids = append(ids, item.ID)
	}
	return ids
}

func TestNewCatalog(t *testing.T) {
	tests := []struct {
		name    string
		items   []FeedbackItem
		wantIDs []int
		nextID  int
	}{
		{name: "empty", nextID: 1},
		{
			name:    "ids kept",
			items:   []FeedbackItem{{ID: 1, Comment: "a"}, {ID: 2, Comment: "b"}},
			wantIDs: []int{1, 2},
			nextID:  3,
		},
		{
			name:    "gap is reused first",
			items:   []FeedbackItem{{ID: 1, Comment: "a"}, {ID: 3, Comment: "b"}},
			wantIDs: []int{1, 3},
			nextID:  2,
		},
		{
			name:    "missing and duplicate ids reallocated",
			items:   []FeedbackItem{{ID: 2, Comment: "a"}, {Comment: "b"}, {ID: 2, Comment: "c"}},
			wantIDs: []int{2, 1, 3},
			nextID:  4,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCatalog(tt.items...)
			assert.Equal(t, len(tt.items), c.Len())
			if len(tt.wantIDs) > 0 {
				assert.Equal(t, tt.wantIDs, catalogIDs(c))
			}
			assert.Equal(t, tt.nextID, c.Add("new", 1).ID)
		})
	}
}

func TestCatalog_AddDelete_reusesSmallestFreedID(t *testing.T) {
	c := NewCatalog()
	for _, comment := range []string{"a", "b", "c", "d"} {
		c.Add(comment, 1)
	}
	require.Equal(t, []int{1, 2, 3, 4}, catalogIDs(c))

	_, ok := c.Delete(3)
	require.True(t, ok)
	_, ok = c.Delete(2)
	require.True(t, ok)
	_, ok = c.Delete(2)
	assert.False(t, ok, "deleting twice")

	assert.Equal(t, 2, c.Add("e", 1).ID)
	assert.Equal(t, 3, c.Add("f", 1).ID)
	assert.Equal(t, 5, c.Add("g", 1).ID)
	assert.Equal(t, []int{1, 4, 2, 3, 5}, catalogIDs(c))
}

func TestCatalog_Update(t *testing.T) {
	c := NewCatalog(FeedbackItem{ID: 1, Comment: "a", Grade: 1}, FeedbackItem{ID: 2, Comment: "b", Grade: 2})

	old, updated, ok := c.Update(2, "  better b ", 4)
	require.True(t, ok)
	assert.Equal(t, FeedbackItem{ID: 2, Comment: "b", Grade: 2}, old)
	assert.Equal(t, FeedbackItem{ID: 2, Comment: "better b", Grade: 4}, updated)
	assert.Equal(t, []int{1, 2}, catalogIDs(c), "position kept")

	_, _, ok = c.Update(9, "x", 1)
	assert.False(t, ok)
}

func TestCatalog_Reorder(t *testing.T) {
	tests := []struct {
		name    string
		ids     []int
		wantErr bool
		wantIDs []int
	}{
		{name: "permutation", ids: []int{3, 1, 2}, wantIDs: []int{3, 1, 2}},
		{name: "same order", ids: []int{1, 2, 3}, wantIDs: []int{1, 2, 3}},
		{name: "too few", ids: []int{1, 2}, wantErr: true},
		{name: "unknown id", ids: []int{1, 2, 4}, wantErr: true},
		{name: "duplicate id", ids: []int{1, 1, 2}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCatalog(FeedbackItem{ID: 1, Comment: "a"}, FeedbackItem{ID: 2, Comment: "b"}, FeedbackItem{ID: 3, Comment: "c"})
			err := c.Reorder(tt.ids)
			if tt.wantErr {
				var verr *core.ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, "ids", verr.Fields[0].Field)
				assert.Equal(t, []int{1, 2, 3}, catalogIDs(c), "order unchanged")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantIDs, catalogIDs(c))
		})
	}
}

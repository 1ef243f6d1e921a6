package grading

import (
	"fmt"

	"github.com/trezcool/quickgrade/core"
)

// Catalog is the ordered collection of feedback snippets of a session.
type Catalog struct {
	items []FeedbackItem
	ids   *idAllocator
}

// NewCatalog restores a catalog from items.
// Items without a valid id, or with an id already taken, get a freshly allocated one.
func NewCatalog(items ...FeedbackItem) *Catalog {
	c := &Catalog{ids: newIDAllocator()}

	seen := make(map[int]bool, len(items))
	used := make([]int, 0, len(items))
	for _, item := range items {
		if item.ID > 0 && !seen[item.ID] {
			seen[item.ID] = true
			used = append(used, item.ID)
		}
	}
	c.ids.Reset(used)

	assigned := make(map[int]bool, len(items))
	c.items = make([]FeedbackItem, 0, len(items))
	for _, item := range items {
		if item.ID <= 0 || assigned[item.ID] {
			item.ID = c.ids.Alloc()
		}
		assigned[item.ID] = true
		item.Comment = core.CleanString(item.Comment)
		c.items = append(c.items, item)
	}
	return c
}

func (c *Catalog) Len() int { return len(c.items) }

// Items returns a copy of the catalog entries, in display order.
func (c *Catalog) Items() []FeedbackItem {
	items := make([]FeedbackItem, len(c.items))
	copy(items, c.items)
	return items
}

// Lookup returns the catalog entries keyed by id.
func (c *Catalog) Lookup() map[int]FeedbackItem {
	m := make(map[int]FeedbackItem, len(c.items))
	for _, item := range c.items {
		m[item.ID] = item
	}
	return m
}

func (c *Catalog) index(id int) int {
	for i, item := range c.items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

func (c *Catalog) Get(id int) (FeedbackItem, bool) {
	if i := c.index(id); i >= 0 {
		return c.items[i], true
	}
	return FeedbackItem{}, false
}

// Add appends a new entry with the smallest available id.
func (c *Catalog) Add(comment string, grade float64) FeedbackItem {
	item := FeedbackItem{
		ID:      c.ids.Alloc(),
		Comment: core.CleanString(comment),
		Grade:   grade,
	}
	c.items = append(c.items, item)
	return item
}

// Update edits an entry in place (its id and position are kept) and returns its previous version.
func (c *Catalog) Update(id int, comment string, grade float64) (old, updated FeedbackItem, ok bool) {
	i := c.index(id)
	if i < 0 {
		return FeedbackItem{}, FeedbackItem{}, false
	}
	old = c.items[i]
	updated = FeedbackItem{ID: id, Comment: core.CleanString(comment), Grade: grade}
	c.items[i] = updated
	return old, updated, true
}

// Delete removes an entry and frees its id for reuse.
func (c *Catalog) Delete(id int) (FeedbackItem, bool) {
	i := c.index(id)
	if i < 0 {
		return FeedbackItem{}, false
	}
	item := c.items[i]
	items := make([]FeedbackItem, 0, len(c.items)-1)
	items = append(items, c.items[:i]...)
	items = append(items, c.items[i+1:]...)
	c.items = items
	c.ids.Free(id)
	return item, true
}

// Reorder sets a new display order; ids must be a permutation of the catalog ids.
func (c *Catalog) Reorder(ids []int) error {
	if len(ids) != len(c.items) {
		return core.NewValidationError(nil, core.FieldError{
			Field: "ids",
			Error: fmt.Sprintf("expected %d ids, got %d", len(c.items), len(ids)),
		})
	}
	byID := c.Lookup()
	items := make([]FeedbackItem, 0, len(ids))
	seen := make(map[int]bool, len(ids))
	for _, id := range ids {
		item, ok := byID[id]
		if !ok || seen[id] {
			return core.NewValidationError(nil, core.FieldError{
				Field: "ids",
				Error: fmt.Sprintf("invalid or duplicate feedback item id %d", id),
			})
		}
		seen[id] = true
		items = append(items, item)
	}
	c.items = items
	return nil
}

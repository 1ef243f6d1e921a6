package grading

// Selection is the set of students targeted by bulk feedback application.
type Selection struct {
	names map[string]struct{}
}

func NewSelection() *Selection {
	return &Selection{names: make(map[string]struct{})}
}

func (sel *Selection) Has(name string) bool {
	_, ok := sel.names[name]
	return ok
}

func (sel *Selection) Add(name string)    { sel.names[name] = struct{}{} }
func (sel *Selection) Remove(name string) { delete(sel.names, name) }
func (sel *Selection) Len() int           { return len(sel.names) }
func (sel *Selection) Clear()             { sel.names = make(map[string]struct{}) }

// Toggle flips name in or out of the selection and reports whether it is now selected.
func (sel *Selection) Toggle(name string) bool {
	if sel.Has(name) {
		sel.Remove(name)
		return false
	}
	sel.Add(name)
	return true
}

// Ordered returns the selected names following `order`.
func (sel *Selection) Ordered(order []string) []string {
	names := make([]string, 0, len(sel.names))
	for _, name := range order {
		if sel.Has(name) {
			names = append(names, name)
		}
	}
	return names
}

package topic

import "slices"

// MaxSelected bounds how many articles can be selected at once.
const MaxSelected = 2

// Selection is an insertion-ordered set of at most MaxSelected article ids.
// It is a value: Toggle returns a new Selection and never mutates the
// receiver.
type Selection struct {
	ids []string
}

// NewSelection builds a selection by toggling ids in order.
func NewSelection(ids ...string) Selection {
	var s Selection
	for _, id := range ids {
		s = s.Toggle(id)
	}
	return s
}

// Toggle removes id if selected, appends it if there is room, and
// otherwise returns s unchanged.
func (s Selection) Toggle(id string) Selection {
	if i := slices.Index(s.ids, id); i >= 0 {
		return Selection{ids: slices.Delete(slices.Clone(s.ids), i, i+1)}
	}
	if len(s.ids) >= MaxSelected {
		return s
	}
	return Selection{ids: append(slices.Clone(s.ids), id)}
}

// Contains reports whether id is selected.
func (s Selection) Contains(id string) bool { return slices.Contains(s.ids, id) }

// Len returns the number of selected ids.
func (s Selection) Len() int { return len(s.ids) }

// IDs returns a copy of the selected ids in insertion order.
func (s Selection) IDs() []string {
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

// Full reports whether another id would be rejected.
func (s Selection) Full() bool { return len(s.ids) >= MaxSelected }

// Equal reports whether s holds exactly ids, in order.
func (s Selection) Equal(ids []string) bool { return slices.Equal(s.ids, ids) }

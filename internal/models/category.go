package models

// Category is one classification label from the configured set.
type Category string

// Uncategorized is the reserved fallback bucket for records that never
// obtain a valid label.
const Uncategorized Category = "Uncategorized"

// CategorySet is the ordered set of allowed labels plus the reserved
// fallback. Loaded once at startup and read-only afterwards.
type CategorySet struct {
	labels []Category
	index  map[Category]struct{}
}

// DefaultCategories mirrors the label set the classifier is prompted with.
var DefaultCategories = []string{
	"Programming",
	"AI",
	"VPN",
	"Tools",
	"Entertainment",
	"E-commerce",
	"Vendors",
	"Social",
	"News",
	"Design",
}

// NewCategorySet builds a set from label strings, dropping empty entries
// and duplicates while preserving order. The fallback label is reserved
// and never part of the allowed set.
func NewCategorySet(labels []string) *CategorySet {
	s := &CategorySet{index: make(map[Category]struct{}, len(labels))}
	for _, l := range labels {
		c := Category(l)
		if c == "" || c == Uncategorized {
			continue
		}
		if _, dup := s.index[c]; dup {
			continue
		}
		s.index[c] = struct{}{}
		s.labels = append(s.labels, c)
	}
	return s
}

// Contains reports whether label is an allowed category.
func (s *CategorySet) Contains(label Category) bool {
	_, ok := s.index[label]
	return ok
}

// Labels returns the allowed labels in configuration order.
func (s *CategorySet) Labels() []Category {
	out := make([]Category, len(s.labels))
	copy(out, s.labels)
	return out
}

// Len returns the number of allowed labels, excluding the fallback.
func (s *CategorySet) Len() int {
	return len(s.labels)
}

package domain

// CategoryMap maps known categorical labels to ordinal codes. Unknown labels
// resolve to code 0. It is immutable and safe for concurrent use.
type CategoryMap struct {
	field   string
	feature string
	labels  []string
	codes   map[string]int
}

// Category is one label/code pair of a CategoryMap.
type Category struct {
	Label string `json:"label"`
	Code  int    `json:"code"`
}

func newCategoryMap(field, feature string, entries []Category, aliases map[string]string) CategoryMap {
	m := CategoryMap{
		field:   field,
		feature: feature,
		labels:  make([]string, 0, len(entries)),
		codes:   make(map[string]int, len(entries)+len(aliases)),
	}
	for _, e := range entries {
		m.labels = append(m.labels, e.Label)
		m.codes[e.Label] = e.Code
	}
	for alias, label := range aliases {
		m.codes[alias] = m.codes[label]
	}
	return m
}

// Field is the form field the map reads.
func (m CategoryMap) Field() string { return m.field }

// Feature is the schema feature the code is written to.
func (m CategoryMap) Feature() string { return m.feature }

// Code returns the code for an exact label match. Unknown labels give 0, false.
func (m CategoryMap) Code(label string) (int, bool) {
	c, ok := m.codes[label]
	return c, ok
}

// Labels returns the canonical labels in display order. Aliases are excluded.
func (m CategoryMap) Labels() []string {
	out := make([]string, len(m.labels))
	copy(out, m.labels)
	return out
}

// Entries returns the canonical label/code pairs in display order.
func (m CategoryMap) Entries() []Category {
	out := make([]Category, len(m.labels))
	for i, l := range m.labels {
		out[i] = Category{Label: l, Code: m.codes[l]}
	}
	return out
}

// Category tables the model was trained with.
var (
	StatusMap = newCategoryMap("status", "Status", []Category{
		{"Under Construction", 0},
		{"Ready to Move", 1},
	}, nil)

	TransactionMap = newCategoryMap("transaction", "Transaction", []Category{
		{"Resale", 0},
		{"New Property", 1},
	}, nil)

	FurnishingMap = newCategoryMap("furnishing", "Furnishing", []Category{
		{"Unfurnished", 0},
		{"Semi-Furnished", 1},
		{"Furnished", 2},
	}, nil)

	// The training data spells diagonal directions with spaced hyphens.
	FacingMap = newCategoryMap("facing", "facing", []Category{
		{"East", 3},
		{"West", 2},
		{"North", 2},
		{"South", 4},
		{"North - East", 5},
		{"North - West", 5},
		{"South - East", 0},
		{"South - West", 1},
		{"NA", 0},
	}, map[string]string{
		"North-East": "North - East",
		"North-West": "North - West",
		"South-East": "South - East",
		"South-West": "South - West",
	})

	OwnershipMap = newCategoryMap("ownership", "Ownership", []Category{
		{"Freehold", 0},
		{"Leasehold", 1},
		{"Power Of Attorney", 2},
		{"Co-operative Society", 3},
	}, nil)
)

// CategoryMaps lists the tables in encoding order.
var CategoryMaps = []CategoryMap{StatusMap, TransactionMap, FurnishingMap, FacingMap, OwnershipMap}

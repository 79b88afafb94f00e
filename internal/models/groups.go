package models

// FindingGroups buckets findings per category. Values built with
// NewFindingGroups always carry all five keys.
type FindingGroups map[Category][]Finding

func NewFindingGroups() FindingGroups {
	g := make(FindingGroups, len(Categories))
	for _, c := range Categories {
		g[c] = []Finding{}
	}
	return g
}

// Add files f under c. Unclassified findings are ignored.
func (g FindingGroups) Add(c Category, f Finding) {
	if !c.Valid() {
		return
	}
	g[c] = append(g[c], f)
}

// Merge appends every group of other onto g.
func (g FindingGroups) Merge(other FindingGroups) {
	for _, c := range Categories {
		if _, ok := g[c]; !ok {
			g[c] = []Finding{}
		}
		g[c] = append(g[c], other[c]...)
	}
}

// Total counts findings across all groups.
func (g FindingGroups) Total() int {
	n := 0
	for _, c := range Categories {
		n += len(g[c])
	}
	return n
}

func (g FindingGroups) MarshalJSON() ([]byte, error) {
	filled := NewFindingGroups()
	filled.Merge(g)
	return marshalByCategory(filled, Category.FindingsKey)
}

func (g *FindingGroups) UnmarshalJSON(data []byte) error {
	decoded, err := unmarshalByCategory[[]Finding](data)
	if err != nil {
		return err
	}
	out := NewFindingGroups()
	out.Merge(decoded)
	*g = out
	return nil
}

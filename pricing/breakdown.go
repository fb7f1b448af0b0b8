package pricing

// Breakdown is a categorized cost. Total is always Labor + Materials + Misc.
type Breakdown struct {
	Labor     float64 `json:"labor"`
	Materials float64 `json:"materials"`
	Misc      float64 `json:"misc"`
	Total     float64 `json:"total"`
}

// NewBreakdown builds a breakdown and its total.
func NewBreakdown(labor, materials, misc float64) Breakdown {
	return Breakdown{Labor: labor, Materials: materials, Misc: misc, Total: labor + materials + misc}
}

// Only returns a breakdown holding v in category c.
func Only(c Category, v float64) Breakdown {
	switch c {
	case Labor:
		return NewBreakdown(v, 0, 0)
	case Materials:
		return NewBreakdown(0, v, 0)
	}
	return NewBreakdown(0, 0, v)
}

// Add returns the per-category sum of b and o.
func (b Breakdown) Add(o Breakdown) Breakdown {
	return NewBreakdown(b.Labor+o.Labor, b.Materials+o.Materials, b.Misc+o.Misc)
}

// Get returns the amount in category c.
func (b Breakdown) Get(c Category) float64 {
	switch c {
	case Labor:
		return b.Labor
	case Materials:
		return b.Materials
	}
	return b.Misc
}

// ContributorResult is a line's breakdown together with the contributors
// rolled into it.
type ContributorResult struct {
	NodeID    string              `json:"node_id"`
	Label     string              `json:"label"`
	Breakdown Breakdown           `json:"breakdown"`
	Children  []ContributorResult `json:"children"`
}

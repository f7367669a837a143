package catalog

// Topic is a named sub-theme of a category.
type Topic struct {
	Name         string  `json:"name" yaml:"name"`
	MentionCount int     `json:"mentionCount" yaml:"mention_count"`
	ConsensusPct float64 `json:"consensusPct" yaml:"consensus_pct"`
}

// Category is a top-level research theme with aggregate progress.
type Category struct {
	Key         string  `json:"key" yaml:"key"`
	Label       string  `json:"label" yaml:"label"`
	ProgressPct int     `json:"progressPct" yaml:"progress_pct"`
	Topics      []Topic `json:"topics" yaml:"topics"`
}

// clone returns a deep copy so callers never share the catalog's slices.
func (c Category) clone() Category {
	out := c
	out.Topics = make([]Topic, len(c.Topics))
	copy(out.Topics, c.Topics)
	return out
}

type file struct {
	Categories []Category `yaml:"categories"`
}

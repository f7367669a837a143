// Package dashboard implements the category dashboard state machine: which
// category is selected, whether a search is active, and the chart data
// derived for the current view.
package dashboard

import (
	"github.com/astrobio/progression/engine/catalog"
	"github.com/astrobio/progression/engine/chart"
	"github.com/astrobio/progression/engine/domain"
)

// Mode is the sub-view the dashboard currently shows.
type Mode string

const (
	ModeUnknown Mode = "unknown"
	ModeCharts  Mode = "charts"
	ModeSearch  Mode = "search"
)

// PlaceholderMessage is shown when the category key matches nothing.
const PlaceholderMessage = "Select a category from the home page."

// Charts is the chart-mode payload.
type Charts struct {
	Bars      []chart.Bar           `json:"bars"`
	Heatmap   chart.Heatmap         `json:"heatmap"`
	Words     []chart.WordWeight    `json:"words"`
	Consensus []chart.ConsensusItem `json:"consensus"`
}

// View is what the rendering layer receives.
type View struct {
	Mode        Mode    `json:"mode"`
	CategoryKey string  `json:"categoryKey"`
	Label       string  `json:"label"`
	ProgressPct int     `json:"progressPct,omitempty"`
	Query       string  `json:"query,omitempty"`
	Charts      *Charts `json:"charts,omitempty"`
	Message     string  `json:"message,omitempty"`
}

// Dashboard is not safe for concurrent use; it models one page instance
// reacting to a serialized stream of events.
type Dashboard struct {
	catalog  *catalog.Catalog
	key      string
	category catalog.Category
	known    bool
	query    string
}

// New returns a dashboard with no category selected.
func New(c *catalog.Catalog) *Dashboard {
	return &Dashboard{catalog: c}
}

// NavigateToCategory selects the category for key and clears any search.
// An unknown key leaves the dashboard in the placeholder state and returns
// domain.ErrUnknownCategory.
func (d *Dashboard) NavigateToCategory(key string) error {
	d.key = key
	d.query = ""
	d.category, d.known = d.catalog.Lookup(key)
	if !d.known {
		return domain.ErrUnknownCategory
	}
	return nil
}

// Search sets the trimmed query. A query that trims to empty is the same
// as ClearSearch.
func (d *Dashboard) Search(q string) {
	d.query = domain.NormalizeQuery(q)
}

// ClearSearch returns to chart mode.
func (d *Dashboard) ClearSearch() {
	d.query = ""
}

// Query returns the active search query, "" when none.
func (d *Dashboard) Query() string { return d.query }

// Category returns the selected category, if any.
func (d *Dashboard) Category() (catalog.Category, bool) {
	return d.category, d.known
}

// Mode reports the current sub-view.
func (d *Dashboard) Mode() Mode {
	switch {
	case !d.known:
		return ModeUnknown
	case d.query != "":
		return ModeSearch
	default:
		return ModeCharts
	}
}

// View renders the current state. Chart data is recomputed on every call.
func (d *Dashboard) View() View {
	v := View{Mode: d.Mode(), CategoryKey: d.key}
	switch v.Mode {
	case ModeUnknown:
		v.Label = "Dashboard"
		v.Message = PlaceholderMessage
	case ModeSearch:
		v.Label = d.category.Label
		v.ProgressPct = d.category.ProgressPct
		v.Query = d.query
	case ModeCharts:
		v.Label = d.category.Label
		v.ProgressPct = d.category.ProgressPct
		v.Charts = BuildCharts(d.category.Topics)
	}
	return v
}

// BuildCharts runs every chart transform over topics.
func BuildCharts(topics []catalog.Topic) *Charts {
	return &Charts{
		Bars:      chart.Bars(topics),
		Heatmap:   chart.Matrix(topics),
		Words:     chart.Words(topics),
		Consensus: chart.Consensus(topics),
	}
}

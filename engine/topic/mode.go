package topic

// Mode is what the console panel shows. It changes only on Commit or Reset,
// never on selection changes alone.
type Mode string

const (
	ModeNone    Mode = "none"
	ModeInsight Mode = "insight"
	ModeCompare Mode = "compare"
)

// Action is the commit action the current selection size offers.
type Action string

const (
	ActionNone     Action = ""
	ActionInsights Action = "Generate Insights"
	ActionCompare  Action = "Compare Articles"
)

func actionFor(n int) Action {
	switch n {
	case 1:
		return ActionInsights
	case 2:
		return ActionCompare
	default:
		return ActionNone
	}
}

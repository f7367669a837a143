package chart

import "fmt"

// Bucket is a qualitative consensus level.
type Bucket int

const (
	Low Bucket = iota
	Medium
	High
)

// Classify buckets a consensus percentage: High ≥70, Medium 40–69, Low <40.
func Classify(pct float64) Bucket {
	switch {
	case pct >= 70:
		return High
	case pct >= 40:
		return Medium
	default:
		return Low
	}
}

func (b Bucket) String() string {
	switch b {
	case High:
		return "high"
	case Medium:
		return "medium"
	case Low:
		return "low"
	default:
		return "unknown"
	}
}

// Label is the axis label used by the heatmap.
func (b Bucket) Label() string {
	switch b {
	case High:
		return "High consensus (≥70%)"
	case Medium:
		return "Medium (40–69%)"
	default:
		return "Low (<40%)"
	}
}

// MarshalText encodes the bucket as its lowercase name.
func (b Bucket) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText decodes a lowercase bucket name.
func (b *Bucket) UnmarshalText(text []byte) error {
	switch string(text) {
	case "high":
		*b = High
	case "medium":
		*b = Medium
	case "low":
		*b = Low
	default:
		return fmt.Errorf("chart: unknown bucket %q", text)
	}
	return nil
}

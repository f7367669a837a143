// Package chart derives chart-ready shapes from a category's topic list.
// Every function here is pure: same input, same output, no side effects,
// and an empty input yields an empty output.
package chart

import (
	"math"
	"sort"

	"github.com/astrobio/progression/engine/catalog"
	"github.com/astrobio/progression/pkg/fn"
)

// TopBars is how many bars the top-topics chart shows.
const TopBars = 5

// Bar is one bar of the top-topics chart.
type Bar struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// WordWeight is one entry of the word cloud.
type WordWeight struct {
	Text   string `json:"text"`
	Weight int    `json:"weight"`
}

// ConsensusItem is one card of the consensus grid.
type ConsensusItem struct {
	Name         string  `json:"name"`
	ConsensusPct float64 `json:"consensusPct"`
	Bucket       Bucket  `json:"bucket"`
}

// Bars returns the top topics by mention count, descending. Ties keep the
// original topic order.
func Bars(topics []catalog.Topic) []Bar {
	bars := fn.Map(topics, func(t catalog.Topic) Bar {
		return Bar{Name: t.Name, Value: float64(t.MentionCount)}
	})
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Value > bars[j].Value })
	if len(bars) > TopBars {
		bars = bars[:TopBars]
	}
	return bars
}

// Words maps each topic to a word-cloud entry with weight at least 1.
func Words(topics []catalog.Topic) []WordWeight {
	return fn.Map(topics, func(t catalog.Topic) WordWeight {
		w := int(math.Round(float64(t.MentionCount)))
		if w < 1 {
			w = 1
		}
		return WordWeight{Text: t.Name, Weight: w}
	})
}

// Consensus returns per-topic consensus in input order.
func Consensus(topics []catalog.Topic) []ConsensusItem {
	return fn.Map(topics, func(t catalog.Topic) ConsensusItem {
		return ConsensusItem{Name: t.Name, ConsensusPct: t.ConsensusPct, Bucket: Classify(t.ConsensusPct)}
	})
}

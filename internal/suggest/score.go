package suggest

import (
	"math"
	"sort"
)

// maxSuggestions bounds every per-field suggestion list.
const maxSuggestions = 5

// confidence maps an aggregate weight onto the 0-100 scale. The curve is
// linear: weight 0 scores 0, a full-confidence weight of 1.0 scores 100, and
// summed partial sources climb proportionally in between.
func confidence(weight float64) int {
	if weight < 0 {
		weight = 0
	}
	if weight > 1 {
		weight = 1
	}
	return int(math.Round(weight * 100))
}

// Score converts candidates into the final ranked suggestion list: candidates
// below the absolute floor are discarded, the rest are sorted descending by
// confidence (ties broken by source priority, then value), and the list is
// truncated to the top five.
func Score(candidates []Candidate, floor float64) []Suggestion {
	kept := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Weight >= floor && confidence(c.Weight) > 0 {
			kept = append(kept, c)
		}
	}

	sort.Slice(kept, func(i, j int) bool {
		ci, cj := confidence(kept[i].Weight), confidence(kept[j].Weight)
		if ci != cj {
			return ci > cj
		}
		if kept[i].Sources[0] != kept[j].Sources[0] {
			return kept[i].Sources[0] < kept[j].Sources[0]
		}
		return kept[i].Value < kept[j].Value
	})

	if len(kept) > maxSuggestions {
		kept = kept[:maxSuggestions]
	}

	out := make([]Suggestion, 0, len(kept))
	for _, c := range kept {
		out = append(out, Suggestion{
			Value:      c.Display,
			Confidence: confidence(c.Weight),
			Source:     c.Sources[0].String(),
		})
	}
	return out
}

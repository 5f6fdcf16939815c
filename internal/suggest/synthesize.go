package suggest

import "sort"

// maxAggregateWeight caps the summed weight of a merged candidate.
const maxAggregateWeight = 1.0

// Synthesize merges a field's evidence into deduplicated candidates. Values
// are matched on their normalized form; duplicate weights sum, capped at 1.0.
// The display spelling comes from the strongest-priority contributor.
func Synthesize(field Field, evidence []Evidence) []Candidate {
	merged := make(map[string]*Candidate)
	var order []string // first-seen order, keeps output stable for equal inputs

	for _, ev := range evidence {
		if ev.Field != field || ev.Value == "" {
			continue
		}
		key := normalizeValue(ev.Value)
		if key == "" {
			continue
		}

		cand := merged[key]
		if cand == nil {
			cand = &Candidate{Field: field, Value: key, Display: ev.Value}
			merged[key] = cand
			order = append(order, key)
		}

		cand.Weight += ev.Weight
		if cand.Weight > maxAggregateWeight {
			cand.Weight = maxAggregateWeight
		}
		addSource(cand, ev.Source)
		// Prefer the spelling from the strongest source.
		if cand.Sources[0] == ev.Source {
			cand.Display = ev.Value
		}
	}

	out := make([]Candidate, 0, len(order))
	for _, key := range order {
		out = append(out, *merged[key])
	}
	return out
}

// addSource inserts src into the candidate's source set, kept sorted by
// priority, strongest first.
func addSource(c *Candidate, src Source) {
	for _, existing := range c.Sources {
		if existing == src {
			return
		}
	}
	c.Sources = append(c.Sources, src)
	sort.Slice(c.Sources, func(i, j int) bool { return c.Sources[i] < c.Sources[j] })
}

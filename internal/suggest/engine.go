package suggest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"tagscout/internal/logger"
)

// FieldThreshold is the per-field tuning knob pair: LookupBelow is the local
// weight under which an external lookup is attempted, Floor the aggregate
// weight under which a candidate is dropped entirely.
type FieldThreshold struct {
	LookupBelow float64
	Floor       float64
}

// DefaultThreshold applies to any field without explicit configuration.
var DefaultThreshold = FieldThreshold{LookupBelow: 0.6, Floor: 0.05}

// Thresholds maps fields to their tuning values.
type Thresholds map[Field]FieldThreshold

// For returns the threshold for a field, falling back to DefaultThreshold.
func (t Thresholds) For(f Field) FieldThreshold {
	if th, ok := t[f]; ok {
		return th
	}
	return DefaultThreshold
}

// ResultCache stores raw lookup results keyed by query fingerprint. A Get
// must never return an expired entry; racing Puts to the same key may resolve
// last-writer-wins.
type ResultCache interface {
	Get(fingerprint string) (Result, bool)
	Put(fingerprint string, result Result)
}

const defaultLookupTimeout = 15 * time.Second

// Engine coordinates one inference pass: local evidence collection, the
// conditional cache-first external lookup, synthesis, and scoring. It is safe
// for concurrent use; the lookup client and cache are the only shared state.
type Engine struct {
	lookup        Lookup      // nil disables external lookups
	cache         ResultCache // nil disables caching
	thresholds    Thresholds
	lookupTimeout time.Duration
	log           *logger.Logger
}

// NewEngine creates an Engine. lookup may be nil to run on local evidence
// only; cache may be nil to fetch on every under-confident field.
func NewEngine(lookup Lookup, cache ResultCache, thresholds Thresholds, lookupTimeout time.Duration, log *logger.Logger) *Engine {
	if lookupTimeout <= 0 {
		lookupTimeout = defaultLookupTimeout
	}
	if log == nil {
		log = logger.New(false)
	}
	return &Engine{
		lookup:        lookup,
		cache:         cache,
		thresholds:    thresholds,
		lookupTimeout: lookupTimeout,
		log:           log,
	}
}

// Infer produces ranked suggestions for every requested field. Recoverable
// conditions (unparseable filename, lookup unavailability) degrade to fewer
// suggestions; the only errors are ErrInvalidRequest and context
// cancellation. Fields with no surviving candidates map to an empty list.
func (e *Engine) Infer(ctx context.Context, req Request) (map[Field][]Suggestion, error) {
	if req.Path == "" {
		return nil, fmt.Errorf("%w: empty file path", ErrInvalidRequest)
	}
	if len(req.Fields) == 0 {
		return nil, fmt.Errorf("%w: empty field set", ErrInvalidRequest)
	}

	evidence := Collect(req)
	e.log.Debug("collected %d local evidence records for %s", len(evidence), req.Path)

	under := e.underConfidentFields(req.Fields, evidence)
	if len(under) > 0 && e.lookup != nil {
		external, err := e.fetchExternal(ctx, evidence, under)
		if err != nil {
			return nil, err
		}
		evidence = append(evidence, external...)
	}

	out := make(map[Field][]Suggestion, len(req.Fields))
	for _, field := range req.Fields {
		cands := Synthesize(field, evidence)
		out[field] = Score(cands, e.thresholds.For(field).Floor)
	}
	return out, nil
}

// underConfidentFields returns the requested fields whose best local evidence
// weight falls below that field's lookup threshold, sorted for determinism.
func (e *Engine) underConfidentFields(fields []Field, evidence []Evidence) []Field {
	best := make(map[Field]float64)
	for _, ev := range evidence {
		if ev.Weight > best[ev.Field] {
			best[ev.Field] = ev.Weight
		}
	}

	var under []Field
	for _, field := range fields {
		if best[field] < e.thresholds.For(field).LookupBelow {
			under = append(under, field)
		}
	}
	sort.Slice(under, func(i, j int) bool { return under[i] < under[j] })
	return under
}

// fetchExternal resolves external evidence for the under-confident fields,
// consulting the cache before the lookup client. Soft failures yield no
// evidence and no error. If the caller's context is canceled while a fetch is
// in flight, the fetch still completes in the background and populates the
// cache, but nothing is delivered to the canceled caller.
func (e *Engine) fetchExternal(ctx context.Context, evidence []Evidence, fields []Field) ([]Evidence, error) {
	query := e.buildQuery(evidence)
	if query.Empty() {
		e.log.Debug("no usable query terms, skipping lookup")
		return nil, nil
	}

	fp := Fingerprint(query)
	if e.cache != nil {
		if result, ok := e.cache.Get(fp); ok {
			e.log.Debug("lookup cache hit for %q", fp)
			return resultEvidence(result, fields), nil
		}
	}

	type outcome struct {
		result Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		// Detached from the caller so an abandoned request still benefits the
		// cache; bounded by the lookup timeout instead.
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.lookupTimeout)
		defer cancel()

		result, err := e.lookup.Search(fetchCtx, query)
		if err == nil && e.cache != nil {
			e.cache.Put(fp, result)
		}
		done <- outcome{result: result, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case out := <-done:
		if out.err != nil {
			if errors.Is(out.err, context.Canceled) {
				return nil, out.err
			}
			e.log.Debug("lookup %s failed softly: %v", e.lookup.Name(), out.err)
			return nil, nil
		}
		return resultEvidence(out.result, fields), nil
	}
}

// buildQuery picks the strongest local value per query term.
func (e *Engine) buildQuery(evidence []Evidence) Query {
	best := func(field Field) string {
		var value string
		var weight float64
		for _, ev := range evidence {
			if ev.Field == field && ev.Weight > weight {
				value, weight = ev.Value, ev.Weight
			}
		}
		return value
	}
	return Query{
		Title:  best(FieldTitle),
		Artist: best(FieldArtist),
		Album:  best(FieldAlbum),
	}
}

// resultEvidence converts raw lookup records into evidence, restricted to the
// fields that actually needed external corroboration. Weights come from the
// service's own match score, clamped to [0,1].
func resultEvidence(result Result, fields []Field) []Evidence {
	wanted := make(map[Field]bool, len(fields))
	for _, f := range fields {
		wanted[f] = true
	}

	var ev []Evidence
	emit := func(field Field, value string, score float64) {
		if !wanted[field] || value == "" {
			return
		}
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		ev = append(ev, Evidence{Field: field, Value: value, Source: SourceExternalLookup, Weight: score})
	}

	for _, rec := range result.Records {
		emit(FieldTitle, rec.Title, rec.Score)
		emit(FieldArtist, rec.Artist, rec.Score)
		emit(FieldAlbum, rec.Album, rec.Score)
		if rec.Track > 0 {
			emit(FieldTrack, fmt.Sprintf("%d", rec.Track), rec.Score)
		}
		if rec.Year > 0 {
			emit(FieldYear, fmt.Sprintf("%d", rec.Year), rec.Score)
		}
	}
	return ev
}

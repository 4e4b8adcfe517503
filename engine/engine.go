// Package engine implements record validation against the knowledge
// base. Every rule is evaluated on every record; a rule hit produces a
// diagnostic, never an aborted run.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gomarc/marclsp"
	"github.com/gomarc/marclsp/kb"
	"github.com/gomarc/marclsp/marc"
	"github.com/gomarc/marclsp/resolver"
)

// Validator validates parsed records. It is safe for concurrent use:
// the knowledge base is read-only and the resolver carries its own
// synchronization.
type Validator struct {
	base    *kb.KnowledgeBase
	res     *resolver.Resolver
	opts    *marclsp.Options
	metrics *marclsp.Metrics
}

// New creates a Validator over the knowledge base.
func New(base *kb.KnowledgeBase, opts ...marclsp.Option) *Validator {
	o := marclsp.DefaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &Validator{
		base:    base,
		opts:    o,
		metrics: marclsp.NewMetrics(),
	}
}

// SetResolver attaches a documentation resolver. Without one, tags
// absent from the knowledge base are simply unknown. The resolver's
// cache and fetch activity is recorded into the validator's metrics.
func (v *Validator) SetResolver(r *resolver.Resolver) {
	v.res = r
	if r != nil {
		r.SetMetrics(v.metrics)
	}
}

// Metrics returns the validator's counters.
func (v *Validator) Metrics() *marclsp.Metrics {
	return v.metrics
}

// Validate checks a record against every rule and returns the
// positioned diagnostics sorted by (line, column).
func (v *Validator) Validate(ctx context.Context, rec *marc.Record) *marclsp.Result {
	start := time.Now()
	result := marclsp.NewResult()

	defs := make(map[string]*kb.TagDefinition)
	for _, f := range rec.Fields {
		def := v.tagDef(ctx, f.Tag, defs)
		if def == nil {
			result.Add(marclsp.Warning(fmt.Sprintf("unknown tag %s", f.Tag)).
				Span(f.TagSpan.Line, f.TagSpan.StartColumn, f.TagSpan.EndColumn).Build())
			continue
		}
		if f.Kind == marc.ControlKind {
			v.checkFixedField(f, result)
		} else {
			v.checkIndicators(f, def, result)
			v.checkSubfields(f, def, result)
		}
	}
	v.checkRepeatedTags(rec, defs, result)

	result.Sort()
	for _, d := range result.Diagnostics {
		v.metrics.RecordDiagnostic(d.Severity)
	}
	v.metrics.RecordValidation(time.Since(start), result.Valid)
	return result
}

// tagDef resolves a tag definition once per Validate call. Knowledge
// base misses go through the resolver when one is attached; a tag that
// stays unknown or unavailable is reported as nil.
func (v *Validator) tagDef(ctx context.Context, tag string, defs map[string]*kb.TagDefinition) *kb.TagDefinition {
	if def, seen := defs[tag]; seen {
		return def
	}
	def, ok := v.base.LookupTag(tag)
	if !ok && v.res != nil {
		if d := v.res.Resolve(ctx, tag); d.Status == resolver.StatusFound {
			def = d.Tag
		}
	}
	defs[tag] = def
	return def
}

// checkIndicators warns about indicator values outside the declared
// value map. An empty map means the position is unchecked.
func (v *Validator) checkIndicators(f *marc.Field, def *kb.TagDefinition, result *marclsp.Result) {
	for pos, value := range map[string]byte{"1": f.Ind1, "2": f.Ind2} {
		declared := def.Indicators[pos]
		if len(declared) == 0 {
			continue
		}
		if _, ok := declared[string(value)]; ok {
			continue
		}
		start := f.IndSpan.StartColumn
		if pos == "2" {
			start++
		}
		end := start + 1
		// A defaulted indicator has no source character of its own; the
		// warning anchors on the indicator region instead.
		if end > f.IndSpan.EndColumn {
			start, end = f.IndSpan.StartColumn, f.IndSpan.EndColumn
		}
		result.Add(marclsp.Warning(
			fmt.Sprintf("invalid indicator %s value %q for field %s", pos, string(value), f.Tag)).
			Span(f.IndSpan.Line, start, end).Build())
	}
}

// checkSubfields warns about undeclared codes and reports repeated
// non-repeatable subfields within the field.
func (v *Validator) checkSubfields(f *marc.Field, def *kb.TagDefinition, result *marclsp.Result) {
	seen := make(map[byte]int)
	for _, sf := range f.Subfields {
		code := string(sf.Code)
		sfDef, declared := def.Subfields[code]
		if len(def.Subfields) > 0 && !declared {
			result.Add(marclsp.Warning(
				fmt.Sprintf("subfield $%s is not defined for field %s", code, f.Tag)).
				Span(sf.Span.Line, sf.Span.StartColumn, sf.Span.StartColumn+2).Build())
			continue
		}
		seen[sf.Code]++
		if declared && !sfDef.Repeatable && seen[sf.Code] > 1 {
			result.Add(marclsp.Error(
				fmt.Sprintf("subfield $%s is not repeatable in field %s", code, f.Tag)).
				Span(sf.Span.Line, sf.Span.StartColumn, sf.Span.EndColumn).Build())
		}
	}
}

// checkFixedField validates a control field's value against its
// positional layout: total length, then each enumerated position.
func (v *Validator) checkFixedField(f *marc.Field, result *marclsp.Result) {
	layout, ok := v.base.LookupFixedField(f.Tag)
	if !ok {
		return
	}

	if want := layout.DeclaredLength(); want >= 0 && len(f.Value) != want {
		result.Add(marclsp.Error(
			fmt.Sprintf("invalid length for field %s: got %d, want %d", f.Tag, len(f.Value), want)).
			Span(f.ValueSpan.Line, f.ValueSpan.StartColumn, f.ValueSpan.EndColumn).Build())
	}

	for _, pos := range layout.Positions {
		if len(pos.Values) == 0 || pos.End < 0 {
			continue
		}
		for offset := pos.Start; offset <= pos.End && offset < len(f.Value); offset++ {
			ch := string(f.Value[offset])
			if _, ok := pos.Values[ch]; ok {
				continue
			}
			col := f.ValueSpan.StartColumn + offset
			result.Add(marclsp.Error(
				fmt.Sprintf("invalid character %q at %s (position %d) of field %s", ch, pos.Name, offset, f.Tag)).
				Span(f.ValueSpan.Line, col, col+1).Build())
		}
	}
}

// checkRepeatedTags reports extra occurrences of non-repeatable tags.
// Two occurrences yield one error, anchored on the second and citing
// the first.
func (v *Validator) checkRepeatedTags(rec *marc.Record, defs map[string]*kb.TagDefinition, result *marclsp.Result) {
	first := make(map[string]*marc.Field)
	for _, f := range rec.Fields {
		def := defs[f.Tag]
		if def == nil || def.Repeatable {
			continue
		}
		prev, ok := first[f.Tag]
		if !ok {
			first[f.Tag] = f
			continue
		}
		result.Add(marclsp.Error(
			fmt.Sprintf("field %s is not repeatable (first occurrence at line %d)", f.Tag, prev.Span.Line+1)).
			Span(f.TagSpan.Line, f.TagSpan.StartColumn, f.TagSpan.EndColumn).Build())
	}
}

// ValidateText parses and validates in one call, detecting MRK or
// line notation from the input. Parser diagnostics come first, then
// validation diagnostics, each group in positional order.
func (v *Validator) ValidateText(ctx context.Context, text string) (*marc.Record, *marclsp.Result) {
	rec, parseDiags := marc.ParseAuto(text)
	v.metrics.RecordParse()

	validated := v.Validate(ctx, rec)

	result := marclsp.NewResult()
	result.AddAll(parseDiags)
	result.AddAll(validated.Diagnostics)
	return rec, result
}

// ValidateBatch validates independent documents concurrently, bounded
// by the configured worker count. Results are positionally aligned
// with the inputs.
func (v *Validator) ValidateBatch(ctx context.Context, inputs [][]byte) []*marclsp.Result {
	results := make([]*marclsp.Result, len(inputs))

	workers := v.opts.BatchWorkers
	if workers <= 0 {
		workers = 1
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i, input := range inputs {
		wg.Add(1)
		go func(i int, text string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			_, results[i] = v.ValidateText(ctx, text)
		}(i, string(input))
	}
	wg.Wait()
	return results
}

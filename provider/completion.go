package provider

import (
	"context"
	"strings"

	"github.com/gomarc/marclsp/marc"
)

// CompletionItem is one completion suggestion.
type CompletionItem struct {
	Label         string `json:"label"`
	Detail        string `json:"detail,omitempty"`
	Documentation string `json:"documentation,omitempty"`
	InsertText    string `json:"insertText,omitempty"`
}

// Completions suggests tags, indicator values, or subfield codes for
// the cursor position. The surrounding text decides the kind:
// a cursor inside the tag marker completes tags, one sitting right
// after a "$" completes subfield codes, and one on an indicator slot
// completes declared indicator values.
func (p *Provider) Completions(ctx context.Context, rec *marc.Record, line, col int) []CompletionItem {
	if line < 0 || line >= len(rec.Lines) {
		return nil
	}
	text := strings.TrimSuffix(rec.Lines[line], "\r")
	if col < 0 {
		return nil
	}
	if col > len(text) {
		col = len(text)
	}
	prefix := text[:col]

	if strings.HasSuffix(prefix, "$") {
		return p.subfieldCompletions(ctx, rec, line)
	}

	if col <= 4 && (prefix == "" || prefix[0] == '=') {
		typed := ""
		if len(prefix) > 1 {
			typed = prefix[1:]
		}
		return p.tagCompletions(typed)
	}

	if f, ok := rec.FieldAt(line); ok && f.Kind == marc.DataKind {
		switch col {
		case f.IndSpan.StartColumn:
			return p.indicatorCompletions(ctx, f, "1")
		case f.IndSpan.StartColumn + 1:
			return p.indicatorCompletions(ctx, f, "2")
		}
	}
	return nil
}

// tagCompletions lists known tags matching the typed prefix.
func (p *Provider) tagCompletions(typed string) []CompletionItem {
	var items []CompletionItem
	for _, tag := range p.base.Tags() {
		if !strings.HasPrefix(tag, typed) {
			continue
		}
		def, ok := p.base.LookupTag(tag)
		if !ok {
			continue
		}
		items = append(items, CompletionItem{
			Label:         tag,
			Detail:        def.Name,
			Documentation: def.Description,
			InsertText:    tag,
		})
	}
	return items
}

// subfieldCompletions lists the codes valid for the enclosing field,
// leaving out codes already used on a non-repeatable subfield.
func (p *Provider) subfieldCompletions(ctx context.Context, rec *marc.Record, line int) []CompletionItem {
	f, ok := rec.FieldAt(line)
	if !ok || f.Kind != marc.DataKind {
		return nil
	}
	def := p.resolveTag(ctx, f.Tag)
	if def == nil || len(def.Subfields) == 0 {
		return nil
	}

	used := make(map[string]bool, len(f.Subfields))
	for _, sf := range f.Subfields {
		used[string(sf.Code)] = true
	}

	var items []CompletionItem
	for _, code := range sortedKeys(def.Subfields) {
		sf := def.Subfields[code]
		if !sf.Repeatable && used[code] {
			continue
		}
		detail := sf.Name
		if sf.Repeatable {
			detail += " (R)"
		}
		items = append(items, CompletionItem{
			Label:         code,
			Detail:        detail,
			Documentation: sf.Description,
			InsertText:    code,
		})
	}
	return items
}

// indicatorCompletions lists the declared values for an indicator
// position.
func (p *Provider) indicatorCompletions(ctx context.Context, f *marc.Field, pos string) []CompletionItem {
	def := p.resolveTag(ctx, f.Tag)
	if def == nil {
		return nil
	}
	values := def.Indicators[pos]
	if len(values) == 0 {
		return nil
	}

	var items []CompletionItem
	for _, value := range sortedKeys(values) {
		label := value
		// A blank indicator shows as "#" so the suggestion is visible.
		if value == " " {
			label = "#"
		}
		items = append(items, CompletionItem{
			Label:         label,
			Detail:        values[value],
			InsertText:    value,
			Documentation: values[value],
		})
	}
	return items
}

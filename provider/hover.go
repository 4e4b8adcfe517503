// Package provider implements the editor-facing features: hover
// documentation and completion. All documentation content flows
// through the resolver; the provider only formats it.
package provider

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/gomarc/marclsp/kb"
	"github.com/gomarc/marclsp/loc"
	"github.com/gomarc/marclsp/marc"
	"github.com/gomarc/marclsp/resolver"
)

// Provider answers hover and completion requests over parsed records.
type Provider struct {
	base *kb.KnowledgeBase
	res  *resolver.Resolver
	urls *loc.Client // only used to form documentation links
}

// New creates a Provider. The resolver supplies documentation beyond
// the knowledge base; pass nil to stay offline.
func New(base *kb.KnowledgeBase, res *resolver.Resolver) *Provider {
	return &Provider{
		base: base,
		res:  res,
		urls: loc.NewClient(),
	}
}

// Hover returns markdown documentation for the token at a position.
// It reports false only when no token is there; an unknown or
// unreachable definition still produces a generic message.
func (p *Provider) Hover(ctx context.Context, rec *marc.Record, line, col int) (string, bool) {
	token, ok := marc.TokenAt(rec, line, col)
	if !ok {
		return "", false
	}

	switch token.Kind {
	case marc.TokenLeader:
		return p.tagHover(ctx, "LDR", nil), true
	case marc.TokenTag:
		return p.tagHover(ctx, token.Field.Tag, token.Field), true
	case marc.TokenIndicator1:
		return p.indicatorHover(ctx, token.Field, "1", token.Field.Ind1), true
	case marc.TokenIndicator2:
		return p.indicatorHover(ctx, token.Field, "2", token.Field.Ind2), true
	case marc.TokenSubfieldCode, marc.TokenSubfieldValue:
		return p.subfieldHover(ctx, token.Field, token.Subfield), true
	case marc.TokenControlValue:
		return p.fixedFieldHover(token.Field, token.Offset), true
	}
	return "", false
}

func noDocumentation(tag string) string {
	return fmt.Sprintf("**%s** - No documentation available", tag)
}

// tagHover builds the full field card: name, description, indicator
// table, subfield list, and a link to the LC page.
func (p *Provider) tagHover(ctx context.Context, tag string, f *marc.Field) string {
	def := p.resolveTag(ctx, tag)
	if def == nil {
		return noDocumentation(tag)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**%s - %s**\n\n", tag, def.Name)
	fmt.Fprintf(&b, "%s\n\n", def.Description)
	if def.Repeatable {
		b.WriteString("*Repeatable field*\n\n")
	}

	if f != nil && f.Kind == marc.DataKind && len(def.Indicators) > 0 {
		b.WriteString("**Indicators:**\n\n")
		for _, pos := range sortedKeys(def.Indicators) {
			fmt.Fprintf(&b, "Indicator %s:\n", pos)
			values := def.Indicators[pos]
			for _, value := range sortedKeys(values) {
				fmt.Fprintf(&b, "- `%s`: %s\n", value, values[value])
			}
			b.WriteString("\n")
		}
	}

	if len(def.Subfields) > 0 {
		b.WriteString("**Subfields:**\n\n")
		for _, code := range sortedKeys(def.Subfields) {
			sf := def.Subfields[code]
			repeatable := ""
			if sf.Repeatable {
				repeatable = " (R)"
			}
			fmt.Fprintf(&b, "- `$%s`: %s%s\n", code, sf.Name, repeatable)
			if sf.Description != sf.Name {
				fmt.Fprintf(&b, "  %s\n", sf.Description)
			}
		}
	}

	p.appendLink(&b, tag)
	return b.String()
}

func (p *Provider) indicatorHover(ctx context.Context, f *marc.Field, pos string, value byte) string {
	def := p.resolveTag(ctx, f.Tag)
	if def == nil || len(def.Indicators[pos]) == 0 {
		return fmt.Sprintf("**Indicator %s:** `%s`", pos, string(value))
	}

	desc, ok := def.Indicators[pos][string(value)]
	if !ok {
		desc = "Unknown value"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "**Indicator %s:** `%s`\n\n%s", pos, string(value), desc)
	b.WriteString("\n")
	p.appendLink(&b, f.Tag)
	return b.String()
}

func (p *Provider) subfieldHover(ctx context.Context, f *marc.Field, sf *marc.Subfield) string {
	code := string(sf.Code)
	d := resolver.Definition{Status: resolver.StatusUnknownTag}
	if p.res != nil {
		d = p.res.ResolveSubfield(ctx, f.Tag, code)
	} else if sfDef, ok := p.base.LookupSubfield(f.Tag, code); ok {
		d = resolver.Definition{Status: resolver.StatusFound, Subfield: sfDef}
	} else if _, ok := p.base.LookupTag(f.Tag); ok {
		d = resolver.Definition{Status: resolver.StatusUnknownSubfield}
	}

	switch d.Status {
	case resolver.StatusFound:
		var b strings.Builder
		fmt.Fprintf(&b, "**$%s - %s**\n\n", d.Subfield.Code, d.Subfield.Name)
		fmt.Fprintf(&b, "%s\n\n", d.Subfield.Description)
		if d.Subfield.Repeatable {
			b.WriteString("*Repeatable subfield*\n\n")
		}
		fmt.Fprintf(&b, "**Content:** %s\n\n", sf.Value)
		p.appendLink(&b, f.Tag)
		return b.String()
	case resolver.StatusUnknownSubfield:
		return fmt.Sprintf("**$%s** - Unknown subfield for tag %s", code, f.Tag)
	default:
		return noDocumentation(f.Tag)
	}
}

// fixedFieldHover describes the positional slot under the cursor in a
// control field value.
func (p *Provider) fixedFieldHover(f *marc.Field, offset int) string {
	layout, ok := p.base.LookupFixedField(f.Tag)
	if !ok {
		return noDocumentation(f.Tag)
	}
	pos, ok := layout.PositionAt(offset)
	if !ok {
		return fmt.Sprintf("**%s position %d** - Character position in fixed field", f.Tag, offset)
	}

	value := positionValue(f.Value, pos)
	var b strings.Builder
	fmt.Fprintf(&b, "**%s - %s**\n\n", f.Tag, pos.Name)
	if pos.End == -1 {
		fmt.Fprintf(&b, "Position: %d+\n", pos.Start)
	} else if pos.Start == pos.End {
		fmt.Fprintf(&b, "Position: %d\n", pos.Start)
	} else {
		fmt.Fprintf(&b, "Position: %d-%d\n", pos.Start, pos.End)
	}
	fmt.Fprintf(&b, "Value: `%s`\n\n", value)
	fmt.Fprintf(&b, "%s\n\n", pos.Description)

	if len(pos.Values) > 0 {
		if desc, ok := pos.Values[value]; ok {
			fmt.Fprintf(&b, "**Current:** `%s` = %s\n\n", value, desc)
		} else {
			fmt.Fprintf(&b, "**Current:** `%s` (not recognized)\n\n", value)
		}
		b.WriteString("**Other values:**\n")
		for _, v := range sortedKeys(pos.Values) {
			if v != value {
				fmt.Fprintf(&b, "`%s`: %s\n", v, pos.Values[v])
			}
		}
	}

	p.appendLink(&b, f.Tag)
	return b.String()
}

// positionValue extracts the slice of a control value covered by a
// positional definition.
func positionValue(value string, pos *kb.FixedFieldPosition) string {
	if pos.Start >= len(value) {
		return ""
	}
	if pos.End == -1 || pos.End >= len(value) {
		return value[pos.Start:]
	}
	return value[pos.Start : pos.End+1]
}

// resolveTag goes through the resolver when available, otherwise the
// knowledge base alone.
func (p *Provider) resolveTag(ctx context.Context, tag string) *kb.TagDefinition {
	if p.res != nil {
		if d := p.res.Resolve(ctx, tag); d.Status == resolver.StatusFound {
			return d.Tag
		}
		return nil
	}
	if def, ok := p.base.LookupTag(tag); ok {
		return def
	}
	return nil
}

func (p *Provider) appendLink(b *strings.Builder, tag string) {
	if url, ok := p.urls.TagURL(tag); ok {
		fmt.Fprintf(b, "\n[View full documentation on Library of Congress](%s)", url)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package kb

import "sort"

// KnowledgeBase is the merged tag documentation. It is read-only after
// Load and therefore safe for concurrent use without synchronization.
type KnowledgeBase struct {
	tags  map[string]*TagDefinition
	fixed map[string]*FixedFieldDefinition
}

// LookupTag returns the definition for a tag.
func (kb *KnowledgeBase) LookupTag(tag string) (*TagDefinition, bool) {
	def, ok := kb.tags[tag]
	return def, ok
}

// LookupSubfield returns the definition for a tag's subfield code.
func (kb *KnowledgeBase) LookupSubfield(tag, code string) (*SubfieldDefinition, bool) {
	def, ok := kb.tags[tag]
	if !ok {
		return nil, false
	}
	sf, ok := def.Subfields[code]
	if !ok {
		return nil, false
	}
	return &sf, true
}

// LookupFixedField returns the positional layout of a control field.
func (kb *KnowledgeBase) LookupFixedField(tag string) (*FixedFieldDefinition, bool) {
	def, ok := kb.fixed[tag]
	return def, ok
}

// PositionAt returns the fixed-field position covering a value-relative
// byte offset of the given control field.
func (kb *KnowledgeBase) PositionAt(tag string, offset int) (*FixedFieldPosition, bool) {
	def, ok := kb.fixed[tag]
	if !ok {
		return nil, false
	}
	return def.PositionAt(offset)
}

// Tags returns all known tags in sorted order.
func (kb *KnowledgeBase) Tags() []string {
	out := make([]string, 0, len(kb.tags))
	for tag := range kb.tags {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// SubfieldCodes returns the declared subfield codes for a tag, sorted.
func (kb *KnowledgeBase) SubfieldCodes(tag string) []string {
	def, ok := kb.tags[tag]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(def.Subfields))
	for code := range def.Subfields {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

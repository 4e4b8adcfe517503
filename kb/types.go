// Package kb provides the merged, read-only MARC tag knowledge base built
// from bundled datasets at process start.
package kb

// SubfieldDefinition documents one subfield code of a tag.
type SubfieldDefinition struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Repeatable  bool   `json:"repeatable"`
}

// TagDefinition documents a MARC tag: its display name, indicator
// meanings (position -> allowed value -> description), and subfields.
type TagDefinition struct {
	Tag         string                        `json:"tag"`
	Name        string                        `json:"name"`
	Description string                        `json:"description"`
	Repeatable  bool                          `json:"repeatable"`
	Indicators  map[string]map[string]string  `json:"indicators,omitempty"`
	Subfields   map[string]SubfieldDefinition `json:"subfields,omitempty"`
}

// FixedFieldPosition defines one byte-position range of a fixed field.
// End is inclusive; End = -1 means "to the end of the field content".
type FixedFieldPosition struct {
	Key         string            `json:"-"`
	Start       int               `json:"start"`
	End         int               `json:"end"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Values      map[string]string `json:"values,omitempty"`
}

// Covers reports whether the value-relative byte offset falls in this
// position's range.
func (p FixedFieldPosition) Covers(offset int) bool {
	if p.End == -1 {
		return offset >= p.Start
	}
	return offset >= p.Start && offset <= p.End
}

// Width returns the number of bytes the position spans, or -1 for
// open-ended positions.
func (p FixedFieldPosition) Width() int {
	if p.End == -1 {
		return -1
	}
	return p.End - p.Start + 1
}

// FixedFieldDefinition is the positional layout of a control field such
// as 008. Positions are ordered by start offset.
type FixedFieldDefinition struct {
	Tag       string
	Positions []FixedFieldPosition
}

// PositionAt returns the position definition covering a value-relative
// byte offset.
func (d *FixedFieldDefinition) PositionAt(offset int) (*FixedFieldPosition, bool) {
	for i := range d.Positions {
		if d.Positions[i].Covers(offset) {
			return &d.Positions[i], true
		}
	}
	return nil, false
}

// DeclaredLength returns the total declared byte length of the field,
// or -1 when the layout contains an open-ended position.
func (d *FixedFieldDefinition) DeclaredLength() int {
	length := 0
	for _, p := range d.Positions {
		if p.End == -1 {
			return -1
		}
		if p.End+1 > length {
			length = p.End + 1
		}
	}
	return length
}

// Package marc provides the MARC record model and the MRK text parser.
//
// MRK is the human-readable representation of MARC records:
//
//	=LDR  00000nam a2200000 a 4500
//	=001  123456789
//	=245  10$aTitle of book$bsubtitle
//
// Records, fields, and subfields are created fresh per parse and are not
// mutated afterwards. Every node carries the span of the source text it
// was parsed from so diagnostics and editor features can be positioned.
package marc

import "strings"

// LeaderLength is the fixed width of the leader payload.
const LeaderLength = 24

// Span locates a token in the source text. Line and columns are
// zero-based; the column range is half-open [StartColumn, EndColumn).
type Span struct {
	Line        int
	StartColumn int
	EndColumn   int
}

// Contains reports whether a cursor column falls on this span's line
// range. The end column is included so a cursor sitting just past the
// last character still resolves to the token.
func (s Span) Contains(line, column int) bool {
	return s.Line == line && column >= s.StartColumn && column <= s.EndColumn
}

// FieldKind distinguishes control fields from data fields.
type FieldKind int

const (
	// ControlKind is an un-indicatored field (tags 001-009) holding a raw value.
	ControlKind FieldKind = iota
	// DataKind is an indicatored field (tags 010-999) holding subfields.
	DataKind
)

// Subfield is a (code, value) pair within a data field. Span covers the
// delimiter, the code character, and the value.
type Subfield struct {
	Code  byte
	Value string
	Span  Span
}

// Field is one control or data field of a record.
type Field struct {
	Tag  string
	Kind FieldKind

	// Ind1 and Ind2 are always set for data fields; space is a valid
	// indicator value, not "absent".
	Ind1 byte
	Ind2 byte

	// Value is the raw content of a control field.
	Value string

	// Subfields is the ordered subfield sequence of a data field.
	Subfields []Subfield

	Span      Span // the whole source line
	TagSpan   Span // "=TTT"
	IndSpan   Span // both indicator characters (data fields only)
	ValueSpan Span // raw value (control fields only)
}

// Leader is the fixed-length positional header of a record.
type Leader struct {
	Value     string
	Span      Span
	ValueSpan Span
}

// Record is one catalog entry: a leader plus an ordered field sequence.
// The Lines slice retains the raw source lines for position-sensitive
// editor features; it is not part of the record's logical content.
type Record struct {
	Leader *Leader
	Fields []*Field
	Lines  []string
}

// IsControlTag reports whether tag names a control field ("001"-"009").
func IsControlTag(tag string) bool {
	if len(tag) != 3 || !isDigits(tag) {
		return false
	}
	return tag >= "001" && tag <= "009"
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

// FieldsByTag returns all fields carrying the given tag, in record order.
func (r *Record) FieldsByTag(tag string) []*Field {
	var out []*Field
	for _, f := range r.Fields {
		if f.Tag == tag {
			out = append(out, f)
		}
	}
	return out
}

// FieldAt returns the field whose source line is line, if any.
func (r *Record) FieldAt(line int) (*Field, bool) {
	for _, f := range r.Fields {
		if f.Span.Line == line {
			return f, true
		}
	}
	return nil, false
}

// String re-serializes the record to MRK text. Re-parsing the output
// yields a content-equal record (spans aside).
func (r *Record) String() string {
	var b strings.Builder
	if r.Leader != nil {
		b.WriteString("=LDR  ")
		b.WriteString(r.Leader.Value)
		b.WriteByte('\n')
	}
	for _, f := range r.Fields {
		b.WriteByte('=')
		b.WriteString(f.Tag)
		b.WriteString("  ")
		if f.Kind == ControlKind {
			b.WriteString(f.Value)
		} else {
			b.WriteByte(f.Ind1)
			b.WriteByte(f.Ind2)
			for _, sf := range f.Subfields {
				b.WriteByte('$')
				b.WriteByte(sf.Code)
				b.WriteString(sf.Value)
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Equal reports content equality of two records, ignoring spans and raw
// source lines.
func (r *Record) Equal(o *Record) bool {
	if (r.Leader == nil) != (o.Leader == nil) {
		return false
	}
	if r.Leader != nil && r.Leader.Value != o.Leader.Value {
		return false
	}
	if len(r.Fields) != len(o.Fields) {
		return false
	}
	for i, f := range r.Fields {
		g := o.Fields[i]
		if f.Tag != g.Tag || f.Kind != g.Kind {
			return false
		}
		if f.Kind == ControlKind {
			if f.Value != g.Value {
				return false
			}
			continue
		}
		if f.Ind1 != g.Ind1 || f.Ind2 != g.Ind2 || len(f.Subfields) != len(g.Subfields) {
			return false
		}
		for j, sf := range f.Subfields {
			if sf.Code != g.Subfields[j].Code || sf.Value != g.Subfields[j].Value {
				return false
			}
		}
	}
	return true
}

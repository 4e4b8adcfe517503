package marc

// TokenKind classifies the token under a cursor position.
type TokenKind int

const (
	// TokenNone means no token is at the position.
	TokenNone TokenKind = iota
	// TokenLeader is anywhere on the leader line.
	TokenLeader
	// TokenTag is the "=TTT" tag marker of a field line.
	TokenTag
	// TokenIndicator1 is the first indicator character.
	TokenIndicator1
	// TokenIndicator2 is the second indicator character.
	TokenIndicator2
	// TokenSubfieldCode is the "$x" delimiter-plus-code of a subfield.
	TokenSubfieldCode
	// TokenSubfieldValue is inside a subfield's value.
	TokenSubfieldValue
	// TokenControlValue is inside a control field's raw value; Offset is
	// the byte position within the value.
	TokenControlValue
)

// Token identifies the syntactic element at a cursor position.
type Token struct {
	Kind     TokenKind
	Field    *Field    // nil for leader tokens
	Subfield *Subfield // set for subfield tokens
	Offset   int       // value-relative byte offset for control values
}

// TokenAt resolves a cursor position to the token it sits on. Columns
// are zero-based; a cursor sitting immediately after a token still
// resolves to it, matching editor hover behavior.
func TokenAt(rec *Record, line, column int) (Token, bool) {
	if rec.Leader != nil && rec.Leader.Span.Line == line {
		return Token{Kind: TokenLeader}, true
	}
	f, ok := rec.FieldAt(line)
	if !ok {
		return Token{}, false
	}

	if column <= f.TagSpan.EndColumn {
		return Token{Kind: TokenTag, Field: f}, true
	}

	if f.Kind == ControlKind {
		if column >= f.ValueSpan.StartColumn {
			return Token{
				Kind:   TokenControlValue,
				Field:  f,
				Offset: column - f.ValueSpan.StartColumn,
			}, true
		}
		return Token{Kind: TokenTag, Field: f}, true
	}

	// Indicator positions are single characters; only characters present
	// in the source are addressable (defaulted indicators have no span).
	if column == f.IndSpan.StartColumn && f.IndSpan.EndColumn > f.IndSpan.StartColumn {
		return Token{Kind: TokenIndicator1, Field: f}, true
	}
	if column == f.IndSpan.StartColumn+1 && f.IndSpan.EndColumn > f.IndSpan.StartColumn+1 {
		return Token{Kind: TokenIndicator2, Field: f}, true
	}

	for i := range f.Subfields {
		sf := &f.Subfields[i]
		if !sf.Span.Contains(line, column) {
			continue
		}
		if column <= sf.Span.StartColumn+1 {
			return Token{Kind: TokenSubfieldCode, Field: f, Subfield: sf}, true
		}
		return Token{Kind: TokenSubfieldValue, Field: f, Subfield: sf}, true
	}
	return Token{}, false
}

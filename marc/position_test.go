package marc

import "testing"

func TestTokenAt(t *testing.T) {
	rec, _ := Parse("=LDR  00000nam a2200000 a 4500\n=008  760408s1976    nyua\n=245  10$aFoo$bBar\n")

	tests := []struct {
		name   string
		line   int
		col    int
		kind   TokenKind
		tag    string
		code   byte
		offset int
	}{
		{"leader", 0, 10, TokenLeader, "", 0, 0},
		{"control tag", 1, 2, TokenTag, "008", 0, 0},
		{"control value start", 1, 6, TokenControlValue, "008", 0, 0},
		{"control value pos six", 1, 12, TokenControlValue, "008", 0, 6},
		{"data tag", 2, 0, TokenTag, "245", 0, 0},
		{"data tag end", 2, 4, TokenTag, "245", 0, 0},
		{"indicator1", 2, 6, TokenIndicator1, "245", 0, 0},
		{"indicator2", 2, 7, TokenIndicator2, "245", 0, 0},
		{"subfield delimiter", 2, 8, TokenSubfieldCode, "245", 'a', 0},
		{"subfield code", 2, 9, TokenSubfieldCode, "245", 'a', 0},
		{"subfield value", 2, 11, TokenSubfieldValue, "245", 'a', 0},
		{"second subfield code", 2, 14, TokenSubfieldCode, "245", 'b', 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, ok := TokenAt(rec, tt.line, tt.col)
			if !ok {
				t.Fatalf("TokenAt(%d, %d) not found", tt.line, tt.col)
			}
			if tok.Kind != tt.kind {
				t.Fatalf("kind = %v; want %v", tok.Kind, tt.kind)
			}
			if tt.tag != "" && tok.Field.Tag != tt.tag {
				t.Errorf("tag = %q; want %q", tok.Field.Tag, tt.tag)
			}
			if tt.code != 0 && tok.Subfield.Code != tt.code {
				t.Errorf("code = %q; want %q", tok.Subfield.Code, tt.code)
			}
			if tok.Kind == TokenControlValue && tok.Offset != tt.offset {
				t.Errorf("offset = %d; want %d", tok.Offset, tt.offset)
			}
		})
	}

	if _, ok := TokenAt(rec, 9, 0); ok {
		t.Error("TokenAt on missing line should not resolve")
	}
}

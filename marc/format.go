package marc

import (
	"regexp"
	"strings"

	marclsp "github.com/gomarc/marclsp"
)

// Format identifies the input notation of a MARC text document.
type Format int

const (
	// FormatMRK is the MARC Maker notation with "=TTT" tag markers.
	FormatMRK Format = iota
	// FormatLine is the plain line notation: a bare 24-character
	// leader, "001 value" control fields, and "245 04 $a ..." data
	// fields.
	FormatLine
)

// String returns the format name.
func (f Format) String() string {
	if f == FormatLine {
		return "line"
	}
	return "mrk"
}

// DetectFormat inspects the first non-empty line: a leading '='
// means MRK, anything else means line mode. An empty document
// defaults to MRK.
func DetectFormat(text string) Format {
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if line[0] == '=' {
			return FormatMRK
		}
		return FormatLine
	}
	return FormatMRK
}

// ParseAuto detects the document format and parses with the matching
// parser.
func ParseAuto(text string) (*Record, []marclsp.Diagnostic) {
	if DetectFormat(text) == FormatLine {
		return ParseLineMode(text)
	}
	return Parse(text)
}

var (
	lineLeaderRe  = regexp.MustCompile(`^\d{5}.{19}$`)
	lineControlRe = regexp.MustCompile(`^(00[1-9])[ \t](.+)$`)
	lineDataRe    = regexp.MustCompile(`^(\d{3})[ \t](.)(.)[ \t]`)
	lineSubRe     = regexp.MustCompile(`\$([a-z0-9])([^$]*)`)
)

// ParseLineMode converts line-notation text into a record plus
// positioned diagnostics. Like Parse it never fails; blank lines are
// not content in this notation and are skipped without a diagnostic.
func ParseLineMode(text string) (*Record, []marclsp.Diagnostic) {
	lines := strings.Split(text, "\n")
	rec := &Record{Lines: lines}
	var diags []marclsp.Diagnostic

	for i, raw := range lines {
		line := strings.TrimSuffix(raw, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		diags = parseModeLine(rec, line, i, diags)
	}
	return rec, diags
}

func parseModeLine(rec *Record, line string, lineNo int, diags []marclsp.Diagnostic) []marclsp.Diagnostic {
	if trimmed := strings.TrimSpace(line); lineLeaderRe.MatchString(trimmed) {
		if rec.Leader != nil {
			return append(diags, marclsp.Warning("duplicate leader").
				Span(lineNo, 0, len(line)).Build())
		}
		start := strings.Index(line, trimmed)
		rec.Leader = &Leader{
			Value:     trimmed,
			Span:      Span{lineNo, 0, len(line)},
			ValueSpan: Span{lineNo, start, start + len(trimmed)},
		}
		return diags
	}

	if m := lineControlRe.FindStringSubmatch(line); m != nil {
		rec.Fields = append(rec.Fields, &Field{
			Tag:       m[1],
			Kind:      ControlKind,
			Value:     m[2],
			Span:      Span{lineNo, 0, len(line)},
			TagSpan:   Span{lineNo, 0, 3},
			ValueSpan: Span{lineNo, 4, len(line)},
		})
		return diags
	}

	if m := lineDataRe.FindStringSubmatch(line); m != nil {
		f := &Field{
			Tag:     m[1],
			Kind:    DataKind,
			Ind1:    m[2][0],
			Ind2:    m[3][0],
			Span:    Span{lineNo, 0, len(line)},
			TagSpan: Span{lineNo, 0, 3},
			IndSpan: Span{lineNo, 4, 6},
		}
		f.Subfields = parseModeSubfields(line, lineNo)
		rec.Fields = append(rec.Fields, f)
		return diags
	}

	return append(diags, marclsp.Error("unrecognized line").
		Span(lineNo, 0, len(line)).Build())
}

// parseModeSubfields collects "$x value" fragments. Values are padded
// with spaces in this notation, so surrounding whitespace is trimmed.
func parseModeSubfields(line string, lineNo int) []Subfield {
	var subs []Subfield
	for _, idx := range lineSubRe.FindAllStringSubmatchIndex(line, -1) {
		subs = append(subs, Subfield{
			Code:  line[idx[2]],
			Value: strings.TrimSpace(line[idx[4]:idx[5]]),
			Span:  Span{lineNo, idx[0], idx[1]},
		})
	}
	return subs
}

package marc

import (
	"fmt"
	"strings"

	marclsp "github.com/gomarc/marclsp"
)

// Parse converts MRK text into a record plus positioned diagnostics. It
// never fails: every malformed line yields a diagnostic and parsing
// continues with the next line. A well-formed input produces zero
// diagnostics.
func Parse(text string) (*Record, []marclsp.Diagnostic) {
	lines := strings.Split(text, "\n")
	rec := &Record{Lines: lines}
	var diags []marclsp.Diagnostic

	for i, raw := range lines {
		line := strings.TrimSuffix(raw, "\r")
		if line == "" {
			// The empty fragment after a trailing newline is not content.
			if i == len(lines)-1 {
				continue
			}
			diags = append(diags, marclsp.Error("unrecognized line").Span(i, 0, 0).Build())
			continue
		}
		diags = parseLine(rec, line, i, diags)
	}
	return rec, diags
}

func parseLine(rec *Record, line string, lineNo int, diags []marclsp.Diagnostic) []marclsp.Diagnostic {
	unrecognized := func() []marclsp.Diagnostic {
		return append(diags, marclsp.Error("unrecognized line").
			Span(lineNo, 0, len(line)).Build())
	}

	if line[0] != '=' || len(line) < 4 {
		return unrecognized()
	}
	tag := line[1:4]

	// Mandatory separator whitespace between the tag and the content.
	// The separator is at most two characters wide: anything beyond it
	// belongs to the content, since space is a valid indicator value.
	if len(line) > 4 && line[4] != ' ' && line[4] != '\t' {
		return unrecognized()
	}
	content := 4
	for content < len(line) && content < 6 && (line[content] == ' ' || line[content] == '\t') {
		content++
	}

	switch {
	case tag == "LDR":
		return parseLeader(rec, line, lineNo, content, diags)
	case IsControlTag(tag):
		rec.Fields = append(rec.Fields, &Field{
			Tag:       tag,
			Kind:      ControlKind,
			Value:     line[content:],
			Span:      Span{lineNo, 0, len(line)},
			TagSpan:   Span{lineNo, 0, 4},
			ValueSpan: Span{lineNo, content, len(line)},
		})
		return diags
	case isDigits(tag) && tag >= "010":
		return parseDataField(rec, tag, line, lineNo, content, diags)
	default:
		return unrecognized()
	}
}

func parseLeader(rec *Record, line string, lineNo, content int, diags []marclsp.Diagnostic) []marclsp.Diagnostic {
	if rec.Leader != nil {
		return append(diags, marclsp.Warning("duplicate leader").
			Span(lineNo, 0, len(line)).Build())
	}
	payload := line[content:]
	if len(payload) != LeaderLength {
		diags = append(diags, marclsp.Warning(
			fmt.Sprintf("invalid leader length: got %d, want %d", len(payload), LeaderLength)).
			Span(lineNo, content, len(line)).Build())
	}
	rec.Leader = &Leader{
		Value:     payload,
		Span:      Span{lineNo, 0, len(line)},
		ValueSpan: Span{lineNo, content, len(line)},
	}
	return diags
}

func parseDataField(rec *Record, tag, line string, lineNo, content int, diags []marclsp.Diagnostic) []marclsp.Diagnostic {
	rest := line[content:]
	dollar := strings.IndexByte(rest, '$')
	indPart := rest
	if dollar >= 0 {
		indPart = rest[:dollar]
	}

	ind1, ind2 := byte(' '), byte(' ')
	switch {
	case len(indPart) == 2:
		ind1, ind2 = indPart[0], indPart[1]
	case len(indPart) == 1:
		ind1 = indPart[0]
		diags = append(diags, marclsp.Warning(
			fmt.Sprintf("invalid indicator length for field %s: got 1, want 2", tag)).
			Span(lineNo, content, content+1).Build())
	case len(indPart) == 0:
		diags = append(diags, marclsp.Warning(
			fmt.Sprintf("invalid indicator length for field %s: got 0, want 2", tag)).
			Span(lineNo, content, content).Build())
	default:
		ind1, ind2 = indPart[0], indPart[1]
		diags = append(diags, marclsp.Warning(
			fmt.Sprintf("invalid indicator length for field %s: got %d, want 2", tag, len(indPart))).
			Span(lineNo, content, content+len(indPart)).Build())
	}

	indWidth := len(indPart)
	if indWidth > 2 {
		indWidth = 2
	}
	f := &Field{
		Tag:     tag,
		Kind:    DataKind,
		Ind1:    ind1,
		Ind2:    ind2,
		Span:    Span{lineNo, 0, len(line)},
		TagSpan: Span{lineNo, 0, 4},
		IndSpan: Span{lineNo, content, content + indWidth},
	}

	if dollar >= 0 {
		f.Subfields, diags = parseSubfields(line, lineNo, content+dollar, diags)
	}
	rec.Fields = append(rec.Fields, f)
	return diags
}

// parseSubfields splits the remainder of a data-field line on the '$'
// delimiter. pos must point at the first delimiter.
func parseSubfields(line string, lineNo, pos int, diags []marclsp.Diagnostic) ([]Subfield, []marclsp.Diagnostic) {
	var subs []Subfield
	for pos < len(line) {
		// line[pos] is the delimiter.
		end := len(line)
		if next := strings.IndexByte(line[pos+1:], '$'); next >= 0 {
			end = pos + 1 + next
		}
		frag := line[pos+1 : end]
		if frag == "" {
			diags = append(diags, marclsp.Warning("empty subfield code").
				Span(lineNo, pos, pos+1).Build())
		} else {
			subs = append(subs, Subfield{
				Code:  frag[0],
				Value: frag[1:],
				Span:  Span{lineNo, pos, end},
			})
		}
		pos = end
	}
	return subs, diags
}

package engine

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gomarc/marclsp"
	"github.com/gomarc/marclsp/kb"
	"github.com/gomarc/marclsp/marc"
	"github.com/gomarc/marclsp/resolver"
)

const testDataset = `{
  "tags": {
    "245": {
      "name": "Title Statement",
      "description": "Title and statement of responsibility",
      "indicators": {
        "1": {"0": "No added entry", "1": "Added entry"},
        "2": {"0": "No nonfiling characters"}
      },
      "subfields": {
        "a": {"name": "Title", "description": "Title proper"},
        "b": {"name": "Remainder of title", "description": "Remainder of title"},
        "k": {"name": "Form", "description": "Form", "repeatable": true}
      }
    },
    "500": {
      "name": "General Note",
      "description": "General note",
      "repeatable": true,
      "subfields": {
        "a": {"name": "General note", "description": "General note"}
      }
    },
    "008": {
      "name": "Fixed-Length Data Elements",
      "description": "Coded information"
    }
  },
  "fields": {
    "008": {
      "date_entered": {"start": 0, "end": 5, "name": "Date entered on file", "description": "YYMMDD"},
      "type_of_date": {"start": 6, "end": 6, "name": "Type of date", "description": "Date type",
        "values": {"s": "Single date", "m": "Multiple dates", "|": "No attempt to code"}},
      "date1": {"start": 7, "end": 10, "name": "Date 1", "description": "First date"}
    }
  }
}`

func testValidator(t *testing.T, opts ...marclsp.Option) *Validator {
	t.Helper()
	base, err := kb.Load(kb.Dataset{Name: "test", Raw: []byte(testDataset)})
	if err != nil {
		t.Fatalf("kb.Load() error = %v", err)
	}
	return New(base, opts...)
}

func validate(t *testing.T, v *Validator, text string) *marclsp.Result {
	t.Helper()
	rec, diags := marc.Parse(text)
	if len(diags) != 0 {
		t.Fatalf("Parse() diagnostics = %v, want none", diags)
	}
	return v.Validate(context.Background(), rec)
}

func TestValidateCleanRecord(t *testing.T) {
	v := testValidator(t)
	result := validate(t, v, "=245  10$aTitle of book$bsubtitle")

	if !result.Valid || len(result.Diagnostics) != 0 {
		t.Errorf("Validate() = %+v, want no diagnostics", result.Diagnostics)
	}
}

func TestValidateUnknownTag(t *testing.T) {
	v := testValidator(t)
	result := validate(t, v, "=999  10$aLocal data")

	if len(result.Diagnostics) != 1 {
		t.Fatalf("diagnostics = %v, want 1", result.Diagnostics)
	}
	d := result.Diagnostics[0]
	if d.IsError() {
		t.Error("unknown tag should be a warning, not an error")
	}
	if !strings.Contains(d.Message, "unknown tag 999") {
		t.Errorf("message = %q", d.Message)
	}
	if !result.Valid {
		t.Error("warnings alone should leave the record valid")
	}
}

func TestValidateIndicators(t *testing.T) {
	v := testValidator(t)
	result := validate(t, v, "=245  90$aFoo")

	if len(result.Diagnostics) != 1 {
		t.Fatalf("diagnostics = %v, want 1", result.Diagnostics)
	}
	d := result.Diagnostics[0]
	if !strings.Contains(d.Message, `invalid indicator 1 value "9"`) {
		t.Errorf("message = %q", d.Message)
	}
	// Span is the single indicator character.
	if d.StartColumn != 6 || d.EndColumn != 7 {
		t.Errorf("span = %d..%d, want 6..7", d.StartColumn, d.EndColumn)
	}

	// Both indicators wrong: one warning per position.
	result = validate(t, v, "=245  99$aFoo")
	if len(result.Diagnostics) != 2 {
		t.Errorf("diagnostics = %v, want 2", result.Diagnostics)
	}
}

func TestValidateUndeclaredSubfield(t *testing.T) {
	v := testValidator(t)
	result := validate(t, v, "=245  10$aFoo$zOops")

	if len(result.Diagnostics) != 1 {
		t.Fatalf("diagnostics = %v, want 1", result.Diagnostics)
	}
	d := result.Diagnostics[0]
	if d.IsError() || !strings.Contains(d.Message, "subfield $z is not defined for field 245") {
		t.Errorf("diagnostic = %v", d)
	}
}

func TestValidateNonRepeatableTag(t *testing.T) {
	v := testValidator(t)
	result := validate(t, v, "=245  10$aFoo\n=245  10$aBar")

	// Exactly one error, anchored on the second occurrence and citing
	// the first.
	if result.Errors() != 1 {
		t.Fatalf("errors = %d (%v), want 1", result.Errors(), result.Diagnostics)
	}
	d := result.Diagnostics[0]
	if d.Line != 1 {
		t.Errorf("error line = %d, want 1 (second occurrence)", d.Line)
	}
	if !strings.Contains(d.Message, "field 245 is not repeatable") ||
		!strings.Contains(d.Message, "line 1") {
		t.Errorf("message = %q, want both occurrences cited", d.Message)
	}
	if result.Valid {
		t.Error("errors should mark the result invalid")
	}
}

func TestValidateRepeatableTagAllowed(t *testing.T) {
	v := testValidator(t)
	result := validate(t, v, "=500  \\\\$aFirst note\n=500  \\\\$aSecond note")

	// 500 is declared repeatable; the backslash indicators are not in
	// any declared map, and 500 declares no indicators at all.
	for _, d := range result.Diagnostics {
		if strings.Contains(d.Message, "not repeatable") {
			t.Errorf("unexpected repeat diagnostic: %v", d)
		}
	}
}

func TestValidateNonRepeatableSubfield(t *testing.T) {
	v := testValidator(t)
	result := validate(t, v, "=245  10$aFoo$aBar$kOne$kTwo")

	// $a is non-repeatable (error on the second), $k is repeatable.
	if result.Errors() != 1 {
		t.Fatalf("errors = %d (%v), want 1", result.Errors(), result.Diagnostics)
	}
	if !strings.Contains(result.Diagnostics[0].Message, "subfield $a is not repeatable in field 245") {
		t.Errorf("message = %q", result.Diagnostics[0].Message)
	}
}

func TestValidateFixedFieldLength(t *testing.T) {
	v := testValidator(t)
	result := validate(t, v, "=008  240101s2024")

	if len(result.Diagnostics) != 0 {
		t.Fatalf("diagnostics = %v, want none for a conforming value", result.Diagnostics)
	}

	result = validate(t, v, "=008  240101s20")
	if result.Errors() != 1 {
		t.Fatalf("errors = %d (%v), want 1", result.Errors(), result.Diagnostics)
	}
	if !strings.Contains(result.Diagnostics[0].Message, "invalid length for field 008: got 9, want 11") {
		t.Errorf("message = %q", result.Diagnostics[0].Message)
	}
}

func TestValidateFixedFieldValue(t *testing.T) {
	v := testValidator(t)
	result := validate(t, v, "=008  240101x2024")

	if result.Errors() != 1 {
		t.Fatalf("errors = %d (%v), want 1", result.Errors(), result.Diagnostics)
	}
	d := result.Diagnostics[0]
	if !strings.Contains(d.Message, `invalid character "x"`) ||
		!strings.Contains(d.Message, "Type of date") ||
		!strings.Contains(d.Message, "position 6") {
		t.Errorf("message = %q, want position and character named", d.Message)
	}
	// Span covers the offending character: column 6 (value start) + 6.
	if d.StartColumn != 12 || d.EndColumn != 13 {
		t.Errorf("span = %d..%d, want 12..13", d.StartColumn, d.EndColumn)
	}
}

func TestValidateSortedOutput(t *testing.T) {
	v := testValidator(t)
	result := validate(t, v, "=245  90$aFoo$zOops\n=999  10$aLocal")

	lines := make([]int, len(result.Diagnostics))
	for i, d := range result.Diagnostics {
		lines[i] = d.Line
	}
	for i := 1; i < len(result.Diagnostics); i++ {
		prev, cur := result.Diagnostics[i-1], result.Diagnostics[i]
		if prev.Line > cur.Line || (prev.Line == cur.Line && prev.StartColumn > cur.StartColumn) {
			t.Fatalf("diagnostics out of order: %v", result.Diagnostics)
		}
	}
}

func TestValidateText(t *testing.T) {
	v := testValidator(t)

	// A parse diagnostic and a validation diagnostic: parser output
	// comes first.
	rec, result := v.ValidateText(context.Background(), "=245  1$aFoo\n=999  10$aLocal")
	if len(rec.Fields) != 2 {
		t.Fatalf("fields = %d, want 2", len(rec.Fields))
	}
	if len(result.Diagnostics) != 2 {
		t.Fatalf("diagnostics = %v, want 2", result.Diagnostics)
	}
	if !strings.Contains(result.Diagnostics[0].Message, "invalid indicator length") {
		t.Errorf("first diagnostic = %q, want the parser's", result.Diagnostics[0].Message)
	}
	if !strings.Contains(result.Diagnostics[1].Message, "unknown tag 999") {
		t.Errorf("second diagnostic = %q, want the validator's", result.Diagnostics[1].Message)
	}
}

func TestValidateBatch(t *testing.T) {
	v := testValidator(t, marclsp.WithBatchWorkers(2))

	inputs := [][]byte{
		[]byte("=245  10$aClean record"),
		[]byte("=245  10$aFoo\n=245  10$aBar"),
		[]byte("=999  10$aUnknown"),
	}
	results := v.ValidateBatch(context.Background(), inputs)

	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	if !results[0].Valid || len(results[0].Diagnostics) != 0 {
		t.Errorf("results[0] = %+v, want clean", results[0].Diagnostics)
	}
	if results[1].Valid || results[1].Errors() != 1 {
		t.Errorf("results[1] = %+v, want one repeat error", results[1].Diagnostics)
	}
	if !results[2].Valid || results[2].Warnings() != 1 {
		t.Errorf("results[2] = %+v, want one unknown-tag warning", results[2].Diagnostics)
	}
}

func TestMetricsRecorded(t *testing.T) {
	v := testValidator(t)
	v.ValidateText(context.Background(), "=245  10$aFoo")
	v.ValidateText(context.Background(), "=245  10$aFoo\n=245  10$aBar")

	snap := v.Metrics().Snapshot()
	if snap.Parses != 2 || snap.Validations != 2 {
		t.Errorf("snapshot = %+v, want 2 parses and validations", snap)
	}
	if snap.Errors != 1 {
		t.Errorf("snapshot errors = %d, want 1", snap.Errors)
	}
}

func TestValidateDefaultedIndicatorSpan(t *testing.T) {
	v := testValidator(t)
	// One indicator character: indicator 2 defaults to blank, which is
	// not a declared value for 245.
	rec, _ := marc.Parse("=245  1$aFoo")
	result := v.Validate(context.Background(), rec)

	var found bool
	for _, d := range result.Diagnostics {
		if !strings.Contains(d.Message, "invalid indicator 2") {
			continue
		}
		found = true
		f := rec.Fields[0]
		if d.StartColumn < f.IndSpan.StartColumn || d.EndColumn > f.IndSpan.EndColumn {
			t.Errorf("span = %d-%d, want within indicator region %d-%d",
				d.StartColumn, d.EndColumn, f.IndSpan.StartColumn, f.IndSpan.EndColumn)
		}
	}
	if !found {
		t.Fatalf("no indicator 2 warning in %v", result.Diagnostics)
	}
}

func TestValidateTextLineMode(t *testing.T) {
	v := testValidator(t)
	rec, result := v.ValidateText(context.Background(), "001 123456789\n245 10 $a Title of book")

	if !result.Valid || len(result.Diagnostics) != 0 {
		t.Fatalf("diagnostics = %v, want none", result.Diagnostics)
	}
	if len(rec.Fields) != 2 || rec.Fields[1].Ind1 != '1' {
		t.Errorf("fields = %+v", rec.Fields)
	}

	_, result = v.ValidateText(context.Background(), "245 90 $a Foo")
	if result.Warnings() != 1 {
		t.Errorf("diagnostics = %v, want one indicator warning", result.Diagnostics)
	}
}

type stubFetcher struct {
	def   *kb.TagDefinition
	calls atomic.Int32
}

func (s *stubFetcher) FetchTag(ctx context.Context, tag string) (*kb.TagDefinition, []byte, error) {
	s.calls.Add(1)
	return s.def, []byte("<html></html>"), nil
}

func TestMetricsRemoteCounters(t *testing.T) {
	base, err := kb.Load(kb.Dataset{Name: "test", Raw: []byte(testDataset)})
	if err != nil {
		t.Fatalf("kb.Load() error = %v", err)
	}
	opts := marclsp.DefaultOptions()
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	res, err := resolver.New(base, opts)
	if err != nil {
		t.Fatalf("resolver.New() error = %v", err)
	}
	fetcher := &stubFetcher{def: &kb.TagDefinition{Tag: "999", Name: "Local", Description: "Local field"}}
	res.SetFetcher(fetcher)

	v := New(base)
	v.SetResolver(res)

	rec, _ := marc.Parse("=999  10$aLocal data")
	if result := v.Validate(context.Background(), rec); !result.Valid {
		t.Fatalf("diagnostics = %v, want none with a resolved definition", result.Diagnostics)
	}
	v.Validate(context.Background(), rec)

	if fetcher.calls.Load() != 1 {
		t.Fatalf("remote fetches = %d, want 1", fetcher.calls.Load())
	}
	snap := v.Metrics().Snapshot()
	if snap.Fetches != 1 {
		t.Errorf("Snapshot().Fetches = %d, want 1", snap.Fetches)
	}
	if snap.CacheMisses != 1 || snap.CacheHits != 1 {
		t.Errorf("Snapshot() misses=%d hits=%d, want 1/1", snap.CacheMisses, snap.CacheHits)
	}
}

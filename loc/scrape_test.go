package loc

import (
	"errors"
	"strings"
	"testing"
)

const samplePage = `<html><body>
<h1>245 - Title Statement</h1>
<p>Field containing the title and statement of responsibility area of the bibliographic description of a work.</p>
<h3>First Indicator</h3>
<p>Title added entry</p>
<p>0 - No added entry<br>1 - Added entry</p>
<h3>Second Indicator</h3>
<p>Nonfiling characters</p>
<p># - No nonfiling characters
0 - No nonfiling characters</p>
<table class="subfields"><tr><td><ul>
<li>$a - Title (NR)</li>
<li>$b - Remainder of title (NR)</li>
<li>$k - Form (R)</li>
</ul></td></tr></table>
<div class="subfields">
<div class="subfield">
<p class="label">$a - Title</p>
<div><p>Title proper and any alternative title of the work.</p>
<p class="example">245 10$aExample title</p></div>
</div>
</div>
</body></html>`

func TestParseTagPage(t *testing.T) {
	def, err := ParseTagPage("245", []byte(samplePage))
	if err != nil {
		t.Fatalf("ParseTagPage() error = %v", err)
	}

	if def.Tag != "245" || def.Name != "Title Statement" {
		t.Errorf("tag/name = %q/%q", def.Tag, def.Name)
	}
	if !strings.Contains(def.Description, "statement of responsibility") {
		t.Errorf("description = %q, want the field summary paragraph", def.Description)
	}

	if got := def.Indicators["1"]["1"]; got != "Added entry" {
		t.Errorf("indicator 1 value 1 = %q, want Added entry", got)
	}
	// "#" on the page means a blank indicator.
	if got := def.Indicators["2"][" "]; got != "No nonfiling characters" {
		t.Errorf("indicator 2 blank = %q", got)
	}

	a, ok := def.Subfields["a"]
	if !ok {
		t.Fatal("subfield a missing")
	}
	if a.Name != "Title" || a.Repeatable {
		t.Errorf("subfield a = %+v, want non-repeatable Title", a)
	}
	// The detail section supplies the richer description.
	if !strings.Contains(a.Description, "Title proper") {
		t.Errorf("subfield a description = %q, want detailed text", a.Description)
	}
	if strings.Contains(a.Description, "Example title") {
		t.Errorf("subfield a description includes example text: %q", a.Description)
	}

	if k := def.Subfields["k"]; !k.Repeatable {
		t.Error("subfield k should be repeatable")
	}
	if b := def.Subfields["b"]; b.Description != "Remainder of title" {
		t.Errorf("subfield b description = %q, want summary name", b.Description)
	}
}

func TestParseTagPageRepeatable(t *testing.T) {
	page := `<html><body><h1>500 - General Note</h1>
<p>Field for a general note. (Repeatable)</p></body></html>`
	def, err := ParseTagPage("500", []byte(page))
	if err != nil {
		t.Fatalf("ParseTagPage() error = %v", err)
	}
	if !def.Repeatable {
		t.Error("page saying Repeatable should yield a repeatable definition")
	}

	page = `<html><body><h1>245 - Title Statement</h1>
<p>Field for the title. This field is not repeatable.</p></body></html>`
	def, err = ParseTagPage("245", []byte(page))
	if err != nil {
		t.Fatalf("ParseTagPage() error = %v", err)
	}
	if def.Repeatable {
		t.Error("page saying not repeatable should yield a non-repeatable definition")
	}
}

func TestParseTagPageBrSeparatedCells(t *testing.T) {
	// Older pages list subfields in a plain table cell.
	page := `<html><body><h1>035 - System Control Number</h1>
<table><tr><td>$a - System control number (NR)<br>$z - Canceled control number (R)</td></tr></table>
</body></html>`
	def, err := ParseTagPage("035", []byte(page))
	if err != nil {
		t.Fatalf("ParseTagPage() error = %v", err)
	}
	if def.Subfields["a"].Name != "System control number" {
		t.Errorf("subfield a = %+v", def.Subfields["a"])
	}
	if !def.Subfields["z"].Repeatable {
		t.Error("subfield z should be repeatable")
	}
}

func TestParseTagPageNoHeading(t *testing.T) {
	_, err := ParseTagPage("245", []byte(`<html><body><p>moved</p></body></html>`))
	if !errors.Is(err, ErrScrape) {
		t.Errorf("ParseTagPage() error = %v, want ErrScrape", err)
	}

	_, err = ParseTagPage("245", []byte(`<html><body><h1>Site maintenance</h1></body></html>`))
	if !errors.Is(err, ErrScrape) {
		t.Errorf("ParseTagPage() with unrelated heading error = %v, want ErrScrape", err)
	}
}

func TestParseTagPageDescriptionFallback(t *testing.T) {
	// No prose mentioning the field: the name doubles as description.
	def, err := ParseTagPage("500", []byte(`<html><body><h1>500 - General Note</h1></body></html>`))
	if err != nil {
		t.Fatalf("ParseTagPage() error = %v", err)
	}
	if def.Description != "General Note" {
		t.Errorf("description = %q, want name fallback", def.Description)
	}
}

func TestTrimDescription(t *testing.T) {
	short := "A short description."
	if got := trimDescription(short); got != short {
		t.Errorf("trimDescription(short) = %q", got)
	}

	long := strings.Repeat("word ", 50) + "End of sentence. " + strings.Repeat("tail ", 40)
	got := trimDescription(long)
	if len(got) > 304 {
		t.Errorf("trimDescription() length = %d, want trimmed", len(got))
	}
	if !strings.HasSuffix(got, ".") && !strings.HasSuffix(got, "...") {
		t.Errorf("trimDescription() = %q, want sentence or ellipsis ending", got)
	}
}

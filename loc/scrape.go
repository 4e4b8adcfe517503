package loc

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"

	"github.com/gomarc/marclsp/kb"
)

// Precompiled queries for the recurring shapes of LC field pages.
var (
	headingExpr      = xpath.MustCompile("//h1")
	subfieldItemExpr = xpath.MustCompile("//table[contains(@class,'subfields')]//li")
	tableCellExpr    = xpath.MustCompile("//td")
	detailExpr       = xpath.MustCompile("//div[contains(@class,'subfields')]//div[contains(@class,'subfield')]")
	detailLabelExpr  = xpath.MustCompile("./p[contains(@class,'label')]")
	sectionHeadExpr  = xpath.MustCompile("//h2|//h3|//h4")
	proseExpr        = xpath.MustCompile("//p|//div")
)

var (
	titleRe        = regexp.MustCompile(`^(\d{3})\s*-\s*(.+)$`)
	subfieldRe     = regexp.MustCompile(`^\$([a-z0-9])\s*-\s*([^(]+?)\s*(?:\(([NR]+)\))?$`)
	detailLabelRe  = regexp.MustCompile(`^\$([a-z0-9])\s*-\s*(.+)$`)
	indicatorNumRe = regexp.MustCompile(`(?i)indicator\s*(\d)`)
	indicatorValRe = regexp.MustCompile(`^([0-9#])\s*-\s*(.+)$`)
	whitespaceRe   = regexp.MustCompile(`\s+`)
)

// ParseTagPage scrapes a tag definition out of an LC documentation
// page. The page name is mandatory; everything else is best effort.
func ParseTagPage(tag string, body []byte) (*kb.TagDefinition, error) {
	doc, err := htmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	name := pageName(doc)
	if name == "" {
		return nil, fmt.Errorf("%w: no field heading", ErrScrape)
	}

	def := &kb.TagDefinition{
		Tag:         tag,
		Name:        name,
		Description: pageDescription(doc),
		Repeatable:  pageRepeatable(doc),
		Indicators:  pageIndicators(doc),
		Subfields:   pageSubfields(doc),
	}
	if def.Description == "" {
		def.Description = name
	}
	return def, nil
}

// pageName finds the "245 - Title Statement" heading and returns the
// name part.
func pageName(doc *html.Node) string {
	for _, h1 := range htmlquery.QuerySelectorAll(doc, headingExpr) {
		if m := titleRe.FindStringSubmatch(clean(htmlquery.InnerText(h1))); m != nil {
			return strings.TrimSpace(m[2])
		}
	}
	return ""
}

// pageDescription picks the first plausible prose block: long enough
// to say something, short enough to be a summary, and about the field.
func pageDescription(doc *html.Node) string {
	for _, node := range htmlquery.QuerySelectorAll(doc, proseExpr) {
		text := clean(htmlquery.InnerText(node))
		if len(text) > 20 && len(text) < 500 && strings.Contains(strings.ToLower(text), "field") {
			return text
		}
	}
	return ""
}

// pageRepeatable reads repeatability from the page text.
func pageRepeatable(doc *html.Node) bool {
	text := strings.ToLower(htmlquery.InnerText(doc))
	return strings.Contains(text, "repeatable") && !strings.Contains(text, "not repeatable")
}

// pageIndicators collects indicator value tables. The pages introduce
// each indicator with a small heading and list its values in whatever
// markup follows, so the values are read from the heading's siblings
// up to the next heading.
func pageIndicators(doc *html.Node) map[string]map[string]string {
	indicators := make(map[string]map[string]string)
	for _, head := range htmlquery.QuerySelectorAll(doc, sectionHeadExpr) {
		text := htmlquery.InnerText(head)
		if !strings.Contains(strings.ToLower(text), "indicator") {
			continue
		}
		m := indicatorNumRe.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		values := indicatorValues(head)
		if len(values) > 0 {
			indicators[m[1]] = values
		}
	}
	if len(indicators) == 0 {
		return nil
	}
	return indicators
}

func indicatorValues(heading *html.Node) map[string]string {
	values := make(map[string]string)
	for sib := heading.NextSibling; sib != nil && len(values) < 20; sib = sib.NextSibling {
		if isHeading(sib) {
			break
		}
		var lines []string
		if sib.Type == html.TextNode {
			lines = splitClean(sib.Data)
		} else {
			lines = nodeLines(sib)
		}
		for _, line := range lines {
			m := indicatorValRe.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			key := m[1]
			// LC pages write blank indicators as "#".
			if key == "#" {
				key = " "
			}
			values[key] = m[2]
		}
	}
	if len(values) == 0 {
		return nil
	}
	return values
}

func splitClean(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = clean(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func isHeading(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.Data {
	case "h1", "h2", "h3", "h4":
		return true
	}
	return false
}

// pageSubfields merges the summary subfield list with the detailed
// per-subfield sections. The summary supplies codes, names, and
// repeatability; the detail sections supply richer descriptions.
func pageSubfields(doc *html.Node) map[string]kb.SubfieldDefinition {
	subfields := basicSubfields(doc)
	for code, detail := range detailedSubfields(doc) {
		if existing, ok := subfields[code]; ok {
			if detail.Description != "" {
				existing.Description = detail.Description
				subfields[code] = existing
			}
		} else {
			subfields[code] = detail
		}
	}
	if len(subfields) == 0 {
		return nil
	}
	return subfields
}

// basicSubfields reads "$a - Title (NR)" entries from the subfields
// table. Older pages put the same lines in plain table cells separated
// by <br>, so those are scanned when no table exists.
func basicSubfields(doc *html.Node) map[string]kb.SubfieldDefinition {
	subfields := make(map[string]kb.SubfieldDefinition)

	items := htmlquery.QuerySelectorAll(doc, subfieldItemExpr)
	if len(items) > 0 {
		for _, li := range items {
			addSubfieldLine(subfields, clean(htmlquery.InnerText(li)))
		}
		return subfields
	}

	for _, td := range htmlquery.QuerySelectorAll(doc, tableCellExpr) {
		if !strings.Contains(htmlquery.InnerText(td), "$") {
			continue
		}
		for _, line := range nodeLines(td) {
			addSubfieldLine(subfields, line)
		}
	}
	return subfields
}

func addSubfieldLine(subfields map[string]kb.SubfieldDefinition, line string) {
	m := subfieldRe.FindStringSubmatch(line)
	if m == nil {
		return
	}
	code := strings.ToLower(m[1])
	name := strings.TrimSpace(m[2])
	subfields[code] = kb.SubfieldDefinition{
		Code:        code,
		Name:        name,
		Description: name,
		Repeatable:  strings.Contains(m[3], "R") && m[3] != "NR",
	}
}

// nodeLines flattens a node's content into lines, treating both <br>
// and literal newlines as line breaks.
func nodeLines(node *html.Node) []string {
	var lines []string
	var current strings.Builder
	flush := func() {
		if line := clean(current.String()); line != "" {
			lines = append(lines, line)
		}
		current.Reset()
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			if child.Type == html.ElementNode && child.Data == "br" {
				flush()
				continue
			}
			if child.Type == html.TextNode {
				for i, segment := range strings.Split(child.Data, "\n") {
					if i > 0 {
						flush()
					}
					current.WriteString(segment)
				}
			}
			walk(child)
		}
	}
	walk(node)
	flush()
	return lines
}

// detailedSubfields reads the per-subfield description sections.
func detailedSubfields(doc *html.Node) map[string]kb.SubfieldDefinition {
	subfields := make(map[string]kb.SubfieldDefinition)
	for _, section := range htmlquery.QuerySelectorAll(doc, detailExpr) {
		label := htmlquery.QuerySelectorAll(section, detailLabelExpr)
		if len(label) == 0 {
			continue
		}
		m := detailLabelRe.FindStringSubmatch(clean(htmlquery.InnerText(label[0])))
		if m == nil {
			continue
		}
		code := strings.ToLower(m[1])
		name := strings.TrimSpace(m[2])
		description := detailDescription(label[0])
		if description == "" {
			description = name
		}
		subfields[code] = kb.SubfieldDefinition{
			Code:        code,
			Name:        name,
			Description: description,
		}
	}
	return subfields
}

// detailDescription joins the prose paragraphs following a subfield
// label, skipping example blocks, and trims the result to a length
// that reads well in a hover.
func detailDescription(label *html.Node) string {
	var desc *html.Node
	for sib := label.NextSibling; sib != nil; sib = sib.NextSibling {
		if sib.Type == html.ElementNode && sib.Data == "div" {
			desc = sib
			break
		}
	}
	if desc == nil {
		return ""
	}

	var parts []string
	for child := desc.FirstChild; child != nil; child = child.NextSibling {
		if child.Type != html.ElementNode || child.Data != "p" {
			continue
		}
		if hasClass(child, "example") {
			continue
		}
		if text := clean(htmlquery.InnerText(child)); text != "" {
			parts = append(parts, text)
		}
	}
	return trimDescription(strings.Join(parts, " "))
}

func hasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key == "class" && strings.Contains(attr.Val, class) {
			return true
		}
	}
	return false
}

// trimDescription shortens long prose at a sentence boundary.
func trimDescription(s string) string {
	if len(s) <= 300 {
		return s
	}
	if i := strings.Index(s[200:], ". "); i >= 0 && 200+i < 300 {
		return s[:200+i+1]
	}
	return s[:300] + "..."
}

func clean(s string) string {
	return whitespaceRe.ReplaceAllString(strings.TrimSpace(s), " ")
}

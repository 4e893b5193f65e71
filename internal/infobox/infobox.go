// Package infobox mines structured song metadata out of rendered wiki
// page HTML. Extraction is two-tier: the infobox key/value table first,
// then targeted patterns over the flattened page text for anything the
// table did not yield. Absence of a field is not an error.
package infobox

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Extracted is the partial field bag mined from one page.
type Extracted struct {
	Genre string
	Year  int
	Album string
	Label string
}

var (
	yearRun      = regexp.MustCompile(`\d{4}`)
	citationRef  = regexp.MustCompile(`\[\d+\]`)
	whitespace   = regexp.MustCompile(`\s+`)
	genrePattern = regexp.MustCompile(`genres?\s*[:\-\s]+([^.\n]+)`)
	yearPattern  = regexp.MustCompile(`released?\s*[:\-\s]*(\d{4})`)
)

// Extract parses the page markup and returns whatever subset of fields
// could be found. Malformed markup yields an empty result, never an error.
func Extract(markup string) Extracted {
	var ex Extracted

	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return ex
	}

	if table := findInfobox(doc); table != nil {
		scanTable(table, &ex)
	}

	// Text fallback only for fields the table did not yield.
	if ex.Genre == "" || ex.Year == 0 {
		text := strings.ToLower(flatten(doc))
		if ex.Genre == "" {
			if m := genrePattern.FindStringSubmatch(text); m != nil {
				ex.Genre = firstSegment(m[1])
			}
		}
		if ex.Year == 0 {
			if m := yearPattern.FindStringSubmatch(text); m != nil {
				ex.Year = atoiYear(m[1])
			}
		}
	}

	return ex
}

// scanTable walks infobox rows and assigns the first matching value per
// field. Table values always win over text fallbacks.
func scanTable(table *html.Node, ex *Extracted) {
	for _, row := range childElements(table, "tr") {
		header := firstChildElement(row, "th")
		data := firstChildElement(row, "td")
		if header == nil || data == nil {
			continue
		}
		label := strings.ToLower(cleanValue(nodeText(header)))
		value := cleanValue(nodeText(data))
		if value == "" {
			continue
		}
		switch {
		case strings.Contains(label, "genre") && ex.Genre == "":
			ex.Genre = firstSegment(value)
		case strings.Contains(label, "released") && ex.Year == 0:
			if m := yearRun.FindString(value); m != "" {
				ex.Year = atoiYear(m)
			}
		case strings.Contains(label, "album") && ex.Album == "":
			ex.Album = firstSegment(value)
		case strings.Contains(label, "label") && ex.Label == "":
			ex.Label = firstSegment(value)
		}
	}
}

// findInfobox returns the first table whose class contains "infobox".
func findInfobox(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "table" {
		for _, attr := range n.Attr {
			if attr.Key == "class" && strings.Contains(attr.Val, "infobox") {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findInfobox(c); found != nil {
			return found
		}
	}
	return nil
}

// childElements collects descendant elements with the given tag, in
// document order. Infobox rows may be nested under tbody.
func childElements(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			out = append(out, c)
			continue
		}
		out = append(out, childElements(c, tag)...)
	}
	return out
}

func firstChildElement(n *html.Node, tag string) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			return c
		}
	}
	return nil
}

// nodeText collects the text content of a node, separating block-ish
// children with newlines so list-valued infobox cells keep boundaries.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
			if n.Data == "br" || n.Data == "li" || n.Data == "p" || n.Data == "div" {
				sb.WriteString("\n")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// flatten returns the whole document's text for the regex fallback tier.
func flatten(doc *html.Node) string {
	return citationRef.ReplaceAllString(nodeText(doc), "")
}

// cleanValue strips citation refs, collapses whitespace, and rejects
// implausibly long values.
func cleanValue(s string) string {
	s = citationRef.ReplaceAllString(s, "")
	s = strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
	if len([]rune(s)) > 100 {
		return ""
	}
	return s
}

// firstSegment takes the first comma-separated segment of a value.
func firstSegment(s string) string {
	s, _, _ = strings.Cut(s, ",")
	return cleanValue(s)
}

func atoiYear(s string) int {
	y := 0
	for _, r := range s {
		y = y*10 + int(r-'0')
	}
	return y
}

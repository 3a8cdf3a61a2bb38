package extraction

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// headingSelector matches elements that act as section titles
const headingSelector = `h1, h2, h3, h4, h5, h6, [role="heading"], [class*="title"], [class*="Title"], [class*="header"], [class*="Header"]`

// maxHeadingLength filters out large containers whose class happens to match headingSelector
const maxHeadingLength = 80

var (
	blockTags = map[string]bool{
		"address": true, "article": true, "aside": true, "blockquote": true, "dd": true, "div": true,
		"dl": true, "dt": true, "fieldset": true, "figcaption": true, "figure": true, "footer": true,
		"form": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
		"header": true, "li": true, "main": true, "nav": true, "ol": true, "p": true, "pre": true,
		"section": true, "table": true, "tbody": true, "td": true, "tfoot": true, "th": true,
		"thead": true, "tr": true, "ul": true,
	}
	skipTags = map[string]bool{
		"script": true, "style": true, "noscript": true, "template": true, "head": true,
	}

	firstIntRe = regexp.MustCompile(`\d[\d,]*`)
	digitRe    = regexp.MustCompile(`\d`)
)

// NewDocument parses an HTML snapshot
func NewDocument(content string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(content))
}

// InnerText approximates the rendered text of a selection: block elements and
// <br> start new lines, whitespace inside a line is collapsed, empty lines dropped.
func InnerText(s *goquery.Selection) string {
	var b strings.Builder
	for _, n := range s.Nodes {
		writeText(&b, n)
	}
	return strings.Join(splitLines(b.String()), "\n")
}

// Lines returns the non-empty rendered lines of a selection
func Lines(s *goquery.Selection) []string {
	var b strings.Builder
	for _, n := range s.Nodes {
		writeText(&b, n)
	}
	return splitLines(b.String())
}

// FlatText joins every text node of the selection with single spaces
func FlatText(s *goquery.Selection) string {
	var parts []string
	for _, n := range s.Nodes {
		collectText(n, &parts)
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

func writeText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
	case html.ElementNode, html.DocumentNode:
		if n.Type == html.ElementNode {
			if skipTags[n.Data] || isHiddenNode(n) {
				return
			}
			if n.Data == "br" {
				b.WriteByte('\n')
				return
			}
		}
		block := n.Type == html.ElementNode && blockTags[n.Data]
		if block {
			b.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			writeText(b, c)
		}
		if block {
			b.WriteByte('\n')
		}
	}
}

func collectText(n *html.Node, parts *[]string) {
	switch n.Type {
	case html.TextNode:
		if t := strings.TrimSpace(n.Data); t != "" {
			*parts = append(*parts, t)
		}
	case html.ElementNode, html.DocumentNode:
		if n.Type == html.ElementNode && (skipTags[n.Data] || isHiddenNode(n)) {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collectText(c, parts)
		}
	}
}

func splitLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if collapsed := strings.Join(strings.Fields(line), " "); collapsed != "" {
			lines = append(lines, collapsed)
		}
	}
	return lines
}

// isHiddenNode reports whether the element itself is marked hidden
func isHiddenNode(n *html.Node) bool {
	for _, attr := range n.Attr {
		switch attr.Key {
		case "hidden":
			return true
		case "aria-hidden":
			if attr.Val == "true" {
				return true
			}
		case "style":
			style := strings.ReplaceAll(strings.ToLower(attr.Val), " ", "")
			if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
				return true
			}
		}
	}
	return false
}

// IsHidden reports whether the element or one of its ancestors is hidden
func IsHidden(s *goquery.Selection) bool {
	if s.Length() == 0 {
		return true
	}
	for n := s.Nodes[0]; n != nil; n = n.Parent {
		if n.Type == html.ElementNode && (skipTags[n.Data] || isHiddenNode(n)) {
			return true
		}
	}
	return false
}

// FirstInt returns the first integer in text, ignoring thousands separators
func FirstInt(text string) (int, bool) {
	match := firstIntRe.FindString(text)
	if match == "" {
		return 0, false
	}
	n, err := strconv.Atoi(strings.ReplaceAll(match, ",", ""))
	if err != nil {
		return 0, false
	}
	return n, true
}

func hasDigit(s string) bool {
	return digitRe.MatchString(s)
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// documentOrder indexes every element of the document by its position
func documentOrder(doc *goquery.Document) map[*html.Node]int {
	order := make(map[*html.Node]int)
	doc.Find("*").Each(func(i int, s *goquery.Selection) {
		order[s.Nodes[0]] = i
	})
	return order
}

// findHeading returns the first visible heading whose own text matches pattern
func findHeading(doc *goquery.Document, pattern *regexp.Regexp) *goquery.Selection {
	var found *goquery.Selection
	doc.Find(headingSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := FlatText(s)
		if text == "" || len(text) > maxHeadingLength || IsHidden(s) {
			return true
		}
		if pattern.MatchString(text) {
			found = s
			return false
		}
		return true
	})
	return found
}

// enclosingBlock walks up from the heading until an ancestor satisfies hasContent
func enclosingBlock(heading *goquery.Selection, maxLevels int, hasContent func(*goquery.Selection) bool) *goquery.Selection {
	cur := heading.Parent()
	for i := 0; i < maxLevels && cur.Length() > 0; i++ {
		if goquery.NodeName(cur) == "html" {
			break
		}
		if hasContent(cur) {
			return cur
		}
		cur = cur.Parent()
	}
	return nil
}

package extraction

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/pharmascout/internal/models"
	"golang.org/x/net/html"
)

// DefaultRankedListLimit is the number of entries kept per ranked list
const DefaultRankedListLimit = 5

const rowSelector = `li, tr, [role="row"], [role="listitem"], [class*="item"], [class*="Item"], [class*="row"], [class*="Row"]`

var (
	DiseaseDomainHeading = regexp.MustCompile(`(?i)disease\s*domains?|therapeutic\s*areas?`)
	DrugTypeHeading      = regexp.MustCompile(`(?i)drug\s*types?`)
	TargetHeading        = regexp.MustCompile(`(?i)^\s*(?:top\s+)?targets?\b`)

	// rankedRowRe splits "Name ... 12" into the name and its trailing count
	rankedRowRe = regexp.MustCompile(`^(.*?)[\s:：\-–(]*(\d[\d,]*)\s*\)?$`)
)

// RankedList extracts the top entries of the list introduced by the first
// heading matching pattern. A row's trailing integer is its count.
func RankedList(doc *goquery.Document, pattern *regexp.Regexp, limit int) []models.RankedItem {
	if limit <= 0 {
		limit = DefaultRankedListLimit
	}

	heading := findHeading(doc, pattern)
	if heading == nil {
		return nil
	}

	order := documentOrder(doc)
	headingNode := heading.Nodes[0]
	start := order[headingNode]

	inScope := func(s *goquery.Selection) bool {
		n := s.Nodes[0]
		if n == headingNode || isAncestor(n, headingNode) || isAncestor(headingNode, n) {
			return false
		}
		return order[n] > start
	}

	rows := func(block *goquery.Selection) *goquery.Selection {
		return innermostDigitRows(block).FilterFunction(func(_ int, s *goquery.Selection) bool {
			return inScope(s)
		})
	}
	leaves := func(block *goquery.Selection) *goquery.Selection {
		return digitLeaves(block).FilterFunction(func(_ int, s *goquery.Selection) bool {
			return inScope(s)
		})
	}

	var candidates *goquery.Selection
	if block := enclosingBlock(heading, 6, func(s *goquery.Selection) bool { return rows(s).Length() > 0 }); block != nil {
		candidates = rows(block)
	} else if block := enclosingBlock(heading, 6, func(s *goquery.Selection) bool { return leaves(s).Length() > 0 }); block != nil {
		candidates = leaves(block)
	}
	if candidates == nil {
		return nil
	}

	// Stop at the next section title so sibling lists are not merged
	if end, ok := nextHeadingOrder(doc, order, headingNode); ok {
		candidates = candidates.FilterFunction(func(_ int, s *goquery.Selection) bool {
			return order[s.Nodes[0]] < end
		})
	}

	seen := make(map[string]bool)
	var items []models.RankedItem
	candidates.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		item, ok := parseRankedRow(FlatText(s))
		if !ok {
			return true
		}
		key := strings.ToLower(item.Name)
		if seen[key] {
			return true
		}
		seen[key] = true
		items = append(items, item)
		return len(items) < limit
	})

	return items
}

// parseRankedRow reads "Oncology 12", "Oncology: 12" or "Oncology (12)"
func parseRankedRow(text string) (models.RankedItem, bool) {
	match := rankedRowRe.FindStringSubmatch(strings.TrimSpace(text))
	if match == nil {
		return models.RankedItem{}, false
	}
	name := strings.TrimSpace(strings.TrimRight(match[1], " :：-–("))
	if name == "" || !hasLetter(name) {
		return models.RankedItem{}, false
	}
	count, err := strconv.Atoi(strings.ReplaceAll(match[2], ",", ""))
	if err != nil {
		return models.RankedItem{}, false
	}
	return models.RankedItem{Name: name, Count: count}, true
}

// innermostDigitRows returns row-like elements containing a digit that do not
// contain another such row
func innermostDigitRows(block *goquery.Selection) *goquery.Selection {
	withDigit := func(_ int, s *goquery.Selection) bool {
		return !IsHidden(s) && hasDigit(FlatText(s))
	}
	return block.Find(rowSelector).FilterFunction(withDigit).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Find(rowSelector).FilterFunction(withDigit).Length() == 0
	})
}

// digitLeaves returns elements without element children whose text contains a digit
func digitLeaves(block *goquery.Selection) *goquery.Selection {
	return block.Find("*").FilterFunction(func(_ int, s *goquery.Selection) bool {
		if s.Children().Length() > 0 || IsHidden(s) {
			return false
		}
		return hasDigit(FlatText(s))
	})
}

// nextHeadingOrder returns the document position of the first title-like
// element after the heading, ignoring titles that carry numbers
func nextHeadingOrder(doc *goquery.Document, order map[*html.Node]int, headingNode *html.Node) (int, bool) {
	start := order[headingNode]
	end := -1
	doc.Find(headingSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		n := s.Nodes[0]
		if order[n] <= start || isAncestor(headingNode, n) || isAncestor(n, headingNode) {
			return true
		}
		text := FlatText(s)
		if text == "" || len(text) > maxHeadingLength || hasDigit(text) || IsHidden(s) {
			return true
		}
		if s.Find(rowSelector).Length() > 0 {
			return true
		}
		// Titles inside a short counted row label that row, not a new section
		if row := s.Closest(rowSelector); row.Length() > 0 {
			if rowText := FlatText(row); hasDigit(rowText) && len(rowText) <= 2*maxHeadingLength {
				return true
			}
		}
		end = order[n]
		return false
	})
	return end, end >= 0
}

// isAncestor reports whether a is a strict ancestor of n
func isAncestor(a, n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p == a {
			return true
		}
	}
	return false
}

// ExtractDiseaseDomains, ExtractDrugTypes and ExtractTargets adapt RankedList to the strategy signature
func ExtractDiseaseDomains(limit int) Strategy {
	return Strategy{Name: "disease_domains", Extract: func(doc *goquery.Document) *models.Extraction {
		if items := RankedList(doc, DiseaseDomainHeading, limit); len(items) > 0 {
			return &models.Extraction{DiseaseDomains: items}
		}
		return nil
	}}
}

func ExtractDrugTypes(limit int) Strategy {
	return Strategy{Name: "drug_types", Extract: func(doc *goquery.Document) *models.Extraction {
		if items := RankedList(doc, DrugTypeHeading, limit); len(items) > 0 {
			return &models.Extraction{DrugTypes: items}
		}
		return nil
	}}
}

func ExtractTargets(limit int) Strategy {
	return Strategy{Name: "targets", Extract: func(doc *goquery.Document) *models.Extraction {
		if items := RankedList(doc, TargetHeading, limit); len(items) > 0 {
			return &models.Extraction{Targets: items}
		}
		return nil
	}}
}

package extraction

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/pharmascout/internal/models"
)

// tableKeywords are the labels a pipeline table is expected to mention
var tableKeywords = []*regexp.Regexp{
	regexp.MustCompile(`discovery`),
	regexp.MustCompile(`preclinical`),
	regexp.MustCompile(`ind\s*application`),
	regexp.MustCompile(`ind\s*approval`),
	regexp.MustCompile(`phase\s*1`),
	regexp.MustCompile(`phase\s*2`),
	regexp.MustCompile(`phase\s*3`),
	regexp.MustCompile(`approved`),
	regexp.MustCompile(`other`),
	regexp.MustCompile(`disease\s+domain`),
	regexp.MustCompile(`count`),
}

var moreMarkerRe = regexp.MustCompile(`\[\+(\d+)\]`)

// ExtractTable picks the keyword-matching table with the most body rows
// (first one wins a tie) and parses it. Returns nil when nothing qualifies.
func ExtractTable(doc *goquery.Document) *models.FallbackTable {
	var best *goquery.Selection
	bestRows := 0

	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		if !matchesTableKeyword(strings.ToLower(FlatText(table))) {
			return
		}
		if rows := bodyRows(table).Length(); rows > bestRows {
			best = table
			bestRows = rows
		}
	})

	if best == nil {
		return nil
	}

	result := &models.FallbackTable{}
	bodyRows(best).Each(func(_ int, row *goquery.Selection) {
		var cells []string
		var lines []string
		row.ChildrenFiltered("td, th").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, InnerText(cell))
			lines = append(lines, Lines(cell)...)
		})
		if len(cells) == 0 {
			return
		}
		result.Rows = append(result.Rows, cells)
		if len(lines) == 0 {
			return
		}
		result.Entries = append(result.Entries, models.TableEntry{
			Key:   lines[0],
			Value: NormalizeMoreMarker(strings.Join(lines[1:], " ")),
		})
	})

	if len(result.Rows) == 0 {
		return nil
	}
	return result
}

// NormalizeMoreMarker rewrites "[+N]" overflow markers as "(+N)"
func NormalizeMoreMarker(s string) string {
	return moreMarkerRe.ReplaceAllString(s, "(+$1)")
}

func matchesTableKeyword(text string) bool {
	for _, re := range tableKeywords {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// bodyRows returns the rows of the table's own body sections, skipping nested tables
func bodyRows(table *goquery.Selection) *goquery.Selection {
	return table.ChildrenFiltered("tbody").ChildrenFiltered("tr")
}

package extraction

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/pharmascout/internal/models"
)

const chipSelector = `[class*="chip"], [class*="Chip"], [class*="tag-item"], [class*="tagItem"], [class*="_tag_"], [class~="tag"], [class~="ant-tag"], [class~="badge"]`

// maxChipLength rejects containers that match chipSelector but hold whole paragraphs
const maxChipLength = 60

var tagHeadingRe = regexp.MustCompile(`(?i)\btags?\b`)

// ExtractTags collects chip labels from the section headed "Tags", or from the
// whole document when no such section exists. Labels are de-duplicated
// case-insensitively, keeping the first spelling and document order.
func ExtractTags(doc *goquery.Document) *models.Extraction {
	var chips *goquery.Selection

	if heading := findHeading(doc, tagHeadingRe); heading != nil {
		if block := enclosingBlock(heading, 6, func(s *goquery.Selection) bool {
			return leafChips(s).Length() > 0
		}); block != nil {
			chips = leafChips(block)
		}
	}
	if chips == nil || chips.Length() == 0 {
		chips = leafChips(doc.Selection)
	}

	seen := make(map[string]bool)
	var tags []string
	chips.Each(func(_ int, chip *goquery.Selection) {
		label := FlatText(chip)
		if label == "" || len(label) > maxChipLength {
			return
		}
		key := strings.ToLower(label)
		if seen[key] {
			return
		}
		seen[key] = true
		tags = append(tags, label)
	})

	if len(tags) == 0 {
		return nil
	}
	return &models.Extraction{Tags: tags, TagSummary: models.TagSummaryFor(tags)}
}

// leafChips returns visible chip elements that do not contain other chips
func leafChips(scope *goquery.Selection) *goquery.Selection {
	return scope.Find(chipSelector).FilterFunction(func(_ int, s *goquery.Selection) bool {
		if IsHidden(s) {
			return false
		}
		return s.Find(chipSelector).Length() == 0
	})
}

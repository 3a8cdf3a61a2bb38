package extraction

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/pharmascout/internal/models"
)

const (
	phaseItemSelector  = `[class*="phaseItem"], [class*="phase-item"]`
	phaseNameSelector  = `[class*="phaseName"], [class*="phase-name"]`
	phaseCountSelector = `[class*="phaseCount"], [class*="phase-count"]`
)

// PhaseVocabulary is the fixed list of development phases recognised by the text scan
var PhaseVocabulary = []string{
	"Discovery",
	"Preclinical",
	"IND Application",
	"IND Approval",
	"Phase 1",
	"Phase 1/2",
	"Phase 2",
	"Phase 2/3",
	"Phase 3",
	"NDA/BLA",
	"Approved",
	"Other",
}

type phasePattern struct {
	label string
	re    *regexp.Regexp
}

var phasePatterns = buildPhasePatterns(PhaseVocabulary)

// buildPhasePatterns matches "<label> <int>" where the integer is separated by
// a colon, dash or whitespace, so "Phase 1" never matches "Phase 1/2" or "Phase 12".
func buildPhasePatterns(labels []string) []phasePattern {
	patterns := make([]phasePattern, 0, len(labels))
	for _, label := range labels {
		quoted := strings.ReplaceAll(regexp.QuoteMeta(label), " ", `\s*`)
		re := regexp.MustCompile(`(?i)(?:^|[^\w/])` + quoted + `(?:\s*[:：\-–]\s*|\s+)(\d[\d,]*)\b`)
		patterns = append(patterns, phasePattern{label: label, re: re})
	}
	return patterns
}

// ExtractPhases builds the phase snapshot. Phase-item groups are read first;
// the text scan then only fills labels the structural pass did not find.
// Tables are left out of the text scan; they belong to ExtractTable.
func ExtractPhases(doc *goquery.Document) *models.Extraction {
	var phases models.PhaseSnapshot

	doc.Find(phaseItemSelector).Each(func(_ int, item *goquery.Selection) {
		name := FlatText(item.Find(phaseNameSelector).First())
		if name == "" {
			return
		}
		count, ok := FirstInt(FlatText(item.Find(phaseCountSelector).First()))
		if !ok {
			return
		}
		phases.Add(name, count)
	})

	text := InnerText(withoutTables(doc.Find("body")))
	for _, p := range phasePatterns {
		if phases.Has(p.label) {
			continue
		}
		match := p.re.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		if count, ok := FirstInt(match[1]); ok {
			phases.Add(p.label, count)
		}
	}

	if len(phases) == 0 {
		return nil
	}
	return &models.Extraction{Phases: phases}
}

// withoutTables returns a detached copy of s with every table subtree removed
func withoutTables(s *goquery.Selection) *goquery.Selection {
	clone := s.Clone()
	clone.Find("table").Remove()
	return clone
}

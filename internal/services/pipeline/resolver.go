package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pharmascout/internal/interfaces"
	"github.com/ternarybob/pharmascout/internal/models"
	"github.com/ternarybob/pharmascout/internal/services/extraction"
	"golang.org/x/net/html"
)

const clickableSelector = `a, [role="link"], button`

var cssIdentRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

// Resolution is the element chosen for activation together with the diagnostics gathered on the way
type Resolution struct {
	Target     interfaces.Selector
	Found      bool
	Strategy   string // exact, selector, first_candidate
	Candidates []models.Candidate
}

// Hints returns the candidate texts for a failure record
func (r Resolution) Hints() []string {
	hints := make([]string, 0, len(r.Candidates))
	for _, c := range r.Candidates {
		hints = append(hints, c.Text)
	}
	return hints
}

// TargetResolver picks the results-view element that leads to the entity's detail view
type TargetResolver struct {
	settings Settings
	logger   arbor.ILogger
}

func NewTargetResolver(settings Settings, logger arbor.ILogger) *TargetResolver {
	return &TargetResolver{settings: settings, logger: logger}
}

// Resolve waits for the results to render, then applies, in order: exact
// text match, the selector poll, and the first gathered candidate.
func (r *TargetResolver) Resolve(ctx context.Context, page interfaces.Page, entity string) Resolution {
	pollSelectors := resolverSelectors(entity)
	waitFor := append([]interfaces.Selector{}, pollSelectors...)

	res := Resolution{}

	waitCtx, cancel := context.WithTimeout(ctx, r.settings.ResultsTimeout)
	for {
		res.Candidates = r.gather(waitCtx, page, entity)
		if len(res.Candidates) > 0 {
			break
		}
		if _, ok := FirstVisible(waitCtx, page, waitFor); ok {
			break
		}
		if !sleep(waitCtx, r.settings.PollInterval) {
			break
		}
	}
	cancel()

	// Lazy result lists only render after a scroll
	if len(res.Candidates) == 0 {
		if err := page.Scroll(ctx, 1000); err != nil {
			r.logger.Debug().Err(err).Msg("Results scroll failed")
		}
		sleep(ctx, r.settings.PollInterval)
		res.Candidates = r.gather(ctx, page, entity)
	}

	for _, c := range res.Candidates {
		if !strings.EqualFold(strings.TrimSpace(c.Text), strings.TrimSpace(entity)) {
			continue
		}
		if !r.visible(ctx, page, c) {
			continue
		}
		res.Target = interfaces.CSS(c.Path)
		res.Found = true
		res.Strategy = "exact"
		return res
	}

	if sel, err := WaitAny(ctx, page, pollSelectors, r.settings.ResultsRetryTimeout, r.settings.PollInterval); err == nil {
		res.Target = sel
		res.Found = true
		res.Strategy = "selector"
		return res
	}

	for _, c := range res.Candidates {
		if !r.visible(ctx, page, c) {
			continue
		}
		res.Target = interfaces.CSS(c.Path)
		res.Found = true
		res.Strategy = "first_candidate"
		return res
	}

	return res
}

// visible asks the live page, since the snapshot cannot see stylesheet-hidden nodes
func (r *TargetResolver) visible(ctx context.Context, page interfaces.Page, c models.Candidate) bool {
	ok, err := page.Visible(ctx, interfaces.CSS(c.Path))
	if err != nil {
		r.logger.Debug().Str("selector", c.Path).Err(err).Msg("Candidate visibility check failed")
		return false
	}
	if !ok {
		r.logger.Debug().Str("selector", c.Path).Msg("Skipping candidate that is not rendered")
	}
	return ok
}

// gather snapshots the page and returns visible clickable elements mentioning the entity
func (r *TargetResolver) gather(ctx context.Context, page interfaces.Page, entity string) []models.Candidate {
	content, err := page.HTML(ctx)
	if err != nil {
		r.logger.Debug().Err(err).Msg("Results snapshot failed")
		return nil
	}
	doc, err := extraction.NewDocument(content)
	if err != nil {
		return nil
	}
	return GatherCandidates(doc, entity)
}

// GatherCandidates returns clickable elements whose text contains entity, case-insensitively
func GatherCandidates(doc *goquery.Document, entity string) []models.Candidate {
	needle := strings.ToLower(strings.TrimSpace(entity))
	if needle == "" {
		return nil
	}

	var candidates []models.Candidate
	seen := make(map[string]bool)
	doc.Find(clickableSelector).Each(func(_ int, s *goquery.Selection) {
		if extraction.IsHidden(s) {
			return
		}
		// Only the innermost clickable element is activated
		if s.Find(clickableSelector).Length() > 0 {
			return
		}
		text := extraction.FlatText(s)
		if !strings.Contains(strings.ToLower(text), needle) {
			return
		}
		path := CSSPath(s)
		if seen[path] {
			return
		}
		seen[path] = true
		href, _ := s.Attr("href")
		candidates = append(candidates, models.Candidate{Text: text, Href: href, Path: path})
	})
	return candidates
}

// CSSPath builds a structural selector for the first element of s
func CSSPath(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	var parts []string
	for n := s.Nodes[0]; n != nil && n.Type == html.ElementNode; n = n.Parent {
		if id := attrValue(n, "id"); id != "" && cssIdentRe.MatchString(id) {
			parts = append(parts, "#"+id)
			break
		}
		if n.Data == "html" {
			parts = append(parts, "html")
			break
		}
		index := 1
		for sib := n.PrevSibling; sib != nil; sib = sib.PrevSibling {
			if sib.Type == html.ElementNode {
				index++
			}
		}
		parts = append(parts, fmt.Sprintf("%s:nth-child(%d)", n.Data, index))
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " > ")
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// resolverSelectors lists the polled selectors: exact text, first word,
// the "View Detail" affordance, then a generic main-content anchor.
func resolverSelectors(entity string) []interfaces.Selector {
	name := strings.TrimSpace(entity)
	selectors := []interfaces.Selector{
		interfaces.XPath(fmt.Sprintf(`//a[normalize-space(.)=%s] | //*[@role="link"][normalize-space(.)=%s]`, xpathLiteral(name), xpathLiteral(name))),
	}
	if fields := strings.Fields(name); len(fields) > 1 {
		selectors = append(selectors, interfaces.XPath(fmt.Sprintf(`//a[contains(normalize-space(.), %s)]`, xpathLiteral(fields[0]))))
	}
	selectors = append(selectors,
		interfaces.XPath(`//a[contains(normalize-space(.), "View Detail")] | //button[contains(normalize-space(.), "View Detail")]`),
		interfaces.CSS(`main a[href*="/company"], main a[href*="/organization"]`),
	)
	return selectors
}

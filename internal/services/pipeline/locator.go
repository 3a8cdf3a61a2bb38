package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/pharmascout/internal/interfaces"
)

// ErrElementNotFound is returned when no candidate selector matched within the wait budget
var ErrElementNotFound = errors.New("no candidate element appeared")

// FirstVisible returns the first candidate whose first match is visible
func FirstVisible(ctx context.Context, page interfaces.Page, candidates []interfaces.Selector) (interfaces.Selector, bool) {
	for _, sel := range candidates {
		if ctx.Err() != nil {
			break
		}
		visible, err := page.Visible(ctx, sel)
		if err == nil && visible {
			return sel, true
		}
	}
	return interfaces.Selector{}, false
}

// WaitAny polls the candidates until one becomes visible or the timeout elapses
func WaitAny(ctx context.Context, page interfaces.Page, candidates []interfaces.Selector, timeout, poll time.Duration) (interfaces.Selector, error) {
	if poll <= 0 {
		poll = 250 * time.Millisecond
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		if sel, ok := FirstVisible(waitCtx, page, candidates); ok {
			return sel, nil
		}
		if !sleep(waitCtx, poll) {
			return interfaces.Selector{}, fmt.Errorf("%w after %s: %s", ErrElementNotFound, timeout, describe(candidates))
		}
	}
}

// WaitPresent polls until sel matches at least one element, rendered or not
func WaitPresent(ctx context.Context, page interfaces.Page, sel interfaces.Selector, timeout, poll time.Duration) bool {
	if poll <= 0 {
		poll = 250 * time.Millisecond
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		if n, err := page.Count(waitCtx, sel); err == nil && n > 0 {
			return true
		}
		if !sleep(waitCtx, poll) {
			return false
		}
	}
}

// waitURLChange polls the page URL until it differs from before
func waitURLChange(ctx context.Context, page interfaces.Page, before string, timeout, poll time.Duration) (string, bool) {
	if poll <= 0 {
		poll = 250 * time.Millisecond
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		if current, err := page.URL(waitCtx); err == nil && current != "" && current != before {
			return current, true
		}
		if !sleep(waitCtx, poll) {
			return "", false
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func describe(selectors []interfaces.Selector) string {
	parts := make([]string, 0, len(selectors))
	for _, s := range selectors {
		parts = append(parts, s.String())
	}
	return strings.Join(parts, " | ")
}

// xpathLiteral quotes s for use inside an XPath expression
func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, `'`) {
		return `'` + s + `'`
	}
	parts := strings.Split(s, `"`)
	quoted := make([]string, 0, len(parts)*2)
	for i, part := range parts {
		if i > 0 {
			quoted = append(quoted, `'"'`)
		}
		quoted = append(quoted, `"`+part+`"`)
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}

// lowerXPath lowercases the ASCII letters of an XPath string expression
func lowerXPath(expr string) string {
	return fmt.Sprintf(`translate(%s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ", "abcdefghijklmnopqrstuvwxyz")`, expr)
}

package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pharmascout/internal/interfaces"
)

func resultsPage(content string) *fakePage {
	page := newFakePage(nil)
	page.load(resultsURL, content)
	return page
}

func pathOf(t *testing.T, page *fakePage, css string) interfaces.Selector {
	t.Helper()
	el := page.doc().Find(css)
	require.Equal(t, 1, el.Length(), css)
	return interfaces.CSS(CSSPath(el))
}

func TestTargetResolver_ExactSkipsStyleHiddenDuplicate(t *testing.T) {
	page := resultsPage(`<html><body><main><ul>
<li><a class="mobile-only" href="/company/acme-m">Acme Bio</a></li>
<li><a href="/company/acme">Acme Bio</a></li>
</ul></main></body></html>`)
	page.styleHidden = ".mobile-only"

	res := NewTargetResolver(testSettings(), arbor.NewLogger()).Resolve(context.Background(), page, "Acme Bio")

	require.True(t, res.Found)
	assert.Equal(t, "exact", res.Strategy)
	assert.Len(t, res.Candidates, 2)
	assert.Equal(t, pathOf(t, page, `a[href="/company/acme"]`), res.Target)
}

func TestTargetResolver_SelectorPollMainAnchor(t *testing.T) {
	page := resultsPage(`<html><body><main><a href="/company/acme">Open profile</a></main></body></html>`)

	res := NewTargetResolver(testSettings(), arbor.NewLogger()).Resolve(context.Background(), page, "Acme Bio")

	require.True(t, res.Found)
	assert.Equal(t, "selector", res.Strategy)
	assert.Empty(t, res.Candidates)
	assert.Equal(t, resolverSelectors("Acme Bio")[3], res.Target)
}

func TestTargetResolver_SelectorPollViewDetail(t *testing.T) {
	page := resultsPage(`<html><body><div><button>View Detail</button></div></body></html>`)
	viewDetail := resolverSelectors("Acme Bio")[2]
	page.xpath[viewDetail.Query] = true

	res := NewTargetResolver(testSettings(), arbor.NewLogger()).Resolve(context.Background(), page, "Acme Bio")

	require.True(t, res.Found)
	assert.Equal(t, "selector", res.Strategy)
	assert.Equal(t, viewDetail, res.Target)
}

func TestTargetResolver_FirstVisibleCandidate(t *testing.T) {
	page := resultsPage(`<html><body><div>
<a class="dup" href="/org/acme-group">Acme Bio Group</a>
<a href="/org/acme-holdings">Acme Bio Holdings</a>
</div></body></html>`)
	page.styleHidden = ".dup"

	res := NewTargetResolver(testSettings(), arbor.NewLogger()).Resolve(context.Background(), page, "Acme Bio")

	require.True(t, res.Found)
	assert.Equal(t, "first_candidate", res.Strategy)
	assert.Equal(t, pathOf(t, page, `a[href="/org/acme-holdings"]`), res.Target)
	assert.Equal(t, []string{"Acme Bio Group", "Acme Bio Holdings"}, res.Hints())
}

func TestTargetResolver_NothingFound(t *testing.T) {
	page := resultsPage(`<html><body><p>No results</p></body></html>`)

	res := NewTargetResolver(testSettings(), arbor.NewLogger()).Resolve(context.Background(), page, "Acme Bio")

	assert.False(t, res.Found)
	assert.Empty(t, res.Strategy)
	assert.NotNil(t, res.Hints())
	assert.Empty(t, res.Hints())
	assert.Equal(t, int32(1), page.scrolls.Load())
}

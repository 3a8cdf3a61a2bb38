package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/pharmascout/internal/interfaces"
	"github.com/ternarybob/pharmascout/internal/services/extraction"
)

// fakePage is an in-memory page: CSS selectors are evaluated against the
// current HTML with goquery, XPath visibility is scripted. Elements matching
// styleHidden stand in for nodes a stylesheet hides.
type fakePage struct {
	mu          sync.Mutex
	url         string
	content     string
	routes      map[string]string
	xpath       map[string]bool
	styleHidden string
	navigations []string
	clicks      []string
	fills       map[string]string
	closed      bool

	onClick  func(p *fakePage, el *goquery.Selection)
	onPress  func(p *fakePage, key string)
	onSubmit func(p *fakePage)

	popups      chan interfaces.Page
	screenshots atomic.Int32
	scrolls     atomic.Int32
}

func newFakePage(routes map[string]string) *fakePage {
	return &fakePage{
		url:    "about:blank",
		routes: routes,
		xpath:  map[string]bool{},
		fills:  map[string]string{},
		popups: make(chan interfaces.Page, 1),
	}
}

// load replaces the document as a navigation would
func (p *fakePage) load(url, content string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
	p.content = content
}

func (p *fakePage) doc() *goquery.Document {
	p.mu.Lock()
	content := p.content
	p.mu.Unlock()
	doc, _ := extraction.NewDocument(content)
	return doc
}

func (p *fakePage) find(sel interfaces.Selector) *goquery.Selection {
	if sel.Kind == interfaces.SelectorXPath {
		return nil
	}
	return p.doc().Find(sel.Query).First()
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	p.navigations = append(p.navigations, url)
	content, ok := p.routes[url]
	p.mu.Unlock()
	if !ok {
		content = "<html><body></body></html>"
	}
	p.load(url, content)
	return nil
}

func (p *fakePage) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

func (p *fakePage) Count(ctx context.Context, sel interfaces.Selector) (int, error) {
	if sel.Kind == interfaces.SelectorXPath {
		if p.xpathVisible(sel.Query) {
			return 1, nil
		}
		return 0, nil
	}
	return p.doc().Find(sel.Query).Length(), nil
}

func (p *fakePage) xpathVisible(query string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.xpath[query]
}

func (p *fakePage) Visible(ctx context.Context, sel interfaces.Selector) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if sel.Kind == interfaces.SelectorXPath {
		return p.xpathVisible(sel.Query), nil
	}
	el := p.find(sel)
	return el.Length() > 0 && p.rendered(el), nil
}

func (p *fakePage) rendered(el *goquery.Selection) bool {
	if extraction.IsHidden(el) {
		return false
	}
	return p.styleHidden == "" || !el.Is(p.styleHidden)
}

func (p *fakePage) Click(ctx context.Context, sel interfaces.Selector) error {
	var el *goquery.Selection
	if sel.Kind == interfaces.SelectorXPath {
		if !p.xpathVisible(sel.Query) {
			return errors.New("element not found")
		}
	} else {
		el = p.find(sel)
		if el.Length() == 0 {
			return errors.New("element not found")
		}
		if !p.rendered(el) {
			<-ctx.Done()
			return ctx.Err()
		}
	}

	p.mu.Lock()
	p.clicks = append(p.clicks, sel.Query)
	hook := p.onClick
	p.mu.Unlock()

	if hook != nil {
		hook(p, el)
	}
	return nil
}

func (p *fakePage) Fill(ctx context.Context, sel interfaces.Selector, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fills[sel.Query] = value
	return nil
}

func (p *fakePage) Press(ctx context.Context, sel interfaces.Selector, key string) error {
	if p.onPress != nil {
		p.onPress(p, key)
	}
	return nil
}

func (p *fakePage) Submit(ctx context.Context, sel interfaces.Selector) error {
	if p.onSubmit != nil {
		p.onSubmit(p)
	}
	return nil
}

func (p *fakePage) Scroll(ctx context.Context, dy int) error {
	p.scrolls.Add(1)
	return nil
}

func (p *fakePage) HTML(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.content, nil
}

func (p *fakePage) Screenshot(ctx context.Context) ([]byte, error) {
	p.screenshots.Add(1)
	return []byte("\x89PNG"), nil
}

func (p *fakePage) WatchPopup(ctx context.Context) interfaces.PopupWatcher {
	return &fakeWatcher{ch: p.popups}
}

func (p *fakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePage) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *fakePage) navigated() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string{}, p.navigations...)
}

type fakeWatcher struct {
	ch <-chan interfaces.Page
}

func (w *fakeWatcher) Wait(ctx context.Context) (interfaces.Page, error) {
	select {
	case p := <-w.ch:
		return p, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (w *fakeWatcher) Stop() {}

// memoryArtifacts records saved screenshots
type memoryArtifacts struct {
	mu    sync.Mutex
	saved map[string]int
}

func newMemoryArtifacts() *memoryArtifacts {
	return &memoryArtifacts{saved: map[string]int{}}
}

func (m *memoryArtifacts) SaveScreenshot(ctx context.Context, entity string, png []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[entity]++
	return "/tmp/" + entity + ".png", nil
}

func (m *memoryArtifacts) count(entity string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved[entity]
}

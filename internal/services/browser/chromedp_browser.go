package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pharmascout/internal/common"
	"github.com/ternarybob/pharmascout/internal/interfaces"
)

const startupTimeout = 30 * time.Second

// ChromeLauncher starts a local Chrome through the DevTools protocol
type ChromeLauncher struct {
	config common.BrowserConfig
	logger arbor.ILogger
}

func NewChromeLauncher(config common.BrowserConfig, logger arbor.ILogger) *ChromeLauncher {
	return &ChromeLauncher{config: config, logger: logger}
}

// Launch starts one browser process. Sessions opened from it are isolated browser contexts.
func (l *ChromeLauncher) Launch(ctx context.Context, opts interfaces.LaunchOptions) (interfaces.Browser, error) {
	startTime := time.Now()

	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.config.Headless),
		chromedp.Flag("disable-gpu", l.config.DisableGPU),
		chromedp.Flag("no-sandbox", l.config.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-timer-throttling", false),
		chromedp.Flag("disable-renderer-backgrounding", false),
	)
	if l.config.UserAgent != "" {
		allocatorOpts = append(allocatorOpts, chromedp.UserAgent(l.config.UserAgent))
	}
	if l.config.WindowWidth > 0 && l.config.WindowHeight > 0 {
		allocatorOpts = append(allocatorOpts, chromedp.WindowSize(l.config.WindowWidth, l.config.WindowHeight))
	}
	if opts.ProxyURL != "" {
		allocatorOpts = append(allocatorOpts, chromedp.ProxyServer(opts.ProxyURL))
	}

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), allocatorOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	// The first Run allocates the process, so it must not carry a deadline
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocatorCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	testCtx, testCancel := context.WithTimeout(browserCtx, startupTimeout)
	defer testCancel()
	stop := context.AfterFunc(ctx, testCancel)
	defer stop()

	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocatorCancel()
		return nil, fmt.Errorf("browser failed startup test: %w", err)
	}

	l.logger.Info().
		Bool("headless", l.config.Headless).
		Bool("proxy", opts.ProxyURL != "").
		Dur("startup_time", time.Since(startTime)).
		Msg("Chrome browser started")

	return &chromeBrowser{
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		allocatorCancel: allocatorCancel,
		filter:          NewRequestFilter(l.config.BlockResourceTypes, l.config.BlockHosts),
		logger:          l.logger,
	}, nil
}

type chromeBrowser struct {
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	allocatorCancel context.CancelFunc
	filter          *RequestFilter
	logger          arbor.ILogger
	closeOnce       sync.Once
}

// NewPage opens a tab in a fresh browser context so cookies and storage are not shared
func (b *chromeBrowser) NewPage(ctx context.Context) (interfaces.Page, error) {
	if err := b.browserCtx.Err(); err != nil {
		return nil, fmt.Errorf("browser closed: %w", err)
	}

	tabCtx, tabCancel := chromedp.NewContext(b.browserCtx, chromedp.WithNewBrowserContext())
	p := &chromePage{ctx: tabCtx, cancel: tabCancel, filter: b.filter, logger: b.logger}

	if err := p.attach(ctx); err != nil {
		tabCancel()
		return nil, err
	}
	return p, nil
}

func (b *chromeBrowser) Close() error {
	b.closeOnce.Do(func() {
		b.browserCancel()
		b.allocatorCancel()
		b.logger.Debug().Msg("Chrome browser closed")
	})
	return nil
}

type chromePage struct {
	ctx    context.Context
	cancel context.CancelFunc
	filter *RequestFilter
	logger arbor.ILogger
}

// attach creates the target and installs request interception and console capture
func (p *chromePage) attach(ctx context.Context) error {
	tabCtx := p.ctx
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		switch e := ev.(type) {
		case *fetch.EventRequestPaused:
			go p.handlePaused(tabCtx, e)
		case *runtime.EventConsoleAPICalled:
			args := make([]string, 0, len(e.Args))
			for _, arg := range e.Args {
				args = append(args, strings.Trim(string(arg.Value), `"`))
			}
			p.logger.Trace().Str("type", string(e.Type)).Str("message", strings.Join(args, " ")).Msg("Browser console")
		}
	})

	var actions []chromedp.Action
	if !p.filter.Empty() {
		actions = append(actions, fetch.Enable())
	}
	if err := p.run(ctx, actions...); err != nil {
		return fmt.Errorf("failed to open page: %w", err)
	}
	return nil
}

func (p *chromePage) handlePaused(tabCtx context.Context, e *fetch.EventRequestPaused) {
	c := chromedp.FromContext(tabCtx)
	if c == nil || c.Target == nil {
		return
	}
	execCtx := cdp.WithExecutor(tabCtx, c.Target)

	var err error
	if p.filter.Blocked(string(e.ResourceType), e.Request.URL) {
		err = fetch.FailRequest(e.RequestID, network.ErrorReasonBlockedByClient).Do(execCtx)
	} else {
		err = fetch.ContinueRequest(e.RequestID).Do(execCtx)
	}
	if err != nil && tabCtx.Err() == nil {
		p.logger.Trace().Str("url", e.Request.URL).Err(err).Msg("Request interception failed")
	}
}

// run executes actions on the tab, bounded by the caller's ctx as well as the tab's lifetime
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if deadline, ok := ctx.Deadline(); ok {
		var dlCancel context.CancelFunc
		runCtx, dlCancel = context.WithDeadline(runCtx, deadline)
		defer dlCancel()
	}

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

func queryOption(sel interfaces.Selector) chromedp.QueryOption {
	if sel.Kind == interfaces.SelectorXPath {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

// jsFind resolves the first element of a selector inside page scripts
const jsFind = `function(q, isXPath) {
  if (isXPath) {
    return document.evaluate(q, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
  }
  return document.querySelector(q);
}`

const jsCount = `(function(q, isXPath) {
  if (isXPath) {
    return document.evaluate(q, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null).snapshotLength;
  }
  return document.querySelectorAll(q).length;
})(%s, %t)`

const jsVisible = `(function(q, isXPath) {
  var el = (` + jsFind + `)(q, isXPath);
  if (!el) return false;
  var style = window.getComputedStyle(el);
  if (style.display === 'none' || style.visibility === 'hidden') return false;
  var rect = el.getBoundingClientRect();
  return rect.width > 0 && rect.height > 0;
})(%s, %t)`

func selectorScript(format string, sel interfaces.Selector) string {
	quoted, _ := json.Marshal(sel.Query)
	return fmt.Sprintf(format, quoted, sel.Kind == interfaces.SelectorXPath)
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, chromedp.Navigate(url))
}

func (p *chromePage) URL(ctx context.Context) (string, error) {
	var location string
	err := p.run(ctx, chromedp.Location(&location))
	return location, err
}

func (p *chromePage) Count(ctx context.Context, sel interfaces.Selector) (int, error) {
	var n int
	err := p.run(ctx, chromedp.Evaluate(selectorScript(jsCount, sel), &n))
	return n, err
}

func (p *chromePage) Visible(ctx context.Context, sel interfaces.Selector) (bool, error) {
	var visible bool
	err := p.run(ctx, chromedp.Evaluate(selectorScript(jsVisible, sel), &visible))
	return visible, err
}

func (p *chromePage) Click(ctx context.Context, sel interfaces.Selector) error {
	return p.run(ctx, chromedp.Click(sel.Query, queryOption(sel), chromedp.NodeVisible))
}

func (p *chromePage) Fill(ctx context.Context, sel interfaces.Selector, value string) error {
	opt := queryOption(sel)
	return p.run(ctx,
		chromedp.Focus(sel.Query, opt),
		chromedp.SetValue(sel.Query, "", opt),
		chromedp.SendKeys(sel.Query, value, opt),
	)
}

var namedKeys = map[string]string{
	"Enter":     kb.Enter,
	"Escape":    kb.Escape,
	"Tab":       kb.Tab,
	"ArrowDown": kb.ArrowDown,
}

func (p *chromePage) Press(ctx context.Context, sel interfaces.Selector, key string) error {
	if named, ok := namedKeys[key]; ok {
		key = named
	}
	return p.run(ctx, chromedp.SendKeys(sel.Query, key, queryOption(sel)))
}

func (p *chromePage) Submit(ctx context.Context, sel interfaces.Selector) error {
	return p.run(ctx, chromedp.Submit(sel.Query, queryOption(sel)))
}

func (p *chromePage) Scroll(ctx context.Context, dy int) error {
	script := "window.scrollBy(0, window.innerHeight)"
	if dy > 0 {
		script = fmt.Sprintf("window.scrollBy(0, %d)", dy)
	}
	return p.run(ctx, chromedp.Evaluate(script, nil))
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var content string
	err := p.run(ctx, chromedp.OuterHTML("html", &content, chromedp.ByQuery))
	return content, err
}

func (p *chromePage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	// quality 100 keeps the capture in PNG format
	err := p.run(ctx, chromedp.FullScreenshot(&buf, 100))
	return buf, err
}

func (p *chromePage) WatchPopup(ctx context.Context) interfaces.PopupWatcher {
	watchCtx, cancel := context.WithCancel(p.ctx)
	w := &chromePopupWatcher{parent: p, cancel: cancel}

	c := chromedp.FromContext(p.ctx)
	if c == nil || c.Target == nil {
		return w
	}
	openerID := c.Target.TargetID
	w.ch = chromedp.WaitNewTarget(watchCtx, func(info *target.Info) bool {
		return info.OpenerID == openerID
	})
	return w
}

func (p *chromePage) Close() error {
	p.cancel()
	return nil
}

type chromePopupWatcher struct {
	parent *chromePage
	ch     <-chan target.ID
	cancel context.CancelFunc
}

func (w *chromePopupWatcher) Wait(ctx context.Context) (interfaces.Page, error) {
	if w.ch == nil {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	select {
	case id, ok := <-w.ch:
		if !ok {
			return nil, fmt.Errorf("popup watcher closed")
		}
		popupCtx, popupCancel := chromedp.NewContext(w.parent.ctx, chromedp.WithTargetID(id))
		popup := &chromePage{ctx: popupCtx, cancel: popupCancel, filter: w.parent.filter, logger: w.parent.logger}
		if err := popup.attach(ctx); err != nil {
			popupCancel()
			return nil, err
		}
		return popup, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (w *chromePopupWatcher) Stop() {
	w.cancel()
}

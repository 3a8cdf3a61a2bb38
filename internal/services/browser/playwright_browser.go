package browser

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pharmascout/internal/common"
	"github.com/ternarybob/pharmascout/internal/interfaces"
)

// defaultActionTimeout bounds playwright calls made with a context that carries no deadline
const defaultActionTimeout = 30 * time.Second

// PlaywrightLauncher starts Chromium through the playwright driver
type PlaywrightLauncher struct {
	config common.BrowserConfig
	logger arbor.ILogger
}

func NewPlaywrightLauncher(config common.BrowserConfig, logger arbor.ILogger) *PlaywrightLauncher {
	return &PlaywrightLauncher{config: config, logger: logger}
}

func (l *PlaywrightLauncher) Launch(ctx context.Context, opts interfaces.LaunchOptions) (interfaces.Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	startTime := time.Now()

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	args := []string{"--disable-dev-shm-usage"}
	if l.config.NoSandbox {
		args = append(args, "--no-sandbox")
	}
	if l.config.DisableGPU {
		args = append(args, "--disable-gpu")
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(l.config.Headless),
		Args:     args,
	}
	if opts.ProxyURL != "" {
		launchOpts.Proxy = &playwright.Proxy{Server: opts.ProxyURL}
	}

	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		if stopErr := pw.Stop(); stopErr != nil {
			l.logger.Warn().Err(stopErr).Msg("Failed to stop playwright")
		}
		return nil, fmt.Errorf("failed to launch chromium: %w", err)
	}

	l.logger.Info().
		Bool("headless", l.config.Headless).
		Bool("proxy", opts.ProxyURL != "").
		Str("version", browser.Version()).
		Dur("startup_time", time.Since(startTime)).
		Msg("Playwright browser started")

	return &playwrightBrowser{
		pw:      pw,
		browser: browser,
		config:  l.config,
		filter:  NewRequestFilter(l.config.BlockResourceTypes, l.config.BlockHosts),
		logger:  l.logger,
	}, nil
}

type playwrightBrowser struct {
	pw        *playwright.Playwright
	browser   playwright.Browser
	config    common.BrowserConfig
	filter    *RequestFilter
	logger    arbor.ILogger
	closeOnce sync.Once
}

// NewPage opens a page in its own browser context; request blocking is installed on
// the context so popups opened from the page are filtered too
func (b *playwrightBrowser) NewPage(ctx context.Context) (interfaces.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	contextOpts := playwright.BrowserNewContextOptions{}
	if b.config.UserAgent != "" {
		contextOpts.UserAgent = playwright.String(b.config.UserAgent)
	}
	if b.config.WindowWidth > 0 && b.config.WindowHeight > 0 {
		contextOpts.Viewport = &playwright.Size{Width: b.config.WindowWidth, Height: b.config.WindowHeight}
	}

	bctx, err := b.browser.NewContext(contextOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	if !b.filter.Empty() {
		filter := b.filter
		if err := bctx.Route("**/*", func(route playwright.Route) {
			req := route.Request()
			if filter.Blocked(req.ResourceType(), req.URL()) {
				_ = route.Abort("blockedbyclient")
				return
			}
			_ = route.Continue()
		}); err != nil {
			_ = bctx.Close()
			return nil, fmt.Errorf("failed to install request filter: %w", err)
		}
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	return newPlaywrightPage(page, bctx, b.logger), nil
}

func (b *playwrightBrowser) Close() error {
	var closeErr error
	b.closeOnce.Do(func() {
		if err := b.browser.Close(); err != nil {
			closeErr = fmt.Errorf("failed to close browser: %w", err)
		}
		if err := b.pw.Stop(); err != nil && closeErr == nil {
			closeErr = fmt.Errorf("failed to stop playwright: %w", err)
		}
		b.logger.Debug().Msg("Playwright browser closed")
	})
	return closeErr
}

type playwrightPage struct {
	page   playwright.Page
	owner  playwright.BrowserContext // nil for popups, which close only themselves
	logger arbor.ILogger
}

func newPlaywrightPage(page playwright.Page, owner playwright.BrowserContext, logger arbor.ILogger) *playwrightPage {
	page.OnConsole(func(msg playwright.ConsoleMessage) {
		logger.Trace().Str("type", msg.Type()).Str("message", msg.Text()).Msg("Browser console")
	})
	return &playwrightPage{page: page, owner: owner, logger: logger}
}

// timeoutMs converts the ctx deadline into a playwright timeout in milliseconds
func timeoutMs(ctx context.Context) *float64 {
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining < time.Millisecond {
			remaining = time.Millisecond
		}
		return playwright.Float(float64(remaining.Milliseconds()))
	}
	return playwright.Float(float64(defaultActionTimeout.Milliseconds()))
}

func (p *playwrightPage) locator(sel interfaces.Selector) playwright.Locator {
	return p.page.Locator(sel.String()).First()
}

func (p *playwrightPage) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   timeoutMs(ctx),
	})
	return err
}

func (p *playwrightPage) URL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.page.URL(), nil
}

func (p *playwrightPage) Count(ctx context.Context, sel interfaces.Selector) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return p.page.Locator(sel.String()).Count()
}

func (p *playwrightPage) Visible(ctx context.Context, sel interfaces.Selector) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return p.locator(sel).IsVisible()
}

func (p *playwrightPage) Click(ctx context.Context, sel interfaces.Selector) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.locator(sel).Click(playwright.LocatorClickOptions{Timeout: timeoutMs(ctx)})
}

func (p *playwrightPage) Fill(ctx context.Context, sel interfaces.Selector, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.locator(sel).Fill(value, playwright.LocatorFillOptions{Timeout: timeoutMs(ctx)})
}

func (p *playwrightPage) Press(ctx context.Context, sel interfaces.Selector, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.locator(sel).Press(key, playwright.LocatorPressOptions{Timeout: timeoutMs(ctx)})
}

const jsSubmitForm = `el => {
  const form = el.form || el.closest('form');
  if (!form) return false;
  if (form.requestSubmit) { form.requestSubmit(); } else { form.submit(); }
  return true;
}`

func (p *playwrightPage) Submit(ctx context.Context, sel interfaces.Selector) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	submitted, err := p.locator(sel).Evaluate(jsSubmitForm, nil, playwright.LocatorEvaluateOptions{Timeout: timeoutMs(ctx)})
	if err != nil {
		return err
	}
	if ok, _ := submitted.(bool); !ok {
		return fmt.Errorf("no form encloses %s", sel)
	}
	return nil
}

func (p *playwrightPage) Scroll(ctx context.Context, dy int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	delta := float64(dy)
	if dy <= 0 {
		delta = 800
		if size := p.page.ViewportSize(); size != nil && size.Height > 0 {
			delta = float64(size.Height)
		}
	}
	return p.page.Mouse().Wheel(0, delta)
}

func (p *playwrightPage) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.page.Content()
}

func (p *playwrightPage) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
		Type:     playwright.ScreenshotTypePng,
		Timeout:  timeoutMs(ctx),
	})
}

// WatchPopup registers the popup handler before the triggering action.
// Popups arriving after Stop are closed.
func (p *playwrightPage) WatchPopup(ctx context.Context) interfaces.PopupWatcher {
	w := &playwrightPopupWatcher{ch: make(chan playwright.Page, 1), logger: p.logger}
	p.page.OnPopup(func(popup playwright.Page) {
		if w.stopped.Load() {
			_ = popup.Close()
			return
		}
		select {
		case w.ch <- popup:
		default:
			_ = popup.Close()
		}
	})
	return w
}

func (p *playwrightPage) Close() error {
	if p.owner != nil {
		return p.owner.Close()
	}
	return p.page.Close()
}

type playwrightPopupWatcher struct {
	ch      chan playwright.Page
	stopped atomic.Bool
	logger  arbor.ILogger
}

func (w *playwrightPopupWatcher) Wait(ctx context.Context) (interfaces.Page, error) {
	select {
	case popup := <-w.ch:
		return newPlaywrightPage(popup, nil, w.logger), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (w *playwrightPopupWatcher) Stop() {
	w.stopped.Store(true)
}

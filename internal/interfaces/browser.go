package interfaces

import (
	"context"
	"fmt"
)

// SelectorKind distinguishes CSS from XPath selectors
type SelectorKind int

const (
	SelectorCSS SelectorKind = iota
	SelectorXPath
)

// Selector addresses elements of the live page
type Selector struct {
	Query string
	Kind  SelectorKind
}

// CSS returns a CSS selector
func CSS(query string) Selector {
	return Selector{Query: query, Kind: SelectorCSS}
}

// XPath returns an XPath selector
func XPath(query string) Selector {
	return Selector{Query: query, Kind: SelectorXPath}
}

func (s Selector) String() string {
	if s.Kind == SelectorXPath {
		return fmt.Sprintf("xpath=%s", s.Query)
	}
	return s.Query
}

// Page is one browsing context of a session. Element operations act on the
// first element matched by the selector. Every call is bounded by ctx.
type Page interface {
	// Navigate loads url and waits for the document to be ready
	Navigate(ctx context.Context, url string) error
	URL(ctx context.Context) (string, error)

	// Count reports how many elements match, rendered or not
	Count(ctx context.Context, sel Selector) (int, error)
	Visible(ctx context.Context, sel Selector) (bool, error)
	Click(ctx context.Context, sel Selector) error
	Fill(ctx context.Context, sel Selector, value string) error
	// Press sends a named key ("Enter") to the element
	Press(ctx context.Context, sel Selector, key string) error
	// Submit submits the form enclosing the element
	Submit(ctx context.Context, sel Selector) error

	// Scroll scrolls the viewport by dy pixels; dy <= 0 scrolls one viewport height
	Scroll(ctx context.Context, dy int) error
	// HTML returns a snapshot of the rendered document
	HTML(ctx context.Context) (string, error)
	// Screenshot captures a full-page PNG
	Screenshot(ctx context.Context) ([]byte, error)

	// WatchPopup arms a watcher for browsing contexts opened by this page.
	// It must be called before the action that may open the popup.
	WatchPopup(ctx context.Context) PopupWatcher

	Close() error
}

// PopupWatcher reports the first popup opened after it was armed
type PopupWatcher interface {
	// Wait blocks until a popup appears or ctx is done
	Wait(ctx context.Context) (Page, error)
	Stop()
}

// LaunchOptions are the per-batch settings of a browser instance
type LaunchOptions struct {
	ProxyURL string
}

// Browser hands out isolated sessions of a running browser
type Browser interface {
	// NewPage opens a page in a fresh, isolated browser context
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// BrowserLauncher starts browsers
type BrowserLauncher interface {
	Launch(ctx context.Context, opts LaunchOptions) (Browser, error)
}

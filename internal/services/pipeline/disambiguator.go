package pipeline

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pharmascout/internal/interfaces"
)

// ContextKind tells where the detail view opened
type ContextKind string

const (
	ContextPopup   ContextKind = "popup"
	ContextInPlace ContextKind = "in_place"
	ContextSame    ContextKind = "unchanged"
)

// Activation is the working page after the resolved element was clicked
type Activation struct {
	Page interfaces.Page
	Kind ContextKind
}

// ContextDisambiguator activates the target and decides whether the detail
// view opened in a new browsing context or replaced the current one.
type ContextDisambiguator struct {
	settings Settings
	logger   arbor.ILogger
}

func NewContextDisambiguator(settings Settings, logger arbor.ILogger) *ContextDisambiguator {
	return &ContextDisambiguator{settings: settings, logger: logger}
}

// Activate clicks target once. The popup watcher is armed before the click;
// the first of popup or in-place navigation to resolve wins and the decision is final.
func (d *ContextDisambiguator) Activate(ctx context.Context, page interfaces.Page, target interfaces.Selector) (Activation, error) {
	before, _ := page.URL(ctx)

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	watcher := page.WatchPopup(raceCtx)
	defer watcher.Stop()

	clickCtx, clickCancel := context.WithTimeout(ctx, d.settings.ClickTimeout)
	err := page.Click(clickCtx, target)
	clickCancel()
	if err != nil {
		return Activation{Page: page, Kind: ContextSame}, fmt.Errorf("activate %s: %w", target, err)
	}

	popupCh := make(chan interfaces.Page, 1)
	navCh := make(chan bool, 1)

	go func() {
		popupCtx, cancel := context.WithTimeout(raceCtx, d.settings.PopupTimeout)
		defer cancel()
		p, err := watcher.Wait(popupCtx)
		if err != nil {
			p = nil
		}
		popupCh <- p
	}()

	go func() {
		_, changed := waitURLChange(raceCtx, page, before, d.settings.NavigateWaitTimeout, d.settings.PollInterval)
		navCh <- changed
	}()

	popupDone, navDone := false, false
	for !popupDone || !navDone {
		select {
		case p := <-popupCh:
			popupDone = true
			if p != nil {
				d.awaitPopupLoad(ctx, p)
				d.logger.Debug().Msg("Detail view opened in a new browsing context")
				return Activation{Page: p, Kind: ContextPopup}, nil
			}
		case changed := <-navCh:
			navDone = true
			if changed {
				d.logger.Debug().Msg("Detail view opened in place")
				return Activation{Page: page, Kind: ContextInPlace}, nil
			}
		case <-ctx.Done():
			return Activation{Page: page, Kind: ContextSame}, ctx.Err()
		}
	}

	return Activation{Page: page, Kind: ContextSame}, nil
}

// awaitPopupLoad waits until the popup left about:blank
func (d *ContextDisambiguator) awaitPopupLoad(ctx context.Context, popup interfaces.Page) {
	if current, err := popup.URL(ctx); err == nil && current != "" && current != "about:blank" {
		return
	}
	waitURLChange(ctx, popup, "about:blank", d.settings.NavigationTimeout/3, d.settings.PollInterval)
}

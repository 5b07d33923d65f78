package headless

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

const (
	lifecycleInit = "init"
	lifecycleIdle = "networkAlmostIdle"
)

// idleWaiter turns page lifecycle events for the main frame into a one-shot
// signal. Each arm starts a new wait that only fires after a fresh "init"
// followed by "networkAlmostIdle".
type idleWaiter struct {
	mu        sync.Mutex
	mainFrame cdp.FrameID
	ch        chan struct{}
	sawInit   bool
	fired     bool
}

func newIdleWaiter() *idleWaiter {
	return &idleWaiter{}
}

func (w *idleWaiter) enable() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := page.SetLifecycleEventsEnabled(true).Do(ctx); err != nil {
			return err
		}
		tree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return err
		}
		if tree != nil && tree.Frame != nil {
			w.setMainFrame(tree.Frame.ID)
		}
		return nil
	})
}

func (w *idleWaiter) setMainFrame(id cdp.FrameID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.mainFrame = id
}

func (w *idleWaiter) arm() chromedp.Action {
	return chromedp.ActionFunc(func(context.Context) error {
		w.reset()
		return nil
	})
}

func (w *idleWaiter) reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ch = make(chan struct{})
	w.sawInit = false
	w.fired = false
}

func (w *idleWaiter) handle(ev any) {
	e, ok := ev.(*page.EventLifecycleEvent)
	if !ok {
		return
	}
	w.observe(e.FrameID, e.Name)
}

func (w *idleWaiter) observe(frame cdp.FrameID, name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ch == nil || w.fired {
		return
	}
	if w.mainFrame != "" && frame != w.mainFrame {
		return
	}
	switch name {
	case lifecycleInit:
		w.sawInit = true
	case lifecycleIdle:
		if w.sawInit {
			w.fired = true
			close(w.ch)
		}
	}
}

func (w *idleWaiter) wait() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		w.mu.Lock()
		ch := w.ch
		w.mu.Unlock()
		if ch == nil {
			return fmt.Errorf("wait for network idle: waiter not armed")
		}
		select {
		case <-ch:
			return nil
		case <-ctx.Done():
			return fmt.Errorf("wait for network idle: %w", ctx.Err())
		}
	})
}

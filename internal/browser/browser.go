// Package browser is the narrow slice of browser automation the watcher needs,
// with a Chrome DevTools implementation on top of chromedp.
package browser

import (
	"context"
	"time"
)

// Browser is a single live browser session.
type Browser interface {
	Navigate(ctx context.Context, url string) error
	// WaitPresent blocks until selector matches an element or timeout elapses.
	// A timeout is reported as internaltypes.ErrElementTimeout.
	WaitPresent(ctx context.Context, selector string, timeout time.Duration) error
	// FindAll returns the current matches in document order without waiting.
	FindAll(ctx context.Context, selector string) ([]Element, error)
	SendKeys(ctx context.Context, selector, text string) error
	Click(ctx context.Context, selector string) error
	Close() error
}

type Element interface {
	Text() string
	Click(ctx context.Context) error
}

// Factory starts a new session. The watcher calls it lazily on first use.
type Factory func(ctx context.Context) (Browser, error)

package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/example/tock-watcher/internal/internaltypes"
)

const defaultUA = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

type Options struct {
	Headless  bool
	ExecPath  string
	UserAgent string

	// NavigateTimeout bounds a single page load.
	NavigateTimeout time.Duration
	Logger          *zap.Logger
}

// Chrome is a Browser backed by one Chrome tab.
type Chrome struct {
	tabCtx      context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	navTimeout  time.Duration
}

// NewFactory returns a Factory that launches Chrome with opts.
func NewFactory(opts Options) Factory {
	return func(ctx context.Context) (Browser, error) {
		return Open(ctx, opts)
	}
}

// Open launches Chrome and opens a tab. The session outlives ctx; ctx only bounds startup.
func Open(ctx context.Context, opts Options) (*Chrome, error) {
	if opts.NavigateTimeout <= 0 {
		opts.NavigateTimeout = 30 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocatorOptions(opts)...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(log.Sugar().Debugf),
	)

	c := &Chrome{
		tabCtx:      tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		navTimeout:  opts.NavigateTimeout,
	}
	// the first Run starts the browser and ties its lifetime to tabCtx; ctx only bounds the wait
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(tabCtx) }()
	select {
	case err := <-started:
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("start chrome: %w", err)
		}
	case <-ctx.Done():
		_ = c.Close()
		return nil, fmt.Errorf("start chrome: %w", ctx.Err())
	}
	return c, nil
}

// alive reports whether the tab is still attached.
func (c *Chrome) alive() bool {
	return c.tabCtx.Err() == nil
}

func allocatorOptions(opts Options) []chromedp.ExecAllocatorOption {
	ua := opts.UserAgent
	if strings.TrimSpace(ua) == "" {
		ua = defaultUA
	}
	out := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(ua),
	)
	if opts.NavigateTimeout > 0 {
		out = append(out, chromedp.WSURLReadTimeout(opts.NavigateTimeout))
	}
	if opts.ExecPath != "" {
		out = append(out, chromedp.ExecPath(opts.ExecPath))
	}
	return out
}

// run executes actions on the tab, bounded by timeout (when > 0) and by ctx.
func (c *Chrome) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(c.tabCtx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(c.tabCtx)
	}
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (c *Chrome) Navigate(ctx context.Context, url string) error {
	if err := c.run(ctx, c.navTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (c *Chrome) WaitPresent(ctx context.Context, selector string, timeout time.Duration) error {
	err := c.run(ctx, timeout, chromedp.WaitReady(selector, chromedp.ByQuery))
	return timeoutErr(err, selector)
}

func (c *Chrome) FindAll(ctx context.Context, selector string) ([]Element, error) {
	var nodes []*cdp.Node
	if err := c.run(ctx, c.navTimeout, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return nil, fmt.Errorf("find %s: %w", selector, err)
	}
	out := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		var text string
		if err := c.run(ctx, c.navTimeout, chromedp.Text([]cdp.NodeID{n.NodeID}, &text, chromedp.ByNodeID)); err != nil {
			return nil, fmt.Errorf("read text of %s: %w", selector, err)
		}
		out = append(out, &chromeElement{c: c, node: n, text: strings.TrimSpace(text)})
	}
	return out, nil
}

func (c *Chrome) SendKeys(ctx context.Context, selector, text string) error {
	err := c.run(ctx, c.navTimeout, chromedp.SendKeys(selector, text, chromedp.ByQuery))
	if err != nil {
		return fmt.Errorf("type into %s: %w", selector, timeoutErr(err, selector))
	}
	return nil
}

func (c *Chrome) Click(ctx context.Context, selector string) error {
	err := c.run(ctx, c.navTimeout, chromedp.Click(selector, chromedp.ByQuery))
	if err != nil {
		return fmt.Errorf("click %s: %w", selector, timeoutErr(err, selector))
	}
	return nil
}

// Close shuts the tab and the browser process. Safe to call more than once.
func (c *Chrome) Close() error {
	if c.cancelTab != nil {
		c.cancelTab()
		c.cancelTab = nil
	}
	if c.cancelAlloc != nil {
		c.cancelAlloc()
		c.cancelAlloc = nil
	}
	return nil
}

type chromeElement struct {
	c    *Chrome
	node *cdp.Node
	text string
}

func (e *chromeElement) Text() string { return e.text }

func (e *chromeElement) Click(ctx context.Context) error {
	if err := e.c.run(ctx, e.c.navTimeout, chromedp.MouseClickNode(e.node)); err != nil {
		return fmt.Errorf("click node %d: %w", e.node.NodeID, err)
	}
	return nil
}

func timeoutErr(err error, selector string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", internaltypes.ErrElementTimeout, selector)
	}
	return err
}

package watcher

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/example/tock-watcher/internal/browser"
	"github.com/example/tock-watcher/internal/history"
	"github.com/example/tock-watcher/internal/internaltypes"
	"github.com/example/tock-watcher/internal/tock"
)

// fakeSite is the page state shared by every session a test opens.
type fakeSite struct {
	mu sync.Mutex

	days  map[string][]string // search date -> available day labels
	times map[string][]string // search date -> available time labels

	calendarBroken bool
	loginWorks     bool
	consent        []string
}

func newFakeSite() *fakeSite {
	return &fakeSite{
		days:       map[string][]string{},
		times:      map[string][]string{},
		loginWorks: true,
	}
}

func (s *fakeSite) setMonth(date string, days, times []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.days[date] = days
	s.times[date] = times
}

type fakeBrowser struct {
	site *fakeSite

	current     string
	dayClicked  bool
	submitted   bool
	navigations []string
	finds       []string
	typed       map[string]string
	clicks      []string
	closed      bool
}

func (b *fakeBrowser) searchDate() string {
	u, err := url.Parse(b.current)
	if err != nil {
		return ""
	}
	return u.Query().Get("date")
}

func (b *fakeBrowser) Navigate(ctx context.Context, u string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.current = u
	b.dayClicked = false
	b.navigations = append(b.navigations, u)
	return nil
}

func (b *fakeBrowser) WaitPresent(ctx context.Context, selector string, _ time.Duration) error {
	b.site.mu.Lock()
	defer b.site.mu.Unlock()

	present := false
	switch selector {
	case tock.SelEmailInput:
		present = strings.HasSuffix(b.current, "/login")
	case tock.SelProfileMarker:
		present = b.submitted && b.site.loginWorks
	case tock.SelCalendarMonth:
		present = strings.Contains(b.current, "/search") && !b.site.calendarBroken
	case tock.SelAvailableTime:
		present = b.dayClicked && len(b.site.times[b.searchDate()]) > 0
	}
	if !present {
		return fmt.Errorf("%w: %s", internaltypes.ErrElementTimeout, selector)
	}
	return nil
}

func (b *fakeBrowser) FindAll(ctx context.Context, selector string) ([]browser.Element, error) {
	b.site.mu.Lock()
	defer b.site.mu.Unlock()
	b.finds = append(b.finds, selector)

	var labels []string
	switch selector {
	case tock.SelConsentButton:
		if !strings.Contains(b.current, "/search") && !strings.HasSuffix(b.current, "/login") {
			labels = b.site.consent
		}
	case tock.SelAvailableDay:
		labels = b.site.days[b.searchDate()]
	case tock.SelAvailableTime:
		if b.dayClicked {
			labels = b.site.times[b.searchDate()]
		}
	}
	out := make([]browser.Element, 0, len(labels))
	for _, l := range labels {
		out = append(out, &fakeElement{b: b, selector: selector, text: l})
	}
	return out, nil
}

func (b *fakeBrowser) SendKeys(ctx context.Context, selector, text string) error {
	if b.typed == nil {
		b.typed = map[string]string{}
	}
	b.typed[selector] = text
	return nil
}

func (b *fakeBrowser) Click(ctx context.Context, selector string) error {
	b.clicks = append(b.clicks, selector)
	if selector == tock.SelLoginSubmit {
		b.submitted = true
	}
	return nil
}

func (b *fakeBrowser) Close() error {
	b.closed = true
	return nil
}

func (b *fakeBrowser) searches() []string {
	var out []string
	for _, n := range b.navigations {
		if strings.Contains(n, "/search") {
			out = append(out, n)
		}
	}
	return out
}

type fakeElement struct {
	b        *fakeBrowser
	selector string
	text     string
}

func (e *fakeElement) Text() string { return e.text }

func (e *fakeElement) Click(ctx context.Context) error {
	e.b.clicks = append(e.b.clicks, e.selector+"="+e.text)
	if e.selector == tock.SelAvailableDay {
		e.b.dayClicked = true
	}
	return nil
}

// sessions hands out fakeBrowsers and remembers each one.
type sessions struct {
	site   *fakeSite
	opened []*fakeBrowser
	err    error
}

func (s *sessions) factory(ctx context.Context) (browser.Browser, error) {
	if s.err != nil {
		return nil, s.err
	}
	b := &fakeBrowser{site: s.site}
	s.opened = append(s.opened, b)
	return b, nil
}

func (s *sessions) last() *fakeBrowser {
	if len(s.opened) == 0 {
		return nil
	}
	return s.opened[len(s.opened)-1]
}

type fakeNotifier struct {
	sent []string
	err  error
}

func (n *fakeNotifier) Send(ctx context.Context, text string) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, text)
	return nil
}

type fakeRecorder struct {
	probes        []history.Probe
	notifications []history.Notification
}

func (r *fakeRecorder) RecordProbe(ctx context.Context, p history.Probe) error {
	r.probes = append(r.probes, p)
	return nil
}

func (r *fakeRecorder) RecordNotification(ctx context.Context, n history.Notification) error {
	r.notifications = append(r.notifications, n)
	return nil
}

// sleeps records requested delays and returns immediately.
type sleeps struct {
	got    []time.Duration
	onCall func(d time.Duration) error
}

func (s *sleeps) sleep(ctx context.Context, d time.Duration) error {
	s.got = append(s.got, d)
	if s.onCall != nil {
		if err := s.onCall(d); err != nil {
			return err
		}
	}
	return ctx.Err()
}

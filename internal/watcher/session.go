package watcher

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/example/tock-watcher/internal/internaltypes"
	"github.com/example/tock-watcher/internal/reservation"
	"github.com/example/tock-watcher/internal/tock"
)

// Login signs in with the configured credentials. A missing profile marker after
// submitting the form is reported as internaltypes.ErrLogin.
func (w *Watcher) Login(ctx context.Context) error {
	b, err := w.browser(ctx)
	if err != nil {
		return err
	}
	if err := b.Navigate(ctx, w.site.LoginURL()); err != nil {
		return err
	}
	if err := b.WaitPresent(ctx, tock.SelEmailInput, w.opts.WaitTimeout); err != nil {
		return loginErr(ctx, "login form", err)
	}
	if err := b.SendKeys(ctx, tock.SelEmailInput, w.opts.Email); err != nil {
		return loginErr(ctx, "email", err)
	}
	if err := b.SendKeys(ctx, tock.SelPasswordInput, w.opts.Password); err != nil {
		return loginErr(ctx, "password", err)
	}
	if err := b.Click(ctx, tock.SelLoginSubmit); err != nil {
		return loginErr(ctx, "submit", err)
	}
	if err := b.WaitPresent(ctx, tock.SelProfileMarker, w.opts.WaitTimeout); err != nil {
		return loginErr(ctx, "profile marker never appeared", err)
	}
	w.log.Info("logged in")
	return nil
}

func loginErr(ctx context.Context, step string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("%w: %s: %w", internaltypes.ErrLogin, step, err)
}

// AcceptConsentBanner rejects the cookie dialog on the restaurant page if it shows up.
// It never fails; anything that goes wrong is logged and ignored.
func (w *Watcher) AcceptConsentBanner(ctx context.Context) {
	b, err := w.browser(ctx)
	if err != nil {
		w.log.Warn("consent banner: no browser session", zap.Error(err))
		return
	}
	if err := b.Navigate(ctx, w.site.LandingURL()); err != nil {
		w.log.Warn("consent banner: navigate", zap.Error(err))
		return
	}
	if err := w.sleep(ctx, w.opts.ConsentDelay); err != nil {
		return
	}
	buttons, err := b.FindAll(ctx, tock.SelConsentButton)
	if err != nil {
		w.log.Warn("consent banner: find buttons", zap.Error(err))
		return
	}
	for _, btn := range buttons {
		if strings.TrimSpace(btn.Text()) != tock.ConsentRejectAll {
			continue
		}
		if err := btn.Click(ctx); err != nil {
			w.log.Warn("consent banner: click", zap.Error(err))
			return
		}
		w.log.Debug("consent banner dismissed")
		return
	}
	w.log.Debug("no consent banner")
}

// FindOpenSlot probes one month. It returns nil without error when the month has
// no available day or the chosen day has no available time.
func (w *Watcher) FindOpenSlot(ctx context.Context, q reservation.SlotQuery) (*reservation.FoundSlot, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	log := w.log.With(zap.Int("year", q.Year), zap.Int("month", q.Month), zap.Int("size", q.PartySize))

	b, err := w.browser(ctx)
	if err != nil {
		return nil, err
	}
	if err := b.Navigate(ctx, w.site.SearchURL(q)); err != nil {
		return nil, err
	}
	if err := b.WaitPresent(ctx, tock.SelCalendarMonth, w.opts.WaitTimeout); err != nil {
		return nil, fmt.Errorf("calendar for %s: %w", q.Date(), err)
	}

	days, err := b.FindAll(ctx, tock.SelAvailableDay)
	if err != nil {
		return nil, err
	}
	if len(days) == 0 {
		log.Info("no open days")
		return nil, nil
	}
	day := days[0]
	if err := day.Click(ctx); err != nil {
		return nil, fmt.Errorf("select day %s: %w", day.Text(), err)
	}

	if err := b.WaitPresent(ctx, tock.SelAvailableTime, w.opts.WaitTimeout); err != nil {
		if errors.Is(err, internaltypes.ErrElementTimeout) {
			log.Info("no open times", zap.String("day", day.Text()))
			return nil, nil
		}
		return nil, err
	}
	hours, err := b.FindAll(ctx, tock.SelAvailableTime)
	if err != nil {
		return nil, err
	}
	if len(hours) == 0 {
		log.Info("no open times", zap.String("day", day.Text()))
		return nil, nil
	}

	labels := make([]string, 0, len(hours))
	for _, h := range hours {
		labels = append(labels, h.Text())
	}
	log.Info("open tables", zap.String("day", day.Text()), zap.Strings("times", labels))

	if err := hours[0].Click(ctx); err != nil {
		return nil, fmt.Errorf("select time %s: %w", hours[0].Text(), err)
	}
	return &reservation.FoundSlot{
		Year:      q.Year,
		Month:     q.Month,
		Day:       day.Text(),
		Time:      reservation.FirstToken(hours[0].Text()),
		PartySize: q.PartySize,
	}, nil
}

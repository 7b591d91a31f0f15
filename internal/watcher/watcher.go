package watcher

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/tock-watcher/internal/browser"
	"github.com/example/tock-watcher/internal/history"
	"github.com/example/tock-watcher/internal/internaltypes"
	"github.com/example/tock-watcher/internal/reservation"
	"github.com/example/tock-watcher/internal/tock"
)

type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Recorder keeps a trail of probes and notifications. Optional.
type Recorder interface {
	RecordProbe(ctx context.Context, p history.Probe) error
	RecordNotification(ctx context.Context, n history.Notification) error
}

type Options struct {
	Restaurant string
	BaseURL    string
	Email      string
	Password   string

	TargetTime  string // HH:MM probed in every month
	Horizon     int    // months per scan pass
	WaitTimeout time.Duration

	ConsentDelay  time.Duration
	MonthDelayMin time.Duration
	MonthDelayMax time.Duration
	PassDelayMin  time.Duration
	PassDelayMax  time.Duration

	QuietHours *QuietHours // nil: scan around the clock

	LoginFailureFatal bool
	RestartOnError    bool
	MaxRestarts       int // 0: unbounded

	// wait before a restart, doubled after each one up to RestartDelayMax
	RestartDelay    time.Duration
	RestartDelayMax time.Duration
}

func (o Options) withDefaults() Options {
	if o.TargetTime == "" {
		o.TargetTime = "17:00"
	}
	if o.Horizon < 1 {
		o.Horizon = reservation.DefaultHorizon
	}
	if o.WaitTimeout <= 0 {
		o.WaitTimeout = 10 * time.Second
	}
	if o.ConsentDelay <= 0 {
		o.ConsentDelay = 2 * time.Second
	}
	if o.MonthDelayMin <= 0 && o.MonthDelayMax <= 0 {
		o.MonthDelayMin, o.MonthDelayMax = time.Second, 5*time.Second
	}
	if o.PassDelayMin <= 0 && o.PassDelayMax <= 0 {
		o.PassDelayMin, o.PassDelayMax = time.Minute, 5*time.Minute
	}
	if o.RestartDelay <= 0 {
		o.RestartDelay = 10 * time.Second
	}
	if o.RestartDelayMax < o.RestartDelay {
		o.RestartDelayMax = max(5*time.Minute, o.RestartDelay)
	}
	return o
}

// Watcher polls one restaurant for an open table through a single browser session.
// Not safe for concurrent use.
type Watcher struct {
	opts       Options
	site       tock.Site
	newBrowser browser.Factory
	notifier   Notifier
	recorder   Recorder
	log        *zap.Logger

	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
	randBetween func(lo, hi time.Duration) time.Duration

	session browser.Browser
	runID   string
}

func New(opts Options, newBrowser browser.Factory, notifier Notifier, log *zap.Logger) *Watcher {
	opts = opts.withDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	site := tock.New(opts.BaseURL, opts.Restaurant)
	return &Watcher{
		opts:        opts,
		site:        site,
		newBrowser:  newBrowser,
		notifier:    notifier,
		log:         log.With(zap.String("restaurant", site.Restaurant())),
		now:         time.Now,
		sleep:       sleepCtx,
		randBetween: randBetween,
	}
}

// WithRecorder attaches a probe history store.
func (w *Watcher) WithRecorder(r Recorder) *Watcher {
	w.recorder = r
	return w
}

// browser returns the live session, starting one on first use.
func (w *Watcher) browser(ctx context.Context) (browser.Browser, error) {
	if w.session != nil {
		return w.session, nil
	}
	b, err := w.newBrowser(ctx)
	if err != nil {
		return nil, fmt.Errorf("start browser session: %w", err)
	}
	w.log.Debug("browser session started")
	w.session = b
	return b, nil
}

// Close releases the browser session if one is live.
func (w *Watcher) Close() error {
	if w.session == nil {
		return nil
	}
	err := w.session.Close()
	w.session = nil
	w.log.Debug("browser session closed")
	return err
}

// Watch scans the month window until a slot is found and delivered, ctx is done,
// or an error ends the run under the configured failure policy.
func (w *Watcher) Watch(ctx context.Context, partySize int) error {
	if partySize < 1 {
		return fmt.Errorf("party size must be >= 1")
	}
	defer w.Close()

	restarts := 0
	wait := w.restartBackOff()
	for {
		w.runID = uuid.NewString()
		log := w.log.With(zap.String("run_id", w.runID), zap.Int("size", partySize))

		started := w.now()
		err := w.run(ctx, partySize, log)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !w.opts.RestartOnError {
			return err
		}
		if w.opts.LoginFailureFatal && errors.Is(err, internaltypes.ErrLogin) {
			return err
		}
		if w.opts.MaxRestarts > 0 && restarts >= w.opts.MaxRestarts {
			return fmt.Errorf("giving up after %d restarts: %w", restarts, err)
		}
		restarts++
		// a run that held up for a while starts the delays over
		if w.now().Sub(started) > w.opts.RestartDelayMax {
			wait.Reset()
		}
		d := wait.NextBackOff()
		log.Error("watch failed, restarting", zap.Error(err), zap.Int("restart", restarts), zap.Duration("wait", d))
		if cerr := w.Close(); cerr != nil {
			log.Warn("close browser session", zap.Error(cerr))
		}
		if err := w.sleep(ctx, d); err != nil {
			return err
		}
	}
}

func (w *Watcher) restartBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.opts.RestartDelay
	b.MaxInterval = w.opts.RestartDelayMax
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func (w *Watcher) run(ctx context.Context, partySize int, log *zap.Logger) error {
	w.AcceptConsentBanner(ctx)
	if err := w.Login(ctx); err != nil {
		if w.opts.LoginFailureFatal || ctx.Err() != nil {
			return err
		}
		log.Error("login failed, scanning anyway", zap.Error(err))
	}

	for pass := 1; ; pass++ {
		if err := w.waitQuietHours(ctx, log); err != nil {
			return err
		}
		slot, err := w.scan(ctx, partySize)
		if err != nil {
			return err
		}
		if slot != nil {
			return w.deliver(ctx, *slot, log)
		}

		d := w.randBetween(w.opts.PassDelayMin, w.opts.PassDelayMax)
		log.Info("no open tables in window", zap.Int("pass", pass), zap.Duration("sleep", d))
		if err := w.sleep(ctx, d); err != nil {
			return err
		}
	}
}

// scan probes each month of the window in order and stops at the first hit.
func (w *Watcher) scan(ctx context.Context, partySize int) (*reservation.FoundSlot, error) {
	for i, sw := range reservation.Window(w.now(), w.opts.Horizon) {
		if i > 0 {
			if err := w.sleep(ctx, w.randBetween(w.opts.MonthDelayMin, w.opts.MonthDelayMax)); err != nil {
				return nil, err
			}
		}
		q := sw.Query(w.opts.TargetTime, partySize)
		slot, err := w.FindOpenSlot(ctx, q)
		w.recordProbe(ctx, q, slot, err)
		if err != nil {
			return nil, err
		}
		if slot != nil {
			return slot, nil
		}
	}
	return nil, nil
}

func (w *Watcher) deliver(ctx context.Context, slot reservation.FoundSlot, log *zap.Logger) error {
	msg := slot.Message(w.site.CheckoutURL())
	log.Info("open table found", zap.String("date", slot.Date()), zap.String("time", slot.Time))
	if err := w.notifier.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	if w.recorder != nil {
		n := history.Notification{RunID: w.runID, Restaurant: w.site.Restaurant(), Message: msg, SentAt: w.now().UTC()}
		if err := w.recorder.RecordNotification(ctx, n); err != nil {
			log.Warn("record notification", zap.Error(err))
		}
	}
	return nil
}

func (w *Watcher) recordProbe(ctx context.Context, q reservation.SlotQuery, slot *reservation.FoundSlot, probeErr error) {
	if w.recorder == nil || errors.Is(probeErr, context.Canceled) {
		return
	}
	p := history.Probe{
		RunID:      w.runID,
		Restaurant: w.site.Restaurant(),
		Year:       q.Year,
		Month:      q.Month,
		Time:       q.Time,
		PartySize:  q.PartySize,
		ProbedAt:   w.now().UTC(),
	}
	if slot != nil {
		p.Found = true
		p.Day = slot.Day
		p.TimeLabel = slot.Time
	}
	if probeErr != nil {
		p.Error = probeErr.Error()
	}
	if err := w.recorder.RecordProbe(ctx, p); err != nil {
		w.log.Warn("record probe", zap.Error(err))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// randBetween picks a uniform duration in [lo, hi].
func randBetween(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rand.Int63n(int64(hi-lo)+1))
}

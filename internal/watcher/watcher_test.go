package watcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/example/tock-watcher/internal/internaltypes"
	"github.com/example/tock-watcher/internal/reservation"
	"github.com/example/tock-watcher/internal/tock"
)

var march15 = time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)

type harness struct {
	w        *Watcher
	site     *fakeSite
	sessions *sessions
	notifier *fakeNotifier
	recorder *fakeRecorder
	sleeps   *sleeps
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	if opts.Restaurant == "" {
		opts.Restaurant = "noma"
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://tock.test"
	}
	opts.Email, opts.Password = "me@example.com", "hunter2"

	h := &harness{
		site:     newFakeSite(),
		notifier: &fakeNotifier{},
		recorder: &fakeRecorder{},
		sleeps:   &sleeps{},
	}
	h.sessions = &sessions{site: h.site}
	h.w = New(opts, h.sessions.factory, h.notifier, zaptest.NewLogger(t)).WithRecorder(h.recorder)
	h.w.now = func() time.Time { return march15 }
	h.w.sleep = h.sleeps.sleep
	return h
}

func query(year, month int) reservation.SlotQuery {
	return reservation.SlotQuery{Year: year, Month: month, Time: "17:00", PartySize: 2}
}

func TestFindOpenSlotNoDays(t *testing.T) {
	h := newHarness(t, Options{})

	slot, err := h.w.FindOpenSlot(context.Background(), query(2024, 3))
	require.NoError(t, err)
	assert.Nil(t, slot)

	b := h.sessions.last()
	require.NotNil(t, b)
	assert.Equal(t, []string{"https://tock.test/noma/search?date=2024-03-01&size=2&time=17%3A00"}, b.navigations)
	assert.NotContains(t, b.finds, tock.SelAvailableTime)
	assert.Empty(t, b.clicks)
}

func TestFindOpenSlotPicksFirst(t *testing.T) {
	h := newHarness(t, Options{})
	h.site.setMonth("2024-03-01", []string{"3", "9"}, []string{"18:00 PM", "19:00 PM"})

	slot, err := h.w.FindOpenSlot(context.Background(), query(2024, 3))
	require.NoError(t, err)
	require.NotNil(t, slot)
	assert.Equal(t, reservation.FoundSlot{Year: 2024, Month: 3, Day: "3", Time: "18:00", PartySize: 2}, *slot)

	b := h.sessions.last()
	assert.Equal(t, []string{
		tock.SelAvailableDay + "=3",
		tock.SelAvailableTime + "=18:00 PM",
	}, b.clicks)
}

func TestFindOpenSlotNoTimes(t *testing.T) {
	h := newHarness(t, Options{})
	h.site.setMonth("2024-03-01", []string{"3"}, nil)

	slot, err := h.w.FindOpenSlot(context.Background(), query(2024, 3))
	require.NoError(t, err)
	assert.Nil(t, slot)
}

func TestFindOpenSlotCalendarTimeout(t *testing.T) {
	h := newHarness(t, Options{})
	h.site.calendarBroken = true

	slot, err := h.w.FindOpenSlot(context.Background(), query(2024, 3))
	assert.Nil(t, slot)
	assert.ErrorIs(t, err, internaltypes.ErrElementTimeout)
}

func TestFindOpenSlotInvalidQuery(t *testing.T) {
	h := newHarness(t, Options{})

	_, err := h.w.FindOpenSlot(context.Background(), reservation.SlotQuery{Year: 2024, Month: 13, Time: "17:00", PartySize: 2})
	assert.Error(t, err)
	assert.Empty(t, h.sessions.opened)
}

func TestSessionReusedAndClosed(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	_, err := h.w.FindOpenSlot(ctx, query(2024, 3))
	require.NoError(t, err)
	_, err = h.w.FindOpenSlot(ctx, query(2024, 4))
	require.NoError(t, err)
	require.Len(t, h.sessions.opened, 1)

	require.NoError(t, h.w.Close())
	assert.True(t, h.sessions.opened[0].closed)
	assert.NoError(t, h.w.Close())
}

func TestLogin(t *testing.T) {
	h := newHarness(t, Options{})

	require.NoError(t, h.w.Login(context.Background()))
	b := h.sessions.last()
	assert.Equal(t, "me@example.com", b.typed[tock.SelEmailInput])
	assert.Equal(t, "hunter2", b.typed[tock.SelPasswordInput])
	assert.Contains(t, b.clicks, tock.SelLoginSubmit)
}

func TestLoginMarkerMissing(t *testing.T) {
	h := newHarness(t, Options{})
	h.site.loginWorks = false

	err := h.w.Login(context.Background())
	assert.ErrorIs(t, err, internaltypes.ErrLogin)
	assert.ErrorIs(t, err, internaltypes.ErrElementTimeout)
}

func TestAcceptConsentBanner(t *testing.T) {
	t.Run("reject all clicked", func(t *testing.T) {
		h := newHarness(t, Options{})
		h.site.consent = []string{"Accept All", " Reject All "}

		h.w.AcceptConsentBanner(context.Background())
		b := h.sessions.last()
		assert.Equal(t, []string{"https://tock.test/noma"}, b.navigations)
		assert.Equal(t, []string{tock.SelConsentButton + "= Reject All "}, b.clicks)
		assert.Equal(t, []time.Duration{2 * time.Second}, h.sleeps.got)
	})

	t.Run("no banner", func(t *testing.T) {
		h := newHarness(t, Options{})

		h.w.AcceptConsentBanner(context.Background())
		assert.Empty(t, h.sessions.last().clicks)
	})

	t.Run("no browser", func(t *testing.T) {
		h := newHarness(t, Options{})
		h.sessions.err = errors.New("chrome not installed")

		assert.NotPanics(t, func() { h.w.AcceptConsentBanner(context.Background()) })
	})
}

func TestWatchFindsSlotInThirdMonth(t *testing.T) {
	h := newHarness(t, Options{})
	h.site.setMonth("2024-05-01", []string{"12"}, []string{"17:30 PM"})

	require.NoError(t, h.w.Watch(context.Background(), 4))

	require.Len(t, h.notifier.sent, 1)
	assert.Equal(t,
		"Found open table on 2024-05-12 at 17:30 for 4 people.\nGo to https://tock.test/noma/checkout/options to finish the reservation.",
		h.notifier.sent[0])

	require.Len(t, h.sessions.opened, 1)
	b := h.sessions.opened[0]
	assert.True(t, b.closed)
	searches := b.searches()
	require.Len(t, searches, 3)
	assert.Contains(t, searches[2], "date=2024-05-01")
	for _, s := range searches {
		assert.NotContains(t, s, "2024-06-01")
	}

	require.Len(t, h.recorder.probes, 3)
	assert.False(t, h.recorder.probes[0].Found)
	assert.False(t, h.recorder.probes[1].Found)
	last := h.recorder.probes[2]
	assert.True(t, last.Found)
	assert.Equal(t, "12", last.Day)
	assert.Equal(t, "17:30", last.TimeLabel)
	assert.Equal(t, 4, last.PartySize)
	require.Len(t, h.recorder.notifications, 1)
	assert.Equal(t, last.RunID, h.recorder.notifications[0].RunID)

	// consent delay, then one month delay between each of the three probes
	require.Len(t, h.sleeps.got, 3)
	for _, d := range h.sleeps.got[1:] {
		assert.GreaterOrEqual(t, d, time.Second)
		assert.LessOrEqual(t, d, 5*time.Second)
	}
}

func TestWatchSleepsBetweenPasses(t *testing.T) {
	h := newHarness(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	passes := 0
	var passDelays []time.Duration
	h.sleeps.onCall = func(d time.Duration) error {
		if d >= time.Minute {
			passes++
			passDelays = append(passDelays, d)
			if passes == 2 {
				cancel()
			}
		}
		return nil
	}

	err := h.w.Watch(ctx, 2)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.notifier.sent)

	for _, d := range passDelays {
		assert.GreaterOrEqual(t, d, time.Minute)
		assert.LessOrEqual(t, d, 5*time.Minute)
	}
	require.Len(t, h.sessions.opened, 1)
	assert.Len(t, h.sessions.opened[0].searches(), 16)
	assert.True(t, h.sessions.opened[0].closed)
	assert.Len(t, h.recorder.probes, 16)
}

func TestWatchLoginFailure(t *testing.T) {
	t.Run("fatal", func(t *testing.T) {
		h := newHarness(t, Options{LoginFailureFatal: true})
		h.site.loginWorks = false

		err := h.w.Watch(context.Background(), 2)
		assert.ErrorIs(t, err, internaltypes.ErrLogin)
		assert.Empty(t, h.sessions.last().searches())
		assert.True(t, h.sessions.last().closed)
	})

	t.Run("logged and ignored", func(t *testing.T) {
		h := newHarness(t, Options{})
		h.site.loginWorks = false
		h.site.setMonth("2024-03-01", []string{"20"}, []string{"17:00 PM"})

		require.NoError(t, h.w.Watch(context.Background(), 2))
		assert.Len(t, h.notifier.sent, 1)
	})
}

func TestWatchRestartsWithFreshSession(t *testing.T) {
	h := newHarness(t, Options{RestartOnError: true, RestartDelay: 7 * time.Second})
	h.site.calendarBroken = true
	h.sleeps.onCall = func(d time.Duration) error {
		if d == 7*time.Second {
			h.site.calendarBroken = false
			h.site.setMonth("2024-03-01", []string{"1"}, []string{"17:00"})
		}
		return nil
	}

	require.NoError(t, h.w.Watch(context.Background(), 2))

	require.Len(t, h.sessions.opened, 2)
	assert.True(t, h.sessions.opened[0].closed)
	assert.True(t, h.sessions.opened[1].closed)
	assert.Len(t, h.notifier.sent, 1)

	require.Len(t, h.recorder.probes, 2)
	assert.NotEmpty(t, h.recorder.probes[0].Error)
	assert.NotEqual(t, h.recorder.probes[0].RunID, h.recorder.probes[1].RunID)
}

func TestWatchGivesUpAfterMaxRestarts(t *testing.T) {
	h := newHarness(t, Options{RestartOnError: true, MaxRestarts: 2})
	h.site.calendarBroken = true

	err := h.w.Watch(context.Background(), 2)
	assert.ErrorIs(t, err, internaltypes.ErrElementTimeout)
	assert.Contains(t, err.Error(), "giving up after 2 restarts")
	require.Len(t, h.sessions.opened, 3)
	for _, b := range h.sessions.opened {
		assert.True(t, b.closed)
	}
}

func TestWatchLoginFatalIsNotRestarted(t *testing.T) {
	h := newHarness(t, Options{LoginFailureFatal: true, RestartOnError: true})
	h.site.loginWorks = false

	err := h.w.Watch(context.Background(), 2)
	assert.ErrorIs(t, err, internaltypes.ErrLogin)
	require.Len(t, h.sessions.opened, 1)
	assert.True(t, h.sessions.opened[0].closed)
	assert.Empty(t, h.sessions.opened[0].searches())
}

func TestWatchRestartDelaysGrow(t *testing.T) {
	h := newHarness(t, Options{
		LoginFailureFatal: true,
		RestartOnError:    true,
		MaxRestarts:       4,
		RestartDelay:      time.Second,
		RestartDelayMax:   3 * time.Second,
	})
	h.sessions.err = errors.New("chrome not installed")

	err := h.w.Watch(context.Background(), 2)
	assert.ErrorContains(t, err, "chrome not installed")
	assert.ErrorContains(t, err, "giving up after 4 restarts")
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second}, h.sleeps.got)
}

func TestRestartDelayDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, 10*time.Second, o.RestartDelay)
	assert.Equal(t, 5*time.Minute, o.RestartDelayMax)

	o = Options{RestartDelay: 10 * time.Minute}.withDefaults()
	assert.Equal(t, 10*time.Minute, o.RestartDelayMax)
}

func TestWatchNoRestart(t *testing.T) {
	h := newHarness(t, Options{})
	h.site.calendarBroken = true

	err := h.w.Watch(context.Background(), 2)
	assert.ErrorIs(t, err, internaltypes.ErrElementTimeout)
	assert.Len(t, h.sessions.opened, 1)
}

func TestWatchNotifyFailure(t *testing.T) {
	h := newHarness(t, Options{})
	h.site.setMonth("2024-03-01", []string{"1"}, []string{"17:00"})
	h.notifier.err = internaltypes.ErrDelivery

	err := h.w.Watch(context.Background(), 2)
	assert.ErrorIs(t, err, internaltypes.ErrDelivery)
	assert.Empty(t, h.recorder.notifications)
}

func TestWatchInvalidPartySize(t *testing.T) {
	h := newHarness(t, Options{})
	assert.Error(t, h.w.Watch(context.Background(), 0))
	assert.Empty(t, h.sessions.opened)
}

func TestWatchQuietHours(t *testing.T) {
	qh, err := ParseQuietHours("20-8")
	require.NoError(t, err)
	h := newHarness(t, Options{QuietHours: qh})
	h.w.now = func() time.Time { return time.Date(2024, time.March, 15, 21, 30, 0, 0, time.UTC) }
	h.site.setMonth("2024-03-01", []string{"30"}, []string{"17:00"})

	require.NoError(t, h.w.Watch(context.Background(), 2))
	require.Len(t, h.sleeps.got, 2)
	assert.Equal(t, 10*time.Hour+30*time.Minute, h.sleeps.got[1])
}

func TestParseQuietHours(t *testing.T) {
	qh, err := ParseQuietHours("")
	require.NoError(t, err)
	assert.Nil(t, qh)

	for _, bad := range []string{"x", "20", "20-x", "25-3", "3--1"} {
		_, err := ParseQuietHours(bad)
		assert.Error(t, err, bad)
	}

	at := func(h, m int) time.Time { return time.Date(2024, time.March, 15, h, m, 0, 0, time.UTC) }

	qh, err = ParseQuietHours(" 20-8 ")
	require.NoError(t, err)
	assert.Equal(t, "20:00-08:00 UTC", qh.String())
	assert.True(t, qh.Contains(at(20, 0)))
	assert.True(t, qh.Contains(at(7, 59)))
	assert.False(t, qh.Contains(at(8, 0)))
	assert.False(t, qh.Contains(at(12, 0)))
	assert.Equal(t, 10*time.Hour+30*time.Minute, qh.Until(at(21, 30)))
	assert.Equal(t, 5*time.Hour, qh.Until(at(3, 0)))
	assert.Zero(t, qh.Until(at(12, 0)))

	qh, err = ParseQuietHours("1-5")
	require.NoError(t, err)
	assert.True(t, qh.Contains(at(1, 0)))
	assert.False(t, qh.Contains(at(5, 0)))
	assert.False(t, qh.Contains(at(23, 0)))
}

func TestRandBetween(t *testing.T) {
	assert.Equal(t, time.Second, randBetween(time.Second, time.Second))
	assert.Equal(t, 2*time.Second, randBetween(2*time.Second, time.Second))
	for i := 0; i < 100; i++ {
		d := randBetween(time.Minute, 5*time.Minute)
		assert.GreaterOrEqual(t, d, time.Minute)
		assert.LessOrEqual(t, d, 5*time.Minute)
	}
}

func TestSleepCtx(t *testing.T) {
	assert.NoError(t, sleepCtx(context.Background(), 0))
	assert.NoError(t, sleepCtx(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepCtx(ctx, time.Hour), context.Canceled)
}

package watcher

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// QuietHours is a daily UTC window [Start, End) in which no scanning happens.
// Start > End wraps midnight (20-8 is 20:00 to 08:00 the next morning).
type QuietHours struct {
	Start int
	End   int

	resume cron.Schedule
}

func NewQuietHours(start, end int) (*QuietHours, error) {
	if start < 0 || start > 23 || end < 0 || end > 23 {
		return nil, fmt.Errorf("quiet hours must be within 0..23 (got %d-%d)", start, end)
	}
	sched, err := cron.ParseStandard(fmt.Sprintf("CRON_TZ=UTC 0 %d * * *", end))
	if err != nil {
		return nil, err
	}
	return &QuietHours{Start: start, End: end, resume: sched}, nil
}

// ParseQuietHours reads "START-END" hours, e.g. "20-8". Empty disables quiet hours.
func ParseQuietHours(s string) (*QuietHours, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	from, to, ok := strings.Cut(s, "-")
	if !ok {
		return nil, fmt.Errorf("invalid quiet hours %q (want START-END)", s)
	}
	start, err := strconv.Atoi(strings.TrimSpace(from))
	if err != nil {
		return nil, fmt.Errorf("invalid quiet hours start %q", from)
	}
	end, err := strconv.Atoi(strings.TrimSpace(to))
	if err != nil {
		return nil, fmt.Errorf("invalid quiet hours end %q", to)
	}
	return NewQuietHours(start, end)
}

func (q *QuietHours) Contains(t time.Time) bool {
	h := t.UTC().Hour()
	if q.Start <= q.End {
		return h >= q.Start && h < q.End
	}
	return h >= q.Start || h < q.End
}

// Until returns how long to stay quiet from now; zero outside the window.
func (q *QuietHours) Until(now time.Time) time.Duration {
	if !q.Contains(now) {
		return 0
	}
	now = now.UTC()
	return q.resume.Next(now).Sub(now)
}

func (q *QuietHours) String() string {
	return fmt.Sprintf("%02d:00-%02d:00 UTC", q.Start, q.End)
}

func (w *Watcher) waitQuietHours(ctx context.Context, log *zap.Logger) error {
	if w.opts.QuietHours == nil {
		return nil
	}
	d := w.opts.QuietHours.Until(w.now())
	if d <= 0 {
		return nil
	}
	log.Info("quiet hours, sleeping", zap.Stringer("window", w.opts.QuietHours), zap.Duration("sleep", d))
	return w.sleep(ctx, d)
}

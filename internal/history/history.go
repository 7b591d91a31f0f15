package history

import (
	"context"
	"fmt"
	"time"

	"github.com/example/tock-watcher/internal/db"
)

// Probe is one month checked on the search page.
type Probe struct {
	ID         int64
	RunID      string
	Restaurant string
	Year       int
	Month      int
	Time       string
	PartySize  int

	Found     bool
	Day       string
	TimeLabel string
	Error     string

	ProbedAt time.Time
}

func (p Probe) Outcome() string {
	switch {
	case p.Error != "":
		return "error"
	case p.Found:
		return "found"
	default:
		return "none"
	}
}

func (p Probe) Validate() error {
	if p.RunID == "" {
		return fmt.Errorf("run_id required")
	}
	if p.Restaurant == "" {
		return fmt.Errorf("restaurant required")
	}
	if p.Month < 1 || p.Month > 12 {
		return fmt.Errorf("month must be 1..12")
	}
	if p.PartySize < 1 {
		return fmt.Errorf("party_size required")
	}
	return nil
}

// Notification is a message handed to the notifier.
type Notification struct {
	ID         int64
	RunID      string
	Restaurant string
	Message    string
	SentAt     time.Time
}

type Repo struct{ db *db.DB }

func NewRepo(d *db.DB) *Repo { return &Repo{db: d} }

func (r *Repo) RecordProbe(ctx context.Context, p Probe) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.ProbedAt.IsZero() {
		p.ProbedAt = time.Now().UTC()
	}
	return r.db.Exec(ctx, `
INSERT INTO probes(run_id,restaurant,year,month,target_time,party_size,found,day,time_label,error,probed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NULLIF($8,''),NULLIF($9,''),NULLIF($10,''),$11)`,
		p.RunID, p.Restaurant, p.Year, p.Month, p.Time, p.PartySize, p.Found, p.Day, p.TimeLabel, p.Error, p.ProbedAt,
	)
}

func (r *Repo) RecordNotification(ctx context.Context, n Notification) error {
	if n.SentAt.IsZero() {
		n.SentAt = time.Now().UTC()
	}
	return r.db.Exec(ctx, `INSERT INTO notifications(run_id,restaurant,message,sent_at) VALUES ($1,$2,$3,$4)`,
		n.RunID, n.Restaurant, n.Message, n.SentAt)
}

// Recent lists the newest probes first. An empty restaurant matches all.
func (r *Repo) Recent(ctx context.Context, restaurant string, limit int) ([]Probe, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
SELECT id,run_id,restaurant,year,month,target_time,party_size,found,COALESCE(day,''),COALESCE(time_label,''),COALESCE(error,''),probed_at
FROM probes
WHERE $1 = '' OR restaurant = $1
ORDER BY probed_at DESC, id DESC
LIMIT $2`, restaurant, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Probe
	for rows.Next() {
		var p Probe
		if err := rows.Scan(
			&p.ID, &p.RunID, &p.Restaurant, &p.Year, &p.Month, &p.Time, &p.PartySize,
			&p.Found, &p.Day, &p.TimeLabel, &p.Error, &p.ProbedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// LastNotification returns the most recent notification for restaurant.
func (r *Repo) LastNotification(ctx context.Context, restaurant string) (Notification, error) {
	var n Notification
	err := r.db.QueryRow(ctx, `
SELECT id,run_id,restaurant,message,sent_at
FROM notifications
WHERE restaurant=$1
ORDER BY sent_at DESC
LIMIT 1`, restaurant).Scan(&n.ID, &n.RunID, &n.Restaurant, &n.Message, &n.SentAt)
	if err != nil {
		return Notification{}, db.WrapNotFound(err)
	}
	return n, nil
}

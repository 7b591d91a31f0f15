package reservation

import (
	"fmt"
	"strings"
	"time"
)

// SlotQuery is one probe of the search page: a month, a requested time of day and a party size.
type SlotQuery struct {
	Year      int
	Month     int
	Time      string // HH:MM
	PartySize int
}

// Date is the first of the queried month, as the search page expects it.
func (q SlotQuery) Date() string {
	return fmt.Sprintf("%04d-%02d-01", q.Year, q.Month)
}

func (q SlotQuery) Validate() error {
	if q.Month < 1 || q.Month > 12 {
		return fmt.Errorf("month must be 1..12 (got %d)", q.Month)
	}
	if q.Year < 1 {
		return fmt.Errorf("year required")
	}
	if q.PartySize < 1 {
		return fmt.Errorf("party size must be >= 1")
	}
	if _, err := time.Parse("15:04", q.Time); err != nil {
		return fmt.Errorf("invalid time %q (want HH:MM)", q.Time)
	}
	return nil
}

// FoundSlot is an open table: the calendar day label and the time label the site showed.
type FoundSlot struct {
	Year      int
	Month     int
	Day       string
	Time      string
	PartySize int
}

func (s FoundSlot) Date() string {
	return fmt.Sprintf("%04d-%02d-%s", s.Year, s.Month, s.Day)
}

// Message renders the chat text for a found slot. checkoutURL is optional.
func (s FoundSlot) Message(checkoutURL string) string {
	msg := fmt.Sprintf("Found open table on %s at %s for %d people.", s.Date(), s.Time, s.PartySize)
	if checkoutURL != "" {
		msg += fmt.Sprintf("\nGo to %s to finish the reservation.", checkoutURL)
	}
	return msg
}

// FirstToken returns the first whitespace-separated word of a label ("17:30 PM" -> "17:30").
func FirstToken(label string) string {
	fields := strings.Fields(label)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

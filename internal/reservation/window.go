package reservation

import (
	"fmt"
	"time"
)

// DefaultHorizon is how many consecutive months a scan pass covers.
const DefaultHorizon = 8

// SearchWindow is a (year, month) pair derived from the current date plus a month offset.
type SearchWindow struct {
	Year  int
	Month int
}

func (w SearchWindow) String() string {
	return fmt.Sprintf("%04d-%02d", w.Year, w.Month)
}

// Query builds the probe for this month.
func (w SearchWindow) Query(at string, partySize int) SlotQuery {
	return SlotQuery{Year: w.Year, Month: w.Month, Time: at, PartySize: partySize}
}

// At returns the window offset months after now's UTC month, wrapping the year past December.
func At(now time.Time, offset int) SearchWindow {
	now = now.UTC()
	idx := int(now.Month()) - 1 + offset
	return SearchWindow{
		Year:  now.Year() + idx/12,
		Month: idx%12 + 1,
	}
}

// Window returns horizon consecutive windows starting at now's month.
func Window(now time.Time, horizon int) []SearchWindow {
	if horizon < 1 {
		horizon = DefaultHorizon
	}
	out := make([]SearchWindow, 0, horizon)
	for i := 0; i < horizon; i++ {
		out = append(out, At(now, i))
	}
	return out
}

// Package tock knows the URLs and page selectors of the Tock reservation site.
// Everything here belongs to a third party and changes without notice.
package tock

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/example/tock-watcher/internal/reservation"
)

const DefaultBaseURL = "https://www.exploretock.com"

// Page selectors (CSS).
const (
	SelEmailInput    = `input[name="email"]`
	SelPasswordInput = `input[name="password"]`
	SelLoginSubmit   = ".MuiButton-fullWidth"
	// profile avatar; only rendered for a logged-in session
	SelProfileMarker = ".css-1wujmwl"

	SelConsentButton = ".truste-button2"
	ConsentRejectAll = "Reject All"

	SelCalendarMonth = ".ConsumerCalendar-month"
	SelAvailableDay  = "button.ConsumerCalendar-day.is-available"
	SelAvailableTime = "button.Consumer-resultsListItem.is-available"
)

type Site struct {
	base       string
	restaurant string
}

func New(baseURL, restaurant string) Site {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return Site{
		base:       strings.TrimRight(baseURL, "/"),
		restaurant: strings.Trim(restaurant, "/ "),
	}
}

func (s Site) Restaurant() string { return s.restaurant }

func (s Site) LoginURL() string { return s.base + "/login" }

func (s Site) LandingURL() string { return s.base + "/" + s.restaurant }

func (s Site) CheckoutURL() string { return s.base + "/" + s.restaurant + "/checkout/options" }

// SearchURL is the search page for the first of the queried month.
func (s Site) SearchURL(q reservation.SlotQuery) string {
	v := url.Values{}
	v.Set("date", q.Date())
	v.Set("time", q.Time)
	v.Set("size", strconv.Itoa(q.PartySize))
	return s.base + "/" + s.restaurant + "/search?" + v.Encode()
}

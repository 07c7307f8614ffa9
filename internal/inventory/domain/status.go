// Package domain holds the inventory rules: how a medicine's stock and
// expiry translate into a status, and how a scale reading translates into
// a unit count. Everything here is pure; callers supply "today".
package domain

import "time"

// Status is the derived condition of a medicine. It is never stored.
type Status string

const (
	StatusOK          Status = "OK"
	StatusLowStock    Status = "LOW_STOCK"
	StatusExpiresSoon Status = "EXPIRES_SOON"
	StatusExpires30   Status = "EXPIRES_30"
	StatusOutOfStock  Status = "OUT_OF_STOCK"
	StatusExpired     Status = "EXPIRED"
)

// AllStatuses lists every status in classification precedence order.
var AllStatuses = []Status{
	StatusOutOfStock,
	StatusExpired,
	StatusExpiresSoon,
	StatusExpires30,
	StatusLowStock,
	StatusOK,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

const (
	expiresSoonDays = 7
	expires30Days   = 30
)

// Snapshot is the part of a medicine the classifier looks at.
type Snapshot struct {
	Quantity     int
	ReorderLevel int
	ExpiryDate   *time.Time
}

// Classify returns the status of s as of today. Checks run in a fixed
// order and the first match wins, so expiry labels take priority over low
// stock.
func Classify(s Snapshot, today time.Time) Status {
	if s.Quantity <= 0 {
		return StatusOutOfStock
	}

	if days := DaysToExpiry(s.ExpiryDate, today); days != nil {
		switch {
		case *days < 0:
			return StatusExpired
		case *days <= expiresSoonDays:
			return StatusExpiresSoon
		case *days <= expires30Days:
			return StatusExpires30
		}
	}

	if s.Quantity <= s.ReorderLevel {
		return StatusLowStock
	}
	return StatusOK
}

// DaysToExpiry returns the number of calendar days from today until expiry,
// negative once expired. Both values are reduced to their calendar date in
// today's location. Nil means the medicine never expires.
func DaysToExpiry(expiry *time.Time, today time.Time) *int {
	if expiry == nil {
		return nil
	}

	loc := today.Location()
	e := civilDate(expiry.Year(), expiry.Month(), expiry.Day(), loc)
	t := civilDate(today.Year(), today.Month(), today.Day(), loc)

	// noon-to-noon keeps DST shifts from pulling the quotient off by one
	days := int(e.Sub(t).Round(24*time.Hour) / (24 * time.Hour))
	return &days
}

func civilDate(y int, m time.Month, d int, loc *time.Location) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, loc)
}

// IsCritical reports whether s needs immediate attention.
func (s Status) IsCritical() bool {
	return s == StatusOutOfStock || s == StatusExpired
}

// IsWarning reports whether s should be looked at soon.
func (s Status) IsWarning() bool {
	return s == StatusLowStock || s == StatusExpiresSoon
}

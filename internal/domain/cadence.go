package domain

import (
	"fmt"
	"strings"
	"time"
)

// Cadence is a recipient's delivery frequency class.
type Cadence string

const (
	CadenceFast   Cadence = "fast"
	CadenceMedium Cadence = "medium"
	CadenceSlow   Cadence = "slow"
	CadenceDaily  Cadence = "daily"

	// DefaultCadence is used for recipients that never chose one.
	DefaultCadence = CadenceMedium
)

var cadenceIntervals = map[Cadence]time.Duration{
	CadenceFast:   10 * time.Minute,
	CadenceMedium: 30 * time.Minute,
	CadenceSlow:   time.Hour,
	CadenceDaily:  24 * time.Hour,
}

// Cadences lists all cadences from the most to the least frequent.
func Cadences() []Cadence {
	return []Cadence{CadenceFast, CadenceMedium, CadenceSlow, CadenceDaily}
}

// Interval returns the delay between two scheduled cycles. Unknown values
// fall back to the default cadence.
func (c Cadence) Interval() time.Duration {
	if d, ok := cadenceIntervals[c]; ok {
		return d
	}

	return cadenceIntervals[DefaultCadence]
}

func (c Cadence) Valid() bool {
	_, ok := cadenceIntervals[c]
	return ok
}

// Short returns the compact form used in commands and callbacks (10m, 30m, 1h, 1d).
func (c Cadence) Short() string {
	switch c {
	case CadenceFast:
		return "10m"
	case CadenceMedium:
		return "30m"
	case CadenceSlow:
		return "1h"
	case CadenceDaily:
		return "1d"
	default:
		return ""
	}
}

// ParseCadence accepts both the long names and the short forms.
func ParseCadence(s string) (Cadence, error) {
	s = strings.ToLower(strings.TrimSpace(s))

	for _, c := range Cadences() {
		if s == string(c) || s == c.Short() {
			return c, nil
		}
	}

	return "", fmt.Errorf("unknown cadence %q", s)
}

package timectrl

import (
	"fmt"
	"math"
	"time"
)

const (
	SecondsInWeek     = 604800
	SecondsInHalfWeek = 302400
	SecondsInDay      = 86400
	SecondsInHour     = 3600
	SecondsInMinute   = 60
	// LeapSeconds is GPS-UTC as of 2017-01-01.
	LeapSeconds = 18
	// GPSUnixOffset is the Unix time of the GPS epoch, 1980-01-06T00:00:00Z.
	GPSUnixOffset = 315964800
)

var gpsEpoch = time.Date(1980, time.January, 6, 0, 0, 0, 0, time.UTC)

// GTime is an absolute GPS time expressed as a week number and seconds into
// that week. Values built through NewGTime or returned by GTime methods keep
// TowSec in [0, SecondsInWeek).
type GTime struct {
	Week   int64
	TowSec float64
}

// NewGTime returns the normalized time week*604800 + tow.
func NewGTime(week int64, tow float64) GTime {
	return GTime{Week: week, TowSec: tow}.normalize()
}

func (g GTime) normalize() GTime {
	if g.TowSec >= SecondsInWeek || g.TowSec < 0 {
		w := math.Floor(g.TowSec / SecondsInWeek)
		g.Week += int64(w)
		g.TowSec -= w * SecondsInWeek
		// floating residue can leave TowSec == SecondsInWeek
		if g.TowSec >= SecondsInWeek {
			g.Week++
			g.TowSec -= SecondsInWeek
		}
	}
	return g
}

// Add returns g shifted by sec seconds.
func (g GTime) Add(sec float64) GTime {
	return GTime{Week: g.Week, TowSec: g.TowSec + sec}.normalize()
}

// Sub returns g - o in seconds.
func (g GTime) Sub(o GTime) float64 {
	return float64(g.Week-o.Week)*SecondsInWeek + (g.TowSec - o.TowSec)
}

// ToSec returns the seconds elapsed since the GPS epoch.
func (g GTime) ToSec() float64 {
	return float64(g.Week)*SecondsInWeek + g.TowSec
}

// Compare returns -1, 0 or +1 as g is before, equal to or after o.
func (g GTime) Compare(o GTime) int {
	switch d := g.Sub(o); {
	case d < 0:
		return -1
	case d > 0:
		return 1
	default:
		return 0
	}
}

func (g GTime) Before(o GTime) bool { return g.Compare(o) < 0 }
func (g GTime) After(o GTime) bool  { return g.Compare(o) > 0 }
func (g GTime) Equal(o GTime) bool  { return g.Compare(o) == 0 }

// TimeOfDay returns the seconds elapsed since the start of the GPS day.
func (g GTime) TimeOfDay() float64 {
	return math.Mod(g.TowSec, SecondsInDay)
}

// FromUTC converts a UTC Unix timestamp (whole seconds plus a fractional
// part) to GPS time.
func FromUTC(unixSec int64, subsec float64) GTime {
	gps := unixSec - GPSUnixOffset + LeapSeconds
	week := gps / SecondsInWeek
	tow := float64(gps%SecondsInWeek) + subsec
	return NewGTime(week, tow)
}

// FromTime converts a wall-clock instant to GPS time.
func FromTime(t time.Time) GTime {
	return FromUTC(t.Unix(), float64(t.Nanosecond())*1e-9)
}

// UTC converts g back to a UTC instant.
func (g GTime) UTC() time.Time {
	return g.gpsCalendar().Add(-LeapSeconds * time.Second)
}

// gpsCalendar returns g on a calendar that runs in GPS time (no leap seconds).
func (g GTime) gpsCalendar() time.Time {
	whole, frac := math.Modf(g.TowSec)
	return gpsEpoch.
		Add(time.Duration(g.Week) * SecondsInWeek * time.Second).
		Add(time.Duration(whole) * time.Second).
		Add(time.Duration(math.Round(frac * 1e9)))
}

func (g GTime) String() string {
	return fmt.Sprintf("%d:%.6f", g.Week, g.TowSec)
}

// DateTime is a calendar date in the GPS time scale.
type DateTime struct {
	Year   int
	Month  int
	Day    int
	Hour   int
	Minute int
	Second float64
}

// DateTime returns g as a GPS-scale calendar date.
func (g GTime) DateTime() DateTime {
	c := g.gpsCalendar()
	return DateTime{
		Year:   c.Year(),
		Month:  int(c.Month()),
		Day:    c.Day(),
		Hour:   c.Hour(),
		Minute: c.Minute(),
		Second: float64(c.Second()) + float64(c.Nanosecond())*1e-9,
	}
}

// GTime converts d back to week and time of week.
func (d DateTime) GTime() GTime {
	midnight := time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
	days := int64(midnight.Sub(gpsEpoch) / (SecondsInDay * time.Second))
	tow := float64(days%7)*SecondsInDay +
		float64(d.Hour*SecondsInHour+d.Minute*SecondsInMinute) + d.Second
	return NewGTime(days/7, tow)
}

package timectrl

import (
	"math"
	"testing"
	"time"
)

func TestNewGTimeNormalizes(t *testing.T) {
	cases := []struct {
		week int64
		tow  float64
		want GTime
	}{
		{week: 10, tow: 5, want: GTime{Week: 10, TowSec: 5}},
		{week: 10, tow: SecondsInWeek + 1.5, want: GTime{Week: 11, TowSec: 1.5}},
		{week: 10, tow: -1, want: GTime{Week: 9, TowSec: SecondsInWeek - 1}},
		{week: 10, tow: 3 * SecondsInWeek, want: GTime{Week: 13, TowSec: 0}},
	}
	for _, tc := range cases {
		if got := NewGTime(tc.week, tc.tow); got != tc.want {
			t.Fatalf("NewGTime(%d, %v) = %v, want %v", tc.week, tc.tow, got, tc.want)
		}
	}
}

func TestGTimeArithmetic(t *testing.T) {
	a := NewGTime(2000, SecondsInWeek-0.25)
	b := a.Add(0.5)
	if b.Week != 2001 || math.Abs(b.TowSec-0.25) > 1e-9 {
		t.Fatalf("Add across week = %v, want 2001:0.25", b)
	}
	if d := b.Sub(a); math.Abs(d-0.5) > 1e-9 {
		t.Fatalf("Sub = %v, want 0.5", d)
	}
	if !a.Before(b) || !b.After(a) || a.Equal(b) {
		t.Fatalf("ordering of %v and %v is wrong", a, b)
	}
	if got := NewGTime(1, 2).ToSec(); got != SecondsInWeek+2 {
		t.Fatalf("ToSec = %v, want %v", got, SecondsInWeek+2)
	}
}

func TestFromUTCRoundTrip(t *testing.T) {
	utc := time.Date(2019, time.February, 14, 3, 30, 15, 250_000_000, time.UTC)
	g := FromTime(utc)

	// 2019-02-14 is Thursday of GPS week 2040.
	if g.Week != 2040 {
		t.Fatalf("week = %d, want 2040", g.Week)
	}
	wantTow := 4*SecondsInDay + 3*SecondsInHour + 30*SecondsInMinute + 15.25 + LeapSeconds
	if math.Abs(g.TowSec-wantTow) > 1e-6 {
		t.Fatalf("tow = %v, want %v", g.TowSec, wantTow)
	}
	if back := g.UTC(); !back.Equal(utc) {
		t.Fatalf("UTC() = %v, want %v", back, utc)
	}
}

func TestDateTimeRoundTrip(t *testing.T) {
	g := NewGTime(2040, 4*SecondsInDay+12345.5)
	dt := g.DateTime()
	if dt.Year != 2019 || dt.Month != 2 || dt.Day != 14 || dt.Hour != 3 || dt.Minute != 25 {
		t.Fatalf("DateTime() = %+v, want 2019-02-14 03:25", dt)
	}
	if math.Abs(dt.Second-45.5) > 1e-6 {
		t.Fatalf("DateTime().Second = %v, want 45.5", dt.Second)
	}
	if back := dt.GTime(); back.Week != g.Week || math.Abs(back.TowSec-g.TowSec) > 1e-6 {
		t.Fatalf("GTime() = %v, want %v", back, g)
	}
}

func TestTimeOfDay(t *testing.T) {
	g := NewGTime(0, 86400+3600)
	if got := g.TimeOfDay(); got != 3600 {
		t.Fatalf("TimeOfDay = %v, want 3600", got)
	}
}

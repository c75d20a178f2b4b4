// Package frequency encodes a weekly recurrence as a seven-bit mask.
//
// Bit layout (the persisted wire format): Monday=1, Tuesday=2, Wednesday=4,
// Thursday=8, Friday=16, Saturday=32, Sunday=64. Weekday arguments use Go's
// time.Weekday convention throughout (Sunday=0 ... Saturday=6).
package frequency

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Mask is a set of weekdays on which a habit recurs.
type Mask int

const (
	Monday    Mask = 1 << iota // 1
	Tuesday                    // 2
	Wednesday                  // 4
	Thursday                   // 8
	Friday                     // 16
	Saturday                   // 32
	Sunday                     // 64

	None     Mask = 0
	Weekdays      = Monday | Tuesday | Wednesday | Thursday | Friday // 31
	Weekend       = Saturday | Sunday                                // 96
	Daily         = Weekdays | Weekend                               // 127
)

// mondayFirst lists weekdays in display order.
var mondayFirst = []time.Weekday{
	time.Monday,
	time.Tuesday,
	time.Wednesday,
	time.Thursday,
	time.Friday,
	time.Saturday,
	time.Sunday,
}

// Bit returns the mask bit for a weekday, or None for values outside 0-6.
func Bit(wd time.Weekday) Mask {
	if wd < time.Sunday || wd > time.Saturday {
		return None
	}
	// Monday is bit 0, Sunday is bit 6.
	return 1 << ((int(wd) + 6) % 7)
}

// Valid reports whether m only uses the seven weekday bits.
func (m Mask) Valid() bool {
	return m >= 0 && m <= Daily
}

// DaysFromMask returns the names of the weekdays present in m, Monday first.
// Bits outside the 0-127 range are ignored.
func DaysFromMask(m Mask) []string {
	days := make([]string, 0, 7)
	for _, wd := range mondayFirst {
		if m&Bit(wd) != 0 {
			days = append(days, wd.String())
		}
	}
	return days
}

// MaskFromDays builds a mask from weekdays. An empty input yields None, a
// habit that is never due. Out-of-range weekdays are ignored.
func MaskFromDays(days []time.Weekday) Mask {
	var m Mask
	for _, wd := range days {
		m |= Bit(wd)
	}
	return m
}

// IsDayInMask reports whether wd is part of m.
func IsDayInMask(m Mask, wd time.Weekday) bool {
	b := Bit(wd)
	return b != None && m&b != 0
}

// String renders presets by name and anything else as abbreviated weekdays.
func (m Mask) String() string {
	switch m & Daily {
	case Daily:
		return "daily"
	case Weekdays:
		return "weekdays"
	case Weekend:
		return "weekend"
	case None:
		return "never"
	}

	var short []string
	for _, name := range DaysFromMask(m) {
		short = append(short, name[:3])
	}
	return strings.Join(short, ",")
}

var dayNames = map[string]time.Weekday{
	"sun":       time.Sunday,
	"sunday":    time.Sunday,
	"mon":       time.Monday,
	"monday":    time.Monday,
	"tue":       time.Tuesday,
	"tuesday":   time.Tuesday,
	"wed":       time.Wednesday,
	"wednesday": time.Wednesday,
	"thu":       time.Thursday,
	"thursday":  time.Thursday,
	"fri":       time.Friday,
	"friday":    time.Friday,
	"sat":       time.Saturday,
	"saturday":  time.Saturday,
}

// ParseDays parses a comma-separated weekday list ("mon,wed,fri", full names,
// or numbers 0-6 with 0=Sunday) or one of the presets daily, weekdays, weekend.
func ParseDays(s string) (Mask, error) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "daily", "all":
		return Daily, nil
	case "weekdays":
		return Weekdays, nil
	case "weekend", "weekends":
		return Weekend, nil
	case "", "never", "none":
		return None, nil
	}

	var days []time.Weekday
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(strings.ToLower(part))
		if wd, ok := dayNames[part]; ok {
			days = append(days, wd)
			continue
		}
		num, err := strconv.Atoi(part)
		if err != nil || num < 0 || num > 6 {
			return None, fmt.Errorf("invalid weekday: %s", part)
		}
		days = append(days, time.Weekday(num))
	}
	return MaskFromDays(days), nil
}

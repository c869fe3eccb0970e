package weekdate

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Zone is the civil timezone every week and day boundary is computed in.
// The clinic operates on Indochina Time; date arithmetic done in UTC would
// shift slot days by one near midnight.
var Zone = time.FixedZone("ICT", 7*60*60)

// DayLabel is the closed 7-value weekday enumeration used by schedules.
type DayLabel string

const (
	Monday    DayLabel = "MONDAY"
	Tuesday   DayLabel = "TUESDAY"
	Wednesday DayLabel = "WEDNESDAY"
	Thursday  DayLabel = "THURSDAY"
	Friday    DayLabel = "FRIDAY"
	Saturday  DayLabel = "SATURDAY"
	Sunday    DayLabel = "SUNDAY"
)

// dayLabels is indexed by position within a week starting on Monday.
var dayLabels = [7]DayLabel{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

var slotPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]-([01][0-9]|2[0-3]):[0-5][0-9]$`)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD string as a civil date in Zone.
func ParseDate(raw string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(raw), Zone)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", raw, err)
	}
	return d, nil
}

// Normalize truncates an instant to midnight in Zone.
func Normalize(t time.Time) time.Time {
	local := t.In(Zone)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, Zone)
}

// WeekStart returns the Monday midnight of the week containing t.
func WeekStart(t time.Time) time.Time {
	day := Normalize(t)
	return day.AddDate(0, 0, -DayIndex(day))
}

// DayIndex returns the position of t's weekday within a Monday-first week.
func DayIndex(t time.Time) int {
	wd := int(t.In(Zone).Weekday())
	// time.Weekday numbers Sunday as 0.
	return (wd + 6) % 7
}

// LabelFor returns the enumerated label for t's weekday.
func LabelFor(t time.Time) DayLabel {
	return dayLabels[DayIndex(t)]
}

// LabelAt returns the label for the given Monday-first index.
func LabelAt(index int) (DayLabel, error) {
	if index < 0 || index > 6 {
		return "", fmt.Errorf("day index %d out of range", index)
	}
	return dayLabels[index], nil
}

// ISOWeek reports the ISO week number and year of t in Zone.
func ISOWeek(t time.Time) (year, week int) {
	year, week = t.In(Zone).ISOWeek()
	return year, week
}

// ValidSlot reports whether raw matches the HH:MM-HH:MM slot format with a
// start time strictly before the end time.
func ValidSlot(raw string) bool {
	if !slotPattern.MatchString(raw) {
		return false
	}
	return raw[:5] < raw[6:]
}

// SlotStart returns the instant the slot begins on the given civil date.
func SlotStart(date time.Time, slot string) (time.Time, error) {
	if !slotPattern.MatchString(slot) {
		return time.Time{}, fmt.Errorf("invalid time slot %q", slot)
	}
	start, err := time.ParseInLocation("15:04", slot[:5], Zone)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse slot start %q: %w", slot, err)
	}
	day := Normalize(date)
	return day.Add(time.Duration(start.Hour())*time.Hour + time.Duration(start.Minute())*time.Minute), nil
}

// WeekRange returns the half-open [start, end) interval covering the week
// that begins at weekStart.
func WeekRange(weekStart time.Time) (time.Time, time.Time) {
	start := Normalize(weekStart)
	return start, start.AddDate(0, 0, 7)
}

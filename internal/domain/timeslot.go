package domain

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidTimeRange = errors.New("invalid time range")

// TimeSlot is a half-open interval [Start, End) in UTC.
type TimeSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func NewTimeSlot(start, end time.Time) (TimeSlot, error) {
	s := start.UTC()
	e := end.UTC()
	if !s.Before(e) {
		return TimeSlot{}, fmt.Errorf("%w: start %s is not before end %s", ErrInvalidTimeRange, s.Format(time.RFC3339), e.Format(time.RFC3339))
	}
	return TimeSlot{Start: s, End: e}, nil
}

func (s TimeSlot) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

func (s TimeSlot) Overlaps(other TimeSlot) bool {
	return Overlaps(s, other)
}

// Expand widens the slot by buffer on both sides. Only used for conflict checks.
func (s TimeSlot) Expand(buffer time.Duration) TimeSlot {
	if buffer <= 0 {
		return s
	}
	return TimeSlot{Start: s.Start.Add(-buffer), End: s.End.Add(buffer)}
}

func (s TimeSlot) Equal(other TimeSlot) bool {
	return s.Start.Equal(other.Start) && s.End.Equal(other.End)
}

func (s TimeSlot) String() string {
	return s.Start.Format(time.RFC3339) + "/" + s.End.Format(time.RFC3339)
}

func Overlaps(a, b TimeSlot) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// ToUTC resolves a wall-clock time on a local date through loc.
// Times that fall into a daylight-saving gap are normalized forward by the zone rules.
func ToUTC(date Date, at ClockTime, loc *time.Location) time.Time {
	return time.Date(date.Year, date.Month, date.Day, 0, at.Minutes(), 0, 0, loc).UTC()
}

// ClockTime is a wall-clock time of day in minutes after midnight, "24:00" included.
type ClockTime int

const endOfDay ClockTime = 24 * 60

func ParseClockTime(s string) (ClockTime, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("invalid clock time %q: want HH:MM", s)
	}
	h, okH := twoDigits(s[0:2])
	m, okM := twoDigits(s[3:5])
	if !okH || !okM || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("invalid clock time %q: want HH:MM", s)
	}
	return ClockTime(h*60 + m), nil
}

func MustClockTime(s string) ClockTime {
	c, err := ParseClockTime(s)
	if err != nil {
		panic(err)
	}
	return c
}

func twoDigits(s string) (int, bool) {
	if s[0] < '0' || s[0] > '9' || s[1] < '0' || s[1] > '9' {
		return 0, false
	}
	return int(s[0]-'0')*10 + int(s[1]-'0'), true
}

func (c ClockTime) Minutes() int {
	return int(c)
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

func (c ClockTime) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *ClockTime) UnmarshalText(b []byte) error {
	v, err := ParseClockTime(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

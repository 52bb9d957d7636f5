package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

var ErrInvalidTemplate = errors.New("invalid availability template")

// DefaultCurrency applies to templates that set no currency.
const DefaultCurrency = "usd"

// Window is a local wall-clock range [Start, End) within one day.
type Window struct {
	Start ClockTime `json:"start"`
	End   ClockTime `json:"end"`
}

// AvailabilityTemplate is a provider's recurring weekly schedule.
// Callers replace the whole value on update; it is never mutated in place after Validate.
type AvailabilityTemplate struct {
	bun.BaseModel `bun:"table:availability_templates"`

	ProviderID       string                    `bun:"provider_id,pk" json:"provider_id"`
	Timezone         string                    `bun:"timezone,notnull" json:"timezone"`
	WeeklyHours      map[time.Weekday][]Window `bun:"weekly_hours,type:jsonb,notnull" json:"weekly_hours"`
	DateOverrides    map[Date][]Window         `bun:"date_overrides,type:jsonb,notnull" json:"date_overrides,omitempty"`
	BlockedDates     []Date                    `bun:"blocked_dates,type:jsonb,notnull" json:"blocked_dates,omitempty"`
	DurationMinutes  int                       `bun:"duration_minutes,notnull" json:"duration_minutes"`
	BufferMinutes    int                       `bun:"buffer_minutes,notnull" json:"buffer_minutes"`
	MinNoticeMinutes int                       `bun:"min_notice_minutes,notnull" json:"min_notice_minutes"`
	HorizonDays      int                       `bun:"horizon_days,notnull" json:"horizon_days"`
	PriceAmount      int64                     `bun:"price_amount,notnull" json:"price_amount"`
	Currency         string                    `bun:"currency,notnull" json:"currency,omitempty"`
	ArchivedAt       *time.Time                `bun:"archived_at" json:"archived_at,omitempty"`
	CreatedAt        time.Time                 `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt        time.Time                 `bun:"updated_at,notnull" json:"updated_at"`
}

func (t *AvailabilityTemplate) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		if t.UpdatedAt.IsZero() {
			t.UpdatedAt = now
		}
		if t.WeeklyHours == nil {
			t.WeeklyHours = map[time.Weekday][]Window{}
		}
		if t.DateOverrides == nil {
			t.DateOverrides = map[Date][]Window{}
		}
		if t.BlockedDates == nil {
			t.BlockedDates = []Date{}
		}
	case *bun.UpdateQuery:
		t.UpdatedAt = now
	}
	return nil
}

func invalidTemplate(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidTemplate, fmt.Sprintf(format, args...))
}

func (t AvailabilityTemplate) Validate() error {
	if strings.TrimSpace(t.ProviderID) == "" {
		return invalidTemplate("provider_id is required")
	}
	if _, err := t.Location(); err != nil {
		return err
	}
	if t.DurationMinutes <= 0 {
		return invalidTemplate("duration must be positive")
	}
	if t.DurationMinutes > 24*60 {
		return invalidTemplate("duration must not exceed one day")
	}
	if t.BufferMinutes < 0 {
		return invalidTemplate("buffer must not be negative")
	}
	if t.MinNoticeMinutes < 0 {
		return invalidTemplate("min_notice must not be negative")
	}
	if t.HorizonDays < 0 {
		return invalidTemplate("horizon_days must not be negative")
	}
	if t.PriceAmount < 0 {
		return invalidTemplate("price must not be negative")
	}
	if cur := strings.TrimSpace(t.Currency); cur != "" && len(cur) != 3 {
		return invalidTemplate("currency must be a three letter code")
	}
	for wd, windows := range t.WeeklyHours {
		if wd < time.Sunday || wd > time.Saturday {
			return invalidTemplate("weekday %d out of range", int(wd))
		}
		if err := validateWindows(windows); err != nil {
			return invalidTemplate("%s: %v", wd, err)
		}
	}
	for d, windows := range t.DateOverrides {
		if d.IsZero() {
			return invalidTemplate("override date is required")
		}
		if err := validateWindows(windows); err != nil {
			return invalidTemplate("%s: %v", d, err)
		}
	}
	for _, d := range t.BlockedDates {
		if d.IsZero() {
			return invalidTemplate("blocked date is required")
		}
	}
	return nil
}

func validateWindows(windows []Window) error {
	for i, w := range windows {
		if w.Start < 0 || w.Start >= endOfDay || w.End > endOfDay {
			return fmt.Errorf("window %s-%s out of range", w.Start, w.End)
		}
		if w.Start >= w.End {
			return fmt.Errorf("window %s-%s must start before it ends", w.Start, w.End)
		}
		if i > 0 && windows[i-1].End > w.Start {
			return fmt.Errorf("windows must be sorted and non-overlapping")
		}
	}
	return nil
}

// Rate is the price of one slot in minor units and its lowercase currency.
func (t AvailabilityTemplate) Rate() (int64, string) {
	cur := strings.ToLower(strings.TrimSpace(t.Currency))
	if cur == "" {
		cur = DefaultCurrency
	}
	return t.PriceAmount, cur
}

func (t AvailabilityTemplate) Location() (*time.Location, error) {
	tz := strings.TrimSpace(t.Timezone)
	if tz == "" || tz == "Local" {
		return nil, invalidTemplate("time_zone is required")
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, invalidTemplate("invalid time_zone %q", tz)
	}
	return loc, nil
}

func (t AvailabilityTemplate) Duration() time.Duration {
	return time.Duration(t.DurationMinutes) * time.Minute
}

func (t AvailabilityTemplate) Buffer() time.Duration {
	return time.Duration(t.BufferMinutes) * time.Minute
}

func (t AvailabilityTemplate) MinNotice() time.Duration {
	return time.Duration(t.MinNoticeMinutes) * time.Minute
}

func (t AvailabilityTemplate) Archived() bool {
	return t.ArchivedAt != nil
}

func (t AvailabilityTemplate) IsBlocked(d Date) bool {
	for _, b := range t.BlockedDates {
		if b == d {
			return true
		}
	}
	return false
}

// WindowsOn returns the local windows that apply to d. Blocked dates win over overrides.
func (t AvailabilityTemplate) WindowsOn(d Date) []Window {
	if t.IsBlocked(d) {
		return nil
	}
	if windows, ok := t.DateOverrides[d]; ok {
		return windows
	}
	return t.WeeklyHours[d.Weekday()]
}

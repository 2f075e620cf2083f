// Package doctor manages the doctor directory and weekly availability.
package doctor

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/apperror"
)

// Weekdays are the accepted available_days values, Monday first.
var Weekdays = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// Hours is a daily "HH:MM" window. Both empty means no restriction.
type Hours struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type Doctor struct {
	ID              uuid.UUID `json:"id"`
	FirstName       string    `json:"first_name"`
	LastName        string    `json:"last_name"`
	Email           string    `json:"email"`
	Phone           string    `json:"phone"`
	Department      string    `json:"department"`
	Specialization  string    `json:"specialization"`
	Qualification   string    `json:"qualification"`
	ExperienceYears int       `json:"experience_years"`
	AvailableDays   []string  `json:"available_days"`
	AvailableHours  Hours     `json:"available_hours"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// DisplayName is "Dr. First Last".
func (d *Doctor) DisplayName() string {
	return "Dr. " + strings.TrimSpace(d.FirstName+" "+d.LastName)
}

func (d *Doctor) Normalize() {
	d.FirstName = strings.TrimSpace(d.FirstName)
	d.LastName = strings.TrimSpace(d.LastName)
	d.Email = strings.ToLower(strings.TrimSpace(d.Email))
	d.Department = strings.TrimSpace(d.Department)
	d.Specialization = strings.TrimSpace(d.Specialization)
	days := make([]string, 0, len(d.AvailableDays))
	seen := make(map[string]bool)
	for _, day := range d.AvailableDays {
		day = canonicalDay(day)
		if !seen[day] {
			seen[day] = true
			days = append(days, day)
		}
	}
	d.AvailableDays = days
}

func (d *Doctor) Validate() error {
	v := &apperror.ValidationError{}
	v.Check(d.FirstName != "", "first_name", "is required")
	v.Check(d.LastName != "", "last_name", "is required")
	if d.Email != "" {
		v.Check(apperror.IsEmail(d.Email), "email", "is not a valid e-mail address")
	}
	if d.Phone != "" {
		v.Check(len(d.Phone) >= 6, "phone", "must be at least 6 characters")
	}
	v.Check(d.ExperienceYears >= 0, "experience_years", "cannot be negative")
	for _, day := range d.AvailableDays {
		if dayIndex(day) < 0 {
			v.Add("available_days", fmt.Sprintf("unknown day %q", day))
		}
	}

	h := d.AvailableHours
	if h.Start != "" || h.End != "" {
		start, errStart := parseClock(h.Start)
		end, errEnd := parseClock(h.End)
		switch {
		case errStart != nil:
			v.Add("available_hours.start", errStart.Error())
		case errEnd != nil:
			v.Add("available_hours.end", errEnd.Error())
		case end <= start:
			v.Add("available_hours", "end must be after start")
		}
	}
	return v.Err()
}

// CheckAvailable returns an error unless [at, at+length) falls on one of
// the doctor's days and inside their hours, read in loc. Doctors without
// declared days or hours are always available.
func (d *Doctor) CheckAvailable(at time.Time, length time.Duration, loc *time.Location) error {
	local := at.In(loc)
	if len(d.AvailableDays) > 0 {
		day := local.Weekday().String()[:3]
		ok := false
		for _, available := range d.AvailableDays {
			if available == day {
				ok = true
				break
			}
		}
		if !ok {
			return apperror.Conflict(fmt.Sprintf("%s is not available on %s", d.DisplayName(), day))
		}
	}

	if d.AvailableHours.Start == "" && d.AvailableHours.End == "" {
		return nil
	}
	start, err := parseClock(d.AvailableHours.Start)
	if err != nil {
		return fmt.Errorf("doctor hours: %w", err)
	}
	end, err := parseClock(d.AvailableHours.End)
	if err != nil {
		return fmt.Errorf("doctor hours: %w", err)
	}
	begin := time.Duration(local.Hour())*time.Hour + time.Duration(local.Minute())*time.Minute
	if begin < start || begin+length > end {
		return apperror.Conflict(fmt.Sprintf("%s is available %s-%s",
			d.DisplayName(), d.AvailableHours.Start, d.AvailableHours.End))
	}
	return nil
}

func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("must be HH:MM, got %q", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func canonicalDay(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 3 {
		s = strings.ToUpper(s[:1]) + strings.ToLower(s[1:3])
	}
	return s
}

func dayIndex(day string) int {
	for i, d := range Weekdays {
		if d == day {
			return i
		}
	}
	return -1
}

package doctor

import (
	"errors"
	"testing"
	"time"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/apperror"
)

func TestNormalizeDays(t *testing.T) {
	d := &Doctor{FirstName: "Rajesh", LastName: "Sharma", AvailableDays: []string{"monday", "Wed", "MON", " fri "}}
	d.Normalize()
	want := []string{"Mon", "Wed", "Fri"}
	if len(d.AvailableDays) != len(want) {
		t.Fatalf("days = %v", d.AvailableDays)
	}
	for i := range want {
		if d.AvailableDays[i] != want[i] {
			t.Errorf("days = %v, want %v", d.AvailableDays, want)
		}
	}
}

func TestValidateHours(t *testing.T) {
	tests := []struct {
		name  string
		hours Hours
		ok    bool
	}{
		{"no hours", Hours{}, true},
		{"valid window", Hours{Start: "09:00", End: "17:30"}, true},
		{"end before start", Hours{Start: "17:00", End: "09:00"}, false},
		{"bad format", Hours{Start: "9am", End: "17:00"}, false},
		{"only end", Hours{End: "17:00"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &Doctor{FirstName: "Priya", LastName: "Patel", AvailableHours: tt.hours}
			err := d.Validate()
			if (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestValidateUnknownDay(t *testing.T) {
	d := &Doctor{FirstName: "Priya", LastName: "Patel", AvailableDays: []string{"Funday"}}
	d.Normalize()
	if err := d.Validate(); !apperror.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestCheckAvailable(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	d := &Doctor{
		FirstName:      "Rajesh",
		LastName:       "Sharma",
		AvailableDays:  []string{"Mon", "Wed"},
		AvailableHours: Hours{Start: "09:00", End: "13:00"},
	}
	slot := 30 * time.Minute

	// 2024-06-17 is a Monday.
	tests := []struct {
		name string
		at   time.Time
		ok   bool
	}{
		{"inside hours", time.Date(2024, 6, 17, 10, 0, 0, 0, loc), true},
		{"first slot", time.Date(2024, 6, 17, 9, 0, 0, 0, loc), true},
		{"last slot", time.Date(2024, 6, 17, 12, 30, 0, 0, loc), true},
		{"runs past end", time.Date(2024, 6, 17, 12, 45, 0, 0, loc), false},
		{"before start", time.Date(2024, 6, 17, 8, 30, 0, 0, loc), false},
		{"wrong day", time.Date(2024, 6, 18, 10, 0, 0, 0, loc), false},
		{"utc input read in hospital zone", time.Date(2024, 6, 17, 4, 30, 0, 0, time.UTC), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := d.CheckAvailable(tt.at, slot, loc)
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, apperror.ErrConflict) {
				t.Fatalf("expected conflict, got %v", err)
			}
		})
	}
}

func TestCheckAvailableWithoutSchedule(t *testing.T) {
	d := &Doctor{FirstName: "Anita", LastName: "Rao"}
	if err := d.CheckAvailable(time.Now(), 30*time.Minute, time.UTC); err != nil {
		t.Errorf("unrestricted doctor unavailable: %v", err)
	}
}

package calendar

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

func TestDateJSON(t *testing.T) {
	var d Date
	if err := json.Unmarshal([]byte(`"1990-05-17"`), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.Year != 1990 || d.Month != time.May || d.Day != 17 {
		t.Errorf("got %+v", d)
	}
	out, err := json.Marshal(d)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `"1990-05-17"` {
		t.Errorf("marshal = %s", out)
	}

	if err := json.Unmarshal([]byte(`"2024-01-31T22:00:00Z"`), &d); err != nil {
		t.Fatalf("unmarshal rfc3339: %v", err)
	}
	if d.String() != "2024-01-31" {
		t.Errorf("got %s", d)
	}

	if err := json.Unmarshal([]byte(`"31/01/2024"`), &d); err == nil {
		t.Error("expected error for bad layout")
	}
}

func TestDateArithmetic(t *testing.T) {
	d, err := Parse("2024-02-28")
	if err != nil {
		t.Fatal(err)
	}
	if got := d.AddDays(1).String(); got != "2024-02-29" {
		t.Errorf("AddDays = %s", got)
	}
	if got := d.AddDays(2).String(); got != "2024-03-01" {
		t.Errorf("AddDays = %s", got)
	}
	if !d.Before(d.AddDays(1)) || d.After(d.AddDays(1)) {
		t.Error("ordering wrong")
	}
	if !(Date{}).IsZero() || d.IsZero() {
		t.Error("IsZero wrong")
	}
}

func TestDatePgtype(t *testing.T) {
	var d Date
	if err := d.ScanDate(pgtype.Date{Time: time.Date(2025, 7, 4, 0, 0, 0, 0, time.UTC), Valid: true}); err != nil {
		t.Fatal(err)
	}
	if d.String() != "2025-07-04" {
		t.Errorf("scanned %s", d)
	}
	v, err := d.DateValue()
	if err != nil || !v.Valid || !v.Time.Equal(time.Date(2025, 7, 4, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("DateValue = %+v, %v", v, err)
	}

	if err := d.ScanDate(pgtype.Date{}); err != nil || !d.IsZero() {
		t.Errorf("null scan = %+v, %v", d, err)
	}
	if v, _ := (Date{}).DateValue(); v.Valid {
		t.Error("zero date should be NULL")
	}
	if err := d.ScanDate(pgtype.Date{Valid: true, InfinityModifier: pgtype.Infinity}); err == nil {
		t.Error("expected error for infinity")
	}
}

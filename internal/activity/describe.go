// Package activity projects hospital events into the activity feed and
// raises low-stock alerts to suppliers.
package activity

import (
	"fmt"
	"strings"
	"time"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/appointment"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/billing"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/document"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/inventory"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/patient"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/prescription"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/events"
)

// Entry is one row of the activity feed.
type Entry struct {
	EventID       string
	EventType     events.Type
	AggregateType string
	AggregateID   string
	Actor         string
	Title         string
	Description   string
	OccurredAt    time.Time
}

// Describe renders evt as a feed entry. It returns false for event types
// the feed does not show.
func Describe(evt *events.Event) (Entry, bool, error) {
	title, desc, err := describe(evt)
	if err != nil {
		return Entry{}, false, fmt.Errorf("describe %s %s: %w", evt.Type, evt.ID, err)
	}
	if title == "" {
		return Entry{}, false, nil
	}
	return Entry{
		EventID:       evt.ID,
		EventType:     evt.Type,
		AggregateType: evt.AggregateType,
		AggregateID:   evt.AggregateID,
		Actor:         evt.Actor,
		Title:         title,
		Description:   desc,
		OccurredAt:    evt.OccurredAt,
	}, true, nil
}

func describe(evt *events.Event) (title, desc string, err error) {
	switch evt.Type {
	case events.PatientRegistered, events.PatientUpdated, events.PatientDeleted:
		var d patient.EventData
		if err := evt.Decode(&d); err != nil {
			return "", "", err
		}
		return patientTitle(evt.Type, d), d.Name, nil

	case events.AppointmentScheduled, events.AppointmentRescheduled, events.AppointmentCancelled,
		events.AppointmentCompleted, events.AppointmentNoShow:
		var d appointment.EventData
		if err := evt.Decode(&d); err != nil {
			return "", "", err
		}
		desc := fmt.Sprintf("%s with %s", d.PatientName, d.DoctorName)
		if !d.AppointmentAt.IsZero() {
			desc += " at " + d.AppointmentAt.UTC().Format("02 Jan 2006 15:04 UTC")
		}
		return appointmentTitles[evt.Type], desc, nil

	case events.InventoryRestocked:
		var d inventory.EventData
		if err := evt.Decode(&d); err != nil {
			return "", "", err
		}
		return "Inventory restocked", fmt.Sprintf("%s +%d (now %s)", d.Name, d.Delta, quantity(d.Quantity, d.Unit)), nil

	case events.InventoryLowStock:
		var d inventory.EventData
		if err := evt.Decode(&d); err != nil {
			return "", "", err
		}
		return "Low stock alert", fmt.Sprintf("%s: %s left, reorder level %d", d.Name, quantity(d.Quantity, d.Unit), d.ReorderLevel), nil

	case events.PrescriptionCreated:
		var d prescription.CreatedData
		if err := evt.Decode(&d); err != nil {
			return "", "", err
		}
		return "Prescription written", fmt.Sprintf("%s for %s by %s", d.MedicineName, d.PatientName, d.DoctorName), nil

	case events.PrescriptionDispensed:
		var d prescription.DispensedData
		if err := evt.Decode(&d); err != nil {
			return "", "", err
		}
		return "Medicine dispensed", fmt.Sprintf("%s x%d for %s", d.MedicineName, d.Quantity, d.PatientName), nil

	case events.PrescriptionCancelled:
		var d prescription.CancelledData
		if err := evt.Decode(&d); err != nil {
			return "", "", err
		}
		return "Prescription cancelled", withReason(d.MedicineName, d.Reason), nil

	case events.InvoiceIssued, events.InvoicePaid, events.InvoiceVoided:
		var d billing.EventData
		if err := evt.Decode(&d); err != nil {
			return "", "", err
		}
		return invoiceDescription(evt.Type, d)

	case events.DocumentUploaded:
		var d document.EventData
		if err := evt.Decode(&d); err != nil {
			return "", "", err
		}
		name := d.Title
		if name == "" {
			name = d.FileName
		}
		return "Document uploaded", fmt.Sprintf("%s (%s)", name, d.Category), nil

	case events.UserSignedUp:
		var d struct {
			Email string `json:"email"`
		}
		if err := evt.Decode(&d); err != nil {
			return "", "", err
		}
		return "Staff account created", d.Email, nil
	}
	return "", "", nil
}

var appointmentTitles = map[events.Type]string{
	events.AppointmentScheduled:   "Appointment scheduled",
	events.AppointmentRescheduled: "Appointment rescheduled",
	events.AppointmentCancelled:   "Appointment cancelled",
	events.AppointmentCompleted:   "Appointment completed",
	events.AppointmentNoShow:      "Patient missed appointment",
}

func patientTitle(t events.Type, d patient.EventData) string {
	switch {
	case t == events.PatientRegistered:
		return "Patient admitted"
	case t == events.PatientDeleted:
		return "Patient record removed"
	case d.PreviousStatus != "" && d.Status == patient.StatusInactive:
		return "Patient discharged"
	case d.PreviousStatus != "" && d.Status == patient.StatusCritical:
		return "Patient condition critical"
	default:
		return "Patient record updated"
	}
}

func invoiceDescription(t events.Type, d billing.EventData) (string, string, error) {
	amount := fmt.Sprintf("%s, total %s", d.Number, formatMinor(d.Total))
	switch t {
	case events.InvoicePaid:
		if d.PaymentMethod != "" {
			amount += " via " + string(d.PaymentMethod)
		}
		return "Payment received", amount, nil
	case events.InvoiceVoided:
		return "Invoice voided", withReason(d.Number, d.Reason), nil
	default:
		return "Invoice issued", amount, nil
	}
}

func quantity(n int, unit string) string {
	if unit == "" {
		return fmt.Sprint(n)
	}
	return fmt.Sprintf("%d %s", n, unit)
}

func withReason(subject, reason string) string {
	if reason = strings.TrimSpace(reason); reason == "" {
		return subject
	}
	return subject + ": " + reason
}

// formatMinor renders an amount in minor units with two decimals.
func formatMinor(v int64) string {
	sign := ""
	if v < 0 {
		sign, v = "-", -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

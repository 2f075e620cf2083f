package activity

import (
	"strings"
	"testing"
	"time"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/appointment"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/billing"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/document"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/inventory"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/patient"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/prescription"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/events"
)

func mustEvent(t *testing.T, typ events.Type, aggType string, data any) *events.Event {
	t.Helper()
	evt, err := events.New(typ, aggType, "agg-1", data)
	if err != nil {
		t.Fatalf("events.New: %v", err)
	}
	return evt.WithActor("user-1")
}

func TestDescribe(t *testing.T) {
	at := time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)
	tests := []struct {
		name      string
		typ       events.Type
		data      any
		wantTitle string
		wantDesc  string
	}{
		{"registered", events.PatientRegistered,
			patient.EventData{Name: "Sarah Johnson", Status: patient.StatusActive},
			"Patient admitted", "Sarah Johnson"},
		{"discharged", events.PatientUpdated,
			patient.EventData{Name: "Sarah Johnson", Status: patient.StatusInactive, PreviousStatus: patient.StatusActive},
			"Patient discharged", "Sarah Johnson"},
		{"critical", events.PatientUpdated,
			patient.EventData{Name: "Raj Patel", Status: patient.StatusCritical, PreviousStatus: patient.StatusActive},
			"Patient condition critical", "Raj Patel"},
		{"plain update", events.PatientUpdated,
			patient.EventData{Name: "Raj Patel", Status: patient.StatusActive},
			"Patient record updated", "Raj Patel"},
		{"scheduled", events.AppointmentScheduled,
			appointment.EventData{PatientName: "Sarah Johnson", DoctorName: "Dr. Asha Rao", AppointmentAt: at},
			"Appointment scheduled", "Sarah Johnson with Dr. Asha Rao at 04 Mar 2024 09:30 UTC"},
		{"no show", events.AppointmentNoShow,
			appointment.EventData{PatientName: "Sarah Johnson", DoctorName: "Dr. Asha Rao"},
			"Patient missed appointment", "Sarah Johnson with Dr. Asha Rao"},
		{"restocked", events.InventoryRestocked,
			inventory.EventData{Name: "Paracetamol", Quantity: 450, Unit: "tablets", Delta: 200},
			"Inventory restocked", "Paracetamol +200 (now 450 tablets)"},
		{"low stock", events.InventoryLowStock,
			inventory.EventData{Name: "Insulin", Quantity: 8, ReorderLevel: 20, Unit: "vials"},
			"Low stock alert", "Insulin: 8 vials left, reorder level 20"},
		{"written", events.PrescriptionCreated,
			prescription.CreatedData{MedicineName: "Amoxicillin", PatientName: "Sarah Johnson", DoctorName: "Dr. Asha Rao"},
			"Prescription written", "Amoxicillin for Sarah Johnson by Dr. Asha Rao"},
		{"dispensed", events.PrescriptionDispensed,
			prescription.DispensedData{MedicineName: "Amoxicillin", Quantity: 10, PatientName: "Sarah Johnson"},
			"Medicine dispensed", "Amoxicillin x10 for Sarah Johnson"},
		{"prescription cancelled", events.PrescriptionCancelled,
			prescription.CancelledData{MedicineName: "Amoxicillin", Reason: " allergy "},
			"Prescription cancelled", "Amoxicillin: allergy"},
		{"issued", events.InvoiceIssued,
			billing.EventData{Number: "INV-000042", Total: 125050},
			"Invoice issued", "INV-000042, total 1250.50"},
		{"paid", events.InvoicePaid,
			billing.EventData{Number: "INV-000042", Total: 125050, PaymentMethod: billing.PaymentUPI},
			"Payment received", "INV-000042, total 1250.50 via upi"},
		{"voided", events.InvoiceVoided,
			billing.EventData{Number: "INV-000042"},
			"Invoice voided", "INV-000042"},
		{"uploaded", events.DocumentUploaded,
			document.EventData{Title: "Chest X-ray", FileName: "xray.png", Category: "imaging"},
			"Document uploaded", "Chest X-ray (imaging)"},
		{"untitled upload", events.DocumentUploaded,
			document.EventData{FileName: "xray.png", Category: "imaging"},
			"Document uploaded", "xray.png (imaging)"},
		{"signed up", events.UserSignedUp,
			map[string]string{"email": "nurse@hospital.test", "role": "staff"},
			"Staff account created", "nurse@hospital.test"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evt := mustEvent(t, tt.typ, "thing", tt.data)
			entry, ok, err := Describe(evt)
			if err != nil || !ok {
				t.Fatalf("Describe: ok=%v err=%v", ok, err)
			}
			if entry.Title != tt.wantTitle {
				t.Errorf("title = %q, want %q", entry.Title, tt.wantTitle)
			}
			if entry.Description != tt.wantDesc {
				t.Errorf("description = %q, want %q", entry.Description, tt.wantDesc)
			}
			if entry.EventID != evt.ID || entry.Actor != "user-1" || entry.AggregateID != "agg-1" {
				t.Errorf("envelope fields not copied: %+v", entry)
			}
		})
	}
}

func TestDescribeIgnoresUnknownTypes(t *testing.T) {
	evt := mustEvent(t, "ward.cleaned", "ward", map[string]string{})
	if _, ok, err := Describe(evt); ok || err != nil {
		t.Errorf("ok=%v err=%v, want ignored", ok, err)
	}
}

func TestDescribeMalformedPayload(t *testing.T) {
	evt := mustEvent(t, events.InvoicePaid, "invoice", "not an object")
	_, _, err := Describe(evt)
	if err == nil || !strings.Contains(err.Error(), evt.ID) {
		t.Errorf("err = %v", err)
	}
}

func TestFormatMinor(t *testing.T) {
	for in, want := range map[int64]string{0: "0.00", 5: "0.05", 100: "1.00", 123456: "1234.56", -250: "-2.50"} {
		if got := formatMinor(in); got != want {
			t.Errorf("formatMinor(%d) = %q, want %q", in, got, want)
		}
	}
}

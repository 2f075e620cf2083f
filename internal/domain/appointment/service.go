package appointment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/apperror"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/calendar"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/doctor"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/patient"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/events"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/listing"
)

const AggregateType = "appointment"

type PatientLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

type DoctorLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*doctor.Doctor, error)
}

// EventData is the payload of every appointment event.
type EventData struct {
	AppointmentID string     `json:"appointment_id"`
	PatientID     string     `json:"patient_id"`
	PatientName   string     `json:"patient_name"`
	DoctorID      string     `json:"doctor_id"`
	DoctorName    string     `json:"doctor_name"`
	AppointmentAt time.Time  `json:"appointment_at"`
	Status        Status     `json:"status"`
	PreviousAt    *time.Time `json:"previous_at,omitempty"`
}

type Service struct {
	store    Store
	patients PatientLookup
	doctors  DoctorLookup
	// zone is the hospital time zone; doctor hours and date filters are
	// read in it.
	zone   *calendar.Zone
	logger *zap.Logger
	now    func() time.Time
}

func NewService(store Store, patients PatientLookup, doctors DoctorLookup, zone *calendar.Zone, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, patients: patients, doctors: doctors, zone: zone, logger: logger, now: time.Now}
}

func eventData(a *Appointment) EventData {
	return EventData{
		AppointmentID: a.ID.String(),
		PatientID:     a.PatientID.String(),
		PatientName:   a.PatientName,
		DoctorID:      a.DoctorID.String(),
		DoctorName:    a.DoctorName,
		AppointmentAt: a.AppointmentAt,
		Status:        a.Status,
	}
}

// Schedule books a new appointment after checking that both parties exist
// and the doctor is available.
func (s *Service) Schedule(ctx context.Context, in ScheduleInput) (*Appointment, error) {
	if err := in.Validate(s.now()); err != nil {
		return nil, err
	}
	p, err := s.patients.Get(ctx, in.PatientID)
	if err != nil {
		return nil, err
	}
	d, err := s.doctors.Get(ctx, in.DoctorID)
	if err != nil {
		return nil, err
	}
	if err := d.CheckAvailable(in.AppointmentAt, SlotLength, s.zone.Location(ctx)); err != nil {
		return nil, err
	}

	a := &Appointment{
		ID:            uuid.New(),
		PatientID:     p.ID,
		DoctorID:      d.ID,
		PatientName:   p.FullName(),
		DoctorName:    d.DisplayName(),
		Department:    d.Department,
		AppointmentAt: in.AppointmentAt.UTC(),
		Reason:        in.Reason,
		Notes:         strings.TrimSpace(in.Notes),
		Status:        StatusScheduled,
		CreatedBy:     events.ActorFromContext(ctx),
	}
	evt, err := events.Record(ctx, events.AppointmentScheduled, AggregateType, a.ID.String(), eventData(a))
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, a, evt); err != nil {
		return nil, err
	}

	s.logger.Info("appointment scheduled",
		zap.String("appointment_id", a.ID.String()),
		zap.String("doctor_id", a.DoctorID.String()),
		zap.Time("at", a.AppointmentAt))
	return a, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.store.Get(ctx, id)
}

// Update reschedules or edits a scheduled appointment.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*Appointment, error) {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status != StatusScheduled {
		return nil, apperror.InvalidState(fmt.Sprintf("appointment is %s", a.Status))
	}

	var evt *events.Event
	if in.AppointmentAt != nil && !in.AppointmentAt.Equal(a.AppointmentAt) {
		if !in.AppointmentAt.After(s.now()) {
			v := &apperror.ValidationError{}
			v.Add("appointment_at", "must be in the future")
			return nil, v
		}
		d, err := s.doctors.Get(ctx, a.DoctorID)
		if err != nil {
			return nil, err
		}
		if err := d.CheckAvailable(*in.AppointmentAt, SlotLength, s.zone.Location(ctx)); err != nil {
			return nil, err
		}
		previous := a.AppointmentAt
		a.AppointmentAt = in.AppointmentAt.UTC()

		data := eventData(a)
		data.PreviousAt = &previous
		evt, err = events.Record(ctx, events.AppointmentRescheduled, AggregateType, a.ID.String(), data)
		if err != nil {
			return nil, err
		}
	}
	if in.Reason != nil {
		a.Reason = strings.TrimSpace(*in.Reason)
	}
	if in.Notes != nil {
		a.Notes = strings.TrimSpace(*in.Notes)
	}

	if err := s.store.Update(ctx, a, evt); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*Appointment, error) {
	return s.transition(ctx, id, StatusCancelled, strings.TrimSpace(reason), events.AppointmentCancelled)
}

// Complete closes the visit and records it as the patient's last visit.
func (s *Service) Complete(ctx context.Context, id uuid.UUID, notes string) (*Appointment, error) {
	return s.transition(ctx, id, StatusCompleted, strings.TrimSpace(notes), events.AppointmentCompleted)
}

func (s *Service) MarkNoShow(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusNoShow, "", events.AppointmentNoShow)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to Status, notes string, eventType events.Type) (*Appointment, error) {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !transitionAllowed(a.Status, to) {
		return nil, apperror.InvalidState(fmt.Sprintf("appointment is %s", a.Status))
	}

	ch := StatusChange{ID: id, To: to, Notes: notes}
	if to == StatusCompleted {
		visit := calendar.Of(a.AppointmentAt.In(s.zone.Location(ctx)))
		ch.Visit = &visit
	}

	a.Status = to
	if notes != "" {
		a.Notes = notes
	}
	evt, err := events.Record(ctx, eventType, AggregateType, id.String(), eventData(a))
	if err != nil {
		return nil, err
	}
	if err := s.store.ChangeStatus(ctx, ch, evt); err != nil {
		return nil, err
	}
	s.logger.Info("appointment status changed",
		zap.String("appointment_id", id.String()),
		zap.String("status", string(to)))
	return a, nil
}

// List parses the patient_id, doctor_id, status, from and to filters.
// Dates are inclusive days in the hospital zone.
func (s *Service) List(ctx context.Context, params listing.Params) (*listing.Page[Appointment], error) {
	f, err := s.parseFilter(params, s.zone.Location(ctx))
	if err != nil {
		return nil, err
	}
	return s.store.List(ctx, params, f)
}

// ForPatient returns a patient's most recent appointments.
func (s *Service) ForPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]Appointment, error) {
	page, err := s.store.List(ctx, listing.Params{Sort: "appointment_at", Desc: true, Limit: limit},
		Filter{PatientID: patientID})
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

func (s *Service) parseFilter(params listing.Params, loc *time.Location) (Filter, error) {
	var f Filter
	v := &apperror.ValidationError{}

	if raw, ok := params.Filter("patient_id"); ok {
		id, err := uuid.Parse(raw)
		v.Check(err == nil, "patient_id", "must be a UUID")
		f.PatientID = id
	}
	if raw, ok := params.Filter("doctor_id"); ok {
		id, err := uuid.Parse(raw)
		v.Check(err == nil, "doctor_id", "must be a UUID")
		f.DoctorID = id
	}
	if raw, ok := params.Filter("status"); ok {
		st := Status(raw)
		switch st {
		case StatusScheduled, StatusCompleted, StatusCancelled, StatusNoShow:
			f.Status = st
		default:
			v.Add("status", "unknown status")
		}
	}
	if raw, ok := params.Filter("from"); ok {
		d, err := calendar.Parse(raw)
		v.Check(err == nil, "from", "must be YYYY-MM-DD")
		if err == nil {
			f.From = d.Time(loc)
		}
	}
	if raw, ok := params.Filter("to"); ok {
		d, err := calendar.Parse(raw)
		v.Check(err == nil, "to", "must be YYYY-MM-DD")
		if err == nil {
			f.To = d.AddDays(1).Time(loc)
		}
	}
	if !f.From.IsZero() && !f.To.IsZero() && !f.To.After(f.From) {
		v.Add("to", "must not be before from")
	}
	return f, v.Err()
}

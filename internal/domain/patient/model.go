// Package patient manages patient registration records.
package patient

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/apperror"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/calendar"
)

type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderOther  Gender = "Other"
)

type Status string

const (
	StatusActive   Status = "Active"
	StatusInactive Status = "Inactive"
	StatusCritical Status = "Critical"
)

// BloodGroups lists the accepted ABO/Rh groups.
var BloodGroups = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}

// MedicalHistory is stored as a JSON document on the patient row.
type MedicalHistory struct {
	Conditions  []string `json:"conditions"`
	Allergies   []string `json:"allergies"`
	Medications []string `json:"medications"`
	Notes       string   `json:"notes"`
}

type Patient struct {
	ID               uuid.UUID      `json:"id" db:"id"`
	FirstName        string         `json:"first_name" db:"first_name"`
	LastName         string         `json:"last_name" db:"last_name"`
	Email            string         `json:"email" db:"email"`
	Phone            string         `json:"phone" db:"phone"`
	Gender           Gender         `json:"gender" db:"gender"`
	DateOfBirth      *calendar.Date `json:"date_of_birth,omitempty" db:"date_of_birth"`
	BloodGroup       string         `json:"blood_group" db:"blood_group"`
	Address          string         `json:"address" db:"address"`
	City             string         `json:"city" db:"city"`
	State            string         `json:"state" db:"state"`
	Pincode          string         `json:"pincode" db:"pincode"`
	EmergencyContact string         `json:"emergency_contact" db:"emergency_contact"`
	EmergencyPhone   string         `json:"emergency_phone" db:"emergency_phone"`
	MedicalHistory   MedicalHistory `json:"medical_history" db:"medical_history"`
	Status           Status         `json:"status" db:"status"`
	RegistrationDate calendar.Date  `json:"registration_date" db:"registration_date"`
	LastVisitDate    *calendar.Date `json:"last_visit_date,omitempty" db:"last_visit_date"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at" db:"updated_at"`
}

// FullName joins first and last name.
func (p *Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Normalize trims free-text fields and applies defaults.
func (p *Patient) Normalize() {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	p.Phone = strings.TrimSpace(p.Phone)
	p.BloodGroup = strings.ToUpper(strings.TrimSpace(p.BloodGroup))
	if p.Status == "" {
		p.Status = StatusActive
	}
	if p.MedicalHistory.Conditions == nil {
		p.MedicalHistory.Conditions = []string{}
	}
	if p.MedicalHistory.Allergies == nil {
		p.MedicalHistory.Allergies = []string{}
	}
	if p.MedicalHistory.Medications == nil {
		p.MedicalHistory.Medications = []string{}
	}
}

// Validate checks the registration form rules. today bounds the birth date.
func (p *Patient) Validate(today calendar.Date) error {
	v := &apperror.ValidationError{}

	v.Check(p.FirstName != "", "first_name", "is required")
	v.Check(p.LastName != "", "last_name", "is required")
	v.Check(utf8.RuneCountInString(p.FirstName)+utf8.RuneCountInString(p.LastName) >= 2,
		"name", "must be at least 2 characters")
	if p.Email != "" {
		v.Check(apperror.IsEmail(p.Email), "email", "is not a valid e-mail address")
	}
	if p.Phone != "" {
		v.Check(utf8.RuneCountInString(p.Phone) >= 6, "phone", "must be at least 6 characters")
	}
	if p.EmergencyPhone != "" {
		v.Check(utf8.RuneCountInString(p.EmergencyPhone) >= 6, "emergency_phone", "must be at least 6 characters")
	}
	switch p.Gender {
	case "", GenderMale, GenderFemale, GenderOther:
	default:
		v.Add("gender", "must be Male, Female or Other")
	}
	switch p.Status {
	case StatusActive, StatusInactive, StatusCritical:
	default:
		v.Add("status", "must be Active, Inactive or Critical")
	}
	if p.BloodGroup != "" {
		v.Check(validBloodGroup(p.BloodGroup), "blood_group", "is not a recognised blood group")
	}
	if p.DateOfBirth != nil {
		v.Check(!p.DateOfBirth.After(today), "date_of_birth", "cannot be in the future")
	}
	return v.Err()
}

func validBloodGroup(g string) bool {
	for _, bg := range BloodGroups {
		if g == bg {
			return true
		}
	}
	return false
}

// Package settings manages staff profiles, roles and hospital-wide
// settings.
package settings

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/apperror"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleDoctor   Role = "doctor"
	RoleNurse    Role = "nurse"
	RoleStaff    Role = "staff"
	RolePharmacy Role = "pharmacy"
	RoleLab      Role = "lab"
)

// DefaultRole is given to new sign-ups.
const DefaultRole = RoleStaff

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDoctor, RoleNurse, RoleStaff, RolePharmacy, RoleLab:
		return true
	}
	return false
}

type Profile struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Phone       string    `json:"phone"`
	Department  string    `json:"department"`
	Designation string    `json:"designation"`
	AvatarURL   string    `json:"avatar_url"`
	Role        Role      `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProfileInput holds the fields a user may change on their own profile.
type ProfileInput struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Phone       string `json:"phone"`
	Department  string `json:"department"`
	Designation string `json:"designation"`
	AvatarURL   string `json:"avatar_url"`
}

var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 \-]{6,18}[0-9]$`)

func (in *ProfileInput) Validate() error {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Department = strings.TrimSpace(in.Department)
	in.Designation = strings.TrimSpace(in.Designation)
	in.AvatarURL = strings.TrimSpace(in.AvatarURL)

	v := &apperror.ValidationError{}
	v.Check(len(in.FirstName) <= 100, "first_name", "must be at most 100 characters")
	v.Check(len(in.LastName) <= 100, "last_name", "must be at most 100 characters")
	if in.Phone != "" {
		v.Check(phonePattern.MatchString(in.Phone), "phone", "is not a valid phone number")
	}
	if in.AvatarURL != "" {
		u, err := url.Parse(in.AvatarURL)
		v.Check(err == nil && (u.Scheme == "https" || u.Scheme == "http") && u.Host != "",
			"avatar_url", "must be an http(s) URL")
	}
	return v.Err()
}

// Setting keys.
const (
	KeyHospitalName = "hospital_name"
	KeyCurrency     = "currency"
	KeyTaxRateBPS   = "tax_rate_bps"
	KeyTimezone     = "timezone"
)

// Hospital is the typed view of the settings table.
type Hospital struct {
	HospitalName string `json:"hospital_name"`
	Currency     string `json:"currency"`
	TaxRateBPS   int    `json:"tax_rate_bps"`
	Timezone     string `json:"timezone"`
}

// DefaultHospital mirrors the seeded settings rows.
func DefaultHospital() Hospital {
	return Hospital{
		HospitalName: "Arogya Hospital",
		Currency:     "INR",
		TaxRateBPS:   0,
		Timezone:     "Asia/Kolkata",
	}
}

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

func (h *Hospital) Validate() error {
	h.HospitalName = strings.TrimSpace(h.HospitalName)
	h.Currency = strings.ToUpper(strings.TrimSpace(h.Currency))
	h.Timezone = strings.TrimSpace(h.Timezone)

	v := &apperror.ValidationError{}
	v.Check(h.HospitalName != "", "hospital_name", "is required")
	v.Check(currencyPattern.MatchString(h.Currency), "currency", "must be an ISO 4217 code")
	v.Check(h.TaxRateBPS >= 0 && h.TaxRateBPS <= 10000, "tax_rate_bps", "must be between 0 and 10000")
	_, err := time.LoadLocation(h.Timezone)
	v.Check(h.Timezone != "" && err == nil, "timezone", "is not a known time zone")
	return v.Err()
}

func (h Hospital) values() map[string]string {
	return map[string]string{
		KeyHospitalName: h.HospitalName,
		KeyCurrency:     h.Currency,
		KeyTaxRateBPS:   strconv.Itoa(h.TaxRateBPS),
		KeyTimezone:     h.Timezone,
	}
}

// hospitalFrom overlays stored values on the defaults.
func hospitalFrom(values map[string]string) (Hospital, error) {
	h := DefaultHospital()
	if v, ok := values[KeyHospitalName]; ok {
		h.HospitalName = v
	}
	if v, ok := values[KeyCurrency]; ok {
		h.Currency = v
	}
	if v, ok := values[KeyTimezone]; ok {
		h.Timezone = v
	}
	if v, ok := values[KeyTaxRateBPS]; ok {
		bps, err := strconv.Atoi(v)
		if err != nil {
			return h, fmt.Errorf("setting %s: %w", KeyTaxRateBPS, err)
		}
		h.TaxRateBPS = bps
	}
	return h, nil
}

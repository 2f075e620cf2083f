package auth

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/apperror"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/settings"
)

// DemoPassword is the password of every seeded demo account.
const DemoPassword = "password123"

type localAccount struct {
	id   uuid.UUID
	hash []byte
	role settings.Role
}

// Account seeds the local directory.
type Account struct {
	Email    string
	Password string
	Role     settings.Role
}

// DemoAccounts are the staff logins available without a remote provider.
func DemoAccounts() []Account {
	return []Account{
		{Email: "dr.sharma@hospital.com", Password: DemoPassword, Role: settings.RoleDoctor},
		{Email: "dr.patel@hospital.com", Password: DemoPassword, Role: settings.RoleDoctor},
		{Email: "nurse.gita@hospital.com", Password: DemoPassword, Role: settings.RoleNurse},
		{Email: "admin@hospital.com", Password: DemoPassword, Role: settings.RoleAdmin},
		{Email: "lab.deepak@hospital.com", Password: DemoPassword, Role: settings.RoleLab},
		{Email: "pharmacy.anita@hospital.com", Password: DemoPassword, Role: settings.RolePharmacy},
	}
}

// LocalID derives the stable user id of a local account from its email,
// so sessions and profiles survive restarts.
func LocalID(email string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("local:"+normalizeEmail(email)))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Directory is the in-memory account list used when the remote provider
// is unavailable.
type Directory struct {
	mu       sync.RWMutex
	cost     int
	accounts map[string]*localAccount
}

// NewDirectory creates an empty directory. cost <= 0 uses
// bcrypt.DefaultCost.
func NewDirectory(cost int) *Directory {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &Directory{cost: cost, accounts: make(map[string]*localAccount)}
}

func (d *Directory) Seed(accounts ...Account) error {
	for _, a := range accounts {
		if _, err := d.Register(a.Email, a.Password, a.Role); err != nil {
			return fmt.Errorf("seed %s: %w", a.Email, err)
		}
	}
	return nil
}

// Register adds an account. Registering an email twice is a conflict.
func (d *Directory) Register(email, password string, role settings.Role) (*Identity, error) {
	email = normalizeEmail(email)
	hash, err := bcrypt.GenerateFromPassword([]byte(password), d.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.accounts[email]; ok {
		return nil, apperror.Conflict("an account with this email already exists")
	}
	acct := &localAccount{id: LocalID(email), hash: hash, role: role}
	d.accounts[email] = acct
	return acct.identity(email), nil
}

func (d *Directory) Authenticate(email, password string) (*Identity, error) {
	email = normalizeEmail(email)
	d.mu.RLock()
	acct, ok := d.accounts[email]
	d.mu.RUnlock()
	if !ok {
		// Spend the same time as a real comparison.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acct.hash, []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("compare password: %w", err)
	}
	return acct.identity(email), nil
}

func (d *Directory) Has(email string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.accounts[normalizeEmail(email)]
	return ok
}

func (d *Directory) SetPassword(email, password string) error {
	email = normalizeEmail(email)
	hash, err := bcrypt.GenerateFromPassword([]byte(password), d.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	acct, ok := d.accounts[email]
	if !ok {
		return apperror.NotFound("account", email)
	}
	acct.hash = hash
	return nil
}

func (a *localAccount) identity(email string) *Identity {
	return &Identity{ID: a.id, Email: email, RoleHint: a.role, Source: SourceLocal}
}

var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.MinCost)

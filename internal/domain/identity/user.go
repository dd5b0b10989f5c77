package identity

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/shared"
)

// Role is the kind of account a user holds.
type Role string

const (
	RoleBuyer Role = "buyer"
	RoleShop  Role = "shop"
	RoleAdmin Role = "admin"
)

// IsValid checks if the role is a known value
func (r Role) IsValid() bool {
	switch r {
	case RoleBuyer, RoleShop, RoleAdmin:
		return true
	}
	return false
}

// String returns the string representation
func (r Role) String() string {
	return string(r)
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// User mirrors an account of the external identity provider.
// Credentials live with the provider; only profile and role are kept here.
type User struct {
	shared.BaseAggregateRoot
	Email     string
	FirstName string
	LastName  string
	Company   string
	Position  string
	Role      Role
	IsActive  bool
}

// NewUser creates an active user with the given id as issued by the identity provider.
func NewUser(id uuid.UUID, email string, role Role) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if !role.IsValid() {
		return nil, shared.NewValidationError("Invalid role: %s", role)
	}
	if id == uuid.Nil {
		return nil, shared.NewValidationError("User ID is required")
	}

	user := &User{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Email:             email,
		Role:              role,
		IsActive:          true,
	}
	user.ID = id
	return user, nil
}

// SetName updates the display name parts
func (u *User) SetName(first, last string) {
	u.FirstName = strings.TrimSpace(first)
	u.LastName = strings.TrimSpace(last)
}

// SetCompany updates the employer details
func (u *User) SetCompany(company, position string) {
	u.Company = strings.TrimSpace(company)
	u.Position = strings.TrimSpace(position)
}

// Sync applies the latest claims from the identity provider.
// Returns true when anything changed.
func (u *User) Sync(email string, role Role) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validateEmail(email); err != nil {
		return false, err
	}
	if !role.IsValid() {
		return false, shared.NewValidationError("Invalid role: %s", role)
	}
	if u.Email == email && u.Role == role {
		return false, nil
	}
	u.Email = email
	u.Role = role
	return true, nil
}

// Deactivate blocks the user from acting
func (u *User) Deactivate() {
	u.IsActive = false
}

// FullName returns the name for greetings, falling back to the email
func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

func validateEmail(email string) error {
	if email == "" {
		return shared.NewValidationError("Email is required")
	}
	if len(email) > 200 {
		return shared.NewValidationError("Email cannot exceed 200 characters")
	}
	if !emailRegex.MatchString(email) {
		return shared.NewValidationError("Invalid email format")
	}
	return nil
}

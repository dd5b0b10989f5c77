package identity

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/shared"
)

var (
	phoneRegex = regexp.MustCompile(`^\+?1?\d{9,15}$`)
	cityRegex  = regexp.MustCompile(`^[a-zA-Z\s-]+$`)
)

// Contact is a buyer's delivery address
type Contact struct {
	shared.BaseEntity
	UserID    uuid.UUID
	Name      string
	Phone     string
	City      string
	Street    string
	House     string
	Structure string
	Building  string
	Apartment string
}

// ContactInput holds the fields of a new contact
type ContactInput struct {
	Name      string
	Phone     string
	City      string
	Street    string
	House     string
	Structure string
	Building  string
	Apartment string
}

// NewContact validates and creates a contact owned by userID
func NewContact(userID uuid.UUID, in ContactInput) (*Contact, error) {
	if userID == uuid.Nil {
		return nil, shared.NewValidationError("Contact owner is required")
	}
	c := &Contact{
		BaseEntity: shared.NewBaseEntity(),
		UserID:     userID,
		Name:       strings.TrimSpace(in.Name),
		Phone:      strings.TrimSpace(in.Phone),
		City:       strings.TrimSpace(in.City),
		Street:     strings.TrimSpace(in.Street),
		House:      strings.TrimSpace(in.House),
		Structure:  strings.TrimSpace(in.Structure),
		Building:   strings.TrimSpace(in.Building),
		Apartment:  strings.TrimSpace(in.Apartment),
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks phone format, city characters and required address parts
func (c *Contact) Validate() error {
	if !phoneRegex.MatchString(c.Phone) {
		return shared.NewValidationError("Phone number must be entered in the format: '+999999999'. Up to 15 digits allowed.")
	}
	if !cityRegex.MatchString(c.City) {
		return shared.NewValidationError("City name must contain only letters, spaces and hyphens")
	}
	if c.Street == "" {
		return shared.NewValidationError("Street is required")
	}
	if c.House == "" {
		return shared.NewValidationError("House is required")
	}
	for field, v := range map[string]string{
		"name": c.Name, "street": c.Street, "house": c.House, "structure": c.Structure,
		"building": c.Building, "apartment": c.Apartment,
	} {
		if len(v) > 100 {
			return shared.NewValidationError("Contact %s cannot exceed 100 characters", field)
		}
	}
	return nil
}

// BelongsTo reports whether the contact is owned by userID
func (c *Contact) BelongsTo(userID uuid.UUID) bool {
	return c.UserID == userID
}

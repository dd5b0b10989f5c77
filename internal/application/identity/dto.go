package identity

import (
	"time"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/identity"
)

// EnsureUserRequest carries the verified claims of an access token
type EnsureUserRequest struct {
	UserID    uuid.UUID
	Email     string
	Role      string
	FirstName string
	LastName  string
}

// UpdateProfileRequest represents a request to update the caller's profile
type UpdateProfileRequest struct {
	FirstName string `json:"first_name" binding:"max=100"`
	LastName  string `json:"last_name" binding:"max=100"`
	Company   string `json:"company" binding:"max=100"`
	Position  string `json:"position" binding:"max=100"`
}

// CreateContactRequest represents a request to add a delivery address
type CreateContactRequest struct {
	Name      string `json:"name" binding:"max=100"`
	Phone     string `json:"phone" binding:"required"`
	City      string `json:"city" binding:"required,max=50"`
	Street    string `json:"street" binding:"required,max=100"`
	House     string `json:"house" binding:"required,max=15"`
	Structure string `json:"structure" binding:"max=15"`
	Building  string `json:"building" binding:"max=15"`
	Apartment string `json:"apartment" binding:"max=15"`
}

// UserResponse represents a user in API responses
type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Company   string    `json:"company,omitempty"`
	Position  string    `json:"position,omitempty"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Actor returns the caller context for the user
func (r UserResponse) Actor() identity.Actor {
	return identity.NewActor(r.ID, r.Email, identity.Role(r.Role))
}

// ContactResponse represents a contact in API responses
type ContactResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name,omitempty"`
	Phone     string    `json:"phone"`
	City      string    `json:"city"`
	Street    string    `json:"street"`
	House     string    `json:"house"`
	Structure string    `json:"structure,omitempty"`
	Building  string    `json:"building,omitempty"`
	Apartment string    `json:"apartment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ToUserResponse converts a domain User to UserResponse
func ToUserResponse(u *identity.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Company:   u.Company,
		Position:  u.Position,
		Role:      string(u.Role),
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

// ToContactResponse converts a domain Contact to ContactResponse
func ToContactResponse(c *identity.Contact) ContactResponse {
	return ContactResponse{
		ID:        c.ID,
		Name:      c.Name,
		Phone:     c.Phone,
		City:      c.City,
		Street:    c.Street,
		House:     c.House,
		Structure: c.Structure,
		Building:  c.Building,
		Apartment: c.Apartment,
		CreatedAt: c.CreatedAt,
	}
}

package identity

import "github.com/google/uuid"

// Actor is the caller context handed to every mutating operation.
// Capability checks are asked of the actor, never inferred from entity types.
type Actor struct {
	UserID uuid.UUID
	Email  string
	Role   Role
}

// NewActor builds the caller context
func NewActor(userID uuid.UUID, email string, role Role) Actor {
	return Actor{UserID: userID, Email: email, Role: role}
}

// SystemActor is used by background jobs acting with administrative rights.
func SystemActor() Actor {
	return Actor{Role: RoleAdmin}
}

// IsAdmin reports whether the actor may confirm orders and advance statuses
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// IsShop reports whether the actor publishes a catalog
func (a Actor) IsShop() bool {
	return a.Role == RoleShop
}

// IsBuyer reports whether the actor places orders
func (a Actor) IsBuyer() bool {
	return a.Role == RoleBuyer
}

// Is reports whether the actor is the given user
func (a Actor) Is(userID uuid.UUID) bool {
	return a.UserID != uuid.Nil && a.UserID == userID
}

// IsAuthenticated reports whether the actor carries an identity
func (a Actor) IsAuthenticated() bool {
	return a.UserID != uuid.Nil && a.Role.IsValid()
}

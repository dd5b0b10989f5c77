package identity

import (
	"context"

	"github.com/google/uuid"
)

// UserRepository defines the interface for user persistence
type UserRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	// Save inserts or updates the user
	Save(ctx context.Context, user *User) error
}

// ContactRepository defines the interface for contact persistence
type ContactRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Contact, error)
	FindByUser(ctx context.Context, userID uuid.UUID) ([]*Contact, error)
	Save(ctx context.Context, contact *Contact) error
	Delete(ctx context.Context, id uuid.UUID) error
}

package identity

import (
	"context"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/identity"
	"github.com/procurement/backend/internal/domain/shared"
)

// ContactService manages buyers' delivery addresses
type ContactService struct {
	contactRepo identity.ContactRepository
}

// NewContactService creates a new ContactService
func NewContactService(contactRepo identity.ContactRepository) *ContactService {
	return &ContactService{contactRepo: contactRepo}
}

// List returns the caller's contacts, oldest first
func (s *ContactService) List(ctx context.Context, actor identity.Actor) ([]ContactResponse, error) {
	contacts, err := s.contactRepo.FindByUser(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	responses := make([]ContactResponse, len(contacts))
	for i, c := range contacts {
		responses[i] = ToContactResponse(c)
	}
	return responses, nil
}

// Create adds a delivery address for the caller
func (s *ContactService) Create(ctx context.Context, actor identity.Actor, req CreateContactRequest) (*ContactResponse, error) {
	contact, err := identity.NewContact(actor.UserID, identity.ContactInput{
		Name:      req.Name,
		Phone:     req.Phone,
		City:      req.City,
		Street:    req.Street,
		House:     req.House,
		Structure: req.Structure,
		Building:  req.Building,
		Apartment: req.Apartment,
	})
	if err != nil {
		return nil, err
	}
	if err := s.contactRepo.Save(ctx, contact); err != nil {
		return nil, err
	}
	response := ToContactResponse(contact)
	return &response, nil
}

// Delete removes one of the caller's contacts. Contacts of other users are
// reported as missing.
func (s *ContactService) Delete(ctx context.Context, actor identity.Actor, contactID uuid.UUID) error {
	contact, err := s.contactRepo.FindByID(ctx, contactID)
	if err != nil {
		return err
	}
	if !contact.BelongsTo(actor.UserID) {
		return shared.NewNotFoundError("contact", contactID)
	}
	return s.contactRepo.Delete(ctx, contactID)
}

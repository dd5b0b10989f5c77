package catalog

import (
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/identity"
	"github.com/procurement/backend/internal/domain/shared"
)

// ShopState represents whether a shop accepts new orders
type ShopState string

const (
	ShopStateOpen   ShopState = "open"
	ShopStateClosed ShopState = "closed"
)

// IsValid checks if the state is a known value
func (s ShopState) IsValid() bool {
	return s == ShopStateOpen || s == ShopStateClosed
}

// String returns the string representation
func (s ShopState) String() string {
	return string(s)
}

// Shop is a supplier account publishing one catalog.
// Every shop has exactly one owning user.
type Shop struct {
	shared.BaseAggregateRoot
	Name    string
	URL     string
	OwnerID uuid.UUID
	State   ShopState
}

// NewShop creates an open shop owned by ownerID
func NewShop(ownerID uuid.UUID, name string) (*Shop, error) {
	name = strings.TrimSpace(name)
	if err := validateShopName(name); err != nil {
		return nil, err
	}
	if ownerID == uuid.Nil {
		return nil, shared.NewValidationError("Shop owner is required")
	}
	return &Shop{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              name,
		OwnerID:           ownerID,
		State:             ShopStateOpen,
	}, nil
}

// SetURL records where the shop publishes its price list
func (s *Shop) SetURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		s.URL = ""
		return nil
	}
	if err := ValidateSourceURL(raw); err != nil {
		return err
	}
	s.URL = raw
	return nil
}

// SetState toggles order acceptance. Only the owner or an admin may do so.
func (s *Shop) SetState(actor identity.Actor, state ShopState) error {
	if !state.IsValid() {
		return shared.NewValidationError("Invalid shop state: %s", state)
	}
	if !actor.IsAdmin() && !(actor.IsShop() && actor.Is(s.OwnerID)) {
		return shared.NewAuthorizationError("Only the shop owner or an admin may change the shop state")
	}
	s.State = state
	return nil
}

// IsOpen reports whether the shop accepts orders
func (s *Shop) IsOpen() bool {
	return s.State == ShopStateOpen
}

// IsOwnedBy reports whether userID owns the shop
func (s *Shop) IsOwnedBy(userID uuid.UUID) bool {
	return s.OwnerID == userID
}

// ValidateSourceURL accepts absolute http(s) URLs only
func ValidateSourceURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return shared.NewValidationError("Invalid URL: %s", raw)
	}
	return nil
}

func validateShopName(name string) error {
	if name == "" {
		return shared.NewValidationError("Shop name is required")
	}
	if len(name) > 100 {
		return shared.NewValidationError("Shop name cannot exceed 100 characters")
	}
	return nil
}

package persistence

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/identity"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormUserRepository implements UserRepository using GORM
type GormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a new GormUserRepository
func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

// FindByID finds a user by ID
func (r *GormUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*identity.User, error) {
	var model models.UserModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, wrapErr("find user", err, shared.NewNotFoundError("user", id))
	}
	return model.ToDomain(), nil
}

// FindByIDs loads users in bulk; unknown ids are skipped
func (r *GormUserRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*identity.User, error) {
	if len(ids) == 0 {
		return []*identity.User{}, nil
	}
	var userModels []models.UserModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&userModels).Error; err != nil {
		return nil, wrapErr("find users", err, nil)
	}
	users := make([]*identity.User, len(userModels))
	for i := range userModels {
		users[i] = userModels[i].ToDomain()
	}
	return users, nil
}

// FindByEmail finds a user by email, case-insensitively
func (r *GormUserRepository) FindByEmail(ctx context.Context, email string) (*identity.User, error) {
	if email == "" {
		return nil, shared.ErrNotFound
	}
	var model models.UserModel
	if err := r.db.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(email)).
		First(&model).Error; err != nil {
		return nil, wrapErr("find user by email", err, shared.NewNotFoundError("user", email))
	}
	return model.ToDomain(), nil
}

// Save inserts or updates the user
func (r *GormUserRepository) Save(ctx context.Context, user *identity.User) error {
	model := models.UserModelFromDomain(user)
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return wrapErr("save user", err, nil)
	}
	return nil
}

var _ identity.UserRepository = (*GormUserRepository)(nil)

// GormContactRepository implements ContactRepository using GORM
type GormContactRepository struct {
	db *gorm.DB
}

// NewGormContactRepository creates a new GormContactRepository
func NewGormContactRepository(db *gorm.DB) *GormContactRepository {
	return &GormContactRepository{db: db}
}

// FindByID finds a contact by ID
func (r *GormContactRepository) FindByID(ctx context.Context, id uuid.UUID) (*identity.Contact, error) {
	var model models.ContactModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, wrapErr("find contact", err, shared.NewNotFoundError("contact", id))
	}
	return model.ToDomain(), nil
}

// FindByUser lists a user's contacts, oldest first
func (r *GormContactRepository) FindByUser(ctx context.Context, userID uuid.UUID) ([]*identity.Contact, error) {
	var contactModels []models.ContactModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&contactModels).Error; err != nil {
		return nil, wrapErr("find contacts", err, nil)
	}
	contacts := make([]*identity.Contact, len(contactModels))
	for i := range contactModels {
		contacts[i] = contactModels[i].ToDomain()
	}
	return contacts, nil
}

// Save inserts or updates the contact
func (r *GormContactRepository) Save(ctx context.Context, contact *identity.Contact) error {
	return wrapErr("save contact", r.db.WithContext(ctx).Save(models.ContactModelFromDomain(contact)).Error, nil)
}

// Delete removes a contact by ID
func (r *GormContactRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.ContactModel{}, "id = ?", id)
	if result.Error != nil {
		return wrapErr("delete contact", result.Error, nil)
	}
	if result.RowsAffected == 0 {
		return shared.NewNotFoundError("contact", id)
	}
	return nil
}

var _ identity.ContactRepository = (*GormContactRepository)(nil)

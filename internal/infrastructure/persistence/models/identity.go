package models

import (
	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/identity"
)

// UserModel is the persistence model for mirrored identity-provider users
type UserModel struct {
	AggregateModel
	Email     string        `gorm:"type:varchar(200);not null;uniqueIndex"`
	FirstName string        `gorm:"type:varchar(30)"`
	LastName  string        `gorm:"type:varchar(30)"`
	Company   string        `gorm:"type:varchar(100)"`
	Position  string        `gorm:"type:varchar(100)"`
	Role      identity.Role `gorm:"type:varchar(20);not null;index"`
	IsActive  bool          `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (UserModel) TableName() string {
	return "users"
}

// ToDomain converts the persistence model to a domain User
func (m *UserModel) ToDomain() *identity.User {
	return &identity.User{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Email:             m.Email,
		FirstName:         m.FirstName,
		LastName:          m.LastName,
		Company:           m.Company,
		Position:          m.Position,
		Role:              m.Role,
		IsActive:          m.IsActive,
	}
}

// FromDomain populates the persistence model from a domain User
func (m *UserModel) FromDomain(u *identity.User) {
	m.FromDomainAggregateRoot(u.BaseAggregateRoot)
	m.Email = u.Email
	m.FirstName = u.FirstName
	m.LastName = u.LastName
	m.Company = u.Company
	m.Position = u.Position
	m.Role = u.Role
	m.IsActive = u.IsActive
}

// UserModelFromDomain creates a new persistence model from a domain User
func UserModelFromDomain(u *identity.User) *UserModel {
	m := &UserModel{}
	m.FromDomain(u)
	return m
}

// ContactModel is the persistence model for buyer delivery contacts
type ContactModel struct {
	BaseModel
	UserID    uuid.UUID `gorm:"type:uuid;not null;index"`
	Name      string    `gorm:"type:varchar(100)"`
	Phone     string    `gorm:"type:varchar(20);not null"`
	City      string    `gorm:"type:varchar(100);not null"`
	Street    string    `gorm:"type:varchar(100);not null"`
	House     string    `gorm:"type:varchar(100);not null"`
	Structure string    `gorm:"type:varchar(100)"`
	Building  string    `gorm:"type:varchar(100)"`
	Apartment string    `gorm:"type:varchar(100)"`
}

// TableName returns the table name for GORM
func (ContactModel) TableName() string {
	return "contacts"
}

// ToDomain converts the persistence model to a domain Contact
func (m *ContactModel) ToDomain() *identity.Contact {
	return &identity.Contact{
		BaseEntity: m.BaseModel.ToDomain(),
		UserID:     m.UserID,
		Name:       m.Name,
		Phone:      m.Phone,
		City:       m.City,
		Street:     m.Street,
		House:      m.House,
		Structure:  m.Structure,
		Building:   m.Building,
		Apartment:  m.Apartment,
	}
}

// ContactModelFromDomain creates a new persistence model from a domain Contact
func ContactModelFromDomain(c *identity.Contact) *ContactModel {
	m := &ContactModel{
		UserID:    c.UserID,
		Name:      c.Name,
		Phone:     c.Phone,
		City:      c.City,
		Street:    c.Street,
		House:     c.House,
		Structure: c.Structure,
		Building:  c.Building,
		Apartment: c.Apartment,
	}
	m.FromDomainBaseEntity(c.BaseEntity)
	return m
}

// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Structure:
// - base.go: Base persistence models (BaseModel, AggregateModel)
// - identity.go: users and contacts
// - catalog.go: shops, categories, products, offers and their parameters
// - trade.go: orders and order items
// - task.go: background task queue
//
// AllModels lists every model for AutoMigrate in tests; production schemas come
// from the SQL migrations.
package models

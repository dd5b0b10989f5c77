package shared

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target is a DomainError carrying the same code, so
// errors.Is(err, ErrInvalidState) matches every INVALID_STATE instance.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Error codes
const (
	CodeNotFound          = "NOT_FOUND"
	CodeAlreadyExists     = "ALREADY_EXISTS"
	CodeValidation        = "VALIDATION_ERROR"
	CodeConcurrency       = "CONCURRENCY_CONFLICT"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeInvalidState      = "INVALID_STATE"
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeStorage           = "STORAGE_ERROR"
	CodeDelivery          = "DELIVERY_ERROR"
)

// Common domain errors
var (
	ErrNotFound            = NewDomainError(CodeNotFound, "Resource not found")
	ErrAlreadyExists       = NewDomainError(CodeAlreadyExists, "Resource already exists")
	ErrInvalidInput        = NewDomainError(CodeValidation, "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError(CodeConcurrency, "Resource was modified by another process")
	ErrUnauthorized        = NewDomainError(CodeUnauthorized, "Not authenticated")
	ErrForbidden           = NewDomainError(CodeForbidden, "Not authorized to perform this action")
	ErrInvalidState        = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
	ErrInsufficientStock   = NewDomainError(CodeInsufficientStock, "Insufficient stock available")
	ErrStorage             = NewDomainError(CodeStorage, "Storage failure")
	ErrDelivery            = NewDomainError(CodeDelivery, "Notification delivery failed")
)

// NewValidationError reports malformed input. Never retried.
func NewValidationError(format string, args ...any) *DomainError {
	return NewDomainError(CodeValidation, fmt.Sprintf(format, args...))
}

// NewAuthorizationError reports a caller that lacks the capability for an action.
func NewAuthorizationError(format string, args ...any) *DomainError {
	return NewDomainError(CodeForbidden, fmt.Sprintf(format, args...))
}

// NewInvalidTransitionError reports a state change outside the allowed graph.
func NewInvalidTransitionError(from, to fmt.Stringer) *DomainError {
	return NewDomainError(CodeInvalidState, fmt.Sprintf("Cannot transition from %s to %s", from, to))
}

// NewNotFoundError reports a missing resource by kind and id.
func NewNotFoundError(kind string, id any) *DomainError {
	return NewDomainError(CodeNotFound, fmt.Sprintf("%s %v not found", kind, id))
}

// StockShortage names one item that cannot be served from current stock.
type StockShortage struct {
	ProductInfoID uuid.UUID `json:"product_info_id"`
	Requested     int       `json:"requested"`
	Available     int       `json:"available"`
}

// InsufficientStockError lists every offending item of a rejected operation.
type InsufficientStockError struct {
	Shortages []StockShortage `json:"shortages"`
}

// NewInsufficientStockError sorts shortages by product info id for stable output.
func NewInsufficientStockError(shortages ...StockShortage) *InsufficientStockError {
	sorted := append([]StockShortage(nil), shortages...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ProductInfoID.String() < sorted[j].ProductInfoID.String()
	})
	return &InsufficientStockError{Shortages: sorted}
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		parts = append(parts, fmt.Sprintf("%s (requested %d, available %d)", s.ProductInfoID, s.Requested, s.Available))
	}
	return "Insufficient stock for: " + strings.Join(parts, ", ")
}

// Unwrap exposes the INSUFFICIENT_STOCK domain error to errors.Is / errors.As.
func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// StorageError wraps a transient persistence failure.
type StorageError struct {
	Op  string
	Err error
}

// NewStorageError wraps err; a nil err yields nil.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() []error {
	return []error{ErrStorage, e.Err}
}

// DeliveryError reports a failed notification send.
type DeliveryError struct {
	Address  string
	Template string
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver %s to %s: %v", e.Template, e.Address, e.Err)
}

func (e *DeliveryError) Unwrap() []error {
	return []error{ErrDelivery, e.Err}
}

// IsDomainError reports whether err carries a DomainError anywhere in its chain.
func IsDomainError(err error) bool {
	var de *DomainError
	return errors.As(err, &de)
}

// IsRetryable decides whether an async job failing with err may be attempted again.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrStorage) || errors.Is(err, ErrDelivery) {
		return true
	}
	// Unclassified infrastructure failures retry; business rule violations do not.
	return !IsDomainError(err)
}

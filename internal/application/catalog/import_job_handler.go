package catalog

import (
	"context"
	"encoding/json"

	"github.com/procurement/backend/internal/domain/identity"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/domain/task"
)

// ImportJobHandler runs queued catalog imports on the worker
type ImportJobHandler struct {
	service *ImportService
}

// NewImportJobHandler creates a new ImportJobHandler
func NewImportJobHandler(service *ImportService) *ImportJobHandler {
	return &ImportJobHandler{service: service}
}

// Kind implements task.Handler
func (h *ImportJobHandler) Kind() string {
	return task.KindCatalogImport
}

// Handle loads the document and imports it on behalf of the submitting shop.
// The detail is the JSON ImportResult, written on failure as well.
func (h *ImportJobHandler) Handle(ctx context.Context, t *task.Task) ([]byte, error) {
	var payload ImportJobPayload
	if err := json.Unmarshal(t.Payload, &payload); err != nil {
		return nil, shared.NewValidationError("Malformed import job payload: %v", err)
	}

	data, err := h.service.LoadDocument(ctx, payload)
	if err != nil {
		return nil, err
	}

	actor := identity.NewActor(payload.OwnerID, payload.Email, identity.RoleShop)
	result, err := h.service.ImportCatalog(ctx, actor, data, payload.URL)
	if result == nil {
		return nil, err
	}
	detail, marshalErr := json.Marshal(result)
	if marshalErr != nil && err == nil {
		err = marshalErr
	}
	return detail, err
}

var _ task.Handler = (*ImportJobHandler)(nil)

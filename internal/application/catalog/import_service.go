package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/application/uow"
	"github.com/procurement/backend/internal/domain/catalog"
	"github.com/procurement/backend/internal/domain/identity"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/domain/task"
	"github.com/procurement/backend/internal/infrastructure/priceimport"
	"go.uber.org/zap"
)

// DocumentArchive keeps uploaded price documents until the import job runs
type DocumentArchive interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// DocumentFetcher downloads price documents from shop URLs
type DocumentFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// ImportConfig holds import limits
type ImportConfig struct {
	MaxDocumentBytes int64
	MaxAttempts      int
	MaxErrors        int
}

// ImportJobPayload is the queued description of one import. Exactly one of
// DocumentKey, Document and URL locates the price list.
type ImportJobPayload struct {
	OwnerID     uuid.UUID `json:"owner_id"`
	Email       string    `json:"email"`
	DocumentKey string    `json:"document_key,omitempty"`
	Document    []byte    `json:"document,omitempty"`
	URL         string    `json:"url,omitempty"`
}

// ImportService accepts price documents and replaces shop catalogs from them
type ImportService struct {
	scope   uow.TransactionScope
	queue   task.Queue
	archive DocumentArchive
	fetcher DocumentFetcher
	cfg     ImportConfig
	logger  *zap.Logger
}

// NewImportService creates a new ImportService. archive may be nil, in which
// case uploaded documents travel inline in the job payload.
func NewImportService(
	scope uow.TransactionScope,
	queue task.Queue,
	archive DocumentArchive,
	fetcher DocumentFetcher,
	cfg ImportConfig,
	logger *zap.Logger,
) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxDocumentBytes <= 0 {
		cfg.MaxDocumentBytes = 10 << 20
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = task.DefaultMaxAttempts
	}
	if cfg.MaxErrors <= 0 {
		cfg.MaxErrors = priceimport.DefaultMaxErrors
	}
	return &ImportService{
		scope:   scope,
		queue:   queue,
		archive: archive,
		fetcher: fetcher,
		cfg:     cfg,
		logger:  logger,
	}
}

// SubmitDocument queues an uploaded price document for import
func (s *ImportService) SubmitDocument(ctx context.Context, actor identity.Actor, body []byte, contentType string) (*ImportAcceptedResponse, error) {
	if !actor.IsShop() {
		return nil, shared.NewAuthorizationError("Only shops may import price lists")
	}
	if len(body) == 0 {
		return nil, shared.NewValidationError("Price document is empty")
	}
	if int64(len(body)) > s.cfg.MaxDocumentBytes {
		return nil, shared.NewValidationError("Price document exceeds %d bytes", s.cfg.MaxDocumentBytes)
	}

	payload := ImportJobPayload{OwnerID: actor.UserID, Email: actor.Email}
	if s.archive != nil {
		key := fmt.Sprintf("imports/%s/%s", actor.UserID, uuid.New())
		if err := s.archive.Put(ctx, key, body, contentType); err != nil {
			return nil, err
		}
		payload.DocumentKey = key
	} else {
		payload.Document = body
	}
	return s.enqueue(ctx, actor, payload)
}

// SubmitURL queues an import of the price list published at req.URL
func (s *ImportService) SubmitURL(ctx context.Context, actor identity.Actor, req SubmitImportURLRequest) (*ImportAcceptedResponse, error) {
	if !actor.IsShop() {
		return nil, shared.NewAuthorizationError("Only shops may import price lists")
	}
	if err := catalog.ValidateSourceURL(req.URL); err != nil {
		return nil, err
	}
	return s.enqueue(ctx, actor, ImportJobPayload{OwnerID: actor.UserID, Email: actor.Email, URL: req.URL})
}

func (s *ImportService) enqueue(ctx context.Context, actor identity.Actor, payload ImportJobPayload) (*ImportAcceptedResponse, error) {
	jobID, err := s.queue.Enqueue(ctx, task.KindCatalogImport, payload,
		task.WithMaxAttempts(s.cfg.MaxAttempts),
		task.WithCreatedBy(actor.UserID))
	if err != nil {
		return nil, err
	}
	s.logger.Info("Catalog import queued",
		zap.String("job_id", jobID.String()),
		zap.String("owner_id", actor.UserID.String()),
		zap.Bool("by_url", payload.URL != ""))
	return &ImportAcceptedResponse{JobID: jobID}, nil
}

// LoadDocument returns the raw document a job payload points at
func (s *ImportService) LoadDocument(ctx context.Context, payload ImportJobPayload) ([]byte, error) {
	switch {
	case payload.DocumentKey != "":
		if s.archive == nil {
			return nil, shared.NewValidationError("Document archive is not configured")
		}
		return s.archive.Get(ctx, payload.DocumentKey)
	case payload.URL != "":
		if s.fetcher == nil {
			return nil, shared.NewValidationError("Price list fetching is not configured")
		}
		return s.fetcher.Fetch(ctx, payload.URL)
	case len(payload.Document) > 0:
		return payload.Document, nil
	}
	return nil, shared.NewValidationError("Import job carries no document")
}

// ImportCatalog replaces the caller's catalog with the goods of the document.
// The whole replacement commits atomically; a rejected document changes
// nothing. The result is returned on validation failures too, carrying the
// row errors.
func (s *ImportService) ImportCatalog(ctx context.Context, actor identity.Actor, data []byte, sourceURL string) (*ImportResult, error) {
	if !actor.IsShop() {
		return nil, shared.NewAuthorizationError("Only shops may import price lists")
	}

	result := &ImportResult{Errors: []priceimport.RowError{}}
	doc, rowErrs, err := priceimport.Parse(data, s.cfg.MaxErrors)
	if err != nil {
		code := priceimport.ErrCodeImportInvalidFile
		if errors.Is(err, priceimport.ErrEmptyDocument) {
			code = priceimport.ErrCodeImportEmptyFile
		}
		result.Errors = append(result.Errors, priceimport.NewRowError(0, "document", code, err.Error()))
		result.TotalErrors = 1
		return result, shared.NewValidationError("Malformed price document: %v", err)
	}
	if rowErrs.HasErrors() {
		result.Errors = rowErrs.Errors()
		result.TotalErrors = rowErrs.TotalCount()
		result.IsTruncated = rowErrs.IsTruncated()
		return result, shared.NewValidationError("Price document has %d error(s)", rowErrs.TotalCount())
	}

	url := doc.URL
	if url == "" {
		url = sourceURL
	}

	err = s.scope.Execute(ctx, func(repos uow.Repositories) error {
		shop, err := s.resolveShop(ctx, repos, actor, doc.Shop)
		if err != nil {
			return err
		}
		// Held until commit: placements against this shop wait for the swap.
		shop, err = repos.Catalog().LockShop(ctx, shop.ID)
		if err != nil {
			return err
		}
		if url != "" && url != shop.URL {
			if err := shop.SetURL(url); err != nil {
				return err
			}
			if err := repos.Catalog().SaveShop(ctx, shop); err != nil {
				return err
			}
		}

		items, err := s.buildOffers(ctx, repos, shop.ID, doc)
		if err != nil {
			return err
		}
		if err := repos.Catalog().ReplaceShopCatalog(ctx, shop.ID, items); err != nil {
			return err
		}
		result.ShopID = shop.ID
		result.ItemsImported = len(items)
		return nil
	})
	if err != nil {
		s.logger.Warn("Catalog import failed",
			zap.String("owner_id", actor.UserID.String()),
			zap.String("shop", doc.Shop),
			zap.Error(err))
		return result, err
	}

	s.logger.Info("Catalog imported",
		zap.String("shop_id", result.ShopID.String()),
		zap.Int("items", result.ItemsImported))
	return result, nil
}

// resolveShop returns the caller's shop, creating it on the first import.
// A document naming any other shop is refused.
func (s *ImportService) resolveShop(ctx context.Context, repos uow.Repositories, actor identity.Actor, name string) (*catalog.Shop, error) {
	shop, err := repos.Catalog().FindShopByOwner(ctx, actor.UserID)
	if err == nil {
		if shop.Name != name {
			return nil, shared.NewAuthorizationError("Document shop %q does not match your shop %q", name, shop.Name)
		}
		return shop, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	_, err = repos.Catalog().FindShopByName(ctx, name)
	if err == nil {
		return nil, shared.NewAuthorizationError("Shop %q belongs to another user", name)
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	shop, err = catalog.NewShop(actor.UserID, name)
	if err != nil {
		return nil, err
	}
	if err := repos.Catalog().SaveShop(ctx, shop); err != nil {
		return nil, err
	}
	s.logger.Info("Shop created by import",
		zap.String("shop_id", shop.ID.String()),
		zap.String("owner_id", actor.UserID.String()))
	return shop, nil
}

func (s *ImportService) buildOffers(ctx context.Context, repos uow.Repositories, shopID uuid.UUID, doc *priceimport.Document) ([]*catalog.ProductInfo, error) {
	categoryIDs := make(map[int64]uuid.UUID, len(doc.Categories))
	for _, c := range doc.Categories {
		category, err := repos.Catalog().FindOrCreateCategory(ctx, c.Name)
		if err != nil {
			return nil, err
		}
		if err := repos.Catalog().LinkCategoryToShop(ctx, category.ID, shopID); err != nil {
			return nil, err
		}
		categoryIDs[c.ID] = category.ID
	}

	items := make([]*catalog.ProductInfo, 0, len(doc.Goods))
	for _, g := range doc.Goods {
		product, err := repos.Catalog().FindOrCreateProduct(ctx, g.Name, categoryIDs[g.Category])
		if err != nil {
			return nil, err
		}
		info, err := catalog.NewProductInfo(shopID, catalog.ProductInfoInput{
			ProductID:  product.ID,
			ExternalID: g.ID,
			Model:      g.Model,
			Quantity:   g.Quantity,
			Price:      g.Price,
			PriceRRC:   g.PriceRRC,
			Parameters: g.Parameters,
		})
		if err != nil {
			return nil, err
		}
		items = append(items, info)
	}
	return items, nil
}

package router

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	catalogapp "github.com/procurement/backend/internal/application/catalog"
	identityapp "github.com/procurement/backend/internal/application/identity"
	"github.com/procurement/backend/internal/application/job"
	tradeapp "github.com/procurement/backend/internal/application/trade"
	"github.com/procurement/backend/internal/domain/identity"
	"github.com/procurement/backend/internal/infrastructure/auth"
	"github.com/procurement/backend/internal/infrastructure/config"
	"github.com/procurement/backend/internal/infrastructure/persistence"
	"github.com/procurement/backend/internal/infrastructure/taskqueue"
	"github.com/procurement/backend/internal/interfaces/http/dto"
	"github.com/procurement/backend/internal/interfaces/http/handler"
	"github.com/procurement/backend/internal/interfaces/http/middleware"
	"github.com/procurement/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const priceList = `
shop: Svyaznoy
categories:
  - id: 224
    name: Smartphones
goods:
  - id: 4216292
    category: 224
    model: apple/iphone/xs-max
    name: Smartphone Apple iPhone XS Max 512GB (gold)
    price: 110000
    price_rrc: 116990
    quantity: 5
    parameters:
      Color: gold
  - id: 4216313
    category: 224
    model: apple/iphone/xr
    name: Smartphone Apple iPhone XR 256GB (red)
    price: 65000
    price_rrc: 69990
    quantity: 1
`

type apiFixture struct {
	engine  *gin.Engine
	jwt     *auth.JWTService
	imports *catalogapp.ImportService
	catalog *catalogapp.CatalogService
}

type pingOK struct{}

func (pingOK) Ping() error { return nil }

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	return newAPIFixtureWithSwagger(t, middleware.SwaggerConfig{})
}

func newAPIFixtureWithSwagger(t *testing.T, swagger middleware.SwaggerConfig) *apiFixture {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	scope := persistence.NewGormTransactionScope(db)
	catalogRepo := persistence.NewGormCatalogRepository(db)
	taskRepo := persistence.NewGormTaskRepository(db)
	userRepo := persistence.NewGormUserRepository(db)

	jwtService := auth.NewJWTService(config.JWTConfig{
		Secret:                "router-test-secret-with-enough-entropy",
		Issuer:                "procurement-test",
		Audience:              "procurement-api",
		AccessTokenExpiration: time.Hour,
	})
	users := identityapp.NewUserService(userRepo, nil)

	queue := taskqueue.NewQueue(taskRepo, 3, nil)
	imports := catalogapp.NewImportService(scope, queue, nil, nil, catalogapp.ImportConfig{MaxDocumentBytes: 1 << 16}, nil)
	catalog := catalogapp.NewCatalogService(scope, catalogRepo, nil)
	orders := tradeapp.NewOrderService(scope, persistence.NewGormOrderRepository(db), catalogRepo, nil)

	handlers := Handlers{
		Health:  handler.NewHealthHandler(pingOK{}, "test"),
		Catalog: handler.NewCatalogHandler(catalog),
		Partner: handler.NewPartnerHandler(imports, catalog, orders),
		Basket:  handler.NewBasketHandler(orders),
		Order:   handler.NewOrderHandler(orders),
		Contact: handler.NewContactHandler(identityapp.NewContactService(persistence.NewGormContactRepository(db))),
		Admin:   handler.NewAdminHandler(orders, catalog),
		Task:    handler.NewTaskHandler(job.NewJobService(taskRepo, nil)),
		Profile: handler.NewProfileHandler(users),
	}
	engine := NewEngine(EngineConfig{
		HTTP:        config.HTTPConfig{MaxBodySize: 1 << 20},
		ServiceName: "procurement-test",
		JWT:         middleware.DefaultJWTConfig(jwtService, users),
		Swagger:     swagger,
	}, handlers)

	return &apiFixture{engine: engine, jwt: jwtService, imports: imports, catalog: catalog}
}

func (f *apiFixture) login(t *testing.T, role identity.Role) (identity.Actor, map[string]string) {
	t.Helper()
	id := uuid.New()
	email := fmt.Sprintf("%s-%s@example.com", role, id.String()[:8])
	token, _, err := f.jwt.GenerateToken(auth.GenerateTokenInput{UserID: id, Email: email, Role: role})
	require.NoError(t, err)
	return identity.NewActor(id, email, role), map[string]string{"Authorization": "Bearer " + token}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any, headers map[string]string) map[string]any {
	t.Helper()
	w := testutil.Do(t, f.engine, method, path, body, headers)
	if w.Code == http.StatusNoContent {
		return nil
	}
	return testutil.JSONBody(t, w)
}

func data(t *testing.T, resp map[string]any) map[string]any {
	t.Helper()
	d, ok := resp["data"].(map[string]any)
	require.True(t, ok, "expected object data in %v", resp)
	return d
}

func TestAPI_Health(t *testing.T) {
	f := newAPIFixture(t)

	for _, path := range []string{"/health", "/api/v1/health"} {
		w := testutil.Do(t, f.engine, http.MethodGet, path, nil, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, "healthy", testutil.JSONBody(t, w)["status"])
		assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
	}
}

func TestAPI_Swagger(t *testing.T) {
	t.Run("hidden when disabled", func(t *testing.T) {
		f := newAPIFixture(t)
		w := testutil.Do(t, f.engine, http.MethodGet, "/swagger/index.html", nil, nil)
		testutil.AssertErrorResponse(t, w, http.StatusNotFound, dto.ErrCodeNotFound)
	})

	t.Run("serves the ui and the document", func(t *testing.T) {
		f := newAPIFixtureWithSwagger(t, middleware.SwaggerConfig{Enabled: true})

		w := testutil.Do(t, f.engine, http.MethodGet, "/swagger/index.html", nil, nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "swagger-ui")

		w = testutil.Do(t, f.engine, http.MethodGet, "/swagger/doc.json", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		doc := testutil.JSONBody(t, w)
		assert.Equal(t, "/api/v1", doc["basePath"])
		paths, ok := doc["paths"].(map[string]any)
		require.True(t, ok)
		for _, path := range []string{"/shops", "/basket/place", "/admin/orders/{id}/status", "/partner/imports", "/tasks/{id}"} {
			assert.Contains(t, paths, path)
		}
	})

	t.Run("requires a token when configured", func(t *testing.T) {
		f := newAPIFixtureWithSwagger(t, middleware.SwaggerConfig{Enabled: true, RequireAuth: true})

		w := testutil.Do(t, f.engine, http.MethodGet, "/swagger/doc.json", nil, nil)
		testutil.AssertErrorResponse(t, w, http.StatusUnauthorized, dto.ErrCodeTokenInvalid)

		_, buyer := f.login(t, identity.RoleBuyer)
		w = testutil.Do(t, f.engine, http.MethodGet, "/swagger/doc.json", nil, buyer)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestAPI_Authentication(t *testing.T) {
	f := newAPIFixture(t)

	w := testutil.Do(t, f.engine, http.MethodGet, "/api/v1/basket", nil, nil)
	testutil.AssertErrorResponse(t, w, http.StatusUnauthorized, dto.ErrCodeTokenInvalid)

	w = testutil.Do(t, f.engine, http.MethodGet, "/api/v1/offers", nil, nil)
	testutil.AssertSuccessResponse(t, w, http.StatusOK)

	_, shop := f.login(t, identity.RoleShop)
	w = testutil.Do(t, f.engine, http.MethodGet, "/api/v1/basket", nil, shop)
	testutil.AssertErrorResponse(t, w, http.StatusForbidden, dto.ErrCodeForbidden)

	_, buyer := f.login(t, identity.RoleBuyer)
	w = testutil.Do(t, f.engine, http.MethodGet, "/api/v1/admin/orders", nil, buyer)
	testutil.AssertErrorResponse(t, w, http.StatusForbidden, dto.ErrCodeForbidden)

	w = testutil.Do(t, f.engine, http.MethodPost, "/api/v1/partner/imports/url", map[string]string{"url": "https://example.com/p.yaml"}, buyer)
	testutil.AssertErrorResponse(t, w, http.StatusForbidden, dto.ErrCodeForbidden)

	resp := testutil.AssertSuccessResponse(t, testutil.Do(t, f.engine, http.MethodGet, "/api/v1/me", nil, buyer), http.StatusOK)
	assert.Equal(t, "buyer", data(t, resp)["role"])
}

func TestAPI_PartnerImportSubmission(t *testing.T) {
	f := newAPIFixture(t)
	_, shop := f.login(t, identity.RoleShop)
	_, other := f.login(t, identity.RoleShop)

	headers := map[string]string{"Content-Type": "application/x-yaml"}
	for k, v := range shop {
		headers[k] = v
	}
	w := testutil.Do(t, f.engine, http.MethodPost, "/api/v1/partner/imports", strings.NewReader(priceList), headers)
	resp := testutil.AssertSuccessResponse(t, w, http.StatusAccepted)
	jobID := data(t, resp)["job_id"].(string)

	resp = f.do(t, http.MethodGet, "/api/v1/tasks/"+jobID, nil, shop)
	assert.Equal(t, "pending", data(t, resp)["state"])

	w = testutil.Do(t, f.engine, http.MethodGet, "/api/v1/tasks/"+jobID, nil, other)
	testutil.AssertErrorResponse(t, w, http.StatusNotFound, dto.ErrCodeNotFound)

	w = testutil.Do(t, f.engine, http.MethodPost, "/api/v1/partner/imports/url", map[string]string{"url": "ftp://example.com/p.yaml"}, shop)
	testutil.AssertErrorResponse(t, w, http.StatusBadRequest, dto.ErrCodeValidation)

	w = testutil.Do(t, f.engine, http.MethodGet, "/api/v1/tasks/not-a-uuid", nil, shop)
	testutil.AssertErrorResponse(t, w, http.StatusBadRequest, dto.ErrCodeBadRequest)
}

func TestAPI_OrderLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newAPIFixture(t)
	owner, shopHeaders := f.login(t, identity.RoleShop)
	_, buyer := f.login(t, identity.RoleBuyer)
	_, admin := f.login(t, identity.RoleAdmin)

	imported, err := f.imports.ImportCatalog(ctx, owner, []byte(priceList), "")
	require.NoError(t, err)
	offers, err := f.catalog.GetShopCatalog(ctx, imported.ShopID)
	require.NoError(t, err)
	byExternal := map[int64]uuid.UUID{}
	for _, o := range offers {
		byExternal[o.ExternalID] = o.ID
	}
	xsMax, xr := byExternal[4216292], byExternal[4216313]

	resp := f.do(t, http.MethodGet, "/api/v1/offers?search=iphone&shop_id="+imported.ShopID.String(), nil, nil)
	assert.Len(t, resp["data"], 2)
	assert.Equal(t, float64(2), resp["meta"].(map[string]any)["total"])

	contact := data(t, f.do(t, http.MethodPost, "/api/v1/contacts", map[string]string{
		"phone": "+79991234567", "city": "Moscow", "street": "Tverskaya", "house": "7",
	}, buyer))
	contactID := contact["id"].(string)

	f.do(t, http.MethodPost, "/api/v1/basket/items", map[string]any{"product_info_id": xsMax, "quantity": 2}, buyer)
	basket := data(t, f.do(t, http.MethodPost, "/api/v1/basket/items", map[string]any{"product_info_id": xr, "quantity": 3}, buyer))
	assert.Equal(t, float64(5), basket["total_quantity"])

	t.Run("shortage is reported per offer", func(t *testing.T) {
		w := testutil.Do(t, f.engine, http.MethodPost, "/api/v1/basket/place", map[string]string{"contact_id": contactID}, buyer)
		errInfo := testutil.AssertErrorResponse(t, w, http.StatusUnprocessableEntity, dto.ErrCodeInsufficientStock)
		shortages := errInfo["shortages"].([]any)
		require.Len(t, shortages, 1)
		assert.Equal(t, xr.String(), shortages[0].(map[string]any)["product_info_id"])
	})

	items := basket["items"].([]any)
	for _, raw := range items {
		item := raw.(map[string]any)
		if item["product_info_id"] == xr.String() {
			f.do(t, http.MethodPut, "/api/v1/basket/items/"+item["id"].(string), map[string]int{"quantity": 1}, buyer)
		}
	}

	placed := data(t, f.do(t, http.MethodPost, "/api/v1/basket/place", map[string]string{"contact_id": contactID}, buyer))
	assert.Equal(t, "placed", placed["status"])
	orderID := placed["id"].(string)

	resp = f.do(t, http.MethodGet, "/api/v1/partner/orders", nil, shopHeaders)
	assert.Len(t, resp["data"], 1)

	confirmed := data(t, f.do(t, http.MethodPost, "/api/v1/admin/orders/"+orderID+"/status", map[string]string{"status": "confirmed"}, admin))
	assert.Equal(t, "confirmed", confirmed["status"])
	assert.Equal(t, true, confirmed["prices_frozen"])

	stock := map[uuid.UUID]int{}
	offers, err = f.catalog.GetShopCatalog(ctx, imported.ShopID)
	require.NoError(t, err)
	for _, o := range offers {
		stock[o.ID] = o.Quantity
	}
	assert.Equal(t, 3, stock[xsMax])
	assert.Equal(t, 0, stock[xr])

	w := testutil.Do(t, f.engine, http.MethodPost, "/api/v1/admin/orders/"+orderID+"/status", map[string]string{"status": "delivered"}, admin)
	testutil.AssertErrorResponse(t, w, http.StatusUnprocessableEntity, dto.ErrCodeInvalidState)

	w = testutil.Do(t, f.engine, http.MethodPost, "/api/v1/orders/"+orderID+"/cancel", nil, buyer)
	testutil.AssertErrorResponse(t, w, http.StatusForbidden, dto.ErrCodeForbidden)

	canceled := data(t, f.do(t, http.MethodPost, "/api/v1/orders/"+orderID+"/cancel", map[string]string{"reason": "out of stock at warehouse"}, admin))
	assert.Equal(t, "canceled", canceled["status"])

	offers, err = f.catalog.GetShopCatalog(ctx, imported.ShopID)
	require.NoError(t, err)
	for _, o := range offers {
		stock[o.ID] = o.Quantity
	}
	assert.Equal(t, 5, stock[xsMax])
	assert.Equal(t, 1, stock[xr])

	_, stranger := f.login(t, identity.RoleBuyer)
	w = testutil.Do(t, f.engine, http.MethodGet, "/api/v1/orders/"+orderID, nil, stranger)
	testutil.AssertErrorResponse(t, w, http.StatusNotFound, dto.ErrCodeNotFound)

	resp = f.do(t, http.MethodGet, "/api/v1/orders", nil, buyer)
	assert.Len(t, resp["data"], 1)

	w = testutil.Do(t, f.engine, http.MethodDelete, "/api/v1/contacts/"+contactID, nil, buyer)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestAPI_AdminClosesShop(t *testing.T) {
	ctx := context.Background()
	f := newAPIFixture(t)
	owner, shopHeaders := f.login(t, identity.RoleShop)
	_, admin := f.login(t, identity.RoleAdmin)

	imported, err := f.imports.ImportCatalog(ctx, owner, []byte(priceList), "")
	require.NoError(t, err)

	shop := data(t, f.do(t, http.MethodPut, "/api/v1/admin/shops/"+imported.ShopID.String()+"/state", map[string]string{"state": "closed"}, admin))
	assert.Equal(t, "closed", shop["state"])

	resp := f.do(t, http.MethodGet, "/api/v1/offers", nil, nil)
	assert.Empty(t, resp["data"])

	state := data(t, f.do(t, http.MethodGet, "/api/v1/partner/state", nil, shopHeaders))
	assert.Equal(t, "closed", state["state"])

	state = data(t, f.do(t, http.MethodPut, "/api/v1/partner/state", map[string]string{"state": "open"}, shopHeaders))
	assert.Equal(t, "open", state["state"])
}

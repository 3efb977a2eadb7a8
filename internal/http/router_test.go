package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ecofinds/marketplace/internal/domain"
	"github.com/ecofinds/marketplace/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func doRequest(t *testing.T, h http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var res ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	return res
}

func TestHealth(t *testing.T) {
	ts := newTestServer(map[string]HealthCheck{
		"mongo": func(context.Context) error { return nil },
	})

	rec := doRequest(t, ts.handler, http.MethodGet, "/health", nil, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestHealth_Degraded(t *testing.T) {
	ts := newTestServer(map[string]HealthCheck{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})

	rec := doRequest(t, ts.handler, http.MethodGet, "/health", nil, nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis":"unavailable"`)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestRegister_Created(t *testing.T) {
	ts := newTestServer(nil)
	ts.auth.registerID = primitive.NewObjectID()

	rec := doRequest(t, ts.handler, http.MethodPost, "/api/auth/register", map[string]string{
		"name": "Ana", "email": "ana@example.com", "phone": "+15550001", "password": "secret123",
	}, nil)

	require.Equal(t, http.StatusCreated, rec.Code)
	var res RegisterResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, ts.auth.registerID.Hex(), res.UserID)
	assert.Equal(t, "User registered. Please verify your phone and email.", res.Message)
}

func TestRegister_InvalidEmail(t *testing.T) {
	ts := newTestServer(nil)

	rec := doRequest(t, ts.handler, http.MethodPost, "/api/auth/register", map[string]string{
		"name": "Ana", "email": "not-an-email", "phone": "+15550001", "password": "secret123",
	}, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "email must be a valid email", decodeError(t, rec).Message)
}

func TestRegister_Duplicate(t *testing.T) {
	ts := newTestServer(nil)
	ts.auth.registerErr = service.ErrUserExists

	rec := doRequest(t, ts.handler, http.MethodPost, "/api/users/register", map[string]string{
		"name": "Ana", "email": "ana@example.com", "phone": "+15550001", "password": "secret123",
	}, nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "User already exists.", decodeError(t, rec).Message)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	ts := newTestServer(nil)
	ts.auth.loginErr = service.ErrInvalidCredentials

	rec := doRequest(t, ts.handler, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "ana@example.com", "password": "wrong",
	}, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogin_TooManyAttempts(t *testing.T) {
	ts := newTestServer(nil)
	ts.auth.loginErr = service.ErrTooManyAttempts

	rec := doRequest(t, ts.handler, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "ana@example.com", "password": "wrong",
	}, nil)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestResendOTP_UsesTokenUser(t *testing.T) {
	ts := newTestServer(nil)
	user := &domain.User{ID: primitive.NewObjectID(), Role: domain.RoleUser}

	rec := doRequest(t, ts.handler, http.MethodPost, "/api/auth/resend-otp", map[string]string{
		"userId": primitive.NewObjectID().Hex(),
	}, map[string]string{"Authorization": bearer(user)})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, user.ID, ts.auth.resendFor)
}

func TestResend_RequiresToken(t *testing.T) {
	ts := newTestServer(nil)
	id := primitive.NewObjectID()

	for _, path := range []string{"/api/auth/resend-otp", "/api/auth/resend-email"} {
		rec := doRequest(t, ts.handler, http.MethodPost, path, map[string]string{"userId": id.Hex()}, nil)

		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
	assert.True(t, ts.auth.resendFor.IsZero(), "no code is sent for an anonymous caller")
}

func TestResendEmail_UsesTokenUser(t *testing.T) {
	ts := newTestServer(nil)
	user := &domain.User{ID: primitive.NewObjectID(), Role: domain.RoleUser}

	rec := doRequest(t, ts.handler, http.MethodPost, "/api/auth/resend-email", nil, map[string]string{"Authorization": bearer(user)})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, user.ID, ts.auth.resendFor)
}

func TestProtectedRoute_NoToken(t *testing.T) {
	ts := newTestServer(nil)

	rec := doRequest(t, ts.handler, http.MethodGet, "/api/cart", nil, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedRoute_BadToken(t *testing.T) {
	ts := newTestServer(nil)

	rec := doRequest(t, ts.handler, http.MethodGet, "/api/cart", nil, map[string]string{"Authorization": "Bearer garbage"})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRoute_ForbiddenForUsers(t *testing.T) {
	ts := newTestServer(nil)
	user := &domain.User{ID: primitive.NewObjectID(), Role: domain.RoleUser}

	rec := doRequest(t, ts.handler, http.MethodGet, "/api/admin/complaints", nil, map[string]string{"Authorization": bearer(user)})

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Admin access required", decodeError(t, rec).Message)
}

func TestAdminRoute_AuditFilter(t *testing.T) {
	ts := newTestServer(nil)
	admin := &domain.User{ID: primitive.NewObjectID(), Role: domain.RoleAdmin}

	rec := doRequest(t, ts.handler, http.MethodGet, "/api/admin/audit?entity_type=order&limit=20&offset=-4", nil,
		map[string]string{"Authorization": bearer(admin)})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "order", ts.admin.filter.EntityType)
	assert.Equal(t, 20, ts.admin.filter.Limit)
	assert.Equal(t, 0, ts.admin.filter.Offset)
}

func TestListProducts_ParsesFilter(t *testing.T) {
	ts := newTestServer(nil)
	ts.products.page = &service.ProductPage{Products: []*domain.Product{}, CurrentPage: 2}

	rec := doRequest(t, ts.handler, http.MethodGet,
		"/api/products?category=Books&minPrice=5&maxPrice=50.5&location=77.5,12.9&radius=10&sort=price_asc&page=2&limit=5", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	f := ts.products.filter
	assert.Equal(t, "Books", f.Category)
	require.NotNil(t, f.MinPrice)
	assert.Equal(t, 5.0, *f.MinPrice)
	require.NotNil(t, f.MaxPrice)
	assert.Equal(t, 50.5, *f.MaxPrice)
	assert.Equal(t, []float64{77.5, 12.9}, f.Near)
	assert.Equal(t, 10.0, f.RadiusKm)
	assert.Equal(t, "price_asc", f.Sort)
	assert.Equal(t, 2, f.Page)
	assert.Equal(t, 5, f.Limit)
}

func TestListProducts_LocationWithoutRadiusIgnored(t *testing.T) {
	ts := newTestServer(nil)
	ts.products.page = &service.ProductPage{Products: []*domain.Product{}}

	rec := doRequest(t, ts.handler, http.MethodGet, "/api/products?location=77.5,12.9", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, ts.products.filter.Near)
}

func TestListProducts_BadPrice(t *testing.T) {
	ts := newTestServer(nil)

	rec := doRequest(t, ts.handler, http.MethodGet, "/api/products?minPrice=cheap", nil, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "minPrice must be a number", decodeError(t, rec).Message)
}

func TestGetProduct_InvalidID(t *testing.T) {
	ts := newTestServer(nil)

	rec := doRequest(t, ts.handler, http.MethodGet, "/api/products/123", nil, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetProduct_NotFound(t *testing.T) {
	ts := newTestServer(nil)
	ts.products.err = service.ErrProductNotFound

	rec := doRequest(t, ts.handler, http.MethodGet, "/api/products/"+primitive.NewObjectID().Hex(), nil, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Product not found", decodeError(t, rec).Message)
}

func TestGetProduct_InternalErrorIsNotLeaked(t *testing.T) {
	ts := newTestServer(nil)
	ts.products.err = errors.New("mongo: server selection timeout at 10.0.0.3")

	rec := doRequest(t, ts.handler, http.MethodGet, "/api/products/"+primitive.NewObjectID().Hex(), nil, nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := rec.Body.String()
	assert.NotContains(t, body, "mongo")
	assert.Contains(t, body, "Server error")
}

func TestCreateProduct_SetsSeller(t *testing.T) {
	ts := newTestServer(nil)
	user := &domain.User{ID: primitive.NewObjectID(), Role: domain.RoleUser}
	price := 10.0

	rec := doRequest(t, ts.handler, http.MethodPost, "/api/products", service.ProductInput{
		Title:       "Lamp",
		Description: "Desk lamp",
		Category:    "Home",
		Images:      []string{"https://img.example.com/1.jpg"},
		Price:       &price,
		Condition:   "Good",
	}, map[string]string{"Authorization": bearer(user)})

	require.Equal(t, http.StatusCreated, rec.Code)
	var p domain.Product
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&p))
	assert.Equal(t, user.ID, p.SellerID)
}

func TestCreateProduct_MissingImages(t *testing.T) {
	ts := newTestServer(nil)
	user := &domain.User{ID: primitive.NewObjectID(), Role: domain.RoleUser}

	rec := doRequest(t, ts.handler, http.MethodPost, "/api/products", map[string]any{
		"title": "Lamp", "description": "Desk lamp", "category": "Home", "condition": "Good",
	}, map[string]string{"Authorization": bearer(user)})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "images is required", decodeError(t, rec).Message)
}

func TestPlaceBid_LostRaceIsConflict(t *testing.T) {
	ts := newTestServer(nil)
	ts.products.bidErr = service.ErrBidOutpaced
	user := &domain.User{ID: primitive.NewObjectID(), Role: domain.RoleUser}

	rec := doRequest(t, ts.handler, http.MethodPost, "/api/products/"+primitive.NewObjectID().Hex()+"/bid",
		map[string]float64{"amount": 120}, map[string]string{"Authorization": bearer(user)})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Bid must be higher than current bid", decodeError(t, rec).Message)
}

func TestPlaceBid_NonPositiveAmount(t *testing.T) {
	ts := newTestServer(nil)
	user := &domain.User{ID: primitive.NewObjectID(), Role: domain.RoleUser}

	rec := doRequest(t, ts.handler, http.MethodPost, "/api/products/"+primitive.NewObjectID().Hex()+"/bid",
		map[string]float64{"amount": 0}, map[string]string{"Authorization": bearer(user)})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestToggleSave(t *testing.T) {
	ts := newTestServer(nil)
	ts.products.saved = true
	user := &domain.User{ID: primitive.NewObjectID(), Role: domain.RoleUser}

	rec := doRequest(t, ts.handler, http.MethodPost, "/api/products/"+primitive.NewObjectID().Hex()+"/save", nil,
		map[string]string{"Authorization": bearer(user)})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"saved":true}`, rec.Body.String())
}

func TestCartDelete_WithoutProductClearsCart(t *testing.T) {
	ts := newTestServer(nil)
	user := &domain.User{ID: primitive.NewObjectID(), Role: domain.RoleUser}

	rec := doRequest(t, ts.handler, http.MethodDelete, "/api/cart", nil, map[string]string{"Authorization": bearer(user)})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, ts.carts.cleared)
}

func TestCartDelete_RemovesLine(t *testing.T) {
	ts := newTestServer(nil)
	user := &domain.User{ID: primitive.NewObjectID(), Role: domain.RoleUser}
	productID := primitive.NewObjectID()

	rec := doRequest(t, ts.handler, http.MethodDelete, "/api/cart?productId="+productID.Hex(), nil,
		map[string]string{"Authorization": bearer(user)})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, ts.carts.cleared)
	assert.Equal(t, productID, ts.carts.removed)
}

func TestCartAdd_NotEnoughStock(t *testing.T) {
	ts := newTestServer(nil)
	ts.carts.err = service.ErrNotEnoughStock
	user := &domain.User{ID: primitive.NewObjectID(), Role: domain.RoleUser}

	rec := doRequest(t, ts.handler, http.MethodPost, "/api/cart", map[string]any{
		"productId": primitive.NewObjectID().Hex(), "quantity": 3,
	}, map[string]string{"Authorization": bearer(user)})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Not enough items in stock", decodeError(t, rec).Message)
}

func TestCheckout_PassesIdempotencyKey(t *testing.T) {
	ts := newTestServer(nil)
	ts.orders.result = &service.CheckoutResult{Orders: []*domain.Order{{ID: primitive.NewObjectID()}}}
	user := &domain.User{ID: primitive.NewObjectID(), Role: domain.RoleUser}

	rec := doRequest(t, ts.handler, http.MethodPost, "/api/orders", nil, map[string]string{
		"Authorization":   bearer(user),
		idempotencyHeader: "key-1",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "key-1", ts.orders.input.IdempotencyKey)
}

func TestCheckout_ReplayReturnsOK(t *testing.T) {
	ts := newTestServer(nil)
	ts.orders.result = &service.CheckoutResult{Orders: []*domain.Order{{ID: primitive.NewObjectID()}}, Replayed: true}
	user := &domain.User{ID: primitive.NewObjectID(), Role: domain.RoleUser}

	rec := doRequest(t, ts.handler, http.MethodPost, "/api/orders", nil, map[string]string{
		"Authorization":   bearer(user),
		idempotencyHeader: "key-1",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCheckout_EmptyCart(t *testing.T) {
	ts := newTestServer(nil)
	ts.orders.err = service.ErrEmptyCart
	user := &domain.User{ID: primitive.NewObjectID(), Role: domain.RoleUser}

	rec := doRequest(t, ts.handler, http.MethodPost, "/api/orders", nil, map[string]string{"Authorization": bearer(user)})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Cart is empty", decodeError(t, rec).Message)
}

func TestOrderStatus_RequiresStatus(t *testing.T) {
	ts := newTestServer(nil)
	user := &domain.User{ID: primitive.NewObjectID(), Role: domain.RoleUser}

	rec := doRequest(t, ts.handler, http.MethodPatch, "/api/orders/"+primitive.NewObjectID().Hex()+"/status",
		map[string]string{}, map[string]string{"Authorization": bearer(user)})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "status is required", decodeError(t, rec).Message)
}

func TestMarkAllNotificationsRead(t *testing.T) {
	ts := newTestServer(nil)
	user := &domain.User{ID: primitive.NewObjectID(), Role: domain.RoleUser}

	rec := doRequest(t, ts.handler, http.MethodPut, "/api/notifications/read-all", nil, map[string]string{"Authorization": bearer(user)})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"updated":3`)
}

func TestImageKitAuth(t *testing.T) {
	ts := newTestServer(nil)
	user := &domain.User{ID: primitive.NewObjectID(), Role: domain.RoleUser}

	rec := doRequest(t, ts.handler, http.MethodGet, "/api/imagekit/auth", nil, map[string]string{"Authorization": bearer(user)})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"signature":"sig"`)
}

func TestInvalidJSONBody(t *testing.T) {
	ts := newTestServer(nil)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()

	ts.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid JSON body", decodeError(t, rec).Message)
}

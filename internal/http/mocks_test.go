package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ecofinds/marketplace/internal/audit"
	"github.com/ecofinds/marketplace/internal/domain"
	"github.com/ecofinds/marketplace/internal/imagekit"
	"github.com/ecofinds/marketplace/internal/repository"
	"github.com/ecofinds/marketplace/internal/service"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testSecret = "test-secret"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func bearer(user *domain.User) string {
	token, err := service.NewTokenIssuer(testSecret, time.Hour).Issue(user)
	if err != nil {
		panic(err)
	}
	return "Bearer " + token
}

type mockAuth struct {
	registerID  primitive.ObjectID
	registerErr error
	loginRes    *service.LoginResult
	loginErr    error
	resendFor   primitive.ObjectID
	resendErr   error
	verifyErr   error
}

func (m *mockAuth) Register(context.Context, service.RegisterInput) (primitive.ObjectID, error) {
	return m.registerID, m.registerErr
}

func (m *mockAuth) VerifyPhone(context.Context, string, string) error { return m.verifyErr }
func (m *mockAuth) VerifyEmail(context.Context, string) error         { return m.verifyErr }

func (m *mockAuth) Login(context.Context, string, string) (*service.LoginResult, error) {
	return m.loginRes, m.loginErr
}

func (m *mockAuth) ResendOTP(_ context.Context, id primitive.ObjectID) error {
	m.resendFor = id
	return m.resendErr
}

func (m *mockAuth) ResendEmail(_ context.Context, id primitive.ObjectID) error {
	m.resendFor = id
	return m.resendErr
}

func (m *mockAuth) RequestPasswordReset(context.Context, string) (string, error) {
	return "If an account exists for this email, an OTP has been sent.", nil
}

func (m *mockAuth) ResetPassword(context.Context, string, string, string) error { return m.verifyErr }

type mockProducts struct {
	filter  repository.ProductFilter
	page    *service.ProductPage
	product *domain.Product
	err     error
	bidErr  error
	saved   bool
}

func (m *mockProducts) List(_ context.Context, f repository.ProductFilter) (*service.ProductPage, error) {
	m.filter = f
	return m.page, m.err
}

func (m *mockProducts) ListBySeller(context.Context, primitive.ObjectID, int, int) (*service.ProductPage, error) {
	return m.page, m.err
}

func (m *mockProducts) ListMine(context.Context, service.Actor, int, int) (*service.ProductPage, error) {
	return m.page, m.err
}

func (m *mockProducts) Get(context.Context, primitive.ObjectID) (*domain.Product, error) {
	return m.product, m.err
}

func (m *mockProducts) Create(_ context.Context, actor service.Actor, in service.ProductInput) (*domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Product{ID: primitive.NewObjectID(), SellerID: actor.ID, Title: in.Title}, nil
}

func (m *mockProducts) Update(context.Context, service.Actor, primitive.ObjectID, service.ProductInput) (*domain.Product, error) {
	return m.product, m.err
}

func (m *mockProducts) Delete(context.Context, service.Actor, primitive.ObjectID) error {
	return m.err
}

func (m *mockProducts) PlaceBid(context.Context, service.Actor, primitive.ObjectID, float64) (*domain.Product, error) {
	return m.product, m.bidErr
}

func (m *mockProducts) ToggleSave(context.Context, service.Actor, primitive.ObjectID) (bool, error) {
	return m.saved, m.err
}

type mockCarts struct {
	cart    *domain.Cart
	err     error
	cleared bool
	removed primitive.ObjectID
}

func (m *mockCarts) GetCart(context.Context, service.Actor) (*domain.Cart, error) { return m.cart, m.err }

func (m *mockCarts) AddItem(context.Context, service.Actor, service.CartItemInput) (*domain.Cart, error) {
	return m.cart, m.err
}

func (m *mockCarts) UpdateItem(context.Context, service.Actor, service.CartItemInput) (*domain.Cart, error) {
	return m.cart, m.err
}

func (m *mockCarts) RemoveItem(_ context.Context, _ service.Actor, id primitive.ObjectID) (*domain.Cart, error) {
	m.removed = id
	return m.cart, m.err
}

func (m *mockCarts) ClearCart(context.Context, service.Actor) error {
	m.cleared = true
	return m.err
}

type mockOrders struct {
	input  service.CheckoutInput
	result *service.CheckoutResult
	err    error
}

func (m *mockOrders) Checkout(_ context.Context, _ service.Actor, in service.CheckoutInput) (*service.CheckoutResult, error) {
	m.input = in
	return m.result, m.err
}

func (m *mockOrders) List(context.Context, service.Actor) ([]*domain.Order, error)      { return nil, m.err }
func (m *mockOrders) ListSales(context.Context, service.Actor) ([]*domain.Order, error) { return nil, m.err }

func (m *mockOrders) Get(context.Context, service.Actor, primitive.ObjectID) (*domain.Order, error) {
	return nil, m.err
}

func (m *mockOrders) UpdateStatus(context.Context, service.Actor, primitive.ObjectID, service.StatusInput) (*domain.Order, error) {
	return nil, m.err
}

type mockUsers struct{ err error }

func (m *mockUsers) GetProfile(_ context.Context, actor service.Actor) (*service.Profile, error) {
	return &service.Profile{User: &domain.User{ID: actor.ID}}, m.err
}

func (m *mockUsers) UpdateProfile(_ context.Context, actor service.Actor, _ domain.ProfileUpdate) (*domain.User, error) {
	return &domain.User{ID: actor.ID}, m.err
}

func (m *mockUsers) Reviews(context.Context, primitive.ObjectID) ([]*domain.Rating, error) {
	return []*domain.Rating{}, m.err
}

func (m *mockUsers) AddReview(context.Context, service.Actor, primitive.ObjectID, service.ReviewInput) ([]*domain.Rating, error) {
	return []*domain.Rating{}, m.err
}

type mockMessages struct{}

func (mockMessages) Send(context.Context, service.Actor, service.SendMessageInput) (*domain.Message, error) {
	return &domain.Message{}, nil
}

func (mockMessages) Conversations(context.Context, service.Actor) ([]domain.Conversation, error) {
	return []domain.Conversation{}, nil
}

func (mockMessages) Thread(context.Context, service.Actor, primitive.ObjectID, primitive.ObjectID) ([]*domain.Message, error) {
	return []*domain.Message{}, nil
}

func (mockMessages) MarkRead(context.Context, service.Actor, primitive.ObjectID) (*domain.Message, error) {
	return &domain.Message{}, nil
}

type mockDisputes struct{ err error }

func (m mockDisputes) Open(context.Context, service.Actor, service.OpenDisputeInput) (*domain.Dispute, error) {
	return &domain.Dispute{}, m.err
}

func (m mockDisputes) List(context.Context, service.Actor) ([]*domain.Dispute, error) { return nil, m.err }

func (m mockDisputes) Get(context.Context, service.Actor, primitive.ObjectID) (*domain.Dispute, error) {
	return &domain.Dispute{}, m.err
}

func (m mockDisputes) AddMessage(context.Context, service.Actor, primitive.ObjectID, string) (*domain.Dispute, error) {
	return &domain.Dispute{}, m.err
}

func (m mockDisputes) AddEvidence(context.Context, service.Actor, primitive.ObjectID, service.EvidenceInput) (*domain.Dispute, error) {
	return &domain.Dispute{}, m.err
}

func (m mockDisputes) UpdateStatus(context.Context, service.Actor, primitive.ObjectID, domain.DisputeStatus) (*domain.Dispute, error) {
	return &domain.Dispute{}, m.err
}

type mockComplaints struct{}

func (mockComplaints) File(context.Context, service.Actor, service.ComplaintInput) (*domain.Complaint, error) {
	return &domain.Complaint{}, nil
}

func (mockComplaints) ListMine(context.Context, service.Actor) ([]*domain.Complaint, error) {
	return nil, nil
}

type mockNotifications struct{}

func (mockNotifications) List(context.Context, service.Actor) ([]*domain.Notification, error) {
	return nil, nil
}
func (mockNotifications) MarkRead(context.Context, service.Actor, primitive.ObjectID) error { return nil }
func (mockNotifications) MarkAllRead(context.Context, service.Actor) (int64, error)        { return 3, nil }
func (mockNotifications) Delete(context.Context, service.Actor, primitive.ObjectID) error   { return nil }

type mockAdmin struct {
	filter audit.Filter
}

func (m *mockAdmin) ListComplaints(context.Context, service.Actor, domain.ComplaintStatus) ([]*domain.Complaint, error) {
	return nil, nil
}

func (m *mockAdmin) GetComplaint(context.Context, service.Actor, primitive.ObjectID) (*domain.Complaint, error) {
	return &domain.Complaint{}, nil
}

func (m *mockAdmin) UpdateComplaint(context.Context, service.Actor, primitive.ObjectID, service.ComplaintStatusInput) (*domain.Complaint, error) {
	return &domain.Complaint{}, nil
}

func (m *mockAdmin) ResolveDispute(context.Context, service.Actor, primitive.ObjectID, service.ResolveInput) (*domain.Dispute, error) {
	return &domain.Dispute{}, nil
}

func (m *mockAdmin) AssignDispute(context.Context, service.Actor, primitive.ObjectID, service.AssignInput) (*domain.Dispute, error) {
	return &domain.Dispute{}, nil
}

func (m *mockAdmin) SetProductStatus(context.Context, service.Actor, primitive.ObjectID, service.ProductStatusInput) (*domain.Product, error) {
	return &domain.Product{}, nil
}

func (m *mockAdmin) ListAudit(_ context.Context, _ service.Actor, f audit.Filter) ([]domain.AuditEntry, error) {
	m.filter = f
	return []domain.AuditEntry{}, nil
}

func (m *mockAdmin) ListActions(context.Context, service.Actor, string, int) ([]domain.AdminAction, error) {
	return []domain.AdminAction{}, nil
}

type mockSigner struct{ err error }

func (m mockSigner) AuthParams() (*imagekit.AuthParams, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &imagekit.AuthParams{Token: "tok", Expire: 1700000000, Signature: "sig"}, nil
}

type testServer struct {
	handler  http.Handler
	auth     *mockAuth
	products *mockProducts
	carts    *mockCarts
	orders   *mockOrders
	admin    *mockAdmin
}

func newTestServer(checks map[string]HealthCheck) *testServer {
	log := testLogger()
	ts := &testServer{
		auth:     &mockAuth{},
		products: &mockProducts{},
		carts:    &mockCarts{cart: &domain.Cart{Items: []domain.CartItem{}}},
		orders:   &mockOrders{},
		admin:    &mockAdmin{},
	}
	handlers := Handlers{
		Auth:          NewAuthHandler(ts.auth, log),
		Products:      NewProductHandler(ts.products, log),
		Users:         NewUserHandler(&mockUsers{}, log),
		Messages:      NewMessageHandler(mockMessages{}, log),
		Carts:         NewCartHandler(ts.carts, log),
		Orders:        NewOrderHandler(ts.orders, log),
		Disputes:      NewDisputeHandler(mockDisputes{}, mockComplaints{}, log),
		Notifications: NewNotificationHandler(mockNotifications{}, log),
		Admin:         NewAdminHandler(ts.admin, log),
		Uploads:       NewUploadHandler(mockSigner{}, log),
	}
	cfg := RouterConfig{
		RequestTimeout: 5 * time.Second,
		MaxBodyBytes:   1 << 20,
		CORSOrigins:    []string{"http://localhost:3000"},
	}
	ts.handler = NewRouter(cfg, service.NewTokenIssuer(testSecret, time.Hour), handlers, checks, log)
	return ts
}

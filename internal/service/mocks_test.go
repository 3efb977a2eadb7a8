package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ecofinds/marketplace/internal/audit"
	"github.com/ecofinds/marketplace/internal/cache"
	"github.com/ecofinds/marketplace/internal/domain"
	"github.com/ecofinds/marketplace/internal/notify"
	"github.com/ecofinds/marketplace/internal/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockUserRepo struct {
	m     sync.RWMutex
	users map[primitive.ObjectID]*domain.User
	err   error
}

func newMockUserRepo(users ...*domain.User) *mockUserRepo {
	r := &mockUserRepo{users: make(map[primitive.ObjectID]*domain.User)}
	for _, u := range users {
		if u.ID.IsZero() {
			u.ID = primitive.NewObjectID()
		}
		r.users[u.ID] = u
	}
	return r
}

func (r *mockUserRepo) Create(_ context.Context, user *domain.User) error {
	r.m.Lock()
	defer r.m.Unlock()
	if r.err != nil {
		return r.err
	}
	for _, u := range r.users {
		if u.Email == user.Email || u.Phone == user.Phone {
			return repository.ErrDuplicate
		}
	}
	user.ID = primitive.NewObjectID()
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *mockUserRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.User, error) {
	r.m.RLock()
	defer r.m.RUnlock()
	if r.err != nil {
		return nil, r.err
	}
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *mockUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.m.RLock()
	defer r.m.RUnlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, u := range r.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *mockUserRepo) ExistsByEmailOrPhone(_ context.Context, email, phone string) (bool, error) {
	r.m.RLock()
	defer r.m.RUnlock()
	if r.err != nil {
		return false, r.err
	}
	for _, u := range r.users {
		if u.Email == email || u.Phone == phone {
			return true, nil
		}
	}
	return false, nil
}

func (r *mockUserRepo) MarkPhoneVerified(_ context.Context, id primitive.ObjectID, otp string) error {
	r.m.Lock()
	defer r.m.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	if u.OTP != otp {
		return repository.ErrStatusChanged
	}
	u.PhoneVerified = true
	u.OTP = ""
	u.OTPExpiresAt = nil
	u.RefreshVerified()
	return nil
}

func (r *mockUserRepo) MarkEmailVerified(_ context.Context, id primitive.ObjectID) error {
	r.m.Lock()
	defer r.m.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.EmailVerified = true
	u.RefreshVerified()
	return nil
}

func (r *mockUserRepo) SetPassword(_ context.Context, id primitive.ObjectID, otp, passwordHash string) error {
	r.m.Lock()
	defer r.m.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	if u.OTP != otp {
		return repository.ErrStatusChanged
	}
	u.PasswordHash = passwordHash
	u.OTP = ""
	u.OTPExpiresAt = nil
	return nil
}

func (r *mockUserRepo) UpdateProfile(_ context.Context, id primitive.ObjectID, p domain.ProfileUpdate) (*domain.User, error) {
	r.m.Lock()
	defer r.m.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Bio != nil {
		u.Bio = *p.Bio
	}
	if p.AvatarURL != nil {
		u.AvatarURL = *p.AvatarURL
	}
	if p.Location != nil {
		u.Location = *p.Location
	}
	copied := *u
	return &copied, nil
}

func (r *mockUserRepo) SetOTP(_ context.Context, id primitive.ObjectID, otp string, expiresAt time.Time) error {
	r.m.Lock()
	defer r.m.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.OTP = otp
	u.OTPExpiresAt = &expiresAt
	return nil
}

func (r *mockUserRepo) ToggleSavedProduct(_ context.Context, userID, productID primitive.ObjectID) (bool, error) {
	r.m.Lock()
	defer r.m.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return false, repository.ErrUserNotFound
	}
	for i, id := range u.SavedProducts {
		if id == productID {
			u.SavedProducts = append(u.SavedProducts[:i], u.SavedProducts[i+1:]...)
			return false, nil
		}
	}
	u.SavedProducts = append(u.SavedProducts, productID)
	return true, nil
}

func (r *mockUserRepo) SetRating(_ context.Context, id primitive.ObjectID, stats domain.RatingStats) error {
	r.m.Lock()
	defer r.m.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.RatingAvg = stats.Average
	u.RatingCount = stats.Count
	return nil
}

func (r *mockUserRepo) get(id primitive.ObjectID) *domain.User {
	r.m.RLock()
	defer r.m.RUnlock()
	return r.users[id]
}

type mockProductRepo struct {
	m        sync.RWMutex
	products map[primitive.ObjectID]*domain.Product
	err      error
	// bidErr, when set, is returned by PlaceBid to simulate a lost race.
	bidErr   error
	closed   map[primitive.ObjectID]domain.ProductStatus
	restored map[primitive.ObjectID]int
	getCalls int
}

func newMockProductRepo(products ...*domain.Product) *mockProductRepo {
	r := &mockProductRepo{
		products: make(map[primitive.ObjectID]*domain.Product),
		closed:   make(map[primitive.ObjectID]domain.ProductStatus),
		restored: make(map[primitive.ObjectID]int),
	}
	for _, p := range products {
		if p.ID.IsZero() {
			p.ID = primitive.NewObjectID()
		}
		r.products[p.ID] = p
	}
	return r
}

func cloneProduct(p *domain.Product) *domain.Product {
	copied := *p
	if p.Auction != nil {
		a := *p.Auction
		a.Bids = append([]domain.Bid(nil), p.Auction.Bids...)
		copied.Auction = &a
	}
	return &copied
}

func (r *mockProductRepo) Create(_ context.Context, p *domain.Product) error {
	r.m.Lock()
	defer r.m.Unlock()
	if r.err != nil {
		return r.err
	}
	p.ID = primitive.NewObjectID()
	if p.Status == "" {
		p.Status = domain.ProductActive
	}
	r.products[p.ID] = cloneProduct(p)
	return nil
}

func (r *mockProductRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Product, error) {
	r.m.Lock()
	defer r.m.Unlock()
	r.getCalls++
	if r.err != nil {
		return nil, r.err
	}
	p, ok := r.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return cloneProduct(p), nil
}

func (r *mockProductRepo) GetMany(_ context.Context, ids []primitive.ObjectID) ([]*domain.Product, error) {
	r.m.RLock()
	defer r.m.RUnlock()
	out := make([]*domain.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := r.products[id]; ok {
			out = append(out, cloneProduct(p))
		}
	}
	return out, nil
}

func (r *mockProductRepo) Update(_ context.Context, p *domain.Product) error {
	r.m.Lock()
	defer r.m.Unlock()
	if _, ok := r.products[p.ID]; !ok {
		return repository.ErrProductNotFound
	}
	r.products[p.ID] = cloneProduct(p)
	return nil
}

func (r *mockProductRepo) SetStatus(_ context.Context, id primitive.ObjectID, status domain.ProductStatus) error {
	r.m.Lock()
	defer r.m.Unlock()
	p, ok := r.products[id]
	if !ok {
		return repository.ErrProductNotFound
	}
	p.Status = status
	return nil
}

func (r *mockProductRepo) IncrementViews(_ context.Context, id primitive.ObjectID) error {
	r.m.Lock()
	defer r.m.Unlock()
	if p, ok := r.products[id]; ok {
		p.ViewCount++
	}
	return nil
}

func (r *mockProductRepo) List(_ context.Context, f repository.ProductFilter) ([]*domain.Product, int64, error) {
	r.m.RLock()
	defer r.m.RUnlock()
	var out []*domain.Product
	for _, p := range r.products {
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.NotStatus != "" && p.Status == f.NotStatus {
			continue
		}
		if f.SellerID != nil && p.SellerID != *f.SellerID {
			continue
		}
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		out = append(out, cloneProduct(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	total := int64(len(out))
	start := (f.Page - 1) * f.Limit
	if start > len(out) {
		start = len(out)
	}
	end := start + f.Limit
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], total, nil
}

func (r *mockProductRepo) PlaceBid(_ context.Context, id primitive.ObjectID, bid domain.Bid) (*domain.Product, error) {
	r.m.Lock()
	defer r.m.Unlock()
	if r.bidErr != nil {
		return nil, r.bidErr
	}
	p, ok := r.products[id]
	if !ok || p.Auction == nil || bid.Amount <= p.Auction.Floor() {
		return nil, repository.ErrBidRejected
	}
	before := cloneProduct(p)
	bidder := bid.BidderID
	p.Auction.CurrentBid = bid.Amount
	p.Auction.CurrentBidder = &bidder
	p.Auction.BidCount++
	p.Auction.Bids = append(p.Auction.Bids, bid)
	return before, nil
}

func (r *mockProductRepo) DecrementStock(_ context.Context, id primitive.ObjectID, quantity int) (*domain.Product, error) {
	r.m.Lock()
	defer r.m.Unlock()
	p, ok := r.products[id]
	if !ok || p.Status != domain.ProductActive || p.Quantity < quantity {
		return nil, repository.ErrInsufficientStock
	}
	p.Quantity -= quantity
	if p.Quantity == 0 {
		p.Status = domain.ProductSold
	}
	return cloneProduct(p), nil
}

func (r *mockProductRepo) RestoreStock(_ context.Context, id primitive.ObjectID, quantity int) error {
	r.m.Lock()
	defer r.m.Unlock()
	p, ok := r.products[id]
	if !ok {
		return repository.ErrProductNotFound
	}
	p.Quantity += quantity
	if p.Status == domain.ProductSold && !p.IsAuction {
		p.Status = domain.ProductActive
	}
	r.restored[id] += quantity
	return nil
}

func (r *mockProductRepo) ListExpiredAuctions(_ context.Context, now time.Time, limit int) ([]*domain.Product, error) {
	r.m.RLock()
	defer r.m.RUnlock()
	var out []*domain.Product
	for _, p := range r.products {
		if p.IsAuction && p.Status == domain.ProductActive && !p.Auction.EndTime.After(now) {
			out = append(out, cloneProduct(p))
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *mockProductRepo) CloseAuction(_ context.Context, id primitive.ObjectID, status domain.ProductStatus) error {
	r.m.Lock()
	defer r.m.Unlock()
	p, ok := r.products[id]
	if !ok || p.Status != domain.ProductActive {
		return repository.ErrStatusChanged
	}
	p.Status = status
	r.closed[id] = status
	return nil
}

func (r *mockProductRepo) get(id primitive.ObjectID) *domain.Product {
	r.m.RLock()
	defer r.m.RUnlock()
	return r.products[id]
}

type mockProductCache struct {
	m        sync.RWMutex
	products map[string]*domain.Product
	deleted  []string
}

func newMockProductCache() *mockProductCache {
	return &mockProductCache{products: make(map[string]*domain.Product)}
}

func (c *mockProductCache) Get(_ context.Context, id string) (*domain.Product, error) {
	c.m.RLock()
	defer c.m.RUnlock()
	p, ok := c.products[id]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return cloneProduct(p), nil
}

func (c *mockProductCache) Set(_ context.Context, id string, p *domain.Product) error {
	c.m.Lock()
	defer c.m.Unlock()
	c.products[id] = cloneProduct(p)
	return nil
}

func (c *mockProductCache) Delete(_ context.Context, id string) error {
	c.m.Lock()
	defer c.m.Unlock()
	delete(c.products, id)
	c.deleted = append(c.deleted, id)
	return nil
}

func (c *mockProductCache) wasDeleted(id string) bool {
	c.m.RLock()
	defer c.m.RUnlock()
	for _, d := range c.deleted {
		if d == id {
			return true
		}
	}
	return false
}

// mockGuard implements both cache.Guard and cache.Limiter in memory.
type mockGuard struct {
	m      sync.Mutex
	held   map[string]bool
	hits   map[string]int
	err    error
	resets []string
}

func newMockGuard() *mockGuard {
	return &mockGuard{held: make(map[string]bool), hits: make(map[string]int)}
}

func (g *mockGuard) Acquire(_ context.Context, key string, _ time.Duration) (bool, error) {
	g.m.Lock()
	defer g.m.Unlock()
	if g.err != nil {
		return false, g.err
	}
	if g.held[key] {
		return false, nil
	}
	g.held[key] = true
	return true, nil
}

func (g *mockGuard) Release(_ context.Context, key string) error {
	g.m.Lock()
	defer g.m.Unlock()
	delete(g.held, key)
	return nil
}

func (g *mockGuard) Hit(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	g.m.Lock()
	defer g.m.Unlock()
	if g.err != nil {
		return false, g.err
	}
	g.hits[key]++
	return g.hits[key] <= limit, nil
}

func (g *mockGuard) Reset(_ context.Context, key string) error {
	g.m.Lock()
	defer g.m.Unlock()
	delete(g.hits, key)
	g.resets = append(g.resets, key)
	return nil
}

func (g *mockGuard) isHeld(key string) bool {
	g.m.Lock()
	defer g.m.Unlock()
	return g.held[key]
}

type mockSender struct {
	m      sync.Mutex
	emails []notify.Email
	sms    []string
	err    error
}

func (s *mockSender) SendEmail(_ context.Context, email notify.Email) error {
	s.m.Lock()
	defer s.m.Unlock()
	s.emails = append(s.emails, email)
	return s.err
}

func (s *mockSender) SendSMS(_ context.Context, to, body string) error {
	s.m.Lock()
	defer s.m.Unlock()
	s.sms = append(s.sms, to+"|"+body)
	return s.err
}

func (s *mockSender) lastSMS() string {
	s.m.Lock()
	defer s.m.Unlock()
	if len(s.sms) == 0 {
		return ""
	}
	return s.sms[len(s.sms)-1]
}

type mockLedger struct {
	m       sync.Mutex
	entries []domain.AuditEntry
	actions []domain.AdminAction
}

var _ audit.Ledger = (*mockLedger)(nil)

func (l *mockLedger) RecordAudit(_ context.Context, e domain.AuditEntry) error {
	l.m.Lock()
	defer l.m.Unlock()
	l.entries = append(l.entries, e)
	return nil
}

func (l *mockLedger) RecordAdminAction(_ context.Context, a domain.AdminAction) error {
	l.m.Lock()
	defer l.m.Unlock()
	l.actions = append(l.actions, a)
	return nil
}

func (l *mockLedger) ListAudit(_ context.Context, f audit.Filter) ([]domain.AuditEntry, error) {
	l.m.Lock()
	defer l.m.Unlock()
	var out []domain.AuditEntry
	for _, e := range l.entries {
		if f.EntityType == "" || e.EntityType == f.EntityType {
			out = append(out, e)
		}
	}
	return out, nil
}

func (l *mockLedger) ListAdminActions(_ context.Context, adminID string, _ int) ([]domain.AdminAction, error) {
	l.m.Lock()
	defer l.m.Unlock()
	var out []domain.AdminAction
	for _, a := range l.actions {
		if adminID == "" || a.AdminID == adminID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (l *mockLedger) actionsOf(kind string) []domain.AuditEntry {
	l.m.Lock()
	defer l.m.Unlock()
	var out []domain.AuditEntry
	for _, e := range l.entries {
		if e.Action == kind {
			out = append(out, e)
		}
	}
	return out
}

func (l *mockLedger) adminActions() []domain.AdminAction {
	l.m.Lock()
	defer l.m.Unlock()
	return append([]domain.AdminAction(nil), l.actions...)
}

type mockOutbox struct {
	m      sync.Mutex
	events []*domain.OutboxEvent
}

func (o *mockOutbox) SaveEvents(_ context.Context, events ...*domain.OutboxEvent) error {
	o.m.Lock()
	defer o.m.Unlock()
	o.events = append(o.events, events...)
	return nil
}

func (o *mockOutbox) GetUnprocessedEvents(context.Context, int) ([]*domain.OutboxEvent, error) {
	o.m.Lock()
	defer o.m.Unlock()
	return o.events, nil
}

func (o *mockOutbox) MarkEventAsProcessed(context.Context, primitive.ObjectID) error {
	return nil
}

func (o *mockOutbox) types() []domain.EventType {
	o.m.Lock()
	defer o.m.Unlock()
	out := make([]domain.EventType, 0, len(o.events))
	for _, e := range o.events {
		out = append(out, e.EventType)
	}
	return out
}

type mockCartRepo struct {
	m     sync.RWMutex
	carts map[primitive.ObjectID]*domain.Cart
}

func newMockCartRepo() *mockCartRepo {
	return &mockCartRepo{carts: make(map[primitive.ObjectID]*domain.Cart)}
}

func (r *mockCartRepo) GetCart(_ context.Context, userID primitive.ObjectID) (*domain.Cart, error) {
	r.m.RLock()
	defer r.m.RUnlock()
	c, ok := r.carts[userID]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	copied := *c
	copied.Items = append([]domain.CartItem(nil), c.Items...)
	return &copied, nil
}

func (r *mockCartRepo) UpsertCart(_ context.Context, c *domain.Cart) error {
	r.m.Lock()
	defer r.m.Unlock()
	r.carts[c.UserID] = c
	return nil
}

func (r *mockCartRepo) AddItem(_ context.Context, userID primitive.ObjectID, item domain.CartItem) error {
	r.m.Lock()
	defer r.m.Unlock()
	c, ok := r.carts[userID]
	if !ok {
		c = &domain.Cart{UserID: userID}
		r.carts[userID] = c
	}
	if i, found := c.Find(item.ProductID); found {
		c.Items[i] = item
		return nil
	}
	c.Items = append(c.Items, item)
	return nil
}

func (r *mockCartRepo) UpdateItemQuantity(_ context.Context, userID, productID primitive.ObjectID, quantity int) error {
	r.m.Lock()
	defer r.m.Unlock()
	c, ok := r.carts[userID]
	if !ok {
		return repository.ErrItemNotFound
	}
	i, found := c.Find(productID)
	if !found {
		return repository.ErrItemNotFound
	}
	c.Items[i].Quantity = quantity
	return nil
}

func (r *mockCartRepo) RemoveItem(_ context.Context, userID, productID primitive.ObjectID) error {
	r.m.Lock()
	defer r.m.Unlock()
	c, ok := r.carts[userID]
	if !ok {
		return repository.ErrItemNotFound
	}
	i, found := c.Find(productID)
	if !found {
		return repository.ErrItemNotFound
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	return nil
}

func (r *mockCartRepo) DeleteCart(_ context.Context, userID primitive.ObjectID) error {
	r.m.Lock()
	defer r.m.Unlock()
	if _, ok := r.carts[userID]; !ok {
		return repository.ErrCartNotFound
	}
	delete(r.carts, userID)
	return nil
}

type mockOrderRepo struct {
	m      sync.RWMutex
	orders []*domain.Order
	err    error
	// failAfter > 0 makes CreateMany store that many orders and then fail.
	failAfter int
	deleteErr error
}

var errInsertInterrupted = errors.New("connection reset during insert")

// CreateMany inserts in order and stops at the first failure, like an ordered InsertMany.
func (r *mockOrderRepo) CreateMany(_ context.Context, orders []*domain.Order) error {
	r.m.Lock()
	defer r.m.Unlock()
	if r.err != nil {
		return r.err
	}
	for i, o := range orders {
		if o.ID.IsZero() {
			o.ID = primitive.NewObjectID()
		}
		if r.failAfter > 0 && i == r.failAfter {
			return errInsertInterrupted
		}
		for _, existing := range r.orders {
			if o.IdempotencyKey != "" && existing.BuyerID == o.BuyerID && existing.IdempotencyKey == o.IdempotencyKey {
				return repository.ErrDuplicate
			}
		}
		copied := *o
		r.orders = append(r.orders, &copied)
	}
	return nil
}

func (r *mockOrderRepo) DeleteByIDs(_ context.Context, ids []primitive.ObjectID) error {
	r.m.Lock()
	defer r.m.Unlock()
	if r.deleteErr != nil {
		return r.deleteErr
	}
	kept := r.orders[:0]
	for _, o := range r.orders {
		if !slices.Contains(ids, o.ID) {
			kept = append(kept, o)
		}
	}
	r.orders = kept
	return nil
}

func (r *mockOrderRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Order, error) {
	r.m.RLock()
	defer r.m.RUnlock()
	for _, o := range r.orders {
		if o.ID == id {
			copied := *o
			return &copied, nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (r *mockOrderRepo) filter(keep func(*domain.Order) bool) []*domain.Order {
	r.m.RLock()
	defer r.m.RUnlock()
	out := make([]*domain.Order, 0)
	for _, o := range r.orders {
		if keep(o) {
			copied := *o
			out = append(out, &copied)
		}
	}
	return out
}

func (r *mockOrderRepo) ListByBuyer(_ context.Context, buyerID primitive.ObjectID) ([]*domain.Order, error) {
	return r.filter(func(o *domain.Order) bool { return o.BuyerID == buyerID }), nil
}

func (r *mockOrderRepo) ListBySeller(_ context.Context, sellerID primitive.ObjectID) ([]*domain.Order, error) {
	return r.filter(func(o *domain.Order) bool { return o.SellerID == sellerID }), nil
}

func (r *mockOrderRepo) ListByIdempotencyKey(_ context.Context, buyerID primitive.ObjectID, key string) ([]*domain.Order, error) {
	return r.filter(func(o *domain.Order) bool {
		return o.BuyerID == buyerID && strings.HasPrefix(o.IdempotencyKey, key+":")
	}), nil
}

func (r *mockOrderRepo) UpdateStatus(_ context.Context, id primitive.ObjectID, from, to domain.OrderStatus, tracking string) (*domain.Order, error) {
	r.m.Lock()
	defer r.m.Unlock()
	for _, o := range r.orders {
		if o.ID != id {
			continue
		}
		if o.Status != from {
			return nil, repository.ErrStatusChanged
		}
		o.Status = to
		if tracking != "" {
			o.TrackingNumber = tracking
		}
		copied := *o
		return &copied, nil
	}
	return nil, repository.ErrOrderNotFound
}

type mockRatingRepo struct {
	m       sync.RWMutex
	ratings []*domain.Rating
}

func (r *mockRatingRepo) Create(_ context.Context, rating *domain.Rating) error {
	r.m.Lock()
	defer r.m.Unlock()
	for _, existing := range r.ratings {
		if existing.ReviewerID == rating.ReviewerID && existing.RevieweeID == rating.RevieweeID {
			return repository.ErrDuplicate
		}
	}
	rating.ID = primitive.NewObjectID()
	r.ratings = append(r.ratings, rating)
	return nil
}

func (r *mockRatingRepo) ListByReviewee(_ context.Context, revieweeID primitive.ObjectID) ([]*domain.Rating, error) {
	r.m.RLock()
	defer r.m.RUnlock()
	var out []*domain.Rating
	for _, rating := range r.ratings {
		if rating.RevieweeID == revieweeID {
			out = append(out, rating)
		}
	}
	return out, nil
}

func (r *mockRatingRepo) Stats(_ context.Context, revieweeID primitive.ObjectID) (domain.RatingStats, error) {
	r.m.RLock()
	defer r.m.RUnlock()
	var stats domain.RatingStats
	sum := 0
	for _, rating := range r.ratings {
		if rating.RevieweeID == revieweeID {
			sum += rating.Rating
			stats.Count++
		}
	}
	if stats.Count > 0 {
		stats.Average = float64(sum) / float64(stats.Count)
	}
	return stats, nil
}

type mockMessageRepo struct {
	m        sync.RWMutex
	messages []*domain.Message
	marked   int64
}

func (r *mockMessageRepo) Create(_ context.Context, msg *domain.Message) error {
	r.m.Lock()
	defer r.m.Unlock()
	msg.ID = primitive.NewObjectID()
	msg.CreatedAt = time.Now()
	r.messages = append(r.messages, msg)
	return nil
}

func (r *mockMessageRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Message, error) {
	r.m.RLock()
	defer r.m.RUnlock()
	for _, msg := range r.messages {
		if msg.ID == id {
			copied := *msg
			return &copied, nil
		}
	}
	return nil, repository.ErrMessageNotFound
}

func (r *mockMessageRepo) Conversations(_ context.Context, userID primitive.ObjectID) ([]domain.Conversation, error) {
	r.m.RLock()
	defer r.m.RUnlock()
	var out []domain.Conversation
	for _, msg := range r.messages {
		if msg.SenderID == userID || msg.ReceiverID == userID {
			out = append(out, domain.Conversation{ProductID: msg.ProductID, LastMessage: *msg})
		}
	}
	return out, nil
}

func (r *mockMessageRepo) Thread(_ context.Context, userID, otherID, productID primitive.ObjectID) ([]*domain.Message, error) {
	r.m.RLock()
	defer r.m.RUnlock()
	var out []*domain.Message
	for _, msg := range r.messages {
		between := (msg.SenderID == userID && msg.ReceiverID == otherID) || (msg.SenderID == otherID && msg.ReceiverID == userID)
		if between && msg.ProductID == productID {
			copied := *msg
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *mockMessageRepo) MarkThreadRead(_ context.Context, receiverID, senderID, productID primitive.ObjectID) (int64, error) {
	r.m.Lock()
	defer r.m.Unlock()
	var n int64
	for _, msg := range r.messages {
		if msg.ReceiverID == receiverID && msg.SenderID == senderID && msg.ProductID == productID && !msg.IsRead {
			msg.IsRead = true
			n++
		}
	}
	r.marked += n
	return n, nil
}

func (r *mockMessageRepo) MarkRead(_ context.Context, id primitive.ObjectID) error {
	r.m.Lock()
	defer r.m.Unlock()
	for _, msg := range r.messages {
		if msg.ID == id {
			msg.IsRead = true
			return nil
		}
	}
	return repository.ErrMessageNotFound
}

type mockDisputeRepo struct {
	m        sync.RWMutex
	disputes map[primitive.ObjectID]*domain.Dispute
}

func newMockDisputeRepo() *mockDisputeRepo {
	return &mockDisputeRepo{disputes: make(map[primitive.ObjectID]*domain.Dispute)}
}

func (r *mockDisputeRepo) Create(_ context.Context, d *domain.Dispute) error {
	r.m.Lock()
	defer r.m.Unlock()
	d.ID = primitive.NewObjectID()
	copied := *d
	r.disputes[d.ID] = &copied
	return nil
}

func (r *mockDisputeRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Dispute, error) {
	r.m.RLock()
	defer r.m.RUnlock()
	d, ok := r.disputes[id]
	if !ok {
		return nil, repository.ErrDisputeNotFound
	}
	copied := *d
	return &copied, nil
}

func (r *mockDisputeRepo) List(_ context.Context, userID *primitive.ObjectID) ([]*domain.Dispute, error) {
	r.m.RLock()
	defer r.m.RUnlock()
	out := make([]*domain.Dispute, 0)
	for _, d := range r.disputes {
		if userID == nil || d.Participant(*userID) {
			copied := *d
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *mockDisputeRepo) mutate(id primitive.ObjectID, fn func(*domain.Dispute)) (*domain.Dispute, error) {
	r.m.Lock()
	defer r.m.Unlock()
	d, ok := r.disputes[id]
	if !ok {
		return nil, repository.ErrDisputeNotFound
	}
	fn(d)
	copied := *d
	return &copied, nil
}

func (r *mockDisputeRepo) AddMessage(_ context.Context, id primitive.ObjectID, msg domain.DisputeMessage) (*domain.Dispute, error) {
	return r.mutate(id, func(d *domain.Dispute) { d.Messages = append(d.Messages, msg) })
}

func (r *mockDisputeRepo) AddEvidence(_ context.Context, id primitive.ObjectID, ev domain.Evidence) (*domain.Dispute, error) {
	return r.mutate(id, func(d *domain.Dispute) { d.Evidence = append(d.Evidence, ev) })
}

func (r *mockDisputeRepo) UpdateStatus(_ context.Context, id primitive.ObjectID, status domain.DisputeStatus) (*domain.Dispute, error) {
	return r.mutate(id, func(d *domain.Dispute) { d.Status = status })
}

func (r *mockDisputeRepo) Resolve(_ context.Context, id primitive.ObjectID, res domain.Resolution) (*domain.Dispute, error) {
	return r.mutate(id, func(d *domain.Dispute) {
		d.Status = domain.DisputeResolved
		d.Resolution = &res
	})
}

func (r *mockDisputeRepo) Assign(_ context.Context, id, adminID primitive.ObjectID) (*domain.Dispute, error) {
	return r.mutate(id, func(d *domain.Dispute) {
		d.AssignedTo = &adminID
		d.Status = domain.DisputeUnderReview
	})
}

type mockComplaintRepo struct {
	m          sync.RWMutex
	complaints []*domain.Complaint
}

func (r *mockComplaintRepo) Create(_ context.Context, c *domain.Complaint) error {
	r.m.Lock()
	defer r.m.Unlock()
	c.ID = primitive.NewObjectID()
	copied := *c
	r.complaints = append(r.complaints, &copied)
	return nil
}

func (r *mockComplaintRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Complaint, error) {
	r.m.RLock()
	defer r.m.RUnlock()
	for _, c := range r.complaints {
		if c.ID == id {
			copied := *c
			return &copied, nil
		}
	}
	return nil, repository.ErrComplaintNotFound
}

func (r *mockComplaintRepo) ListByComplainant(_ context.Context, userID primitive.ObjectID) ([]*domain.Complaint, error) {
	r.m.RLock()
	defer r.m.RUnlock()
	out := make([]*domain.Complaint, 0)
	for _, c := range r.complaints {
		if c.ComplainantID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *mockComplaintRepo) List(_ context.Context, status domain.ComplaintStatus) ([]*domain.Complaint, error) {
	r.m.RLock()
	defer r.m.RUnlock()
	out := make([]*domain.Complaint, 0)
	for _, c := range r.complaints {
		if status == "" || c.Status == status {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *mockComplaintRepo) Update(_ context.Context, id primitive.ObjectID, u repository.ComplaintUpdate) (*domain.Complaint, error) {
	r.m.Lock()
	defer r.m.Unlock()
	for _, c := range r.complaints {
		if c.ID != id {
			continue
		}
		if u.Status != "" {
			c.Status = u.Status
		}
		if u.AdminNotes != "" {
			c.AdminNotes = u.AdminNotes
		}
		if u.ResolutionDetails != "" {
			c.ResolutionDetails = u.ResolutionDetails
		}
		if u.AssignedTo != nil {
			c.AssignedTo = u.AssignedTo
		}
		copied := *c
		return &copied, nil
	}
	return nil, repository.ErrComplaintNotFound
}

type mockNotificationRepo struct {
	m     sync.RWMutex
	items []*domain.Notification
}

func (r *mockNotificationRepo) Create(_ context.Context, n *domain.Notification) error {
	r.m.Lock()
	defer r.m.Unlock()
	n.ID = primitive.NewObjectID()
	r.items = append(r.items, n)
	return nil
}

func (r *mockNotificationRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Notification, error) {
	r.m.RLock()
	defer r.m.RUnlock()
	for _, n := range r.items {
		if n.ID == id {
			copied := *n
			return &copied, nil
		}
	}
	return nil, repository.ErrNotificationNotFound
}

func (r *mockNotificationRepo) ListByUser(_ context.Context, userID primitive.ObjectID, limit int) ([]*domain.Notification, error) {
	r.m.RLock()
	defer r.m.RUnlock()
	out := make([]*domain.Notification, 0)
	for _, n := range r.items {
		if n.UserID == userID && len(out) < limit {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *mockNotificationRepo) MarkRead(_ context.Context, id primitive.ObjectID) error {
	r.m.Lock()
	defer r.m.Unlock()
	for _, n := range r.items {
		if n.ID == id {
			n.IsRead = true
			return nil
		}
	}
	return repository.ErrNotificationNotFound
}

func (r *mockNotificationRepo) MarkAllRead(_ context.Context, userID primitive.ObjectID) (int64, error) {
	r.m.Lock()
	defer r.m.Unlock()
	var n int64
	for _, item := range r.items {
		if item.UserID == userID && !item.IsRead {
			item.IsRead = true
			n++
		}
	}
	return n, nil
}

func (r *mockNotificationRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	r.m.Lock()
	defer r.m.Unlock()
	for i, n := range r.items {
		if n.ID == id {
			r.items = append(r.items[:i], r.items[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotificationNotFound
}

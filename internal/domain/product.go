package domain

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ListingType string

const (
	ListingFixed   ListingType = "fixed"
	ListingAuction ListingType = "auction"
)

type ProductStatus string

const (
	ProductActive          ProductStatus = "active"
	ProductSold            ProductStatus = "sold"
	ProductClosed          ProductStatus = "closed"
	ProductDeleted         ProductStatus = "deleted"
	ProductPendingApproval ProductStatus = "pending_approval"
)

func (s ProductStatus) Valid() bool {
	switch s {
	case ProductActive, ProductSold, ProductClosed, ProductDeleted, ProductPendingApproval:
		return true
	}
	return false
}

var Categories = []string{"Electronics", "Clothing", "Furniture", "Books", "Home", "Sports", "Toys", "Vehicles", "Other"}

var Conditions = []string{"New", "Like New", "Good", "Fair", "Poor", "Used – Acceptable"}

var (
	ErrAuctionDetailsRequired = errors.New("Auction details (minimumBid, startTime, endTime) are required for auction listings.")
	ErrAuctionWindow          = errors.New("Auction end time must be after start time.")
	ErrPriceRequired          = errors.New("Price is required for fixed-price listings.")
	ErrImagesRequired         = errors.New("Please provide at least one image")
	ErrInvalidCategory        = errors.New("Invalid category")
	ErrInvalidCondition       = errors.New("Invalid condition")
)

type Bid struct {
	BidderID primitive.ObjectID `json:"bidder_id" bson:"bidder_id"`
	Amount   float64            `json:"amount" bson:"amount"`
	BidTime  time.Time          `json:"bid_time" bson:"bid_time"`
}

type AuctionDetails struct {
	MinimumBid    float64             `json:"minimum_bid" bson:"minimum_bid"`
	ReservePrice  float64             `json:"reserve_price,omitempty" bson:"reserve_price,omitempty"`
	StartTime     time.Time           `json:"start_time" bson:"start_time"`
	EndTime       time.Time           `json:"end_time" bson:"end_time"`
	CurrentBid    float64             `json:"current_bid" bson:"current_bid"`
	CurrentBidder *primitive.ObjectID `json:"current_bidder,omitempty" bson:"current_bidder,omitempty"`
	BidCount      int                 `json:"bid_count" bson:"bid_count"`
	Bids          []Bid               `json:"bids" bson:"bids"`
}

// Floor is the amount a new bid has to exceed.
func (a *AuctionDetails) Floor() float64 {
	if a.CurrentBid > 0 {
		return a.CurrentBid
	}
	return a.MinimumBid
}

// HasBids reports whether anyone has bid on the auction yet.
func (a *AuctionDetails) HasBids() bool {
	return a.BidCount > 0 || a.CurrentBidder != nil
}

// BidSpan returns the times of the earliest and latest recorded bids. Both are
// zero when the bid history is empty.
func (a *AuctionDetails) BidSpan() (first, last time.Time) {
	for _, b := range a.Bids {
		if first.IsZero() || b.BidTime.Before(first) {
			first = b.BidTime
		}
		if b.BidTime.After(last) {
			last = b.BidTime
		}
	}
	return first, last
}

type Location struct {
	City        string    `json:"city,omitempty" bson:"city,omitempty"`
	State       string    `json:"state,omitempty" bson:"state,omitempty"`
	Country     string    `json:"country,omitempty" bson:"country,omitempty"`
	Coordinates []float64 `json:"coordinates,omitempty" bson:"coordinates,omitempty"`
	AddressText string    `json:"address_text,omitempty" bson:"address_text,omitempty"`
}

type Product struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	SellerID    primitive.ObjectID `json:"seller_id" bson:"seller_id"`
	Title       string             `json:"title" bson:"title"`
	Description string             `json:"description" bson:"description"`
	Category    string             `json:"category" bson:"category"`
	Subcategory string             `json:"subcategory,omitempty" bson:"subcategory,omitempty"`
	Images      []string           `json:"images" bson:"images"`
	Price       *float64           `json:"price,omitempty" bson:"price,omitempty"`
	IsAuction   bool               `json:"is_auction" bson:"is_auction"`
	Auction     *AuctionDetails    `json:"auction_details,omitempty" bson:"auction_details,omitempty"`
	Condition   string             `json:"condition" bson:"condition"`
	Brand       string             `json:"brand,omitempty" bson:"brand,omitempty"`
	Color       string             `json:"color,omitempty" bson:"color,omitempty"`
	Year        int                `json:"year,omitempty" bson:"year,omitempty"`
	Tags        []string           `json:"tags,omitempty" bson:"tags,omitempty"`
	Location    *Location          `json:"location,omitempty" bson:"location,omitempty"`
	ListingType ListingType        `json:"listing_type" bson:"listing_type"`
	Status      ProductStatus      `json:"status" bson:"status"`
	Quantity    int                `json:"quantity" bson:"quantity"`
	ViewCount   int                `json:"view_count" bson:"view_count"`
	CreatedAt   time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at" bson:"updated_at"`
}

// Normalize enforces the listing invariant: auctions carry complete auction
// details and no price, fixed listings carry a price and no auction details.
func (p *Product) Normalize() error {
	if len(p.Images) == 0 {
		return ErrImagesRequired
	}
	if !contains(Categories, p.Category) {
		return ErrInvalidCategory
	}
	if !contains(Conditions, p.Condition) {
		return ErrInvalidCondition
	}
	if p.Quantity < 1 {
		p.Quantity = 1
	}
	if p.IsAuction {
		a := p.Auction
		if a == nil || a.MinimumBid <= 0 || a.StartTime.IsZero() || a.EndTime.IsZero() {
			return ErrAuctionDetailsRequired
		}
		if !a.EndTime.After(a.StartTime) {
			return ErrAuctionWindow
		}
		if a.Bids == nil {
			a.Bids = []Bid{}
		}
		p.Price = nil
		p.ListingType = ListingAuction
		return nil
	}
	if p.Price == nil || *p.Price < 0 {
		return ErrPriceRequired
	}
	p.Auction = nil
	p.ListingType = ListingFixed
	return nil
}

// AuctionEnded reports whether bidding is over at now. The auction is closed
// from end_time on, matching the bid write filter and the expiry sweep.
func (p *Product) AuctionEnded(now time.Time) bool {
	return p.Status != ProductActive || (p.Auction != nil && !now.Before(p.Auction.EndTime))
}

func (p *Product) Purchasable() bool {
	return p.Status == ProductActive && !p.IsAuction && p.Price != nil
}

func (p *Product) FirstImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

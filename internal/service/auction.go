package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ecofinds/marketplace/internal/domain"
	"github.com/ecofinds/marketplace/internal/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const sweepBatch = 100

var (
	ErrNotAuction    = invalid("This product is not an auction")
	ErrOwnProductBid = invalid("You cannot bid on your own product")
	ErrAuctionEnded  = invalid("Auction has ended")
	ErrBidTooLow     = invalid("Bid must be higher than current bid")
	ErrBidOutpaced   = conflict("Bid must be higher than current bid")
)

// PlaceBid checks the bid against the listing and then records it with a
// conditional write, so a concurrent higher bid cannot be overwritten.
func (s *ProductService) PlaceBid(ctx context.Context, actor Actor, id primitive.ObjectID, amount float64) (*domain.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	if product.Status == domain.ProductDeleted {
		return nil, ErrProductNotFound
	}
	if !product.IsAuction || product.Auction == nil {
		return nil, ErrNotAuction
	}
	if product.SellerID == actor.ID {
		return nil, ErrOwnProductBid
	}
	if product.Status != domain.ProductActive {
		return nil, ErrAuctionEnded
	}
	now := s.now()
	if product.AuctionEnded(now) {
		if _, err := s.closeAuction(ctx, product); err != nil {
			s.log.ErrorContext(ctx, "failed to close ended auction", "product_id", id.Hex(), "error", err)
		}
		return nil, ErrAuctionEnded
	}
	if amount <= product.Auction.Floor() {
		return nil, ErrBidTooLow
	}

	before, err := s.repo.PlaceBid(ctx, id, domain.Bid{BidderID: actor.ID, Amount: amount, BidTime: now})
	if err != nil {
		if errors.Is(err, repository.ErrBidRejected) {
			return nil, ErrBidOutpaced
		}
		return nil, err
	}
	s.invalidate(ctx, id)

	s.emit.Emit(ctx, bidEvents(before, actor.ID, amount, now)...)

	updated, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func bidEvents(before *domain.Product, bidder primitive.ObjectID, amount float64, now time.Time) []domain.EventPayload {
	link := "/products/" + before.ID.Hex()
	events := []domain.EventPayload{{
		EventType:  domain.EventBidPlaced,
		EntityType: "product",
		EntityID:   before.ID.Hex(),
		ActorID:    bidder.Hex(),
		Recipients: hexes(before.SellerID),
		Title:      "New bid",
		Text:       fmt.Sprintf("A bid of %.2f was placed on %s", amount, before.Title),
		Link:       link,
		Amount:     amount,
		OccurredAt: now,
	}}
	if prev := before.Auction.CurrentBidder; prev != nil && *prev != bidder {
		events = append(events, domain.EventPayload{
			EventType:  domain.EventBidOutbid,
			EntityType: "product",
			EntityID:   before.ID.Hex(),
			ActorID:    bidder.Hex(),
			Recipients: hexes(*prev),
			Title:      "You have been outbid",
			Text:       fmt.Sprintf("Someone bid %.2f on %s", amount, before.Title),
			Link:       link,
			Amount:     amount,
			OccurredAt: now,
		})
	}
	return events
}

// CloseExpiredAuctions settles every active auction whose end time has passed
// and returns how many it closed.
func (s *ProductService) CloseExpiredAuctions(ctx context.Context) (int, error) {
	expired, err := s.repo.ListExpiredAuctions(ctx, s.now(), sweepBatch)
	if err != nil {
		return 0, err
	}
	closed := 0
	for _, product := range expired {
		ok, err := s.closeAuction(ctx, product)
		if err != nil {
			s.log.ErrorContext(ctx, "failed to close auction", "product_id", product.ID.Hex(), "error", err)
			continue
		}
		if ok {
			closed++
		}
	}
	return closed, nil
}

// closeAuction sells the listing to the leading bidder when the reserve is met and
// closes it otherwise. It reports false when another writer settled it first.
func (s *ProductService) closeAuction(ctx context.Context, product *domain.Product) (bool, error) {
	a := product.Auction
	won := a != nil && a.CurrentBidder != nil && a.CurrentBid > 0 && a.CurrentBid >= a.ReservePrice

	status := domain.ProductClosed
	if won {
		status = domain.ProductSold
	}
	if err := s.repo.CloseAuction(ctx, product.ID, status); err != nil {
		if errors.Is(err, repository.ErrStatusChanged) {
			return false, nil
		}
		return false, err
	}
	s.invalidate(ctx, product.ID)
	s.log.InfoContext(ctx, "auction closed", "product_id", product.ID.Hex(), "status", status)

	if won {
		s.emit.Emit(ctx, domain.EventPayload{
			EventType:  domain.EventAuctionWon,
			EntityType: "product",
			EntityID:   product.ID.Hex(),
			Recipients: hexes(*a.CurrentBidder, product.SellerID),
			Title:      "Auction won",
			Text:       fmt.Sprintf("%s sold for %.2f", product.Title, a.CurrentBid),
			Link:       "/products/" + product.ID.Hex(),
			Amount:     a.CurrentBid,
			OccurredAt: s.now(),
		})
	}
	return true, nil
}

// RunAuctionSweeper closes expired auctions every interval until ctx is done.
func (s *ProductService) RunAuctionSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			n, err := s.CloseExpiredAuctions(ctx)
			if err != nil {
				s.log.ErrorContext(ctx, "auction sweep failed", "error", err)
				continue
			}
			if n > 0 {
				s.log.InfoContext(ctx, "auction sweep", "closed", n)
			}
		case <-ctx.Done():
			return
		}
	}
}

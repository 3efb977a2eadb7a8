package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/ecofinds/marketplace/internal/config"
	"github.com/ecofinds/marketplace/internal/domain"
	"github.com/ecofinds/marketplace/internal/logger"
	"github.com/ecofinds/marketplace/internal/repository"
)

type seedUser struct {
	name  string
	email string
	phone string
	role  domain.Role
}

var seedUsers = []seedUser{
	{name: "EcoFinds Admin", email: "admin@ecofinds.local", phone: "+10000000001", role: domain.RoleAdmin},
	{name: "Maya Seller", email: "seller@ecofinds.local", phone: "+10000000002", role: domain.RoleUser},
	{name: "Leo Buyer", email: "buyer@ecofinds.local", phone: "+10000000003", role: domain.RoleUser},
}

func price(v float64) *float64 { return &v }

// demoProducts are listed under the seller account.
func demoProducts(now time.Time) []*domain.Product {
	return []*domain.Product{
		{
			Title:       "Oak dining chair",
			Description: "Solid oak, light scratches on one leg.",
			Category:    "Furniture",
			Condition:   "Good",
			Images:      []string{"https://ik.imagekit.io/ecofinds/demo/chair.jpg"},
			Price:       price(45),
			Quantity:    4,
			Location:    &domain.Location{City: "Portland", Country: "US", Coordinates: []float64{-122.6765, 45.5231}},
		},
		{
			Title:       "Road bike, 54cm frame",
			Description: "Aluminium frame, new tyres last spring.",
			Category:    "Sports",
			Condition:   "Like New",
			Images:      []string{"https://ik.imagekit.io/ecofinds/demo/bike.jpg"},
			Price:       price(320),
			Quantity:    1,
			Brand:       "Trek",
		},
		{
			Title:       "Vintage film camera",
			Description: "Fully working 35mm SLR with 50mm lens.",
			Category:    "Electronics",
			Condition:   "Fair",
			Images:      []string{"https://ik.imagekit.io/ecofinds/demo/camera.jpg"},
			IsAuction:   true,
			Quantity:    1,
			Auction: &domain.AuctionDetails{
				MinimumBid: 60,
				StartTime:  now,
				EndTime:    now.Add(7 * 24 * time.Hour),
			},
		},
	}
}

func newSeedCmd(opts *rootOptions) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert demo users and listings; existing records are left alone",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.envFile)
			if err != nil {
				return err
			}
			log := logger.New(os.Stdout, cfg.LogLevel)
			ctx := cmd.Context()

			deps, err := connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer deps.Close(context.Background())

			return seed(ctx, repository.NewUserRepository(deps.db), repository.NewProductRepository(deps.db), password, log)
		},
	}
	cmd.Flags().StringVar(&password, "password", "password123", "password given to every seeded account")
	return cmd
}

func seed(ctx context.Context, users repository.UserRepository, products repository.ProductRepository, password string, log *slog.Logger) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	ids := make(map[string]primitive.ObjectID, len(seedUsers))
	for _, su := range seedUsers {
		existing, err := users.GetByEmail(ctx, su.email)
		if err == nil {
			log.Info("user already exists", "email", su.email)
			ids[su.email] = existing.ID
			continue
		}
		if !errors.Is(err, repository.ErrUserNotFound) {
			return err
		}

		u := &domain.User{
			Name:          su.name,
			Email:         su.email,
			Phone:         su.phone,
			PasswordHash:  string(hash),
			Role:          su.role,
			EmailVerified: true,
			PhoneVerified: true,
		}
		u.RefreshVerified()
		if err := users.Create(ctx, u); err != nil {
			return fmt.Errorf("failed to seed user %s: %w", su.email, err)
		}
		log.Info("user seeded", "email", su.email, "id", u.ID.Hex())
		ids[su.email] = u.ID
	}

	sellerID := ids["seller@ecofinds.local"]
	_, total, err := products.List(ctx, repository.ProductFilter{SellerID: &sellerID, Page: 1, Limit: 1})
	if err != nil {
		return err
	}
	if total > 0 {
		log.Info("seller already has listings, skipping products", "count", total)
		return nil
	}

	for _, p := range demoProducts(time.Now()) {
		p.SellerID = sellerID
		p.Status = domain.ProductActive
		if err := p.Normalize(); err != nil {
			return fmt.Errorf("invalid demo product %q: %w", p.Title, err)
		}
		if err := products.Create(ctx, p); err != nil {
			return fmt.Errorf("failed to seed product %q: %w", p.Title, err)
		}
		log.Info("product seeded", "title", p.Title, "id", p.ID.Hex())
	}

	log.Info("seeding complete")
	return nil
}

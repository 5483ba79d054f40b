package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"

	"github.com/luxora/storefront-api/internal/config"
	"github.com/luxora/storefront-api/internal/model"
	"github.com/luxora/storefront-api/internal/repository"
)

type seedProduct struct {
	title       string
	price       int64
	description string
}

type seedCategory struct {
	name        string
	slug        string
	description string
	sizes       []string
	products    []seedProduct
}

var categories = []seedCategory{
	{
		name:        "Women",
		slug:        "women",
		description: "Elegant fashion for the modern woman",
		sizes:       []string{"XS", "S", "M", "L", "XL"},
		products: []seedProduct{
			{"Silk Evening Dress", 899, "Luxurious silk evening dress with intricate beadwork"},
			{"Cashmere Blazer", 1299, "Premium cashmere blazer with tailored fit"},
			{"Designer Handbag", 2199, "Handcrafted leather handbag with gold hardware"},
			{"Pearl Necklace", 599, "Elegant freshwater pearl necklace"},
			{"Luxury Scarf", 299, "Silk scarf with exclusive print design"},
		},
	},
	{
		name:        "Men",
		slug:        "men",
		description: "Sophisticated style for the discerning gentleman",
		sizes:       []string{"S", "M", "L", "XL", "XXL"},
		products: []seedProduct{
			{"Italian Wool Suit", 2899, "Handtailored Italian wool suit with peak lapels"},
			{"Luxury Watch", 4999, "Swiss-made luxury timepiece with automatic movement"},
			{"Leather Oxford Shoes", 799, "Handcrafted leather Oxford shoes"},
			{"Cashmere Overcoat", 1899, "Premium cashmere overcoat for winter"},
			{"Silk Tie Collection", 199, "Set of three premium silk ties"},
		},
	},
	{
		name:        "Kids",
		slug:        "kids",
		description: "Luxury fashion for the little ones",
		sizes:       []string{"2T", "3T", "4T", "5T", "6", "7", "8"},
		products: []seedProduct{
			{"Designer Kids Dress", 299, "Adorable designer dress for special occasions"},
			{"Kids Formal Suit", 399, "Miniature version of our adult suits"},
			{"Luxury Sneakers", 199, "Premium kids sneakers with comfort design"},
			{"Cashmere Sweater", 249, "Soft cashmere sweater for kids"},
			{"Designer Backpack", 149, "Stylish and functional kids backpack"},
		},
	},
}

var (
	seedColors = []model.Color{
		{Name: "Midnight Black", Hex: "#0D0D0D"},
		{Name: "Champagne Gold", Hex: "#C5A880"},
		{Name: "Rich Burgundy", Hex: "#6A1B1A"},
	}
	seedImages = []string{
		"https://images.pexels.com/photos/1536619/pexels-photo-1536619.jpeg",
		"https://images.pexels.com/photos/1462637/pexels-photo-1462637.jpeg",
	}
	nonSlugChars = regexp.MustCompile(`[^\w\s-]`)
	whitespace   = regexp.MustCompile(`\s+`)
)

const (
	adminEmail    = "admin@luxora.com"
	adminPassword = "admin123"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	reset := pflag.Bool("reset", false, "delete existing users, categories, products and orders first")
	pflag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	store, err := repository.Open(ctx, cfg)
	if err != nil {
		log.Error("open storage", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := seed(ctx, store, *reset, log); err != nil {
		log.Error("seed database", "error", err)
		os.Exit(1)
	}
}

func seed(ctx context.Context, store *repository.Store, reset bool, log *slog.Logger) error {
	if reset {
		if err := store.Reset(ctx); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
		log.Info("cleared existing data", "driver", store.Driver)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	admin := &model.User{Name: "Admin User", Email: adminEmail, Password: string(hash), IsAdmin: true}
	if err := store.Users.Create(ctx, admin); err != nil {
		return fmt.Errorf("create admin: %w", err)
	}

	total := 0
	for i, sc := range categories {
		category := &model.Category{
			Name:        sc.name,
			Slug:        sc.slug,
			Description: sc.description,
			IsActive:    true,
			SortOrder:   i + 1,
		}
		if err := store.Categories.Create(ctx, category); err != nil {
			return fmt.Errorf("create category %s: %w", sc.slug, err)
		}

		for _, p := range buildProducts(sc) {
			p.CategoryID = category.ID
			if err := store.Products.Create(ctx, p); err != nil {
				return fmt.Errorf("create product %s: %w", p.SKU, err)
			}
			total++
		}
	}

	log.Info("database seeded",
		"admin", adminEmail,
		"categories", len(categories),
		"products", total,
	)
	return nil
}

func buildProducts(sc seedCategory) []*model.Product {
	products := make([]*model.Product, 0, len(sc.products))
	for i, p := range sc.products {
		products = append(products, &model.Product{
			Title:       p.title,
			Slug:        slugify(p.title),
			Description: p.description,
			Price:       decimal.NewFromInt(p.price),
			Images:      append([]string(nil), seedImages...),
			Sizes:       append([]string(nil), sc.sizes...),
			Colors:      append([]model.Color(nil), seedColors...),
			InStock:     rand.IntN(50) + 10,
			SKU:         fmt.Sprintf("LUX-%s-%03d", strings.ToUpper(sc.name), i+1),
			Featured:    i < 2,
			IsActive:    true,
			Tags:        []string{"luxury", "premium", sc.slug},
		})
	}
	return products
}

func slugify(title string) string {
	s := nonSlugChars.ReplaceAllString(strings.ToLower(title), "")
	return whitespace.ReplaceAllString(strings.TrimSpace(s), "-")
}

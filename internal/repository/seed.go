package repository

import (
	"time"

	"github.com/fjod/storefront/internal/domain"
)

// SeedProducts mirrors the catalog rows the Postgres migrations insert, for
// the in-memory remote.
func SeedProducts(now time.Time) []domain.Product {
	day := 24 * time.Hour
	return []domain.Product{
		{ID: "8c5c7d4e-2f1a-4b8e-9a63-1f0d2b7c9e01", Title: "Classic Leather Backpack", Description: `Full-grain leather, fits a 15" laptop.`, Price: 129.99, ImageURL: "/images/backpack.jpg", Category: "accessories", Featured: true, CreatedAt: now.Add(-5 * day)},
		{ID: "8c5c7d4e-2f1a-4b8e-9a63-1f0d2b7c9e02", Title: "Wireless Headphones", Description: "Over-ear, 30 hour battery.", Price: 199.00, ImageURL: "/images/headphones.jpg", Category: "electronics", Featured: true, CreatedAt: now.Add(-4 * day)},
		{ID: "8c5c7d4e-2f1a-4b8e-9a63-1f0d2b7c9e03", Title: "Ceramic Pour-Over Set", Description: "Dripper, carafe and two cups.", Price: 45.50, ImageURL: "/images/pour-over.jpg", Category: "home", CreatedAt: now.Add(-3 * day)},
		{ID: "8c5c7d4e-2f1a-4b8e-9a63-1f0d2b7c9e04", Title: "Merino Wool Sweater", Description: "Lightweight crew neck.", Price: 89.00, ImageURL: "/images/sweater.jpg", Category: "clothing", CreatedAt: now.Add(-2 * day)},
		{ID: "8c5c7d4e-2f1a-4b8e-9a63-1f0d2b7c9e05", Title: "Smart Desk Lamp", Description: "Adjustable color temperature.", Price: 59.99, ImageURL: "/images/lamp.jpg", Category: "home", Featured: true, CreatedAt: now.Add(-1 * day)},
	}
}

package models

import "time"

// ProductStatus is the publication state of a product
type ProductStatus string

const (
	ProductStatusDraft     ProductStatus = "DRAFT"
	ProductStatusPublished ProductStatus = "PUBLISHED"
	ProductStatusArchived  ProductStatus = "ARCHIVED"
)

// Valid reports whether s is a known status
func (s ProductStatus) Valid() bool {
	switch s {
	case ProductStatusDraft, ProductStatusPublished, ProductStatusArchived:
		return true
	}
	return false
}

// Product represents a downloadable software product
type Product struct {
	ID          string
	Title       string
	Status      ProductStatus
	Filename    string // stored artifact name, empty until a file is attached
	FileSize    string // human-readable, e.g. "12.50MB"
	DownloadURL string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsDownloadable reports whether the product's artifact may be served publicly
func (p *Product) IsDownloadable() bool {
	return p.Status == ProductStatusPublished
}

// ArtifactRef links a stored software artifact to its product record
type ArtifactRef struct {
	Filename    string
	FileSize    string
	DownloadURL string
}

package product

import (
	"time"

	"github.com/google/uuid"
)

type Product struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Specifications []string  `json:"specifications"`
	Quantity       int       `json:"quantity"`
	Price          float64   `json:"price"`
	ImageURL       string    `json:"image"`
	OwnerID        string    `json:"owner"`
	CategoryID     string    `json:"category"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// ListProductRequest carries the multipart form fields of a seller's
// listing; the image file travels separately.
type ListProductRequest struct {
	Title               string
	Description         string
	Specifications      []string
	Quantity            int
	Price               float64
	CategoryName        string
	CategoryDescription string
	CategoryParentName  string
}

func New(req ListProductRequest, ownerID, categoryID, imageURL string) Product {
	now := time.Now().UTC()

	return Product{
		ID:             uuid.NewString(),
		Title:          req.Title,
		Description:    req.Description,
		Specifications: req.Specifications,
		Quantity:       req.Quantity,
		Price:          req.Price,
		ImageURL:       imageURL,
		OwnerID:        ownerID,
		CategoryID:     categoryID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// CategoryProduct is the read model for category browsing: product fields
// joined with owner and category names.
type CategoryProduct struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Specifications []string `json:"specifications"`
	Quantity       int      `json:"quantity"`
	ImageURL       string   `json:"image"`
	OwnerName      string   `json:"ownerName"`
	OwnerEmail     string   `json:"ownerEmail"`
	CategoryName   string   `json:"categoryName"`
}

package sale

import "time"

// Sale is a read model: rows are written by the checkout pipeline, which
// is outside this service. We only list a seller's past sales.
type Sale struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product"`
	Title     string    `json:"title"`
	Quantity  int       `json:"quantity"`
	Price     float64   `json:"price"`
	OwnerID   string    `json:"owner"`
	BuyerID   string    `json:"buyer"`
	CreatedAt time.Time `json:"createdAt"`
}

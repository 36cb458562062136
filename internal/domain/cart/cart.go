package cart

import (
	"time"

	"github.com/google/uuid"
)

type Entry struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product"`
	OwnerID   string    `json:"owner"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"createdAt"`
}

type AddEntryRequest struct {
	ProductID string `json:"productID" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
}

func New(productID, ownerID string, quantity int) Entry {
	return Entry{
		ID:        uuid.NewString(),
		ProductID: productID,
		OwnerID:   ownerID,
		Quantity:  quantity,
		CreatedAt: time.Now().UTC(),
	}
}

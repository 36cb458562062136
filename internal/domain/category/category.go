package category

import (
	"time"

	"github.com/google/uuid"
)

type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ParentID    *string   `json:"parent,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func New(name, description string, parentID *string) Category {
	return Category{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		ParentID:    parentID,
		CreatedAt:   time.Now().UTC(),
	}
}

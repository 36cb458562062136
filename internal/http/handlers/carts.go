package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/onemove/marketplace/internal/config"
	"github.com/onemove/marketplace/internal/domain/cart"
	"github.com/onemove/marketplace/internal/domain/sale"
	"github.com/onemove/marketplace/internal/http/middlewares"
	"github.com/onemove/marketplace/internal/repo/postgres"
)

type CartStore interface {
	Create(ctx context.Context, e cart.Entry) (cart.Entry, error)
	ListByOwner(ctx context.Context, ownerID string) ([]cart.Entry, error)
}

type SaleStore interface {
	ListByOwner(ctx context.Context, ownerID string) ([]sale.Sale, error)
}

type CartsHandler struct {
	carts    CartStore
	products ProductStore
	sales    SaleStore
}

func NewCartsHandler(carts CartStore, products ProductStore, sales SaleStore) *CartsHandler {
	return &CartsHandler{
		carts:    carts,
		products: products,
		sales:    sales,
	}
}

func (h *CartsHandler) AddToCart(ctx *gin.Context) {
	u, ok := middlewares.UserFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx, "Unauthorized request")
		return
	}

	var req cart.AddEntryRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	p, err := h.products.GetByID(cctx, req.ProductID)

	if err != nil {
		if errors.Is(err, postgres.ErrProductNotFound) {
			RespondNotFound(ctx, "Product not found")
			return
		}

		RespondInternal(ctx, "Could not add to cart")
		return
	}

	if p.Quantity < req.Quantity {
		RespondBadRequest(ctx, "Insufficient product stock")
		return
	}

	entry, err := h.carts.Create(cctx, cart.New(p.ID, u.ID, req.Quantity))

	if err != nil {
		RespondInternal(ctx, "Cart listing failed")
		return
	}

	Respond(ctx, http.StatusCreated, entry, "Cart updated")
}

func (h *CartsHandler) GetCartDetails(ctx *gin.Context) {
	u, ok := middlewares.UserFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx, "Unauthorized request")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	entries, err := h.carts.ListByOwner(cctx, u.ID)

	if err != nil {
		RespondInternal(ctx, "Could not fetch cart")
		return
	}

	Respond(ctx, http.StatusOK, entries, "Cart details fetched")
}

func (h *CartsHandler) GetProductsSold(ctx *gin.Context) {
	u, ok := middlewares.UserFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx, "Unauthorized request")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	sold, err := h.sales.ListByOwner(cctx, u.ID)

	if err != nil {
		RespondInternal(ctx, "Could not fetch sold products")
		return
	}

	Respond(ctx, http.StatusOK, sold, "Sold products fetched")
}

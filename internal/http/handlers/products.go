package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/onemove/marketplace/internal/config"
	"github.com/onemove/marketplace/internal/domain/category"
	"github.com/onemove/marketplace/internal/domain/product"
	"github.com/onemove/marketplace/internal/http/middlewares"
	"github.com/onemove/marketplace/internal/repo/postgres"
	"github.com/onemove/marketplace/internal/storage"
)

type ProductStore interface {
	Create(ctx context.Context, p product.Product) (product.Product, error)
	GetByID(ctx context.Context, id string) (product.Product, error)
	List(ctx context.Context) ([]product.Product, error)
	ListByOwner(ctx context.Context, ownerID string) ([]product.Product, error)
	ListByCategory(ctx context.Context, categoryID string) ([]product.CategoryProduct, error)
}

type CategoryStore interface {
	GetByName(ctx context.Context, name string) (category.Category, error)
	FindOrCreate(ctx context.Context, name, description, parentName string) (category.Category, error)
}

type ProductsHandler struct {
	products   ProductStore
	categories CategoryStore
	uploader   storage.Uploader
}

func NewProductsHandler(products ProductStore, categories CategoryStore, uploader storage.Uploader) *ProductsHandler {
	return &ProductsHandler{
		products:   products,
		categories: categories,
		uploader:   uploader,
	}
}

// ListProduct creates a listing from a seller's multipart form: the text
// fields, a find-or-create category, and an image pushed to the object
// store.
func (h *ProductsHandler) ListProduct(ctx *gin.Context) {
	u, ok := middlewares.UserFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx, "Unauthorized request")
		return
	}

	req, errs := parseListProductForm(ctx)

	if len(errs) > 0 {
		RespondBadRequest(ctx, "Details are missing", errs...)
		return
	}

	fileHeader, err := ctx.FormFile("image")

	if err != nil {
		RespondBadRequest(ctx, "Image missing")
		return
	}

	cctx, cancel := config.WithTimeout(10 * time.Second)
	defer cancel()

	cat, err := h.categories.FindOrCreate(cctx, req.CategoryName, req.CategoryDescription, req.CategoryParentName)

	if err != nil {
		RespondInternal(ctx, "Could not resolve category")
		return
	}

	file, err := fileHeader.Open()

	if err != nil {
		RespondBadRequest(ctx, "Image missing")
		return
	}
	defer file.Close()

	imageURL, err := h.uploader.Upload(cctx, fileHeader.Filename, fileHeader.Header.Get("Content-Type"), file, fileHeader.Size)

	if err != nil {
		RespondInternal(ctx, "Failed to upload image")
		return
	}

	p, err := h.products.Create(cctx, product.New(req, u.ID, cat.ID, imageURL))

	if err != nil {
		RespondInternal(ctx, "Product not uploaded")
		return
	}

	Respond(ctx, http.StatusCreated, p, "Product listed")
}

func (h *ProductsHandler) GetAllProducts(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	products, err := h.products.List(cctx)

	if err != nil {
		RespondInternal(ctx, "Could not fetch products")
		return
	}

	Respond(ctx, http.StatusOK, products, "All products fetched")
}

func (h *ProductsHandler) GetUserProducts(ctx *gin.Context) {
	u, ok := middlewares.UserFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx, "Unauthorized request")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	products, err := h.products.ListByOwner(cctx, u.ID)

	if err != nil {
		RespondInternal(ctx, "Could not fetch products")
		return
	}

	Respond(ctx, http.StatusOK, products, "Products fetched")
}

type CategoryProductsRequest struct {
	CategoryName string `json:"categoryName" binding:"required"`
}

func (h *ProductsHandler) GetProductsByCategory(ctx *gin.Context) {
	var req CategoryProductsRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	cat, err := h.categories.GetByName(cctx, req.CategoryName)

	if err != nil {
		if errors.Is(err, postgres.ErrCategoryNotFound) {
			RespondNotFound(ctx, "Category not found")
			return
		}

		RespondInternal(ctx, "Could not fetch category products")
		return
	}

	products, err := h.products.ListByCategory(cctx, cat.ID)

	if err != nil {
		RespondInternal(ctx, "Could not fetch category products")
		return
	}

	Respond(ctx, http.StatusOK, products, "Category products fetched")
}

func parseListProductForm(ctx *gin.Context) (product.ListProductRequest, []string) {
	req := product.ListProductRequest{
		Title:               ctx.PostForm("title"),
		Description:         ctx.PostForm("description"),
		Specifications:      ctx.PostFormArray("specifications"),
		CategoryName:        ctx.PostForm("categoryName"),
		CategoryDescription: ctx.PostForm("categoryDescription"),
		CategoryParentName:  ctx.PostForm("categoryParentName"),
	}

	var errs []string

	required := map[string]string{
		"title":               req.Title,
		"description":         req.Description,
		"categoryName":        req.CategoryName,
		"categoryDescription": req.CategoryDescription,
	}

	for field, value := range required {
		if value == "" {
			errs = append(errs, field+" is required")
		}
	}

	if len(req.Specifications) == 0 {
		errs = append(errs, "specifications is required")
	}

	quantity, err := strconv.Atoi(ctx.PostForm("quantity"))

	if err != nil || quantity <= 0 {
		errs = append(errs, "quantity must be a positive integer")
	}

	price, err := strconv.ParseFloat(ctx.PostForm("price"), 64)

	if err != nil || price <= 0 {
		errs = append(errs, "price must be a positive number")
	}

	req.Quantity = quantity
	req.Price = price

	return req, errs
}

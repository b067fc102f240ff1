package controllers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/Kariqs/amexan-storefront/middlewares"
	"github.com/Kariqs/amexan-storefront/models"
	"github.com/Kariqs/amexan-storefront/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const productImagePrefix = "product"

type ProductController struct {
	Catalog *services.CatalogService
	Assets  *services.AssetService
	Logger  *zap.Logger
}

// productRequest is the admin product payload. ImageData may carry a base64
// string or data URL that is stored before the product is written.
type productRequest struct {
	Title       string   `json:"title"`
	Price       *int64   `json:"price" binding:"required"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	ImageRef    string   `json:"image_ref"`
	ImageData   string   `json:"image_data"`
	ImageName   string   `json:"image_name"`
	Sizes       []string `json:"sizes"`
}

func (r productRequest) input() services.ProductInput {
	return services.ProductInput{
		Title:       r.Title,
		Price:       *r.Price,
		Description: r.Description,
		Category:    r.Category,
		ImageRef:    r.ImageRef,
		Sizes:       r.Sizes,
	}
}

func (c *ProductController) GetProducts(ctx *gin.Context) {
	products, err := c.Catalog.List(ctx.Request.Context(), ctx.Query("category"))
	if err != nil {
		respondWithServiceError(ctx, c.Logger, "Failed to fetch products", err)
		return
	}
	ctx.JSON(http.StatusOK, products)
}

func (c *ProductController) GetProduct(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		respondWithError(ctx, http.StatusBadRequest, msgInvalidProductID, nil)
		return
	}

	product, err := c.Catalog.Get(ctx.Request.Context(), id)
	if err != nil {
		respondWithServiceError(ctx, c.Logger, "Failed to fetch product", err)
		return
	}
	if product == nil {
		respondWithError(ctx, http.StatusNotFound, msgProductNotFound, nil)
		return
	}
	ctx.JSON(http.StatusOK, product)
}

func (c *ProductController) GetCategories(ctx *gin.Context) {
	categories, err := c.Catalog.Categories(ctx.Request.Context())
	if err != nil {
		respondWithServiceError(ctx, c.Logger, "Failed to fetch categories", err)
		return
	}
	ctx.JSON(http.StatusOK, categories)
}

func (c *ProductController) CreateProduct(ctx *gin.Context) {
	var req productRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondWithError(ctx, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in := req.input()
	stored, ok := c.storeImageData(ctx, req)
	if !ok {
		return
	}
	if stored != "" {
		in.ImageRef = stored
	}

	product, err := c.Catalog.Create(ctx.Request.Context(), middlewares.RoleFrom(ctx), in)
	if err != nil {
		c.discardImage(stored)
		respondWithServiceError(ctx, c.Logger, "Failed to create product", err)
		return
	}
	ctx.JSON(http.StatusCreated, product)
}

// UpdateProduct replaces every mutable field of the product.
func (c *ProductController) UpdateProduct(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		respondWithError(ctx, http.StatusBadRequest, msgInvalidProductID, nil)
		return
	}

	var req productRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondWithError(ctx, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in := req.input()
	stored, ok := c.storeImageData(ctx, req)
	if !ok {
		return
	}
	if stored != "" {
		in.ImageRef = stored
	}

	product, err := c.Catalog.Update(ctx.Request.Context(), middlewares.RoleFrom(ctx), id, in)
	if err != nil {
		c.discardImage(stored)
		respondWithServiceError(ctx, c.Logger, "Failed to update product", err)
		return
	}
	if product == nil {
		c.discardImage(stored)
		respondWithError(ctx, http.StatusNotFound, msgProductNotFound, nil)
		return
	}
	ctx.JSON(http.StatusOK, product)
}

func (c *ProductController) DeleteProduct(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		respondWithError(ctx, http.StatusBadRequest, msgInvalidProductID, nil)
		return
	}

	deleted, err := c.Catalog.Delete(ctx.Request.Context(), middlewares.RoleFrom(ctx), id)
	if err != nil {
		respondWithServiceError(ctx, c.Logger, "Failed to delete product", err)
		return
	}
	if !deleted {
		respondWithError(ctx, http.StatusNotFound, msgProductNotFound, nil)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Product deleted successfully"})
}

// UploadProductImage stores the multipart "image" file and points the
// product at it.
func (c *ProductController) UploadProductImage(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		respondWithError(ctx, http.StatusBadRequest, msgInvalidProductID, nil)
		return
	}

	reqCtx := ctx.Request.Context()
	product, err := c.Catalog.Get(reqCtx, id)
	if err != nil {
		respondWithServiceError(ctx, c.Logger, "Failed to validate product", err)
		return
	}
	if product == nil {
		respondWithError(ctx, http.StatusNotFound, msgProductNotFound, nil)
		return
	}
	in, err := inputFromProduct(*product)
	if err != nil {
		respondWithServiceError(ctx, c.Logger, "Failed to read product", err)
		return
	}

	header, err := ctx.FormFile("image")
	if err != nil {
		respondWithError(ctx, http.StatusBadRequest, "No image uploaded", err)
		return
	}
	if header.Size > c.Assets.MaxBytes() {
		respondWithError(ctx, http.StatusBadRequest, "Image too large", nil)
		return
	}

	f, err := header.Open()
	if err != nil {
		respondWithError(ctx, http.StatusBadRequest, "Failed to open file", err)
		return
	}
	defer f.Close()

	payload, err := io.ReadAll(io.LimitReader(f, c.Assets.MaxBytes()+1))
	if err != nil {
		respondWithError(ctx, http.StatusBadRequest, "Failed to read file", err)
		return
	}

	filename := c.Assets.GenerateFilename(header.Filename, productImagePrefix)
	ref, err := c.Assets.Save(reqCtx, payload, filename)
	if err != nil {
		respondWithServiceError(ctx, c.Logger, "Failed to store image", err)
		return
	}

	in.ImageRef = ref
	updated, err := c.Catalog.Update(reqCtx, middlewares.RoleFrom(ctx), id, in)
	if err != nil {
		c.discardImage(ref)
		respondWithServiceError(ctx, c.Logger, "Failed to attach image", err)
		return
	}
	if updated == nil {
		c.discardImage(ref)
		respondWithError(ctx, http.StatusNotFound, msgProductNotFound, nil)
		return
	}
	ctx.JSON(http.StatusOK, updated)
}

// storeImageData saves inline image data when present. ok is false once an
// error response has been written.
func (c *ProductController) storeImageData(ctx *gin.Context, req productRequest) (ref string, ok bool) {
	if req.ImageData == "" {
		return "", true
	}
	if !middlewares.RoleFrom(ctx).IsAdmin() {
		respondWithServiceError(ctx, c.Logger, "Failed to store image", services.ErrForbidden)
		return "", false
	}

	filename := c.Assets.GenerateFilename(req.ImageName, productImagePrefix)
	ref, err := c.Assets.Save(ctx.Request.Context(), []byte(req.ImageData), filename)
	if err != nil {
		respondWithServiceError(ctx, c.Logger, "Failed to store image", err)
		return "", false
	}
	return ref, true
}

func (c *ProductController) discardImage(ref string) {
	if ref == "" {
		return
	}
	if _, err := c.Assets.DeleteRef(ref); err != nil {
		c.Logger.Warn("failed to discard orphaned image", zap.String("image_ref", ref), zap.Error(err))
	}
}

// inputFromProduct rebuilds the full input of a stored product so a partial
// change can go through Update without dropping fields.
func inputFromProduct(p models.Product) (services.ProductInput, error) {
	in := services.ProductInput{
		Title:       p.Title,
		Price:       p.Price,
		Description: p.Description,
		Category:    p.Category,
		ImageRef:    p.ImageRef,
	}
	if len(p.Sizes) > 0 {
		if err := json.Unmarshal(p.Sizes, &in.Sizes); err != nil {
			return in, fmt.Errorf("%w: decode sizes of product %d: %v", services.ErrStorage, p.ID, err)
		}
	}
	return in, nil
}

package services

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Kariqs/amexan-storefront/models"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const listLoadTimeout = 30 * time.Second

var validate = validator.New(validator.WithRequiredStructEnabled())

// ProductInput carries every mutable product field. Update replaces all of
// them, so callers must re-supply unchanged values.
type ProductInput struct {
	Title       string   `json:"title" validate:"required,max=100"`
	Price       int64    `json:"price" validate:"gte=0"`
	Description string   `json:"description" validate:"max=500"`
	Category    string   `json:"category" validate:"required,max=50"`
	ImageRef    string   `json:"image_ref" validate:"max=255"`
	Sizes       []string `json:"sizes" validate:"dive,required,max=20"`
}

func (in *ProductInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	if in.Category == "" {
		in.Category = models.DefaultCategory
	}
	in.ImageRef = strings.TrimSpace(in.ImageRef)
}

func (in ProductInput) check() error {
	if err := validate.Struct(in); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return validationError("%s failed %q", strings.ToLower(fe.Field()), fe.Tag())
		}
		return validationError("%v", err)
	}
	return nil
}

func (in ProductInput) sizesJSON() (datatypes.JSON, error) {
	if len(in.Sizes) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(in.Sizes)
	if err != nil {
		return nil, validationError("sizes: %v", err)
	}
	return datatypes.JSON(raw), nil
}

// ImageRemover deletes a stored asset by its public reference. References
// that do not point into the asset store are left alone.
type ImageRemover interface {
	DeleteRef(ref string) (bool, error)
}

// CatalogService is the authoritative store for product price and availability.
type CatalogService struct {
	db     *gorm.DB
	cache  ListCache
	images ImageRemover
	logger *zap.Logger
	loads  singleflight.Group
	// gen counts invalidations. Listings loaded under an older generation
	// are never cached and never shared with later callers.
	gen atomic.Uint64
}

type CatalogOption func(*CatalogService)

func WithListCache(cache ListCache) CatalogOption {
	return func(s *CatalogService) { s.cache = cache }
}

func WithImageRemover(images ImageRemover) CatalogOption {
	return func(s *CatalogService) { s.images = images }
}

func NewCatalogService(db *gorm.DB, logger *zap.Logger, opts ...CatalogOption) *CatalogService {
	s := &CatalogService{db: db, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns products newest first, optionally restricted to one category.
// Concurrent misses for the same filter share one query.
func (s *CatalogService) List(ctx context.Context, category string) ([]models.Product, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.GetList(ctx, category)
		if err != nil {
			s.logger.Warn("catalog cache read failed", zap.String("category", category), zap.Error(err))
		} else if ok {
			return cached, nil
		}
	}

	gen := s.gen.Load()
	key := strconv.FormatUint(gen, 10) + "|" + cacheField(category)
	resultCh := s.loads.DoChan(key, func() (any, error) {
		// The load is shared, so it must outlive any single caller.
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), listLoadTimeout)
		defer cancel()
		return s.loadList(loadCtx, category, gen)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultCh:
		if res.Err != nil {
			return nil, res.Err
		}
		return slices.Clone(res.Val.([]models.Product)), nil
	}
}

func (s *CatalogService) loadList(ctx context.Context, category string, gen uint64) ([]models.Product, error) {
	query := s.db.WithContext(ctx).Order("created_at DESC").Order("id DESC")
	if category != "" {
		query = query.Where("category = ?", category)
	}

	var products []models.Product
	if err := query.Find(&products).Error; err != nil {
		return nil, storageError("list products", err)
	}

	// MySQL's default collation folds case; category matching is exact.
	if category != "" {
		filtered := products[:0]
		for _, p := range products {
			if p.Category == category {
				filtered = append(filtered, p)
			}
		}
		products = filtered
	}
	if products == nil {
		products = []models.Product{}
	}

	if s.cache != nil && s.gen.Load() == gen {
		if err := s.cache.SetList(ctx, category, products); err != nil {
			s.logger.Warn("catalog cache write failed", zap.String("category", category), zap.Error(err))
		}
		// A mutation may have invalidated between the check and the write.
		if s.gen.Load() != gen {
			s.dropCache(ctx)
		}
	}
	return products, nil
}

// Get returns nil without error when the product does not exist.
func (s *CatalogService) Get(ctx context.Context, id uint) (*models.Product, error) {
	var product models.Product
	err := s.db.WithContext(ctx).First(&product, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageError("get product", err)
	}
	return &product, nil
}

func (s *CatalogService) Categories(ctx context.Context) ([]string, error) {
	var categories []string
	err := s.db.WithContext(ctx).
		Model(&models.Product{}).
		Distinct("category").
		Order("category ASC").
		Pluck("category", &categories).Error
	if err != nil {
		return nil, storageError("list categories", err)
	}
	if categories == nil {
		categories = []string{}
	}
	return categories, nil
}

func (s *CatalogService) Create(ctx context.Context, role Role, in ProductInput) (*models.Product, error) {
	if err := requireAdmin(role); err != nil {
		return nil, err
	}
	in.normalize()
	if err := in.check(); err != nil {
		return nil, err
	}
	sizes, err := in.sizesJSON()
	if err != nil {
		return nil, err
	}

	product := models.Product{
		Title:       in.Title,
		Price:       in.Price,
		Description: in.Description,
		Category:    in.Category,
		ImageRef:    in.ImageRef,
		Sizes:       sizes,
	}
	db := s.db.WithContext(ctx)
	if err := db.Create(&product).Error; err != nil {
		return nil, storageError("create product", err)
	}

	var persisted models.Product
	if err := db.First(&persisted, product.ID).Error; err != nil {
		return nil, storageError("reload product", err)
	}

	s.invalidate(ctx)
	s.logger.Info("product created", zap.Uint("product_id", persisted.ID), zap.Int64("price", persisted.Price))
	return &persisted, nil
}

// Update replaces all mutable fields. It returns nil without error when the
// product does not exist.
func (s *CatalogService) Update(ctx context.Context, role Role, id uint, in ProductInput) (*models.Product, error) {
	if err := requireAdmin(role); err != nil {
		return nil, err
	}
	in.normalize()
	if err := in.check(); err != nil {
		return nil, err
	}
	sizes, err := in.sizesJSON()
	if err != nil {
		return nil, err
	}

	var (
		updated  models.Product
		oldImage string
		found    bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Product
		if err := tx.First(&existing, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		found = true
		oldImage = existing.ImageRef

		if err := tx.Model(&existing).Updates(map[string]any{
			"title":       in.Title,
			"price":       in.Price,
			"description": in.Description,
			"category":    in.Category,
			"image_ref":   in.ImageRef,
			"sizes":       sizes,
			"updated_at":  time.Now(),
		}).Error; err != nil {
			return err
		}
		return tx.First(&updated, id).Error
	})
	if err != nil {
		return nil, storageError("update product", err)
	}
	if !found {
		return nil, nil
	}

	s.invalidate(ctx)
	if oldImage != "" && oldImage != updated.ImageRef {
		s.removeImage(oldImage)
	}
	s.logger.Info("product updated", zap.Uint("product_id", id), zap.Int64("price", updated.Price))
	return &updated, nil
}

// Delete reports whether a product row was removed. Order items keep their
// own price and title, so history is untouched.
func (s *CatalogService) Delete(ctx context.Context, role Role, id uint) (bool, error) {
	if err := requireAdmin(role); err != nil {
		return false, err
	}

	db := s.db.WithContext(ctx)
	var existing models.Product
	if err := db.First(&existing, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, storageError("load product", err)
	}

	result := db.Delete(&models.Product{}, id)
	if result.Error != nil {
		return false, storageError("delete product", result.Error)
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	s.invalidate(ctx)
	if existing.HasImage() {
		s.removeImage(existing.ImageRef)
	}
	s.logger.Info("product deleted", zap.Uint("product_id", id))
	return true, nil
}

func (s *CatalogService) invalidate(ctx context.Context) {
	s.gen.Add(1)
	s.dropCache(ctx)
}

func (s *CatalogService) dropCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("catalog cache invalidation failed", zap.Error(err))
	}
}

func (s *CatalogService) removeImage(ref string) {
	if s.images == nil {
		return
	}
	if _, err := s.images.DeleteRef(ref); err != nil {
		s.logger.Warn("failed to remove product image", zap.String("image_ref", ref), zap.Error(err))
	}
}

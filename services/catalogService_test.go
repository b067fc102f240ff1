package services

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Kariqs/amexan-storefront/models"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordingRemover struct {
	removed []string
}

func (r *recordingRemover) DeleteRef(ref string) (bool, error) {
	r.removed = append(r.removed, ref)
	return true, nil
}

func TestCatalogCreateAppliesDefaults(t *testing.T) {
	catalog, _ := newTestCatalog(t)

	p, err := catalog.Create(t.Context(), RoleAdmin, ProductInput{
		Title:       "  Tea  ",
		Price:       599,
		Description: "Loose leaf",
		Sizes:       []string{"S", "M"},
	})
	require.NoError(t, err)

	assert.NotZero(t, p.ID)
	assert.Equal(t, "Tea", p.Title)
	assert.Equal(t, int64(599), p.Price)
	assert.Equal(t, models.DefaultCategory, p.Category)
	assert.False(t, p.CreatedAt.IsZero())
	assert.False(t, p.UpdatedAt.IsZero())
	assert.False(t, p.HasImage())

	var sizes []string
	require.NoError(t, json.Unmarshal(p.Sizes, &sizes))
	assert.Equal(t, []string{"S", "M"}, sizes)
}

func TestCatalogCreateValidation(t *testing.T) {
	catalog, db := newTestCatalog(t)

	tests := []struct {
		name string
		in   ProductInput
	}{
		{"empty title", ProductInput{Title: "   ", Price: 100}},
		{"negative price", ProductInput{Title: "Mug", Price: -1}},
		{"title too long", ProductInput{Title: strings.Repeat("x", 101), Price: 100}},
		{"category too long", ProductInput{Title: "Mug", Price: 100, Category: strings.Repeat("c", 51)}},
		{"blank size", ProductInput{Title: "Mug", Price: 100, Sizes: []string{""}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := catalog.Create(t.Context(), RoleAdmin, tt.in)
			require.ErrorIs(t, err, ErrValidation)
			assert.Nil(t, p)
		})
	}

	var count int64
	require.NoError(t, db.Model(&models.Product{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCatalogCreateAllowsFreeProduct(t *testing.T) {
	catalog, _ := newTestCatalog(t)

	p, err := catalog.Create(t.Context(), RoleAdmin, ProductInput{Title: "Sticker", Price: 0})
	require.NoError(t, err)
	assert.Zero(t, p.Price)
}

func TestCatalogMutationsRequireAdmin(t *testing.T) {
	catalog, _ := newTestCatalog(t)
	existing := mustCreateProduct(t, catalog, "Tea", 599, "drinks")

	_, err := catalog.Create(t.Context(), RoleCustomer, ProductInput{Title: "Mug", Price: 100})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = catalog.Update(t.Context(), RoleCustomer, existing.ID, ProductInput{Title: "Tea", Price: 1})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = catalog.Delete(t.Context(), Role(""), existing.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := catalog.Get(t.Context(), existing.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(599), got.Price)
}

func TestCatalogListNewestFirst(t *testing.T) {
	catalog, _ := newTestCatalog(t)
	mustCreateProduct(t, catalog, "A", 100, "")
	mustCreateProduct(t, catalog, "B", 200, "")
	mustCreateProduct(t, catalog, "C", 300, "")

	products, err := catalog.List(t.Context(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "B", "A"}, productTitles(products))
}

func TestCatalogListEmpty(t *testing.T) {
	catalog, _ := newTestCatalog(t)

	products, err := catalog.List(t.Context(), "")
	require.NoError(t, err)
	assert.NotNil(t, products)
	assert.Empty(t, products)
}

func TestCatalogListCategoryIsExact(t *testing.T) {
	catalog, _ := newTestCatalog(t)
	mustCreateProduct(t, catalog, "Tea", 599, "Drinks")
	mustCreateProduct(t, catalog, "Juice", 250, "drinks")
	mustCreateProduct(t, catalog, "Mug", 1200, "kitchen")

	products, err := catalog.List(t.Context(), "drinks")
	require.NoError(t, err)
	assert.Equal(t, []string{"Juice"}, productTitles(products))

	products, err = catalog.List(t.Context(), "Drinks")
	require.NoError(t, err)
	assert.Equal(t, []string{"Tea"}, productTitles(products))

	products, err = catalog.List(t.Context(), "toys")
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestCatalogGetMissing(t *testing.T) {
	catalog, _ := newTestCatalog(t)

	p, err := catalog.Get(t.Context(), 9999)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestCatalogUpdateReplacesFields(t *testing.T) {
	catalog, _ := newTestCatalog(t)
	created := mustCreateProduct(t, catalog, "Tea", 599, "drinks")

	time.Sleep(10 * time.Millisecond)
	updated, err := catalog.Update(t.Context(), RoleAdmin, created.ID, ProductInput{
		Title:    "Green Tea",
		Price:    650,
		Category: "tea",
	})
	require.NoError(t, err)
	require.NotNil(t, updated)

	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Green Tea", updated.Title)
	assert.Equal(t, int64(650), updated.Price)
	assert.Equal(t, "tea", updated.Category)
	assert.Empty(t, updated.Description)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt), "updated_at must advance")
	assert.True(t, updated.CreatedAt.Equal(created.CreatedAt))
}

func TestCatalogUpdateMissing(t *testing.T) {
	catalog, _ := newTestCatalog(t)

	p, err := catalog.Update(t.Context(), RoleAdmin, 42, ProductInput{Title: "Ghost", Price: 1})
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestCatalogUpdateValidation(t *testing.T) {
	catalog, _ := newTestCatalog(t)
	created := mustCreateProduct(t, catalog, "Tea", 599, "drinks")

	_, err := catalog.Update(t.Context(), RoleAdmin, created.ID, ProductInput{Title: "Tea", Price: -5})
	require.ErrorIs(t, err, ErrValidation)

	got, err := catalog.Get(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(599), got.Price)
}

func TestCatalogDelete(t *testing.T) {
	catalog, _ := newTestCatalog(t)
	created := mustCreateProduct(t, catalog, "Tea", 599, "drinks")

	deleted, err := catalog.Delete(t.Context(), RoleAdmin, created.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	got, err := catalog.Get(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	deleted, err = catalog.Delete(t.Context(), RoleAdmin, created.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	products, err := catalog.List(t.Context(), "")
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestCatalogRemovesReplacedAndDeletedImages(t *testing.T) {
	remover := &recordingRemover{}
	catalog, _ := newTestCatalog(t, WithImageRemover(remover))

	p, err := catalog.Create(t.Context(), RoleAdmin, ProductInput{Title: "Tea", Price: 599, ImageRef: "/uploads/product_1_a.jpg"})
	require.NoError(t, err)

	_, err = catalog.Update(t.Context(), RoleAdmin, p.ID, ProductInput{Title: "Tea", Price: 599, ImageRef: "/uploads/product_1_a.jpg"})
	require.NoError(t, err)
	assert.Empty(t, remover.removed)

	_, err = catalog.Update(t.Context(), RoleAdmin, p.ID, ProductInput{Title: "Tea", Price: 599, ImageRef: "/uploads/product_2_b.jpg"})
	require.NoError(t, err)
	assert.Equal(t, []string{"/uploads/product_1_a.jpg"}, remover.removed)

	_, err = catalog.Delete(t.Context(), RoleAdmin, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"/uploads/product_1_a.jpg", "/uploads/product_2_b.jpg"}, remover.removed)
}

func TestCatalogDeleteKeepsLocalFileForExternalImage(t *testing.T) {
	assets, _ := newTestAssets(t)
	_, err := assets.Save(t.Context(), solidPNG(t, 10, 10), "shared.jpg")
	require.NoError(t, err)
	local := filepath.Join(testUploadDir, "shared.jpg")

	catalog, _ := newTestCatalog(t, WithImageRemover(assets))
	p, err := catalog.Create(t.Context(), RoleAdmin, ProductInput{Title: "Tea", Price: 599, ImageRef: "https://cdn.example.com/img/shared.jpg"})
	require.NoError(t, err)

	_, err = catalog.Update(t.Context(), RoleAdmin, p.ID, ProductInput{Title: "Tea", Price: 599, ImageRef: "https://cdn.example.com/other/shared.jpg"})
	require.NoError(t, err)
	assert.Equal(t, local, assets.Resolve("shared.jpg"))

	deleted, err := catalog.Delete(t.Context(), RoleAdmin, p.ID)
	require.NoError(t, err)
	require.True(t, deleted)
	assert.Equal(t, local, assets.Resolve("shared.jpg"))
}

func TestCatalogCategories(t *testing.T) {
	catalog, _ := newTestCatalog(t)

	categories, err := catalog.Categories(t.Context())
	require.NoError(t, err)
	assert.Empty(t, categories)

	mustCreateProduct(t, catalog, "Tea", 599, "drinks")
	mustCreateProduct(t, catalog, "Juice", 250, "drinks")
	mustCreateProduct(t, catalog, "Mug", 1200, "")

	categories, err = catalog.Categories(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"drinks", "general"}, categories)
}

func TestCatalogListCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	catalog, db := newTestCatalog(t, WithListCache(NewRedisListCache(client, time.Minute)))
	tea := mustCreateProduct(t, catalog, "Tea", 599, "drinks")

	products, err := catalog.List(t.Context(), "drinks")
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.True(t, mr.Exists(catalogListKey))
	fields, err := mr.HKeys(catalogListKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"c:drinks"}, fields)

	// A write that bypasses the service is not seen until invalidation.
	require.NoError(t, db.Model(&models.Product{}).Where("id = ?", tea.ID).Update("price", 700).Error)
	products, err = catalog.List(t.Context(), "drinks")
	require.NoError(t, err)
	assert.Equal(t, int64(599), products[0].Price)

	_, err = catalog.Update(t.Context(), RoleAdmin, tea.ID, ProductInput{Title: "Tea", Price: 650, Category: "drinks"})
	require.NoError(t, err)
	assert.False(t, mr.Exists(catalogListKey))

	products, err = catalog.List(t.Context(), "drinks")
	require.NoError(t, err)
	assert.Equal(t, int64(650), products[0].Price)

	_, err = catalog.Delete(t.Context(), RoleAdmin, tea.ID)
	require.NoError(t, err)
	products, err = catalog.List(t.Context(), "drinks")
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestCatalogListSurvivesCacheOutage(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	catalog, _ := newTestCatalog(t, WithListCache(NewRedisListCache(client, time.Minute)))
	mustCreateProduct(t, catalog, "Tea", 599, "drinks")

	mr.Close()
	products, err := catalog.List(t.Context(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Tea"}, productTitles(products))
}

func TestCatalogListConcurrentCallersGetIndependentSlices(t *testing.T) {
	catalog, _ := newTestCatalog(t)
	mustCreateProduct(t, catalog, "Tea", 599, "drinks")
	mustCreateProduct(t, catalog, "Juice", 250, "drinks")

	const n = 10
	results := make([][]models.Product, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			products, err := catalog.List(t.Context(), "drinks")
			assert.NoError(t, err)
			results[i] = products
		}(i)
	}
	wg.Wait()

	for _, products := range results {
		assert.Equal(t, []string{"Juice", "Tea"}, productTitles(products))
	}
	results[0][0].Title = "mutated"
	assert.Equal(t, "Juice", results[1][0].Title)
}

// pauseProductQuery blocks the first products query that runs after it is
// armed, at the given stage, until the returned resume func is called.
func pauseProductQuery(t *testing.T, db *gorm.DB, after bool) (armed *atomic.Bool, paused <-chan struct{}, resume func(), queries *atomic.Int32) {
	t.Helper()
	armed = &atomic.Bool{}
	queries = &atomic.Int32{}
	pausedCh := make(chan struct{})
	resumeCh := make(chan struct{})
	var once sync.Once
	resume = func() { once.Do(func() { close(resumeCh) }) }
	t.Cleanup(resume)

	hook := func(tx *gorm.DB) {
		if tx.Statement.Table != "products" {
			return
		}
		queries.Add(1)
		if armed.CompareAndSwap(true, false) {
			close(pausedCh)
			<-resumeCh
		}
	}
	var err error
	if after {
		err = db.Callback().Query().After("gorm:query").Register("test:pause_after_products", hook)
	} else {
		err = db.Callback().Query().Before("gorm:query").Register("test:pause_before_products", hook)
	}
	require.NoError(t, err)
	return armed, pausedCh, resume, queries
}

func TestCatalogListLoadRacingMutationIsNotCached(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	catalog, db := newTestCatalog(t, WithListCache(NewRedisListCache(client, time.Minute)))
	mustCreateProduct(t, catalog, "Old", 100, "")
	armed, paused, resume, _ := pauseProductQuery(t, db, true)

	// The first load has read its rows and is held before publishing them.
	armed.Store(true)
	done := make(chan []models.Product, 1)
	go func() {
		products, err := catalog.List(context.Background(), "")
		assert.NoError(t, err)
		done <- products
	}()
	<-paused

	tea := mustCreateProduct(t, catalog, "Tea", 599, "")

	// A read after the mutation must not join the load that started before it.
	products, err := catalog.List(t.Context(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Tea", "Old"}, productTitles(products))

	resume()
	stale := <-done
	assert.Equal(t, []string{"Old"}, productTitles(stale))

	products, err = catalog.List(t.Context(), "")
	require.NoError(t, err)
	require.NotEmpty(t, products)
	assert.Equal(t, tea.ID, products[0].ID)
	assert.Len(t, products, 2)
}

func TestCatalogListCancelledCallerDoesNotFailJoinedCaller(t *testing.T) {
	catalog, db := newTestCatalog(t)
	mustCreateProduct(t, catalog, "Tea", 599, "drinks")
	armed, paused, resume, queries := pauseProductQuery(t, db, false)

	armed.Store(true)
	firstCtx, cancel := context.WithCancel(t.Context())
	firstErr := make(chan error, 1)
	go func() {
		_, err := catalog.List(firstCtx, "drinks")
		firstErr <- err
	}()
	<-paused

	type result struct {
		products []models.Product
		err      error
	}
	second := make(chan result, 1)
	go func() {
		products, err := catalog.List(context.Background(), "drinks")
		second <- result{products, err}
	}()
	time.Sleep(100 * time.Millisecond)

	cancel()
	require.ErrorIs(t, <-firstErr, context.Canceled)

	resume()
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, []string{"Tea"}, productTitles(got.products))
	assert.Equal(t, int32(1), queries.Load())
}

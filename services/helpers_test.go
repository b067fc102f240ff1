package services

import (
	"path/filepath"
	"testing"

	"github.com/Kariqs/amexan-storefront/initializers"
	"github.com/Kariqs/amexan-storefront/models"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := initializers.ConnectToDB("sqlite", filepath.Join(t.TempDir(), "shop.db"))
	require.NoError(t, err)
	require.NoError(t, initializers.SyncDatabase(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func newTestCatalog(t *testing.T, opts ...CatalogOption) (*CatalogService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	return NewCatalogService(db, zap.NewNop(), opts...), db
}

func mustCreateProduct(t *testing.T, catalog *CatalogService, title string, price int64, category string) *models.Product {
	t.Helper()
	p, err := catalog.Create(t.Context(), RoleAdmin, ProductInput{Title: title, Price: price, Category: category})
	require.NoError(t, err)
	require.NotNil(t, p)
	return p
}

func productTitles(products []models.Product) []string {
	titles := make([]string, 0, len(products))
	for _, p := range products {
		titles = append(titles, p.Title)
	}
	return titles
}

package routes

import (
	"github.com/Kariqs/amexan-storefront/controllers"
	"github.com/gin-gonic/gin"
)

// ProductRoutes mounts the catalog. Reads are public, writes go through
// requireAdmin.
func ProductRoutes(server *gin.Engine, products *controllers.ProductController, requireAdmin gin.HandlerFunc) {
	api := server.Group("/api")
	api.GET("/products", products.GetProducts)
	api.GET("/products/:id", products.GetProduct)
	api.GET("/categories", products.GetCategories)

	admin := api.Group("/products", requireAdmin)
	{
		admin.POST("", products.CreateProduct)
		admin.PUT("/:id", products.UpdateProduct)
		admin.DELETE("/:id", products.DeleteProduct)
		admin.POST("/:id/image", products.UploadProductImage)
	}
}

package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func GetHome(ctx *gin.Context) {
	message := `Welcome to the Amexan storefront API.

CATALOG
- GET "/api/products?category=" - List products, newest first
- GET "/api/products/:id" - Get product by ID
- GET "/api/categories" - List categories
- POST "/api/products" - Create product (admin)
- PUT "/api/products/:id" - Replace product (admin)
- DELETE "/api/products/:id" - Delete product (admin)
- POST "/api/products/:id/image" - Upload product image (admin)

ORDERS
- POST "/api/orders" - Place an order
- GET "/api/orders" - List orders (admin)
- GET "/api/orders/:id" - Get order by ID (admin)
- PATCH "/api/orders/:id/status" - Update order status (admin)

AUTH
- POST "/auth/login" - Exchange the admin password for a token

ASSETS
- GET "/uploads/:filename" - Product images`

	ctx.JSON(http.StatusOK, gin.H{
		"message": message,
	})
}

func GetHealth(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

package routes

import (
	"github.com/Kariqs/amexan-storefront/controllers"
	"github.com/gin-gonic/gin"
)

func OrderRoutes(server *gin.Engine, orders *controllers.OrderController, requireAdmin gin.HandlerFunc) {
	api := server.Group("/api")
	api.POST("/orders", orders.CreateOrder)

	admin := api.Group("/orders", requireAdmin)
	{
		admin.GET("", orders.GetOrders)
		admin.GET("/:id", orders.GetOrder)
		admin.PATCH("/:id/status", orders.UpdateOrderStatus)
	}
}

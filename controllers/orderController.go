package controllers

import (
	"net/http"

	"github.com/Kariqs/amexan-storefront/middlewares"
	"github.com/Kariqs/amexan-storefront/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type OrderController struct {
	Orders *services.OrderService
	Logger *zap.Logger
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

// CreateOrder accepts a cart of product ids and quantities. Any price the
// client sends is ignored; totals come from the catalog.
func (c *OrderController) CreateOrder(ctx *gin.Context) {
	var cart services.CartRequest
	if err := ctx.ShouldBindJSON(&cart); err != nil {
		respondWithError(ctx, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	receipt, err := c.Orders.PlaceOrder(ctx.Request.Context(), cart)
	if err != nil {
		respondWithServiceError(ctx, c.Logger, "Failed to place order", err)
		return
	}
	ctx.JSON(http.StatusCreated, receipt)
}

func (c *OrderController) GetOrders(ctx *gin.Context) {
	orders, err := c.Orders.List(ctx.Request.Context(), middlewares.RoleFrom(ctx), ctx.Query("status"))
	if err != nil {
		respondWithServiceError(ctx, c.Logger, "Failed to fetch orders", err)
		return
	}
	ctx.JSON(http.StatusOK, orders)
}

func (c *OrderController) GetOrder(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		respondWithError(ctx, http.StatusBadRequest, msgInvalidOrderID, nil)
		return
	}

	order, err := c.Orders.Get(ctx.Request.Context(), id)
	if err != nil {
		respondWithServiceError(ctx, c.Logger, "Failed to fetch order", err)
		return
	}
	if order == nil {
		respondWithError(ctx, http.StatusNotFound, msgOrderNotFound, nil)
		return
	}
	ctx.JSON(http.StatusOK, order)
}

func (c *OrderController) UpdateOrderStatus(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		respondWithError(ctx, http.StatusBadRequest, msgInvalidOrderID, nil)
		return
	}

	var req statusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondWithError(ctx, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	order, err := c.Orders.UpdateStatus(ctx.Request.Context(), middlewares.RoleFrom(ctx), id, req.Status)
	if err != nil {
		respondWithServiceError(ctx, c.Logger, "Failed to update order status", err)
		return
	}
	if order == nil {
		respondWithError(ctx, http.StatusNotFound, msgOrderNotFound, nil)
		return
	}
	ctx.JSON(http.StatusOK, order)
}

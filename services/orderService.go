package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Kariqs/amexan-storefront/models"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const notifyTimeout = 15 * time.Second

type CartLine struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity" validate:"gt=0"`
}

// CartRequest is the untrusted cart a customer submits. It carries no prices.
type CartRequest struct {
	CustomerName    string     `json:"customer_name" validate:"required,max=100"`
	CustomerPhone   string     `json:"customer_phone" validate:"required,max=20"`
	CustomerAddress string     `json:"customer_address" validate:"max=255"`
	Items           []CartLine `json:"items" validate:"required,min=1,dive"`
}

func (r *CartRequest) normalize() {
	r.CustomerName = strings.TrimSpace(r.CustomerName)
	r.CustomerPhone = strings.TrimSpace(r.CustomerPhone)
	r.CustomerAddress = strings.TrimSpace(r.CustomerAddress)
}

func (r CartRequest) check() error {
	if err := validate.Struct(r); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return validationError("%s failed %q", fe.Namespace(), fe.Tag())
		}
		return validationError("%v", err)
	}
	return nil
}

type OrderReceipt struct {
	ID          uint  `json:"id"`
	TotalAmount int64 `json:"total_amount"`
}

// ProductLookup is the price source for order placement.
type ProductLookup interface {
	Get(ctx context.Context, id uint) (*models.Product, error)
}

// OrderNotifier is told about orders after they are committed.
type OrderNotifier interface {
	OrderPlaced(ctx context.Context, order models.Order) error
}

// OrderService is the only component that turns a cart into money.
type OrderService struct {
	db        *gorm.DB
	products  ProductLookup
	notifiers []OrderNotifier
	logger    *zap.Logger
}

func NewOrderService(db *gorm.DB, products ProductLookup, logger *zap.Logger, notifiers ...OrderNotifier) *OrderService {
	return &OrderService{
		db:        db,
		products:  products,
		notifiers: notifiers,
		logger:    logger,
	}
}

// PlaceOrder re-prices every cart line from the catalog and persists the
// order header and its items in one transaction. Lines that reference an
// unknown product are dropped.
//
// Prices are read before the transaction starts; a concurrent price change
// between lookup and insert is not serialized against.
func (s *OrderService) PlaceOrder(ctx context.Context, req CartRequest) (*OrderReceipt, error) {
	req.normalize()
	if err := req.check(); err != nil {
		return nil, err
	}

	items := make([]models.OrderItem, 0, len(req.Items))
	var total int64
	for i, line := range req.Items {
		product, err := s.products.Get(ctx, line.ProductID)
		if err != nil {
			return nil, fmt.Errorf("price lookup for item %d: %w", i, err)
		}
		if product == nil {
			s.logger.Warn("dropping cart line for unknown product",
				zap.Int("line", i),
				zap.Uint("product_id", line.ProductID),
				zap.Int("quantity", line.Quantity))
			continue
		}

		if product.Price > 0 && int64(line.Quantity) > math.MaxInt64/product.Price {
			return nil, validationError("items[%d]: line total overflows", i)
		}
		lineTotal := product.Price * int64(line.Quantity)
		if total > math.MaxInt64-lineTotal {
			return nil, validationError("order total overflows")
		}
		total += lineTotal

		items = append(items, models.OrderItem{
			ProductID: product.ID,
			Title:     product.Title,
			Quantity:  line.Quantity,
			UnitPrice: product.Price,
		})
	}

	order := models.Order{
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		CustomerAddress: req.CustomerAddress,
		TotalAmount:     total,
		Status:          models.OrderStatusPending,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&order).Error; err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		for i := range items {
			items[i].OrderID = order.ID
			if err := tx.Omit(clause.Associations).Create(&items[i]).Error; err != nil {
				return fmt.Errorf("create order item %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("failed to place order", zap.String("customer_phone", req.CustomerPhone), zap.Error(err))
		return nil, storageError("place order", err)
	}
	order.Items = items

	s.logger.Info("order placed",
		zap.Uint("order_id", order.ID),
		zap.Int64("total_amount", order.TotalAmount),
		zap.Int("items", len(items)),
		zap.Int("dropped", len(req.Items)-len(items)))

	s.notify(ctx, order)

	return &OrderReceipt{ID: order.ID, TotalAmount: order.TotalAmount}, nil
}

// Get returns the order with its items, or nil when it does not exist.
func (s *OrderService) Get(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&order, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageError("get order", err)
	}
	return &order, nil
}

func (s *OrderService) List(ctx context.Context, role Role, status string) ([]models.Order, error) {
	if err := requireAdmin(role); err != nil {
		return nil, err
	}
	if status != "" && !models.IsValidOrderStatus(status) {
		return nil, validationError("unknown order status %q", status)
	}

	query := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Order("created_at DESC").
		Order("id DESC")
	if status != "" {
		query = query.Where("status = ?", status)
	}

	orders := []models.Order{}
	if err := query.Find(&orders).Error; err != nil {
		return nil, storageError("list orders", err)
	}
	return orders, nil
}

// UpdateStatus returns nil without error when the order does not exist.
func (s *OrderService) UpdateStatus(ctx context.Context, role Role, id uint, status string) (*models.Order, error) {
	if err := requireAdmin(role); err != nil {
		return nil, err
	}
	if !models.IsValidOrderStatus(status) {
		return nil, validationError("unknown order status %q", status)
	}

	result := s.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     status,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return nil, storageError("update order status", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}

	s.logger.Info("order status updated", zap.Uint("order_id", id), zap.String("status", status))
	return s.Get(ctx, id)
}

func (s *OrderService) notify(ctx context.Context, order models.Order) {
	if len(s.notifiers) == 0 {
		return
	}
	go func() {
		notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()
		for _, n := range s.notifiers {
			if err := n.OrderPlaced(notifyCtx, order); err != nil {
				s.logger.Warn("order notification failed", zap.Uint("order_id", order.ID), zap.Error(err))
			}
		}
	}()
}

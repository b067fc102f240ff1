package models

import "time"

const (
	OrderStatusPending    = "pending"
	OrderStatusInProgress = "in_progress"
	OrderStatusCompleted  = "completed"
	OrderStatusCancelled  = "cancelled"
)

var OrderStatuses = []string{
	OrderStatusPending,
	OrderStatusInProgress,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

func IsValidOrderStatus(status string) bool {
	for _, s := range OrderStatuses {
		if s == status {
			return true
		}
	}
	return false
}

type Order struct {
	ID              uint        `json:"id" gorm:"primaryKey"`
	CustomerName    string      `json:"customer_name" gorm:"type:varchar(100);not null"`
	CustomerPhone   string      `json:"customer_phone" gorm:"type:varchar(20);not null"`
	CustomerAddress string      `json:"customer_address" gorm:"type:varchar(255)"`
	TotalAmount     int64       `json:"total_amount" gorm:"not null"`
	Status          string      `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	CreatedAt       time.Time   `json:"created_at" gorm:"index"`
	UpdatedAt       time.Time   `json:"updated_at"`
	Items           []OrderItem `json:"items" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

func (Order) TableName() string {
	return "orders"
}

// ItemsTotal sums unit price times quantity over the loaded items.
func (o Order) ItemsTotal() int64 {
	var total int64
	for _, item := range o.Items {
		total += item.LineTotal()
	}
	return total
}

// OrderItem keeps the unit price that was current when the order was placed.
// ProductID is kept for display; the product row may since have changed.
type OrderItem struct {
	ID        uint     `json:"id" gorm:"primaryKey"`
	OrderID   uint     `json:"order_id" gorm:"not null;index"`
	ProductID uint     `json:"product_id" gorm:"not null;index"`
	Product   *Product `json:"-" gorm:"foreignKey:ProductID;constraint:OnDelete:RESTRICT"`
	Title     string   `json:"title" gorm:"type:varchar(100)"`
	Quantity  int      `json:"quantity" gorm:"not null"`
	UnitPrice int64    `json:"unit_price" gorm:"not null"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

func (i OrderItem) LineTotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

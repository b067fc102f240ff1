package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const DefaultCategory = "general"

type Product struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	Title       string         `json:"title" gorm:"type:varchar(100);not null"`
	Price       int64          `json:"price" gorm:"not null"`
	Description string         `json:"description" gorm:"type:text"`
	Category    string         `json:"category" gorm:"type:varchar(50);not null;default:'general';index"`
	ImageRef    string         `json:"image_ref" gorm:"type:varchar(255)"`
	Sizes       datatypes.JSON `json:"sizes"`
	CreatedAt   time.Time      `json:"created_at" gorm:"index"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

func (Product) TableName() string {
	return "products"
}

// HasImage reports whether the product references a stored asset.
func (p Product) HasImage() bool {
	return p.ImageRef != ""
}

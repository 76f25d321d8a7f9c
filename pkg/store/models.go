package store

import (
	"time"

	"github.com/shopspring/decimal"
)

// GORM models used for persistence. Relationship fields exist only so that
// AutoMigrate declares the cascading foreign keys; reads never preload them
// except Images.
type UserModel struct {
	ID           string    `gorm:"primaryKey;size:36"`
	Email        string    `gorm:"size:255;uniqueIndex;not null"`
	FullName     string    `gorm:"size:255;not null"`
	PhoneNumber  *string   `gorm:"size:32"`
	PasswordHash string    `gorm:"size:255;not null"`
	IsActive     bool      `gorm:"not null"`
	IsSuperuser  bool      `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null;index"`
	UpdatedAt    time.Time `gorm:"not null"`

	Properties []PropertyModel `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE"`
	Favorites  []FavoriteModel `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

func (UserModel) TableName() string { return "users" }

type PropertyModel struct {
	ID           string          `gorm:"primaryKey;size:36"`
	Title        string          `gorm:"size:255;not null"`
	Description  string          `gorm:"type:text;not null"`
	Price        decimal.Decimal `gorm:"type:numeric(12,2);not null;index"`
	Area         *float64
	Bedrooms     *int
	Bathrooms    *int
	City         string  `gorm:"size:120;not null;index"`
	District     *string `gorm:"size:120"`
	Address      *string `gorm:"size:255"`
	Latitude     *float64
	Longitude    *float64
	PropertyType string    `gorm:"size:20;not null;index"`
	Status       string    `gorm:"size:20;not null;index"`
	IsFeatured   bool      `gorm:"not null"`
	OwnerID      string    `gorm:"size:36;not null;index"`
	CreatedAt    time.Time `gorm:"not null;index"`
	UpdatedAt    time.Time `gorm:"not null"`

	Images    []PropertyImageModel `gorm:"foreignKey:PropertyID;constraint:OnDelete:CASCADE"`
	Favorites []FavoriteModel      `gorm:"foreignKey:PropertyID;constraint:OnDelete:CASCADE"`
}

func (PropertyModel) TableName() string { return "properties" }

type PropertyImageModel struct {
	ID         string `gorm:"primaryKey;size:36"`
	PropertyID string `gorm:"size:36;not null;index"`
	URL        string `gorm:"size:500;not null"`
	IsPrimary  bool   `gorm:"not null"`
	Position   int    `gorm:"not null;default:0"`
}

func (PropertyImageModel) TableName() string { return "property_images" }

type FavoriteModel struct {
	ID         string    `gorm:"primaryKey;size:36"`
	UserID     string    `gorm:"size:36;not null;uniqueIndex:idx_favorites_user_property"`
	PropertyID string    `gorm:"size:36;not null;uniqueIndex:idx_favorites_user_property;index"`
	CreatedAt  time.Time `gorm:"not null;index"`
}

func (FavoriteModel) TableName() string { return "favorites" }

package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type PropertyType string

const (
	TypeApartment  PropertyType = "apartment"
	TypeHouse      PropertyType = "house"
	TypeLand       PropertyType = "land"
	TypeCommercial PropertyType = "commercial"
)

// Valid reports whether t is a known property type.
func (t PropertyType) Valid() bool {
	switch t {
	case TypeApartment, TypeHouse, TypeLand, TypeCommercial:
		return true
	default:
		return false
	}
}

type PropertyStatus string

const (
	StatusAvailable PropertyStatus = "available"
	StatusPending   PropertyStatus = "pending"
	StatusSold      PropertyStatus = "sold"
	StatusRented    PropertyStatus = "rented"
)

// Valid reports whether s is a known listing status.
func (s PropertyStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusPending, StatusSold, StatusRented:
		return true
	default:
		return false
	}
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	PhoneNumber  *string   `json:"phone_number"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	IsSuperuser  bool      `json:"is_superuser"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Property struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	Area         *float64        `json:"area"`
	Bedrooms     *int            `json:"bedrooms"`
	Bathrooms    *int            `json:"bathrooms"`
	City         string          `json:"city"`
	District     *string         `json:"district"`
	Address      *string         `json:"address"`
	Latitude     *float64        `json:"latitude"`
	Longitude    *float64        `json:"longitude"`
	PropertyType PropertyType    `json:"property_type"`
	Status       PropertyStatus  `json:"status"`
	IsFeatured   bool            `json:"is_featured"`
	OwnerID      string          `json:"owner_id"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	Images       []PropertyImage `json:"images"`
}

// MarshalJSON writes the price as a JSON number, the form listing clients
// send and expect.
func (p Property) MarshalJSON() ([]byte, error) {
	type plain Property
	return json.Marshal(struct {
		plain
		Price json.Number `json:"price"`
	}{plain: plain(p), Price: json.Number(p.Price.String())})
}

type PropertyImage struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	IsPrimary bool   `json:"is_primary"`
}

type Favorite struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Property  Property  `json:"property"`
	CreatedAt time.Time `json:"created_at"`
}

// ImageInput describes an image to attach to a listing.
type ImageInput struct {
	URL       string `json:"url"`
	IsPrimary bool   `json:"is_primary"`
}

// AssistantAnswer is the reply of the natural-language assistant.
type AssistantAnswer struct {
	Response string `json:"response"`
	Model    string `json:"model"`
}

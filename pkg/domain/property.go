package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Column limits of the listing schema, in characters.
const (
	MaxTitleLen    = 255
	MaxCityLen     = 120
	MaxDistrictLen = 120
	MaxAddressLen  = 255
	MaxImageURLLen = 500
	MaxEmailLen    = 255
	MaxNameLen     = 255
	MaxPhoneLen    = 32

	// PriceScale is the number of decimal places a price may carry.
	PriceScale = 2
)

// maxPrice is the exclusive bound of numeric(12,2).
var maxPrice = decimal.New(1, 12-PriceScale)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// CanModify reports whether actor may update or delete p.
func CanModify(actor User, p Property) bool {
	return actor.ID == p.OwnerID || actor.IsSuperuser
}

// PropertyInput is the body of a listing creation.
type PropertyInput struct {
	Title        string           `json:"title"`
	Description  string           `json:"description"`
	Price        *decimal.Decimal `json:"price"`
	Area         *float64         `json:"area"`
	Bedrooms     *int             `json:"bedrooms"`
	Bathrooms    *int             `json:"bathrooms"`
	City         string           `json:"city"`
	District     *string          `json:"district"`
	Address      *string          `json:"address"`
	Latitude     *float64         `json:"latitude"`
	Longitude    *float64         `json:"longitude"`
	PropertyType PropertyType     `json:"property_type"`
	Status       PropertyStatus   `json:"status"`
	IsFeatured   bool             `json:"is_featured"`
	Images       []ImageInput     `json:"images"`
}

// NewProperty validates in and builds an unsaved listing owned by ownerID.
// IDs and timestamps are assigned by the store.
func NewProperty(ownerID string, in PropertyInput) (Property, error) {
	if in.Price == nil {
		return Property{}, invalid("price", "required")
	}
	if in.Status == "" {
		in.Status = StatusAvailable
	}
	p := Property{
		Title:        strings.TrimSpace(in.Title),
		Description:  strings.TrimSpace(in.Description),
		Price:        *in.Price,
		Area:         in.Area,
		Bedrooms:     in.Bedrooms,
		Bathrooms:    in.Bathrooms,
		City:         strings.TrimSpace(in.City),
		District:     in.District,
		Address:      in.Address,
		Latitude:     in.Latitude,
		Longitude:    in.Longitude,
		PropertyType: in.PropertyType,
		Status:       in.Status,
		IsFeatured:   in.IsFeatured,
		OwnerID:      ownerID,
	}
	if err := ValidateProperty(p); err != nil {
		return Property{}, err
	}
	images, err := BuildImages(in.Images)
	if err != nil {
		return Property{}, err
	}
	p.Images = images
	return p, nil
}

// ValidateProperty checks the scalar fields of a listing.
func ValidateProperty(p Property) error {
	if strings.TrimSpace(p.Title) == "" {
		return invalid("title", "required")
	}
	if strings.TrimSpace(p.Description) == "" {
		return invalid("description", "required")
	}
	if strings.TrimSpace(p.City) == "" {
		return invalid("city", "required")
	}
	if err := CheckLength("title", p.Title, MaxTitleLen); err != nil {
		return err
	}
	if err := CheckLength("city", p.City, MaxCityLen); err != nil {
		return err
	}
	if p.District != nil {
		if err := CheckLength("district", *p.District, MaxDistrictLen); err != nil {
			return err
		}
	}
	if p.Address != nil {
		if err := CheckLength("address", *p.Address, MaxAddressLen); err != nil {
			return err
		}
	}
	if err := checkPrice(p.Price); err != nil {
		return err
	}
	if !p.PropertyType.Valid() {
		return invalid("property_type", fmt.Sprintf("unknown value %q", p.PropertyType))
	}
	if !p.Status.Valid() {
		return invalid("status", fmt.Sprintf("unknown value %q", p.Status))
	}
	if p.Bedrooms != nil && *p.Bedrooms < 0 {
		return invalid("bedrooms", "must be >= 0")
	}
	if p.Bathrooms != nil && *p.Bathrooms < 0 {
		return invalid("bathrooms", "must be >= 0")
	}
	if p.Area != nil && *p.Area < 0 {
		return invalid("area", "must be >= 0")
	}
	return nil
}

// BuildImages validates an image list. At most one image may be primary.
func BuildImages(in []ImageInput) ([]PropertyImage, error) {
	out := make([]PropertyImage, 0, len(in))
	primary := 0
	for i, img := range in {
		url := strings.TrimSpace(img.URL)
		if url == "" {
			return nil, invalid(fmt.Sprintf("images[%d].url", i), "required")
		}
		if err := CheckLength(fmt.Sprintf("images[%d].url", i), url, MaxImageURLLen); err != nil {
			return nil, err
		}
		if img.IsPrimary {
			primary++
		}
		out = append(out, PropertyImage{URL: url, IsPrimary: img.IsPrimary})
	}
	if primary > 1 {
		return nil, invalid("images", "at most one image may be primary")
	}
	return out, nil
}

// PropertyPatch is the body of a listing update. Absent fields are left as
// they are; nullable fields accept an explicit null.
type PropertyPatch struct {
	Title        Optional[string]          `json:"title"`
	Description  Optional[string]          `json:"description"`
	Price        Optional[decimal.Decimal] `json:"price"`
	Area         Optional[*float64]        `json:"area"`
	Bedrooms     Optional[*int]            `json:"bedrooms"`
	Bathrooms    Optional[*int]            `json:"bathrooms"`
	City         Optional[string]          `json:"city"`
	District     Optional[*string]         `json:"district"`
	Address      Optional[*string]         `json:"address"`
	Latitude     Optional[*float64]        `json:"latitude"`
	Longitude    Optional[*float64]        `json:"longitude"`
	PropertyType Optional[PropertyType]    `json:"property_type"`
	Status       Optional[PropertyStatus]  `json:"status"`
	IsFeatured   Optional[bool]            `json:"is_featured"`

	// Images replaces the whole collection when non-nil, even if empty.
	Images *[]ImageInput `json:"images"`
}

// Apply merges the present fields of the patch into p. p is left untouched
// when the merged result is invalid.
func (pp PropertyPatch) Apply(p *Property) error {
	next := *p
	if err := setRequired("title", pp.Title, &next.Title); err != nil {
		return err
	}
	if err := setRequired("description", pp.Description, &next.Description); err != nil {
		return err
	}
	if err := setRequired("price", pp.Price, &next.Price); err != nil {
		return err
	}
	if err := setRequired("city", pp.City, &next.City); err != nil {
		return err
	}
	if err := setRequired("property_type", pp.PropertyType, &next.PropertyType); err != nil {
		return err
	}
	if err := setRequired("status", pp.Status, &next.Status); err != nil {
		return err
	}
	if err := setRequired("is_featured", pp.IsFeatured, &next.IsFeatured); err != nil {
		return err
	}
	setNullable(pp.Area, &next.Area)
	setNullable(pp.Bedrooms, &next.Bedrooms)
	setNullable(pp.Bathrooms, &next.Bathrooms)
	setNullable(pp.District, &next.District)
	setNullable(pp.Address, &next.Address)
	setNullable(pp.Latitude, &next.Latitude)
	setNullable(pp.Longitude, &next.Longitude)
	next.Title = strings.TrimSpace(next.Title)
	next.Description = strings.TrimSpace(next.Description)
	next.City = strings.TrimSpace(next.City)
	if err := ValidateProperty(next); err != nil {
		return err
	}
	if pp.Images != nil {
		images, err := BuildImages(*pp.Images)
		if err != nil {
			return err
		}
		next.Images = images
	}
	*p = next
	return nil
}

// ReplacesImages reports whether the patch carries a new image collection.
func (pp PropertyPatch) ReplacesImages() bool {
	return pp.Images != nil
}

// CheckLength rejects values longer than max characters.
func CheckLength(field, value string, max int) error {
	if utf8.RuneCountInString(value) > max {
		return invalid(field, fmt.Sprintf("must be at most %d characters", max))
	}
	return nil
}

func checkPrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return invalid("price", "must be >= 0")
	}
	if price.GreaterThanOrEqual(maxPrice) {
		return invalid("price", "must be less than "+maxPrice.String())
	}
	if !price.Equal(price.Truncate(PriceScale)) {
		return invalid("price", fmt.Sprintf("at most %d decimal places", PriceScale))
	}
	return nil
}

func setRequired[T any](field string, o Optional[T], dst *T) error {
	if !o.Set {
		return nil
	}
	if o.Null {
		return invalid(field, "may not be null")
	}
	*dst = o.Value
	return nil
}

func setNullable[T any](o Optional[*T], dst **T) {
	if o.Set {
		*dst = o.Value
	}
}

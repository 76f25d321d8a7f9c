package store

import (
	"strings"

	"gorm.io/gorm"
	"smartimmo/pkg/domain"
)

// '!' escapes LIKE wildcards; backslash escaping differs between dialects.
var likeEscaper = strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`)

// filterScope compiles c into a gorm scope over the properties table. Only
// non-nil criteria add a predicate; all predicates are conjunctive.
func filterScope(c domain.Criteria) (func(*gorm.DB) *gorm.DB, error) {
	limit, offset, err := c.Page()
	if err != nil {
		return nil, err
	}
	return func(tx *gorm.DB) *gorm.DB {
		if c.City != nil {
			// SQLite's LOWER folds ASCII only, so stored non-ASCII capitals
			// still match case-sensitively there.
			pattern := "%" + likeEscaper.Replace(strings.ToLower(*c.City)) + "%"
			tx = tx.Where("LOWER(city) LIKE ? ESCAPE '!'", pattern)
		}
		if c.PropertyType != nil {
			tx = tx.Where("property_type = ?", string(*c.PropertyType))
		}
		if c.Status != nil {
			tx = tx.Where("status = ?", string(*c.Status))
		}
		if c.MinPrice != nil {
			tx = tx.Where("price >= ?", *c.MinPrice)
		}
		if c.MaxPrice != nil {
			tx = tx.Where("price <= ?", *c.MaxPrice)
		}
		if c.MinBedrooms != nil {
			tx = tx.Where("bedrooms >= ?", *c.MinBedrooms)
		}
		if c.MinBathrooms != nil {
			tx = tx.Where("bathrooms >= ?", *c.MinBathrooms)
		}
		if c.Featured != nil {
			tx = tx.Where("is_featured = ?", *c.Featured)
		}
		return tx.Order("created_at DESC").Order("id DESC").Offset(offset).Limit(limit)
	}, nil
}

package domain

import "github.com/shopspring/decimal"

const (
	DefaultLimit = 50
	MaxLimit     = 100
)

// Criteria holds optional listing search predicates. Nil fields impose no
// constraint.
type Criteria struct {
	City         *string
	PropertyType *PropertyType
	Status       *PropertyStatus
	MinPrice     *decimal.Decimal
	MaxPrice     *decimal.Decimal
	MinBedrooms  *int
	MinBathrooms *int
	Featured     *bool
	Limit        *int
	Offset       *int
}

// Page resolves the pagination window. Limits above MaxLimit are clamped;
// a negative offset or a non-positive limit is rejected.
func (c Criteria) Page() (limit, offset int, err error) {
	limit = DefaultLimit
	if c.Limit != nil {
		if *c.Limit <= 0 {
			return 0, 0, invalid("limit", "must be >= 1")
		}
		limit = min(*c.Limit, MaxLimit)
	}
	if c.Offset != nil {
		if *c.Offset < 0 {
			return 0, 0, invalid("offset", "must be >= 0")
		}
		offset = *c.Offset
	}
	return limit, offset, nil
}

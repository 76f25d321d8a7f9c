package app

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"smartimmo/pkg/domain"
)

// DemoEmail and DemoPassword identify the account created by Seed.
const (
	DemoEmail    = "demo@smartimmo.tg"
	DemoPassword = "DemoPass123!"
)

// Seed creates a demo superuser and three listings when no user exists yet.
// It reports whether anything was written.
func (a *App) Seed(ctx context.Context) (bool, error) {
	count, err := a.store.UserCount(ctx)
	if err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return false, nil
	}
	phone := "+22890000000"
	owner, err := a.createUser(ctx, SignUpInput{
		Email:       DemoEmail,
		Password:    DemoPassword,
		FullName:    "Agent Démo",
		PhoneNumber: &phone,
	}, true)
	if err != nil {
		return false, fmt.Errorf("seed user: %w", err)
	}
	for _, in := range demoListings() {
		if _, err := a.CreateProperty(ctx, owner, in); err != nil {
			return false, fmt.Errorf("seed property %q: %w", in.Title, err)
		}
	}
	return true, nil
}

func demoListings() []domain.PropertyInput {
	num := func(v int64) *decimal.Decimal { d := decimal.NewFromInt(v); return &d }
	area := func(v float64) *float64 { return &v }
	count := func(v int) *int { return &v }
	text := func(v string) *string { return &v }
	return []domain.PropertyInput{
		{
			Title:        "Appartement moderne à Lomé",
			Description:  "Appartement de 3 chambres climatisées, proche du centre-ville.",
			Price:        num(350000),
			Area:         area(120),
			Bedrooms:     count(3),
			Bathrooms:    count(2),
			City:         "Lomé",
			District:     text("Tokoin"),
			PropertyType: domain.TypeApartment,
			Status:       domain.StatusAvailable,
			Images: []domain.ImageInput{
				{URL: "https://images.unsplash.com/photo-1505691938895-1758d7feb511", IsPrimary: true},
			},
		},
		{
			Title:        "Villa contemporaine avec piscine",
			Description:  "Villa haut standing avec piscine, jardin et garage.",
			Price:        num(95000000),
			Area:         area(420),
			Bedrooms:     count(5),
			Bathrooms:    count(4),
			City:         "Lomé",
			District:     text("Agoè"),
			PropertyType: domain.TypeHouse,
			Status:       domain.StatusAvailable,
			Images: []domain.ImageInput{
				{URL: "https://images.unsplash.com/photo-1505691723518-36a5ac3be353", IsPrimary: true},
			},
		},
		{
			Title:        "Terrain constructible à Kpalimé",
			Description:  "Terrain viabilisé de 800 m² idéal pour un projet résidentiel.",
			Price:        num(18000000),
			Area:         area(800),
			City:         "Kpalimé",
			PropertyType: domain.TypeLand,
			Status:       domain.StatusAvailable,
			Images: []domain.ImageInput{
				{URL: "https://images.unsplash.com/photo-1523287562758-66c7fc58967d", IsPrimary: true},
			},
		},
	}
}

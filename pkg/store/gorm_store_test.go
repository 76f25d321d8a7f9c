package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"smartimmo/pkg/domain"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	s, err := NewGormStore(dsn, WithLogLevel(gormlogger.Silent))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func createUser(t *testing.T, s *GormStore, email string) domain.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), domain.User{
		Email:        email,
		FullName:     "Test User",
		PasswordHash: "hash",
		IsActive:     true,
	})
	require.NoError(t, err)
	return u
}

func ptr[T any](v T) *T { return &v }

func createProperty(t *testing.T, s *GormStore, ownerID string, mutate func(*domain.Property)) domain.Property {
	t.Helper()
	p := domain.Property{
		Title:        "Appartement",
		Description:  "Lumineux",
		Price:        decimal.NewFromInt(100000),
		Bedrooms:     ptr(2),
		Bathrooms:    ptr(1),
		City:         "Lomé",
		PropertyType: domain.TypeApartment,
		Status:       domain.StatusAvailable,
		OwnerID:      ownerID,
	}
	if mutate != nil {
		mutate(&p)
	}
	created, err := s.CreateProperty(context.Background(), p)
	require.NoError(t, err)
	return created
}

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	createUser(t, s, "a@example.com")
	_, err := s.CreateUser(context.Background(), domain.User{Email: "a@example.com", FullName: "B", PasswordHash: "x"})
	require.ErrorIs(t, err, ErrDuplicate)
}

func TestCreatePropertyKeepsImageOrder(t *testing.T) {
	s := newTestStore(t)
	owner := createUser(t, s, "owner@example.com")
	p := createProperty(t, s, owner.ID, func(p *domain.Property) {
		p.Images = []domain.PropertyImage{
			{URL: "https://img/3"},
			{URL: "https://img/1", IsPrimary: true},
			{URL: "https://img/2"},
		}
	})
	require.NotEmpty(t, p.ID)
	require.False(t, p.CreatedAt.IsZero())

	got, ok, err := s.GetProperty(context.Background(), p.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got.Images, 3)
	require.Equal(t, "https://img/3", got.Images[0].URL)
	require.Equal(t, "https://img/1", got.Images[1].URL)
	require.True(t, got.Images[1].IsPrimary)
	require.Equal(t, "https://img/2", got.Images[2].URL)
	require.True(t, got.Price.Equal(decimal.NewFromInt(100000)))
}

func TestGetPropertyMissing(t *testing.T) {
	s := newTestStore(t)
	_, ok, err := s.GetProperty(context.Background(), "missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestListPropertiesFilters(t *testing.T) {
	s := newTestStore(t)
	owner := createUser(t, s, "owner@example.com")
	lome := createProperty(t, s, owner.ID, nil)
	createProperty(t, s, owner.ID, func(p *domain.Property) {
		p.City = "Kara"
		p.Price = decimal.NewFromInt(50000)
		p.Bedrooms = ptr(4)
		p.PropertyType = domain.TypeHouse
	})
	featured := createProperty(t, s, owner.ID, func(p *domain.Property) {
		p.City = "LOMÉ"
		p.Price = decimal.NewFromInt(300000)
		p.Bedrooms = nil
		p.IsFeatured = true
	})
	createProperty(t, s, owner.ID, func(p *domain.Property) {
		p.City = "Lo_me"
		p.Status = domain.StatusSold
	})

	ctx := context.Background()
	tests := []struct {
		name     string
		criteria domain.Criteria
		want     int
	}{
		{name: "no criteria", criteria: domain.Criteria{}, want: 4},
		{name: "city substring case-insensitive", criteria: domain.Criteria{City: ptr("lom")}, want: 2},
		{name: "wildcards are literal", criteria: domain.Criteria{City: ptr("o_m")}, want: 1},
		{name: "percent is literal", criteria: domain.Criteria{City: ptr("%")}, want: 0},
		{name: "min bedrooms excludes null", criteria: domain.Criteria{MinBedrooms: ptr(2)}, want: 3},
		{name: "price inclusive bounds", criteria: domain.Criteria{MinPrice: ptr(decimal.NewFromInt(50000)), MaxPrice: ptr(decimal.NewFromInt(100000))}, want: 3},
		{name: "type", criteria: domain.Criteria{PropertyType: ptr(domain.TypeHouse)}, want: 1},
		{name: "status", criteria: domain.Criteria{Status: ptr(domain.StatusSold)}, want: 1},
		{name: "featured", criteria: domain.Criteria{Featured: ptr(true)}, want: 1},
		{name: "conjunctive", criteria: domain.Criteria{City: ptr("kara"), MinBedrooms: ptr(5)}, want: 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.ListProperties(ctx, tc.criteria)
			require.NoError(t, err)
			require.Len(t, got, tc.want)
		})
	}

	got, err := s.ListProperties(ctx, domain.Criteria{Featured: ptr(true)})
	require.NoError(t, err)
	require.Equal(t, featured.ID, got[0].ID)

	// sqlite LOWER only folds ASCII, so "LOMÉ" does not match "lomé".
	got, err = s.ListProperties(ctx, domain.Criteria{City: ptr("lomé")})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, lome.ID, got[0].ID)

	// The criterion is folded in Go, so capitals in the query still match.
	got, err = s.ListProperties(ctx, domain.Criteria{City: ptr("LOMÉ")})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, lome.ID, got[0].ID)
}

func TestListPropertiesNewestFirstAndPaged(t *testing.T) {
	s := newTestStore(t)
	owner := createUser(t, s, "owner@example.com")
	var ids []string
	for i := 0; i < 5; i++ {
		p := createProperty(t, s, owner.ID, func(p *domain.Property) { p.Title = fmt.Sprintf("P%d", i) })
		ids = append(ids, p.ID)
	}
	ctx := context.Background()
	all, err := s.ListProperties(ctx, domain.Criteria{})
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i := range all {
		require.Equal(t, ids[len(ids)-1-i], all[i].ID)
	}

	page, err := s.ListProperties(ctx, domain.Criteria{Limit: ptr(2), Offset: ptr(1)})
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, all[1].ID, page[0].ID)
	require.Equal(t, all[2].ID, page[1].ID)

	_, err = s.ListProperties(ctx, domain.Criteria{Offset: ptr(-1)})
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
}

func TestUpdatePropertyReplacesImagesAndClearsNullable(t *testing.T) {
	s := newTestStore(t)
	owner := createUser(t, s, "owner@example.com")
	p := createProperty(t, s, owner.ID, func(p *domain.Property) {
		p.Images = []domain.PropertyImage{{URL: "https://img/old"}}
	})

	updated, ok, err := s.UpdateProperty(context.Background(), p.ID, func(cur *domain.Property) (bool, error) {
		cur.Title = "Nouveau"
		cur.Bedrooms = nil
		cur.IsFeatured = false
		cur.Images = []domain.PropertyImage{{URL: "https://img/a"}, {URL: "https://img/b"}}
		return true, nil
	})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Nouveau", updated.Title)
	require.Nil(t, updated.Bedrooms)
	require.Len(t, updated.Images, 2)
	require.Equal(t, "https://img/a", updated.Images[0].URL)
	require.Equal(t, p.CreatedAt.Unix(), updated.CreatedAt.Unix())
	require.Equal(t, owner.ID, updated.OwnerID)

	updated, _, err = s.UpdateProperty(context.Background(), p.ID, func(cur *domain.Property) (bool, error) {
		cur.Images = nil
		return false, nil
	})
	require.NoError(t, err)
	require.Len(t, updated.Images, 2)
}

func TestUpdatePropertyMutationErrorRollsBack(t *testing.T) {
	s := newTestStore(t)
	owner := createUser(t, s, "owner@example.com")
	p := createProperty(t, s, owner.ID, nil)
	boom := errors.New("forbidden")

	_, _, err := s.UpdateProperty(context.Background(), p.ID, func(cur *domain.Property) (bool, error) {
		cur.Title = "changed"
		return false, boom
	})
	require.ErrorIs(t, err, boom)
	got, _, err := s.GetProperty(context.Background(), p.ID)
	require.NoError(t, err)
	require.Equal(t, p.Title, got.Title)
}

func TestUpdatePropertyMissing(t *testing.T) {
	s := newTestStore(t)
	called := false
	_, ok, err := s.UpdateProperty(context.Background(), "missing", func(*domain.Property) (bool, error) {
		called = true
		return false, nil
	})
	require.NoError(t, err)
	require.False(t, ok)
	require.False(t, called)
}

func TestDeletePropertyCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := createUser(t, s, "owner@example.com")
	fan := createUser(t, s, "fan@example.com")
	p := createProperty(t, s, owner.ID, func(p *domain.Property) {
		p.Images = []domain.PropertyImage{{URL: "https://img/a"}}
	})
	_, _, err := s.AddFavorite(ctx, fan.ID, p.ID)
	require.NoError(t, err)

	ok, err := s.DeleteProperty(ctx, p.ID, nil)
	require.NoError(t, err)
	require.True(t, ok)

	var images, favorites int64
	require.NoError(t, s.db.Model(&PropertyImageModel{}).Where("property_id = ?", p.ID).Count(&images).Error)
	require.NoError(t, s.db.Model(&FavoriteModel{}).Where("property_id = ?", p.ID).Count(&favorites).Error)
	require.Zero(t, images)
	require.Zero(t, favorites)

	ok, err = s.DeleteProperty(ctx, p.ID, nil)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDeletePropertyCheckRejects(t *testing.T) {
	s := newTestStore(t)
	owner := createUser(t, s, "owner@example.com")
	p := createProperty(t, s, owner.ID, nil)
	denied := errors.New("denied")

	_, err := s.DeleteProperty(context.Background(), p.ID, func(domain.Property) error { return denied })
	require.ErrorIs(t, err, denied)
	_, ok, err := s.GetProperty(context.Background(), p.ID)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestDeleteUserCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := createUser(t, s, "owner@example.com")
	fan := createUser(t, s, "fan@example.com")
	owned := createProperty(t, s, owner.ID, nil)
	other := createProperty(t, s, fan.ID, nil)
	_, _, err := s.AddFavorite(ctx, fan.ID, owned.ID)
	require.NoError(t, err)
	_, _, err = s.AddFavorite(ctx, owner.ID, other.ID)
	require.NoError(t, err)

	ok, err := s.DeleteUser(ctx, owner.ID)
	require.NoError(t, err)
	require.True(t, ok)

	_, found, err := s.GetProperty(ctx, owned.ID)
	require.NoError(t, err)
	require.False(t, found)
	favs, err := s.ListFavorites(ctx, fan.ID)
	require.NoError(t, err)
	require.Empty(t, favs)
	var count int64
	require.NoError(t, s.db.Model(&FavoriteModel{}).Where("user_id = ?", owner.ID).Count(&count).Error)
	require.Zero(t, count)
}

func TestAddFavoriteIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := createUser(t, s, "owner@example.com")
	p := createProperty(t, s, owner.ID, nil)

	first, created, err := s.AddFavorite(ctx, owner.ID, p.ID)
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, p.ID, first.Property.ID)

	second, created, err := s.AddFavorite(ctx, owner.ID, p.ID)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, second.ID)

	favs, err := s.ListFavorites(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, favs, 1)
}

func TestAddFavoriteConcurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := createUser(t, s, "owner@example.com")
	p := createProperty(t, s, owner.ID, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := s.AddFavorite(ctx, owner.ID, p.ID); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	favs, err := s.ListFavorites(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, favs, 1)
}

// A competing transaction inserts the same pair between the existence check
// and the insert; the loser must return the winner's row.
func TestAddFavoriteLosesInsertRace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := createUser(t, s, "owner@example.com")
	p := createProperty(t, s, owner.ID, nil)

	var raced bool
	err := s.db.Callback().Create().Before("gorm:create").Register("test:competing_favorite", func(db *gorm.DB) {
		fav, ok := db.Statement.Dest.(*FavoriteModel)
		if !ok || raced {
			return
		}
		raced = true
		db.AddError(db.Session(&gorm.Session{NewDB: true}).Exec(
			"INSERT INTO favorites (id, user_id, property_id, created_at) VALUES (?, ?, ?, ?)",
			"winner", fav.UserID, fav.PropertyID, time.Now().UTC(),
		).Error)
	})
	require.NoError(t, err)

	fav, created, err := s.AddFavorite(ctx, owner.ID, p.ID)
	require.NoError(t, err)
	require.True(t, raced)
	require.False(t, created)
	require.Equal(t, "winner", fav.ID)
	require.Equal(t, p.ID, fav.Property.ID)

	favs, err := s.ListFavorites(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, favs, 1)
	require.Equal(t, "winner", favs[0].ID)
}

func TestAddFavoriteMissingProperty(t *testing.T) {
	s := newTestStore(t)
	owner := createUser(t, s, "owner@example.com")
	_, _, err := s.AddFavorite(context.Background(), owner.ID, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveFavoriteAndListOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := createUser(t, s, "owner@example.com")
	a := createProperty(t, s, owner.ID, nil)
	b := createProperty(t, s, owner.ID, func(p *domain.Property) {
		p.Images = []domain.PropertyImage{{URL: "https://img/b", IsPrimary: true}}
	})
	_, _, err := s.AddFavorite(ctx, owner.ID, a.ID)
	require.NoError(t, err)
	_, _, err = s.AddFavorite(ctx, owner.ID, b.ID)
	require.NoError(t, err)

	favs, err := s.ListFavorites(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, favs, 2)
	require.Equal(t, b.ID, favs[0].Property.ID)
	require.Len(t, favs[0].Property.Images, 1)
	require.Equal(t, a.ID, favs[1].Property.ID)

	ok, err := s.RemoveFavorite(ctx, owner.ID, a.ID)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = s.RemoveFavorite(ctx, owner.ID, a.ID)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestListUsersAndCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	first := createUser(t, s, "first@example.com")
	second := createUser(t, s, "second@example.com")

	count, err := s.UserCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, count)
	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Equal(t, second.ID, users[0].ID)
	require.Equal(t, first.ID, users[1].ID)

	got, ok, err := s.GetUserByEmail(ctx, "first@example.com")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, first.ID, got.ID)
	_, ok, err = s.GetUserByID(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestOpenDialectorRejectsUnknownDSN(t *testing.T) {
	_, err := NewGormStore("mysql://localhost/db")
	require.Error(t, err)
	require.Equal(t, "file:x.db?_foreign_keys=1", withForeignKeys("file:x.db"))
	require.Equal(t, "file:x.db?mode=memory&_foreign_keys=1", withForeignKeys("file:x.db?mode=memory"))
}

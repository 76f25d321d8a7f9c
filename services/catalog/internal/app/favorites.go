package app

import (
	"context"
	"errors"
	"fmt"

	"smartimmo/pkg/domain"
	"smartimmo/pkg/store"
)

var errFavoriteNotFound = newError(ErrNotFound, "Favorite not found")

// ListFavorites returns the user's favorites, newest first.
func (a *App) ListFavorites(ctx context.Context, user domain.User) ([]domain.Favorite, error) {
	favs, err := a.store.ListFavorites(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	return favs, nil
}

// AddFavorite links user to the listing. Adding an existing favorite returns
// it unchanged with created=false.
func (a *App) AddFavorite(ctx context.Context, user domain.User, propertyID string) (domain.Favorite, bool, error) {
	fav, created, err := a.store.AddFavorite(ctx, user.ID, propertyID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Favorite{}, false, errPropertyNotFound
		}
		return domain.Favorite{}, false, fmt.Errorf("add favorite: %w", err)
	}
	return fav, created, nil
}

// RemoveFavorite unlinks user from the listing.
func (a *App) RemoveFavorite(ctx context.Context, user domain.User, propertyID string) error {
	ok, err := a.store.RemoveFavorite(ctx, user.ID, propertyID)
	if err != nil {
		return fmt.Errorf("remove favorite: %w", err)
	}
	if !ok {
		return errFavoriteNotFound
	}
	return nil
}

package app

import (
	"context"
	"errors"
	"fmt"

	"smartimmo/pkg/domain"
	"smartimmo/pkg/events"
)

var (
	errPropertyNotFound = newError(ErrNotFound, "Property not found")
	errNotPermitted     = newError(ErrForbidden, "Not enough permissions")
)

// ListProperties returns listings matching every supplied criterion, newest
// first.
func (a *App) ListProperties(ctx context.Context, c domain.Criteria) ([]domain.Property, error) {
	if _, _, err := c.Page(); err != nil {
		return nil, invalidInput(err)
	}
	props, err := a.store.ListProperties(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}
	return props, nil
}

// CreateProperty stores a new listing owned by owner, images included.
func (a *App) CreateProperty(ctx context.Context, owner domain.User, in domain.PropertyInput) (domain.Property, error) {
	p, err := domain.NewProperty(owner.ID, in)
	if err != nil {
		return domain.Property{}, invalidInput(err)
	}
	created, err := a.store.CreateProperty(ctx, p)
	if err != nil {
		return domain.Property{}, fmt.Errorf("create property: %w", err)
	}
	a.publish(ctx, events.ActionCreate, created.ID)
	return created, nil
}

// GetProperty returns one listing with its images.
func (a *App) GetProperty(ctx context.Context, id string) (domain.Property, error) {
	p, ok, err := a.store.GetProperty(ctx, id)
	if err != nil {
		return domain.Property{}, fmt.Errorf("get property: %w", err)
	}
	if !ok {
		return domain.Property{}, errPropertyNotFound
	}
	return p, nil
}

// UpdateProperty merges patch into the listing. A missing listing is reported
// before a denied actor.
func (a *App) UpdateProperty(ctx context.Context, actor domain.User, id string, patch domain.PropertyPatch) (domain.Property, error) {
	updated, ok, err := a.store.UpdateProperty(ctx, id, func(p *domain.Property) (bool, error) {
		if !domain.CanModify(actor, *p) {
			return false, errNotPermitted
		}
		if err := patch.Apply(p); err != nil {
			return false, invalidInput(err)
		}
		return patch.ReplacesImages(), nil
	})
	if err != nil {
		if isTaxonomy(err) {
			return domain.Property{}, err
		}
		return domain.Property{}, fmt.Errorf("update property: %w", err)
	}
	if !ok {
		return domain.Property{}, errPropertyNotFound
	}
	a.publish(ctx, events.ActionUpdate, updated.ID)
	return updated, nil
}

// DeleteProperty removes the listing together with its images and the
// favorites pointing at it.
func (a *App) DeleteProperty(ctx context.Context, actor domain.User, id string) error {
	ok, err := a.store.DeleteProperty(ctx, id, func(p domain.Property) error {
		if !domain.CanModify(actor, p) {
			return errNotPermitted
		}
		return nil
	})
	if err != nil {
		if isTaxonomy(err) {
			return err
		}
		return fmt.Errorf("delete property: %w", err)
	}
	if !ok {
		return errPropertyNotFound
	}
	a.publish(ctx, events.ActionDelete, id)
	return nil
}

func isTaxonomy(err error) bool {
	var appErr *Error
	return errors.As(err, &appErr)
}

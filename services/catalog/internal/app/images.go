package app

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"smartimmo/internal/util"
	"smartimmo/pkg/domain"
	"smartimmo/pkg/events"
)

var (
	errImagesDisabled   = newError(ErrUpstreamUnavailable, "Image storage not configured")
	errImageStoreFailed = newError(ErrUpstreamUnavailable, "Image storage unavailable")
)

// contentTypes lists the accepted photo formats by extension.
var contentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
}

// ImageUpload is a photo to attach to a listing.
type ImageUpload struct {
	Filename  string
	Size      int64
	Body      io.Reader
	IsPrimary bool
}

// UploadPropertyImage stores the photo and appends it to the listing's
// images. A primary upload demotes the current primary image.
func (a *App) UploadPropertyImage(ctx context.Context, actor domain.User, propertyID string, up ImageUpload) (domain.Property, error) {
	if a.images == nil {
		return domain.Property{}, errImagesDisabled
	}
	ext := strings.ToLower(filepath.Ext(up.Filename))
	contentType, ok := contentTypes[ext]
	if !ok {
		return domain.Property{}, newError(ErrInvalidInput, fmt.Sprintf("file: unsupported image type %q", ext))
	}
	if up.Size <= 0 {
		return domain.Property{}, newError(ErrInvalidInput, "file: empty upload")
	}
	if a.maxImageBytes > 0 && up.Size > a.maxImageBytes {
		return domain.Property{}, newError(ErrInvalidInput, fmt.Sprintf("file: larger than %d bytes", a.maxImageBytes))
	}

	// Check before uploading so strangers cannot fill the bucket.
	current, err := a.GetProperty(ctx, propertyID)
	if err != nil {
		return domain.Property{}, err
	}
	if !domain.CanModify(actor, current) {
		return domain.Property{}, errNotPermitted
	}

	key := "properties/" + propertyID + "/" + util.NewID() + ext
	if err := a.images.Put(ctx, key, up.Body, up.Size, contentType); err != nil {
		util.LoggerFromContext(ctx).Warn("image_upload_failed", "property_id", propertyID, "err", err)
		return domain.Property{}, errImageStoreFailed
	}
	image := domain.PropertyImage{URL: a.images.URL(key), IsPrimary: up.IsPrimary}
	updated, found, err := a.store.UpdateProperty(ctx, propertyID, func(p *domain.Property) (bool, error) {
		if !domain.CanModify(actor, *p) {
			return false, errNotPermitted
		}
		if image.IsPrimary {
			for i := range p.Images {
				p.Images[i].IsPrimary = false
			}
		}
		p.Images = append(p.Images, image)
		return true, nil
	})
	if err == nil && !found {
		err = errPropertyNotFound
	}
	if err != nil {
		if delErr := a.images.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			util.LoggerFromContext(ctx).Warn("image_cleanup_failed", "key", key, "err", delErr)
		}
		if isTaxonomy(err) {
			return domain.Property{}, err
		}
		return domain.Property{}, fmt.Errorf("attach image: %w", err)
	}
	a.publish(ctx, events.ActionUpdate, updated.ID)
	return updated, nil
}

package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"smartimmo/internal/util"
	"smartimmo/pkg/ai"
	"smartimmo/pkg/domain"
	"smartimmo/pkg/events"
	"smartimmo/pkg/storage"
	"smartimmo/pkg/store"
)

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL      string
	JWTSecret        string
	SessionTTL       time.Duration
	RedisAddr        string
	RedisPassword    string
	OllamaHost       string
	OllamaModel      string
	AssistantTimeout time.Duration
	MaxImageBytes    int64

	Store     store.Store
	Sessions  store.SessionStore
	Assistant ai.TextGenerator
	Events    events.Publisher
	// Images is optional; without it photo uploads are refused.
	Images storage.ObjectStore
}

// App is the Catalog Service: listing CRUD with photos, favorites, accounts
// and the assistant bridge on top of the store.
type App struct {
	store         store.Store
	sessions      store.SessionStore
	assistant     ai.TextGenerator
	events        events.Publisher
	images        storage.ObjectStore
	maxImageBytes int64
}

// New constructs the application, opening the database and the session store
// unless they are injected.
func New(cfg Config) (*App, error) {
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 24 * time.Hour
	}

	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init gorm store: %w", err)
		}
	}

	sessionStore := cfg.Sessions
	if sessionStore == nil {
		var revoker store.TokenRevoker = store.NewMemoryTokenRevoker()
		if strings.TrimSpace(cfg.RedisAddr) != "" {
			revoker = store.NewRedisTokenRevoker(cfg.RedisAddr, cfg.RedisPassword)
		}
		jwtStore, err := store.NewJWTSessionStore(cfg.JWTSecret, cfg.SessionTTL, revoker, store.JWTOptions{})
		if err != nil {
			return nil, fmt.Errorf("init jwt session store: %w", err)
		}
		sessionStore = jwtStore
	}

	assistant := cfg.Assistant
	if assistant == nil {
		assistant = ai.NewOllamaClient(cfg.OllamaHost, cfg.OllamaModel, cfg.AssistantTimeout)
	}

	publisher := cfg.Events
	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	return &App{
		store:         dataStore,
		sessions:      sessionStore,
		assistant:     assistant,
		events:        publisher,
		images:        cfg.Images,
		maxImageBytes: cfg.MaxImageBytes,
	}, nil
}

// Close releases the event publisher and the database pool when owned.
func (a *App) Close() error {
	var errs []error
	if err := a.events.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close events: %w", err))
	}
	if closer, ok := a.store.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Ping checks that the store is reachable.
func (a *App) Ping(ctx context.Context) error {
	if pinger, ok := a.store.(interface{ Ping(context.Context) error }); ok {
		return pinger.Ping(ctx)
	}
	return nil
}

// publish emits a listing event after the owning transaction committed.
// Failures are logged only.
func (a *App) publish(ctx context.Context, action events.Action, propertyID string) {
	ev := events.PropertyEvent{
		Action:     action,
		PropertyID: propertyID,
		OccurredAt: time.Now().UTC(),
	}
	if err := a.events.Publish(context.WithoutCancel(ctx), ev); err != nil {
		util.LoggerFromContext(ctx).Warn("property_event_publish_failed",
			"action", string(action),
			"property_id", propertyID,
			"err", err,
		)
	}
}

func invalidInput(err error) error {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return newError(ErrInvalidInput, verr.Error())
	}
	return err
}

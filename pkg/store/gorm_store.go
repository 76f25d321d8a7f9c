package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	"smartimmo/internal/util"
	"smartimmo/pkg/domain"
)

const migrateLockID int64 = 51842209

type GormStoreOptions struct {
	LogLevel gormlogger.LogLevel
}

type GormStoreOption func(*GormStoreOptions)

// WithLogLevel sets the SQL logger verbosity.
func WithLogLevel(level gormlogger.LogLevel) GormStoreOption {
	return func(opts *GormStoreOptions) {
		opts.LogLevel = level
	}
}

// GormStore implements Store using GORM. Postgres is the production dialect;
// mysql DSNs are accepted for existing deployments and sqlite DSNs for local
// runs and tests.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string, options ...GormStoreOption) (*GormStore, error) {
	opts := GormStoreOptions{LogLevel: gormlogger.Warn}
	for _, option := range options {
		if option != nil {
			option(&opts)
		}
	}
	dialector, memory, err := openDialector(dsn)
	if err != nil {
		return nil, err
	}

	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  opts.LogLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLog,
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if memory {
		// Each connection to an in-memory sqlite database is a separate database.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("get sql db: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&UserModel{}, &PropertyModel{}, &PropertyImageModel{}, &FavoriteModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks database connectivity.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func openDialector(dsn string) (gorm.Dialector, bool, error) {
	dsn = strings.TrimSpace(dsn)
	switch {
	case dsn == "":
		return nil, false, errors.New("database dsn required")
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"), strings.Contains(dsn, "host="):
		return postgres.Open(dsn), false, nil
	case strings.HasPrefix(dsn, "mysql://"):
		return mysql.Open(withParseTime(strings.TrimPrefix(dsn, "mysql://"))), false, nil
	case strings.HasPrefix(dsn, "sqlite:"), strings.HasPrefix(dsn, "file:"), strings.HasPrefix(dsn, ":memory:"):
		path := strings.TrimPrefix(dsn, "sqlite:")
		memory := strings.Contains(path, ":memory:") || strings.Contains(path, "mode=memory")
		return sqlite.Open(withForeignKeys(path)), memory, nil
	default:
		return nil, false, fmt.Errorf("unsupported database dsn %q", dsn)
	}
}

// withForeignKeys turns on sqlite foreign key enforcement for every pooled
// connection; cascades depend on it.
func withForeignKeys(path string) string {
	if strings.Contains(path, "_foreign_keys=") || strings.Contains(path, "_fk=") {
		return path
	}
	if strings.Contains(path, "?") {
		return path + "&_foreign_keys=1"
	}
	return path + "?_foreign_keys=1"
}

// withParseTime makes the mysql driver scan DATETIME columns into time.Time.
func withParseTime(dsn string) string {
	if strings.Contains(dsn, "parseTime=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&parseTime=true"
	}
	return dsn + "?parseTime=true"
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	if db.Dialector.Name() != "postgres" {
		return fn(db)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

func (s *GormStore) forUpdate(tx *gorm.DB) *gorm.DB {
	if s.db.Dialector.Name() != "sqlite" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

// CreateUser inserts a user. A taken email yields ErrDuplicate.
func (s *GormStore) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	now := time.Now().UTC()
	if u.ID == "" {
		u.ID = util.NewID()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	model := userToModel(u)
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(&model).Error; err != nil {
		return domain.User{}, translate(err)
	}
	return userFromModel(model), nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(ctx context.Context, email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(ctx context.Context, id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// ListUsers returns all users, newest first.
func (s *GormStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	var models []UserModel
	if err := s.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.User, 0, len(models))
	for _, m := range models {
		res = append(res, userFromModel(m))
	}
	return res, nil
}

// UserCount returns number of users.
func (s *GormStore) UserCount(ctx context.Context) (int, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&UserModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// DeleteUser removes a user. Owned listings, their images and every favorite
// touching them go with it through the foreign key cascades.
func (s *GormStore) DeleteUser(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).Delete(&UserModel{}, "id = ?", id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListProperties returns the listings matching every supplied criterion,
// newest first.
func (s *GormStore) ListProperties(ctx context.Context, c domain.Criteria) ([]domain.Property, error) {
	scope, err := filterScope(c)
	if err != nil {
		return nil, err
	}
	var models []PropertyModel
	if err := s.db.WithContext(ctx).Scopes(scope).Preload("Images", orderImages).Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Property, 0, len(models))
	for _, m := range models {
		res = append(res, propertyFromModel(m))
	}
	return res, nil
}

// CreateProperty inserts a listing and its images in one transaction and
// returns the stored row.
func (s *GormStore) CreateProperty(ctx context.Context, p domain.Property) (domain.Property, error) {
	now := time.Now().UTC()
	p.ID = util.NewID()
	p.CreatedAt = now
	p.UpdatedAt = now
	var out domain.Property
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := propertyToModel(p)
		if err := tx.Omit(clause.Associations).Create(&model).Error; err != nil {
			return translate(err)
		}
		if err := insertImages(tx, p.ID, p.Images); err != nil {
			return err
		}
		stored, ok, err := loadProperty(tx, p.ID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFound
		}
		out = stored
		return nil
	})
	if err != nil {
		return domain.Property{}, err
	}
	return out, nil
}

// GetProperty retrieves a listing with its images.
func (s *GormStore) GetProperty(ctx context.Context, id string) (domain.Property, bool, error) {
	return loadProperty(s.db.WithContext(ctx), id)
}

// UpdateProperty loads the listing, lets mutate edit it and writes the result
// back, all in one transaction. An error from mutate aborts the update and is
// returned unchanged.
func (s *GormStore) UpdateProperty(ctx context.Context, id string, mutate PropertyMutation) (domain.Property, bool, error) {
	var out domain.Property
	found := true
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, ok, err := loadProperty(s.forUpdate(tx), id)
		if err != nil {
			return err
		}
		if !ok {
			found = false
			return nil
		}
		next := current
		replaceImages, err := mutate(&next)
		if err != nil {
			return err
		}
		next.ID = current.ID
		next.OwnerID = current.OwnerID
		next.CreatedAt = current.CreatedAt
		next.UpdatedAt = time.Now().UTC()
		model := propertyToModel(next)
		// Select("*") writes zero values and nils, so cleared fields persist.
		if err := tx.Model(&PropertyModel{ID: id}).Select("*").Omit("id", "owner_id", "created_at", clause.Associations).Updates(&model).Error; err != nil {
			return translate(err)
		}
		if replaceImages {
			if err := tx.Where("property_id = ?", id).Delete(&PropertyImageModel{}).Error; err != nil {
				return fmt.Errorf("delete images: %w", err)
			}
			if err := insertImages(tx, id, next.Images); err != nil {
				return err
			}
		}
		stored, _, err := loadProperty(tx, id)
		if err != nil {
			return err
		}
		out = stored
		return nil
	})
	if err != nil {
		return domain.Property{}, false, err
	}
	return out, found, nil
}

// DeleteProperty removes a listing after check approves it. Images and
// favorites are removed by the foreign key cascades.
func (s *GormStore) DeleteProperty(ctx context.Context, id string, check PropertyCheck) (bool, error) {
	found := true
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, ok, err := loadProperty(s.forUpdate(tx), id)
		if err != nil {
			return err
		}
		if !ok {
			found = false
			return nil
		}
		if check != nil {
			if err := check(current); err != nil {
				return err
			}
		}
		return tx.Delete(&PropertyModel{}, "id = ?", id).Error
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// AddFavorite links a user to a listing. An existing link is returned as is
// with created=false. The unique (user_id, property_id) index is the
// authoritative guard: a concurrent insert that wins the race is read back
// instead of failing.
func (s *GormStore) AddFavorite(ctx context.Context, userID, propertyID string) (domain.Favorite, bool, error) {
	var (
		out     domain.Favorite
		created bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		prop, ok, err := loadProperty(tx, propertyID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFound
		}
		existing, ok, err := findFavorite(tx, userID, propertyID)
		if err != nil {
			return err
		}
		if ok {
			out = favoriteFromModel(existing, prop)
			return nil
		}
		model := FavoriteModel{
			ID:         util.NewID(),
			UserID:     userID,
			PropertyID: propertyID,
			CreatedAt:  time.Now().UTC(),
		}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "property_id"}},
			DoNothing: true,
		}).Create(&model)
		if res.Error != nil && !errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return res.Error
		}
		if res.Error == nil && res.RowsAffected == 1 {
			created = true
			out = favoriteFromModel(model, prop)
			return nil
		}
		existing, ok, err = findFavorite(tx, userID, propertyID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("favorite for user %s and property %s vanished after conflict", userID, propertyID)
		}
		out = favoriteFromModel(existing, prop)
		return nil
	})
	if err != nil {
		return domain.Favorite{}, false, err
	}
	return out, created, nil
}

// RemoveFavorite deletes the link between a user and a listing.
func (s *GormStore) RemoveFavorite(ctx context.Context, userID, propertyID string) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND property_id = ?", userID, propertyID).
		Delete(&FavoriteModel{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListFavorites returns the user's favorites, newest first, each carrying the
// full listing.
func (s *GormStore) ListFavorites(ctx context.Context, userID string) ([]domain.Favorite, error) {
	var out []domain.Favorite
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var favs []FavoriteModel
		if err := tx.Where("user_id = ?", userID).Order("created_at DESC").Order("id DESC").Find(&favs).Error; err != nil {
			return err
		}
		if len(favs) == 0 {
			out = []domain.Favorite{}
			return nil
		}
		ids := make([]string, 0, len(favs))
		for _, f := range favs {
			ids = append(ids, f.PropertyID)
		}
		var props []PropertyModel
		if err := tx.Where("id IN ?", ids).Preload("Images", orderImages).Find(&props).Error; err != nil {
			return err
		}
		byID := make(map[string]domain.Property, len(props))
		for _, p := range props {
			byID[p.ID] = propertyFromModel(p)
		}
		out = make([]domain.Favorite, 0, len(favs))
		for _, f := range favs {
			prop, ok := byID[f.PropertyID]
			if !ok {
				continue
			}
			out = append(out, favoriteFromModel(f, prop))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func loadProperty(tx *gorm.DB, id string) (domain.Property, bool, error) {
	var model PropertyModel
	if err := tx.Preload("Images", orderImages).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Property{}, false, nil
		}
		return domain.Property{}, false, err
	}
	return propertyFromModel(model), true, nil
}

func findFavorite(tx *gorm.DB, userID, propertyID string) (FavoriteModel, bool, error) {
	var model FavoriteModel
	err := tx.Where("user_id = ? AND property_id = ?", userID, propertyID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return FavoriteModel{}, false, nil
		}
		return FavoriteModel{}, false, err
	}
	return model, true, nil
}

func insertImages(tx *gorm.DB, propertyID string, images []domain.PropertyImage) error {
	if len(images) == 0 {
		return nil
	}
	models := make([]PropertyImageModel, 0, len(images))
	for i, img := range images {
		id := img.ID
		if id == "" {
			id = util.NewID()
		}
		models = append(models, PropertyImageModel{
			ID:         id,
			PropertyID: propertyID,
			URL:        img.URL,
			IsPrimary:  img.IsPrimary,
			Position:   i,
		})
	}
	if err := tx.Create(&models).Error; err != nil {
		return fmt.Errorf("insert images: %w", err)
	}
	return nil
}

func orderImages(tx *gorm.DB) *gorm.DB {
	return tx.Order("position ASC")
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Email:        u.Email,
		FullName:     u.FullName,
		PhoneNumber:  u.PhoneNumber,
		PasswordHash: u.PasswordHash,
		IsActive:     u.IsActive,
		IsSuperuser:  u.IsSuperuser,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Email:        m.Email,
		FullName:     m.FullName,
		PhoneNumber:  m.PhoneNumber,
		PasswordHash: m.PasswordHash,
		IsActive:     m.IsActive,
		IsSuperuser:  m.IsSuperuser,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func propertyToModel(p domain.Property) PropertyModel {
	return PropertyModel{
		ID:           p.ID,
		Title:        p.Title,
		Description:  p.Description,
		Price:        p.Price,
		Area:         p.Area,
		Bedrooms:     p.Bedrooms,
		Bathrooms:    p.Bathrooms,
		City:         p.City,
		District:     p.District,
		Address:      p.Address,
		Latitude:     p.Latitude,
		Longitude:    p.Longitude,
		PropertyType: string(p.PropertyType),
		Status:       string(p.Status),
		IsFeatured:   p.IsFeatured,
		OwnerID:      p.OwnerID,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func propertyFromModel(m PropertyModel) domain.Property {
	images := make([]domain.PropertyImage, 0, len(m.Images))
	for _, img := range m.Images {
		images = append(images, domain.PropertyImage{
			ID:        img.ID,
			URL:       img.URL,
			IsPrimary: img.IsPrimary,
		})
	}
	return domain.Property{
		ID:           m.ID,
		Title:        m.Title,
		Description:  m.Description,
		Price:        m.Price,
		Area:         m.Area,
		Bedrooms:     m.Bedrooms,
		Bathrooms:    m.Bathrooms,
		City:         m.City,
		District:     m.District,
		Address:      m.Address,
		Latitude:     m.Latitude,
		Longitude:    m.Longitude,
		PropertyType: domain.PropertyType(m.PropertyType),
		Status:       domain.PropertyStatus(m.Status),
		IsFeatured:   m.IsFeatured,
		OwnerID:      m.OwnerID,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
		Images:       images,
	}
}

func favoriteFromModel(m FavoriteModel, p domain.Property) domain.Favorite {
	return domain.Favorite{
		ID:        m.ID,
		UserID:    m.UserID,
		Property:  p,
		CreatedAt: m.CreatedAt,
	}
}

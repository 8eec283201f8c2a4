package reporting

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the reporting database.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("reporting: open: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("reporting: pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// Repository runs read-only queries against the reporting schema.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a Repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// VenioSONumber returns the order-entry number for a NetSuite order, or "" when unknown.
func (r *Repository) VenioSONumber(ctx context.Context, netsuiteID string) (string, error) {
	var rows []VenioOrder
	if err := r.db.WithContext(ctx).Where("netsuite_id = ?", netsuiteID).Find(&rows).Error; err != nil {
		return "", fmt.Errorf("reporting: venio order: %w", err)
	}
	if len(rows) == 0 {
		return "", nil
	}
	return rows[0].SONumber, nil
}

// Locations lists all locations ordered by name.
func (r *Repository) Locations(ctx context.Context) ([]Location, error) {
	var rows []Location
	if err := r.db.WithContext(ctx).Order("name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("reporting: locations: %w", err)
	}
	return rows, nil
}

// Conditions lists all sales conditions ordered by name.
func (r *Repository) Conditions(ctx context.Context) ([]Condition, error) {
	var rows []Condition
	if err := r.db.WithContext(ctx).Order("name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("reporting: conditions: %w", err)
	}
	return rows, nil
}

// Items loads the items with the given ids.
func (r *Repository) Items(ctx context.Context, ids []string) ([]Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []Item
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("reporting: items: %w", err)
	}
	return rows, nil
}

package rates

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/packquote-backend/internal/pricing"
	"github.com/angelmondragon/packquote-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/packquote-backend/pkg/db/types"
)

// Repository persists published rate tables.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Get returns nil, nil when version was never published.
func (r *Repository) Get(ctx context.Context, version string) (*pricing.Rates, error) {
	var row models.RateTable
	if err := r.db.WithContext(ctx).Where("version = ?", version).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var rates pricing.Rates
	if err := row.Rates.Decode(&rates); err != nil {
		return nil, err
	}
	rates.Version = row.Version
	return &rates, nil
}

// Publish stores rates under rates.Version, replacing an existing row with the
// same version.
func (r *Repository) Publish(ctx context.Context, rates pricing.Rates, publishedAt time.Time) error {
	if err := rates.Validate(); err != nil {
		return err
	}
	doc, err := dbtypes.NewJSONB(rates)
	if err != nil {
		return err
	}
	row := models.RateTable{Version: rates.Version, Rates: doc, PublishedAt: publishedAt.UTC()}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "version"}},
			DoUpdates: clause.AssignmentColumns([]string{"rates", "published_at"}),
		}).
		Create(&row).Error
}

// Versions lists published versions, newest first.
func (r *Repository) Versions(ctx context.Context) ([]string, error) {
	var versions []string
	err := r.db.WithContext(ctx).
		Model(&models.RateTable{}).
		Order("published_at DESC").
		Pluck("version", &versions).Error
	return versions, err
}

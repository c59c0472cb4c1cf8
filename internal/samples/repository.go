package samples

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/packquote-backend/pkg/db/models"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) CreateHeader(ctx context.Context, header *models.SampleRequest) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(header).Error
}

func (r *Repository) CreateItems(ctx context.Context, items []models.SampleItem) error {
	return r.db.WithContext(ctx).Create(&items).Error
}

// FindByID returns the request with its items, or nil, nil.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.SampleRequest, error) {
	var request models.SampleRequest
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Where("id = ?", id).
		First(&request).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &request, nil
}

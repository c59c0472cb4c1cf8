package quotations

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/packquote-backend/pkg/db/models"
	"github.com/angelmondragon/packquote-backend/pkg/enums"
)

// Repository persists quotation headers and items.
type Repository struct {
	db   *gorm.DB
	lock bool
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx, lock: r.lock}
}

// ForUpdate makes header reads take a row lock.
func (r *Repository) ForUpdate() *Repository {
	return &Repository{db: r.db, lock: true}
}

func (r *Repository) CreateHeader(ctx context.Context, header *models.Quotation) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(header).Error
}

func (r *Repository) CreateItems(ctx context.Context, items []models.QuotationItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

// FindByID returns the header with its items ordered by line, or nil, nil.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Quotation, error) {
	query := r.db.WithContext(ctx)
	if r.lock {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	} else {
		query = query.Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("line_number ASC")
		})
	}
	var quotation models.Quotation
	if err := query.Where("id = ?", id).First(&quotation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &quotation, nil
}

// UpdateStatus moves the header from one status to another. It reports false
// when the row is no longer in from.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.QuotationStatus, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Quotation{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "updated_at": at})
	return res.RowsAffected == 1, res.Error
}

func (r *Repository) SetPDFURL(ctx context.Context, id uuid.UUID, url string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Quotation{}).
		Where("id = ?", id).
		Updates(map[string]any{"pdf_url": url, "updated_at": at})
	return res.RowsAffected == 1, res.Error
}

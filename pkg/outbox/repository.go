package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/packquote-backend/pkg/db/models"
)

var errTxRequired = errors.New("transaction required")

// Repository reads and updates outbox_events rows. Writes always join the
// caller's transaction.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Backlog summarizes rows still waiting for the publisher.
type Backlog struct {
	Pending int64
	Oldest  time.Time
}

// OldestAge is zero for an empty backlog.
func (b Backlog) OldestAge(now time.Time) time.Duration {
	if b.Pending == 0 || b.Oldest.IsZero() {
		return 0
	}
	return max(now.Sub(b.Oldest), 0)
}

func (r *Repository) Insert(tx *gorm.DB, event models.OutboxEvent) error {
	if tx == nil {
		return errTxRequired
	}
	return tx.Create(&event).Error
}

// LockPending locks up to limit unpublished rows, oldest first. Rows held by
// a concurrent publisher are skipped, as are rows parked at maxAttempts.
func (r *Repository) LockPending(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if tx == nil {
		return nil, errTxRequired
	}
	var rows []models.OutboxEvent
	err := pending(tx, maxAttempts).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// Backlog counts publishable rows and finds the oldest one.
func (r *Repository) Backlog(ctx context.Context, maxAttempts int) (Backlog, error) {
	var out Backlog
	db := r.db.WithContext(ctx)
	if err := pending(db.Model(&models.OutboxEvent{}), maxAttempts).Count(&out.Pending).Error; err != nil {
		return Backlog{}, err
	}
	if out.Pending == 0 {
		return out, nil
	}
	var oldest []models.OutboxEvent
	if err := pending(db, maxAttempts).Order("created_at ASC").Limit(1).Find(&oldest).Error; err != nil {
		return Backlog{}, err
	}
	if len(oldest) == 1 {
		out.Oldest = oldest[0].CreatedAt
	}
	return out, nil
}

func (r *Repository) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	return r.update(tx, id, map[string]any{"published_at": time.Now().UTC()})
}

// RecordFailureTx stores the error and spends one attempt.
func (r *Repository) RecordFailureTx(tx *gorm.DB, id uuid.UUID, cause error) error {
	return r.update(tx, id, map[string]any{
		"last_error":    truncateError(cause.Error()),
		"attempt_count": gorm.Expr("attempt_count + 1"),
	})
}

// ParkTx pins attempt_count at maxAttempts so LockPending never returns the
// row again.
func (r *Repository) ParkTx(tx *gorm.DB, id uuid.UUID, cause error, maxAttempts int) error {
	return r.update(tx, id, map[string]any{
		"last_error":    truncateError(cause.Error()),
		"attempt_count": maxAttempts,
	})
}

func (r *Repository) update(tx *gorm.DB, id uuid.UUID, fields map[string]any) error {
	if tx == nil {
		return errTxRequired
	}
	return tx.Model(&models.OutboxEvent{}).Where("id = ?", id).Updates(fields).Error
}

func pending(q *gorm.DB, maxAttempts int) *gorm.DB {
	q = q.Where("published_at IS NULL")
	if maxAttempts > 0 {
		q = q.Where("attempt_count < ?", maxAttempts)
	}
	return q
}

package outbox

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/order-refunds/pkg/db"
	"github.com/angelmondragon/order-refunds/pkg/db/models"
	"github.com/angelmondragon/order-refunds/pkg/enums"
)

// Repository reads and writes outbox rows. Every method takes the
// transaction it runs in; the writer side shares the refund save's tx and
// the publisher side holds row locks for the length of a batch.
type Repository struct{}

func NewRepository() *Repository { return &Repository{} }

func requireTx(tx *gorm.DB) error {
	if tx == nil {
		return errTxRequired
	}
	return nil
}

func (r *Repository) Queue(tx *gorm.DB, row *models.OutboxEvent) error {
	if err := requireTx(tx); err != nil {
		return err
	}
	return tx.Create(row).Error
}

// Queued reports whether a refund already has an event of this type.
func (r *Repository) Queued(tx *gorm.DB, eventType enums.OutboxEventType, refundUID uuid.UUID) (bool, error) {
	if err := requireTx(tx); err != nil {
		return false, err
	}
	var n int64
	err := tx.Model(&models.OutboxEvent{}).
		Where("aggregate_type = ? AND aggregate_id = ? AND event_type = ?", enums.AggregateRefund, refundUID, eventType).
		Count(&n).Error
	return n > 0, err
}

// ClaimBatch locks up to limit unpublished rows, oldest first, skipping rows
// another publisher holds and rows out of attempts.
func (r *Repository) ClaimBatch(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if err := requireTx(tx); err != nil {
		return nil, err
	}
	var rows []models.OutboxEvent
	err := dbpkg.ForUpdateSkipLocked(tx).
		Where("published_at IS NULL AND attempt_count < ?", maxAttempts).
		Order("created_at, id").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) MarkPublished(tx *gorm.DB, id uuid.UUID, at time.Time) error {
	if err := requireTx(tx); err != nil {
		return err
	}
	return update(tx, id, map[string]any{"published_at": at.UTC()})
}

// RecordFailure bumps the attempt count so the row is retried later.
func (r *Repository) RecordFailure(tx *gorm.DB, id uuid.UUID, cause error) error {
	if err := requireTx(tx); err != nil {
		return err
	}
	return update(tx, id, map[string]any{
		"attempt_count": gorm.Expr("attempt_count + 1"),
		"last_error":    causeText(cause),
	})
}

// Retire takes the row out of rotation without publishing it. The row keeps
// its payload for inspection next to its DLQ entry.
func (r *Repository) Retire(tx *gorm.DB, id uuid.UUID, cause error, maxAttempts int) error {
	if err := requireTx(tx); err != nil {
		return err
	}
	return update(tx, id, map[string]any{
		"attempt_count": maxAttempts,
		"last_error":    causeText(cause),
	})
}

func update(tx *gorm.DB, id uuid.UUID, values map[string]any) error {
	res := tx.Model(&models.OutboxEvent{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.New("outbox row " + id.String() + " not found")
	}
	return nil
}

func causeText(cause error) string {
	if cause == nil {
		return "unknown"
	}
	return cause.Error()
}

package outbox

import (
	"errors"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/angelmondragon/order-refunds/pkg/db/models"
	"github.com/angelmondragon/order-refunds/pkg/enums"
)

const maxDLQErrorLen = 1024

// DeadLetters parks events the publisher will never deliver. Parked rows are
// read by operators straight from the table.
type DeadLetters struct{}

func NewDeadLetters() *DeadLetters { return &DeadLetters{} }

// NewDLQEntry copies row into a dead letter. cause may be nil.
func NewDLQEntry(row models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, failedAt time.Time) models.OutboxDLQ {
	entry := models.OutboxDLQ{
		EventID:       row.ID,
		EventType:     row.EventType,
		AggregateType: row.AggregateType,
		AggregateID:   row.AggregateID,
		Payload:       row.Payload,
		ErrorReason:   reason,
		AttemptCount:  row.AttemptCount,
		FailedAt:      failedAt.UTC(),
	}
	if cause != nil {
		msg := clipUTF8(cause.Error(), maxDLQErrorLen)
		entry.ErrorMessage = &msg
	}
	return entry
}

func (d *DeadLetters) Park(tx *gorm.DB, entry models.OutboxDLQ) error {
	if err := requireTx(tx); err != nil {
		return err
	}
	if !entry.ErrorReason.IsValid() {
		return errors.New("dead letter needs a known error reason")
	}
	if entry.ErrorMessage != nil {
		msg := clipUTF8(*entry.ErrorMessage, maxDLQErrorLen)
		entry.ErrorMessage = &msg
	}
	return tx.Create(&entry).Error
}

// clipUTF8 shortens s to at most n bytes without splitting a rune.
func clipUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/angelmondragon/order-refunds/pkg/db/types"
)

// Refund is the durable record of a refund. Computed totals are never stored;
// they are derived from the order and LineItemsData on every read.
type Refund struct {
	ID                  int64                      `gorm:"column:id;primaryKey;autoIncrement"`
	UID                 uuid.UUID                  `gorm:"column:uid;type:uuid;not null;uniqueIndex"`
	TransactionID       int64                      `gorm:"column:transaction_id;not null;uniqueIndex"`
	Transaction         *Transaction               `gorm:"foreignKey:TransactionID;constraint:OnDelete:CASCADE"`
	Reference           string                     `gorm:"column:reference;not null;uniqueIndex"`
	LineItemsData       dbtypes.LineItemSelections `gorm:"column:line_items_data;type:jsonb;not null"`
	IncludesShipping    bool                       `gorm:"column:includes_shipping;not null;default:false"`
	RestockedQuantities dbtypes.Quantities         `gorm:"column:restocked_quantities;type:jsonb;not null"`
	IsRevisable         bool                       `gorm:"column:is_revisable;not null;default:false"`
	Note                string                     `gorm:"column:note;not null;default:''"`
	DateCreated         time.Time                  `gorm:"column:date_created;autoCreateTime"`
	DateUpdated         time.Time                  `gorm:"column:date_updated;autoUpdateTime"`
}

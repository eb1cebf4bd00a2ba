package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// The uuid keys are generated client-side so the same models work on sqlite.

func (e *OutboxEvent) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

func (d *OutboxDLQ) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

func (l *LedgerEvent) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

func (r *Refund) BeforeCreate(*gorm.DB) error {
	if r.UID == uuid.Nil {
		r.UID = uuid.New()
	}
	return nil
}

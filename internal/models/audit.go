package models

import (
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	ID         uuid.UUID `json:"id"`
	Actor      string    `json:"actor"`
	Operation  string    `json:"operation"`
	EntityType string    `json:"entity_type"` // market/offer/platform/name
	EntityID   *uint64   `json:"entity_id,omitempty"`
	Meta       any       `json:"meta,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

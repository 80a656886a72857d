package domain

import "time"

// Entity kinds referenced by audit entries and task records.
const (
	EntidadExhorto       = "exhorto"
	EntidadArchivo       = "archivo"
	EntidadActualizacion = "actualizacion"
	EntidadPromocion     = "promocion"
	EntidadRespuesta     = "respuesta"
)

// AuditEntry is one append-only record of the engine's legal trail. Every
// state transition, every outbound attempt (success or failure, with the
// full response) and every inbound receipt produces exactly one entry.
// Entries are never updated or deleted.
type AuditEntry struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Timestamp time.Time `json:"timestamp" gorm:"not null;index:idx_auditoria_tiempo"`

	// Actor is the authenticated principal or "sistema" for background work.
	Actor string `json:"actor" gorm:"type:varchar(256);not null"`

	EntityKind string `json:"entity_kind" gorm:"type:varchar(32);not null;index:idx_auditoria_entidad,priority:1"`
	EntityID   string `json:"entity_id" gorm:"type:char(36);not null;index:idx_auditoria_entidad,priority:2"`

	Event     string `json:"event" gorm:"type:varchar(64);not null"`
	FromState string `json:"from_state" gorm:"type:varchar(32)"`
	ToState   string `json:"to_state" gorm:"type:varchar(32)"`

	// Detail carries the outgoing payload, received acuse or failure text.
	Detail string `json:"detail" gorm:"type:text"`
}

// TableName returns the database table name for AuditEntry.
func (AuditEntry) TableName() string { return "exh_auditoria" }

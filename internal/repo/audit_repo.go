package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/justicia-digital/exhorto-interchange/internal/domain"
)

// AppendAudit inserts one immutable audit entry. The timestamp defaults to
// now (UTC) when unset.
func AppendAudit(ctx context.Context, db *gorm.DB, entry *domain.AuditEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(entry).Error
}

// ListAuditByEntity returns the trail of one entity in chronological order.
func ListAuditByEntity(ctx context.Context, db *gorm.DB, entityKind, entityID string) ([]domain.AuditEntry, error) {
	var out []domain.AuditEntry
	err := db.WithContext(ctx).
		Where("entity_kind = ? AND entity_id = ?", entityKind, entityID).
		Order("timestamp asc, id asc").
		Find(&out).Error
	return out, err
}

// ListAuditByRange returns entries within [desde, hasta), newest first,
// capped at limit.
func ListAuditByRange(ctx context.Context, db *gorm.DB, desde, hasta time.Time, limit int) ([]domain.AuditEntry, error) {
	var out []domain.AuditEntry
	err := db.WithContext(ctx).
		Where("timestamp >= ? AND timestamp < ?", desde, hasta).
		Order("timestamp desc, id desc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

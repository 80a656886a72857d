package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/justicia-digital/exhorto-interchange/internal/domain"
)

// EnqueueTask creates a task record for (command, entityID), unless a
// pending record for the same pair already exists, in which case the
// existing record is returned and created is false. The check and insert run
// in one transaction so concurrent enqueues collapse to a single task.
func EnqueueTask(ctx context.Context, db *gorm.DB, command, entityID string) (*domain.TaskRecord, bool, error) {
	var t domain.TaskRecord
	created := false
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("command = ? AND entity_id = ? AND estado IN ?",
			command, entityID, []string{domain.TareaEncolada, domain.TareaCorriendo}).
			First(&t).Error
		if err == nil {
			return nil
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}
		t = domain.TaskRecord{
			ID:        uuid.NewString(),
			Command:   command,
			EntityID:  entityID,
			Estado:    domain.TareaEncolada,
			CreatedAt: time.Now().UTC(),
		}
		created = true
		return tx.Create(&t).Error
	})
	if err != nil {
		return nil, false, err
	}
	return &t, created, nil
}

// GetTask fetches a task record by id.
func GetTask(ctx context.Context, db *gorm.DB, id string) (*domain.TaskRecord, error) {
	var t domain.TaskRecord
	if err := db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// StartTask marks an enqueued task as running. Returns ErrStale when the
// task was cancelled or claimed meanwhile.
func StartTask(ctx context.Context, db *gorm.DB, id string) error {
	now := time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.TaskRecord{}).
		Where("id = ? AND estado = ?", id, domain.TareaEncolada).
		Updates(map[string]any{
			"estado":     domain.TareaCorriendo,
			"started_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStale
	}
	return nil
}

// UpdateTaskProgress records progress (0..100) and a human-readable message.
func UpdateTaskProgress(ctx context.Context, db *gorm.DB, id string, progreso int, mensaje string) error {
	return db.WithContext(ctx).
		Model(&domain.TaskRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"progreso": progreso,
			"mensaje":  mensaje,
		}).Error
}

// FinishTask closes a task in a terminal estado (TERMINADA, FALLIDA or
// CANCELADA) with its final message.
func FinishTask(ctx context.Context, db *gorm.DB, id, estado, mensaje string) error {
	now := time.Now().UTC()
	return db.WithContext(ctx).
		Model(&domain.TaskRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"estado":      estado,
			"mensaje":     mensaje,
			"finished_at": now,
		}).Error
}

// CancelTask requests cancellation of a still-pending task. Running jobs
// observe the estado between steps and stop at the next checkpoint.
func CancelTask(ctx context.Context, db *gorm.DB, id string) error {
	now := time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.TaskRecord{}).
		Where("id = ? AND estado IN ?", id, []string{domain.TareaEncolada, domain.TareaCorriendo}).
		Updates(map[string]any{
			"estado":      domain.TareaCancelada,
			"finished_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStale
	}
	return nil
}

// IsTaskCancelled reports whether the task has been moved to CANCELADA;
// long jobs poll this between steps.
func IsTaskCancelled(ctx context.Context, db *gorm.DB, id string) (bool, error) {
	var t domain.TaskRecord
	if err := db.WithContext(ctx).Select("estado").First(&t, "id = ?", id).Error; err != nil {
		return false, err
	}
	return t.Estado == domain.TareaCancelada, nil
}

// ListEnqueuedTasks returns up to limit ENCOLADA tasks, oldest first; the
// runner's dispatcher claims them one by one with StartTask.
func ListEnqueuedTasks(ctx context.Context, db *gorm.DB, limit int) ([]domain.TaskRecord, error) {
	var out []domain.TaskRecord
	err := db.WithContext(ctx).
		Where("estado = ?", domain.TareaEncolada).
		Order("created_at asc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListTasksPage returns a page of task records, newest first, optionally
// filtered by command.
func ListTasksPage(ctx context.Context, db *gorm.DB, command string, offset, limit int) ([]domain.TaskRecord, error) {
	var out []domain.TaskRecord
	q := db.WithContext(ctx)
	if command != "" {
		q = q.Where("command = ?", command)
	}
	err := q.Order("created_at desc").Offset(offset).Limit(limit).Find(&out).Error
	return out, err
}

// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Exhorto
// aggregate.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When an exhorto is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - State changes use optimistic concurrency: the UPDATE is guarded by the
//     expected current estado and ErrStale is returned when no row matched,
//     which serializes concurrent mutations of the same exhorto.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/justicia-digital/exhorto-interchange/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrStale is returned when an optimistic state update matched no row:
// the exhorto was mutated concurrently or is not in the expected estado.
var ErrStale = errors.New("stale state")

// CreateExhorto inserts the exhorto together with its partes, archivos and
// videos in a single transaction. IDs are assigned here when absent.
func CreateExhorto(ctx context.Context, db *gorm.DB, e *domain.Exhorto) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	for i := range e.Partes {
		if e.Partes[i].ID == "" {
			e.Partes[i].ID = uuid.NewString()
		}
		e.Partes[i].ExhortoID = e.ID
	}
	for i := range e.Archivos {
		if e.Archivos[i].ID == "" {
			e.Archivos[i].ID = uuid.NewString()
		}
		e.Archivos[i].ExhortoID = e.ID
	}
	for i := range e.Videos {
		if e.Videos[i].ID == "" {
			e.Videos[i].ID = uuid.NewString()
		}
		e.Videos[i].ExhortoID = e.ID
	}
	e.CreatedAt = time.Now().UTC()
	return db.WithContext(ctx).Create(e).Error
}

// GetExhorto fetches an exhorto by internal id with partes and archivos
// preloaded, plus the origin municipio/estado needed for sentido inference.
func GetExhorto(ctx context.Context, db *gorm.DB, id string) (*domain.Exhorto, error) {
	var e domain.Exhorto
	err := db.WithContext(ctx).
		Preload("Partes").
		Preload("Archivos").
		Preload("Videos").
		Preload("MunicipioOrigen").
		Preload("MunicipioOrigen.Estado").
		First(&e, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// GetExhortoByOrigenID fetches an exhorto by the origin-assigned id.
func GetExhortoByOrigenID(ctx context.Context, db *gorm.DB, origenID string) (*domain.Exhorto, error) {
	var e domain.Exhorto
	err := db.WithContext(ctx).
		Preload("Partes").
		Preload("Archivos").
		Preload("MunicipioOrigen").
		Preload("MunicipioOrigen.Estado").
		First(&e, "exhorto_origen_id = ?", origenID).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// GetExhortoByFolioSeguimiento fetches an exhorto by the destination-assigned
// folio.
func GetExhortoByFolioSeguimiento(ctx context.Context, db *gorm.DB, folio string) (*domain.Exhorto, error) {
	var e domain.Exhorto
	err := db.WithContext(ctx).
		Preload("Partes").
		Preload("Archivos").
		Preload("MunicipioOrigen").
		Preload("MunicipioOrigen.Estado").
		First(&e, "folio_seguimiento = ?", folio).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// CountExhortos returns the number of exhortos matching the optional estado
// and remitente filters.
func CountExhortos(ctx context.Context, db *gorm.DB, estado, remitente string) (int64, error) {
	var total int64
	q := db.WithContext(ctx).Model(&domain.Exhorto{})
	if estado != "" {
		q = q.Where("estado = ?", estado)
	}
	if remitente != "" {
		q = q.Where("remitente = ?", remitente)
	}
	err := q.Count(&total).Error
	return total, err
}

// ListExhortosPage returns a page of exhortos matching the optional filters,
// most recent first. Use CountExhortos for pagination metadata.
func ListExhortosPage(ctx context.Context, db *gorm.DB, estado, remitente string, offset, limit int) ([]domain.Exhorto, error) {
	var out []domain.Exhorto
	q := db.WithContext(ctx)
	if estado != "" {
		q = q.Where("estado = ?", estado)
	}
	if remitente != "" {
		q = q.Where("remitente = ?", remitente)
	}
	err := q.Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListExhortosPorEnviar returns the ids of exhortos in POR ENVIAR whose
// inter-attempt delay has elapsed; used by the periodic resend scan.
func ListExhortosPorEnviar(ctx context.Context, db *gorm.DB, now time.Time, retryDelay time.Duration) ([]string, error) {
	var ids []string
	cutoff := now.Add(-retryDelay)
	err := db.WithContext(ctx).Model(&domain.Exhorto{}).
		Where("estado = ?", domain.EstadoPorEnviar).
		Where("por_enviar_tiempo_anterior IS NULL OR por_enviar_tiempo_anterior <= ?", cutoff).
		Order("created_at asc").
		Pluck("id", &ids).Error
	return ids, err
}

// UpdateExhortoEstado moves an exhorto from one estado to another, applying
// extra column updates atomically. The prior estado is kept in
// estado_anterior. Returns ErrStale when the exhorto is no longer in `from`.
func UpdateExhortoEstado(ctx context.Context, db *gorm.DB, id, from, to string, extra map[string]any) error {
	updates := map[string]any{
		"estado":          to,
		"estado_anterior": from,
	}
	for k, v := range extra {
		updates[k] = v
	}
	res := db.WithContext(ctx).
		Model(&domain.Exhorto{}).
		Where("id = ? AND estado = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStale
	}
	return nil
}

// RegisterSendFailure increments the attempts counter and stamps the last
// attempt time and failure kind without leaving POR ENVIAR. Returns the new
// attempt count.
func RegisterSendFailure(ctx context.Context, db *gorm.DB, id string, at time.Time, kind string) (int, error) {
	res := db.WithContext(ctx).
		Model(&domain.Exhorto{}).
		Where("id = ? AND estado = ?", id, domain.EstadoPorEnviar).
		Updates(map[string]any{
			"por_enviar_intentos":        gorm.Expr("por_enviar_intentos + 1"),
			"por_enviar_tiempo_anterior": at,
			"por_enviar_error_anterior":  kind,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, ErrStale
	}
	var e domain.Exhorto
	if err := db.WithContext(ctx).Select("por_enviar_intentos").First(&e, "id = ?", id).Error; err != nil {
		return 0, err
	}
	return e.PorEnviarIntentos, nil
}

// GetArchivoPendienteDeExhorto finds the announced-but-not-yet-received
// archivo of the exhorto itself by filename. Respuesta and promoción archivos
// also carry the exhorto_id, so the nullable parent columns keep them out of
// this scope.
func GetArchivoPendienteDeExhorto(ctx context.Context, db *gorm.DB, exhortoID, nombreArchivo string) (*domain.Archivo, error) {
	var a domain.Archivo
	err := db.WithContext(ctx).
		Where("exhorto_id = ? AND respuesta_id IS NULL AND promocion_id IS NULL AND nombre_archivo = ? AND estado = ?",
			exhortoID, nombreArchivo, domain.EstadoPendiente).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetArchivoPendienteDeRespuesta finds the pending archivo of a respuesta.
func GetArchivoPendienteDeRespuesta(ctx context.Context, db *gorm.DB, respuestaID, nombreArchivo string) (*domain.Archivo, error) {
	var a domain.Archivo
	err := db.WithContext(ctx).
		Where("respuesta_id = ? AND nombre_archivo = ? AND estado = ?",
			respuestaID, nombreArchivo, domain.EstadoPendiente).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetArchivoPendienteDePromocion finds the pending archivo of a promoción.
func GetArchivoPendienteDePromocion(ctx context.Context, db *gorm.DB, promocionID, nombreArchivo string) (*domain.Archivo, error) {
	var a domain.Archivo
	err := db.WithContext(ctx).
		Where("promocion_id = ? AND nombre_archivo = ? AND estado = ?",
			promocionID, nombreArchivo, domain.EstadoPendiente).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// MarkArchivoRecibido records a verified upload: blob URL, size, receipt
// time, and the RECIBIDO estado.
func MarkArchivoRecibido(ctx context.Context, db *gorm.DB, id, blobURL string, size int64, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Archivo{}).
		Where("id = ? AND estado = ?", id, domain.EstadoPendiente).
		Updates(map[string]any{
			"url":                  blobURL,
			"tamano_bytes":         size,
			"fecha_hora_recepcion": at,
			"estado":               domain.EstadoRecibido,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStale
	}
	return nil
}

// CountArchivosPendientesDeExhorto returns how many of the exhorto's own
// announced archivos have not yet received their bytes.
func CountArchivosPendientesDeExhorto(ctx context.Context, db *gorm.DB, exhortoID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Archivo{}).
		Where("exhorto_id = ? AND respuesta_id IS NULL AND promocion_id IS NULL AND estado = ?",
			exhortoID, domain.EstadoPendiente).
		Count(&n).Error
	return n, err
}

// CountArchivosPendientesDeRespuesta is the same count scoped to a respuesta.
func CountArchivosPendientesDeRespuesta(ctx context.Context, db *gorm.DB, respuestaID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Archivo{}).
		Where("respuesta_id = ? AND estado = ?", respuestaID, domain.EstadoPendiente).
		Count(&n).Error
	return n, err
}

// CountArchivosPendientesDePromocion is the same count scoped to a promoción.
func CountArchivosPendientesDePromocion(ctx context.Context, db *gorm.DB, promocionID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Archivo{}).
		Where("promocion_id = ? AND estado = ?", promocionID, domain.EstadoPendiente).
		Count(&n).Error
	return n, err
}

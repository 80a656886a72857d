package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/justicia-digital/exhorto-interchange/internal/domain"
)

// CreateActualizacion inserts an actualización under its exhorto.
func CreateActualizacion(ctx context.Context, db *gorm.DB, a *domain.Actualizacion) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt = time.Now().UTC()
	return db.WithContext(ctx).Create(a).Error
}

// GetActualizacion fetches an actualización by id.
func GetActualizacion(ctx context.Context, db *gorm.DB, id string) (*domain.Actualizacion, error) {
	var a domain.Actualizacion
	if err := db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// GetActualizacionByOrigenID finds an actualización of an exhorto by the
// sender-assigned id; used for duplicate detection on receipt.
func GetActualizacionByOrigenID(ctx context.Context, db *gorm.DB, exhortoID, origenID string) (*domain.Actualizacion, error) {
	var a domain.Actualizacion
	err := db.WithContext(ctx).
		First(&a, "exhorto_id = ? AND actualizacion_origen_id = ?", exhortoID, origenID).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListActualizaciones returns the actualizaciones of an exhorto, oldest first.
func ListActualizaciones(ctx context.Context, db *gorm.DB, exhortoID string) ([]domain.Actualizacion, error) {
	var out []domain.Actualizacion
	err := db.WithContext(ctx).
		Where("exhorto_id = ?", exhortoID).
		Order("fecha_hora asc").
		Find(&out).Error
	return out, err
}

// UpdateActualizacionEstado moves an actualización between filing estados
// with the same optimistic guard as exhortos.
func UpdateActualizacionEstado(ctx context.Context, db *gorm.DB, id, from, to string) error {
	res := db.WithContext(ctx).
		Model(&domain.Actualizacion{}).
		Where("id = ? AND estado = ?", id, from).
		Update("estado", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStale
	}
	return nil
}

// CreatePromocion inserts a promoción together with its promoventes and
// archivos in a single transaction.
func CreatePromocion(ctx context.Context, db *gorm.DB, p *domain.Promocion) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	for i := range p.Promoventes {
		if p.Promoventes[i].ID == "" {
			p.Promoventes[i].ID = uuid.NewString()
		}
		p.Promoventes[i].ExhortoID = p.ExhortoID
		p.Promoventes[i].PromocionID = &p.ID
		p.Promoventes[i].EsPromovente = true
	}
	for i := range p.Archivos {
		if p.Archivos[i].ID == "" {
			p.Archivos[i].ID = uuid.NewString()
		}
		p.Archivos[i].ExhortoID = p.ExhortoID
		p.Archivos[i].PromocionID = &p.ID
	}
	p.CreatedAt = time.Now().UTC()
	return db.WithContext(ctx).Create(p).Error
}

// GetPromocion fetches a promoción with promoventes and archivos preloaded.
func GetPromocion(ctx context.Context, db *gorm.DB, id string) (*domain.Promocion, error) {
	var p domain.Promocion
	err := db.WithContext(ctx).
		Preload("Promoventes").
		Preload("Archivos").
		First(&p, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPromocionByFolioOrigen finds a promoción of an exhorto by the
// sender-assigned folio; used for duplicate detection on receipt.
func GetPromocionByFolioOrigen(ctx context.Context, db *gorm.DB, exhortoID, folioOrigen string) (*domain.Promocion, error) {
	var p domain.Promocion
	err := db.WithContext(ctx).
		Preload("Archivos").
		First(&p, "exhorto_id = ? AND folio_origen_promocion = ?", exhortoID, folioOrigen).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPromociones returns the promociones of an exhorto, newest first.
func ListPromociones(ctx context.Context, db *gorm.DB, exhortoID string) ([]domain.Promocion, error) {
	var out []domain.Promocion
	err := db.WithContext(ctx).
		Preload("Archivos").
		Where("exhorto_id = ?", exhortoID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// UpdatePromocionEstado moves a promoción between filing estados, applying
// extra column updates (folio recibido, fecha de recepción) atomically.
func UpdatePromocionEstado(ctx context.Context, db *gorm.DB, id, from, to string, extra map[string]any) error {
	updates := map[string]any{"estado": to}
	for k, v := range extra {
		updates[k] = v
	}
	res := db.WithContext(ctx).
		Model(&domain.Promocion{}).
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

// CreateRespuesta inserts a respuesta together with its archivos and videos
// in a single transaction. Respuesta archivos are flagged es_respuesta so
// upload correlation can tell them apart from the exhorto's own archivos.
func CreateRespuesta(ctx context.Context, db *gorm.DB, r *domain.Respuesta) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	for i := range r.Archivos {
		if r.Archivos[i].ID == "" {
			r.Archivos[i].ID = uuid.NewString()
		}
		r.Archivos[i].ExhortoID = r.ExhortoID
		r.Archivos[i].RespuestaID = &r.ID
		r.Archivos[i].EsRespuesta = true
	}
	for i := range r.Videos {
		if r.Videos[i].ID == "" {
			r.Videos[i].ID = uuid.NewString()
		}
		r.Videos[i].ExhortoID = r.ExhortoID
		r.Videos[i].RespuestaID = &r.ID
	}
	r.CreatedAt = time.Now().UTC()
	return db.WithContext(ctx).Create(r).Error
}

// GetRespuesta fetches a respuesta with archivos and videos preloaded.
func GetRespuesta(ctx context.Context, db *gorm.DB, id string) (*domain.Respuesta, error) {
	var r domain.Respuesta
	err := db.WithContext(ctx).
		Preload("Archivos").
		Preload("Videos").
		First(&r, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRespuestaByOrigenID finds a respuesta of an exhorto by the
// sender-assigned id; used for duplicate detection on receipt.
func GetRespuestaByOrigenID(ctx context.Context, db *gorm.DB, exhortoID, origenID string) (*domain.Respuesta, error) {
	var r domain.Respuesta
	err := db.WithContext(ctx).
		Preload("Archivos").
		First(&r, "exhorto_id = ? AND respuesta_origen_id = ?", exhortoID, origenID).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRespuestas returns the respuestas of an exhorto, newest first.
func ListRespuestas(ctx context.Context, db *gorm.DB, exhortoID string) ([]domain.Respuesta, error) {
	var out []domain.Respuesta
	err := db.WithContext(ctx).
		Preload("Archivos").
		Preload("Videos").
		Where("exhorto_id = ?", exhortoID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// UpdateRespuestaEstado moves a respuesta between filing estados, applying
// extra column updates atomically.
func UpdateRespuestaEstado(ctx context.Context, db *gorm.DB, id, from, to string, extra map[string]any) error {
	updates := map[string]any{"estado": to}
	for k, v := range extra {
		updates[k] = v
	}
	res := db.WithContext(ctx).
		Model(&domain.Respuesta{}).
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

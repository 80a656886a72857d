package repo

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/justicia-digital/exhorto-interchange/internal/domain"
)

// GetEstadoByClave fetches an estado by its two-digit INEGI clave.
func GetEstadoByClave(ctx context.Context, db *gorm.DB, clave string) (*domain.Estado, error) {
	var e domain.Estado
	if err := db.WithContext(ctx).First(&e, "clave = ?", clave).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// GetMunicipioByClave fetches a municipio of an estado by its three-digit
// INEGI clave.
func GetMunicipioByClave(ctx context.Context, db *gorm.DB, estadoID uint, clave string) (*domain.Municipio, error) {
	var m domain.Municipio
	err := db.WithContext(ctx).
		Preload("Estado").
		First(&m, "estado_id = ? AND clave = ?", estadoID, clave).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetMunicipio fetches a municipio by internal id with its estado preloaded.
func GetMunicipio(ctx context.Context, db *gorm.DB, id uint) (*domain.Municipio, error) {
	var m domain.Municipio
	if err := db.WithContext(ctx).Preload("Estado").First(&m, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// ClaveMunicipio formats an INEGI municipio clave as the wire's zero-padded
// three-digit string.
func ClaveMunicipio(clave int) string {
	return fmt.Sprintf("%03d", clave)
}

// GetMateriaByClave fetches a materia supported by this peer.
func GetMateriaByClave(ctx context.Context, db *gorm.DB, clave string) (*domain.Materia, error) {
	var m domain.Materia
	if err := db.WithContext(ctx).First(&m, "clave = ?", clave).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMaterias returns every materia this peer supports, ordered by clave.
func ListMaterias(ctx context.Context, db *gorm.DB) ([]domain.Materia, error) {
	var out []domain.Materia
	err := db.WithContext(ctx).Order("clave asc").Find(&out).Error
	return out, err
}

// GetTipoDiligenciaByClave fetches a tipo de diligencia by clave.
func GetTipoDiligenciaByClave(ctx context.Context, db *gorm.DB, clave string) (*domain.TipoDiligencia, error) {
	var t domain.TipoDiligencia
	if err := db.WithContext(ctx).First(&t, "clave = ?", clave).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// GetPeerByEstadoClave fetches the registered counterpart judiciary of an
// estado, identified by the estado's INEGI clave.
func GetPeerByEstadoClave(ctx context.Context, db *gorm.DB, estadoClave string) (*domain.Peer, error) {
	var p domain.Peer
	err := db.WithContext(ctx).
		Preload("Estado").
		Joins("JOIN estados ON estados.id = exh_externos.estado_id").
		Where("estados.clave = ?", estadoClave).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPeerByAPIKey fetches the peer that presents the given credential; used
// by the inbound authentication middleware. Peers with an empty key never
// match.
func GetPeerByAPIKey(ctx context.Context, db *gorm.DB, apiKey string) (*domain.Peer, error) {
	if apiKey == "" {
		return nil, ErrNotFound
	}
	var p domain.Peer
	err := db.WithContext(ctx).
		Preload("Estado").
		First(&p, "api_key = ?", apiKey).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdatePeerMaterias stores the raw materias JSON from the last handshake.
func UpdatePeerMaterias(ctx context.Context, db *gorm.DB, peerID uint, materiasJSON string) error {
	return db.WithContext(ctx).
		Model(&domain.Peer{}).
		Where("id = ?", peerID).
		Update("materias", materiasJSON).Error
}

// SeedEstados upserts catalog estados by clave; used at bootstrap.
func SeedEstados(ctx context.Context, db *gorm.DB, estados []domain.Estado) error {
	if len(estados) == 0 {
		return nil
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "clave"}},
			DoUpdates: clause.AssignmentColumns([]string{"nombre"}),
		}).
		Create(&estados).Error
}

// SeedMaterias upserts the materias this peer advertises.
func SeedMaterias(ctx context.Context, db *gorm.DB, materias []domain.Materia) error {
	if len(materias) == 0 {
		return nil
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "clave"}},
			DoUpdates: clause.AssignmentColumns([]string{"nombre", "descripcion"}),
		}).
		Create(&materias).Error
}

// Package domain defines the persistence models of the interchange engine.
// This file holds the minimal lookup catalogs (estados, municipios with
// INEGI claves, materias, tipos de diligencia) and the peer registry.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Estado is a federal entity, keyed by its two-digit INEGI clave on the wire.
type Estado struct {
	ID     uint   `json:"id" gorm:"primaryKey"`
	Clave  string `json:"clave" gorm:"type:char(2);not null;uniqueIndex"`
	Nombre string `json:"nombre" gorm:"type:varchar(256);not null"`
}

// TableName returns the database table name for Estado.
func (Estado) TableName() string { return "estados" }

// Municipio belongs to an estado; its three-digit INEGI clave is what
// travels on the wire, never the internal id.
type Municipio struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	EstadoID uint   `json:"estado_id" gorm:"not null;index:idx_municipios_estado"`
	Estado   Estado `json:"-" gorm:"foreignKey:EstadoID;references:ID"`
	Clave    string `json:"clave" gorm:"type:char(3);not null;index"`
	Nombre   string `json:"nombre" gorm:"type:varchar(256);not null"`
}

// TableName returns the database table name for Municipio.
func (Municipio) TableName() string { return "municipios" }

// Materia is a legal subject-matter clave supported by this peer.
type Materia struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	Clave       string `json:"clave" gorm:"type:varchar(32);not null;uniqueIndex"`
	Nombre      string `json:"nombre" gorm:"type:varchar(256);not null"`
	Descripcion string `json:"descripcion" gorm:"type:varchar(1024)"`
}

// TableName returns the database table name for Materia.
func (Materia) TableName() string { return "materias" }

// TipoDiligencia backs the tipo_diligencia_id field of an exhorto.
type TipoDiligencia struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	Clave       string `json:"clave" gorm:"type:varchar(32);not null;uniqueIndex"`
	Descripcion string `json:"descripcion" gorm:"type:varchar(256);not null"`
}

// TableName returns the database table name for TipoDiligencia.
func (TipoDiligencia) TableName() string { return "exh_tipos_diligencias" }

// Peer is a registry entry for a counterpart judiciary: one row per estado,
// statically provisioned with the API key this peer must present and the
// endpoints of the remote inbound handler. Materias caches the remote
// peer's supported materias as raw JSON from the last handshake.
type Peer struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	EstadoID uint   `json:"estado_id" gorm:"not null;uniqueIndex"`
	Estado   Estado `json:"-" gorm:"foreignKey:EstadoID;references:ID"`

	Clave       string `json:"clave" gorm:"type:varchar(16);not null;uniqueIndex"`
	Descripcion string `json:"descripcion" gorm:"type:varchar(256);not null"`

	// APIKey is the opaque credential presented to (and expected from)
	// this peer in the X-Api-Key header.
	APIKey string `json:"-" gorm:"type:varchar(128)"`

	Materias string `json:"materias" gorm:"type:text"`

	EndpointConsultarMaterias              string `json:"endpoint_consultar_materias" gorm:"type:varchar(256)"`
	EndpointRecibirExhorto                 string `json:"endpoint_recibir_exhorto" gorm:"type:varchar(256)"`
	EndpointRecibirExhortoArchivo          string `json:"endpoint_recibir_exhorto_archivo" gorm:"type:varchar(256)"`
	EndpointConsultarExhorto               string `json:"endpoint_consultar_exhorto" gorm:"type:varchar(256)"`
	EndpointRecibirRespuestaExhorto        string `json:"endpoint_recibir_respuesta_exhorto" gorm:"type:varchar(256)"`
	EndpointRecibirRespuestaExhortoArchivo string `json:"endpoint_recibir_respuesta_exhorto_archivo" gorm:"type:varchar(256)"`
	EndpointActualizarExhorto              string `json:"endpoint_actualizar_exhorto" gorm:"type:varchar(256)"`
	EndpointRecibirPromocion               string `json:"endpoint_recibir_promocion" gorm:"type:varchar(256)"`
	EndpointRecibirPromocionArchivo        string `json:"endpoint_recibir_promocion_archivo" gorm:"type:varchar(256)"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for Peer.
func (Peer) TableName() string { return "exh_externos" }

// Package domain defines the persistence models of the interchange engine:
// the exhorto aggregate with its partes, archivos, videos, actualizaciones,
// promociones and respuestas, the minimal catalogs, the peer registry, the
// audit log and the background task records. These types are mapped with
// GORM and form the core data layer of the application.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Estados of an exhorto. The origin side walks PENDIENTE -> POR ENVIAR ->
// RECIBIDO CON EXITO -> RESPONDIDO -> ARCHIVADO; the destination side walks
// RECIBIDO -> TRANSFIRIENDO -> PROCESANDO -> DILIGENCIADO -> CONTESTADO.
const (
	EstadoPendiente        = "PENDIENTE"
	EstadoPorEnviar        = "POR ENVIAR"
	EstadoRecibidoConExito = "RECIBIDO CON EXITO"
	EstadoRespondido       = "RESPONDIDO"
	EstadoArchivado        = "ARCHIVADO"
	EstadoRecibido         = "RECIBIDO"
	EstadoTransfiriendo    = "TRANSFIRIENDO"
	EstadoProcesando       = "PROCESANDO"
	EstadoDiligenciado     = "DILIGENCIADO"
	EstadoContestado       = "CONTESTADO"
	EstadoRechazado        = "RECHAZADO"
	EstadoCancelado        = "CANCELADO"
	EstadoIntentosAgotados = "INTENTOS AGOTADOS"

	// Estados of child filings (archivos, actualizaciones, promociones).
	EstadoEnviado = "ENVIADO"
)

// Remitente of an exhorto or child filing, relative to this peer.
const (
	RemitenteInterno = "INTERNO"
	RemitenteExterno = "EXTERNO"
)

// Tipos de documento of an archivo.
const (
	TipoDocumentoOficio  = 1
	TipoDocumentoAcuerdo = 2
	TipoDocumentoAnexo   = 3
)

// Tipos de parte.
const (
	TipoParteNoDefinido = 0
	TipoPartePromovente = 1
	TipoParteDemandado  = 2
)

// Tipos de actualización.
const (
	ActualizacionAreaTurnado   = "AreaTurnado"
	ActualizacionNumeroExhorto = "NumeroExhorto"
)

// Tipos de diligenciado of a respuesta.
const (
	DiligenciadoNo      = 0
	DiligenciadoParcial = 1
	DiligenciadoTotal   = 2
)

// Exhorto is the root aggregate: a legally binding request issued by an
// origin judiciary to a destination judiciary.
//
// Correlation keys:
//   - ExhortoOrigenID: assigned by the origin peer, immutable, unique per origin.
//   - FolioSeguimiento: assigned exactly once by the destination on receipt.
//
// Remote records are never referenced by internal id; both peers correlate
// exclusively through these two keys.
type Exhorto struct {
	ID string `json:"id" gorm:"type:char(36);primaryKey"`

	ExhortoOrigenID  string  `json:"exhorto_origen_id" gorm:"type:varchar(64);not null;uniqueIndex:ux_exhortos_origen_id"`
	FolioSeguimiento *string `json:"folio_seguimiento,omitempty" gorm:"type:varchar(64);uniqueIndex:ux_exhortos_folio_seguimiento"`

	// Origin court location. MunicipioOrigenID is a foreign key into the
	// local catalog; MunicipioDestinoID deliberately is not, to avoid
	// coupling the aggregate to the remote judiciary's catalog rows.
	MunicipioOrigenID  uint      `json:"municipio_origen_id" gorm:"not null;index"`
	MunicipioOrigen    Municipio `json:"-" gorm:"foreignKey:MunicipioOrigenID;references:ID"`
	MunicipioDestinoID uint      `json:"municipio_destino_id" gorm:"not null"`

	MateriaClave  string `json:"materia_clave" gorm:"type:varchar(32);not null"`
	MateriaNombre string `json:"materia_nombre" gorm:"type:varchar(256);not null"`

	JuzgadoOrigenID     string `json:"juzgado_origen_id" gorm:"type:varchar(64)"`
	JuzgadoOrigenNombre string `json:"juzgado_origen_nombre" gorm:"type:varchar(256);not null"`

	NumeroExpedienteOrigen string `json:"numero_expediente_origen" gorm:"type:varchar(256);not null"`
	NumeroOficioOrigen     string `json:"numero_oficio_origen" gorm:"type:varchar(256)"`

	TipoJuicioAsuntoDelitos string `json:"tipo_juicio_asunto_delitos" gorm:"type:varchar(256);not null"`
	JuezExhortante          string `json:"juez_exhortante" gorm:"type:varchar(256)"`

	// Fojas and DiasResponder use 0 as "no especificado".
	Fojas         int `json:"fojas" gorm:"not null"`
	DiasResponder int `json:"dias_responder" gorm:"not null"`

	TipoDiligenciaID         string     `json:"tipo_diligencia_id" gorm:"type:varchar(32)"`
	TipoDiligenciacionNombre string     `json:"tipo_diligenciacion_nombre" gorm:"type:varchar(256)"`
	FechaOrigen              *time.Time `json:"fecha_origen,omitempty"`
	Observaciones            string     `json:"observaciones" gorm:"type:varchar(1024)"`

	// Acuse fields, populated on the origin side from the destination's
	// acknowledgement. FechaHoraRecepcion is stored in UTC.
	AcuseFechaHoraRecepcion    *time.Time `json:"acuse_fecha_hora_recepcion,omitempty"`
	AcuseMunicipioAreaRecibeID *int       `json:"acuse_municipio_area_recibe_id,omitempty"`
	AcuseAreaRecibeID          *string    `json:"acuse_area_recibe_id,omitempty" gorm:"type:varchar(64)"`
	AcuseAreaRecibeNombre      *string    `json:"acuse_area_recibe_nombre,omitempty" gorm:"type:varchar(256)"`
	AcuseURLInfo               *string    `json:"acuse_url_info,omitempty" gorm:"type:varchar(256)"`

	// Internal assignment on the destination side.
	AreaTurnadoID     string `json:"area_turnado_id" gorm:"type:varchar(64)"`
	AreaTurnadoNombre string `json:"area_turnado_nombre" gorm:"type:varchar(256)"`

	// Respuesta bookkeeping on the origin side of a sent respuesta.
	RespuestaOrigenID           *string    `json:"respuesta_origen_id,omitempty" gorm:"type:varchar(64)"`
	RespuestaFechaHoraRecepcion *time.Time `json:"respuesta_fecha_hora_recepcion,omitempty"`

	Remitente      string `json:"remitente" gorm:"type:varchar(16);not null;index;check:remitente IN ('INTERNO','EXTERNO')"`
	Estado         string `json:"estado" gorm:"type:varchar(32);not null;index"`
	EstadoAnterior string `json:"estado_anterior" gorm:"type:varchar(32)"`

	// Retry bookkeeping for the outbound send. PorEnviarErrorAnterior keeps
	// the kind of the last failure so a malformed peer answer is retried at
	// most once before the send is given up.
	PorEnviarIntentos       int        `json:"por_enviar_intentos" gorm:"not null;default:0"`
	PorEnviarTiempoAnterior *time.Time `json:"por_enviar_tiempo_anterior,omitempty"`
	PorEnviarErrorAnterior  string     `json:"por_enviar_error_anterior,omitempty" gorm:"type:varchar(32)"`

	// Raw copies of the last outgoing package and the received acuse, kept
	// verbatim for legal traceability alongside the structured audit log.
	PaqueteEnviado string `json:"-" gorm:"type:text"`
	AcuseRecibido  string `json:"-" gorm:"type:text"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Partes          []Parte         `json:"partes,omitempty" gorm:"foreignKey:ExhortoID"`
	Archivos        []Archivo       `json:"archivos,omitempty" gorm:"foreignKey:ExhortoID"`
	Videos          []Video         `json:"videos,omitempty" gorm:"foreignKey:ExhortoID"`
	Actualizaciones []Actualizacion `json:"-" gorm:"foreignKey:ExhortoID"`
	Promociones     []Promocion     `json:"-" gorm:"foreignKey:ExhortoID"`
	Respuestas      []Respuesta     `json:"-" gorm:"foreignKey:ExhortoID"`
}

// TableName returns the database table name for Exhorto.
func (Exhorto) TableName() string { return "exh_exhortos" }

// Sentido of an outbound child filing relative to this peer. When the
// exhorto originated in the estado identified by localEstadoClave the filing
// travels origin to destination; otherwise destination to origin.
const (
	SentidoOrigenADestino = "ORIGEN A DESTINO"
	SentidoDestinoAOrigen = "DESTINO A ORIGEN"
)

// Sentido reports the direction of outbound filings for this exhorto given
// the clave of the estado this peer serves. The origin estado clave comes
// through the preloaded MunicipioOrigen association.
func (e *Exhorto) Sentido(localEstadoClave string) string {
	if e.MunicipioOrigen.Estado.Clave == localEstadoClave {
		return SentidoOrigenADestino
	}
	return SentidoDestinoAOrigen
}

// Parte is a participant of the underlying case: a natural or moral person,
// optionally a promovente (legal representative) with contact data. Partes
// may hang from the exhorto itself or from one of its promociones.
type Parte struct {
	ID          string  `json:"id" gorm:"type:char(36);primaryKey"`
	ExhortoID   string  `json:"exhorto_id" gorm:"type:char(36);not null;index"`
	PromocionID *string `json:"promocion_id,omitempty" gorm:"type:char(36);index"`

	Nombre          string  `json:"nombre" gorm:"type:varchar(256);not null"`
	ApellidoPaterno *string `json:"apellido_paterno,omitempty" gorm:"type:varchar(256)"`
	ApellidoMaterno *string `json:"apellido_materno,omitempty" gorm:"type:varchar(256)"`

	// Genero is "M", "F" or "-" when it does not apply.
	Genero         string `json:"genero" gorm:"type:char(1);not null;default:'-';check:genero IN ('M','F','-')"`
	EsPersonaMoral bool   `json:"es_persona_moral" gorm:"not null"`

	// TipoParte 0 means no definido; TipoParteNombre carries the free-form
	// name in that case.
	TipoParte       int    `json:"tipo_parte" gorm:"not null"`
	TipoParteNombre string `json:"tipo_parte_nombre" gorm:"type:varchar(256)"`

	EsPromovente      bool   `json:"es_promovente" gorm:"not null;default:false"`
	CorreoElectronico string `json:"correo_electronico" gorm:"type:varchar(256)"`
	Telefono          string `json:"telefono" gorm:"type:varchar(10)"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for Parte.
func (Parte) TableName() string { return "exh_exhortos_partes" }

// NombreCompleto joins the parte's name and surnames.
func (p *Parte) NombreCompleto() string {
	out := p.Nombre
	if p.ApellidoPaterno != nil && *p.ApellidoPaterno != "" {
		out += " " + *p.ApellidoPaterno
	}
	if p.ApellidoMaterno != nil && *p.ApellidoMaterno != "" {
		out += " " + *p.ApellidoMaterno
	}
	return out
}

// Archivo is a document attached to an exhorto, a respuesta or a promocion.
// The metadata (name, hashes, type) always arrives before the bytes; the
// bytes are verified against both hashes before the archivo may be marked
// RECIBIDO and stored.
type Archivo struct {
	ID          string  `json:"id" gorm:"type:char(36);primaryKey"`
	ExhortoID   string  `json:"exhorto_id" gorm:"type:char(36);not null;index"`
	RespuestaID *string `json:"respuesta_id,omitempty" gorm:"type:char(36);index"`
	PromocionID *string `json:"promocion_id,omitempty" gorm:"type:char(36);index"`

	NombreArchivo string `json:"nombre_archivo" gorm:"type:varchar(256);not null"`
	HashSha1      string `json:"hash_sha1" gorm:"type:varchar(40)"`
	HashSha256    string `json:"hash_sha256" gorm:"type:varchar(64)"`

	TipoDocumento int `json:"tipo_documento" gorm:"not null;check:tipo_documento IN (1,2,3)"`

	// URL points at the blob in storage once uploaded; TamanoBytes and
	// FechaHoraRecepcion are set when the bytes land.
	URL                string     `json:"url" gorm:"type:varchar(512)"`
	TamanoBytes        int64      `json:"tamano_bytes" gorm:"not null;default:0"`
	FechaHoraRecepcion *time.Time `json:"fecha_hora_recepcion,omitempty"`

	Estado      string `json:"estado" gorm:"type:varchar(16);not null;default:'PENDIENTE';check:estado IN ('PENDIENTE','RECIBIDO','CANCELADO')"`
	EsRespuesta bool   `json:"es_respuesta" gorm:"not null;default:false;index"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for Archivo.
func (Archivo) TableName() string { return "exh_exhortos_archivos" }

// Video is audiovisual evidence referenced by URL on an external host,
// attached to the exhorto or to a respuesta.
type Video struct {
	ID          string  `json:"id" gorm:"type:char(36);primaryKey"`
	ExhortoID   string  `json:"exhorto_id" gorm:"type:char(36);not null;index"`
	RespuestaID *string `json:"respuesta_id,omitempty" gorm:"type:char(36);index"`

	Titulo      string     `json:"titulo" gorm:"type:varchar(256);not null"`
	Descripcion string     `json:"descripcion" gorm:"type:varchar(1024)"`
	Fecha       *time.Time `json:"fecha,omitempty"`
	URLAcceso   string     `json:"url_acceso" gorm:"type:varchar(512);not null"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for Video.
func (Video) TableName() string { return "exh_exhortos_videos" }

// Actualizacion is a notice about a change on the exhorto (new internal
// number, turnado area) sent in either direction once the exhorto has been
// accepted end to end.
type Actualizacion struct {
	ID        string `json:"id" gorm:"type:char(36);primaryKey"`
	ExhortoID string `json:"exhorto_id" gorm:"type:char(36);not null;index"`

	ActualizacionOrigenID string    `json:"actualizacion_origen_id" gorm:"type:varchar(64);not null"`
	TipoActualizacion     string    `json:"tipo_actualizacion" gorm:"type:varchar(64);not null;check:tipo_actualizacion IN ('AreaTurnado','NumeroExhorto')"`
	FechaHora             time.Time `json:"fecha_hora" gorm:"not null"`
	Descripcion           string    `json:"descripcion" gorm:"type:varchar(256);not null"`

	Remitente string `json:"remitente" gorm:"type:varchar(16);not null;index;check:remitente IN ('INTERNO','EXTERNO')"`
	Estado    string `json:"estado" gorm:"type:varchar(16);not null;index"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for Actualizacion.
func (Actualizacion) TableName() string { return "exh_exhortos_actualizaciones" }

// Promocion is a supplemental filing over an already exchanged exhorto,
// carrying its own promoventes and archivos.
type Promocion struct {
	ID        string `json:"id" gorm:"type:char(36);primaryKey"`
	ExhortoID string `json:"exhorto_id" gorm:"type:char(36);not null;index"`

	FolioOrigenPromocion   string  `json:"folio_origen_promocion" gorm:"type:varchar(64);not null"`
	FolioPromocionRecibida *string `json:"folio_promocion_recibida,omitempty" gorm:"type:varchar(64)"`

	Fojas         int        `json:"fojas" gorm:"not null"`
	FechaOrigen   *time.Time `json:"fecha_origen,omitempty"`
	Observaciones string     `json:"observaciones" gorm:"type:varchar(1024)"`

	FechaHoraRecepcion *time.Time `json:"fecha_hora_recepcion,omitempty"`

	Remitente string `json:"remitente" gorm:"type:varchar(16);not null;index;check:remitente IN ('INTERNO','EXTERNO')"`
	Estado    string `json:"estado" gorm:"type:varchar(16);not null;index"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Promoventes []Parte   `json:"promoventes,omitempty" gorm:"foreignKey:PromocionID"`
	Archivos    []Archivo `json:"archivos,omitempty" gorm:"foreignKey:PromocionID"`
}

// TableName returns the database table name for Promocion.
func (Promocion) TableName() string { return "exh_exhortos_promociones" }

// Respuesta is the destination's formal reply concluding the exhorto.
type Respuesta struct {
	ID        string `json:"id" gorm:"type:char(36);primaryKey"`
	ExhortoID string `json:"exhorto_id" gorm:"type:char(36);not null;index"`

	RespuestaOrigenID string `json:"respuesta_origen_id" gorm:"type:varchar(64);not null"`

	// MunicipioTurnadoID is the INEGI clave of the municipio the exhorto
	// was turned to on the destination side.
	MunicipioTurnadoID int    `json:"municipio_turnado_id" gorm:"not null"`
	AreaTurnadoID      string `json:"area_turnado_id" gorm:"type:varchar(64)"`
	AreaTurnadoNombre  string `json:"area_turnado_nombre" gorm:"type:varchar(256)"`

	// NumeroExhorto is the local number the destination assigned.
	NumeroExhorto string `json:"numero_exhorto" gorm:"type:varchar(64)"`

	TipoDiligenciado int    `json:"tipo_diligenciado" gorm:"not null;check:tipo_diligenciado IN (0,1,2)"`
	Observaciones    string `json:"observaciones" gorm:"type:varchar(1024)"`

	FechaHoraRecepcion *time.Time `json:"fecha_hora_recepcion,omitempty"`

	Remitente string `json:"remitente" gorm:"type:varchar(16);not null;index;check:remitente IN ('INTERNO','EXTERNO')"`
	Estado    string `json:"estado" gorm:"type:varchar(16);not null;index"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Archivos []Archivo `json:"archivos,omitempty" gorm:"foreignKey:RespuestaID"`
	Videos   []Video   `json:"videos,omitempty" gorm:"foreignKey:RespuestaID"`
}

// TableName returns the database table name for Respuesta.
func (Respuesta) TableName() string { return "exh_exhortos_respuestas" }

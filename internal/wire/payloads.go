package wire

// PartePayload is a participant on the wire. Promoventes additionally carry
// contact data so the destination can grant electronic access.
type PartePayload struct {
	Nombre          string `json:"nombre" binding:"required"`
	ApellidoPaterno string `json:"apellidoPaterno"`
	ApellidoMaterno string `json:"apellidoMaterno"`
	Genero          string `json:"genero"`
	EsPersonaMoral  bool   `json:"esPersonaMoral"`
	TipoParte       int    `json:"tipoParte" binding:"min=0,max=2"`
	TipoParteNombre string `json:"tipoParteNombre"`

	CorreoElectronico string `json:"correoElectronico,omitempty"`
	Telefono          string `json:"telefono,omitempty"`
}

// ArchivoPayload is the metadata of a document announced before its bytes
// are uploaded. Hashes are hex digests of the exact bytes to follow.
type ArchivoPayload struct {
	NombreArchivo string `json:"nombreArchivo" binding:"required"`
	HashSha1      string `json:"hashSha1"`
	HashSha256    string `json:"hashSha256" binding:"required"`
	TipoDocumento int    `json:"tipoDocumento" binding:"required,min=1,max=3"`
}

// VideoPayload is audiovisual evidence referenced by URL.
type VideoPayload struct {
	Titulo      string `json:"titulo" binding:"required"`
	Descripcion string `json:"descripcion"`
	Fecha       *Date  `json:"fecha,omitempty"`
	URLAcceso   string `json:"urlAcceso" binding:"required"`
}

// ExhortoPayload is the submission of an exhorto. Municipality identifiers
// are INEGI claves, never internal ids.
type ExhortoPayload struct {
	ExhortoOrigenID          string           `json:"exhortoOrigenId" binding:"required"`
	MunicipioDestinoID       int              `json:"municipioDestinoId" binding:"required"`
	MateriaClave             string           `json:"materiaClave" binding:"required"`
	EstadoOrigenID           int              `json:"estadoOrigenId" binding:"required"`
	MunicipioOrigenID        int              `json:"municipioOrigenId" binding:"required"`
	JuzgadoOrigenID          string           `json:"juzgadoOrigenId"`
	JuzgadoOrigenNombre      string           `json:"juzgadoOrigenNombre" binding:"required"`
	NumeroExpedienteOrigen   string           `json:"numeroExpedienteOrigen" binding:"required"`
	NumeroOficioOrigen       string           `json:"numeroOficioOrigen"`
	TipoJuicioAsuntoDelitos  string           `json:"tipoJuicioAsuntoDelitos" binding:"required"`
	JuezExhortante           string           `json:"juezExhortante"`
	Partes                   []PartePayload   `json:"partes" binding:"required,min=1,dive"`
	Fojas                    int              `json:"fojas"`
	DiasResponder            int              `json:"diasResponder"`
	TipoDiligenciacionNombre string           `json:"tipoDiligenciacionNombre"`
	FechaOrigen              *DateTime        `json:"fechaOrigen,omitempty"`
	Observaciones            string           `json:"observaciones"`
	Archivos                 []ArchivoPayload `json:"archivos" binding:"required,min=1,dive"`
}

// ExhortoAcuse acknowledges receipt of an exhorto. It is embedded in the
// response of the last archivo upload of the batch, once every announced
// archivo has been verified and stored.
type ExhortoAcuse struct {
	ExhortoOrigenID       string   `json:"exhortoOrigenId"`
	FolioSeguimiento      string   `json:"folioSeguimiento"`
	FechaHoraRecepcion    DateTime `json:"fechaHoraRecepcion"`
	MunicipioAreaRecibeID *int     `json:"municipioAreaRecibeId,omitempty"`
	AreaRecibeID          *string  `json:"areaRecibeId,omitempty"`
	AreaRecibeNombre      *string  `json:"areaRecibeNombre,omitempty"`
	URLInfo               *string  `json:"urlInfo,omitempty"`
}

// ArchivoRecibido reports one stored upload inside an upload response.
type ArchivoRecibido struct {
	NombreArchivo string `json:"nombreArchivo"`
	TamanoBytes   int64  `json:"tamano"`
}

// ExhortoArchivoUploadData is the data object of an archivo upload response.
// Acuse is nil until the last archivo of the batch lands.
type ExhortoArchivoUploadData struct {
	Archivo ArchivoRecibido `json:"archivo"`
	Acuse   *ExhortoAcuse   `json:"acuse,omitempty"`
}

// ExhortoConsulta is the response shape of the exhorto query endpoint: the
// full submitted package plus the destination's processing fields.
type ExhortoConsulta struct {
	ExhortoPayload

	FolioSeguimiento   string    `json:"folioSeguimiento"`
	Estado             string    `json:"estado"`
	NumeroExhorto      string    `json:"numeroExhorto,omitempty"`
	AreaTurnadoID      string    `json:"areaTurnadoId,omitempty"`
	AreaTurnadoNombre  string    `json:"areaTurnadoNombre,omitempty"`
	FechaHoraRecepcion *DateTime `json:"fechaHoraRecepcion,omitempty"`
}

// RespuestaPayload is the destination's formal reply. ExhortoID correlates
// through the origin's exhortoOrigenId.
type RespuestaPayload struct {
	ExhortoID          string           `json:"exhortoId" binding:"required"`
	RespuestaOrigenID  string           `json:"respuestaOrigenId" binding:"required"`
	MunicipioTurnadoID int              `json:"municipioTurnadoId"`
	AreaTurnadoID      string           `json:"areaTurnadoId"`
	AreaTurnadoNombre  string           `json:"areaTurnadoNombre"`
	NumeroExhorto      string           `json:"numeroExhorto"`
	TipoDiligenciado   int              `json:"tipoDiligenciado" binding:"min=0,max=2"`
	Observaciones      string           `json:"observaciones"`
	Archivos           []ArchivoPayload `json:"archivos" binding:"required,min=1,dive"`
	Videos             []VideoPayload   `json:"videos" binding:"dive"`
}

// RespuestaAcuse acknowledges receipt of a respuesta.
type RespuestaAcuse struct {
	ExhortoID          string   `json:"exhortoId"`
	RespuestaOrigenID  string   `json:"respuestaOrigenId"`
	FechaHoraRecepcion DateTime `json:"fechaHoraRecepcion"`
}

// RespuestaArchivoUploadData is the data object of a respuesta archivo
// upload response.
type RespuestaArchivoUploadData struct {
	Archivo ArchivoRecibido `json:"archivo"`
	Acuse   *RespuestaAcuse `json:"acuse,omitempty"`
}

// ActualizacionPayload is a notice of change on an exchanged exhorto.
type ActualizacionPayload struct {
	ExhortoID             string   `json:"exhortoId" binding:"required"`
	ActualizacionOrigenID string   `json:"actualizacionOrigenId" binding:"required"`
	TipoActualizacion     string   `json:"tipoActualizacion" binding:"required,oneof=AreaTurnado NumeroExhorto"`
	FechaHora             DateTime `json:"fechaHora" binding:"required"`
	Descripcion           string   `json:"descripcion" binding:"required"`
}

// ActualizacionAcuse confirms receipt of an actualización.
type ActualizacionAcuse struct {
	ExhortoID             string   `json:"exhortoId"`
	ActualizacionOrigenID string   `json:"actualizacionOrigenId"`
	FechaHora             DateTime `json:"fechaHora"`
}

// PromocionPayload is a supplemental filing over an exchanged exhorto,
// addressed by the destination-assigned folio de seguimiento.
type PromocionPayload struct {
	FolioSeguimiento     string           `json:"folioSeguimiento" binding:"required"`
	FolioOrigenPromocion string           `json:"folioOrigenPromocion" binding:"required"`
	Promoventes          []PartePayload   `json:"promoventes" binding:"required,min=1,dive"`
	Fojas                int              `json:"fojas"`
	FechaOrigen          *DateTime        `json:"fechaOrigen,omitempty"`
	Observaciones        string           `json:"observaciones"`
	Archivos             []ArchivoPayload `json:"archivos" binding:"required,min=1,dive"`
}

// PromocionAcuse acknowledges receipt of a promoción.
type PromocionAcuse struct {
	FolioOrigenPromocion   string   `json:"folioOrigenPromocion"`
	FolioPromocionRecibida string   `json:"folioPromocionRecibida"`
	FechaHoraRecepcion     DateTime `json:"fechaHoraRecepcion"`
}

// PromocionArchivoUploadData is the data object of a promoción archivo
// upload response.
type PromocionArchivoUploadData struct {
	Archivo ArchivoRecibido `json:"archivo"`
	Acuse   *PromocionAcuse `json:"acuse,omitempty"`
}

// MateriaItem is one supported materia in the handshake response.
type MateriaItem struct {
	Clave  string `json:"clave"`
	Nombre string `json:"nombre"`
}

// This file implements the operator API: the authenticated surface court
// personnel use to draft exhortos, drive the state machine, file respuestas,
// actualizaciones and promociones, and inspect tasks and the audit trail.
// Unlike the peer endpoints, these routes use the standard ErrorResponse
// envelope and paginated listings.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/justicia-digital/exhorto-interchange/internal/domain"
	"github.com/justicia-digital/exhorto-interchange/internal/services"
	"github.com/justicia-digital/exhorto-interchange/internal/utils"
)

// usuarioHeader identifies the operator for the audit trail.
const usuarioHeader = "X-Usuario"

// OperatorHandler serves the operator API.
type OperatorHandler struct {
	Exhortos *services.ExhortoService
	Filings  *services.FilingService
}

// NewOperatorHandler builds an OperatorHandler.
func NewOperatorHandler(exhortos *services.ExhortoService, filings *services.FilingService) *OperatorHandler {
	return &OperatorHandler{Exhortos: exhortos, Filings: filings}
}

// ParteRequest is one participant in an operator request.
type ParteRequest struct {
	Nombre          string `json:"nombre" binding:"required"`
	ApellidoPaterno string `json:"apellido_paterno"`
	ApellidoMaterno string `json:"apellido_materno"`
	Genero          string `json:"genero"`
	EsPersonaMoral  bool   `json:"es_persona_moral"`
	TipoParte       int    `json:"tipo_parte" binding:"min=0,max=2"`
	TipoParteNombre string `json:"tipo_parte_nombre"`

	EsPromovente      bool   `json:"es_promovente"`
	CorreoElectronico string `json:"correo_electronico"`
	Telefono          string `json:"telefono"`
}

// ArchivoRequest announces one document whose bytes already sit in storage.
type ArchivoRequest struct {
	NombreArchivo string `json:"nombre_archivo" binding:"required"`
	HashSha1      string `json:"hash_sha1"`
	HashSha256    string `json:"hash_sha256" binding:"required"`
	TipoDocumento int    `json:"tipo_documento" binding:"required,min=1,max=3"`
	URL           string `json:"url" binding:"required"`
	TamanoBytes   int64  `json:"tamano_bytes"`
}

// VideoRequest references audiovisual evidence by URL.
type VideoRequest struct {
	Titulo      string     `json:"titulo" binding:"required"`
	Descripcion string     `json:"descripcion"`
	Fecha       *time.Time `json:"fecha"`
	URLAcceso   string     `json:"url_acceso" binding:"required"`
}

// CrearExhortoRequest drafts a new outbound exhorto.
type CrearExhortoRequest struct {
	MunicipioOrigenID       uint             `json:"municipio_origen_id" binding:"required"`
	MunicipioDestinoID      uint             `json:"municipio_destino_id" binding:"required"`
	MateriaClave            string           `json:"materia_clave" binding:"required"`
	JuzgadoOrigenID         string           `json:"juzgado_origen_id"`
	JuzgadoOrigenNombre     string           `json:"juzgado_origen_nombre" binding:"required"`
	NumeroExpedienteOrigen  string           `json:"numero_expediente_origen" binding:"required"`
	NumeroOficioOrigen      string           `json:"numero_oficio_origen"`
	TipoJuicioAsuntoDelitos string           `json:"tipo_juicio_asunto_delitos" binding:"required"`
	JuezExhortante          string           `json:"juez_exhortante"`
	Fojas                   int              `json:"fojas"`
	DiasResponder           int              `json:"dias_responder"`
	TipoDiligenciaClave     string           `json:"tipo_diligencia_clave"`
	FechaOrigen             *time.Time       `json:"fecha_origen"`
	Observaciones           string           `json:"observaciones"`
	Partes                  []ParteRequest   `json:"partes" binding:"required,min=1,dive"`
	Archivos                []ArchivoRequest `json:"archivos" binding:"required,min=1,dive"`
}

// CrearExhorto drafts a new outbound exhorto.
//
// POST /exhortos
func (h *OperatorHandler) CrearExhorto(c *gin.Context) {
	var req CrearExhortoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	e, err := h.Exhortos.Crear(c.Request.Context(), services.CrearExhortoInput{
		MunicipioOrigenID:       req.MunicipioOrigenID,
		MunicipioDestinoID:      req.MunicipioDestinoID,
		MateriaClave:            req.MateriaClave,
		JuzgadoOrigenID:         req.JuzgadoOrigenID,
		JuzgadoOrigenNombre:     req.JuzgadoOrigenNombre,
		NumeroExpedienteOrigen:  req.NumeroExpedienteOrigen,
		NumeroOficioOrigen:      req.NumeroOficioOrigen,
		TipoJuicioAsuntoDelitos: req.TipoJuicioAsuntoDelitos,
		JuezExhortante:          req.JuezExhortante,
		Fojas:                   req.Fojas,
		DiasResponder:           req.DiasResponder,
		TipoDiligenciaClave:     req.TipoDiligenciaClave,
		FechaOrigen:             req.FechaOrigen,
		Observaciones:           req.Observaciones,
		Partes:                  partesInput(req.Partes),
		Archivos:                archivosInput(req.Archivos),
	})
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusCreated, e)
}

// ListarExhortos pages through exhortos.
//
// GET /exhortos?estado=&remitente=&page=&per_page=
func (h *OperatorHandler) ListarExhortos(c *gin.Context) {
	page := utils.AtoiDefault(c.Query("page"), 1)
	perPage := utils.ClampPerPage(utils.AtoiDefault(c.Query("per_page"), 50), 50, 200)
	if page < 1 {
		page = 1
	}
	items, total, err := h.Exhortos.Listar(c.Request.Context(),
		c.Query("estado"), c.Query("remitente"), (page-1)*perPage, perPage)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{
		"items":    items,
		"total":    total,
		"page":     page,
		"per_page": perPage,
	})
}

// GetExhorto fetches one exhorto with its children.
//
// GET /exhortos/:id
func (h *OperatorHandler) GetExhorto(c *gin.Context) {
	e, err := h.Exhortos.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, e)
}

// EnviarExhorto queues the exhorto for delivery.
//
// POST /exhortos/:id/enviar
func (h *OperatorHandler) EnviarExhorto(c *gin.Context) {
	task, err := h.Exhortos.EncolarEnvio(c.Request.Context(), c.Param("id"), actor(c))
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusAccepted, task)
}

// ConsultarExhorto queues a remote query of the exhorto.
//
// POST /exhortos/:id/consultar
func (h *OperatorHandler) ConsultarExhorto(c *gin.Context) {
	task, err := h.Exhortos.EncolarConsulta(c.Request.Context(), c.Param("id"))
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusAccepted, task)
}

// ReiniciarExhorto resets an INTENTOS AGOTADOS exhorto and queues it again.
//
// POST /exhortos/:id/reiniciar
func (h *OperatorHandler) ReiniciarExhorto(c *gin.Context) {
	task, err := h.Exhortos.Reiniciar(c.Request.Context(), c.Param("id"), actor(c))
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusAccepted, task)
}

// transitionRequest carries the optional fields of the transition endpoints.
type transitionRequest struct {
	AreaID     string `json:"area_id"`
	AreaNombre string `json:"area_nombre"`
	Motivo     string `json:"motivo"`
}

// Transicionar returns the handler of one operator-side state machine
// event: cancelar, archivar, transferir, aceptar, rechazar or diligenciar.
//
// POST /exhortos/:id/<evento>
func (h *OperatorHandler) Transicionar(evento string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req transitionRequest
		// Body is optional on most transitions.
		_ = c.ShouldBindJSON(&req)

		id := c.Param("id")
		who := actor(c)
		ctx := c.Request.Context()

		var err error
		switch evento {
		case "cancelar":
			err = h.Exhortos.Cancelar(ctx, id, who)
		case "archivar":
			err = h.Exhortos.Archivar(ctx, id, who)
		case "transferir":
			err = h.Exhortos.Transferir(ctx, id, who)
		case "aceptar":
			err = h.Exhortos.Aceptar(ctx, id, who, req.AreaID, req.AreaNombre)
		case "rechazar":
			err = h.Exhortos.Rechazar(ctx, id, who, req.Motivo)
		case "diligenciar":
			err = h.Exhortos.Diligenciar(ctx, id, who)
		default:
			fail(c, http.StatusBadRequest, codeBadRequest, "evento desconocido")
			return
		}
		if err != nil {
			failFromService(c, err)
			return
		}
		e, err := h.Exhortos.Get(ctx, id)
		if err != nil {
			failFromService(c, err)
			return
		}
		ok(c, http.StatusOK, e)
	}
}

// CrearRespuestaRequest drafts the reply to a received exhorto.
type CrearRespuestaRequest struct {
	MunicipioTurnadoID int              `json:"municipio_turnado_id"`
	AreaTurnadoID      string           `json:"area_turnado_id"`
	AreaTurnadoNombre  string           `json:"area_turnado_nombre"`
	NumeroExhorto      string           `json:"numero_exhorto"`
	TipoDiligenciado   int              `json:"tipo_diligenciado" binding:"min=0,max=2"`
	Observaciones      string           `json:"observaciones"`
	Archivos           []ArchivoRequest `json:"archivos" binding:"required,min=1,dive"`
	Videos             []VideoRequest   `json:"videos" binding:"dive"`
}

// CrearRespuesta drafts and queues the respuesta of a received exhorto.
//
// POST /exhortos/:id/respuestas
func (h *OperatorHandler) CrearRespuesta(c *gin.Context) {
	var req CrearRespuestaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	r, task, err := h.Filings.CrearRespuesta(c.Request.Context(), services.CrearRespuestaInput{
		ExhortoID:          c.Param("id"),
		MunicipioTurnadoID: req.MunicipioTurnadoID,
		AreaTurnadoID:      req.AreaTurnadoID,
		AreaTurnadoNombre:  req.AreaTurnadoNombre,
		NumeroExhorto:      req.NumeroExhorto,
		TipoDiligenciado:   req.TipoDiligenciado,
		Observaciones:      req.Observaciones,
		Archivos:           archivosInput(req.Archivos),
		Videos:             videosInput(req.Videos),
	})
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusCreated, gin.H{"respuesta": r, "tarea": task})
}

// ListarRespuestas lists the respuestas of an exhorto.
//
// GET /exhortos/:id/respuestas
func (h *OperatorHandler) ListarRespuestas(c *gin.Context) {
	items, err := h.Filings.Respuestas(c.Request.Context(), c.Param("id"))
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, items)
}

// CrearActualizacionRequest drafts a change notice.
type CrearActualizacionRequest struct {
	TipoActualizacion string `json:"tipo_actualizacion" binding:"required,oneof=AreaTurnado NumeroExhorto"`
	Descripcion       string `json:"descripcion" binding:"required"`
}

// CrearActualizacion drafts and queues a change notice.
//
// POST /exhortos/:id/actualizaciones
func (h *OperatorHandler) CrearActualizacion(c *gin.Context) {
	var req CrearActualizacionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	a, task, err := h.Filings.CrearActualizacion(c.Request.Context(), services.CrearActualizacionInput{
		ExhortoID:         c.Param("id"),
		TipoActualizacion: req.TipoActualizacion,
		Descripcion:       req.Descripcion,
	})
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusCreated, gin.H{"actualizacion": a, "tarea": task})
}

// ListarActualizaciones lists the change notices of an exhorto.
//
// GET /exhortos/:id/actualizaciones
func (h *OperatorHandler) ListarActualizaciones(c *gin.Context) {
	items, err := h.Filings.Actualizaciones(c.Request.Context(), c.Param("id"))
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, items)
}

// CrearPromocionRequest drafts a supplemental filing.
type CrearPromocionRequest struct {
	Fojas         int              `json:"fojas"`
	FechaOrigen   *time.Time       `json:"fecha_origen"`
	Observaciones string           `json:"observaciones"`
	Promoventes   []ParteRequest   `json:"promoventes" binding:"required,min=1,dive"`
	Archivos      []ArchivoRequest `json:"archivos" binding:"required,min=1,dive"`
}

// CrearPromocion drafts and queues a promoción.
//
// POST /exhortos/:id/promociones
func (h *OperatorHandler) CrearPromocion(c *gin.Context) {
	var req CrearPromocionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	p, task, err := h.Filings.CrearPromocion(c.Request.Context(), services.CrearPromocionInput{
		ExhortoID:     c.Param("id"),
		Fojas:         req.Fojas,
		FechaOrigen:   req.FechaOrigen,
		Observaciones: req.Observaciones,
		Promoventes:   partesInput(req.Promoventes),
		Archivos:      archivosInput(req.Archivos),
	})
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusCreated, gin.H{"promocion": p, "tarea": task})
}

// ListarPromociones lists the promociones of an exhorto.
//
// GET /exhortos/:id/promociones
func (h *OperatorHandler) ListarPromociones(c *gin.Context) {
	items, err := h.Filings.Promociones(c.Request.Context(), c.Param("id"))
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, items)
}

// Auditoria returns the audit trail of an exhorto.
//
// GET /exhortos/:id/auditoria
func (h *OperatorHandler) Auditoria(c *gin.Context) {
	entries, err := h.Exhortos.Auditoria(c.Request.Context(), domain.EntidadExhorto, c.Param("id"))
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, entries)
}

// GetTarea fetches one background task.
//
// GET /tareas/:id
func (h *OperatorHandler) GetTarea(c *gin.Context) {
	t, err := h.Exhortos.Tarea(c.Request.Context(), c.Param("id"))
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, t)
}

// CancelarTarea requests cancellation of a pending task.
//
// POST /tareas/:id/cancelar
func (h *OperatorHandler) CancelarTarea(c *gin.Context) {
	if err := h.Exhortos.CancelarTarea(c.Request.Context(), c.Param("id")); err != nil {
		failFromService(c, err)
		return
	}
	noContent(c)
}

// actor identifies the operator for audit purposes.
func actor(c *gin.Context) string {
	if u := c.GetHeader(usuarioHeader); u != "" {
		return u
	}
	return "operador"
}

// failFromService maps service sentinels onto the error envelope.
func failFromService(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		fail(c, http.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, services.ErrValidation):
		fail(c, http.StatusBadRequest, codeBadRequest, err.Error())
	case errors.Is(err, services.ErrHashMismatch):
		fail(c, http.StatusBadRequest, codeHashMismatch, err.Error())
	case errors.Is(err, services.ErrDuplicate), errors.Is(err, services.ErrConflict):
		fail(c, http.StatusConflict, codeConflict, err.Error())
	case errors.Is(err, services.ErrUnavailable):
		fail(c, http.StatusServiceUnavailable, codeUnavailable, err.Error())
	default:
		fail(c, http.StatusInternalServerError, codeInternal, err.Error())
	}
}

func partesInput(in []ParteRequest) []services.ParteInput {
	out := make([]services.ParteInput, 0, len(in))
	for _, p := range in {
		out = append(out, services.ParteInput{
			Nombre:            p.Nombre,
			ApellidoPaterno:   p.ApellidoPaterno,
			ApellidoMaterno:   p.ApellidoMaterno,
			Genero:            p.Genero,
			EsPersonaMoral:    p.EsPersonaMoral,
			TipoParte:         p.TipoParte,
			TipoParteNombre:   p.TipoParteNombre,
			EsPromovente:      p.EsPromovente,
			CorreoElectronico: p.CorreoElectronico,
			Telefono:          p.Telefono,
		})
	}
	return out
}

func archivosInput(in []ArchivoRequest) []services.ArchivoInput {
	out := make([]services.ArchivoInput, 0, len(in))
	for _, a := range in {
		out = append(out, services.ArchivoInput{
			NombreArchivo: a.NombreArchivo,
			HashSha1:      a.HashSha1,
			HashSha256:    a.HashSha256,
			TipoDocumento: a.TipoDocumento,
			URL:           a.URL,
			TamanoBytes:   a.TamanoBytes,
		})
	}
	return out
}

func videosInput(in []VideoRequest) []services.VideoInput {
	out := make([]services.VideoInput, 0, len(in))
	for _, v := range in {
		out = append(out, services.VideoInput{
			Titulo:      v.Titulo,
			Descripcion: v.Descripcion,
			Fecha:       v.Fecha,
			URLAcceso:   v.URLAcceso,
		})
	}
	return out
}

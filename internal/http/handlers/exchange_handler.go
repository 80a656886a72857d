// Package handlers provides HTTP handler implementations for the public API.
//
// This file implements the peer-facing protocol endpoints: the five inbound
// message flows plus the materias handshake. These endpoints speak the
// interstate envelope contract ({success, message, errors, data}) rather
// than the operator API's error shape, because remote judiciaries implement
// against it independently.
package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/justicia-digital/exhorto-interchange/internal/domain"
	"github.com/justicia-digital/exhorto-interchange/internal/http/middleware"
	"github.com/justicia-digital/exhorto-interchange/internal/services"
	"github.com/justicia-digital/exhorto-interchange/internal/wire"
)

// maxArchivoBytes caps one uploaded archivo.
const maxArchivoBytes = 32 << 20

// ExchangeHandler serves the protocol endpoints consumed by remote peers.
type ExchangeHandler struct {
	Inbound *services.InboundService
}

// NewExchangeHandler builds an ExchangeHandler.
func NewExchangeHandler(inbound *services.InboundService) *ExchangeHandler {
	return &ExchangeHandler{Inbound: inbound}
}

// Materias answers the handshake with the materias this peer accepts.
//
// GET /exh_exhortos/materias
func (h *ExchangeHandler) Materias(c *gin.Context) {
	items, err := h.Inbound.Materias(c.Request.Context())
	if err != nil {
		envFail(c, err)
		return
	}
	envOK(c, "materias aceptadas", items)
}

// RecibirExhorto registers an announced exhorto.
//
// POST /exh_exhortos
func (h *ExchangeHandler) RecibirExhorto(c *gin.Context) {
	peer := peerFrom(c)
	if peer == nil {
		return
	}
	var payload wire.ExhortoPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		envBadRequest(c, "payload inválido", err)
		return
	}
	e, _, err := h.Inbound.RecibirExhorto(c.Request.Context(), peer, &payload)
	if err != nil {
		envFail(c, err)
		return
	}
	envOK(c, "exhorto registrado", gin.H{
		"exhortoOrigenId": e.ExhortoOrigenID,
	})
}

// RecibirExhortoArchivo stores one uploaded archivo; the acuse rides in the
// response of the batch's last upload.
//
// POST /exh_exhortos/archivos (multipart: exhortoOrigenId, archivo)
func (h *ExchangeHandler) RecibirExhortoArchivo(c *gin.Context) {
	peer := peerFrom(c)
	if peer == nil {
		return
	}
	origenID := c.PostForm("exhortoOrigenId")
	if origenID == "" {
		envBadRequest(c, "falta exhortoOrigenId", nil)
		return
	}
	nombre, data, ok := readArchivo(c)
	if !ok {
		return
	}
	out, err := h.Inbound.RecibirExhortoArchivo(c.Request.Context(), peer, origenID, nombre, data)
	if err != nil {
		envFail(c, err)
		return
	}
	envOK(c, "archivo recibido", out)
}

// ConsultarExhorto answers a peer's query by the folio de seguimiento this
// engine assigned on receipt.
//
// GET /exh_exhortos/:folio_seguimiento
func (h *ExchangeHandler) ConsultarExhorto(c *gin.Context) {
	peer := peerFrom(c)
	if peer == nil {
		return
	}
	out, err := h.Inbound.ConsultarExhorto(c.Request.Context(), peer, c.Param("folio_seguimiento"))
	if err != nil {
		envFail(c, err)
		return
	}
	envOK(c, "exhorto consultado", out)
}

// RecibirRespuesta registers the announced respuesta of a sent exhorto.
//
// POST /exh_exhortos/respuestas
func (h *ExchangeHandler) RecibirRespuesta(c *gin.Context) {
	peer := peerFrom(c)
	if peer == nil {
		return
	}
	var payload wire.RespuestaPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		envBadRequest(c, "payload inválido", err)
		return
	}
	r, _, err := h.Inbound.RecibirRespuesta(c.Request.Context(), peer, &payload)
	if err != nil {
		envFail(c, err)
		return
	}
	envOK(c, "respuesta registrada", gin.H{
		"exhortoId":         payload.ExhortoID,
		"respuestaOrigenId": r.RespuestaOrigenID,
	})
}

// RecibirRespuestaArchivo stores one respuesta archivo.
//
// POST /exh_exhortos/respuestas/archivos (multipart: exhortoId,
// respuestaOrigenId, archivo)
func (h *ExchangeHandler) RecibirRespuestaArchivo(c *gin.Context) {
	peer := peerFrom(c)
	if peer == nil {
		return
	}
	exhortoID := c.PostForm("exhortoId")
	respuestaOrigenID := c.PostForm("respuestaOrigenId")
	if exhortoID == "" || respuestaOrigenID == "" {
		envBadRequest(c, "faltan exhortoId o respuestaOrigenId", nil)
		return
	}
	nombre, data, ok := readArchivo(c)
	if !ok {
		return
	}
	out, err := h.Inbound.RecibirRespuestaArchivo(c.Request.Context(), peer, exhortoID, respuestaOrigenID, nombre, data)
	if err != nil {
		envFail(c, err)
		return
	}
	envOK(c, "archivo recibido", out)
}

// RecibirActualizacion records a change notice.
//
// POST /exh_exhortos/actualizaciones
func (h *ExchangeHandler) RecibirActualizacion(c *gin.Context) {
	peer := peerFrom(c)
	if peer == nil {
		return
	}
	var payload wire.ActualizacionPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		envBadRequest(c, "payload inválido", err)
		return
	}
	acuse, err := h.Inbound.RecibirActualizacion(c.Request.Context(), peer, &payload)
	if err != nil {
		envFail(c, err)
		return
	}
	envOK(c, "actualización registrada", acuse)
}

// RecibirPromocion registers an announced promoción.
//
// POST /exh_exhortos/promociones
func (h *ExchangeHandler) RecibirPromocion(c *gin.Context) {
	peer := peerFrom(c)
	if peer == nil {
		return
	}
	var payload wire.PromocionPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		envBadRequest(c, "payload inválido", err)
		return
	}
	p, _, err := h.Inbound.RecibirPromocion(c.Request.Context(), peer, &payload)
	if err != nil {
		envFail(c, err)
		return
	}
	envOK(c, "promoción registrada", gin.H{
		"folioSeguimiento":     payload.FolioSeguimiento,
		"folioOrigenPromocion": p.FolioOrigenPromocion,
	})
}

// RecibirPromocionArchivo stores one promoción archivo.
//
// POST /exh_exhortos/promociones/archivos (multipart: folioSeguimiento,
// folioOrigenPromocion, archivo)
func (h *ExchangeHandler) RecibirPromocionArchivo(c *gin.Context) {
	peer := peerFrom(c)
	if peer == nil {
		return
	}
	folio := c.PostForm("folioSeguimiento")
	folioOrigen := c.PostForm("folioOrigenPromocion")
	if folio == "" || folioOrigen == "" {
		envBadRequest(c, "faltan folioSeguimiento o folioOrigenPromocion", nil)
		return
	}
	nombre, data, ok := readArchivo(c)
	if !ok {
		return
	}
	out, err := h.Inbound.RecibirPromocionArchivo(c.Request.Context(), peer, folio, folioOrigen, nombre, data)
	if err != nil {
		envFail(c, err)
		return
	}
	envOK(c, "archivo recibido", out)
}

// peerFrom pulls the authenticated peer the API key middleware stored,
// aborting with the envelope shape when absent.
func peerFrom(c *gin.Context) *domain.Peer {
	peer := middleware.PeerFrom(c)
	if peer == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, wire.Envelope{
			Success: false,
			Message: "no autorizado",
			Errors:  []string{"X-Api-Key inválida"},
		})
		return nil
	}
	return peer
}

// readArchivo extracts the uploaded "archivo" part, enforcing the size cap.
func readArchivo(c *gin.Context) (string, []byte, bool) {
	fh, err := c.FormFile("archivo")
	if err != nil {
		envBadRequest(c, "falta el archivo", err)
		return "", nil, false
	}
	if fh.Size > maxArchivoBytes {
		envBadRequest(c, "archivo demasiado grande", nil)
		return "", nil, false
	}
	f, err := fh.Open()
	if err != nil {
		envBadRequest(c, "archivo ilegible", err)
		return "", nil, false
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxArchivoBytes+1))
	if err != nil || len(data) > maxArchivoBytes {
		envBadRequest(c, "archivo ilegible", err)
		return "", nil, false
	}
	return fh.Filename, data, true
}

// envOK writes a success envelope.
func envOK(c *gin.Context, message string, data any) {
	env, err := wire.NewEnvelope(message, data)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, wire.Envelope{
			Success: false,
			Message: "error interno",
			Errors:  []string{err.Error()},
		})
		return
	}
	c.JSON(http.StatusOK, env)
}

// envBadRequest writes a 400 envelope.
func envBadRequest(c *gin.Context, message string, cause error) {
	errs := []string{}
	if cause != nil {
		errs = append(errs, cause.Error())
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, wire.Envelope{
		Success: false,
		Message: message,
		Errors:  errs,
	})
}

// envFail maps service errors onto envelope responses.
func envFail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrHashMismatch):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrConflict), errors.Is(err, services.ErrDuplicate):
		status = http.StatusConflict
	case errors.Is(err, services.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}
	c.AbortWithStatusJSON(status, wire.Envelope{
		Success: false,
		Message: err.Error(),
		Errors:  []string{err.Error()},
	})
}

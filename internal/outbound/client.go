// Package outbound implements the HTTP client side of the interstate
// protocol: the five message flows sent to remote peers (exhorto, consulta,
// respuesta, actualización, promoción) plus the materias handshake.
//
// Every flow follows the same discipline: compose the payload, POST it with
// the peer's API key, then stream the announced archivos one at a time with
// a pause between uploads, and parse the acuse embedded in the response of
// the last upload. Failures are classified into exerr kinds so the task
// runner can decide whether to retry.
package outbound

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/justicia-digital/exhorto-interchange/internal/domain"
	"github.com/justicia-digital/exhorto-interchange/internal/exerr"
	"github.com/justicia-digital/exhorto-interchange/internal/wire"
)

// apiKeyHeader is the credential header of the protocol.
const apiKeyHeader = "X-Api-Key"

// FilePart is one archivo ready to upload: the announced filename and the
// exact bytes the hashes were computed over.
type FilePart struct {
	Nombre string
	Data   []byte
}

// Client talks to remote peers. It is safe for concurrent use.
type Client struct {
	http        *http.Client
	log         zerolog.Logger
	uploadPause time.Duration
	promoPause  time.Duration
}

// Options tunes a Client.
type Options struct {
	Timeout         time.Duration
	FileUploadPause time.Duration
	PromocionPause  time.Duration
	Logger          zerolog.Logger
}

// New builds a Client from options, applying defaults for zero values.
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		http:        &http.Client{Timeout: timeout},
		log:         opts.Logger,
		uploadPause: opts.FileUploadPause,
		promoPause:  opts.PromocionPause,
	}
}

// ConsultarMaterias asks a peer which materias it accepts.
func (c *Client) ConsultarMaterias(ctx context.Context, peer *domain.Peer) ([]wire.MateriaItem, error) {
	if peer.EndpointConsultarMaterias == "" {
		return nil, exerr.Wrapf(exerr.MissingConfiguration, "el externo %s no tiene endpoint para consultar materias", peer.Clave)
	}
	env, err := c.get(ctx, peer, peer.EndpointConsultarMaterias)
	if err != nil {
		return nil, err
	}
	var materias []wire.MateriaItem
	if err := json.Unmarshal(env.Data, &materias); err != nil {
		return nil, exerr.Wrapf(exerr.NotValidAnswer, "materias ilegibles de %s: %v", peer.Clave, err)
	}
	return materias, nil
}

// EnviarExhorto runs the full send flow: POST the payload, then upload each
// archivo in announced order with a pause in between. The acuse arrives in
// the response of the last upload. Returns the acuse plus its raw JSON for
// verbatim retention.
func (c *Client) EnviarExhorto(ctx context.Context, peer *domain.Peer, payload *wire.ExhortoPayload, archivos []FilePart) (*wire.ExhortoAcuse, json.RawMessage, error) {
	if peer.EndpointRecibirExhorto == "" || peer.EndpointRecibirExhortoArchivo == "" {
		return nil, nil, exerr.Wrapf(exerr.MissingConfiguration, "el externo %s no tiene endpoints para recibir exhortos", peer.Clave)
	}
	if len(archivos) == 0 {
		return nil, nil, exerr.Wrap(exerr.Empty, "el exhorto no tiene archivos que enviar")
	}

	if _, err := c.postJSON(ctx, peer, peer.EndpointRecibirExhorto, payload); err != nil {
		return nil, nil, err
	}

	fields := map[string]string{"exhortoOrigenId": payload.ExhortoOrigenID}
	var acuseRaw json.RawMessage
	for i, f := range archivos {
		c.pause(ctx, c.uploadPause, i)
		env, err := c.postFile(ctx, peer, peer.EndpointRecibirExhortoArchivo, fields, f)
		if err != nil {
			return nil, nil, err
		}
		var data wire.ExhortoArchivoUploadData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, nil, exerr.Wrapf(exerr.NotValidAnswer, "respuesta ilegible al subir %s: %v", f.Nombre, err)
		}
		if i == len(archivos)-1 {
			if data.Acuse == nil {
				return nil, nil, exerr.Wrap(exerr.NotValidAnswer, "el último archivo no regresó acuse")
			}
			if err := validarAcuseExhorto(data.Acuse, payload.ExhortoOrigenID); err != nil {
				return nil, nil, err
			}
			acuseRaw, _ = json.Marshal(data.Acuse)
			return data.Acuse, acuseRaw, nil
		}
	}
	return nil, nil, exerr.Wrap(exerr.NotValidAnswer, "el flujo de envío terminó sin acuse")
}

// ConsultarExhorto queries the destination for the current state of a sent
// exhorto by the folio de seguimiento its acuse assigned.
func (c *Client) ConsultarExhorto(ctx context.Context, peer *domain.Peer, folioSeguimiento string) (*wire.ExhortoConsulta, error) {
	if peer.EndpointConsultarExhorto == "" {
		return nil, exerr.Wrapf(exerr.MissingConfiguration, "el externo %s no tiene endpoint para consultar exhortos", peer.Clave)
	}
	env, err := c.get(ctx, peer, joinURL(peer.EndpointConsultarExhorto, folioSeguimiento))
	if err != nil {
		return nil, err
	}
	var consulta wire.ExhortoConsulta
	if err := json.Unmarshal(env.Data, &consulta); err != nil {
		return nil, exerr.Wrapf(exerr.NotValidAnswer, "consulta ilegible de %s: %v", peer.Clave, err)
	}
	return &consulta, nil
}

// EnviarRespuesta runs the respuesta flow against the origin peer.
func (c *Client) EnviarRespuesta(ctx context.Context, peer *domain.Peer, payload *wire.RespuestaPayload, archivos []FilePart) (*wire.RespuestaAcuse, json.RawMessage, error) {
	if peer.EndpointRecibirRespuestaExhorto == "" || peer.EndpointRecibirRespuestaExhortoArchivo == "" {
		return nil, nil, exerr.Wrapf(exerr.MissingConfiguration, "el externo %s no tiene endpoints para recibir respuestas", peer.Clave)
	}
	if len(archivos) == 0 {
		return nil, nil, exerr.Wrap(exerr.Empty, "la respuesta no tiene archivos que enviar")
	}

	if _, err := c.postJSON(ctx, peer, peer.EndpointRecibirRespuestaExhorto, payload); err != nil {
		return nil, nil, err
	}

	fields := map[string]string{
		"exhortoId":         payload.ExhortoID,
		"respuestaOrigenId": payload.RespuestaOrigenID,
	}
	for i, f := range archivos {
		c.pause(ctx, c.uploadPause, i)
		env, err := c.postFile(ctx, peer, peer.EndpointRecibirRespuestaExhortoArchivo, fields, f)
		if err != nil {
			return nil, nil, err
		}
		var data wire.RespuestaArchivoUploadData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, nil, exerr.Wrapf(exerr.NotValidAnswer, "respuesta ilegible al subir %s: %v", f.Nombre, err)
		}
		if i == len(archivos)-1 {
			if data.Acuse == nil {
				return nil, nil, exerr.Wrap(exerr.NotValidAnswer, "el último archivo no regresó acuse")
			}
			raw, _ := json.Marshal(data.Acuse)
			return data.Acuse, raw, nil
		}
	}
	return nil, nil, exerr.Wrap(exerr.NotValidAnswer, "el flujo de respuesta terminó sin acuse")
}

// EnviarActualizacion sends a change notice; no archivos travel in this flow.
func (c *Client) EnviarActualizacion(ctx context.Context, peer *domain.Peer, payload *wire.ActualizacionPayload) (*wire.ActualizacionAcuse, json.RawMessage, error) {
	if peer.EndpointActualizarExhorto == "" {
		return nil, nil, exerr.Wrapf(exerr.MissingConfiguration, "el externo %s no tiene endpoint para actualizaciones", peer.Clave)
	}
	env, err := c.postJSON(ctx, peer, peer.EndpointActualizarExhorto, payload)
	if err != nil {
		return nil, nil, err
	}
	var acuse wire.ActualizacionAcuse
	if err := json.Unmarshal(env.Data, &acuse); err != nil {
		return nil, nil, exerr.Wrapf(exerr.NotValidAnswer, "acuse ilegible de %s: %v", peer.Clave, err)
	}
	raw, _ := json.Marshal(&acuse)
	return &acuse, raw, nil
}

// EnviarPromocion runs the promoción flow, addressed by folio de
// seguimiento. Promoción uploads use their own, shorter pause.
func (c *Client) EnviarPromocion(ctx context.Context, peer *domain.Peer, payload *wire.PromocionPayload, archivos []FilePart) (*wire.PromocionAcuse, json.RawMessage, error) {
	if peer.EndpointRecibirPromocion == "" || peer.EndpointRecibirPromocionArchivo == "" {
		return nil, nil, exerr.Wrapf(exerr.MissingConfiguration, "el externo %s no tiene endpoints para recibir promociones", peer.Clave)
	}
	if len(archivos) == 0 {
		return nil, nil, exerr.Wrap(exerr.Empty, "la promoción no tiene archivos que enviar")
	}

	if _, err := c.postJSON(ctx, peer, peer.EndpointRecibirPromocion, payload); err != nil {
		return nil, nil, err
	}

	fields := map[string]string{
		"folioSeguimiento":     payload.FolioSeguimiento,
		"folioOrigenPromocion": payload.FolioOrigenPromocion,
	}
	for i, f := range archivos {
		c.pause(ctx, c.promoPause, i)
		env, err := c.postFile(ctx, peer, peer.EndpointRecibirPromocionArchivo, fields, f)
		if err != nil {
			return nil, nil, err
		}
		var data wire.PromocionArchivoUploadData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, nil, exerr.Wrapf(exerr.NotValidAnswer, "respuesta ilegible al subir %s: %v", f.Nombre, err)
		}
		if i == len(archivos)-1 {
			if data.Acuse == nil {
				return nil, nil, exerr.Wrap(exerr.NotValidAnswer, "el último archivo no regresó acuse")
			}
			raw, _ := json.Marshal(data.Acuse)
			return data.Acuse, raw, nil
		}
	}
	return nil, nil, exerr.Wrap(exerr.NotValidAnswer, "el flujo de promoción terminó sin acuse")
}

// validarAcuseExhorto enforces the acuse contract: the echoed origin id must
// match and the destination must have assigned a folio and a receipt time.
func validarAcuseExhorto(acuse *wire.ExhortoAcuse, exhortoOrigenID string) error {
	if acuse.ExhortoOrigenID != exhortoOrigenID {
		return exerr.Wrapf(exerr.NotValidAnswer,
			"el acuse regresó exhortoOrigenId %q, se esperaba %q", acuse.ExhortoOrigenID, exhortoOrigenID)
	}
	if acuse.FolioSeguimiento == "" {
		return exerr.Wrap(exerr.NotValidAnswer, "el acuse no trae folioSeguimiento")
	}
	if acuse.FechaHoraRecepcion.IsZero() {
		return exerr.Wrap(exerr.NotValidAnswer, "el acuse no trae fechaHoraRecepcion")
	}
	return nil
}

// pause sleeps between uploads, skipping the first, honoring ctx.
func (c *Client) pause(ctx context.Context, d time.Duration, index int) {
	if index == 0 || d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// get performs an authenticated GET and decodes the envelope.
func (c *Client) get(ctx context.Context, peer *domain.Peer, url string) (*wire.Envelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, exerr.Wrapf(exerr.NotValidParam, "URL inválida %q: %v", url, err)
	}
	req.Header.Set(apiKeyHeader, peer.APIKey)
	return c.do(req, peer)
}

// postJSON performs an authenticated JSON POST and decodes the envelope.
func (c *Client) postJSON(ctx context.Context, peer *domain.Peer, url string, payload any) (*wire.Envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, exerr.Wrapf(exerr.NotValidParam, "payload no serializable: %v", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, exerr.Wrapf(exerr.NotValidParam, "URL inválida %q: %v", url, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apiKeyHeader, peer.APIKey)
	return c.do(req, peer)
}

// postFile performs an authenticated multipart POST with form fields plus
// one "archivo" part and decodes the envelope.
func (c *Client) postFile(ctx context.Context, peer *domain.Peer, url string, fields map[string]string, f FilePart) (*wire.Envelope, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, exerr.Wrapf(exerr.NotValidParam, "campo %s: %v", k, err)
		}
	}
	part, err := mw.CreateFormFile("archivo", f.Nombre)
	if err != nil {
		return nil, exerr.Wrapf(exerr.NotValidParam, "archivo %s: %v", f.Nombre, err)
	}
	if _, err := part.Write(f.Data); err != nil {
		return nil, exerr.Wrapf(exerr.NotValidParam, "archivo %s: %v", f.Nombre, err)
	}
	if err := mw.Close(); err != nil {
		return nil, exerr.Wrapf(exerr.NotValidParam, "archivo %s: %v", f.Nombre, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, exerr.Wrapf(exerr.NotValidParam, "URL inválida %q: %v", url, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(apiKeyHeader, peer.APIKey)
	return c.do(req, peer)
}

// do executes the request and enforces the envelope contract. Transport
// failures and non-2xx statuses are Connection (retriable); contract
// violations are NotValidAnswer.
func (c *Client) do(req *http.Request, peer *domain.Peer) (*wire.Envelope, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("peer", peer.Clave).Str("url", req.URL.String()).Msg("peer request failed")
		observePeerRequest(peer.Clave, outcomeConnection, time.Since(start))
		return nil, exerr.Wrapf(exerr.Connection, "falla de conexión con %s: %v", peer.Clave, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		observePeerRequest(peer.Clave, outcomeConnection, time.Since(start))
		return nil, exerr.Wrapf(exerr.Connection, "falla al leer la respuesta de %s: %v", peer.Clave, err)
	}

	c.log.Debug().
		Str("peer", peer.Clave).
		Str("url", req.URL.String()).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("peer request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		observePeerRequest(peer.Clave, outcomeConnection, time.Since(start))
		return nil, exerr.Wrapf(exerr.Connection, "%s respondió HTTP %d", peer.Clave, resp.StatusCode)
	}

	var env wire.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		observePeerRequest(peer.Clave, outcomeInvalidAnswer, time.Since(start))
		return nil, exerr.Wrapf(exerr.NotValidAnswer, "respuesta ilegible de %s: %v", peer.Clave, err)
	}
	if !env.Valid() {
		observePeerRequest(peer.Clave, outcomeInvalidAnswer, time.Since(start))
		return nil, exerr.Wrapf(exerr.NotValidAnswer, "respuesta de %s fuera de contrato", peer.Clave)
	}
	if !env.Success {
		observePeerRequest(peer.Clave, outcomeInvalidAnswer, time.Since(start))
		return nil, exerr.Wrapf(exerr.NotValidAnswer, "%s regresó success=false: %s", peer.Clave, env.Message)
	}
	observePeerRequest(peer.Clave, outcomeOK, time.Since(start))
	return &env, nil
}

// joinURL appends a path segment, tolerating a trailing slash on base.
func joinURL(base, segment string) string {
	if len(base) > 0 && base[len(base)-1] == '/' {
		return base + segment
	}
	return fmt.Sprintf("%s/%s", base, segment)
}

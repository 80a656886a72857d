package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/justicia-digital/exhorto-interchange/internal/config"
	"github.com/justicia-digital/exhorto-interchange/internal/domain"
	"github.com/justicia-digital/exhorto-interchange/internal/exerr"
	"github.com/justicia-digital/exhorto-interchange/internal/outbound"
	"github.com/justicia-digital/exhorto-interchange/internal/repo"
	"github.com/justicia-digital/exhorto-interchange/internal/storage"
	"github.com/justicia-digital/exhorto-interchange/internal/wire"
)

// OutboundService implements the delivery jobs the task runner executes:
// sending exhortos, respuestas, actualizaciones and promociones, querying
// remote exhortos, and the materias handshake. Every attempt, successful or
// not, leaves an audit entry with the raw payload or failure.
type OutboundService struct {
	db     *gorm.DB
	client *outbound.Client
	store  storage.BlobStore
	cfg    config.InterchangeConfig
	log    zerolog.Logger
	tz     *time.Location
}

// NewOutboundService builds an OutboundService.
func NewOutboundService(db *gorm.DB, client *outbound.Client, store storage.BlobStore, cfg config.InterchangeConfig, log zerolog.Logger) *OutboundService {
	tz, err := time.LoadLocation(cfg.LocalTimezone)
	if err != nil {
		tz = time.UTC
	}
	return &OutboundService{db: db, client: client, store: store, cfg: cfg, log: log, tz: tz}
}

// EnviarExhorto delivers a POR ENVIAR exhorto to its destination peer. On a
// retriable failure the attempt is counted and the exhorto stays POR ENVIAR
// until the attempt budget runs out, when it moves to INTENTOS AGOTADOS.
func (s *OutboundService) EnviarExhorto(ctx context.Context, exhortoID string) error {
	e, err := repo.GetExhorto(ctx, s.db, exhortoID)
	if err != nil {
		return fmt.Errorf("exhorto %s: %w", exhortoID, err)
	}
	if e.Remitente != domain.RemitenteInterno || e.Estado != domain.EstadoPorEnviar {
		return fmt.Errorf("%w: el exhorto %s está %s", ErrConflict, exhortoID, e.Estado)
	}

	peer, destino, err := s.peerDestino(ctx, e)
	if err != nil {
		return err
	}
	payload := s.composeExhortoPayload(e, destino)
	files, err := s.fetchFiles(ctx, exhortoArchivos(e.Archivos))
	if err != nil {
		return err
	}

	sent, _ := json.Marshal(payload)
	acuse, acuseRaw, err := s.client.EnviarExhorto(ctx, peer, payload, files)
	if err != nil {
		return s.registrarFalla(ctx, e, string(sent), err)
	}

	recepcion := acuse.FechaHoraRecepcion.UTC()
	extra := map[string]any{
		"folio_seguimiento":          acuse.FolioSeguimiento,
		"acuse_fecha_hora_recepcion": recepcion,
		"paquete_enviado":            string(sent),
		"acuse_recibido":             string(acuseRaw),
	}
	if acuse.MunicipioAreaRecibeID != nil {
		extra["acuse_municipio_area_recibe_id"] = *acuse.MunicipioAreaRecibeID
	}
	if acuse.AreaRecibeID != nil {
		extra["acuse_area_recibe_id"] = *acuse.AreaRecibeID
	}
	if acuse.AreaRecibeNombre != nil {
		extra["acuse_area_recibe_nombre"] = *acuse.AreaRecibeNombre
	}
	if acuse.URLInfo != nil {
		extra["acuse_url_info"] = *acuse.URLInfo
	}
	to, err := domain.NextExhortoState(e.Estado, domain.EventoEnvioExitoso)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	if err := repo.UpdateExhortoEstado(ctx, s.db, e.ID, e.Estado, to, extra); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s.audit(ctx, domain.EntidadExhorto, e.ID, domain.EventoEnvioExitoso, e.Estado, to, string(acuseRaw))
	s.log.Info().
		Str("exhorto_id", e.ID).
		Str("folio_seguimiento", acuse.FolioSeguimiento).
		Str("peer", peer.Clave).
		Msg("exhorto entregado con acuse")
	return nil
}

// ConsultarExhorto queries the destination for a sent exhorto by the folio
// de seguimiento its acuse assigned, records the answer in the audit trail,
// and refreshes the turnado assignment.
func (s *OutboundService) ConsultarExhorto(ctx context.Context, exhortoID string) error {
	e, err := repo.GetExhorto(ctx, s.db, exhortoID)
	if err != nil {
		return fmt.Errorf("exhorto %s: %w", exhortoID, err)
	}
	if e.Remitente != domain.RemitenteInterno {
		return fmt.Errorf("%w: el exhorto %s no es interno", ErrConflict, exhortoID)
	}
	peer, _, err := s.peerDestino(ctx, e)
	if err != nil {
		return err
	}

	if e.FolioSeguimiento == nil {
		return fmt.Errorf("%w: el exhorto %s aún no tiene folio de seguimiento", ErrConflict, exhortoID)
	}

	consulta, err := s.client.ConsultarExhorto(ctx, peer, *e.FolioSeguimiento)
	if err != nil {
		s.audit(ctx, domain.EntidadExhorto, e.ID, "consulta_fallida", "", "", err.Error())
		return err
	}
	raw, _ := json.Marshal(consulta)
	s.audit(ctx, domain.EntidadExhorto, e.ID, "consulta", "", consulta.Estado, string(raw))

	if consulta.AreaTurnadoID != "" || consulta.AreaTurnadoNombre != "" {
		err := s.db.WithContext(ctx).Model(&domain.Exhorto{}).
			Where("id = ?", e.ID).
			Updates(map[string]any{
				"area_turnado_id":     consulta.AreaTurnadoID,
				"area_turnado_nombre": consulta.AreaTurnadoNombre,
			}).Error
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return nil
}

// EnviarRespuesta delivers a drafted respuesta back to the origin peer. A
// successful acuse also concludes the exhorto into CONTESTADO.
func (s *OutboundService) EnviarRespuesta(ctx context.Context, respuestaID string) error {
	r, err := repo.GetRespuesta(ctx, s.db, respuestaID)
	if err != nil {
		return fmt.Errorf("respuesta %s: %w", respuestaID, err)
	}
	if r.Remitente != domain.RemitenteInterno || r.Estado != domain.EstadoPorEnviar {
		return fmt.Errorf("%w: la respuesta %s está %s", ErrConflict, respuestaID, r.Estado)
	}
	e, err := repo.GetExhorto(ctx, s.db, r.ExhortoID)
	if err != nil {
		return fmt.Errorf("exhorto %s: %w", r.ExhortoID, err)
	}
	peer, err := s.peerOrigen(ctx, e)
	if err != nil {
		return err
	}

	payload := &wire.RespuestaPayload{
		ExhortoID:          e.ExhortoOrigenID,
		RespuestaOrigenID:  r.RespuestaOrigenID,
		MunicipioTurnadoID: r.MunicipioTurnadoID,
		AreaTurnadoID:      r.AreaTurnadoID,
		AreaTurnadoNombre:  r.AreaTurnadoNombre,
		NumeroExhorto:      r.NumeroExhorto,
		TipoDiligenciado:   r.TipoDiligenciado,
		Observaciones:      r.Observaciones,
		Archivos:           archivosToWireAll(r.Archivos),
		Videos:             videosToWire(r.Videos),
	}
	files, err := s.fetchFiles(ctx, r.Archivos)
	if err != nil {
		return err
	}

	acuse, acuseRaw, err := s.client.EnviarRespuesta(ctx, peer, payload, files)
	if err != nil {
		return s.fallaDeFiling(ctx, domain.EntidadRespuesta, r.ID, r.Estado, err, func(to string) error {
			return repo.UpdateRespuestaEstado(ctx, s.db, r.ID, r.Estado, to, nil)
		})
	}

	recepcion := acuse.FechaHoraRecepcion.UTC()
	if err := repo.UpdateRespuestaEstado(ctx, s.db, r.ID, r.Estado, domain.EstadoEnviado,
		map[string]any{"fecha_hora_recepcion": recepcion}); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s.audit(ctx, domain.EntidadRespuesta, r.ID, domain.EventoEnvioExitoso, domain.EstadoPorEnviar, domain.EstadoEnviado, string(acuseRaw))

	if to, terr := domain.NextExhortoState(e.Estado, domain.EventoResponderExitoso); terr == nil {
		if uerr := repo.UpdateExhortoEstado(ctx, s.db, e.ID, e.Estado, to, nil); uerr != nil && !errors.Is(uerr, repo.ErrStale) {
			return fmt.Errorf("%w: %v", ErrUnavailable, uerr)
		}
		s.audit(ctx, domain.EntidadExhorto, e.ID, domain.EventoResponderExitoso, e.Estado, to, r.RespuestaOrigenID)
	}
	s.log.Info().
		Str("respuesta_id", r.ID).
		Str("exhorto_id", e.ID).
		Str("peer", peer.Clave).
		Msg("respuesta entregada con acuse")
	return nil
}

// EnviarActualizacion delivers a drafted change notice.
func (s *OutboundService) EnviarActualizacion(ctx context.Context, actualizacionID string) error {
	a, err := repo.GetActualizacion(ctx, s.db, actualizacionID)
	if err != nil {
		return fmt.Errorf("actualización %s: %w", actualizacionID, err)
	}
	if a.Remitente != domain.RemitenteInterno || a.Estado != domain.EstadoPorEnviar {
		return fmt.Errorf("%w: la actualización %s está %s", ErrConflict, actualizacionID, a.Estado)
	}
	e, err := repo.GetExhorto(ctx, s.db, a.ExhortoID)
	if err != nil {
		return fmt.Errorf("exhorto %s: %w", a.ExhortoID, err)
	}
	peer, err := s.peerContraparte(ctx, e)
	if err != nil {
		return err
	}

	payload := &wire.ActualizacionPayload{
		ExhortoID:             e.ExhortoOrigenID,
		ActualizacionOrigenID: a.ActualizacionOrigenID,
		TipoActualizacion:     a.TipoActualizacion,
		FechaHora:             wire.NewDateTime(a.FechaHora.In(s.tz)),
		Descripcion:           a.Descripcion,
	}
	_, acuseRaw, err := s.client.EnviarActualizacion(ctx, peer, payload)
	if err != nil {
		return s.fallaDeFiling(ctx, domain.EntidadActualizacion, a.ID, a.Estado, err, func(to string) error {
			return repo.UpdateActualizacionEstado(ctx, s.db, a.ID, a.Estado, to)
		})
	}
	if err := repo.UpdateActualizacionEstado(ctx, s.db, a.ID, a.Estado, domain.EstadoEnviado); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s.audit(ctx, domain.EntidadActualizacion, a.ID, domain.EventoEnvioExitoso, domain.EstadoPorEnviar, domain.EstadoEnviado, string(acuseRaw))
	return nil
}

// EnviarPromocion delivers a drafted promoción, addressed by the folio de
// seguimiento the counterpart assigned.
func (s *OutboundService) EnviarPromocion(ctx context.Context, promocionID string) error {
	p, err := repo.GetPromocion(ctx, s.db, promocionID)
	if err != nil {
		return fmt.Errorf("promoción %s: %w", promocionID, err)
	}
	if p.Remitente != domain.RemitenteInterno || p.Estado != domain.EstadoPorEnviar {
		return fmt.Errorf("%w: la promoción %s está %s", ErrConflict, promocionID, p.Estado)
	}
	e, err := repo.GetExhorto(ctx, s.db, p.ExhortoID)
	if err != nil {
		return fmt.Errorf("exhorto %s: %w", p.ExhortoID, err)
	}
	if e.FolioSeguimiento == nil {
		return fmt.Errorf("%w: el exhorto %s no tiene folio de seguimiento", ErrConflict, e.ID)
	}
	peer, err := s.peerContraparte(ctx, e)
	if err != nil {
		return err
	}

	payload := &wire.PromocionPayload{
		FolioSeguimiento:     *e.FolioSeguimiento,
		FolioOrigenPromocion: p.FolioOrigenPromocion,
		Promoventes:          partesToWire(p.Promoventes),
		Fojas:                p.Fojas,
		Observaciones:        p.Observaciones,
		Archivos:             archivosToWireAll(p.Archivos),
	}
	if p.FechaOrigen != nil {
		dt := wire.NewDateTime(p.FechaOrigen.In(s.tz))
		payload.FechaOrigen = &dt
	}
	files, err := s.fetchFiles(ctx, p.Archivos)
	if err != nil {
		return err
	}

	acuse, acuseRaw, err := s.client.EnviarPromocion(ctx, peer, payload, files)
	if err != nil {
		return s.fallaDeFiling(ctx, domain.EntidadPromocion, p.ID, p.Estado, err, func(to string) error {
			return repo.UpdatePromocionEstado(ctx, s.db, p.ID, p.Estado, to, nil)
		})
	}
	recepcion := acuse.FechaHoraRecepcion.UTC()
	if err := repo.UpdatePromocionEstado(ctx, s.db, p.ID, p.Estado, domain.EstadoEnviado, map[string]any{
		"folio_promocion_recibida": acuse.FolioPromocionRecibida,
		"fecha_hora_recepcion":     recepcion,
	}); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s.audit(ctx, domain.EntidadPromocion, p.ID, domain.EventoEnvioExitoso, domain.EstadoPorEnviar, domain.EstadoEnviado, string(acuseRaw))
	return nil
}

// ConsultarMaterias refreshes the cached materias of a peer identified by
// its registry clave.
func (s *OutboundService) ConsultarMaterias(ctx context.Context, estadoClave string) error {
	peer, err := repo.GetPeerByEstadoClave(ctx, s.db, estadoClave)
	if err != nil {
		return fmt.Errorf("externo del estado %s: %w", estadoClave, err)
	}
	materias, err := s.client.ConsultarMaterias(ctx, peer)
	if err != nil {
		return err
	}
	raw, _ := json.Marshal(materias)
	if err := repo.UpdatePeerMaterias(ctx, s.db, peer.ID, string(raw)); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s.log.Info().Str("peer", peer.Clave).Int("materias", len(materias)).Msg("materias del externo actualizadas")
	return nil
}

// EncolarPorEnviar scans exhortos stuck in POR ENVIAR whose retry delay has
// elapsed and enqueues a send for each; the cron scheduler calls this.
func (s *OutboundService) EncolarPorEnviar(ctx context.Context) (int, error) {
	ids, err := repo.ListExhortosPorEnviar(ctx, s.db, time.Now().UTC(), s.cfg.RetryDelay)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	enqueued := 0
	for _, id := range ids {
		if _, created, err := repo.EnqueueTask(ctx, s.db, domain.ComandoEnviarExhorto, id); err != nil {
			s.log.Error().Err(err).Str("exhorto_id", id).Msg("no se pudo encolar el reenvío")
		} else if created {
			enqueued++
		}
	}
	return enqueued, nil
}

// Failure kinds stamped in por_enviar_error_anterior by registrarFalla.
const (
	fallaConexion          = "CONEXION"
	fallaRespuestaInvalida = "RESPUESTA INVALIDA"
)

// registrarFalla books one failed send attempt. Transport failures keep the
// exhorto in POR ENVIAR until the budget is spent. A malformed peer answer
// is retried at most once: a second one in a row gives the send up even with
// attempts to spare. Fatal failures only leave the audit entry.
func (s *OutboundService) registrarFalla(ctx context.Context, e *domain.Exhorto, sent string, cause error) error {
	s.audit(ctx, domain.EntidadExhorto, e.ID, "envio_fallido", e.Estado, e.Estado,
		fmt.Sprintf("intento %d: %v", e.PorEnviarIntentos+1, cause))
	if !exerr.Retriable(cause) {
		return cause
	}
	kind := fallaConexion
	if errors.Is(cause, exerr.NotValidAnswer) {
		kind = fallaRespuestaInvalida
	}
	attempts, err := repo.RegisterSendFailure(ctx, s.db, e.ID, time.Now().UTC(), kind)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	switch {
	case kind == fallaRespuestaInvalida && e.PorEnviarErrorAnterior == fallaRespuestaInvalida:
		return s.agotarEnvios(ctx, e, sent, cause, "respuesta inválida por segunda vez consecutiva")
	case attempts >= s.cfg.MaxSendAttempts:
		return s.agotarEnvios(ctx, e, sent, cause, fmt.Sprintf("se agotaron %d intentos", attempts))
	}
	return cause
}

// agotarEnvios moves the exhorto to INTENTOS AGOTADOS, keeping the last
// outgoing package for traceability.
func (s *OutboundService) agotarEnvios(ctx context.Context, e *domain.Exhorto, sent string, cause error, detail string) error {
	to, terr := domain.NextExhortoState(e.Estado, domain.EventoIntentosAgotados)
	if terr != nil {
		return cause
	}
	if uerr := repo.UpdateExhortoEstado(ctx, s.db, e.ID, e.Estado, to, map[string]any{"paquete_enviado": sent}); uerr != nil && !errors.Is(uerr, repo.ErrStale) {
		return fmt.Errorf("%w: %v", ErrUnavailable, uerr)
	}
	s.audit(ctx, domain.EntidadExhorto, e.ID, domain.EventoIntentosAgotados, e.Estado, to, detail)
	s.log.Warn().Str("exhorto_id", e.ID).Str("detalle", detail).Msg("intentos de envío agotados")
	return cause
}

// fallaDeFiling books a failed filing delivery, moving it to RECHAZADO.
func (s *OutboundService) fallaDeFiling(ctx context.Context, kind, id, from string, cause error, update func(to string) error) error {
	to, terr := domain.NextFilingState(from, domain.EventoEnvioFallido)
	if terr == nil {
		if uerr := update(to); uerr != nil && !errors.Is(uerr, repo.ErrStale) {
			s.log.Error().Err(uerr).Str("entity_id", id).Msg("no se pudo marcar el trámite como rechazado")
		}
	}
	s.audit(ctx, kind, id, "envio_fallido", from, to, cause.Error())
	return cause
}

// peerDestino resolves the destination municipio and its registered peer for
// an internal exhorto.
func (s *OutboundService) peerDestino(ctx context.Context, e *domain.Exhorto) (*domain.Peer, *domain.Municipio, error) {
	destino, err := repo.GetMunicipio(ctx, s.db, e.MunicipioDestinoID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: municipio de destino %d", ErrNotFound, e.MunicipioDestinoID)
	}
	peer, err := repo.GetPeerByEstadoClave(ctx, s.db, destino.Estado.Clave)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: no hay externo registrado para el estado %s", ErrNotFound, destino.Estado.Clave)
	}
	return peer, destino, nil
}

// peerOrigen resolves the origin peer of a received exhorto.
func (s *OutboundService) peerOrigen(ctx context.Context, e *domain.Exhorto) (*domain.Peer, error) {
	peer, err := repo.GetPeerByEstadoClave(ctx, s.db, e.MunicipioOrigen.Estado.Clave)
	if err != nil {
		return nil, fmt.Errorf("%w: no hay externo registrado para el estado %s", ErrNotFound, e.MunicipioOrigen.Estado.Clave)
	}
	return peer, nil
}

// peerContraparte resolves whichever peer sits on the other end of the
// exhorto, per its sentido relative to this estado.
func (s *OutboundService) peerContraparte(ctx context.Context, e *domain.Exhorto) (*domain.Peer, error) {
	if e.Sentido(s.cfg.EstadoClave) == domain.SentidoOrigenADestino {
		peer, _, err := s.peerDestino(ctx, e)
		return peer, err
	}
	return s.peerOrigen(ctx, e)
}

// composeExhortoPayload rebuilds the wire payload from the aggregate,
// translating internal municipio ids back to INEGI claves.
func (s *OutboundService) composeExhortoPayload(e *domain.Exhorto, destino *domain.Municipio) *wire.ExhortoPayload {
	payload := &wire.ExhortoPayload{
		ExhortoOrigenID:          e.ExhortoOrigenID,
		MunicipioDestinoID:       atoiClave(destino.Clave),
		MateriaClave:             e.MateriaClave,
		EstadoOrigenID:           atoiClave(e.MunicipioOrigen.Estado.Clave),
		MunicipioOrigenID:        atoiClave(e.MunicipioOrigen.Clave),
		JuzgadoOrigenID:          e.JuzgadoOrigenID,
		JuzgadoOrigenNombre:      e.JuzgadoOrigenNombre,
		NumeroExpedienteOrigen:   e.NumeroExpedienteOrigen,
		NumeroOficioOrigen:       e.NumeroOficioOrigen,
		TipoJuicioAsuntoDelitos:  e.TipoJuicioAsuntoDelitos,
		JuezExhortante:           e.JuezExhortante,
		Partes:                   partesToWire(exhortoPartes(e.Partes)),
		Fojas:                    e.Fojas,
		DiasResponder:            e.DiasResponder,
		TipoDiligenciacionNombre: e.TipoDiligenciacionNombre,
		Observaciones:            e.Observaciones,
		Archivos:                 archivosToWire(e.Archivos),
	}
	if e.FechaOrigen != nil {
		dt := wire.NewDateTime(e.FechaOrigen.In(s.tz))
		payload.FechaOrigen = &dt
	}
	return payload
}

// fetchFiles pulls the bytes of every archivo from blob storage in announced
// order.
func (s *OutboundService) fetchFiles(ctx context.Context, archivos []domain.Archivo) ([]outbound.FilePart, error) {
	out := make([]outbound.FilePart, 0, len(archivos))
	for _, a := range archivos {
		if a.URL == "" {
			return nil, fmt.Errorf("%w: el archivo %q no tiene contenido en almacenamiento", ErrValidation, a.NombreArchivo)
		}
		data, err := s.store.Fetch(ctx, a.URL)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		out = append(out, outbound.FilePart{Nombre: a.NombreArchivo, Data: data})
	}
	return out, nil
}

func (s *OutboundService) audit(ctx context.Context, kind, id, event, from, to, detail string) {
	entry := &domain.AuditEntry{
		Actor:      ActorSistema,
		EntityKind: kind,
		EntityID:   id,
		Event:      event,
		FromState:  from,
		ToState:    to,
		Detail:     detail,
	}
	if err := repo.AppendAudit(ctx, s.db, entry); err != nil {
		s.log.Error().Err(err).Str("entity_id", id).Str("event", event).Msg("no se pudo escribir la auditoría")
	}
}

// exhortoArchivos filters out respuesta and promoción attachments from the
// preloaded collection.
func exhortoArchivos(in []domain.Archivo) []domain.Archivo {
	out := make([]domain.Archivo, 0, len(in))
	for _, a := range in {
		if a.EsRespuesta || a.PromocionID != nil {
			continue
		}
		out = append(out, a)
	}
	return out
}

// archivosToWireAll maps archivos to the wire without scope filtering.
func archivosToWireAll(in []domain.Archivo) []wire.ArchivoPayload {
	out := make([]wire.ArchivoPayload, 0, len(in))
	for _, a := range in {
		out = append(out, wire.ArchivoPayload{
			NombreArchivo: a.NombreArchivo,
			HashSha1:      a.HashSha1,
			HashSha256:    a.HashSha256,
			TipoDocumento: a.TipoDocumento,
		})
	}
	return out
}

func videosToWire(in []domain.Video) []wire.VideoPayload {
	out := make([]wire.VideoPayload, 0, len(in))
	for _, v := range in {
		wv := wire.VideoPayload{
			Titulo:      v.Titulo,
			Descripcion: v.Descripcion,
			URLAcceso:   v.URLAcceso,
		}
		if v.Fecha != nil {
			wd := wire.NewDate(*v.Fecha)
			wv.Fecha = &wd
		}
		out = append(out, wv)
	}
	return out
}

package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/justicia-digital/exhorto-interchange/internal/config"
	"github.com/justicia-digital/exhorto-interchange/internal/domain"
	"github.com/justicia-digital/exhorto-interchange/internal/identifier"
	"github.com/justicia-digital/exhorto-interchange/internal/repo"
	"github.com/justicia-digital/exhorto-interchange/internal/storage"
	"github.com/justicia-digital/exhorto-interchange/internal/wire"
)

// InboundService implements the receiving half of the protocol: everything a
// remote peer can do to this engine. Duplicate submissions keyed on the
// sender-assigned id are idempotent replays, never errors.
type InboundService struct {
	db      *gorm.DB
	store   storage.BlobStore
	cfg     config.InterchangeConfig
	buckets config.StorageConfig
	log     zerolog.Logger
	tz      *time.Location
}

// NewInboundService builds an InboundService. The timezone must be the
// already validated cfg.LocalTimezone.
func NewInboundService(db *gorm.DB, store storage.BlobStore, cfg config.InterchangeConfig, buckets config.StorageConfig, log zerolog.Logger) *InboundService {
	tz, err := time.LoadLocation(cfg.LocalTimezone)
	if err != nil {
		tz = time.UTC
	}
	return &InboundService{db: db, store: store, cfg: cfg, buckets: buckets, log: log, tz: tz}
}

// Materias returns the materias this peer accepts, for the handshake.
func (s *InboundService) Materias(ctx context.Context) ([]wire.MateriaItem, error) {
	materias, err := repo.ListMaterias(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	out := make([]wire.MateriaItem, 0, len(materias))
	for _, m := range materias {
		out = append(out, wire.MateriaItem{Clave: m.Clave, Nombre: m.Nombre})
	}
	return out, nil
}

// RecibirExhorto registers an announced exhorto from a peer. The mirror is
// born in PENDIENTE with its folio de seguimiento already assigned; the
// acuse is withheld until the last archivo is verified. A resubmission of
// the same exhortoOrigenId replays the existing record while the upload is
// still open; once accepted the announcement is a duplicate.
func (s *InboundService) RecibirExhorto(ctx context.Context, peer *domain.Peer, payload *wire.ExhortoPayload) (*domain.Exhorto, bool, error) {
	if existing, err := repo.GetExhortoByOrigenID(ctx, s.db, payload.ExhortoOrigenID); err == nil {
		if existing.Remitente != domain.RemitenteExterno {
			return nil, false, fmt.Errorf("%w: exhortoOrigenId %q choca con un exhorto interno", ErrDuplicate, payload.ExhortoOrigenID)
		}
		if existing.Estado != domain.EstadoPendiente {
			return nil, false, fmt.Errorf("%w: el exhorto %q ya fue recibido", ErrDuplicate, payload.ExhortoOrigenID)
		}
		return existing, false, nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if claveEstado(payload.EstadoOrigenID) != peer.Estado.Clave {
		return nil, false, fmt.Errorf("%w: estadoOrigenId %d no corresponde al externo %s", ErrValidation, payload.EstadoOrigenID, peer.Clave)
	}

	localEstado, err := repo.GetEstadoByClave(ctx, s.db, s.cfg.EstadoClave)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	destino, err := repo.GetMunicipioByClave(ctx, s.db, localEstado.ID, repo.ClaveMunicipio(payload.MunicipioDestinoID))
	if err != nil {
		return nil, false, fmt.Errorf("%w: municipioDestinoId %d no existe en este estado", ErrValidation, payload.MunicipioDestinoID)
	}
	origen, err := repo.GetMunicipioByClave(ctx, s.db, peer.EstadoID, repo.ClaveMunicipio(payload.MunicipioOrigenID))
	if err != nil {
		return nil, false, fmt.Errorf("%w: municipioOrigenId %d no existe en el estado de origen", ErrValidation, payload.MunicipioOrigenID)
	}
	materia, err := repo.GetMateriaByClave(ctx, s.db, payload.MateriaClave)
	if err != nil {
		return nil, false, fmt.Errorf("%w: materia %q no aceptada", ErrValidation, payload.MateriaClave)
	}

	folio := identifier.NewFolio()
	e := &domain.Exhorto{
		ExhortoOrigenID:          payload.ExhortoOrigenID,
		FolioSeguimiento:         &folio,
		MunicipioOrigenID:        origen.ID,
		MunicipioDestinoID:       destino.ID,
		MateriaClave:             materia.Clave,
		MateriaNombre:            materia.Nombre,
		JuzgadoOrigenID:          payload.JuzgadoOrigenID,
		JuzgadoOrigenNombre:      payload.JuzgadoOrigenNombre,
		NumeroExpedienteOrigen:   payload.NumeroExpedienteOrigen,
		NumeroOficioOrigen:       payload.NumeroOficioOrigen,
		TipoJuicioAsuntoDelitos:  payload.TipoJuicioAsuntoDelitos,
		JuezExhortante:           payload.JuezExhortante,
		Fojas:                    payload.Fojas,
		DiasResponder:            payload.DiasResponder,
		TipoDiligenciacionNombre: payload.TipoDiligenciacionNombre,
		Observaciones:            payload.Observaciones,
		Remitente:                domain.RemitenteExterno,
		Estado:                   domain.EstadoPendiente,
		Partes:                   partesFromWire(payload.Partes),
		Archivos:                 archivosFromWire(payload.Archivos, false),
	}
	if payload.FechaOrigen != nil {
		t := payload.FechaOrigen.Time
		e.FechaOrigen = &t
	}

	if err := repo.CreateExhorto(ctx, s.db, e); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	raw, _ := json.Marshal(payload)
	s.audit(ctx, domain.EntidadExhorto, e.ID, "recibir_exhorto", "", domain.EstadoPendiente, string(raw))
	s.log.Info().
		Str("exhorto_id", e.ID).
		Str("exhorto_origen_id", e.ExhortoOrigenID).
		Str("folio_seguimiento", folio).
		Str("peer", peer.Clave).
		Msg("exhorto anunciado por externo")
	return e, true, nil
}

// RecibirExhortoArchivo stores one uploaded archivo after verifying its
// bytes against the announced digests. When the last pending archivo lands
// the exhorto completes into RECIBIDO and the acuse is returned.
func (s *InboundService) RecibirExhortoArchivo(ctx context.Context, peer *domain.Peer, exhortoOrigenID, nombre string, data []byte) (*wire.ExhortoArchivoUploadData, error) {
	e, err := repo.GetExhortoByOrigenID(ctx, s.db, exhortoOrigenID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: exhorto %q", ErrNotFound, exhortoOrigenID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if e.Remitente != domain.RemitenteExterno {
		return nil, fmt.Errorf("%w: el exhorto %q no es de un externo", ErrValidation, exhortoOrigenID)
	}

	a, err := repo.GetArchivoPendienteDeExhorto(ctx, s.db, e.ID, nombre)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: no hay archivo pendiente %q", ErrNotFound, nombre)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	blobURL, err := s.verifyAndStore(ctx, s.buckets.BucketExhortos,
		fmt.Sprintf("exhortos/%s/%s", e.ExhortoOrigenID, nombre), a, data, domain.EntidadExhorto, e.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now().In(s.tz)
	if err := repo.MarkArchivoRecibido(ctx, s.db, a.ID, blobURL, int64(len(data)), now.UTC()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s.audit(ctx, domain.EntidadArchivo, a.ID, "recibir_archivo", domain.EstadoPendiente, domain.EstadoRecibido, nombre)

	out := &wire.ExhortoArchivoUploadData{
		Archivo: wire.ArchivoRecibido{NombreArchivo: nombre, TamanoBytes: int64(len(data))},
	}

	pending, err := repo.CountArchivosPendientesDeExhorto(ctx, s.db, e.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if pending > 0 {
		return out, nil
	}

	acuse := &wire.ExhortoAcuse{
		ExhortoOrigenID:    e.ExhortoOrigenID,
		FolioSeguimiento:   *e.FolioSeguimiento,
		FechaHoraRecepcion: wire.NewDateTime(now),
	}
	acuseRaw, _ := json.Marshal(acuse)
	nowUTC := now.UTC()
	to, err := domain.NextExhortoState(e.Estado, domain.EventoRecibir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConflict, err)
	}
	extra := map[string]any{
		"acuse_fecha_hora_recepcion": nowUTC,
		"acuse_recibido":             string(acuseRaw),
	}
	if err := repo.UpdateExhortoEstado(ctx, s.db, e.ID, e.Estado, to, extra); err != nil {
		if errors.Is(err, repo.ErrStale) {
			return nil, fmt.Errorf("%w: el exhorto cambió de estado de forma concurrente", ErrConflict)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s.audit(ctx, domain.EntidadExhorto, e.ID, domain.EventoRecibir, e.Estado, to, string(acuseRaw))
	s.log.Info().
		Str("exhorto_id", e.ID).
		Str("folio_seguimiento", *e.FolioSeguimiento).
		Str("peer", peer.Clave).
		Msg("exhorto recibido completo")

	out.Acuse = acuse
	return out, nil
}

// ConsultarExhorto answers a peer's query about an exhorto it sent us,
// addressed by the folio de seguimiento this engine assigned on receipt.
func (s *InboundService) ConsultarExhorto(ctx context.Context, peer *domain.Peer, folioSeguimiento string) (*wire.ExhortoConsulta, error) {
	e, err := repo.GetExhortoByFolioSeguimiento(ctx, s.db, folioSeguimiento)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: exhorto %q", ErrNotFound, folioSeguimiento)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if e.Remitente != domain.RemitenteExterno {
		return nil, fmt.Errorf("%w: exhorto %q", ErrNotFound, folioSeguimiento)
	}
	return s.composeConsulta(ctx, e, peer)
}

// RecibirRespuesta registers the announced respuesta of an exhorto this peer
// sent out. A resubmission of the same respuestaOrigenId replays the
// existing record.
func (s *InboundService) RecibirRespuesta(ctx context.Context, peer *domain.Peer, payload *wire.RespuestaPayload) (*domain.Respuesta, bool, error) {
	e, err := s.exhortoInternoPorOrigenID(ctx, payload.ExhortoID)
	if err != nil {
		return nil, false, err
	}
	if e.Estado != domain.EstadoRecibidoConExito && e.Estado != domain.EstadoRespondido {
		return nil, false, fmt.Errorf("%w: el exhorto está %s, no admite respuesta", ErrConflict, e.Estado)
	}

	if existing, err := repo.GetRespuestaByOrigenID(ctx, s.db, e.ID, payload.RespuestaOrigenID); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	r := &domain.Respuesta{
		ExhortoID:          e.ID,
		RespuestaOrigenID:  payload.RespuestaOrigenID,
		MunicipioTurnadoID: payload.MunicipioTurnadoID,
		AreaTurnadoID:      payload.AreaTurnadoID,
		AreaTurnadoNombre:  payload.AreaTurnadoNombre,
		NumeroExhorto:      payload.NumeroExhorto,
		TipoDiligenciado:   payload.TipoDiligenciado,
		Observaciones:      payload.Observaciones,
		Remitente:          domain.RemitenteExterno,
		Estado:             domain.EstadoPendiente,
		Archivos:           archivosFromWire(payload.Archivos, true),
		Videos:             videosFromWire(payload.Videos),
	}
	if err := repo.CreateRespuesta(ctx, s.db, r); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	raw, _ := json.Marshal(payload)
	s.audit(ctx, domain.EntidadRespuesta, r.ID, "recibir_respuesta", "", domain.EstadoPendiente, string(raw))
	s.log.Info().
		Str("exhorto_id", e.ID).
		Str("respuesta_origen_id", r.RespuestaOrigenID).
		Str("peer", peer.Clave).
		Msg("respuesta anunciada por externo")
	return r, true, nil
}

// RecibirRespuestaArchivo stores one respuesta archivo; completing the batch
// moves the respuesta to RECIBIDO, the exhorto to RESPONDIDO, and returns
// the acuse.
func (s *InboundService) RecibirRespuestaArchivo(ctx context.Context, peer *domain.Peer, exhortoOrigenID, respuestaOrigenID, nombre string, data []byte) (*wire.RespuestaArchivoUploadData, error) {
	e, err := s.exhortoInternoPorOrigenID(ctx, exhortoOrigenID)
	if err != nil {
		return nil, err
	}
	r, err := repo.GetRespuestaByOrigenID(ctx, s.db, e.ID, respuestaOrigenID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: respuesta %q", ErrNotFound, respuestaOrigenID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	a, err := repo.GetArchivoPendienteDeRespuesta(ctx, s.db, r.ID, nombre)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: no hay archivo pendiente %q", ErrNotFound, nombre)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	blobURL, err := s.verifyAndStore(ctx, s.buckets.BucketRespuestas,
		fmt.Sprintf("respuestas/%s/%s", e.ExhortoOrigenID, nombre), a, data, domain.EntidadRespuesta, r.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now().In(s.tz)
	if err := repo.MarkArchivoRecibido(ctx, s.db, a.ID, blobURL, int64(len(data)), now.UTC()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	out := &wire.RespuestaArchivoUploadData{
		Archivo: wire.ArchivoRecibido{NombreArchivo: nombre, TamanoBytes: int64(len(data))},
	}

	pending, err := repo.CountArchivosPendientesDeRespuesta(ctx, s.db, r.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if pending > 0 {
		return out, nil
	}

	nowUTC := now.UTC()
	if err := repo.UpdateRespuestaEstado(ctx, s.db, r.ID, domain.EstadoPendiente, domain.EstadoRecibido,
		map[string]any{"fecha_hora_recepcion": nowUTC}); err != nil && !errors.Is(err, repo.ErrStale) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	to, err := domain.NextExhortoState(e.Estado, domain.EventoRespuestaRecibida)
	if err == nil {
		extra := map[string]any{
			"respuesta_origen_id":            r.RespuestaOrigenID,
			"respuesta_fecha_hora_recepcion": nowUTC,
		}
		if uerr := repo.UpdateExhortoEstado(ctx, s.db, e.ID, e.Estado, to, extra); uerr != nil && !errors.Is(uerr, repo.ErrStale) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, uerr)
		}
		s.audit(ctx, domain.EntidadExhorto, e.ID, domain.EventoRespuestaRecibida, e.Estado, to, r.RespuestaOrigenID)
	}
	s.audit(ctx, domain.EntidadRespuesta, r.ID, "respuesta_completa", domain.EstadoPendiente, domain.EstadoRecibido, "")
	s.log.Info().
		Str("exhorto_id", e.ID).
		Str("respuesta_origen_id", r.RespuestaOrigenID).
		Str("peer", peer.Clave).
		Msg("respuesta recibida completa")

	out.Acuse = &wire.RespuestaAcuse{
		ExhortoID:          e.ExhortoOrigenID,
		RespuestaOrigenID:  r.RespuestaOrigenID,
		FechaHoraRecepcion: wire.NewDateTime(now),
	}
	return out, nil
}

// RecibirActualizacion records a change notice on an exchanged exhorto. The
// exhorto must have been accepted end-to-end. A resubmission of the same
// actualizacionOrigenId replays the acuse.
func (s *InboundService) RecibirActualizacion(ctx context.Context, peer *domain.Peer, payload *wire.ActualizacionPayload) (*wire.ActualizacionAcuse, error) {
	e, err := repo.GetExhortoByOrigenID(ctx, s.db, payload.ExhortoID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: exhorto %q", ErrNotFound, payload.ExhortoID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := exhortoAdmiteTramites(e); err != nil {
		return nil, err
	}

	now := time.Now().In(s.tz)
	acuse := &wire.ActualizacionAcuse{
		ExhortoID:             e.ExhortoOrigenID,
		ActualizacionOrigenID: payload.ActualizacionOrigenID,
		FechaHora:             wire.NewDateTime(now),
	}

	if _, err := repo.GetActualizacionByOrigenID(ctx, s.db, e.ID, payload.ActualizacionOrigenID); err == nil {
		return acuse, nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	a := &domain.Actualizacion{
		ExhortoID:             e.ID,
		ActualizacionOrigenID: payload.ActualizacionOrigenID,
		TipoActualizacion:     payload.TipoActualizacion,
		FechaHora:             payload.FechaHora.UTC(),
		Descripcion:           payload.Descripcion,
		Remitente:             domain.RemitenteExterno,
		Estado:                domain.EstadoRecibido,
	}
	if err := repo.CreateActualizacion(ctx, s.db, a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	raw, _ := json.Marshal(payload)
	s.audit(ctx, domain.EntidadActualizacion, a.ID, "recibir_actualizacion", "", domain.EstadoRecibido, string(raw))
	s.log.Info().
		Str("exhorto_id", e.ID).
		Str("tipo", a.TipoActualizacion).
		Str("peer", peer.Clave).
		Msg("actualización recibida")
	return acuse, nil
}

// RecibirPromocion registers an announced promoción, addressed by the folio
// de seguimiento this peer assigned. The exhorto must have been accepted
// end-to-end. Duplicate folioOrigenPromocion replays the existing record.
func (s *InboundService) RecibirPromocion(ctx context.Context, peer *domain.Peer, payload *wire.PromocionPayload) (*domain.Promocion, bool, error) {
	e, err := repo.GetExhortoByFolioSeguimiento(ctx, s.db, payload.FolioSeguimiento)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, false, fmt.Errorf("%w: folio %q", ErrNotFound, payload.FolioSeguimiento)
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := exhortoAdmiteTramites(e); err != nil {
		return nil, false, err
	}

	if existing, err := repo.GetPromocionByFolioOrigen(ctx, s.db, e.ID, payload.FolioOrigenPromocion); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	folio := identifier.NewFolioPromocion(time.Now().In(s.tz))
	p := &domain.Promocion{
		ExhortoID:              e.ID,
		FolioOrigenPromocion:   payload.FolioOrigenPromocion,
		FolioPromocionRecibida: &folio,
		Fojas:                  payload.Fojas,
		Observaciones:          payload.Observaciones,
		Remitente:              domain.RemitenteExterno,
		Estado:                 domain.EstadoPendiente,
		Promoventes:            partesFromWire(payload.Promoventes),
		Archivos:               archivosFromWire(payload.Archivos, false),
	}
	if payload.FechaOrigen != nil {
		t := payload.FechaOrigen.Time
		p.FechaOrigen = &t
	}
	for i := range p.Promoventes {
		p.Promoventes[i].EsPromovente = true
	}

	if err := repo.CreatePromocion(ctx, s.db, p); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	raw, _ := json.Marshal(payload)
	s.audit(ctx, domain.EntidadPromocion, p.ID, "recibir_promocion", "", domain.EstadoPendiente, string(raw))
	s.log.Info().
		Str("exhorto_id", e.ID).
		Str("folio_origen_promocion", p.FolioOrigenPromocion).
		Str("peer", peer.Clave).
		Msg("promoción anunciada por externo")
	return p, true, nil
}

// RecibirPromocionArchivo stores one promoción archivo; completing the batch
// moves the promoción to RECIBIDO and returns the acuse.
func (s *InboundService) RecibirPromocionArchivo(ctx context.Context, peer *domain.Peer, folioSeguimiento, folioOrigenPromocion, nombre string, data []byte) (*wire.PromocionArchivoUploadData, error) {
	e, err := repo.GetExhortoByFolioSeguimiento(ctx, s.db, folioSeguimiento)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: folio %q", ErrNotFound, folioSeguimiento)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	p, err := repo.GetPromocionByFolioOrigen(ctx, s.db, e.ID, folioOrigenPromocion)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: promoción %q", ErrNotFound, folioOrigenPromocion)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	a, err := repo.GetArchivoPendienteDePromocion(ctx, s.db, p.ID, nombre)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: no hay archivo pendiente %q", ErrNotFound, nombre)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	blobURL, err := s.verifyAndStore(ctx, s.buckets.BucketPromociones,
		fmt.Sprintf("promociones/%s/%s/%s", e.ExhortoOrigenID, p.FolioOrigenPromocion, nombre), a, data, domain.EntidadPromocion, p.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now().In(s.tz)
	if err := repo.MarkArchivoRecibido(ctx, s.db, a.ID, blobURL, int64(len(data)), now.UTC()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	out := &wire.PromocionArchivoUploadData{
		Archivo: wire.ArchivoRecibido{NombreArchivo: nombre, TamanoBytes: int64(len(data))},
	}

	pending, err := repo.CountArchivosPendientesDePromocion(ctx, s.db, p.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if pending > 0 {
		return out, nil
	}

	nowUTC := now.UTC()
	if err := repo.UpdatePromocionEstado(ctx, s.db, p.ID, domain.EstadoPendiente, domain.EstadoRecibido,
		map[string]any{"fecha_hora_recepcion": nowUTC}); err != nil && !errors.Is(err, repo.ErrStale) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s.audit(ctx, domain.EntidadPromocion, p.ID, "promocion_completa", domain.EstadoPendiente, domain.EstadoRecibido, "")
	s.log.Info().
		Str("exhorto_id", e.ID).
		Str("folio_origen_promocion", p.FolioOrigenPromocion).
		Str("peer", peer.Clave).
		Msg("promoción recibida completa")

	out.Acuse = &wire.PromocionAcuse{
		FolioOrigenPromocion:   p.FolioOrigenPromocion,
		FolioPromocionRecibida: *p.FolioPromocionRecibida,
		FechaHoraRecepcion:     wire.NewDateTime(now),
	}
	return out, nil
}

// verifyAndStore checks the uploaded bytes against the announced digests and
// writes them to the bucket, auditing hash mismatches before rejecting them.
func (s *InboundService) verifyAndStore(ctx context.Context, bucket, object string, a *domain.Archivo, data []byte, auditKind, auditID string) (string, error) {
	d := storage.Digest(data)
	if !d.Matches(a.HashSha1, a.HashSha256) {
		s.audit(ctx, auditKind, auditID, "hash_no_coincide", "", "",
			fmt.Sprintf("archivo %s: se esperaba sha256 %s, se calculó %s", a.NombreArchivo, a.HashSha256, d.Sha256))
		return "", fmt.Errorf("%w: el archivo %q no coincide con los hashes anunciados", ErrHashMismatch, a.NombreArchivo)
	}
	blobURL, err := s.store.Upload(ctx, bucket, object, data, "application/pdf")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return blobURL, nil
}

// exhortoInternoPorOrigenID loads an exhorto this peer sent out, for flows
// where the remote peer references it by our origin id.
func (s *InboundService) exhortoInternoPorOrigenID(ctx context.Context, exhortoOrigenID string) (*domain.Exhorto, error) {
	e, err := repo.GetExhortoByOrigenID(ctx, s.db, exhortoOrigenID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: exhorto %q", ErrNotFound, exhortoOrigenID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if e.Remitente != domain.RemitenteInterno {
		return nil, fmt.Errorf("%w: exhorto %q", ErrNotFound, exhortoOrigenID)
	}
	return e, nil
}

// exhortoAdmiteTramites enforces the window for actualizaciones and
// promociones: the exhorto must have been accepted end-to-end, meaning
// RESPONDIDO on the destination side or CONTESTADO on the origin side.
func exhortoAdmiteTramites(e *domain.Exhorto) error {
	if e.Estado != domain.EstadoRespondido && e.Estado != domain.EstadoContestado {
		return fmt.Errorf("%w: el exhorto está %s, aún no admite trámites", ErrConflict, e.Estado)
	}
	return nil
}

// composeConsulta rebuilds the wire view of a received exhorto.
func (s *InboundService) composeConsulta(ctx context.Context, e *domain.Exhorto, peer *domain.Peer) (*wire.ExhortoConsulta, error) {
	destino, err := repo.GetMunicipio(ctx, s.db, e.MunicipioDestinoID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	out := &wire.ExhortoConsulta{
		ExhortoPayload: wire.ExhortoPayload{
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
		},
		Estado:            e.Estado,
		AreaTurnadoID:     e.AreaTurnadoID,
		AreaTurnadoNombre: e.AreaTurnadoNombre,
	}
	if e.FolioSeguimiento != nil {
		out.FolioSeguimiento = *e.FolioSeguimiento
	}
	if e.FechaOrigen != nil {
		dt := wire.NewDateTime(*e.FechaOrigen)
		out.FechaOrigen = &dt
	}
	if e.AcuseFechaHoraRecepcion != nil {
		dt := wire.NewDateTime(e.AcuseFechaHoraRecepcion.In(s.tz))
		out.FechaHoraRecepcion = &dt
	}
	return out, nil
}

func (s *InboundService) audit(ctx context.Context, kind, id, event, from, to, detail string) {
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

// claveEstado formats an INEGI estado clave as the catalog's two-digit form.
func claveEstado(clave int) string {
	return fmt.Sprintf("%02d", clave)
}

// atoiClave parses a zero-padded INEGI clave back to its wire integer.
func atoiClave(clave string) int {
	n, _ := strconv.Atoi(clave)
	return n
}

func partesFromWire(in []wire.PartePayload) []domain.Parte {
	out := make([]domain.Parte, 0, len(in))
	for _, p := range in {
		genero := p.Genero
		if genero != "M" && genero != "F" {
			genero = "-"
		}
		parte := domain.Parte{
			Nombre:            p.Nombre,
			Genero:            genero,
			EsPersonaMoral:    p.EsPersonaMoral,
			TipoParte:         p.TipoParte,
			TipoParteNombre:   p.TipoParteNombre,
			CorreoElectronico: p.CorreoElectronico,
			Telefono:          p.Telefono,
		}
		if p.ApellidoPaterno != "" {
			ap := p.ApellidoPaterno
			parte.ApellidoPaterno = &ap
		}
		if p.ApellidoMaterno != "" {
			am := p.ApellidoMaterno
			parte.ApellidoMaterno = &am
		}
		out = append(out, parte)
	}
	return out
}

// exhortoPartes filters out promoción promoventes from the preloaded
// collection.
func exhortoPartes(in []domain.Parte) []domain.Parte {
	out := make([]domain.Parte, 0, len(in))
	for _, p := range in {
		if p.PromocionID != nil {
			continue
		}
		out = append(out, p)
	}
	return out
}

func partesToWire(in []domain.Parte) []wire.PartePayload {
	out := make([]wire.PartePayload, 0, len(in))
	for _, p := range in {
		wp := wire.PartePayload{
			Nombre:          p.Nombre,
			Genero:          p.Genero,
			EsPersonaMoral:  p.EsPersonaMoral,
			TipoParte:       p.TipoParte,
			TipoParteNombre: p.TipoParteNombre,
		}
		if p.ApellidoPaterno != nil {
			wp.ApellidoPaterno = *p.ApellidoPaterno
		}
		if p.ApellidoMaterno != nil {
			wp.ApellidoMaterno = *p.ApellidoMaterno
		}
		if p.EsPromovente {
			wp.CorreoElectronico = p.CorreoElectronico
			wp.Telefono = p.Telefono
		}
		out = append(out, wp)
	}
	return out
}

func archivosFromWire(in []wire.ArchivoPayload, esRespuesta bool) []domain.Archivo {
	out := make([]domain.Archivo, 0, len(in))
	for _, a := range in {
		out = append(out, domain.Archivo{
			NombreArchivo: a.NombreArchivo,
			HashSha1:      a.HashSha1,
			HashSha256:    a.HashSha256,
			TipoDocumento: a.TipoDocumento,
			Estado:        domain.EstadoPendiente,
			EsRespuesta:   esRespuesta,
		})
	}
	return out
}

func archivosToWire(in []domain.Archivo) []wire.ArchivoPayload {
	out := make([]wire.ArchivoPayload, 0, len(in))
	for _, a := range in {
		if a.EsRespuesta || a.PromocionID != nil {
			continue
		}
		out = append(out, wire.ArchivoPayload{
			NombreArchivo: a.NombreArchivo,
			HashSha1:      a.HashSha1,
			HashSha256:    a.HashSha256,
			TipoDocumento: a.TipoDocumento,
		})
	}
	return out
}

func videosFromWire(in []wire.VideoPayload) []domain.Video {
	out := make([]domain.Video, 0, len(in))
	for _, v := range in {
		video := domain.Video{
			Titulo:      v.Titulo,
			Descripcion: v.Descripcion,
			URLAcceso:   v.URLAcceso,
		}
		if v.Fecha != nil {
			t := v.Fecha.Time
			video.Fecha = &t
		}
		out = append(out, video)
	}
	return out
}

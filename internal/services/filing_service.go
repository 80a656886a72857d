package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/justicia-digital/exhorto-interchange/internal/config"
	"github.com/justicia-digital/exhorto-interchange/internal/domain"
	"github.com/justicia-digital/exhorto-interchange/internal/identifier"
	"github.com/justicia-digital/exhorto-interchange/internal/repo"
	"github.com/justicia-digital/exhorto-interchange/internal/safestr"
)

// CrearRespuestaInput drafts the reply to a received exhorto.
type CrearRespuestaInput struct {
	ExhortoID          string
	MunicipioTurnadoID int
	AreaTurnadoID      string
	AreaTurnadoNombre  string
	NumeroExhorto      string
	TipoDiligenciado   int
	Observaciones      string
	Archivos           []ArchivoInput
	Videos             []VideoInput
}

// VideoInput references audiovisual evidence by URL.
type VideoInput struct {
	Titulo      string
	Descripcion string
	Fecha       *time.Time
	URLAcceso   string
}

// CrearActualizacionInput drafts a change notice on an exchanged exhorto.
type CrearActualizacionInput struct {
	ExhortoID         string
	TipoActualizacion string
	Descripcion       string
}

// CrearPromocionInput drafts a supplemental filing on an exchanged exhorto.
type CrearPromocionInput struct {
	ExhortoID     string
	Fojas         int
	FechaOrigen   *time.Time
	Observaciones string
	Promoventes   []ParteInput
	Archivos      []ArchivoInput
}

// FilingService implements the operator-facing child filings: respuestas,
// actualizaciones and promociones, each drafted locally and handed to the
// task runner for delivery.
type FilingService struct {
	db  *gorm.DB
	cfg config.InterchangeConfig
	log zerolog.Logger
}

// NewFilingService builds a FilingService.
func NewFilingService(db *gorm.DB, cfg config.InterchangeConfig, log zerolog.Logger) *FilingService {
	return &FilingService{db: db, cfg: cfg, log: log}
}

// CrearRespuesta drafts the reply to a DILIGENCIADO received exhorto and
// enqueues its delivery to the origin peer.
func (s *FilingService) CrearRespuesta(ctx context.Context, in CrearRespuestaInput) (*domain.Respuesta, *domain.TaskRecord, error) {
	e, err := s.exhorto(ctx, in.ExhortoID)
	if err != nil {
		return nil, nil, err
	}
	if e.Remitente != domain.RemitenteExterno {
		return nil, nil, fmt.Errorf("%w: solo exhortos recibidos se responden", ErrValidation)
	}
	if e.Estado != domain.EstadoDiligenciado {
		return nil, nil, fmt.Errorf("%w: el exhorto está %s, debe estar %s", ErrConflict, e.Estado, domain.EstadoDiligenciado)
	}
	if len(in.Archivos) == 0 {
		return nil, nil, fmt.Errorf("%w: la respuesta necesita al menos un archivo", ErrValidation)
	}

	r := &domain.Respuesta{
		ExhortoID:          e.ID,
		RespuestaOrigenID:  identifier.NewOrigenID(),
		MunicipioTurnadoID: in.MunicipioTurnadoID,
		AreaTurnadoID:      in.AreaTurnadoID,
		AreaTurnadoNombre:  safestr.Texto(in.AreaTurnadoNombre, 256),
		NumeroExhorto:      in.NumeroExhorto,
		TipoDiligenciado:   in.TipoDiligenciado,
		Observaciones:      safestr.Texto(in.Observaciones, 1024),
		Remitente:          domain.RemitenteInterno,
		Estado:             domain.EstadoPorEnviar,
		Archivos:           buildArchivos(in.Archivos),
		Videos:             buildVideos(in.Videos),
	}
	for i := range r.Archivos {
		r.Archivos[i].EsRespuesta = true
		r.Archivos[i].Estado = domain.EstadoRecibido
	}
	if err := repo.CreateRespuesta(ctx, s.db, r); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s.audit(ctx, domain.EntidadRespuesta, r.ID, "crear", "", domain.EstadoPorEnviar, "respuesta creada")

	task, _, err := repo.EnqueueTask(ctx, s.db, domain.ComandoResponderExhorto, r.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return r, task, nil
}

// CrearActualizacion drafts a change notice and enqueues its delivery.
func (s *FilingService) CrearActualizacion(ctx context.Context, in CrearActualizacionInput) (*domain.Actualizacion, *domain.TaskRecord, error) {
	e, err := s.exhorto(ctx, in.ExhortoID)
	if err != nil {
		return nil, nil, err
	}
	if e.FolioSeguimiento == nil {
		return nil, nil, fmt.Errorf("%w: el exhorto aún no se intercambia", ErrConflict)
	}
	if err := exhortoAdmiteTramites(e); err != nil {
		return nil, nil, err
	}
	if in.TipoActualizacion != domain.ActualizacionAreaTurnado && in.TipoActualizacion != domain.ActualizacionNumeroExhorto {
		return nil, nil, fmt.Errorf("%w: tipo de actualización %q", ErrValidation, in.TipoActualizacion)
	}

	a := &domain.Actualizacion{
		ExhortoID:             e.ID,
		ActualizacionOrigenID: identifier.NewOrigenID(),
		TipoActualizacion:     in.TipoActualizacion,
		FechaHora:             time.Now().UTC(),
		Descripcion:           safestr.Texto(in.Descripcion, 256),
		Remitente:             domain.RemitenteInterno,
		Estado:                domain.EstadoPorEnviar,
	}
	if err := repo.CreateActualizacion(ctx, s.db, a); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s.audit(ctx, domain.EntidadActualizacion, a.ID, "crear", "", domain.EstadoPorEnviar, a.Descripcion)

	task, _, err := repo.EnqueueTask(ctx, s.db, domain.ComandoEnviarActualizacion, a.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return a, task, nil
}

// CrearPromocion drafts a supplemental filing and enqueues its delivery.
// The exhorto must already carry a folio de seguimiento because promociones
// are addressed by it.
func (s *FilingService) CrearPromocion(ctx context.Context, in CrearPromocionInput) (*domain.Promocion, *domain.TaskRecord, error) {
	e, err := s.exhorto(ctx, in.ExhortoID)
	if err != nil {
		return nil, nil, err
	}
	if e.FolioSeguimiento == nil {
		return nil, nil, fmt.Errorf("%w: el exhorto aún no tiene folio de seguimiento", ErrConflict)
	}
	if err := exhortoAdmiteTramites(e); err != nil {
		return nil, nil, err
	}
	if len(in.Promoventes) == 0 {
		return nil, nil, fmt.Errorf("%w: la promoción necesita al menos un promovente", ErrValidation)
	}
	if len(in.Archivos) == 0 {
		return nil, nil, fmt.Errorf("%w: la promoción necesita al menos un archivo", ErrValidation)
	}

	p := &domain.Promocion{
		ExhortoID:            e.ID,
		FolioOrigenPromocion: identifier.NewFolio(),
		Fojas:                in.Fojas,
		FechaOrigen:          in.FechaOrigen,
		Observaciones:        safestr.Texto(in.Observaciones, 1024),
		Remitente:            domain.RemitenteInterno,
		Estado:               domain.EstadoPorEnviar,
		Promoventes:          buildPartes(in.Promoventes),
		Archivos:             buildArchivos(in.Archivos),
	}
	for i := range p.Promoventes {
		p.Promoventes[i].EsPromovente = true
	}
	for i := range p.Archivos {
		p.Archivos[i].Estado = domain.EstadoRecibido
	}
	if err := repo.CreatePromocion(ctx, s.db, p); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s.audit(ctx, domain.EntidadPromocion, p.ID, "crear", "", domain.EstadoPorEnviar, p.FolioOrigenPromocion)

	task, _, err := repo.EnqueueTask(ctx, s.db, domain.ComandoEnviarPromocion, p.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return p, task, nil
}

// ReintentarEnvio returns a RECHAZADO filing to POR ENVIAR and enqueues it
// again. Command selects which filing table the id refers to.
func (s *FilingService) ReintentarEnvio(ctx context.Context, command, id string) (*domain.TaskRecord, error) {
	var from string
	switch command {
	case domain.ComandoResponderExhorto:
		r, err := repo.GetRespuesta(ctx, s.db, id)
		if err != nil {
			return nil, s.wrapGet(err, id)
		}
		from = r.Estado
		to, terr := domain.NextFilingState(from, domain.EventoEncolarEnvio)
		if terr != nil {
			return nil, fmt.Errorf("%w: %v", ErrConflict, terr)
		}
		if err := repo.UpdateRespuestaEstado(ctx, s.db, id, from, to, nil); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	case domain.ComandoEnviarActualizacion:
		a, err := repo.GetActualizacion(ctx, s.db, id)
		if err != nil {
			return nil, s.wrapGet(err, id)
		}
		from = a.Estado
		to, terr := domain.NextFilingState(from, domain.EventoEncolarEnvio)
		if terr != nil {
			return nil, fmt.Errorf("%w: %v", ErrConflict, terr)
		}
		if err := repo.UpdateActualizacionEstado(ctx, s.db, id, from, to); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	case domain.ComandoEnviarPromocion:
		p, err := repo.GetPromocion(ctx, s.db, id)
		if err != nil {
			return nil, s.wrapGet(err, id)
		}
		from = p.Estado
		to, terr := domain.NextFilingState(from, domain.EventoEncolarEnvio)
		if terr != nil {
			return nil, fmt.Errorf("%w: %v", ErrConflict, terr)
		}
		if err := repo.UpdatePromocionEstado(ctx, s.db, id, from, to, nil); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	default:
		return nil, fmt.Errorf("%w: comando %q", ErrValidation, command)
	}

	task, _, err := repo.EnqueueTask(ctx, s.db, command, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return task, nil
}

// Actualizaciones lists the change notices of an exhorto.
func (s *FilingService) Actualizaciones(ctx context.Context, exhortoID string) ([]domain.Actualizacion, error) {
	out, err := repo.ListActualizaciones(ctx, s.db, exhortoID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return out, nil
}

// Promociones lists the supplemental filings of an exhorto.
func (s *FilingService) Promociones(ctx context.Context, exhortoID string) ([]domain.Promocion, error) {
	out, err := repo.ListPromociones(ctx, s.db, exhortoID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return out, nil
}

// Respuestas lists the replies of an exhorto.
func (s *FilingService) Respuestas(ctx context.Context, exhortoID string) ([]domain.Respuesta, error) {
	out, err := repo.ListRespuestas(ctx, s.db, exhortoID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return out, nil
}

func (s *FilingService) exhorto(ctx context.Context, id string) (*domain.Exhorto, error) {
	e, err := repo.GetExhorto(ctx, s.db, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: exhorto %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return e, nil
}

func (s *FilingService) wrapGet(err error, id string) error {
	if errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func (s *FilingService) audit(ctx context.Context, kind, id, event, from, to, detail string) {
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

func buildVideos(in []VideoInput) []domain.Video {
	out := make([]domain.Video, 0, len(in))
	for _, v := range in {
		out = append(out, domain.Video{
			Titulo:      safestr.Texto(v.Titulo, 256),
			Descripcion: safestr.Texto(v.Descripcion, 1024),
			Fecha:       v.Fecha,
			URLAcceso:   safestr.URL(v.URLAcceso),
		})
	}
	return out
}

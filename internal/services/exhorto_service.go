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
	"github.com/justicia-digital/exhorto-interchange/internal/exerr"
	"github.com/justicia-digital/exhorto-interchange/internal/identifier"
	"github.com/justicia-digital/exhorto-interchange/internal/repo"
	"github.com/justicia-digital/exhorto-interchange/internal/safestr"
)

// ActorSistema is the audit actor of background work.
const ActorSistema = "sistema"

// ParteInput is one participant of a new exhorto or promoción.
type ParteInput struct {
	Nombre          string
	ApellidoPaterno string
	ApellidoMaterno string
	Genero          string
	EsPersonaMoral  bool
	TipoParte       int
	TipoParteNombre string

	EsPromovente      bool
	CorreoElectronico string
	Telefono          string
}

// ArchivoInput announces one document of a new filing. The bytes must
// already live in blob storage at URL; hashes cover those exact bytes.
type ArchivoInput struct {
	NombreArchivo string
	HashSha1      string
	HashSha256    string
	TipoDocumento int
	URL           string
	TamanoBytes   int64
}

// CrearExhortoInput is the operator's request to draft a new outbound
// exhorto. Municipios are internal catalog ids here; the service translates
// to INEGI claves at send time.
type CrearExhortoInput struct {
	MunicipioOrigenID       uint
	MunicipioDestinoID      uint
	MateriaClave            string
	JuzgadoOrigenID         string
	JuzgadoOrigenNombre     string
	NumeroExpedienteOrigen  string
	NumeroOficioOrigen      string
	TipoJuicioAsuntoDelitos string
	JuezExhortante          string
	Fojas                   int
	DiasResponder           int
	TipoDiligenciaClave     string
	FechaOrigen             *time.Time
	Observaciones           string
	Partes                  []ParteInput
	Archivos                []ArchivoInput
}

// ExhortoService implements the operator-facing exhorto operations: drafting,
// listing, and driving the state machine. Peer-facing receipt lives in
// InboundService; the send jobs live in OutboundService.
type ExhortoService struct {
	db  *gorm.DB
	cfg config.InterchangeConfig
	log zerolog.Logger
}

// NewExhortoService builds an ExhortoService.
func NewExhortoService(db *gorm.DB, cfg config.InterchangeConfig, log zerolog.Logger) *ExhortoService {
	return &ExhortoService{db: db, cfg: cfg, log: log}
}

// Crear drafts an outbound exhorto in PENDIENTE. The exhorto_origen_id is
// assigned here and never changes.
func (s *ExhortoService) Crear(ctx context.Context, in CrearExhortoInput) (*domain.Exhorto, error) {
	if len(in.Partes) == 0 {
		return nil, fmt.Errorf("%w: el exhorto necesita al menos una parte", ErrValidation)
	}
	if len(in.Archivos) == 0 {
		return nil, fmt.Errorf("%w: el exhorto necesita al menos un archivo", ErrValidation)
	}

	origen, err := repo.GetMunicipio(ctx, s.db, in.MunicipioOrigenID)
	if err != nil {
		return nil, fmt.Errorf("%w: municipio de origen %d", ErrNotFound, in.MunicipioOrigenID)
	}
	if origen.Estado.Clave != s.cfg.EstadoClave {
		return nil, fmt.Errorf("%w: el municipio de origen no pertenece a este estado", ErrValidation)
	}
	destino, err := repo.GetMunicipio(ctx, s.db, in.MunicipioDestinoID)
	if err != nil {
		return nil, fmt.Errorf("%w: municipio de destino %d", ErrNotFound, in.MunicipioDestinoID)
	}
	if destino.Estado.Clave == s.cfg.EstadoClave {
		return nil, fmt.Errorf("%w: el municipio de destino pertenece a este estado", ErrValidation)
	}
	if _, err := repo.GetPeerByEstadoClave(ctx, s.db, destino.Estado.Clave); err != nil {
		return nil, fmt.Errorf("%w: no hay externo registrado para el estado %s", ErrNotFound, destino.Estado.Clave)
	}
	materia, err := repo.GetMateriaByClave(ctx, s.db, safestr.Clave(in.MateriaClave, 32))
	if err != nil {
		return nil, fmt.Errorf("%w: materia %q", ErrNotFound, in.MateriaClave)
	}

	e := &domain.Exhorto{
		ExhortoOrigenID:         identifier.NewOrigenID(),
		MunicipioOrigenID:       origen.ID,
		MunicipioDestinoID:      destino.ID,
		MateriaClave:            materia.Clave,
		MateriaNombre:           materia.Nombre,
		JuzgadoOrigenID:         in.JuzgadoOrigenID,
		JuzgadoOrigenNombre:     safestr.Texto(in.JuzgadoOrigenNombre, 256),
		NumeroExpedienteOrigen:  in.NumeroExpedienteOrigen,
		NumeroOficioOrigen:      in.NumeroOficioOrigen,
		TipoJuicioAsuntoDelitos: safestr.Texto(in.TipoJuicioAsuntoDelitos, 256),
		JuezExhortante:          safestr.Texto(in.JuezExhortante, 256),
		Fojas:                   in.Fojas,
		DiasResponder:           in.DiasResponder,
		TipoDiligenciaID:        safestr.Clave(in.TipoDiligenciaClave, 32),
		FechaOrigen:             in.FechaOrigen,
		Observaciones:           safestr.Texto(in.Observaciones, 1024),
		Remitente:               domain.RemitenteInterno,
		Estado:                  domain.EstadoPendiente,
		Partes:                  buildPartes(in.Partes),
		Archivos:                buildArchivos(in.Archivos),
	}
	if in.TipoDiligenciaClave != "" {
		td, err := repo.GetTipoDiligenciaByClave(ctx, s.db, safestr.Clave(in.TipoDiligenciaClave, 32))
		if err != nil {
			return nil, fmt.Errorf("%w: tipo de diligencia %q", ErrNotFound, in.TipoDiligenciaClave)
		}
		e.TipoDiligenciacionNombre = td.Descripcion
	}

	if err := repo.CreateExhorto(ctx, s.db, e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s.audit(ctx, domain.EntidadExhorto, e.ID, "crear", "", domain.EstadoPendiente, "exhorto creado")
	s.log.Info().Str("exhorto_id", e.ID).Str("exhorto_origen_id", e.ExhortoOrigenID).Msg("exhorto creado")
	return e, nil
}

// Get fetches an exhorto by internal id.
func (s *ExhortoService) Get(ctx context.Context, id string) (*domain.Exhorto, error) {
	e, err := repo.GetExhorto(ctx, s.db, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: exhorto %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return e, nil
}

// Listar pages through exhortos, optionally filtered by estado and
// remitente, and returns the total matching count.
func (s *ExhortoService) Listar(ctx context.Context, estado, remitente string, offset, limit int) ([]domain.Exhorto, int64, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	total, err := repo.CountExhortos(ctx, s.db, estado, remitente)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	items, err := repo.ListExhortosPage(ctx, s.db, estado, remitente, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return items, total, nil
}

// EncolarEnvio moves a PENDIENTE exhorto to POR ENVIAR and enqueues the send
// job. Enqueuing an exhorto already on its way is a no-op returning the
// pending task.
func (s *ExhortoService) EncolarEnvio(ctx context.Context, id, actor string) (*domain.TaskRecord, error) {
	e, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.Remitente != domain.RemitenteInterno {
		return nil, fmt.Errorf("%w: solo exhortos internos se envían", ErrValidation)
	}
	if e.Estado == domain.EstadoPendiente {
		if err := s.transition(ctx, e, domain.EventoEncolarEnvio, actor, nil); err != nil {
			return nil, err
		}
	} else if e.Estado != domain.EstadoPorEnviar {
		return nil, fmt.Errorf("%w: el exhorto está %s", ErrConflict, e.Estado)
	}
	task, _, err := repo.EnqueueTask(ctx, s.db, domain.ComandoEnviarExhorto, e.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return task, nil
}

// Reiniciar returns an INTENTOS AGOTADOS exhorto to POR ENVIAR with a fresh
// attempt budget and enqueues the send again.
func (s *ExhortoService) Reiniciar(ctx context.Context, id, actor string) (*domain.TaskRecord, error) {
	e, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	extra := map[string]any{
		"por_enviar_intentos":        0,
		"por_enviar_tiempo_anterior": nil,
	}
	if err := s.transition(ctx, e, domain.EventoReiniciar, actor, extra); err != nil {
		return nil, err
	}
	task, _, err := repo.EnqueueTask(ctx, s.db, domain.ComandoEnviarExhorto, e.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return task, nil
}

// EncolarConsulta enqueues a remote query of a sent exhorto.
func (s *ExhortoService) EncolarConsulta(ctx context.Context, id string) (*domain.TaskRecord, error) {
	e, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.Remitente != domain.RemitenteInterno {
		return nil, fmt.Errorf("%w: solo exhortos internos se consultan al destino", ErrValidation)
	}
	task, _, err := repo.EnqueueTask(ctx, s.db, domain.ComandoConsultarExhorto, e.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return task, nil
}

// Cancelar aborts an exhorto that has not been exchanged yet.
func (s *ExhortoService) Cancelar(ctx context.Context, id, actor string) error {
	e, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.transition(ctx, e, domain.EventoCancelar, actor, nil)
}

// Archivar closes a RESPONDIDO exhorto.
func (s *ExhortoService) Archivar(ctx context.Context, id, actor string) error {
	e, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.transition(ctx, e, domain.EventoArchivar, actor, nil)
}

// Transferir hands a received exhorto to the internal case system.
func (s *ExhortoService) Transferir(ctx context.Context, id, actor string) error {
	e, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.transition(ctx, e, domain.EventoTransferir, actor, nil)
}

// Aceptar records the internal acceptance of a transferred exhorto,
// optionally assigning the area it was turned to.
func (s *ExhortoService) Aceptar(ctx context.Context, id, actor, areaID, areaNombre string) error {
	e, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	var extra map[string]any
	if areaID != "" || areaNombre != "" {
		extra = map[string]any{
			"area_turnado_id":     areaID,
			"area_turnado_nombre": safestr.Texto(areaNombre, 256),
		}
	}
	return s.transition(ctx, e, domain.EventoAceptar, actor, extra)
}

// Rechazar refuses a received exhorto during processing.
func (s *ExhortoService) Rechazar(ctx context.Context, id, actor, motivo string) error {
	e, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.transition(ctx, e, domain.EventoRechazar, actor, nil); err != nil {
		return err
	}
	if motivo != "" {
		s.audit(ctx, domain.EntidadExhorto, e.ID, "rechazar_motivo", "", "", motivo)
	}
	return nil
}

// Diligenciar records that the requested act was carried out.
func (s *ExhortoService) Diligenciar(ctx context.Context, id, actor string) error {
	e, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.transition(ctx, e, domain.EventoDiligenciar, actor, nil)
}

// Auditoria returns the chronological audit trail of one entity.
func (s *ExhortoService) Auditoria(ctx context.Context, entityKind, entityID string) ([]domain.AuditEntry, error) {
	entries, err := repo.ListAuditByEntity(ctx, s.db, entityKind, entityID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return entries, nil
}

// Tarea returns one background task record.
func (s *ExhortoService) Tarea(ctx context.Context, id string) (*domain.TaskRecord, error) {
	t, err := repo.GetTask(ctx, s.db, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: tarea %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return t, nil
}

// CancelarTarea requests cancellation of a pending task. Running jobs stop
// at their next checkpoint.
func (s *ExhortoService) CancelarTarea(ctx context.Context, id string) error {
	if err := repo.CancelTask(ctx, s.db, id); err != nil {
		if errors.Is(err, repo.ErrStale) {
			return fmt.Errorf("%w: la tarea ya terminó", ErrConflict)
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// transition applies one state machine event with optimistic concurrency and
// writes the audit entry. Illegal transitions surface as ErrConflict.
func (s *ExhortoService) transition(ctx context.Context, e *domain.Exhorto, event, actor string, extra map[string]any) error {
	to, err := domain.NextExhortoState(e.Estado, event)
	if err != nil {
		if errors.Is(err, exerr.NotValidParam) {
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return err
	}
	if err := repo.UpdateExhortoEstado(ctx, s.db, e.ID, e.Estado, to, extra); err != nil {
		if errors.Is(err, repo.ErrStale) {
			return fmt.Errorf("%w: el exhorto cambió de estado de forma concurrente", ErrConflict)
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s.audit(ctx, domain.EntidadExhorto, e.ID, event, e.Estado, to, actorOrSistema(actor))
	s.log.Info().
		Str("exhorto_id", e.ID).
		Str("evento", event).
		Str("de", e.Estado).
		Str("a", to).
		Msg("transición de exhorto")
	e.EstadoAnterior = e.Estado
	e.Estado = to
	return nil
}

// audit appends one entry, logging instead of failing the operation when the
// insert itself errors.
func (s *ExhortoService) audit(ctx context.Context, kind, id, event, from, to, detail string) {
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

func actorOrSistema(actor string) string {
	if actor == "" {
		return ActorSistema
	}
	return actor
}

func buildPartes(in []ParteInput) []domain.Parte {
	out := make([]domain.Parte, 0, len(in))
	for _, p := range in {
		genero := p.Genero
		if genero != "M" && genero != "F" {
			genero = "-"
		}
		parte := domain.Parte{
			Nombre:          safestr.Texto(p.Nombre, 256),
			Genero:          genero,
			EsPersonaMoral:  p.EsPersonaMoral,
			TipoParte:       p.TipoParte,
			TipoParteNombre: safestr.Texto(p.TipoParteNombre, 256),
			EsPromovente:    p.EsPromovente,
		}
		if ap := safestr.Texto(p.ApellidoPaterno, 256); ap != "" {
			parte.ApellidoPaterno = &ap
		}
		if am := safestr.Texto(p.ApellidoMaterno, 256); am != "" {
			parte.ApellidoMaterno = &am
		}
		if p.EsPromovente {
			parte.CorreoElectronico = safestr.Email(p.CorreoElectronico)
			parte.Telefono = safestr.Telefono(p.Telefono)
		}
		out = append(out, parte)
	}
	return out
}

func buildArchivos(in []ArchivoInput) []domain.Archivo {
	out := make([]domain.Archivo, 0, len(in))
	for _, a := range in {
		out = append(out, domain.Archivo{
			NombreArchivo: a.NombreArchivo,
			HashSha1:      a.HashSha1,
			HashSha256:    a.HashSha256,
			TipoDocumento: a.TipoDocumento,
			URL:           a.URL,
			TamanoBytes:   a.TamanoBytes,
			Estado:        domain.EstadoPendiente,
		})
	}
	return out
}

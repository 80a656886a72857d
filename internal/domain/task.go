package domain

import "time"

// Task states.
const (
	TareaEncolada  = "ENCOLADA"
	TareaCorriendo = "CORRIENDO"
	TareaTerminada = "TERMINADA"
	TareaFallida   = "FALLIDA"
	TareaCancelada = "CANCELADA"
)

// Task commands dispatched by the runner.
const (
	ComandoEnviarExhorto       = "exh_exhortos.enviar"
	ComandoConsultarExhorto    = "exh_exhortos.consultar"
	ComandoResponderExhorto    = "exh_exhortos.responder"
	ComandoEnviarActualizacion = "exh_exhortos_actualizaciones.enviar"
	ComandoEnviarPromocion     = "exh_exhortos_promociones.enviar"
	ComandoConsultarMaterias   = "exh_externos.consultar_materias"
)

// TaskRecord tracks one background job through the worker pool: command,
// target entity, monotonically increasing progress, and a terminal message
// or error. Redundant enqueues are no-ops keyed on (command, entity) while
// a previous record is still pending.
type TaskRecord struct {
	ID      string `json:"id" gorm:"type:char(36);primaryKey"`
	Command string `json:"command" gorm:"type:varchar(64);not null;index:idx_tareas_comando,priority:1"`

	// EntityID is the target aggregate or child filing.
	EntityID string `json:"entity_id" gorm:"type:char(36);not null;index:idx_tareas_comando,priority:2"`

	Estado   string `json:"estado" gorm:"type:varchar(16);not null;index"`
	Progreso int    `json:"progreso" gorm:"not null;default:0"`
	Mensaje  string `json:"mensaje" gorm:"type:text"`

	// Optional artifact produced by the job.
	ArchivoNombre string `json:"archivo_nombre" gorm:"type:varchar(256)"`
	URLPublica    string `json:"url_publica" gorm:"type:varchar(512)"`

	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// TableName returns the database table name for TaskRecord.
func (TaskRecord) TableName() string { return "exh_tareas" }

// Pendiente reports whether the task still occupies its (command, entity)
// idempotency slot.
func (t *TaskRecord) Pendiente() bool {
	return t.Estado == TareaEncolada || t.Estado == TareaCorriendo
}

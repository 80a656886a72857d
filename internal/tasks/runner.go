// Package tasks runs the engine's background work: a bounded worker pool
// that claims enqueued task records from the database and executes the
// registered command handlers, plus the cron scheduler that sweeps POR
// ENVIAR exhortos back into the queue.
//
// Tasks live in the database, not in memory: any service can enqueue by
// inserting a record, and a restart resumes pending work. The dispatcher
// claims records with an optimistic estado guard so multiple instances never
// run the same task twice.
package tasks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/justicia-digital/exhorto-interchange/internal/domain"
	"github.com/justicia-digital/exhorto-interchange/internal/repo"
)

// Handler executes one command against its target entity.
type Handler func(ctx context.Context, entityID string) error

// dispatchInterval is how often the dispatcher polls for enqueued tasks.
const dispatchInterval = 2 * time.Second

// Runner is the bounded worker pool.
type Runner struct {
	db       *gorm.DB
	log      zerolog.Logger
	workers  int
	queue    chan domain.TaskRecord
	handlers map[string]Handler

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewRunner builds a Runner with the given pool size and queue capacity.
func NewRunner(db *gorm.DB, workers, queueCapacity int, log zerolog.Logger) *Runner {
	if workers < 1 {
		workers = 1
	}
	if queueCapacity < 1 {
		queueCapacity = 1
	}
	return &Runner{
		db:       db,
		log:      log,
		workers:  workers,
		queue:    make(chan domain.TaskRecord, queueCapacity),
		handlers: make(map[string]Handler),
	}
}

// Register binds a command to its handler. Must be called before Start.
func (r *Runner) Register(command string, h Handler) {
	r.handlers[command] = h
}

// Start launches the dispatcher and the workers. Idempotent.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true
	ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.dispatch(ctx)
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.work(ctx)
	}
	r.log.Info().Int("workers", r.workers).Msg("task runner iniciado")
}

// Stop cancels the pool and waits for in-flight jobs to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.started = false
	cancel := r.cancel
	r.mu.Unlock()

	cancel()
	r.wg.Wait()
	r.log.Info().Msg("task runner detenido")
}

// dispatch polls for ENCOLADA records and claims them into the queue.
func (r *Runner) dispatch(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(dispatchInterval)
	defer ticker.Stop()
	// First sweep runs immediately so a restart resumes pending work without
	// waiting out a full interval.
	r.claimBatch(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.claimBatch(ctx)
		}
	}
}

func (r *Runner) claimBatch(ctx context.Context) {
	free := cap(r.queue) - len(r.queue)
	if free <= 0 {
		return
	}
	pending, err := repo.ListEnqueuedTasks(ctx, r.db, free)
	if err != nil {
		r.log.Error().Err(err).Msg("no se pudieron leer las tareas encoladas")
		return
	}
	for _, t := range pending {
		if err := repo.StartTask(ctx, r.db, t.ID); err != nil {
			// Claimed by another dispatcher or cancelled meanwhile.
			if !errors.Is(err, repo.ErrStale) {
				r.log.Error().Err(err).Str("tarea_id", t.ID).Msg("no se pudo reclamar la tarea")
			}
			continue
		}
		select {
		case r.queue <- t:
		case <-ctx.Done():
			return
		}
	}
}

// work consumes claimed tasks and executes their handlers.
func (r *Runner) work(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-r.queue:
			r.run(ctx, t)
		}
	}
}

func (r *Runner) run(ctx context.Context, t domain.TaskRecord) {
	log := r.log.With().Str("tarea_id", t.ID).Str("comando", t.Command).Str("entity_id", t.EntityID).Logger()

	cancelled, err := repo.IsTaskCancelled(ctx, r.db, t.ID)
	if err == nil && cancelled {
		log.Info().Msg("tarea cancelada antes de correr")
		return
	}

	handler, ok := r.handlers[t.Command]
	if !ok {
		log.Error().Msg("comando sin handler registrado")
		_ = repo.FinishTask(ctx, r.db, t.ID, domain.TareaFallida, "comando desconocido: "+t.Command)
		return
	}

	_ = repo.UpdateTaskProgress(ctx, r.db, t.ID, 10, "corriendo")
	start := time.Now()
	if err := handler(ctx, t.EntityID); err != nil {
		log.Warn().Err(err).Dur("elapsed", time.Since(start)).Msg("tarea fallida")
		_ = repo.FinishTask(ctx, r.db, t.ID, domain.TareaFallida, err.Error())
		return
	}
	_ = repo.UpdateTaskProgress(ctx, r.db, t.ID, 100, "")
	_ = repo.FinishTask(ctx, r.db, t.ID, domain.TareaTerminada, "terminada")
	log.Info().Dur("elapsed", time.Since(start)).Msg("tarea terminada")
}

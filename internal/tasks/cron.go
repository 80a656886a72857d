package tasks

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// ResendScanner is what the scheduler needs from the outbound service.
type ResendScanner interface {
	EncolarPorEnviar(ctx context.Context) (int, error)
}

// Scheduler periodically sweeps POR ENVIAR exhortos back into the task
// queue so send failures get retried after their delay without operator
// intervention.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
}

// NewScheduler registers the resend sweep under spec (standard cron or
// "@every" descriptors).
func NewScheduler(spec string, svc ResendScanner, log zerolog.Logger) (*Scheduler, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		n, err := svc.EncolarPorEnviar(context.Background())
		if err != nil {
			log.Error().Err(err).Msg("falló el barrido de reenvíos")
			return
		}
		if n > 0 {
			log.Info().Int("encolados", n).Msg("exhortos por enviar encolados")
		}
	})
	if err != nil {
		return nil, err
	}
	return &Scheduler{cron: c, log: log}, nil
}

// Start begins the schedule.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("programador de reenvíos iniciado")
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("programador de reenvíos detenido")
}

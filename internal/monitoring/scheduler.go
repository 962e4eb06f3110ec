package monitoring

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// DefaultPruneSpec runs housekeeping every five minutes.
const DefaultPruneSpec = "@every 5m"

// Pruner drops expired entries and reports how many it removed.
type Pruner interface {
	Prune() int
}

// Scheduler runs periodic housekeeping for in-memory stores.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates a new scheduler instance.
func NewScheduler() *Scheduler {
	return &Scheduler{cron: cron.New()}
}

// AddPruner schedules p under schedule, a standard cron expression or an
// @every descriptor.
func (s *Scheduler) AddPruner(name, schedule string, p Pruner) error {
	if _, err := s.cron.AddFunc(schedule, func() { runPrune(name, p) }); err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", schedule, name, err)
	}
	log.Info().Str("job", name).Str("schedule", schedule).Msg("Scheduled pruning job")
	return nil
}

// Jobs returns the number of scheduled jobs.
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

// Run starts the scheduler in the background.
func (s *Scheduler) Run() {
	log.Info().Msg("Starting background scheduler")
	s.cron.Start()
}

// Stop halts the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Info().Msg("Stopped background scheduler")
}

func runPrune(name string, p Pruner) {
	if removed := p.Prune(); removed > 0 {
		log.Debug().Str("job", name).Int("removed", removed).Msg("Pruned expired entries")
	}
}

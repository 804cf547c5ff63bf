package orch

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Sweeper periodically ends sessions whose host stopped sending heartbeats.
type Sweeper struct {
	orch   *Orchestrator
	idle   time.Duration
	quartz *cron.Cron
}

func NewSweeper(o *Orchestrator, schedule string, idle time.Duration) (*Sweeper, error) {
	s := &Sweeper{
		orch:   o,
		idle:   idle,
		quartz: cron.New(cron.WithLogger(cron.VerbosePrintfLogger(&log.Logger))),
	}
	if _, err := s.quartz.AddFunc(schedule, s.Sweep); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sweeper) Start() { s.quartz.Start() }

// Stop halts the schedule and waits for a running sweep.
func (s *Sweeper) Stop() { <-s.quartz.Stop().Done() }

// Sweep runs one expiry pass.
func (s *Sweeper) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	ended := s.orch.ExpireIdleSessions(ctx, s.idle)
	if len(ended) > 0 {
		log.Info().Str("module", "sweeper").Int("ended", len(ended)).Msg("idle sessions expired")
	}
}

package matometrics

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// NodeStats is a snapshot a StatsReporter logs on every tick. Callers
// supply a closure that gathers it fresh each time, since the
// registry/buffer/transport state changes continuously.
type NodeStats struct {
	ConnectedPeers      int
	LocalModules        int
	RemoteModules       int
	ActiveSubscriptions int
	DanglingDescriptors int
}

// StatsReporter periodically logs a node-status line and a
// dangling-list sweep report, and mirrors the same numbers into the
// Metrics gauges. It is a much lighter cousin of the teacher's RPC
// Scheduler: one fixed job, no per-procedure cron table, grounded in
// the same cron.Cron + cron.Parser construction.
type StatsReporter struct {
	cron    *cron.Cron
	metrics *Metrics
	collect func() NodeStats
}

// NewStatsReporter builds a reporter that calls collect on every tick
// of schedule: a 5-field cron expression, a 6-field one with a leading
// seconds field (e.g. "*/10 * * * * *"), or a descriptor such as
// "@every 10s".
func NewStatsReporter(metrics *Metrics, schedule string, collect func() NodeStats) (*StatsReporter, error) {
	parser := cron.NewParser(
		cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)
	r := &StatsReporter{
		cron:    cron.New(cron.WithParser(parser)),
		metrics: metrics,
		collect: collect,
	}
	if _, err := r.cron.AddFunc(schedule, r.report); err != nil {
		return nil, err
	}
	return r, nil
}

// Run starts the cron scheduler and blocks until ctx is cancelled.
func (r *StatsReporter) Run(ctx context.Context) error {
	r.cron.Start()
	<-ctx.Done()
	stopCtx := r.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		log.Warn().Msg("matometrics: stats reporter shutdown timeout")
	}
	return nil
}

func (r *StatsReporter) report() {
	s := r.collect()

	r.metrics.ConnectedPeers.Set(float64(s.ConnectedPeers))
	r.metrics.LocalModules.Set(float64(s.LocalModules))
	r.metrics.RemoteModules.Set(float64(s.RemoteModules))
	r.metrics.ActiveSubscriptions.Set(float64(s.ActiveSubscriptions))
	r.metrics.DanglingDescriptors.Set(float64(s.DanglingDescriptors))

	log.Info().
		Int("connected_peers", s.ConnectedPeers).
		Int("local_modules", s.LocalModules).
		Int("remote_modules", s.RemoteModules).
		Int("active_subscriptions", s.ActiveSubscriptions).
		Int("dangling_descriptors", s.DanglingDescriptors).
		Msg("matometrics: node status")

	if s.DanglingDescriptors > 0 {
		log.Warn().Int("count", s.DanglingDescriptors).Msg("matometrics: dangling descriptors still held by borrowers")
	}
}

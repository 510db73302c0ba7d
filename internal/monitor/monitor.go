// Package monitor polls the Plex server and announces when it goes offline
// or comes back online.
//
// Offline is announced only after NotifyAfterRetries consecutive failed
// probes; a single successful probe announces recovery.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/gordonpn/plex-2-discord/internal/metrics"
	"github.com/gordonpn/plex-2-discord/internal/notifications"
)

const (
	DefaultProbeTimeout = 5 * time.Second

	OnlineMessage  = "✅ Plex server is now **online**!"
	OfflineMessage = "❌ Plex server is **offline**!"
)

type Config struct {
	Interval           time.Duration
	NotifyAfterRetries int
	InitialStatus      Status
	ProbeTimeout       time.Duration
}

type Monitor struct {
	config  Config
	prober  Prober
	sender  notifications.Sender
	metrics *metrics.Metrics
	logger  zerolog.Logger
	now     func() time.Time

	mu    sync.Mutex
	state State

	cron *cron.Cron
}

func New(config Config, prober Prober, sender notifications.Sender, m *metrics.Metrics, logger zerolog.Logger) *Monitor {
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = DefaultProbeTimeout
	}
	if config.NotifyAfterRetries < 1 {
		config.NotifyAfterRetries = 1
	}

	monitor := &Monitor{
		config:  config,
		prober:  prober,
		sender:  sender,
		metrics: m,
		logger:  logger.With().Str("component", "monitor").Logger(),
		now:     time.Now,
		state:   NewState(config.InitialStatus),
	}
	monitor.metrics.RecordState(monitor.state.onlinePtr(), 0)
	return monitor
}

// Start schedules Check every Interval. A tick that comes due while the
// previous probe is still running is skipped.
func (monitor *Monitor) Start() error {
	if monitor.config.Interval <= 0 {
		return fmt.Errorf("monitor interval must be positive, got %s", monitor.config.Interval)
	}

	cl := cronLogger{logger: monitor.logger}
	monitor.cron = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	spec := "@every " + monitor.config.Interval.String()
	if _, err := monitor.cron.AddFunc(spec, func() { monitor.Check(context.Background()) }); err != nil {
		return fmt.Errorf("schedule probe %q: %w", spec, err)
	}

	monitor.cron.Start()
	monitor.logger.Info().
		Dur("interval", monitor.config.Interval).
		Int("notify_after_retries", monitor.config.NotifyAfterRetries).
		Str("initial_state", monitor.config.InitialStatus.String()).
		Msg("availability monitor started")
	return nil
}

// Stop halts the schedule and waits for a running probe to finish or ctx to end.
func (monitor *Monitor) Stop(ctx context.Context) {
	if monitor.cron == nil {
		return
	}
	select {
	case <-monitor.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// Check runs one probe and applies its outcome.
func (monitor *Monitor) Check(ctx context.Context) Transition {
	checkedAt := monitor.now()

	probeCtx, cancel := context.WithTimeout(ctx, monitor.config.ProbeTimeout)
	err := monitor.prober.Probe(probeCtx)
	cancel()
	elapsed := monitor.now().Sub(checkedAt)

	ok := err == nil
	monitor.metrics.RecordProbe(elapsed, ok)

	monitor.mu.Lock()
	transition := monitor.state.Observe(ok, checkedAt, monitor.config.NotifyAfterRetries)
	state := monitor.state
	monitor.mu.Unlock()

	monitor.metrics.RecordState(state.onlinePtr(), state.ConsecutiveFailures)

	if err != nil {
		monitor.logger.Debug().Err(err).Int("consecutive_failures", state.ConsecutiveFailures).Msg("probe failed")
	}

	switch transition {
	case TransitionOffline:
		monitor.logger.Warn().Int("consecutive_failures", state.ConsecutiveFailures).Time("offline_since", state.LastWentOfflineAt).Msg("server offline")
		monitor.announce(OfflineMessage, "offline")
	case TransitionOnline:
		monitor.logger.Info().Msg("server online")
		monitor.announce(OnlineMessage, "online")
	}

	pushCtx, cancelPush := context.WithTimeout(ctx, monitor.config.ProbeTimeout)
	defer cancelPush()
	if err := monitor.metrics.Push(pushCtx); err != nil {
		monitor.logger.Warn().Err(err).Msg("metrics push failed")
	}
	return transition
}

func (monitor *Monitor) announce(content, to string) {
	monitor.metrics.RecordTransition(to)
	monitor.sender.Send(notifications.Message{Kind: notifications.KindStatus, Content: content})
}

// Snapshot returns a copy of the current state.
func (monitor *Monitor) Snapshot() State {
	monitor.mu.Lock()
	defer monitor.mu.Unlock()
	return monitor.state
}

func (s State) onlinePtr() *bool {
	if s.Status == StatusUnknown {
		return nil
	}
	online := s.Status == StatusOnline
	return &online
}

type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}

package grpcapi

import (
	"context"
	"log/slog"
	"time"
)

// Pinger is anything whose reachability decides the health status, in
// practice the ledger store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthMonitor periodically pings the store and reports the result to the
// health server. It runs as a background goroutine and is safe to stop via
// its context or the Stop method.
type HealthMonitor struct {
	pinger   Pinger
	server   *Server
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
	healthy  bool
}

type MonitorConfig struct {
	// Interval between pings. Defaults to 10s.
	Interval time.Duration
	// Timeout of a single ping. Defaults to 2s.
	Timeout time.Duration
}

// NewHealthMonitor creates a monitor but does not start it.
func NewHealthMonitor(p Pinger, s *Server, cfg MonitorConfig, logger *slog.Logger) *HealthMonitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	return &HealthMonitor{
		pinger:   p,
		server:   s,
		interval: cfg.Interval,
		timeout:  cfg.Timeout,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start checks once immediately, then on every interval until ctx is
// cancelled or Stop is called.
func (m *HealthMonitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	go m.loop(ctx)
	m.logger.Info("health monitor started", slog.Duration("interval", m.interval))
}

// Stop signals the monitor to exit and waits for it to finish.
func (m *HealthMonitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	<-m.done
}

func (m *HealthMonitor) loop(ctx context.Context) {
	defer close(m.done)

	m.check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

func (m *HealthMonitor) check(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	err := m.pinger.Ping(pingCtx)
	ok := err == nil
	if ok != m.healthy {
		if ok {
			m.logger.Info("store reachable, serving")
		} else {
			m.logger.Warn("store unreachable, not serving", slog.Any("error", err))
		}
	}
	m.healthy = ok
	m.server.SetServing(ok)
}

package prometheus

import (
	"context"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/Swind/go-async-queue/core"
)

// QueueSnapshotProvider provides current queue stats snapshots.
type QueueSnapshotProvider interface {
	Stats() core.QueueStats
}

// PoolSnapshotProvider provides current pool stats snapshots.
type PoolSnapshotProvider interface {
	Stats() core.PoolStats
}

var queueStates = []core.QueueState{core.StateRunning, core.StateRestricted, core.StateStopped}

// SnapshotPoller periodically exports queue/pool Stats() snapshots into Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	queuesMu sync.RWMutex
	queues   map[string]QueueSnapshotProvider

	poolsMu sync.RWMutex
	pools   map[string]PoolSnapshotProvider

	queuePending  *prom.GaugeVec
	queueDelayed  *prom.GaugeVec
	queueRunning  *prom.GaugeVec
	queueRejected *prom.GaugeVec
	queueExecuted *prom.GaugeVec
	queueState    *prom.GaugeVec

	poolQueued  *prom.GaugeVec
	poolActive  *prom.GaugeVec
	poolWorkers *prom.GaugeVec
	poolRunning *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(namespace string, reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	gauge := func(name, help string, labels ...string) *prom.GaugeVec {
		return prom.NewGaugeVec(prom.GaugeOpts{Namespace: namespace, Name: name, Help: help}, labels)
	}

	queuePending := gauge("queue_pending", "Number of ready operations per queue.", "queue")
	queueDelayed := gauge("queue_delayed", "Number of pending delayed operations per queue.", "queue")
	queueRunning := gauge("queue_running", "Whether an operation is executing (1=yes, 0=no).", "queue")
	queueRejected := gauge("queue_rejected", "Queue discarded submission count snapshot.", "queue")
	queueExecuted := gauge("queue_executed", "Queue executed operation count snapshot.", "queue")
	queueState := gauge("queue_state", "Queue lifecycle state (1 for the current state).", "queue", "state")

	poolQueued := gauge("pool_queued", "Drain loops waiting for a worker per pool.", "pool")
	poolActive := gauge("pool_active", "Drain loops executing per pool.", "pool")
	poolWorkers := gauge("pool_workers", "Worker count per pool.", "pool")
	poolRunning := gauge("pool_running", "Pool running state (1=running, 0=stopped).", "pool")

	var err error
	for _, g := range []**prom.GaugeVec{
		&queuePending, &queueDelayed, &queueRunning, &queueRejected, &queueExecuted, &queueState,
		&poolQueued, &poolActive, &poolWorkers, &poolRunning,
	} {
		if *g, err = registerCollector(reg, *g); err != nil {
			return nil, err
		}
	}

	return &SnapshotPoller{
		interval:      interval,
		queues:        make(map[string]QueueSnapshotProvider),
		pools:         make(map[string]PoolSnapshotProvider),
		queuePending:  queuePending,
		queueDelayed:  queueDelayed,
		queueRunning:  queueRunning,
		queueRejected: queueRejected,
		queueExecuted: queueExecuted,
		queueState:    queueState,
		poolQueued:    poolQueued,
		poolActive:    poolActive,
		poolWorkers:   poolWorkers,
		poolRunning:   poolRunning,
	}, nil
}

// AddQueue adds or replaces a queue snapshot provider by name.
func (p *SnapshotPoller) AddQueue(name string, provider QueueSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "queue")
	p.queuesMu.Lock()
	p.queues[name] = provider
	p.queuesMu.Unlock()
}

// AddPool adds or replaces a pool snapshot provider by name.
func (p *SnapshotPoller) AddPool(name string, provider PoolSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "pool")
	p.poolsMu.Lock()
	p.pools[name] = provider
	p.poolsMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.CollectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.CollectOnce()
		}
	}
}

// CollectOnce updates every gauge from the registered providers.
func (p *SnapshotPoller) CollectOnce() {
	p.queuesMu.RLock()
	for name, provider := range p.queues {
		stats := provider.Stats()
		p.queuePending.WithLabelValues(name).Set(float64(stats.Pending))
		p.queueDelayed.WithLabelValues(name).Set(float64(stats.Delayed))
		p.queueRunning.WithLabelValues(name).Set(boolGauge(stats.Running))
		p.queueRejected.WithLabelValues(name).Set(float64(stats.Rejected))
		p.queueExecuted.WithLabelValues(name).Set(float64(stats.Executed))
		for _, state := range queueStates {
			p.queueState.WithLabelValues(name, state.String()).Set(boolGauge(stats.State == state))
		}
	}
	p.queuesMu.RUnlock()

	p.poolsMu.RLock()
	for name, provider := range p.pools {
		stats := provider.Stats()
		p.poolQueued.WithLabelValues(name).Set(float64(stats.Queued))
		p.poolActive.WithLabelValues(name).Set(float64(stats.Active))
		p.poolWorkers.WithLabelValues(name).Set(float64(stats.Workers))
		p.poolRunning.WithLabelValues(name).Set(boolGauge(stats.Running))
	}
	p.poolsMu.RUnlock()
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

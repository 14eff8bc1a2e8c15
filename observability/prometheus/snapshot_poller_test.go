package prometheus

import (
	"context"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Swind/go-async-queue/core"
)

type queueStub struct {
	stats core.QueueStats
}

func (s queueStub) Stats() core.QueueStats { return s.stats }

type poolStub struct {
	stats core.PoolStats
}

func (s poolStub) Stats() core.PoolStats { return s.stats }

func TestSnapshotPoller_CollectsQueueAndPoolStats(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller("asyncqueue", reg, 10*time.Millisecond)
	require.NoError(t, err)

	poller.AddQueue("queue-a", queueStub{stats: core.QueueStats{
		State:    core.StateRestricted,
		Pending:  3,
		Delayed:  2,
		Running:  true,
		Rejected: 5,
		Executed: 9,
	}})
	poller.AddPool("pool-a", poolStub{stats: core.PoolStats{
		Queued:  4,
		Active:  2,
		Workers: 8,
		Running: true,
	}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	poller.Start(ctx)
	defer poller.Stop()

	require.Eventually(t, func() bool {
		pending := testutil.ToFloat64(poller.queuePending.WithLabelValues("queue-a"))
		active := testutil.ToFloat64(poller.poolActive.WithLabelValues("pool-a"))
		return pending == 3 && active == 2
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(poller.queueDelayed.WithLabelValues("queue-a")))
	assert.Equal(t, 1.0, testutil.ToFloat64(poller.queueRunning.WithLabelValues("queue-a")))
	assert.Equal(t, 5.0, testutil.ToFloat64(poller.queueRejected.WithLabelValues("queue-a")))
	assert.Equal(t, 9.0, testutil.ToFloat64(poller.queueExecuted.WithLabelValues("queue-a")))
	assert.Equal(t, 1.0, testutil.ToFloat64(poller.queueState.WithLabelValues("queue-a", "restricted")))
	assert.Equal(t, 0.0, testutil.ToFloat64(poller.queueState.WithLabelValues("queue-a", "running")))
	assert.Equal(t, 1.0, testutil.ToFloat64(poller.poolRunning.WithLabelValues("pool-a")))
	assert.Equal(t, 8.0, testutil.ToFloat64(poller.poolWorkers.WithLabelValues("pool-a")))
}

func TestSnapshotPoller_RealQueue(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller("", reg, time.Hour)
	require.NoError(t, err)

	queue := core.NewAsyncQueue(&core.AsyncQueueConfig{Name: "real", Logger: core.NewNoOpLogger()})
	defer queue.Stop()
	queue.EnqueueAfterDelay(time.Hour, core.TimerIDOnlineStateTimeout, func() {})
	queue.EnqueueBlocking(func() {})

	poller.AddQueue(queue.Name(), queue)
	poller.CollectOnce()

	assert.Equal(t, 1.0, testutil.ToFloat64(poller.queueDelayed.WithLabelValues("real")))
	assert.Equal(t, 1.0, testutil.ToFloat64(poller.queueExecuted.WithLabelValues("real")))
	assert.Equal(t, 1.0, testutil.ToFloat64(poller.queueState.WithLabelValues("real", "running")))
}

func TestSnapshotPoller_StartStop_Idempotent(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller("asyncqueue", reg, 20*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	poller.Start(ctx)
	poller.Start(ctx)
	poller.Stop()
	poller.Stop()
}

package pool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexusfab/fabric/internal/resilience"
)

type fakeConn struct {
	healthy int32
	closed  int32
}

func (c *fakeConn) Healthy(ctx context.Context) bool { return atomic.LoadInt32(&c.healthy) == 1 }
func (c *fakeConn) Close() error                     { atomic.StoreInt32(&c.closed, 1); return nil }

func newFakeFactory() (Factory, *int32) {
	var created int32
	return func(ctx context.Context) (Conn, error) {
		atomic.AddInt32(&created, 1)
		return &fakeConn{healthy: 1}, nil
	}, &created
}

func TestPool_GrowsUpToMaxSize(t *testing.T) {
	factory, created := newFakeFactory()
	p := NewPool(Config{Name: "planner", MinSize: 1, MaxSize: 2, AcquireTimeout: 50 * time.Millisecond}, factory)

	c1, err := p.Acquire(context.Background())
	require.NoError(t, err)
	c2, err := p.Acquire(context.Background())
	require.NoError(t, err)

	assert.EqualValues(t, 2, atomic.LoadInt32(created))

	_, err = p.Acquire(context.Background())
	require.Error(t, err, "acquire against a full, empty-idle pool must time out")
	var exhausted *resilience.PoolExhaustedError
	assert.ErrorAs(t, err, &exhausted)

	p.Release(c1)
	p.Release(c2)
}

func TestPool_ReusesReleasedConnections(t *testing.T) {
	factory, created := newFakeFactory()
	p := NewPool(Config{Name: "analyst", MinSize: 1, MaxSize: 2, AcquireTimeout: 50 * time.Millisecond}, factory)

	c1, err := p.Acquire(context.Background())
	require.NoError(t, err)
	p.Release(c1)

	c2, err := p.Acquire(context.Background())
	require.NoError(t, err)

	assert.EqualValues(t, 1, atomic.LoadInt32(created), "reacquiring an idle connection must not dial a new one")
	assert.Same(t, c1, c2)
}

func TestPool_UnhealthyConnectionIsReplaced(t *testing.T) {
	factory, created := newFakeFactory()
	p := NewPool(Config{Name: "executor", MinSize: 1, MaxSize: 2, AcquireTimeout: 50 * time.Millisecond}, factory)

	c1, err := p.Acquire(context.Background())
	require.NoError(t, err)
	c1.(*fakeConn).healthy = 0
	p.Release(c1)

	c2, err := p.Acquire(context.Background())
	require.NoError(t, err)

	assert.EqualValues(t, 2, atomic.LoadInt32(created), "an unhealthy idle connection must be discarded and replaced")
	assert.EqualValues(t, 1, atomic.LoadInt32(&c1.(*fakeConn).closed))
	_ = c2
}

func TestPool_AcquireAfterCloseReturnsClosedError(t *testing.T) {
	factory, _ := newFakeFactory()
	p := NewPool(Config{Name: "planner", MinSize: 1, MaxSize: 2, AcquireTimeout: 50 * time.Millisecond}, factory)
	p.Close()

	_, err := p.Acquire(context.Background())
	require.Error(t, err)
	var closedErr *resilience.PoolClosedError
	assert.ErrorAs(t, err, &closedErr)
}

func TestPool_MaintenanceLoopRevalidatesIdleConnections(t *testing.T) {
	factory, created := newFakeFactory()
	p := NewPool(Config{Name: "analyst", MinSize: 1, MaxSize: 2, AcquireTimeout: 50 * time.Millisecond, HealthCheckInterval: 5 * time.Millisecond}, factory)

	c1, err := p.Acquire(context.Background())
	require.NoError(t, err)
	c2, err := p.Acquire(context.Background())
	require.NoError(t, err)
	c1.(*fakeConn).healthy = 0
	p.Release(c1)
	p.Release(c2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.StartMaintenance(ctx)
	defer p.StopMaintenance()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&c1.(*fakeConn).closed) == 1
	}, 200*time.Millisecond, 5*time.Millisecond, "maintenance loop must close the unhealthy idle connection")

	live, _ := p.Stats()
	assert.Equal(t, 1, live, "revalidation must not drop live below min_size")
	_ = created
}

func TestPool_EvictIdleRespectsMinSize(t *testing.T) {
	factory, _ := newFakeFactory()
	p := NewPool(Config{Name: "planner", MinSize: 1, MaxSize: 3, MaxIdleTime: time.Millisecond, AcquireTimeout: 50 * time.Millisecond}, factory)

	c1, _ := p.Acquire(context.Background())
	c2, _ := p.Acquire(context.Background())
	p.Release(c1)
	p.Release(c2)

	time.Sleep(5 * time.Millisecond)
	p.EvictIdle()

	live, idle := p.Stats()
	assert.Equal(t, 1, live, "eviction must not drop live count below min_size")
	assert.Equal(t, 1, idle)
}

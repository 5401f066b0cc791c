package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dep2p/go-widgetsync/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New("ws", reg)
	require.NoError(t, err)

	m.ManagerCreated()
	m.ManagerCreated()
	m.ManagerDisposed()
	m.Acquire(OutcomeCreated)
	m.Acquire(OutcomeJoined)
	m.Acquire(OutcomeJoined)
	m.LoaderFetch(OutcomeOK)
	m.LoaderCacheHit()
	m.ModelSync(100, nil)
	m.ModelSync(0, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.managers))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.acquires.WithLabelValues(OutcomeJoined)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fetches.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheHits))
	assert.Equal(t, 100.0, testutil.ToFloat64(m.syncBytes))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.syncs.WithLabelValues(OutcomeError)))

	n, err := testutil.GatherAndCount(reg, "ws_registry_managers", "ws_model_sync_bytes_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ManagerCreated()
		m.ManagerDisposed()
		m.Acquire(OutcomeCreated)
		m.LoaderFetch(OutcomeError)
		m.LoaderCacheHit()
		m.ModelSync(10, nil)
		m.Unregister()
	})
	assert.Zero(t, m.SyncRate())
}

func TestMetrics_DoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New("ws", reg)
	require.NoError(t, err)
	_, err = New("ws", reg)
	assert.NoError(t, err)
}

func TestRateMeter(t *testing.T) {
	var mu sync.Mutex
	now := time.Unix(1000, 0)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	step := func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}

	r := newRateMeter(clock)
	r.Add(60)
	step(time.Second)
	r.Add(60)
	assert.Equal(t, int64(120), r.Total())
	assert.Equal(t, 2.0, r.Rate())

	step(59 * time.Second)
	assert.Equal(t, int64(60), r.Total(), "first bucket slid out")

	step(2 * time.Minute)
	assert.Zero(t, r.Total())
}

func TestModule(t *testing.T) {
	reg := prometheus.NewRegistry()
	var m *Metrics
	app := fxtest.New(t,
		Module(),
		fx.Provide(func() prometheus.Registerer { return reg }),
		fx.Populate(&m),
	)
	app.RequireStart().RequireStop()
	require.NotNil(t, m)

	cfg := config.NewConfig()
	cfg.Metrics.Enable = false
	var disabled *Metrics
	app = fxtest.New(t,
		Module(),
		fx.Supply(cfg),
		fx.Populate(&disabled),
	)
	app.RequireStart().RequireStop()
	assert.Nil(t, disabled)
}

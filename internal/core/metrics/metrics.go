package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// 结果标签
const (
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeCreated   = "created"
	OutcomeJoined    = "joined"
	OutcomeCoalesced = "coalesced"
	OutcomeNotFound  = "not_found"
	OutcomeDisposed  = "disposed"
)

// Metrics 指标集合
type Metrics struct {
	managers     prometheus.Gauge
	acquires     *prometheus.CounterVec
	fetches      *prometheus.CounterVec
	cacheHits    prometheus.Counter
	syncs        *prometheus.CounterVec
	syncBytes    prometheus.Counter
	syncRate     *RateMeter
	registerer   prometheus.Registerer
	collectorSet []prometheus.Collector
}

// New 创建指标并注册到 reg（reg 为 nil 时不注册）
func New(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		managers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "managers",
			Help:      "Number of active session managers.",
		}),
		acquires: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "acquire_total",
			Help:      "Manager acquire calls by outcome.",
		}, []string{"outcome"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loader",
			Name:      "fetch_total",
			Help:      "Remote widget module fetches by outcome.",
		}, []string{"outcome"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loader",
			Name:      "cache_hits_total",
			Help:      "Widget module cache hits.",
		}),
		syncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "sync_total",
			Help:      "State sync messages sent by outcome.",
		}, []string{"outcome"}),
		syncBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "sync_bytes_total",
			Help:      "Bytes of state (JSON plus binary buffers) sent.",
		}),
		syncRate:   NewRateMeter(),
		registerer: reg,
	}
	m.collectorSet = []prometheus.Collector{m.managers, m.acquires, m.fetches, m.cacheHits, m.syncs, m.syncBytes}

	if reg != nil {
		for _, c := range m.collectorSet {
			if err := reg.Register(c); err != nil {
				var already prometheus.AlreadyRegisteredError
				if errors.As(err, &already) {
					logger.Debug("指标已注册，跳过", "error", err)
					continue
				}
				m.Unregister()
				return nil, err
			}
		}
	}
	return m, nil
}

// Unregister 从注册器移除全部指标
func (m *Metrics) Unregister() {
	if m == nil || m.registerer == nil {
		return
	}
	for _, c := range m.collectorSet {
		m.registerer.Unregister(c)
	}
}

// ============================================================================
//                              记录方法（nil 安全）
// ============================================================================

// ManagerCreated 活跃管理器 +1
func (m *Metrics) ManagerCreated() {
	if m == nil {
		return
	}
	m.managers.Inc()
}

// ManagerDisposed 活跃管理器 -1
func (m *Metrics) ManagerDisposed() {
	if m == nil {
		return
	}
	m.managers.Dec()
}

// Acquire 记录一次 acquire 结果
func (m *Metrics) Acquire(outcome string) {
	if m == nil {
		return
	}
	m.acquires.WithLabelValues(outcome).Inc()
}

// LoaderFetch 记录一次远程获取结果
func (m *Metrics) LoaderFetch(outcome string) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(outcome).Inc()
}

// LoaderCacheHit 记录一次缓存命中
func (m *Metrics) LoaderCacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

// ModelSync 记录一次状态同步发送
func (m *Metrics) ModelSync(bytes int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.syncs.WithLabelValues(OutcomeError).Inc()
		return
	}
	m.syncs.WithLabelValues(OutcomeOK).Inc()
	m.syncBytes.Add(float64(bytes))
	m.syncRate.Add(int64(bytes))
}

// SyncRate 最近 60 秒的平均同步速率（字节/秒）
func (m *Metrics) SyncRate() float64 {
	if m == nil {
		return 0
	}
	return m.syncRate.Rate()
}

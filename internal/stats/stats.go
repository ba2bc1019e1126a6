package stats

import (
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chatsync"

type StatsProvider interface {
	Incr(name string)
	Decr(name string)
	RegisterMetric(name string)
	RegisterCounter(name string)
	Run()
}

// StatsUpdater exposes named gauges and counters on a private Prometheus
// registry. Updates are applied by a single goroutine started with Run.
type StatsUpdater struct {
	registry   *prometheus.Registry
	mu         sync.RWMutex
	metrics    map[string]metric
	updateChan chan *metricsUpdateReq
	done       chan struct{}
	stopOnce   sync.Once
}

// metric holds exactly one of gauge or counter.
type metric struct {
	gauge   prometheus.Gauge
	counter prometheus.Counter
}

type metricsUpdateReq struct {
	name  string
	value float64
}

// NewStatsUpdater creates a new stats updater instance and serves its
// registry at /metrics on mux.
func NewStatsUpdater(mux *http.ServeMux) *StatsUpdater {
	su := &StatsUpdater{
		registry:   prometheus.NewRegistry(),
		metrics:    make(map[string]metric),
		updateChan: make(chan *metricsUpdateReq, 512),
		done:       make(chan struct{}),
	}
	su.initializeMetrics()
	mux.Handle("GET /metrics", promhttp.HandlerFor(su.registry, promhttp.HandlerOpts{}))

	return su
}

func (su *StatsUpdater) initializeMetrics() {
	startTime := time.Now()
	su.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_milliseconds",
			Help:      "Time since the server started.",
		}, func() float64 {
			return float64(time.Since(startTime).Milliseconds())
		}),
	)
}

func (su *StatsUpdater) updateMetrics() {
	for {
		select {
		case req := <-su.updateChan:
			su.apply(req)
		case <-su.done:
			return
		}
	}
}

func (su *StatsUpdater) apply(req *metricsUpdateReq) {
	su.mu.RLock()
	m, ok := su.metrics[req.name]
	su.mu.RUnlock()
	if !ok {
		panic("metric not found: " + req.name)
	}

	if m.counter != nil {
		if req.value < 0 {
			panic("counter cannot be decremented: " + req.name)
		}
		m.counter.Add(req.value)
		return
	}
	m.gauge.Add(req.value)
}

func (su *StatsUpdater) Incr(name string) {
	su.send(&metricsUpdateReq{name: name, value: 1})
}

func (su *StatsUpdater) Decr(name string) {
	su.send(&metricsUpdateReq{name: name, value: -1})
}

// send queues an update. Updates after Stop are discarded.
func (su *StatsUpdater) send(req *metricsUpdateReq) {
	select {
	case <-su.done:
	case su.updateChan <- req:
	}
}

// RegisterMetric adds a gauge for name. Registering a name twice is a
// no-op.
func (su *StatsUpdater) RegisterMetric(name string) {
	su.register(name, func() metric {
		g := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      metricName(name),
			Help:      name,
		})
		su.registry.MustRegister(g)
		return metric{gauge: g}
	})
}

// RegisterCounter adds a monotonic counter for name, exported with a
// _total suffix. Decr on a counter panics.
func (su *StatsUpdater) RegisterCounter(name string) {
	su.register(name, func() metric {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      metricName(name) + "_total",
			Help:      name,
		})
		su.registry.MustRegister(c)
		return metric{counter: c}
	})
}

func (su *StatsUpdater) register(name string, create func() metric) {
	su.mu.Lock()
	defer su.mu.Unlock()

	if _, ok := su.metrics[name]; ok {
		return
	}
	su.metrics[name] = create()
}

func (su *StatsUpdater) Run() {
	go su.updateMetrics()
}

func (su *StatsUpdater) Stop() {
	su.stopOnce.Do(func() {
		close(su.done)
	})
}

// metricName converts a CamelCase name into snake_case.
func metricName(name string) string {
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

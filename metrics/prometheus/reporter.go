// Package prometheus exports the module's metrics through a Prometheus registry, served
// over HTTP and optionally pushed to a push gateway.
package prometheus

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/kubovy/serial-communication/log"
	"github.com/kubovy/serial-communication/metrics"
)

// Reporter aggregates metrics records into Prometheus collectors.
type Reporter struct {
	cfg      *ReporterConfig
	registry *prometheus.Registry
	server   *http.Server
	addr     net.Addr
	records  chan metrics.Record

	mu         sync.Mutex
	collectors map[string]*collector

	dropped atomic.Int64
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type collector struct {
	counter prometheus.Counter
	gauge   prometheus.Gauge
	policy  metrics.Policy
	value   float64
	cnt     int
}

// NewReporter validates cfg and builds a reporter with its own registry.
// Start must be called before records are aggregated.
func NewReporter(cfg *ReporterConfig) (*Reporter, error) {
	if cfg == nil {
		cfg = &ReporterConfig{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Reporter{
		cfg:        cfg,
		registry:   prometheus.NewRegistry(),
		records:    make(chan metrics.Record, cfg.ChanSize),
		collectors: make(map[string]*collector),
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// FactoryName implements plugin.Plugin.
func (x *Reporter) FactoryName() string {
	return _factoryName
}

// Report queues a record. Records are dropped when the queue is full.
func (x *Reporter) Report(r metrics.Record) {
	select {
	case x.records <- r:
	default:
		if x.dropped.Add(1)%1000 == 1 {
			log.Warn().Int64("dropped", x.dropped.Load()).Msg("prometheus record queue full")
		}
	}
}

// Handler serves the registry in the Prometheus text format.
func (x *Reporter) Handler() http.Handler {
	return promhttp.HandlerFor(x.registry, promhttp.HandlerOpts{})
}

// Addr is the bound HTTP address, nil when the endpoint is disabled.
func (x *Reporter) Addr() net.Addr {
	return x.addr
}

// Start launches aggregation, the HTTP endpoint and the pusher as configured.
func (x *Reporter) Start() error {
	x.wg.Add(1)
	go x.aggregate()

	if x.cfg.ListenAddr != "" {
		if err := x.startHTTPSvr(); err != nil {
			x.Stop()
			return err
		}
	}
	if x.cfg.UsePush {
		x.startPusher()
	}
	return nil
}

// Stop ends every goroutine of the reporter and closes the HTTP endpoint.
func (x *Reporter) Stop() {
	x.cancel()
	if x.server != nil {
		if err := x.server.Close(); err != nil {
			log.Error().Err(err).Msg("stop prometheus http server")
		}
	}
	x.wg.Wait()
}

func (x *Reporter) startHTTPSvr() error {
	l, err := net.Listen("tcp", x.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("prometheus listen %s: %w", x.cfg.ListenAddr, err)
	}

	mux := http.NewServeMux()
	mux.Handle(x.cfg.MetricPath, x.Handler())
	if x.cfg.EnableHealthCheck {
		mux.HandleFunc(x.cfg.HealthCheckPath, x.healthCheckHandler)
	}

	x.addr = l.Addr()
	x.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := x.server.Serve(l); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("prometheus http server")
		}
	}()
	log.Info().Str("addr", l.Addr().String()).Str("path", x.cfg.MetricPath).Msg("prometheus http start listen")
	return nil
}

func (x *Reporter) startPusher() {
	pusher := push.New(x.cfg.PushAddr, x.cfg.PushJobName).Gatherer(x.registry)
	x.wg.Add(1)
	go func() {
		defer x.wg.Done()
		t := time.NewTicker(time.Duration(x.cfg.PushIntervalSec) * time.Second)
		defer t.Stop()
		for {
			select {
			case <-x.ctx.Done():
				return
			case <-t.C:
				ctx, cancel := context.WithTimeout(x.ctx, 5*time.Second)
				if err := pusher.PushContext(ctx); err != nil {
					log.Error().Err(err).Str("gateway", x.cfg.PushAddr).Msg("prometheus push")
				}
				cancel()
			}
		}
	}()
}

func (x *Reporter) aggregate() {
	defer x.wg.Done()
	for {
		select {
		case rc := <-x.records:
			x.merge(&rc)
		case <-x.ctx.Done():
			return
		}
	}
}

func (x *Reporter) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	usage := float64(len(x.records)) / float64(cap(x.records))
	status, code := "healthy", http.StatusOK
	if usage > 0.9 {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":     status,
		"chan_usage": usage,
		"dropped":    x.dropped.Load(),
		"timestamp":  time.Now().Format(time.RFC3339),
	})
}

func (x *Reporter) merge(rc *metrics.Record) {
	key := x.fullName(rc)

	x.mu.Lock()
	defer x.mu.Unlock()

	c, ok := x.collectors[key]
	if !ok {
		var err error
		if c, err = x.newCollector(rc); err != nil {
			log.Error().Err(err).Str("metric", rc.Metrics().Name()).Msg("prometheus register")
			return
		}
		x.collectors[key] = c
	}
	c.merge(rc)
}

func (x *Reporter) newCollector(rc *metrics.Record) (*collector, error) {
	labels := make(prometheus.Labels, len(rc.Dimensions())+len(x.cfg.ExtLabels))
	for k, v := range x.cfg.ExtLabels {
		labels[k] = v
	}
	for k, v := range rc.Dimensions() {
		labels[k] = v
	}
	subsystem := strings.ReplaceAll(rc.Metrics().Group(), ".", "_")
	name := strings.ReplaceAll(rc.Metrics().Name(), ".", "_")

	c := &collector{policy: rc.Metrics().Policy()}
	var col prometheus.Collector
	if c.policy == metrics.Policy_Sum {
		c.counter = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: x.cfg.Namespace, Subsystem: subsystem, Name: name, ConstLabels: labels,
		})
		col = c.counter
	} else {
		c.gauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: x.cfg.Namespace, Subsystem: subsystem, Name: name, ConstLabels: labels,
		})
		col = c.gauge
	}
	if err := x.registry.Register(col); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *collector) merge(rc *metrics.Record) {
	switch c.policy {
	case metrics.Policy_Sum:
		c.counter.Add(float64(rc.Value()))
	case metrics.Policy_Set:
		c.gauge.Set(float64(rc.Value()))
	case metrics.Policy_Max:
		if v := float64(rc.Value()); c.cnt == 0 || v > c.value {
			c.value = v
			c.cnt = 1
			c.gauge.Set(v)
		}
	case metrics.Policy_Stopwatch:
		v, n := rc.RawData()
		c.value += float64(v)
		c.cnt += n
		if c.cnt > 0 {
			c.gauge.Set(c.value / float64(c.cnt))
		}
	}
}

// fullName identifies a metric by group, name, policy and its sorted dimensions.
func (x *Reporter) fullName(rc *metrics.Record) string {
	var sb strings.Builder
	sb.Grow(128)
	sb.WriteString(rc.Metrics().Group())
	sb.WriteString("*")
	sb.WriteString(rc.Metrics().Name())
	sb.WriteString("*")
	sb.WriteString(rc.Metrics().Policy().String())
	sb.WriteString("*")
	sb.WriteString(x.cfg.extLabelsStr)

	keys := make([]string, 0, len(rc.Dimensions()))
	for k := range rc.Dimensions() {
		if _, ok := x.cfg.ExtLabels[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteString(":")
		sb.WriteString(rc.Dimensions()[k])
		sb.WriteString(",")
	}
	return sb.String()
}

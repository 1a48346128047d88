package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the prometheus registry for the menu service
type Collector struct {
	registry *prometheus.Registry

	refreshTotal    *prometheus.CounterVec
	refreshDuration *prometheus.HistogramVec
	menuFailures    *prometheus.CounterVec
	snapshotItems   *prometheus.GaugeVec
	snapshotTime    *prometheus.GaugeVec
	changePercent   prometheus.Gauge
	resolveTotal    *prometheus.CounterVec
	dishSearchTotal *prometheus.CounterVec
}

// NewCollector creates and registers all collectors on a private registry
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		refreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "menubot_refresh_total",
				Help: "Snapshot refresh attempts by outcome",
			},
			[]string{"kind", "outcome"},
		),
		refreshDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "menubot_refresh_duration_seconds",
				Help:    "Time taken to refresh a snapshot",
				Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
			},
			[]string{"kind"},
		),
		menuFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "menubot_menu_fetch_failures_total",
				Help: "Per-menu fetch failures during refresh",
			},
			[]string{"menu_id"},
		),
		snapshotItems: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "menubot_snapshot_items",
				Help: "Distinct items held by each snapshot",
			},
			[]string{"kind"},
		),
		snapshotTime: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "menubot_snapshot_timestamp_seconds",
				Help: "Unix time of the snapshot currently served",
			},
			[]string{"kind"},
		),
		changePercent: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "menubot_last_change_percent",
				Help: "Change percentage of the last full snapshot diff",
			},
		),
		resolveTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "menubot_category_resolve_total",
				Help: "Category resolutions by result kind",
			},
			[]string{"kind"},
		),
		dishSearchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "menubot_dish_search_total",
				Help: "Dish searches by whether anything matched",
			},
			[]string{"matched"},
		),
	}

	for _, collector := range []prometheus.Collector{
		c.refreshTotal, c.refreshDuration, c.menuFailures, c.snapshotItems,
		c.snapshotTime, c.changePercent, c.resolveTotal, c.dishSearchTotal,
	} {
		registry.MustRegister(collector)
	}

	return c
}

// Registry exposes the underlying registry (tests, custom handlers)
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordRefresh records one refresh attempt
func (c *Collector) RecordRefresh(kind, outcome string, took time.Duration, failedMenus []string) {
	c.refreshTotal.WithLabelValues(kind, outcome).Inc()
	c.refreshDuration.WithLabelValues(kind).Observe(took.Seconds())
	for _, id := range failedMenus {
		c.menuFailures.WithLabelValues(id).Inc()
	}
}

// RecordSnapshot records the size and age of the snapshot being served
func (c *Collector) RecordSnapshot(kind string, items int, takenAt time.Time) {
	c.snapshotItems.WithLabelValues(kind).Set(float64(items))
	if !takenAt.IsZero() {
		c.snapshotTime.WithLabelValues(kind).Set(float64(takenAt.Unix()))
	}
}

// RecordChangePercent records the last diff result
func (c *Collector) RecordChangePercent(percent float64) {
	c.changePercent.Set(percent)
}

// RecordResolve counts a category resolution
func (c *Collector) RecordResolve(kind string) {
	c.resolveTotal.WithLabelValues(kind).Inc()
}

// RecordDishSearch counts a dish search
func (c *Collector) RecordDishSearch(matched bool) {
	label := "false"
	if matched {
		label = "true"
	}
	c.dishSearchTotal.WithLabelValues(label).Inc()
}

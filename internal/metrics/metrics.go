// Package metrics exposes the process table to Prometheus. It never
// reads the table directly: it is driven entirely by the snapshots
// Manager.Subscribe hands it, so it observes the same
// mutation-serialized view as get_status (SPEC_FULL.md §D.6).
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bkasymov/taskmaster-v4/internal/manager"
)

// Collector holds the three gauges SPEC_FULL.md §D.6 commits to. Restart
// counts are exported as a gauge rather than a Prometheus counter
// because the value is a running total already tracked per-slot by the
// Manager, not something this package increments itself.
type Collector struct {
	running  *prometheus.GaugeVec
	restarts *prometheus.GaugeVec
	uptime   *prometheus.GaugeVec
}

// NewCollector builds and registers the collector against reg. Passing
// prometheus.NewRegistry() keeps metrics isolated per-instance, which
// matters for tests that construct more than one Manager.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		running: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "taskmaster_program_running",
			Help: "1 if the process slot is running, 0 if finished.",
		}, []string{"program", "slot"}),
		restarts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "taskmaster_program_restarts_total",
			Help: "Number of times this process slot has been restarted.",
		}, []string{"program", "slot"}),
		uptime: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "taskmaster_program_uptime_seconds",
			Help: "Seconds since this process slot's current instance started.",
		}, []string{"program", "slot"}),
	}
	reg.MustRegister(c.running, c.restarts, c.uptime)
	return c
}

// Observe updates every gauge from a fresh snapshot. It is suitable as a
// Manager.Subscribe callback directly.
func (c *Collector) Observe(snap manager.Snapshot) {
	c.running.Reset()
	c.restarts.Reset()
	c.uptime.Reset()

	for name, views := range snap {
		for slot, v := range views {
			labels := prometheus.Labels{"program": name, "slot": strconv.Itoa(slot)}
			running := 0.0
			if v.Status == "running" {
				running = 1.0
			}
			c.running.With(labels).Set(running)
			c.restarts.With(labels).Set(float64(v.Restarts))
			c.uptime.With(labels).Set(v.Uptime.Seconds())
		}
	}
}

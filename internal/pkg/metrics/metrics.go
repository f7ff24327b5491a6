package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds every ota-backend metric and is served on /metrics.
var Registry = prometheus.NewRegistry()

var (
	// RunsTotal counts finished runs by result: succeeded, failed, rebooting.
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ota_runs_total",
			Help: "Total number of OTA runs by result.",
		},
		[]string{"result"},
	)

	// Phase is 1 for the phase the orchestrator is in and 0 for the others.
	Phase = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ota_phase",
			Help: "Current OTA phase (1 = active).",
		},
		[]string{"phase"},
	)

	// DownloadAttemptsTotal counts bundle download attempts by outcome:
	// ok, http_5xx, http_4xx, transport.
	DownloadAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ota_download_attempts_total",
			Help: "Total number of bundle download attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// TelemetryDeliveriesTotal counts event deliveries: delivered, queued.
	TelemetryDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ota_telemetry_deliveries_total",
			Help: "Total number of telemetry delivery attempts by result.",
		},
		[]string{"result"},
	)

	TelemetryQueueLength = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ota_telemetry_queue_length",
			Help: "Number of events found in the offline queue at the last flush.",
		},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		RunsTotal,
		Phase,
		DownloadAttemptsTotal,
		TelemetryDeliveriesTotal,
		TelemetryQueueLength,
	)
}

// SetPhase marks phase as the only active one. An empty phase clears all.
func SetPhase(phase string, all ...string) {
	for _, p := range all {
		v := 0.0
		if p == phase {
			v = 1
		}
		Phase.WithLabelValues(p).Set(v)
	}
}

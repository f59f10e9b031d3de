package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "groupguard_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "groupguard_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"method", "path"})
)

// Webhook metrics
var (
	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "groupguard_webhook_events_total",
		Help: "Total number of webhook events received",
	}, []string{"type"})

	WebhookSignatureFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "groupguard_webhook_signature_failures_total",
		Help: "Total number of webhook deliveries rejected for a bad signature",
	})
)

// Platform API metrics
var (
	PlatformRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "groupguard_platform_requests_total",
		Help: "Total number of messaging platform API requests",
	}, []string{"op", "status"})
)

// Business metrics (gauges updated periodically by collector)
var (
	BlacklistedUsersTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "groupguard_blacklisted_users_total",
		Help: "Number of users currently on the blacklist",
	})

	WarnedUsersTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "groupguard_warned_users_total",
		Help: "Number of (group, user) pairs holding at least one warning",
	})

	AdminGroupsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "groupguard_admin_groups_total",
		Help: "Number of groups with at least one admin",
	})
)

// Event counters (incremented on occurrence)
var (
	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "groupguard_commands_total",
		Help: "Total number of chat commands handled",
	}, []string{"command", "outcome"})

	WarningsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "groupguard_warnings_total",
		Help: "Total number of warning operations",
	}, []string{"operation"})

	BlacklistChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "groupguard_blacklist_changes_total",
		Help: "Total number of blacklist additions and removals",
	}, []string{"action"})

	KicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "groupguard_kicks_total",
		Help: "Total number of kick attempts",
	}, []string{"status"})

	ReportsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "groupguard_reports_total",
		Help: "Total number of user reports submitted",
	})
)

// CommandsHandled sums CommandsTotal across all label values.
func CommandsHandled() float64 {
	return sumCounterVec(CommandsTotal)
}

func sumCounterVec(vec *prometheus.CounterVec) float64 {
	ch := make(chan prometheus.Metric)
	go func() {
		vec.Collect(ch)
		close(ch)
	}()

	var total float64
	for m := range ch {
		var pb dto.Metric
		if err := m.Write(&pb); err != nil {
			continue
		}
		if c := pb.GetCounter(); c != nil {
			total += c.GetValue()
		}
	}
	return total
}

// NormalizePath reduces high-cardinality path labels. Only the known routes keep their
// path; everything else is collapsed into one label.
func NormalizePath(path string) string {
	switch path {
	case "/callback", "/metrics", "/healthz":
		return path
	}
	if strings.HasPrefix(path, "/callback/") {
		return "/callback"
	}
	return "other"
}

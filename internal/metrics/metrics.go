package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coursetrack_events_published_total",
		Help: "Total number of cross-panel events published, by event name",
	}, []string{"event"})

	ProgressWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coursetrack_progress_writes_total",
		Help: "Total number of progress writes attempted, by trigger and result",
	}, []string{"reason", "result"})

	ProgressWritesRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coursetrack_progress_writes_rejected_total",
		Help: "Total number of progress writes rejected before I/O because the playback time was zero or invalid",
	}, []string{"reason"})

	ChapterCompletionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coursetrack_chapter_completions_total",
		Help: "Total number of chapter completion calls, by trigger and result",
	}, []string{"trigger", "result"})

	ToggleRollbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coursetrack_toggle_rollbacks_total",
		Help: "Total number of optimistic toggles reverted after a failed backend call",
	}, []string{"toggle"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coursetrack_http_requests_total",
		Help: "Total number of API requests served, by method and status class",
	}, []string{"method", "status"})

	RateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coursetrack_rate_limited_total",
		Help: "Total number of API requests rejected by the rate limiter, by key kind",
	}, []string{"kind"})

	WebhookDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coursetrack_webhook_deliveries_total",
		Help: "Total number of milestone webhook deliveries after retries, by event and result",
	}, []string{"event", "result"})
)

// IncEventPublished records a published bus event.
func IncEventPublished(event string) {
	if event == "" {
		event = "unknown"
	}
	EventsPublishedTotal.WithLabelValues(event).Inc()
}

// IncProgressWrite records a finished progress write.
func IncProgressWrite(reason string, err error) {
	ProgressWritesTotal.WithLabelValues(reason, resultLabel(err)).Inc()
}

// IncProgressRejected records a progress write dropped by the zero/invalid time guard.
func IncProgressRejected(reason string) {
	ProgressWritesRejectedTotal.WithLabelValues(reason).Inc()
}

// IncChapterCompletion records a chapter completion call.
func IncChapterCompletion(trigger string, err error) {
	ChapterCompletionsTotal.WithLabelValues(trigger, resultLabel(err)).Inc()
}

// IncToggleRollback records an optimistic toggle rollback.
func IncToggleRollback(toggle string) {
	ToggleRollbacksTotal.WithLabelValues(toggle).Inc()
}

// IncHTTPRequest records a served request. Status codes are bucketed by class.
func IncHTTPRequest(method string, status int) {
	HTTPRequestsTotal.WithLabelValues(method, statusClass(status)).Inc()
}

// IncRateLimited records a request rejected by the limiter.
func IncRateLimited(kind string) {
	RateLimitedTotal.WithLabelValues(kind).Inc()
}

// IncWebhookDelivery records the final outcome of a webhook delivery.
func IncWebhookDelivery(event string, err error) {
	WebhookDeliveriesTotal.WithLabelValues(event, resultLabel(err)).Inc()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

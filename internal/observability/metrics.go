package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "esign_http_requests_total", Help: "Inbound HTTP requests"},
		[]string{"endpoint", "status"},
	)
	DocuSignCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "docusign_calls_total", Help: "DocuSign API call outcomes"},
		[]string{"operation", "result", "http_status"},
	)
	DocuSignLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "docusign_call_latency_seconds", Help: "DocuSign API call latency"},
	)
	SigningGroups = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "docusign_signing_groups_total", Help: "Ephemeral signing group lifecycle"},
		[]string{"action", "result"},
	)
	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "docusign_webhook_events_total", Help: "Webhook events by type"},
		[]string{"event", "result"},
	)
	TokenRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "docusign_token_refreshes_total", Help: "JWT grant token refreshes"},
		[]string{"result"},
	)
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(HTTPRequests, DocuSignCalls, DocuSignLatency, SigningGroups, WebhookEvents, TokenRefreshes)
}

package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	APIRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "zapmotor_api_requests_total", Help: "API requests"},
		[]string{"endpoint", "status"},
	)
	Enqueues = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "zapmotor_enqueue_total", Help: "SQS enqueue results"},
		[]string{"type", "result"},
	)
	LinkRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "zapmotor_link_runs_total", Help: "Session link run outcomes"},
		[]string{"outcome"},
	)
	CampaignRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "zapmotor_campaign_runs_total", Help: "Campaign run outcomes"},
		[]string{"outcome"},
	)
	Sends = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "zapmotor_send_total", Help: "Per-recipient send outcomes"},
		[]string{"result"},
	)
	SendLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "zapmotor_send_latency_seconds", Help: "Per-recipient send latency"},
	)
	ChallengePublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "zapmotor_challenge_published_total", Help: "QR/login code publishes"},
		[]string{"kind"},
	)
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(APIRequests, Enqueues, LinkRuns, CampaignRuns, Sends, SendLatency, ChallengePublished)
}

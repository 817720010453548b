package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	MessagesSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_sent_total",
			Help: "Total number of chat messages stored.",
		},
	)

	MessagesMarkedReadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_marked_read_total",
			Help: "Total number of messages moved from unread to read.",
		},
		[]string{"scope"},
	)

	ConversationsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_conversations_created_total",
			Help: "Total number of conversations created.",
		},
	)

	RealtimePublishFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_publish_failures_total",
			Help: "Realtime events that could not be published.",
		},
	)

	ProfileCacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "profile_cache_lookups_total",
			Help: "Profile cache lookups by result.",
		},
		[]string{"result"},
	)
)

// MustRegister registers every collector on the default registry, labelled
// with the service name.
func MustRegister(serviceName string) {
	registerer := prometheus.WrapRegistererWith(
		prometheus.Labels{"service": serviceName},
		prometheus.DefaultRegisterer,
	)
	registerer.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDurationSeconds,
		MessagesSentTotal,
		MessagesMarkedReadTotal,
		ConversationsCreatedTotal,
		RealtimePublishFailuresTotal,
		ProfileCacheLookupsTotal,
	)
}

package observability

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skill_http_requests_total",
			Help: "Total number of HTTP requests processed by the skill exchange service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skill_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	grpcClientHandledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grpc_client_handled_total",
			Help: "Total number of gRPC calls completed by the client.",
		},
		[]string{"grpc_service", "grpc_method", "grpc_code"},
	)
	wsActiveConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "skill_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
		[]string{"kind"},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skill_ws_events_total",
			Help: "Total number of websocket events.",
		},
		[]string{"kind", "event"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "skill_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
	liveSubscriptions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "skill_live_subscriptions",
			Help: "Number of open live view subscriptions.",
		},
		[]string{"kind"},
	)
	liveReloadFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skill_live_reload_failures_total",
			Help: "Total number of failed live view snapshot loads.",
		},
		[]string{"kind"},
	)
	requestsSubmittedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "skill_requests_submitted_total",
			Help: "Total number of skill requests submitted.",
		},
	)
	requestResponsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skill_request_responses_total",
			Help: "Total number of skill request responses by resulting status.",
		},
		[]string{"status"},
	)
	sessionsCompletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "skill_sessions_completed_total",
			Help: "Total number of skill sessions marked completed.",
		},
	)
	messagesSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "skill_messages_sent_total",
			Help: "Total number of chat messages stored.",
		},
	)
	reconcileRepairsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "skill_reconcile_repairs_total",
			Help: "Total number of sessions recreated for accepted requests that lacked one.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		grpcClientHandledTotal,
		wsActiveConnections,
		wsEventsTotal,
		amqpPublishErrorsTotal,
		liveSubscriptions,
		liveReloadFailuresTotal,
		requestsSubmittedTotal,
		requestResponsesTotal,
		sessionsCompletedTotal,
		messagesSentTotal,
		reconcileRepairsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func GRPCClientMetricsUnaryInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		err := invoker(ctx, method, req, reply, cc, opts...)
		statusInfo := status.Convert(err)
		service, name := splitFullMethod(method)
		grpcClientHandledTotal.WithLabelValues(service, name, statusInfo.Code().String()).Inc()
		return err
	}
}

func splitFullMethod(fullMethod string) (string, string) {
	parts := strings.Split(fullMethod, "/")
	if len(parts) < 3 {
		return "unknown", "unknown"
	}
	return parts[1], parts[2]
}

func IncWSActive(kind string) {
	wsActiveConnections.WithLabelValues(kind).Inc()
}

func DecWSActive(kind string) {
	wsActiveConnections.WithLabelValues(kind).Dec()
}

func IncWSEvent(kind, event string) {
	wsEventsTotal.WithLabelValues(kind, event).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}

func IncLiveSubscriptions(kind string) {
	liveSubscriptions.WithLabelValues(kind).Inc()
}

func DecLiveSubscriptions(kind string) {
	liveSubscriptions.WithLabelValues(kind).Dec()
}

func IncLiveReloadFailure(kind string) {
	liveReloadFailuresTotal.WithLabelValues(kind).Inc()
}

func IncRequestSubmitted() {
	requestsSubmittedTotal.Inc()
}

func IncRequestResponse(status string) {
	requestResponsesTotal.WithLabelValues(status).Inc()
}

func IncSessionCompleted() {
	sessionsCompletedTotal.Inc()
}

func IncMessageSent() {
	messagesSentTotal.Inc()
}

func IncReconcileRepair() {
	reconcileRepairsTotal.Inc()
}

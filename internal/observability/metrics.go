package observability

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

const namespace = "lineup"

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, matched route and status code.",
	}, []string{"method", "route", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP handler latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"method", "route"})

	grpcHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grpc_server_handled_total",
		Help: "Unary gRPC calls completed on the server.",
	}, []string{"grpc_service", "grpc_method", "grpc_code"})

	wsConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Open thread sockets.",
	}, []string{"kind"})

	wsEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ws",
		Name:      "events_total",
		Help:      "Socket lifecycle events.",
	}, []string{"kind", "event"})

	amqpPublishErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "amqp",
		Name:      "publish_errors_total",
		Help:      "Broker publishes that failed.",
	})

	threadsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "threads_created_total",
		Help:      "Threads created, by stored type.",
	}, []string{"type"})

	directReused = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "direct_thread_reused_total",
		Help:      "Direct thread lookups answered by an existing thread.",
	})

	threadRollbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "thread_rollbacks_total",
		Help:      "Thread writes rolled back after a participant insert failed.",
	}, []string{"op"})

	messagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_sent_total",
		Help:      "Messages stored.",
	})
)

// HTTPMetricsMiddleware records request counts and latency keyed by the
// matched gin route, so path parameters do not explode label cardinality.
func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		httpRequests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpLatency.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

func GRPCServerMetricsUnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		service, method := splitFullMethod(info.FullMethod)
		grpcHandled.WithLabelValues(service, method, status.Code(err).String()).Inc()
		return resp, err
	}
}

// splitFullMethod turns "/pkg.Service/Method" into its two halves.
func splitFullMethod(fullMethod string) (string, string) {
	service, method, ok := strings.Cut(strings.TrimPrefix(fullMethod, "/"), "/")
	if !ok || service == "" || method == "" {
		return "unknown", "unknown"
	}
	return service, method
}

func IncWSActive(kind string) { wsConnections.WithLabelValues(kind).Inc() }

func DecWSActive(kind string) { wsConnections.WithLabelValues(kind).Dec() }

func IncWSEvent(kind, event string) { wsEvents.WithLabelValues(kind, event).Inc() }

func IncAMQPPublishError() { amqpPublishErrors.Inc() }

func IncThreadCreated(threadType string) { threadsCreated.WithLabelValues(threadType).Inc() }

func IncDirectThreadReused() { directReused.Inc() }

func IncThreadRollback(op string) { threadRollbacks.WithLabelValues(op).Inc() }

func IncMessagesSent() { messagesSent.Inc() }

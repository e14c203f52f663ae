package webhook

import (
	"net/http"
	"time"
)

// KindStats tracks how events of one kind were handled
type KindStats struct {
	Kind               string  `json:"kind"`
	Received           int64   `json:"received"`
	Processed          int64   `json:"processed"`
	Duplicates         int64   `json:"duplicates"`
	Unknown            int64   `json:"unknown"`
	HandlerCalls       int64   `json:"handlerCalls"`
	HandlerFailures    int64   `json:"handlerFailures"`
	AverageHandlerTime float64 `json:"averageHandlerTime"` // milliseconds
	LastEventAt        int64   `json:"lastEventAt,omitempty"`
}

// DeliveryStats counts deliveries by overall status
type DeliveryStats struct {
	Accepted       int64 `json:"accepted"`
	Rejected       int64 `json:"rejected"`
	LastDeliveryAt int64 `json:"lastDeliveryAt,omitempty"`
}

// ServerOptions configures the webhook server
type ServerOptions struct {
	Port               int           // Server port (default: 8000)
	Host               string        // Server host (default: "0.0.0.0")
	Path               string        // Webhook path (default: "/webhook")
	RateLimitPerMinute int           // Requests per minute per IP (default: 600)
	MaxBodyBytes       int64         // Largest accepted body (default: 1 MiB)
	ShutdownTimeout    time.Duration // Wait for in-flight deliveries (default: 30s)

	// MetricsHandler is mounted on MetricsPath when set
	MetricsHandler http.Handler
	MetricsPath    string // default: "/metrics"
}

package notify

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/jthomaschappell/echolingo-resurgence/internal/notify")

// DefaultHeartbeat keeps idle streams open through proxies.
const DefaultHeartbeat = 30 * time.Second

// SSE streams a worker channel to a browser as Server-Sent Events.
type SSE struct {
	nc        *nats.Conn
	heartbeat time.Duration
}

// NewSSE returns an SSE streamer. heartbeat <= 0 uses DefaultHeartbeat.
func NewSSE(nc *nats.Conn, heartbeat time.Duration) *SSE {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	return &SSE{nc: nc, heartbeat: heartbeat}
}

// Stream subscribes to every event on channelKey and writes each one as
//
//	event: <eventType>
//	data: <json>
//
// until the client disconnects.
func (s *SSE) Stream(c echo.Context, channelKey string) error {
	msgChan := make(chan *nats.Msg, 64)
	sub, err := s.nc.ChanSubscribe(Subject(channelKey, ">"), msgChan)
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "event bus unavailable").SetInternal(err)
	}
	defer func() {
		_ = sub.Unsubscribe()
	}()
	// Subscription is registered before the client sees headers.
	if err := s.nc.Flush(); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "event bus unavailable").SetInternal(err)
	}

	h := c.Response().Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)
	fmt.Fprint(c.Response(), ": connected\n\n")
	c.Response().Flush()

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	prefix := channelKey + "."
	for {
		select {
		case msg := <-msgChan:
			eventType := strings.TrimPrefix(msg.Subject, prefix)
			_, span := tracer.Start(ExtractTraceContext(c.Request().Context(), msg.Header), "notify.sse_forward",
				trace.WithAttributes(attribute.String("event.type", eventType)))
			fmt.Fprintf(c.Response(), "event: %s\n", eventType)
			fmt.Fprintf(c.Response(), "data: %s\n\n", msg.Data)
			c.Response().Flush()
			span.End()

		case <-ticker.C:
			fmt.Fprint(c.Response(), ": heartbeat\n\n")
			c.Response().Flush()

		case <-c.Request().Context().Done():
			return nil
		}
	}
}

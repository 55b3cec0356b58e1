// Package observe provides application-wide observability primitives for
// audiorelay: OpenTelemetry metrics, tracing, structured logging, and HTTP
// middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and scraped
// from the [Telemetry.MetricsHandler] Prometheus endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all audiorelay metrics.
const meterName = "github.com/MrWong99/audiorelay"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Sender ---

	// PacketsSent counts packets handed to the transport without error.
	PacketsSent metric.Int64Counter

	// BytesSent counts packet bytes, header included, sent without error.
	BytesSent metric.Int64Counter

	// SendFailures counts failed send attempts. Use with attribute:
	//   attribute.String("protocol", ...)
	SendFailures metric.Int64Counter

	// Reconnects counts TCP reconnect cycles. Use with attribute:
	//   attribute.String("status", "ok"|"error")
	Reconnects metric.Int64Counter

	// CaptureQueueDrops counts frames evicted from a full capture queue.
	CaptureQueueDrops metric.Int64Counter

	// --- Receiver ---

	// PacketsReceived counts in-sequence packets played back.
	PacketsReceived metric.Int64Counter

	// PacketsLost counts packets accounted as lost.
	PacketsLost metric.Int64Counter

	// BytesReceived counts bytes of well-formed packets.
	BytesReceived metric.Int64Counter

	// MalformedPackets counts packets shorter than the header.
	MalformedPackets metric.Int64Counter

	// SilenceUnits counts silence payloads written in place of missing audio.
	SilenceUnits metric.Int64Counter

	// QualityRating is the most recent calculated quality rating.
	QualityRating metric.Float64Gauge

	// CatalogWrites counts catalog persistence attempts. Use with attribute:
	//   attribute.String("status", "ok"|"error")
	CatalogWrites metric.Int64Counter

	// ActiveClients tracks connected TCP senders on the receiver.
	ActiveClients metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Sender.
	if met.PacketsSent, err = m.Int64Counter("audiorelay.sender.packets",
		metric.WithDescription("Total packets sent."),
	); err != nil {
		return nil, err
	}
	if met.BytesSent, err = m.Int64Counter("audiorelay.sender.bytes",
		metric.WithDescription("Total packet bytes sent."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.SendFailures, err = m.Int64Counter("audiorelay.sender.failures",
		metric.WithDescription("Total failed send attempts by protocol."),
	); err != nil {
		return nil, err
	}
	if met.Reconnects, err = m.Int64Counter("audiorelay.sender.reconnects",
		metric.WithDescription("Total TCP reconnect cycles by status."),
	); err != nil {
		return nil, err
	}
	if met.CaptureQueueDrops, err = m.Int64Counter("audiorelay.capture.queue_drops",
		metric.WithDescription("Total captured frames dropped because the hand-off queue was full."),
	); err != nil {
		return nil, err
	}

	// Receiver.
	if met.PacketsReceived, err = m.Int64Counter("audiorelay.receiver.packets",
		metric.WithDescription("Total in-sequence packets received."),
	); err != nil {
		return nil, err
	}
	if met.PacketsLost, err = m.Int64Counter("audiorelay.receiver.lost",
		metric.WithDescription("Total packets accounted as lost."),
	); err != nil {
		return nil, err
	}
	if met.BytesReceived, err = m.Int64Counter("audiorelay.receiver.bytes",
		metric.WithDescription("Total bytes of well-formed packets received."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.MalformedPackets, err = m.Int64Counter("audiorelay.receiver.malformed",
		metric.WithDescription("Total packets dropped as malformed."),
	); err != nil {
		return nil, err
	}
	if met.SilenceUnits, err = m.Int64Counter("audiorelay.receiver.silence_units",
		metric.WithDescription("Total silence payloads substituted for missing audio."),
	); err != nil {
		return nil, err
	}
	if met.QualityRating, err = m.Float64Gauge("audiorelay.receiver.quality_rating",
		metric.WithDescription("Most recent quality rating derived from packet loss."),
	); err != nil {
		return nil, err
	}
	if met.CatalogWrites, err = m.Int64Counter("audiorelay.catalog.writes",
		metric.WithDescription("Total catalog writes by status."),
	); err != nil {
		return nil, err
	}
	if met.ActiveClients, err = m.Int64UpDownCounter("audiorelay.receiver.active_clients",
		metric.WithDescription("Number of connected TCP senders."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("audiorelay.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordSend records the outcome of one send attempt of n bytes.
func (m *Metrics) RecordSend(ctx context.Context, protocol string, n int, err error) {
	if err != nil {
		m.SendFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("protocol", protocol)))
		return
	}
	m.PacketsSent.Add(ctx, 1)
	m.BytesSent.Add(ctx, int64(n))
}

// RecordReconnect records one reconnect cycle.
func (m *Metrics) RecordReconnect(ctx context.Context, err error) {
	m.Reconnects.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status(err))))
}

// RecordCatalogWrite records one catalog persistence attempt.
func (m *Metrics) RecordCatalogWrite(ctx context.Context, err error) {
	m.CatalogWrites.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status(err))))
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

package otelhelper

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// PortKey names the port an error packet travelled on.
const PortKey = "flowroute.packet.port"

// SetError marks span as failed.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.AddEvent("error_occurred", trace.WithAttributes(
		attrs...,
	))
}

// RecordErrorPacket notes an error packet relayed through span. The span status is left
// untouched since error packets are data, not failures of the relaying operation.
func RecordErrorPacket(span trace.Span, port, message string) {
	span.AddEvent("error_packet", trace.WithAttributes(
		attribute.String(PortKey, port),
		attribute.String("message", message),
	))
}

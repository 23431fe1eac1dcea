package switchnode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/flowroute/pkg/models"
	"github.com/dukex/flowroute/pkg/otelhelper"
	"github.com/dukex/flowroute/pkg/packet"
	"github.com/dukex/flowroute/pkg/protocol"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrHandlerFinished = errors.New("route handler already finished")
	ErrCallbackPanic   = errors.New("downstream operation panicked")
	ErrNoStream        = errors.New("downstream operation returned no stream")
)

// routeRequest describes the downstream call a route handler makes.
type routeRequest struct {
	ref       models.ComponentReference
	operation string
	inherent  models.InherentData
	config    models.RuntimeConfig
	caseLabel string
	index     int
}

// routeHandler forwards a sub-stream to a downstream operation and collects its response.
// tx, rx and done are each released exactly once by Finish.
type routeHandler struct {
	tx     *packet.Sender
	rx     *packet.Stream
	done   chan struct{}
	logger *slog.Logger
}

func newRouteHandler(
	ctx context.Context,
	req routeRequest,
	inv *protocol.Invocation,
	callback protocol.RuntimeCallback,
	tracer trace.Tracer,
	logger *slog.Logger,
) *routeHandler {
	innerTx, innerRx := inv.MakeResponse()
	outerTx, outerRx := inv.MakeResponse()
	done := make(chan struct{})

	logger = logger.With("reference", req.ref.String(), "case", req.caseLabel)
	logger.DebugContext(ctx, "Route handler created")

	go func() {
		defer close(done)
		defer outerTx.Close()

		ctx, span := otelhelper.StartSpan(ctx, tracer, "switch.case",
			attribute.String(otelhelper.InvocationIDKey, inv.ID.String()),
			attribute.String(otelhelper.ReferenceKey, req.ref.String()),
			attribute.String(otelhelper.OperationKey, req.operation),
			attribute.String(otelhelper.CaseKey, req.caseLabel),
			attribute.Int(otelhelper.CaseIndexKey, req.index),
		)
		defer span.End()

		logger.DebugContext(ctx, "Starting case task")

		// The downstream input is of no use once the case task is over.
		defer innerRx.Close()

		stream, err := invokeDownstream(ctx, callback, req, innerRx)
		if err != nil {
			otelhelper.SetError(span, err, attribute.String(otelhelper.ReferenceKey, req.ref.String()))
			logger.WarnContext(ctx, "Case operation failed", "error", err)

			_ = outerTx.Send(packet.ComponentError(err.Error()))

			return
		}

		defer stream.Close()

		for {
			pkt, ok := stream.Next(ctx)
			if !ok {
				break
			}

			logger.DebugContext(ctx, "Case stream packet", "packet", pkt.String())

			if pkt.IsDone() {
				break
			}

			if pkt.IsError() {
				otelhelper.RecordErrorPacket(span, pkt.Port, pkt.Error.Message)
			}

			_ = outerTx.Send(pkt)
		}

		logger.DebugContext(ctx, "Case task done")
	}()

	return &routeHandler{
		tx:     innerTx,
		rx:     outerRx,
		done:   done,
		logger: logger,
	}
}

func invokeDownstream(
	ctx context.Context,
	callback protocol.RuntimeCallback,
	req routeRequest,
	input *packet.Stream,
) (stream *packet.Stream, err error) {
	defer func() {
		if r := recover(); r != nil {
			stream, err = nil, fmt.Errorf("%w: %v", ErrCallbackPanic, r)
		}
	}()

	stream, err = callback(ctx, req.ref, req.operation, input, req.inherent, req.config)
	if err == nil && stream == nil {
		err = ErrNoStream
	}

	return stream, err
}

// Send forwards a packet to the downstream operation.
func (h *routeHandler) Send(pkt packet.Packet) error {
	if h.tx == nil {
		return ErrHandlerFinished
	}

	return h.tx.Send(pkt)
}

// IsFinished reports whether Finish has completed.
func (h *routeHandler) IsFinished() bool {
	return h.tx == nil && h.done == nil && h.rx == nil
}

// Finish closes the downstream input with a done packet per field, waits for the case
// task and moves whatever it produced to out. Calling it again has no effect.
func (h *routeHandler) Finish(ctx context.Context, fields []models.Field, out *packet.Sender) {
	if h.tx != nil {
		for _, field := range fields {
			h.logger.DebugContext(ctx, "Sending done to case stream", "input", field.Name)
			_ = h.tx.Send(packet.Done(field.Name))
		}

		h.tx.Close()
		h.tx = nil
	}

	if h.done != nil {
		h.logger.DebugContext(ctx, "Awaiting case task completion")

		select {
		case <-h.done:
		case <-ctx.Done():
		}

		h.done = nil
	}

	if h.rx != nil {
		h.logger.DebugContext(ctx, "Draining case stream")

		for {
			pkt, ok := h.rx.Next(ctx)
			if !ok {
				break
			}

			_ = out.Send(pkt)
		}

		h.rx.Close()
		h.rx = nil
	}
}

package switchnode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/flowroute/pkg/models"
	"github.com/dukex/flowroute/pkg/packet"
	"github.com/eapache/queue"
)

var ErrConditionNotReady = errors.New("no condition at index")

type canHandle int

const (
	canHandleYes canHandle = iota
	canHandleNo
	canHandleMaybe
)

func (c canHandle) String() string {
	switch c {
	case canHandleYes:
		return "yes"
	case canHandleNo:
		return "no"
	default:
		return "maybe"
	}
}

// condition is a resolved case bound to a running route handler.
type condition struct {
	level     int
	value     any
	caseLabel string
	target    Target
	handler   *routeHandler
}

func newCondition(value any, caseLabel string, target Target, level int, handler *routeHandler) *condition {
	return &condition{
		level:     level,
		value:     value,
		caseLabel: caseLabel,
		target:    target,
		handler:   handler,
	}
}

// switchRouter holds the conditions of one invocation in creation order, plus the
// packets waiting for a routing decision.
type switchRouter struct {
	conditions    []*condition
	buffer        *queue.Queue
	rawBuffer     *queue.Queue
	numConditions *int
	logger        *slog.Logger
}

func newSwitchRouter(logger *slog.Logger) *switchRouter {
	return &switchRouter{
		buffer:    queue.New(),
		rawBuffer: queue.New(),
		logger:    logger,
	}
}

func (r *switchRouter) Push(c *condition) {
	r.conditions = append(r.conditions, c)
}

func (r *switchRouter) Len() int {
	return len(r.conditions)
}

func (r *switchRouter) get(index int) *condition {
	if index < 0 || index >= len(r.conditions) {
		return nil
	}

	return r.conditions[index]
}

// ConditionLevel returns the level a condition was created at, or 0 when it does not exist yet.
func (r *switchRouter) ConditionLevel(index int) int {
	if c := r.get(index); c != nil {
		return c.level
	}

	return 0
}

// Freeze records that no further conditions will be created.
func (r *switchRouter) Freeze() {
	if r.IsFrozen() {
		return
	}

	if len(r.conditions) == 0 {
		r.logger.Debug("Match stream done with no conditions set")
	} else {
		r.logger.Debug("Freezing conditions", "conditions", len(r.conditions))
	}

	n := len(r.conditions)
	r.numConditions = &n
}

func (r *switchRouter) IsFrozen() bool {
	return r.numConditions != nil
}

func (r *switchRouter) IsReady(index int) bool {
	return r.get(index) != nil
}

func (r *switchRouter) CanHandle(index int) canHandle {
	switch {
	case r.IsReady(index):
		return canHandleYes
	case !r.IsFrozen():
		return canHandleMaybe
	default:
		return canHandleNo
	}
}

// HandlePacket routes pkt to the condition at index. Callers check CanHandle first.
func (r *switchRouter) HandlePacket(index int, pkt packet.Packet) error {
	c := r.get(index)
	if c == nil {
		return fmt.Errorf("%w %d", ErrConditionNotReady, index)
	}

	r.logger.Debug("Routing packet to case", "case", c.caseLabel, "index", index, "packet", pkt.String())

	return c.handler.Send(pkt)
}

// BufferRaw holds a packet until a new condition may be able to take it.
func (r *switchRouter) BufferRaw(pkt packet.Packet) {
	r.rawBuffer.Add(pkt)
}

// PopBuffer returns the next packet to replay.
func (r *switchRouter) PopBuffer() (packet.Packet, bool) {
	if r.buffer.Length() == 0 {
		return packet.Packet{}, false
	}

	pkt, _ := r.buffer.Remove().(packet.Packet)

	return pkt, true
}

// HasRaw reports whether packets are waiting for a routing decision.
func (r *switchRouter) HasRaw() bool {
	return r.rawBuffer.Length() > 0
}

// Replay moves raw-buffered packets behind the replay buffer, keeping their order.
func (r *switchRouter) Replay() {
	for r.rawBuffer.Length() > 0 {
		r.buffer.Add(r.rawBuffer.Remove())
	}
}

// Finish finalises the handler of the condition at index.
func (r *switchRouter) Finish(ctx context.Context, index int, fields []models.Field, tx *packet.Sender) {
	c := r.get(index)
	if c == nil {
		return
	}

	r.logger.DebugContext(ctx, "Finishing case iteration", "case", c.caseLabel, "index", index)
	c.handler.Finish(ctx, fields, tx)
}

// Cleanup finalises every condition that is still open.
func (r *switchRouter) Cleanup(ctx context.Context, fields []models.Field, tx *packet.Sender) {
	for i, c := range r.conditions {
		if c.handler.IsFinished() {
			continue
		}

		r.logger.DebugContext(ctx, "Cleaning up case", "case", c.caseLabel, "index", i)
		c.handler.Finish(ctx, fields, tx)
	}
}

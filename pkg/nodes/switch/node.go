// Package switchnode provides the switch/case stream router. A switch reads a multiplexed
// packet stream, selects a case operation from each value received on the "match" port,
// routes the sub-streams of its inputs to that operation and merges every case output
// back into one stream.
package switchnode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"runtime"
	"sync"
	"time"

	"github.com/dukex/flowroute/pkg/eventbus"
	"github.com/dukex/flowroute/pkg/events"
	"github.com/dukex/flowroute/pkg/log"
	"github.com/dukex/flowroute/pkg/models"
	"github.com/dukex/flowroute/pkg/otelhelper"
	"github.com/dukex/flowroute/pkg/packet"
	"github.com/dukex/flowroute/pkg/protocol"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// Discriminant is the input port whose values select a case.
	Discriminant = "match"
	NodeType     = "switch"

	defaultCaseLabel = "default"
)

var (
	ErrDiscriminantDecode = errors.New("failed to decode switch discriminant")
	ErrNoCallback         = errors.New("switch operation requires a runtime callback")
	ErrSignatureRequired  = errors.New("switch signature has not been generated")
)

// SwitchNode implements protocol.Operation for multi-way stream routing.
type SwitchNode struct {
	id            string
	config        *Config
	defaultTarget Target
	caseTargets   []Target

	logger    *slog.Logger
	tracer    trace.Tracer
	publisher eventbus.EventPublisher

	mu        sync.Mutex
	signature *models.OperationSignature
}

// Option customises a SwitchNode.
type Option func(*SwitchNode)

func WithLogger(logger *slog.Logger) Option {
	return func(n *SwitchNode) {
		n.logger = logger
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(n *SwitchNode) {
		n.tracer = tracer
	}
}

// WithPublisher publishes case lifecycle events to publisher.
func WithPublisher(publisher eventbus.EventPublisher) Option {
	return func(n *SwitchNode) {
		n.publisher = publisher
	}
}

// NewSwitchNode creates a new switch node from its raw configuration.
func NewSwitchNode(id string, config map[string]any, opts ...Option) (*SwitchNode, error) {
	cfg, err := DecodeConfig(config)
	if err != nil {
		return nil, err
	}

	n := &SwitchNode{
		id:            id,
		config:        cfg,
		defaultTarget: ParseTarget(cfg.Default),
		caseTargets:   make([]Target, 0, len(cfg.Cases)),
		logger:        log.WithModule("switch"),
		tracer:        otelhelper.NoopTracer(),
		publisher:     eventbus.NoopPublisher(),
	}

	for _, c := range cfg.Cases {
		n.caseTargets = append(n.caseTargets, ParseTarget(c.Do))
	}

	for _, opt := range opts {
		opt(n)
	}

	n.logger = n.logger.With("node_id", id)

	return n, nil
}

// ID returns the node ID.
func (n *SwitchNode) ID() string {
	return n.id
}

// Type returns the node type.
func (n *SwitchNode) Type() string {
	return NodeType
}

// Config returns the decoded configuration.
func (n *SwitchNode) Config() *Config {
	return n.config
}

// InputNames returns every port the switch reads, the discriminant last.
func (n *SwitchNode) InputNames() []string {
	return n.config.InputNames()
}

// GenSignature resolves every case operation against env, checks that they agree on their
// outputs and caches the resulting signature.
func (n *SwitchNode) GenSignature(env Environment) (models.OperationSignature, error) {
	sig, err := genSignature(n.id, n.config, n.defaultTarget, n.caseTargets, env)
	if err != nil {
		n.logger.Error("Invalid switch configuration", "error", err)

		return models.OperationSignature{}, err
	}

	n.mu.Lock()
	n.signature = &sig
	n.mu.Unlock()

	return sig, nil
}

// Signature returns the signature computed by GenSignature.
func (n *SwitchNode) Signature() (models.OperationSignature, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.signature == nil {
		return models.OperationSignature{}, false
	}

	return *n.signature, true
}

func (n *SwitchNode) checkTargets() error {
	for _, t := range append([]Target{n.defaultTarget}, n.caseTargets...) {
		if t.Kind == TargetNode {
			return fmt.Errorf("%w: '%s' is not an operation path", ErrOperationNotFound, t.Path)
		}
	}

	return nil
}

// Handle starts routing the invocation stream and returns the merged output stream.
// GenSignature must have succeeded first so that every case is known to agree on its
// outputs.
func (n *SwitchNode) Handle(ctx context.Context, inv *protocol.Invocation, callback protocol.RuntimeCallback) (*packet.Stream, error) {
	if callback == nil {
		return nil, ErrNoCallback
	}

	if err := n.checkTargets(); err != nil {
		return nil, err
	}

	if _, ok := n.Signature(); !ok {
		return nil, fmt.Errorf("%w: call GenSignature before Handle on '%s'", ErrSignatureRequired, n.id)
	}

	tx, rx := inv.MakeResponse()

	logger := log.FromContext(ctx, n.logger).With("invocation_id", inv.ID.String())

	d := &dispatch{
		node:     n,
		inv:      inv,
		callback: callback,
		root:     inv.EjectStream(),
		tx:       tx,
		router:   newSwitchRouter(logger),
		inputs:   make(inputStreams, len(n.config.Inputs)),
		rng:      rand.New(rand.NewPCG(inv.Seed(), inv.Seed())), //nolint:gosec // deterministic per-invocation seed
		logger:   logger,
	}

	for _, field := range n.config.Inputs {
		d.inputs[field.Name] = newInputStream(field.Name, logger)
	}

	go d.run(ctx)

	return rx, nil
}

// dispatch is the state of one invocation. Only the run goroutine touches it.
type dispatch struct {
	node     *SwitchNode
	inv      *protocol.Invocation
	callback protocol.RuntimeCallback
	root     *packet.Stream
	rootDone bool
	tx       *packet.Sender
	router   *switchRouter
	inputs   inputStreams
	rng      *rand.Rand
	logger   *slog.Logger

	// conditionLevel is the sub-stream level of the match port.
	conditionLevel int
}

func (d *dispatch) run(ctx context.Context) {
	defer d.tx.Close()
	defer d.root.Close()

	start := time.Now()

	ctx, span := otelhelper.StartSpan(ctx, d.node.tracer, "switch",
		attribute.String(otelhelper.InvocationIDKey, d.inv.ID.String()),
		attribute.String(otelhelper.TxIDKey, d.inv.TxID.String()),
		attribute.String(otelhelper.NodeIDKey, d.node.id),
	)
	defer span.End()

	err := d.loop(ctx)
	if err != nil {
		otelhelper.SetError(span, err)
		d.logger.ErrorContext(ctx, "Switch invocation failed", "error", err)
		_ = d.tx.Error(err)
	} else {
		d.logger.DebugContext(ctx, "All inputs done and buffers drained")
	}

	d.router.Cleanup(ctx, d.node.config.Inputs, d.tx)

	if err == nil {
		for _, output := range d.node.config.Outputs {
			d.logger.DebugContext(ctx, "Sending done to root stream", "port", output.Name)
			_ = d.tx.Send(packet.Done(output.Name))
		}
	}

	completed := events.SwitchCompleted{
		BaseEvent:  events.NewBaseEvent(events.SwitchCompletedEvent, d.inv.ID.String(), d.node.id),
		Conditions: d.router.Len(),
		Duration:   time.Since(start),
	}
	if err != nil {
		completed.Error = err.Error()
	}

	d.publish(ctx, completed)
}

func (d *dispatch) loop(ctx context.Context) error {
	for {
		pkt, ok := d.next(ctx)
		if !ok {
			if err := ctx.Err(); err != nil {
				return err
			}

			if !d.router.HasRaw() {
				return nil
			}

			// Nothing left upstream can create a condition.
			d.router.Freeze()
			d.router.Replay()

			continue
		}

		finished, err := d.process(ctx, pkt)
		if err != nil {
			return err
		}

		if finished {
			d.logger.DebugContext(ctx, "All inputs done")

			return nil
		}
	}
}

// next prefers replayed packets over fresh reads from the root stream.
func (d *dispatch) next(ctx context.Context) (packet.Packet, bool) {
	if pkt, ok := d.router.PopBuffer(); ok {
		return pkt, true
	}

	if d.rootDone {
		return packet.Packet{}, false
	}

	pkt, ok := d.root.Next(ctx)
	if !ok {
		d.rootDone = true
	}

	return pkt, ok
}

func (d *dispatch) process(ctx context.Context, pkt packet.Packet) (bool, error) {
	if pkt.IsComponentError() {
		_ = d.tx.Send(pkt)

		return false, nil
	}

	if pkt.Port == Discriminant {
		return false, d.processDiscriminant(ctx, pkt)
	}

	input, ok := d.inputs[pkt.Port]
	if !ok {
		d.logger.WarnContext(ctx, "Received packet on unrecognized input port", "port", pkt.Port)

		return false, nil
	}

	if pkt.IsDone() {
		d.logger.DebugContext(ctx, "Input stream done", "port", pkt.Port)
		input.SetDone()

		return false, nil
	}

	index := input.CurrIndex()

	switch d.router.CanHandle(index) {
	case canHandleNo:
		d.logger.DebugContext(ctx, "Routing packet to root stream", "input", pkt.Port)
		d.passThrough(pkt)

		return false, nil
	case canHandleMaybe:
		d.logger.DebugContext(ctx, "Buffering packet", "input", pkt.Port, "index", index)
		d.router.BufferRaw(pkt)

		return false, nil
	case canHandleYes:
	}

	switch {
	case pkt.IsOpenBracket():
		input.IncLevel()

		if input.Level() > d.router.ConditionLevel(index) {
			d.route(ctx, index, pkt)
		} else {
			d.logger.DebugContext(ctx, "Routing open bracket to root stream")
			d.broadcast(packet.OpenBracket)
		}
	case pkt.IsCloseBracket():
		return d.processCloseBracket(ctx, input, pkt)
	default:
		d.route(ctx, index, pkt)
		runtime.Gosched()
	}

	return false, nil
}

func (d *dispatch) processDiscriminant(ctx context.Context, pkt packet.Packet) error {
	switch {
	case pkt.HasData():
		value, err := pkt.DecodeValue()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrDiscriminantDecode, err)
		}

		d.addCondition(ctx, value)

		// A new condition may claim packets that arrived too early.
		d.router.Replay()
	case pkt.IsDone():
		d.router.Freeze()
	case pkt.IsOpenBracket():
		d.conditionLevel++
	case pkt.IsCloseBracket():
		if d.conditionLevel == 0 {
			return fmt.Errorf("%w on port '%s'", ErrLevelUnderflow, Discriminant)
		}

		d.conditionLevel--
	default:
		d.logger.WarnContext(ctx, "Ignoring packet on match port", "packet", pkt.String())
	}

	return nil
}

func (d *dispatch) processCloseBracket(ctx context.Context, input *inputStream, pkt packet.Packet) (bool, error) {
	if err := input.DecLevel(); err != nil {
		return false, fmt.Errorf("%w on port '%s'", err, input.name)
	}

	index := input.CurrIndex()
	level := input.Level()
	conditionLevel := d.router.ConditionLevel(index)

	switch {
	case level > conditionLevel:
		d.route(ctx, index, pkt)
	case level == conditionLevel:
		// This input is done with the condition.
		d.route(ctx, index, pkt)
		input.IncCurrIndex()

		if d.inputs.allPast(index) {
			d.finish(ctx, index)

			if d.inputs.allDone() {
				return true, nil
			}
		}
	default:
		d.logger.DebugContext(ctx, "Routing close bracket to root stream")
		d.broadcast(packet.CloseBracket)
	}

	return false, nil
}

func (d *dispatch) addCondition(ctx context.Context, value any) {
	target := d.node.defaultTarget
	label := defaultCaseLabel

	var config models.RuntimeConfig

	caseIndex, matched := d.node.config.Match(value)
	if matched {
		c := d.node.config.Cases[caseIndex]
		target = d.node.caseTargets[caseIndex]
		label = caseLabel(c.Case)
		config = c.With
	}

	index := d.router.Len()

	d.logger.DebugContext(ctx, "Switch case condition",
		"case", label, "condition", value, "operation", target.Path, "level", d.conditionLevel)

	req := routeRequest{
		ref: models.ComponentReference{
			Origin: d.inv.Target,
			Target: target.Entity,
		},
		operation: target.Entity.Name,
		inherent: models.InherentData{
			Seed:      d.rng.Uint64(),
			Timestamp: d.inv.Inherent.Timestamp,
		},
		config:    config,
		caseLabel: label,
		index:     index,
	}

	handler := newRouteHandler(ctx, req, d.inv, d.callback, d.node.tracer, d.logger)
	d.router.Push(newCondition(value, label, target, d.conditionLevel, handler))

	d.publish(ctx, events.SwitchCaseSelected{
		BaseEvent: events.NewBaseEvent(events.SwitchCaseSelectedEvent, d.inv.ID.String(), d.node.id),
		Index:     index,
		Value:     value,
		Case:      label,
		Operation: target.Path,
		Level:     d.conditionLevel,
		Default:   !matched,
	})
}

func (d *dispatch) finish(ctx context.Context, index int) {
	d.router.Finish(ctx, index, d.node.config.Inputs, d.tx)

	c := d.router.get(index)
	if c == nil {
		return
	}

	d.publish(ctx, events.SwitchCaseFinished{
		BaseEvent: events.NewBaseEvent(events.SwitchCaseFinishedEvent, d.inv.ID.String(), d.node.id),
		Index:     index,
		Case:      c.caseLabel,
		Operation: c.target.Path,
	})
}

func (d *dispatch) route(ctx context.Context, index int, pkt packet.Packet) {
	err := d.router.HandlePacket(index, pkt)

	switch {
	case err == nil:
	case errors.Is(err, packet.ErrClosed):
		d.logger.DebugContext(ctx, "Case operation stopped reading its input", "index", index, "packet", pkt.String())
	default:
		d.logger.ErrorContext(ctx, "Failed to route packet", "index", index, "packet", pkt.String(), "error", err)
	}
}

// passThrough copies a packet no condition will ever claim to every output port.
func (d *dispatch) passThrough(pkt packet.Packet) {
	for _, output := range d.node.config.Outputs {
		_ = d.tx.Send(pkt.WithPort(output.Name))
	}
}

func (d *dispatch) broadcast(build func(port string) packet.Packet) {
	for _, output := range d.node.config.Outputs {
		_ = d.tx.Send(build(output.Name))
	}
}

func (d *dispatch) publish(ctx context.Context, event eventbus.Event) {
	if err := d.node.publisher.Publish(ctx, d.inv.ID.String(), event); err != nil {
		d.logger.WarnContext(ctx, "Failed to publish switch event", "event", event.GetType(), "error", err)
	}
}

func caseLabel(value any) string {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}

	return string(raw)
}

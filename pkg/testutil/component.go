package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/dukex/flowroute/pkg/models"
	"github.com/dukex/flowroute/pkg/packet"
	"github.com/dukex/flowroute/pkg/protocol"
)

// OperationFunc implements one operation of a StubComponent.
type OperationFunc func(ctx context.Context, inv *protocol.Invocation, config models.RuntimeConfig) (*packet.Stream, error)

// Call records one invocation of a StubComponent.
type Call struct {
	Operation string
	Origin    models.Entity
	Inherent  models.InherentData
	Config    models.RuntimeConfig
}

// StubComponent is a component whose operations are plain functions.
type StubComponent struct {
	signature  models.ComponentSignature
	operations map[string]OperationFunc

	mu    sync.Mutex
	calls []Call
}

// NewStubComponent creates an empty stub component named name.
func NewStubComponent(name string) *StubComponent {
	return &StubComponent{
		signature:  models.ComponentSignature{Name: name},
		operations: make(map[string]OperationFunc),
	}
}

// WithOperation adds an operation with the given output ports.
func (c *StubComponent) WithOperation(name string, fn OperationFunc, inputs []string, outputs ...string) *StubComponent {
	sig := models.NewOperationSignature(name)
	for _, in := range inputs {
		sig = sig.AddInput(in, models.TypeObject)
	}

	for _, out := range outputs {
		sig = sig.AddOutput(out, models.TypeObject)
	}

	c.signature.Operations = append(c.signature.Operations, sig)
	c.operations[name] = fn

	return c
}

func (c *StubComponent) Signature() models.ComponentSignature {
	return c.signature
}

func (c *StubComponent) Handle(
	ctx context.Context,
	inv *protocol.Invocation,
	config models.RuntimeConfig,
	_ protocol.RuntimeCallback,
) (*packet.Stream, error) {
	fn, ok := c.operations[inv.Target.Name]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", protocol.ErrOperationNotFound, inv.Target)
	}

	c.mu.Lock()
	c.calls = append(c.calls, Call{
		Operation: inv.Target.Name,
		Origin:    inv.Origin,
		Inherent:  inv.Inherent,
		Config:    config,
	})
	c.mu.Unlock()

	return fn(ctx, inv, config)
}

// Calls returns the recorded invocations in call order.
func (c *StubComponent) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]Call(nil), c.calls...)
}

// MapOperation returns an operation that rewrites every packet from port in to port out
// with fn applied to its data. Brackets are renamed, done on in ends the stream.
func MapOperation(in, out string, fn func(any) any) OperationFunc {
	return func(ctx context.Context, inv *protocol.Invocation, _ models.RuntimeConfig) (*packet.Stream, error) {
		input := inv.EjectStream()
		tx, rx := inv.MakeResponse()

		go func() {
			defer tx.Close()

			for {
				pkt, ok := input.Next(ctx)
				if !ok {
					return
				}

				switch {
				case pkt.Port != in:
				case pkt.IsDone():
					_ = tx.Send(packet.Done(out))

					return
				case pkt.HasData():
					v, err := pkt.DecodeValue()
					if err != nil {
						_ = tx.Send(packet.Err(out, err.Error()))

						continue
					}

					_ = tx.Send(packet.Encode(out, fn(v)))
				default:
					_ = tx.Send(pkt.WithPort(out))
				}
			}
		}()

		return rx, nil
	}
}

// FailingOperation returns an operation that fails before producing a stream.
func FailingOperation(err error) OperationFunc {
	return func(context.Context, *protocol.Invocation, models.RuntimeConfig) (*packet.Stream, error) {
		return nil, err
	}
}

// ComponentSignatures resolves operation signatures from components keyed by namespace.
type ComponentSignatures map[string]protocol.Component

func (c ComponentSignatures) OperationSignature(target models.Entity) (models.OperationSignature, bool) {
	component, ok := c[target.Namespace]
	if !ok {
		return models.OperationSignature{}, false
	}

	return component.Signature().Operation(target.Name)
}

// StubCallback dispatches every call to the stub registered for the target namespace.
func StubCallback(components map[string]protocol.Component) protocol.RuntimeCallback {
	return func(
		ctx context.Context,
		ref models.ComponentReference,
		operation string,
		input *packet.Stream,
		inherent models.InherentData,
		config models.RuntimeConfig,
	) (*packet.Stream, error) {
		component, ok := components[ref.Target.Namespace]
		if !ok {
			return nil, fmt.Errorf("%w: '%s'", protocol.ErrOperationNotFound, ref.Target)
		}

		inv := protocol.NewInvocation(ref.Origin, models.NewEntity(ref.Target.Namespace, operation), input, inherent)

		return component.Handle(ctx, inv, config, nil)
	}
}

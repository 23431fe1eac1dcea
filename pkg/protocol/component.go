// Package protocol defines the interfaces and contracts for pluggable components and
// operations.
package protocol

import (
	"context"
	"errors"

	"github.com/dukex/flowroute/pkg/models"
	"github.com/dukex/flowroute/pkg/packet"
)

var ErrOperationNotFound = errors.New("operation not found")

// RuntimeCallback invokes a downstream operation. The tracing span of the caller travels
// in ctx. Implementations must be safe to call from any goroutine.
type RuntimeCallback func(
	ctx context.Context,
	ref models.ComponentReference,
	operation string,
	input *packet.Stream,
	inherent models.InherentData,
	config models.RuntimeConfig,
) (*packet.Stream, error)

// Component is a namespace of operations.
type Component interface {
	// Signature lists the operations this component provides
	Signature() models.ComponentSignature

	// Handle runs the operation named by inv.Target and returns its output stream
	Handle(ctx context.Context, inv *Invocation, config models.RuntimeConfig, callback RuntimeCallback) (*packet.Stream, error)
}

// Operation is a configured operation instance.
type Operation interface {
	ID() string
	Type() string
	Handle(ctx context.Context, inv *Invocation, callback RuntimeCallback) (*packet.Stream, error)
}

// OperationFactory creates operation instances and provides metadata about the operation type.
type OperationFactory interface {
	// Create creates a new operation instance with the given configuration
	Create(ctx context.Context, id string, config map[string]any) (Operation, error)

	// ID returns the unique identifier for this operation type
	ID() string

	// Name returns the human-readable name for this operation type
	Name() string

	// Description returns a description of what this operation does
	Description() string

	// Schema returns the JSON schema for configuring this operation
	Schema() map[string]any
}

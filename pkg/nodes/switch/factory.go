package switchnode

import (
	"context"

	"github.com/dukex/flowroute/pkg/protocol"
)

// SwitchNodeFactory creates SwitchNode instances.
type SwitchNodeFactory struct {
	opts []Option
}

// Create creates a new SwitchNode instance.
//
// nolint:ireturn
func (f *SwitchNodeFactory) Create(_ context.Context, id string, config map[string]any) (protocol.Operation, error) {
	return NewSwitchNode(id, config, f.opts...)
}

// ID returns the factory ID.
func (f *SwitchNodeFactory) ID() string {
	return NodeType
}

// Name returns the factory name.
func (f *SwitchNodeFactory) Name() string {
	return "Switch"
}

// Description returns the factory description.
func (f *SwitchNodeFactory) Description() string {
	return "Multi-way stream router that sends each sub-stream to the operation selected by the value on its match port"
}

// Schema returns the JSON schema for Switch node configuration.
func (f *SwitchNodeFactory) Schema() map[string]any {
	schema := ConfigSchema()
	schema["examples"] = []map[string]any{
		{
			"inputs":  []map[string]any{{"name": "input", "type": "object"}},
			"outputs": []map[string]any{{"name": "output", "type": "object"}},
			"cases": []map[string]any{
				{"case": "upper", "do": "transform::uppercase"},
				{"case": "lower", "do": "transform::lowercase"},
			},
			"default": "transform::echo",
		},
	}

	return schema
}

// NewSwitchNodeFactory creates a new factory instance. opts apply to every node it creates.
//
// nolint:ireturn
func NewSwitchNodeFactory(opts ...Option) protocol.OperationFactory {
	return &SwitchNodeFactory{opts: opts}
}

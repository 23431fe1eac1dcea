package transform

import (
	"log/slog"
	"sort"

	"github.com/dukex/flowroute/pkg/models"
)

const Namespace = "transform"

// NewTransformComponent creates the transform component.
func NewTransformComponent(logger *slog.Logger) *TransformComponent {
	return &TransformComponent{logger: logger.With("component", Namespace)}
}

// Namespace returns the namespace the component is registered under.
func (c *TransformComponent) Namespace() string {
	return Namespace
}

// Signature lists every transform operation. They all read "input" and write "output".
func (c *TransformComponent) Signature() models.ComponentSignature {
	names := make([]string, 0, len(operations))
	for name := range operations {
		names = append(names, name)
	}

	sort.Strings(names)

	sig := models.ComponentSignature{Name: Namespace}
	for _, name := range names {
		sig.Operations = append(sig.Operations, models.NewOperationSignature(name).
			AddInput(InputPort, models.TypeObject).
			AddOutput(OutputPort, models.TypeObject))
	}

	return sig
}

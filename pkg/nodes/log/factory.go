package log

import (
	"log/slog"

	"github.com/dukex/flowroute/pkg/models"
)

const (
	Namespace    = "log"
	TapOperation = "tap"
)

// NewLogComponent creates the log component. Packets are logged through logger.
func NewLogComponent(logger *slog.Logger) *LogComponent {
	return &LogComponent{logger: logger.With("component", Namespace)}
}

func (c *LogComponent) Namespace() string {
	return Namespace
}

func (c *LogComponent) Signature() models.ComponentSignature {
	return models.ComponentSignature{
		Name: Namespace,
		Operations: []models.OperationSignature{
			models.NewOperationSignature(TapOperation).
				AddInput(InputPort, models.TypeObject).
				AddOutput(OutputPort, models.TypeObject),
		},
	}
}

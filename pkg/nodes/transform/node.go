// Package transform provides the built-in value transformation component.
package transform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/dukex/flowroute/pkg/models"
	"github.com/dukex/flowroute/pkg/packet"
	"github.com/dukex/flowroute/pkg/protocol"
)

const (
	InputPort  = "input"
	OutputPort = "output"
)

var ErrUnsupportedValue = errors.New("unsupported value")

type transformFunc func(value any) (any, error)

var operations = map[string]transformFunc{
	"echo":      func(value any) (any, error) { return value, nil },
	"uppercase": stringFunc(strings.ToUpper),
	"lowercase": stringFunc(strings.ToLower),
	"reverse":   reverse,
	"double":    numberFunc(func(f float64) float64 { return f * 2 }),
	"negate":    numberFunc(func(f float64) float64 { return -f }),
}

func stringFunc(fn func(string) string) transformFunc {
	return func(value any) (any, error) {
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: expected string, got %T", ErrUnsupportedValue, value)
		}

		return fn(s), nil
	}
}

func numberFunc(fn func(float64) float64) transformFunc {
	return func(value any) (any, error) {
		f, ok := value.(float64)
		if !ok {
			return nil, fmt.Errorf("%w: expected number, got %T", ErrUnsupportedValue, value)
		}

		return fn(f), nil
	}
}

func reverse(value any) (any, error) {
	switch v := value.(type) {
	case string:
		runes := []rune(v)
		slices.Reverse(runes)

		return string(runes), nil
	case []any:
		out := slices.Clone(v)
		slices.Reverse(out)

		return out, nil
	default:
		return nil, fmt.Errorf("%w: expected string or list, got %T", ErrUnsupportedValue, value)
	}
}

// TransformComponent applies a pure function to every value on its input port.
type TransformComponent struct {
	logger *slog.Logger
}

// Handle runs the operation named by inv.Target. Brackets and errors are forwarded to the
// output port; a value the operation cannot handle becomes an error packet.
func (c *TransformComponent) Handle(
	ctx context.Context,
	inv *protocol.Invocation,
	_ models.RuntimeConfig,
	_ protocol.RuntimeCallback,
) (*packet.Stream, error) {
	fn, ok := operations[inv.Target.Name]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", protocol.ErrOperationNotFound, inv.Target)
	}

	logger := c.logger.With("operation", inv.Target.String(), "invocation_id", inv.ID.String())
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
			case pkt.IsComponentError():
				_ = tx.Send(pkt)
			case pkt.Port != InputPort:
				logger.WarnContext(ctx, "Ignoring packet on unknown port", "port", pkt.Port)
			case pkt.IsDone():
				_ = tx.Send(packet.Done(OutputPort))

				return
			case pkt.HasData():
				_ = tx.Send(apply(fn, pkt))
			default:
				_ = tx.Send(pkt.WithPort(OutputPort))
			}
		}
	}()

	return rx, nil
}

func apply(fn transformFunc, pkt packet.Packet) packet.Packet {
	value, err := pkt.DecodeValue()
	if err != nil {
		return packet.Err(OutputPort, err.Error())
	}

	result, err := fn(value)
	if err != nil {
		return packet.Err(OutputPort, err.Error())
	}

	return packet.Encode(OutputPort, result)
}

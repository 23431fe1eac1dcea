package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dukex/flowroute/pkg/cmd"
	"github.com/dukex/flowroute/pkg/eventbus"
	"github.com/dukex/flowroute/pkg/events"
	"github.com/dukex/flowroute/pkg/log"
	"github.com/dukex/flowroute/pkg/models"
	switchnode "github.com/dukex/flowroute/pkg/nodes/switch"
	"github.com/dukex/flowroute/pkg/packet"
	"github.com/dukex/flowroute/pkg/protocol"
	"github.com/dukex/flowroute/pkg/registry"
	cli "github.com/urfave/cli/v3"
)

func NewRunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run a switch over JSON-lines packets and write the output packets as JSON lines",
		Flags: append(commonFlags(),
			&cli.StringFlag{
				Name:    "input",
				Aliases: []string{"i"},
				Usage:   "JSON-lines packet file, '-' reads stdin",
				Value:   "-",
			},
			&cli.BoolFlag{
				Name:    "otel",
				Usage:   "Export traces over OTLP/HTTP",
				Sources: cli.EnvVars("FLOWROUTE_OTEL"),
			},
			&cli.StringFlag{
				Name:    "events",
				Usage:   "Lifecycle event bus (none, gochannel)",
				Value:   "none",
				Sources: cli.EnvVars("FLOWROUTE_EVENTS"),
			},
		),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("flowroute").With("action", "run")

			fileConfig, err := LoadConfig(command.String("config"))
			if err != nil {
				return err
			}

			tracer, shutdown, err := cmd.NewTracer(ctx, command.Bool("otel"), "flowroute")
			if err != nil {
				return fmt.Errorf("failed to create tracer: %w", err)
			}

			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.ErrorContext(ctx, "Failed to shut down tracer", "error", err)
				}
			}()

			opts := []switchnode.Option{
				switchnode.WithLogger(log.WithModule("switch")),
				switchnode.WithTracer(tracer),
			}

			bus, err := cmd.NewEventBus(command.String("events"), logger)
			if err != nil {
				return err
			}

			if bus != nil {
				defer func() {
					if err := bus.Close(); err != nil {
						logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
					}
				}()

				if err := logEvents(ctx, bus, logger); err != nil {
					return err
				}

				opts = append(opts, switchnode.WithPublisher(bus))
			}

			reg, err := cmd.NewRegistry(logger, command.String("plugins-path"), opts...)
			if err != nil {
				return err
			}

			in, closeInput, err := openInput(command.String("input"))
			if err != nil {
				return err
			}
			defer closeInput()

			return runSwitch(ctx, reg, fileConfig, in, os.Stdout, logger)
		},
	}
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "-" {
		return os.Stdin, func() {}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open input: %w", err)
	}

	return f, func() { _ = f.Close() }, nil
}

// logEvents logs every switch lifecycle event at debug level.
func logEvents(ctx context.Context, bus eventbus.EventBus, logger *slog.Logger) error {
	for _, eventType := range []events.EventType{
		events.SwitchCaseSelectedEvent,
		events.SwitchCaseFinishedEvent,
		events.SwitchCompletedEvent,
	} {
		err := bus.Handle(eventType, func(ctx context.Context, event any) error {
			logger.DebugContext(ctx, "Switch event", "type", eventType, "event", event)

			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to register event handler: %w", err)
		}
	}

	return bus.Subscribe(ctx)
}

// prepareSwitch creates the configured switch and checks it against the registry.
func prepareSwitch(ctx context.Context, reg *registry.Registry, fileConfig *FileConfig) (*switchnode.SwitchNode, models.OperationSignature, error) {
	op, err := reg.CreateOperation(ctx, switchnode.NodeType, fileConfig.ID, fileConfig.Config)
	if err != nil {
		return nil, models.OperationSignature{}, err
	}

	node, ok := op.(*switchnode.SwitchNode)
	if !ok {
		return nil, models.OperationSignature{}, fmt.Errorf("unexpected operation type %T", op)
	}

	sig, err := node.GenSignature(switchnode.Environment{Signatures: reg})
	if err != nil {
		return nil, models.OperationSignature{}, err
	}

	return node, sig, nil
}

func runSwitch(ctx context.Context, reg *registry.Registry, fileConfig *FileConfig, in io.Reader, out io.Writer, logger *slog.Logger) error {
	node, _, err := prepareSwitch(ctx, reg, fileConfig)
	if err != nil {
		return err
	}

	ctx = log.WithContext(ctx, logger)

	tx, rx := packet.NewPipe()
	inv := protocol.NewInvocation(
		models.NewEntity("cli", "flowroute"),
		models.NewEntity(models.SelfNamespace, fileConfig.ID),
		rx,
		models.NewInherentData(fileConfig.seed()),
	)

	logger.InfoContext(ctx, "Running switch", "id", fileConfig.ID, "invocation_id", inv.ID.String())

	stream, err := node.Handle(ctx, inv, reg.Callback())
	if err != nil {
		tx.Close()

		return err
	}

	readCtx, stopReading := context.WithCancel(ctx)
	defer stopReading()

	readErr := make(chan error, 1)

	go func() {
		readErr <- readPackets(readCtx, in, tx)
	}()

	failures, err := writePackets(ctx, stream, out)

	// The switch may finish before the input does.
	stopReading()

	if err != nil {
		return err
	}

	err = <-readErr
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, packet.ErrClosed) {
		return fmt.Errorf("failed to read input: %w", err)
	}

	if failures > 0 {
		logger.WarnContext(ctx, "Switch produced error packets", "count", failures)
	}

	return nil
}

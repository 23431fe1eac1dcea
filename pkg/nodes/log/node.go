// Package log provides the built-in logging component.
package log

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/flowroute/pkg/models"
	"github.com/dukex/flowroute/pkg/packet"
	"github.com/dukex/flowroute/pkg/protocol"
)

const (
	InputPort  = "input"
	OutputPort = "output"

	defaultMessage = "tap"
)

// LogLevel represents different logging levels.
type LogLevel int

const (
	Debug LogLevel = iota
	Info
	Warn
	Error
)

var logLevelName = map[LogLevel]string{
	Debug: "debug",
	Info:  "info",
	Warn:  "warn",
	Error: "error",
}

var slogLevel = map[string]slog.Level{
	logLevelName[Debug]: slog.LevelDebug,
	logLevelName[Info]:  slog.LevelInfo,
	logLevelName[Warn]:  slog.LevelWarn,
	logLevelName[Error]: slog.LevelError,
}

// tapConfig is read from the runtime config of each call.
type tapConfig struct {
	message string
	level   slog.Level
}

func parseTapConfig(config models.RuntimeConfig) (tapConfig, error) {
	cfg := tapConfig{message: defaultMessage, level: slog.LevelInfo}

	if v, ok := config.Get("message"); ok {
		message, ok := v.(string)
		if !ok {
			return cfg, fmt.Errorf("invalid 'message': expected string, got %T", v)
		}

		cfg.message = message
	}

	if v, ok := config.Get("level"); ok {
		name, _ := v.(string)

		level, ok := slogLevel[name]
		if !ok {
			return cfg, fmt.Errorf("invalid 'level' %v: must be one of debug, info, warn, error", v)
		}

		cfg.level = level
	}

	return cfg, nil
}

// LogComponent logs every packet it receives and passes it on unchanged.
type LogComponent struct {
	logger *slog.Logger
}

func (c *LogComponent) Handle(
	ctx context.Context,
	inv *protocol.Invocation,
	config models.RuntimeConfig,
	_ protocol.RuntimeCallback,
) (*packet.Stream, error) {
	if inv.Target.Name != TapOperation {
		return nil, fmt.Errorf("%w: '%s'", protocol.ErrOperationNotFound, inv.Target)
	}

	cfg, err := parseTapConfig(config)
	if err != nil {
		return nil, err
	}

	logger := c.logger.With("origin", inv.Origin.String(), "invocation_id", inv.ID.String())
	input := inv.EjectStream()
	tx, rx := inv.MakeResponse()

	go func() {
		defer tx.Close()

		for {
			pkt, ok := input.Next(ctx)
			if !ok {
				return
			}

			logger.Log(ctx, cfg.level, cfg.message, "packet", pkt.String())

			switch {
			case pkt.IsComponentError():
				_ = tx.Send(pkt)
			case pkt.Port != InputPort:
			case pkt.IsDone():
				_ = tx.Send(packet.Done(OutputPort))

				return
			default:
				_ = tx.Send(pkt.WithPort(OutputPort))
			}
		}
	}()

	return rx, nil
}

package log

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/dukex/flowroute/pkg/models"
	"github.com/dukex/flowroute/pkg/packet"
	"github.com/dukex/flowroute/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogTapPassesPacketsThrough(t *testing.T) {
	var buf bytes.Buffer

	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	component := NewLogComponent(logger)

	inv := testutil.CreateTestInvocation("log::tap", []packet.Packet{
		packet.OpenBracket(InputPort),
		packet.Encode(InputPort, "hello"),
		packet.CloseBracket(InputPort),
		packet.Done(InputPort),
	})

	stream, err := component.Handle(context.Background(), inv, models.RuntimeConfig{
		"message": "seen packet",
		"level":   "warn",
	}, nil)
	require.NoError(t, err)

	out := testutil.Collect(t, stream)

	assert.Equal(t, []string{"output:[", `output:"hello"`, "output:]", "output:done"}, testutil.Strings(out))
	assert.Contains(t, buf.String(), "seen packet")
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "component=log")
}

func TestLogTapInvalidConfig(t *testing.T) {
	component := NewLogComponent(slog.Default())

	tests := []struct {
		name   string
		config models.RuntimeConfig
	}{
		{name: "bad level", config: models.RuntimeConfig{"level": "verbose"}},
		{name: "bad message", config: models.RuntimeConfig{"message": 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := testutil.CreateTestInvocation("log::tap", nil)

			_, err := component.Handle(context.Background(), inv, tt.config, nil)
			if err == nil {
				t.Error("Expected configuration error")
			}
		})
	}
}

func TestLogUnknownOperation(t *testing.T) {
	component := NewLogComponent(slog.Default())
	inv := testutil.CreateTestInvocation("log::print", nil)

	_, err := component.Handle(context.Background(), inv, nil, nil)
	assert.Error(t, err)
}

func TestLogSignature(t *testing.T) {
	sig := NewLogComponent(slog.Default()).Signature()

	op, ok := sig.Operation(TapOperation)
	require.True(t, ok)
	assert.Equal(t, []string{OutputPort}, op.SortedOutputNames())
}

package main

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/dukex/flowroute/pkg/cmd"
	"github.com/dukex/flowroute/pkg/events"
	"github.com/dukex/flowroute/pkg/mocks"
	"github.com/dukex/flowroute/pkg/models"
	"github.com/dukex/flowroute/pkg/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testConfig = `
id: router
seed: 7
config:
  inputs:
    - name: input
  outputs:
    - name: output
  cases:
    - case: upper
      do: transform::uppercase
    - case: 2
      do: transform::double
    - case: tap
      do: log::tap
      with:
        message: tapped
        level: debug
  default: transform::echo
`

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestParseConfig(t *testing.T) {
	cfg, err := parseConfig([]byte(testConfig))
	require.NoError(t, err)

	assert.Equal(t, "router", cfg.ID)
	require.NotNil(t, cfg.Seed)
	assert.Equal(t, uint64(7), cfg.seed())
	assert.Equal(t, "transform::echo", cfg.Config["default"])
}

func TestParseConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "missing id", data: "config:\n  default: transform::echo\n"},
		{name: "missing config", data: "id: router\n"},
		{name: "unknown field", data: "id: router\nconfig: {}\nextra: 1\n"},
		{name: "not yaml", data: "id: [router"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseConfig([]byte(tt.data))
			assert.ErrorIs(t, err, ErrInvalidConfigFile)
		})
	}
}

func TestDecodeLine(t *testing.T) {
	tests := []struct {
		line     string
		expected string
		invalid  bool
	}{
		{line: `{"port":"match","data":"upper"}`, expected: `match:"upper"`},
		{line: `{"port":"match","data":null}`, expected: `match:null`},
		{line: `{"port":"input","open":true}`, expected: "input:["},
		{line: `{"port":"input","close":true}`, expected: "input:]"},
		{line: `{"port":"input","done":true}`, expected: "input:done"},
		{line: `{"port":"<error>","error":"boom"}`, expected: "<error>:error(boom)"},
		{line: `{"data":1}`, invalid: true},
		{line: `{"port":"input"}`, invalid: true},
		{line: `{"port":"input","done":true,"data":1}`, invalid: true},
		{line: `not json`, invalid: true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			pkt, err := decodeLine([]byte(tt.line))
			if tt.invalid {
				assert.ErrorIs(t, err, ErrInvalidPacket)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, pkt.String())
		})
	}
}

func TestWireRoundTripKeepsKind(t *testing.T) {
	for _, p := range []packet.Packet{
		packet.Encode("output", map[string]any{"a": 1}),
		packet.OpenBracket("output"),
		packet.CloseBracket("output"),
		packet.Done("output"),
		packet.ComponentError("boom"),
	} {
		w := fromPacket(p)

		back, err := w.toPacket()
		require.NoError(t, err)
		assert.Equal(t, p.String(), back.String())
	}
}

func TestRunSwitch(t *testing.T) {
	cfg, err := parseConfig([]byte(testConfig))
	require.NoError(t, err)

	reg, err := cmd.NewRegistry(discard, "")
	require.NoError(t, err)

	input := strings.Join([]string{
		`{"port":"match","data":"upper"}`,
		`{"port":"match","data":2}`,
		`{"port":"match","data":"other"}`,
		`{"port":"match","done":true}`,
		``,
		`{"port":"input","open":true}`,
		`{"port":"input","data":"hello"}`,
		`{"port":"input","close":true}`,
		`{"port":"input","open":true}`,
		`{"port":"input","data":21}`,
		`{"port":"input","close":true}`,
		`{"port":"input","open":true}`,
		`{"port":"input","data":"as is"}`,
		`{"port":"input","close":true}`,
		`{"port":"input","done":true}`,
	}, "\n")

	var out bytes.Buffer

	err = runSwitch(context.Background(), reg, cfg, strings.NewReader(input), &out, discard)
	require.NoError(t, err)

	var lines []string

	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	assert.Equal(t, []string{
		`{"port":"output","open":true}`,
		`{"port":"output","data":"HELLO"}`,
		`{"port":"output","close":true}`,
		`{"port":"output","open":true}`,
		`{"port":"output","data":42}`,
		`{"port":"output","close":true}`,
		`{"port":"output","open":true}`,
		`{"port":"output","data":"as is"}`,
		`{"port":"output","close":true}`,
		`{"port":"output","done":true}`,
	}, lines)
}

func TestRunSwitchReturnsWhileInputStaysOpen(t *testing.T) {
	cfg, err := parseConfig([]byte(testConfig))
	require.NoError(t, err)

	reg, err := cmd.NewRegistry(discard, "")
	require.NoError(t, err)

	// The input is done before its last group closes, so the switch ends with that group.
	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })

	go func() {
		_, _ = io.WriteString(pw, strings.Join([]string{
			`{"port":"match","data":"upper"}`,
			`{"port":"match","done":true}`,
			`{"port":"input","done":true}`,
			`{"port":"input","open":true}`,
			`{"port":"input","data":"hello"}`,
			`{"port":"input","close":true}`,
		}, "\n")+"\n")
	}()

	var out bytes.Buffer

	result := make(chan error, 1)

	go func() {
		result <- runSwitch(context.Background(), reg, cfg, pr, &out, discard)
	}()

	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runSwitch did not return while its input was still open")
	}

	assert.Equal(t, strings.Join([]string{
		`{"port":"output","open":true}`,
		`{"port":"output","data":"HELLO"}`,
		`{"port":"output","close":true}`,
		`{"port":"output","done":true}`,
	}, "\n")+"\n", out.String())
}

func TestRunSwitchRejectsBadInput(t *testing.T) {
	cfg, err := parseConfig([]byte(testConfig))
	require.NoError(t, err)

	reg, err := cmd.NewRegistry(discard, "")
	require.NoError(t, err)

	err = runSwitch(context.Background(), reg, cfg, strings.NewReader("{\"port\":\"match\"}\n"), io.Discard, discard)
	assert.ErrorIs(t, err, ErrInvalidPacket)
}

func TestPrepareSwitchUnknownOperation(t *testing.T) {
	cfg, err := parseConfig([]byte(strings.Replace(testConfig, "transform::double", "transform::triple", 1)))
	require.NoError(t, err)

	reg, err := cmd.NewRegistry(discard, "")
	require.NoError(t, err)

	_, _, err = prepareSwitch(context.Background(), reg, cfg)
	assert.Error(t, err)
}

func TestPrintSignature(t *testing.T) {
	var out bytes.Buffer

	sig := models.NewOperationSignature("router").
		AddInput("match", models.TypeObject).
		AddOutput("output", models.TypeObject)

	require.NoError(t, printSignature(&out, sig))
	assert.Contains(t, out.String(), "name: router")
	assert.Contains(t, out.String(), "- name: match")
}

func TestLogEventsRegistersEveryEventType(t *testing.T) {
	bus := &mocks.MockEventBus{}
	bus.On("Handle", events.SwitchCaseSelectedEvent, mock.Anything).Return(nil).Once()
	bus.On("Handle", events.SwitchCaseFinishedEvent, mock.Anything).Return(nil).Once()
	bus.On("Handle", events.SwitchCompletedEvent, mock.Anything).Return(nil).Once()
	bus.On("Subscribe", mock.Anything).Return(nil).Once()

	require.NoError(t, logEvents(context.Background(), bus, discard))
	bus.AssertExpectations(t)
}

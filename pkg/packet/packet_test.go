package packet

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacketKinds(t *testing.T) {
	tests := []struct {
		name      string
		packet    Packet
		hasData   bool
		done      bool
		open      bool
		close     bool
		compError bool
	}{
		{name: "data", packet: Encode("x", 5), hasData: true},
		{name: "done", packet: Done("x"), done: true},
		{name: "open bracket", packet: OpenBracket("x"), open: true},
		{name: "close bracket", packet: CloseBracket("x"), close: true},
		{name: "port error", packet: Err("x", "boom")},
		{name: "component error", packet: ComponentError("boom"), compError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.hasData, tt.packet.HasData())
			assert.Equal(t, tt.done, tt.packet.IsDone())
			assert.Equal(t, tt.open, tt.packet.IsOpenBracket())
			assert.Equal(t, tt.close, tt.packet.IsCloseBracket())
			assert.Equal(t, tt.compError, tt.packet.IsComponentError())
		})
	}
}

func TestPacketDecode(t *testing.T) {
	var n int
	require.NoError(t, Encode("x", 42).Decode(&n))
	assert.Equal(t, 42, n)

	err := Done("x").Decode(&n)
	require.ErrorIs(t, err, ErrNoData)

	err = Err("x", "bad").Decode(&n)
	require.ErrorIs(t, err, ErrPacketError)

	v, err := Encode("x", map[string]any{"a": []int{1, 2}}).DecodeValue()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": []any{float64(1), float64(2)}}, v)
}

func TestPacketWithPortKeepsPayload(t *testing.T) {
	original := Encode("x", "hello")
	moved := original.WithPort("out")

	assert.Equal(t, "out", moved.Port)
	assert.Equal(t, "x", original.Port)
	assert.Equal(t, original.Data, moved.Data)
}

func TestPipeOrderAndClose(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	tx, rx := NewPipe()
	for i := range 100 {
		require.NoError(t, tx.Send(Encode("x", i)))
	}

	tx.Close()
	tx.Close()

	require.ErrorIs(t, tx.Send(Done("x")), ErrClosed)

	packets, err := rx.Collect(ctx)
	require.NoError(t, err)
	require.Len(t, packets, 100)

	for i, p := range packets {
		var n int
		require.NoError(t, p.Decode(&n))
		assert.Equal(t, i, n)
	}
}

func TestPipeConcurrentSenders(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	tx, rx := NewPipe()

	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := range 50 {
				_ = tx.Send(Encode("x", w*1000+i))
			}
		}()
	}

	wg.Wait()
	tx.Close()

	packets, err := rx.Collect(ctx)
	require.NoError(t, err)
	assert.Len(t, packets, 400)
}

func TestStreamNextHonoursContext(t *testing.T) {
	_, rx := NewPipe()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := rx.Next(ctx)
	assert.False(t, ok)
}

func TestNewStream(t *testing.T) {
	packets, err := NewStream(Encode("a", 1), Done("a")).Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, packets, 2)
	assert.True(t, packets[1].IsDone())
}

func TestStreamCloseReleasesPipe(t *testing.T) {
	tx, rx := NewPipe()
	require.NoError(t, tx.Send(Encode("a", 1)))
	require.NoError(t, tx.Send(Encode("a", 2)))

	rx.Close()
	rx.Close()

	assert.ErrorIs(t, tx.Send(Encode("a", 3)), ErrClosed)

	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-rx.C():
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

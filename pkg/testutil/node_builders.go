// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/dukex/flowroute/pkg/models"
	"github.com/dukex/flowroute/pkg/packet"
	"github.com/dukex/flowroute/pkg/protocol"
	"github.com/stretchr/testify/require"
)

// CollectTimeout bounds how long Collect waits for a stream to close.
const CollectTimeout = 5 * time.Second

// CreateTestInvocation creates an invocation of target fed with packets. Overrides run
// before it is returned.
func CreateTestInvocation(target string, packets []packet.Packet, overrides ...func(*protocol.Invocation)) *protocol.Invocation {
	entity, err := models.ParseEntity(target)
	if err != nil {
		entity = models.NewEntity(models.SelfNamespace, target)
	}

	inv := protocol.NewInvocation(
		models.NewEntity("test", "caller"),
		entity,
		packet.NewStream(packets...),
		models.InherentData{Seed: 42, Timestamp: 1_700_000_000_000},
	)

	for _, override := range overrides {
		override(inv)
	}

	return inv
}

// WithSeed sets the invocation seed.
func WithSeed(seed uint64) func(*protocol.Invocation) {
	return func(inv *protocol.Invocation) {
		inv.Inherent.Seed = seed
	}
}

// WithOrigin sets the calling entity.
func WithOrigin(origin models.Entity) func(*protocol.Invocation) {
	return func(inv *protocol.Invocation) {
		inv.Origin = origin
	}
}

// Collect reads stream to the end, failing the test if it does not close in time.
func Collect(t *testing.T, stream *packet.Stream) []packet.Packet {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), CollectTimeout)
	defer cancel()

	packets, err := stream.Collect(ctx)
	require.NoError(t, err, "stream did not close")

	return packets
}

// Values decodes the data packets on port, skipping everything else.
func Values(t *testing.T, packets []packet.Packet, port string) []any {
	t.Helper()

	var values []any

	for _, p := range packets {
		if p.Port != port || !p.HasData() {
			continue
		}

		v, err := p.DecodeValue()
		require.NoError(t, err)

		values = append(values, v)
	}

	return values
}

// Strings renders packets with Packet.String for compact assertions.
func Strings(packets []packet.Packet) []string {
	out := make([]string, 0, len(packets))
	for _, p := range packets {
		out = append(out, p.String())
	}

	return out
}

package protocol

import (
	"sync"

	"github.com/dukex/flowroute/pkg/models"
	"github.com/dukex/flowroute/pkg/packet"
	"github.com/google/uuid"
)

// Invocation is one call of an operation together with its inbound stream.
type Invocation struct {
	ID       uuid.UUID
	TxID     uuid.UUID
	Origin   models.Entity
	Target   models.Entity
	Inherent models.InherentData

	mu     sync.Mutex
	stream *packet.Stream
}

// NewInvocation creates an invocation with fresh identifiers.
func NewInvocation(origin, target models.Entity, stream *packet.Stream, inherent models.InherentData) *Invocation {
	return &Invocation{
		ID:       uuid.New(),
		TxID:     uuid.New(),
		Origin:   origin,
		Target:   target,
		Inherent: inherent,
		stream:   stream,
	}
}

// Seed returns the per-invocation random seed.
func (i *Invocation) Seed() uint64 {
	return i.Inherent.Seed
}

// EjectStream hands over the inbound stream. Later calls return an empty, closed stream.
func (i *Invocation) EjectStream() *packet.Stream {
	i.mu.Lock()
	defer i.mu.Unlock()

	stream := i.stream
	i.stream = nil

	if stream == nil {
		return packet.NewStream()
	}

	return stream
}

// MakeResponse returns a fresh sender/stream pair for the invocation output.
func (i *Invocation) MakeResponse() (*packet.Sender, *packet.Stream) {
	return packet.NewPipe()
}

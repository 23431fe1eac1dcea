package packet

import (
	"context"
	"errors"
	"sync"

	"github.com/eapache/queue"
)

var ErrClosed = errors.New("send on closed packet pipe")

// NewPipe returns the two halves of an unbounded packet pipe. Any number of goroutines may
// send concurrently; Send never blocks on a slow reader.
func NewPipe() (*Sender, *Stream) {
	p := &pipe{
		backlog: queue.New(),
		notify:  make(chan struct{}, 1),
		out:     make(chan Packet),
		discard: make(chan struct{}),
	}

	go p.run()

	return &Sender{pipe: p}, &Stream{ch: p.out, pipe: p}
}

// NewStream returns a closed stream that yields packets in order.
func NewStream(packets ...Packet) *Stream {
	tx, rx := NewPipe()
	for _, p := range packets {
		_ = tx.Send(p)
	}

	tx.Close()

	return rx
}

type pipe struct {
	mu      sync.Mutex
	backlog *queue.Queue
	closed  bool
	notify  chan struct{}
	out     chan Packet

	// discard is closed when the reader gives up on the stream.
	discard     chan struct{}
	discardOnce sync.Once
}

func (p *pipe) wake() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

func (p *pipe) run() {
	defer close(p.out)

	for {
		p.mu.Lock()
		for p.backlog.Length() == 0 && !p.closed {
			p.mu.Unlock()
			<-p.notify
			p.mu.Lock()
		}

		if p.backlog.Length() == 0 {
			p.mu.Unlock()

			return
		}

		next, _ := p.backlog.Remove().(Packet)
		p.mu.Unlock()

		select {
		case p.out <- next:
		case <-p.discard:
			return
		}
	}
}

func (p *pipe) stop() {
	p.discardOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		for p.backlog.Length() > 0 {
			p.backlog.Remove()
		}
		p.mu.Unlock()

		close(p.discard)
		p.wake()
	})
}

// Sender is the writing half of a pipe.
type Sender struct {
	pipe *pipe
}

// Send queues a packet.
func (s *Sender) Send(pkt Packet) error {
	s.pipe.mu.Lock()
	if s.pipe.closed {
		s.pipe.mu.Unlock()

		return ErrClosed
	}

	s.pipe.backlog.Add(pkt)
	s.pipe.mu.Unlock()
	s.pipe.wake()

	return nil
}

// Error queues a component error built from err.
func (s *Sender) Error(err error) error {
	return s.Send(ComponentError(err.Error()))
}

// Close ends the stream once queued packets are consumed. Close is idempotent.
func (s *Sender) Close() {
	s.pipe.mu.Lock()
	s.pipe.closed = true
	s.pipe.mu.Unlock()
	s.pipe.wake()
}

// Stream is the reading half of a pipe.
type Stream struct {
	ch   <-chan Packet
	pipe *pipe
}

// C exposes the underlying channel for use in select statements.
func (s *Stream) C() <-chan Packet {
	return s.ch
}

// Next blocks until a packet is available. It returns false once the stream is closed
// and drained, or ctx is done.
func (s *Stream) Next(ctx context.Context) (Packet, bool) {
	select {
	case pkt, ok := <-s.ch:
		return pkt, ok
	case <-ctx.Done():
		return Packet{}, false
	}
}

// Close abandons the stream. Queued packets are dropped, later sends fail with ErrClosed
// and the channel returned by C is closed. Close is idempotent.
func (s *Stream) Close() {
	s.pipe.stop()
}

// Collect reads the stream to the end.
func (s *Stream) Collect(ctx context.Context) ([]Packet, error) {
	var packets []Packet

	for {
		select {
		case pkt, ok := <-s.ch:
			if !ok {
				return packets, nil
			}

			packets = append(packets, pkt)
		case <-ctx.Done():
			return packets, ctx.Err()
		}
	}
}

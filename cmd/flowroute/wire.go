package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/dukex/flowroute/pkg/packet"
)

var ErrInvalidPacket = errors.New("invalid packet")

const maxLineSize = 4 << 20

// wirePacket is the JSON-lines form of a packet:
//
//	{"port":"match","data":"upper"}
//	{"port":"input","open":true}
//	{"port":"input","done":true}
//	{"port":"<error>","error":"boom"}
type wirePacket struct {
	Port  string          `json:"port"`
	Data  json.RawMessage `json:"data,omitempty"`
	Open  bool            `json:"open,omitempty"`
	Close bool            `json:"close,omitempty"`
	Done  bool            `json:"done,omitempty"`
	Error string          `json:"error,omitempty"`
}

func (w wirePacket) toPacket() (packet.Packet, error) {
	if w.Port == "" {
		return packet.Packet{}, fmt.Errorf("%w: missing port", ErrInvalidPacket)
	}

	kinds := 0
	for _, set := range []bool{len(w.Data) > 0, w.Open, w.Close, w.Done, w.Error != ""} {
		if set {
			kinds++
		}
	}

	if kinds != 1 {
		return packet.Packet{}, fmt.Errorf("%w: exactly one of data, open, close, done or error is required on port '%s'",
			ErrInvalidPacket, w.Port)
	}

	switch {
	case w.Open:
		return packet.OpenBracket(w.Port), nil
	case w.Close:
		return packet.CloseBracket(w.Port), nil
	case w.Done:
		return packet.Done(w.Port), nil
	case w.Error != "":
		return packet.Err(w.Port, w.Error), nil
	default:
		return packet.Raw(w.Port, w.Data), nil
	}
}

func fromPacket(p packet.Packet) wirePacket {
	w := wirePacket{Port: p.Port}

	switch {
	case p.IsError():
		w.Error = p.Error.Message
	case p.IsDone():
		w.Done = true
	case p.IsOpenBracket():
		w.Open = true
	case p.IsCloseBracket():
		w.Close = true
	default:
		w.Data = p.Data
	}

	return w
}

func decodeLine(line []byte) (packet.Packet, error) {
	var w wirePacket
	if err := json.Unmarshal(line, &w); err != nil {
		return packet.Packet{}, fmt.Errorf("%w: %w", ErrInvalidPacket, err)
	}

	return w.toPacket()
}

// readPackets feeds every line of r to tx and closes tx. Blank lines are skipped. It
// returns as soon as ctx is done, even while r is blocked.
func readPackets(ctx context.Context, r io.Reader, tx *packet.Sender) error {
	defer tx.Close()

	lines := make(chan []byte)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

		for scanner.Scan() {
			select {
			case lines <- bytes.Clone(scanner.Bytes()):
			case <-ctx.Done():
				scanErr <- ctx.Err()

				return
			}
		}

		scanErr <- scanner.Err()
	}()

	lineNo := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-lines:
			if !ok {
				return <-scanErr
			}

			lineNo++

			line := bytes.TrimSpace(raw)
			if len(line) == 0 {
				continue
			}

			pkt, err := decodeLine(line)
			if err != nil {
				return fmt.Errorf("line %d: %w", lineNo, err)
			}

			if err := tx.Send(pkt); err != nil {
				return err
			}
		}
	}
}

// writePackets writes stream to w as JSON lines and returns the number of error packets.
func writePackets(ctx context.Context, stream *packet.Stream, w io.Writer) (int, error) {
	encoder := json.NewEncoder(w)
	failures := 0

	for {
		pkt, ok := stream.Next(ctx)
		if !ok {
			return failures, ctx.Err()
		}

		if pkt.IsError() {
			failures++
		}

		if err := encoder.Encode(fromPacket(pkt)); err != nil {
			return failures, fmt.Errorf("failed to write packet: %w", err)
		}
	}
}

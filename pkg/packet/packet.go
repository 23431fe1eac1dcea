// Package packet defines the port-tagged packets that flow between operations and the
// unbounded pipes that carry them.
package packet

import (
	"encoding/json"
	"errors"
	"fmt"
)

// PortComponentError is the port used for errors that belong to a whole operation rather
// than one of its ports.
const PortComponentError = "<error>"

var (
	ErrNoData      = errors.New("packet carries no data")
	ErrPacketError = errors.New("packet carries an error")
)

// Flag marks control packets.
type Flag uint8

const (
	FlagDone Flag = 1 << iota
	FlagOpenBracket
	FlagCloseBracket
)

// Error is the error payload of a packet.
type Error struct {
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

// Packet is a single unit on a stream. A packet is either data, an open bracket, a close
// bracket, a done signal, or an error.
type Packet struct {
	Port  string          `json:"port"`
	Flags Flag            `json:"flags,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *Error          `json:"error,omitempty"`
}

// Encode serializes data into a packet for port. Serialization failures produce an error
// packet on the same port.
func Encode(port string, data any) Packet {
	raw, err := json.Marshal(data)
	if err != nil {
		return Err(port, fmt.Sprintf("failed to encode packet data: %v", err))
	}

	return Packet{Port: port, Data: raw}
}

// Raw builds a data packet from already encoded JSON.
func Raw(port string, data json.RawMessage) Packet {
	return Packet{Port: port, Data: data}
}

func Done(port string) Packet {
	return Packet{Port: port, Flags: FlagDone}
}

func OpenBracket(port string) Packet {
	return Packet{Port: port, Flags: FlagOpenBracket}
}

func CloseBracket(port string) Packet {
	return Packet{Port: port, Flags: FlagCloseBracket}
}

// Err builds an error packet for port.
func Err(port, msg string) Packet {
	return Packet{Port: port, Error: &Error{Message: msg}}
}

// ComponentError builds an error packet that is not tied to any port.
func ComponentError(msg string) Packet {
	return Err(PortComponentError, msg)
}

func (p Packet) IsDone() bool {
	return p.Flags&FlagDone != 0
}

func (p Packet) IsOpenBracket() bool {
	return p.Flags&FlagOpenBracket != 0
}

func (p Packet) IsCloseBracket() bool {
	return p.Flags&FlagCloseBracket != 0
}

func (p Packet) IsError() bool {
	return p.Error != nil
}

func (p Packet) IsComponentError() bool {
	return p.IsError() && p.Port == PortComponentError
}

// HasData reports whether p is a plain data packet.
func (p Packet) HasData() bool {
	return p.Flags == 0 && p.Error == nil && len(p.Data) > 0
}

// WithPort returns a copy of p addressed to port. The payload is shared.
func (p Packet) WithPort(port string) Packet {
	p.Port = port

	return p
}

// Decode unmarshals the packet data into v.
func (p Packet) Decode(v any) error {
	if p.Error != nil {
		return fmt.Errorf("%w: %s", ErrPacketError, p.Error.Message)
	}

	if !p.HasData() {
		return ErrNoData
	}

	if err := json.Unmarshal(p.Data, v); err != nil {
		return fmt.Errorf("failed to decode packet on port '%s': %w", p.Port, err)
	}

	return nil
}

// DecodeValue decodes the packet data into a generic JSON value.
func (p Packet) DecodeValue() (any, error) {
	var v any
	if err := p.Decode(&v); err != nil {
		return nil, err
	}

	return v, nil
}

func (p Packet) String() string {
	switch {
	case p.IsError():
		return fmt.Sprintf("%s:error(%s)", p.Port, p.Error.Message)
	case p.IsDone():
		return p.Port + ":done"
	case p.IsOpenBracket():
		return p.Port + ":["
	case p.IsCloseBracket():
		return p.Port + ":]"
	default:
		return fmt.Sprintf("%s:%s", p.Port, string(p.Data))
	}
}

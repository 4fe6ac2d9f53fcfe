// Package codec converts in-memory protocol entities (Report, Variable,
// Command, Ack, Fragment, Response) to and from byte-exact wire frames.
//
// Every frame begins with a single byte whose top three bits carry the
// message-type tag; the remaining header bits belong to the entity's
// identifier fields and may extend into following bytes. Header integers are
// always packed big-endian regardless of the registry's payload byte order —
// they are bit fields, not scalars. Payload scalars follow the registry's
// configured endianness.
//
// The codec is pure and re-entrant: it reads nothing but the immutable
// Registry it was built with.
package codec

import (
	"fmt"

	"github.com/argus-sat/splat/errs"
	"github.com/argus-sat/splat/format"
	"github.com/argus-sat/splat/schema"
)

// Message is any protocol entity the codec can pack.
type Message interface {
	// MsgType returns the 3-bit wire tag of the entity.
	MsgType() format.MsgType
}

// Codec packs and unpacks frames against one registry. Safe for concurrent
// use.
type Codec struct {
	reg *schema.Registry
}

// New creates a codec bound to the given registry.
func New(reg *schema.Registry) *Codec {
	return &Codec{reg: reg}
}

// Registry returns the registry the codec was built with.
func (c *Codec) Registry() *schema.Registry { return c.reg }

// Pack serializes any protocol entity into a wire frame.
func (c *Codec) Pack(msg Message) ([]byte, error) {
	switch m := msg.(type) {
	case *Report:
		return c.PackReport(m)
	case *Variable:
		return c.PackVariable(m)
	case *Command:
		return c.PackCommand(m)
	case *Ack:
		return c.PackAck(m)
	case *Fragment:
		return c.PackFragment(m)
	case *Response:
		return c.PackResponse(m)
	default:
		return nil, fmt.Errorf("%w: cannot pack %T", errs.ErrUnknownMessageType, msg)
	}
}

// Unpack reads the message-type tag from the first byte of data and routes to
// the matching decoder. Nothing beyond the first byte is assumed before
// dispatch.
//
// Response frames (tag 3) cannot be decoded here: their layout depends on
// which command they answer, and that name is not on the wire. Use
// UnpackResponse with the command name known from context.
func (c *Codec) Unpack(data []byte) (Message, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty frame", errs.ErrTruncatedFrame)
	}

	tag := format.MsgType(data[0] >> (8 - format.MsgTypeSize))

	switch tag {
	case format.MsgReport:
		return c.UnpackReport(data)
	case format.MsgVariable:
		return c.UnpackVariable(data)
	case format.MsgCommand:
		return c.UnpackCommand(data)
	case format.MsgAck:
		return c.UnpackAck(data)
	case format.MsgFragment:
		return c.UnpackFragment(data)
	case format.MsgResponse:
		return nil, fmt.Errorf("%w: response frames need the command name from context, use UnpackResponse",
			errs.ErrUnknownMessageType)
	default:
		return nil, fmt.Errorf("%w: tag %d", errs.ErrUnknownMessageType, tag)
	}
}

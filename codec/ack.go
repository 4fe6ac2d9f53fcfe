package codec

import (
	"fmt"
	"unicode/utf8"

	"github.com/argus-sat/splat/errs"
	"github.com/argus-sat/splat/format"
)

// MaxAckStatus is the largest response status that fits the 5-bit header
// field.
const MaxAckStatus = 1<<(8-format.MsgTypeSize) - 1

// Ack is a small status reply with an optional UTF-8 payload.
type Ack struct {
	// Status is the 5-bit response status (0..31).
	Status uint8
	// Payload is the optional message text.
	Payload string
}

// NewAck creates an ack. A non-string payload is stringified with the
// standard conversion; nil means no payload.
func NewAck(status uint8, payload any) *Ack {
	ack := &Ack{Status: status}
	switch p := payload.(type) {
	case nil:
	case string:
		ack.Payload = p
	default:
		ack.Payload = fmt.Sprint(p)
	}

	return ack
}

// MsgType implements Message.
func (a *Ack) MsgType() format.MsgType { return format.MsgAck }

func (a *Ack) String() string {
	return fmt.Sprintf("Ack(status=%d, payload=%q)", a.Status, a.Payload)
}

// PackAck serializes an ack frame: one header byte [tag:3][status:5] followed
// by the payload bytes. A payload longer than MaxPacketSize-1 bytes is
// truncated so the frame fits one packet.
func (c *Codec) PackAck(a *Ack) ([]byte, error) {
	if a.Status > MaxAckStatus {
		return nil, fmt.Errorf("%w: response status %d exceeds %d", errs.ErrFieldOverflow, a.Status, MaxAckStatus)
	}

	payload := a.Payload
	if limit := c.reg.MaxPacketSize() - 1; len(payload) > limit {
		payload = payload[:limit]
	}

	buf := make([]byte, 0, 1+len(payload))
	buf = append(buf, byte(format.MsgAck)<<(8-format.MsgTypeSize)|a.Status)
	buf = append(buf, payload...)

	return buf, nil
}

// UnpackAck decodes an ack frame, rejecting payloads that are not valid
// UTF-8.
func (c *Codec) UnpackAck(data []byte) (*Ack, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("%w: empty frame", errs.ErrTruncatedFrame)
	}

	payload := data[1:]
	if !utf8.Valid(payload) {
		return nil, fmt.Errorf("%w: ack payload is not valid UTF-8", errs.ErrInvalidEncoding)
	}

	return &Ack{
		Status:  data[0] & MaxAckStatus,
		Payload: string(payload),
	}, nil
}

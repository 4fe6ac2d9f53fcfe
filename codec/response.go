package codec

import (
	"fmt"

	"github.com/argus-sat/splat/errs"
	"github.com/argus-sat/splat/format"
)

// Response is a typed command reply (wire tag 3).
//
// The frame does not identify which command it answers: the responder must
// know that from context (it is answering the command it just processed) and
// pass the name to UnpackResponse. The payload layout is owned by the
// command's handler; the codec moves it opaquely.
type Response struct {
	// CommandName is the command this response answers. Not on the wire.
	CommandName string
	// Data is the opaque response payload.
	Data []byte
}

// NewResponse creates a response to the named command.
func NewResponse(commandName string, data []byte) *Response {
	return &Response{CommandName: commandName, Data: data}
}

// MsgType implements Message.
func (r *Response) MsgType() format.MsgType { return format.MsgResponse }

func (r *Response) String() string {
	return fmt.Sprintf("Response(command=%s, %d bytes)", r.CommandName, len(r.Data))
}

// PackResponse serializes a response frame: one header byte with the tag in
// the top 3 bits (the low 5 bits are reserved) followed by the payload.
func (c *Codec) PackResponse(r *Response) ([]byte, error) {
	if 1+len(r.Data) > c.reg.MaxPacketSize() {
		return nil, fmt.Errorf("%w: response payload %d bytes exceeds packet size %d",
			errs.ErrFieldOverflow, len(r.Data), c.reg.MaxPacketSize())
	}

	buf := make([]byte, 0, 1+len(r.Data))
	buf = append(buf, byte(format.MsgResponse)<<(8-format.MsgTypeSize))
	buf = append(buf, r.Data...)

	return buf, nil
}

// UnpackResponse decodes a response frame for the named command. The command
// name comes from context, not from the wire.
func (c *Codec) UnpackResponse(commandName string, data []byte) (*Response, error) {
	if _, err := c.reg.CommandByName(commandName); err != nil {
		return nil, err
	}
	if len(data) < 1 {
		return nil, fmt.Errorf("%w: empty frame", errs.ErrTruncatedFrame)
	}

	payload := make([]byte, len(data)-1)
	copy(payload, data[1:])

	return &Response{CommandName: commandName, Data: payload}, nil
}

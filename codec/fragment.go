package codec

import (
	"fmt"

	"github.com/argus-sat/splat/errs"
	"github.com/argus-sat/splat/format"
)

// MaxFragmentTid is the largest transaction id that fits the 3-bit header
// field.
const MaxFragmentTid = 1<<format.FragmentTidSize - 1

// MaxFragmentSeq is the largest sequence number that fits the 13-bit header
// field.
const MaxFragmentSeq = 1<<format.FragmentSeqSize - 1

// Fragment is one packet of a file-transfer transaction.
//
// A fragment carries no length field: its payload length is inferred from
// the transport delivery unit, bounded above by the registry's packet size.
type Fragment struct {
	// Tid is the transaction id (0..7).
	Tid uint8
	// Seq is the fragment sequence number within the transaction (0..8191).
	Seq uint16
	// Payload is the opaque file data.
	Payload []byte
}

// NewFragment creates a fragment.
func NewFragment(tid uint8, seq uint16, payload []byte) *Fragment {
	return &Fragment{Tid: tid, Seq: seq, Payload: payload}
}

// MsgType implements Message.
func (f *Fragment) MsgType() format.MsgType { return format.MsgFragment }

func (f *Fragment) String() string {
	return fmt.Sprintf("Fragment(tid=%d, seq=%d, %d bytes)", f.Tid, f.Seq, len(f.Payload))
}

// PackFragment serializes a fragment frame. The 19-bit header
// [tag:3][tid:3][sequence:13] occupies three bytes, with the low sequence
// bits in the top five bits of the third byte.
func (c *Codec) PackFragment(f *Fragment) ([]byte, error) {
	if f.Tid > MaxFragmentTid {
		return nil, fmt.Errorf("%w: tid %d exceeds %d", errs.ErrFieldOverflow, f.Tid, MaxFragmentTid)
	}
	if f.Seq > MaxFragmentSeq {
		return nil, fmt.Errorf("%w: sequence %d exceeds %d", errs.ErrFieldOverflow, f.Seq, MaxFragmentSeq)
	}
	if len(f.Payload) > c.reg.MaxPacketSize() {
		return nil, fmt.Errorf("%w: payload %d bytes exceeds packet size %d",
			errs.ErrFieldOverflow, len(f.Payload), c.reg.MaxPacketSize())
	}

	header := uint32(format.MsgFragment)<<21 | uint32(f.Tid)<<18 | uint32(f.Seq)<<5

	buf := make([]byte, 0, 3+len(f.Payload))
	buf = append(buf, byte(header>>16), byte(header>>8), byte(header))
	buf = append(buf, f.Payload...)

	return buf, nil
}

// UnpackFragment decodes a fragment frame; everything after the three header
// bytes is the payload.
func (c *Codec) UnpackFragment(data []byte) (*Fragment, error) {
	if len(data) < 3 {
		return nil, fmt.Errorf("%w: fragment header needs 3 bytes, have %d", errs.ErrTruncatedFrame, len(data))
	}

	header := uint32(data[0])<<16 | uint32(data[1])<<8 | uint32(data[2])

	payload := make([]byte, len(data)-3)
	copy(payload, data[3:])

	return &Fragment{
		Tid:     uint8(header>>18) & MaxFragmentTid,
		Seq:     uint16(header>>5) & MaxFragmentSeq,
		Payload: payload,
	}, nil
}

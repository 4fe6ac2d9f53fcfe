package codec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/argus-sat/splat/errs"
	"github.com/argus-sat/splat/format"
)

func TestUnpackDispatchesOnFirstByte(t *testing.T) {
	cdc := testCodec(t)

	report, err := NewReport(cdc.Registry(), "TM_HAL")
	require.NoError(t, err)
	variable, err := NewVariable(cdc.Registry(), "SC_STATE", uint8(1))
	require.NoError(t, err)
	command, err := NewCommand(cdc.Registry(), "FORCE_REBOOT")
	require.NoError(t, err)

	cases := []struct {
		name string
		msg  Message
		want format.MsgType
	}{
		{"report", report, format.MsgReport},
		{"variable", variable, format.MsgVariable},
		{"command", command, format.MsgCommand},
		{"ack", NewAck(1, "OK"), format.MsgAck},
		{"fragment", NewFragment(0, 0, []byte{1, 2, 3}), format.MsgFragment},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			frame, err := cdc.Pack(tc.msg)
			require.NoError(t, err)
			require.Equal(t, byte(tc.want), frame[0]>>5)

			decoded, err := cdc.Unpack(frame)
			require.NoError(t, err)
			require.Equal(t, tc.want, decoded.MsgType())
		})
	}
}

func TestUnpackUnknownMessageType(t *testing.T) {
	cdc := testCodec(t)

	// Tags 4 (ota) and 5 (image_data) have no decoder.
	_, err := cdc.Unpack([]byte{4 << 5})
	require.ErrorIs(t, err, errs.ErrUnknownMessageType)

	_, err = cdc.Unpack([]byte{5 << 5})
	require.ErrorIs(t, err, errs.ErrUnknownMessageType)
}

func TestUnpackEmptyFrame(t *testing.T) {
	cdc := testCodec(t)

	_, err := cdc.Unpack(nil)
	require.ErrorIs(t, err, errs.ErrTruncatedFrame)
}

func TestResponseNeedsCommandName(t *testing.T) {
	cdc := testCodec(t)

	frame, err := cdc.PackResponse(NewResponse("SUM", []byte{0x02, 0x58}))
	require.NoError(t, err)
	require.Equal(t, byte(format.MsgResponse), frame[0]>>5)

	// The generic entry point cannot decode responses.
	_, err = cdc.Unpack(frame)
	require.ErrorIs(t, err, errs.ErrUnknownMessageType)

	decoded, err := cdc.UnpackResponse("SUM", frame)
	require.NoError(t, err)
	require.Equal(t, "SUM", decoded.CommandName)
	require.Equal(t, []byte{0x02, 0x58}, decoded.Data)
}

func TestUnpackResponseUnknownCommand(t *testing.T) {
	cdc := testCodec(t)

	_, err := cdc.UnpackResponse("SELF_DESTRUCT", []byte{0x60})
	require.ErrorIs(t, err, errs.ErrUnknownCommand)
}

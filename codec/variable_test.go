package codec

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/argus-sat/splat/errs"
	"github.com/argus-sat/splat/format"
)

func TestVariableHeaderBits(t *testing.T) {
	cdc := testCodec(t)

	v, err := NewVariable(cdc.Registry(), "TIME", uint32(123))
	require.NoError(t, err)

	frame, err := cdc.PackVariable(v)
	require.NoError(t, err)
	require.Len(t, frame, 2+4)

	header := uint16(frame[0])<<8 | uint16(frame[1])
	require.Equal(t, uint16(format.MsgVariable), header>>13)
	require.Equal(t, uint16(v.SubsystemID()), header>>10&0x7)
	require.Equal(t, v.VariableID(), header&0x3FF)
}

func TestVariableRoundTripAllVariables(t *testing.T) {
	cdc := testCodec(t)
	rng := rand.New(rand.NewSource(7))

	for _, reportName := range cdc.Registry().ReportNames() {
		ordered, err := cdc.Registry().OrderedReport(reportName)
		require.NoError(t, err)

		for _, ov := range ordered {
			value := randomScalar(rng, ov.Type)
			v, err := NewVariable(cdc.Registry(), ov.Name, value)
			require.NoError(t, err)

			frame, err := cdc.Pack(v)
			require.NoError(t, err)

			msg, err := cdc.Unpack(frame)
			require.NoError(t, err)
			decoded, ok := msg.(*Variable)
			require.True(t, ok)
			require.Equal(t, ov.Name, decoded.Name())
			require.Equal(t, ov.Subsystem, decoded.Subsystem())
			require.Equal(t, value, decoded.Value)
		}
	}
}

func TestVariableUnknownName(t *testing.T) {
	cdc := testCodec(t)

	_, err := NewVariable(cdc.Registry(), "FLUX_CAPACITOR", uint8(1))
	require.ErrorIs(t, err, errs.ErrUnknownVariable)
}

func TestVariableUnknownIDUnpack(t *testing.T) {
	cdc := testCodec(t)

	// Variable tag, subsystem 0, variable id 1023 (unused).
	_, err := cdc.Unpack([]byte{0x23, 0xFF, 0x00})
	require.ErrorIs(t, err, errs.ErrUnknownVariable)
}

func TestVariableUnknownSubsystemUnpack(t *testing.T) {
	cdc := testCodec(t)

	// Variable tag, subsystem 7 (unused), variable id 0.
	_, err := cdc.Unpack([]byte{0x3C, 0x00, 0x00})
	require.ErrorIs(t, err, errs.ErrUnknownSubsystem)
}

func TestVariableTruncated(t *testing.T) {
	cdc := testCodec(t)

	v, err := NewVariable(cdc.Registry(), "TIME", uint32(9))
	require.NoError(t, err)
	frame, err := cdc.PackVariable(v)
	require.NoError(t, err)

	_, err = cdc.UnpackVariable(frame[:3])
	require.ErrorIs(t, err, errs.ErrTruncatedFrame)
}

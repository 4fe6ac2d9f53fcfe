package splat

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/argus-sat/splat/codec"
)

func TestDefaultRegistryFingerprintIsStable(t *testing.T) {
	// Two independently built registries over the embedded tables must agree
	// on identifiers, so their fingerprints match.
	require.Equal(t, DefaultRegistry().Fingerprint(), DefaultRegistry().Fingerprint())
}

func TestDefaultCodecRoundTrip(t *testing.T) {
	cdc := NewCodec()

	report, err := codec.NewReport(cdc.Registry(), "TM_TEST")
	require.NoError(t, err)
	require.NoError(t, report.Set("TIME", uint32(1700000000)))
	require.NoError(t, report.Set("SC_STATE", uint8(2)))
	require.NoError(t, report.Set("GPS_MESSAGE_ID", uint8(1)))

	frame, err := cdc.Pack(report)
	require.NoError(t, err)

	msg, err := cdc.Unpack(frame)
	require.NoError(t, err)
	decoded, ok := msg.(*codec.Report)
	require.True(t, ok)
	require.Equal(t, "TM_TEST", decoded.Name())
}

func TestNewManager(t *testing.T) {
	mgr, err := NewManager()
	require.NoError(t, err)
	require.Equal(t, 0, mgr.ActiveCount())
}

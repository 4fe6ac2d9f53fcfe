package codec

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/argus-sat/splat/errs"
	"github.com/argus-sat/splat/format"
	"github.com/argus-sat/splat/schema"
)

func testCodec(t *testing.T) *Codec {
	t.Helper()
	reg, err := schema.New(schema.ArgusTables())
	require.NoError(t, err)

	return New(reg)
}

func randomScalar(rng *rand.Rand, typ format.Scalar) any {
	switch typ {
	case format.U8:
		return uint8(rng.Intn(1 << 8))
	case format.U16:
		return uint16(rng.Intn(1 << 16))
	case format.U32:
		return rng.Uint32()
	case format.U64:
		return rng.Uint64()
	case format.I16:
		return int16(rng.Intn(1<<16) - 1<<15)
	case format.I32:
		return int32(rng.Uint32())
	case format.F32:
		return float32(rng.NormFloat64())
	case format.F64:
		return rng.NormFloat64()
	default:
		return nil
	}
}

func TestReportRoundTripAllReports(t *testing.T) {
	cdc := testCodec(t)
	rng := rand.New(rand.NewSource(42))

	for _, reportName := range cdc.Registry().ReportNames() {
		ordered, err := cdc.Registry().OrderedReport(reportName)
		require.NoError(t, err)

		report, err := NewReport(cdc.Registry(), reportName)
		require.NoError(t, err)

		expected := make(map[string]any, len(ordered))
		for _, ov := range ordered {
			value := randomScalar(rng, ov.Type)
			expected[ov.Name] = value
			require.NoError(t, report.Set(ov.Name, value))
		}

		frame, err := cdc.Pack(report)
		require.NoError(t, err)

		size, err := cdc.Registry().ReportWireSize(reportName)
		require.NoError(t, err)
		require.Len(t, frame, size)

		msg, err := cdc.Unpack(frame)
		require.NoError(t, err)
		decoded, ok := msg.(*Report)
		require.True(t, ok)
		require.Equal(t, reportName, decoded.Name())

		for name, value := range expected {
			got, err := decoded.Get(name)
			require.NoError(t, err)
			require.Equal(t, value, got, "report %s variable %s", reportName, name)
		}
	}
}

func TestReportHeaderByte(t *testing.T) {
	cdc := testCodec(t)

	report, err := NewReport(cdc.Registry(), "TM_TEST")
	require.NoError(t, err)
	require.NoError(t, report.SetAll(map[string]any{
		"TIME":           uint32(1700000000),
		"SC_STATE":       uint8(2),
		"GPS_MESSAGE_ID": uint8(1),
	}))

	frame, err := cdc.PackReport(report)
	require.NoError(t, err)

	// Top 3 bits zero (report tag), bottom 5 bits the report id.
	require.Equal(t, byte(0), frame[0]>>5)
	id, err := cdc.Registry().ReportID("TM_TEST")
	require.NoError(t, err)
	require.Equal(t, id, frame[0]&0x1F)

	// Payload is u8 + u32 + u8 = 6 bytes in canonical order: within CDH,
	// SC_STATE sorts before TIME, and GPS follows CDH.
	require.Len(t, frame, 7)
	require.Equal(t, []byte{2, 0x65, 0x53, 0xF1, 0x00, 1}, frame[1:])
}

func TestReportCanonicalOrderIndependentOfSetOrder(t *testing.T) {
	cdc := testCodec(t)

	first, err := NewReport(cdc.Registry(), "TM_TEST")
	require.NoError(t, err)
	require.NoError(t, first.Set("TIME", uint32(7)))
	require.NoError(t, first.Set("SC_STATE", uint8(1)))
	require.NoError(t, first.Set("GPS_MESSAGE_ID", uint8(9)))

	second, err := NewReport(cdc.Registry(), "TM_TEST")
	require.NoError(t, err)
	require.NoError(t, second.Set("GPS_MESSAGE_ID", uint8(9)))
	require.NoError(t, second.Set("SC_STATE", uint8(1)))
	require.NoError(t, second.Set("TIME", uint32(7)))

	frameA, err := cdc.PackReport(first)
	require.NoError(t, err)
	frameB, err := cdc.PackReport(second)
	require.NoError(t, err)
	require.Equal(t, frameA, frameB)
}

func TestReportUnsetSlotsPackAsZero(t *testing.T) {
	cdc := testCodec(t)

	report, err := NewReport(cdc.Registry(), "TM_TEST")
	require.NoError(t, err)
	require.NoError(t, report.Set("SC_STATE", uint8(3)))

	frame, err := cdc.PackReport(report)
	require.NoError(t, err)

	decoded, err := cdc.UnpackReport(frame)
	require.NoError(t, err)

	timeVal, err := decoded.Get("TIME")
	require.NoError(t, err)
	require.Equal(t, uint32(0), timeVal)

	state, err := decoded.Get("SC_STATE")
	require.NoError(t, err)
	require.Equal(t, uint8(3), state)
}

func TestReportUnknownName(t *testing.T) {
	cdc := testCodec(t)

	_, err := NewReport(cdc.Registry(), "TM_NOPE")
	require.ErrorIs(t, err, errs.ErrUnknownReport)
}

func TestReportSetUnknownVariable(t *testing.T) {
	cdc := testCodec(t)

	report, err := NewReport(cdc.Registry(), "TM_TEST")
	require.NoError(t, err)
	require.ErrorIs(t, report.Set("GYRO_X", float32(1)), errs.ErrUnknownVariable)
}

func TestReportUnknownIDUnpack(t *testing.T) {
	cdc := testCodec(t)

	// Report tag with an unused id in the bottom 5 bits.
	_, err := cdc.Unpack([]byte{0x1F, 0x00})
	require.ErrorIs(t, err, errs.ErrUnknownReport)
}

func TestReportTruncatedPayload(t *testing.T) {
	cdc := testCodec(t)

	report, err := NewReport(cdc.Registry(), "TM_TEST")
	require.NoError(t, err)
	frame, err := cdc.PackReport(report)
	require.NoError(t, err)

	_, err = cdc.UnpackReport(frame[:len(frame)-1])
	require.ErrorIs(t, err, errs.ErrTruncatedFrame)
}

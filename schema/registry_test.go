package schema

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/argus-sat/splat/endian"
	"github.com/argus-sat/splat/errs"
	"github.com/argus-sat/splat/format"
)

func testTables() Tables {
	return Tables{
		Subsystems: map[string]uint8{"CDH": 0, "GPS": 3},
		Variables: map[string]VariableDef{
			"TIME":     {Subsystem: "CDH", Type: format.U32},
			"SC_STATE": {Subsystem: "CDH", Type: format.U8},
			"LAT":      {Subsystem: "GPS", Type: format.I32, Scale: 10000000},
		},
		Reports: map[string][]ReportField{
			"TM_MINI": {
				{Variable: "TIME", Subsystem: "CDH"},
				{Variable: "LAT", Subsystem: "GPS"},
				{Variable: "SC_STATE", Subsystem: "CDH"},
			},
		},
		Commands: []CommandDef{
			{Name: "PING", Handler: "PING"},
			{Name: "ECHO", Args: []string{"text"}, Handler: "ECHO"},
		},
		Arguments: map[string]format.Scalar{
			"text": format.TrailingUTF8,
		},
	}
}

func TestRegistryDefaults(t *testing.T) {
	reg, err := New(testTables())
	require.NoError(t, err)
	require.Equal(t, endian.GetBigEndianEngine(), reg.Engine())
	require.Equal(t, format.MaxPacketSize, reg.MaxPacketSize())
}

func TestVariableIDsAlphabeticalWithinSubsystem(t *testing.T) {
	reg, err := New(testTables())
	require.NoError(t, err)

	// SC_STATE < TIME alphabetically.
	scState, err := reg.VariableKey("SC_STATE")
	require.NoError(t, err)
	timeKey, err := reg.VariableKey("TIME")
	require.NoError(t, err)
	require.Equal(t, uint16(0), scState.VariableID)
	require.Equal(t, uint16(1), timeKey.VariableID)
	require.Equal(t, uint8(0), scState.SubsystemID)

	lat, err := reg.VariableKey("LAT")
	require.NoError(t, err)
	require.Equal(t, VarKey{SubsystemID: 3, VariableID: 0}, lat)
}

func TestCommandIDsAlphabetical(t *testing.T) {
	reg, err := New(testTables())
	require.NoError(t, err)

	echo, err := reg.CommandID("ECHO")
	require.NoError(t, err)
	ping, err := reg.CommandID("PING")
	require.NoError(t, err)
	require.Equal(t, uint16(0), echo)
	require.Equal(t, uint16(1), ping)
}

// Identifier assignment must be a function of the table contents alone, not
// of declaration order.
func TestIdentifierStabilityUnderDeclarationShuffle(t *testing.T) {
	base, err := New(testTables())
	require.NoError(t, err)

	shuffled := testTables()
	shuffled.Commands = []CommandDef{
		{Name: "ECHO", Args: []string{"text"}, Handler: "ECHO"},
		{Name: "PING", Handler: "PING"},
	}
	shuffled.Reports = map[string][]ReportField{
		"TM_MINI": {
			{Variable: "SC_STATE", Subsystem: "CDH"},
			{Variable: "TIME", Subsystem: "CDH"},
			{Variable: "LAT", Subsystem: "GPS"},
		},
	}
	other, err := New(shuffled)
	require.NoError(t, err)

	require.Equal(t, base.CommandNames(), other.CommandNames())
	require.Equal(t, base.ReportNames(), other.ReportNames())

	baseOrder, err := base.OrderedReport("TM_MINI")
	require.NoError(t, err)
	otherOrder, err := other.OrderedReport("TM_MINI")
	require.NoError(t, err)
	require.Equal(t, baseOrder, otherOrder)

	require.Equal(t, base.Fingerprint(), other.Fingerprint())
}

func TestCanonicalReportOrder(t *testing.T) {
	reg, err := New(testTables())
	require.NoError(t, err)

	ordered, err := reg.OrderedReport("TM_MINI")
	require.NoError(t, err)
	require.Len(t, ordered, 3)

	// (ss 0, var 0) SC_STATE, (ss 0, var 1) TIME, (ss 3, var 0) LAT.
	require.Equal(t, "SC_STATE", ordered[0].Name)
	require.Equal(t, "TIME", ordered[1].Name)
	require.Equal(t, "LAT", ordered[2].Name)
}

func TestArgusTablesValidate(t *testing.T) {
	reg, err := New(ArgusTables())
	require.NoError(t, err)
	require.Equal(t, 230, reg.MaxPacketSize())

	// Every report must fit one packet.
	for _, name := range reg.ReportNames() {
		size, err := reg.ReportWireSize(name)
		require.NoError(t, err)
		require.LessOrEqual(t, size, reg.MaxPacketSize(), "report %s", name)
	}
}

func TestArgusWireSizes(t *testing.T) {
	reg, err := New(ArgusTables())
	require.NoError(t, err)

	size, err := reg.ReportWireSize("TM_TEST")
	require.NoError(t, err)
	require.Equal(t, 7, size)

	size, err = reg.CommandWireSize("SUM")
	require.NoError(t, err)
	require.Equal(t, 10, size)

	size, err = reg.VariableWireSize("TIME")
	require.NoError(t, err)
	require.Equal(t, 6, size)
}

func TestTrailingArgumentMustBeLast(t *testing.T) {
	tables := testTables()
	tables.Arguments["count"] = format.U8
	tables.Commands = append(tables.Commands, CommandDef{
		Name: "BAD", Args: []string{"text", "count"}, Handler: "BAD",
	})

	_, err := New(tables)
	require.ErrorIs(t, err, errs.ErrInvalidSchema)
}

func TestUnknownArgumentRejected(t *testing.T) {
	tables := testTables()
	tables.Commands = append(tables.Commands, CommandDef{
		Name: "BAD", Args: []string{"nope"}, Handler: "BAD",
	})

	_, err := New(tables)
	require.ErrorIs(t, err, errs.ErrUnknownArgument)
}

func TestSubsystemIDOverflowRejected(t *testing.T) {
	tables := testTables()
	tables.Subsystems["BIG"] = 8

	_, err := New(tables)
	require.ErrorIs(t, err, errs.ErrFieldOverflow)
}

func TestReportSubsystemMismatchRejected(t *testing.T) {
	tables := testTables()
	tables.Reports["TM_MINI"] = []ReportField{
		{Variable: "TIME", Subsystem: "GPS"},
	}

	_, err := New(tables)
	require.ErrorIs(t, err, errs.ErrInvalidSchema)
}

func TestReportUnknownVariableRejected(t *testing.T) {
	tables := testTables()
	tables.Reports["TM_MINI"] = []ReportField{
		{Variable: "NOPE", Subsystem: "CDH"},
	}

	_, err := New(tables)
	require.ErrorIs(t, err, errs.ErrUnknownVariable)
}

func TestOversizedReportRejected(t *testing.T) {
	tables := testTables()
	tables.MaxPacketSize = 8 // header + u32 + i32 + u8 does not fit

	_, err := New(tables)
	require.ErrorIs(t, err, errs.ErrInvalidSchema)
}

func TestFingerprintDistinguishesTables(t *testing.T) {
	base, err := New(testTables())
	require.NoError(t, err)

	changed := testTables()
	changed.Variables["TIME"] = VariableDef{Subsystem: "CDH", Type: format.U64}
	other, err := New(changed)
	require.NoError(t, err)

	require.NotEqual(t, base.Fingerprint(), other.Fingerprint())

	argus, err := New(ArgusTables())
	require.NoError(t, err)
	require.NotEqual(t, base.Fingerprint(), argus.Fingerprint())
}

func TestScaleConversion(t *testing.T) {
	reg, err := New(testTables())
	require.NoError(t, err)

	lat, err := reg.Variable("LAT")
	require.NoError(t, err)
	require.InDelta(t, 40.4433, lat.SIValue(404433000), 1e-6)
	require.InDelta(t, 404433000, lat.RawValue(40.4433), 1e-3)

	// Unscaled variables pass through.
	tm, err := reg.Variable("TIME")
	require.NoError(t, err)
	require.Equal(t, 1700000000.0, tm.SIValue(1700000000))
}

func TestRegistryLookupFailures(t *testing.T) {
	reg, err := New(testTables())
	require.NoError(t, err)

	_, err = reg.ReportID("TM_NOPE")
	require.ErrorIs(t, err, errs.ErrUnknownReport)
	_, err = reg.ReportName(31)
	require.ErrorIs(t, err, errs.ErrUnknownReport)
	_, err = reg.CommandID("NOPE")
	require.ErrorIs(t, err, errs.ErrUnknownCommand)
	_, err = reg.CommandByID(999)
	require.ErrorIs(t, err, errs.ErrUnknownCommand)
	_, err = reg.VariableName(0, 999)
	require.ErrorIs(t, err, errs.ErrUnknownVariable)
	_, err = reg.SubsystemID("NOPE")
	require.ErrorIs(t, err, errs.ErrUnknownSubsystem)
}

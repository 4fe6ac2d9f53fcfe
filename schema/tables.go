package schema

import (
	"github.com/argus-sat/splat/endian"
	"github.com/argus-sat/splat/format"
)

// VariableDef describes one telemetry point: the subsystem it belongs to, its
// wire scalar type, and an optional integer divisor used when presenting SI
// values. Scale 0 means no scaling. Values travel unscaled on the wire.
type VariableDef struct {
	Subsystem string
	Type      format.Scalar
	Scale     int
}

// SIValue converts a raw wire value to SI units by applying the scale
// divisor. With no scale configured the value passes through.
func (d VariableDef) SIValue(raw float64) float64 {
	if d.Scale <= 1 {
		return raw
	}

	return raw / float64(d.Scale)
}

// RawValue converts an SI value back to the raw wire magnitude.
func (d VariableDef) RawValue(si float64) float64 {
	if d.Scale <= 1 {
		return si
	}

	return si * float64(d.Scale)
}

// ReportField binds one variable into a report, restating the subsystem the
// variable is expected to live in. The restated subsystem is validated against
// the variable table when a registry is built.
type ReportField struct {
	Variable  string
	Subsystem string
}

// CommandDef describes one command: an optional precondition tag checked by
// the remote handler, the ordered argument name list, and the handler tag
// dispatched on the satellite.
type CommandDef struct {
	Name         string
	Precondition string
	Args         []string
	Handler      string
}

// Tables is the static schema consumed by a Registry. Peers must share
// identical tables to interoperate; Registry.Fingerprint gives a cheap
// equality check.
type Tables struct {
	// Engine is the byte order for all multi-byte scalars. Nil selects the
	// protocol default (big-endian).
	Engine endian.EndianEngine

	// MaxPacketSize bounds fragment and ack payloads. Zero selects
	// format.MaxPacketSize.
	MaxPacketSize int

	// Subsystems maps subsystem names to their compact ids. Ids must fit in
	// format.VariableSSSize bits.
	Subsystems map[string]uint8

	// Variables maps variable names to their descriptors.
	Variables map[string]VariableDef

	// Reports maps report names to their declared field lists. Declaration
	// order is irrelevant on the wire; payloads are serialized in canonical
	// (subsystem id, variable id) order.
	Reports map[string][]ReportField

	// Commands lists every command. Ids are assigned by alphabetical sort of
	// the names, not by position in this slice.
	Commands []CommandDef

	// Arguments maps argument names to their scalar types. At most one
	// variable-length argument (TrailingUTF8 or Blob) may appear in a
	// command, and it must be the last argument.
	Arguments map[string]format.Scalar
}

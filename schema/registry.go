// Package schema holds the static protocol definition tables and the derived
// identifier maps the codec packs and unpacks against.
//
// A Registry is built once at startup from a Tables value. Identifier
// assignment is fully determined by the tables and the alphabetical ordering
// rule: report ids and command ids come from sorting the respective name sets,
// and variable ids are assigned per subsystem after sorting the subsystem's
// variable names. Two peers holding identical tables therefore derive
// identical identifiers; Fingerprint lets them verify that cheaply.
package schema

import (
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/argus-sat/splat/endian"
	"github.com/argus-sat/splat/errs"
	"github.com/argus-sat/splat/format"
)

// VarKey addresses a variable by its compact wire identifiers.
type VarKey struct {
	SubsystemID uint8
	VariableID  uint16
}

// OrderedVar is one slot of a report's canonical payload order.
type OrderedVar struct {
	Name        string
	Subsystem   string
	SubsystemID uint8
	VariableID  uint16
	Type        format.Scalar
}

// Registry is an immutable view over a validated Tables value plus every
// derived map the codec needs. It is safe for concurrent use after New
// returns.
type Registry struct {
	tables        Tables
	engine        endian.EndianEngine
	maxPacketSize int

	ssNames map[uint8]string

	reportIDs   map[string]uint8
	reportNames map[uint8]string

	commandIDs  map[string]uint16
	commandDefs map[string]*CommandDef

	varIDToName map[uint8]map[uint16]string
	varNameToID map[string]VarKey

	orderedReports map[string][]OrderedVar
}

// New builds and validates a Registry from the given tables.
//
// Validation covers: report fields referencing unknown variables or restating
// the wrong subsystem, identifier capacity against the header bit widths,
// argument names missing from the argument table, variable-length arguments
// in non-final position, and report or command frames that cannot fit in a
// single packet.
func New(tables Tables) (*Registry, error) {
	r := &Registry{
		tables:        tables,
		engine:        tables.Engine,
		maxPacketSize: tables.MaxPacketSize,
	}
	if r.engine == nil {
		r.engine = endian.GetBigEndianEngine()
	}
	if r.maxPacketSize == 0 {
		r.maxPacketSize = format.MaxPacketSize
	}

	if err := r.buildSubsystems(); err != nil {
		return nil, err
	}
	if err := r.buildVariableIDs(); err != nil {
		return nil, err
	}
	if err := r.buildReportIDs(); err != nil {
		return nil, err
	}
	if err := r.buildCommandIDs(); err != nil {
		return nil, err
	}
	if err := r.buildOrderedReports(); err != nil {
		return nil, err
	}
	if err := r.validateCommands(); err != nil {
		return nil, err
	}

	return r, nil
}

// MustNew is New for static tables known to be valid; it panics on error.
func MustNew(tables Tables) *Registry {
	r, err := New(tables)
	if err != nil {
		panic(err)
	}

	return r
}

func (r *Registry) buildSubsystems() error {
	maxID := uint8(1<<format.VariableSSSize - 1)
	r.ssNames = make(map[uint8]string, len(r.tables.Subsystems))
	for name, id := range r.tables.Subsystems {
		if id > maxID {
			return fmt.Errorf("%w: subsystem %s id %d exceeds %d bits",
				errs.ErrFieldOverflow, name, id, format.VariableSSSize)
		}
		if prev, ok := r.ssNames[id]; ok {
			return fmt.Errorf("%w: subsystems %s and %s share id %d",
				errs.ErrInvalidSchema, prev, name, id)
		}
		r.ssNames[id] = name
	}

	return nil
}

// buildVariableIDs assigns per-subsystem variable ids. Variables are sorted
// alphabetically within their subsystem so id assignment is independent of
// table declaration order.
func (r *Registry) buildVariableIDs() error {
	perSS := make(map[string][]string)
	for name, def := range r.tables.Variables {
		if _, ok := r.tables.Subsystems[def.Subsystem]; !ok {
			return fmt.Errorf("%w: variable %s references subsystem %s",
				errs.ErrUnknownSubsystem, name, def.Subsystem)
		}
		if !def.Type.Fixed() {
			return fmt.Errorf("%w: variable %s has non-scalar type %s",
				errs.ErrUnsupportedScalarType, name, def.Type)
		}
		perSS[def.Subsystem] = append(perSS[def.Subsystem], name)
	}

	maxID := 1<<format.VariableIDSize - 1
	r.varIDToName = make(map[uint8]map[uint16]string, len(r.tables.Subsystems))
	r.varNameToID = make(map[string]VarKey, len(r.tables.Variables))

	for ssName, names := range perSS {
		if len(names)-1 > maxID {
			return fmt.Errorf("%w: subsystem %s has %d variables, ids exceed %d bits",
				errs.ErrFieldOverflow, ssName, len(names), format.VariableIDSize)
		}
		sort.Strings(names)
		ssID := r.tables.Subsystems[ssName]
		ids := make(map[uint16]string, len(names))
		for idx, name := range names {
			vid := uint16(idx)
			ids[vid] = name
			r.varNameToID[name] = VarKey{SubsystemID: ssID, VariableID: vid}
		}
		r.varIDToName[ssID] = ids
	}

	return nil
}

func (r *Registry) buildReportIDs() error {
	names := make([]string, 0, len(r.tables.Reports))
	for name := range r.tables.Reports {
		names = append(names, name)
	}
	if len(names) > 1<<format.ReportIDSize {
		return fmt.Errorf("%w: %d reports exceed %d-bit report id space",
			errs.ErrFieldOverflow, len(names), format.ReportIDSize)
	}
	sort.Strings(names)

	r.reportIDs = make(map[string]uint8, len(names))
	r.reportNames = make(map[uint8]string, len(names))
	for idx, name := range names {
		r.reportIDs[name] = uint8(idx)
		r.reportNames[uint8(idx)] = name
	}

	return nil
}

func (r *Registry) buildCommandIDs() error {
	if len(r.tables.Commands) > 1<<format.CommandIDSize {
		return fmt.Errorf("%w: %d commands exceed %d-bit command id space",
			errs.ErrFieldOverflow, len(r.tables.Commands), format.CommandIDSize)
	}

	names := make([]string, 0, len(r.tables.Commands))
	r.commandDefs = make(map[string]*CommandDef, len(r.tables.Commands))
	for i := range r.tables.Commands {
		def := &r.tables.Commands[i]
		if _, dup := r.commandDefs[def.Name]; dup {
			return fmt.Errorf("%w: duplicate command %s", errs.ErrInvalidSchema, def.Name)
		}
		r.commandDefs[def.Name] = def
		names = append(names, def.Name)
	}
	sort.Strings(names)

	r.commandIDs = make(map[string]uint16, len(names))
	for idx, name := range names {
		r.commandIDs[name] = uint16(idx)
	}

	return nil
}

// buildOrderedReports computes each report's canonical payload order: fields
// sorted by (subsystem id, variable id) regardless of declaration order.
func (r *Registry) buildOrderedReports() error {
	r.orderedReports = make(map[string][]OrderedVar, len(r.tables.Reports))

	for reportName, fields := range r.tables.Reports {
		ordered := make([]OrderedVar, 0, len(fields))
		size := 1 // header byte
		for _, field := range fields {
			def, ok := r.tables.Variables[field.Variable]
			if !ok {
				return fmt.Errorf("%w: report %s field %s",
					errs.ErrUnknownVariable, reportName, field.Variable)
			}
			if def.Subsystem != field.Subsystem {
				return fmt.Errorf("%w: report %s declares %s in %s but it belongs to %s",
					errs.ErrInvalidSchema, reportName, field.Variable, field.Subsystem, def.Subsystem)
			}
			key := r.varNameToID[field.Variable]
			ordered = append(ordered, OrderedVar{
				Name:        field.Variable,
				Subsystem:   def.Subsystem,
				SubsystemID: key.SubsystemID,
				VariableID:  key.VariableID,
				Type:        def.Type,
			})
			size += def.Type.Size()
		}
		if size > r.maxPacketSize {
			return fmt.Errorf("%w: report %s needs %d bytes, packet limit is %d",
				errs.ErrInvalidSchema, reportName, size, r.maxPacketSize)
		}

		sort.Slice(ordered, func(i, j int) bool {
			if ordered[i].SubsystemID != ordered[j].SubsystemID {
				return ordered[i].SubsystemID < ordered[j].SubsystemID
			}

			return ordered[i].VariableID < ordered[j].VariableID
		})
		r.orderedReports[reportName] = ordered
	}

	return nil
}

// validateCommands enforces the trailing-argument rule at table-load time: at
// most one variable-length argument per command, and only in final position.
func (r *Registry) validateCommands() error {
	for _, def := range r.tables.Commands {
		size := 2 // header bytes
		for i, argName := range def.Args {
			typ, ok := r.tables.Arguments[argName]
			if !ok {
				return fmt.Errorf("%w: command %s argument %s",
					errs.ErrUnknownArgument, def.Name, argName)
			}
			if !typ.Fixed() && i != len(def.Args)-1 {
				return fmt.Errorf("%w: command %s has variable-length argument %s before the end",
					errs.ErrInvalidSchema, def.Name, argName)
			}
			size += typ.Size()
		}
		if size > r.maxPacketSize {
			return fmt.Errorf("%w: command %s fixed portion needs %d bytes, packet limit is %d",
				errs.ErrInvalidSchema, def.Name, size, r.maxPacketSize)
		}
	}

	return nil
}

// Engine returns the byte-order engine for all multi-byte scalars.
func (r *Registry) Engine() endian.EndianEngine { return r.engine }

// MaxPacketSize returns the fragment/ack payload bound in bytes.
func (r *Registry) MaxPacketSize() int { return r.maxPacketSize }

// SubsystemID resolves a subsystem name.
func (r *Registry) SubsystemID(name string) (uint8, error) {
	id, ok := r.tables.Subsystems[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", errs.ErrUnknownSubsystem, name)
	}

	return id, nil
}

// SubsystemName resolves a subsystem id.
func (r *Registry) SubsystemName(id uint8) (string, error) {
	name, ok := r.ssNames[id]
	if !ok {
		return "", fmt.Errorf("%w: id %d", errs.ErrUnknownSubsystem, id)
	}

	return name, nil
}

// Variable returns the descriptor for a variable name.
func (r *Registry) Variable(name string) (VariableDef, error) {
	def, ok := r.tables.Variables[name]
	if !ok {
		return VariableDef{}, fmt.Errorf("%w: %s", errs.ErrUnknownVariable, name)
	}

	return def, nil
}

// VariableKey returns the wire identifiers for a variable name.
func (r *Registry) VariableKey(name string) (VarKey, error) {
	key, ok := r.varNameToID[name]
	if !ok {
		return VarKey{}, fmt.Errorf("%w: %s", errs.ErrUnknownVariable, name)
	}

	return key, nil
}

// VariableName resolves wire identifiers back to a variable name.
func (r *Registry) VariableName(ssID uint8, varID uint16) (string, error) {
	ids, ok := r.varIDToName[ssID]
	if !ok {
		return "", fmt.Errorf("%w: id %d", errs.ErrUnknownSubsystem, ssID)
	}
	name, ok := ids[varID]
	if !ok {
		return "", fmt.Errorf("%w: id %d in subsystem %d", errs.ErrUnknownVariable, varID, ssID)
	}

	return name, nil
}

// ReportID resolves a report name.
func (r *Registry) ReportID(name string) (uint8, error) {
	id, ok := r.reportIDs[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", errs.ErrUnknownReport, name)
	}

	return id, nil
}

// ReportName resolves a report id.
func (r *Registry) ReportName(id uint8) (string, error) {
	name, ok := r.reportNames[id]
	if !ok {
		return "", fmt.Errorf("%w: id %d", errs.ErrUnknownReport, id)
	}

	return name, nil
}

// ReportFields returns the declared field list of a report.
func (r *Registry) ReportFields(name string) ([]ReportField, error) {
	fields, ok := r.tables.Reports[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errs.ErrUnknownReport, name)
	}

	return fields, nil
}

// OrderedReport returns the canonical payload order of a report: its fields
// sorted by (subsystem id, variable id).
func (r *Registry) OrderedReport(name string) ([]OrderedVar, error) {
	ordered, ok := r.orderedReports[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errs.ErrUnknownReport, name)
	}

	return ordered, nil
}

// CommandID resolves a command name.
func (r *Registry) CommandID(name string) (uint16, error) {
	id, ok := r.commandIDs[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", errs.ErrUnknownCommand, name)
	}

	return id, nil
}

// CommandByName returns the definition for a command name.
func (r *Registry) CommandByName(name string) (*CommandDef, error) {
	def, ok := r.commandDefs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errs.ErrUnknownCommand, name)
	}

	return def, nil
}

// CommandByID returns the definition for a command id.
func (r *Registry) CommandByID(id uint16) (*CommandDef, error) {
	for name, cid := range r.commandIDs {
		if cid == id {
			return r.commandDefs[name], nil
		}
	}

	return nil, fmt.Errorf("%w: id %d", errs.ErrUnknownCommand, id)
}

// ArgumentType returns the scalar type of an argument name.
func (r *Registry) ArgumentType(name string) (format.Scalar, error) {
	typ, ok := r.tables.Arguments[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", errs.ErrUnknownArgument, name)
	}

	return typ, nil
}

// ReportWireSize returns the full frame size of a report in bytes, header
// included.
func (r *Registry) ReportWireSize(name string) (int, error) {
	ordered, err := r.OrderedReport(name)
	if err != nil {
		return 0, err
	}
	size := 1
	for _, ov := range ordered {
		size += ov.Type.Size()
	}

	return size, nil
}

// CommandWireSize returns the fixed portion of a command frame in bytes,
// header included. A trailing variable-length argument adds a frame-dependent
// remainder not counted here.
func (r *Registry) CommandWireSize(name string) (int, error) {
	def, err := r.CommandByName(name)
	if err != nil {
		return 0, err
	}
	size := 2
	for _, argName := range def.Args {
		typ := r.tables.Arguments[argName]
		size += typ.Size()
	}

	return size, nil
}

// VariableWireSize returns the full frame size of a standalone variable
// sample in bytes, header included.
func (r *Registry) VariableWireSize(name string) (int, error) {
	def, err := r.Variable(name)
	if err != nil {
		return 0, err
	}

	return 2 + def.Type.Size(), nil
}

// ReportNames returns all report names in id order.
func (r *Registry) ReportNames() []string {
	names := make([]string, 0, len(r.reportIDs))
	for id := uint8(0); int(id) < len(r.reportNames); id++ {
		names = append(names, r.reportNames[id])
	}

	return names
}

// CommandNames returns all command names in id order.
func (r *Registry) CommandNames() []string {
	names := make([]string, len(r.commandIDs))
	for name, id := range r.commandIDs {
		names[id] = name
	}

	return names
}

// Fingerprint returns a 64-bit xxHash digest over a canonical serialization
// of the tables. Peers with equal fingerprints derive identical identifier
// maps and canonical report orders.
func (r *Registry) Fingerprint() uint64 {
	d := xxhash.New()

	writeEntry := func(parts ...string) {
		for _, p := range parts {
			_, _ = d.WriteString(p)
			_, _ = d.Write([]byte{0})
		}
		_, _ = d.Write([]byte{'\n'})
	}

	writeEntry("max_packet_size", fmt.Sprintf("%d", r.maxPacketSize))
	if r.engine == endian.GetLittleEndianEngine() {
		writeEntry("endianness", "little")
	} else {
		writeEntry("endianness", "big")
	}

	ssNames := make([]string, 0, len(r.tables.Subsystems))
	for name := range r.tables.Subsystems {
		ssNames = append(ssNames, name)
	}
	sort.Strings(ssNames)
	for _, name := range ssNames {
		writeEntry("subsystem", name, fmt.Sprintf("%d", r.tables.Subsystems[name]))
	}

	varNames := make([]string, 0, len(r.tables.Variables))
	for name := range r.tables.Variables {
		varNames = append(varNames, name)
	}
	sort.Strings(varNames)
	for _, name := range varNames {
		def := r.tables.Variables[name]
		writeEntry("variable", name, def.Subsystem, def.Type.String(), fmt.Sprintf("%d", def.Scale))
	}

	for _, name := range r.ReportNames() {
		for _, ov := range r.orderedReports[name] {
			writeEntry("report", name, ov.Name, ov.Subsystem)
		}
	}

	for _, name := range r.CommandNames() {
		def := r.commandDefs[name]
		parts := []string{"command", name, def.Precondition, def.Handler}
		for _, arg := range def.Args {
			parts = append(parts, arg, r.tables.Arguments[arg].String())
		}
		writeEntry(parts...)
	}

	return d.Sum64()
}

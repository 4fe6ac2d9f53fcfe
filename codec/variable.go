package codec

import (
	"fmt"

	"github.com/argus-sat/splat/errs"
	"github.com/argus-sat/splat/format"
	"github.com/argus-sat/splat/schema"
)

// Variable is a standalone telemetry sample: one named scalar with its wire
// identifiers resolved against the registry.
type Variable struct {
	name        string
	subsystem   string
	subsystemID uint8
	variableID  uint16
	typ         format.Scalar

	// Value is the sample payload; its runtime type matches the variable's
	// scalar type after a decode. Nil packs as zero.
	Value any
}

// NewVariable creates a variable sample. The name must exist in the registry.
func NewVariable(reg *schema.Registry, name string, value any) (*Variable, error) {
	def, err := reg.Variable(name)
	if err != nil {
		return nil, err
	}
	key, err := reg.VariableKey(name)
	if err != nil {
		return nil, err
	}

	return &Variable{
		name:        name,
		subsystem:   def.Subsystem,
		subsystemID: key.SubsystemID,
		variableID:  key.VariableID,
		typ:         def.Type,
		Value:       value,
	}, nil
}

// MsgType implements Message.
func (v *Variable) MsgType() format.MsgType { return format.MsgVariable }

// Name returns the variable name.
func (v *Variable) Name() string { return v.name }

// Subsystem returns the owning subsystem name.
func (v *Variable) Subsystem() string { return v.subsystem }

// SubsystemID returns the wire subsystem id.
func (v *Variable) SubsystemID() uint8 { return v.subsystemID }

// VariableID returns the wire variable id within the subsystem.
func (v *Variable) VariableID() uint16 { return v.variableID }

// Type returns the variable's scalar type.
func (v *Variable) Type() format.Scalar { return v.typ }

func (v *Variable) String() string {
	return fmt.Sprintf("Variable(%s, subsystem=%s, value=%v)", v.name, v.subsystem, v.Value)
}

// PackVariable serializes a variable frame: a 16-bit header
// [tag:3][subsystem_id:3][variable_id:10] followed by one scalar.
func (c *Codec) PackVariable(v *Variable) ([]byte, error) {
	header := uint16(format.MsgVariable)<<(format.VariableSSSize+format.VariableIDSize) |
		uint16(v.subsystemID)<<format.VariableIDSize |
		v.variableID

	buf := make([]byte, 0, 2+v.typ.Size())
	buf = append(buf, byte(header>>8), byte(header))

	buf, err := appendScalar(buf, c.reg.Engine(), v.typ, v.Value)
	if err != nil {
		return nil, fmt.Errorf("variable %s: %w", v.name, err)
	}

	return buf, nil
}

// UnpackVariable decodes a variable frame, rejecting unknown
// subsystem/variable id combinations.
func (c *Codec) UnpackVariable(data []byte) (*Variable, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: variable header needs 2 bytes, have %d", errs.ErrTruncatedFrame, len(data))
	}

	header := uint16(data[0])<<8 | uint16(data[1])
	ssID := uint8(header>>format.VariableIDSize) & (1<<format.VariableSSSize - 1)
	varID := header & (1<<format.VariableIDSize - 1)

	name, err := c.reg.VariableName(ssID, varID)
	if err != nil {
		return nil, err
	}

	v, err := NewVariable(c.reg, name, nil)
	if err != nil {
		return nil, err
	}

	value, err := decodeScalar(c.reg.Engine(), v.typ, data[2:])
	if err != nil {
		return nil, fmt.Errorf("variable %s: %w", name, err)
	}
	v.Value = value

	return v, nil
}

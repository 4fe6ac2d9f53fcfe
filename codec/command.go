package codec

import (
	"fmt"

	"github.com/argus-sat/splat/errs"
	"github.com/argus-sat/splat/format"
	"github.com/argus-sat/splat/schema"
)

// Command is a ground-to-satellite request with typed arguments.
//
// Arguments are stored by name; pack order is the declaration order from the
// command table. A command with unset arguments fails to pack.
type Command struct {
	name string
	id   uint16
	def  *schema.CommandDef

	args map[string]any
}

// NewCommand creates a command with no arguments set.
func NewCommand(reg *schema.Registry, name string) (*Command, error) {
	id, err := reg.CommandID(name)
	if err != nil {
		return nil, err
	}
	def, err := reg.CommandByName(name)
	if err != nil {
		return nil, err
	}

	return &Command{
		name: name,
		id:   id,
		def:  def,
		args: make(map[string]any, len(def.Args)),
	}, nil
}

// MsgType implements Message.
func (cmd *Command) MsgType() format.MsgType { return format.MsgCommand }

// Name returns the command name.
func (cmd *Command) Name() string { return cmd.name }

// ID returns the wire command id.
func (cmd *Command) ID() uint16 { return cmd.id }

// Handler returns the handler tag dispatched on the satellite.
func (cmd *Command) Handler() string { return cmd.def.Handler }

// Precondition returns the precondition tag, or "" if none.
func (cmd *Command) Precondition() string { return cmd.def.Precondition }

// ArgNames returns the declared argument names in order.
func (cmd *Command) ArgNames() []string { return cmd.def.Args }

// Set stores one argument by name.
func (cmd *Command) Set(argName string, value any) error {
	if !cmd.hasArg(argName) {
		return fmt.Errorf("%w: %s is not valid for command %s", errs.ErrUnknownArgument, argName, cmd.name)
	}
	cmd.args[argName] = value

	return nil
}

// SetArgs stores arguments positionally, in declaration order.
func (cmd *Command) SetArgs(values ...any) error {
	if len(values) > len(cmd.def.Args) {
		return fmt.Errorf("%w: command %s takes %d arguments, got %d",
			errs.ErrUnknownArgument, cmd.name, len(cmd.def.Args), len(values))
	}
	for i, value := range values {
		cmd.args[cmd.def.Args[i]] = value
	}

	return nil
}

// Get returns an argument value, or nil if unset.
func (cmd *Command) Get(argName string) any {
	return cmd.args[argName]
}

// Args returns the argument values in declaration order; unset arguments are
// nil.
func (cmd *Command) Args() []any {
	values := make([]any, len(cmd.def.Args))
	for i, name := range cmd.def.Args {
		values[i] = cmd.args[name]
	}

	return values
}

func (cmd *Command) hasArg(argName string) bool {
	for _, name := range cmd.def.Args {
		if name == argName {
			return true
		}
	}

	return false
}

func (cmd *Command) String() string {
	return fmt.Sprintf("Command(%s, id=%d, args=%v)", cmd.name, cmd.id, cmd.def.Args)
}

// PackCommand serializes a command frame: a 16-bit header
// [tag:3][command_id:13], the fixed-width arguments in declaration order,
// then the optional trailing variable-length argument.
func (c *Codec) PackCommand(cmd *Command) ([]byte, error) {
	size, err := c.reg.CommandWireSize(cmd.name)
	if err != nil {
		return nil, err
	}

	header := uint16(format.MsgCommand)<<format.CommandIDSize | cmd.id
	buf := make([]byte, 0, size)
	buf = append(buf, byte(header>>8), byte(header))

	engine := c.reg.Engine()
	for _, argName := range cmd.def.Args {
		value, set := cmd.args[argName]
		if !set || value == nil {
			return nil, fmt.Errorf("%w: %s for command %s", errs.ErrMissingArgument, argName, cmd.name)
		}

		typ, err := c.reg.ArgumentType(argName)
		if err != nil {
			return nil, err
		}

		switch typ {
		case format.TrailingUTF8:
			s, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("%w: argument %s wants a string, got %T", errs.ErrInvalidValue, argName, value)
			}
			buf = append(buf, s...)
		case format.Blob:
			b, ok := value.([]byte)
			if !ok {
				return nil, fmt.Errorf("%w: argument %s wants bytes, got %T", errs.ErrInvalidValue, argName, value)
			}
			if len(b) > 255 || len(buf)+1+len(b) > c.reg.MaxPacketSize() {
				return nil, fmt.Errorf("%w: blob argument %s is %d bytes", errs.ErrFieldOverflow, argName, len(b))
			}
			buf = append(buf, byte(len(b)))
			buf = append(buf, b...)
		default:
			buf, err = appendScalar(buf, engine, typ, value)
			if err != nil {
				return nil, fmt.Errorf("command %s argument %s: %w", cmd.name, argName, err)
			}
		}
	}

	return buf, nil
}

// UnpackCommand decodes a command frame. The fixed portion must be complete;
// when the schema declares a trailing string, any remainder is accepted as
// its value.
func (c *Codec) UnpackCommand(data []byte) (*Command, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: command header needs 2 bytes, have %d", errs.ErrTruncatedFrame, len(data))
	}

	header := uint16(data[0])<<8 | uint16(data[1])
	id := header & (1<<format.CommandIDSize - 1)

	def, err := c.reg.CommandByID(id)
	if err != nil {
		return nil, err
	}

	cmd, err := NewCommand(c.reg, def.Name)
	if err != nil {
		return nil, err
	}

	engine := c.reg.Engine()
	payload := data[2:]
	for _, argName := range def.Args {
		typ, err := c.reg.ArgumentType(argName)
		if err != nil {
			return nil, err
		}

		switch typ {
		case format.TrailingUTF8:
			// Consumes the remainder, whatever it holds.
			cmd.args[argName] = string(payload)
			payload = nil
		case format.Blob:
			if len(payload) < 1 {
				return nil, fmt.Errorf("%w: blob argument %s has no length byte", errs.ErrTruncatedFrame, argName)
			}
			n := int(payload[0])
			if len(payload) < 1+n {
				return nil, fmt.Errorf("%w: blob argument %s wants %d bytes, have %d",
					errs.ErrTruncatedFrame, argName, n, len(payload)-1)
			}
			blob := make([]byte, n)
			copy(blob, payload[1:1+n])
			cmd.args[argName] = blob
			payload = payload[1+n:]
		default:
			value, err := decodeScalar(engine, typ, payload)
			if err != nil {
				return nil, fmt.Errorf("command %s argument %s: %w", def.Name, argName, err)
			}
			cmd.args[argName] = value
			payload = payload[typ.Size():]
		}
	}

	return cmd, nil
}

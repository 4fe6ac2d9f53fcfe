package codec

import (
	"fmt"

	"github.com/argus-sat/splat/errs"
	"github.com/argus-sat/splat/format"
	"github.com/argus-sat/splat/schema"
)

// Report is a mutable telemetry report under construction or freshly decoded.
//
// Values live in positionally-indexed slots aligned with the report's
// canonical (subsystem id, variable id) payload order; a name-to-slot map
// keeps construction ergonomic. A nil slot is "unset" and serializes as zero
// of the declared type.
type Report struct {
	name string
	id   uint8

	ordered []schema.OrderedVar
	slots   []any
	index   map[string]int
}

// NewReport creates an empty report with every slot unset.
func NewReport(reg *schema.Registry, name string) (*Report, error) {
	id, err := reg.ReportID(name)
	if err != nil {
		return nil, err
	}
	ordered, err := reg.OrderedReport(name)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int, len(ordered))
	for i, ov := range ordered {
		index[ov.Name] = i
	}

	return &Report{
		name:    name,
		id:      id,
		ordered: ordered,
		slots:   make([]any, len(ordered)),
		index:   index,
	}, nil
}

// MsgType implements Message.
func (r *Report) MsgType() format.MsgType { return format.MsgReport }

// Name returns the report name.
func (r *Report) Name() string { return r.name }

// ID returns the wire report id.
func (r *Report) ID() uint8 { return r.id }

// Set stores a value for the named variable.
func (r *Report) Set(varName string, value any) error {
	i, ok := r.index[varName]
	if !ok {
		return fmt.Errorf("%w: %s is not in report %s", errs.ErrUnknownVariable, varName, r.name)
	}
	r.slots[i] = value

	return nil
}

// SetAll stores multiple values keyed by variable name.
func (r *Report) SetAll(values map[string]any) error {
	for name, value := range values {
		if err := r.Set(name, value); err != nil {
			return err
		}
	}

	return nil
}

// Get returns the value of the named variable, or nil if unset.
func (r *Report) Get(varName string) (any, error) {
	i, ok := r.index[varName]
	if !ok {
		return nil, fmt.Errorf("%w: %s is not in report %s", errs.ErrUnknownVariable, varName, r.name)
	}

	return r.slots[i], nil
}

// VariableNames returns the names of the report's variables belonging to the
// given subsystem, in canonical order.
func (r *Report) VariableNames(subsystem string) []string {
	var names []string
	for _, ov := range r.ordered {
		if ov.Subsystem == subsystem {
			names = append(names, ov.Name)
		}
	}

	return names
}

// Len returns the number of variable slots in the report.
func (r *Report) Len() int { return len(r.ordered) }

func (r *Report) String() string {
	return fmt.Sprintf("Report(%s, id=%d, variables=%d)", r.name, r.id, len(r.ordered))
}

// PackReport serializes a report frame: one header byte [tag:3][report_id:5]
// followed by every slot in canonical order. Unset slots pack as zero.
func (c *Codec) PackReport(r *Report) ([]byte, error) {
	size, err := c.reg.ReportWireSize(r.name)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 0, size)
	buf = append(buf, byte(format.MsgReport)<<format.ReportIDSize|r.id)

	engine := c.reg.Engine()
	for i, ov := range r.ordered {
		buf, err = appendScalar(buf, engine, ov.Type, r.slots[i])
		if err != nil {
			return nil, fmt.Errorf("report %s variable %s: %w", r.name, ov.Name, err)
		}
	}

	return buf, nil
}

// UnpackReport decodes a report frame. Every slot of the returned report is
// populated.
func (c *Codec) UnpackReport(data []byte) (*Report, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("%w: empty frame", errs.ErrTruncatedFrame)
	}

	id := data[0] & (1<<format.ReportIDSize - 1)
	name, err := c.reg.ReportName(id)
	if err != nil {
		return nil, err
	}

	report, err := NewReport(c.reg, name)
	if err != nil {
		return nil, err
	}

	engine := c.reg.Engine()
	payload := data[1:]
	for i, ov := range report.ordered {
		value, err := decodeScalar(engine, ov.Type, payload)
		if err != nil {
			return nil, fmt.Errorf("report %s variable %s: %w", name, ov.Name, err)
		}
		report.slots[i] = value
		payload = payload[ov.Type.Size():]
	}

	return report, nil
}

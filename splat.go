// Package splat implements the Argus satellite <-> ground-station link
// protocol: a compact binary telemetry codec and a receiver-driven,
// stop-and-go file-transfer layer, both driven by static definition tables.
//
// # Wire format
//
// Every frame starts with one byte whose top 3 bits name the message family:
// telemetry reports, standalone variable samples, commands with typed
// arguments, status acks, and file-transfer fragments. Identifier fields
// follow the tag, bit-packed and sometimes straddling byte boundaries;
// payload scalars use the configured byte order (big-endian by default).
//
// # Basic usage
//
// Packing a telemetry report with the built-in Argus tables:
//
//	cdc := splat.NewCodec()
//
//	report, _ := codec.NewReport(cdc.Registry(), "TM_TEST")
//	_ = report.Set("TIME", uint32(1700000000))
//	_ = report.Set("SC_STATE", uint8(2))
//	frame, _ := cdc.Pack(report)
//
// Decoding dispatches on the first byte:
//
//	msg, _ := cdc.Unpack(frame)
//	decoded := msg.(*codec.Report)
//
// File transfers are managed per direction by a transport.Manager; see that
// package for the transaction lifecycle.
//
// # Custom tables
//
// Peers interoperate only when they hold identical definition tables. Build
// a registry from your own tables with schema.New and check peers against
// each other with Registry.Fingerprint.
package splat

import (
	"github.com/argus-sat/splat/codec"
	"github.com/argus-sat/splat/schema"
	"github.com/argus-sat/splat/transport"
)

// DefaultRegistry returns a registry over the built-in Argus flight tables.
func DefaultRegistry() *schema.Registry {
	return schema.MustNew(schema.ArgusTables())
}

// NewCodec creates a codec over the built-in Argus flight tables.
func NewCodec() *codec.Codec {
	return codec.New(DefaultRegistry())
}

// NewManager creates a transaction manager over the built-in Argus flight
// tables.
func NewManager(opts ...transport.ManagerOption) (*transport.Manager, error) {
	return transport.NewManager(NewCodec(), opts...)
}

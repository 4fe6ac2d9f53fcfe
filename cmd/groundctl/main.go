// Command groundctl is the ground-station demo driver: it requests a file
// from a satserver over TCP, drives fragment delivery in one of three modes,
// reassembles the file and verifies its hash.
package main

import (
	"fmt"
	"net"
	"time"

	"github.com/alecthomas/kong"

	"github.com/argus-sat/splat"
	"github.com/argus-sat/splat/clog"
	"github.com/argus-sat/splat/codec"
	"github.com/argus-sat/splat/transport"
)

var cli struct {
	File    string `arg:"" help:"Remote file to fetch."`
	Connect string `help:"Satellite server address." default:"127.0.0.1:65432"`
	Output  string `help:"Destination folder for the received file." default:"downloads"`
	Mode    string `help:"Delivery mode." enum:"all,batch,single" default:"all"`
	Batch   int    `help:"Fragments per request in batch mode." default:"4"`
	Tid     uint8  `help:"Transaction id to request." default:"0"`
	Dump    bool   `help:"Dump the transaction snapshot after the transfer."`
	Verbose bool   `short:"v" help:"Enable debug logging."`
}

const readTimeout = 5 * time.Second

type client struct {
	conn net.Conn
	cdc  *codec.Codec
	mgr  *transport.Manager
	log  clog.Clog
	buf  []byte
}

func main() {
	kctx := kong.Parse(&cli)

	log := clog.NewLogger("groundctl: ")
	log.LogMode(cli.Verbose)

	cdc := splat.NewCodec()
	mgr, err := transport.NewManager(cdc, transport.WithLogger(log))
	kctx.FatalIfErrorf(err)

	conn, err := net.Dial("tcp", cli.Connect)
	kctx.FatalIfErrorf(err)
	defer conn.Close()

	c := &client{conn: conn, cdc: cdc, mgr: mgr, log: log, buf: make([]byte, 1024)}
	kctx.FatalIfErrorf(c.run())
}

func (c *client) run() error {
	trans, err := c.initTransfer()
	if err != nil {
		return err
	}
	fmt.Printf("transfer of %s: %d fragments\n", cli.File, trans.NumberOfFragments())

	for !trans.IsCompleted() {
		switch cli.Mode {
		case "single":
			err = c.requestSingle(trans)
		case "batch":
			err = c.requestBatch(trans)
		default:
			err = c.requestAll(trans)
		}
		if err != nil {
			return err
		}
	}

	if err := trans.WriteFile(cli.Output); err != nil {
		return err
	}
	fmt.Printf("wrote %s (state %s)\n", cli.File, trans.State())

	if cli.Dump {
		path, err := c.mgr.DumpToDisk(trans.Tid(), false, "", false)
		if err != nil {
			return err
		}
		fmt.Printf("snapshot: %s\n", path)
	}

	return nil
}

// initTransfer sends CREATE_TRANS and waits for the INIT_TRANS reply, then
// registers the receiving transaction.
func (c *client) initTransfer() (*transport.Transaction, error) {
	create, err := codec.NewCommand(c.cdc.Registry(), "CREATE_TRANS")
	if err != nil {
		return nil, err
	}
	if err := create.SetArgs(cli.Tid, cli.File); err != nil {
		return nil, err
	}
	if err := c.send(create); err != nil {
		return nil, err
	}

	for {
		msg, err := c.read()
		if err != nil {
			return nil, err
		}

		switch m := msg.(type) {
		case *codec.Ack:
			c.log.Debug("ack: %s", m.Payload)
		case *codec.Command:
			if m.Name() != "INIT_TRANS" {
				return nil, fmt.Errorf("expected INIT_TRANS, got %s", m.Name())
			}
			tid, _ := m.Get("tid").(uint8)
			count, _ := m.Get("number_of_packets").(uint16)

			trans, err := c.mgr.CreateRx(tid, cli.File, int(count))
			if err != nil {
				return nil, err
			}
			msb, _ := m.Get("hash_MSB").(uint64)
			middle, _ := m.Get("hash_middlesb").(uint64)
			lsb, _ := m.Get("hash_LSB").(uint32)
			trans.SetHashFromIntegers(msb, middle, lsb)
			if !trans.IsCompleted() {
				trans.ChangeState(transport.StateInit)
			}

			return trans, nil
		default:
			return nil, fmt.Errorf("unexpected %s frame during init", msg.MsgType())
		}
	}
}

// requestAll asks the sender for every missing fragment at once and drains
// the stream.
func (c *client) requestAll(trans *transport.Transaction) error {
	if err := c.sendTransCommand("GENERATE_ALL_PACKETS", trans.Tid()); err != nil {
		return err
	}

	return c.collectFragments(trans, len(trans.MissingFragments()))
}

// requestBatch asks for a bounded batch, then reports what actually arrived
// with a SYNC_BITMAP sweep so the sender's missing set converges.
func (c *client) requestBatch(trans *transport.Transaction) error {
	cmd, err := codec.NewCommand(c.cdc.Registry(), "GENERATE_X_PACKETS")
	if err != nil {
		return err
	}
	want := min(cli.Batch, len(trans.MissingFragments()))
	if err := cmd.SetArgs(trans.Tid(), uint16(want)); err != nil {
		return err
	}
	if err := c.send(cmd); err != nil {
		return err
	}
	if err := c.collectFragments(trans, want); err != nil {
		return err
	}

	for _, w := range trans.GenerateMissingBitmaps(transport.BitmapWindowBits) {
		sync, err := codec.NewCommand(c.cdc.Registry(), "SYNC_BITMAP")
		if err != nil {
			return err
		}
		if err := sync.SetArgs(trans.Tid(), w.SeqOffset, w.MSB, w.LSB); err != nil {
			return err
		}
		if err := c.send(sync); err != nil {
			return err
		}
		if err := c.drainAck(); err != nil {
			return err
		}
	}

	return nil
}

// requestSingle fetches exactly one missing fragment by sequence number.
func (c *client) requestSingle(trans *transport.Transaction) error {
	missing := trans.MissingFragments()
	if len(missing) == 0 {
		return nil
	}

	cmd, err := codec.NewCommand(c.cdc.Registry(), "GET_SINGLE_PACKET")
	if err != nil {
		return err
	}
	if err := cmd.SetArgs(trans.Tid(), missing[0]); err != nil {
		return err
	}
	if err := c.send(cmd); err != nil {
		return err
	}

	return c.collectFragments(trans, 1)
}

// collectFragments reads frames until want fragments arrived for trans (acks
// in between are logged and skipped) or the transaction completes.
func (c *client) collectFragments(trans *transport.Transaction, want int) error {
	for received := 0; received < want && !trans.IsCompleted(); {
		msg, err := c.read()
		if err != nil {
			return err
		}

		switch m := msg.(type) {
		case *codec.Ack:
			c.log.Debug("ack: %s", m.Payload)
		case *codec.Fragment:
			if m.Tid != trans.Tid() {
				c.log.Warn("fragment for unknown tid %d", m.Tid)
				continue
			}
			trans.AddFragment(m.Seq, m.Payload)
			received++
		default:
			c.log.Warn("unexpected %s frame, ignoring", msg.MsgType())
		}
	}

	return nil
}

func (c *client) sendTransCommand(name string, tid uint8) error {
	cmd, err := codec.NewCommand(c.cdc.Registry(), name)
	if err != nil {
		return err
	}
	if err := cmd.SetArgs(tid); err != nil {
		return err
	}

	return c.send(cmd)
}

func (c *client) send(cmd *codec.Command) error {
	frame, err := c.cdc.PackCommand(cmd)
	if err != nil {
		return err
	}
	_, err = c.conn.Write(frame)

	return err
}

func (c *client) read() (codec.Message, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		return nil, err
	}
	n, err := c.conn.Read(c.buf)
	if err != nil {
		return nil, err
	}

	return c.cdc.Unpack(c.buf[:n])
}

func (c *client) drainAck() error {
	msg, err := c.read()
	if err != nil {
		return err
	}
	if ack, ok := msg.(*codec.Ack); ok {
		c.log.Debug("ack: %s", ack.Payload)
	}

	return nil
}

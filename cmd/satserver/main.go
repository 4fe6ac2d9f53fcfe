// Command satserver is the satellite-side demo driver: it answers commands
// from a ground station over TCP and streams file-transfer fragments.
//
// The server is a thin, non-contractual surface over the codec and transport
// layers; one goroutine per connection dispatches codec work and transaction
// updates serially.
package main

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"time"

	"github.com/alecthomas/kong"

	"github.com/argus-sat/splat"
	"github.com/argus-sat/splat/clog"
	"github.com/argus-sat/splat/codec"
	"github.com/argus-sat/splat/transport"
)

var cli struct {
	Listen   string `help:"Address to listen on." default:"127.0.0.1:65432"`
	FilesDir string `help:"Directory holding the files served to the ground station." default:"."`
	History  string `help:"Transaction history folder." default:"transaction_history"`
	Verbose  bool   `short:"v" help:"Enable debug logging."`
}

// sendGap paces back-to-back frames so the peer sees one stream record per
// frame; initSettle leaves the receiver time to place the record boundary
// between INIT_TRANS and the first fragment.
const (
	sendGap    = 50 * time.Millisecond
	initSettle = 100 * time.Millisecond
)

type server struct {
	cdc *codec.Codec
	mgr *transport.Manager
	log clog.Clog
}

func main() {
	kctx := kong.Parse(&cli)

	log := clog.NewLogger("satserver: ")
	log.LogMode(cli.Verbose)

	cdc := splat.NewCodec()
	mgr, err := transport.NewManager(cdc,
		transport.WithHistoryFolder(cli.History),
		transport.WithLogger(log),
	)
	kctx.FatalIfErrorf(err)

	srv := &server{cdc: cdc, mgr: mgr, log: log}

	ln, err := net.Listen("tcp", cli.Listen)
	kctx.FatalIfErrorf(err)
	fmt.Printf("listening on %s, serving %s\n", cli.Listen, cli.FilesDir)

	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Error("accept: %v", err)
			continue
		}
		go srv.handleConn(conn)
	}
}

func (s *server) handleConn(conn net.Conn) {
	defer conn.Close()
	fmt.Printf("connected: %s\n", conn.RemoteAddr())

	buf := make([]byte, 1024)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			fmt.Printf("disconnected: %s\n", conn.RemoteAddr())
			return
		}

		msg, err := s.cdc.Unpack(buf[:n])
		if err != nil {
			s.log.Warn("unpack: %v", err)
			continue
		}

		cmd, ok := msg.(*codec.Command)
		if !ok {
			s.log.Warn("unexpected %s frame, ignoring", msg.MsgType())
			continue
		}

		reply, frames, settle, err := s.processCommand(cmd)
		if err != nil {
			s.log.Error("%s: %v", cmd.Name(), err)
			reply = err.Error()
		}

		ack, packErr := s.cdc.PackAck(codec.NewAck(0, reply))
		if packErr == nil {
			s.send(conn, ack)
		}
		if settle {
			time.Sleep(initSettle)
		}
		for _, frame := range frames {
			s.send(conn, frame)
		}
	}
}

func (s *server) send(conn net.Conn, frame []byte) {
	if _, err := conn.Write(frame); err != nil {
		s.log.Error("send: %v", err)
	}
	time.Sleep(sendGap)
}

// processCommand runs one ground command and returns the ack text, any
// frames to stream afterwards, and whether to pause before streaming.
func (s *server) processCommand(cmd *codec.Command) (string, [][]byte, bool, error) {
	switch cmd.Name() {
	case "SUM":
		op1, _ := cmd.Get("op1").(uint32)
		op2, _ := cmd.Get("op2").(uint32)

		return fmt.Sprintf("SUM=%d", op1+op2), nil, false, nil

	case "CREATE_TRANS":
		tid, _ := cmd.Get("tid").(uint8)
		name, _ := cmd.Get("string_command").(string)
		path := filepath.Join(cli.FilesDir, filepath.Clean("/"+name))

		t, err := s.mgr.CreateTxWithTid(tid, path)
		if err != nil {
			return "", nil, false, err
		}
		t.ChangeState(transport.StateInit)

		init, err := codec.NewCommand(s.cdc.Registry(), "INIT_TRANS")
		if err != nil {
			return "", nil, false, err
		}
		msb, middle, lsb := t.GetHashAsIntegers()
		if err := init.SetArgs(tid, uint16(t.NumberOfFragments()), msb, middle, lsb); err != nil {
			return "", nil, false, err
		}
		frame, err := s.cdc.PackCommand(init)
		if err != nil {
			return "", nil, false, err
		}

		return fmt.Sprintf("trans %d created, %d packets", tid, t.NumberOfFragments()),
			[][]byte{frame}, true, nil

	case "GENERATE_ALL_PACKETS":
		t, err := s.senderTrans(cmd)
		if err != nil {
			return "", nil, false, err
		}
		frames, err := t.GenerateAllPackets()
		if err != nil {
			return "", nil, false, err
		}

		return fmt.Sprintf("generated %d packets", len(frames)), frames, false, nil

	case "GENERATE_X_PACKETS":
		t, err := s.senderTrans(cmd)
		if err != nil {
			return "", nil, false, err
		}
		x, _ := cmd.Get("x").(uint16)
		frames, err := t.GenerateXPackets(int(x))
		if err != nil {
			return "", nil, false, err
		}

		return fmt.Sprintf("generated %d packets", len(frames)), frames, false, nil

	case "GET_SINGLE_PACKET":
		t, err := s.senderTrans(cmd)
		if err != nil {
			return "", nil, false, err
		}
		seq, _ := cmd.Get("seq_number").(uint16)
		frame, err := t.GenerateSpecificPacket(seq)
		if err != nil {
			return "", nil, false, err
		}

		return fmt.Sprintf("packet %d generated", seq), [][]byte{frame}, false, nil

	case "CONFIRM_BITMAP":
		t, err := s.senderTrans(cmd)
		if err != nil {
			return "", nil, false, err
		}
		msb, _ := cmd.Get("bitmap_msb").(uint16)
		lsb, _ := cmd.Get("bitmap_lsb").(uint16)
		remaining := t.ConfirmLastBatch(uint32(msb)<<16 | uint32(lsb))

		return fmt.Sprintf("%d fragments still missing", remaining), nil, false, nil

	case "SYNC_BITMAP":
		t, err := s.senderTrans(cmd)
		if err != nil {
			return "", nil, false, err
		}
		offset, _ := cmd.Get("seq_offset").(uint16)
		msb, _ := cmd.Get("bitmap_msb").(uint16)
		lsb, _ := cmd.Get("bitmap_lsb").(uint16)
		t.UpdateMissingBitmap(int(offset), uint32(msb)<<16|uint32(lsb), transport.BitmapWindowBits)

		return fmt.Sprintf("%d fragments still missing", len(t.MissingFragments())), nil, false, nil

	default:
		return "", nil, false, errors.New("unhandled command " + cmd.Name())
	}
}

func (s *server) senderTrans(cmd *codec.Command) (*transport.Transaction, error) {
	tid, _ := cmd.Get("tid").(uint8)
	t, ok := s.mgr.GetTx(tid)
	if !ok {
		return nil, fmt.Errorf("no TX transaction with tid=%d", tid)
	}

	return t, nil
}

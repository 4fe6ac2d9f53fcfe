// Package transport implements the receiver-driven file-transfer layer on
// top of the frame codec: per-file Transactions with a seven-state
// lifecycle, and the process-wide Manager that owns them.
//
// A transfer is driven by the receiver. It asks the sender to create a
// transaction (CREATE_TRANS), learns the fragment count and content hash
// from the INIT_TRANS reply, then requests delivery fragment by fragment,
// in bounded batches, or all at once. The missing-fragment sets on both
// sides are kept in sync with compact 32-bit-window bitmaps.
package transport

import (
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/argus-sat/splat/clog"
	"github.com/argus-sat/splat/codec"
	"github.com/argus-sat/splat/errs"
	"github.com/argus-sat/splat/internal/pool"
)

// HashSize is the content digest length in bytes (SHA-1). The digest is a
// protocol parameter for integrity checking, not a security feature; its
// 8+8+4 integer split on the wire is a fixed contract.
const HashSize = sha1.Size

// Transaction owns one file transfer in one direction.
//
// On the TX side FilePath is the absolute source path and the fragment count
// and hash are computed from the file. On the RX side FilePath is the
// relative destination path chosen by the requester, and count and hash
// arrive in the INIT_TRANS command.
//
// A Transaction is not safe for concurrent use. The Manager's mutex guards
// its maps only; the transactions it hands out are not locked by it.
type Transaction struct {
	cdc *codec.Codec
	log clog.Clog

	tid   uint8
	isTX  bool
	state State

	// startDate is recorded for future expiry policies; the transaction
	// itself performs no timing.
	startDate time.Time

	filePath     string
	fileSize     int64
	numFragments int
	hash         []byte

	fragments map[uint16][]byte
	missing   map[uint16]struct{}

	// lastBatch records the sequence numbers of the most recently generated
	// outbound batch, in generation order, for ConfirmLastBatch.
	lastBatch []uint16

	packetsGenerated int
}

// NewTxTransaction creates a sending-side transaction for the file at
// filePath. The file size, fragment count and SHA-1 hash are computed now;
// the file itself is re-read at fragment generation time.
func NewTxTransaction(cdc *codec.Codec, tid uint8, filePath string) (*Transaction, error) {
	if tid > codec.MaxFragmentTid {
		return nil, fmt.Errorf("%w: tid %d", errs.ErrFieldOverflow, tid)
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("stat transfer source: %w", err)
	}

	t := &Transaction{
		cdc:       cdc,
		log:       clog.NewLogger("transaction: "),
		tid:       tid,
		isTX:      true,
		state:     StateRequested,
		startDate: time.Now(),
		filePath:  filePath,
		fileSize:  info.Size(),
		fragments: make(map[uint16][]byte),
		missing:   make(map[uint16]struct{}),
	}

	t.SetNumberOfFragments(numFragmentsFor(info.Size(), cdc.Registry().MaxPacketSize()))

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read transfer source: %w", err)
	}
	t.hash = CalculateHash(data)

	return t, nil
}

// NewRxTransaction creates a receiving-side transaction. The tid was chosen
// by the remote peer; numFragments may be negative if not yet known, in
// which case SetNumberOfFragments must be called once INIT_TRANS arrives.
func NewRxTransaction(cdc *codec.Codec, tid uint8, filePath string, numFragments int) (*Transaction, error) {
	if tid > codec.MaxFragmentTid {
		return nil, fmt.Errorf("%w: tid %d", errs.ErrFieldOverflow, tid)
	}

	t := &Transaction{
		cdc:       cdc,
		log:       clog.NewLogger("transaction: "),
		tid:       tid,
		isTX:      false,
		state:     StateRequested,
		startDate: time.Now(),
		filePath:  filePath,
		fragments: make(map[uint16][]byte),
		missing:   make(map[uint16]struct{}),
	}

	if numFragments >= 0 {
		t.SetNumberOfFragments(numFragments)
	}

	return t, nil
}

func numFragmentsFor(fileSize int64, packetSize int) int {
	if fileSize <= 0 {
		return 0
	}

	return int((fileSize + int64(packetSize) - 1) / int64(packetSize))
}

// Tid returns the transaction id.
func (t *Transaction) Tid() uint8 { return t.tid }

// IsTx reports whether this is a sending-side transaction.
func (t *Transaction) IsTx() bool { return t.isTX }

// State returns the current lifecycle state.
func (t *Transaction) State() State { return t.state }

// StartDate returns the creation time of the transaction.
func (t *Transaction) StartDate() time.Time { return t.startDate }

// FilePath returns the source (TX) or destination (RX) path.
func (t *Transaction) FilePath() string { return t.filePath }

// FileSize returns the source file size; zero on the RX side.
func (t *Transaction) FileSize() int64 { return t.fileSize }

// NumberOfFragments returns the fragment count of the transfer.
func (t *Transaction) NumberOfFragments() int { return t.numFragments }

// Hash returns the 20-byte content digest, or nil if none is known.
func (t *Transaction) Hash() []byte { return t.hash }

// SetHash installs a content digest; nil clears it.
func (t *Transaction) SetHash(hash []byte) { t.hash = hash }

// IsCompleted reports whether the transaction is in the COMPLETED state:
// every fragment received and the file not yet written.
func (t *Transaction) IsCompleted() bool { return t.state == StateCompleted }

// ChangeState forces the lifecycle state. Normal progress happens through
// the operation methods; this exists for protocol drivers (e.g. moving to
// INIT once both sides know the fragment count) and for abandoning a
// transaction as FAILED.
func (t *Transaction) ChangeState(s State) { t.state = s }

// SetLogger replaces the transaction's logger.
func (t *Transaction) SetLogger(log clog.Clog) { t.log = log }

// SetNumberOfFragments sets the fragment count and resets the missing set to
// the full range. NewTxTransaction calls it, and the RX side calls it when
// INIT_TRANS arrives. A zero-fragment RX transfer is legal and completes
// immediately.
func (t *Transaction) SetNumberOfFragments(n int) {
	t.numFragments = n
	t.missing = make(map[uint16]struct{}, n)
	for seq := range n {
		t.missing[uint16(seq)] = struct{}{}
	}

	if n == 0 && !t.isTX {
		t.log.Debug("transaction %d is a zero-fragment transfer, completing immediately", t.tid)
		t.state = StateCompleted
	}
}

// AddFragment stores one received fragment payload. A duplicate sequence
// number overwrites the stored payload with a warning; a sequence number
// absent from the missing set warns but still stores. Returns true iff the
// transaction transitioned to COMPLETED.
func (t *Transaction) AddFragment(seq uint16, payload []byte) bool {
	if _, dup := t.fragments[seq]; dup {
		t.log.Warn("fragment %d already stored in transaction %d, overwriting", seq, t.tid)
	}

	if t.state != StateReceiving {
		t.log.Debug("transaction %d changing state to RECEIVING", t.tid)
		t.state = StateReceiving
	}

	buf := make([]byte, len(payload))
	copy(buf, payload)
	t.fragments[seq] = buf

	if _, expected := t.missing[seq]; !expected {
		t.log.Warn("fragment %d stored in transaction %d but was not in the missing set", seq, t.tid)
	}
	delete(t.missing, seq)

	if len(t.fragments) == t.numFragments && len(t.missing) == 0 {
		t.log.Debug("transaction %d received all fragments, changing state to COMPLETED", t.tid)
		t.state = StateCompleted

		return true
	}

	return false
}

// MissingFragments returns the missing sequence numbers in ascending order.
func (t *Transaction) MissingFragments() []uint16 {
	seqs := make([]uint16, 0, len(t.missing))
	for seq := range t.missing {
		seqs = append(seqs, seq)
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })

	return seqs
}

// ReceivedFragments returns the stored sequence numbers in ascending order.
func (t *Transaction) ReceivedFragments() []uint16 {
	seqs := make([]uint16, 0, len(t.fragments))
	for seq := range t.fragments {
		seqs = append(seqs, seq)
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })

	return seqs
}

// ReceivedCount returns the number of stored fragments.
func (t *Transaction) ReceivedCount() int { return len(t.fragments) }

// PacketsGenerated returns how many outbound fragment frames this
// transaction has produced.
func (t *Transaction) PacketsGenerated() int { return t.packetsGenerated }

// markSending moves a fresh sender transaction into SENDING on its first
// outbound fragment.
func (t *Transaction) markSending() {
	if t.state == StateRequested || t.state == StateInit {
		t.log.Debug("transaction %d changing state to SENDING", t.tid)
		t.state = StateSending
	}
}

// GenerateAllPackets produces one packed Fragment frame per missing
// sequence number, in ascending order, and records the batch for
// ConfirmLastBatch. The missing set itself is not mutated; removal is
// driven by ConfirmLastBatch or a later bitmap sync.
func (t *Transaction) GenerateAllPackets() ([][]byte, error) {
	if t.filePath == "" {
		return nil, fmt.Errorf("%w: transaction %d", errs.ErrNoFilePath, t.tid)
	}

	data, err := os.ReadFile(t.filePath)
	if err != nil {
		return nil, fmt.Errorf("read transfer source: %w", err)
	}

	packetSize := t.cdc.Registry().MaxPacketSize()
	t.lastBatch = t.lastBatch[:0]

	packets := make([][]byte, 0, len(t.missing))
	for _, seq := range t.MissingFragments() {
		start := min(int(seq)*packetSize, len(data))
		end := min(start+packetSize, len(data))

		packed, err := t.cdc.PackFragment(codec.NewFragment(t.tid, seq, data[start:end]))
		if err != nil {
			return nil, err
		}
		packets = append(packets, packed)
		t.lastBatch = append(t.lastBatch, seq)
	}

	t.packetsGenerated += len(packets)
	t.markSending()

	return packets, nil
}

// GenerateXPackets is GenerateAllPackets limited to the first n missing
// fragments.
func (t *Transaction) GenerateXPackets(n int) ([][]byte, error) {
	if t.filePath == "" {
		return nil, fmt.Errorf("%w: transaction %d", errs.ErrNoFilePath, t.tid)
	}

	f, err := os.Open(t.filePath)
	if err != nil {
		return nil, fmt.Errorf("open transfer source: %w", err)
	}
	defer f.Close()

	packetSize := t.cdc.Registry().MaxPacketSize()
	t.lastBatch = t.lastBatch[:0]

	missing := t.MissingFragments()
	if n > len(missing) {
		n = len(missing)
	}

	readBuf := pool.GetFrameBuffer()
	defer pool.PutFrameBuffer(readBuf)
	readBuf.ExtendOrGrow(packetSize)

	packets := make([][]byte, 0, n)
	for _, seq := range missing[:n] {
		read, err := f.ReadAt(readBuf.Slice(0, packetSize), int64(seq)*int64(packetSize))
		if err != nil && read == 0 {
			return nil, fmt.Errorf("read fragment %d: %w", seq, err)
		}

		packed, err := t.cdc.PackFragment(codec.NewFragment(t.tid, seq, readBuf.Slice(0, read)))
		if err != nil {
			return nil, err
		}
		packets = append(packets, packed)
		t.lastBatch = append(t.lastBatch, seq)
	}

	t.packetsGenerated += len(packets)
	t.markSending()

	return packets, nil
}

// GenerateSpecificPacket seeks directly to the fragment at seq and emits one
// packed Fragment frame. It does not touch the missing set or the last
// batch.
func (t *Transaction) GenerateSpecificPacket(seq uint16) ([]byte, error) {
	if t.filePath == "" {
		return nil, fmt.Errorf("%w: transaction %d", errs.ErrNoFilePath, t.tid)
	}
	if int(seq) >= t.numFragments {
		return nil, fmt.Errorf("%w: %d of %d in transaction %d",
			errs.ErrSequenceOutOfRange, seq, t.numFragments, t.tid)
	}

	f, err := os.Open(t.filePath)
	if err != nil {
		return nil, fmt.Errorf("open transfer source: %w", err)
	}
	defer f.Close()

	packetSize := t.cdc.Registry().MaxPacketSize()
	buf := make([]byte, packetSize)
	read, err := f.ReadAt(buf, int64(seq)*int64(packetSize))
	if err != nil && read == 0 {
		return nil, fmt.Errorf("read fragment %d: %w", seq, err)
	}

	packed, err := t.cdc.PackFragment(codec.NewFragment(t.tid, seq, buf[:read]))
	if err != nil {
		return nil, err
	}

	t.packetsGenerated++
	t.markSending()

	return packed, nil
}

// OverwriteMissingFragments replaces the missing set wholesale. Used on the
// sender when the receiver asserts exactly what it still needs.
func (t *Transaction) OverwriteMissingFragments(seqs []uint16) {
	t.missing = make(map[uint16]struct{}, len(seqs))
	for _, seq := range seqs {
		t.missing[seq] = struct{}{}
	}
}

// AddReceivedList removes each listed sequence number from the missing set.
// Entries not in the missing set warn but do not fail.
func (t *Transaction) AddReceivedList(seqs []uint16) {
	for _, seq := range seqs {
		if _, ok := t.missing[seq]; !ok {
			t.log.Warn("received list has sequence %d that is not missing in transaction %d", seq, t.tid)
			continue
		}
		delete(t.missing, seq)
	}
}

// WriteFile concatenates the received fragments in sequence order to the
// destination path (prefixed with folder when non-empty) and verifies the
// content hash when one is known. A hash mismatch moves the transaction to
// FAILED; a missing fragment aborts without touching the state.
func (t *Transaction) WriteFile(folder string) error {
	path := t.filePath
	if folder != "" {
		path = filepath.Join(folder, t.filePath)
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create destination folder: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create destination file: %w", err)
	}

	var written int64
	for seq := range t.numFragments {
		fragment, ok := t.fragments[uint16(seq)]
		if !ok {
			f.Close()

			return fmt.Errorf("%w: sequence %d in transaction %d", errs.ErrMissingFragment, seq, t.tid)
		}
		n, err := f.Write(fragment)
		if err != nil {
			f.Close()
			t.state = StateFailed

			return fmt.Errorf("write destination file: %w", err)
		}
		written += int64(n)
	}
	if err := f.Close(); err != nil {
		t.state = StateFailed

		return fmt.Errorf("close destination file: %w", err)
	}

	if t.hash != nil {
		data, err := os.ReadFile(path)
		if err != nil {
			t.state = StateFailed

			return fmt.Errorf("re-read destination for verification: %w", err)
		}
		calculated := CalculateHash(data)
		if string(calculated) != string(t.hash) {
			t.state = StateFailed

			return fmt.Errorf("%w: transaction %d expected %x, got %x",
				errs.ErrHashMismatch, t.tid, t.hash, calculated)
		}
		t.log.Debug("hash verification passed for transaction %d: %x", t.tid, calculated)
	}

	t.log.Debug("transaction %d written to %s, %d bytes", t.tid, path, written)
	t.state = StateSuccess

	return nil
}

// CalculateHash returns the SHA-1 digest of the given bytes.
func CalculateHash(data []byte) []byte {
	sum := sha1.Sum(data)

	return sum[:]
}

// GetHashAsIntegers splits the 20-byte digest into the three integers
// carried by INIT_TRANS: hash[0..8) and hash[8..16) as uint64s and
// hash[16..20) as a uint32. The split is always big-endian regardless of the
// registry byte order; changing that would break interop. Returns zeros when
// no hash is set.
func (t *Transaction) GetHashAsIntegers() (msb, middle uint64, lsb uint32) {
	if len(t.hash) != HashSize {
		return 0, 0, 0
	}

	msb = binary.BigEndian.Uint64(t.hash[0:8])
	middle = binary.BigEndian.Uint64(t.hash[8:16])
	lsb = binary.BigEndian.Uint32(t.hash[16:20])

	return msb, middle, lsb
}

// SetHashFromIntegers reconstructs the 20-byte digest from the INIT_TRANS
// integer triple. An all-zero triple means the sender has no hash and clears
// the digest so verification is skipped.
func (t *Transaction) SetHashFromIntegers(msb, middle uint64, lsb uint32) {
	if msb == 0 && middle == 0 && lsb == 0 {
		t.hash = nil

		return
	}

	hash := make([]byte, HashSize)
	binary.BigEndian.PutUint64(hash[0:8], msb)
	binary.BigEndian.PutUint64(hash[8:16], middle)
	binary.BigEndian.PutUint32(hash[16:20], lsb)
	t.hash = hash
}

func (t *Transaction) String() string {
	missing := "N/A"
	if t.numFragments > 0 {
		missing = fmt.Sprintf("%.2f%%", float64(len(t.missing))/float64(t.numFragments)*100)
	}

	return fmt.Sprintf("Transaction(tid=%d, state=%s, path=%s, number_of_packets=%d, missing=%s)",
		t.tid, t.state, t.filePath, t.numFragments, missing)
}

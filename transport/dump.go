package transport

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/argus-sat/splat/compress"
	"github.com/argus-sat/splat/errs"
	"github.com/argus-sat/splat/format"
)

// dumpFragmentLimit bounds how many sequence numbers a snapshot lists for
// the missing and received sets.
const dumpFragmentLimit = 100

// snapshot is the on-disk JSON shape of a transaction dump.
type snapshot struct {
	Tid               uint8    `json:"tid"`
	State             uint8    `json:"state"`
	StateName         string   `json:"state_name"`
	IsTx              bool     `json:"is_tx"`
	StartDate         int64    `json:"start_date"`
	Timestamp         string   `json:"timestamp"`
	FilePath          string   `json:"file_path"`
	FileSize          int64    `json:"file_size"`
	NumberOfPackets   int      `json:"number_of_packets"`
	FileHash          string   `json:"file_hash,omitempty"`
	MissingCount      int      `json:"missing_fragments_count"`
	Missing           []uint16 `json:"missing_fragments"`
	ReceivedCount     int      `json:"received_fragments_count"`
	Received          string   `json:"received_fragments"`
	PacketsGenerated  int      `json:"packets_generated_count"`
	DumpFragmentsFlag bool     `json:"dump_fragments_flag"`

	FragmentData map[string]fragmentDump `json:"received_fragments_data,omitempty"`
}

type fragmentDump struct {
	Size  int    `json:"size"`
	Bytes string `json:"bytes"`
}

// FormatBytes renders data as space-separated hex bytes ("0x00 0x1F ...").
func FormatBytes(data []byte) string {
	var sb strings.Builder
	for i, b := range data {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "0x%02X", b)
	}

	return sb.String()
}

// DumpToDisk writes a structured JSON snapshot of a transaction into the
// folder (the manager's history folder when empty), named
// <timestamp>_tid<id>_<state>_<TX|RX>.json. Fragment payloads are included
// only when dumpFragments is set, encoded as space-separated hex bytes.
//
// When the manager is configured with dump compression the snapshot is
// compressed and the matching extension appended. Returns the path written.
func (m *Manager) DumpToDisk(tid uint8, isTx bool, folder string, dumpFragments bool) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	target := m.rx
	if isTx {
		target = m.tx
	}
	t, ok := target[tid]
	if !ok {
		return "", fmt.Errorf("%w: tid %d in %s", errs.ErrTransactionNotFound, tid, direction(isTx))
	}

	if folder == "" {
		folder = m.historyFolder
	}
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return "", fmt.Errorf("create history folder: %w", err)
	}

	timestamp := t.startDate.Format("2006_01_02-15_04_05")

	snap := snapshot{
		Tid:               t.tid,
		State:             uint8(t.state),
		StateName:         t.state.String(),
		IsTx:              isTx,
		StartDate:         t.startDate.Unix(),
		Timestamp:         timestamp,
		FilePath:          t.filePath,
		FileSize:          t.fileSize,
		NumberOfPackets:   t.numFragments,
		MissingCount:      len(t.missing),
		PacketsGenerated:  t.packetsGenerated,
		DumpFragmentsFlag: dumpFragments,
	}
	if t.hash != nil {
		snap.FileHash = hex.EncodeToString(t.hash)
	}

	missing := t.MissingFragments()
	if len(missing) > dumpFragmentLimit {
		missing = missing[:dumpFragmentLimit]
	}
	snap.Missing = missing

	received := t.ReceivedFragments()
	snap.ReceivedCount = len(received)
	if len(received) > dumpFragmentLimit {
		received = received[:dumpFragmentLimit]
	}
	parts := make([]string, len(received))
	for i, seq := range received {
		parts[i] = fmt.Sprintf("%d", seq)
	}
	snap.Received = strings.Join(parts, ", ")

	if dumpFragments && len(t.fragments) > 0 {
		snap.FragmentData = make(map[string]fragmentDump, len(t.fragments))
		for seq, data := range t.fragments {
			snap.FragmentData[fmt.Sprintf("%d", seq)] = fragmentDump{
				Size:  len(data),
				Bytes: FormatBytes(data),
			}
		}
	}

	payload, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal transaction snapshot: %w", err)
	}

	name := fmt.Sprintf("%s_tid%d_%s_%s.json", timestamp, tid, t.state, direction(isTx))
	path := filepath.Join(folder, name)

	if m.dumpCompression != format.CompressionNone {
		cmp, err := compress.GetCodec(m.dumpCompression)
		if err != nil {
			return "", err
		}
		payload, err = cmp.Compress(payload)
		if err != nil {
			return "", fmt.Errorf("compress transaction snapshot: %w", err)
		}
		path += compress.FileExtension(m.dumpCompression)
	}

	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", fmt.Errorf("write transaction snapshot: %w", err)
	}
	m.log.Debug("transaction dump saved to %s", path)

	return path, nil
}

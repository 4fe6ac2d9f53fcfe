package transport

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/argus-sat/splat/compress"
	"github.com/argus-sat/splat/errs"
	"github.com/argus-sat/splat/format"
)

func testManager(t *testing.T, opts ...ManagerOption) *Manager {
	t.Helper()
	mgr, err := NewManager(testCodec(t), opts...)
	require.NoError(t, err)

	return mgr
}

func sourceFile(t *testing.T) string {
	t.Helper()

	return writeTempFile(t, "src.bin", []byte("manager test payload"))
}

func TestCreateTxAllocatesSmallestFreeTid(t *testing.T) {
	mgr := testManager(t)
	src := sourceFile(t)

	first, err := mgr.CreateTx(src)
	require.NoError(t, err)
	require.Equal(t, uint8(0), first.Tid())

	second, err := mgr.CreateTx(src)
	require.NoError(t, err)
	require.Equal(t, uint8(1), second.Tid())

	// Free a low tid and it is reused next.
	require.True(t, mgr.Delete(0, true))
	third, err := mgr.CreateTx(src)
	require.NoError(t, err)
	require.Equal(t, uint8(0), third.Tid())
}

func TestCreateTxManagerFull(t *testing.T) {
	mgr := testManager(t)
	src := sourceFile(t)

	for range MaxTransactions {
		_, err := mgr.CreateTx(src)
		require.NoError(t, err)
	}
	require.True(t, mgr.IsFull(true))

	_, err := mgr.CreateTx(src)
	require.ErrorIs(t, err, errs.ErrManagerFull)
}

func TestCreateTxWithTidOverwrites(t *testing.T) {
	mgr := testManager(t)
	src := sourceFile(t)

	first, err := mgr.CreateTxWithTid(5, src)
	require.NoError(t, err)

	second, err := mgr.CreateTxWithTid(5, src)
	require.NoError(t, err)
	require.NotSame(t, first, second)

	got, ok := mgr.GetTx(5)
	require.True(t, ok)
	require.Same(t, second, got)
	require.Equal(t, 1, mgr.ActiveCount())
}

func TestCreateRxRequiresPeerChosenTid(t *testing.T) {
	mgr := testManager(t)

	trans, err := mgr.CreateRx(6, "dest.bin", 4)
	require.NoError(t, err)
	require.Equal(t, uint8(6), trans.Tid())
	require.False(t, trans.IsTx())

	got, ok := mgr.GetRx(6)
	require.True(t, ok)
	require.Same(t, trans, got)
}

func TestCreateRxManagerFull(t *testing.T) {
	mgr := testManager(t)

	for tid := range uint8(MaxTransactions) {
		_, err := mgr.CreateRx(tid, "dest.bin", 1)
		require.NoError(t, err)
	}

	// All slots taken and tid 0 is live: overwriting it is allowed, but no
	// ninth distinct transaction can exist.
	require.True(t, mgr.IsFull(false))
	_, err := mgr.CreateRx(0, "dest.bin", 1)
	require.NoError(t, err)
	require.Equal(t, MaxTransactions, mgr.ActiveCount())
}

func TestTxAndRxMapsAreDisjoint(t *testing.T) {
	mgr := testManager(t)
	src := sourceFile(t)

	tx, err := mgr.CreateTxWithTid(2, src)
	require.NoError(t, err)
	rx, err := mgr.CreateRx(2, "dest.bin", 1)
	require.NoError(t, err)

	gotTx, ok := mgr.GetTx(2)
	require.True(t, ok)
	require.Same(t, tx, gotTx)

	gotRx, ok := mgr.GetRx(2)
	require.True(t, ok)
	require.Same(t, rx, gotRx)

	// Get searches TX first.
	got, ok := mgr.Get(2)
	require.True(t, ok)
	require.Same(t, tx, got)
}

func TestDeleteTransaction(t *testing.T) {
	mgr := testManager(t)
	src := sourceFile(t)

	_, err := mgr.CreateTxWithTid(1, src)
	require.NoError(t, err)

	require.True(t, mgr.Delete(1, true))
	require.False(t, mgr.Delete(1, true))
	_, ok := mgr.GetTx(1)
	require.False(t, ok)
}

func TestTransactionsByStateAndStats(t *testing.T) {
	mgr := testManager(t)
	src := sourceFile(t)

	tx, err := mgr.CreateTx(src)
	require.NoError(t, err)
	rx, err := mgr.CreateRx(0, "dest.bin", 2)
	require.NoError(t, err)

	rx.ChangeState(StateFailed)

	requested := mgr.TransactionsByState(StateRequested)
	require.Len(t, requested, 1)
	require.Same(t, tx, requested[0])

	stats := mgr.GetStats()
	require.Equal(t, 2, stats.Total)
	require.Equal(t, 1, stats.TxCount)
	require.Equal(t, 1, stats.RxCount)
	require.Equal(t, 1, stats.ByState["REQUESTED"])
	require.Equal(t, 1, stats.ByState["FAILED"])
}

func TestClearFailed(t *testing.T) {
	mgr := testManager(t)
	src := sourceFile(t)

	tx, err := mgr.CreateTx(src)
	require.NoError(t, err)
	rx, err := mgr.CreateRx(3, "dest.bin", 2)
	require.NoError(t, err)

	tx.ChangeState(StateFailed)
	rx.ChangeState(StateFailed)

	require.Equal(t, 2, mgr.ClearFailed())
	require.Equal(t, 0, mgr.ActiveCount())
}

func TestDumpToDisk(t *testing.T) {
	folder := t.TempDir()
	mgr := testManager(t, WithHistoryFolder(folder))

	trans, err := mgr.CreateRx(3, "dest.bin", 4)
	require.NoError(t, err)
	trans.SetHash(CalculateHash([]byte("content")))
	trans.AddFragment(0, []byte{0x01, 0x02})
	trans.AddFragment(2, []byte{0x03})

	path, err := mgr.DumpToDisk(3, false, "", true)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(path, "_tid3_RECEIVING_RX.json"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var snap map[string]any
	require.NoError(t, json.Unmarshal(raw, &snap))
	require.Equal(t, float64(3), snap["tid"])
	require.Equal(t, "RECEIVING", snap["state_name"])
	require.Equal(t, false, snap["is_tx"])
	require.Equal(t, "dest.bin", snap["file_path"])
	require.Equal(t, float64(4), snap["number_of_packets"])
	require.Equal(t, float64(2), snap["missing_fragments_count"])
	require.Equal(t, float64(2), snap["received_fragments_count"])
	require.Equal(t, "0, 2", snap["received_fragments"])

	fragments, ok := snap["received_fragments_data"].(map[string]any)
	require.True(t, ok)
	entry, ok := fragments["0"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "0x01 0x02", entry["bytes"])
}

func TestDumpToDiskOmitsFragmentBytesByDefault(t *testing.T) {
	mgr := testManager(t)

	trans, err := mgr.CreateRx(0, "dest.bin", 1)
	require.NoError(t, err)
	trans.AddFragment(0, []byte{0xFF})

	path, err := mgr.DumpToDisk(0, false, t.TempDir(), false)
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var snap map[string]any
	require.NoError(t, json.Unmarshal(raw, &snap))
	_, present := snap["received_fragments_data"]
	require.False(t, present)
}

func TestDumpToDiskCompressed(t *testing.T) {
	mgr := testManager(t, WithDumpCompression(format.CompressionS2))

	trans, err := mgr.CreateRx(1, "dest.bin", 1)
	require.NoError(t, err)
	trans.AddFragment(0, []byte{0xAB})

	folder := t.TempDir()
	path, err := mgr.DumpToDisk(1, false, folder, false)
	require.NoError(t, err)
	require.Equal(t, ".s2", filepath.Ext(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	cmp, err := compress.GetCodec(format.CompressionS2)
	require.NoError(t, err)
	decoded, err := cmp.Decompress(raw)
	require.NoError(t, err)

	var snap map[string]any
	require.NoError(t, json.Unmarshal(decoded, &snap))
	require.Equal(t, float64(1), snap["tid"])
}

func TestDumpToDiskUnknownTransaction(t *testing.T) {
	mgr := testManager(t)

	_, err := mgr.DumpToDisk(7, true, t.TempDir(), false)
	require.ErrorIs(t, err, errs.ErrTransactionNotFound)
}

func TestDumpLimitsFragmentLists(t *testing.T) {
	mgr := testManager(t)

	trans, err := mgr.CreateRx(2, "dest.bin", 300)
	require.NoError(t, err)
	for seq := range 150 {
		trans.AddFragment(uint16(seq), []byte{1})
	}

	path, err := mgr.DumpToDisk(2, false, t.TempDir(), false)
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var snap struct {
		Missing  []uint16 `json:"missing_fragments"`
		Received string   `json:"received_fragments"`
	}
	require.NoError(t, json.Unmarshal(raw, &snap))
	require.Len(t, snap.Missing, 100)
	require.Len(t, strings.Split(snap.Received, ", "), 100)
}

func TestManagerStringer(t *testing.T) {
	mgr := testManager(t)
	src := sourceFile(t)

	_, err := mgr.CreateTx(src)
	require.NoError(t, err)

	repr := fmt.Sprint(mgr)
	require.Contains(t, repr, "tx=1")
}

package transport

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// Receiver holds fragments {0,1,4,5,7} of 10: the single window has those
// bit positions set, MSB-first within a width-10 window.
func TestGenerateMissingBitmapsKnownPattern(t *testing.T) {
	cdc := testCodec(t)

	receiver, err := NewRxTransaction(cdc, 0, "dest.bin", 10)
	require.NoError(t, err)
	for _, seq := range []uint16{0, 1, 4, 5, 7} {
		receiver.AddFragment(seq, []byte{byte(seq)})
	}

	windows := receiver.GenerateMissingBitmaps(32)
	require.Len(t, windows, 1)
	require.Equal(t, uint16(0), windows[0].SeqOffset)

	// Width 10, bit (10-1)-i represents sequence i:
	// received 0,1,4,5,7 -> 1100110100 binary.
	require.Equal(t, uint32(0b1100110100), windows[0].Bitmap())

	// Feeding the same window to a fresh sender-side view reconstructs the
	// complementary missing set.
	sender, err := NewRxTransaction(cdc, 1, "dest.bin", 10)
	require.NoError(t, err)
	sender.ApplyWindow(windows[0], 32)
	require.Equal(t, []uint16{2, 3, 6, 8, 9}, sender.MissingFragments())
}

func TestBitmapWindowSplitsAt32(t *testing.T) {
	cdc := testCodec(t)

	trans, err := NewRxTransaction(cdc, 0, "dest.bin", 70)
	require.NoError(t, err)

	windows := trans.GenerateMissingBitmaps(32)
	require.Len(t, windows, 3)
	require.Equal(t, uint16(0), windows[0].SeqOffset)
	require.Equal(t, uint16(32), windows[1].SeqOffset)
	require.Equal(t, uint16(64), windows[2].SeqOffset)

	// Nothing received yet: all bits clear.
	for _, w := range windows {
		require.Zero(t, w.Bitmap())
	}
}

// Property: update(generate()) is the identity on the missing set.
func TestBitmapRoundTripIdentity(t *testing.T) {
	cdc := testCodec(t)
	rng := rand.New(rand.NewSource(31))

	for _, numFragments := range []int{1, 10, 32, 33, 64, 100} {
		source, err := NewRxTransaction(cdc, 0, "dest.bin", numFragments)
		require.NoError(t, err)

		// Random subset received.
		for seq := range numFragments {
			if rng.Intn(2) == 1 {
				source.AddFragment(uint16(seq), []byte{1})
			}
		}
		expected := source.MissingFragments()

		mirror, err := NewRxTransaction(cdc, 1, "dest.bin", numFragments)
		require.NoError(t, err)
		for _, w := range source.GenerateMissingBitmaps(BitmapWindowBits) {
			mirror.ApplyWindow(w, BitmapWindowBits)
		}

		require.Equal(t, expected, mirror.MissingFragments(), "%d fragments", numFragments)
	}
}

func TestBitmapReinsertsLostFragments(t *testing.T) {
	cdc := testCodec(t)

	// Sender thinks everything was delivered.
	sender, err := NewRxTransaction(cdc, 0, "dest.bin", 8)
	require.NoError(t, err)
	sender.OverwriteMissingFragments(nil)
	require.Empty(t, sender.MissingFragments())

	// Receiver reports only fragments 0..3 as received; clear bits re-insert
	// the rest into the sender's missing set.
	sender.UpdateMissingBitmap(0, 0b11110000, BitmapWindowBits)
	require.Equal(t, []uint16{4, 5, 6, 7}, sender.MissingFragments())
}

func TestUpdateMissingBitmapIgnoresBadOffsets(t *testing.T) {
	cdc := testCodec(t)

	trans, err := NewRxTransaction(cdc, 0, "dest.bin", 4)
	require.NoError(t, err)

	trans.UpdateMissingBitmap(-1, 0b1111, BitmapWindowBits)
	require.Len(t, trans.MissingFragments(), 4)

	trans.UpdateMissingBitmap(10, 0b1111, BitmapWindowBits)
	require.Len(t, trans.MissingFragments(), 4)
}

func TestGenerateMissingBitmapsNoFragmentCount(t *testing.T) {
	cdc := testCodec(t)

	trans, err := NewRxTransaction(cdc, 0, "dest.bin", 0)
	require.NoError(t, err)
	require.Empty(t, trans.GenerateMissingBitmaps(BitmapWindowBits))
}

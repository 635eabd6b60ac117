package wavcodec

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriter16BitRoundTrip(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "nested", "out.wav")

	w, err := Create(out, 48000, 1, Depth16)
	require.NoError(t, err)

	block := [][]float32{{0.25, -0.25, 0}}
	require.NoError(t, w.WriteBlock(block))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, "RIFF", string(data[0:4]))
	require.Equal(t, "WAVE", string(data[8:12]))
	require.Equal(t, "data", string(data[36:40]))

	dataSize := binary.LittleEndian.Uint32(data[40:44])
	require.Equal(t, uint32(6), dataSize) // 3 frames * 2 bytes

	sample0 := int16(binary.LittleEndian.Uint16(data[44:46]))
	require.Equal(t, int16(8192), sample0) // round(0.25*32767)
}

func TestWriterClampsOutOfRange(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "clamp.wav")

	w, err := Create(out, 48000, 1, Depth16)
	require.NoError(t, err)
	require.NoError(t, w.WriteBlock([][]float32{{2.0, -2.0}}))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	s0 := int16(binary.LittleEndian.Uint16(data[44:46]))
	s1 := int16(binary.LittleEndian.Uint16(data[46:48]))
	require.Equal(t, int16(32767), s0)
	require.Equal(t, int16(-32768), s1)
}

func TestWriterFloat32PassesThrough(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "float.wav")

	w, err := Create(out, 44100, 2, Depth32Float)
	require.NoError(t, err)
	require.NoError(t, w.WriteBlock([][]float32{{0.5}, {-0.5}}))
	require.NoError(t, w.Close())

	r, err := OpenReader(out)
	require.NoError(t, err)
	defer r.Close()
	require.Equal(t, 2, r.Channels)
	require.Equal(t, 44100, r.SampleRate)
	require.EqualValues(t, 1, r.LengthFrames)

	dest := [][]float32{make([]float32, 1), make([]float32, 1)}
	n, err := r.ReadAt(dest, 0, 0, 1)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.InDelta(t, 0.5, dest[0][0], 1e-6)
	require.InDelta(t, -0.5, dest[1][0], 1e-6)
}

func TestRollingChecksumDeterministic(t *testing.T) {
	c1 := NewRollingChecksum()
	c1.Write([]byte{1, 2, 3, 4})
	c2 := NewRollingChecksum()
	c2.Write([]byte{1, 2})
	c2.Write([]byte{3, 4})
	require.Equal(t, c1.Sum(), c2.Sum())
}

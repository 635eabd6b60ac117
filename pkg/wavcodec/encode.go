package wavcodec

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
)

// BitDepth is one of the three supported output encodings.
type BitDepth int

const (
	Depth16      BitDepth = 16
	Depth24      BitDepth = 24
	Depth32Float BitDepth = 32
)

// NormalizeBitDepth maps an unsupported depth to float-32 and reports
// whether depth was already one of the recognized values, so the caller
// can log a fallback note.
func NormalizeBitDepth(depth int) (BitDepth, bool) {
	switch depth {
	case 16:
		return Depth16, true
	case 24:
		return Depth24, true
	case 32:
		return Depth32Float, true
	default:
		return Depth32Float, false
	}
}

// Writer streams planar float32 frames to a canonical little-endian
// RIFF/WAVE file, buffering the interleaved PCM in memory only for the
// current block passed to WriteBlock.
type Writer struct {
	f          *os.File
	sampleRate int
	channels   int
	depth      BitDepth
	dataBytes  int64
	checksum   *RollingChecksum
}

// Create opens outPath for writing, creating parent directories and
// removing any existing file first. The RIFF/fmt headers are written
// with placeholder sizes that Close patches once the total data length
// is known.
func Create(outPath string, sampleRate, channels int, depth BitDepth) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return nil, fmt.Errorf("wavcodec: create output dir: %w", err)
	}
	_ = os.Remove(outPath)

	f, err := os.OpenFile(outPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("wavcodec: open output: %w", err)
	}

	w := &Writer{f: f, sampleRate: sampleRate, channels: channels, depth: depth, checksum: NewRollingChecksum()}
	if err := w.writeHeaderPlaceholder(); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

func (w *Writer) bitsPerSample() int {
	if w.depth == Depth32Float {
		return 32
	}
	return int(w.depth)
}

func (w *Writer) audioFormat() uint16 {
	if w.depth == Depth32Float {
		return formatFloat
	}
	return formatPCM
}

func (w *Writer) writeHeaderPlaceholder() error {
	blockAlign := w.channels * w.bitsPerSample() / 8
	byteRate := w.sampleRate * blockAlign

	buf := make([]byte, 44)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], 0) // patched at Close
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], w.audioFormat())
	binary.LittleEndian.PutUint16(buf[22:24], uint16(w.channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(w.sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], uint16(w.bitsPerSample()))
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], 0) // patched at Close
	_, err := w.f.Write(buf)
	return err
}

// WriteBlock encodes and writes one block of planar float32 audio
// (channels × frames) at the writer's configured bit depth.
func (w *Writer) WriteBlock(block [][]float32) error {
	if len(block) == 0 || len(block[0]) == 0 {
		return nil
	}
	frames := len(block[0])
	blockAlign := w.channels * w.bitsPerSample() / 8
	raw := make([]byte, frames*blockAlign)
	bytesPerSample := w.bitsPerSample() / 8

	for frame := 0; frame < frames; frame++ {
		for ch := 0; ch < w.channels; ch++ {
			var x float32
			if ch < len(block) {
				x = block[ch][frame]
			}
			off := frame*blockAlign + ch*bytesPerSample
			encodeSample(raw[off:off+bytesPerSample], x, w.depth)
		}
	}

	if _, err := w.f.Write(raw); err != nil {
		return fmt.Errorf("wavcodec: write block: %w", err)
	}
	w.dataBytes += int64(len(raw))
	w.checksum.Write(raw)
	return nil
}

func encodeSample(dst []byte, x float32, depth BitDepth) {
	switch depth {
	case Depth16:
		v := clampRound(float64(x)*32767.0, -32768, 32767)
		binary.LittleEndian.PutUint16(dst, uint16(int16(v)))
	case Depth24:
		v := clampRound(float64(x)*8388607.0, -8388608, 8388607)
		iv := int32(v)
		dst[0] = byte(iv)
		dst[1] = byte(iv >> 8)
		dst[2] = byte(iv >> 16)
	case Depth32Float:
		binary.LittleEndian.PutUint32(dst, math.Float32bits(x))
	}
}

func clampRound(x, lo, hi float64) float64 {
	r := math.Round(x)
	if r < lo {
		return lo
	}
	if r > hi {
		return hi
	}
	return r
}

// Checksum returns the rolling PCM checksum accumulated so far.
func (w *Writer) Checksum() uint32 { return w.checksum.Sum() }

// Close patches the RIFF/data chunk sizes and flushes the file to disk.
// The caller must read back the final content hash only after Close
// returns, so the reported hash reflects the fully flushed file.
func (w *Writer) Close() error {
	fileSize := 44 + w.dataBytes
	if err := w.patchUint32(4, uint32(fileSize-8)); err != nil {
		w.f.Close()
		return err
	}
	if err := w.patchUint32(40, uint32(w.dataBytes)); err != nil {
		w.f.Close()
		return err
	}
	if err := w.f.Sync(); err != nil {
		w.f.Close()
		return fmt.Errorf("wavcodec: sync: %w", err)
	}
	return w.f.Close()
}

func (w *Writer) patchUint32(offset int64, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.f.WriteAt(buf[:], offset)
	return err
}

// Abort closes and removes a partially written output file, used on
// cancellation, so failed renders never leave a stray truncated artifact
// behind.
func (w *Writer) Abort(outPath string) {
	w.f.Close()
	_ = os.Remove(outPath)
}

var _ io.Closer = (*Writer)(nil)

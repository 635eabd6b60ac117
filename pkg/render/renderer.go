// Package render implements the EDL renderer: it streams a requested
// time range through a block mixer, applies per-clip gain and fades and
// per-track gain/mute, and hands finished blocks to a sink (typically a
// wavcodec.Writer).
package render

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BlueElevatorProductions/JUCE-Audio-Service/pkg/compiler"
	"github.com/BlueElevatorProductions/JUCE-Audio-Service/pkg/edl"
)

// BlockSize is the number of frames processed per iteration of the render
// loop. Every block handed to the sink has this many frames, except a
// shorter final block when the range is not a multiple of BlockSize.
const BlockSize = 4096

// Reader is the random-access capability the renderer needs from an
// opened media file. *wavcodec.Reader satisfies this.
type Reader interface {
	ReadAt(dest [][]float32, destOff int, srcFrame int64, n int) (int, error)
	NativeChannels() int
}

// ReaderProvider resolves a media path to a Reader, typically backed by a
// per-render medialib.ReaderCache.
type ReaderProvider func(path string) (Reader, error)

// BlockSink receives finished, mixed blocks in timeline order.
type BlockSink interface {
	WriteBlock(block [][]float32) error
}

// ErrCancelled is returned by Render when ctx is cancelled between blocks.
var ErrCancelled = edl.NewError(edl.KindCancelled, "render cancelled")

// ChannelCount computes C = max(2, max native channels over every media
// file referenced by compiled).
func ChannelCount(compiled compiler.CompiledEdl, provider ReaderProvider) (int, error) {
	max := 2
	seen := make(map[string]bool)
	for _, path := range compiled.MediaPath {
		if seen[path] {
			continue
		}
		seen[path] = true
		r, err := provider(path)
		if err != nil {
			return 0, fmt.Errorf("render: channel count probe for %s: %w", path, err)
		}
		if n := r.NativeChannels(); n > max {
			max = n
		}
	}
	return max, nil
}

// Options configures a single Render call.
type Options struct {
	Channels int
	Progress func(fraction float64)
	Logger   *slog.Logger
}

// Render produces exactly rng.DurationSamples frames of rng's timeline
// window, writing blocks of at most BlockSize frames to sink in order. It is
// deterministic: identical compiled/rng/options inputs and the same media
// files produce byte-identical PCM.
func Render(ctx context.Context, compiled compiler.CompiledEdl, rng edl.TimeRange, provider ReaderProvider, sink BlockSink, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	channels := opts.Channels
	if channels < 2 {
		channels = 2
	}

	total := rng.DurationSamples
	if total <= 0 {
		return edl.NewError(edl.KindInvalidRange, "duration_samples must be > 0")
	}

	r0 := rng.StartSamples
	r1 := rng.End()
	done := int64(0)

	trackBuf := make([][]float32, channels)
	mixBuf := make([][]float32, channels)
	for ch := range trackBuf {
		trackBuf[ch] = make([]float32, BlockSize)
		mixBuf[ch] = make([]float32, BlockSize)
	}

	for b0 := r0; b0 < r1; b0 += BlockSize {
		select {
		case <-ctx.Done():
			return ErrCancelled
		default:
		}

		b1 := b0 + BlockSize
		if b1 > r1 {
			b1 = r1
		}
		blockLen := int(b1 - b0)

		for ch := range mixBuf {
			clearBlock(mixBuf[ch][:blockLen])
		}

		for _, track := range compiled.Tracks {
			if track.Muted {
				continue
			}
			for ch := range trackBuf {
				clearBlock(trackBuf[ch][:blockLen])
			}
			for _, clip := range track.Clips {
				if err := mixClip(clip, compiled.MediaPath, provider, b0, b1, trackBuf, blockLen, logger); err != nil {
					return err
				}
			}

			for ch := range mixBuf {
				g := float32(track.GainLinear)
				for i := 0; i < blockLen; i++ {
					mixBuf[ch][i] += trackBuf[ch][i] * g
				}
			}
		}

		out := make([][]float32, channels)
		for ch := range out {
			out[ch] = append([]float32(nil), mixBuf[ch][:blockLen]...)
		}
		if err := sink.WriteBlock(out); err != nil {
			return fmt.Errorf("render: write block: %w", err)
		}

		done += int64(blockLen)
		if opts.Progress != nil {
			opts.Progress(float64(done) / float64(total))
		}
	}

	return nil
}

func clearBlock(b []float32) {
	for i := range b {
		b[i] = 0
	}
}

// mixClip mixes the portion of clip that intersects [b0, b1) into dst,
// applying clip gain then fade-in then fade-out. A read failure on this
// clip is logged and treated as silence rather than aborting the render.
func mixClip(clip compiler.CompiledClip, mediaPath map[string]string, provider ReaderProvider, b0, b1 int64, dst [][]float32, blockLen int, logger *slog.Logger) error {
	cs := maxInt64(clip.T0, b0)
	ce := minInt64(clip.T1, b1)
	if cs >= ce {
		return nil
	}

	path, ok := mediaPath[clip.MediaID]
	if !ok {
		logger.Warn("render: clip references unresolved media, contributing silence", "clip", clip.SourceClipID, "media_id", clip.MediaID)
		return nil
	}
	reader, err := provider(path)
	if err != nil {
		logger.Warn("render: reader unavailable, contributing silence", "clip", clip.SourceClipID, "path", path, "error", err)
		return nil
	}

	n := int(ce - cs)
	src := clip.StartInMedia + (cs - clip.T0)
	off := int(cs - b0)

	scratch := make([][]float32, len(dst))
	for ch := range scratch {
		scratch[ch] = make([]float32, n)
	}
	if _, err := reader.ReadAt(scratch, 0, src, n); err != nil {
		logger.Warn("render: read failed, contributing silence", "clip", clip.SourceClipID, "path", path, "error", err)
		return nil
	}

	gain := clip.GainLinear
	for i := 0; i < n; i++ {
		t := cs + int64(i)
		g := gain * fadeInGain(clip.FadeIn, clip.T0, t) * fadeOutGain(clip.FadeOut, clip.T1, t)
		fg := float32(g)
		for ch := range dst {
			if off+i >= blockLen {
				continue
			}
			dst[ch][off+i] += scratch[ch][i] * fg
		}
	}
	return nil
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

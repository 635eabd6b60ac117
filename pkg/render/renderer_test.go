package render

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BlueElevatorProductions/JUCE-Audio-Service/pkg/compiler"
	"github.com/BlueElevatorProductions/JUCE-Audio-Service/pkg/edl"
)

// fakeReader is an in-memory Reader backing tests that don't want to
// touch the filesystem or go through wavcodec at all.
type fakeReader struct {
	channels int
	frames   [][]float32 // planar [channel][frame]
}

func constantReader(channels int, value float32, length int) *fakeReader {
	fr := &fakeReader{channels: channels, frames: make([][]float32, channels)}
	for ch := 0; ch < channels; ch++ {
		fr.frames[ch] = make([]float32, length)
		for i := range fr.frames[ch] {
			fr.frames[ch][i] = value
		}
	}
	return fr
}

func (f *fakeReader) NativeChannels() int { return f.channels }

func (f *fakeReader) ReadAt(dest [][]float32, destOff int, srcFrame int64, n int) (int, error) {
	usable := len(dest)
	if f.channels < usable {
		usable = f.channels
	}
	for i := 0; i < n; i++ {
		frame := int(srcFrame) + i
		for ch := 0; ch < usable; ch++ {
			var v float32
			if frame >= 0 && frame < len(f.frames[ch]) {
				v = f.frames[ch][frame]
			}
			dest[ch][destOff+i] = v
		}
	}
	return n, nil
}

type memSink struct {
	channels int
	frames   [][]float32
}

func newMemSink(channels int) *memSink {
	return &memSink{channels: channels, frames: make([][]float32, channels)}
}

func (m *memSink) WriteBlock(block [][]float32) error {
	for ch := range block {
		m.frames[ch] = append(m.frames[ch], block[ch]...)
	}
	return nil
}

func providerFor(readers map[string]Reader) ReaderProvider {
	return func(path string) (Reader, error) {
		return readers[path], nil
	}
}

func singleClipCompiled(sampleRate int, gainDB float64, muted bool, clip compiler.CompiledClip) compiler.CompiledEdl {
	return compiler.CompiledEdl{
		SampleRate: sampleRate,
		MediaPath:  map[string]string{"m1": "media/a.wav"},
		Tracks: []compiler.CompiledTrack{{
			SourceTrackID: "t1",
			GainLinear:    compiler.GainLinear(gainDB),
			Muted:         muted,
			Clips:         []compiler.CompiledClip{clip},
		}},
	}
}

// S1: no clip intersects the render range -> all zeros.
func TestS1EmptyMixIsAllZeros(t *testing.T) {
	compiled := singleClipCompiled(48000, 0, false, compiler.CompiledClip{
		SourceClipID: "c1", MediaID: "m1", StartInMedia: 0, T0: 48000, T1: 48000 + 4800, GainLinear: 1,
	})
	readers := map[string]Reader{"media/a.wav": constantReader(1, 1.0, 200000)}
	sink := newMemSink(2)

	rng := edl.TimeRange{StartSamples: 0, DurationSamples: 24000}
	err := Render(context.Background(), compiled, rng, providerFor(readers), sink, Options{Channels: 2})
	require.NoError(t, err)
	require.Len(t, sink.frames[0], 24000)
	for _, v := range sink.frames[0] {
		require.Equal(t, float32(0), v)
	}
}

// S2: straight copy at unity gain.
func TestS2StraightCopy(t *testing.T) {
	compiled := singleClipCompiled(48000, 0, false, compiler.CompiledClip{
		SourceClipID: "c1", MediaID: "m1", StartInMedia: 0, T0: 0, T1: 12000, GainLinear: 1,
	})
	readers := map[string]Reader{"media/a.wav": constantReader(1, 0.25, 12000)}
	sink := newMemSink(2)

	rng := edl.TimeRange{StartSamples: 0, DurationSamples: 12000}
	err := Render(context.Background(), compiled, rng, providerFor(readers), sink, Options{Channels: 2})
	require.NoError(t, err)
	for _, v := range sink.frames[0] {
		require.InDelta(t, 0.25, v, 1e-6)
	}
}

// S3: linear fade-in over the whole clip.
func TestS3LinearFadeIn(t *testing.T) {
	L := int64(4800) // 100ms @ 48kHz
	compiled := singleClipCompiled(48000, 0, false, compiler.CompiledClip{
		SourceClipID: "c1", MediaID: "m1", StartInMedia: 0, T0: 0, T1: L, GainLinear: 1,
		FadeIn: &compiler.CompiledFade{DurationSamples: L, Shape: compiler.Linear},
	})
	readers := map[string]Reader{"media/a.wav": constantReader(1, 1.0, int(L))}
	sink := newMemSink(2)

	rng := edl.TimeRange{StartSamples: 0, DurationSamples: L}
	err := Render(context.Background(), compiled, rng, providerFor(readers), sink, Options{Channels: 2})
	require.NoError(t, err)
	for k := 0; k < int(L); k++ {
		expected := float64(k) / float64(L)
		require.InDelta(t, expected, sink.frames[0][k], 1e-6)
	}
}

// S4: equal-power crossfade sum across two tracks.
func TestS4EqualPowerCrossfadeSum(t *testing.T) {
	L := int64(2400) // 50ms @ 48kHz
	compiled := compiler.CompiledEdl{
		SampleRate: 48000,
		MediaPath:  map[string]string{"m1": "media/a.wav", "m2": "media/b.wav"},
		Tracks: []compiler.CompiledTrack{
			{
				SourceTrackID: "tA",
				GainLinear:    1,
				Clips: []compiler.CompiledClip{{
					SourceClipID: "cA", MediaID: "m1", StartInMedia: 0, T0: 0, T1: L, GainLinear: 1,
					FadeOut: &compiler.CompiledFade{DurationSamples: L, Shape: compiler.EqualPower},
				}},
			},
			{
				SourceTrackID: "tB",
				GainLinear:    1,
				Clips: []compiler.CompiledClip{{
					SourceClipID: "cB", MediaID: "m2", StartInMedia: 0, T0: 0, T1: L, GainLinear: 1,
					FadeIn: &compiler.CompiledFade{DurationSamples: L, Shape: compiler.EqualPower},
				}},
			},
		},
	}
	readers := map[string]Reader{
		"media/a.wav": constantReader(1, 1.0, int(L)),
		"media/b.wav": constantReader(1, 1.0, int(L)),
	}
	sink := newMemSink(2)
	rng := edl.TimeRange{StartSamples: 0, DurationSamples: L}
	err := Render(context.Background(), compiled, rng, providerFor(readers), sink, Options{Channels: 2})
	require.NoError(t, err)

	maxVal := float32(0)
	for k := 0; k < int(L); k++ {
		if sink.frames[0][k] > maxVal {
			maxVal = sink.frames[0][k]
		}
	}
	require.InDelta(t, 1.41421356, maxVal, 0.02)
}

// S6-adjacent: cancellation stops the render before completion.
func TestCancellationStopsRender(t *testing.T) {
	compiled := singleClipCompiled(48000, 0, false, compiler.CompiledClip{
		SourceClipID: "c1", MediaID: "m1", StartInMedia: 0, T0: 0, T1: 48000 * 60, GainLinear: 1,
	})
	readers := map[string]Reader{"media/a.wav": constantReader(1, 1.0, 48000*60)}
	sink := newMemSink(2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rng := edl.TimeRange{StartSamples: 0, DurationSamples: 48000 * 60}
	err := Render(ctx, compiled, rng, providerFor(readers), sink, Options{Channels: 2})
	require.Error(t, err)
	require.True(t, edl.IsKind(err, edl.KindCancelled))
}

func TestMutedTrackContributesNothing(t *testing.T) {
	compiled := singleClipCompiled(48000, 0, true, compiler.CompiledClip{
		SourceClipID: "c1", MediaID: "m1", StartInMedia: 0, T0: 0, T1: 1000, GainLinear: 1,
	})
	readers := map[string]Reader{"media/a.wav": constantReader(1, 1.0, 1000)}
	sink := newMemSink(2)
	rng := edl.TimeRange{StartSamples: 0, DurationSamples: 1000}
	err := Render(context.Background(), compiled, rng, providerFor(readers), sink, Options{Channels: 2})
	require.NoError(t, err)
	for _, v := range sink.frames[0] {
		require.Equal(t, float32(0), v)
	}
}

func TestChannelCountTakesMaxNativeChannels(t *testing.T) {
	compiled := compiler.CompiledEdl{
		MediaPath: map[string]string{"m1": "a.wav", "m2": "b.wav"},
	}
	readers := map[string]Reader{
		"a.wav": constantReader(1, 0, 10),
		"b.wav": constantReader(6, 0, 10),
	}
	n, err := ChannelCount(compiled, providerFor(readers))
	require.NoError(t, err)
	require.Equal(t, 6, n)
}

func TestChannelCountFloorsAtTwo(t *testing.T) {
	compiled := compiler.CompiledEdl{MediaPath: map[string]string{"m1": "a.wav"}}
	readers := map[string]Reader{"a.wav": constantReader(1, 0, 10)}
	n, err := ChannelCount(compiled, providerFor(readers))
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

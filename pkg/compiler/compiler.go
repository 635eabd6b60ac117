// Package compiler turns a validated edl.Snapshot into a render-ready
// CompiledEdl: linear gains, sorted clips, mapped fade shapes.
package compiler

import (
	"math"
	"sort"

	"github.com/BlueElevatorProductions/JUCE-Audio-Service/pkg/edl"
)

// FadeShape is the compiled, always-known fade envelope shape. Unknown
// input shapes are mapped to Linear.
type FadeShape int

const (
	Linear FadeShape = iota
	EqualPower
)

// CompiledFade is a fade with its shape already resolved to a concrete
// envelope.
type CompiledFade struct {
	DurationSamples int64
	Shape           FadeShape
}

// CompiledClip is a clip with timeline bounds and linear gain
// precomputed. T1 is exclusive: T1 = StartInTimeline + Duration.
type CompiledClip struct {
	SourceClipID string
	MediaID      string
	StartInMedia int64
	T0, T1       int64
	GainLinear   float64
	FadeIn       *CompiledFade
	FadeOut      *CompiledFade
}

// CompiledTrack holds clips sorted by T0 ascending (stable tie-break on
// input order) plus the track's own gain and mute flag.
type CompiledTrack struct {
	SourceTrackID string
	Clips         []CompiledClip
	GainLinear    float64
	Muted         bool
}

// CompiledEdl is the transient, render-ready form of an accepted Edl.
type CompiledEdl struct {
	SampleRate int
	Tracks     []CompiledTrack
	// MediaPath resolves a media id to its on-disk path, carried alongside
	// the compiled clips so the renderer never needs to re-consult the
	// original Edl.
	MediaPath map[string]string
}

// GainLinear converts a decibel gain to a linear multiplier: 10^(db/20).
func GainLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

// Compile builds a CompiledEdl from a validated snapshot.
func Compile(snap edl.Snapshot) CompiledEdl {
	e := snap.Edl
	out := CompiledEdl{
		SampleRate: e.SampleRate,
		MediaPath:  make(map[string]string, len(e.Media)),
	}
	for _, m := range e.Media {
		out.MediaPath[m.ID] = m.Path
	}

	out.Tracks = make([]CompiledTrack, 0, len(e.Tracks))
	for _, t := range e.Tracks {
		ct := CompiledTrack{
			SourceTrackID: t.ID,
			GainLinear:    GainLinear(t.GainDB),
			Muted:         t.Muted,
			Clips:         make([]CompiledClip, 0, len(t.Clips)),
		}
		for _, c := range t.Clips {
			cc := CompiledClip{
				SourceClipID: c.ID,
				MediaID:      c.MediaID,
				StartInMedia: c.StartInMedia,
				T0:           c.StartInTimeline,
				T1:           c.StartInTimeline + c.Duration,
				GainLinear:   GainLinear(c.GainDB),
				FadeIn:       compileFade(c.FadeIn),
				FadeOut:      compileFade(c.FadeOut),
			}
			ct.Clips = append(ct.Clips, cc)
		}
		sort.SliceStable(ct.Clips, func(i, j int) bool {
			return ct.Clips[i].T0 < ct.Clips[j].T0
		})
		out.Tracks = append(out.Tracks, ct)
	}
	return out
}

func compileFade(f *edl.Fade) *CompiledFade {
	if f == nil {
		return nil
	}
	shape := Linear
	switch f.Shape {
	case edl.FadeEqualPower:
		shape = EqualPower
	case edl.FadeLinear:
		shape = Linear
	default:
		// Unknown shape degrades to Linear.
		shape = Linear
	}
	return &CompiledFade{DurationSamples: f.DurationSamples, Shape: shape}
}

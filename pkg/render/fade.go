package render

import (
	"math"

	"github.com/BlueElevatorProductions/JUCE-Audio-Service/pkg/compiler"
)

// fadeInGain returns the fade-in envelope gain at timeline sample t for a
// clip starting at t0 with the given fade. Outside the fade window it
// returns 1.0 (no attenuation).
func fadeInGain(fade *compiler.CompiledFade, clipT0, t int64) float64 {
	if fade == nil || fade.DurationSamples <= 0 {
		return 1.0
	}
	L := fade.DurationSamples
	if t >= clipT0+L {
		return 1.0
	}
	p := float64(t-clipT0) / float64(L)
	return envelopeAt(fade.Shape, clamp01(p))
}

// fadeOutGain returns the fade-out envelope gain at timeline sample t for
// a clip ending (exclusive) at clipT1.
func fadeOutGain(fade *compiler.CompiledFade, clipT1, t int64) float64 {
	if fade == nil || fade.DurationSamples <= 0 {
		return 1.0
	}
	L := fade.DurationSamples
	windowStart := clipT1 - L
	if t < windowStart {
		return 1.0
	}
	p := 1.0 - float64(t-windowStart)/float64(L)
	return envelopeAt(fade.Shape, clamp01(p))
}

func envelopeAt(shape compiler.FadeShape, p float64) float64 {
	switch shape {
	case compiler.EqualPower:
		return math.Sqrt(p)
	default:
		return p
	}
}

func clamp01(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

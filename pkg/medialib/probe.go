// Package medialib provides the media probe, the per-render reader cache
// and an optional durable catalog of AudioRef entries.
package medialib

import (
	"fmt"

	"github.com/BlueElevatorProductions/JUCE-Audio-Service/pkg/wavcodec"
)

// Info is the result of probing a media file: its native sample rate,
// channel count and length in frames.
type Info struct {
	SampleRate   int
	Channels     int
	LengthFrames int64
}

// ProbeFunc resolves a media path to its Info. Exposed as a function type
// so the validator can be tested against fixtures without touching disk.
type ProbeFunc func(path string) (Info, error)

// ProbeFile opens path and reports its format. Only WAV/PCM media is
// accepted; the probe is backed by this module's own WAV decoder (see
// wavcodec — DESIGN.md records why this is a hand-written codec rather
// than a third-party dependency).
func ProbeFile(path string) (Info, error) {
	h, err := wavcodec.OpenReader(path)
	if err != nil {
		return Info{}, fmt.Errorf("medialib: probe %s: %w", path, err)
	}
	defer h.Close()
	return Info{
		SampleRate:   h.SampleRate,
		Channels:     h.Channels,
		LengthFrames: h.LengthFrames,
	}, nil
}

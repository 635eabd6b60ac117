package render

import "github.com/BlueElevatorProductions/JUCE-Audio-Service/pkg/wavcodec"

// PCMChecksum re-exports the WAV encoder's rolling checksum type so
// callers of this package (fixture tests, the CLI) don't need to import
// wavcodec directly just to name the type.
type PCMChecksum = wavcodec.RollingChecksum

// NewPCMChecksum returns a fresh accumulator.
func NewPCMChecksum() *PCMChecksum { return wavcodec.NewRollingChecksum() }

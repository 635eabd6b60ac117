// Package validator implements the pure EDL validation function:
// candidate Edl in, Snapshot or structured *edl.Error out.
package validator

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/BlueElevatorProductions/JUCE-Audio-Service/pkg/edl"
	"github.com/BlueElevatorProductions/JUCE-Audio-Service/pkg/medialib"
)

// Validate runs its checks in order (id, sample rate, media, tracks,
// clips) and returns the first failure. probe resolves a media path to
// its {sample rate, channels, length_frames}; passing nil uses
// medialib.ProbeFile against the local filesystem.
func Validate(e edl.Edl, probe medialib.ProbeFunc) (edl.Snapshot, error) {
	if probe == nil {
		probe = medialib.ProbeFile
	}

	if e.ID == "" {
		return edl.Snapshot{}, edl.NewError(edl.KindEmptyID, "edl id must not be empty")
	}
	if !edl.AllowedSampleRates[e.SampleRate] {
		return edl.Snapshot{}, edl.NewError(edl.KindBadSampleRate,
			fmt.Sprintf("sample_rate %d is not one of 44100/48000/96000", e.SampleRate), e.ID)
	}
	if len(e.Media) == 0 {
		return edl.Snapshot{}, edl.NewError(edl.KindNoMedia, "edl has no media entries", e.ID)
	}

	mediaLength := make(map[string]int64, len(e.Media))
	for _, m := range e.Media {
		if m.ID == "" {
			return edl.Snapshot{}, edl.NewError(edl.KindEmptyID, "media entry id must not be empty", e.ID)
		}
		if m.Path == "" {
			return edl.Snapshot{}, edl.NewError(edl.KindEmptyID, "media entry path must not be empty", m.ID)
		}
		info, err := probe(m.Path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return edl.Snapshot{}, edl.NewError(edl.KindMediaMissing,
					fmt.Sprintf("media file not found: %s", m.Path), m.ID)
			}
			return edl.Snapshot{}, edl.NewError(edl.KindMediaUnreadable,
				fmt.Sprintf("media file could not be decoded: %v", err), m.ID)
		}
		if info.SampleRate != e.SampleRate {
			return edl.Snapshot{}, edl.NewError(edl.KindMediaSampleRateMismatch,
				fmt.Sprintf("media sample rate %d does not match edl sample rate %d", info.SampleRate, e.SampleRate), m.ID)
		}
		if m.SampleRate != 0 && m.SampleRate != info.SampleRate {
			return edl.Snapshot{}, edl.NewError(edl.KindMediaSampleRateMismatch,
				fmt.Sprintf("declared sample rate %d does not match file sample rate %d", m.SampleRate, info.SampleRate), m.ID)
		}
		mediaLength[m.ID] = info.LengthFrames
	}

	if len(e.Tracks) == 0 {
		return edl.Snapshot{}, edl.NewError(edl.KindNoTracks, "edl has no tracks", e.ID)
	}

	clipCount := 0
	for _, t := range e.Tracks {
		if t.ID == "" {
			return edl.Snapshot{}, edl.NewError(edl.KindEmptyTrackID, "track id must not be empty", e.ID)
		}
		for _, c := range t.Clips {
			if c.ID == "" {
				return edl.Snapshot{}, edl.NewError(edl.KindEmptyClipID, "clip id must not be empty", t.ID)
			}
			if c.MediaID == "" {
				return edl.Snapshot{}, edl.NewError(edl.KindEmptyID, "clip media_id must not be empty", c.ID)
			}
			length, ok := mediaLength[c.MediaID]
			if !ok {
				return edl.Snapshot{}, edl.NewError(edl.KindUnknownMediaRef,
					fmt.Sprintf("clip references unknown media id %q", c.MediaID), c.ID)
			}
			if c.StartInMedia < 0 {
				return edl.Snapshot{}, edl.NewError(edl.KindNegativeTime, "start_in_media must be >= 0", c.ID)
			}
			if c.StartInTimeline < 0 {
				return edl.Snapshot{}, edl.NewError(edl.KindNegativeTime, "start_in_timeline must be >= 0", c.ID)
			}
			if c.Duration <= 0 {
				return edl.Snapshot{}, edl.NewError(edl.KindNonPositiveDuration, "duration must be > 0", c.ID)
			}
			if c.StartInMedia+c.Duration > length {
				return edl.Snapshot{}, edl.NewError(edl.KindClipOutOfMediaBounds,
					fmt.Sprintf("start_in_media(%d)+duration(%d) exceeds media length %d", c.StartInMedia, c.Duration, length), c.ID)
			}
			for _, fade := range []*edl.Fade{c.FadeIn, c.FadeOut} {
				if fade == nil {
					continue
				}
				if fade.DurationSamples < 0 {
					return edl.Snapshot{}, edl.NewError(edl.KindNegativeFadeLength, "fade duration_samples must be >= 0", c.ID)
				}
				// Unknown fade shapes are not rejected here: the compiler
				// degrades them to Linear so forward-compatible inputs
				// don't break rendering. See DESIGN.md for the reasoning.
			}
			clipCount++
		}
	}

	return edl.Snapshot{
		Edl:        e,
		TrackCount: len(e.Tracks),
		ClipCount:  clipCount,
	}, nil
}

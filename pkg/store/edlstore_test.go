package store

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BlueElevatorProductions/JUCE-Audio-Service/pkg/edl"
	"github.com/BlueElevatorProductions/JUCE-Audio-Service/pkg/medialib"
)

func fakeProbe(sampleRate int) medialib.ProbeFunc {
	return func(path string) (medialib.Info, error) {
		return medialib.Info{SampleRate: sampleRate, Channels: 1, LengthFrames: 1_000_000}, nil
	}
}

func validEdl() edl.Edl {
	return edl.Edl{
		ID:         "session-1",
		SampleRate: 48000,
		Media:      []edl.AudioRef{{ID: "m1", Path: "/fake/a.wav"}},
		Tracks: []edl.Track{{
			ID:    "t1",
			Clips: []edl.Clip{{ID: "c1", MediaID: "m1", Duration: 100}},
		}},
	}
}

func TestStoreReplaceAndGet(t *testing.T) {
	s := NewWithProbe(fakeProbe(48000))

	_, ok := s.Get()
	require.False(t, ok)
	require.False(t, s.Has())

	snap, err := s.Replace(validEdl())
	require.NoError(t, err)
	require.NotEmpty(t, snap.Revision)
	require.Equal(t, 1, snap.TrackCount)
	require.Equal(t, 1, snap.ClipCount)

	got, ok := s.Get()
	require.True(t, ok)
	require.Equal(t, snap.Revision, got.Revision)
	require.True(t, s.Has())
}

func TestStoreReplaceRejectsInvalidAndKeepsPrevious(t *testing.T) {
	s := NewWithProbe(fakeProbe(48000))

	_, err := s.Replace(validEdl())
	require.NoError(t, err)
	first, _ := s.Get()

	bad := validEdl()
	bad.SampleRate = 22050
	_, err = s.Replace(bad)
	require.Error(t, err)
	require.True(t, edl.IsKind(err, edl.KindBadSampleRate))

	current, ok := s.Get()
	require.True(t, ok)
	require.Equal(t, first.Revision, current.Revision)
}

func TestStoreRevisionIsStampedIntoStoredEdl(t *testing.T) {
	s := NewWithProbe(fakeProbe(48000))
	snap, err := s.Replace(validEdl())
	require.NoError(t, err)
	require.Equal(t, snap.Revision, snap.Edl.Revision)
}

func TestStoreSerializesConcurrentWriters(t *testing.T) {
	s := NewWithProbe(fakeProbe(48000))
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Replace(validEdl())
		}()
	}
	wg.Wait()
	_, ok := s.Get()
	require.True(t, ok)
}

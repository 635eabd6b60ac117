package service

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/BlueElevatorProductions/JUCE-Audio-Service/pkg/edl"
	"github.com/BlueElevatorProductions/JUCE-Audio-Service/pkg/events"
	"github.com/BlueElevatorProductions/JUCE-Audio-Service/pkg/medialib"
	"github.com/BlueElevatorProductions/JUCE-Audio-Service/pkg/store"
	"github.com/BlueElevatorProductions/JUCE-Audio-Service/pkg/wavcodec"
)

func fakeProbe(sampleRate, channels int, length int64) medialib.ProbeFunc {
	return func(path string) (medialib.Info, error) {
		return medialib.Info{SampleRate: sampleRate, Channels: channels, LengthFrames: length}, nil
	}
}

func writeFixtureWAV(t *testing.T, path string, frames int) {
	t.Helper()
	w, err := wavcodec.Create(path, 48000, 1, wavcodec.Depth16)
	require.NoError(t, err)
	samples := make([]float32, frames)
	for i := range samples {
		samples[i] = 0.2
	}
	require.NoError(t, w.WriteBlock([][]float32{samples}))
	require.NoError(t, w.Close())
}

func validEdlFor(mediaPath string) edl.Edl {
	return edl.Edl{
		ID:         "e1",
		SampleRate: 48000,
		Media:      []edl.AudioRef{{ID: "m1", Path: mediaPath}},
		Tracks: []edl.Track{{
			ID:    "t1",
			Clips: []edl.Clip{{ID: "c1", MediaID: "m1", StartInMedia: 0, StartInTimeline: 0, Duration: 4800}},
		}},
	}
}

func newTestFacade(mediaPath string) (*Facade, *store.EdlStore, *events.Broadcaster) {
	s := store.NewWithProbe(fakeProbe(48000, 1, 48000*10))
	b := events.NewBroadcaster()
	return New(Config{Store: s, Events: b}), s, b
}

func TestUpdateEdlSuccessBroadcastsApplied(t *testing.T) {
	dir := t.TempDir()
	mediaPath := filepath.Join(dir, "a.wav")
	writeFixtureWAV(t, mediaPath, 48000)

	f, _, b := newTestFacade(mediaPath)
	var got events.EngineEvent
	b.Subscribe(events.SubscriberFunc(func(e events.EngineEvent) error {
		got = e
		return nil
	}))

	result, err := f.UpdateEdl(validEdlFor(mediaPath), false)
	require.NoError(t, err)
	require.Equal(t, "e1", result.EdlID)
	require.NotEmpty(t, result.Revision)
	require.Equal(t, 1, result.TrackCount)
	require.Equal(t, 1, result.ClipCount)
	require.Equal(t, events.KindEdlApplied, got.Kind)
	require.Equal(t, "e1", got.EdlID)
}

func TestUpdateEdlFailureBroadcastsError(t *testing.T) {
	f, _, b := newTestFacade("/irrelevant.wav")
	var got events.EngineEvent
	b.Subscribe(events.SubscriberFunc(func(e events.EngineEvent) error {
		got = e
		return nil
	}))

	bad := edl.Edl{ID: "bad", SampleRate: 22050}
	_, err := f.UpdateEdl(bad, false)
	require.Error(t, err)
	require.True(t, edl.IsKind(err, edl.KindBadSampleRate))
	require.Equal(t, events.KindEdlError, got.Kind)
	require.Equal(t, "bad", got.EdlID)
}

func TestRenderEdlWindowRejectsWhenNoEdlLoaded(t *testing.T) {
	f, _, _ := newTestFacade("/irrelevant.wav")
	var seen []events.EngineEvent
	rng := edl.TimeRange{StartSamples: 0, DurationSamples: 1000}

	err := f.RenderEdlWindow(context.Background(), "e1", rng, filepath.Join(t.TempDir(), "out.wav"), 16, func(e events.EngineEvent) {
		seen = append(seen, e)
	})
	require.Error(t, err)
	require.True(t, edl.IsKind(err, edl.KindNoEdlLoaded))
	require.Equal(t, events.KindEdlError, seen[len(seen)-1].Kind)
}

func TestRenderEdlWindowRejectsMismatchedEdlID(t *testing.T) {
	dir := t.TempDir()
	mediaPath := filepath.Join(dir, "a.wav")
	writeFixtureWAV(t, mediaPath, 48000)

	f, s, _ := newTestFacade(mediaPath)
	_, err := s.Replace(validEdlFor(mediaPath))
	require.NoError(t, err)

	rng := edl.TimeRange{StartSamples: 0, DurationSamples: 1000}
	err = f.RenderEdlWindow(context.Background(), "someone-else", rng, filepath.Join(dir, "out.wav"), 16, func(events.EngineEvent) {})
	require.True(t, edl.IsKind(err, edl.KindEdlIDMismatch))
}

func TestRenderEdlWindowRejectsInvalidRange(t *testing.T) {
	dir := t.TempDir()
	mediaPath := filepath.Join(dir, "a.wav")
	writeFixtureWAV(t, mediaPath, 48000)

	f, s, _ := newTestFacade(mediaPath)
	_, err := s.Replace(validEdlFor(mediaPath))
	require.NoError(t, err)

	rng := edl.TimeRange{StartSamples: 0, DurationSamples: 0}
	err = f.RenderEdlWindow(context.Background(), "e1", rng, filepath.Join(dir, "out.wav"), 16, func(events.EngineEvent) {})
	require.True(t, edl.IsKind(err, edl.KindInvalidRange))
}

func TestRenderEdlWindowProducesCompleteAndFile(t *testing.T) {
	dir := t.TempDir()
	mediaPath := filepath.Join(dir, "a.wav")
	writeFixtureWAV(t, mediaPath, 48000)
	outPath := filepath.Join(dir, "out.wav")

	f, s, _ := newTestFacade(mediaPath)
	_, err := s.Replace(validEdlFor(mediaPath))
	require.NoError(t, err)

	var seen []events.EngineEvent
	rng := edl.TimeRange{StartSamples: 0, DurationSamples: 4800}
	err = f.RenderEdlWindow(context.Background(), "e1", rng, outPath, 16, func(e events.EngineEvent) {
		seen = append(seen, e)
	})
	require.NoError(t, err)
	require.NotEmpty(t, seen)

	last := seen[len(seen)-1]
	require.Equal(t, events.KindComplete, last.Kind)
	require.Equal(t, outPath, last.OutPath)
	require.NotEmpty(t, last.SHA256)

	_, statErr := os.Stat(outPath)
	require.NoError(t, statErr)
}

func TestRenderEdlWindowFallsBackOnUnsupportedBitDepth(t *testing.T) {
	dir := t.TempDir()
	mediaPath := filepath.Join(dir, "a.wav")
	writeFixtureWAV(t, mediaPath, 48000)
	outPath := filepath.Join(dir, "out.wav")

	f, s, _ := newTestFacade(mediaPath)
	_, err := s.Replace(validEdlFor(mediaPath))
	require.NoError(t, err)

	rng := edl.TimeRange{StartSamples: 0, DurationSamples: 4800}
	err = f.RenderEdlWindow(context.Background(), "e1", rng, outPath, 99, func(events.EngineEvent) {})
	require.NoError(t, err)

	r, err := wavcodec.OpenReader(outPath)
	require.NoError(t, err)
	defer r.Close()
	require.Equal(t, formatFloat32BitsPerSample, r.BitsPerSample)
}

const formatFloat32BitsPerSample = 32

func TestSubscribeEmitsBackendReadyThenEdlApplied(t *testing.T) {
	dir := t.TempDir()
	mediaPath := filepath.Join(dir, "a.wav")
	writeFixtureWAV(t, mediaPath, 48000)

	f, s, _ := newTestFacade(mediaPath)
	_, err := s.Replace(validEdlFor(mediaPath))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var seen []events.EngineEvent
	f.Subscribe(ctx, func(e events.EngineEvent) {
		seen = append(seen, e)
	})

	require.GreaterOrEqual(t, len(seen), 2)
	require.Equal(t, events.KindBackend, seen[0].Kind)
	require.Equal(t, "ready", seen[0].Status)
	require.Equal(t, events.KindEdlApplied, seen[1].Kind)
}

func TestSubscribeWithoutLoadedEdlSkipsEdlApplied(t *testing.T) {
	f, _, _ := newTestFacade("/irrelevant.wav")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	var seen []events.EngineEvent
	f.Subscribe(ctx, func(e events.EngineEvent) {
		seen = append(seen, e)
	})

	require.Len(t, seen, 1)
	require.Equal(t, events.KindBackend, seen[0].Kind)
}

func TestUpdateEdlResolvesMediaFromCatalog(t *testing.T) {
	dir := t.TempDir()
	mediaPath := filepath.Join(dir, "a.wav")
	writeFixtureWAV(t, mediaPath, 48000)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	rows := sqlmock.NewRows([]string{"id", "path", "sample_rate", "channels"}).
		AddRow("m1", mediaPath, 48000, 1)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, path, sample_rate, channels FROM media_library WHERE id = $1")).
		WithArgs("m1").
		WillReturnRows(rows)

	s := store.NewWithProbe(fakeProbe(48000, 1, 48000*10))
	f := New(Config{Store: s, Events: events.NewBroadcaster(), Catalog: medialib.NewCatalog(db)})

	candidate := edl.Edl{
		ID:         "e1",
		SampleRate: 48000,
		Media:      []edl.AudioRef{{ID: "m1"}},
		Tracks: []edl.Track{{
			ID:    "t1",
			Clips: []edl.Clip{{ID: "c1", MediaID: "m1", StartInMedia: 0, StartInTimeline: 0, Duration: 4800}},
		}},
	}
	result, err := f.UpdateEdl(candidate, false)
	require.NoError(t, err)
	require.Equal(t, "e1", result.EdlID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadFileReturnsProbeAndSizeInfo(t *testing.T) {
	dir := t.TempDir()
	mediaPath := filepath.Join(dir, "a.wav")
	writeFixtureWAV(t, mediaPath, 48000)

	info, err := LoadFile(mediaPath)
	require.NoError(t, err)
	require.Equal(t, mediaPath, info.Path)
	require.Equal(t, 48000, info.SampleRate)
	require.Equal(t, 1, info.Channels)
	require.InDelta(t, 1.0, info.DurationSeconds, 1e-6)
	require.Positive(t, info.SizeBytes)
}

// Package service wires the store, validator, compiler, renderer and
// event broadcaster together behind the three operations a caller
// actually drives: UpdateEdl, RenderEdlWindow and Subscribe, plus the
// LoadFile probe helper.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/BlueElevatorProductions/JUCE-Audio-Service/pkg/archive"
	"github.com/BlueElevatorProductions/JUCE-Audio-Service/pkg/compiler"
	"github.com/BlueElevatorProductions/JUCE-Audio-Service/pkg/edl"
	"github.com/BlueElevatorProductions/JUCE-Audio-Service/pkg/events"
	"github.com/BlueElevatorProductions/JUCE-Audio-Service/pkg/medialib"
	"github.com/BlueElevatorProductions/JUCE-Audio-Service/pkg/render"
	"github.com/BlueElevatorProductions/JUCE-Audio-Service/pkg/store"
	"github.com/BlueElevatorProductions/JUCE-Audio-Service/pkg/wavcodec"
)

// HeartbeatInterval is the cadence at which Subscribe emits Heartbeat
// events between broadcasts.
const HeartbeatInterval = 2 * time.Second

// Observer receives per-render and per-validation instrumentation. A nil
// Observer is a safe no-op; internal/observability.Provider implements it.
type Observer interface {
	RenderStarted(ctx context.Context)
	RenderCompleted(ctx context.Context, durationSec float64)
	RenderCancelled(ctx context.Context)
	BlockMixed(ctx context.Context)
	ValidationFailed(ctx context.Context, kind string)
}

type noopObserver struct{}

func (noopObserver) RenderStarted(context.Context)            {}
func (noopObserver) RenderCompleted(context.Context, float64) {}
func (noopObserver) RenderCancelled(context.Context)          {}
func (noopObserver) BlockMixed(context.Context)               {}
func (noopObserver) ValidationFailed(context.Context, string) {}

// Facade is the single entry point orchestrating the EDL core.
type Facade struct {
	store     *store.EdlStore
	events    *events.Broadcaster
	archive   *archive.S3Archive   // optional
	renderLog *medialib.RenderLog // optional
	catalog   *medialib.Catalog   // optional
	logger    *slog.Logger
	observer  Observer
}

// Config configures a Facade. Only Store and Events are required; Archive,
// RenderLog, Catalog, Logger and Observer are optional and nil-safe.
type Config struct {
	Store     *store.EdlStore
	Events    *events.Broadcaster
	Archive   *archive.S3Archive
	RenderLog *medialib.RenderLog
	Catalog   *medialib.Catalog
	Logger    *slog.Logger
	Observer  Observer
}

// New builds a Facade from cfg.
func New(cfg Config) *Facade {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	observer := cfg.Observer
	if observer == nil {
		observer = noopObserver{}
	}
	return &Facade{
		store:     cfg.Store,
		events:    cfg.Events,
		archive:   cfg.Archive,
		renderLog: cfg.RenderLog,
		catalog:   cfg.Catalog,
		logger:    logger,
		observer:  observer,
	}
}

// UpdateResult is UpdateEdl's success payload.
type UpdateResult struct {
	EdlID      string
	Revision   string
	TrackCount int
	ClipCount  int
}

// LoadedEdl describes the currently accepted snapshot, for clients that
// need to translate a time range into samples before calling
// RenderEdlWindow.
type LoadedEdl struct {
	EdlID      string
	Revision   string
	SampleRate int
	TrackCount int
	ClipCount  int
}

// CurrentEdl returns the currently loaded snapshot's summary, or false if
// no EDL has been accepted yet.
func (f *Facade) CurrentEdl() (LoadedEdl, bool) {
	snap, ok := f.store.Get()
	if !ok {
		return LoadedEdl{}, false
	}
	return LoadedEdl{
		EdlID:      snap.Edl.ID,
		Revision:   snap.Revision,
		SampleRate: snap.Edl.SampleRate,
		TrackCount: snap.TrackCount,
		ClipCount:  snap.ClipCount,
	}, true
}

// UpdateEdl validates candidate and, on success, installs it as the
// current snapshot and broadcasts EdlApplied. The replace flag is
// accepted but does not alter behavior: the store holds exactly one
// snapshot regardless, and the flag is reserved for future merge
// semantics.
func (f *Facade) UpdateEdl(candidate edl.Edl, replace bool) (UpdateResult, error) {
	_ = replace
	if f.catalog != nil {
		resolved, err := f.catalog.ResolveMissing(context.Background(), candidate.Media)
		if err != nil {
			reason := fmt.Sprintf("media catalog lookup failed: %v", err)
			f.events.Broadcast(events.EdlError(candidate.ID, reason))
			return UpdateResult{}, edl.NewError(edl.KindUnknownMediaRef, reason, candidate.ID)
		}
		candidate.Media = resolved
	}

	snap, err := f.store.Replace(candidate)
	if err != nil {
		reason := err.Error()
		f.events.Broadcast(events.EdlError(candidate.ID, reason))
		if ee, ok := err.(*edl.Error); ok {
			f.observer.ValidationFailed(context.Background(), string(ee.Kind))
		}
		return UpdateResult{}, err
	}

	result := UpdateResult{
		EdlID:      snap.Edl.ID,
		Revision:   snap.Revision,
		TrackCount: snap.TrackCount,
		ClipCount:  snap.ClipCount,
	}
	f.events.Broadcast(events.EdlApplied(result.EdlID, result.Revision, result.TrackCount, result.ClipCount))
	return result, nil
}

// RenderEdlWindow renders rng of the currently loaded EDL (which must
// have id == edlID) to outPath at bitDepth, streaming EngineEvents to
// emit through emit until it returns. It emits zero or more Progress
// events followed by exactly one terminal Complete or EdlError; a
// non-nil returned error always corresponds to the terminal EdlError
// already having been passed to emit.
func (f *Facade) RenderEdlWindow(ctx context.Context, edlID string, rng edl.TimeRange, outPath string, bitDepth int, emit func(events.EngineEvent)) error {
	fail := func(kind edl.Kind, reason string) error {
		emit(events.EdlError(edlID, reason))
		f.events.Broadcast(events.EdlError(edlID, reason))
		f.observer.ValidationFailed(ctx, string(kind))
		return edl.NewError(kind, reason, edlID)
	}

	snap, ok := f.store.Get()
	if !ok {
		return fail(edl.KindNoEdlLoaded, "no edl loaded")
	}
	if snap.Edl.ID != edlID {
		return fail(edl.KindEdlIDMismatch, fmt.Sprintf("edl_id mismatch: loaded %q, requested %q", snap.Edl.ID, edlID))
	}
	if rng.DurationSamples <= 0 {
		return fail(edl.KindInvalidRange, "duration_samples must be > 0")
	}

	depth, ok := wavcodec.NormalizeBitDepth(bitDepth)
	if !ok {
		f.logger.WarnContext(ctx, "unsupported bit depth, falling back to float-32", "requested", bitDepth)
	}

	compiled := compiler.Compile(snap)

	cache := medialib.NewReaderCache()
	defer cache.Close()
	provider := func(path string) (render.Reader, error) { return cache.Get(path) }

	channels, err := render.ChannelCount(compiled, provider)
	if err != nil {
		return fail(edl.KindReaderUnavailable, fmt.Sprintf("could not determine channel count: %v", err))
	}

	writer, err := wavcodec.Create(outPath, compiled.SampleRate, channels, depth)
	if err != nil {
		return fail(edl.KindWriteFailed, fmt.Sprintf("could not open output file: %v", err))
	}

	f.observer.RenderStarted(ctx)
	start := time.Now()

	renderOpts := render.Options{
		Channels: channels,
		Logger:   f.logger,
		Progress: func(fraction float64) {
			emit(events.Progress(fraction, nil))
			f.observer.BlockMixed(ctx)
		},
	}

	if err := render.Render(ctx, compiled, rng, provider, writer, renderOpts); err != nil {
		writer.Abort(outPath)
		if edl.IsKind(err, edl.KindCancelled) {
			f.observer.RenderCancelled(ctx)
			reason := "render cancelled"
			emit(events.EdlError(edlID, reason))
			f.events.Broadcast(events.EdlError(edlID, reason))
			return err
		}
		return fail(edl.KindWriteFailed, fmt.Sprintf("render failed: %v", err))
	}

	if err := writer.Close(); err != nil {
		return fail(edl.KindWriteFailed, fmt.Sprintf("could not finalize output file: %v", err))
	}

	sha256Hex, err := hashFile(outPath)
	if err != nil {
		return fail(edl.KindWriteFailed, fmt.Sprintf("could not hash output file: %v", err))
	}

	durationSec := float64(rng.DurationSamples) / float64(compiled.SampleRate)
	f.observer.RenderCompleted(ctx, time.Since(start).Seconds())

	if f.renderLog != nil {
		if err := f.renderLog.Record(ctx, edlID, snap.Revision, rng.StartSamples, rng.DurationSamples, outPath, sha256Hex); err != nil {
			f.logger.WarnContext(ctx, "render log write failed", "error", err)
		}
	}
	if f.archive != nil {
		manifest := archive.Manifest{
			EdlID:           edlID,
			Revision:        snap.Revision,
			StartSamples:    rng.StartSamples,
			DurationSamples: rng.DurationSamples,
			SHA256:          sha256Hex,
			ArchivedAt:      time.Now().UTC(),
		}
		if err := f.archive.UploadRender(ctx, outPath, manifest); err != nil {
			f.logger.WarnContext(ctx, "render archival failed", "error", err)
		}
	}

	complete := events.Complete(outPath, durationSec, sha256Hex)
	emit(complete)
	f.events.Broadcast(complete)
	return nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Subscribe registers a session with the broadcaster and streams
// EngineEvents to emit until ctx is cancelled. It always begins with a
// Backend{status:"ready"} event, followed by an EdlApplied snapshot event
// if a snapshot is currently loaded, then interleaves Heartbeat events at
// HeartbeatInterval with anything the store's broadcaster fans out.
func (f *Facade) Subscribe(ctx context.Context, emit func(events.EngineEvent)) {
	sessionID := uuid.NewString()
	logger := f.logger.With("session_id", sessionID)

	ch := make(chan events.EngineEvent, 32)
	fn := events.SubscriberFunc(func(e events.EngineEvent) error {
		select {
		case ch <- e:
			return nil
		default:
			return fmt.Errorf("subscriber %s channel full", sessionID)
		}
	})
	// Registered by pointer so the deferred Unsubscribe can find it.
	sub := &fn
	f.events.Subscribe(sub)
	defer f.events.Unsubscribe(sub)

	emit(events.Backend("ready"))
	if snap, ok := f.store.Get(); ok {
		emit(events.EdlApplied(snap.Edl.ID, snap.Revision, snap.TrackCount, snap.ClipCount))
	}

	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()

	monoStart := time.Now()
	for {
		select {
		case <-ctx.Done():
			logger.Debug("subscriber disconnected")
			return
		case e := <-ch:
			emit(e)
		case <-ticker.C:
			emit(events.Heartbeat(time.Since(monoStart).Milliseconds()))
		}
	}
}

// FileInfo is LoadFile's success payload.
type FileInfo struct {
	Path            string
	SampleRate      int
	Channels        int
	DurationSeconds float64
	SizeBytes       int64
}

// LoadFile probes path with the same media probe the validator uses,
// without registering it in any EDL.
func LoadFile(path string) (FileInfo, error) {
	info, err := medialib.ProbeFile(path)
	if err != nil {
		return FileInfo{}, err
	}
	stat, err := os.Stat(path)
	if err != nil {
		return FileInfo{}, err
	}
	duration := 0.0
	if info.SampleRate > 0 {
		duration = float64(info.LengthFrames) / float64(info.SampleRate)
	}
	return FileInfo{
		Path:            path,
		SampleRate:      info.SampleRate,
		Channels:        info.Channels,
		DurationSeconds: duration,
		SizeBytes:       stat.Size(),
	}, nil
}

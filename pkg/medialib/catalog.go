package medialib

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/BlueElevatorProductions/JUCE-Audio-Service/pkg/edl"
)

// Catalog is an optional, durable library of AudioRef entries, backed by
// Postgres. The EDL core never requires it — validation resolves media
// purely from the submitted Edl.Media list — but it lets an operator
// pre-register known-good media so client EDLs can reference IDs without
// repeating path/sample-rate/channel metadata on every submission.
type Catalog struct {
	db *sql.DB
}

// NewCatalog wraps an already-open *sql.DB (typically opened with the
// "postgres" driver registered above).
func NewCatalog(db *sql.DB) *Catalog {
	return &Catalog{db: db}
}

// Upsert inserts or updates a library entry.
func (c *Catalog) Upsert(ctx context.Context, ref edl.AudioRef) error {
	const q = `
		INSERT INTO media_library (id, path, sample_rate, channels)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			path = EXCLUDED.path,
			sample_rate = EXCLUDED.sample_rate,
			channels = EXCLUDED.channels
	`
	_, err := c.db.ExecContext(ctx, q, ref.ID, ref.Path, ref.SampleRate, ref.Channels)
	if err != nil {
		return fmt.Errorf("medialib: upsert catalog entry %s: %w", ref.ID, err)
	}
	return nil
}

// Get fetches a library entry by ID. Returns (edl.AudioRef{}, false, nil)
// when the ID is not registered; ResolveMissing turns that into an error.
func (c *Catalog) Get(ctx context.Context, id string) (edl.AudioRef, bool, error) {
	row := c.db.QueryRowContext(ctx,
		"SELECT id, path, sample_rate, channels FROM media_library WHERE id = $1", id)

	var ref edl.AudioRef
	err := row.Scan(&ref.ID, &ref.Path, &ref.SampleRate, &ref.Channels)
	if err == sql.ErrNoRows {
		return edl.AudioRef{}, false, nil
	}
	if err != nil {
		return edl.AudioRef{}, false, fmt.Errorf("medialib: get catalog entry %s: %w", id, err)
	}
	return ref, true, nil
}

// ResolveMissing fills in any AudioRef in refs whose Path is empty from
// the catalog, returning a new slice. Used by service.Facade.UpdateEdl's
// optional "media by id only" convenience path; the core validator always
// operates on the fully-resolved Edl.Media.
func (c *Catalog) ResolveMissing(ctx context.Context, refs []edl.AudioRef) ([]edl.AudioRef, error) {
	out := make([]edl.AudioRef, len(refs))
	for i, r := range refs {
		if r.Path != "" {
			out[i] = r
			continue
		}
		full, ok, err := c.Get(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("medialib: media id %q not found in catalog and no path supplied", r.ID)
		}
		out[i] = full
	}
	return out, nil
}

package repos

import (
	"context"
	"errors"
	"fmt"
	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"photometa/pipeline"
	"photometa/record"
	"time"
)

// Publish upserts the record keyed by its source path, so reruns replace earlier rows.
func (r *Repo) Publish(ctx context.Context, out pipeline.Output) error {
	rec := out.Record

	var orientation *int32
	if rec.Orientation != nil {
		v := int32(*rec.Orientation)
		orientation = &v
	}

	return backoff.Retry(func() error {
		_, err := r.db.Exec(ctx, `
			INSERT INTO photo_metadata (source_path, output_path, filename, size,
			                            created_time, modified_time, orientation,
			                            capture_time, camera_model, camera_serial,
			                            record, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
			ON CONFLICT (source_path) DO UPDATE
			SET output_path = EXCLUDED.output_path,
			    filename = EXCLUDED.filename,
			    size = EXCLUDED.size,
			    created_time = EXCLUDED.created_time,
			    modified_time = EXCLUDED.modified_time,
			    orientation = EXCLUDED.orientation,
			    capture_time = EXCLUDED.capture_time,
			    camera_model = EXCLUDED.camera_model,
			    camera_serial = EXCLUDED.camera_serial,
			    record = EXCLUDED.record,
			    updated_at = EXCLUDED.updated_at
		`, out.Source, out.Path, rec.Filename, int64(rec.Size),
			rec.CreatedTime, rec.ModifiedTime, orientation,
			rec.CaptureTime, rec.CameraModel, rec.CameraSerial,
			rec)
		if err != nil && !isTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.NewExponentialBackOff(backoff.WithMaxElapsedTime(10*time.Second)), ctx))
}

func (r *Repo) GetRecord(ctx context.Context, sourcePath string) (record.Record, error) {
	var rec record.Record
	err := r.db.QueryRow(ctx, `
		SELECT record FROM photo_metadata WHERE source_path = $1
	`, sourcePath).Scan(&rec)
	if err != nil {
		return record.Record{}, fmt.Errorf("get record %s: %w", sourcePath, err)
	}
	return rec, nil
}

// isTransient reports whether err came from the connection rather than the server rejecting
// the statement.
func isTransient(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// class 08: connection exception
		return len(pgErr.Code) == 5 && pgErr.Code[:2] == "08"
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

package repos

import (
	"context"
	"fmt"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"log/slog"
)

type Repo struct {
	db *pgxpool.Pool
}

var ErrNotFound = pgx.ErrNoRows

func Connect(ctx context.Context, databaseURL string, logger *slog.Logger) (*Repo, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}

	config.ConnConfig.Tracer = newTracer(logger)

	db, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	return &Repo{db: db}, nil
}

func (r *Repo) Pool() *pgxpool.Pool {
	return r.db
}

func (r *Repo) Close() {
	r.db.Close()
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS photo_metadata (
		source_path   text PRIMARY KEY,
		output_path   text NOT NULL,
		filename      text NOT NULL,
		size          bigint NOT NULL,
		created_time  text NOT NULL,
		modified_time text NOT NULL,
		orientation   integer,
		capture_time  text,
		camera_model  text,
		camera_serial text,
		record        jsonb NOT NULL,
		updated_at    timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS photo_metadata_capture_time_idx ON photo_metadata (capture_time)`,
	`CREATE INDEX IF NOT EXISTS photo_metadata_camera_idx ON photo_metadata (camera_model, camera_serial)`,
}

// Migrate creates the catalog table and its indexes if missing.
func (r *Repo) Migrate(ctx context.Context) error {
	batch := &pgx.Batch{}
	for _, sql := range migrations {
		batch.Queue(sql)
	}

	if err := r.db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("migrate photo_metadata: %w", err)
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"github.com/gofrs/uuid"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
	"io"
	"log/slog"
	"os"
	"photometa/batch"
	"photometa/ledger"
	"photometa/objectstore"
	"photometa/pipeline"
	"photometa/repos"
)

var version = "dev"

func main() {
	for _, name := range []string{".env", ".env.local"} {
		err := godotenv.Load(name)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
	}

	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr, os.Getenv))
}

func newLogger(w io.Writer, development bool) *slog.Logger {
	if development {
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	return slog.New(slog.NewJSONHandler(w, nil))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, getenv func(string) string) int {
	fs := flag.NewFlagSet("photometa", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: photometa [FILE]...\n\nWrites the EXIF metadata of each JPEG to a .json file next to it.\n\n")
		fs.PrintDefaults()
	}
	showVersion := fs.BoolP("version", "V", false, "Print version")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, "Error:", err)
		fs.Usage()
		return 1
	}

	if *showVersion {
		fmt.Fprintf(stdout, "photometa %s\n", version)
		return 0
	}

	paths := fs.Args()
	if len(paths) == 0 {
		fmt.Fprintln(stderr, "Error:", batch.ErrEmptyInput)
		return 1
	}

	cfg, err := loadConfig(getenv)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}

	runID, err := uuid.NewV4()
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	logger := newLogger(stderr, cfg.isDevelopment()).With("run", runID.String())
	slog.SetDefault(logger)

	p := &pipeline.Pipeline{Logger: logger}
	runner := &batch.Runner{Workers: cfg.workers, Process: p.Process, Logger: logger}

	if cfg.databaseURL != "" {
		repo, err := repos.Connect(ctx, cfg.databaseURL, logger)
		if err != nil {
			logger.Error("error connecting to database", "err", err)
			return 1
		}
		defer repo.Close()
		if err := repo.Migrate(ctx); err != nil {
			logger.Error("error migrating database", "err", err)
			return 1
		}
		p.Publishers = append(p.Publishers, repo)
	}

	if cfg.minio != nil {
		mc, err := objectstore.Dial(cfg.minio.endpoint, cfg.minio.accessKey, cfg.minio.secretKey, cfg.minio.secure)
		if err != nil {
			logger.Error("error creating minio client", "err", err)
			return 1
		}
		uploader := objectstore.New(mc, cfg.minio.bucket, cfg.minio.prefix)
		uploader.Logger = logger
		p.Publishers = append(p.Publishers, uploader)
	}

	if cfg.redisAddr != "" {
		rdb, err := ledger.Connect(ctx, cfg.redisAddr)
		if err != nil {
			logger.Error("error connecting to redis", "err", err)
			return 1
		}
		defer rdb.Close()
		l := ledger.New(rdb, runID, cfg.ledgerTTL)
		runner.Recorder = l
		logger.Info("recording run", "key", l.Key())
	}

	results, err := runner.Run(ctx, paths)
	for _, res := range results {
		if res.Err != nil {
			logger.Error("error processing file", "path", res.Path, "err", res.Err)
		}
	}
	failed := batch.Failed(results)
	logger.Info("run complete", "files", len(results), "written", len(results)-failed, "failed", failed)

	if err != nil {
		return 1
	}
	return 0
}

package pipeline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"photometa/exifdir"
	"photometa/fsprobe"
	"photometa/normalize"
	"photometa/record"
	"strings"
)

var (
	ErrWrite   = errors.New("write metadata")
	ErrPublish = errors.New("publish metadata")
)

// Output describes a record that has been written next to its source image.
type Output struct {
	Source string
	Path   string
	Record record.Record
}

type Publisher interface {
	Publish(ctx context.Context, out Output) error
}

type PublisherFunc func(ctx context.Context, out Output) error

func (f PublisherFunc) Publish(ctx context.Context, out Output) error {
	return f(ctx, out)
}

type Pipeline struct {
	Logger     *slog.Logger
	Publishers []Publisher

	// Probe reads filesystem attributes; nil means fsprobe.Probe.
	Probe func(path string) (fsprobe.Info, error)
}

// Process turns one JPEG into a sibling .json file and returns the path written. Nothing is
// written unless the filesystem probe and the EXIF decode both succeed.
func (p *Pipeline) Process(ctx context.Context, path string) (string, error) {
	logger := p.logger().With("path", path)

	probe := p.Probe
	if probe == nil {
		probe = fsprobe.Probe
	}
	info, err := probe(path)
	if err != nil {
		return "", err
	}

	dir, err := decodeFile(path)
	if err != nil {
		return "", err
	}

	rec := record.Assemble(info, Extract(dir, logger))
	data, err := rec.JSON()
	if err != nil {
		return "", fmt.Errorf("%w: encode: %w", ErrWrite, err)
	}

	out := SiblingPath(path)
	if err := os.WriteFile(out, data, 0644); err != nil {
		return "", fmt.Errorf("%w: %w", ErrWrite, err)
	}
	logger.Debug("wrote metadata", "output", out)

	for _, pub := range p.Publishers {
		if err := pub.Publish(ctx, Output{Source: path, Path: out, Record: rec}); err != nil {
			return out, fmt.Errorf("%w: %w", ErrPublish, err)
		}
	}

	return out, nil
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

func decodeFile(path string) (*exifdir.Directory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open: %w", fsprobe.ErrIO, err)
	}
	defer f.Close()

	return exifdir.Decode(bufio.NewReader(f))
}

// Extract normalizes the four supported tags. Fields that cannot be read are left nil.
func Extract(dir *exifdir.Directory, logger *slog.Logger) record.Exif {
	return record.Exif{
		Orientation:  normalize.Short(dir, exifdir.TagOrientation),
		CaptureTime:  normalize.Date(dir, exifdir.TagDateTimeOriginal, logger),
		CameraModel:  normalize.Text(dir, exifdir.TagModel),
		CameraSerial: normalize.Text(dir, exifdir.TagBodySerialNumber),
	}
}

// SiblingPath keeps the directory and stem of path and forces a .json extension. A leading
// dot does not start an extension, so ".hidden" becomes ".hidden.json".
func SiblingPath(path string) string {
	dir, base := filepath.Split(path)
	stem := base
	if ext := filepath.Ext(base); ext != base {
		stem = strings.TrimSuffix(base, ext)
	}
	return dir + stem + ".json"
}

package fsprobe

import (
	"errors"
	"fmt"
	"github.com/djherbis/times"
	"os"
	"path/filepath"
	"time"
)

// TimeLayout is RFC 3339 with millisecond precision; values are always formatted in UTC so
// the zone renders as "Z".
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

var (
	ErrInvalidPath = errors.New("invalid file provided")
	ErrIO          = errors.New("read file metadata")
)

type Info struct {
	Filename     string
	Size         uint64
	CreatedTime  string
	ModifiedTime string
}

func Probe(path string) (Info, error) {
	filename, ok := Filename(path)
	if !ok {
		return Info{}, fmt.Errorf("%w: %q has no file name", ErrInvalidPath, path)
	}

	fi, err := os.Stat(path)
	if err != nil {
		return Info{}, fmt.Errorf("%w: %w", ErrIO, err)
	}
	ts, err := times.Stat(path)
	if err != nil {
		return Info{}, fmt.Errorf("%w: %w", ErrIO, err)
	}
	if !ts.HasBirthTime() {
		return Info{}, fmt.Errorf("%w: creation time is not available on this filesystem", ErrIO)
	}

	return Info{
		Filename:     filename,
		Size:         uint64(fi.Size()),
		CreatedTime:  FormatTime(ts.BirthTime()),
		ModifiedTime: FormatTime(fi.ModTime()),
	}, nil
}

// Filename returns the final component of path. Empty paths, roots and paths ending in a
// "." or ".." component have none.
func Filename(path string) (string, bool) {
	if path == "" {
		return "", false
	}
	base := filepath.Base(path)
	switch base {
	case ".", "..", string(filepath.Separator):
		return "", false
	}
	return base, true
}

func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

package normalize

import (
	"log/slog"
	"photometa/exifdir"
	"time"
)

const (
	// ExifDateLayout is the fixed camera format YYYY:MM:DD HH:MM:SS, without a zone.
	ExifDateLayout = "2006:01:02 15:04:05"
	// OutputDateLayout renders capture times as ISO 8601 local date-times.
	OutputDateLayout = "2006-01-02T15:04:05"
)

type DateParseError struct {
	Input string
	Err   error
}

func (e *DateParseError) Error() string {
	return "invalid exif date " + `"` + e.Input + `": ` + e.Err.Error()
}

func (e *DateParseError) Unwrap() error {
	return e.Err
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(ExifDateLayout, s)
	if err != nil {
		return time.Time{}, &DateParseError{Input: s, Err: err}
	}
	return t, nil
}

func Short(dir *exifdir.Directory, tag uint16) *uint16 {
	v, ok := dir.Short(tag)
	if !ok {
		return nil
	}
	return &v
}

func Text(dir *exifdir.Directory, tag uint16) *string {
	v, ok := dir.ASCII(tag)
	if !ok {
		return nil
	}
	return &v
}

// Date reads an ASCII date tag. Unparseable values are reported to logger and treated as
// absent.
func Date(dir *exifdir.Directory, tag uint16, logger *slog.Logger) *string {
	raw, ok := dir.ASCII(tag)
	if !ok {
		return nil
	}
	return DateString(raw, logger)
}

func DateString(raw string, logger *slog.Logger) *string {
	t, err := ParseDate(raw)
	if err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("error parsing date", "input", raw, "err", err)
		return nil
	}
	out := t.Format(OutputDateLayout)
	return &out
}

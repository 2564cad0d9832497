// Package exifdir exposes typed lookups over the primary EXIF directory of a JPEG.
package exifdir

import (
	"bytes"
	"errors"
	"fmt"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
	"io"
	"unicode/utf8"
)

const (
	TagModel            uint16 = 0x0110
	TagOrientation      uint16 = 0x0112
	TagDateTimeOriginal uint16 = 0x9003
	TagBodySerialNumber uint16 = 0xA431

	tagExifIFDPointer uint16 = 0x8769
)

var ErrDecode = errors.New("decode exif")

// Directory holds the tags of IFD0 and its Exif sub-IFD. Thumbnail directories are not loaded.
type Directory struct {
	tags map[uint16]*tiff.Tag
}

func Decode(r io.Reader) (*Directory, error) {
	x, err := exif.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if x.Tiff == nil || len(x.Tiff.Dirs) == 0 {
		return nil, fmt.Errorf("%w: no image directory", ErrDecode)
	}

	d := &Directory{tags: make(map[uint16]*tiff.Tag)}
	for _, tag := range x.Tiff.Dirs[0].Tags {
		d.tags[tag.Id] = tag
	}

	ptr, ok := d.tags[tagExifIFDPointer]
	if !ok {
		return d, nil
	}
	offset, err := ptr.Int64(0)
	if err != nil {
		return nil, fmt.Errorf("%w: exif sub-IFD pointer: %w", ErrDecode, err)
	}
	raw := bytes.NewReader(x.Raw)
	if _, err := raw.Seek(offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: seek exif sub-IFD: %w", ErrDecode, err)
	}
	sub, _, err := tiff.DecodeDir(raw, x.Tiff.Order)
	if err != nil {
		return nil, fmt.Errorf("%w: exif sub-IFD: %w", ErrDecode, err)
	}
	for _, tag := range sub.Tags {
		if _, exists := d.tags[tag.Id]; !exists {
			d.tags[tag.Id] = tag
		}
	}

	return d, nil
}

func (d *Directory) Get(tag uint16) (*tiff.Tag, bool) {
	if d == nil {
		return nil, false
	}
	t, ok := d.tags[tag]
	return t, ok
}

// ASCII returns the first NUL-terminated value of an ASCII tag. Later values of a repeated
// field are dropped, as are values that are not valid UTF-8.
func (d *Directory) ASCII(tag uint16) (string, bool) {
	t, ok := d.Get(tag)
	if !ok || t.Type != tiff.DTAscii {
		return "", false
	}
	s, err := t.StringVal()
	if err != nil || !utf8.ValidString(s) {
		return "", false
	}
	return s, true
}

func (d *Directory) Short(tag uint16) (uint16, bool) {
	t, ok := d.Get(tag)
	if !ok || t.Type != tiff.DTShort || t.Count == 0 {
		return 0, false
	}
	v, err := t.Int(0)
	if err != nil {
		return 0, false
	}
	return uint16(v), true
}

// Package exiftest builds small JPEG files with hand-assembled EXIF segments for tests.
package exiftest

import (
	"encoding/binary"
)

const (
	TypeASCII = 2
	TypeShort = 3
	TypeLong  = 4

	tagExifIFD = 0x8769
)

var order = binary.LittleEndian

type Entry struct {
	Tag   uint16
	Type  uint16
	Count uint32
	Data  []byte
}

func ASCII(tag uint16, s string) Entry {
	data := append([]byte(s), 0x00)
	return Entry{Tag: tag, Type: TypeASCII, Count: uint32(len(data)), Data: data}
}

// RawASCII stores data verbatim, without appending a terminator.
func RawASCII(tag uint16, data []byte) Entry {
	return Entry{Tag: tag, Type: TypeASCII, Count: uint32(len(data)), Data: data}
}

func Short(tag uint16, v uint16) Entry {
	data := make([]byte, 2)
	order.PutUint16(data, v)
	return Entry{Tag: tag, Type: TypeShort, Count: 1, Data: data}
}

func Long(tag uint16, v uint32) Entry {
	data := make([]byte, 4)
	order.PutUint32(data, v)
	return Entry{Tag: tag, Type: TypeLong, Count: 1, Data: data}
}

// Layout describes the directories of a little-endian TIFF block. Exif entries are placed in a
// sub-IFD referenced from IFD0; IFD1 is chained after IFD0 like a thumbnail directory.
type Layout struct {
	IFD0 []Entry
	Exif []Entry
	IFD1 []Entry
}

func ifdSize(entries []Entry) int {
	return 2 + 12*len(entries) + 4
}

func (l Layout) TIFF() []byte {
	ifd0 := append([]Entry(nil), l.IFD0...)
	if len(l.Exif) > 0 {
		// placeholder, offset patched below
		ifd0 = append(ifd0, Long(tagExifIFD, 0))
	}

	ifd0Offset := 8
	exifOffset := ifd0Offset + ifdSize(ifd0)
	ifd1Offset := exifOffset
	if len(l.Exif) > 0 {
		ifd1Offset += ifdSize(l.Exif)
	}
	dataOffset := ifd1Offset
	if len(l.IFD1) > 0 {
		dataOffset += ifdSize(l.IFD1)
	}

	if len(l.Exif) > 0 {
		ifd0[len(ifd0)-1] = Long(tagExifIFD, uint32(exifOffset))
	}

	out := make([]byte, dataOffset)
	copy(out, "II")
	order.PutUint16(out[2:], 42)
	order.PutUint32(out[4:], uint32(ifd0Offset))

	var extra []byte
	writeIFD := func(at int, entries []Entry, next int) {
		order.PutUint16(out[at:], uint16(len(entries)))
		pos := at + 2
		for _, e := range entries {
			order.PutUint16(out[pos:], e.Tag)
			order.PutUint16(out[pos+2:], e.Type)
			order.PutUint32(out[pos+4:], e.Count)
			if len(e.Data) <= 4 {
				copy(out[pos+8:pos+12], e.Data)
			} else {
				order.PutUint32(out[pos+8:], uint32(dataOffset+len(extra)))
				extra = append(extra, e.Data...)
				if len(extra)%2 == 1 {
					extra = append(extra, 0x00)
				}
			}
			pos += 12
		}
		order.PutUint32(out[pos:], uint32(next))
	}

	next := 0
	if len(l.IFD1) > 0 {
		next = ifd1Offset
	}
	writeIFD(ifd0Offset, ifd0, next)
	if len(l.Exif) > 0 {
		writeIFD(exifOffset, l.Exif, 0)
	}
	if len(l.IFD1) > 0 {
		writeIFD(ifd1Offset, l.IFD1, 0)
	}

	return append(out, extra...)
}

// JPEG wraps the TIFF block in an APP1 segment between SOI and EOI markers.
func (l Layout) JPEG() []byte {
	payload := append([]byte("Exif\x00\x00"), l.TIFF()...)
	length := len(payload) + 2
	if length > 0xFFFF {
		panic("exiftest: exif payload too large")
	}

	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE1, byte(length >> 8), byte(length)}
	jpeg = append(jpeg, payload...)
	return append(jpeg, 0xFF, 0xD9)
}

// NoExifJPEG is a structurally valid JPEG without an APP1 segment.
func NoExifJPEG() []byte {
	return []byte{0xFF, 0xD8, 0xFF, 0xD9}
}

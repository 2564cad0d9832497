package record

import (
	"bytes"
	"encoding/json"
	"photometa/fsprobe"
)

// Exif holds the optional camera fields. A nil field was absent or failed to normalize.
type Exif struct {
	Orientation  *uint16
	CaptureTime  *string
	CameraModel  *string
	CameraSerial *string
}

// Record is serialized in field order.
type Record struct {
	Filename     string  `json:"filename"`
	Size         uint64  `json:"size"`
	CreatedTime  string  `json:"created_time"`
	ModifiedTime string  `json:"modified_time"`
	Orientation  *uint16 `json:"orientation,omitempty"`
	CaptureTime  *string `json:"capture_time,omitempty"`
	CameraModel  *string `json:"camera_model,omitempty"`
	CameraSerial *string `json:"camera_serial,omitempty"`
}

func Assemble(info fsprobe.Info, x Exif) Record {
	return Record{
		Filename:     info.Filename,
		Size:         info.Size,
		CreatedTime:  info.CreatedTime,
		ModifiedTime: info.ModifiedTime,
		Orientation:  x.Orientation,
		CaptureTime:  x.CaptureTime,
		CameraModel:  x.CameraModel,
		CameraSerial: x.CameraSerial,
	}
}

// JSON renders r indented by two spaces, with text fields written verbatim.
func (r Record) JSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

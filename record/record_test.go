package record

import (
	"encoding/json"
	"github.com/bradleyjkemp/cupaloy/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"photometa/fsprobe"
	"strings"
	"testing"
)

var testInfo = fsprobe.Info{
	Filename:     "IMG_0001.jpg",
	Size:         2048,
	CreatedTime:  "2023-06-01T14:22:05.123Z",
	ModifiedTime: "2023-06-02T09:00:00.000Z",
}

func ptr[T any](v T) *T {
	return &v
}

func TestAssembleAllFields(t *testing.T) {
	rec := Assemble(testInfo, Exif{
		Orientation:  ptr(uint16(6)),
		CaptureTime:  ptr("2023-06-01T14:22:05"),
		CameraModel:  ptr("Canon EOS R5"),
		CameraSerial: ptr("012345678901"),
	})

	out, err := rec.JSON()
	require.NoError(t, err)
	cupaloy.SnapshotT(t, string(out))
}

func TestAssembleFilesystemOnly(t *testing.T) {
	out, err := Assemble(testInfo, Exif{}).JSON()
	require.NoError(t, err)
	cupaloy.SnapshotT(t, string(out))
}

func TestAssembleOmitsAbsentFieldsIndependently(t *testing.T) {
	table := []struct {
		name    string
		exif    Exif
		present []string
	}{
		{name: "orientation only", exif: Exif{Orientation: ptr(uint16(1))}, present: []string{"orientation"}},
		{name: "capture time only", exif: Exif{CaptureTime: ptr("2023-06-01T14:22:05")}, present: []string{"capture_time"}},
		{name: "model and serial", exif: Exif{CameraModel: ptr("X100V"), CameraSerial: ptr("S1")}, present: []string{"camera_model", "camera_serial"}},
		{name: "empty model is still present", exif: Exif{CameraModel: ptr("")}, present: []string{"camera_model"}},
		{name: "zero orientation is still present", exif: Exif{Orientation: ptr(uint16(0))}, present: []string{"orientation"}},
	}

	for _, tc := range table {
		t.Run(tc.name, func(t *testing.T) {
			out, err := Assemble(testInfo, tc.exif).JSON()
			require.NoError(t, err)

			var got map[string]any
			require.NoError(t, json.Unmarshal(out, &got))

			expected := append([]string{"filename", "size", "created_time", "modified_time"}, tc.present...)
			keys := make([]string, 0, len(got))
			for k := range got {
				keys = append(keys, k)
			}
			assert.ElementsMatch(t, expected, keys)
			assert.Equal(t, "IMG_0001.jpg", got["filename"])
			assert.Equal(t, float64(2048), got["size"])
		})
	}
}

func TestJSONWritesTextVerbatim(t *testing.T) {
	out, err := Assemble(testInfo, Exif{
		CameraModel:  ptr("A&B <Mk II>"),
		CameraSerial: ptr("x>y"),
	}).JSON()
	require.NoError(t, err)

	assert.Contains(t, string(out), `"camera_model": "A&B <Mk II>"`)
	assert.Contains(t, string(out), `"camera_serial": "x>y"`)
	assert.NotContains(t, string(out), `\u0026`)
	assert.True(t, strings.HasSuffix(string(out), "}"), "no trailing newline")
}

package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"github.com/bradleyjkemp/cupaloy/v2"
	"github.com/djherbis/times"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"photometa/exifdir"
	"photometa/exiftest"
	"photometa/fsprobe"
	"testing"
)

var fullLayout = exiftest.Layout{
	IFD0: []exiftest.Entry{
		exiftest.ASCII(exifdir.TagModel, "Canon EOS R5"),
		exiftest.Short(exifdir.TagOrientation, 6),
	},
	Exif: []exiftest.Entry{
		exiftest.ASCII(exifdir.TagDateTimeOriginal, "2023:06:01 14:22:05"),
		exiftest.ASCII(exifdir.TagBodySerialNumber, "012345678901"),
	},
}

func stubProbe(path string) (fsprobe.Info, error) {
	name, ok := fsprobe.Filename(path)
	if !ok {
		return fsprobe.Info{}, fsprobe.ErrInvalidPath
	}
	return fsprobe.Info{
		Filename:     name,
		Size:         4096,
		CreatedTime:  "2023-06-01T14:22:05.123Z",
		ModifiedTime: "2023-06-02T08:00:00.000Z",
	}, nil
}

func testPipeline(logger *slog.Logger, publishers ...Publisher) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Pipeline{Logger: logger, Publishers: publishers, Probe: stubProbe}
}

func writeFixture(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func readRecord(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestProcessAllTags(t *testing.T) {
	src := writeFixture(t, "IMG_0001.jpg", fullLayout.JPEG())

	out, err := testPipeline(nil).Process(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(src), "IMG_0001.json"), out)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	cupaloy.SnapshotT(t, string(data))
}

func TestProcessMissingTags(t *testing.T) {
	table := []struct {
		name     string
		layout   exiftest.Layout
		expected []string
	}{
		{
			name:     "no camera tags",
			layout:   exiftest.Layout{IFD0: []exiftest.Entry{exiftest.ASCII(0x010F, "Canon")}},
			expected: nil,
		},
		{
			name: "ifd0 only",
			layout: exiftest.Layout{IFD0: []exiftest.Entry{
				exiftest.ASCII(exifdir.TagModel, "X100V"),
				exiftest.Short(exifdir.TagOrientation, 1),
			}},
			expected: []string{"orientation", "camera_model"},
		},
		{
			name: "exif sub-ifd only",
			layout: exiftest.Layout{
				IFD0: []exiftest.Entry{exiftest.ASCII(0x010F, "Fujifilm")},
				Exif: []exiftest.Entry{
					exiftest.ASCII(exifdir.TagDateTimeOriginal, "2020:01:02 03:04:05"),
					exiftest.ASCII(exifdir.TagBodySerialNumber, "SN1"),
				},
			},
			expected: []string{"capture_time", "camera_serial"},
		},
		{
			name: "mistyped orientation",
			layout: exiftest.Layout{IFD0: []exiftest.Entry{
				exiftest.Long(exifdir.TagOrientation, 6),
				exiftest.ASCII(exifdir.TagModel, "X100V"),
			}},
			expected: []string{"camera_model"},
		},
	}

	for _, tc := range table {
		t.Run(tc.name, func(t *testing.T) {
			src := writeFixture(t, "photo.jpg", tc.layout.JPEG())
			out, err := testPipeline(nil).Process(context.Background(), src)
			require.NoError(t, err)

			got := readRecord(t, out)
			expected := append([]string{"filename", "size", "created_time", "modified_time"}, tc.expected...)
			assert.ElementsMatch(t, expected, keys(got))
			assert.Equal(t, "photo.jpg", got["filename"])
			assert.Equal(t, float64(4096), got["size"])
			assert.Equal(t, "2023-06-01T14:22:05.123Z", got["created_time"])
			assert.Equal(t, "2023-06-02T08:00:00.000Z", got["modified_time"])
		})
	}
}

func TestProcessBadDate(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	src := writeFixture(t, "photo.jpg", exiftest.Layout{
		IFD0: []exiftest.Entry{exiftest.ASCII(exifdir.TagModel, "X100V")},
		Exif: []exiftest.Entry{exiftest.ASCII(exifdir.TagDateTimeOriginal, "not-a-date")},
	}.JPEG())

	out, err := testPipeline(logger).Process(context.Background(), src)
	require.NoError(t, err)

	got := readRecord(t, out)
	assert.NotContains(t, got, "capture_time")
	assert.Equal(t, "X100V", got["camera_model"])
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "not-a-date")
}

func TestProcessDecodeFailureWritesNothing(t *testing.T) {
	table := []struct {
		name string
		data []byte
	}{
		{name: "not a jpeg", data: []byte("definitely not an image")},
		{name: "jpeg without exif", data: exiftest.NoExifJPEG()},
	}

	for _, tc := range table {
		t.Run(tc.name, func(t *testing.T) {
			src := writeFixture(t, "broken.jpg", tc.data)
			_, err := testPipeline(nil).Process(context.Background(), src)
			assert.ErrorIs(t, err, exifdir.ErrDecode)

			_, statErr := os.Stat(SiblingPath(src))
			assert.True(t, errors.Is(statErr, os.ErrNotExist), "no json may be written")
		})
	}
}

func TestProcessDecodeFailureKeepsPreviousOutput(t *testing.T) {
	src := writeFixture(t, "broken.jpg", []byte("garbage"))
	previous := []byte(`{"filename": "broken.jpg"}`)
	require.NoError(t, os.WriteFile(SiblingPath(src), previous, 0644))

	_, err := testPipeline(nil).Process(context.Background(), src)
	require.ErrorIs(t, err, exifdir.ErrDecode)

	data, err := os.ReadFile(SiblingPath(src))
	require.NoError(t, err)
	assert.Equal(t, previous, data)
}

func TestProcessIsIdempotent(t *testing.T) {
	src := writeFixture(t, "photo.jpeg", fullLayout.JPEG())
	require.NoError(t, os.WriteFile(SiblingPath(src), []byte("stale output"), 0644))

	p := testPipeline(nil)
	out, err := p.Process(context.Background(), src)
	require.NoError(t, err)
	first, err := os.ReadFile(out)
	require.NoError(t, err)

	out, err = p.Process(context.Background(), src)
	require.NoError(t, err)
	second, err := os.ReadFile(out)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotContains(t, string(second), "stale output")
}

func TestProcessProbeFailure(t *testing.T) {
	p := testPipeline(nil)
	p.Probe = func(string) (fsprobe.Info, error) {
		return fsprobe.Info{}, fsprobe.ErrInvalidPath
	}

	src := writeFixture(t, "photo.jpg", fullLayout.JPEG())
	_, err := p.Process(context.Background(), src)
	assert.ErrorIs(t, err, fsprobe.ErrInvalidPath)

	_, statErr := os.Stat(SiblingPath(src))
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestProcessOpenFailure(t *testing.T) {
	src := filepath.Join(t.TempDir(), "missing.jpg")
	_, err := testPipeline(nil).Process(context.Background(), src)
	assert.ErrorIs(t, err, fsprobe.ErrIO)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestProcessWriteFailure(t *testing.T) {
	src := writeFixture(t, "photo.jpg", fullLayout.JPEG())
	// a directory squatting on the output path makes the write fail regardless of privileges
	require.NoError(t, os.Mkdir(SiblingPath(src), 0755))

	_, err := testPipeline(nil).Process(context.Background(), src)
	assert.ErrorIs(t, err, ErrWrite)
}

func TestProcessPublishes(t *testing.T) {
	var got []Output
	pub := PublisherFunc(func(_ context.Context, out Output) error {
		got = append(got, out)
		return nil
	})

	src := writeFixture(t, "photo.jpg", fullLayout.JPEG())
	out, err := testPipeline(nil, pub, pub).Process(context.Background(), src)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, src, got[0].Source)
	assert.Equal(t, out, got[0].Path)
	assert.Equal(t, "photo.jpg", got[0].Record.Filename)
	require.NotNil(t, got[0].Record.CameraModel)
	assert.Equal(t, "Canon EOS R5", *got[0].Record.CameraModel)
}

func TestProcessPublishFailure(t *testing.T) {
	boom := errors.New("catalog unavailable")
	calls := 0
	failing := PublisherFunc(func(context.Context, Output) error {
		calls++
		return boom
	})
	never := PublisherFunc(func(context.Context, Output) error {
		t.Error("publishers after a failure must not run")
		return nil
	})

	src := writeFixture(t, "photo.jpg", fullLayout.JPEG())
	out, err := testPipeline(nil, failing, never).Process(context.Background(), src)
	assert.ErrorIs(t, err, ErrPublish)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)

	_, statErr := os.Stat(out)
	assert.NoError(t, statErr, "the local record is kept when publishing fails")
}

func TestProcessWithFilesystemProbe(t *testing.T) {
	src := writeFixture(t, "photo.jpg", fullLayout.JPEG())
	ts, err := times.Stat(src)
	require.NoError(t, err)
	if !ts.HasBirthTime() {
		t.Skip("filesystem does not report creation times")
	}

	p := &Pipeline{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	out, err := p.Process(context.Background(), src)
	require.NoError(t, err)

	got := readRecord(t, out)
	assert.Len(t, got, 8)
	assert.Equal(t, float64(len(fullLayout.JPEG())), got["size"])
}

func TestSiblingPath(t *testing.T) {
	table := []struct {
		in       string
		expected string
	}{
		{in: "IMG_0001.jpg", expected: "IMG_0001.json"},
		{in: "/srv/photos/IMG_0001.JPEG", expected: "/srv/photos/IMG_0001.json"},
		{in: "./a.b.jpg", expected: "./a.b.json"},
		{in: "photos/noext", expected: "photos/noext.json"},
		{in: "photos/.hidden", expected: "photos/.hidden.json"},
	}

	for _, tc := range table {
		assert.Equal(t, tc.expected, SiblingPath(tc.in), "input %q", tc.in)
	}
}

package imgio

import (
	"bytes"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func encodeTestImage(t *testing.T, ff FileFormat, data []byte, width, height int, in PixelFormat) []byte {
	t.Helper()
	buf := NewResizableBuffer(nil)
	if err := DefaultRegistry().Write(buf, ff, data, width, height, in, InvalidFormat, nil); err != nil {
		t.Fatalf("failed to write %s: %v", ff, err)
	}
	return buf.Bytes()
}

func TestDetect(t *testing.T) {
	reg := DefaultRegistry()
	for _, ff := range reg.Formats() {
		in, pixel := RGB8U, []byte{10, 20, 30}
		if ff == EXR || ff == HDR {
			in = RGB32F
			pixel = f32s(0.5, 0.25, 1)
		}
		b := encodeTestImage(t, ff, pixel, 1, 1, in)

		// Prefix some garbage: detection starts at the current position.
		r := bytes.NewReader(append([]byte("junk"), b...))
		if _, err := r.Seek(4, io.SeekStart); err != nil {
			t.Fatal(err)
		}
		got, err := reg.Detect(r)
		if err != nil {
			t.Errorf("%s: %v", ff, err)
			continue
		}
		if got != ff {
			t.Errorf("expected %s; got %s", ff, got)
		}
		if pos, _ := r.Seek(0, io.SeekCurrent); pos != 4 {
			t.Errorf("%s: position not restored: %d", ff, pos)
		}
	}
}

func TestDetectErrors(t *testing.T) {
	reg := DefaultRegistry()

	if _, err := reg.Detect(bytes.NewReader(nil)); !errors.Is(err, ErrOpenFailedEmptyInput) {
		t.Errorf("empty input: expected %v; got %v", ErrOpenFailedEmptyInput, err)
	}

	r := NewMemoryBuffer([]byte("Hello, this is certainly not an image file."))
	r.Seek(3, io.SeekStart)
	if _, err := reg.Detect(r); !errors.Is(err, ErrUnsupportedFileType) {
		t.Errorf("text input: expected %v; got %v", ErrUnsupportedFileType, err)
	}
	if r.Tell() != 3 {
		t.Errorf("position not restored after failure: %d", r.Tell())
	}

	// At the end of a stream there is nothing left to detect.
	r.Seek(0, io.SeekEnd)
	if _, err := reg.Detect(r); CodeOf(err) != OpenFailedEmptyInput {
		t.Errorf("end of stream: expected empty input; got %v", err)
	}

	if _, _, err := reg.Open(bytes.NewReader([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0})); CodeOf(err) != LoadFailed {
		t.Errorf("truncated jpeg: expected load failed; got %v", err)
	}
}

func TestRegistryFormats(t *testing.T) {
	expected := []FileFormat{PNG, JPEG, TIFF, HDR, TGA}
	if HalfFloatSupported {
		expected = append([]FileFormat{EXR}, expected...)
	}
	reg := DefaultRegistry()
	if formats := reg.Formats(); !reflect.DeepEqual(formats, expected) {
		t.Errorf("expected %v; got %v", expected, formats)
	}
	if _, ok := reg.Codec(UnknownFileFormat); ok {
		t.Error("unknown format has no codec")
	}
	if err := reg.Write(io.Discard, UnknownFileFormat, []byte{0}, 1, 1, R8U, R8U, nil); !errors.Is(err, ErrUnsupportedFileType) {
		t.Errorf("expected %v; got %v", ErrUnsupportedFileType, err)
	}

	if reg := NewRegistry(pngCodec{}); !reflect.DeepEqual(reg.Formats(), []FileFormat{PNG}) {
		t.Errorf("unexpected formats %v", reg.Formats())
	}
}

func TestRegistryClose(t *testing.T) {
	reg := DefaultRegistry()
	b := encodeTestImage(t, PNG, []byte{1, 2, 3}, 1, 1, RGB8U)
	if err := reg.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Detect(bytes.NewReader(b)); !errors.Is(err, ErrUnsupportedFileType) {
		t.Errorf("detect: expected %v; got %v", ErrUnsupportedFileType, err)
	}
	if _, _, err := reg.Open(bytes.NewReader(b)); !errors.Is(err, ErrUnsupportedFileType) {
		t.Errorf("open: expected %v; got %v", ErrUnsupportedFileType, err)
	}
	if err := reg.Write(io.Discard, PNG, []byte{1, 2, 3}, 1, 1, RGB8U, RGB8U, nil); !errors.Is(err, ErrUnsupportedFileType) {
		t.Errorf("write: expected %v; got %v", ErrUnsupportedFileType, err)
	}
	if formats := reg.Formats(); len(formats) != 0 {
		t.Errorf("closed registry lists %v", formats)
	}
	if reg.IsFormatSupported(PNG, RGB8U) {
		t.Error("closed registry supports nothing")
	}
}

func TestLoad(t *testing.T) {
	b := encodeTestImage(t, PNG, []byte{255, 0, 0, 0, 255, 0}, 2, 1, RGB8U)

	p, ff, err := Load(bytes.NewReader(b), InvalidFormat)
	if err != nil {
		t.Fatal(err)
	}
	if ff != PNG || p.Format != RGB8U || p.Width != 2 || p.Height != 1 {
		t.Errorf("unexpected image %s %s %dx%d", ff, p.Format, p.Width, p.Height)
	}

	p, _, err = Load(bytes.NewReader(b), RGB32F)
	if err != nil {
		t.Fatal(err)
	}
	if expected := f32s(1, 0, 0, 0, 1, 0); !bytes.Equal(p.Data, expected) {
		t.Errorf("expected %v; got %v", expected, p.Data)
	}

	if _, _, err := Load(bytes.NewReader(b), PixelFormat(0xff)); !errors.Is(err, ErrBadFormat) {
		t.Errorf("expected %v; got %v", ErrBadFormat, err)
	}
}

func TestSaveFile(t *testing.T) {
	dir := t.TempDir()
	p := NewPixels(3, 2, RGBA8U)
	for i := range p.Data {
		p.Data[i] = byte(i * 10)
	}

	for _, name := range []string{"a.png", "a.TIF", "a.tga"} {
		file := filepath.Join(dir, name)
		if err := SaveFile(file, p, InvalidFormat, nil); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		q, _, err := DecodeFile(file, RGBA8U)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if q.Width != 3 || q.Height != 2 {
			t.Errorf("%s: unexpected size %dx%d", name, q.Width, q.Height)
		}
	}

	if err := SaveFile(filepath.Join(dir, "a.gif"), p, InvalidFormat, nil); !errors.Is(err, ErrUnsupportedFileType) {
		t.Errorf("gif: expected %v; got %v", ErrUnsupportedFileType, err)
	}
	if _, _, err := DecodeFile(filepath.Join(dir, "missing.png"), InvalidFormat); !errors.Is(err, ErrLoadFailed) {
		t.Errorf("missing file: expected %v; got %v", ErrLoadFailed, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "empty.png"), nil, 0644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := DecodeFile(filepath.Join(dir, "empty.png"), InvalidFormat); !errors.Is(err, ErrOpenFailedEmptyInput) {
		t.Errorf("empty file: expected %v; got %v", ErrOpenFailedEmptyInput, err)
	}
}

func TestWriteErrors(t *testing.T) {
	reg := DefaultRegistry()
	testCase := []struct {
		name          string
		data          []byte
		width, height int
		in            PixelFormat
		code          Code
	}{
		{"invalid input format", []byte{0}, 1, 1, InvalidFormat, BadFormat},
		{"zero width", []byte{0}, 0, 1, R8U, InvalidArgument},
		{"short buffer", []byte{0, 0}, 1, 1, RGB8U, InvalidArgument},
		{"size overflow", []byte{0}, math.MaxInt / 2, 3, R8U, InvalidArgument},
	}
	for _, ff := range reg.Formats() {
		for _, tc := range testCase {
			if err := reg.Write(io.Discard, ff, tc.data, tc.width, tc.height, tc.in, InvalidFormat, nil); CodeOf(err) != tc.code {
				t.Errorf("%s %s: expected %s; got %v", ff, tc.name, tc.code, err)
			}
		}
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteFailed(t *testing.T) {
	err := DefaultRegistry().Write(failingWriter{}, PNG, []byte{1, 2, 3}, 1, 1, RGB8U, InvalidFormat, nil)
	if CodeOf(err) != WriteFailed {
		t.Errorf("expected write failed; got %v", err)
	}
}

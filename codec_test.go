package imgio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

// roundTrip writes data as ff and opens the result.
func roundTrip(t *testing.T, ff FileFormat, data []byte, width, height int, in, out PixelFormat, profile *ColourProfile, opts ...EncodeOption) Image {
	t.Helper()
	reg := DefaultRegistry()
	buf := NewResizableBuffer(nil)
	if err := reg.Write(buf, ff, data, width, height, in, out, profile, opts...); err != nil {
		t.Fatalf("%s write %s: %v", ff, in, err)
	}
	if _, err := buf.Seek(0, 0); err != nil {
		t.Fatal(err)
	}
	img, got, err := reg.Open(buf)
	if err != nil {
		t.Fatalf("%s open %s: %v", ff, in, err)
	}
	if got != ff {
		t.Fatalf("expected %s; got %s", ff, got)
	}
	info := img.Info()
	if info.Width != width || info.Height != height {
		t.Fatalf("%s: expected %dx%d; got %dx%d", ff, width, height, info.Width, info.Height)
	}
	return img
}

func decodeAll(t *testing.T, img Image, force PixelFormat) []byte {
	t.Helper()
	info := img.Info()
	f := force
	if f == InvalidFormat {
		f = info.DecodeFormat
	}
	dst := make([]byte, f.BufferSize(info.Width, info.Height))
	if err := img.Decode(dst, force); err != nil {
		t.Fatal(err)
	}
	return dst
}

func testPattern(f PixelFormat, width, height int) []byte {
	b := make([]byte, f.BufferSize(width, height))
	for i := range b {
		b[i] = byte(i*37 + i/7)
	}
	return b
}

func TestLosslessRoundTrip(t *testing.T) {
	testCase := []struct {
		ff     FileFormat
		format PixelFormat
	}{
		{PNG, R8U},
		{PNG, RGB8U},
		{PNG, RGBA8U},
		{PNG, R16U},
		{PNG, RGB16U},
		{PNG, RGBA16U},
		{TGA, R8U},
		{TGA, RGB8U},
		{TIFF, R8U},
		{TIFF, R16U},
		{TIFF, RGBA16U},
		{TIFF, RGBA8U},
	}
	for _, tc := range testCase {
		// The pattern gives RGBA images a non-opaque alpha channel.
		data := testPattern(tc.format, 5, 3)
		img := roundTrip(t, tc.ff, data, 5, 3, tc.format, InvalidFormat, nil)
		if f := img.Info().DecodeFormat; f != tc.format {
			t.Errorf("%s: expected decode format %s; got %s", tc.ff, tc.format, f)
			continue
		}
		if got := decodeAll(t, img, InvalidFormat); !bytes.Equal(got, data) {
			t.Errorf("%s %s: pixels differ", tc.ff, tc.format)
		}
	}
}

func TestPNG(t *testing.T) {
	// Two channel images are written as RGB.
	img := roundTrip(t, PNG, []byte{10, 20, 30, 40}, 2, 1, RG8U, InvalidFormat, nil)
	if f := img.Info().DecodeFormat; f != RGB8U {
		t.Fatalf("expected rgb8u; got %s", f)
	}
	if got, expected := decodeAll(t, img, InvalidFormat), []byte{10, 20, 0, 30, 40, 0}; !bytes.Equal(got, expected) {
		t.Errorf("expected %v; got %v", expected, got)
	}

	// Floats are written as 16 bit.
	img = roundTrip(t, PNG, f32s(1, 0.5, 0), 1, 1, RGB32F, InvalidFormat, nil)
	if f := img.Info().DecodeFormat; f != RGB16U {
		t.Fatalf("expected rgb16u; got %s", f)
	}
	if got, expected := decodeAll(t, img, InvalidFormat), u16s(65535, 32768, 0); !bytes.Equal(got, expected) {
		t.Errorf("expected %v; got %v", expected, got)
	}

	// A requested supported format wins.
	img = roundTrip(t, PNG, []byte{1, 2, 3}, 1, 1, RGB8U, R8U, nil)
	if f := img.Info().DecodeFormat; f != R8U {
		t.Errorf("expected r8u; got %s", f)
	}
	img = roundTrip(t, PNG, []byte{1, 2, 3}, 1, 1, RGB8U, RGB8U, nil, PNGCompressionLevel(0), PNGFilter(PNGFilterNone))
	if got := decodeAll(t, img, InvalidFormat); !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Errorf("expected [1 2 3]; got %v", got)
	}
}

func TestPNGStoredFormat(t *testing.T) {
	// RGBA8U is written as such, but a fully opaque alpha channel is not stored.
	if f := WriteFormat(PNG, RGBA8U, InvalidFormat); f != RGBA8U {
		t.Fatalf("expected rgba8u; got %s", f)
	}
	img := roundTrip(t, PNG, []byte{1, 2, 3, 255, 4, 5, 6, 255}, 2, 1, RGBA8U, InvalidFormat, nil)
	if f := img.Info().DecodeFormat; f != RGB8U {
		t.Errorf("expected rgb8u; got %s", f)
	}

	// Filter flags do not change the output.
	data := testPattern(RGB8U, 8, 8)
	encode := func(opts ...EncodeOption) []byte {
		buf := NewResizableBuffer(nil)
		if err := DefaultRegistry().Write(buf, PNG, data, 8, 8, RGB8U, InvalidFormat, nil, opts...); err != nil {
			t.Fatal(err)
		}
		return buf.Bytes()
	}
	if !bytes.Equal(encode(), encode(PNGFilter(PNGFilterPaeth))) {
		t.Error("filter flags changed the output")
	}
}

func TestPNGColourProfile(t *testing.T) {
	icc := bytes.Repeat([]byte("profile data "), 100)
	img := roundTrip(t, PNG, testPattern(RGB8U, 4, 4), 4, 4, RGB8U, InvalidFormat, &ColourProfile{Name: "Display P3", Data: icc})
	profile := img.ColourProfile()
	if profile.Name != "Display P3" || !bytes.Equal(profile.Data, icc) {
		t.Errorf("profile not preserved: %q, %d bytes", profile.Name, len(profile.Data))
	}
	if n := img.Info().ColourProfileLen; n != len(icc) {
		t.Errorf("expected profile length %d; got %d", len(icc), n)
	}

	// RGB to gray drops the profile.
	img = roundTrip(t, PNG, testPattern(RGB8U, 4, 4), 4, 4, RGB8U, R8U, &ColourProfile{Name: "P3", Data: icc})
	if profile := img.ColourProfile(); profile.Name != NoProfileName || len(profile.Data) != 0 {
		t.Errorf("expected no profile; got %q, %d bytes", profile.Name, len(profile.Data))
	}
	if n := img.Info().ColourProfileLen; n != 0 {
		t.Errorf("expected profile length 0; got %d", n)
	}
}

func TestJPEG(t *testing.T) {
	const width, height = 16, 16
	data := make([]byte, RGB8U.BufferSize(width, height))
	for i := 0; i < len(data); i += 3 {
		data[i], data[i+1], data[i+2] = 200, 100, 50
	}
	icc := bytes.Repeat([]byte{0xAB}, 70000) // needs two APP2 segments
	img := roundTrip(t, JPEG, data, width, height, RGB8U, InvalidFormat, &ColourProfile{Data: icc}, Quality(90))
	if f := img.Info().DecodeFormat; f != RGB8U {
		t.Fatalf("expected rgb8u; got %s", f)
	}
	if profile := img.ColourProfile(); profile.Name != "ICC_PROFILE" || !bytes.Equal(profile.Data, icc) {
		t.Errorf("profile not preserved: %q, %d bytes", profile.Name, len(profile.Data))
	}
	got := decodeAll(t, img, InvalidFormat)
	for i, v := range got {
		if d := int(v) - int(data[i]); d < -8 || d > 8 {
			t.Fatalf("sample %d: expected about %d; got %d", i, data[i], v)
		}
	}

	// Alpha is dropped.
	img = roundTrip(t, JPEG, testPattern(RGBA8U, 8, 8), 8, 8, RGBA8U, InvalidFormat, nil)
	if f := img.Info().DecodeFormat; f != RGB8U {
		t.Errorf("expected rgb8u; got %s", f)
	}
	img = roundTrip(t, JPEG, testPattern(R8U, 8, 8), 8, 8, R8U, InvalidFormat, nil)
	if f := img.Info().DecodeFormat; f != R8U {
		t.Errorf("expected r8u; got %s", f)
	}
}

func TestTGA(t *testing.T) {
	// Opaque alpha survives whatever image type the decoder returns.
	data := testPattern(RGBA8U, 4, 3)
	for i := 3; i < len(data); i += 4 {
		data[i] = 0xff
	}
	img := roundTrip(t, TGA, data, 4, 3, RGBA8U, InvalidFormat, nil)
	if f := img.Info().DecodeFormat; f != RGBA8U {
		t.Fatalf("expected rgba8u; got %s", f)
	}
	if got := decodeAll(t, img, InvalidFormat); !bytes.Equal(got, data) {
		t.Error("pixels differ")
	}

	img = roundTrip(t, TGA, u16s(0, 65535), 2, 1, R16U, InvalidFormat, nil)
	if got := decodeAll(t, img, InvalidFormat); !bytes.Equal(got, []byte{0, 255}) {
		t.Errorf("expected [0 255]; got %v", got)
	}

	if err := DefaultRegistry().Write(NewResizableBuffer(nil), TGA, make([]byte, 70000), 70000, 1, R8U, InvalidFormat, nil); CodeOf(err) != InvalidArgument {
		t.Errorf("expected invalid argument; got %v", err)
	}
}

func TestTIFF(t *testing.T) {
	for _, c := range []TIFFCompression{TIFFUncompressed, TIFFDeflate} {
		data := testPattern(RGB8U, 6, 4)
		img := roundTrip(t, TIFF, data, 6, 4, RGB8U, InvalidFormat, nil, TIFFCompressionType(c))
		if f := img.Info().DecodeFormat; f != RGBA8U {
			t.Fatalf("expected rgba8u; got %s", f)
		}
		got := decodeAll(t, img, RGB8U)
		if !bytes.Equal(got, data) {
			t.Errorf("compression %d: pixels differ", c)
		}
	}

	img := roundTrip(t, TIFF, f32s(0, 1), 2, 1, R32F, InvalidFormat, nil)
	if f := img.Info().DecodeFormat; f != R16U {
		t.Fatalf("expected r16u; got %s", f)
	}
	if got := decodeAll(t, img, InvalidFormat); !bytes.Equal(got, u16s(0, 65535)) {
		t.Errorf("expected [0 65535]; got %v", got)
	}
}

func TestHDR(t *testing.T) {
	src := []float32{1, 0.5, 0.25, 4, 2, 1, 0, 0, 0, 0.125, 0.125, 0.125}
	img := roundTrip(t, HDR, f32s(src...), 2, 2, RGB32F, InvalidFormat, nil)
	info := img.Info()
	if info.DecodeFormat != RGB32F || info.NumChannels != 3 || info.Kind != KindFloat {
		t.Fatalf("unexpected info %+v", info)
	}
	got := decodeAll(t, img, InvalidFormat)
	for i, expected := range src {
		v := math.Float32frombits(binary.LittleEndian.Uint32(got[i*4:]))
		if math.Abs(float64(v-expected)) > 0.02*float64(expected)+1e-3 {
			t.Errorf("sample %d: expected %v; got %v", i, expected, v)
		}
	}

	// Negative values are stored as 0 and 8 bit input is widened.
	img = roundTrip(t, HDR, f32s(-1, 0.5, 0.5, 1), 1, 1, RGBA32F, InvalidFormat, nil)
	got = decodeAll(t, img, InvalidFormat)
	if v := math.Float32frombits(binary.LittleEndian.Uint32(got)); v < 0 || v > 0.01 {
		t.Errorf("expected about 0; got %v", v)
	}
	img = roundTrip(t, HDR, []byte{255, 255, 255}, 1, 1, RGB8U, InvalidFormat, nil)
	if f := img.Info().DecodeFormat; f != RGB32F {
		t.Errorf("expected rgb32f; got %s", f)
	}
}

func TestDecodeOnce(t *testing.T) {
	img := roundTrip(t, PNG, []byte{1, 2, 3}, 1, 1, RGB8U, InvalidFormat, nil)
	info := img.Info()
	if info.NumChannels != 3 || info.BytesPerChannel != 1 || info.Kind != KindInt {
		t.Errorf("unexpected info %+v", info)
	}
	if profile := img.ColourProfile(); profile.Name != NoProfileName || len(profile.Data) != 0 {
		t.Errorf("expected no profile; got %+v", profile)
	}

	if err := img.Decode(make([]byte, 1), InvalidFormat); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("short buffer: expected %v; got %v", ErrInvalidArgument, err)
	}
	dst := make([]byte, 4)
	if err := img.Decode(dst, RGBA8U); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(dst, []byte{1, 2, 3, 255}) {
		t.Errorf("expected [1 2 3 255]; got %v", dst)
	}
	if err := img.Decode(dst, RGBA8U); !errors.Is(err, ErrLoadFailed) {
		t.Errorf("second decode: expected %v; got %v", ErrLoadFailed, err)
	}

	img = roundTrip(t, PNG, []byte{1, 2, 3}, 1, 1, RGB8U, InvalidFormat, nil)
	if err := img.Close(); err != nil {
		t.Fatal(err)
	}
	if err := img.Decode(dst, RGBA8U); !errors.Is(err, ErrLoadFailed) {
		t.Errorf("decode after close: expected %v; got %v", ErrLoadFailed, err)
	}
}

func TestProfileData(t *testing.T) {
	profile := &ColourProfile{Name: "p", Data: []byte{1}}
	testCase := []struct {
		in, out PixelFormat
		keep    bool
	}{
		{RGB8U, RGBA16U, true},
		{RGBA32F, RGB8U, true},
		{R8U, R16U, true},
		{R8U, RGB8U, false},
		{RGB8U, R8U, false},
		{RG8U, RGB8U, false},
	}
	for _, tc := range testCase {
		if keep := profileData(profile, tc.in, tc.out) != nil; keep != tc.keep {
			t.Errorf("%s -> %s: expected %v; got %v", tc.in, tc.out, tc.keep, keep)
		}
	}
	if profileData(nil, RGB8U, RGB8U) != nil {
		t.Error("nil profile")
	}
}

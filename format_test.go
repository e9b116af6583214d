package imgio

import (
	"flag"
	"io"
	"testing"
)

func TestFormatFromExtension(t *testing.T) {
	testCase := []struct {
		ext    string
		format FileFormat
	}{
		{"Jpg", JPEG},
		{".jpeg", JPEG},
		{"TIFF", TIFF},
		{"tif", TIFF},
		{"exr", EXR},
		{"HDR", HDR},
		{"tga", TGA},
		{"png", PNG},
	}
	for _, tc := range testCase {
		f, err := FormatFromExtension(tc.ext)
		if err != nil {
			t.Errorf("%s format want no error: %v", tc.ext, err)
		}
		if f != tc.format {
			t.Errorf("%s: expected %s; got %s", tc.ext, tc.format, f)
		}
	}
	if _, err := FormatFromExtension("txt"); err == nil {
		t.Fatal("txt format want error")
	}
	if f, err := FormatFromFilename("dir.v2/photo.JPG"); err != nil || f != JPEG {
		t.Errorf("expected JPEG; got %s, %v", f, err)
	}
	if _, err := FormatFromFilename("README"); err == nil {
		t.Error("filename without extension want error")
	}
}

func TestFileFormatText(t *testing.T) {
	if s := UnknownFileFormat.String(); s != "unknown" {
		t.Errorf("expected unknown; got %s", s)
	}
	if _, err := UnknownFileFormat.MarshalText(); err == nil {
		t.Error("marshal unknown format want error")
	}
	if ext := JPEG.Ext(); ext != "jpg" {
		t.Errorf("expected jpg; got %s", ext)
	}

	testCase1 := []struct {
		argument string
		format   FileFormat
	}{
		{"Jpg", JPEG},
		{"TIFF", TIFF},
		{"exr", EXR},
		{"txt", UnknownFileFormat},
	}
	for _, tc := range testCase1 {
		f := flag.NewFlagSet("test", flag.ContinueOnError)
		f.SetOutput(io.Discard)
		var format FileFormat
		f.TextVar(&format, "f", UnknownFileFormat, "")
		f.Parse(append([]string{"-f"}, tc.argument))
		if format != tc.format {
			t.Errorf("expected %s format; got %s", tc.format, format)
		}
	}

	testCase2 := []struct {
		argument    string
		compression TIFFCompression
	}{
		{"none", TIFFUncompressed},
		{"Deflate", TIFFDeflate},
		{"lzw", TIFFCompression(-1)},
	}
	for _, tc := range testCase2 {
		f := flag.NewFlagSet("test", flag.ContinueOnError)
		f.SetOutput(io.Discard)
		var compression TIFFCompression
		f.TextVar(&compression, "c", TIFFCompression(-1), "")
		f.Parse(append([]string{"-c"}, tc.argument))
		if compression != tc.compression {
			t.Errorf("expected %d compression; got %d", tc.compression, compression)
		}
	}

	testCase3 := []struct {
		argument    string
		compression EXRCompression
	}{
		{"none", EXRUncompressed},
		{"ZIPS", EXRZIPS},
		{"zip", EXRZIP},
		{"piz", EXRCompression(-1)},
	}
	for _, tc := range testCase3 {
		f := flag.NewFlagSet("test", flag.ContinueOnError)
		f.SetOutput(io.Discard)
		var compression EXRCompression
		f.TextVar(&compression, "c", EXRCompression(-1), "")
		f.Parse(append([]string{"-c"}, tc.argument))
		if compression != tc.compression {
			t.Errorf("expected %d compression; got %d", tc.compression, compression)
		}
	}
}

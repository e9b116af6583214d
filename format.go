package imgio

import (
	"errors"
	"strings"
)

// FileFormat is an image file format.
type FileFormat int

// Image file formats.
const (
	UnknownFileFormat FileFormat = iota - 1
	EXR
	PNG
	JPEG
	TGA
	TIFF
	HDR
)

var formatExts = map[FileFormat]string{
	EXR:  "exr",
	PNG:  "png",
	JPEG: "jpg",
	TGA:  "tga",
	TIFF: "tif",
	HDR:  "hdr",
}

var formatNames = map[FileFormat]string{
	EXR:  "EXR",
	PNG:  "PNG",
	JPEG: "JPEG",
	TGA:  "TGA",
	TIFF: "TIFF",
	HDR:  "HDR",
}

var formatFromExt = map[string]FileFormat{
	"exr":  EXR,
	"png":  PNG,
	"jpg":  JPEG,
	"jpeg": JPEG,
	"tga":  TGA,
	"tif":  TIFF,
	"tiff": TIFF,
	"hdr":  HDR,
}

// ErrUnsupportedFormat means the given file format is not supported.
var ErrUnsupportedFormat = errors.New("imgio: unsupported image format")

// FormatFromExtension parses image format from filename extension:
// "exr", "png", "jpg" (or "jpeg"), "tga", "tif" (or "tiff") and "hdr" are supported.
func FormatFromExtension(ext string) (FileFormat, error) {
	if f, ok := formatFromExt[strings.TrimPrefix(strings.ToLower(ext), ".")]; ok {
		return f, nil
	}
	return UnknownFileFormat, ErrUnsupportedFormat
}

// FormatFromFilename parses image format from the extension of filename.
func FormatFromFilename(filename string) (FileFormat, error) {
	i := strings.LastIndexByte(filename, '.')
	if i < 0 {
		return UnknownFileFormat, ErrUnsupportedFormat
	}
	return FormatFromExtension(filename[i+1:])
}

// Ext returns the canonical filename extension of f, without the dot.
func (f FileFormat) Ext() string {
	return formatExts[f]
}

func (f FileFormat) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return "unknown"
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *FileFormat) UnmarshalText(text []byte) error {
	format, err := FormatFromExtension(string(text))
	if err != nil {
		return err
	}
	*f = format
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (f FileFormat) MarshalText() ([]byte, error) {
	if ext, ok := formatExts[f]; ok {
		return []byte(ext), nil
	}
	return nil, ErrUnsupportedFormat
}

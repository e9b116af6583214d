package imgio

import (
	"fmt"
	"image/png"
	"strings"

	"golang.org/x/image/tiff"

	"github.com/sunshineplan/imgio/internal/exr"
)

type decodeConfig struct {
	autoOrientation bool
}

var defaultDecodeConfig = decodeConfig{
	autoOrientation: true,
}

// DecodeOption sets an optional parameter for the Open functions.
type DecodeOption func(*decodeConfig)

// AutoOrientation returns a DecodeOption that sets the auto-orientation mode.
// If auto-orientation is enabled, JPEG images are transformed after decoding
// according to the EXIF orientation tag (if present). By default it's enabled.
func AutoOrientation(enabled bool) DecodeOption {
	return func(c *decodeConfig) {
		c.autoOrientation = enabled
	}
}

func newDecodeConfig(opts []DecodeOption) decodeConfig {
	cfg := defaultDecodeConfig
	for _, option := range opts {
		option(&cfg)
	}
	return cfg
}

// PNG filter flags, as in libpng.
const (
	PNGFilterNone  = 0x08
	PNGFilterSub   = 0x10
	PNGFilterUp    = 0x20
	PNGFilterAvg   = 0x40
	PNGFilterPaeth = 0x80

	PNGAllFilters = PNGFilterNone | PNGFilterSub | PNGFilterUp | PNGFilterAvg | PNGFilterPaeth
)

// TIFFCompression describes the type of compression used when writing TIFF files.
type TIFFCompression int

// Supported TIFF compression types.
const (
	TIFFUncompressed TIFFCompression = iota
	TIFFDeflate
)

var tiffCompression = map[string]TIFFCompression{
	"none":    TIFFUncompressed,
	"deflate": TIFFDeflate,
}

func (c TIFFCompression) value() tiff.CompressionType {
	switch c {
	case TIFFDeflate:
		return tiff.Deflate
	}
	return tiff.Uncompressed
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *TIFFCompression) UnmarshalText(text []byte) error {
	if compression, ok := tiffCompression[strings.ToLower(string(text))]; ok {
		*c = compression
		return nil
	}
	return fmt.Errorf("unknown tiff compression type: %q", text)
}

// MarshalText implements encoding.TextMarshaler.
func (c TIFFCompression) MarshalText() ([]byte, error) {
	for k, v := range tiffCompression {
		if v == c {
			return []byte(k), nil
		}
	}
	return nil, fmt.Errorf("unknown tiff compression type: %d", c)
}

// EXRCompression is the block compression written to EXR files.
type EXRCompression int

// Supported EXR compression types.
const (
	EXRUncompressed EXRCompression = iota
	EXRZIPS
	EXRZIP
)

var exrCompression = map[string]EXRCompression{
	"none": EXRUncompressed,
	"zips": EXRZIPS,
	"zip":  EXRZIP,
}

func (c EXRCompression) value() exr.Compression {
	switch c {
	case EXRZIPS:
		return exr.CompressionZIPS
	case EXRZIP:
		return exr.CompressionZIP
	}
	return exr.CompressionNone
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *EXRCompression) UnmarshalText(text []byte) error {
	if compression, ok := exrCompression[strings.ToLower(string(text))]; ok {
		*c = compression
		return nil
	}
	return fmt.Errorf("unknown exr compression type: %q", text)
}

// MarshalText implements encoding.TextMarshaler.
func (c EXRCompression) MarshalText() ([]byte, error) {
	for k, v := range exrCompression {
		if v == c {
			return []byte(k), nil
		}
	}
	return nil, fmt.Errorf("unknown exr compression type: %d", c)
}

type encodeConfig struct {
	pngCompressionLevel png.CompressionLevel
	pngFilter           int
	quality             int
	tiffCompression     TIFFCompression
	exrCompression      EXRCompression

	owners []FileFormat
	err    error
}

var defaultEncodeConfig = encodeConfig{
	pngCompressionLevel: png.DefaultCompression,
	pngFilter:           PNGAllFilters,
	quality:             95,
	tiffCompression:     TIFFDeflate,
	exrCompression:      EXRZIP,
}

// EncodeOption sets an optional parameter for Write and SaveFile.
// Every option belongs to one file format; passing it to another format's
// encoder fails with InvalidEncodeArgs.
type EncodeOption func(*encodeConfig)

func (c *encodeConfig) set(owner FileFormat, err error) bool {
	c.owners = append(c.owners, owner)
	if err != nil && c.err == nil {
		c.err = err
	}
	return err == nil
}

// PNGCompressionLevel returns an EncodeOption that sets the zlib compression level
// of the PNG-encoded image, from 0 (none) to 9 (best).
func PNGCompressionLevel(level int) EncodeOption {
	return func(c *encodeConfig) {
		var err error
		if level < 0 || level > 9 {
			err = newError(InvalidEncodeArgs, "png", "compression level %d out of range 0-9", level)
		}
		if c.set(PNG, err) {
			switch {
			case level == 0:
				c.pngCompressionLevel = png.NoCompression
			case level <= 3:
				c.pngCompressionLevel = png.BestSpeed
			case level >= 8:
				c.pngCompressionLevel = png.BestCompression
			default:
				c.pngCompressionLevel = png.DefaultCompression
			}
		}
	}
}

// PNGFilter returns an EncodeOption that sets the allowed PNG row filters.
// flags must be a non-empty subset of PNGAllFilters. The choice is advisory: the
// encoder picks filters adaptively whatever the flags, so the output does not change.
func PNGFilter(flags int) EncodeOption {
	return func(c *encodeConfig) {
		var err error
		if flags == 0 || flags&^PNGAllFilters != 0 {
			err = newError(InvalidEncodeArgs, "png", "invalid filter flags %#x", flags)
		}
		if c.set(PNG, err) {
			c.pngFilter = flags
		}
	}
}

// Quality returns an EncodeOption that sets the output JPEG quality.
// Quality ranges from 1 to 100 inclusive, higher is better.
func Quality(quality int) EncodeOption {
	return func(c *encodeConfig) {
		var err error
		if quality < 1 || quality > 100 {
			err = newError(InvalidEncodeArgs, "jpeg", "quality %d out of range 1-100", quality)
		}
		if c.set(JPEG, err) {
			c.quality = quality
		}
	}
}

// TIFFCompressionType returns an EncodeOption that sets the TIFF compression type.
// Default is TIFFDeflate.
func TIFFCompressionType(compression TIFFCompression) EncodeOption {
	return func(c *encodeConfig) {
		var err error
		if compression != TIFFUncompressed && compression != TIFFDeflate {
			err = newError(InvalidEncodeArgs, "tiff", "unknown compression type %d", compression)
		}
		if c.set(TIFF, err) {
			c.tiffCompression = compression
		}
	}
}

// EXRCompressionType returns an EncodeOption that sets the EXR compression type.
// Default is EXRZIP.
func EXRCompressionType(compression EXRCompression) EncodeOption {
	return func(c *encodeConfig) {
		var err error
		if compression < EXRUncompressed || compression > EXRZIP {
			err = newError(InvalidEncodeArgs, "exr", "unknown compression type %d", compression)
		}
		if c.set(EXR, err) {
			c.exrCompression = compression
		}
	}
}

// newEncodeConfig applies opts for an encoder of format ff.
func newEncodeConfig(ff FileFormat, opts []EncodeOption) (encodeConfig, error) {
	cfg := defaultEncodeConfig
	for _, option := range opts {
		if option != nil {
			option(&cfg)
		}
	}
	for _, owner := range cfg.owners {
		if owner != ff {
			return cfg, newError(InvalidEncodeArgs, strings.ToLower(ff.String()),
				"args for another format encoder type passed (%s)", owner)
		}
	}
	if cfg.err != nil {
		return cfg, cfg.err
	}
	return cfg, nil
}

package imgio

import (
	"fmt"
	"math"
	"strings"
)

// BitDepth is the size of one channel sample in bits.
type BitDepth int

// Supported bit depths.
const (
	InvalidDepth BitDepth = 0
	Depth8       BitDepth = 8
	Depth16      BitDepth = 16
	Depth32      BitDepth = 32
)

// Kind tells whether channel samples are integers or floating point numbers.
type Kind int

// Sample kinds.
const (
	KindUnknown Kind = iota
	KindInt
	KindFloat
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	default:
		return "unknown"
	}
}

// PixelFormat describes how one pixel is laid out in memory:
// its channel count (1 to 4), bit depth (8, 16 or 32) and sample kind.
//
// The zero value is InvalidFormat. Values are only composed by NewPixelFormat
// and the named constants below; 8-bit float and 32-bit integer formats do not exist.
type PixelFormat uint8

const (
	pfChannelMask = 0x03
	pfDepthShift  = 2
	pfDepthMask   = 0x03 << pfDepthShift
	pfFloat       = 1 << 4

	pf8  = 1 << pfDepthShift
	pf16 = 2 << pfDepthShift
	pf32 = 3 << pfDepthShift
)

// InvalidFormat means "no format" or "unsupported".
const InvalidFormat PixelFormat = 0

// Pixel formats.
const (
	R8U    PixelFormat = 0 | pf8
	RG8U   PixelFormat = 1 | pf8
	RGB8U  PixelFormat = 2 | pf8
	RGBA8U PixelFormat = 3 | pf8

	R16U    PixelFormat = 0 | pf16
	RG16U   PixelFormat = 1 | pf16
	RGB16U  PixelFormat = 2 | pf16
	RGBA16U PixelFormat = 3 | pf16

	R16F    PixelFormat = 0 | pf16 | pfFloat
	RG16F   PixelFormat = 1 | pf16 | pfFloat
	RGB16F  PixelFormat = 2 | pf16 | pfFloat
	RGBA16F PixelFormat = 3 | pf16 | pfFloat

	R32F    PixelFormat = 0 | pf32 | pfFloat
	RG32F   PixelFormat = 1 | pf32 | pfFloat
	RGB32F  PixelFormat = 2 | pf32 | pfFloat
	RGBA32F PixelFormat = 3 | pf32 | pfFloat
)

// PixelFormats lists every valid pixel format.
var PixelFormats = []PixelFormat{
	R8U, RG8U, RGB8U, RGBA8U,
	R16U, RG16U, RGB16U, RGBA16U,
	R16F, RG16F, RGB16F, RGBA16F,
	R32F, RG32F, RGB32F, RGBA32F,
}

// NewPixelFormat composes a pixel format. It returns InvalidFormat when the
// combination does not exist.
func NewPixelFormat(channels int, depth BitDepth, kind Kind) PixelFormat {
	if channels < 1 || channels > 4 {
		return InvalidFormat
	}
	var f PixelFormat
	switch depth {
	case Depth8:
		f = pf8
	case Depth16:
		f = pf16
	case Depth32:
		f = pf32
	default:
		return InvalidFormat
	}
	switch kind {
	case KindInt:
	case KindFloat:
		f |= pfFloat
	default:
		return InvalidFormat
	}
	f |= PixelFormat(channels - 1)
	if !f.Valid() {
		return InvalidFormat
	}
	return f
}

// Valid reports whether f is one of the formats listed in PixelFormats.
func (f PixelFormat) Valid() bool {
	if f&^(pfChannelMask|pfDepthMask|pfFloat) != 0 {
		return false
	}
	switch f & pfDepthMask {
	case pf8:
		return f&pfFloat == 0
	case pf16:
		return true
	case pf32:
		return f&pfFloat != 0
	}
	return false
}

// Details decomposes f into its channel count, bytes per channel and kind.
// It never fails: for an invalid format it returns (-1, -1, KindUnknown).
func (f PixelFormat) Details() (channels, bytesPerChannel int, kind Kind) {
	if !f.Valid() {
		return -1, -1, KindUnknown
	}
	channels = int(f&pfChannelMask) + 1
	bytesPerChannel = int(f.BitDepth()) / 8
	kind = KindInt
	if f&pfFloat != 0 {
		kind = KindFloat
	}
	return
}

// BitDepth returns the bit depth of f, or InvalidDepth.
func (f PixelFormat) BitDepth() BitDepth {
	if !f.Valid() {
		return InvalidDepth
	}
	switch f & pfDepthMask {
	case pf8:
		return Depth8
	case pf16:
		return Depth16
	default:
		return Depth32
	}
}

// WithBitDepth returns f with its bit depth replaced by depth.
// Switching to 32 bits forces a float format, switching to 8 bits forces an
// integer format and 16 bits keeps the kind of f. It returns InvalidFormat when
// depth is not 8, 16 or 32 or f itself is invalid.
func (f PixelFormat) WithBitDepth(depth BitDepth) PixelFormat {
	channels, _, kind := f.Details()
	switch depth {
	case Depth8:
		kind = KindInt
	case Depth16:
	case Depth32:
		kind = KindFloat
	default:
		return InvalidFormat
	}
	return NewPixelFormat(channels, depth, kind)
}

// WithChannels returns f with its channel count replaced.
func (f PixelFormat) WithChannels(channels int) PixelFormat {
	_, _, kind := f.Details()
	return NewPixelFormat(channels, f.BitDepth(), kind)
}

// Channels returns the channel count of f, or -1.
func (f PixelFormat) Channels() int {
	c, _, _ := f.Details()
	return c
}

// BytesPerChannel returns the sample size of f in bytes, or -1.
func (f PixelFormat) BytesPerChannel() int {
	_, b, _ := f.Details()
	return b
}

// Kind returns the sample kind of f.
func (f PixelFormat) Kind() Kind {
	_, _, k := f.Details()
	return k
}

// IsFloat reports whether f stores floating point samples.
func (f PixelFormat) IsFloat() bool { return f.Kind() == KindFloat }

// PixelSize returns the size of one pixel in bytes, or 0 for an invalid format.
func (f PixelFormat) PixelSize() int {
	c, b, _ := f.Details()
	if c < 0 {
		return 0
	}
	return c * b
}

// BufferSize returns the number of bytes needed to hold a width×height image in f.
// The result is only meaningful when the size fits in an int.
func (f PixelFormat) BufferSize(width, height int) int {
	return width * height * f.PixelSize()
}

// fits reports whether the buffer of a width×height image in f fits in an int.
// Dimensions must not be negative.
func (f PixelFormat) fits(width, height int) bool {
	size := f.PixelSize()
	return width == 0 || size == 0 || height <= math.MaxInt/width/size
}

var channelNames = [...]string{"r", "rg", "rgb", "rgba"}

func (f PixelFormat) String() string {
	c, _, k := f.Details()
	if c < 0 {
		return "invalid"
	}
	suffix := "u"
	if k == KindFloat {
		suffix = "f"
	}
	return fmt.Sprintf("%s%d%s", channelNames[c-1], f.BitDepth(), suffix)
}

// ParsePixelFormat parses names such as "rgba8u" or "RGB32F".
func ParsePixelFormat(s string) (PixelFormat, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, f := range PixelFormats {
		if f.String() == name {
			return f, nil
		}
	}
	return InvalidFormat, fmt.Errorf("unknown pixel format: %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (f PixelFormat) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
// An empty text decodes to InvalidFormat.
func (f *PixelFormat) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*f = InvalidFormat
		return nil
	}
	format, err := ParsePixelFormat(string(text))
	if err != nil {
		return err
	}
	*f = format
	return nil
}

package imgio

import (
	"encoding/binary"
	"math"
)

// Images with at least this many pixels are converted on several goroutines.
const parallelThreshold = 1 << 16

// canonical is one pixel as R, G, B, A. Integer samples are normalized to [0,1];
// float samples are kept as they are.
type canonical [4]float32

type layout struct {
	channels int
	size     int // bytes per channel
	float    bool
}

func layoutOf(f PixelFormat) layout {
	c, b, k := f.Details()
	return layout{channels: c, size: b, float: k == KindFloat}
}

func (l layout) pixelSize() int { return l.channels * l.size }

func isHalf(f PixelFormat) bool {
	return f.Valid() && f.IsFloat() && f.BitDepth() == Depth16
}

func checkConvertFormat(op string, f PixelFormat) error {
	if !f.Valid() {
		return newError(BadFormat, op, "invalid pixel format %d", uint8(f))
	}
	if !HalfFloatSupported && isHalf(f) {
		return newError(BadFormat, op, "16 bit float formats not available when built without half-float support (%s)", f)
	}
	return nil
}

// Convert converts a width×height image in src from format in to format out, writing to dst.
//
// Each pixel goes through a canonical RGBA float representation: missing channels are
// synthesized (grayscale is replicated into R, G and B, alpha defaults to 1), extra channels
// are dropped, and float samples are clamped to [0,1] before being stored in an integer format.
//
// All arguments are checked before dst is written. After a failure the content of dst is undefined.
func Convert(dst, src []byte, width, height int, in, out PixelFormat) error {
	const op = "convert"
	if err := checkConvertFormat(op, in); err != nil {
		return err
	}
	if err := checkConvertFormat(op, out); err != nil {
		return err
	}
	if width < 0 || height < 0 {
		return newError(InvalidArgument, op, "invalid dimensions %dx%d", width, height)
	}
	if !in.fits(width, height) || !out.fits(width, height) {
		return newError(InvalidArgument, op, "dimensions %dx%d too large", width, height)
	}
	n := width * height
	if need := n * in.PixelSize(); len(src) < need {
		return newError(InvalidArgument, op, "source buffer too small: have %d bytes, need %d", len(src), need)
	}
	if need := n * out.PixelSize(); len(dst) < need {
		return newError(InvalidArgument, op, "destination buffer too small: have %d bytes, need %d", len(dst), need)
	}

	if in == out {
		size := n * in.PixelSize()
		copy(dst[:size], src[:size])
		return nil
	}

	from, to := layoutOf(in), layoutOf(out)
	clampToUnit := from.float && !to.float

	convertRow := func(y int) {
		for i := y * width; i < (y+1)*width; i++ {
			c := from.decode(src, i)
			if clampToUnit {
				for j := range c {
					c[j] = clampUnit(c[j])
				}
			}
			to.encode(dst, i, c)
		}
	}

	if n < parallelThreshold {
		for y := 0; y < height; y++ {
			convertRow(y)
		}
		return nil
	}
	parallel(0, height, func(ys <-chan int) {
		for y := range ys {
			convertRow(y)
		}
	})
	return nil
}

// ConvertPixel converts a single pixel. It is Convert on a 1×1 image.
func ConvertPixel(src []byte, in, out PixelFormat) ([]byte, error) {
	dst := make([]byte, out.PixelSize())
	if err := Convert(dst, src, 1, 1, in, out); err != nil {
		return nil, err
	}
	return dst, nil
}

// clampUnit clamps v to [0,1]; NaN becomes 0.
func clampUnit(v float32) float32 {
	if !(v > 0) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func (l layout) decode(src []byte, i int) (c canonical) {
	off := i * l.pixelSize()
	for ch := 0; ch < l.channels; ch++ {
		c[ch] = l.load(src[off+ch*l.size:])
	}
	switch l.channels {
	case 1:
		c[1], c[2], c[3] = c[0], c[0], 1
	case 2:
		c[2], c[3] = 0, 1
	case 3:
		c[3] = 1
	}
	return
}

func (l layout) encode(dst []byte, i int, c canonical) {
	off := i * l.pixelSize()
	for ch := 0; ch < l.channels; ch++ {
		l.store(dst[off+ch*l.size:], c[ch])
	}
}

func (l layout) load(b []byte) float32 {
	switch l.size {
	case 1:
		return float32(b[0]) / math.MaxUint8
	case 2:
		v := binary.LittleEndian.Uint16(b)
		if l.float {
			return halfToFloat32(v)
		}
		return float32(v) / math.MaxUint16
	default:
		return math.Float32frombits(binary.LittleEndian.Uint32(b))
	}
}

func (l layout) store(b []byte, v float32) {
	switch l.size {
	case 1:
		b[0] = uint8(math.Round(float64(v) * math.MaxUint8))
	case 2:
		if l.float {
			binary.LittleEndian.PutUint16(b, float32ToHalf(v))
		} else {
			binary.LittleEndian.PutUint16(b, uint16(math.Round(float64(v)*math.MaxUint16)))
		}
	default:
		binary.LittleEndian.PutUint32(b, math.Float32bits(v))
	}
}

package imgio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"image"
	"io"
	"math"

	"github.com/mdouchement/hdr"
	"github.com/mdouchement/hdr/codec/rgbe"
	"github.com/mdouchement/hdr/hdrcolor"
)

type hdrCodec struct{}

func (hdrCodec) FileFormat() FileFormat { return HDR }

func (hdrCodec) Sniff(header []byte) bool {
	return bytes.HasPrefix(header, []byte("#?RADIANCE")) || bytes.HasPrefix(header, []byte("#?RGBE"))
}

func (hdrCodec) IsFormatSupported(f PixelFormat) bool { return hdrPolicy.supported(f) }

func (hdrCodec) WriteFormat(in, out PixelFormat) PixelFormat { return hdrPolicy.resolve(in, out) }

func (hdrCodec) Open(r io.ReadSeeker, opts ...DecodeOption) (Image, error) {
	img, err := rgbe.Decode(bufio.NewReader(r))
	if err != nil {
		return nil, wrapError(LoadFailed, "hdr", err)
	}
	m, ok := img.(hdr.Image)
	if !ok {
		return nil, newError(LoadFailed, "hdr", "decoder returned %T", img)
	}

	b := m.Bounds()
	p := NewPixels(b.Dx(), b.Dy(), RGB32F)
	parallel(0, p.Height, func(ys <-chan int) {
		for y := range ys {
			row := p.Data[y*p.Width*12:]
			for x := 0; x < p.Width; x++ {
				r, g, bb, _ := m.HDRAt(b.Min.X+x, b.Min.Y+y).HDRRGBA()
				binary.LittleEndian.PutUint32(row[x*12:], math.Float32bits(float32(r)))
				binary.LittleEndian.PutUint32(row[x*12+4:], math.Float32bits(float32(g)))
				binary.LittleEndian.PutUint32(row[x*12+8:], math.Float32bits(float32(bb)))
			}
		}
	})
	return newDecodedImage(HDR, p, ColourProfile{}), nil
}

func (hdrCodec) Encode(w io.Writer, data []byte, width, height int, in, out PixelFormat, profile *ColourProfile, opts ...EncodeOption) error {
	const op = "hdr"
	if _, err := newEncodeConfig(HDR, opts); err != nil {
		return err
	}
	p, err := prepare(op, hdrPolicy, data, width, height, in, out)
	if err != nil {
		return err
	}
	if p.Format != RGB32F {
		return newError(InternalFailure, op, "unexpected write format %s", p.Format)
	}

	m := hdr.NewRGB(image.Rect(0, 0, width, height))
	sample := func(i int) float64 {
		v := math.Float32frombits(binary.LittleEndian.Uint32(p.Data[i*4:]))
		if !(v > 0) {
			return 0 // RGBE cannot store negative values or NaN
		}
		return float64(v)
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := (y*width + x) * 3
			m.SetRGB(x, y, hdrcolor.RGB{R: sample(i), G: sample(i + 1), B: sample(i + 2)})
		}
	}
	if err := rgbe.Encode(w, m); err != nil {
		return encodeError(op, err)
	}
	return nil
}

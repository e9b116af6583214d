//go:build !nohalf

package imgio

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/sunshineplan/imgio/internal/exr"
)

func halfFloatCodecs() []Codec {
	return []Codec{exrCodec{}}
}

var (
	rgbaChannelNames = []string{"R", "G", "B", "A"}
	grayChannelName  = "Y"
)

type exrCodec struct{}

func (exrCodec) FileFormat() FileFormat { return EXR }

func (exrCodec) Sniff(header []byte) bool {
	return bytes.HasPrefix(header, exr.Magic)
}

func (exrCodec) IsFormatSupported(f PixelFormat) bool { return exrPolicy.supported(f) }

func (exrCodec) WriteFormat(in, out PixelFormat) PixelFormat { return exrPolicy.resolve(in, out) }

// exrChannels selects at most four channels to decode. Files holding only R, G, B and A
// channels are decoded in RGBA order, others keep the file order.
func exrChannels(channels []exr.Channel) []int {
	rgba := true
	for _, c := range channels {
		switch c.Name {
		case "R", "G", "B", "A":
		default:
			rgba = false
		}
	}
	var used []int
	if rgba {
		for _, name := range rgbaChannelNames {
			for i, c := range channels {
				if c.Name == name {
					used = append(used, i)
				}
			}
		}
		return used
	}
	for i := range channels {
		if len(used) == 4 {
			break
		}
		used = append(used, i)
	}
	return used
}

func (exrCodec) Open(r io.ReadSeeker, opts ...DecodeOption) (Image, error) {
	img, err := exr.Decode(r)
	if err != nil {
		return nil, wrapError(LoadFailed, "exr", err)
	}

	depth := Depth16
	same := true
	for _, c := range img.Channels {
		if c.Type != exr.Half {
			depth = Depth32
		}
		if c.Type != img.Channels[0].Type {
			same = false
		}
	}
	used := exrChannels(img.Channels)
	f := NewPixelFormat(len(used), depth, KindFloat)

	p := NewPixels(img.Width, img.Height, f)
	size := f.BytesPerChannel()
	n := img.Width * img.Height
	for c, i := range used {
		plane := img.Planes[i]
		for j := 0; j < n; j++ {
			off := (j*len(used) + c) * size
			if size == 2 {
				binary.LittleEndian.PutUint16(p.Data[off:], float32ToHalf(plane[j]))
			} else {
				binary.LittleEndian.PutUint32(p.Data[off:], math.Float32bits(plane[j]))
			}
		}
	}

	decoded := newDecodedImage(EXR, p, ColourProfile{})
	decoded.info.NumChannels = len(img.Channels)
	switch {
	case !same:
		decoded.info.BytesPerChannel, decoded.info.Kind = -1, KindUnknown
	case img.Channels[0].Type == exr.Uint:
		decoded.info.BytesPerChannel, decoded.info.Kind = 4, KindInt
	}
	return decoded, nil
}

func (exrCodec) Encode(w io.Writer, data []byte, width, height int, in, out PixelFormat, profile *ColourProfile, opts ...EncodeOption) error {
	const op = "exr"
	cfg, err := newEncodeConfig(EXR, opts)
	if err != nil {
		return err
	}
	p, err := prepare(op, exrPolicy, data, width, height, in, out)
	if err != nil {
		return err
	}

	channels, size := p.Format.Channels(), p.Format.BytesPerChannel()
	typ := exr.Float
	if size == 2 {
		typ = exr.Half
	}
	names := rgbaChannelNames[:channels]
	if channels == 1 {
		names = []string{grayChannelName}
	}
	var list []exr.Channel
	for _, name := range names {
		list = append(list, exr.Channel{Name: name, Type: typ})
	}

	img := exr.NewImage(width, height, list...)
	for c := range list {
		plane := img.Planes[c]
		for j := range plane {
			off := (j*channels + c) * size
			if size == 2 {
				plane[j] = halfToFloat32(binary.LittleEndian.Uint16(p.Data[off:]))
			} else {
				plane[j] = math.Float32frombits(binary.LittleEndian.Uint32(p.Data[off:]))
			}
		}
	}
	if err := exr.Encode(w, img, cfg.exrCompression.value()); err != nil {
		return encodeError(op, err)
	}
	return nil
}

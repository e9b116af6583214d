package imgio

import (
	"encoding/binary"
	"image"
	"image/color"
)

// Pixels is a decoded image in a tightly packed, row-major buffer.
type Pixels struct {
	Data   []byte
	Width  int
	Height int
	Format PixelFormat
}

// NewPixels allocates a zeroed width×height image in format f.
func NewPixels(width, height int, f PixelFormat) *Pixels {
	return &Pixels{
		Data:   make([]byte, f.BufferSize(width, height)),
		Width:  width,
		Height: height,
		Format: f,
	}
}

// Convert returns a copy of p in format f.
func (p *Pixels) Convert(f PixelFormat) (*Pixels, error) {
	if err := checkConvertFormat("convert", f); err != nil {
		return nil, err
	}
	if p.Width < 0 || p.Height < 0 || !f.fits(p.Width, p.Height) {
		return nil, newError(InvalidArgument, "convert", "invalid dimensions %dx%d", p.Width, p.Height)
	}
	dst := NewPixels(p.Width, p.Height, f)
	if err := Convert(dst.Data, p.Data, p.Width, p.Height, p.Format, f); err != nil {
		return nil, err
	}
	return dst, nil
}

// pixelsFromImage copies img into a buffer of format f, which must be an 8 or 16 bit integer format.
// Two channel formats hold luminance and alpha.
func pixelsFromImage(img image.Image, f PixelFormat) *Pixels {
	b := img.Bounds()
	p := NewPixels(b.Dx(), b.Dy(), f)
	if p.Width == 0 || p.Height == 0 {
		return p
	}
	channels := f.Channels()
	pick := channelPick(channels)

	if f.BitDepth() == Depth8 {
		s := newRowScanner(img)
		parallel(0, p.Height, func(ys <-chan int) {
			row := make([]uint8, p.Width*4)
			for y := range ys {
				s.scanRow(y, row)
				out := p.Data[y*p.Width*channels:]
				for x := 0; x < p.Width; x++ {
					for c, i := range pick {
						out[x*channels+c] = row[x*4+i]
					}
				}
			}
		})
		return p
	}

	parallel(0, p.Height, func(ys <-chan int) {
		var px [4]uint16
		for y := range ys {
			out := p.Data[y*p.Width*channels*2:]
			for x := 0; x < p.Width; x++ {
				px = nrgba64At(img, b.Min.X+x, b.Min.Y+y)
				for c, i := range pick {
					binary.LittleEndian.PutUint16(out[(x*channels+c)*2:], px[i])
				}
			}
		}
	})
	return p
}

// nativeFormat returns the pixel format that holds img without loss.
// Decoders return *image.RGBA for files without alpha samples, so those are RGB when opaque.
func nativeFormat(img image.Image) PixelFormat {
	type opaquer interface{ Opaque() bool }
	opaque := func() bool {
		o, ok := img.(opaquer)
		return ok && o.Opaque()
	}
	switch img := img.(type) {
	case *image.Gray:
		return R8U
	case *image.Gray16:
		return R16U
	case *image.NRGBA:
		return RGBA8U
	case *image.NRGBA64:
		return RGBA16U
	case *image.RGBA:
		if opaque() {
			return RGB8U
		}
		return RGBA8U
	case *image.RGBA64:
		if opaque() {
			return RGB16U
		}
		return RGBA16U
	case *image.YCbCr, *image.CMYK:
		return RGB8U
	case *image.Paletted:
		for _, c := range img.Palette {
			if _, _, _, a := c.RGBA(); a != 0xffff {
				return RGBA8U
			}
		}
		return RGB8U
	}
	return RGBA16U
}

// channelPick lists the RGBA indexes stored for each channel count.
func channelPick(channels int) []int {
	switch channels {
	case 1:
		return []int{0}
	case 2:
		return []int{0, 3}
	case 3:
		return []int{0, 1, 2}
	default:
		return []int{0, 1, 2, 3}
	}
}

func nrgba64At(img image.Image, x, y int) [4]uint16 {
	switch img := img.(type) {
	case *image.Gray16:
		v := img.Gray16At(x, y).Y
		return [4]uint16{v, v, v, 0xffff}
	case *image.NRGBA64:
		c := img.NRGBA64At(x, y)
		return [4]uint16{c.R, c.G, c.B, c.A}
	}
	c := color.NRGBA64Model.Convert(img.At(x, y)).(color.NRGBA64)
	return [4]uint16{c.R, c.G, c.B, c.A}
}

// imageFromPixels wraps p as an image.Image for the standard encoders.
// Only 8 and 16 bit integer formats with 1, 3 or 4 channels are accepted.
func imageFromPixels(p *Pixels) (image.Image, error) {
	r := image.Rect(0, 0, p.Width, p.Height)
	n := p.Width * p.Height
	switch p.Format {
	case R8U:
		return &image.Gray{Pix: p.Data[:n], Stride: p.Width, Rect: r}, nil
	case R16U:
		img := image.NewGray16(r)
		for i := 0; i < n; i++ {
			binary.BigEndian.PutUint16(img.Pix[i*2:], binary.LittleEndian.Uint16(p.Data[i*2:]))
		}
		return img, nil
	case RGBA8U:
		return &image.NRGBA{Pix: p.Data[:n*4], Stride: p.Width * 4, Rect: r}, nil
	case RGB8U:
		img := image.NewNRGBA(r)
		for i := 0; i < n; i++ {
			copy(img.Pix[i*4:i*4+3], p.Data[i*3:i*3+3])
			img.Pix[i*4+3] = 0xff
		}
		return img, nil
	case RGB16U, RGBA16U:
		channels := p.Format.Channels()
		img := image.NewNRGBA64(r)
		for i := 0; i < n; i++ {
			for c := 0; c < 4; c++ {
				v := uint16(0xffff)
				if c < channels {
					v = binary.LittleEndian.Uint16(p.Data[(i*channels+c)*2:])
				}
				binary.BigEndian.PutUint16(img.Pix[i*8+c*2:], v)
			}
		}
		return img, nil
	}
	return nil, newError(InternalFailure, "encode", "no image representation for %s", p.Format)
}

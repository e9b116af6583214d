package imgio

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/ftrvxmtrx/tga"
)

const tgaHeaderSize = 18

// TGA image types.
const (
	tgaColorMapped    = 1
	tgaTrueColor      = 2
	tgaGray           = 3
	tgaColorMappedRLE = 9
	tgaTrueColorRLE   = 10
	tgaGrayRLE        = 11
)

var tgaFooterSignature = []byte("TRUEVISION-XFILE.\x00")

type tgaCodec struct{}

func (tgaCodec) FileFormat() FileFormat { return TGA }

// Sniff checks that header is a plausible TGA header: the format has no magic number.
func (tgaCodec) Sniff(header []byte) bool {
	if len(header) < tgaHeaderSize {
		return false
	}
	cmapType, imageType := header[1], header[2]
	width := binary.LittleEndian.Uint16(header[12:])
	height := binary.LittleEndian.Uint16(header[14:])
	depth, descriptor := header[16], header[17]

	switch imageType {
	case tgaColorMapped, tgaColorMappedRLE:
		if cmapType != 1 {
			return false
		}
		switch header[7] {
		case 15, 16, 24, 32:
		default:
			return false
		}
	case tgaTrueColor, tgaTrueColorRLE, tgaGray, tgaGrayRLE:
		if cmapType > 1 {
			return false
		}
	default:
		return false
	}
	switch depth {
	case 8, 15, 16, 24, 32:
	default:
		return false
	}
	return width > 0 && height > 0 && descriptor&0xC0 == 0
}

func (tgaCodec) IsFormatSupported(f PixelFormat) bool { return tgaPolicy.supported(f) }

func (tgaCodec) WriteFormat(in, out PixelFormat) PixelFormat { return tgaPolicy.resolve(in, out) }

func tgaDecodeFormat(header []byte) PixelFormat {
	switch header[2] {
	case tgaGray, tgaGrayRLE:
		return R8U
	case tgaColorMapped, tgaColorMappedRLE:
		if header[7] == 32 {
			return RGBA8U
		}
	default:
		if header[16] == 32 && header[17]&0x0F != 0 {
			return RGBA8U
		}
	}
	return RGB8U
}

func (tgaCodec) Open(r io.ReadSeeker, opts ...DecodeOption) (Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, wrapError(LoadFailed, "tga", err)
	}
	if len(data) < tgaHeaderSize {
		return nil, newError(LoadFailed, "tga", "file too short")
	}
	img, err := tga.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, wrapError(LoadFailed, "tga", err)
	}
	return newDecodedImage(TGA, pixelsFromImage(img, tgaDecodeFormat(data)), ColourProfile{}), nil
}

// Encode writes an uncompressed, bottom-up TGA file with a version 2 footer.
func (tgaCodec) Encode(w io.Writer, data []byte, width, height int, in, out PixelFormat, profile *ColourProfile, opts ...EncodeOption) error {
	const op = "tga"
	if _, err := newEncodeConfig(TGA, opts); err != nil {
		return err
	}
	if width > 0xFFFF || height > 0xFFFF {
		return newError(InvalidArgument, op, "image %dx%d too large", width, height)
	}
	p, err := prepare(op, tgaPolicy, data, width, height, in, out)
	if err != nil {
		return err
	}

	channels := p.Format.Channels()
	header := make([]byte, tgaHeaderSize)
	header[2] = tgaTrueColor
	if channels == 1 {
		header[2] = tgaGray
	}
	binary.LittleEndian.PutUint16(header[12:], uint16(width))
	binary.LittleEndian.PutUint16(header[14:], uint16(height))
	header[16] = byte(channels * 8)
	if channels == 4 {
		header[17] = 8 // alpha bits
	}

	buf := bytes.NewBuffer(header)
	row := make([]byte, width*channels)
	for y := height - 1; y >= 0; y-- {
		src := p.Data[y*width*channels : (y+1)*width*channels]
		copy(row, src)
		if channels >= 3 {
			for x := 0; x < width; x++ {
				px := row[x*channels:]
				px[0], px[2] = px[2], px[0] // RGB -> BGR
			}
		}
		buf.Write(row)
	}
	buf.Write(make([]byte, 8)) // no extension or developer area
	buf.Write(tgaFooterSignature)

	if _, err := buf.WriteTo(w); err != nil {
		return encodeError(op, err)
	}
	return nil
}

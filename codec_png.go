package imgio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image/png"
	"io"

	"github.com/disintegration/imaging"
	"github.com/klauspost/compress/zlib"
)

var pngSignature = []byte{137, 80, 78, 71, 13, 10, 26, 10}

// PNG colour types.
const (
	pngGray      = 0
	pngRGB       = 2
	pngPalette   = 3
	pngGrayAlpha = 4
	pngRGBA      = 6
)

type pngCodec struct{}

func (pngCodec) FileFormat() FileFormat { return PNG }

func (pngCodec) Sniff(header []byte) bool {
	return bytes.HasPrefix(header, pngSignature)
}

func (pngCodec) IsFormatSupported(f PixelFormat) bool { return pngPolicy.supported(f) }

func (pngCodec) WriteFormat(in, out PixelFormat) PixelFormat { return pngPolicy.resolve(in, out) }

type pngChunk struct {
	typ  string
	data []byte
}

// readPNGChunks returns the chunks that precede the image data.
func readPNGChunks(data []byte) ([]pngChunk, error) {
	if !bytes.HasPrefix(data, pngSignature) {
		return nil, errors.New("not a png file")
	}
	var chunks []pngChunk
	pos := len(pngSignature)
	for pos+8 <= len(data) {
		n := int(binary.BigEndian.Uint32(data[pos:]))
		typ := string(data[pos+4 : pos+8])
		if n < 0 || pos+12+n > len(data) {
			return nil, errors.New("truncated png chunk " + typ)
		}
		if typ == "IDAT" || typ == "IEND" {
			break
		}
		chunks = append(chunks, pngChunk{typ, data[pos+8 : pos+8+n]})
		pos += 12 + n
	}
	if len(chunks) == 0 || chunks[0].typ != "IHDR" || len(chunks[0].data) != 13 {
		return nil, errors.New("missing png IHDR chunk")
	}
	return chunks, nil
}

// pngDecodeFormat maps the IHDR colour type and bit depth to a pixel format.
// A tRNS chunk adds an alpha channel.
func pngDecodeFormat(colorType, bitDepth byte, transparent bool) (PixelFormat, error) {
	depth := Depth8
	if bitDepth == 16 {
		depth = Depth16
	}
	var channels int
	switch colorType {
	case pngGray:
		channels = 1
	case pngRGB, pngPalette:
		channels = 3
	case pngGrayAlpha:
		channels = 2
	case pngRGBA:
		channels = 4
	default:
		return InvalidFormat, errors.New("unknown png colour type")
	}
	if transparent && (channels == 1 || channels == 3) {
		channels++
	}
	if colorType == pngPalette {
		depth = Depth8
	}
	return NewPixelFormat(channels, depth, KindInt), nil
}

func readICCP(data []byte) (ColourProfile, error) {
	i := bytes.IndexByte(data, 0)
	if i < 1 || i+2 > len(data) || data[i+1] != 0 {
		return ColourProfile{}, errors.New("invalid iCCP chunk")
	}
	r, err := zlib.NewReader(bytes.NewReader(data[i+2:]))
	if err != nil {
		return ColourProfile{}, err
	}
	defer r.Close()
	icc, err := io.ReadAll(r)
	if err != nil {
		return ColourProfile{}, err
	}
	return ColourProfile{Name: string(data[:i]), Data: icc}, nil
}

func (pngCodec) Open(r io.ReadSeeker, opts ...DecodeOption) (Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, wrapError(LoadFailed, "png", err)
	}
	chunks, err := readPNGChunks(data)
	if err != nil {
		return nil, wrapError(LoadFailed, "png", err)
	}

	var profile ColourProfile
	var transparent bool
	for _, c := range chunks {
		switch c.typ {
		case "tRNS":
			transparent = true
		case "iCCP":
			if profile, err = readICCP(c.data); err != nil {
				return nil, wrapError(LoadFailed, "png", err)
			}
		}
	}
	f, err := pngDecodeFormat(chunks[0].data[9], chunks[0].data[8], transparent)
	if err != nil {
		return nil, wrapError(LoadFailed, "png", err)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, wrapError(LoadFailed, "png", err)
	}
	return newDecodedImage(PNG, pixelsFromImage(img, f), profile), nil
}

func (pngCodec) Encode(w io.Writer, data []byte, width, height int, in, out PixelFormat, profile *ColourProfile, opts ...EncodeOption) error {
	const op = "png"
	cfg, err := newEncodeConfig(PNG, opts)
	if err != nil {
		return err
	}
	p, err := prepare(op, pngPolicy, data, width, height, in, out)
	if err != nil {
		return err
	}
	img, err := imageFromPixels(p)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(cfg.pngCompressionLevel)); err != nil {
		return encodeError(op, err)
	}

	encoded := buf.Bytes()
	if icc := profileData(profile, in, p.Format); icc != nil {
		if encoded, err = insertICCP(encoded, profile.Name, icc); err != nil {
			return encodeError(op, err)
		}
	}
	if _, err := w.Write(encoded); err != nil {
		return encodeError(op, err)
	}
	return nil
}

// insertICCP adds an iCCP chunk right after IHDR.
func insertICCP(encoded []byte, name string, icc []byte) ([]byte, error) {
	ihdrEnd := len(pngSignature) + 12 + 13
	if len(encoded) < ihdrEnd {
		return nil, errors.New("png too short")
	}
	if name == "" || name == NoProfileName {
		name = "ICC profile"
	}
	if len(name) > 79 {
		name = name[:79]
	}

	var chunk bytes.Buffer
	chunk.WriteString(name)
	chunk.Write([]byte{0, 0})
	zw := zlib.NewWriter(&chunk)
	if _, err := zw.Write(icc); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(encoded)+chunk.Len()+12)
	out = append(out, encoded[:ihdrEnd]...)
	out = appendPNGChunk(out, "iCCP", chunk.Bytes())
	return append(out, encoded[ihdrEnd:]...), nil
}

func appendPNGChunk(b []byte, typ string, data []byte) []byte {
	b = binary.BigEndian.AppendUint32(b, uint32(len(data)))
	start := len(b)
	b = append(b, typ...)
	b = append(b, data...)
	return binary.BigEndian.AppendUint32(b, crc32.ChecksumIEEE(b[start:]))
}

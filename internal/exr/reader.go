package exr

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/zlib"
	"github.com/x448/float16"
)

// maxDeflateRatio bounds the expansion of a deflate stream.
const maxDeflateRatio = 1032

var errInvalidDataWindow = errors.New("exr: invalid data window")

type header struct {
	channels    []Channel
	compression Compression
	dataWindow  [4]int32
}

// Decode reads a whole OpenEXR file from r.
func Decode(r io.Reader) (*Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return DecodeBytes(data)
}

// DecodeBytes decodes an OpenEXR file held in data.
func DecodeBytes(data []byte) (*Image, error) {
	r := bytes.NewReader(data)
	h, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	width := int(h.dataWindow[2]) - int(h.dataWindow[0]) + 1
	height := int(h.dataWindow[3]) - int(h.dataWindow[1]) + 1
	if width <= 0 || height <= 0 {
		return nil, errInvalidDataWindow
	}
	lines := h.compression.ScanlinesPerBlock()
	blocks := (height + lines - 1) / lines
	if int64(blocks)*8 > int64(r.Len()) {
		return nil, errInvalidDataWindow
	}
	// The samples must fit in an int and be recoverable from the rest of the file.
	pixel := blockSize(1, 1, h.channels)
	if width > math.MaxInt/height/pixel {
		return nil, errInvalidDataWindow
	}
	limit := int64(r.Len())
	if h.compression != CompressionNone {
		limit *= maxDeflateRatio
	}
	if int64(width*height*pixel) > limit {
		return nil, errInvalidDataWindow
	}
	img := NewImage(width, height, h.channels...)

	offsets := make([]uint64, blocks)
	if err := binary.Read(r, binary.LittleEndian, offsets); err != nil {
		return nil, fmt.Errorf("exr: reading offset table: %w", err)
	}

	for _, offset := range offsets {
		if offset == 0 || offset >= uint64(len(data)) {
			return nil, errors.New("exr: invalid block offset")
		}
		if _, err := r.Seek(int64(offset), io.SeekStart); err != nil {
			return nil, err
		}
		var block struct {
			Y    int32
			Size int32
		}
		if err := binary.Read(r, binary.LittleEndian, &block); err != nil {
			return nil, fmt.Errorf("exr: reading block: %w", err)
		}
		if block.Size < 0 || int64(block.Size) > int64(r.Len()) {
			return nil, errors.New("exr: invalid block size")
		}
		raw := make([]byte, block.Size)
		if _, err := io.ReadFull(r, raw); err != nil {
			return nil, err
		}

		startY := int(block.Y) - int(h.dataWindow[1])
		if startY < 0 || startY >= height {
			return nil, errors.New("exr: scanline out of bounds")
		}
		n := min(lines, height-startY)
		unpacked, err := decompress(h.compression, raw, blockSize(width, n, h.channels))
		if err != nil {
			return nil, err
		}
		img.readBlock(unpacked, startY, n)
	}
	return img, nil
}

func readHeader(r *bytes.Reader) (*header, error) {
	var preamble struct {
		Magic   uint32
		Version uint32
	}
	if err := binary.Read(r, binary.LittleEndian, &preamble); err != nil || preamble.Magic != magicNumber {
		return nil, ErrNotEXR
	}
	if preamble.Version&0xff != version {
		return nil, fmt.Errorf("%w: version %d", ErrUnsupported, preamble.Version&0xff)
	}
	if preamble.Version&(flagTiled|flagDeep|flagMultipart) != 0 {
		return nil, fmt.Errorf("%w: tiled, deep or multi-part file", ErrUnsupported)
	}

	h := &header{compression: CompressionNone}
	var hasChannels, hasDataWindow bool
	for {
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		if name == "" {
			break
		}
		typ, err := readString(r)
		if err != nil {
			return nil, err
		}
		var size int32
		if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
			return nil, err
		}
		if size < 0 || int64(size) > int64(r.Len()) {
			return nil, fmt.Errorf("exr: invalid size of attribute %q", name)
		}
		value := make([]byte, size)
		if _, err := io.ReadFull(r, value); err != nil {
			return nil, err
		}

		switch name {
		case "channels":
			if typ != "chlist" {
				return nil, errors.New("exr: unexpected channels attribute type " + typ)
			}
			if h.channels, err = parseChannels(value); err != nil {
				return nil, err
			}
			hasChannels = true
		case "dataWindow":
			if typ != "box2i" || len(value) != 16 {
				return nil, errors.New("exr: invalid dataWindow attribute")
			}
			for i := range h.dataWindow {
				h.dataWindow[i] = int32(binary.LittleEndian.Uint32(value[i*4:]))
			}
			hasDataWindow = true
		case "compression":
			if typ != "compression" || len(value) != 1 {
				return nil, errors.New("exr: invalid compression attribute")
			}
			h.compression = Compression(value[0])
			switch h.compression {
			case CompressionNone, CompressionZIPS, CompressionZIP:
			default:
				return nil, fmt.Errorf("%w: compression %d", ErrUnsupported, value[0])
			}
		case "tiles":
			return nil, fmt.Errorf("%w: tiled file", ErrUnsupported)
		}
	}
	if !hasChannels || len(h.channels) == 0 {
		return nil, errors.New("exr: missing channels")
	}
	if !hasDataWindow {
		return nil, errors.New("exr: missing dataWindow")
	}
	return h, nil
}

func parseChannels(data []byte) ([]Channel, error) {
	r := bytes.NewReader(data)
	var channels []Channel
	for {
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		if name == "" {
			return channels, nil
		}
		var desc struct {
			Type      PixelType
			PLinear   uint8
			Reserved  [3]uint8
			XSampling int32
			YSampling int32
		}
		if err := binary.Read(r, binary.LittleEndian, &desc); err != nil {
			return nil, err
		}
		switch desc.Type {
		case Uint, Half, Float:
		default:
			return nil, fmt.Errorf("exr: unknown pixel type %d", desc.Type)
		}
		if desc.XSampling != 1 || desc.YSampling != 1 {
			return nil, fmt.Errorf("%w: subsampled channel %q", ErrUnsupported, name)
		}
		channels = append(channels, Channel{Name: name, Type: desc.Type})
	}
}

func blockSize(width, lines int, channels []Channel) (n int) {
	for _, c := range channels {
		n += width * lines * c.Type.Size()
	}
	return
}

func decompress(c Compression, data []byte, expected int) ([]byte, error) {
	if c == CompressionNone || len(data) == expected {
		// Blocks that do not shrink are stored uncompressed.
		if len(data) != expected {
			return nil, errors.New("exr: unexpected block size")
		}
		return data, nil
	}
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	buf, err := io.ReadAll(zr)
	if err != nil {
		return nil, err
	}
	if len(buf) != expected {
		return nil, errors.New("exr: unexpected decompressed block size")
	}
	undoPredictor(buf)
	return deinterleave(buf), nil
}

func undoPredictor(b []byte) {
	for i := 1; i < len(b); i++ {
		b[i] = byte(int(b[i-1]) + int(b[i]) - 128)
	}
}

func deinterleave(b []byte) []byte {
	out := make([]byte, len(b))
	half := (len(b) + 1) / 2
	for i := range out {
		if i%2 == 0 {
			out[i] = b[i/2]
		} else {
			out[i] = b[half+i/2]
		}
	}
	return out
}

func (img *Image) readBlock(data []byte, startY, lines int) {
	off := 0
	for y := startY; y < startY+lines; y++ {
		for i, c := range img.Channels {
			plane := img.Planes[i][y*img.Width : (y+1)*img.Width]
			for x := range plane {
				switch c.Type {
				case Half:
					plane[x] = float16.Frombits(binary.LittleEndian.Uint16(data[off:])).Float32()
				case Float:
					plane[x] = math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
				default:
					plane[x] = float32(binary.LittleEndian.Uint32(data[off:]))
				}
				off += c.Type.Size()
			}
		}
	}
}

func readString(r *bytes.Reader) (string, error) {
	var b []byte
	for {
		c, err := r.ReadByte()
		if err != nil {
			return "", err
		}
		if c == 0 {
			return string(b), nil
		}
		b = append(b, c)
	}
}

package exr

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/klauspost/compress/zlib"
	"github.com/x448/float16"
)

// Encode writes img to w as a scanline file with compression c.
// Channels are stored in name order, as the format requires.
func Encode(w io.Writer, img *Image, c Compression) error {
	switch c {
	case CompressionNone, CompressionZIPS, CompressionZIP:
	default:
		return fmt.Errorf("%w: compression %d", ErrUnsupported, c)
	}
	if img.Width <= 0 || img.Height <= 0 {
		return errors.New("exr: invalid image size")
	}
	if len(img.Channels) == 0 || len(img.Planes) != len(img.Channels) {
		return errors.New("exr: channel and plane count differ")
	}
	order := make([]int, len(img.Channels))
	for i := range order {
		order[i] = i
		if len(img.Planes[i]) < img.Width*img.Height {
			return fmt.Errorf("exr: plane %q too small", img.Channels[i].Name)
		}
		if n := len(img.Channels[i].Name); n == 0 || n > 31 {
			return fmt.Errorf("exr: invalid channel name %q", img.Channels[i].Name)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return img.Channels[order[a]].Name < img.Channels[order[b]].Name
	})

	var buf bytes.Buffer
	writeHeader(&buf, img, order, c)

	lines := c.ScanlinesPerBlock()
	blocks := (img.Height + lines - 1) / lines
	tableAt := buf.Len()
	buf.Write(make([]byte, blocks*8))

	offsets := make([]uint64, blocks)
	for i := range offsets {
		startY := i * lines
		n := min(lines, img.Height-startY)
		data, err := compress(c, img.packBlock(order, startY, n))
		if err != nil {
			return err
		}
		offsets[i] = uint64(buf.Len())
		binary.Write(&buf, binary.LittleEndian, int32(startY))
		binary.Write(&buf, binary.LittleEndian, int32(len(data)))
		buf.Write(data)
	}
	table := buf.Bytes()[tableAt:]
	for i, offset := range offsets {
		binary.LittleEndian.PutUint64(table[i*8:], offset)
	}

	_, err := buf.WriteTo(w)
	return err
}

func writeHeader(buf *bytes.Buffer, img *Image, order []int, c Compression) {
	binary.Write(buf, binary.LittleEndian, uint32(magicNumber))
	binary.Write(buf, binary.LittleEndian, uint32(version))

	var chlist bytes.Buffer
	for _, i := range order {
		ch := img.Channels[i]
		chlist.WriteString(ch.Name)
		chlist.WriteByte(0)
		binary.Write(&chlist, binary.LittleEndian, int32(ch.Type))
		chlist.Write([]byte{0, 0, 0, 0}) // pLinear and reserved
		binary.Write(&chlist, binary.LittleEndian, [2]int32{1, 1})
	}
	chlist.WriteByte(0)

	window := make([]byte, 16)
	binary.LittleEndian.PutUint32(window[8:], uint32(img.Width-1))
	binary.LittleEndian.PutUint32(window[12:], uint32(img.Height-1))

	one := make([]byte, 4)
	binary.LittleEndian.PutUint32(one, math.Float32bits(1))

	writeAttribute(buf, "channels", "chlist", chlist.Bytes())
	writeAttribute(buf, "compression", "compression", []byte{byte(c)})
	writeAttribute(buf, "dataWindow", "box2i", window)
	writeAttribute(buf, "displayWindow", "box2i", window)
	writeAttribute(buf, "lineOrder", "lineOrder", []byte{0})
	writeAttribute(buf, "pixelAspectRatio", "float", one)
	writeAttribute(buf, "screenWindowCenter", "v2f", make([]byte, 8))
	writeAttribute(buf, "screenWindowWidth", "float", one)
	buf.WriteByte(0)
}

func writeAttribute(buf *bytes.Buffer, name, typ string, value []byte) {
	buf.WriteString(name)
	buf.WriteByte(0)
	buf.WriteString(typ)
	buf.WriteByte(0)
	binary.Write(buf, binary.LittleEndian, int32(len(value)))
	buf.Write(value)
}

func (img *Image) packBlock(order []int, startY, lines int) []byte {
	out := make([]byte, 0, blockSize(img.Width, lines, img.Channels))
	for y := startY; y < startY+lines; y++ {
		for _, i := range order {
			for _, v := range img.Planes[i][y*img.Width : (y+1)*img.Width] {
				switch img.Channels[i].Type {
				case Half:
					out = binary.LittleEndian.AppendUint16(out, float16.Fromfloat32(v).Bits())
				case Float:
					out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
				default:
					out = binary.LittleEndian.AppendUint32(out, toUint(v))
				}
			}
		}
	}
	return out
}

func toUint(v float32) uint32 {
	f := math.Round(float64(v))
	switch {
	case !(f > 0):
		return 0
	case f > math.MaxUint32:
		return math.MaxUint32
	}
	return uint32(f)
}

func compress(c Compression, data []byte) ([]byte, error) {
	if c == CompressionNone {
		return data, nil
	}
	tmp := interleave(data)
	applyPredictor(tmp)

	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, zlib.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(tmp); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	if buf.Len() >= len(data) {
		return data, nil
	}
	return buf.Bytes(), nil
}

// interleave moves the even bytes of b to the first half and the odd bytes to the second.
func interleave(b []byte) []byte {
	out := make([]byte, len(b))
	half := (len(b) + 1) / 2
	for i, v := range b {
		if i%2 == 0 {
			out[i/2] = v
		} else {
			out[half+i/2] = v
		}
	}
	return out
}

func applyPredictor(b []byte) {
	prev := 0
	if len(b) > 0 {
		prev = int(b[0])
	}
	for i := 1; i < len(b); i++ {
		cur := int(b[i])
		b[i] = byte(cur - prev + 128 + 256)
		prev = cur
	}
}

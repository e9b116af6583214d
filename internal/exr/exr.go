// Package exr reads and writes single-part scanline OpenEXR files with
// uncompressed, ZIPS or ZIP blocks.
package exr

import (
	"errors"
	"fmt"
)

// Magic is the first four bytes of every OpenEXR file (20000630, little-endian).
var Magic = []byte{0x76, 0x2f, 0x31, 0x01}

const (
	magicNumber = 20000630
	version     = 2

	flagTiled     = 0x200
	flagLongNames = 0x400
	flagDeep      = 0x800
	flagMultipart = 0x1000
)

// PixelType is the sample type of a channel.
type PixelType int32

// Channel sample types.
const (
	Uint  PixelType = 0
	Half  PixelType = 1
	Float PixelType = 2
)

// Size returns the size of one sample in bytes.
func (t PixelType) Size() int {
	if t == Half {
		return 2
	}
	return 4
}

func (t PixelType) String() string {
	switch t {
	case Uint:
		return "uint"
	case Half:
		return "half"
	case Float:
		return "float"
	}
	return fmt.Sprintf("pixeltype(%d)", int32(t))
}

// Compression is the block compression of a file.
type Compression uint8

// Supported compressions.
const (
	CompressionNone Compression = 0
	CompressionZIPS Compression = 2
	CompressionZIP  Compression = 3
)

// ScanlinesPerBlock returns the number of scanlines stored in one block.
func (c Compression) ScanlinesPerBlock() int {
	if c == CompressionZIP {
		return 16
	}
	return 1
}

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZIPS:
		return "zips"
	case CompressionZIP:
		return "zip"
	}
	return fmt.Sprintf("compression(%d)", uint8(c))
}

// Channel describes one channel of an image.
type Channel struct {
	Name string
	Type PixelType
}

// Image is a decoded image. Planes[i] holds Width*Height samples of Channels[i],
// row by row. Half and uint samples are widened to float32.
type Image struct {
	Width    int
	Height   int
	Channels []Channel
	Planes   [][]float32
}

// NewImage allocates an image with zeroed planes.
func NewImage(width, height int, channels ...Channel) *Image {
	img := &Image{Width: width, Height: height, Channels: channels}
	for range channels {
		img.Planes = append(img.Planes, make([]float32, width*height))
	}
	return img
}

// Channel returns the index of the channel named name, or -1.
func (img *Image) Channel(name string) int {
	for i, c := range img.Channels {
		if c.Name == name {
			return i
		}
	}
	return -1
}

var (
	ErrNotEXR      = errors.New("exr: not an OpenEXR file")
	ErrUnsupported = errors.New("exr: unsupported feature")
)

package imgio

import (
	"encoding/binary"
	"image"
	"image/color"
	"io"
	"runtime"
	"sync"
	"sync/atomic"
)

//
// row scanning (after github.com/disintegration/imaging)
//

// rowScanner reads rows of an arbitrary image.Image as non-premultiplied RGBA8U samples.
type rowScanner struct {
	image   image.Image
	w, h    int
	palette []color.NRGBA
}

func newRowScanner(img image.Image) *rowScanner {
	s := &rowScanner{
		image: img,
		w:     img.Bounds().Dx(),
		h:     img.Bounds().Dy(),
	}
	if img, ok := img.(*image.Paletted); ok {
		s.palette = make([]color.NRGBA, len(img.Palette))
		for i, c := range img.Palette {
			s.palette[i] = color.NRGBAModel.Convert(c).(color.NRGBA)
		}
	}
	return s
}

// scanRow writes row y (relative to the image bounds) into dst, 4 bytes per pixel.
func (s *rowScanner) scanRow(y int, dst []uint8) {
	b := s.image.Bounds()
	switch img := s.image.(type) {
	case *image.NRGBA:
		i := img.PixOffset(b.Min.X, b.Min.Y+y)
		copy(dst[:s.w*4], img.Pix[i:i+s.w*4])

	case *image.RGBA:
		i := img.PixOffset(b.Min.X, b.Min.Y+y)
		for x := 0; x < s.w; x++ {
			src := img.Pix[i : i+4 : i+4]
			d := dst[x*4 : x*4+4 : x*4+4]
			switch a := src[3]; a {
			case 0:
				d[0], d[1], d[2], d[3] = 0, 0, 0, 0
			case 0xff:
				d[0], d[1], d[2], d[3] = src[0], src[1], src[2], a
			default:
				a16 := uint16(a)
				d[0] = uint8(uint16(src[0]) * 0xff / a16)
				d[1] = uint8(uint16(src[1]) * 0xff / a16)
				d[2] = uint8(uint16(src[2]) * 0xff / a16)
				d[3] = a
			}
			i += 4
		}

	case *image.Gray:
		i := img.PixOffset(b.Min.X, b.Min.Y+y)
		for x := 0; x < s.w; x++ {
			c := img.Pix[i+x]
			d := dst[x*4 : x*4+4 : x*4+4]
			d[0], d[1], d[2], d[3] = c, c, c, 0xff
		}

	case *image.Paletted:
		i := img.PixOffset(b.Min.X, b.Min.Y+y)
		for x := 0; x < s.w; x++ {
			c := s.palette[img.Pix[i+x]]
			d := dst[x*4 : x*4+4 : x*4+4]
			d[0], d[1], d[2], d[3] = c.R, c.G, c.B, c.A
		}

	case *image.YCbCr:
		for x := 0; x < s.w; x++ {
			px, py := b.Min.X+x, b.Min.Y+y
			yi, ci := img.YOffset(px, py), img.COffset(px, py)
			r, g, bb := color.YCbCrToRGB(img.Y[yi], img.Cb[ci], img.Cr[ci])
			d := dst[x*4 : x*4+4 : x*4+4]
			d[0], d[1], d[2], d[3] = r, g, bb, 0xff
		}

	default:
		for x := 0; x < s.w; x++ {
			c := color.NRGBAModel.Convert(s.image.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			d := dst[x*4 : x*4+4 : x*4+4]
			d[0], d[1], d[2], d[3] = c.R, c.G, c.B, c.A
		}
	}
}

//
// EXIF orientation
//

// orientation is an EXIF flag that specifies the transformation
// that should be applied to image to display it correctly.
type orientation int

const (
	orientationUnspecified = 0
	orientationNormal      = 1
	orientationFlipH       = 2
	orientationRotate180   = 3
	orientationFlipV       = 4
	orientationTranspose   = 5
	orientationRotate270   = 6
	orientationTransverse  = 7
	orientationRotate90    = 8
)

// readOrientation tries to read the orientation EXIF flag from JPEG data in r.
// Any problem while reading yields orientationUnspecified.
func readOrientation(r io.Reader) orientation {
	const (
		markerSOI      = 0xffd8
		markerAPP1     = 0xffe1
		exifHeader     = 0x45786966
		byteOrderBE    = 0x4d4d
		byteOrderLE    = 0x4949
		orientationTag = 0x0112
	)

	read := func(order binary.ByteOrder, v any) bool {
		return binary.Read(r, order, v) == nil
	}
	skip := func(n int64) bool {
		_, err := io.CopyN(io.Discard, r, n)
		return err == nil
	}

	var soi uint16
	if !read(binary.BigEndian, &soi) || soi != markerSOI {
		return orientationUnspecified
	}

	for {
		var marker, size uint16
		if !read(binary.BigEndian, &marker) || !read(binary.BigEndian, &size) {
			return orientationUnspecified
		}
		if marker>>8 != 0xff {
			return orientationUnspecified
		}
		if marker == markerAPP1 {
			break
		}
		if size < 2 || !skip(int64(size-2)) {
			return orientationUnspecified
		}
	}

	var header uint32
	if !read(binary.BigEndian, &header) || header != exifHeader || !skip(2) {
		return orientationUnspecified
	}

	var byteOrderTag uint16
	if !read(binary.BigEndian, &byteOrderTag) {
		return orientationUnspecified
	}
	var order binary.ByteOrder
	switch byteOrderTag {
	case byteOrderBE:
		order = binary.BigEndian
	case byteOrderLE:
		order = binary.LittleEndian
	default:
		return orientationUnspecified
	}
	if !skip(2) {
		return orientationUnspecified
	}

	var offset uint32
	if !read(order, &offset) || offset < 8 || !skip(int64(offset-8)) {
		return orientationUnspecified
	}

	var numTags uint16
	if !read(order, &numTags) {
		return orientationUnspecified
	}
	for i := 0; i < int(numTags); i++ {
		var tag uint16
		if !read(order, &tag) {
			return orientationUnspecified
		}
		if tag != orientationTag {
			if !skip(10) {
				return orientationUnspecified
			}
			continue
		}
		var val uint16
		if !skip(6) || !read(order, &val) || val < 1 || val > 8 {
			return orientationUnspecified
		}
		return orientation(val)
	}
	return orientationUnspecified
}

// fixOrientation returns p transformed according to o. Pixels are moved whole,
// so the transform works for every pixel format.
func fixOrientation(p *Pixels, o orientation) *Pixels {
	w, h := p.Width, p.Height
	var dstW, dstH int
	var src func(x, y int) (int, int) // destination -> source coordinates
	switch o {
	case orientationFlipH:
		dstW, dstH = w, h
		src = func(x, y int) (int, int) { return w - 1 - x, y }
	case orientationFlipV:
		dstW, dstH = w, h
		src = func(x, y int) (int, int) { return x, h - 1 - y }
	case orientationRotate180:
		dstW, dstH = w, h
		src = func(x, y int) (int, int) { return w - 1 - x, h - 1 - y }
	case orientationTranspose:
		dstW, dstH = h, w
		src = func(x, y int) (int, int) { return y, x }
	case orientationTransverse:
		dstW, dstH = h, w
		src = func(x, y int) (int, int) { return w - 1 - y, h - 1 - x }
	case orientationRotate90:
		// 90 degrees counter-clockwise.
		dstW, dstH = h, w
		src = func(x, y int) (int, int) { return w - 1 - y, x }
	case orientationRotate270:
		dstW, dstH = h, w
		src = func(x, y int) (int, int) { return y, h - 1 - x }
	default:
		return p
	}

	size := p.Format.PixelSize()
	dst := NewPixels(dstW, dstH, p.Format)
	parallel(0, dstH, func(ys <-chan int) {
		for y := range ys {
			for x := 0; x < dstW; x++ {
				sx, sy := src(x, y)
				si := (sy*w + sx) * size
				di := (y*dstW + x) * size
				copy(dst.Data[di:di+size], p.Data[si:si+size])
			}
		}
	})
	return dst
}

//
// utils
//

var maxProcs int64

// SetMaxProcs limits the number of goroutines used by Convert and by decoders
// for large images. A value less than 1 resets the limit to GOMAXPROCS.
func SetMaxProcs(value int) {
	atomic.StoreInt64(&maxProcs, int64(value))
}

// parallel processes the indexes in [start, stop) in separate goroutines.
func parallel(start, stop int, fn func(<-chan int)) {
	count := stop - start
	if count < 1 {
		return
	}

	procs := runtime.GOMAXPROCS(0)
	limit := int(atomic.LoadInt64(&maxProcs))
	if procs > limit && limit > 0 {
		procs = limit
	}
	if procs > count {
		procs = count
	}

	c := make(chan int, count)
	for i := start; i < stop; i++ {
		c <- i
	}
	close(c)

	var wg sync.WaitGroup
	for i := 0; i < procs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(c)
		}()
	}
	wg.Wait()
}

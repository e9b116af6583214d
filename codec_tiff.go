package imgio

import (
	"bytes"
	"image"
	"io"

	fallback "github.com/sunshineplan/tiff"
	"golang.org/x/image/tiff"
)

type tiffCodec struct{}

func (tiffCodec) FileFormat() FileFormat { return TIFF }

func (tiffCodec) Sniff(header []byte) bool {
	return bytes.HasPrefix(header, []byte("II*\x00")) || bytes.HasPrefix(header, []byte("MM\x00*"))
}

func (tiffCodec) IsFormatSupported(f PixelFormat) bool { return tiffPolicy.supported(f) }

func (tiffCodec) WriteFormat(in, out PixelFormat) PixelFormat { return tiffPolicy.resolve(in, out) }

// decodeTIFF tries golang.org/x/image/tiff first and falls back to a decoder
// that handles more compression schemes.
func decodeTIFF(data []byte) (image.Image, error) {
	img, err := tiff.Decode(bytes.NewReader(data))
	if err == nil {
		return img, nil
	}
	if img, ferr := fallback.Decode(bytes.NewReader(data)); ferr == nil {
		return img, nil
	}
	return nil, err
}

func (tiffCodec) Open(r io.ReadSeeker, opts ...DecodeOption) (Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, wrapError(LoadFailed, "tiff", err)
	}
	img, err := decodeTIFF(data)
	if err != nil {
		return nil, wrapError(LoadFailed, "tiff", err)
	}
	return newDecodedImage(TIFF, pixelsFromImage(img, nativeFormat(img)), ColourProfile{}), nil
}

func (tiffCodec) Encode(w io.Writer, data []byte, width, height int, in, out PixelFormat, profile *ColourProfile, opts ...EncodeOption) error {
	const op = "tiff"
	cfg, err := newEncodeConfig(TIFF, opts)
	if err != nil {
		return err
	}
	p, err := prepare(op, tiffPolicy, data, width, height, in, out)
	if err != nil {
		return err
	}
	img, err := imageFromPixels(p)
	if err != nil {
		return err
	}
	if err := tiff.Encode(w, img, &tiff.Options{Compression: cfg.tiffCompression.value(), Predictor: true}); err != nil {
		return encodeError(op, err)
	}
	return nil
}

package imgio

import (
	"errors"
	"io"
	"os"
	"sync/atomic"
)

// headerSize is the number of bytes Detect reads to identify a file.
const headerSize = 32

// Codec reads and writes one file format.
type Codec interface {
	// FileFormat returns the format handled by the codec.
	FileFormat() FileFormat
	// Sniff reports whether header, the first bytes of a file (possibly fewer
	// than 32 for short files), looks like this format.
	Sniff(header []byte) bool
	// Open parses r, positioned at the start of a file, and returns a handle on the image.
	Open(r io.ReadSeeker, opts ...DecodeOption) (Image, error)
	// IsFormatSupported reports whether the codec can write f without conversion.
	IsFormatSupported(f PixelFormat) bool
	// WriteFormat returns the format the codec writes for input in when out is requested.
	// It always returns a format for which IsFormatSupported is true. This is the layout
	// the codec is handed; the file may still store less, as PNG drops a fully opaque
	// alpha channel, so such an RGBA8U image reads back as RGB8U.
	WriteFormat(in, out PixelFormat) PixelFormat
	// Encode writes a width×height image held in data, in format in, converting it to
	// WriteFormat(in, out) first.
	Encode(w io.Writer, data []byte, width, height int, in, out PixelFormat, profile *ColourProfile, opts ...EncodeOption) error
}

// Registry dispatches to a set of codecs. It is read-only after construction and safe
// for concurrent use; the images it opens are not.
type Registry struct {
	codecs []Codec
	closed atomic.Bool
}

// NewRegistry returns a Registry holding codecs. Detect tries them in the given order,
// so codecs without a magic number should come last.
func NewRegistry(codecs ...Codec) *Registry {
	return &Registry{codecs: append([]Codec(nil), codecs...)}
}

// DefaultRegistry returns a new Registry holding every built-in codec.
// EXR is left out when half-float support is disabled.
func DefaultRegistry() *Registry {
	return NewRegistry(defaultCodecs()...)
}

func defaultCodecs() []Codec {
	return append(halfFloatCodecs(), pngCodec{}, jpegCodec{}, tiffCodec{}, hdrCodec{}, tgaCodec{})
}

// Close tears the registry down. Every later call fails with UnsupportedFileType.
func (reg *Registry) Close() error {
	reg.closed.Store(true)
	return nil
}

// Codec returns the codec for ff.
func (reg *Registry) Codec(ff FileFormat) (Codec, bool) {
	if reg.closed.Load() {
		return nil, false
	}
	for _, c := range reg.codecs {
		if c.FileFormat() == ff {
			return c, true
		}
	}
	return nil, false
}

// Formats lists the file formats of the registered codecs.
func (reg *Registry) Formats() (formats []FileFormat) {
	if reg.closed.Load() {
		return nil
	}
	for _, c := range reg.codecs {
		formats = append(formats, c.FileFormat())
	}
	return
}

func (reg *Registry) codec(op string, ff FileFormat) (Codec, error) {
	c, ok := reg.Codec(ff)
	if !ok {
		if reg.closed.Load() {
			return nil, newError(UnsupportedFileType, op, "registry closed")
		}
		return nil, newError(UnsupportedFileType, op, "no codec for %s", ff)
	}
	return c, nil
}

// Detect identifies the format of the file starting at the current position of r.
// The position is restored before Detect returns, whether it succeeds or not.
func (reg *Registry) Detect(r io.ReadSeeker) (ff FileFormat, err error) {
	const op = "detect"
	if reg.closed.Load() {
		return UnknownFileFormat, newError(UnsupportedFileType, op, "registry closed")
	}

	pos, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return UnknownFileFormat, wrapError(LoadFailed, op, err)
	}
	defer func() {
		if _, serr := r.Seek(pos, io.SeekStart); serr != nil && err == nil {
			ff, err = UnknownFileFormat, wrapError(LoadFailed, op, serr)
		}
	}()

	header := make([]byte, headerSize)
	n, err := io.ReadFull(r, header)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return UnknownFileFormat, wrapError(LoadFailed, op, err)
	}
	if n == 0 {
		return UnknownFileFormat, newError(OpenFailedEmptyInput, op, "no data")
	}
	header = header[:n]

	for _, c := range reg.codecs {
		if c.Sniff(header) {
			return c.FileFormat(), nil
		}
	}
	return UnknownFileFormat, newError(UnsupportedFileType, op, "no codec recognizes the data")
}

// Open detects the format of r and opens it with the matching codec.
func (reg *Registry) Open(r io.ReadSeeker, opts ...DecodeOption) (Image, FileFormat, error) {
	ff, err := reg.Detect(r)
	if err != nil {
		return nil, UnknownFileFormat, err
	}
	c, err := reg.codec("open", ff)
	if err != nil {
		return nil, UnknownFileFormat, err
	}
	img, err := c.Open(r, opts...)
	if err != nil {
		return nil, ff, wrapError(LoadFailed, "open "+ff.String(), err)
	}
	return img, ff, nil
}

// Write encodes a width×height image held in data, in format in, as ff.
// The pixel format written is WriteFormat(ff, in, out).
func (reg *Registry) Write(w io.Writer, ff FileFormat, data []byte, width, height int, in, out PixelFormat, profile *ColourProfile, opts ...EncodeOption) error {
	c, err := reg.codec("write", ff)
	if err != nil {
		return err
	}
	return c.Encode(w, data, width, height, in, out, profile, opts...)
}

// IsFormatSupported reports whether the codec for ff writes f without conversion.
func (reg *Registry) IsFormatSupported(ff FileFormat, f PixelFormat) bool {
	c, ok := reg.Codec(ff)
	return ok && c.IsFormatSupported(f)
}

// WriteFormat returns the pixel format the codec for ff writes for input in when out
// is requested, or InvalidFormat if there is no such codec. See Codec.WriteFormat for
// the case where the file stores fewer channels.
func (reg *Registry) WriteFormat(ff FileFormat, in, out PixelFormat) PixelFormat {
	c, ok := reg.Codec(ff)
	if !ok {
		return InvalidFormat
	}
	return c.WriteFormat(in, out)
}

// Load opens r and decodes it to force, or to its native format when force is InvalidFormat.
func (reg *Registry) Load(r io.ReadSeeker, force PixelFormat, opts ...DecodeOption) (*Pixels, FileFormat, error) {
	img, ff, err := reg.Open(r, opts...)
	if err != nil {
		return nil, ff, err
	}
	defer img.Close()

	info := img.Info()
	if force == InvalidFormat {
		force = info.DecodeFormat
	}
	if err := checkConvertFormat("load", force); err != nil {
		return nil, ff, err
	}
	p := NewPixels(info.Width, info.Height, force)
	if err := img.Decode(p.Data, force); err != nil {
		return nil, ff, err
	}
	return p, ff, nil
}

var std = DefaultRegistry()

// Load decodes r with the built-in codecs. See Registry.Load.
func Load(r io.ReadSeeker, force PixelFormat, opts ...DecodeOption) (*Pixels, FileFormat, error) {
	return std.Load(r, force, opts...)
}

// DecodeFile loads an image from file with the built-in codecs.
func DecodeFile(file string, force PixelFormat, opts ...DecodeOption) (*Pixels, FileFormat, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, UnknownFileFormat, wrapError(LoadFailed, "open", err)
	}
	defer f.Close()

	return std.Load(f, force, opts...)
}

// SaveFile saves p to file, choosing the codec from the file extension.
func SaveFile(file string, p *Pixels, out PixelFormat, profile *ColourProfile, opts ...EncodeOption) error {
	ff, err := FormatFromFilename(file)
	if err != nil {
		return newError(UnsupportedFileType, "save", "%s: %v", file, err)
	}
	f, err := os.Create(file)
	if err != nil {
		return wrapError(WriteFailed, "save", err)
	}
	defer f.Close()

	if err := std.Write(f, ff, p.Data, p.Width, p.Height, p.Format, out, profile, opts...); err != nil {
		return err
	}
	return wrapError(WriteFailed, "save", f.Close())
}

// IsFormatSupported reports whether the built-in codec for ff writes f without conversion.
func IsFormatSupported(ff FileFormat, f PixelFormat) bool {
	return std.IsFormatSupported(ff, f)
}

// WriteFormat returns the pixel format the built-in codec for ff writes. See Registry.WriteFormat.
func WriteFormat(ff FileFormat, in, out PixelFormat) PixelFormat {
	return std.WriteFormat(ff, in, out)
}

// prepare checks the arguments of an encode and converts data to the format policy writes.
func prepare(op string, policy writePolicy, data []byte, width, height int, in, out PixelFormat) (*Pixels, error) {
	if err := checkConvertFormat(op, in); err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 {
		return nil, newError(InvalidArgument, op, "invalid dimensions %dx%d", width, height)
	}
	if !in.fits(width, height) {
		return nil, newError(InvalidArgument, op, "dimensions %dx%d too large", width, height)
	}
	if need := in.BufferSize(width, height); len(data) < need {
		return nil, newError(InvalidArgument, op, "source buffer too small: have %d bytes, need %d", len(data), need)
	}
	p := &Pixels{Data: data[:in.BufferSize(width, height)], Width: width, Height: height, Format: in}
	if wf := policy.resolve(in, out); wf != in {
		return p.Convert(wf)
	}
	return p, nil
}

// profileData returns the ICC data to embed when writing in as wf. A profile does not
// survive a change of channel count, except between RGB and RGBA.
func profileData(profile *ColourProfile, in, wf PixelFormat) []byte {
	if profile == nil || len(profile.Data) == 0 {
		return nil
	}
	a, b := in.Channels(), wf.Channels()
	if a != b && !(a >= 3 && b >= 3) {
		return nil
	}
	return profile.Data
}

// encodeError wraps an error from an encoder library.
func encodeError(op string, err error) error {
	return wrapError(WriteFailed, op, err)
}

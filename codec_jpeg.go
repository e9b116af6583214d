package imgio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"image/jpeg"
	"io"
	"sort"

	"github.com/disintegration/imaging"
)

const (
	markerStart = 0xFF
	markerSOI   = 0xD8
	markerEOI   = 0xD9
	markerSOS   = 0xDA
	markerAPP2  = 0xE2
)

var iccSignature = []byte("ICC_PROFILE\x00")

// maxICCChunk is the profile payload of one APP2 segment.
const maxICCChunk = 0xFFFF - 2 - 14

type jpegCodec struct{}

func (jpegCodec) FileFormat() FileFormat { return JPEG }

func (jpegCodec) Sniff(header []byte) bool {
	return len(header) >= 3 && header[0] == markerStart && header[1] == markerSOI && header[2] == markerStart
}

func (jpegCodec) IsFormatSupported(f PixelFormat) bool { return jpegPolicy.supported(f) }

func (jpegCodec) WriteFormat(in, out PixelFormat) PixelFormat { return jpegPolicy.resolve(in, out) }

func (jpegCodec) Open(r io.ReadSeeker, opts ...DecodeOption) (Image, error) {
	cfg := newDecodeConfig(opts)
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, wrapError(LoadFailed, "jpeg", err)
	}

	var profile ColourProfile
	if app2, err := extractAPP2(data); err == nil {
		if icc := collectICCProfile(app2); len(icc) > 0 {
			profile = ColourProfile{Name: "ICC_PROFILE", Data: icc}
		}
	}

	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, wrapError(LoadFailed, "jpeg", err)
	}
	f := RGB8U
	if _, ok := img.(*image.Gray); ok {
		f = R8U
	}
	p := pixelsFromImage(img, f)
	if cfg.autoOrientation {
		p = fixOrientation(p, readOrientation(bytes.NewReader(data)))
	}
	return newDecodedImage(JPEG, p, profile), nil
}

func (jpegCodec) Encode(w io.Writer, data []byte, width, height int, in, out PixelFormat, profile *ColourProfile, opts ...EncodeOption) error {
	const op = "jpeg"
	cfg, err := newEncodeConfig(JPEG, opts)
	if err != nil {
		return err
	}
	p, err := prepare(op, jpegPolicy, data, width, height, in, out)
	if err != nil {
		return err
	}
	img, err := imageFromPixels(p)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(cfg.quality)); err != nil {
		return encodeError(op, err)
	}
	encoded := buf.Bytes()
	if icc := profileData(profile, in, p.Format); icc != nil {
		if encoded, err = insertICCSegments(encoded, icc); err != nil {
			return encodeError(op, err)
		}
	}
	if _, err := w.Write(encoded); err != nil {
		return encodeError(op, err)
	}
	return nil
}

// extractAPP2 returns the payloads of the APP2 segments before the first scan.
func extractAPP2(data []byte) (app2 [][]byte, err error) {
	if len(data) < 4 || data[0] != markerStart || data[1] != markerSOI {
		return nil, errors.New("invalid jpeg")
	}
	pos := 2
	for pos+3 < len(data) {
		if data[pos] != markerStart {
			pos++
			continue
		}
		for pos < len(data) && data[pos] == markerStart {
			pos++
		}
		if pos >= len(data) {
			break
		}
		marker := data[pos]
		pos++
		if marker == markerSOS || marker == markerEOI {
			break
		}
		if marker >= 0xD0 && marker <= 0xD7 {
			continue
		}
		if pos+1 >= len(data) {
			return nil, errors.New("truncated marker")
		}
		n := int(binary.BigEndian.Uint16(data[pos:]))
		if n < 2 || pos+n > len(data) {
			return nil, errors.New("invalid segment length")
		}
		if marker == markerAPP2 {
			app2 = append(app2, data[pos+2:pos+n])
		}
		pos += n
	}
	return app2, nil
}

// collectICCProfile joins the ICC_PROFILE chunks found in APP2 payloads, in sequence order.
func collectICCProfile(app2 [][]byte) []byte {
	type chunk struct {
		seq  int
		data []byte
	}
	var chunks []chunk
	for _, p := range app2 {
		if len(p) > len(iccSignature)+2 && bytes.HasPrefix(p, iccSignature) {
			chunks = append(chunks, chunk{seq: int(p[len(iccSignature)]), data: p[len(iccSignature)+2:]})
		}
	}
	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].seq < chunks[j].seq })
	var icc []byte
	for _, c := range chunks {
		icc = append(icc, c.data...)
	}
	return icc
}

// insertICCSegments splits icc into APP2 segments placed right after SOI.
func insertICCSegments(encoded, icc []byte) ([]byte, error) {
	if len(encoded) < 2 || encoded[0] != markerStart || encoded[1] != markerSOI {
		return nil, errors.New("invalid jpeg")
	}
	count := (len(icc) + maxICCChunk - 1) / maxICCChunk
	if count > 255 {
		return nil, errors.New("icc profile too large")
	}

	var out bytes.Buffer
	out.Write(encoded[:2])
	for i := 0; i < count; i++ {
		chunk := icc[i*maxICCChunk : min((i+1)*maxICCChunk, len(icc))]
		out.Write([]byte{markerStart, markerAPP2})
		binary.Write(&out, binary.BigEndian, uint16(2+len(iccSignature)+2+len(chunk)))
		out.Write(iccSignature)
		out.Write([]byte{byte(i + 1), byte(count)})
		out.Write(chunk)
	}
	out.Write(encoded[2:])
	return out.Bytes(), nil
}

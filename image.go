package imgio

// NoProfileName is the profile name reported for images without an embedded colour profile.
const NoProfileName = "no_profile"

// Info describes an opened image.
type Info struct {
	Width  int
	Height int
	// NumChannels, BytesPerChannel and Kind describe the samples stored in the file.
	// They are -1, -1 and KindUnknown when the file mixes sample types.
	NumChannels     int
	BytesPerChannel int
	Kind            Kind
	// DecodeFormat is the pixel format Decode produces when no format is forced.
	DecodeFormat PixelFormat
	// ColourProfileLen is the size of the embedded ICC profile in bytes.
	ColourProfileLen int
}

// ColourProfile is an embedded ICC colour profile.
type ColourProfile struct {
	Name string
	Data []byte
}

// Image is an opened image file. It is not safe for concurrent use.
type Image interface {
	// Info returns metadata about the image.
	Info() Info
	// ColourProfile returns the embedded colour profile. Its Name is NoProfileName and
	// Data is empty when the file has none.
	ColourProfile() ColourProfile
	// Decode writes the pixels into dst, which must hold Info().Width*Info().Height pixels
	// of the output format. The output format is force, or Info().DecodeFormat when force is
	// InvalidFormat. Decode may be called once.
	Decode(dst []byte, force PixelFormat) error
	// Close releases the decoder state. It does not close the underlying stream.
	Close() error
}

// decodedImage is an Image whose pixels were fully decoded when it was opened.
type decodedImage struct {
	format  FileFormat
	info    Info
	profile ColourProfile
	pixels  *Pixels
	done    bool
}

func newDecodedImage(ff FileFormat, p *Pixels, profile ColourProfile) *decodedImage {
	if profile.Name == "" {
		profile.Name = NoProfileName
	}
	channels, bytes, kind := p.Format.Details()
	return &decodedImage{
		format: ff,
		info: Info{
			Width:            p.Width,
			Height:           p.Height,
			NumChannels:      channels,
			BytesPerChannel:  bytes,
			Kind:             kind,
			DecodeFormat:     p.Format,
			ColourProfileLen: len(profile.Data),
		},
		profile: profile,
		pixels:  p,
	}
}

func (img *decodedImage) Info() Info { return img.info }

func (img *decodedImage) ColourProfile() ColourProfile { return img.profile }

func (img *decodedImage) Decode(dst []byte, force PixelFormat) error {
	op := "decode " + img.format.String()
	if img.pixels == nil {
		if img.done {
			return newError(LoadFailed, op, "image already decoded")
		}
		return newError(LoadFailed, op, "image closed")
	}
	if force == InvalidFormat {
		force = img.pixels.Format
	}
	if err := Convert(dst, img.pixels.Data, img.pixels.Width, img.pixels.Height, img.pixels.Format, force); err != nil {
		return err
	}
	img.pixels, img.done = nil, true
	return nil
}

func (img *decodedImage) Close() error {
	img.pixels = nil
	return nil
}

package imgio

// writePolicy decides the pixel format a codec writes for a given input and requested output.
type writePolicy struct {
	supported func(PixelFormat) bool
	// fallback maps a valid input format that is not supported to one that is.
	fallback func(in PixelFormat) PixelFormat
	// def is returned for an invalid input.
	def PixelFormat
}

// resolve never fails: the returned format is always one the codec can write.
//
//  1. a valid, supported output format different from in is honored;
//  2. otherwise a supported input format is written as is;
//  3. otherwise the codec fallback chooses.
func (p writePolicy) resolve(in, out PixelFormat) PixelFormat {
	if out != in && out.Valid() && p.supported(out) {
		return out
	}
	if !in.Valid() {
		return p.def
	}
	if p.supported(in) {
		return in
	}
	if f := p.fallback(in); f.Valid() && p.supported(f) {
		return f
	}
	return p.def
}

// fitDepth returns the smallest of depths (ascending) not below d, or the largest one.
func fitDepth(d BitDepth, depths ...BitDepth) BitDepth {
	for _, depth := range depths {
		if depth >= d {
			return depth
		}
	}
	return depths[len(depths)-1]
}

func oneOf(f PixelFormat, formats ...PixelFormat) bool {
	for _, i := range formats {
		if f == i {
			return true
		}
	}
	return false
}

var (
	pngPolicy = writePolicy{
		supported: func(f PixelFormat) bool {
			return f.Valid() && !f.IsFloat() && f.Channels() != 2
		},
		fallback: func(in PixelFormat) PixelFormat {
			c := in.Channels()
			if c == 2 {
				c = 3
			}
			if in.IsFloat() {
				return NewPixelFormat(c, Depth16, KindInt)
			}
			return in.WithChannels(c)
		},
		def: RGBA8U,
	}

	exrPolicy = writePolicy{
		supported: func(f PixelFormat) bool {
			return f.Valid() && f.IsFloat()
		},
		fallback: func(in PixelFormat) PixelFormat {
			if in.BytesPerChannel() > 2 {
				return NewPixelFormat(in.Channels(), Depth32, KindFloat)
			}
			return NewPixelFormat(in.Channels(), Depth16, KindFloat)
		},
		def: RGBA32F,
	}

	jpegPolicy = writePolicy{
		supported: func(f PixelFormat) bool {
			return oneOf(f, R8U, RGB8U)
		},
		fallback: func(in PixelFormat) PixelFormat {
			if in.Channels() == 1 {
				return R8U
			}
			return RGB8U
		},
		def: RGB8U,
	}

	tgaPolicy = writePolicy{
		supported: func(f PixelFormat) bool {
			return oneOf(f, R8U, RGB8U, RGBA8U)
		},
		fallback: func(in PixelFormat) PixelFormat {
			switch in.Channels() {
			case 1:
				return R8U
			case 4:
				return RGBA8U
			}
			return RGB8U
		},
		def: RGBA8U,
	}

	tiffPolicy = writePolicy{
		supported: func(f PixelFormat) bool {
			return f.Valid() && !f.IsFloat() && (f.Channels() == 1 || f.Channels() == 4)
		},
		fallback: func(in PixelFormat) PixelFormat {
			c := 4
			if in.Channels() == 1 {
				c = 1
			}
			return NewPixelFormat(c, fitDepth(in.BitDepth(), Depth8, Depth16), KindInt)
		},
		def: RGBA8U,
	}

	hdrPolicy = writePolicy{
		supported: func(f PixelFormat) bool { return f == RGB32F },
		fallback:  func(PixelFormat) PixelFormat { return RGB32F },
		def:       RGB32F,
	}
)

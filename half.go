//go:build !nohalf

package imgio

import "github.com/x448/float16"

// HalfFloatSupported reports whether this build handles 16-bit float formats.
// Build with the nohalf tag to leave them (and the EXR codec) out.
const HalfFloatSupported = true

func halfToFloat32(bits uint16) float32 {
	return float16.Frombits(bits).Float32()
}

func float32ToHalf(v float32) uint16 {
	return float16.Fromfloat32(v).Bits()
}

//go:build nohalf

package imgio

// HalfFloatSupported reports whether this build handles 16-bit float formats.
const HalfFloatSupported = false

// Convert rejects half formats before any sample is touched in this build.
func halfToFloat32(uint16) float32 { panic("imgio: built without half-float support") }

func float32ToHalf(float32) uint16 { panic("imgio: built without half-float support") }

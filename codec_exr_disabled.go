//go:build nohalf

package imgio

// Every EXR pixel format is a float format; without half floats the codec is not built.
func halfFloatCodecs() []Codec { return nil }

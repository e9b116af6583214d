package imgio

import (
	"errors"
	"io"
)

var errNegativePosition = errors.New("imgio: negative position")

// MemoryBuffer reads and writes a fixed-size byte slice.
// Writes past the end of the slice are truncated and reported with io.ErrShortWrite.
// A MemoryBuffer is not safe for concurrent use.
type MemoryBuffer struct {
	buf []byte
	pos int64
}

// NewMemoryBuffer returns a MemoryBuffer over buf. The buffer is used in place.
func NewMemoryBuffer(buf []byte) *MemoryBuffer {
	return &MemoryBuffer{buf: buf}
}

func (m *MemoryBuffer) Read(p []byte) (int, error) {
	if m.pos >= int64(len(m.buf)) {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	n := copy(p, m.buf[m.pos:])
	m.pos += int64(n)
	return n, nil
}

func (m *MemoryBuffer) Write(p []byte) (int, error) {
	var n int
	if m.pos < int64(len(m.buf)) {
		n = copy(m.buf[m.pos:], p)
	}
	m.pos += int64(n)
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

func (m *MemoryBuffer) Seek(offset int64, whence int) (int64, error) {
	pos, err := seek(m.pos, int64(len(m.buf)), offset, whence)
	if err != nil {
		return m.pos, err
	}
	m.pos = pos
	return pos, nil
}

// Tell returns the current position.
func (m *MemoryBuffer) Tell() int64 { return m.pos }

// Bytes returns the underlying slice.
func (m *MemoryBuffer) Bytes() []byte { return m.buf }

// ResizableBuffer is like MemoryBuffer, but grows when written past its end.
// Seeking past the end and writing fills the gap with zeros.
type ResizableBuffer struct {
	buf []byte
	pos int64
}

// NewResizableBuffer returns a ResizableBuffer starting with the content of buf.
// buf may be nil.
func NewResizableBuffer(buf []byte) *ResizableBuffer {
	return &ResizableBuffer{buf: buf}
}

func (m *ResizableBuffer) Read(p []byte) (int, error) {
	if m.pos >= int64(len(m.buf)) {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	n := copy(p, m.buf[m.pos:])
	m.pos += int64(n)
	return n, nil
}

func (m *ResizableBuffer) Write(p []byte) (int, error) {
	if end := m.pos + int64(len(p)); end > int64(len(m.buf)) {
		if end <= int64(cap(m.buf)) {
			size := int64(len(m.buf))
			m.buf = m.buf[:end]
			if m.pos > size {
				clear(m.buf[size:m.pos])
			}
		} else {
			buf := make([]byte, end, 2*end)
			copy(buf, m.buf)
			m.buf = buf
		}
	}
	n := copy(m.buf[m.pos:], p)
	m.pos += int64(n)
	return n, nil
}

func (m *ResizableBuffer) Seek(offset int64, whence int) (int64, error) {
	pos, err := seek(m.pos, int64(len(m.buf)), offset, whence)
	if err != nil {
		return m.pos, err
	}
	m.pos = pos
	return pos, nil
}

// Tell returns the current position.
func (m *ResizableBuffer) Tell() int64 { return m.pos }

// Bytes returns the written content.
func (m *ResizableBuffer) Bytes() []byte { return m.buf }

func seek(pos, size, offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += pos
	case io.SeekEnd:
		offset += size
	default:
		return 0, errors.New("imgio: invalid whence")
	}
	if offset < 0 {
		return 0, errNegativePosition
	}
	return offset, nil
}

package reader

// streaming.go wraps raw input so the CSV decoder never sees the quirks of
// files exported from spreadsheets:
//
//   - bomReader drops a leading UTF-8 BOM (0xEF 0xBB 0xBF)
//   - utf8Sanitizer replaces invalid UTF-8 bytes with '?'
//   - sizeLimitReader fails once more than a maximum number of bytes is read
//
// wrapInput applies them in that order.

import (
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// ErrFileTooLarge is returned when an input exceeds the configured size limit.
var ErrFileTooLarge = errors.New("file too large")

// bomReader skips the UTF-8 BOM if present at the start of the stream.
type bomReader struct {
	r       io.Reader
	checked bool
	head    []byte
}

func newBOMReader(r io.Reader) *bomReader {
	return &bomReader{r: r}
}

func (b *bomReader) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true

		var buf [3]byte
		n, err := io.ReadFull(b.r, buf[:])
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return 0, err
		}
		if !(n == 3 && buf[0] == 0xEF && buf[1] == 0xBB && buf[2] == 0xBF) {
			b.head = append(b.head, buf[:n]...)
		}
		if n < 3 && len(b.head) == 0 {
			return 0, io.EOF
		}
	}

	if len(b.head) > 0 {
		n := copy(p, b.head)
		b.head = b.head[n:]
		return n, nil
	}

	return b.r.Read(p)
}

// utf8Sanitizer replaces invalid UTF-8 bytes with '?'. Multi-byte runes
// split across reads are carried over to the next call.
type utf8Sanitizer struct {
	r       io.Reader
	pending []byte
}

func newUTF8Sanitizer(r io.Reader) *utf8Sanitizer {
	return &utf8Sanitizer{r: r, pending: make([]byte, 0, utf8.UTFMax)}
}

func (s *utf8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	offset := 0
	if len(s.pending) > 0 {
		offset = copy(p, s.pending)
		s.pending = s.pending[:0]
	}

	n, err := s.r.Read(p[offset:])
	n += offset
	if n == 0 {
		return 0, err
	}

	data := p[:n]
	if isASCII(data) {
		return n, err
	}
	return s.sanitize(data, err == io.EOF), err
}

// sanitize rewrites data in place and returns the number of bytes to emit.
// Unless atEOF, an incomplete rune at the tail is held back in pending.
func (s *utf8Sanitizer) sanitize(data []byte, atEOF bool) int {
	w := 0
	for r := 0; r < len(data); {
		if !atEOF && incompleteTail(data[r:]) {
			s.pending = append(s.pending, data[r:]...)
			return w
		}

		c, size := utf8.DecodeRune(data[r:])
		if c == utf8.RuneError && size == 1 {
			data[w] = '?'
			w++
			r++
			continue
		}
		copy(data[w:], data[r:r+size])
		w += size
		r += size
	}
	return w
}

func isASCII(data []byte) bool {
	for _, b := range data {
		if b >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// incompleteTail reports whether data is the valid prefix of a multi-byte
// rune that was cut off by the end of the buffer.
func incompleteTail(data []byte) bool {
	if len(data) >= utf8.UTFMax || utf8.FullRune(data) {
		return false
	}
	want := 0
	switch b := data[0]; {
	case b&0xE0 == 0xC0:
		want = 2
	case b&0xF0 == 0xE0:
		want = 3
	case b&0xF8 == 0xF0:
		want = 4
	default:
		return false
	}
	if len(data) >= want {
		return false
	}
	for _, c := range data[1:] {
		if c&0xC0 != 0x80 {
			return false
		}
	}
	return true
}

// sizeLimitReader returns ErrFileTooLarge once more than max bytes are read.
// A max of zero or less disables the limit.
type sizeLimitReader struct {
	r    io.Reader
	max  int64
	read int64
}

func (l *sizeLimitReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.read += int64(n)
	if l.max > 0 && l.read > l.max {
		return n, fmt.Errorf("%w: more than %d bytes", ErrFileTooLarge, l.max)
	}
	return n, err
}

// wrapInput applies BOM skipping, UTF-8 sanitizing and the size limit.
func wrapInput(r io.Reader, maxBytes int64) io.Reader {
	limited := &sizeLimitReader{r: r, max: maxBytes}
	return newUTF8Sanitizer(newBOMReader(limited))
}

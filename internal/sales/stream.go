package sales

// stream.go provides the reader chain that feeds an upload into the
// staging COPY without loading the file into memory:
//
//   - BOMSkippingReader: removes a UTF-8 BOM (0xEF 0xBB 0xBF) from Windows files
//   - UTF8CheckingReader: fails the stream on invalid UTF-8 (no transcoding)
//   - CountingReader: tracks bytes streamed, for metrics
//
// Use WrapForCopy to apply all three in the correct order.

import (
	"fmt"
	"io"
	"unicode/utf8"
)

// DefaultCopyChunkSize is the read-buffer size used when streaming into COPY.
const DefaultCopyChunkSize = 1 << 20

// BOMSkippingReader wraps an io.Reader and skips a leading UTF-8 BOM if
// present. Windows tools commonly prepend one to CSV exports.
type BOMSkippingReader struct {
	reader     io.Reader
	bomChecked bool
	buf        [3]byte
	bufData    []byte
	bufOffset  int
}

// NewBOMSkippingReader creates a new BOM-skipping reader.
func NewBOMSkippingReader(r io.Reader) *BOMSkippingReader {
	return &BOMSkippingReader{reader: r}
}

// Read implements io.Reader. On the first read it checks for and skips the BOM.
func (r *BOMSkippingReader) Read(p []byte) (int, error) {
	if !r.bomChecked {
		r.bomChecked = true

		n, err := io.ReadFull(r.reader, r.buf[:])
		if n == 0 {
			if err == io.ErrUnexpectedEOF {
				err = io.EOF
			}
			return 0, err
		}

		if n >= 3 && r.buf[0] == 0xEF && r.buf[1] == 0xBB && r.buf[2] == 0xBF {
			r.bufData = nil
		} else {
			r.bufData = r.buf[:n]
			r.bufOffset = 0
		}

		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		if err != nil && err != io.EOF {
			return 0, err
		}
	}

	if len(r.bufData) > r.bufOffset {
		copied := copy(p, r.bufData[r.bufOffset:])
		r.bufOffset += copied
		if r.bufOffset >= len(r.bufData) {
			r.bufData = nil
		}
		return copied, nil
	}

	return r.reader.Read(p)
}

// UTF8CheckingReader wraps an io.Reader and fails with ErrInvalidUTF8 when
// the stream contains bytes that are not valid UTF-8. Unlike a sanitizer it
// never rewrites the data: a malformed upload aborts the import so the
// transaction rolls back with no partial writes.
type UTF8CheckingReader struct {
	reader io.Reader

	// pending holds a possibly incomplete multi-byte sequence carried over
	// from the previous read.
	pending []byte
}

// NewUTF8CheckingReader creates a new strict UTF-8 validating reader.
func NewUTF8CheckingReader(r io.Reader) *UTF8CheckingReader {
	return &UTF8CheckingReader{
		reader:  r,
		pending: make([]byte, 0, utf8.UTFMax),
	}
}

// Read implements io.Reader. It delivers only whole, valid UTF-8 sequences;
// an incomplete sequence at the end of a read is held back until the next
// read completes it.
func (r *UTF8CheckingReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	offset := copy(p, r.pending)
	r.pending = r.pending[:0]

	n, err := r.reader.Read(p[offset:])
	n += offset
	if n == 0 {
		return 0, err
	}

	atEOF := err == io.EOF
	data := p[:n]

	// Fast path: wholly valid, nothing carried over.
	if utf8.Valid(data) {
		return n, err
	}

	// Walk runes to find whether the problem is a genuinely invalid byte or
	// just a multi-byte sequence cut off at the buffer boundary.
	i := 0
	for i < len(data) {
		if data[i] < utf8.RuneSelf {
			i++
			continue
		}
		ru, size := utf8.DecodeRune(data[i:])
		if ru == utf8.RuneError && size == 1 {
			if !atEOF && expectedRuneLen(data[i]) > len(data)-i {
				// Incomplete tail; hold it back for the next read.
				r.pending = append(r.pending, data[i:]...)
				return i, nil
			}
			return i, fmt.Errorf("%w: invalid byte at stream offset", ErrInvalidUTF8)
		}
		i += size
	}

	return n, err
}

// expectedRuneLen returns the length a UTF-8 sequence starting with b
// should have, or 0 if b cannot start a sequence.
func expectedRuneLen(b byte) int {
	switch {
	case b < 0x80:
		return 1
	case b < 0xC0:
		return 0
	case b < 0xE0:
		return 2
	case b < 0xF0:
		return 3
	default:
		return 4
	}
}

// CountingReader wraps an io.Reader to track bytes read.
type CountingReader struct {
	reader    io.Reader
	BytesRead int64
}

// NewCountingReader creates a counting reader.
func NewCountingReader(r io.Reader) *CountingReader {
	return &CountingReader{reader: r}
}

// Read implements io.Reader.
func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	return n, err
}

// WrapForCopy chains BOM skipping, strict UTF-8 checking, and byte counting
// around r. The BOM must be stripped before validation sees the stream.
func WrapForCopy(r io.Reader) *CountingReader {
	bomReader := NewBOMSkippingReader(r)
	checked := NewUTF8CheckingReader(bomReader)
	return NewCountingReader(checked)
}

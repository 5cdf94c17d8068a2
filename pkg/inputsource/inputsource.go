// Package inputsource defines the byte-source contract concrete decoders
// read from (spec.md §6). Implementations live in its subpackages
// (file, memory, httpsource).
package inputsource

import (
	"encoding/binary"
	"io"
)

// InputSource abstracts a seekable or streaming byte source.
type InputSource interface {
	Open() error
	Close() error

	// Read reads up to len(buf) bytes, returning the number read. It
	// follows io.Reader-like short-read semantics, except that it
	// reports end-of-stream via AtEOF rather than a returned io.EOF (see
	// Reader, which bridges the two for callers that need a plain
	// io.Reader).
	Read(buf []byte) (int, error)

	AtEOF() bool
	Offset() int64
	Length() int64 // -1 if unknown (e.g. a live HTTP stream without Content-Length)

	SupportsSeeking() bool
	SeekToOffset(offset int64) error
}

// Reader adapts an InputSource to io.Reader, translating a zero-length
// read at end-of-stream into io.EOF. Decode libraries that consume a
// plain io.Reader (go-mp3, oggvorbis) expect that signal; InputSource
// itself reports end-of-stream through AtEOF instead so that concrete
// sources (httpsource in particular) aren't forced to treat a normal
// stream end as an error condition.
type Reader struct {
	Src InputSource
}

func (r Reader) Read(buf []byte) (int, error) {
	n, err := r.Src.Read(buf)
	if err != nil {
		return n, err
	}
	if n == 0 && r.Src.AtEOF() {
		return 0, io.EOF
	}
	return n, nil
}

// TypedReader adds fixed-width big/little-endian reads on top of an
// InputSource, for decoders parsing binary container headers.
type TypedReader struct {
	Src InputSource
}

func (t TypedReader) read(n int) ([]byte, error) {
	buf := make([]byte, n)
	read := 0
	for read < n {
		m, err := t.Src.Read(buf[read:])
		read += m
		if err != nil {
			return buf[:read], err
		}
		if m == 0 {
			break
		}
	}
	return buf[:read], nil
}

func (t TypedReader) ReadUint16LE() (uint16, error) {
	b, err := t.read(2)
	if err != nil && len(b) < 2 {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (t TypedReader) ReadUint16BE() (uint16, error) {
	b, err := t.read(2)
	if err != nil && len(b) < 2 {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (t TypedReader) ReadUint32LE() (uint32, error) {
	b, err := t.read(4)
	if err != nil && len(b) < 4 {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (t TypedReader) ReadUint32BE() (uint32, error) {
	b, err := t.read(4)
	if err != nil && len(b) < 4 {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (t TypedReader) ReadUint64LE() (uint64, error) {
	b, err := t.read(8)
	if err != nil && len(b) < 8 {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (t TypedReader) ReadUint64BE() (uint64, error) {
	b, err := t.read(8)
	if err != nil && len(b) < 8 {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

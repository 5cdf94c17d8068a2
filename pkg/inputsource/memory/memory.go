// Package memory implements inputsource.InputSource over an in-memory
// byte slice, grounded on original_source/Input/MemoryInputSource.cpp.
package memory

import (
	"errors"

	"github.com/drgolem/audioengine/pkg/inputsource"
)

// Source serves bytes from a region of memory.
type Source struct {
	data []byte
	pos  int64
}

var _ inputsource.InputSource = (*Source)(nil)

// New wraps data. The slice is used directly, not copied; callers must
// not mutate it while the Source is in use.
func New(data []byte) *Source {
	return &Source{data: data}
}

func (s *Source) Open() error  { s.pos = 0; return nil }
func (s *Source) Close() error { return nil }

func (s *Source) Read(buf []byte) (int, error) {
	if s.pos >= int64(len(s.data)) {
		return 0, nil
	}
	n := copy(buf, s.data[s.pos:])
	s.pos += int64(n)
	return n, nil
}

func (s *Source) AtEOF() bool     { return s.pos >= int64(len(s.data)) }
func (s *Source) Offset() int64   { return s.pos }
func (s *Source) Length() int64   { return int64(len(s.data)) }
func (s *Source) SupportsSeeking() bool { return true }

func (s *Source) SeekToOffset(offset int64) error {
	if offset < 0 || offset > int64(len(s.data)) {
		return errors.New("memory: seek offset out of range")
	}
	s.pos = offset
	return nil
}

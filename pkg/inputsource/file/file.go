// Package file implements inputsource.InputSource over an os.File,
// grounded on original_source/Input/FileInputSource.cpp.
package file

import (
	"io"
	"os"

	"github.com/drgolem/audioengine/pkg/inputsource"
)

// Source reads a local file.
type Source struct {
	path string
	f    *os.File
	size int64
	eof  bool
}

var _ inputsource.InputSource = (*Source)(nil)

// New creates a file Source for path. Open must be called before use.
func New(path string) *Source {
	return &Source{path: path}
}

func (s *Source) Open() error {
	f, err := os.Open(s.path)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	s.f = f
	s.size = info.Size()
	return nil
}

func (s *Source) Close() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

func (s *Source) Read(buf []byte) (int, error) {
	n, err := s.f.Read(buf)
	if err == io.EOF {
		s.eof = true
		return n, nil
	}
	return n, err
}

func (s *Source) AtEOF() bool { return s.eof }

func (s *Source) Offset() int64 {
	off, _ := s.f.Seek(0, io.SeekCurrent)
	return off
}

func (s *Source) Length() int64 { return s.size }

func (s *Source) SupportsSeeking() bool { return true }

func (s *Source) SeekToOffset(offset int64) error {
	_, err := s.f.Seek(offset, io.SeekStart)
	if err == nil {
		s.eof = false
	}
	return err
}

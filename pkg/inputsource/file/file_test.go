package file

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.bin")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestOpenReadsWholeFileAndReportsEOF(t *testing.T) {
	data := []byte("hello, world")
	path := writeTempFile(t, data)

	s := New(path)
	if err := s.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if s.Length() != int64(len(data)) {
		t.Errorf("Length() = %d, want %d", s.Length(), len(data))
	}

	buf := make([]byte, len(data))
	n, err := s.Read(buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if n != len(data) || string(buf) != string(data) {
		t.Errorf("Read = %q (%d bytes), want %q", buf[:n], n, data)
	}

	if s.AtEOF() {
		t.Error("AtEOF should be false before a short/zero read")
	}
	n, err = s.Read(buf)
	if err != nil {
		t.Fatalf("second Read failed: %v", err)
	}
	if n != 0 || !s.AtEOF() {
		t.Errorf("second Read = (%d, eof=%v), want (0, eof=true)", n, s.AtEOF())
	}
}

func TestSeekToOffsetClearsEOF(t *testing.T) {
	data := []byte("0123456789")
	path := writeTempFile(t, data)

	s := New(path)
	if err := s.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	buf := make([]byte, len(data))
	if _, err := s.Read(buf); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	s.Read(buf) // drive AtEOF true
	if !s.AtEOF() {
		t.Fatal("expected AtEOF after draining file")
	}

	if err := s.SeekToOffset(5); err != nil {
		t.Fatalf("SeekToOffset failed: %v", err)
	}
	if s.AtEOF() {
		t.Error("AtEOF should be cleared after seeking")
	}

	rest := make([]byte, 5)
	n, err := s.Read(rest)
	if err != nil {
		t.Fatalf("Read after seek failed: %v", err)
	}
	if string(rest[:n]) != "56789" {
		t.Errorf("Read after seek = %q, want %q", rest[:n], "56789")
	}
}

func TestOpenMissingFile(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "missing.bin"))
	if err := s.Open(); err == nil {
		t.Error("expected error opening a nonexistent file")
	}
}

func TestSupportsSeeking(t *testing.T) {
	s := New("anything")
	if !s.SupportsSeeking() {
		t.Error("file.Source should support seeking")
	}
}

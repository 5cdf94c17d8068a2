package inputsource

import (
	"errors"
	"io"
	"testing"
)

type fakeSource struct {
	chunks [][]byte
	idx    int
	atEOF  bool
	err    error
}

func (f *fakeSource) Open() error  { return nil }
func (f *fakeSource) Close() error { return nil }

func (f *fakeSource) Read(buf []byte) (int, error) {
	if f.idx >= len(f.chunks) {
		f.atEOF = true
		if f.err != nil {
			return 0, f.err
		}
		return 0, nil
	}
	n := copy(buf, f.chunks[f.idx])
	f.idx++
	return n, nil
}

func (f *fakeSource) AtEOF() bool                  { return f.atEOF }
func (f *fakeSource) Offset() int64                { return 0 }
func (f *fakeSource) Length() int64                { return -1 }
func (f *fakeSource) SupportsSeeking() bool        { return false }
func (f *fakeSource) SeekToOffset(offset int64) error { return errors.New("not supported") }

func TestReaderTranslatesAtEOFToIOEOF(t *testing.T) {
	src := &fakeSource{chunks: [][]byte{[]byte("abc")}}
	r := Reader{Src: src}

	buf := make([]byte, 8)
	n, err := r.Read(buf)
	if err != nil {
		t.Fatalf("first Read failed: %v", err)
	}
	if string(buf[:n]) != "abc" {
		t.Errorf("first Read = %q, want %q", buf[:n], "abc")
	}

	n, err = r.Read(buf)
	if n != 0 || err != io.EOF {
		t.Errorf("second Read = (%d, %v), want (0, io.EOF)", n, err)
	}
}

func TestReaderPropagatesUnderlyingError(t *testing.T) {
	wantErr := errors.New("boom")
	src := &fakeSource{err: wantErr}
	r := Reader{Src: src}

	buf := make([]byte, 8)
	if _, err := r.Read(buf); err != wantErr {
		t.Errorf("Read error = %v, want %v", err, wantErr)
	}
}

func TestTypedReaderReadsBigAndLittleEndian(t *testing.T) {
	src := &fakeSource{chunks: [][]byte{{0x01, 0x02, 0x03, 0x04}}}
	tr := TypedReader{Src: src}

	v, err := tr.ReadUint32BE()
	if err != nil {
		t.Fatalf("ReadUint32BE failed: %v", err)
	}
	if v != 0x01020304 {
		t.Errorf("ReadUint32BE = %#x, want 0x01020304", v)
	}

	src2 := &fakeSource{chunks: [][]byte{{0x01, 0x02}}}
	tr2 := TypedReader{Src: src2}
	v16, err := tr2.ReadUint16LE()
	if err != nil {
		t.Fatalf("ReadUint16LE failed: %v", err)
	}
	if v16 != 0x0201 {
		t.Errorf("ReadUint16LE = %#x, want 0x0201", v16)
	}
}

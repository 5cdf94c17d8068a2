package g711

import "testing"

func TestNewDecoder(t *testing.T) {
	d := NewDecoder("test.alaw", ALaw, 8000)
	if d == nil {
		t.Fatal("NewDecoder returned nil")
	}
	if d.Path != "test.alaw" {
		t.Errorf("Path = %q, want %q", d.Path, "test.alaw")
	}
	if d.Law != ALaw {
		t.Errorf("Law = %v, want ALaw", d.Law)
	}
}

func TestNewDecoderDefaultsSampleRate(t *testing.T) {
	d := NewDecoder("test.ulaw", ULaw, 0)
	if d.SampleRateHz != 8000 {
		t.Errorf("SampleRateHz = %d, want 8000", d.SampleRateHz)
	}
}

func TestDecoderCloseWithoutOpen(t *testing.T) {
	d := NewDecoder("test.alaw", ALaw, 8000)
	if err := d.Close(); err != nil {
		t.Errorf("Close on unopened decoder failed: %v", err)
	}
}

func TestOpenMissingFile(t *testing.T) {
	d := NewDecoder("does-not-exist.alaw", ALaw, 8000)
	if err := d.Open(); err == nil {
		t.Error("expected error opening a nonexistent file")
	}
}

func TestDecoderDoesNotSupportSeeking(t *testing.T) {
	d := NewDecoder("test.alaw", ALaw, 8000)
	if d.SupportsSeeking() {
		t.Error("G.711 adapter does not support seeking")
	}
	if got := d.SeekToFrame(100); got != -1 {
		t.Errorf("SeekToFrame = %d, want -1", got)
	}
}

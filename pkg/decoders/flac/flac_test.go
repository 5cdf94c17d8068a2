package flac

import "testing"

func TestNewDecoder(t *testing.T) {
	d := NewDecoder("test.flac")
	if d == nil {
		t.Fatal("NewDecoder returned nil")
	}
	if d.Path != "test.flac" {
		t.Errorf("Path = %q, want %q", d.Path, "test.flac")
	}
}

func TestDecoderFormatBeforeOpen(t *testing.T) {
	d := NewDecoder("test.flac")
	if got := d.SourceFormat(); got.Channels != 0 || got.SampleRate != 0 {
		t.Errorf("expected zero-value format before Open, got %+v", got)
	}
}

func TestDecoderCloseWithoutOpen(t *testing.T) {
	d := NewDecoder("test.flac")
	if err := d.Close(); err != nil {
		t.Errorf("Close on unopened decoder failed: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestReadAudioWithoutOpen(t *testing.T) {
	d := NewDecoder("test.flac")
	buf := make([]byte, 4096)
	_ = buf
	if _, err := d.ReadAudio(nil, 1024); err == nil {
		t.Error("expected error reading from an unopened decoder")
	}
}

func TestDecoderDoesNotSupportSeeking(t *testing.T) {
	d := NewDecoder("test.flac")
	if d.SupportsSeeking() {
		t.Error("FLAC adapter does not support seeking yet")
	}
	if got := d.SeekToFrame(100); got != -1 {
		t.Errorf("SeekToFrame = %d, want -1", got)
	}
}

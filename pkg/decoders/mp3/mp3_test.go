package mp3

import "testing"

func TestNewDecoder(t *testing.T) {
	d := NewDecoder("test.mp3")
	if d == nil {
		t.Fatal("NewDecoder returned nil")
	}
	if d.Path != "test.mp3" {
		t.Errorf("Path = %q, want %q", d.Path, "test.mp3")
	}
}

func TestDecoderCloseWithoutOpen(t *testing.T) {
	d := NewDecoder("test.mp3")
	if err := d.Close(); err != nil {
		t.Errorf("Close on unopened decoder failed: %v", err)
	}
}

func TestReadAudioWithoutOpen(t *testing.T) {
	d := NewDecoder("test.mp3")
	if _, err := d.ReadAudio(nil, 1024); err == nil {
		t.Error("expected error reading from an unopened decoder")
	}
}

func TestOpenMissingFile(t *testing.T) {
	d := NewDecoder("does-not-exist.mp3")
	if err := d.Open(); err == nil {
		t.Error("expected error opening a nonexistent file")
	}
}

func TestTotalFramesBeforeOpen(t *testing.T) {
	d := NewDecoder("test.mp3")
	if got := d.TotalFrames(); got != -1 {
		t.Errorf("TotalFrames before Open = %d, want -1", got)
	}
}

func TestDecoderDoesNotSupportSeeking(t *testing.T) {
	d := NewDecoder("test.mp3")
	if d.SupportsSeeking() {
		t.Error("MP3 adapter does not support seeking")
	}
	if got := d.SeekToFrame(100); got != -1 {
		t.Errorf("SeekToFrame = %d, want -1", got)
	}
}

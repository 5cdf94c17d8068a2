package audiobuffer

import (
	"testing"

	"github.com/drgolem/audioengine/pkg/audioformat"
)

func stereo16() audioformat.Format {
	return audioformat.Format{FormatID: audioformat.PCM, SampleRate: 44100, Channels: 2, BitsPerChannel: 16}
}

func TestNewAllocatesPerChannelCapacity(t *testing.T) {
	buf := New(stereo16(), 100)
	if buf.Channels() != 2 {
		t.Fatalf("Channels() = %d, want 2", buf.Channels())
	}
	if buf.CapacityBytes() != 200 {
		t.Errorf("CapacityBytes() = %d, want 200", buf.CapacityBytes())
	}
}

func TestWrapUsesCallerSlices(t *testing.T) {
	left := make([]byte, 10)
	right := make([]byte, 10)
	buf := Wrap(stereo16(), [][]byte{left, right})
	if buf.CapacityBytes() != 10 {
		t.Errorf("CapacityBytes() = %d, want 10", buf.CapacityBytes())
	}
}

func TestDeinterleaveFromRoundTrip(t *testing.T) {
	buf := New(stereo16(), 4)
	// Two frames: (1,2) and (3,4) as little-endian int16 pairs.
	interleaved := []byte{1, 0, 2, 0, 3, 0, 4, 0}
	frames, err := buf.DeinterleaveFrom(interleaved, 2)
	if err != nil {
		t.Fatalf("DeinterleaveFrom failed: %v", err)
	}
	if frames != 2 {
		t.Fatalf("DeinterleaveFrom returned %d frames, want 2", frames)
	}
	if buf.FillBytes() != 4 {
		t.Errorf("FillBytes() = %d, want 4", buf.FillBytes())
	}

	out := make([]byte, 8)
	written := buf.InterleaveInto(out)
	if written != 2 {
		t.Fatalf("InterleaveInto returned %d frames, want 2", written)
	}
	for i, want := range interleaved {
		if out[i] != want {
			t.Errorf("out[%d] = %d, want %d", i, out[i], want)
		}
	}
}

func TestDeinterleaveFromClampsToCapacity(t *testing.T) {
	buf := New(stereo16(), 1) // capacity for 1 frame
	interleaved := []byte{1, 0, 2, 0, 3, 0, 4, 0}
	frames, err := buf.DeinterleaveFrom(interleaved, 2)
	if err != nil {
		t.Fatalf("DeinterleaveFrom failed: %v", err)
	}
	if frames != 1 {
		t.Errorf("DeinterleaveFrom returned %d frames, want 1 (clamped to capacity)", frames)
	}
}

func TestSetFillRejectsOutOfRange(t *testing.T) {
	buf := New(stereo16(), 4)
	if err := buf.SetFill(-1); err == nil {
		t.Error("expected error for negative fill")
	}
	if err := buf.SetFill(buf.CapacityBytes() + 1); err == nil {
		t.Error("expected error for fill exceeding capacity")
	}
}

func TestResetAndEmpty(t *testing.T) {
	buf := New(stereo16(), 4)
	if !buf.Empty() {
		t.Error("new buffer should be empty")
	}
	if err := buf.SetFill(4); err != nil {
		t.Fatalf("SetFill failed: %v", err)
	}
	if buf.Empty() {
		t.Error("buffer with fill should not be empty")
	}
	buf.Reset()
	if !buf.Empty() {
		t.Error("buffer should be empty after Reset")
	}
}

func TestZeroPadTailFillsSilence(t *testing.T) {
	buf := New(stereo16(), 4)
	interleaved := []byte{1, 0, 2, 0}
	if _, err := buf.DeinterleaveFrom(interleaved, 1); err != nil {
		t.Fatalf("DeinterleaveFrom failed: %v", err)
	}
	buf.ZeroPadTail(4)
	if buf.FillBytes() != 8 {
		t.Errorf("FillBytes() after ZeroPadTail = %d, want 8", buf.FillBytes())
	}
	data := buf.ChannelData(0)
	for i := 2; i < len(data); i++ {
		if data[i] != 0 {
			t.Errorf("expected zero padding at index %d, got %d", i, data[i])
		}
	}
}

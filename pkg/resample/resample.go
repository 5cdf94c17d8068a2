// Package resample wraps github.com/zaf/resample (SoXR) for offline,
// whole-buffer sample rate conversion of interleaved 16-bit PCM. It
// backs the transform CLI command; the real-time playback path never
// resamples (format mismatches are handled by the sink reconfiguring
// instead, per the coordinator's design).
package resample

import (
	"bufio"
	"bytes"
	"fmt"

	soxr "github.com/zaf/resample"
)

// PCM16 resamples interleaved 16-bit PCM audioData from fromRate to
// toRate across channels, using SoXR's high-quality filter. If the
// rates are equal, audioData is returned unchanged.
func PCM16(audioData []byte, fromRate, toRate, channels int) ([]byte, error) {
	if fromRate == toRate {
		return audioData, nil
	}

	var out bytes.Buffer
	w := bufio.NewWriter(&out)

	r, err := soxr.New(w, float64(fromRate), float64(toRate), channels, soxr.I16, soxr.HighQ)
	if err != nil {
		return nil, fmt.Errorf("resample: create: %w", err)
	}

	if _, err := r.Write(audioData); err != nil {
		r.Close()
		return nil, fmt.Errorf("resample: write: %w", err)
	}
	if err := r.Close(); err != nil {
		return nil, fmt.Errorf("resample: close: %w", err)
	}
	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("resample: flush: %w", err)
	}

	return out.Bytes(), nil
}

// ToMono16 downmixes interleaved 16-bit PCM with the given channel
// count to mono by averaging channels.
func ToMono16(data []byte, channels int) []byte {
	if channels <= 1 {
		return data
	}

	frameBytes := channels * 2
	frames := len(data) / frameBytes
	mono := make([]byte, frames*2)

	for f := 0; f < frames; f++ {
		sum := int32(0)
		for ch := 0; ch < channels; ch++ {
			off := f*frameBytes + ch*2
			sample := int16(uint16(data[off]) | uint16(data[off+1])<<8)
			sum += int32(sample)
		}
		avg := int16(sum / int32(channels))
		mono[f*2] = byte(avg)
		mono[f*2+1] = byte(avg >> 8)
	}

	return mono
}

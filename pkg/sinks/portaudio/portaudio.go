// Package portaudio implements audiosink.Sink on top of
// github.com/drgolem/go-portaudio, the concrete real-time output used by
// cmd/audioengine.
package portaudio

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/drgolem/audioengine/pkg/audioformat"
	"github.com/drgolem/audioengine/pkg/audiosink"

	"github.com/drgolem/go-portaudio/portaudio"
)

// driverMu and driverRefs guard process-wide PortAudio init/teardown: only
// one ASIO/PortAudio driver instance can be loaded in a process at a time
// (spec.md §9 "global mutable state"), so Open/Close reference-count it
// instead of each Sink calling Initialize/Terminate directly.
var (
	driverMu   sync.Mutex
	driverRefs int
)

func acquireDriver() error {
	driverMu.Lock()
	defer driverMu.Unlock()
	if driverRefs == 0 {
		if err := portaudio.Initialize(); err != nil {
			return fmt.Errorf("portaudio: initialize: %w", err)
		}
	}
	driverRefs++
	return nil
}

func releaseDriver() {
	driverMu.Lock()
	defer driverMu.Unlock()
	driverRefs--
	if driverRefs <= 0 {
		driverRefs = 0
		portaudio.Terminate()
	}
}

// Sink is an audiosink.Sink backed by a PortAudio output stream opened in
// callback mode, grounded on internal/fileplayer's audioCallback pattern:
// PortAudio's own real-time thread invokes our callback directly, with no
// intermediate Go goroutine between the render callback and the device.
type Sink struct {
	deviceIndex     int
	framesPerBuffer int

	mu     sync.Mutex
	stream *portaudio.PaStream
	format audioformat.Format

	running atomic.Bool
	cb      atomic.Pointer[audiosink.RenderCallback]

	// scratch holds per-channel non-interleaved buffers reused across
	// callbacks so the real-time path never allocates.
	scratch [][]byte
}

// New creates a Sink targeting the given PortAudio output device index,
// with framesPerBuffer as the preferred callback block size.
func New(deviceIndex, framesPerBuffer int) *Sink {
	return &Sink{deviceIndex: deviceIndex, framesPerBuffer: framesPerBuffer}
}

func (s *Sink) Open() error {
	return acquireDriver()
}

func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream != nil {
		_ = s.stream.Close()
		s.stream = nil
	}
	releaseDriver()
	return nil
}

// SetFormat configures the output stream for format. Must be called while
// stopped (spec.md §6 AudioSink.set_format).
func (s *Sink) SetFormat(format audioformat.Format) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return fmt.Errorf("portaudio: cannot set format while running")
	}

	sampleFormat, err := paSampleFormat(format)
	if err != nil {
		return err
	}

	if s.stream != nil {
		_ = s.stream.Close()
		s.stream = nil
	}

	stream := &portaudio.PaStream{
		OutputParameters: &portaudio.PaStreamParameters{
			DeviceIndex:  s.deviceIndex,
			ChannelCount: format.Channels,
			SampleFormat: sampleFormat,
		},
		SampleRate: format.SampleRate,
	}

	if err := stream.OpenCallback(s.framesPerBuffer, s.audioCallback); err != nil {
		return fmt.Errorf("portaudio: open callback stream: %w", err)
	}

	s.stream = stream
	s.format = format
	s.scratch = make([][]byte, format.Channels)
	bytesPerChannelFrame := format.BitsPerChannel / 8
	for i := range s.scratch {
		s.scratch[i] = make([]byte, s.framesPerBuffer*bytesPerChannelFrame)
	}
	return nil
}

func (s *Sink) SetRenderCallback(cb audiosink.RenderCallback) {
	s.cb.Store(&cb)
}

func (s *Sink) PreferredBufferSizeFrames() int { return s.framesPerBuffer }

func (s *Sink) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return fmt.Errorf("portaudio: SetFormat must be called before Start")
	}
	if err := s.stream.StartStream(); err != nil {
		return fmt.Errorf("portaudio: start stream: %w", err)
	}
	s.running.Store(true)
	return nil
}

func (s *Sink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running.Store(false)
	if s.stream == nil {
		return nil
	}
	if err := s.stream.StopStream(); err != nil {
		return fmt.Errorf("portaudio: stop stream: %w", err)
	}
	return nil
}

func (s *Sink) IsRunning() bool { return s.running.Load() }

// audioCallback runs on PortAudio's own real-time thread, never a Go
// goroutine (internal/fileplayer's original docs apply verbatim here): it
// must not allocate, lock beyond the momentary pointer loads below, or
// block. It deinterleaves nothing itself; instead it hands the
// coordinator non-interleaved scratch buffers and interleaves the result
// into PortAudio's output slice.
func (s *Sink) audioCallback(input, output []byte, frameCount uint, timeInfo *portaudio.StreamCallbackTimeInfo, statusFlags portaudio.StreamCallbackFlags) portaudio.StreamCallbackResult {
	cbPtr := s.cb.Load()
	if cbPtr == nil {
		clear(output)
		return portaudio.Continue
	}

	n := int(frameCount)
	bytesPerChannelFrame := s.format.BitsPerChannel / 8
	for _, ch := range s.scratch {
		if len(ch) < n*bytesPerChannelFrame {
			// Output block grew past the negotiated preferred size; this
			// sink was not sized for it. Fill silence rather than risk an
			// out-of-bounds write from a stale scratch buffer.
			clear(output)
			return portaudio.Continue
		}
	}

	hostTime := int64(0)
	if timeInfo != nil {
		hostTime = int64(timeInfo.OutputBufferDacTime * float64(1e9))
	}

	(*cbPtr)(s.scratch, n, audiosink.Timestamp{NanosSinceEpoch: hostTime})

	channels := len(s.scratch)
	for f := 0; f < n; f++ {
		for ch := 0; ch < channels; ch++ {
			srcOff := f * bytesPerChannelFrame
			dstOff := (f*channels + ch) * bytesPerChannelFrame
			copy(output[dstOff:dstOff+bytesPerChannelFrame], s.scratch[ch][srcOff:srcOff+bytesPerChannelFrame])
		}
	}

	return portaudio.Continue
}

func paSampleFormat(format audioformat.Format) (portaudio.PaSampleFormat, error) {
	switch format.BitsPerChannel {
	case 16:
		return portaudio.SampleFmtInt16, nil
	case 24:
		return portaudio.SampleFmtInt24, nil
	case 32:
		return portaudio.SampleFmtInt32, nil
	default:
		return 0, fmt.Errorf("portaudio: unsupported bit depth %d", format.BitsPerChannel)
	}
}

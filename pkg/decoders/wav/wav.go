// Package wav adapts github.com/youpy/go-wav to the decoder.Decoder
// interface.
package wav

import (
	"fmt"
	"io"

	goWav "github.com/youpy/go-wav"

	"github.com/drgolem/audioengine/pkg/audiobuffer"
	"github.com/drgolem/audioengine/pkg/audioformat"
	"github.com/drgolem/audioengine/pkg/decoder"
	"github.com/drgolem/audioengine/pkg/inputsource"
	inputfile "github.com/drgolem/audioengine/pkg/inputsource/file"
)

// Decoder decodes a PCM WAV file at Path.
type Decoder struct {
	Path string

	src     inputsource.InputSource
	reader  *goWav.Reader
	format  audioformat.Format
	current int64
	scratch []byte
}

// NewDecoder creates a WAV decoder for the file at path.
func NewDecoder(path string) *Decoder {
	return &Decoder{Path: path}
}

var _ decoder.Decoder = (*Decoder)(nil)

func (d *Decoder) Open() error {
	src := inputfile.New(d.Path)
	if err := src.Open(); err != nil {
		return fmt.Errorf("wav: open %s: %w", d.Path, err)
	}

	reader := goWav.NewReader(inputsource.Reader{Src: src})
	wavFormat, err := reader.Format()
	if err != nil {
		src.Close()
		return fmt.Errorf("wav: read format: %w", err)
	}
	if wavFormat.AudioFormat != goWav.AudioFormatPCM {
		src.Close()
		return fmt.Errorf("%w: wav audio format %d", decoder.ErrUnsupportedFormat, wavFormat.AudioFormat)
	}

	d.src = src
	d.reader = reader
	d.format = audioformat.Format{
		FormatID:       audioformat.PCM,
		SampleRate:     float64(wavFormat.SampleRate),
		Channels:       int(wavFormat.NumChannels),
		BitsPerChannel: int(wavFormat.BitsPerSample),
	}
	return nil
}

func (d *Decoder) Close() error {
	if d.src != nil {
		err := d.src.Close()
		d.src = nil
		d.reader = nil
		return err
	}
	return nil
}

func (d *Decoder) SourceFormat() audioformat.Format     { return d.format }
func (d *Decoder) OutputFormat() audioformat.Format     { return d.format }
func (d *Decoder) ChannelLayout() decoder.ChannelLayout { return decoder.ChannelLayout{} }
func (d *Decoder) TotalFrames() int64                   { return -1 }
func (d *Decoder) CurrentFrame() int64                  { return d.current }
func (d *Decoder) SupportsSeeking() bool                { return false }
func (d *Decoder) SeekToFrame(frame int64) int64         { return -1 }

// ReadAudio reads samples one at a time from the underlying reader (go-wav
// has no bulk sample API) and packs them little-endian into the
// interleaved scratch buffer before deinterleaving into buf.
func (d *Decoder) ReadAudio(buf *audiobuffer.Buffer, nFrames uint32) (uint32, error) {
	if d.reader == nil {
		return 0, fmt.Errorf("wav: decoder not open")
	}
	bytesPerSample := d.format.BitsPerChannel / 8
	channels := d.format.Channels
	need := int(nFrames) * channels * bytesPerSample
	if cap(d.scratch) < need {
		d.scratch = make([]byte, need)
	}
	scratch := d.scratch[:need]

	decoded := 0
	for decoded < int(nFrames) {
		samples, err := d.reader.ReadSamples(1)
		if err == io.EOF {
			break
		}
		if err != nil {
			return uint32(decoded), fmt.Errorf("wav: decode: %w", err)
		}
		if len(samples) == 0 {
			break
		}

		for ch := 0; ch < channels && ch < len(samples[0].Values); ch++ {
			value := samples[0].Values[ch]
			offset := (decoded*channels + ch) * bytesPerSample
			for b := 0; b < bytesPerSample; b++ {
				scratch[offset+b] = byte(value >> (8 * b))
			}
		}
		decoded++
	}

	if decoded == 0 {
		return 0, nil
	}

	frames, err := buf.DeinterleaveFrom(scratch[:decoded*channels*bytesPerSample], decoded)
	if err != nil {
		return 0, err
	}
	d.current += int64(frames)
	return uint32(frames), nil
}

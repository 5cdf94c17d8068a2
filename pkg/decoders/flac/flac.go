// Package flac adapts github.com/drgolem/go-flac to the decoder.Decoder
// interface.
package flac

import (
	"fmt"

	"github.com/drgolem/audioengine/pkg/audiobuffer"
	"github.com/drgolem/audioengine/pkg/audioformat"
	"github.com/drgolem/audioengine/pkg/decoder"

	goflac "github.com/drgolem/go-flac/flac"
)

// Decoder decodes a FLAC file at Path into non-interleaved PCM.
type Decoder struct {
	Path string

	dec     *goflac.FlacDecoder
	format  audioformat.Format
	current int64
	scratch []byte
}

// NewDecoder creates a FLAC decoder for the file at path. Output is
// 16-bit PCM regardless of the source bit depth, matching
// NewFlacFrameDecoder's fixed output width.
func NewDecoder(path string) *Decoder {
	return &Decoder{Path: path}
}

var _ decoder.Decoder = (*Decoder)(nil)

func (d *Decoder) Open() error {
	dec, err := goflac.NewFlacFrameDecoder(16)
	if err != nil {
		return fmt.Errorf("flac: create decoder: %w", err)
	}
	if err := dec.Open(d.Path); err != nil {
		dec.Delete()
		return fmt.Errorf("flac: open %s: %w", d.Path, err)
	}

	rate, channels, bps := dec.GetFormat()
	d.dec = dec
	d.format = audioformat.Format{
		FormatID:       audioformat.PCM,
		SampleRate:     float64(rate),
		Channels:       channels,
		BitsPerChannel: bps,
	}
	return nil
}

func (d *Decoder) Close() error {
	if d.dec != nil {
		d.dec.Close()
		d.dec.Delete()
		d.dec = nil
	}
	return nil
}

func (d *Decoder) SourceFormat() audioformat.Format       { return d.format }
func (d *Decoder) OutputFormat() audioformat.Format       { return d.format }
func (d *Decoder) ChannelLayout() decoder.ChannelLayout   { return decoder.ChannelLayout{} }
func (d *Decoder) TotalFrames() int64                     { return -1 }
func (d *Decoder) CurrentFrame() int64                    { return d.current }
func (d *Decoder) SupportsSeeking() bool                  { return false }
func (d *Decoder) SeekToFrame(frame int64) int64          { return -1 }

func (d *Decoder) ReadAudio(buf *audiobuffer.Buffer, nFrames uint32) (uint32, error) {
	if d.dec == nil {
		return 0, fmt.Errorf("flac: decoder not open")
	}
	bytesPerSample := d.format.BitsPerChannel / 8
	need := int(nFrames) * d.format.Channels * bytesPerSample
	if cap(d.scratch) < need {
		d.scratch = make([]byte, need)
	}
	scratch := d.scratch[:need]

	n, err := d.dec.DecodeSamples(int(nFrames), scratch)
	if err != nil {
		return 0, fmt.Errorf("flac: decode: %w", err)
	}
	if n == 0 {
		return 0, nil
	}

	frames, err := buf.DeinterleaveFrom(scratch[:n*d.format.Channels*bytesPerSample], n)
	if err != nil {
		return 0, err
	}
	d.current += int64(frames)
	return uint32(frames), nil
}

// Package g711 decodes raw A-law/u-law telephony audio using
// github.com/zaf/g711, grounded on the 8kHz mono streams the original
// source's g711 codecs target. Unlike the container-based decoders,
// G.711 files carry no header: Law must be supplied by the caller (the
// factory selects it from file extension, ".alaw"/".ulaw").
package g711

import (
	"bytes"
	"fmt"
	"io"

	"github.com/zaf/g711"

	"github.com/drgolem/audioengine/pkg/audiobuffer"
	"github.com/drgolem/audioengine/pkg/audioformat"
	"github.com/drgolem/audioengine/pkg/decoder"
	"github.com/drgolem/audioengine/pkg/inputsource"
	inputfile "github.com/drgolem/audioengine/pkg/inputsource/file"
)

// Law selects the companding scheme of the source bytes.
type Law int

const (
	ALaw Law = iota
	ULaw
)

// Decoder decodes raw G.711-encoded audio at Path. Output is 16-bit PCM
// mono at SampleRateHz (8000 for standard telephony streams).
type Decoder struct {
	Path         string
	Law          Law
	SampleRateHz int

	src     inputsource.InputSource
	out     bytes.Buffer
	writer  io.WriteCloser
	format  audioformat.Format
	current int64
	eof     bool
	readBuf []byte
}

// NewDecoder creates a G.711 decoder for the raw-encoded file at path.
func NewDecoder(path string, law Law, sampleRateHz int) *Decoder {
	if sampleRateHz <= 0 {
		sampleRateHz = 8000
	}
	return &Decoder{Path: path, Law: law, SampleRateHz: sampleRateHz}
}

var _ decoder.Decoder = (*Decoder)(nil)

func (d *Decoder) Open() error {
	src := inputfile.New(d.Path)
	if err := src.Open(); err != nil {
		return fmt.Errorf("g711: open %s: %w", d.Path, err)
	}

	var writer io.WriteCloser
	var err error
	switch d.Law {
	case ALaw:
		writer, err = g711.NewAlawDecoder(&d.out)
	case ULaw:
		writer, err = g711.NewUlawDecoder(&d.out)
	default:
		err = fmt.Errorf("unknown law %d", d.Law)
	}
	if err != nil {
		src.Close()
		return fmt.Errorf("%w: %v", decoder.ErrUnsupportedFormat, err)
	}

	d.src = src
	d.writer = writer
	d.format = audioformat.Format{
		FormatID:       audioformat.PCM,
		SampleRate:     float64(d.SampleRateHz),
		Channels:       1,
		BitsPerChannel: 16,
	}
	d.readBuf = make([]byte, 4096)
	return nil
}

func (d *Decoder) Close() error {
	if d.writer != nil {
		d.writer.Close()
		d.writer = nil
	}
	if d.src != nil {
		err := d.src.Close()
		d.src = nil
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

// ReadAudio feeds encoded bytes through the streaming law decoder until
// enough decoded PCM (2 bytes/frame, mono) has accumulated to satisfy
// nFrames, or the source is exhausted.
func (d *Decoder) ReadAudio(buf *audiobuffer.Buffer, nFrames uint32) (uint32, error) {
	wantBytes := int(nFrames) * 2
	for d.out.Len() < wantBytes && !d.eof {
		n, err := d.src.Read(d.readBuf)
		if n > 0 {
			if _, werr := d.writer.Write(d.readBuf[:n]); werr != nil {
				return 0, fmt.Errorf("g711: decode: %w", werr)
			}
		}
		if err != nil {
			return 0, fmt.Errorf("g711: read: %w", err)
		}
		if n == 0 && d.src.AtEOF() {
			d.eof = true
			break
		}
	}

	avail := d.out.Len()
	if avail == 0 {
		return 0, nil
	}
	take := avail
	if take > wantBytes {
		take = wantBytes
	}
	take -= take % 2

	pcm := make([]byte, take)
	if _, err := io.ReadFull(&d.out, pcm); err != nil {
		return 0, fmt.Errorf("g711: drain: %w", err)
	}

	frames := take / 2
	if frames == 0 {
		return 0, nil
	}

	written, err := buf.DeinterleaveFrom(pcm, frames)
	if err != nil {
		return 0, err
	}
	d.current += int64(written)
	return uint32(written), nil
}

// Package vorbis decodes Ogg Vorbis files using
// github.com/jfreymuth/oggvorbis, which handles both the Ogg demuxing
// and the Vorbis decode (backed by github.com/jfreymuth/vorbis).
package vorbis

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/jfreymuth/oggvorbis"

	"github.com/drgolem/audioengine/pkg/audiobuffer"
	"github.com/drgolem/audioengine/pkg/audioformat"
	"github.com/drgolem/audioengine/pkg/decoder"
	"github.com/drgolem/audioengine/pkg/inputsource"
	inputfile "github.com/drgolem/audioengine/pkg/inputsource/file"
)

// Decoder decodes an Ogg Vorbis file at Path. oggvorbis.Reader delivers
// interleaved float32 samples in [-1, 1]; this adapter converts them to
// 16-bit PCM on the way into the non-interleaved Buffer.
type Decoder struct {
	Path string

	src     inputsource.InputSource
	reader  *oggvorbis.Reader
	format  audioformat.Format
	current int64

	floatScratch []float32
	byteScratch  []byte
}

// NewDecoder creates a Vorbis decoder for the file at path.
func NewDecoder(path string) *Decoder {
	return &Decoder{Path: path}
}

var _ decoder.Decoder = (*Decoder)(nil)

func (d *Decoder) Open() error {
	src := inputfile.New(d.Path)
	if err := src.Open(); err != nil {
		return fmt.Errorf("vorbis: open %s: %w", d.Path, err)
	}

	reader, err := oggvorbis.NewReader(inputsource.Reader{Src: src})
	if err != nil {
		src.Close()
		return fmt.Errorf("%w: %v", decoder.ErrUnsupportedFormat, err)
	}

	d.src = src
	d.reader = reader
	d.format = audioformat.Format{
		FormatID:       audioformat.PCM,
		SampleRate:     float64(reader.SampleRate()),
		Channels:       reader.Channels(),
		BitsPerChannel: 16,
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

func (d *Decoder) TotalFrames() int64 {
	if d.reader == nil {
		return -1
	}
	return d.reader.Length()
}

func (d *Decoder) CurrentFrame() int64          { return d.current }
func (d *Decoder) SupportsSeeking() bool         { return false }
func (d *Decoder) SeekToFrame(frame int64) int64 { return -1 }

func (d *Decoder) ReadAudio(buf *audiobuffer.Buffer, nFrames uint32) (uint32, error) {
	channels := d.format.Channels
	need := int(nFrames) * channels
	if cap(d.floatScratch) < need {
		d.floatScratch = make([]float32, need)
	}
	scratch := d.floatScratch[:need]

	n, err := d.reader.Read(scratch)
	if err != nil && err != io.EOF {
		return 0, fmt.Errorf("vorbis: decode: %w", err)
	}
	if n == 0 {
		return 0, nil
	}

	frames := n / channels
	byteLen := frames * channels * 2
	if cap(d.byteScratch) < byteLen {
		d.byteScratch = make([]byte, byteLen)
	}
	pcm := d.byteScratch[:byteLen]
	for i := 0; i < frames*channels; i++ {
		binary.LittleEndian.PutUint16(pcm[i*2:], floatToInt16(scratch[i]))
	}

	written, err := buf.DeinterleaveFrom(pcm, frames)
	if err != nil {
		return 0, err
	}
	d.current += int64(written)
	return uint32(written), nil
}

func floatToInt16(f float32) uint16 {
	v := f * 32767
	v = float32(math.Max(-32768, math.Min(32767, float64(v))))
	return uint16(int16(v))
}

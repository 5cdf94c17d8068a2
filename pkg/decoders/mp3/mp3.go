// Package mp3 adapts github.com/imcarsen/go-mp3 to the decoder.Decoder
// interface.
//
// The original teacher code decoded MP3 through
// github.com/drgolem/go-mpg123, but that module is absent from this
// repo's dependency set (it was never a resolvable require in either the
// teacher's go.mod or this one). go-mp3 is a pure-Go decoder already
// present in go.mod and covers the same need without a cgo dependency on
// libmpg123.
package mp3

import (
	"fmt"
	"io"

	goMp3 "github.com/imcarsen/go-mp3"

	"github.com/drgolem/audioengine/pkg/audiobuffer"
	"github.com/drgolem/audioengine/pkg/audioformat"
	"github.com/drgolem/audioengine/pkg/decoder"
	"github.com/drgolem/audioengine/pkg/inputsource"
	inputfile "github.com/drgolem/audioengine/pkg/inputsource/file"
)

// Decoder decodes an MP3 file at Path. go-mp3 always delivers signed
// 16-bit little-endian stereo PCM regardless of the source channel
// count.
type Decoder struct {
	Path string

	src     inputsource.InputSource
	dec     *goMp3.Decoder
	format  audioformat.Format
	current int64
	scratch []byte
}

// NewDecoder creates an MP3 decoder for the file at path.
func NewDecoder(path string) *Decoder {
	return &Decoder{Path: path}
}

var _ decoder.Decoder = (*Decoder)(nil)

func (d *Decoder) Open() error {
	src := inputfile.New(d.Path)
	if err := src.Open(); err != nil {
		return fmt.Errorf("mp3: open %s: %w", d.Path, err)
	}

	dec, err := goMp3.NewDecoder(inputsource.Reader{Src: src})
	if err != nil {
		src.Close()
		return fmt.Errorf("mp3: decode %s: %w", d.Path, err)
	}

	d.src = src
	d.dec = dec
	d.format = audioformat.Format{
		FormatID:       audioformat.PCM,
		SampleRate:     float64(dec.SampleRate()),
		Channels:       2,
		BitsPerChannel: 16,
	}
	return nil
}

func (d *Decoder) Close() error {
	if d.src != nil {
		err := d.src.Close()
		d.src = nil
		d.dec = nil
		return err
	}
	return nil
}

func (d *Decoder) SourceFormat() audioformat.Format     { return d.format }
func (d *Decoder) OutputFormat() audioformat.Format     { return d.format }
func (d *Decoder) ChannelLayout() decoder.ChannelLayout { return decoder.ChannelLayout{} }

func (d *Decoder) TotalFrames() int64 {
	bytesPerFrame := int64(d.format.BytesPerFrame())
	if d.dec == nil || bytesPerFrame == 0 {
		return -1
	}
	return d.dec.Length() / bytesPerFrame
}

func (d *Decoder) CurrentFrame() int64          { return d.current }
func (d *Decoder) SupportsSeeking() bool         { return false }
func (d *Decoder) SeekToFrame(frame int64) int64 { return -1 }

func (d *Decoder) ReadAudio(buf *audiobuffer.Buffer, nFrames uint32) (uint32, error) {
	if d.dec == nil {
		return 0, fmt.Errorf("mp3: decoder not open")
	}
	bytesPerSample := d.format.BitsPerChannel / 8
	need := int(nFrames) * d.format.Channels * bytesPerSample
	if cap(d.scratch) < need {
		d.scratch = make([]byte, need)
	}
	scratch := d.scratch[:need]

	read := 0
	for read < need {
		n, err := d.dec.Read(scratch[read:])
		read += n
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("mp3: decode: %w", err)
		}
		if n == 0 {
			break
		}
	}
	if read == 0 {
		return 0, nil
	}

	frameBytes := d.format.Channels * bytesPerSample
	decodedFrames := read / frameBytes

	frames, err := buf.DeinterleaveFrom(scratch[:decodedFrames*frameBytes], decodedFrames)
	if err != nil {
		return 0, err
	}
	d.current += int64(frames)
	return uint32(frames), nil
}

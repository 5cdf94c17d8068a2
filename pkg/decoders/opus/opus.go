// Package opus decodes Ogg Opus files using github.com/thesyncim/gopus, a
// pure-Go Opus decoder.
//
// The teacher's go.mod listed github.com/drgolem/go-opus as an indirect
// dependency, but the teacher's own source never imported it and no
// reference source for its API is available in this repo's example pack.
// thesyncim/gopus is used instead: its multistream decoder package is
// present in full in the example pack and demonstrated there decoding
// real Opus packets, which gives this adapter a grounded API to build
// against.
//
// Demuxing is a minimal Ogg bitstream reader: it reads the OpusHead and
// OpusTags header packets, then yields audio packets page by page. Only
// single-frame Opus packets (TOC code 0) are decoded; multi-frame
// packets (codes 1-3) are rare in typical single-stream encodes and are
// skipped with a logged warning rather than risk misparsing this
// decoder's internal framing, which the example source does not expose.
package opus

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"

	"github.com/thesyncim/gopus/multistream"

	"github.com/drgolem/audioengine/pkg/audiobuffer"
	"github.com/drgolem/audioengine/pkg/audioformat"
	"github.com/drgolem/audioengine/pkg/decoder"
	"github.com/drgolem/audioengine/pkg/inputsource"
	inputfile "github.com/drgolem/audioengine/pkg/inputsource/file"
)

// opusFrameSizes maps an Opus TOC config number (0-31) to the frame
// duration in samples at 48kHz, per RFC 6716 section 3.1.
var opusFrameSizes = [32]int{
	480, 960, 1920, 2880, // SILK NB
	480, 960, 1920, 2880, // SILK MB
	480, 960, 1920, 2880, // SILK WB
	480, 960, // Hybrid SWB
	480, 960, // Hybrid FB
	120, 240, 480, 960, // CELT NB
	120, 240, 480, 960, // CELT WB
	120, 240, 480, 960, // CELT SWB
	120, 240, 480, 960, // CELT FB
}

// Decoder decodes an Ogg Opus file at Path.
type Decoder struct {
	Path string

	src    inputsource.InputSource
	r      *bufio.Reader
	ms     *multistream.Decoder
	format audioformat.Format

	preSkip    int
	skipped    bool
	current    int64
	eof        bool
	continued  []byte
	leftover   []int16
	leftoverAt int
}

// NewDecoder creates an Opus decoder for the Ogg Opus file at path.
func NewDecoder(path string) *Decoder {
	return &Decoder{Path: path}
}

var _ decoder.Decoder = (*Decoder)(nil)

func (d *Decoder) Open() error {
	src := inputfile.New(d.Path)
	if err := src.Open(); err != nil {
		return fmt.Errorf("opus: open %s: %w", d.Path, err)
	}
	d.src = src
	d.r = bufio.NewReaderSize(inputsource.Reader{Src: src}, 65536)

	headPacket, err := d.nextPacket()
	if err != nil {
		d.Close()
		return fmt.Errorf("opus: read OpusHead: %w", err)
	}
	channels, preSkip, err := parseOpusHead(headPacket)
	if err != nil {
		d.Close()
		return fmt.Errorf("%w: %v", decoder.ErrUnsupportedFormat, err)
	}

	if _, err := d.nextPacket(); err != nil { // OpusTags, discarded
		d.Close()
		return fmt.Errorf("opus: read OpusTags: %w", err)
	}

	ms, err := multistream.NewDecoderDefault(48000, channels)
	if err != nil {
		d.Close()
		return fmt.Errorf("opus: create decoder: %w", err)
	}

	d.ms = ms
	d.preSkip = preSkip
	d.format = audioformat.Format{
		FormatID:       audioformat.PCM,
		SampleRate:     48000,
		Channels:       channels,
		BitsPerChannel: 16,
	}
	return nil
}

func (d *Decoder) Close() error {
	if d.src != nil {
		err := d.src.Close()
		d.src = nil
		d.r = nil
		d.ms = nil
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

func (d *Decoder) ReadAudio(buf *audiobuffer.Buffer, nFrames uint32) (uint32, error) {
	channels := d.format.Channels
	out := make([]int16, 0, int(nFrames)*channels)

	if d.leftoverAt < len(d.leftover) {
		out = append(out, d.leftover[d.leftoverAt:]...)
		d.leftover = nil
		d.leftoverAt = 0
	}

	for len(out) < int(nFrames)*channels && !d.eof {
		packet, err := d.nextPacket()
		if err == io.EOF {
			d.eof = true
			break
		}
		if err != nil {
			return 0, fmt.Errorf("opus: demux: %w", err)
		}
		if len(packet) == 0 {
			continue
		}

		config := packet[0] >> 3
		frameCode := packet[0] & 0x03
		if frameCode != 0 {
			slog.Warn("opus: skipping multi-frame packet, unsupported by this decoder", "code", frameCode)
			continue
		}

		samples, err := d.ms.DecodeToInt16(packet, opusFrameSizes[config])
		if err != nil {
			return 0, fmt.Errorf("opus: decode: %w", err)
		}

		if !d.skipped {
			skipSamples := d.preSkip * channels
			if skipSamples >= len(samples) {
				d.preSkip -= len(samples) / channels
				continue
			}
			samples = samples[skipSamples:]
			d.skipped = true
		}

		out = append(out, samples...)
	}

	want := int(nFrames) * channels
	if len(out) > want {
		d.leftover = out[want:]
		d.leftoverAt = 0
		out = out[:want]
	}

	frames := len(out) / channels
	if frames == 0 {
		return 0, nil
	}

	scratch := make([]byte, frames*channels*2)
	for i, s := range out[:frames*channels] {
		binary.LittleEndian.PutUint16(scratch[i*2:], uint16(s))
	}

	written, err := buf.DeinterleaveFrom(scratch, frames)
	if err != nil {
		return 0, err
	}
	d.current += int64(written)
	return uint32(written), nil
}

// nextPacket returns the next complete Ogg packet, demuxing pages and
// stitching continuations as needed.
func (d *Decoder) nextPacket() ([]byte, error) {
	for {
		segments, granuleContinues, err := d.readPageSegments()
		if err != nil {
			return nil, err
		}
		for i, seg := range segments {
			d.continued = append(d.continued, seg...)
			isLast := i == len(segments)-1
			if isLast && granuleContinues {
				continue // packet spans into next page
			}
			packet := d.continued
			d.continued = nil
			if len(packet) > 0 || !isLast {
				return packet, nil
			}
		}
	}
}

// readPageSegments reads one Ogg page and returns its packet segments
// (each already-assembled except possibly the last, which may continue
// onto the next page if lastContinues is true).
func (d *Decoder) readPageSegments() (segments [][]byte, lastContinues bool, err error) {
	var hdr [27]byte
	if _, err := io.ReadFull(d.r, hdr[:]); err != nil {
		return nil, false, err
	}
	if string(hdr[0:4]) != "OggS" {
		return nil, false, fmt.Errorf("opus: bad ogg page magic")
	}

	segCount := int(hdr[26])
	segTable := make([]byte, segCount)
	if _, err := io.ReadFull(d.r, segTable); err != nil {
		return nil, false, err
	}

	var cur []byte
	for _, segLen := range segTable {
		buf := make([]byte, segLen)
		if segLen > 0 {
			if _, err := io.ReadFull(d.r, buf); err != nil {
				return nil, false, err
			}
		}
		cur = append(cur, buf...)
		if segLen < 255 {
			segments = append(segments, cur)
			cur = nil
		}
	}
	if cur != nil {
		segments = append(segments, cur)
		lastContinues = true
	}
	return segments, lastContinues, nil
}

func parseOpusHead(packet []byte) (channels, preSkip int, err error) {
	if len(packet) < 19 || string(packet[0:8]) != "OpusHead" {
		return 0, 0, fmt.Errorf("not an OpusHead packet")
	}
	channels = int(packet[9])
	preSkip = int(binary.LittleEndian.Uint16(packet[10:12]))
	mappingFamily := packet[18]
	if mappingFamily != 0 {
		return 0, 0, fmt.Errorf("channel mapping family %d not supported", mappingFamily)
	}
	return channels, preSkip, nil
}

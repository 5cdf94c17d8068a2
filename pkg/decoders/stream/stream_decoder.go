// Package stream adapts a live, already-PCM-decoded packet source (e.g.
// an internet radio feed pushing fixed-size PCM packets) to
// decoder.Decoder, for sources with no container to demux.
package stream

import (
	"context"
	"sync"

	"github.com/drgolem/audioengine/pkg/audiobuffer"
	"github.com/drgolem/audioengine/pkg/audioformat"
	"github.com/drgolem/audioengine/pkg/decoder"
)

// Packet is a chunk of interleaved PCM audio along with the format it
// was captured at; Format may change between packets (e.g. a stream
// that re-announces its bitrate). ReadAudio records each packet's Format
// as the decoder's current format; it does not convert the samples.
type Packet struct {
	Audio        []byte
	SamplesCount int
	Format       audioformat.Format
}

// PacketProvider is implemented by live audio sources: network
// broadcasts, system audio taps, or test fixtures.
type PacketProvider interface {
	// ReadPacket reads the next packet of up to samples frames.
	// Returns io.EOF when the stream ends.
	ReadPacket(ctx context.Context, samples int) (*Packet, error)
}

// Decoder adapts a PacketProvider to decoder.Decoder. TotalFrames is
// always -1 (unknown) and SupportsSeeking is always false, since a live
// feed has no notion of either.
type Decoder struct {
	ctx      context.Context
	provider PacketProvider

	mu      sync.RWMutex
	format  audioformat.Format
	current int64
}

var _ decoder.Decoder = (*Decoder)(nil)

// NewDecoder creates a Decoder pulling packets from provider under ctx,
// reporting initialFormat until the first packet arrives.
func NewDecoder(ctx context.Context, provider PacketProvider, initialFormat audioformat.Format) *Decoder {
	return &Decoder{ctx: ctx, provider: provider, format: initialFormat}
}

func (d *Decoder) Open() error  { return nil }
func (d *Decoder) Close() error { return nil }

func (d *Decoder) SourceFormat() audioformat.Format {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.format
}

func (d *Decoder) OutputFormat() audioformat.Format     { return d.SourceFormat() }
func (d *Decoder) ChannelLayout() decoder.ChannelLayout { return decoder.ChannelLayout{} }
func (d *Decoder) TotalFrames() int64                   { return -1 }
func (d *Decoder) CurrentFrame() int64                  { return d.current }
func (d *Decoder) SupportsSeeking() bool                { return false }
func (d *Decoder) SeekToFrame(frame int64) int64         { return -1 }

func (d *Decoder) ReadAudio(buf *audiobuffer.Buffer, nFrames uint32) (uint32, error) {
	pkt, err := d.provider.ReadPacket(d.ctx, int(nFrames))
	if err != nil {
		return 0, err
	}
	if pkt == nil || pkt.SamplesCount == 0 {
		return 0, nil
	}

	d.mu.Lock()
	d.format = pkt.Format
	d.mu.Unlock()

	frames, err := buf.DeinterleaveFrom(pkt.Audio, pkt.SamplesCount)
	if err != nil {
		return 0, err
	}
	d.current += int64(frames)
	return uint32(frames), nil
}

package coordinator

import (
	"encoding/binary"
	"fmt"

	"github.com/drgolem/audioengine/pkg/ringbuffer/eventring"
)

// eventSource distinguishes which thread produced an event.
type eventSource uint8

const (
	sourceDecode eventSource = iota
	sourceRender
)

// eventCommand is the command byte following eventSource in the header
// (spec.md §4.3.4).
type eventCommand uint8

const (
	cmdDecodeStarted eventCommand = iota
	cmdDecodeComplete
	cmdDecodeCanceled
	cmdDecodeError
	cmdRenderFramesRendered
	cmdRenderWillStart
	cmdRenderWillComplete
)

// event is the in-memory representation of one record drained from
// either event ring buffer. Fields not used by Command are zero.
type event struct {
	Source    eventSource
	Command   eventCommand
	DecoderID string
	ErrText   string
	Count     uint32
	HostTime  int64
}

// marshal serializes an event to bytes using a small tightly packed
// little-endian layout, the same style as the teacher's
// audioframe.AudioFrame.Marshal: fixed header, then variable-length
// fields each prefixed by their own length.
//
// Layout: source(1) command(1) decoderIDLen(1) decoderID(n)
// errTextLen(2) errText(n) count(4) hostTime(8)
func (e event) marshal() []byte {
	idBytes := []byte(e.DecoderID)
	errBytes := []byte(e.ErrText)

	size := 1 + 1 + 1 + len(idBytes) + 2 + len(errBytes) + 4 + 8
	buf := make([]byte, size)

	off := 0
	buf[off] = byte(e.Source)
	off++
	buf[off] = byte(e.Command)
	off++
	buf[off] = byte(len(idBytes))
	off++
	copy(buf[off:], idBytes)
	off += len(idBytes)
	binary.LittleEndian.PutUint16(buf[off:], uint16(len(errBytes)))
	off += 2
	copy(buf[off:], errBytes)
	off += len(errBytes)
	binary.LittleEndian.PutUint32(buf[off:], e.Count)
	off += 4
	binary.LittleEndian.PutUint64(buf[off:], uint64(e.HostTime))

	return buf
}

// unmarshalEvent is the inverse of marshal. It returns the event and the
// number of bytes consumed.
func unmarshalEvent(data []byte) (event, int, error) {
	if len(data) < 3 {
		return event{}, 0, fmt.Errorf("coordinator: event buffer too small: %d bytes", len(data))
	}

	var e event
	off := 0
	e.Source = eventSource(data[off])
	off++
	e.Command = eventCommand(data[off])
	off++
	idLen := int(data[off])
	off++

	if len(data) < off+idLen+2 {
		return event{}, 0, fmt.Errorf("coordinator: event buffer truncated at decoder id")
	}
	e.DecoderID = string(data[off : off+idLen])
	off += idLen

	errLen := int(binary.LittleEndian.Uint16(data[off:]))
	off += 2
	if len(data) < off+errLen+4+8 {
		return event{}, 0, fmt.Errorf("coordinator: event buffer truncated at error text")
	}
	e.ErrText = string(data[off : off+errLen])
	off += errLen

	e.Count = binary.LittleEndian.Uint32(data[off:])
	off += 4
	e.HostTime = int64(binary.LittleEndian.Uint64(data[off:]))
	off += 8

	return e, off, nil
}

// frame prefixes the marshaled event with its own 2-byte little-endian
// length, so the single-threaded event processor can read exactly one
// record at a time from the shared byte ring without a separate framing
// channel.
func (e event) frame() []byte {
	body := e.marshal()
	out := make([]byte, 2+len(body))
	binary.LittleEndian.PutUint16(out, uint16(len(body)))
	copy(out[2:], body)
	return out
}

// readFrame reads one length-prefixed event off r, or returns ok=false if
// the ring currently holds no complete frame. Because a producer's Write
// call places header and payload atomically before advancing the ring's
// write position, the payload is always fully available as soon as the
// header is.
func readFrame(r *eventring.Ring) (event, bool, error) {
	if r.AvailableRead() < 2 {
		return event{}, false, nil
	}
	var header [2]byte
	if _, err := r.Read(header[:]); err != nil {
		return event{}, false, err
	}
	n := int(binary.LittleEndian.Uint16(header[:]))
	if n == 0 {
		return event{}, false, nil
	}
	body := make([]byte, n)
	if _, err := r.Read(body); err != nil {
		return event{}, false, err
	}
	e, _, err := unmarshalEvent(body)
	if err != nil {
		return event{}, false, err
	}
	return e, true, nil
}

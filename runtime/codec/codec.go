// Package codec implements the length-prefixed framed message transport
// used by the resolver/service tier. Each frame is a
// u32 big-endian length followed by its payload; two payload modes are
// supported, raw bytes and message-packed values (CBOR, serialized per a
// host-supplied schema), using a length-prefixed-sections-built-in-a-buffer
// writer/reader shape.
package codec

import (
	"encoding/binary"
	"errors"
	"io"
	"math"

	"github.com/fxamacker/cbor/v2"
)

const lengthPrefixSize = 4

// ErrFrameTooLarge is returned when a frame's payload would need a length
// field that does not fit in a uint32.
var ErrFrameTooLarge = errors.New("codec: frame length exceeds u32 maximum")

// ErrUnexpectedEOF mirrors io.ErrUnexpectedEOF but is returned by this
// package's own Fill calls so callers can distinguish framing-level EOF
// from an io.Reader's own error value.
var ErrUnexpectedEOF = errors.New("codec: unexpected EOF while filling frame buffer")

// Channel is a byte-oriented framed stream over a reliable bidirectional
// pipe. Outgoing and incoming buffers grow as needed; Flush drains the
// outgoing buffer exactly once, Receive decodes one already-buffered frame
// or fills until one is available.
type Channel struct {
	rw  io.ReadWriter
	out []byte
	in  []byte
}

// New wraps rw in a Channel.
func New(rw io.ReadWriter) *Channel {
	return &Channel{rw: rw}
}

// QueueRaw appends a raw-bytes frame to the outgoing buffer.
func (c *Channel) QueueRaw(payload []byte) error {
	return c.queueFrame(payload)
}

// QueueMessage CBOR-encodes v per the host schema and appends it as a
// message-packed frame.
func (c *Channel) QueueMessage(v any) error {
	payload, err := cbor.Marshal(v)
	if err != nil {
		return err
	}
	return c.queueFrame(payload)
}

func (c *Channel) queueFrame(payload []byte) error {
	if uint64(len(payload)) > math.MaxUint32 {
		return ErrFrameTooLarge
	}
	var header [lengthPrefixSize]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	c.out = append(c.out, header[:]...)
	c.out = append(c.out, payload...)
	return nil
}

// Flush drains the outgoing buffer exactly once.
func (c *Channel) Flush() error {
	if len(c.out) == 0 {
		return nil
	}
	n, err := c.rw.Write(c.out)
	c.out = c.out[n:]
	return err
}

// fill reads whatever is currently available into the incoming buffer.
// EOF encountered here is reported as ErrUnexpectedEOF
func (c *Channel) fill() error {
	var buf [4096]byte
	n, err := c.rw.Read(buf[:])
	if n > 0 {
		c.in = append(c.in, buf[:n]...)
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			return ErrUnexpectedEOF
		}
		return err
	}
	return nil
}

// fullFrameLen reports the length of a complete frame already buffered in
// c.in, or (0, false) if the buffer does not yet hold one.
func (c *Channel) fullFrameLen() (int, bool) {
	if len(c.in) < lengthPrefixSize {
		return 0, false
	}
	payloadLen := binary.BigEndian.Uint32(c.in[:lengthPrefixSize])
	total := lengthPrefixSize + int(payloadLen)
	if len(c.in) < total {
		return 0, false
	}
	return total, true
}

// ReceiveRaw loops: while the incoming buffer already holds a full frame,
// decode and return its payload; otherwise fill the buffer and retry.
func (c *Channel) ReceiveRaw() ([]byte, error) {
	for {
		if total, ok := c.fullFrameLen(); ok {
			payload := make([]byte, total-lengthPrefixSize)
			copy(payload, c.in[lengthPrefixSize:total])
			c.in = c.in[total:]
			return payload, nil
		}
		if err := c.fill(); err != nil {
			return nil, err
		}
	}
}

// ReceiveMessage decodes one message-packed frame into out (a pointer).
func (c *Channel) ReceiveMessage(out any) error {
	payload, err := c.ReceiveRaw()
	if err != nil {
		return err
	}
	return cbor.Unmarshal(payload, out)
}

// ReceiveBatchRaw blocks (filling the buffer) until at least one whole
// frame is available, then appends every additional whole frame already
// present without further blocking reads — the batch variant of
// ReceiveRaw described in ("append until no more whole
// frames are present").
func (c *Channel) ReceiveBatchRaw() ([][]byte, error) {
	for {
		if _, ok := c.fullFrameLen(); ok {
			break
		}
		if err := c.fill(); err != nil {
			return nil, err
		}
	}
	var batch [][]byte
	for {
		total, ok := c.fullFrameLen()
		if !ok {
			return batch, nil
		}
		payload := make([]byte, total-lengthPrefixSize)
		copy(payload, c.in[lengthPrefixSize:total])
		c.in = c.in[total:]
		batch = append(batch, payload)
	}
}

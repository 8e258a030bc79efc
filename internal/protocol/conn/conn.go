// Package conn pairs one duplex byte stream with the protocol codec:
// buffered incremental reads on one side, encode-and-flush writes on the
// other.
package conn

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/virdis/calcwire/internal/protocol"
)

// Initial receive buffer capacity. The buffer grows when a frame spans more
// than the current capacity.
const defaultBufCap = 4096

// ErrPeerReset reports a peer that closed the stream mid-frame, leaving
// undecodable bytes behind.
var ErrPeerReset = errors.New("conn: connection reset by peer")

// Conn owns one stream: it is the stream's sole reader and sole writer.
// The receive buffer holds only bytes not yet consumed by a successful
// decode.
type Conn struct {
	nc  net.Conn
	bw  *bufio.Writer
	buf []byte
}

// New wraps an accepted or dialed stream.
func New(nc net.Conn) *Conn {
	return &Conn{
		nc:  nc,
		bw:  bufio.NewWriter(nc),
		buf: make([]byte, 0, defaultBufCap),
	}
}

// ReadFrame returns the next complete frame from the stream, blocking until
// enough bytes arrive. A peer that closes the stream between frames yields
// io.EOF; one that closes mid-frame yields ErrPeerReset. Decode failures
// surface as protocol.ErrMalformed wraps and leave the connection unusable.
func (c *Conn) ReadFrame() (protocol.Frame, error) {
	for {
		f, err := c.parseFrame()
		if err != nil {
			return nil, err
		}
		if f != nil {
			return f, nil
		}
		if err := c.fill(); err != nil {
			return nil, err
		}
	}
}

// parseFrame runs one check+decode pass over the buffered bytes. A nil
// frame with nil error means no complete frame has arrived yet.
func (c *Conn) parseFrame() (protocol.Frame, error) {
	n, err := protocol.Check(c.buf)
	switch {
	case err == nil:
		f, err := protocol.Decode(c.buf[:n])
		if err != nil {
			return nil, err
		}
		c.discard(n)
		return f, nil
	case errors.Is(err, protocol.ErrIncomplete):
		return nil, nil
	default:
		return nil, err
	}
}

// fill reads more bytes from the stream into the buffer, growing it when
// full. A zero-byte read with the buffer empty is a clean shutdown; with
// buffered bytes pending it is a mid-frame reset.
func (c *Conn) fill() error {
	if len(c.buf) == cap(c.buf) {
		grown := make([]byte, len(c.buf), cap(c.buf)*2)
		copy(grown, c.buf)
		c.buf = grown
	}
	n, err := c.nc.Read(c.buf[len(c.buf):cap(c.buf)])
	c.buf = c.buf[:len(c.buf)+n]
	if n > 0 || err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) {
		if len(c.buf) == 0 {
			return io.EOF
		}
		return ErrPeerReset
	}
	return fmt.Errorf("conn: read: %w", err)
}

// discard drops the first n consumed bytes and preserves the remainder for
// the next decode attempt.
func (c *Conn) discard(n int) {
	kept := copy(c.buf, c.buf[n:])
	c.buf = c.buf[:kept]
}

// WriteFrame encodes f and writes it fully to the stream, flushing before
// returning. Failures are transport errors, distinct from decode errors.
func (c *Conn) WriteFrame(f protocol.Frame) error {
	if _, err := c.bw.Write(protocol.Encode(f)); err != nil {
		return fmt.Errorf("conn: write frame: %w", err)
	}
	if err := c.bw.Flush(); err != nil {
		return fmt.Errorf("conn: flush frame: %w", err)
	}
	return nil
}

// Close releases the underlying stream.
func (c *Conn) Close() error {
	return c.nc.Close()
}

// RemoteAddr reports the peer address of the underlying stream.
func (c *Conn) RemoteAddr() net.Addr {
	return c.nc.RemoteAddr()
}

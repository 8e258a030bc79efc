package calc

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/virdis/calcwire/internal/protocol"
	"github.com/virdis/calcwire/internal/protocol/conn"
)

var (
	ErrAddressRequired = errors.New("calc: server address required")
	ErrNoResponse      = errors.New("calc: connection closed without a response")
	ErrUnexpectedFrame = errors.New("calc: unexpected response frame")
)

// Calculator client endpoint configuration.
type ClientConfig struct {
	Address        string
	ConnectTimeout time.Duration
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Address:        "127.0.0.1:8080",
		ConnectTimeout: 5 * time.Second,
	}
}

// Client issues one request/response exchange over one connection, matching
// the server's one-exchange handlers.
type Client struct {
	conn *conn.Conn
}

// Dial connects to the service at cfg.Address. Only the dial honors the
// configured timeout; the exchange itself has no deadline.
func Dial(cfg ClientConfig) (*Client, error) {
	addr := strings.TrimSpace(cfg.Address)
	if addr == "" {
		return nil, ErrAddressRequired
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultClientConfig().ConnectTimeout
	}
	dialer := net.Dialer{Timeout: timeout}
	nc, err := dialer.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("calc: dial %s: %w", addr, err)
	}
	return NewClient(nc), nil
}

// NewClient wraps an already-open stream.
func NewClient(nc net.Conn) *Client {
	return &Client{conn: conn.New(nc)}
}

// Do writes one request frame and reads the matching OpResult value. A
// stream closed before any reply is ErrNoResponse; a reply that is not an
// OpResult is ErrUnexpectedFrame.
func (c *Client) Do(req protocol.Frame) (uint64, error) {
	if err := c.conn.WriteFrame(req); err != nil {
		return 0, err
	}
	resp, err := c.conn.ReadFrame()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, ErrNoResponse
		}
		return 0, err
	}
	res, ok := resp.(protocol.OpResult)
	if !ok {
		return 0, fmt.Errorf("%w: %T", ErrUnexpectedFrame, resp)
	}
	return res.Value, nil
}

func (c *Client) Add(a, b uint64) (uint64, error) {
	return c.Do(protocol.Addition{Operand1: a, Operand2: b})
}

func (c *Client) Subtract(a, b uint64) (uint64, error) {
	return c.Do(protocol.Subtraction{Operand1: a, Operand2: b})
}

func (c *Client) Multiply(a, b uint64) (uint64, error) {
	return c.Do(protocol.Multiplication{Operand1: a, Operand2: b})
}

// Close releases the underlying stream.
func (c *Client) Close() error {
	return c.conn.Close()
}

package calc

import (
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/virdis/calcwire/internal/protocol"
	"github.com/virdis/calcwire/internal/testutil/testlog"
)

// testServiceConfig shrinks the backoff schedule so a closed listener ends
// Serve in milliseconds instead of minutes.
func testServiceConfig() ServiceConfig {
	cfg := DefaultServiceConfig()
	cfg.AcceptBackoff = BackoffConfig{Unit: time.Millisecond, Ceiling: 4 * time.Millisecond}
	return cfg
}

func mustDial(t *testing.T, addr string) net.Conn {
	t.Helper()
	nc, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial %s: %v", addr, err)
	}
	return nc
}

func readResult(t *testing.T, nc net.Conn) uint64 {
	t.Helper()
	buf := make([]byte, 9)
	if _, err := io.ReadFull(nc, buf); err != nil {
		t.Fatalf("read result: %v", err)
	}
	f, err := protocol.Decode(buf)
	if err != nil {
		t.Fatalf("decode result: %v", err)
	}
	res, ok := f.(protocol.OpResult)
	if !ok {
		t.Fatalf("expected OpResult, got %T", f)
	}
	return res.Value
}

func waitForActive(t *testing.T, svc *Service, want int64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if svc.ActiveHandlers() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("active handlers never reached %d, now %d", want, svc.ActiveHandlers())
}

type countingListener struct {
	net.Listener
	accepted atomic.Int32
}

func (l *countingListener) Accept() (net.Conn, error) {
	nc, err := l.Listener.Accept()
	if err == nil {
		l.accepted.Add(1)
	}
	return nc, err
}

type acceptStep struct {
	conn net.Conn
	err  error
}

// scriptedListener replays a fixed sequence of accept outcomes, then fails
// every call with fallback.
type scriptedListener struct {
	mu       sync.Mutex
	script   []acceptStep
	fallback error
	calls    int
}

func (l *scriptedListener) Accept() (net.Conn, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if len(l.script) == 0 {
		return nil, l.fallback
	}
	step := l.script[0]
	l.script = l.script[1:]
	return step.conn, step.err
}

func (l *scriptedListener) Close() error { return nil }

func (l *scriptedListener) Addr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0}
}

func (l *scriptedListener) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func TestServeComputesOverRealTCP(t *testing.T) {
	testlog.Start(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	svc := NewServiceWithConfig(testServiceConfig())
	done := make(chan error, 1)
	go func() {
		done <- svc.Serve(ln)
	}()
	addr := ln.Addr().String()

	exchanges := []struct {
		name string
		req  protocol.Frame
		want uint64
	}{
		{"addition", protocol.Addition{Operand1: 10, Operand2: 32}, 42},
		{"multiplication", protocol.Multiplication{Operand1: 7, Operand2: 6}, 42},
		{"subtraction", protocol.Subtraction{Operand1: 90, Operand2: 48}, 42},
		{"result echo", protocol.OpResult{Value: 7}, 7},
	}
	for _, tc := range exchanges {
		nc := mustDial(t, addr)
		if _, err := nc.Write(protocol.Encode(tc.req)); err != nil {
			t.Fatalf("%s: write: %v", tc.name, err)
		}
		if got := readResult(t, nc); got != tc.want {
			t.Fatalf("%s: got=%d want=%d", tc.name, got, tc.want)
		}
		nc.Close()
	}

	// A malformed request is dropped without any response bytes.
	nc := mustDial(t, addr)
	if _, err := nc.Write([]byte("+12a:3\r\n")); err != nil {
		t.Fatalf("write malformed: %v", err)
	}
	leftovers, err := io.ReadAll(nc)
	if err != nil {
		t.Fatalf("drain malformed conn: %v", err)
	}
	if len(leftovers) != 0 {
		t.Fatalf("expected no response to malformed frame, got %d bytes", len(leftovers))
	}
	nc.Close()

	ln.Close()
	if err := <-done; err == nil {
		t.Fatalf("expected fatal accept error after listener close")
	}
}

func TestServeAdmissionBlocksAtCapacity(t *testing.T) {
	testlog.Start(t)

	base, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ln := &countingListener{Listener: base}
	cfg := testServiceConfig()
	cfg.MaxConnections = 2
	svc := NewServiceWithConfig(cfg)
	done := make(chan error, 1)
	go func() {
		done <- svc.Serve(ln)
	}()
	addr := base.Addr().String()

	// Two silent clients pin both permits.
	connA := mustDial(t, addr)
	defer connA.Close()
	connB := mustDial(t, addr)
	defer connB.Close()
	waitForActive(t, svc, 2)

	// The third connection sits in the accept backlog: its request draws no
	// response and no third accept happens while the pool is exhausted.
	connC := mustDial(t, addr)
	defer connC.Close()
	if _, err := connC.Write(protocol.Encode(protocol.Addition{Operand1: 1, Operand2: 2})); err != nil {
		t.Fatalf("write on queued conn: %v", err)
	}
	_ = connC.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	var one [1]byte
	if _, err := connC.Read(one[:]); !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Fatalf("expected deadline while pool exhausted, got %v", err)
	}
	if got := ln.accepted.Load(); got != 2 {
		t.Fatalf("accepted connections while exhausted: got=%d want=2", got)
	}
	if got := svc.ActiveHandlers(); got != 2 {
		t.Fatalf("active handlers while exhausted: got=%d want=2", got)
	}

	// Completing one exchange releases a permit and admits the third.
	if _, err := connA.Write(protocol.Encode(protocol.Addition{Operand1: 10, Operand2: 32})); err != nil {
		t.Fatalf("write on first conn: %v", err)
	}
	if got := readResult(t, connA); got != 42 {
		t.Fatalf("first conn result: got=%d want=42", got)
	}
	_ = connC.SetReadDeadline(time.Now().Add(2 * time.Second))
	if got := readResult(t, connC); got != 3 {
		t.Fatalf("queued conn result: got=%d want=3", got)
	}

	connB.Close()
	base.Close()
	if err := <-done; err == nil {
		t.Fatalf("expected fatal accept error after listener close")
	}
}

func TestServeReleasesPermitAfterHandlerError(t *testing.T) {
	testlog.Start(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	cfg := testServiceConfig()
	cfg.MaxConnections = 1
	svc := NewServiceWithConfig(cfg)
	done := make(chan error, 1)
	go func() {
		done <- svc.Serve(ln)
	}()
	addr := ln.Addr().String()

	bad := mustDial(t, addr)
	if _, err := bad.Write([]byte("?")); err != nil {
		t.Fatalf("write bad marker: %v", err)
	}
	if _, err := io.ReadAll(bad); err != nil {
		t.Fatalf("drain bad conn: %v", err)
	}
	bad.Close()

	// The failed handler must have released the single permit.
	good := mustDial(t, addr)
	if _, err := good.Write(protocol.Encode(protocol.Multiplication{Operand1: 6, Operand2: 7})); err != nil {
		t.Fatalf("write good frame: %v", err)
	}
	if got := readResult(t, good); got != 42 {
		t.Fatalf("result after failed handler: got=%d want=42", got)
	}
	good.Close()

	ln.Close()
	if err := <-done; err == nil {
		t.Fatalf("expected fatal accept error after listener close")
	}
}

func TestServeBackoffExhaustionIsFatal(t *testing.T) {
	testlog.Start(t)

	errBoom := errors.New("accept boom")
	ln := &scriptedListener{fallback: errBoom}
	cfg := DefaultServiceConfig()
	cfg.AcceptBackoff = BackoffConfig{Unit: time.Millisecond, Ceiling: 64 * time.Millisecond}
	svc := NewServiceWithConfig(cfg)

	start := time.Now()
	err := svc.Serve(ln)
	elapsed := time.Since(start)

	if !errors.Is(err, errBoom) {
		t.Fatalf("expected wrapped accept error, got %v", err)
	}
	// Delays 1+2+4+8+16+32+64 are slept before the eighth attempt computes
	// a delay past the ceiling.
	if got := ln.Calls(); got != 8 {
		t.Fatalf("accept attempts: got=%d want=8", got)
	}
	if elapsed < 127*time.Millisecond {
		t.Fatalf("backoff slept too little: %v", elapsed)
	}
}

func TestServeRecoversAfterTransientAcceptFailures(t *testing.T) {
	testlog.Start(t)

	errFlaky := errors.New("accept flake")
	errGone := errors.New("listener gone")
	serverSide, clientSide := net.Pipe()
	ln := &scriptedListener{
		script: []acceptStep{
			{err: errFlaky},
			{err: errFlaky},
			{err: errFlaky},
			{conn: serverSide},
		},
		fallback: errGone,
	}
	cfg := DefaultServiceConfig()
	cfg.AcceptBackoff = BackoffConfig{Unit: time.Millisecond, Ceiling: 8 * time.Millisecond}
	svc := NewServiceWithConfig(cfg)

	done := make(chan error, 1)
	go func() {
		done <- svc.Serve(ln)
	}()

	if _, err := clientSide.Write(protocol.Encode(protocol.Addition{Operand1: 2, Operand2: 3})); err != nil {
		t.Fatalf("write request: %v", err)
	}
	if got := readResult(t, clientSide); got != 5 {
		t.Fatalf("result after transient failures: got=%d want=5", got)
	}
	clientSide.Close()

	if err := <-done; !errors.Is(err, errGone) {
		t.Fatalf("expected wrapped fallback error, got %v", err)
	}
	// Three flakes, one served connection, then five fallback failures
	// before the computed delay passes the ceiling.
	if got := ln.Calls(); got != 9 {
		t.Fatalf("accept attempts: got=%d want=9", got)
	}
}

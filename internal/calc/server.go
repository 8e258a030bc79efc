package calc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/virdis/calcwire/internal/observability"
	"github.com/virdis/calcwire/internal/protocol"
	"github.com/virdis/calcwire/internal/protocol/conn"
)

// Serve accepts connections on ln until an accept failure outlasts the
// backoff ceiling. A permit is acquired before every accept so the pool
// back-pressures acceptance itself; each accepted stream runs on its own
// goroutine, which releases the permit exactly once when it finishes.
func (s *Service) Serve(ln net.Listener) error {
	defer ln.Close()
	for {
		if err := s.permits.Acquire(context.Background(), 1); err != nil {
			return fmt.Errorf("calc: acquire permit: %w", err)
		}
		nc, err := s.accept(ln)
		if err != nil {
			s.permits.Release(1)
			return err
		}
		go func() {
			defer s.permits.Release(1)
			s.handleConn(nc)
		}()
	}
}

// accept retries transient failures with doubling delays until one exceeds
// the configured ceiling, then reports the failure as fatal. The retry
// counter is per accept call.
func (s *Service) accept(ln net.Listener) (net.Conn, error) {
	for attempt := 1; ; attempt++ {
		nc, err := ln.Accept()
		if err == nil {
			return nc, nil
		}
		delay := NextAcceptDelay(s.cfg.AcceptBackoff, attempt)
		if delay > s.cfg.AcceptBackoff.Ceiling {
			return nil, fmt.Errorf("calc: accept: %w", err)
		}
		observability.RecordAcceptRetry(s.cfg.ServiceID)
		s.log.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("accept failed, backing off")
		time.Sleep(delay)
	}
}

// Calculator connection handler: one request frame in, one OpResult out.
func (s *Service) handleConn(nc net.Conn) {
	defer nc.Close()

	remote := nc.RemoteAddr().String()
	active := s.active.Add(1)
	observability.RecordConnection(s.cfg.ServiceID)
	observability.SetActiveHandlers(s.cfg.ServiceID, active)
	s.log.Info().Str("remote", remote).Int64("active", active).Msg("client connected")
	defer func() {
		remaining := s.active.Add(-1)
		observability.SetActiveHandlers(s.cfg.ServiceID, remaining)
		s.log.Info().Str("remote", remote).Int64("active", remaining).Msg("client disconnected")
	}()

	c := conn.New(nc)
	req, err := c.ReadFrame()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return
		}
		kind := "read"
		switch {
		case errors.Is(err, protocol.ErrMalformed):
			kind = "malformed"
		case errors.Is(err, conn.ErrPeerReset):
			kind = "reset"
		}
		observability.RecordHandlerError(s.cfg.ServiceID, kind)
		s.log.Warn().Err(err).Str("remote", remote).Msg("read frame failed")
		return
	}

	observability.RecordFrame(s.cfg.ServiceID, opLabel(req))
	if err := c.WriteFrame(protocol.OpResult{Value: evaluate(req)}); err != nil {
		observability.RecordHandlerError(s.cfg.ServiceID, "write")
		s.log.Warn().Err(err).Str("remote", remote).Msg("write result failed")
	}
}

// evaluate computes the response value for one request. Arithmetic wraps
// modulo 2^64; an OpResult request echoes its value back.
func evaluate(f protocol.Frame) uint64 {
	switch f := f.(type) {
	case protocol.Addition:
		return f.Operand1 + f.Operand2
	case protocol.Subtraction:
		return f.Operand1 - f.Operand2
	case protocol.Multiplication:
		return f.Operand1 * f.Operand2
	case protocol.OpResult:
		return f.Value
	default:
		return 0
	}
}

func opLabel(f protocol.Frame) string {
	switch f.(type) {
	case protocol.Addition:
		return "addition"
	case protocol.Subtraction:
		return "subtraction"
	case protocol.Multiplication:
		return "multiplication"
	case protocol.OpResult:
		return "result"
	default:
		return "unknown"
	}
}

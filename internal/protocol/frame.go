package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
)

const (
	MarkerAddition       byte = '+'
	MarkerSubtraction    byte = '-'
	MarkerMultiplication byte = '*'
	MarkerOpResult       byte = '='
)

// OpResult frames carry a fixed 8-byte big-endian payload; the arithmetic
// request frames are CRLF-terminated text.
const opResultFrameLen = 1 + 8

var crlf = []byte("\r\n")

// Frame is one complete protocol message. The variant set is closed:
// Addition, Subtraction, Multiplication, OpResult.
type Frame interface {
	appendWire(dst []byte) []byte
}

// Addition requests operand1 + operand2.
type Addition struct {
	Operand1 uint64
	Operand2 uint64
}

// Subtraction requests operand1 - operand2.
type Subtraction struct {
	Operand1 uint64
	Operand2 uint64
}

// Multiplication requests operand1 * operand2.
type Multiplication struct {
	Operand1 uint64
	Operand2 uint64
}

// OpResult carries the 64-bit result of one operation.
type OpResult struct {
	Value uint64
}

func (f Addition) appendWire(dst []byte) []byte {
	return appendOperation(dst, MarkerAddition, f.Operand1, f.Operand2)
}

func (f Subtraction) appendWire(dst []byte) []byte {
	return appendOperation(dst, MarkerSubtraction, f.Operand1, f.Operand2)
}

func (f Multiplication) appendWire(dst []byte) []byte {
	return appendOperation(dst, MarkerMultiplication, f.Operand1, f.Operand2)
}

func (f OpResult) appendWire(dst []byte) []byte {
	dst = append(dst, MarkerOpResult)
	var raw [8]byte
	binary.BigEndian.PutUint64(raw[:], f.Value)
	return append(dst, raw[:]...)
}

func appendOperation(dst []byte, marker byte, op1, op2 uint64) []byte {
	dst = append(dst, marker)
	dst = strconv.AppendUint(dst, op1, 10)
	dst = append(dst, ':')
	dst = strconv.AppendUint(dst, op2, 10)
	return append(dst, crlf...)
}

// Check scans b for one complete frame without decoding it. On success it
// returns the frame's exact byte length. It returns ErrIncomplete while b
// holds a strict prefix of a valid frame, and ErrMalformed when the leading
// marker byte is not recognized.
func Check(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, ErrIncomplete
	}
	switch b[0] {
	case MarkerAddition, MarkerSubtraction, MarkerMultiplication:
		end := bytes.Index(b[1:], crlf)
		if end < 0 {
			return 0, ErrIncomplete
		}
		return 1 + end + len(crlf), nil
	case MarkerOpResult:
		if len(b) < opResultFrameLen {
			return 0, ErrIncomplete
		}
		return opResultFrameLen, nil
	default:
		return 0, fmt.Errorf("%w: unknown marker 0x%02x", ErrMalformed, b[0])
	}
}

// Decode produces the typed frame at the front of b. It re-scans from the
// start, so callers pair it with Check and hand it at least one complete
// frame; bytes past the first frame are ignored. Operand text that cannot
// form a uint64 (non-digit bytes, empty field, missing separator, overflow)
// is ErrMalformed.
func Decode(b []byte) (Frame, error) {
	n, err := Check(b)
	if err != nil {
		return nil, err
	}
	marker := b[0]
	if marker == MarkerOpResult {
		return OpResult{Value: binary.BigEndian.Uint64(b[1:n])}, nil
	}
	op1, op2, err := splitOperands(b[1 : n-len(crlf)])
	if err != nil {
		return nil, err
	}
	switch marker {
	case MarkerAddition:
		return Addition{Operand1: op1, Operand2: op2}, nil
	case MarkerSubtraction:
		return Subtraction{Operand1: op1, Operand2: op2}, nil
	case MarkerMultiplication:
		return Multiplication{Operand1: op1, Operand2: op2}, nil
	default:
		return nil, fmt.Errorf("%w: unknown marker 0x%02x", ErrMalformed, marker)
	}
}

// Encode renders the canonical wire bytes for f.
func Encode(f Frame) []byte {
	return f.appendWire(nil)
}

func splitOperands(payload []byte) (uint64, uint64, error) {
	sep := bytes.IndexByte(payload, ':')
	if sep < 0 {
		return 0, 0, fmt.Errorf("%w: missing operand separator", ErrMalformed)
	}
	op1, err := parseOperand(payload[:sep])
	if err != nil {
		return 0, 0, err
	}
	op2, err := parseOperand(payload[sep+1:])
	if err != nil {
		return 0, 0, err
	}
	return op1, op2, nil
}

func parseOperand(field []byte) (uint64, error) {
	v, err := strconv.ParseUint(string(field), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: operand %q is not an unsigned 64-bit decimal", ErrMalformed, field)
	}
	return v, nil
}

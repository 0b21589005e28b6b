package probe

import (
	"bytes"
	"context"
	"errors"
	"net"
	"time"

	"github.com/emo-crab/observer-ward-sub000/internal/engine/template"
)

// defaultTCPRead is the total read budget used to drain a TCP
// conversation's final input step when the step itself doesn't cap how
// much to read.
const defaultTCPRead = 2048

// tcpReadStep is how large each individual Read() call is allowed to be;
// servers that dribble bytes out slowly still get drained within one
// input's overall budget instead of blocking on a single short read.
const tcpReadStep = 12

// TCP dials addr and plays through req's input steps in order, writing
// each step's decoded data and reading back up to its budget. Only the
// final step's bytes are kept: templates match against the last
// conversation turn, the same behavior as reading a single banner after a
// short handshake.
func TCP(ctx context.Context, addr string, req template.TCPRequest, timeout time.Duration) (*TCPResponse, error) {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}

	var last []byte
	for _, input := range req.Inputs {
		if dl, ok := ctx.Deadline(); ok {
			_ = conn.SetDeadline(dl)
		} else {
			_ = conn.SetDeadline(time.Now().Add(timeout))
		}

		if input.Data != "" {
			if _, err := conn.Write(decodeTCPData(input.Data)); err != nil {
				return nil, err
			}
		}

		budget := input.Read
		if budget <= 0 {
			budget = defaultTCPRead
		}
		last, err = readUpTo(conn, budget)
		if err != nil && len(last) == 0 {
			return nil, err
		}
	}

	return &TCPResponse{Data: last}, nil
}

// readUpTo reads from conn in small chunks until budget bytes have been
// collected, the connection is closed (0-byte read), or a read times out
// after at least some data has already come back -- a server that keeps
// the socket open past its banner shouldn't stall the whole probe.
func readUpTo(conn net.Conn, budget int) ([]byte, error) {
	var buf bytes.Buffer
	chunk := make([]byte, tcpReadStep)
	for buf.Len() < budget {
		n, err := conn.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
		}
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() && buf.Len() > 0 {
				break
			}
			if buf.Len() > 0 {
				break
			}
			return buf.Bytes(), err
		}
		if n == 0 {
			break
		}
	}
	if buf.Len() > budget {
		return buf.Bytes()[:budget], nil
	}
	return buf.Bytes(), nil
}

package dimse

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/jpfielding/dicomgo/pkg/dimse/pdu"
)

// connection wraps a net.Conn with mutex-guarded deadlines and ARTIM-timer-aware read/write of
// whole PDUs. Grounded on codeninja55-go-radx/dimse/dul.Connection, simplified to drop that
// teacher's full PS3.8 state-machine coupling: association.go tracks State itself.
type connection struct {
	conn net.Conn
	mu   sync.Mutex

	maxPDULength uint32
	artim        time.Duration
}

func newConnection(conn net.Conn, maxPDULength uint32, artim time.Duration) *connection {
	if maxPDULength == 0 {
		maxPDULength = pdu.DefaultMaxPDULength
	}
	if artim <= 0 {
		artim = defaultArtimTimeout
	}
	return &connection{conn: conn, maxPDULength: maxPDULength, artim: artim}
}

func dial(ctx context.Context, addr string) (*connection, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dimse: dial %s: %w", addr, err)
	}
	return newConnection(conn, pdu.DefaultMaxPDULength, defaultArtimTimeout), nil
}

// sendPDU encodes and writes p, enforcing the ARTIM timer as the write deadline.
func (c *connection) sendPDU(p pdu.PDU) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.artim)); err != nil {
		return fmt.Errorf("dimse: set write deadline: %w", err)
	}
	defer c.conn.SetWriteDeadline(time.Time{})

	if err := p.Encode(c.conn); err != nil {
		return fmt.Errorf("dimse: encode %T: %w", p, err)
	}
	return nil
}

// readPDU reads one PDU, enforcing the ARTIM timer as the read deadline. A deadline expiry
// surfaces as *ArtimTimeoutError rather than the raw net.Error so callers can branch on it.
func (c *connection) readPDU() (pdu.PDU, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetReadDeadline(time.Now().Add(c.artim)); err != nil {
		return nil, fmt.Errorf("dimse: set read deadline: %w", err)
	}
	defer c.conn.SetReadDeadline(time.Time{})

	p, err := pdu.ReadPDU(c.conn)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, &ArtimTimeoutError{Timeout: c.artim.String()}
		}
		return nil, err
	}
	return p, nil
}

func (c *connection) setArtimTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.artim = d
}

func (c *connection) close() error {
	return c.conn.Close()
}

func (c *connection) remoteAddr() net.Addr { return c.conn.RemoteAddr() }
func (c *connection) localAddr() net.Addr  { return c.conn.LocalAddr() }

package relay

import (
	"net"
	"sync"
	"time"

	"github.com/mcoot/pairchat/internal/model"
)

// conn is one client socket. Only its own handler reads from it or closes it;
// a partner's handler may write to it, so writes are serialized.
type conn struct {
	id           model.ConnID
	netConn      net.Conn
	writeTimeout time.Duration
	connectedAt  time.Time

	writeMu sync.Mutex

	// partnerLeft is closed when the paired partner tears down
	partnerLeft     chan struct{}
	partnerLeftOnce sync.Once

	closeOnce sync.Once
	closeErr  error
}

func newConn(netConn net.Conn, writeTimeout time.Duration) *conn {
	return &conn{
		id:           model.NewConnID(),
		netConn:      netConn,
		writeTimeout: writeTimeout,
		connectedAt:  time.Now(),
		partnerLeft:  make(chan struct{}),
	}
}

// send writes one newline-terminated line
func (c *conn) send(line string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		_ = c.netConn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	_, err := c.netConn.Write([]byte(line + "\n"))
	return err
}

// signalPartnerLeft tells this connection's handler that its partner is gone
func (c *conn) signalPartnerLeft() {
	c.partnerLeftOnce.Do(func() {
		close(c.partnerLeft)
	})
}

func (c *conn) close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.netConn.Close()
	})
	return c.closeErr
}

func (c *conn) remoteAddr() string {
	if addr := c.netConn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

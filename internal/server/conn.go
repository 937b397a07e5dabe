package server

import (
	"bufio"
	"context"
	"net"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

const writeTimeout = 5 * time.Second

// tcpConn frames the raw stream as newline-delimited text. Writes are
// serialized; pushes arrive from several goroutines.
type tcpConn struct {
	nc net.Conn

	mu sync.Mutex
	w  *bufio.Writer
}

func newTCPConn(nc net.Conn) *tcpConn {
	return &tcpConn{nc: nc, w: bufio.NewWriter(nc)}
}

func (c *tcpConn) WriteLine(ctx context.Context, line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline := time.Now().Add(writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.nc.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if _, err := c.w.WriteString(line); err != nil {
		return err
	}
	if err := c.w.WriteByte('\n'); err != nil {
		return err
	}
	return c.w.Flush()
}

func (c *tcpConn) Close() error       { return c.nc.Close() }
func (c *tcpConn) RemoteAddr() string { return c.nc.RemoteAddr().String() }

// wsConn carries the same command/reply lines as one text message each.
type wsConn struct {
	conn   *websocket.Conn
	remote string
}

func newWSConn(conn *websocket.Conn, remote string) *wsConn {
	return &wsConn{conn: conn, remote: remote}
}

func (c *wsConn) WriteLine(ctx context.Context, line string) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, writeTimeout)
		defer cancel()
	}
	return c.conn.Write(ctx, websocket.MessageText, []byte(line))
}

func (c *wsConn) Close() error       { return c.conn.Close(websocket.StatusNormalClosure, "") }
func (c *wsConn) RemoteAddr() string { return c.remote }

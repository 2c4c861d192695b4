package redis

import "time"

// Connection is a one-shot handle over a Driver (spec.md §2 item 3): it
// forwards single-command, pipelined, and raw read/write operations,
// and lets the Client push timeout changes to the live Driver (I4).
type Connection struct {
	driver Driver
}

func newConnection(d Driver) *Connection { return &Connection{driver: d} }

// Call sends one command and returns its reply.
func (c *Connection) Call(cmd Command, timeout time.Duration) (Reply, error) {
	return c.driver.Call(cmd, timeout)
}

// CallPipelined sends commands back to back and returns their replies in
// order.
func (c *Connection) CallPipelined(cmds []Command, timeouts map[int]time.Duration) ([]Reply, error) {
	return c.driver.CallPipelined(cmds, timeouts)
}

// Write sends a command without awaiting a reply (pub/sub framing).
func (c *Connection) Write(cmd Command) error { return c.driver.Write(cmd) }

// Read receives the next pushed message (pub/sub framing).
func (c *Connection) Read(timeout time.Duration) (Reply, error) { return c.driver.Read(timeout) }

// Close tears down the underlying Driver.
func (c *Connection) Close() error { return c.driver.Close() }

// Connected reports whether the underlying Driver still considers
// itself healthy.
func (c *Connection) Connected() bool { return c.driver.Connected() }

// SetReadTimeout pushes a new read timeout to the live Driver.
func (c *Connection) SetReadTimeout(t time.Duration) { c.driver.SetReadTimeout(t) }

// SetWriteTimeout pushes a new write timeout to the live Driver.
func (c *Connection) SetWriteTimeout(t time.Duration) { c.driver.SetWriteTimeout(t) }

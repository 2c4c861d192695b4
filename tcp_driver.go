package redis

import (
	"bufio"
	"net"
	"sync"
	"time"
)

// DefaultDriver is a one-shot TCP Driver, grounded on the teacher's
// connect()/Client plumbing in client.go: a single net.Conn with a
// buffered reader, deadline-based timeouts, and no internal retry (that
// lives in Client per spec.md §4.1).
type DefaultDriver struct {
	conn net.Conn
	r    *bufio.Reader

	mu           sync.Mutex
	closed       bool
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// NewDefaultDriver dials addr over TCP (or a Unix socket, when addr
// looks like an absolute path) and returns a ready Driver. It satisfies
// DriverFactory.
func NewDefaultDriver(cfg *Config, connectTimeout, readTimeout, writeTimeout time.Duration) (Driver, error) {
	network := "tcp"
	if len(cfg.Addr) > 0 && cfg.Addr[0] == '/' {
		network = "unix"
	}

	dialer := net.Dialer{Timeout: connectTimeout}
	conn, err := dialer.Dial(network, cfg.Addr)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, NewConnectTimeoutError()
		}
		return nil, err
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.SetNoDelay(true)
	}

	return &DefaultDriver{
		conn:         conn,
		r:            bufio.NewReader(conn),
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}, nil
}

func (d *DefaultDriver) SetReadTimeout(t time.Duration)  { d.mu.Lock(); d.readTimeout = t; d.mu.Unlock() }
func (d *DefaultDriver) SetWriteTimeout(t time.Duration) { d.mu.Lock(); d.writeTimeout = t; d.mu.Unlock() }

func (d *DefaultDriver) Connected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.closed
}

func (d *DefaultDriver) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return d.conn.Close()
}

// writeDeadline applies the write timeout, or override instead when
// override is nonzero.
func (d *DefaultDriver) writeDeadline(override time.Duration) error {
	d.mu.Lock()
	t := d.writeTimeout
	d.mu.Unlock()
	if override != 0 {
		t = override
	}
	if t > 0 {
		return d.conn.SetWriteDeadline(time.Now().Add(t))
	}
	return d.conn.SetWriteDeadline(time.Time{})
}

// readDeadline applies the read timeout. A negative override means wait
// forever (spec.md §4.1 blockingCall semantics); zero means "use the
// Driver default".
func (d *DefaultDriver) readDeadline(override time.Duration) error {
	d.mu.Lock()
	t := d.readTimeout
	d.mu.Unlock()
	if override < 0 {
		return d.conn.SetReadDeadline(time.Time{})
	}
	if override != 0 {
		t = override
	}
	if t > 0 {
		return d.conn.SetReadDeadline(time.Now().Add(t))
	}
	return d.conn.SetReadDeadline(time.Time{})
}

// classifyWriteErr distinguishes a write-deadline expiry from any other
// socket failure, mirroring the read path's net.Error.Timeout() check.
func classifyWriteErr(err error) error {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return NewWriteTimeoutError()
	}
	return &ConnectionError{Err: err}
}

func (d *DefaultDriver) Call(cmd Command, timeout time.Duration) (Reply, error) {
	if err := d.writeDeadline(0); err != nil {
		return Reply{}, &ConnectionError{Err: err}
	}
	if _, err := d.conn.Write(encodeCommand(cmd)); err != nil {
		return Reply{}, classifyWriteErr(err)
	}

	if err := d.readDeadline(timeout); err != nil {
		return Reply{}, &ConnectionError{Err: err}
	}
	reply, err := decodeReply(d.r)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return Reply{}, NewReadTimeoutError()
		}
		return Reply{}, &ConnectionError{Err: err}
	}
	return reply, nil
}

func (d *DefaultDriver) CallPipelined(cmds []Command, timeouts map[int]time.Duration) ([]Reply, error) {
	if err := d.writeDeadline(0); err != nil {
		return nil, &ConnectionError{Err: err}
	}
	for _, cmd := range cmds {
		if _, err := d.conn.Write(encodeCommand(cmd)); err != nil {
			return nil, classifyWriteErr(err)
		}
	}

	replies := make([]Reply, len(cmds))
	for i := range cmds {
		timeout := timeouts[i]
		if err := d.readDeadline(timeout); err != nil {
			return nil, &ConnectionError{Err: err}
		}
		reply, err := decodeReply(d.r)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return nil, NewReadTimeoutError()
			}
			return nil, &ConnectionError{Err: err}
		}
		replies[i] = reply
	}
	return replies, nil
}

func (d *DefaultDriver) Write(cmd Command) error {
	if err := d.writeDeadline(0); err != nil {
		return &ConnectionError{Err: err}
	}
	if _, err := d.conn.Write(encodeCommand(cmd)); err != nil {
		return classifyWriteErr(err)
	}
	return nil
}

func (d *DefaultDriver) Read(timeout time.Duration) (Reply, error) {
	if err := d.readDeadline(timeout); err != nil {
		return Reply{}, &ConnectionError{Err: err}
	}
	reply, err := decodeReply(d.r)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return Reply{}, NewReadTimeoutError()
		}
		return Reply{}, &ConnectionError{Err: err}
	}
	return reply, nil
}

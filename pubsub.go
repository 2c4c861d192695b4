package redis

import "time"

// PubSub owns a Connection handed off by Client.PubSub (spec.md §4.3). It
// is write-then-poll: Call sends a subscribe/publish command without
// awaiting a reply, and NextEvent receives the next pushed message.
// Once Close runs, the handle cannot be reattached to a Client.
type PubSub struct {
	conn   *Connection
	closed bool
}

func newPubSub(conn *Connection) *PubSub {
	return &PubSub{conn: conn}
}

// Call sends a command (e.g. SUBSCRIBE, PSUBSCRIBE, PUBLISH) without
// waiting for a reply; the server's acknowledgment or published message
// arrives later through NextEvent.
func (p *PubSub) Call(args ...any) error {
	if p.closed {
		return &ConnectionError{Err: ErrClosed}
	}
	cmd, err := CoerceCommand(args...)
	if err != nil {
		return err
	}
	return p.conn.Write(cmd)
}

// NextEvent waits up to timeout for the next pushed message. A read
// timeout is not an error here (spec.md §4.3): it returns ok=false with
// a nil error, so callers can poll in a loop without special-casing
// timeouts or reconstructing a null-reply sentinel by hand — a zero-value
// Reply (e.g. a bare "+OK") is otherwise indistinguishable from "nothing
// pushed yet". A zero or negative timeout waits forever. Any other read
// failure raises ConnectionError and the handle is no longer usable.
func (p *PubSub) NextEvent(timeout time.Duration) (reply Reply, ok bool, err error) {
	if p.closed {
		return Reply{}, false, &ConnectionError{Err: ErrClosed}
	}

	driverTimeout := timeout
	if timeout <= 0 {
		driverTimeout = -1
	}

	reply, err = p.conn.Read(driverTimeout)
	if err != nil {
		if isTimeoutClass(err) {
			return Reply{}, false, nil
		}
		return Reply{}, false, err
	}
	return reply, true, nil
}

// Close tears down the underlying Connection. Subsequent Call or
// NextEvent calls raise ConnectionError; the handle cannot be handed
// back to a Client.
func (p *PubSub) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	return p.conn.Close()
}

func isTimeoutClass(err error) bool {
	type timeouter interface{ Timeout() bool }
	t, ok := err.(timeouter)
	return ok && t.Timeout()
}

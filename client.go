package redis

import (
	"errors"
	"time"

	"go.uber.org/zap"
)

// Client is the core state machine of spec.md §4.1: it owns at most one
// live Connection, lazily (re)establishes it, runs the prelude,
// enforces retry policy, and serves the public command surface.
//
// A Client is NOT safe for concurrent use from multiple goroutines
// (spec.md §5); external pooling provides parallelism by owning
// multiple Clients.
type Client struct {
	config *Config
	id     string

	connectTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration

	conn *Connection

	// disableReconnection is true inside a non-retryable scope (I2).
	disableReconnection bool

	middlewares *MiddlewareRegistry
}

// NewFromConfig builds a Client around an existing Config.
func NewFromConfig(cfg *Config) *Client {
	return &Client{
		config:         cfg,
		id:             cfg.ID,
		connectTimeout: cfg.ConnectTimeout,
		readTimeout:    cfg.ReadTimeout,
		writeTimeout:   cfg.WriteTimeout,
		middlewares:    NewMiddlewareRegistry(),
	}
}

// NewFromOptions builds a default Config from opts and wraps it in a
// Client. Kept distinct from NewFromConfig per spec.md §9's note on
// polymorphic constructors: Go has no keyword-argument overloading, so
// the config-vs-options choice is two named functions instead of one.
func NewFromOptions(opts ...ConfigOption) *Client {
	return NewFromConfig(NewConfig(opts...))
}

// Middlewares returns the registry commands and pipelines are wrapped
// through. Register additional Middleware on it before first use.
func (c *Client) Middlewares() *MiddlewareRegistry { return c.middlewares }

// Size always reports 1: a marker pooled wrappers rely on, since a bare
// Client represents exactly one logical connection (spec.md §4.1).
func (c *Client) Size() int { return 1 }

// With yields the Client itself, so callers can stay uniform across
// pooled and unpooled usage (spec.md §4.1).
func (c *Client) With(fn func(*Client)) { fn(c) }

// Connected reports whether a live Connection exists and reports itself
// healthy.
func (c *Client) Connected() bool {
	return c.conn != nil && c.conn.Connected()
}

// Close closes and drops any live Connection. Idempotent (P9).
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// SetTimeout sets all three timeouts to one value and, when a
// Connection is live, pushes the new read/write timeouts to it
// immediately (I4). The connect timeout only affects future opens.
func (c *Client) SetTimeout(d time.Duration) {
	c.connectTimeout, c.readTimeout, c.writeTimeout = d, d, d
	c.pushTimeouts()
}

// SetReadTimeout sets the read timeout and pushes it to a live
// Connection.
func (c *Client) SetReadTimeout(d time.Duration) {
	c.readTimeout = d
	c.pushTimeouts()
}

// SetWriteTimeout sets the write timeout and pushes it to a live
// Connection.
func (c *Client) SetWriteTimeout(d time.Duration) {
	c.writeTimeout = d
	c.pushTimeouts()
}

func (c *Client) pushTimeouts() {
	if c.conn == nil {
		return
	}
	c.conn.SetReadTimeout(c.readTimeout)
	c.conn.SetWriteTimeout(c.writeTimeout)
}

// Call sends one command and returns its decoded reply, retrying on
// connection-class failures per the Config's policy.
func (c *Client) Call(args ...any) (Reply, error) {
	cmd, err := CoerceCommand(args...)
	if err != nil {
		return Reply{}, err
	}
	return withRetry(c, true, func(conn *Connection) (Reply, error) {
		return c.middlewares.wrapCall(cmd, c.config, func() (Reply, error) {
			return conn.Call(cmd, 0)
		})
	})
}

// CallOnce is like Call but never retries, even on a transient
// connection-class failure after a successful send (P5).
func (c *Client) CallOnce(args ...any) (Reply, error) {
	cmd, err := CoerceCommand(args...)
	if err != nil {
		return Reply{}, err
	}
	return withRetry(c, false, func(conn *Connection) (Reply, error) {
		return c.middlewares.wrapCall(cmd, c.config, func() (Reply, error) {
			return conn.Call(cmd, 0)
		})
	})
}

// BlockingCall is like Call but overrides the read timeout for this one
// command. A zero or negative timeout waits forever. Blocking commands
// are never retried (P5): a finite wait that expired, or one that
// returned after mutating server-side queue state, cannot be safely
// replayed.
func (c *Client) BlockingCall(timeout time.Duration, args ...any) (Reply, error) {
	cmd, err := CoerceCommand(args...)
	if err != nil {
		return Reply{}, err
	}
	driverTimeout := timeout
	if timeout <= 0 {
		driverTimeout = -1 // wait forever
	}
	return withRetry(c, false, func(conn *Connection) (Reply, error) {
		return c.middlewares.wrapCall(cmd, c.config, func() (Reply, error) {
			return conn.Call(cmd, driverTimeout)
		})
	})
}

// Pipelined lets fn populate a Pipeline; on return, all buffered
// commands are sent as one batch and their replies collected in order.
// An empty Pipeline returns an empty slice without touching the wire
// (P2).
func (c *Client) Pipelined(fn func(*Pipeline) error) ([]Reply, error) {
	p := newPipeline()
	if err := fn(p); err != nil {
		return nil, err
	}
	if p.Empty() {
		return []Reply{}, nil
	}

	cmds := p.batch.commands
	timeouts := p.batch.timeouts
	return withRetry(c, p.batch.retryable, func(conn *Connection) ([]Reply, error) {
		return c.middlewares.wrapCallPipelined(cmds, c.config, func() ([]Reply, error) {
			return conn.CallPipelined(cmds, timeouts)
		})
	})
}

// Multi executes a transaction: fn populates the user commands framed by
// MULTI/EXEC, optionally preceded by WATCH on the given keys. With
// watch, retry is disabled for the whole scope, since optimistic-lock
// state cannot be replayed on a fresh connection. An empty Transaction
// (fn appends nothing) returns an empty slice without touching the wire
// (P3).
func (c *Client) Multi(watch []string, fn func(*Transaction) error) ([]Reply, error) {
	t := newTransaction(watch)

	if err := fn(t); err != nil {
		c.bestEffortUnwatch(watch)
		return nil, err
	}
	t.finish()
	if t.Empty() {
		return []Reply{}, nil
	}

	cmds := make([]Command, 0, len(t.batch.commands)+1)
	offset := 0
	if len(watch) > 0 {
		watchArgs := make([]any, 0, len(watch)+1)
		watchArgs = append(watchArgs, "WATCH")
		for _, k := range watch {
			watchArgs = append(watchArgs, k)
		}
		watchCmd, err := CoerceCommand(watchArgs...)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, watchCmd)
		offset = 1
	}
	cmds = append(cmds, t.batch.commands...)

	// t.batch.timeouts holds indices computed against the unshifted
	// t.batch.commands (Pipeline.BlockingCall); WATCH, when present,
	// pushes every command's wire position up by one.
	timeouts := t.batch.timeouts
	if offset > 0 && len(timeouts) > 0 {
		shifted := make(map[int]time.Duration, len(timeouts))
		for i, d := range timeouts {
			shifted[i+offset] = d
		}
		timeouts = shifted
	}

	replies, err := withRetry(c, t.batch.retryable, func(conn *Connection) ([]Reply, error) {
		return c.middlewares.wrapCallPipelined(cmds, c.config, func() ([]Reply, error) {
			return conn.CallPipelined(cmds, timeouts)
		})
	})
	if err != nil {
		c.bestEffortUnwatch(watch)
		return nil, err
	}

	exec := replies[len(replies)-1]
	if exec.Type != ReplyArray {
		err := &Error{Op: "multi", Err: errors.New("EXEC reply was not an array")}
		c.bestEffortUnwatch(watch)
		return nil, err
	}
	// I5: verify no element is a server-reported error before returning.
	for _, r := range exec.Array {
		if r.Err != nil {
			c.bestEffortUnwatch(watch)
			return nil, r.Err
		}
	}
	return exec.Array, nil
}

// bestEffortUnwatch issues UNWATCH on the still-connected Connection, per
// spec.md §7: "any raised error triggers a best-effort UNWATCH ... to
// avoid leaking watch state." Per spec.md §9's Open Question, this
// mirrors the source by gating strictly on Connected() && watch, even
// for an error raised before WATCH was ever sent.
func (c *Client) bestEffortUnwatch(watch []string) {
	if len(watch) == 0 || !c.Connected() {
		return
	}
	_, _ = c.CallOnce("UNWATCH")
}

// PubSub transitions the owned Connection into a PubSub handle; the
// Client drops its reference (I3). A subsequent command opens a new
// Connection transparently (P8).
func (c *Client) PubSub() (*PubSub, error) {
	conn, err := c.acquireRetryable()
	if err != nil {
		return nil, err
	}
	c.conn = nil
	return newPubSub(conn), nil
}

// connect opens a fresh Driver and runs the prelude (spec.md §4.1
// "Connect and prelude"): the configured prelude commands, an optional
// CLIENT SETNAME, and, for sentinel discovery, ROLE with the config's
// role check. The prelude bypasses Middlewares.
func (c *Client) connect() (*Connection, error) {
	driver, err := c.config.NewDriver(c.connectTimeout, c.readTimeout, c.writeTimeout)
	if err != nil {
		return nil, &ConnectionError{Err: err}
	}
	conn := newConnection(driver)

	prelude := append([]Command(nil), c.config.ConnectionPrelude...)
	if c.id != "" {
		setName, err := CoerceCommand("CLIENT", "SETNAME", c.id)
		if err == nil {
			prelude = append(prelude, setName)
		}
	}
	if c.config.Sentinel {
		roleCmd, _ := CoerceCommand("ROLE")
		prelude = append(prelude, roleCmd)
	}

	if len(prelude) == 0 {
		c.conn = conn
		return conn, nil
	}

	replies, err := conn.CallPipelined(prelude, nil)
	if err != nil {
		conn.Close()
		return nil, &ConnectionError{Err: err}
	}

	if c.config.Sentinel {
		last := replies[len(replies)-1]
		var role string
		if last.Type == ReplyArray && len(last.Array) > 0 && last.Array[0].Type == ReplyBulk {
			role = string(last.Array[0].Bulk)
		}
		if err := c.config.CheckRole(role); err != nil {
			c.config.Logger.Warn("redis: sentinel role check failed", zap.Error(err))
			conn.Close()
			return nil, err
		}
	}

	c.conn = conn
	return conn, nil
}

// getOrOpen returns the live Connection, or opens a fresh one.
func (c *Client) getOrOpen() (*Connection, error) {
	if c.conn != nil && c.conn.Connected() {
		return c.conn, nil
	}
	return c.connect()
}

// acquireRetryable obtains a Connection, retrying the *connect* step
// per policy even when the eventual operation will run non-retryably
// (spec.md §4.1: "the initial connection attempt remains retryable even
// for non-retryable operations").
func (c *Client) acquireRetryable() (*Connection, error) {
	tries := 0
	for {
		conn, err := c.getOrOpen()
		if err == nil {
			return conn, nil
		}
		if !isConnectionClass(err) {
			return nil, err
		}
		c.dropConn()
		retry, delay := c.config.RetryConnecting(tries, err)
		if !retry {
			return nil, err
		}
		tries++
		if delay > 0 {
			time.Sleep(delay)
		}
	}
}

func (c *Client) dropConn() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func isConnectionClass(err error) bool {
	return errors.As(err, new(*ConnectionError))
}

// withRetry implements the retry/reconnection state machine of
// spec.md §4.1 for an arbitrary operation result type.
func withRetry[T any](c *Client, retryable bool, op func(conn *Connection) (T, error)) (T, error) {
	var zero T

	if c.disableReconnection {
		if c.conn == nil {
			return zero, ErrClosed
		}
		return op(c.conn)
	}

	if !retryable {
		var result T
		err := c.runNonRetryable(func(conn *Connection) error {
			var opErr error
			result, opErr = op(conn)
			return opErr
		})
		return result, err
	}

	tries := 0
	for {
		conn, err := c.getOrOpen()
		var opErr error
		var result T
		if err == nil {
			result, opErr = op(conn)
			if opErr == nil {
				return result, nil
			}
			err = opErr
		}

		if !isConnectionClass(err) {
			return zero, err // non-connection-class: Connection stays, propagate immediately
		}

		c.dropConn()
		retry, delay := c.config.RetryConnecting(tries, err)
		if !retry {
			return zero, err
		}
		tries++
		if delay > 0 {
			time.Sleep(delay)
		}
	}
}

// runNonRetryable acquires a Connection via a retryable nested call (so
// the initial open may still retry), then disables reconnection for the
// duration of fn, restoring the previous value on every exit path
// (spec.md §9's scoped, re-entrant flag note). A connection-class error
// from fn closes and drops the Connection without retrying.
func (c *Client) runNonRetryable(fn func(conn *Connection) error) error {
	conn, err := c.acquireRetryable()
	if err != nil {
		return err
	}

	prev := c.disableReconnection
	c.disableReconnection = true
	defer func() { c.disableReconnection = prev }()

	if err := fn(conn); err != nil {
		if isConnectionClass(err) {
			c.dropConn()
		}
		return err
	}
	return nil
}

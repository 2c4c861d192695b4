package redis

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Config is the external collaborator of spec.md §6.2: it owns the
// server address, timeouts, the Driver factory, the connection prelude,
// sentinel discovery, and the retry policy oracle. Built through
// functional options rather than Ruby-style keyword arguments.
type Config struct {
	ID string

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration

	Addr string

	DriverFactory DriverFactory

	// ConnectionPrelude lists the commands issued (pipelined) right
	// after a fresh Driver is created, before any user command.
	ConnectionPrelude []Command

	// Sentinel is true when Addr resolves to a high-availability
	// discovery node: the prelude appends ROLE and CheckRole is
	// consulted on the result.
	Sentinel bool

	// Logger receives a Warn entry when a sentinel role check fails; the
	// retry state machine logs nothing else. Defaults to a no-op logger.
	Logger *zap.Logger

	retryPolicy func(tries int, err error) (bool, time.Duration)
}

// ConfigOption mutates a Config under construction.
type ConfigOption func(*Config)

// WithAddr sets the server address.
func WithAddr(addr string) ConfigOption { return func(c *Config) { c.Addr = addr } }

// WithID sets the client name sent via CLIENT SETNAME in the prelude.
func WithID(id string) ConfigOption { return func(c *Config) { c.ID = id } }

// WithTimeouts sets all three timeouts at once.
func WithTimeouts(connect, read, write time.Duration) ConfigOption {
	return func(c *Config) {
		c.ConnectTimeout, c.ReadTimeout, c.WriteTimeout = connect, read, write
	}
}

// WithDriverFactory overrides the Driver factory (default: the TCP
// DefaultDriver).
func WithDriverFactory(f DriverFactory) ConfigOption {
	return func(c *Config) { c.DriverFactory = f }
}

// WithConnectionPrelude sets the fixed opening command list (e.g.
// AUTH, HELLO, SELECT) issued before any user command.
func WithConnectionPrelude(cmds ...Command) ConfigOption {
	return func(c *Config) { c.ConnectionPrelude = cmds }
}

// WithLogger sets Config.Logger, which the Client uses only to report a
// failed sentinel role check. A nil logger is replaced with zap.NewNop().
func WithLogger(l *zap.Logger) ConfigOption {
	return func(c *Config) {
		if l == nil {
			l = zap.NewNop()
		}
		c.Logger = l
	}
}

// WithRetryPolicy overrides the default exponential-backoff retry
// policy oracle (Config.RetryConnecting).
func WithRetryPolicy(f func(tries int, err error) (bool, time.Duration)) ConfigOption {
	return func(c *Config) { c.retryPolicy = f }
}

// dialDelayMax bounds the default backoff delay, matching the teacher's
// DialDelayMax constant.
const dialDelayMax = 500 * time.Millisecond

// defaultRetryLimit caps the default policy's attempt count; beyond it,
// RetryConnecting returns false so a persistently broken node surfaces
// its error instead of retrying forever.
const defaultRetryLimit = 8

// NewConfig builds a plain (non-sentinel) Config. Addr defaults to
// "localhost:6379" unless WithAddr overrides it.
func NewConfig(opts ...ConfigOption) *Config {
	c := &Config{
		Addr:           "localhost:6379",
		ConnectTimeout: time.Second,
		ReadTimeout:    time.Second,
		WriteTimeout:   time.Second,
		DriverFactory:  NewDefaultDriver,
		Logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewSentinelConfig builds a Config for high-availability discovery: the
// prelude appends ROLE and the client enforces CheckRole on the reply.
func NewSentinelConfig(opts ...ConfigOption) *Config {
	c := NewConfig(opts...)
	c.Sentinel = true
	return c
}

// RetryConnecting is the retry policy oracle of spec.md §6.2
// (config.retry_connecting?(tries, error)). The default policy retries
// up to defaultRetryLimit times using an exponential backoff capped at
// dialDelayMax, grounded on the teacher's DialDelayMax / doubling-delay
// reconnect loop but delegated to github.com/cenkalti/backoff/v4 instead
// of a hand-rolled doubling formula.
func (c *Config) RetryConnecting(tries int, err error) (retry bool, delay time.Duration) {
	if c.retryPolicy != nil {
		return c.retryPolicy(tries, err)
	}
	if tries >= defaultRetryLimit {
		return false, 0
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Millisecond
	b.MaxInterval = dialDelayMax
	b.Multiplier = 2
	b.RandomizationFactor = 0

	var d time.Duration
	for i := 0; i <= tries; i++ {
		d = b.NextBackOff()
	}
	if d > dialDelayMax {
		d = dialDelayMax
	}
	return true, d
}

// CheckRole validates a sentinel ROLE reply's first element, raising
// FailoverError on anything but "master".
func (c *Config) CheckRole(role string) error {
	if role != "master" {
		return &FailoverError{Role: role}
	}
	return nil
}

// NewDriver constructs a fresh Driver for one connection attempt using
// the configured factory.
func (c *Config) NewDriver(connectTimeout, readTimeout, writeTimeout time.Duration) (Driver, error) {
	factory := c.DriverFactory
	if factory == nil {
		factory = NewDefaultDriver
	}
	d, err := factory(c, connectTimeout, readTimeout, writeTimeout)
	if err != nil {
		return nil, fmt.Errorf("redis: dial %s: %w", c.Addr, err)
	}
	return d, nil
}

package redis

import "time"

// Reply is a decoded server response. Exactly one of its fields (besides
// Err) is meaningful, selected by Type.
type Reply struct {
	Type  ReplyType
	OK    bool    // Type == ReplyOK
	Int   int64   // Type == ReplyInt
	Bulk  []byte  // Type == ReplyBulk; nil means the null bulk string
	Array []Reply // Type == ReplyArray; nil means the null array
	Err   error   // non-nil for a server-reported CommandError
}

// ReplyType discriminates the shape of a Reply.
type ReplyType byte

const (
	ReplyOK ReplyType = iota
	ReplyInt
	ReplyBulk
	ReplyArray
)

// Driver is the external collaborator that owns the raw network
// connection (spec.md §6.1). A Driver instance is one-shot: once closed
// or broken it is discarded, never reused.
type Driver interface {
	// Call sends one command and returns its reply. A zero timeout
	// means "use the Driver's configured read timeout"; a negative
	// timeout means "wait forever".
	Call(cmd Command, timeout time.Duration) (Reply, error)

	// CallPipelined sends commands back to back and returns their
	// replies in the same order. timeouts is a sparse index-to-timeout
	// override map, as in Batch.
	CallPipelined(cmds []Command, timeouts map[int]time.Duration) ([]Reply, error)

	// Write sends a command without awaiting a reply (pub/sub mode).
	Write(cmd Command) error
	// Read receives the next pushed message (pub/sub mode). A zero
	// timeout means "use the Driver's configured read timeout"; a
	// negative timeout means "wait forever".
	Read(timeout time.Duration) (Reply, error)

	Close() error
	Connected() bool

	SetReadTimeout(time.Duration)
	SetWriteTimeout(time.Duration)
}

// DriverFactory constructs a fresh Driver for one connection attempt,
// the counterpart of Config.driver.new in spec.md §6.2.
type DriverFactory func(cfg *Config, connectTimeout, readTimeout, writeTimeout time.Duration) (Driver, error)

package redis

import "time"

// Batch is an ordered buffer of Commands with aggregate retryability and
// per-command timeout metadata (spec.md §3). Pipeline and Transaction are
// its two specializations.
type Batch struct {
	commands  []Command
	retryable bool
	timeouts  map[int]time.Duration
}

// newBatch returns an empty, retryable Batch.
func newBatch() *Batch {
	return &Batch{retryable: true}
}

// Pipeline is a bare Batch populated inside Client.Pipelined.
type Pipeline struct {
	batch *Batch
}

func newPipeline() *Pipeline {
	return &Pipeline{batch: newBatch()}
}

// Call appends a coerced Command to the pipeline. Retryability is left
// unchanged (true unless CallOnce was used; BlockingCall does not affect
// it).
func (p *Pipeline) Call(args ...any) error {
	cmd, err := CoerceCommand(args...)
	if err != nil {
		return err
	}
	p.batch.commands = append(p.batch.commands, cmd)
	return nil
}

// CallOnce appends a Command and marks the whole batch non-retryable:
// once any command was added through this path, the entire Pipeline may
// not be blindly replayed on reconnect (spec.md §3 Batch.retryable).
func (p *Pipeline) CallOnce(args ...any) error {
	if err := p.Call(args...); err != nil {
		return err
	}
	p.batch.retryable = false
	return nil
}

// BlockingCall appends a Command and records a per-index timeout
// override; it does not by itself affect retryability.
func (p *Pipeline) BlockingCall(timeout time.Duration, args ...any) error {
	if err := p.Call(args...); err != nil {
		return err
	}
	if p.batch.timeouts == nil {
		p.batch.timeouts = make(map[int]time.Duration)
	}
	p.batch.timeouts[len(p.batch.commands)-1] = timeout
	return nil
}

// Size returns the number of buffered commands.
func (p *Pipeline) Size() int { return len(p.batch.commands) }

// Empty reports whether no commands have been buffered.
func (p *Pipeline) Empty() bool { return p.Size() == 0 }

// Retryable reports the batch's current retryability.
func (p *Pipeline) Retryable() bool { return p.batch.retryable }

// Timeouts returns the sparse command-index-to-timeout mapping. The
// caller must not mutate the returned map.
func (p *Pipeline) Timeouts() map[int]time.Duration { return p.batch.timeouts }

// multiCmd and execCmd are the Transaction framing commands.
var (
	multiCmd = Command{args: [][]byte{[]byte("MULTI")}}
	execCmd  = Command{args: [][]byte{[]byte("EXEC")}}
)

// Transaction is a Pipeline pre-populated with MULTI and terminated with
// EXEC (spec.md §4.2). It is "empty" iff it holds only the framing pair.
type Transaction struct {
	Pipeline
	watch []string
}

func newTransaction(watch []string) *Transaction {
	t := &Transaction{Pipeline: Pipeline{batch: newBatch()}, watch: watch}
	t.batch.commands = append(t.batch.commands, multiCmd)
	// Optimistic-lock state can't be replayed safely on a fresh
	// connection: disable retry for the whole scope when WATCH is used
	// (spec.md §3 "A Transaction's retryability additionally depends on
	// whether an optimistic-lock key set (watch) was declared").
	if len(watch) > 0 {
		t.batch.retryable = false
	}
	return t
}

// finish appends the closing EXEC command. Call exactly once, after the
// user populate block returns.
func (t *Transaction) finish() {
	t.batch.commands = append(t.batch.commands, execCmd)
}

// Empty reports whether the transaction holds only the MULTI/EXEC
// framing pair — i.e. the user block appended nothing.
func (t *Transaction) Empty() bool { return len(t.batch.commands) <= 2 }

package redis

import (
	"fmt"
	"time"
)

// scriptedDriver is a Driver test double driven by a fixed script of
// response functions, one per expected call — the unit-test analog of
// the teacher's live-server fixtures in client_test.go, adapted so the
// suite runs without a real Redis node.
type scriptedDriver struct {
	calls     []func(cmd Command, timeout time.Duration) (Reply, error)
	pipelines []func(cmds []Command, timeouts map[int]time.Duration) ([]Reply, error)
	reads     []func(timeout time.Duration) (Reply, error)
	writes    []error

	callIdx, pipeIdx, readIdx, writeIdx int

	closed    bool
	connected bool
}

func newScriptedDriver() *scriptedDriver { return &scriptedDriver{connected: true} }

func (d *scriptedDriver) Call(cmd Command, timeout time.Duration) (Reply, error) {
	if d.callIdx >= len(d.calls) {
		return Reply{}, fmt.Errorf("scriptedDriver: unexpected Call #%d (%s)", d.callIdx, cmd.String())
	}
	fn := d.calls[d.callIdx]
	d.callIdx++
	return fn(cmd, timeout)
}

func (d *scriptedDriver) CallPipelined(cmds []Command, timeouts map[int]time.Duration) ([]Reply, error) {
	if d.pipeIdx >= len(d.pipelines) {
		return nil, fmt.Errorf("scriptedDriver: unexpected CallPipelined #%d", d.pipeIdx)
	}
	fn := d.pipelines[d.pipeIdx]
	d.pipeIdx++
	return fn(cmds, timeouts)
}

func (d *scriptedDriver) Write(cmd Command) error {
	if d.writeIdx >= len(d.writes) {
		return fmt.Errorf("scriptedDriver: unexpected Write #%d (%s)", d.writeIdx, cmd.String())
	}
	err := d.writes[d.writeIdx]
	d.writeIdx++
	return err
}

func (d *scriptedDriver) Read(timeout time.Duration) (Reply, error) {
	if d.readIdx >= len(d.reads) {
		return Reply{}, fmt.Errorf("scriptedDriver: unexpected Read #%d", d.readIdx)
	}
	fn := d.reads[d.readIdx]
	d.readIdx++
	return fn(timeout)
}

func (d *scriptedDriver) Close() error {
	d.closed = true
	d.connected = false
	return nil
}

func (d *scriptedDriver) Connected() bool { return d.connected }

func (d *scriptedDriver) SetReadTimeout(time.Duration)  {}
func (d *scriptedDriver) SetWriteTimeout(time.Duration) {}

// factoryFromDrivers returns a DriverFactory that hands out the given
// Drivers in order, one per Config.NewDriver call — modeling the
// sequence of connection attempts a retry loop makes.
func factoryFromDrivers(drivers ...Driver) DriverFactory {
	idx := 0
	return func(cfg *Config, connectTimeout, readTimeout, writeTimeout time.Duration) (Driver, error) {
		if idx >= len(drivers) {
			return nil, fmt.Errorf("factoryFromDrivers: no more scripted drivers (attempt %d)", idx)
		}
		d := drivers[idx]
		idx++
		return d, nil
	}
}

// stringArgs renders a Command's argument vector as strings for test
// assertions.
func stringArgs(cmd Command) []string {
	args := cmd.Args()
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = string(a)
	}
	return out
}

func bulkReply(s string) Reply { return Reply{Type: ReplyBulk, Bulk: []byte(s)} }

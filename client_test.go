package redis

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientCallSuccess(t *testing.T) {
	d := newScriptedDriver()
	d.calls = []func(Command, time.Duration) (Reply, error){
		func(cmd Command, timeout time.Duration) (Reply, error) {
			assert.Equal(t, []string{"GET", "key"}, stringArgs(cmd))
			return bulkReply("value"), nil
		},
	}

	client := NewFromConfig(NewConfig(WithDriverFactory(factoryFromDrivers(d))))
	defer client.Close()

	reply, err := client.Call("GET", "key")
	require.NoError(t, err)
	assert.Equal(t, "value", string(reply.Bulk))
}

func TestClientCallRetriesOnConnectionError(t *testing.T) {
	d1 := newScriptedDriver()
	d1.calls = []func(Command, time.Duration) (Reply, error){
		func(Command, time.Duration) (Reply, error) {
			return Reply{}, &ConnectionError{Err: errors.New("broken pipe")}
		},
	}
	d2 := newScriptedDriver()
	d2.calls = []func(Command, time.Duration) (Reply, error){
		func(Command, time.Duration) (Reply, error) {
			return Reply{Type: ReplyOK, OK: true}, nil
		},
	}

	cfg := NewConfig(
		WithDriverFactory(factoryFromDrivers(d1, d2)),
		WithRetryPolicy(func(tries int, err error) (bool, time.Duration) { return tries < 1, 0 }),
	)
	client := NewFromConfig(cfg)
	defer client.Close()

	reply, err := client.Call("SET", "k", "v")
	require.NoError(t, err)
	assert.True(t, reply.OK)
	assert.True(t, d1.closed)
}

func TestClientCallGivesUpWhenPolicyDeclines(t *testing.T) {
	d := newScriptedDriver()
	d.calls = []func(Command, time.Duration) (Reply, error){
		func(Command, time.Duration) (Reply, error) {
			return Reply{}, &ConnectionError{Err: errors.New("broken pipe")}
		},
	}

	cfg := NewConfig(
		WithDriverFactory(factoryFromDrivers(d)),
		WithRetryPolicy(func(tries int, err error) (bool, time.Duration) { return false, 0 }),
	)
	client := NewFromConfig(cfg)
	defer client.Close()

	_, err := client.Call("GET", "k")
	require.Error(t, err)
	var connErr *ConnectionError
	assert.True(t, errors.As(err, &connErr))
}

func TestClientCallOnceDoesNotRetry(t *testing.T) {
	d := newScriptedDriver()
	d.calls = []func(Command, time.Duration) (Reply, error){
		func(Command, time.Duration) (Reply, error) {
			return Reply{}, &ConnectionError{Err: errors.New("broken pipe")}
		},
	}

	client := NewFromConfig(NewConfig(WithDriverFactory(factoryFromDrivers(d))))
	defer client.Close()

	_, err := client.CallOnce("SET", "k", "v")
	require.Error(t, err)
	var connErr *ConnectionError
	assert.True(t, errors.As(err, &connErr))
}

func TestClientNonConnectionErrorPropagatesWithoutRetry(t *testing.T) {
	d := newScriptedDriver()
	d.calls = []func(Command, time.Duration) (Reply, error){
		func(Command, time.Duration) (Reply, error) {
			return Reply{Err: ParseCommandError("WRONGTYPE Operation against a key")}, nil
		},
	}

	client := NewFromConfig(NewConfig(WithDriverFactory(factoryFromDrivers(d))))
	defer client.Close()

	reply, err := client.Call("LPUSH", "k", "v")
	require.NoError(t, err) // the transport call itself succeeded
	require.Error(t, reply.Err)
	assert.Equal(t, 1, d.callIdx) // no reconnect attempt
}

func TestClientCloseIsIdempotentWithoutConnecting(t *testing.T) {
	client := NewFromConfig(NewConfig())
	assert.NoError(t, client.Close())
	assert.NoError(t, client.Close())
}

func TestClientPipelinedEmptyNeverTouchesWire(t *testing.T) {
	client := NewFromConfig(NewConfig())
	replies, err := client.Pipelined(func(p *Pipeline) error { return nil })
	require.NoError(t, err)
	assert.Empty(t, replies)
}

func TestClientPipelinedSendsBufferedCommands(t *testing.T) {
	d := newScriptedDriver()
	d.pipelines = []func([]Command, map[int]time.Duration) ([]Reply, error){
		func(cmds []Command, timeouts map[int]time.Duration) ([]Reply, error) {
			require.Len(t, cmds, 2)
			assert.Equal(t, "SET", cmds[0].String())
			assert.Equal(t, "GET", cmds[1].String())
			return []Reply{{Type: ReplyOK, OK: true}, bulkReply("v")}, nil
		},
	}

	client := NewFromConfig(NewConfig(WithDriverFactory(factoryFromDrivers(d))))
	defer client.Close()

	replies, err := client.Pipelined(func(p *Pipeline) error {
		if err := p.Call("SET", "k", "v"); err != nil {
			return err
		}
		return p.Call("GET", "k")
	})
	require.NoError(t, err)
	require.Len(t, replies, 2)
	assert.Equal(t, "v", string(replies[1].Bulk))
}

func TestClientMultiEmptyNeverTouchesWire(t *testing.T) {
	client := NewFromConfig(NewConfig())
	replies, err := client.Multi(nil, func(tx *Transaction) error { return nil })
	require.NoError(t, err)
	assert.Empty(t, replies)
}

func TestClientMultiWithWatchFramesWatchMultiExec(t *testing.T) {
	d := newScriptedDriver()
	d.pipelines = []func([]Command, map[int]time.Duration) ([]Reply, error){
		func(cmds []Command, timeouts map[int]time.Duration) ([]Reply, error) {
			require.Len(t, cmds, 4)
			assert.Equal(t, []string{"WATCH", "account"}, stringArgs(cmds[0]))
			assert.Equal(t, "MULTI", cmds[1].String())
			assert.Equal(t, "SET", cmds[2].String())
			assert.Equal(t, "EXEC", cmds[3].String())
			return []Reply{
				{Type: ReplyOK, OK: true},
				{Type: ReplyOK, OK: true},
				{Type: ReplyOK, OK: true},
				{Type: ReplyArray, Array: []Reply{{Type: ReplyOK, OK: true}}},
			}, nil
		},
	}

	client := NewFromConfig(NewConfig(WithDriverFactory(factoryFromDrivers(d))))
	defer client.Close()

	results, err := client.Multi([]string{"account"}, func(tx *Transaction) error {
		return tx.Call("SET", "account", "100")
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].OK)
}

func TestClientMultiWithWatchShiftsBlockingCallTimeout(t *testing.T) {
	d := newScriptedDriver()
	d.pipelines = []func([]Command, map[int]time.Duration) ([]Reply, error){
		func(cmds []Command, timeouts map[int]time.Duration) ([]Reply, error) {
			// cmds: [WATCH account, MULTI, BLPOP queue 0, EXEC]
			require.Len(t, cmds, 4)
			assert.Equal(t, "BLPOP", cmds[2].String())
			// the BlockingCall override was recorded at index 1 (after
			// MULTI) against the unshifted Transaction; WATCH pushes it to
			// index 2.
			require.Contains(t, timeouts, 2)
			assert.Equal(t, 5*time.Second, timeouts[2])
			assert.NotContains(t, timeouts, 0)
			assert.NotContains(t, timeouts, 1)
			return []Reply{
				{Type: ReplyOK, OK: true},
				{Type: ReplyOK, OK: true},
				{Type: ReplyOK, OK: true},
				{Type: ReplyArray, Array: []Reply{bulkReply("v")}},
			}, nil
		},
	}

	client := NewFromConfig(NewConfig(WithDriverFactory(factoryFromDrivers(d))))
	defer client.Close()

	results, err := client.Multi([]string{"account"}, func(tx *Transaction) error {
		return tx.BlockingCall(5*time.Second, "BLPOP", "queue", "0")
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "v", string(results[0].Bulk))
}

func TestClientMultiAbortsOnFirstCommandError(t *testing.T) {
	d := newScriptedDriver()
	d.pipelines = []func([]Command, map[int]time.Duration) ([]Reply, error){
		func(cmds []Command, timeouts map[int]time.Duration) ([]Reply, error) {
			require.Len(t, cmds, 3) // MULTI, LPUSH, EXEC
			return []Reply{
				{Type: ReplyOK, OK: true}, // MULTI
				{Type: ReplyOK, OK: true}, // LPUSH, queued
				{Type: ReplyArray, Array: []Reply{
					{Err: ParseCommandError("WRONGTYPE Operation against a key")},
				}}, // EXEC
			}, nil
		},
	}

	client := NewFromConfig(NewConfig(WithDriverFactory(factoryFromDrivers(d))))
	defer client.Close()

	_, err := client.Multi(nil, func(tx *Transaction) error {
		return tx.Call("LPUSH", "k", "v")
	})
	require.Error(t, err)
}

func TestClientMultiBlockErrorSkipsUnwatchWhenNotConnected(t *testing.T) {
	client := NewFromConfig(NewConfig())
	wantErr := errors.New("boom")

	_, err := client.Multi([]string{"k"}, func(tx *Transaction) error { return wantErr })
	assert.ErrorIs(t, err, wantErr)
}

func TestClientPubSubDropsOwnReference(t *testing.T) {
	d := newScriptedDriver()
	client := NewFromConfig(NewConfig(WithDriverFactory(factoryFromDrivers(d))))

	ps, err := client.PubSub()
	require.NoError(t, err)
	defer ps.Close()

	assert.False(t, client.Connected())
}

func TestClientSizeAndWith(t *testing.T) {
	client := NewFromConfig(NewConfig())
	assert.Equal(t, 1, client.Size())

	called := false
	client.With(func(c *Client) {
		called = true
		assert.Same(t, client, c)
	})
	assert.True(t, called)
}

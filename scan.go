package redis

import "errors"

// errScanReply reports a SCAN-family reply that did not have the
// expected two-element [cursor, items] shape.
var errScanReply = errors.New("redis: malformed scan reply")

// ListScanIterator walks a list-shaped SCAN family command (SCAN over the
// keyspace, SSCAN over a set): each page is a flat list of strings
// (spec.md §9 "two SCAN shapes"). It is restartable cursor state, not a
// live resource — Next may be called across any number of Client
// commands interleaved in between.
type ListScanIterator struct {
	client    *Client
	command   string
	key       string // empty for top-level SCAN
	extra     []any
	cursor    string
	buffer    []string
	exhausted bool
}

// NewScan iterates the full keyspace via SCAN. extra carries trailing
// options such as "MATCH", pattern, "COUNT", n.
func NewScan(client *Client, extra ...any) *ListScanIterator {
	return &ListScanIterator{client: client, command: "SCAN", cursor: "0", extra: extra}
}

// NewSScan iterates the members of a set via SSCAN.
func NewSScan(client *Client, key string, extra ...any) *ListScanIterator {
	return &ListScanIterator{client: client, command: "SSCAN", key: key, cursor: "0", extra: extra}
}

// Next returns the next item, or ok=false once the cursor has cycled
// back to "0" and the final page is drained.
func (it *ListScanIterator) Next() (item string, ok bool, err error) {
	for len(it.buffer) == 0 {
		if it.exhausted {
			return "", false, nil
		}
		if err := it.fetchPage(); err != nil {
			return "", false, err
		}
	}
	item = it.buffer[0]
	it.buffer = it.buffer[1:]
	return item, true, nil
}

// Restart resets the iterator to scan from cursor zero again, per
// spec.md §4.4's "restartable: each iteration begins a new scan from
// cursor zero".
func (it *ListScanIterator) Restart() {
	it.cursor, it.buffer, it.exhausted = "0", nil, false
}

func (it *ListScanIterator) fetchPage() error {
	args := scanArgs(it.command, it.key, it.cursor, it.extra)
	reply, err := it.client.Call(args...)
	if err != nil {
		return err
	}
	cursor, items, err := splitScanReply(reply)
	if err != nil {
		return err
	}
	it.cursor = cursor
	for _, e := range items {
		it.buffer = append(it.buffer, string(e.Bulk))
	}
	if cursor == "0" {
		it.exhausted = true
	}
	return nil
}

// ScanEach drives a ListScanIterator to completion, invoking fn for
// every key in the keyspace. It stops and returns fn's error as soon as
// fn returns one (spec.md §9's "consumer callback" form of SCAN).
func ScanEach(client *Client, fn func(key string) error, extra ...any) error {
	return driveListScan(NewScan(client, extra...), fn)
}

// SScanEach drives an SSCAN iterator to completion over a set's members.
func SScanEach(client *Client, key string, fn func(member string) error, extra ...any) error {
	return driveListScan(NewSScan(client, key, extra...), fn)
}

func driveListScan(it *ListScanIterator, fn func(string) error) error {
	for {
		item, ok, err := it.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := fn(item); err != nil {
			return err
		}
	}
}

// PairScanIterator walks a pair-shaped SCAN family command (HSCAN over a
// hash's field/value pairs, ZSCAN over a sorted set's member/score
// pairs): each page is a flat list interpreted two elements at a time.
type PairScanIterator struct {
	client    *Client
	command   string
	key       string
	extra     []any
	cursor    string
	buffer    [][2]string
	exhausted bool
}

// NewHScan iterates a hash's fields and values via HSCAN.
func NewHScan(client *Client, key string, extra ...any) *PairScanIterator {
	return &PairScanIterator{client: client, command: "HSCAN", key: key, cursor: "0", extra: extra}
}

// NewZScan iterates a sorted set's members and scores via ZSCAN.
func NewZScan(client *Client, key string, extra ...any) *PairScanIterator {
	return &PairScanIterator{client: client, command: "ZSCAN", key: key, cursor: "0", extra: extra}
}

// Next returns the next (first, second) pair — (field, value) for HSCAN,
// (member, score) for ZSCAN — or ok=false once exhausted.
func (it *PairScanIterator) Next() (first, second string, ok bool, err error) {
	for len(it.buffer) == 0 {
		if it.exhausted {
			return "", "", false, nil
		}
		if err := it.fetchPage(); err != nil {
			return "", "", false, err
		}
	}
	pair := it.buffer[0]
	it.buffer = it.buffer[1:]
	return pair[0], pair[1], true, nil
}

// Restart resets the iterator to scan from cursor zero again.
func (it *PairScanIterator) Restart() {
	it.cursor, it.buffer, it.exhausted = "0", nil, false
}

func (it *PairScanIterator) fetchPage() error {
	args := scanArgs(it.command, it.key, it.cursor, it.extra)
	reply, err := it.client.Call(args...)
	if err != nil {
		return err
	}
	cursor, items, err := splitScanReply(reply)
	if err != nil {
		return err
	}
	if len(items)%2 != 0 {
		return &Error{Op: "scan", Err: errScanReply}
	}
	it.cursor = cursor
	for i := 0; i < len(items); i += 2 {
		it.buffer = append(it.buffer, [2]string{string(items[i].Bulk), string(items[i+1].Bulk)})
	}
	if cursor == "0" {
		it.exhausted = true
	}
	return nil
}

// HScanEach drives an HSCAN iterator to completion over a hash.
func HScanEach(client *Client, key string, fn func(field, value string) error, extra ...any) error {
	return drivePairScan(NewHScan(client, key, extra...), fn)
}

// ZScanEach drives a ZSCAN iterator to completion over a sorted set.
func ZScanEach(client *Client, key string, fn func(member, score string) error, extra ...any) error {
	return drivePairScan(NewZScan(client, key, extra...), fn)
}

func drivePairScan(it *PairScanIterator, fn func(string, string) error) error {
	for {
		first, second, ok, err := it.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := fn(first, second); err != nil {
			return err
		}
	}
}

// scanArgs builds a SCAN-family command vector with the cursor at the
// fixed template position spec.md §9 calls out: index 1 for the
// keyless SCAN, index 2 once a key argument is present.
func scanArgs(command, key, cursor string, extra []any) []any {
	args := make([]any, 0, 3+len(extra))
	args = append(args, command)
	if key != "" {
		args = append(args, key)
	}
	args = append(args, cursor)
	args = append(args, extra...)
	return args
}

// splitScanReply validates and unpacks the standard two-element SCAN
// reply: [cursor bulk string, items array].
func splitScanReply(reply Reply) (cursor string, items []Reply, err error) {
	if reply.Type != ReplyArray || len(reply.Array) != 2 {
		return "", nil, &Error{Op: "scan", Err: errScanReply}
	}
	cursorReply := reply.Array[0]
	if cursorReply.Type != ReplyBulk {
		return "", nil, &Error{Op: "scan", Err: errScanReply}
	}
	itemsReply := reply.Array[1]
	if itemsReply.Type != ReplyArray {
		return "", nil, &Error{Op: "scan", Err: errScanReply}
	}
	return string(cursorReply.Bulk), itemsReply.Array, nil
}

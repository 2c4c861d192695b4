package redis

import (
	"bufio"
	"fmt"
	"strconv"
)

// DefaultCodec implements Codec with RESP-2, the wire protocol used by
// the teacher client (resp.go): CRLF-terminated lines, a leading type
// byte, and length-prefixed bulk strings/arrays.
type DefaultCodec struct{}

// CoerceCommand delegates to the package-level CoerceCommand.
func (DefaultCodec) CoerceCommand(args ...any) (Command, error) {
	return CoerceCommand(args...)
}

// encodeCommand renders a Command as a RESP-2 array of bulk strings.
func encodeCommand(cmd Command) []byte {
	args := cmd.Args()
	buf := make([]byte, 0, 32*len(args))
	buf = append(buf, '*')
	buf = strconv.AppendInt(buf, int64(len(args)), 10)
	buf = append(buf, '\r', '\n')
	for _, a := range args {
		buf = append(buf, '$')
		buf = strconv.AppendInt(buf, int64(len(a)), 10)
		buf = append(buf, '\r', '\n')
		buf = append(buf, a...)
		buf = append(buf, '\r', '\n')
	}
	return buf
}

// readCRLF reads one wire line, returning its type byte and payload
// (without the trailing CRLF). Grounded on the teacher's readCRLF in
// resp.go.
func readCRLF(r *bufio.Reader) (first byte, line []byte, err error) {
	line, err = r.ReadSlice('\n')
	if err != nil {
		if err == bufio.ErrBufferFull {
			err = fmt.Errorf("%w; line exceeds %d bytes", errProtocol, r.Size())
		}
		return 0, nil, err
	}
	end := len(line) - 2
	if end <= 0 || line[end] != '\r' {
		return 0, nil, fmt.Errorf("%w; malformed line %q", errProtocol, line)
	}
	return line[0], line[1:end], nil
}

// readBulk reads n bytes followed by CRLF, per the teacher's readNCRLF.
func readBulk(r *bufio.Reader, n int64) ([]byte, error) {
	buf := make([]byte, n)
	if n > 0 {
		done, err := r.Read(buf)
		for done < len(buf) && err == nil {
			var more int
			more, err = r.Read(buf[done:])
			done += more
		}
		if err != nil {
			return nil, err
		}
	}
	if _, err := r.Discard(2); err != nil {
		return nil, err
	}
	return buf, nil
}

// decodeReply parses exactly one RESP-2 value, generalizing the
// teacher's okParser/intParser/bulkParser/arrayParser family into a
// single tagged Reply.
func decodeReply(r *bufio.Reader) (Reply, error) {
	first, line, err := readCRLF(r)
	if err != nil {
		return Reply{}, err
	}

	switch first {
	case '+':
		if string(line) == "OK" {
			return Reply{Type: ReplyOK, OK: true}, nil
		}
		return Reply{Type: ReplyBulk, Bulk: append([]byte(nil), line...)}, nil

	case '-':
		return Reply{Err: ParseCommandError(string(line))}, nil

	case ':':
		return Reply{Type: ReplyInt, Int: ParseInt(line)}, nil

	case '$':
		size := ParseInt(line)
		if size < 0 {
			return Reply{Type: ReplyBulk, Bulk: nil}, nil
		}
		bulk, err := readBulk(r, size)
		if err != nil {
			return Reply{}, err
		}
		return Reply{Type: ReplyBulk, Bulk: bulk}, nil

	case '*':
		size := ParseInt(line)
		if size < 0 {
			return Reply{Type: ReplyArray, Array: nil}, nil
		}
		array := make([]Reply, size)
		for i := range array {
			elem, err := decodeReply(r)
			if err != nil {
				return Reply{}, err
			}
			array[i] = elem
		}
		return Reply{Type: ReplyArray, Array: array}, nil

	default:
		return Reply{}, fmt.Errorf("%w; unexpected first byte %q", errProtocol, first)
	}
}

// ParseInt assumes a valid decimal string — no validation. The empty
// string returns zero. Kept as a direct port of the teacher's ParseInt:
// the hot decode path can't afford strconv.ParseInt's error allocation.
func ParseInt(bytes []byte) int64 {
	if len(bytes) == 0 {
		return 0
	}
	u := uint64(bytes[0])

	neg := false
	if u == '-' {
		neg = true
		u = 0
	} else {
		u -= '0'
	}

	for i := 1; i < len(bytes); i++ {
		u = u*10 + uint64(bytes[i]-'0')
	}

	value := int64(u)
	if neg {
		value = -value
	}
	return value
}

package redis

import (
	"fmt"
	"strconv"
)

// Command is a validated argument vector sent atomically on the wire. It
// is immutable after CoerceCommand constructs it (spec.md §3).
type Command struct {
	args [][]byte
}

// Args returns the command's argument tokens. The caller must not mutate
// the returned slices.
func (c Command) Args() [][]byte { return c.args }

// String returns the first argument (conventionally the command name),
// or the empty string for a zero-value Command.
func (c Command) String() string {
	if len(c.args) == 0 {
		return ""
	}
	return string(c.args[0])
}

// CoerceCommand validates and flattens args into a Command, rejecting an
// empty result. It is the Codec-independent core of coercion; the
// RESP Codec (resp_codec.go) delegates to it.
func CoerceCommand(args ...any) (Command, error) {
	flat, err := flattenArgs(args)
	if err != nil {
		return Command{}, err
	}
	if len(flat) == 0 {
		return Command{}, ErrEmptyCommand
	}
	return Command{args: flat}, nil
}

// Codec is the external collaborator that coerces user-supplied argument
// sequences into Commands and serializes/deserializes the wire protocol
// (spec.md §6.3). The core only depends on CoerceCommand directly; wire
// framing is reached through a Driver.
type Codec interface {
	// CoerceCommand validates and flattens an argument vector into a
	// Command. It rejects an empty vector with ErrEmptyCommand.
	CoerceCommand(args ...any) (Command, error)
}

// flattenArgs expands nested slices (the "argument groups" of spec.md
// §3) into a single sequence of byte-slice tokens. string, []byte, int,
// int64, and []any/[]string/[][]byte groups are handled directly; any
// other value is rendered with fmt.Sprint.
func flattenArgs(args []any) ([][]byte, error) {
	out := make([][]byte, 0, len(args))
	var flatten func(a any) error
	flatten = func(a any) error {
		switch v := a.(type) {
		case string:
			out = append(out, []byte(v))
		case []byte:
			out = append(out, v)
		case int:
			out = append(out, []byte(strconv.Itoa(v)))
		case int64:
			out = append(out, []byte(strconv.FormatInt(v, 10)))
		case []string:
			for _, s := range v {
				out = append(out, []byte(s))
			}
		case [][]byte:
			out = append(out, v...)
		case []any:
			for _, e := range v {
				if err := flatten(e); err != nil {
					return err
				}
			}
		default:
			out = append(out, []byte(formatArg(v)))
		}
		return nil
	}

	for _, a := range args {
		if err := flatten(a); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func formatArg(v any) string {
	return fmt.Sprint(v)
}

package redis

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerceCommandFlattensNestedGroups(t *testing.T) {
	cmd, err := CoerceCommand("MSET", []string{"k1", "v1", "k2", "v2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"MSET", "k1", "v1", "k2", "v2"}, stringArgs(cmd))
}

func TestCoerceCommandFlattensAnyGroup(t *testing.T) {
	cmd, err := CoerceCommand("DEL", []any{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []string{"DEL", "a", "b", "c"}, stringArgs(cmd))
}

func TestCoerceCommandRejectsEmpty(t *testing.T) {
	_, err := CoerceCommand()
	assert.True(t, errors.Is(err, ErrEmptyCommand))
}

func TestCoerceCommandCoercesIntegers(t *testing.T) {
	cmd, err := CoerceCommand("EXPIRE", "key", 30, int64(7))
	require.NoError(t, err)
	assert.Equal(t, []string{"EXPIRE", "key", "30", "7"}, stringArgs(cmd))
}

func TestCoerceCommandFallsBackToFmtSprint(t *testing.T) {
	cmd, err := CoerceCommand("SET", "key", 3.5)
	require.NoError(t, err)
	assert.Equal(t, "3.5", stringArgs(cmd)[2])
}

func TestCommandString(t *testing.T) {
	cmd, err := CoerceCommand("GET", "key")
	require.NoError(t, err)
	assert.Equal(t, "GET", cmd.String())
	assert.Equal(t, "", Command{}.String())
}

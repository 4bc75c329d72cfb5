package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidCommand(t *testing.T) {
	for _, cmd := range []string{"up", "up-to", "down", "status", "version", "graph"} {
		assert.True(t, validCommand(cmd), cmd)
	}
	for _, cmd := range []string{"", "UP", "redo", "reset"} {
		assert.False(t, validCommand(cmd), cmd)
	}
}

func TestParseArgs(t *testing.T) {
	command, target, err := parseArgs([]string{"up"})
	require.NoError(t, err)
	assert.Equal(t, "up", command)
	assert.Zero(t, target)

	command, target, err = parseArgs([]string{"up-to", "3"})
	require.NoError(t, err)
	assert.Equal(t, "up-to", command)
	assert.Equal(t, int64(3), target)

	invalid := [][]string{
		nil,
		{"redo"},
		{"up", "3"},
		{"up-to"},
		{"up-to", "three"},
		{"up-to", "0"},
	}
	for _, args := range invalid {
		_, _, err := parseArgs(args)
		assert.Error(t, err, "%v", args)
	}
}

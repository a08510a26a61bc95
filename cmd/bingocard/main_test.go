package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var cli CLI
	var out bytes.Buffer
	parser, err := newParser(&cli, &out)
	require.NoError(t, err)
	ctx, err := parser.Parse(args)
	if err != nil {
		return "", err
	}
	err = ctx.Run()
	return out.String(), err
}

func TestShow(t *testing.T) {
	out, err := runCLI(t, "show", "--seed", "abc", "-n", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "card 0 (abc_0)\n 4 20 32 47 72\n")
	assert.Contains(t, out, " 5 28 FR 53 67\n")
	assert.Contains(t, out, "card 1 (abc_1)")
}

func TestCheck(t *testing.T) {
	out, err := runCLI(t, "check", "--seed", "abc", "--called", "4,20,32,47,72")
	require.NoError(t, err)
	assert.Contains(t, out, "lines: 1\n")
	assert.Contains(t, out, "single_line: BINGO")

	out, err = runCLI(t, "check", "--seed", "abc", "-g", "four_corners", "--called", "4,72,3")
	require.NoError(t, err)
	assert.Contains(t, out, "four_corners: no bingo")

	out, err = runCLI(t, "check", "--seed", "abc", "-g", "four_corners", "--called", "4,72,3,66")
	require.NoError(t, err)
	assert.Contains(t, out, "four_corners: BINGO")
}

func TestCheckRejectsBadInput(t *testing.T) {
	_, err := runCLI(t, "check", "--seed", "abc", "--called", "0")
	assert.ErrorContains(t, err, "out of range")

	_, err = runCLI(t, "check", "--seed", "abc", "-g", "pachinko")
	assert.Error(t, err)

	_, err = runCLI(t, "show")
	assert.Error(t, err)
}

package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunHashPassword(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), []string{"listform", "--log-level", "error", "hash-password", "pw"}, &out)
	require.NoError(t, err)

	hash := strings.TrimSpace(out.String())
	require.NotEmpty(t, hash)
	assert.NoError(t, checkPassword("pw", hash))
	assert.Error(t, checkPassword("other", hash))
}

func TestRunHashPasswordArguments(t *testing.T) {
	var out bytes.Buffer

	err := run(context.Background(), []string{"listform", "--log-level", "error", "hash-password"}, &out)
	assert.Error(t, err)

	err = run(context.Background(), []string{"listform", "--log-level", "error", "hash-password", "a", "b"}, &out)
	assert.Error(t, err)

	assert.Empty(t, out.String())
}

func TestRunInvalidLogFormat(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), []string{"listform", "--log-format", "xml", "hash-password", "pw"}, &out)
	assert.Error(t, err)
	assert.Empty(t, out.String())
}

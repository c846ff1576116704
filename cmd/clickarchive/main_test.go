package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDay(t *testing.T) {
	now := time.Date(2026, 3, 2, 1, 0, 0, 0, time.UTC)

	d, err := parseDay("", now)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01", d.Format("2006-01-02"))

	d, err = parseDay("2026-02-14", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC), d)

	_, err = parseDay("14.02.2026", now)
	assert.Error(t, err)
}

func TestRootCommandFlags(t *testing.T) {
	cmd := newRootCommand()
	for _, name := range []string{"day", "no-rotate", "keep"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
}

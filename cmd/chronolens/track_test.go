package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRulesRefresh(t *testing.T) {
	assert.Equal(t, defaultRulesRefresh, normalizeRulesRefresh(0))
	assert.Equal(t, defaultRulesRefresh, normalizeRulesRefresh(-time.Minute))
	assert.Equal(t, 30*time.Second, normalizeRulesRefresh(30*time.Second))
}

func TestTrackCmd(t *testing.T) {
	cmd := trackCmd()

	flag := cmd.Flag("rules-refresh")
	require.NotNil(t, flag)
	assert.Equal(t, "5m0s", flag.DefValue)
}

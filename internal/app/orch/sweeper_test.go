package orch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeper(t *testing.T) {
	o := newOrch(t)
	startCall(t, o, "")

	_, err := NewSweeper(o, "not a schedule", time.Minute)
	assert.Error(t, err)

	s, err := NewSweeper(o, "@every 1h", time.Hour)
	require.NoError(t, err)
	s.Start()
	defer s.Stop()

	s.Sweep()
	assert.Equal(t, 1, o.Sessions.Count())

	s.idle = -time.Second
	s.Sweep()
	assert.Zero(t, o.Sessions.Count())
}

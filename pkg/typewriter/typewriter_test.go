package typewriter

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu    sync.Mutex
	parts []string
}

func (c *collector) emit(s string) {
	c.mu.Lock()
	c.parts = append(c.parts, s)
	c.mu.Unlock()
}

func (c *collector) text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.Join(c.parts, "")
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.parts)
}

func TestRunEmitsEveryRune(t *testing.T) {
	c := &collector{}
	tw := New(time.Millisecond, c.emit)

	require.NoError(t, tw.Run(context.Background(), "héllo, 世界"))
	assert.Equal(t, "héllo, 世界", c.text())
	assert.Equal(t, 9, c.count())
}

func TestRunToWriter(t *testing.T) {
	var buf bytes.Buffer
	tw := &Typewriter{Delay: time.Millisecond, Writer: &buf}

	require.NoError(t, tw.Run(context.Background(), "abc"))
	assert.Equal(t, "abc", buf.String())
}

func TestRunEmptyText(t *testing.T) {
	c := &collector{}
	require.NoError(t, New(time.Millisecond, c.emit).Run(context.Background(), ""))
	assert.Zero(t, c.count())
}

func TestPauseHoldsOutput(t *testing.T) {
	c := &collector{}
	tw := New(time.Millisecond, c.emit)
	tw.Pause()
	assert.True(t, tw.Paused())

	done := make(chan error, 1)
	go func() { done <- tw.Run(context.Background(), "paused text") }()

	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, c.count())

	tw.Resume()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("typewriter did not finish after resume")
	}
	assert.Equal(t, "paused text", c.text())
}

func TestToggle(t *testing.T) {
	tw := New(0, nil)
	assert.True(t, tw.Toggle())
	assert.False(t, tw.Toggle())
	assert.False(t, tw.Paused())
}

func TestRunStopsOnCancel(t *testing.T) {
	c := &collector{}
	tw := New(time.Hour, c.emit)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := tw.Run(ctx, "slow")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "s", c.text())
}

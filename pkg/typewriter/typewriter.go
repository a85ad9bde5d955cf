// Package typewriter reveals text one character at a time.
package typewriter

import (
	"context"
	"io"
	"sync"
	"time"
)

// DefaultDelay is the pause between two revealed characters.
const DefaultDelay = 50 * time.Millisecond

// Typewriter emits text rune by rune at a fixed delay. While paused the
// timer keeps firing but nothing is emitted, so Resume picks up on the next
// tick.
type Typewriter struct {
	Delay time.Duration
	// Emit receives each revealed rune. When nil, runes go to Writer.
	Emit   func(string)
	Writer io.Writer

	mu     sync.Mutex
	paused bool
}

func New(delay time.Duration, emit func(string)) *Typewriter {
	return &Typewriter{Delay: delay, Emit: emit}
}

func (t *Typewriter) Pause() {
	t.mu.Lock()
	t.paused = true
	t.mu.Unlock()
}

func (t *Typewriter) Resume() {
	t.mu.Lock()
	t.paused = false
	t.mu.Unlock()
}

// Toggle flips the pause state and reports whether it is now paused.
func (t *Typewriter) Toggle() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.paused = !t.paused
	return t.paused
}

func (t *Typewriter) Paused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.paused
}

// Run reveals text and returns once every rune has been emitted, or with the
// context's error if it ends first. The first rune is emitted immediately.
func (t *Typewriter) Run(ctx context.Context, text string) error {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	delay := t.Delay
	if delay <= 0 {
		delay = DefaultDelay
	}
	ticker := time.NewTicker(delay)
	defer ticker.Stop()

	for i := 0; ; {
		if !t.Paused() {
			if err := t.emit(string(runes[i])); err != nil {
				return err
			}
			i++
			if i == len(runes) {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (t *Typewriter) emit(s string) error {
	if t.Emit != nil {
		t.Emit(s)
		return nil
	}
	if t.Writer != nil {
		_, err := io.WriteString(t.Writer, s)
		return err
	}
	return nil
}

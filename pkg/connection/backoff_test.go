package connection

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBackoff(t *testing.T) {
	t.Run("DefaultSequence", func(t *testing.T) {
		b := NewBackoff()

		expected := []time.Duration{
			1 * time.Second,
			2 * time.Second,
			4 * time.Second,
			8 * time.Second,
			16 * time.Second,
			32 * time.Second,
			60 * time.Second,
			60 * time.Second, // stays at max
		}

		for i, exp := range expected {
			base := b.Current()
			_ = b.Next()
			if base != exp {
				t.Errorf("Attempt %d: base = %v, want %v", i, base, exp)
			}
		}
	})

	t.Run("Jitter", func(t *testing.T) {
		samples := make([]time.Duration, 20)
		for i := range samples {
			samples[i] = NewBackoff().Next()
		}

		upper := time.Duration(float64(time.Second) * (1 + JitterFactor))
		for i, s := range samples {
			if s < time.Second || s > upper {
				t.Errorf("Sample %d: %v out of range [1s, %v]", i, s, upper)
			}
		}
	})

	t.Run("NoJitter", func(t *testing.T) {
		b := NewBackoffWithConfig(BackoffConfig{Initial: 10 * time.Millisecond, Jitter: -1})
		if d := b.Next(); d != 10*time.Millisecond {
			t.Errorf("Next = %v, want 10ms", d)
		}
		if d := b.Next(); d != 20*time.Millisecond {
			t.Errorf("Next = %v, want 20ms", d)
		}
	})

	t.Run("Reset", func(t *testing.T) {
		b := NewBackoff()
		for i := 0; i < 5; i++ {
			b.Next()
		}
		if b.Attempts() != 5 {
			t.Errorf("Attempts = %d, want 5", b.Attempts())
		}

		b.Reset()
		if b.Current() != InitialBackoff {
			t.Errorf("Current after reset = %v, want %v", b.Current(), InitialBackoff)
		}
		if b.Attempts() != 0 {
			t.Errorf("Attempts after reset = %d, want 0", b.Attempts())
		}
	})

	t.Run("ConfigDefaults", func(t *testing.T) {
		b := NewBackoffWithConfig(BackoffConfig{Max: time.Millisecond, Multiplier: 0.5})
		if b.Current() != InitialBackoff {
			t.Errorf("Current = %v, want %v", b.Current(), InitialBackoff)
		}
		b.Next()
		if b.Current() != InitialBackoff {
			t.Errorf("Max below Initial should clamp to Initial, got %v", b.Current())
		}
	})

	t.Run("WaitCancelled", func(t *testing.T) {
		b := NewBackoff()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		start := time.Now()
		if err := b.Wait(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("Wait = %v, want context.Canceled", err)
		}
		if time.Since(start) > 500*time.Millisecond {
			t.Error("Wait did not return promptly")
		}
	})

	t.Run("WaitElapses", func(t *testing.T) {
		b := NewBackoffWithConfig(BackoffConfig{Initial: time.Millisecond, Jitter: -1})
		if err := b.Wait(context.Background()); err != nil {
			t.Errorf("Wait = %v", err)
		}
		if b.Attempts() != 1 {
			t.Errorf("Attempts = %d, want 1", b.Attempts())
		}
	})
}

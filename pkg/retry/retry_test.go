package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, BaseDelay: time.Microsecond, MaxDelay: 10 * time.Microsecond}
}

func TestPolicy_Delay(t *testing.T) {
	p := DefaultPolicy()

	expected := []time.Duration{
		time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		16 * time.Second,
		16 * time.Second,
	}
	for i, want := range expected {
		assert.Equal(t, want, p.Delay(i+1), "attempt %d", i+1)
	}

	assert.Zero(t, p.Delay(0))
	assert.Equal(t, 16*time.Second, p.Delay(60))
}

func TestPolicy_DelayJitter(t *testing.T) {
	p := Policy{BaseDelay: time.Second, MaxDelay: 16 * time.Second, Jitter: 0.5}
	for range 20 {
		d := p.Delay(2)
		assert.GreaterOrEqual(t, d, 2*time.Second)
		assert.LessOrEqual(t, d, 3*time.Second)
	}
}

func TestDo(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		var retried []int
		v, err := Do(ctx, fastPolicy(5), func(ctx context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", boom
			}
			return "ok", nil
		}, WithOnRetry(func(attempt int, err error, _ time.Duration) {
			retried = append(retried, attempt)
			assert.ErrorIs(t, err, boom)
		}))

		require.NoError(t, err)
		assert.Equal(t, "ok", v)
		assert.Equal(t, 3, calls)
		assert.Equal(t, []int{1, 2}, retried)
	})

	t.Run("exhaustion wraps last error", func(t *testing.T) {
		calls := 0
		_, err := Do(ctx, fastPolicy(4), func(ctx context.Context) (int, error) {
			calls++
			return 0, boom
		})

		assert.ErrorIs(t, err, ErrExhausted)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 4, calls)
	})

	t.Run("permanent error stops immediately", func(t *testing.T) {
		calls := 0
		_, err := Do(ctx, fastPolicy(4), func(ctx context.Context) (int, error) {
			calls++
			return 0, Permanent(boom)
		})

		assert.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, ErrExhausted)
		assert.Equal(t, 1, calls)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		calls := 0
		_, err := Do(cctx, Policy{MaxAttempts: 10, BaseDelay: time.Hour}, func(ctx context.Context) (int, error) {
			calls++
			cancel()
			return 0, boom
		})

		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})

	t.Run("zero attempts still calls once", func(t *testing.T) {
		calls := 0
		_, err := Do(ctx, Policy{}, func(ctx context.Context) (int, error) {
			calls++
			return 0, boom
		})
		assert.ErrorIs(t, err, ErrExhausted)
		assert.Equal(t, 1, calls)
	})
}

func TestPermanentNil(t *testing.T) {
	assert.NoError(t, Permanent(nil))
}

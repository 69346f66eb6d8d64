package allocation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_TryAccept(t *testing.T) {
	r := NewRateLimiter(50 * time.Millisecond)
	t0 := time.Unix(0, 0)

	_, ok := r.LastAccepted()
	assert.False(t, ok)
	assert.True(t, r.TryAccept(t0), "first request is accepted")
	assert.False(t, r.TryAccept(t0.Add(10*time.Millisecond)))
	assert.False(t, r.TryAccept(t0.Add(49*time.Millisecond)))
	assert.True(t, r.TryAccept(t0.Add(50*time.Millisecond)), "boundary is accepted")

	last, ok := r.LastAccepted()
	assert.True(t, ok)
	assert.Equal(t, t0.Add(50*time.Millisecond), last)
}

func TestRateLimiter_RejectedDoNotExtendWindow(t *testing.T) {
	r := NewRateLimiter(50 * time.Millisecond)
	t0 := time.Unix(0, 0)
	r.TryAccept(t0)
	for i := 1; i < 5; i++ {
		r.TryAccept(t0.Add(time.Duration(i*10) * time.Millisecond))
	}
	assert.True(t, r.TryAccept(t0.Add(50*time.Millisecond)))
}

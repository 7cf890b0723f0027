package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiterAllowsUpToLimitThenDenies(t *testing.T) {
	l := New(3, time.Minute)
	for i := 0; i < 3; i++ {
		res := l.Allow()
		assert.True(t, res.Allowed)
	}
	res := l.Allow()
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
}

func TestLimiterResetsOnWindowRollover(t *testing.T) {
	current := time.Unix(0, 0)
	l := New(1, time.Second)
	l.now = func() time.Time { return current }

	assert.True(t, l.Allow().Allowed)
	assert.False(t, l.Allow().Allowed)

	current = current.Add(2 * time.Second)
	assert.True(t, l.Allow().Allowed, "a new window must grant a fresh budget")
}

func TestLimiterClampsNonPositiveLimit(t *testing.T) {
	l := New(0, time.Minute)
	assert.Equal(t, 1, l.limit)
}

func TestLimiterIsSafeForConcurrentUse(t *testing.T) {
	l := New(100, time.Minute)
	var wg sync.WaitGroup
	allowed := make(chan bool, 200)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed <- l.Allow().Allowed
		}()
	}
	wg.Wait()
	close(allowed)

	count := 0
	for a := range allowed {
		if a {
			count++
		}
	}
	assert.Equal(t, 100, count)
}

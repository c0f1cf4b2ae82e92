package ack

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRunsContinuationOnce(t *testing.T) {
	r := NewRegistry(0)
	calls := 0
	r.Register("m1", func() { calls++ })

	assert.True(t, r.Resolve("m1"))
	assert.False(t, r.Resolve("m1"))
	assert.Equal(t, 1, calls)
	assert.Zero(t, r.Len())
}

func TestResolveUnknownID(t *testing.T) {
	r := NewRegistry(0)
	assert.False(t, r.Resolve("never-registered"))
}

func TestReRegisterOverwrites(t *testing.T) {
	r := NewRegistry(0)
	got := ""
	r.Register("m1", func() { got = "first" })
	r.Register("m1", func() { got = "second" })

	require.True(t, r.Resolve("m1"))
	assert.Equal(t, "second", got)
	assert.Equal(t, 0, r.Len())
}

func TestCancel(t *testing.T) {
	r := NewRegistry(0)
	r.Register("m1", func() { t.Fatal("cancelled continuation ran") })
	r.Cancel("m1")
	assert.False(t, r.Resolve("m1"))
}

func TestSweepEvictsExpired(t *testing.T) {
	r := NewRegistry(time.Minute)
	t0 := time.Unix(1700000000, 0)
	r.now = func() time.Time { return t0 }

	r.Register("old", func() {})
	r.RegisterTTL("fresh", func() {}, time.Hour)

	r.now = func() time.Time { return t0.Add(2 * time.Minute) }
	assert.Equal(t, 1, r.Sweep())
	assert.Equal(t, 1, r.Len())
	assert.False(t, r.Resolve("old"))
	assert.True(t, r.Resolve("fresh"))
}

func TestNonPositiveTTLIsBornExpired(t *testing.T) {
	r := NewRegistry(time.Minute)
	r.RegisterTTL("stale", func() { t.Fatal("born-expired continuation ran") }, -time.Second)

	assert.False(t, r.Resolve("stale"))
	r.RegisterTTL("stale", func() {}, -time.Second)
	assert.Equal(t, 1, r.Sweep())
	assert.Zero(t, r.Len())
}

func TestExpiredEntryDoesNotRun(t *testing.T) {
	r := NewRegistry(time.Minute)
	t0 := time.Unix(1700000000, 0)
	r.now = func() time.Time { return t0 }
	r.Register("m1", func() { t.Fatal("expired continuation ran") })

	r.now = func() time.Time { return t0.Add(2 * time.Minute) }
	assert.False(t, r.Resolve("m1"))
}

func TestConcurrentResolveSingleInvocation(t *testing.T) {
	r := NewRegistry(0)
	var mu sync.Mutex
	calls := 0
	r.Register("m1", func() {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	hits := make(chan bool, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hits <- r.Resolve("m1")
		}()
	}
	wg.Wait()
	close(hits)

	winners := 0
	for ok := range hits {
		if ok {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, 1, calls)
}

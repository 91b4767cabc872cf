package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stamped struct {
	LogicalTime time.Time
	Value       string
}

func TestPut_ArrivalOrderWins(t *testing.T) {
	t.Parallel()

	c := New(clockwork.NewFakeClock())
	newer := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	older := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	// v1 carries the newer logical timestamp but arrives first.
	c.Put("trades", stamped{LogicalTime: newer, Value: "v1"})
	c.Put("trades", stamped{LogicalTime: older, Value: "v2"})

	got, ok := c.Get("trades")
	require.True(t, ok)
	assert.Equal(t, "v2", got.Value.(stamped).Value)
}

func TestPut_AnyWriterOverwrites(t *testing.T) {
	t.Parallel()

	c := New(nil)
	first := c.Put("market", "from trading view")
	second := c.Put("market", "from research view")

	got, ok := c.Get("market")
	require.True(t, ok)
	assert.Equal(t, "from research view", got.Value)
	assert.Greater(t, second.Seq, first.Seq)
	assert.Equal(t, 1, c.Len())
}

func TestGet_Absent(t *testing.T) {
	t.Parallel()

	c := New(nil)
	_, ok := c.Get("missing")
	assert.False(t, ok)
}

func TestPut_RecordsWriteTime(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC))
	c := New(clock)

	c.Put("k", 1)
	clock.Advance(5 * time.Second)
	c.Put("k", 2)

	got, _ := c.Get("k")
	assert.Equal(t, clock.Now(), got.WrittenAt)
}

func TestSnapshot_SortedCopy(t *testing.T) {
	t.Parallel()

	c := New(nil)
	c.Put("b", 2)
	c.Put("a", 1)
	c.Put("c", 3)

	snap := c.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{snap[0].Key, snap[1].Key, snap[2].Key})
	assert.Equal(t, []string{"a", "b", "c"}, c.Keys())

	c.Put("a", 100)
	assert.Equal(t, 1, snap[0].Value, "snapshot must not alias live entries")
}

func TestDelete(t *testing.T) {
	t.Parallel()

	c := New(nil)
	c.Put("k", 1)
	assert.True(t, c.Delete("k"))
	assert.False(t, c.Delete("k"))
	assert.Equal(t, 0, c.Len())
}

func TestConcurrentReaders(t *testing.T) {
	t.Parallel()

	c := New(nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Get("k")
				c.Snapshot()
			}
		}()
	}
	for j := 0; j < 100; j++ {
		c.Put("k", j)
	}
	wg.Wait()

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, 99, got.Value)
}

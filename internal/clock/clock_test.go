package clock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLamport_Tick(t *testing.T) {
	c := New(0)

	assert.Equal(t, int64(1), c.Tick())
	assert.Equal(t, int64(2), c.Tick())
	assert.Equal(t, int64(2), c.Now())
}

func TestLamport_Restore(t *testing.T) {
	c := New(41)

	assert.Equal(t, int64(41), c.Now())
	assert.Equal(t, int64(42), c.Tick())
}

func TestLamport_Observe(t *testing.T) {
	tests := []struct {
		name   string
		start  int64
		remote int64
		want   int64
	}{
		{name: "remote ahead", start: 5, remote: 100, want: 101},
		{name: "remote behind", start: 50, remote: 10, want: 51},
		{name: "equal", start: 7, remote: 7, want: 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tt.start)
			assert.Equal(t, tt.want, c.Observe(tt.remote))
		})
	}
}

func TestLamport_ConcurrentTick(t *testing.T) {
	c := New(0)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Tick()
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(100), c.Now())
}

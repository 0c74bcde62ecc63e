package pipeline

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestThrottle(t *testing.T) {
	th := newThrottle(100 * time.Millisecond)
	assert.True(t, th.allow(5*time.Second), "first frame always passes")
	th.mark(5 * time.Second)

	assert.False(t, th.allow(5*time.Second+99*time.Millisecond))
	assert.True(t, th.allow(5*time.Second+100*time.Millisecond))
	assert.True(t, th.allow(time.Second), "clock restart")

	th.reset(time.Second)
	assert.True(t, th.allow(5*time.Second+time.Millisecond))
}

func TestThrottle_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("admitted frames of a monotonic clock are at least one interval apart", prop.ForAll(
		func(gaps []int, fps int) bool {
			interval := time.Duration(float64(time.Second) / float64(fps))
			th := newThrottle(interval)
			var ts, last time.Duration
			admitted := 0
			for _, g := range gaps {
				ts += time.Duration(g) * time.Millisecond
				if !th.allow(ts) {
					continue
				}
				if admitted > 0 && ts-last < interval {
					return false
				}
				th.mark(ts)
				last = ts
				admitted++
			}
			return len(gaps) == 0 || admitted > 0
		},
		gen.SliceOf(gen.IntRange(0, 400)),
		gen.IntRange(1, 60),
	))

	properties.TestingRun(t)
}

package measure_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/gdcpq/pkg/pipeline/measure"
)

func TestAddMetric(t *testing.T) {
	t.Parallel()

	m := measure.NewDefaultMeasure()
	first := m.AddMetric("fetch", 4)
	assert.Same(t, first, m.AddMetric("fetch", 1))
	m.AddMetric("verify", 0)

	assert.Equal(t, []string{"fetch", "verify"}, m.Names())
	assert.Len(t, m.AllMetrics(), 2)
	assert.Nil(t, m.GetMetric("missing"))
}

func TestMetricDurations(t *testing.T) {
	t.Parallel()

	mt := measure.NewDefaultMeasure().AddMetric("fetch", 2)
	assert.Zero(t, mt.AVGDuration())

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mt.AddDuration(10 * time.Millisecond)
			mt.AddTransportDuration("verify", 4*time.Millisecond)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(10), mt.Count())
	assert.Equal(t, 10*time.Millisecond, mt.AVGDuration())

	transports := mt.AVGTransportDuration()
	require.Contains(t, transports, "verify")
	// averaged then divided by the concurrency
	assert.Equal(t, 2*time.Millisecond, transports["verify"].Elapsed)

	// reading the averages twice gives the same result
	assert.Equal(t, 2*time.Millisecond, mt.AVGTransportDuration()["verify"].Elapsed)

	mt.SetTotalDuration(time.Second)
	assert.Equal(t, time.Second, mt.GetTotalDuration())
}

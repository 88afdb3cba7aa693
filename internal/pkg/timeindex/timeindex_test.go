package timeindex

import (
	"testing"
	"time"

	"gotest.tools/v3/assert"
)

func hours(start time.Time, n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.Add(time.Duration(i) * time.Hour)
	}
	return out
}

func TestFromIndex(t *testing.T) {
	start := time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC)
	h, err := FromIndex(hours(start, 24))
	assert.NilError(t, err)
	assert.Equal(t, h.Len(), 24)
	assert.Equal(t, h.Start(), start)
	assert.Equal(t, h.At(23), start.Add(23*time.Hour))
	assert.Equal(t, len(h.Index()), 24)
}

func TestFromIndexRejectsGap(t *testing.T) {
	start := time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC)
	idx := hours(start, 5)
	idx[3] = idx[3].Add(time.Hour)
	_, err := FromIndex(idx)
	assert.ErrorContains(t, err, "at row 3")
}

func TestFromIndexRejectsNonMonotonic(t *testing.T) {
	start := time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC)
	idx := hours(start, 3)
	idx[2] = idx[1]
	_, err := FromIndex(idx)
	assert.ErrorContains(t, err, "not strictly increasing")
}

func TestFromIndexRejectsEmpty(t *testing.T) {
	_, err := FromIndex(nil)
	assert.ErrorContains(t, err, "empty")
}

func TestSteps(t *testing.T) {
	h := Steps(4)
	assert.Equal(t, h.Len(), 4)
	assert.Equal(t, h.Step(), Hourly)
}

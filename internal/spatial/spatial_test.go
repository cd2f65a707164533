package spatial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHaversineDistance(t *testing.T) {
	// Ahmedabad to Gandhinagar, roughly 23 km
	d := HaversineDistance(23.0225, 72.5714, 23.2156, 72.6369)
	assert.InDelta(t, 22500, d, 1500)
	assert.Zero(t, HaversineDistance(23, 72, 23, 72))
}

func TestWeightedCentroid(t *testing.T) {
	points := []Point{
		{Lat: 10, Lng: 10, Weight: 3},
		{Lat: 20, Lng: 20, Weight: 1},
	}
	c := WeightedCentroid(points)
	assert.InDelta(t, 12.5, c.Lat, 1e-9)
	assert.InDelta(t, 12.5, c.Lng, 1e-9)

	zero := []Point{{Lat: 10, Lng: 10}, {Lat: 20, Lng: 20}}
	c = WeightedCentroid(zero)
	assert.InDelta(t, 15, c.Lat, 1e-9)
	assert.Zero(t, WeightedCentroid(nil))
}

func TestWeightedRadiusOfGyration(t *testing.T) {
	assert.Zero(t, WeightedRadiusOfGyration([]Point{{Lat: 23, Lng: 72, Weight: 4}}))
	r := WeightedRadiusOfGyration([]Point{
		{Lat: 23.0, Lng: 72.0, Weight: 1},
		{Lat: 23.0, Lng: 72.01, Weight: 1},
	})
	assert.InDelta(t, 512, r, 20)
}

func TestCellKey_SortsWithinCovering(t *testing.T) {
	ranges := BoxCovering(22.9, 72.4, 23.2, 72.7, 8)
	require.NotEmpty(t, ranges)

	key := CellKey(23.0225, 72.5714)
	assert.Len(t, key, 16)
	var inside bool
	for _, r := range ranges {
		if key >= r.Min && key <= r.Max {
			inside = true
		}
	}
	assert.True(t, inside)

	outside := CellKey(-33.86, 151.2)
	for _, r := range ranges {
		assert.False(t, outside >= r.Min && outside <= r.Max)
	}
}

func TestBoxContains(t *testing.T) {
	assert.True(t, BoxContains(22, 72, 24, 73, 23, 72.5))
	assert.False(t, BoxContains(22, 72, 24, 73, 25, 72.5))
	// antimeridian box
	assert.True(t, BoxContains(-10, 170, 10, -170, 0, 179))
	assert.True(t, BoxContains(-10, 170, 10, -170, 0, -175))
	assert.False(t, BoxContains(-10, 170, 10, -170, 0, 0))
}

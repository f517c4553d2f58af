package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want                   float64
		delta                  float64
	}{
		{"same point", 40.4168, -3.7038, 40.4168, -3.7038, 0, 1e-9},
		// One degree of latitude on a 6,371 km sphere.
		{"one degree latitude", 0, 0, 1, 0, 111_194.93, 0.5},
		{"puerta del sol to retiro", 40.4168, -3.7038, 40.4153, -3.6845, 1_642, 5},
		{"antipodal", 0, 0, 0, 180, math.Pi * EarthRadiusMeters, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Distance(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			assert.InDelta(t, tt.want, got, tt.delta)
		})
	}
}

func TestDistance_Symmetric(t *testing.T) {
	a := Distance(40.42, -3.70, 40.45, -3.68)
	b := Distance(40.45, -3.68, 40.42, -3.70)
	assert.Equal(t, a, b)
}

func TestDistance_NaNPropagates(t *testing.T) {
	assert.True(t, math.IsNaN(Distance(math.NaN(), 0, 1, 1)))
}

func TestPoint_DistanceTo_Unknown(t *testing.T) {
	var unknown *Point
	known := &Point{Lat: 40.4, Lon: -3.7}

	assert.True(t, math.IsNaN(unknown.DistanceTo(known)))
	assert.True(t, math.IsNaN(known.DistanceTo(unknown)))
	assert.True(t, math.IsNaN(known.DistanceTo(&Point{Lat: 91, Lon: 0})))
	assert.InDelta(t, 0, known.DistanceTo(&Point{Lat: 40.4, Lon: -3.7}), 1e-9)
}

func TestPoint_Valid(t *testing.T) {
	assert.True(t, Point{Lat: 40.4, Lon: -3.7}.Valid())
	assert.False(t, Point{Lat: -90.1, Lon: 0}.Valid())
	assert.False(t, Point{Lat: 0, Lon: 180.5}.Valid())
	assert.False(t, Point{Lat: math.NaN(), Lon: 0}.Valid())
	assert.False(t, Point{Lat: 0, Lon: math.Inf(1)}.Valid())
}

func TestPoint_EWKBRoundTrip(t *testing.T) {
	p := Point{Lat: 40.4153, Lon: -3.6845}

	data, err := p.EWKB()
	require.NoError(t, err)

	got, err := FromEWKB(data)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.InDelta(t, p.Lat, got.Lat, 1e-12)
	assert.InDelta(t, p.Lon, got.Lon, 1e-12)
}

func TestPoint_EWKBInvalid(t *testing.T) {
	_, err := Point{Lat: 100, Lon: 0}.EWKB()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid coordinate")
}

func TestFromEWKB_Empty(t *testing.T) {
	p, err := FromEWKB(nil)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestAround_ContainsRadius(t *testing.T) {
	center := Point{Lat: 40.4168, Lon: -3.7038}
	box := Around(center, 2000)

	assert.True(t, box.Contains(center))

	// Points ~2 km away along each axis stay inside.
	north := Point{Lat: center.Lat + 1990/metersPerDegreeLat, Lon: center.Lon}
	assert.True(t, box.Contains(north))
	assert.LessOrEqual(t, Distance(center.Lat, center.Lon, north.Lat, north.Lon), 2000.0)

	far := Point{Lat: center.Lat + 0.1, Lon: center.Lon}
	assert.False(t, box.Contains(far))
}

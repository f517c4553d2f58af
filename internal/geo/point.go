// Package geo provides the coordinate, distance, and bounding-box helpers used
// to search for comparable properties around a target.
package geo

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

// SRID is the spatial reference used for stored locations (WGS 84).
const SRID = 4326

// Point is a WGS 84 coordinate. A nil *Point means the location is unknown.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the coordinate is finite and within range.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// DistanceTo returns the great-circle distance in meters between p and q.
// It returns NaN when either point is nil or invalid.
func (p *Point) DistanceTo(q *Point) float64 {
	if p == nil || q == nil || !p.Valid() || !q.Valid() {
		return math.NaN()
	}
	return Distance(p.Lat, p.Lon, q.Lat, q.Lon)
}

// Geom converts the point to a go-geom point (X=lon, Y=lat) tagged with SRID 4326.
func (p Point) Geom() *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{p.Lon, p.Lat}).SetSRID(SRID)
}

// EWKB encodes the point as little-endian EWKB for PostGIS geometry columns.
func (p Point) EWKB() ([]byte, error) {
	if !p.Valid() {
		return nil, eris.Errorf("geo: invalid coordinate (%f, %f)", p.Lat, p.Lon)
	}
	data, err := ewkb.Marshal(p.Geom(), ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "geo: encode EWKB")
	}
	return data, nil
}

// FromEWKB decodes an EWKB point. Empty input yields a nil point.
func FromEWKB(data []byte) (*Point, error) {
	if len(data) == 0 {
		return nil, nil
	}
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return nil, eris.Wrap(err, "geo: decode EWKB")
	}
	pt, ok := g.(*geom.Point)
	if !ok {
		return nil, eris.Errorf("geo: expected point geometry, got %T", g)
	}
	return &Point{Lat: pt.Y(), Lon: pt.X()}, nil
}

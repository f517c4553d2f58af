package geo

import "math"

// BBox represents a geographic bounding box.
type BBox struct {
	MinLng float64 `json:"min_lng"`
	MinLat float64 `json:"min_lat"`
	MaxLng float64 `json:"max_lng"`
	MaxLat float64 `json:"max_lat"`
}

// metersPerDegreeLat is the length of one degree of latitude on the haversine sphere.
const metersPerDegreeLat = EarthRadiusMeters * math.Pi / 180

// Around returns a box that contains every point within radius meters of
// center. It is a coarse pre-filter; callers still apply Distance.
func Around(center Point, radius float64) BBox {
	dLat := radius / metersPerDegreeLat
	cosLat := math.Cos(center.Lat * math.Pi / 180)
	dLng := 180.0
	if cosLat > 1e-9 {
		dLng = math.Min(180, radius/(metersPerDegreeLat*cosLat))
	}
	return BBox{
		MinLng: math.Max(-180, center.Lon-dLng),
		MinLat: math.Max(-90, center.Lat-dLat),
		MaxLng: math.Min(180, center.Lon+dLng),
		MaxLat: math.Min(90, center.Lat+dLat),
	}
}

// Contains reports whether p falls inside the box (edges inclusive).
func (b BBox) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lon >= b.MinLng && p.Lon <= b.MaxLng
}

// Package geo converts client drop-off points between GeoJSON (API) and
// WKB (database) and measures distances between them.
package geo

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/twpayne/go-geom"
	gjson "github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkb"
)

var ErrNotPoint = errors.New("geometry must be a GeoJSON Point")

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ParsePoint parses a GeoJSON Point string and returns WKB bytes.
// An empty string yields nil.
func ParsePoint(raw string) ([]byte, error) {
	if raw == "" {
		return nil, nil
	}
	var g geom.T
	if err := gjson.Unmarshal([]byte(raw), &g); err != nil {
		return nil, err
	}
	if _, ok := g.(*geom.Point); !ok {
		return nil, ErrNotPoint
	}
	return wkb.Marshal(g, binary.LittleEndian)
}

// EncodePoint builds WKB bytes for a lat/lng pair.
func EncodePoint(p Point) ([]byte, error) {
	pt, err := geom.NewPoint(geom.XY).SetCoords(geom.Coord{p.Lng, p.Lat})
	if err != nil {
		return nil, err
	}
	return wkb.Marshal(pt, binary.LittleEndian)
}

// DecodePoint reads a WKB point. ok is false for empty or non-point input.
func DecodePoint(wkbBytes []byte) (Point, bool) {
	if len(wkbBytes) == 0 {
		return Point{}, false
	}
	g, err := wkb.Unmarshal(wkbBytes)
	if err != nil {
		return Point{}, false
	}
	pt, ok := g.(*geom.Point)
	if !ok {
		return Point{}, false
	}
	return Point{Lat: pt.Y(), Lng: pt.X()}, true
}

// ToGeoJSON converts WKB bytes into a GeoJSON string.
func ToGeoJSON(wkbBytes []byte) (string, error) {
	if len(wkbBytes) == 0 {
		return "", nil
	}
	g, err := wkb.Unmarshal(wkbBytes)
	if err != nil {
		return "", err
	}
	b, err := gjson.Marshal(g)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Distance returns the great-circle distance between two points in meters.
func Distance(a, b Point) float64 {
	const R = 6371000 // Earth's radius in meters.
	dLat := toRadians(b.Lat - a.Lat)
	dLon := toRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(a.Lat))*math.Cos(toRadians(b.Lat))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return R * c
}

// Bearing returns the initial bearing from a to b in degrees.
func Bearing(a, b Point) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	deltaLon := toRadians(b.Lng - a.Lng)

	y := math.Sin(deltaLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) -
		math.Sin(lat1)*math.Cos(lat2)*math.Cos(deltaLon)

	return math.Mod(toDegrees(math.Atan2(y, x))+360, 360)
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

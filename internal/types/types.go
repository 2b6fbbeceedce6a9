// README: Shared value objects used across modules.
package types

// ID is an opaque entity identifier.
type ID string

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64
	Lng float64
}

// Coordinate is a point plus its human-readable address.
type Coordinate struct {
	Point
	Address string
}

// Zero reports whether the point carries no coordinate at all.
// (0,0) is in the Gulf of Guinea; no ride starts or ends there.
func (p Point) Zero() bool {
	return p.Lat == 0 && p.Lng == 0
}

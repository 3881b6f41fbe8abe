package domain

import (
	"math"
	"time"
)

// Immutable geographic coordinates (latitude, longitude).
type LatLng struct {
	Lat float64
	Lon float64
}

// Return coordinates as [lon, lat] for external API compatibility.
func (p LatLng) CoordsToList() []float64 { return []float64{p.Lon, p.Lat} }

const earthRadiusMeters = 6371000.0

// Great-circle distance in meters (haversine).
func (p LatLng) DistanceMeters(q LatLng) float64 {
	lat1 := p.Lat * math.Pi / 180
	lat2 := q.Lat * math.Pi / 180
	dLat := (q.Lat - p.Lat) * math.Pi / 180
	dLon := (q.Lon - p.Lon) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Interval during which a stop may be serviced.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

func (w TimeWindow) Duration() time.Duration { return w.End.Sub(w.Start) }

// A servicing point: coordinates, an optional service window and the time
// spent on site. Immutable once constructed.
type Location struct {
	Point           LatLng
	Window          *TimeWindow
	ServiceDuration time.Duration
}

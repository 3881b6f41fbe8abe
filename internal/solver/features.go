package solver

import (
	"time"

	"fieldops-routing-service/internal/domain"
)

// ProblemFeatures is a derived, read-only summary of a RoutingProblem used
// only for strategy selection. It is never persisted with a solution.
type ProblemFeatures struct {
	JobCount     int
	VehicleCount int
	HasSkills    bool
	// WindowTightness is the share of jobs constrained to a service window
	// shorter than two hours.
	WindowTightness float64
	// SpreadKm is the diagonal of the jobs' bounding box.
	SpreadKm float64
}

const tightWindow = 2 * time.Hour

// Extract derives selection features from a problem.
func Extract(p *domain.RoutingProblem) ProblemFeatures {
	f := ProblemFeatures{
		JobCount:     len(p.Jobs),
		VehicleCount: len(p.Vehicles),
	}
	if len(p.Jobs) == 0 {
		return f
	}

	tight := 0
	minLat, maxLat := p.Jobs[0].Location.Point.Lat, p.Jobs[0].Location.Point.Lat
	minLon, maxLon := p.Jobs[0].Location.Point.Lon, p.Jobs[0].Location.Point.Lon

	for _, job := range p.Jobs {
		if job.Skill != "" {
			f.HasSkills = true
		}
		if w := job.Location.Window; w != nil && w.Duration() < tightWindow {
			tight++
		}

		pt := job.Location.Point
		minLat = min(minLat, pt.Lat)
		maxLat = max(maxLat, pt.Lat)
		minLon = min(minLon, pt.Lon)
		maxLon = max(maxLon, pt.Lon)
	}

	f.WindowTightness = float64(tight) / float64(len(p.Jobs))
	corner := domain.LatLng{Lat: minLat, Lon: minLon}
	opposite := domain.LatLng{Lat: maxLat, Lon: maxLon}
	f.SpreadKm = corner.DistanceMeters(opposite) / 1000

	return f
}
